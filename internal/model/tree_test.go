package model

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cat(t *testing.T, code, title string, order int) Category {
	t.Helper()
	c, err := Restore(CategoryState{Title: title, Code: code, Depth: Path.Depth(code), SiblingOrder: order})
	require.NoError(t, err)
	return c
}

// sampleNodes 是一棵上衣树加一棵下装树，顺序故意打乱。
func sampleNodes(t *testing.T) []Category {
	return []Category{
		cat(t, "001005007", "린넨", 1),
		cat(t, "010", "하의", 1),
		cat(t, "001002", "티셔츠", 0),
		cat(t, "001", "상의", 0),
		cat(t, "001005", "셔츠", 1),
		cat(t, "001002003", "반팔", 0),
		cat(t, "010011", "청바지", 0),
		cat(t, "001005006", "옥스포드", 0),
		cat(t, "001002004", "긴팔", 1),
	}
}

func codesOf(cs []Category) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Code()
	}
	return out
}

func TestBuildForest(t *testing.T) {
	forest, err := BuildForest(sampleNodes(t))
	require.NoError(t, err)

	require.Len(t, forest, 2)
	assert.Equal(t, "001", forest[0].Category.Code())
	assert.Equal(t, "010", forest[1].Category.Code())

	assert.Equal(t, []string{
		"001", "001002", "001002003", "001002004", "001005", "001005006", "001005007",
		"010", "010011",
	}, codesOf(forest.Flatten()))

	assert.True(t, forest[0].HasChildren())
	assert.False(t, forest.Find("001002003").HasChildren())
}

func TestBuildForest_RoundTrip(t *testing.T) {
	nodes := sampleNodes(t)
	forest, err := BuildForest(nodes)
	require.NoError(t, err)

	again, err := BuildForest(forest.Flatten())
	require.NoError(t, err)

	want := codesOf(nodes)
	got := codesOf(again.Flatten())
	sort.Strings(want)
	sort.Strings(got)
	assert.Equal(t, want, got)
	assert.Equal(t, len(nodes), again.Size())
}

func TestBuildForest_OrphanBecomesRoot(t *testing.T) {
	nodes := []Category{
		cat(t, "001", "상의", 0),
		cat(t, "001002003", "반팔", 0), // 001002 缺失
	}
	forest, err := BuildForest(nodes)
	require.NoError(t, err)
	require.Len(t, forest, 2)
	assert.Equal(t, "001002003", forest[1].Category.Code())
}

func TestBuildForest_SiblingOrderBeatsCode(t *testing.T) {
	nodes := []Category{
		cat(t, "001", "상의", 0),
		cat(t, "001002", "b", 1),
		cat(t, "001009", "a", 0),
	}
	forest, err := BuildForest(nodes)
	require.NoError(t, err)
	assert.Equal(t, []string{"001", "001009", "001002"}, codesOf(forest.Flatten()))
}

func TestBuildForest_DuplicateCode(t *testing.T) {
	_, err := BuildForest([]Category{cat(t, "001", "a", 0), cat(t, "001", "b", 1)})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestBuildForest_Empty(t *testing.T) {
	forest, err := BuildForest(nil)
	require.NoError(t, err)
	assert.Empty(t, forest)
}

func TestBuildSubtree(t *testing.T) {
	tree, err := BuildSubtree(sampleNodes(t), "001005")
	require.NoError(t, err)
	assert.Equal(t, []string{"001005", "001005006", "001005007"}, codesOf(tree.Flatten()))

	_, err = BuildSubtree(sampleNodes(t), "777")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSubtreeOf_FiltersSiblingBranches(t *testing.T) {
	// 同根且深度不小于 1 的候选集合，包含不属于 001002 的兄弟分支。
	candidates := []Category{
		cat(t, "001005", "셔츠", 1),
		cat(t, "001002", "티셔츠", 0),
		cat(t, "001005006", "옥스포드", 0),
		cat(t, "001002004", "긴팔", 1),
		cat(t, "001002003", "반팔", 0),
	}
	got, err := SubtreeOf(candidates, "001002")
	require.NoError(t, err)
	assert.Equal(t, []string{"001002", "001002003", "001002004"}, codesOf(got))

	_, err = SubtreeOf(candidates, "001")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSubtreeOf_DuplicateCodeIsRejected(t *testing.T) {
	candidates := []Category{
		cat(t, "001", "상의", 0),
		cat(t, "001002", "티셔츠", 0),
		cat(t, "001002", "티셔츠 복제", 1),
	}
	_, err := SubtreeOf(candidates, "001")
	assert.ErrorIs(t, err, ErrValidation)
}
