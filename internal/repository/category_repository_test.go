package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"shop-catalog/internal/model"
)

// testDB 为每个测试打开一个独立的内存 SQLite 库并建表。
func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, AutoMigrate(db))

	t.Cleanup(func() { sqlDB.Close() })
	return db
}

func saveTree(t *testing.T, repo CategoryRepository) (root, child, grandchild model.Category) {
	t.Helper()
	ctx := context.Background()

	r, err := model.NewRoot("상의", "001")
	require.NoError(t, err)
	root, err = repo.Save(ctx, r)
	require.NoError(t, err)

	c, err := model.NewLeaf(root, "티셔츠", "002")
	require.NoError(t, err)
	child, err = repo.Save(ctx, c)
	require.NoError(t, err)

	g, err := model.NewLeaf(child, "반팔", "003")
	require.NoError(t, err)
	grandchild, err = repo.Save(ctx, g)
	require.NoError(t, err)
	return root, child, grandchild
}

func TestCategoryRepository_SaveAndFind(t *testing.T) {
	repo := NewCategoryRepository(testDB(t))
	ctx := context.Background()
	root, child, _ := saveTree(t, repo)

	assert.NotZero(t, root.ID())
	assert.NotZero(t, child.ID())

	got, err := repo.FindByCode(ctx, "001002")
	require.NoError(t, err)
	assert.Equal(t, child.ID(), got.ID())
	assert.Equal(t, "티셔츠", got.Title())
	assert.Equal(t, 1, got.Depth())
	assert.Equal(t, "001", got.ParentCode())

	_, err = repo.FindByCode(ctx, "999")
	assert.ErrorIs(t, err, model.ErrNotFound)

	exists, err := repo.ExistsByCode(ctx, "001002003")
	require.NoError(t, err)
	assert.True(t, exists)

	batch, err := repo.FindAllByCodes(ctx, []string{"001", "001002003", "404"})
	require.NoError(t, err)
	assert.Len(t, batch, 2)

	empty, err := repo.FindAllByCodes(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestCategoryRepository_DuplicateCodeIsConflict(t *testing.T) {
	repo := NewCategoryRepository(testDB(t))
	ctx := context.Background()
	saveTree(t, repo)

	dup, err := model.NewRoot("또 상의", "001")
	require.NoError(t, err)
	_, err = repo.Save(ctx, dup)
	assert.ErrorIs(t, err, model.ErrConflict)

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestCategoryRepository_PrefixQueries(t *testing.T) {
	repo := NewCategoryRepository(testDB(t))
	ctx := context.Background()
	root, _, _ := saveTree(t, repo)

	other, err := model.NewRoot("하의", "010")
	require.NoError(t, err)
	_, err = repo.Save(ctx, other)
	require.NoError(t, err)

	sub, err := repo.FindAllByCodePrefix(ctx, "001002")
	require.NoError(t, err)
	require.Len(t, sub, 2)
	assert.Equal(t, "001002", sub[0].Code())
	assert.Equal(t, "001002003", sub[1].Code())

	roots, err := repo.FindAllByParentCode(ctx, "")
	require.NoError(t, err)
	require.Len(t, roots, 2)

	kids, err := repo.FindAllByParentCode(ctx, root.Code())
	require.NoError(t, err)
	require.Len(t, kids, 1)
	assert.Equal(t, "001002", kids[0].Code())

	n, err := repo.DeleteByCodePrefix(ctx, "001")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "010", all[0].Code())
}

func TestCategoryRepository_SaveAllUpdatesCodes(t *testing.T) {
	repo := NewCategoryRepository(testDB(t))
	ctx := context.Background()
	_, child, grandchild := saveTree(t, repo)

	c2, err := child.ChangeSegment("005")
	require.NoError(t, err)
	g2, err := grandchild.Rebase("001002", "001005")
	require.NoError(t, err)

	require.NoError(t, repo.SaveAll(ctx, []model.Category{g2, c2}))

	got, err := repo.FindByCode(ctx, "001005003")
	require.NoError(t, err)
	assert.Equal(t, grandchild.ID(), got.ID())
	assert.Equal(t, "001005", got.ParentCode())

	exists, err := repo.ExistsByCode(ctx, "001002")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, repo.SaveAll(ctx, nil))
}

func TestCategoryRepository_SaveAllCodeTakenIsConflict(t *testing.T) {
	repo := NewCategoryRepository(testDB(t))
	ctx := context.Background()
	root, _, _ := saveTree(t, repo)

	r, err := model.NewRoot("하의", "010")
	require.NoError(t, err)
	other, err := repo.Save(ctx, r)
	require.NoError(t, err)

	taken, err := other.ChangeSegment("001")
	require.NoError(t, err)
	err = repo.SaveAll(ctx, []model.Category{taken})
	assert.ErrorIs(t, err, model.ErrConflict)

	got, err := repo.FindByCode(ctx, "001")
	require.NoError(t, err)
	assert.Equal(t, root.ID(), got.ID())
	assert.Equal(t, "상의", got.Title())

	got, err = repo.FindByCode(ctx, "010")
	require.NoError(t, err)
	assert.Equal(t, other.ID(), got.ID())
}

func TestCategoryRepository_TransactionRollsBack(t *testing.T) {
	repo := NewCategoryRepository(testDB(t))
	ctx := context.Background()
	boom := errors.New("boom")

	err := repo.Transaction(ctx, func(tx CategoryRepository) error {
		r, err := model.NewRoot("상의", "001")
		if err != nil {
			return err
		}
		if _, err := tx.Save(ctx, r); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCategoryRepository_DeleteAll(t *testing.T) {
	repo := NewCategoryRepository(testDB(t))
	ctx := context.Background()
	saveTree(t, repo)

	require.NoError(t, repo.DeleteAll(ctx))
	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}
