package service

import (
	"context"
	"fmt"

	"shop-catalog/internal/model"
	"shop-catalog/internal/repository"
	"shop-catalog/pkg/log"
)

type sampleNode struct {
	title    string
	children []sampleNode
}

// sampleForest 是四棵演示用的服装分类树，深度不超过 3。
// 段号按先序遍历从 001 开始递增，例如 상의=001、티셔츠=001002、반팔=001002003。
var sampleForest = []sampleNode{
	{"상의", []sampleNode{
		{"티셔츠", []sampleNode{{"반팔", nil}, {"긴팔", nil}}},
		{"셔츠", []sampleNode{
			{"옥스포드", nil},
			{"린넨", []sampleNode{{"얇은", nil}, {"두꺼운", nil}}},
		}},
	}},
	{"하의", []sampleNode{
		{"청바지", []sampleNode{{"스트레이트", nil}, {"슬림", nil}}},
		{"슬랙스", nil},
		{"반바지", nil},
	}},
	{"아우터", []sampleNode{
		{"코트", []sampleNode{
			{"트렌치", []sampleNode{{"롱", nil}, {"숏", nil}}},
		}},
		{"자켓", nil},
	}},
	{"악세서리", []sampleNode{
		{"모자", []sampleNode{{"비니", nil}, {"볼캡", nil}}},
		{"벨트", nil},
		{"양말", []sampleNode{
			{"캐주얼", []sampleNode{{"단목", nil}}},
			{"스포츠", []sampleNode{{"기능성", nil}}},
		}},
	}},
}

// SeedSample 清空分类表并写入演示数据，返回写入的节点数。
func (s *categoryService) SeedSample(ctx context.Context) (int, error) {
	var seeded []model.Category
	err := s.repo.Transaction(ctx, func(tx repository.CategoryRepository) error {
		if err := tx.DeleteAll(ctx); err != nil {
			return err
		}
		nodes, err := buildSample(sampleForest)
		if err != nil {
			return err
		}
		seeded = nodes
		return tx.SaveAll(ctx, nodes)
	})
	if err != nil {
		return 0, err
	}

	log.Infow("sample categories seeded", "count", len(seeded))
	s.afterCommit(ctx, model.NewCategoryEvent(model.EventSeeded, "", ""))
	return len(seeded), nil
}

// buildSample 先序展开 sampleNode 树，同时分配段号与兄弟顺序。
func buildSample(roots []sampleNode) ([]model.Category, error) {
	var (
		out []model.Category
		seq int
	)
	var walk func(parent *model.Category, nodes []sampleNode) error
	walk = func(parent *model.Category, nodes []sampleNode) error {
		for i, n := range nodes {
			seq++
			segment := fmt.Sprintf("%0*d", model.SegmentWidth, seq)
			var (
				c   model.Category
				err error
			)
			if parent == nil {
				c, err = model.NewRoot(n.title, segment)
			} else {
				c, err = model.NewLeaf(*parent, n.title, segment)
			}
			if err != nil {
				return err
			}
			if c, err = c.WithOrder(i); err != nil {
				return err
			}
			out = append(out, c)
			if err := walk(&c, n.children); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(nil, roots); err != nil {
		return nil, err
	}
	return out, nil
}
