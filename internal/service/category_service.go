// Package service 承载分类层级的业务逻辑。
package service

import (
	"context"
	"fmt"

	"shop-catalog/internal/model"
	"shop-catalog/internal/repository"
	"shop-catalog/pkg/log"
)

// EventPublisher 把已提交的分类变更发布给异步消费者。
type EventPublisher interface {
	Publish(ctx context.Context, event model.CategoryEvent) error
}

// NopPublisher 在未配置消息队列时使用。
type NopPublisher struct{}

// Publish 直接丢弃事件。
func (NopPublisher) Publish(context.Context, model.CategoryEvent) error { return nil }

// CreateCategoryRequest 描述一次新建，ParentCode 为空表示创建根分类。
type CreateCategoryRequest struct {
	ParentCode string `json:"parentCode"`
	Title      string `json:"title" binding:"required"`
	Segment    string `json:"segment" binding:"required"`
}

// UpdateCategoryRequest 中为空的字段保持原值。
type UpdateCategoryRequest struct {
	Title   string `json:"title"`
	Segment string `json:"segment"`
}

// CategoryService 接口定义了分类层级的所有命令与查询。
type CategoryService interface {
	Create(ctx context.Context, req CreateCategoryRequest) (model.Category, error)
	Get(ctx context.Context, code string) (model.Category, error)
	Update(ctx context.Context, code string, req UpdateCategoryRequest) (model.Category, error)
	Rename(ctx context.Context, code, title string) (model.Category, error)
	ChangeSegment(ctx context.Context, code, segment string) (model.Category, error)
	Move(ctx context.Context, code, newParentCode string) (model.Category, error)
	Reorder(ctx context.Context, code string, order int) (model.Category, error)
	Delete(ctx context.Context, code string) (int64, error)
	ListAll(ctx context.Context) (model.Forest, error)
	ListSubtree(ctx context.Context, code string) (*model.CategoryTree, error)
	SeedSample(ctx context.Context) (int, error)
}

type categoryService struct {
	repo      repository.CategoryRepository
	cache     repository.CategoryCache
	publisher EventPublisher
}

// NewCategoryService 创建一个新的 CategoryService 实例。
func NewCategoryService(repo repository.CategoryRepository, cache repository.CategoryCache, publisher EventPublisher) CategoryService {
	if cache == nil {
		cache = repository.NopCategoryCache{}
	}
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &categoryService{repo: repo, cache: cache, publisher: publisher}
}

// Create 新建根分类或子分类，新节点排在兄弟分组末尾。
func (s *categoryService) Create(ctx context.Context, req CreateCategoryRequest) (model.Category, error) {
	var created model.Category
	err := s.repo.Transaction(ctx, func(tx repository.CategoryRepository) error {
		var (
			c   model.Category
			err error
		)
		if req.ParentCode == "" {
			c, err = model.NewRoot(req.Title, req.Segment)
		} else {
			parent, findErr := tx.FindByCode(ctx, req.ParentCode)
			if findErr != nil {
				return findErr
			}
			c, err = model.NewLeaf(parent, req.Title, req.Segment)
		}
		if err != nil {
			return err
		}

		if err := s.ensureFree(ctx, tx, c.Code()); err != nil {
			return err
		}
		siblings, err := tx.FindAllByParentCode(ctx, c.ParentCode())
		if err != nil {
			return err
		}
		if c, err = c.WithOrder(model.NextOrder(siblings)); err != nil {
			return err
		}
		created, err = tx.Save(ctx, c)
		return err
	})
	if err != nil {
		return model.Category{}, err
	}

	log.Infow("category created", "code", created.Code(), "title", created.Title(), "depth", created.Depth())
	s.afterCommit(ctx, model.NewCategoryEvent(model.EventCreated, created.Code(), ""))
	return created, nil
}

// Get 根据 code 读取单个分类。
func (s *categoryService) Get(ctx context.Context, code string) (model.Category, error) {
	return s.repo.FindByCode(ctx, code)
}

func (s *categoryService) Rename(ctx context.Context, code, title string) (model.Category, error) {
	return s.update(ctx, code, &title, nil)
}

func (s *categoryService) ChangeSegment(ctx context.Context, code, segment string) (model.Category, error) {
	return s.update(ctx, code, nil, &segment)
}

// Update 同时修改标题与最后一层编码。
func (s *categoryService) Update(ctx context.Context, code string, req UpdateCategoryRequest) (model.Category, error) {
	var title, segment *string
	if req.Title != "" {
		title = &req.Title
	}
	if req.Segment != "" {
		segment = &req.Segment
	}
	if title == nil && segment == nil {
		return model.Category{}, model.Validationf("nothing to update for category %s", code)
	}
	return s.update(ctx, code, title, segment)
}

// update 在 code 变化时把同一前缀替换应用到全部后代，并在同一事务中保存。
func (s *categoryService) update(ctx context.Context, code string, title, segment *string) (model.Category, error) {
	var before, after model.Category
	err := s.repo.Transaction(ctx, func(tx repository.CategoryRepository) error {
		target, err := tx.FindByCode(ctx, code)
		if err != nil {
			return err
		}
		before = target

		updated := target
		if title != nil {
			if updated, err = updated.Rename(*title); err != nil {
				return err
			}
		}
		if segment != nil {
			if updated, err = updated.ChangeSegment(*segment); err != nil {
				return err
			}
		}

		if updated.Code() != target.Code() {
			if err := s.ensureFree(ctx, tx, updated.Code()); err != nil {
				return err
			}
			descendants, err := s.descendantsOf(ctx, tx, target.Code())
			if err != nil {
				return err
			}
			rebased := make([]model.Category, 0, len(descendants))
			for _, d := range descendants {
				r, err := d.Rebase(target.Code(), updated.Code())
				if err != nil {
					return err
				}
				rebased = append(rebased, r)
			}
			if err := tx.SaveAll(ctx, rebased); err != nil {
				return err
			}
		}

		after, err = tx.Save(ctx, updated)
		return err
	})
	if err != nil {
		return model.Category{}, err
	}

	log.Infow("category updated", "code", before.Code(), "newCode", after.Code(), "title", after.Title())
	s.afterCommit(ctx, model.NewCategoryEvent(model.EventUpdated, after.Code(), before.Code()))
	return after, nil
}

// Move 把分类连同整棵子树挂到新父级下，newParentCode 为空表示移为根。
func (s *categoryService) Move(ctx context.Context, code, newParentCode string) (model.Category, error) {
	var plan *movePlan
	err := s.repo.Transaction(ctx, func(tx repository.CategoryRepository) error {
		plan = &movePlan{tx: tx, code: code, newParentCode: newParentCode}
		return plan.run(ctx)
	})
	if err != nil {
		return model.Category{}, err
	}
	if plan.noop {
		return plan.target, nil
	}

	log.Infow("category moved", "code", plan.target.Code(), "newCode", plan.moved.Code(),
		"newParent", newParentCode, "descendants", len(plan.descendants))
	s.afterCommit(ctx, model.NewCategoryEvent(model.EventMoved, plan.moved.Code(), plan.target.Code()))
	return plan.moved, nil
}

// Reorder 把分类放到兄弟分组中的第 order 位，超出末尾时放到最后。
func (s *categoryService) Reorder(ctx context.Context, code string, order int) (model.Category, error) {
	var result model.Category
	var changed int
	err := s.repo.Transaction(ctx, func(tx repository.CategoryRepository) error {
		target, err := tx.FindByCode(ctx, code)
		if err != nil {
			return err
		}
		siblings, err := tx.FindAllByParentCode(ctx, target.ParentCode())
		if err != nil {
			return err
		}
		updates, err := model.Reposition(siblings, code, order)
		if err != nil {
			return err
		}
		if err := tx.SaveAll(ctx, updates); err != nil {
			return err
		}
		changed = len(updates)
		result = target
		for _, u := range updates {
			if u.Code() == code {
				result = u
			}
		}
		return nil
	})
	if err != nil {
		return model.Category{}, err
	}
	if changed == 0 {
		return result, nil
	}

	log.Infow("category reordered", "code", code, "order", result.SiblingOrder(), "changed", changed)
	s.afterCommit(ctx, model.NewCategoryEvent(model.EventReordered, code, ""))
	return result, nil
}

// Delete 级联删除分类及其全部后代，并收拢原兄弟分组的顺序。
func (s *categoryService) Delete(ctx context.Context, code string) (int64, error) {
	var removed int64
	err := s.repo.Transaction(ctx, func(tx repository.CategoryRepository) error {
		target, err := tx.FindByCode(ctx, code)
		if err != nil {
			return err
		}
		if removed, err = tx.DeleteByCodePrefix(ctx, target.Code()); err != nil {
			return err
		}
		siblings, err := tx.FindAllByParentCode(ctx, target.ParentCode())
		if err != nil {
			return err
		}
		shifted, err := model.CloseGap(siblings, target)
		if err != nil {
			return err
		}
		return tx.SaveAll(ctx, shifted)
	})
	if err != nil {
		return 0, err
	}

	log.Infow("category deleted", "code", code, "removed", removed)
	s.afterCommit(ctx, model.NewCategoryEvent(model.EventDeleted, code, ""))
	return removed, nil
}

// ListAll 读取全部分类并组装成森林，优先命中缓存。
func (s *categoryService) ListAll(ctx context.Context) (model.Forest, error) {
	if forest, ok, err := s.cache.GetForest(ctx); err != nil {
		log.Warnf("[CategoryService] 读取森林缓存失败: %v", err)
	} else if ok {
		return forest, nil
	}

	nodes, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	forest, err := model.BuildForest(nodes)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetForest(ctx, forest); err != nil {
		log.Warnf("[CategoryService] 写入森林缓存失败: %v", err)
	}
	return forest, nil
}

// ListSubtree 用一次前缀查询读取 code 的子树。
func (s *categoryService) ListSubtree(ctx context.Context, code string) (*model.CategoryTree, error) {
	if err := model.Path.ValidateCode(code); err != nil {
		return nil, err
	}
	if tree, ok, err := s.cache.GetSubtree(ctx, code); err != nil {
		log.Warnf("[CategoryService] 读取子树缓存失败, code: %s, error: %v", code, err)
	} else if ok {
		return tree, nil
	}

	nodes, err := s.repo.FindAllByCodePrefix(ctx, code)
	if err != nil {
		return nil, err
	}
	tree, err := model.BuildSubtree(nodes, code)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetSubtree(ctx, code, tree); err != nil {
		log.Warnf("[CategoryService] 写入子树缓存失败, code: %s, error: %v", code, err)
	}
	return tree, nil
}

// ensureFree 在写入前检查 code 是否已被占用。
func (s *categoryService) ensureFree(ctx context.Context, tx repository.CategoryRepository, code string) error {
	exists, err := tx.ExistsByCode(ctx, code)
	if err != nil {
		return err
	}
	if exists {
		return model.Conflictf("category code %s already exists", code)
	}
	return nil
}

// descendantsOf 返回 code 的全部后代，不含自身。
func (s *categoryService) descendantsOf(ctx context.Context, tx repository.CategoryRepository, code string) ([]model.Category, error) {
	candidates, err := tx.FindAllByCodePrefix(ctx, code)
	if err != nil {
		return nil, err
	}
	subtree, err := model.SubtreeOf(candidates, code)
	if err != nil {
		return nil, err
	}
	return subtree[1:], nil
}

// afterCommit 处理提交后的副作用，失败只记录日志，不影响已提交的结果。
func (s *categoryService) afterCommit(ctx context.Context, event model.CategoryEvent) {
	if err := s.cache.Invalidate(ctx); err != nil {
		log.Warnf("[CategoryService] 清理分类缓存失败, event: %s, error: %v", event.Type, err)
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		log.Warnf("[CategoryService] 发布分类事件失败, event: %s, code: %s, error: %v", event.Type, event.Code, err)
	}
}

// movePlan 按 载入 → 校验 → 重新挂接 → 重算后代 → 持久化 的顺序执行一次移动。
type movePlan struct {
	tx            repository.CategoryRepository
	code          string
	newParentCode string

	target      model.Category
	parent      *model.Category
	descendants []model.Category
	moved       model.Category
	siblingGap  []model.Category
	noop        bool
}

func (p *movePlan) run(ctx context.Context) error {
	steps := []func(context.Context) error{p.load, p.validate, p.relink, p.recompute, p.persist}
	for _, step := range steps {
		if err := step(ctx); err != nil {
			return err
		}
		if p.noop {
			return nil
		}
	}
	return nil
}

func (p *movePlan) load(ctx context.Context) error {
	target, err := p.tx.FindByCode(ctx, p.code)
	if err != nil {
		return err
	}
	p.target = target
	if p.newParentCode == target.ParentCode() {
		p.noop = true
		return nil
	}
	if p.newParentCode == "" {
		return nil
	}
	if p.newParentCode == p.code {
		return model.Validationf("category %s cannot be its own parent", p.code)
	}
	parent, err := p.tx.FindByCode(ctx, p.newParentCode)
	if err != nil {
		return err
	}
	p.parent = &parent
	return nil
}

func (p *movePlan) validate(ctx context.Context) error {
	candidates, err := p.tx.FindAllByCodePrefix(ctx, p.target.Code())
	if err != nil {
		return err
	}
	subtree, err := model.SubtreeOf(candidates, p.target.Code())
	if err != nil {
		return err
	}
	if p.parent != nil {
		for _, c := range subtree {
			if c.Code() == p.parent.Code() {
				return model.Validationf("category %s cannot move under its descendant %s", p.target.Code(), p.parent.Code())
			}
		}
	}
	p.descendants = subtree[1:]
	return nil
}

func (p *movePlan) relink(ctx context.Context) error {
	moved, err := p.target.MoveTo(p.parent)
	if err != nil {
		return err
	}
	exists, err := p.tx.ExistsByCode(ctx, moved.Code())
	if err != nil {
		return err
	}
	if exists {
		return model.Conflictf("category code %s already exists under the new parent", moved.Code())
	}

	newGroup, err := p.tx.FindAllByParentCode(ctx, moved.ParentCode())
	if err != nil {
		return err
	}
	if p.moved, err = moved.WithOrder(model.NextOrder(newGroup)); err != nil {
		return err
	}

	oldGroup, err := p.tx.FindAllByParentCode(ctx, p.target.ParentCode())
	if err != nil {
		return err
	}
	p.siblingGap, err = model.CloseGap(oldGroup, p.target)
	return err
}

func (p *movePlan) recompute(context.Context) error {
	for i, d := range p.descendants {
		shifted, err := d.Shift(p.target.Code(), p.moved.Code())
		if err != nil {
			return fmt.Errorf("shift descendant %s: %w", d.Code(), err)
		}
		p.descendants[i] = shifted
	}
	return nil
}

func (p *movePlan) persist(ctx context.Context) error {
	batch := make([]model.Category, 0, len(p.descendants)+len(p.siblingGap))
	batch = append(batch, p.descendants...)
	batch = append(batch, p.siblingGap...)
	if err := p.tx.SaveAll(ctx, batch); err != nil {
		return err
	}
	moved, err := p.tx.Save(ctx, p.moved)
	if err != nil {
		return err
	}
	p.moved = moved
	return nil
}
