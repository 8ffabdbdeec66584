package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"shop-catalog/internal/model"
	"shop-catalog/internal/repository"
)

// memRepo 是 CategoryRepository 的内存实现，按主键保存并在写入时检查 code 唯一。
type memRepo struct {
	mu     *sync.Mutex
	rows   map[uint]model.Category
	nextID uint
}

func newMemRepo() *memRepo {
	return &memRepo{mu: &sync.Mutex{}, rows: map[uint]model.Category{}, nextID: 1}
}

func (r *memRepo) sorted(keep func(model.Category) bool) []model.Category {
	out := []model.Category{}
	for _, c := range r.rows {
		if keep(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code() < out[j].Code() })
	return out
}

func (r *memRepo) FindByCode(_ context.Context, code string) (model.Category, error) {
	for _, c := range r.rows {
		if c.Code() == code {
			return c, nil
		}
	}
	return model.Category{}, model.NotFoundf("category %s not found", code)
}

func (r *memRepo) ExistsByCode(ctx context.Context, code string) (bool, error) {
	_, err := r.FindByCode(ctx, code)
	return err == nil, nil
}

func (r *memRepo) FindAll(context.Context) ([]model.Category, error) {
	return r.sorted(func(model.Category) bool { return true }), nil
}

func (r *memRepo) FindAllByCodes(_ context.Context, codes []string) ([]model.Category, error) {
	want := map[string]bool{}
	for _, c := range codes {
		want[c] = true
	}
	return r.sorted(func(c model.Category) bool { return want[c.Code()] }), nil
}

func (r *memRepo) FindAllByCodePrefix(_ context.Context, prefix string) ([]model.Category, error) {
	return r.sorted(func(c model.Category) bool { return strings.HasPrefix(c.Code(), prefix) }), nil
}

func (r *memRepo) FindAllByParentCode(_ context.Context, parentCode string) ([]model.Category, error) {
	out := r.sorted(func(c model.Category) bool { return c.ParentCode() == parentCode })
	sort.SliceStable(out, func(i, j int) bool { return out[i].SiblingOrder() < out[j].SiblingOrder() })
	return out, nil
}

func (r *memRepo) save(c model.Category) (model.Category, error) {
	for id, existing := range r.rows {
		if existing.Code() == c.Code() && id != c.ID() {
			return model.Category{}, model.Conflictf("category code %s already exists", c.Code())
		}
	}
	s := c.State()
	if !c.IsPersisted() {
		s.ID = r.nextID
		s.CreatedAt = time.Now()
		r.nextID++
	}
	s.UpdatedAt = time.Now()
	saved, err := model.Restore(s)
	if err != nil {
		return model.Category{}, err
	}
	r.rows[saved.ID()] = saved
	return saved, nil
}

func (r *memRepo) Save(_ context.Context, c model.Category) (model.Category, error) {
	return r.save(c)
}

// SaveAll 与数据库批量写入一致：整体成功或整体失败。
func (r *memRepo) SaveAll(_ context.Context, cs []model.Category) error {
	staged := r.clone()
	for _, c := range cs {
		if _, err := staged.save(c); err != nil {
			return err
		}
	}
	r.rows, r.nextID = staged.rows, staged.nextID
	return nil
}

func (r *memRepo) DeleteByCodePrefix(_ context.Context, prefix string) (int64, error) {
	var n int64
	for id, c := range r.rows {
		if strings.HasPrefix(c.Code(), prefix) {
			delete(r.rows, id)
			n++
		}
	}
	return n, nil
}

func (r *memRepo) DeleteAll(context.Context) error {
	r.rows = map[uint]model.Category{}
	return nil
}

func (r *memRepo) clone() *memRepo {
	rows := make(map[uint]model.Category, len(r.rows))
	for id, c := range r.rows {
		rows[id] = c
	}
	return &memRepo{mu: r.mu, rows: rows, nextID: r.nextID}
}

// Transaction 在副本上执行 fn，成功后整体替换，失败时丢弃副本。
func (r *memRepo) Transaction(_ context.Context, fn func(tx repository.CategoryRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx := r.clone()
	if err := fn(tx); err != nil {
		return err
	}
	r.rows, r.nextID = tx.rows, tx.nextID
	return nil
}

type fakeCache struct {
	forest        model.Forest
	subtrees      map[string]*model.CategoryTree
	invalidations int
	forestHits    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{subtrees: map[string]*model.CategoryTree{}}
}

func (c *fakeCache) GetForest(context.Context) (model.Forest, bool, error) {
	if c.forest == nil {
		return nil, false, nil
	}
	c.forestHits++
	return c.forest, true, nil
}

func (c *fakeCache) SetForest(_ context.Context, forest model.Forest) error {
	c.forest = forest
	return nil
}

func (c *fakeCache) GetSubtree(_ context.Context, code string) (*model.CategoryTree, bool, error) {
	t, ok := c.subtrees[code]
	return t, ok, nil
}

func (c *fakeCache) SetSubtree(_ context.Context, code string, tree *model.CategoryTree) error {
	c.subtrees[code] = tree
	return nil
}

func (c *fakeCache) Invalidate(context.Context) error {
	c.forest = nil
	c.subtrees = map[string]*model.CategoryTree{}
	c.invalidations++
	return nil
}

type fakePublisher struct {
	events []model.CategoryEvent
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, event model.CategoryEvent) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}
