// Package repository 包含了所有与数据库和缓存交互的逻辑。
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"shop-catalog/internal/model"
)

// CategoryRepository 是分类领域需要的全部存储操作，读取结果均为领域实体。
type CategoryRepository interface {
	FindByCode(ctx context.Context, code string) (model.Category, error)
	ExistsByCode(ctx context.Context, code string) (bool, error)
	FindAll(ctx context.Context) ([]model.Category, error)
	FindAllByCodes(ctx context.Context, codes []string) ([]model.Category, error)
	// FindAllByCodePrefix 返回 code 以 prefix 开头的全部分类（含 prefix 本身）。
	FindAllByCodePrefix(ctx context.Context, prefix string) ([]model.Category, error)
	// FindAllByParentCode 返回同一父级下的兄弟分组，parentCode 为空表示根分组。
	FindAllByParentCode(ctx context.Context, parentCode string) ([]model.Category, error)
	Save(ctx context.Context, c model.Category) (model.Category, error)
	// SaveAll 批量 upsert，不保证写入顺序与入参一致。
	SaveAll(ctx context.Context, cs []model.Category) error
	DeleteByCodePrefix(ctx context.Context, prefix string) (int64, error)
	DeleteAll(ctx context.Context) error
	// Transaction 在同一个数据库事务中执行 fn，fn 返回错误时整体回滚。
	Transaction(ctx context.Context, fn func(tx CategoryRepository) error) error
}

// categoryRecord 对应数据库中的 'categories' 表。
type categoryRecord struct {
	ID           uint      `gorm:"primaryKey"`
	Title        string    `gorm:"type:varchar(100);not null"`
	Code         string    `gorm:"type:varchar(191);not null;uniqueIndex"`
	ParentCode   *string   `gorm:"type:varchar(191);index"`
	RootCode     string    `gorm:"type:varchar(3);not null;index"`
	Depth        int       `gorm:"not null"`
	SiblingOrder int       `gorm:"not null;default:0"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (categoryRecord) TableName() string {
	return "categories"
}

func newCategoryRecord(c model.Category) categoryRecord {
	s := c.State()
	r := categoryRecord{
		ID:           s.ID,
		Title:        s.Title,
		Code:         s.Code,
		RootCode:     c.RootCode(),
		Depth:        s.Depth,
		SiblingOrder: s.SiblingOrder,
		CreatedAt:    s.CreatedAt,
	}
	if parent := c.ParentCode(); parent != "" {
		r.ParentCode = &parent
	}
	return r
}

func (r categoryRecord) toDomain() (model.Category, error) {
	c, err := model.Restore(model.CategoryState{
		ID:           r.ID,
		Title:        r.Title,
		Code:         r.Code,
		Depth:        r.Depth,
		SiblingOrder: r.SiblingOrder,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	})
	if err != nil {
		return model.Category{}, fmt.Errorf("corrupt category row id=%d: %w", r.ID, err)
	}
	return c, nil
}

func toDomainList(records []categoryRecord) ([]model.Category, error) {
	out := make([]model.Category, 0, len(records))
	for _, r := range records {
		c, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// updateColumns 是更新已有分类时覆盖的列，created_at 保持首次写入的值。
var updateColumns = []string{"title", "code", "parent_code", "root_code", "depth", "sibling_order", "updated_at"}

type categoryRepository struct {
	db *gorm.DB
}

// NewCategoryRepository 创建一个新的 CategoryRepository 实例。
func NewCategoryRepository(db *gorm.DB) CategoryRepository {
	return &categoryRepository{db: db}
}

// AutoMigrate 创建或更新 categories 表结构。
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&categoryRecord{})
}

// FindByCode 根据完整 code 查找分类。
func (r *categoryRepository) FindByCode(ctx context.Context, code string) (model.Category, error) {
	var rec categoryRecord
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Category{}, model.NotFoundf("category %s not found", code)
	}
	if err != nil {
		return model.Category{}, fmt.Errorf("find category by code: %w", err)
	}
	return rec.toDomain()
}

// ExistsByCode 判断 code 是否已被占用。
func (r *categoryRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&categoryRecord{}).Where("code = ?", code).Count(&count).Error; err != nil {
		return false, fmt.Errorf("count category by code: %w", err)
	}
	return count > 0, nil
}

// FindAll 一次性读取全部分类。
func (r *categoryRepository) FindAll(ctx context.Context) ([]model.Category, error) {
	var records []categoryRecord
	if err := r.db.WithContext(ctx).Order("code ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return toDomainList(records)
}

// FindAllByCodes 按一组 code 批量读取，不存在的 code 被忽略。
func (r *categoryRepository) FindAllByCodes(ctx context.Context, codes []string) ([]model.Category, error) {
	if len(codes) == 0 {
		return []model.Category{}, nil
	}
	var records []categoryRecord
	if err := r.db.WithContext(ctx).Where("code IN ?", codes).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list categories by codes: %w", err)
	}
	return toDomainList(records)
}

// FindAllByCodePrefix 用一次前缀匹配取出自身与全部后代。
func (r *categoryRepository) FindAllByCodePrefix(ctx context.Context, prefix string) ([]model.Category, error) {
	var records []categoryRecord
	err := r.db.WithContext(ctx).
		Where("code LIKE ?", prefix+"%").
		Order("code ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list categories by prefix: %w", err)
	}
	return toDomainList(records)
}

// FindAllByParentCode 读取一个兄弟分组。
func (r *categoryRepository) FindAllByParentCode(ctx context.Context, parentCode string) ([]model.Category, error) {
	q := r.db.WithContext(ctx)
	if parentCode == "" {
		q = q.Where("parent_code IS NULL")
	} else {
		q = q.Where("parent_code = ?", parentCode)
	}
	var records []categoryRecord
	if err := q.Order("sibling_order ASC, code ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list categories by parent: %w", err)
	}
	return toDomainList(records)
}

// Save 插入新分类或按主键更新已有分类。
func (r *categoryRepository) Save(ctx context.Context, c model.Category) (model.Category, error) {
	rec := newCategoryRecord(c)
	db := r.db.WithContext(ctx)
	var err error
	if c.IsPersisted() {
		err = db.Model(&categoryRecord{ID: rec.ID}).Select(updateColumns).Updates(&rec).Error
	} else {
		err = db.Create(&rec).Error
	}
	if err = translate(err); err != nil {
		return model.Category{}, err
	}
	return rec.toDomain()
}

// SaveAll 逐行按主键更新已有分类，再批量插入新分类。code 被占用时返回 ConflictError，不会改动占用者。
func (r *categoryRepository) SaveAll(ctx context.Context, cs []model.Category) error {
	var inserts []categoryRecord
	db := r.db.WithContext(ctx)
	for _, c := range cs {
		rec := newCategoryRecord(c)
		if !c.IsPersisted() {
			inserts = append(inserts, rec)
			continue
		}
		if err := translate(db.Model(&categoryRecord{ID: rec.ID}).Select(updateColumns).Updates(&rec).Error); err != nil {
			return err
		}
	}
	if len(inserts) > 0 {
		if err := translate(db.Create(&inserts).Error); err != nil {
			return err
		}
	}
	return nil
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return model.WrapConflict(err, "category code already exists")
	}
	return fmt.Errorf("save categories: %w", err)
}

// DeleteByCodePrefix 删除自身与全部后代，返回删除的行数。
func (r *categoryRepository) DeleteByCodePrefix(ctx context.Context, prefix string) (int64, error) {
	res := r.db.WithContext(ctx).Where("code LIKE ?", prefix+"%").Delete(&categoryRecord{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete categories by prefix: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// DeleteAll 清空分类表，仅用于示例数据重置。
func (r *categoryRepository) DeleteAll(ctx context.Context) error {
	if err := r.db.WithContext(ctx).Where("1 = 1").Delete(&categoryRecord{}).Error; err != nil {
		return fmt.Errorf("delete all categories: %w", err)
	}
	return nil
}

// Transaction 把 fn 包在 gorm 事务中。
func (r *categoryRepository) Transaction(ctx context.Context, fn func(tx CategoryRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&categoryRepository{db: tx})
	})
}
