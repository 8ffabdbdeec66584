// Package model 定义了商品分类领域的实体、层级编码规则与树的组装逻辑。
package model

import (
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxTitleLength 与 categories.title 列宽一致。
const MaxTitleLength = 100

// Category 是分类森林中的一个节点。
//
// 字段不对外暴露，只能通过 NewRoot / NewLeaf / Restore 构造，
// 每个状态迁移方法都返回新的值并重新校验不变式，原值保持不变。
type Category struct {
	id           uint
	title        string
	code         string
	depth        int
	siblingOrder int
	createdAt    time.Time
	updatedAt    time.Time
}

// CategoryState 是 Category 的完整快照，供存储层与序列化在两端转换使用。
type CategoryState struct {
	ID           uint
	Title        string
	Code         string
	Depth        int
	SiblingOrder int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewRoot 创建一个深度为 0 的根分类，code 即为单个 segment。
func NewRoot(title, segment string) (Category, error) {
	if err := Path.ValidateSegment(segment); err != nil {
		return Category{}, err
	}
	c := Category{title: strings.TrimSpace(title), code: Path.Join("", segment), depth: 0}
	return c.validated()
}

// NewLeaf 在 parent 之下创建子分类：code 为 parent.code + segment，深度加一，根继承自 parent。
func NewLeaf(parent Category, title, segment string) (Category, error) {
	if err := Path.ValidateSegment(segment); err != nil {
		return Category{}, err
	}
	c := Category{
		title: strings.TrimSpace(title),
		code:  Path.Join(parent.code, segment),
		depth: parent.depth + 1,
	}
	return c.validated()
}

// Restore 从已持久化的状态重建分类，同样执行完整校验。
func Restore(s CategoryState) (Category, error) {
	c := Category{
		id:           s.ID,
		title:        s.Title,
		code:         s.Code,
		depth:        s.Depth,
		siblingOrder: s.SiblingOrder,
		createdAt:    s.CreatedAt,
		updatedAt:    s.UpdatedAt,
	}
	return c.validated()
}

func (c Category) ID() uint             { return c.id }
func (c Category) Title() string        { return c.title }
func (c Category) Code() string         { return c.code }
func (c Category) Depth() int           { return c.depth }
func (c Category) SiblingOrder() int    { return c.siblingOrder }
func (c Category) CreatedAt() time.Time { return c.createdAt }
func (c Category) UpdatedAt() time.Time { return c.updatedAt }
func (c Category) ParentCode() string   { return Path.Parent(c.code) }
func (c Category) RootCode() string     { return Path.Root(c.code) }
func (c Category) Segment() string      { return Path.Segment(c.code) }
func (c Category) IsRoot() bool         { return c.depth == 0 }

// IsPersisted 表示该分类已分配存储主键。
func (c Category) IsPersisted() bool { return c.id > 0 }

// State 返回当前快照。
func (c Category) State() CategoryState {
	return CategoryState{
		ID:           c.id,
		Title:        c.title,
		Code:         c.code,
		Depth:        c.depth,
		SiblingOrder: c.siblingOrder,
		CreatedAt:    c.createdAt,
		UpdatedAt:    c.updatedAt,
	}
}

// Rename 只替换标题。
func (c Category) Rename(title string) (Category, error) {
	c.title = strings.TrimSpace(title)
	return c.validated()
}

// ChangeSegment 替换最后一层编码，保留父级前缀。
func (c Category) ChangeSegment(segment string) (Category, error) {
	if err := Path.ValidateSegment(segment); err != nil {
		return Category{}, err
	}
	c.code = Path.Join(c.ParentCode(), segment)
	return c.validated()
}

// Rebase 把 code 中等长的祖先前缀 oldPrefix 换成 newPrefix，深度不变。
func (c Category) Rebase(oldPrefix, newPrefix string) (Category, error) {
	if len(oldPrefix) != len(newPrefix) {
		return Category{}, Validationf("prefix %q and %q differ in length", oldPrefix, newPrefix)
	}
	code, err := Path.Replace(c.code, oldPrefix, newPrefix)
	if err != nil {
		return Category{}, err
	}
	c.code = code
	return c.validated()
}

// MoveTo 把分类挂到 parent 之下，parent 为 nil 时成为根。
// 自身 segment 保持不变，深度与根随新位置重新计算。
func (c Category) MoveTo(parent *Category) (Category, error) {
	if parent == nil {
		c.code = Path.Join("", c.Segment())
		c.depth = 0
		return c.validated()
	}
	if parent.code == c.code {
		return Category{}, Validationf("category %s cannot be its own parent", c.code)
	}
	if Path.Contains(c.code, parent.code) {
		return Category{}, Validationf("category %s cannot move under its descendant %s", c.code, parent.code)
	}
	c.code = Path.Join(parent.code, c.Segment())
	c.depth = parent.depth + 1
	return c.validated()
}

// Shift 在祖先移动后同步后代：前缀替换可以改变长度，深度随之调整。
func (c Category) Shift(oldPrefix, newPrefix string) (Category, error) {
	code, err := Path.Replace(c.code, oldPrefix, newPrefix)
	if err != nil {
		return Category{}, err
	}
	c.depth += Path.Depth(code) - Path.Depth(c.code)
	c.code = code
	return c.validated()
}

// WithOrder 设置兄弟节点间的显示顺序。
func (c Category) WithOrder(order int) (Category, error) {
	c.siblingOrder = order
	return c.validated()
}

func (c Category) validated() (Category, error) {
	if err := c.validate(); err != nil {
		return Category{}, err
	}
	return c, nil
}

func (c Category) validate() error {
	if c.title == "" {
		return Validationf("title must not be blank")
	}
	if utf8.RuneCountInString(c.title) > MaxTitleLength {
		return Validationf("title must be at most %d characters", MaxTitleLength)
	}
	if c.depth < 0 {
		return Validationf("depth must not be negative")
	}
	if c.siblingOrder < 0 {
		return Validationf("sibling order must not be negative")
	}
	if err := Path.ValidateCode(c.code); err != nil {
		return err
	}
	if want := Path.Depth(c.code); c.depth != want {
		return Validationf("depth %d does not match code %s (want %d)", c.depth, c.code, want)
	}
	return nil
}

type categoryJSON struct {
	ID           uint      `json:"id"`
	Title        string    `json:"title"`
	Code         string    `json:"code"`
	ParentCode   string    `json:"parentCode"`
	RootCode     string    `json:"rootCode"`
	Depth        int       `json:"depth"`
	SiblingOrder int       `json:"siblingOrder"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// MarshalJSON 输出包含派生字段（parentCode、rootCode）的视图。
func (c Category) MarshalJSON() ([]byte, error) {
	return json.Marshal(categoryJSON{
		ID:           c.id,
		Title:        c.title,
		Code:         c.code,
		ParentCode:   c.ParentCode(),
		RootCode:     c.RootCode(),
		Depth:        c.depth,
		SiblingOrder: c.siblingOrder,
		CreatedAt:    c.createdAt,
		UpdatedAt:    c.updatedAt,
	})
}

// UnmarshalJSON 经由 Restore 重建，缓存里的脏数据会被拒绝。
func (c *Category) UnmarshalJSON(data []byte) error {
	var v categoryJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	restored, err := Restore(CategoryState{
		ID:           v.ID,
		Title:        v.Title,
		Code:         v.Code,
		Depth:        v.Depth,
		SiblingOrder: v.SiblingOrder,
		CreatedAt:    v.CreatedAt,
		UpdatedAt:    v.UpdatedAt,
	})
	if err != nil {
		return err
	}
	*c = restored
	return nil
}
