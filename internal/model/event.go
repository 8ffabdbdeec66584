package model

import (
	"time"

	"github.com/google/uuid"
)

// CategoryEventType 标识一次已提交的结构变更。
type CategoryEventType string

const (
	EventCreated   CategoryEventType = "created"
	EventUpdated   CategoryEventType = "updated"
	EventMoved     CategoryEventType = "moved"
	EventReordered CategoryEventType = "reordered"
	EventDeleted   CategoryEventType = "deleted"
	EventSeeded    CategoryEventType = "seeded"
)

// CategoryEvent 是发送到 Kafka 的分类变更消息。
// Code 为变更后的子树根；PreviousCode 在 code 发生变化（改段、移动）时记录旧的前缀。
type CategoryEvent struct {
	ID           string            `json:"id"`
	Type         CategoryEventType `json:"type"`
	Code         string            `json:"code"`
	PreviousCode string            `json:"previous_code,omitempty"`
	OccurredAt   time.Time         `json:"occurred_at"`
}

// NewCategoryEvent 生成带唯一 ID 的事件。
func NewCategoryEvent(t CategoryEventType, code, previousCode string) CategoryEvent {
	return CategoryEvent{
		ID:           uuid.NewString(),
		Type:         t,
		Code:         code,
		PreviousCode: previousCode,
		OccurredAt:   time.Now(),
	}
}

// AffectedPrefixes 返回需要重新同步的 code 前缀，去重后按出现顺序排列。
func (e CategoryEvent) AffectedPrefixes() []string {
	var out []string
	for _, p := range []string{e.PreviousCode, e.Code} {
		if p == "" {
			continue
		}
		dup := false
		for _, q := range out {
			if q == p {
				dup = true
			}
		}
		if !dup {
			out = append(out, p)
		}
	}
	return out
}
