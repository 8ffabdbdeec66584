// Package pipeline 定义了分类变更提交后的异步同步流程。
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"shop-catalog/internal/model"
	"shop-catalog/internal/repository"
	"shop-catalog/pkg/log"
)

// SearchIndexer 是搜索索引需要支持的写操作。
type SearchIndexer interface {
	IndexCategories(ctx context.Context, categories []model.Category) error
	DeleteByCodePrefix(ctx context.Context, prefix string) error
	DeleteAll(ctx context.Context) error
}

// SnapshotWriter 保存整片森林的 JSON 快照。
type SnapshotWriter interface {
	PutSnapshot(ctx context.Context, data []byte) error
}

// Processor 封装了事件处理的所有依赖和逻辑。
type Processor struct {
	repo      repository.CategoryRepository
	cache     repository.CategoryCache
	indexer   SearchIndexer
	snapshots SnapshotWriter
}

// NewProcessor 创建一个新的 Processor 实例。indexer 或 snapshots 为 nil 时跳过对应步骤。
func NewProcessor(
	repo repository.CategoryRepository,
	cache repository.CategoryCache,
	indexer SearchIndexer,
	snapshots SnapshotWriter,
) *Processor {
	if cache == nil {
		cache = repository.NopCategoryCache{}
	}
	return &Processor{
		repo:      repo,
		cache:     cache,
		indexer:   indexer,
		snapshots: snapshots,
	}
}

// Process 是事件处理的主函数，任何一步失败都返回错误，由消费者决定是否重试。
func (p *Processor) Process(ctx context.Context, event model.CategoryEvent) error {
	log.Infof("[Processor] 开始处理分类事件, id: %s, type: %s, code: %s, previous: %s",
		event.ID, event.Type, event.Code, event.PreviousCode)

	// 1. 清理缓存，其他实例写入的缓存也一并失效
	if err := p.cache.Invalidate(ctx); err != nil {
		log.Warnf("[Processor] 清理分类缓存失败: %v", err)
	}

	// 2. 同步搜索索引
	if p.indexer != nil {
		if err := p.syncIndex(ctx, event.AffectedPrefixes()); err != nil {
			log.Errorf("[Processor] 同步搜索索引失败, id: %s, error: %v", event.ID, err)
			return err
		}
	}

	// 3. 导出森林快照
	if p.snapshots != nil {
		if err := p.exportSnapshot(ctx); err != nil {
			log.Errorf("[Processor] 导出分类快照失败, id: %s, error: %v", event.ID, err)
			return err
		}
	}

	log.Infof("[Processor] 分类事件处理完成, id: %s", event.ID)
	return nil
}

// syncIndex 对每个受影响前缀先删后写；没有前缀时做全量重建。
func (p *Processor) syncIndex(ctx context.Context, prefixes []string) error {
	if len(prefixes) == 0 {
		if err := p.indexer.DeleteAll(ctx); err != nil {
			return fmt.Errorf("清空分类索引失败: %w", err)
		}
		all, err := p.repo.FindAll(ctx)
		if err != nil {
			return err
		}
		log.Infof("[Processor] 全量重建分类索引, 共 %d 条", len(all))
		return p.indexer.IndexCategories(ctx, all)
	}

	for _, prefix := range prefixes {
		if err := p.indexer.DeleteByCodePrefix(ctx, prefix); err != nil {
			return fmt.Errorf("删除前缀 %s 的索引失败: %w", prefix, err)
		}
		nodes, err := p.repo.FindAllByCodePrefix(ctx, prefix)
		if err != nil {
			return err
		}
		if err := p.indexer.IndexCategories(ctx, nodes); err != nil {
			return fmt.Errorf("写入前缀 %s 的索引失败: %w", prefix, err)
		}
		log.Infof("[Processor] 前缀 %s 重新索引 %d 条", prefix, len(nodes))
	}
	return nil
}

func (p *Processor) exportSnapshot(ctx context.Context) error {
	all, err := p.repo.FindAll(ctx)
	if err != nil {
		return err
	}
	forest, err := model.BuildForest(all)
	if err != nil {
		return err
	}
	data, err := json.Marshal(forest)
	if err != nil {
		return fmt.Errorf("序列化分类快照失败: %w", err)
	}
	return p.snapshots.PutSnapshot(ctx, data)
}
