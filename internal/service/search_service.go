package service

import (
	"context"
	"strings"
	"time"

	"shop-catalog/internal/model"
	"shop-catalog/internal/repository"
	"shop-catalog/pkg/log"
)

const (
	defaultSearchLimit = 10
	maxSearchLimit     = 50
)

// TitleIndex 按标题检索分类，返回命中的 code。
type TitleIndex interface {
	SearchTitles(ctx context.Context, query string, limit int) ([]string, error)
}

// SnapshotLinker 为最新的森林快照签发下载链接。
type SnapshotLinker interface {
	PresignedURL(ctx context.Context, expiry time.Duration) (string, error)
}

// SearchService 接口定义了标题搜索与快照下载。
type SearchService interface {
	Search(ctx context.Context, query string, limit int) ([]model.Category, error)
	SnapshotURL(ctx context.Context) (string, error)
}

type searchService struct {
	index          TitleIndex
	snapshots      SnapshotLinker
	repo           repository.CategoryRepository
	snapshotExpiry time.Duration
}

// NewSearchService 创建一个新的 SearchService 实例。
func NewSearchService(index TitleIndex, snapshots SnapshotLinker, repo repository.CategoryRepository, snapshotExpiry time.Duration) SearchService {
	return &searchService{
		index:          index,
		snapshots:      snapshots,
		repo:           repo,
		snapshotExpiry: snapshotExpiry,
	}
}

// Search 先在索引中检索，再用数据库中的最新数据回填结果。
// 索引滞后导致已删除的分类会被跳过。
func (s *searchService) Search(ctx context.Context, query string, limit int) ([]model.Category, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, model.Validationf("search query must not be blank")
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	codes, err := s.index.SearchTitles(ctx, query, limit)
	if err != nil {
		log.Errorf("[SearchService] 标题搜索失败, query: '%s', error: %v", query, err)
		return nil, err
	}
	if len(codes) == 0 {
		return []model.Category{}, nil
	}

	found, err := s.repo.FindAllByCodes(ctx, codes)
	if err != nil {
		return nil, err
	}
	byCode := make(map[string]model.Category, len(found))
	for _, c := range found {
		byCode[c.Code()] = c
	}

	results := make([]model.Category, 0, len(codes))
	for _, code := range codes {
		if c, ok := byCode[code]; ok {
			results = append(results, c)
		}
	}
	log.Infof("[SearchService] 标题搜索完成, query: '%s', 命中: %d, 有效: %d", query, len(codes), len(results))
	return results, nil
}

// SnapshotURL 返回最新森林快照的临时下载链接。
func (s *searchService) SnapshotURL(ctx context.Context) (string, error) {
	return s.snapshots.PresignedURL(ctx, s.snapshotExpiry)
}
