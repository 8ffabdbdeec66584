package es

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"shop-catalog/internal/model"
	"shop-catalog/pkg/log"
)

// CategoryDocument 是写入索引的分类文档，文档 ID 即 code。
type CategoryDocument struct {
	Code         string `json:"code"`
	ParentCode   string `json:"parent_code,omitempty"`
	RootCode     string `json:"root_code"`
	Title        string `json:"title"`
	Depth        int    `json:"depth"`
	SiblingOrder int    `json:"sibling_order"`
}

// NewCategoryDocument 把领域实体转换成索引文档。
func NewCategoryDocument(c model.Category) CategoryDocument {
	return CategoryDocument{
		Code:         c.Code(),
		ParentCode:   c.ParentCode(),
		RootCode:     c.RootCode(),
		Title:        c.Title(),
		Depth:        c.Depth(),
		SiblingOrder: c.SiblingOrder(),
	}
}

// CategoryIndex 封装分类索引的写入、按前缀删除与标题搜索。
type CategoryIndex struct {
	client *elasticsearch.Client
	index  string
}

// NewCategoryIndex 创建一个新的 CategoryIndex 实例。
func NewCategoryIndex(client *elasticsearch.Client, index string) *CategoryIndex {
	return &CategoryIndex{client: client, index: index}
}

// IndexCategories 用一次 bulk 请求写入（或覆盖）一组分类。
func (i *CategoryIndex) IndexCategories(ctx context.Context, categories []model.Category) error {
	if len(categories) == 0 {
		return nil
	}
	body, err := buildBulkBody(i.index, categories)
	if err != nil {
		return err
	}

	req := esapi.BulkRequest{
		Body:    body,
		Refresh: "true",
	}
	res, err := req.Do(ctx, i.client)
	if err != nil {
		return fmt.Errorf("bulk index categories: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		log.Errorf("批量索引分类到 Elasticsearch 出错: %s", res.String())
		return fmt.Errorf("bulk index categories: %s", res.Status())
	}

	var result struct {
		Errors bool `json:"errors"`
	}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode bulk response: %w", err)
	}
	if result.Errors {
		return fmt.Errorf("bulk index categories: some items failed")
	}
	return nil
}

// DeleteByCodePrefix 删除 code 以 prefix 开头的全部文档。
func (i *CategoryIndex) DeleteByCodePrefix(ctx context.Context, prefix string) error {
	query := map[string]interface{}{
		"query": map[string]interface{}{
			"prefix": map[string]interface{}{"code": prefix},
		},
	}
	return i.deleteByQuery(ctx, query)
}

// DeleteAll 清空索引中的全部文档。
func (i *CategoryIndex) DeleteAll(ctx context.Context) error {
	query := map[string]interface{}{
		"query": map[string]interface{}{"match_all": map[string]interface{}{}},
	}
	return i.deleteByQuery(ctx, query)
}

func (i *CategoryIndex) deleteByQuery(ctx context.Context, query map[string]interface{}) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(query); err != nil {
		return fmt.Errorf("failed to encode es query: %w", err)
	}
	refresh := true
	req := esapi.DeleteByQueryRequest{
		Index:     []string{i.index},
		Body:      &buf,
		Refresh:   &refresh,
		Conflicts: "proceed",
	}
	res, err := req.Do(ctx, i.client)
	if err != nil {
		return fmt.Errorf("delete categories from index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		log.Errorf("从 Elasticsearch 删除分类出错: %s", res.String())
		return fmt.Errorf("delete categories from index: %s", res.Status())
	}
	return nil
}

// SearchTitles 按标题搜索，返回命中文档的 code，按相关度排序。
func (i *CategoryIndex) SearchTitles(ctx context.Context, query string, limit int) ([]string, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(buildSearchQuery(query, limit)); err != nil {
		return nil, fmt.Errorf("failed to encode es query: %w", err)
	}

	res, err := i.client.Search(
		i.client.Search.WithContext(ctx),
		i.client.Search.WithIndex(i.index),
		i.client.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch search failed: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		log.Errorf("[CategoryIndex] Elasticsearch 返回错误, status: %s, body: %s", res.Status(), string(bodyBytes))
		return nil, fmt.Errorf("elasticsearch returned an error: %s", res.Status())
	}

	var esResponse struct {
		Hits struct {
			Hits []struct {
				Source CategoryDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		return nil, fmt.Errorf("failed to decode es response: %w", err)
	}

	codes := make([]string, 0, len(esResponse.Hits.Hits))
	for _, hit := range esResponse.Hits.Hits {
		codes = append(codes, hit.Source.Code)
	}
	return codes, nil
}

// buildSearchQuery 同时匹配分词后的标题与标题前缀，前缀命中的权重更低。
func buildSearchQuery(query string, limit int) map[string]interface{} {
	return map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"should": []map[string]interface{}{
					{"match": map[string]interface{}{
						"title": map[string]interface{}{"query": query, "operator": "and"},
					}},
					{"prefix": map[string]interface{}{
						"title.keyword": map[string]interface{}{"value": query, "boost": 0.5},
					}},
				},
				"minimum_should_match": 1,
			},
		},
		"size": limit,
	}
}

// buildBulkBody 生成 bulk API 需要的 NDJSON 请求体。
func buildBulkBody(index string, categories []model.Category) (io.Reader, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, c := range categories {
		meta := map[string]interface{}{
			"index": map[string]interface{}{"_index": index, "_id": c.Code()},
		}
		if err := enc.Encode(meta); err != nil {
			return nil, err
		}
		if err := enc.Encode(NewCategoryDocument(c)); err != nil {
			return nil, err
		}
	}
	return &buf, nil
}
