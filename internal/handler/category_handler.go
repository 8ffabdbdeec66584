// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"shop-catalog/internal/model"
	"shop-catalog/internal/service"
	"shop-catalog/pkg/log"
)

// CategoryHandler 负责处理所有与分类层级相关的 API 请求。
type CategoryHandler struct {
	categoryService service.CategoryService
	searchService   service.SearchService
}

// NewCategoryHandler 创建一个新的 CategoryHandler 实例。
func NewCategoryHandler(categoryService service.CategoryService, searchService service.SearchService) *CategoryHandler {
	return &CategoryHandler{categoryService: categoryService, searchService: searchService}
}

// RenameRequest 定义了修改标题的请求体。
type RenameRequest struct {
	Title string `json:"title" binding:"required"`
}

// ChangeSegmentRequest 定义了修改最后一层编码的请求体。
type ChangeSegmentRequest struct {
	Segment string `json:"segment" binding:"required"`
}

// MoveRequest 中 parentCode 为空表示移为根分类。
type MoveRequest struct {
	ParentCode string `json:"parentCode"`
}

// ReorderRequest 定义了调整兄弟顺序的请求体。
type ReorderRequest struct {
	Order *int `json:"order" binding:"required"`
}

// Create 处理新建分类请求。
func (h *CategoryHandler) Create(c *gin.Context) {
	var req service.CreateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "无效的请求负载：title 与 segment 不能为空", err)
		return
	}

	created, err := h.categoryService.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, "Create", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"code": http.StatusCreated, "message": "success", "data": created})
}

// List 在携带 code 参数时返回该分类的子树，否则返回整片森林。
func (h *CategoryHandler) List(c *gin.Context) {
	if code := c.Query("code"); code != "" {
		tree, err := h.categoryService.ListSubtree(c.Request.Context(), code)
		if err != nil {
			respondError(c, "ListSubtree", err)
			return
		}
		ok(c, tree)
		return
	}

	forest, err := h.categoryService.ListAll(c.Request.Context())
	if err != nil {
		respondError(c, "ListAll", err)
		return
	}
	ok(c, forest)
}

// Get 返回单个分类。
func (h *CategoryHandler) Get(c *gin.Context) {
	category, err := h.categoryService.Get(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, "Get", err)
		return
	}
	ok(c, category)
}

// Update 同时修改标题与编码段，空字段保持原值。
func (h *CategoryHandler) Update(c *gin.Context) {
	var req service.UpdateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "无效的请求负载", err)
		return
	}
	updated, err := h.categoryService.Update(c.Request.Context(), c.Param("code"), req)
	if err != nil {
		respondError(c, "Update", err)
		return
	}
	ok(c, updated)
}

func (h *CategoryHandler) Rename(c *gin.Context) {
	var req RenameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "无效的请求负载：title 不能为空", err)
		return
	}
	updated, err := h.categoryService.Rename(c.Request.Context(), c.Param("code"), req.Title)
	if err != nil {
		respondError(c, "Rename", err)
		return
	}
	ok(c, updated)
}

func (h *CategoryHandler) ChangeSegment(c *gin.Context) {
	var req ChangeSegmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "无效的请求负载：segment 不能为空", err)
		return
	}
	updated, err := h.categoryService.ChangeSegment(c.Request.Context(), c.Param("code"), req.Segment)
	if err != nil {
		respondError(c, "ChangeSegment", err)
		return
	}
	ok(c, updated)
}

// Move 把分类连同子树移动到新的父级下。
func (h *CategoryHandler) Move(c *gin.Context) {
	var req MoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "无效的请求负载", err)
		return
	}
	moved, err := h.categoryService.Move(c.Request.Context(), c.Param("code"), req.ParentCode)
	if err != nil {
		respondError(c, "Move", err)
		return
	}
	ok(c, moved)
}

func (h *CategoryHandler) Reorder(c *gin.Context) {
	var req ReorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "无效的请求负载：order 不能为空", err)
		return
	}
	reordered, err := h.categoryService.Reorder(c.Request.Context(), c.Param("code"), *req.Order)
	if err != nil {
		respondError(c, "Reorder", err)
		return
	}
	ok(c, reordered)
}

// Delete 级联删除分类及其全部后代。
func (h *CategoryHandler) Delete(c *gin.Context) {
	removed, err := h.categoryService.Delete(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, "Delete", err)
		return
	}
	ok(c, gin.H{"removed": removed})
}

// Search 按标题搜索分类。
func (h *CategoryHandler) Search(c *gin.Context) {
	query := c.Query("q")
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil {
		limit = 0
	}
	results, err := h.searchService.Search(c.Request.Context(), query, limit)
	if err != nil {
		respondError(c, "Search", err)
		return
	}
	ok(c, results)
}

// Snapshot 返回最新森林快照的下载链接。
func (h *CategoryHandler) Snapshot(c *gin.Context) {
	url, err := h.searchService.SnapshotURL(c.Request.Context())
	if err != nil {
		respondError(c, "Snapshot", err)
		return
	}
	ok(c, gin.H{"url": url})
}

// Seed 清空并写入演示数据。
func (h *CategoryHandler) Seed(c *gin.Context) {
	n, err := h.categoryService.SeedSample(c.Request.Context())
	if err != nil {
		respondError(c, "Seed", err)
		return
	}
	ok(c, gin.H{"count": n})
}

// Register 把分类路由挂到 rg 下。
func (h *CategoryHandler) Register(rg *gin.RouterGroup) {
	categories := rg.Group("/categories")
	{
		categories.POST("", h.Create)
		categories.GET("", h.List)
		categories.GET("/search", h.Search)
		categories.GET("/snapshot", h.Snapshot)
		categories.POST("/sample", h.Seed)
		categories.GET("/:code", h.Get)
		categories.PUT("/:code", h.Update)
		categories.DELETE("/:code", h.Delete)
		categories.PATCH("/:code/title", h.Rename)
		categories.PATCH("/:code/segment", h.ChangeSegment)
		categories.PATCH("/:code/parent", h.Move)
		categories.PATCH("/:code/order", h.Reorder)
	}
}

func ok(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": data})
}

func badRequest(c *gin.Context, message string, err error) {
	log.Warnf("[CategoryHandler] %s, error: %v", message, err)
	c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": message})
}

// respondError 把领域错误映射为 HTTP 状态码，其余错误一律 500 且不透出内部信息。
func respondError(c *gin.Context, action string, err error) {
	status := statusOf(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		log.Errorf("[CategoryHandler] %s 失败, error: %v", action, err)
		message = "服务器内部错误"
	} else {
		log.Warnf("[CategoryHandler] %s 被拒绝, error: %v", action, err)
	}
	c.JSON(status, gin.H{"code": status, "message": message})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
