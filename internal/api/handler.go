package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"novelhub/internal/novel"
	"novelhub/internal/progress"
	"novelhub/internal/queue"
	"novelhub/internal/store"
	"novelhub/pkg/utils"
)

type Handler struct {
	Service *novel.Service
	Store   *store.Store
	Queue   *queue.Queue
	Hub     *progress.Hub
}

func NewHandler(svc *novel.Service, st *store.Store, q *queue.Queue, hub *progress.Hub) *Handler {
	return &Handler{Service: svc, Store: st, Queue: q, Hub: hub}
}

func (h *Handler) RegisterRoutes(r *gin.Engine, cfg utils.APIConfig) {
	r.GET("/health", h.health)
	r.GET("/ready", h.ready)

	r.GET("/search", h.search)
	r.GET("/chapters", h.chapters)
	r.GET("/chapter-content", h.chapterContent)
	r.GET("/ws/progress", progress.WSHandler(h.Hub))

	auth := r.Group("/", TokenAuth(cfg))
	auth.POST("/chapters/insert", h.insertChapter)
	auth.PUT("/chapters/content", h.updateChapterContent)
	auth.DELETE("/chapters", h.deleteChapter)

	cache := auth.Group("/api/cache")
	cache.POST("/create", h.cacheCreate)
	cache.GET("/status", h.cacheStatus)
	cache.POST("/app-active", h.appActive)
	cache.DELETE("/novel", h.cacheClear)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) ready(c *gin.Context) {
	state, pending := h.Queue.State()
	c.JSON(http.StatusOK, gin.H{
		"status":        "ready",
		"queue_state":   state,
		"queue_pending": pending,
		"observers":     h.Hub.Stats(),
	})
}

// GET /search?keyword=
func (h *Handler) search(c *gin.Context) {
	keyword := strings.TrimSpace(c.Query("keyword"))
	if keyword == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "keyword is required"})
		return
	}
	novels, err := h.Service.Search(c.Request.Context(), keyword)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"keyword": keyword, "results": novels})
}

// GET /chapters?url=&force_refresh=
func (h *Handler) chapters(c *gin.Context) {
	novelURL := strings.TrimSpace(c.Query("url"))
	if novelURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}
	force := c.Query("force_refresh") == "true"

	chapters, err := h.Service.ListChapters(c.Request.Context(), novelURL, force)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "chapter list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"novel_url": novelURL, "chapters": chapters})
}

// GET /chapter-content?url=&force_refresh=
func (h *Handler) chapterContent(c *gin.Context) {
	chapterURL := strings.TrimSpace(c.Query("url"))
	if chapterURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}
	force := c.Query("force_refresh") == "true"

	cc, err := h.Service.GetContent(c.Request.Context(), chapterURL, force)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "content fetch failed"})
		return
	}
	c.JSON(http.StatusOK, cc)
}

type insertChapterReq struct {
	NovelURL string `json:"novel_url" binding:"required"`
	Title    string `json:"title" binding:"required"`
	Content  string `json:"content"`
	Index    int    `json:"index"`
}

// POST /chapters/insert
func (h *Handler) insertChapter(c *gin.Context) {
	var req insertChapterReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	ch, err := h.Store.InsertUserChapter(c.Request.Context(), req.NovelURL, req.Title, req.Content, req.Index)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "insert failed"})
		return
	}
	c.JSON(http.StatusCreated, ch)
}

type updateContentReq struct {
	ChapterURL string `json:"chapter_url" binding:"required"`
	Content    string `json:"content" binding:"required"`
}

// PUT /chapters/content
func (h *Handler) updateChapterContent(c *gin.Context) {
	var req updateContentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	if err := h.Store.UpdateUserChapterContent(c.Request.Context(), req.ChapterURL, req.Content); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

// DELETE /chapters?url=
func (h *Handler) deleteChapter(c *gin.Context) {
	chapterURL := strings.TrimSpace(c.Query("url"))
	if chapterURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}
	if err := h.Store.DeleteUserChapter(c.Request.Context(), chapterURL); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// POST /api/cache/create?novel_url=&title=
func (h *Handler) cacheCreate(c *gin.Context) {
	novelURL := strings.TrimSpace(c.Query("novel_url"))
	if novelURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "novel_url is required"})
		return
	}
	taskID, created := h.Queue.Enqueue(novelURL, c.Query("title"))
	status := "queued"
	if !created {
		status = "already_queued"
	}
	c.JSON(http.StatusAccepted, gin.H{"task_id": taskID, "status": status})
}

// GET /api/cache/status?novel_url=
func (h *Handler) cacheStatus(c *gin.Context) {
	novelURL := strings.TrimSpace(c.Query("novel_url"))
	if novelURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "novel_url is required"})
		return
	}
	cached, total, err := h.Store.CacheCounts(c.Request.Context(), novelURL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "status failed"})
		return
	}
	state, _ := h.Queue.State()
	c.JSON(http.StatusOK, gin.H{
		"novel_url":       novelURL,
		"cached_chapters": cached,
		"total_chapters":  total,
		"queue_state":     state,
	})
}

type appActiveReq struct {
	Active *bool `json:"active" binding:"required"`
}

// POST /api/cache/app-active
func (h *Handler) appActive(c *gin.Context) {
	var req appActiveReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	h.Queue.SetAppActive(*req.Active)
	c.JSON(http.StatusOK, gin.H{"app_active": *req.Active})
}

// DELETE /api/cache/novel?novel_url=
func (h *Handler) cacheClear(c *gin.Context) {
	novelURL := strings.TrimSpace(c.Query("novel_url"))
	if novelURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "novel_url is required"})
		return
	}
	if err := h.Store.ClearNovelCache(c.Request.Context(), novelURL); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "clear failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}
