package chat

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"tableflow/maitre/internal/knowledge"
	"tableflow/maitre/internal/maitre"
	"tableflow/maitre/pkg/logging"
)

// EntryEmbedder covers both the single-text and batched embedding paths the
// admin surface needs.
type EntryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// AdminHandler serves the knowledge management and trace review endpoints.
// These sit behind the same JWT middleware as chat but are meant for staff.
type AdminHandler struct {
	store    *knowledge.Store
	index    *knowledge.Index
	embedder EntryEmbedder
	traces   *TraceStore
	logger   logging.Logger
}

func NewAdminHandler(store *knowledge.Store, index *knowledge.Index, embedder EntryEmbedder, traces *TraceStore, logger logging.Logger) *AdminHandler {
	return &AdminHandler{
		store:    store,
		index:    index,
		embedder: embedder,
		traces:   traces,
		logger:   logger,
	}
}

type createEntryRequest struct {
	Title      string   `json:"title"`
	Section    string   `json:"section,omitempty"`
	Content    string   `json:"content"`
	Source     string   `json:"source,omitempty"`
	CategoryID string   `json:"categoryId,omitempty"`
	Questions  []string `json:"questions,omitempty"`
}

// HandleCreateEntry handles POST /api/knowledge: store the entry, embed the
// composite of title, question variants and content, and index the vector so
// it is searchable immediately. The question variants are never stored or
// shown; they only widen what the vector matches.
func (h *AdminHandler) HandleCreateEntry(c *gin.Context) {
	tenantID := maitre.GetTenantID(c.Request.Context())
	if tenantID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var req createEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Title == "" || req.Content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title and content are required"})
		return
	}

	ctx := c.Request.Context()
	id, err := h.store.Insert(ctx, knowledge.Entry{
		TenantID:   tenantID,
		CategoryID: req.CategoryID,
		Title:      req.Title,
		Section:    req.Section,
		Content:    req.Content,
		Source:     req.Source,
	})
	if err != nil {
		h.logger.WithError(err).Error("Failed to insert knowledge entry")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create entry"})
		return
	}

	embedding, err := h.embedder.EmbedQuery(ctx, knowledge.IndexingText(req.Title, req.Questions, req.Content))
	if err != nil {
		h.logger.WithError(err).WithField("entry_id", id).Error("Failed to embed knowledge entry")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "entry stored but not indexed"})
		return
	}
	if err := h.index.Upsert(ctx, knowledge.VectorRecord{
		EntryID:    id,
		TenantID:   tenantID,
		CategoryID: req.CategoryID,
		Active:     true,
		Embedding:  embedding,
	}); err != nil {
		h.logger.WithError(err).WithField("entry_id", id).Error("Failed to index knowledge entry")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "entry stored but not indexed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": id})
}

type bulkImportRequest struct {
	Entries []createEntryRequest `json:"entries"`
}

// HandleBulkImport handles POST /api/knowledge/bulk. Entries are stored
// first, then embedded in one batched pass and indexed together, so a large
// import costs a handful of embedding calls instead of one per entry.
func (h *AdminHandler) HandleBulkImport(c *gin.Context) {
	tenantID := maitre.GetTenantID(c.Request.Context())
	if tenantID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var req bulkImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if len(req.Entries) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "entries is required"})
		return
	}
	for i, entry := range req.Entries {
		if entry.Title == "" || entry.Content == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "title and content are required", "index": i})
			return
		}
	}

	ctx := c.Request.Context()
	ids := make([]string, 0, len(req.Entries))
	texts := make([]string, 0, len(req.Entries))
	for _, entry := range req.Entries {
		id, err := h.store.Insert(ctx, knowledge.Entry{
			TenantID:   tenantID,
			CategoryID: entry.CategoryID,
			Title:      entry.Title,
			Section:    entry.Section,
			Content:    entry.Content,
			Source:     entry.Source,
		})
		if err != nil {
			h.logger.WithError(err).Error("Failed to insert knowledge entry during bulk import")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "import failed", "imported": len(ids)})
			return
		}
		ids = append(ids, id)
		texts = append(texts, knowledge.IndexingText(entry.Title, entry.Questions, entry.Content))
	}

	vectors, err := h.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		h.logger.WithError(err).Error("Failed to embed bulk import")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "entries stored but not indexed"})
		return
	}

	records := make([]knowledge.VectorRecord, 0, len(ids))
	for i, id := range ids {
		records = append(records, knowledge.VectorRecord{
			EntryID:    id,
			TenantID:   tenantID,
			CategoryID: req.Entries[i].CategoryID,
			Active:     true,
			Embedding:  vectors[i],
		})
	}
	if err := h.index.UpsertBatch(ctx, records); err != nil {
		h.logger.WithError(err).Error("Failed to index bulk import")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "entries stored but not indexed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"ids": ids})
}

// HandleDeleteCategory handles DELETE /api/categories/:categoryId/knowledge:
// every entry in the category is deactivated and its vector dropped.
func (h *AdminHandler) HandleDeleteCategory(c *gin.Context) {
	tenantID := maitre.GetTenantID(c.Request.Context())
	if tenantID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	categoryID := c.Param("categoryId")
	if categoryID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "categoryId is required"})
		return
	}

	ctx := c.Request.Context()
	deactivated, err := h.store.DeactivateByCategory(ctx, tenantID, categoryID)
	if err != nil {
		h.logger.WithError(err).WithField("category_id", categoryID).Error("Failed to deactivate category")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete category"})
		return
	}
	if err := h.index.DeleteByCategory(ctx, tenantID, categoryID); err != nil {
		h.logger.WithError(err).WithField("category_id", categoryID).Error("Failed to remove category vectors")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "entries deactivated but vector removal failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"categoryId": categoryID, "deactivated": deactivated})
}

// HandleDeleteEntry handles DELETE /api/knowledge/:id. The entry is
// soft-deleted and its vector removed from the index.
func (h *AdminHandler) HandleDeleteEntry(c *gin.Context) {
	tenantID := maitre.GetTenantID(c.Request.Context())
	if tenantID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required"})
		return
	}

	ctx := c.Request.Context()
	if err := h.store.Deactivate(ctx, tenantID, id); err != nil {
		if errors.Is(err, knowledge.ErrEntryNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "entry not found"})
			return
		}
		h.logger.WithError(err).WithField("entry_id", id).Error("Failed to deactivate knowledge entry")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete entry"})
		return
	}
	if err := h.index.DeleteByIDs(ctx, tenantID, []string{id}); err != nil {
		h.logger.WithError(err).WithField("entry_id", id).Error("Failed to remove knowledge vector")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "entry deactivated but vector removal failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id, "deleted": true})
}

// HandleListEntries handles GET /api/knowledge?categoryId=&limit=N.
func (h *AdminHandler) HandleListEntries(c *gin.Context) {
	tenantID := maitre.GetTenantID(c.Request.Context())
	if tenantID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	entries, err := h.store.ListByCategory(c.Request.Context(), tenantID, c.Query("categoryId"), limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list knowledge entries")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list entries"})
		return
	}
	if entries == nil {
		entries = []knowledge.Entry{}
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// HandleListTraces handles GET /api/traces?limit=N.
func (h *AdminHandler) HandleListTraces(c *gin.Context) {
	tenantID := maitre.GetTenantID(c.Request.Context())
	if tenantID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	traces, err := h.traces.Recent(c.Request.Context(), tenantID, limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list query traces")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list traces"})
		return
	}
	if traces == nil {
		traces = []QueryTrace{}
	}
	c.JSON(http.StatusOK, gin.H{"traces": traces})
}

// RegisterRoutes mounts the chat and admin endpoints on an authenticated
// route group.
func RegisterRoutes(group *gin.RouterGroup, handler *Handler, admin *AdminHandler) {
	group.POST("/chat", handler.HandleChat)
	if admin != nil {
		group.POST("/knowledge", admin.HandleCreateEntry)
		group.POST("/knowledge/bulk", admin.HandleBulkImport)
		group.GET("/knowledge", admin.HandleListEntries)
		group.DELETE("/knowledge/:id", admin.HandleDeleteEntry)
		group.DELETE("/categories/:categoryId/knowledge", admin.HandleDeleteCategory)
		group.GET("/traces", admin.HandleListTraces)
	}
}
