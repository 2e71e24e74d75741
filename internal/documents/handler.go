package documents

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"filefolio-backend/internal/shared/server/respond"
)

const maxUploadSize = 50 << 20 // 50MB

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches document routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/documents", h.upload)
	rg.GET("/documents", h.list)
	rg.GET("/documents/filters", h.filters)
	rg.GET("/documents/:id", h.get)
	rg.GET("/documents/:id/file", h.file)
	rg.GET("/documents/:id/download", h.download)
	rg.PUT("/documents/:id", h.update)
	rg.DELETE("/documents/:id", h.remove)
	rg.POST("/documents/archive", h.archive)
}

// RegisterThumbnailRoutes attaches the thumbnail route.
func (h *Handler) RegisterThumbnailRoutes(rg *gin.RouterGroup) {
	rg.GET("/thumbnails/:name", h.thumbnail)
}

func (h *Handler) upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "file is required", nil)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	defer file.Close()

	doc, err := h.Svc.Ingest(c.Request.Context(), fileHeader.Filename, file)
	if err != nil {
		var dup *DuplicateError
		switch {
		case errors.As(err, &dup):
			respond.Error(c, http.StatusConflict, "duplicate_document", err.Error(), gin.H{
				"originalName": dup.OriginalName,
				"uploadedAt":   dup.UploadedAt,
			})
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to ingest document", nil)
		}
		return
	}

	respond.JSON(c, http.StatusCreated, toIngestResponse(doc))
}

func (h *Handler) list(c *gin.Context) {
	q := SearchQuery{
		Text:     c.Query("search"),
		Category: c.Query("category"),
		Tags:     ParseTagList(c.Query("tags")),
	}

	var err error
	if q.From, err = parseDate(c.Query("from"), false); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid from date", nil)
		return
	}
	if q.To, err = parseDate(c.Query("to"), true); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid to date", nil)
		return
	}

	docs, err := h.Svc.Search(c.Request.Context(), q)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to search documents", nil)
		return
	}
	respond.OK(c, toResponses(docs))
}

func (h *Handler) filters(c *gin.Context) {
	filters, err := h.Svc.Filters(c.Request.Context())
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list filters", nil)
		return
	}
	respond.OK(c, filters)
}

func (h *Handler) get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	doc, err := h.Svc.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "document not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch document", nil)
		return
	}
	respond.OK(c, toResponse(doc))
}

func (h *Handler) file(c *gin.Context) {
	h.streamPDF(c, "inline")
}

func (h *Handler) download(c *gin.Context) {
	h.streamPDF(c, "attachment")
}

func (h *Handler) streamPDF(c *gin.Context, disposition string) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	rc, doc, err := h.Svc.Open(c.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "document not found", nil)
		case errors.Is(err, ErrFileMissing):
			respond.Error(c, http.StatusNotFound, "file_missing", "document file missing from storage", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to open document", nil)
		}
		return
	}
	defer rc.Close()

	c.Header("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, doc.OriginalName))
	c.Header("Content-Type", pdfContentType)
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	if _, err := io.Copy(c.Writer, rc); err != nil {
		// Headers are already out; the broken stream is all we can report.
		c.Abort()
	}
}

func (h *Handler) update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	doc, err := h.Svc.Update(c.Request.Context(), id, Update{
		DisplayName: req.DisplayName,
		Tags:        req.Tags,
		Category:    req.Category,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "document not found", nil)
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to update document", nil)
		}
		return
	}
	respond.OK(c, toResponse(doc))
}

func (h *Handler) remove(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.Svc.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "document not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to delete document", nil)
		return
	}
	respond.OK(c, gin.H{"deleted": id})
}

type archiveRequest struct {
	IDs []int64 `json:"ids"`
}

func (h *Handler) archive(c *gin.Context) {
	var req archiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	if len(req.IDs) == 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "ids is required", nil)
		return
	}

	c.Header("Content-Type", "application/zip")
	c.Header("Content-Disposition", `attachment; filename="documents.zip"`)
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	if _, err := h.Svc.Archive(c.Request.Context(), req.IDs, c.Writer); err != nil {
		c.Abort()
	}
}

func (h *Handler) thumbnail(c *gin.Context) {
	rc, err := h.Svc.OpenThumbnail(c.Request.Context(), c.Param("name"))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "thumbnail not found", nil)
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", "invalid thumbnail name", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to open thumbnail", nil)
		}
		return
	}
	defer rc.Close()

	c.Header("Content-Type", "image/jpeg")
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	if _, err := io.Copy(c.Writer, rc); err != nil {
		c.Abort()
	}
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid document id", nil)
		return 0, false
	}
	return id, true
}

// parseDate accepts RFC 3339 timestamps and plain dates. A plain date used as
// an upper bound covers the whole day, so from=2025-01-01&to=2025-01-01
// matches everything created on that date.
func parseDate(raw string, upper bool) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, err
	}
	if upper {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}
