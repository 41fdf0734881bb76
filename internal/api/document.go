package api

import (
	"net/http"

	"ai-assistant-hub/backend/internal/service"
	"ai-assistant-hub/backend/pkg/errors"
	"ai-assistant-hub/backend/pkg/jwt"
	"ai-assistant-hub/backend/pkg/logger"
	"ai-assistant-hub/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// DocumentHandler handles knowledge base document upload and removal
type DocumentHandler struct {
	kb     *service.KBService
	stager *service.Stager
	logger *logger.Logger
}

func NewDocumentHandler(kb *service.KBService, stager *service.Stager, log *logger.Logger) *DocumentHandler {
	if log == nil {
		log = logger.GetGlobal()
	}
	return &DocumentHandler{kb: kb, stager: stager, logger: log}
}

// Upload stages a multipart file and registers it with the assistant's
// knowledge base, blocking until indexing settles.
func (h *DocumentHandler) Upload(c *gin.Context) {
	assistantID, err := pathID(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.Error(errors.NewBadRequestError(errors.CodeInvalidInput, "multipart field 'file' is required").WithDetails(err.Error()))
		return
	}

	mimeType := fileHeader.Header.Get("Content-Type")
	file, err := fileHeader.Open()
	if err != nil {
		c.Error(errors.NewInternalServerError(errors.CodeStorageFailure, "failed to read upload").WithDetails(err.Error()))
		return
	}
	defer file.Close()

	staged, err := h.stager.Stage(file, fileHeader.Filename, mimeType, fileHeader.Size)
	if err != nil {
		c.Error(err)
		return
	}

	document, err := h.kb.RegisterDocument(c.Request.Context(), assistantID, staged, c.PostForm("description"))
	if err != nil {
		if !errors.HasCode(err, errors.CodeIndexingFailed) {
			h.stager.Discard(staged)
		}
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, document)
}

func (h *DocumentHandler) List(c *gin.Context) {
	assistantID, err := pathID(c, "id")
	if err != nil {
		c.Error(err)
		return
	}
	documents, err := h.kb.ListDocuments(assistantID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": documents})
}

// Delete removes a document from an assistant's knowledge base. The
// owning assistant comes from the path so a mismatched pair is caught.
func (h *DocumentHandler) Delete(c *gin.Context) {
	assistantID, err := pathID(c, "id")
	if err != nil {
		c.Error(err)
		return
	}
	documentID, err := pathID(c, "docId")
	if err != nil {
		c.Error(err)
		return
	}
	if err := h.kb.DeregisterDocument(c.Request.Context(), assistantID, documentID); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RegisterRoutes mounts the document surface, operator-only
func (h *DocumentHandler) RegisterRoutes(rg *gin.RouterGroup, auth gin.HandlerFunc) {
	admin := middleware.RequireRole(jwt.RoleAdmin)
	documents := rg.Group("/assistants/:id/documents", auth, admin)
	documents.POST("", h.Upload)
	documents.GET("", h.List)
	documents.DELETE("/:docId", h.Delete)
}
