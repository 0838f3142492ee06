package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Presigner issues presigned upload URLs for attachment objects.
type Presigner interface {
	PresignUpload(ctx context.Context, filename string) (uploadURL, objectURL string, err error)
}

// AttachmentHandler hands out presigned upload URLs. Clients upload directly
// to object storage and reference the returned public URL on the message.
type AttachmentHandler struct {
	store Presigner
}

// NewAttachmentHandler builds an AttachmentHandler.
func NewAttachmentHandler(store Presigner) *AttachmentHandler {
	return &AttachmentHandler{store: store}
}

// Presign returns a short-lived upload URL for a new attachment object.
func (h *AttachmentHandler) Presign(c *gin.Context) {
	var req struct {
		Filename    string `json:"filename" binding:"required"`
		ContentType string `json:"content_type"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.ContainsAny(req.Filename, "/\\") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid filename"})
		return
	}

	uploadURL, objectURL, err := h.store.PresignUpload(c.Request.Context(), req.Filename)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "could not presign upload"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"upload_url":   uploadURL,
		"url":          objectURL,
		"filename":     req.Filename,
		"content_type": req.ContentType,
	})
}
