package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type presignerStub struct {
	uploadURL string
	objectURL string
	err       error
	lastName  string
}

func (p *presignerStub) PresignUpload(_ context.Context, filename string) (string, string, error) {
	p.lastName = filename
	return p.uploadURL, p.objectURL, p.err
}

func setupAttachmentRouter(handler *AttachmentHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/attachments/presign", handler.Presign)
	return r
}

func TestPresignSuccess(t *testing.T) {
	store := &presignerStub{uploadURL: "https://minio/put", objectURL: "https://cdn/obj"}
	router := setupAttachmentRouter(NewAttachmentHandler(store))

	body := bytes.NewBufferString(`{"filename":"cv.pdf","content_type":"application/pdf"}`)
	req := httptest.NewRequest(http.MethodPost, "/attachments/presign", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cv.pdf", store.lastName)
	assert.Contains(t, rec.Body.String(), "https://minio/put")
	assert.Contains(t, rec.Body.String(), "https://cdn/obj")
}

func TestPresignRejectsPathSeparators(t *testing.T) {
	store := &presignerStub{}
	router := setupAttachmentRouter(NewAttachmentHandler(store))

	for _, filename := range []string{"../../etc/passwd", `a\b.pdf`} {
		payload, err := json.Marshal(map[string]string{"filename": filename})
		require.NoError(t, err)
		body := bytes.NewBuffer(payload)
		req := httptest.NewRequest(http.MethodPost, "/attachments/presign", body)
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code, "filename %q must be rejected", filename)
	}
	assert.Empty(t, store.lastName)
}

func TestPresignMissingFilename(t *testing.T) {
	router := setupAttachmentRouter(NewAttachmentHandler(&presignerStub{}))

	body := bytes.NewBufferString(`{}`)
	req := httptest.NewRequest(http.MethodPost, "/attachments/presign", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPresignStoreError(t *testing.T) {
	router := setupAttachmentRouter(NewAttachmentHandler(&presignerStub{err: assert.AnError}))

	body := bytes.NewBufferString(`{"filename":"cv.pdf"}`)
	req := httptest.NewRequest(http.MethodPost, "/attachments/presign", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadGateway, rec.Code)
}
