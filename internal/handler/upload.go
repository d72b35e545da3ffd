package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/fineahban/marketplace/internal/imagestore"
)

// ImagePresigner hands out direct-to-storage upload targets.
type ImagePresigner interface {
	PresignUpload(ctx context.Context) (*imagestore.Upload, error)
}

type UploadHandler struct {
	images ImagePresigner
	logger *slog.Logger
}

func NewUploadHandler(images ImagePresigner, logger *slog.Logger) *UploadHandler {
	return &UploadHandler{images: images, logger: logger}
}

// HandleImageUploadURL returns {"key": ..., "url": ...}. The client PUTs the
// image to url and sends key as the post's image.
//
// HTTP: POST /api/posts/image-upload-url
func (h *UploadHandler) HandleImageUploadURL(w http.ResponseWriter, r *http.Request) {
	up, err := h.images.PresignUpload(r.Context())
	if err != nil {
		h.logger.Error("presigning image upload failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, up)
}
