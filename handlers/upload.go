package handlers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/serisow/lesocle-kb/kb_type"
	"github.com/serisow/lesocle-kb/services/rag_service"
)

type Ingester interface {
	Ingest(ctx context.Context, filename string, content io.Reader) (*kb_type.IngestResult, error)
}

// UploadHandler ingests one multipart upload. Ingestion gets at most
// ingestTimeout; past it the request fails with a 500 detail rather than
// outliving the server's write timeout.
type UploadHandler struct {
	ingester       Ingester
	maxUploadBytes int64
	ingestTimeout  time.Duration
	logger         *slog.Logger
}

// NewUploadHandler builds the handler. A zero ingestTimeout leaves ingestion
// bounded only by the request context.
func NewUploadHandler(ingester Ingester, maxUploadBytes int64, ingestTimeout time.Duration, logger *slog.Logger) *UploadHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 32 << 20
	}
	return &UploadHandler{
		ingester:       ingester,
		maxUploadBytes: maxUploadBytes,
		ingestTimeout:  ingestTimeout,
		logger:         logger,
	}
}

func (h *UploadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("Received file upload request")

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		writeJSONError(w, "Failed to parse multipart form", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSONError(w, "Failed to get file from form", http.StatusBadRequest)
		return
	}
	defer file.Close()

	h.logger.Debug("Upload received",
		slog.String("filename", header.Filename),
		slog.String("content_type", header.Header.Get("Content-Type")),
		slog.Int64("size", header.Size))

	if !rag_service.SupportedExtension(header.Filename) {
		h.logger.Error("Unsupported file type", slog.String("filename", header.Filename))
		writeJSONError(w, "Unsupported file type", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if h.ingestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.ingestTimeout)
		defer cancel()
	}

	result, err := h.ingester.Ingest(ctx, header.Filename, file)
	if err != nil {
		writePipelineError(w, h.logger, "Failed to process upload", err)
		return
	}

	h.logger.Info("Upload indexed",
		slog.String("filename", result.Filename),
		slog.Int("chunks", result.ChunkCount))

	writeJSON(w, http.StatusOK, kb_type.MessageResponse{
		Message: fmt.Sprintf("File %s uploaded and processed successfully", result.Filename),
	})
}
