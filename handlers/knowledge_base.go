package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/serisow/lesocle-kb/kb_type"
)

type KnowledgeBase interface {
	Status(ctx context.Context) (*kb_type.Status, error)
	Clear(ctx context.Context) error
}

// KnowledgeBaseHandler serves the status and clear endpoints.
type KnowledgeBaseHandler struct {
	kb     KnowledgeBase
	logger *slog.Logger
}

func NewKnowledgeBaseHandler(kb KnowledgeBase, logger *slog.Logger) *KnowledgeBaseHandler {
	return &KnowledgeBaseHandler{
		kb:     kb,
		logger: logger,
	}
}

func (h *KnowledgeBaseHandler) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.kb.Status(r.Context())
	if err != nil {
		writePipelineError(w, h.logger, "Failed to read knowledge base status", err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *KnowledgeBaseHandler) Clear(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("Received knowledge base clear request")

	if err := h.kb.Clear(r.Context()); err != nil {
		writePipelineError(w, h.logger, "Failed to clear knowledge base", err)
		return
	}
	writeJSON(w, http.StatusOK, kb_type.MessageResponse{Message: "Knowledge base cleared successfully"})
}
