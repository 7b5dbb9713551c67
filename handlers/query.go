package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/serisow/lesocle-kb/kb_type"
)

type Answerer interface {
	Answer(ctx context.Context, query string, history []kb_type.ChatTurn) (*kb_type.QueryResponse, error)
}

type QueryHandler struct {
	answerer Answerer
	logger   *slog.Logger
}

func NewQueryHandler(answerer Answerer, logger *slog.Logger) *QueryHandler {
	return &QueryHandler{
		answerer: answerer,
		logger:   logger,
	}
}

// ServeHTTP answers 400 for a body that cannot be used as a query at all and
// 500 for any pipeline failure.
func (h *QueryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req kb_type.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("Failed to decode request body",
			slog.String("error", err.Error()))
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSONError(w, "query cannot be empty", http.StatusBadRequest)
		return
	}

	resp, err := h.answerer.Answer(r.Context(), req.Query, req.ChatHistory)
	if err != nil {
		writePipelineError(w, h.logger, "Failed to answer query", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
