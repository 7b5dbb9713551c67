package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/serisow/lesocle-kb/kb_type"
	"github.com/serisow/lesocle-kb/services/rag_service"
)

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, statusCode, kb_type.ErrorResponse{Detail: message})
}

// statusFor maps a pipeline error to its HTTP status. Only an unsupported
// upload is the client's fault; everything else is a server error.
func statusFor(err error) int {
	if errors.Is(err, rag_service.ErrUnsupportedFormat) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writePipelineError(w http.ResponseWriter, logger *slog.Logger, msg string, err error) {
	status := statusFor(err)
	logger.Error(msg,
		slog.Int("status", status),
		slog.String("error", err.Error()))
	writeJSONError(w, err.Error(), status)
}
