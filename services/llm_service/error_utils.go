package llm_service

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// OpenAIError is the error body returned by OpenAI and most compatible
// servers.
type OpenAIError struct {
	Error struct {
		Message string          `json:"message"`
		Type    string          `json:"type"`
		Code    json.RawMessage `json:"code"`
	} `json:"error"`
}

// detailError is the body FastAPI based servers such as Xinference return.
type detailError struct {
	Detail string `json:"detail"`
}

type OpenAIHttpError struct {
	StatusCode int
	Message    string
	ErrorType  string
	RawBody    string
}

func (e *OpenAIHttpError) Error() string {
	return fmt.Sprintf("OpenAI API error (HTTP %d): %s (Type: %s)", e.StatusCode, e.Message, e.ErrorType)
}

func newOpenAIHttpError(resp *http.Response) *OpenAIHttpError {
	rawBody, message, errorType := extractOpenAIErrorDetails(resp)
	return &OpenAIHttpError{
		StatusCode: resp.StatusCode,
		Message:    message,
		ErrorType:  errorType,
		RawBody:    rawBody,
	}
}

// extractOpenAIErrorDetails reads the body of a failed response and pulls out
// the message and error type, falling back to "Unknown error".
func extractOpenAIErrorDetails(resp *http.Response) (rawBody, message, errorType string) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "Unknown error", "unknown"
	}
	rawBody = string(body)

	var openAIErr OpenAIError
	if err := json.Unmarshal(body, &openAIErr); err == nil && openAIErr.Error.Message != "" {
		return rawBody, openAIErr.Error.Message, openAIErr.Error.Type
	}

	var detail detailError
	if err := json.Unmarshal(body, &detail); err == nil && detail.Detail != "" {
		return rawBody, detail.Detail, "unknown"
	}

	return rawBody, "Unknown error", "unknown"
}
