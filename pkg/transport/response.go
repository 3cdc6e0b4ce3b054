package transport

import (
	"net/http"
	"time"

	json "github.com/goccy/go-json"

	"github.com/scrapetoapi/scrapetoapi/pkg/domain/errors"
)

// ErrorResponse is the body of every error answer.
type ErrorResponse struct {
	Detail    string  `json:"detail"`
	Code      string  `json:"code"`
	Status    int     `json:"status"`
	Timestamp float64 `json:"timestamp"`
}

func (t *HTTPTransport) sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(data); err != nil {
		t.logger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// sendError maps err's code to a status and writes the error body.
func (t *HTTPTransport) sendError(w http.ResponseWriter, err error) {
	code := errors.CodeOf(err)
	if code == errors.CodeUnknown {
		code = errors.CodeInternalError
	}
	status := code.HTTPStatus()
	if status >= http.StatusInternalServerError {
		t.logger.Error().Err(err).Msg("Request failed")
	}

	t.sendJSON(w, status, ErrorResponse{
		Detail:    errors.DetailOf(err),
		Code:      string(code),
		Status:    status,
		Timestamp: epochSeconds(time.Now()),
	})
}

func epochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
