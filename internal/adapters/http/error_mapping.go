package httpadapter

import (
	"net/http"

	"github.com/greenorbit/climate-assistant/internal/core/domain"
)

func writeError(w http.ResponseWriter, err error) {
	status := mapErrorToHTTPStatus(err)
	message := err.Error()
	if status >= http.StatusInternalServerError {
		// Internal detail stays in the logs.
		message = http.StatusText(status)
	}
	writeJSON(w, status, map[string]string{"error": message})
}

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrDocumentNotFound):
		return http.StatusNotFound
	case domain.IsTransient(err):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrUpstreamMalformed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
