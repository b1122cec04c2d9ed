package ollama

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/greenorbit/climate-assistant/internal/core/domain"
)

type HTTPStatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "ollama status error"
	}
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("ollama %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("ollama %s status: %s: %s", e.Operation, e.Status, strings.TrimSpace(e.Body))
}

// wrapUpstream maps transport failures onto the domain error taxonomy so
// the orchestrator can tell transient outages from malformed output.
func wrapUpstream(operation string, err error) error {
	if err == nil {
		return nil
	}
	if domain.IsTransient(err) || domain.IsKind(err, domain.ErrUpstreamMalformed) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.WrapError(domain.ErrUpstreamTimeout, operation, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		if isUnavailableHTTPStatus(statusErr.StatusCode) {
			return domain.WrapError(domain.ErrUpstreamUnavailable, operation, err)
		}
		return domain.WrapError(domain.ErrUpstreamMalformed, operation, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return domain.WrapError(domain.ErrUpstreamTimeout, operation, err)
		}
		return domain.WrapError(domain.ErrUpstreamUnavailable, operation, err)
	}

	return domain.WrapError(domain.ErrUpstreamUnavailable, operation, err)
}

func isUnavailableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
