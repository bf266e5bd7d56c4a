package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/pagewatch/pagewatch/internal/metrics"
)

// ErrTimeout is returned when the request deadline expires, whether
// during an attempt or while waiting to retry.
var ErrTimeout = errors.New("request timed out")

// StatusError reports a response outside the 2xx range.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("HTTP error! status: %s", e.Status)
	}
	return fmt.Sprintf("HTTP error! status: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// IsTimeout reports whether err is a timeout-class error.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// TimeoutMessage is the user-facing text for a timeout; the test actions
// include the configured deadline.
func TimeoutMessage(ms int) string {
	return fmt.Sprintf("%s (%dms)", ErrTimeout.Error(), ms)
}

func classify(err error) string {
	var se *StatusError
	switch {
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return metrics.ClassTimeout
	case errors.As(err, &se):
		return metrics.ClassStatus
	default:
		return metrics.ClassNetwork
	}
}
