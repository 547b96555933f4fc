package sdapi

import (
	"errors"
	"fmt"
	"strings"
)

// ErrBackendUnavailable matches every failure surfaced by Client.
var ErrBackendUnavailable = errors.New("backend unavailable")

// ErrNotConfigured is returned when a call is made before Configure.
var ErrNotConfigured = fmt.Errorf("%w: no endpoint configured", ErrBackendUnavailable)

const maxErrorBody = 512

// BackendError carries the diagnostics of a failed backend call.
type BackendError struct {
	Op     string
	Status int
	Body   string
	Err    error
}

func (e *BackendError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Status > 0 {
		fmt.Fprintf(&b, " returned status %d", e.Status)
		if e.Body != "" {
			fmt.Fprintf(&b, ": %s", e.Body)
		}
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrBackendUnavailable) match any BackendError.
func (e *BackendError) Is(target error) bool {
	return target == ErrBackendUnavailable
}

func trimBody(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody] + "…"
	}
	return text
}
