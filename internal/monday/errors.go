package monday

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrRateLimited is matched by errors.Is for throttling and complexity failures.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrUnauthorized is matched by errors.Is for rejected credentials.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrMissingToken is returned before any request when no token is configured.
	ErrMissingToken = errors.New("monday: api token is not configured")
)

// APIError is a failed GraphQL call, either at the HTTP level or reported in
// the response's errors list.
type APIError struct {
	Op         string
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	var b strings.Builder
	b.WriteString("monday: ")
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Code != "" {
		b.WriteString(e.Code)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.StatusCode != 0 && e.StatusCode != http.StatusOK {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	// Name the class so callers holding only the text can classify it.
	switch {
	case e.Is(ErrUnauthorized):
		fmt.Fprintf(&b, " [%s]", ErrUnauthorized)
	case e.Is(ErrRateLimited):
		fmt.Fprintf(&b, " [%s]", ErrRateLimited)
	}
	return b.String()
}

// Is maps status codes and API error codes onto the package sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrRateLimited:
		return e.StatusCode == http.StatusTooManyRequests ||
			e.Code == "ComplexityException" ||
			e.Code == "RATE_LIMIT_EXCEEDED" ||
			e.Code == "maxComplexityExceeded"
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized ||
			e.StatusCode == http.StatusForbidden ||
			e.Code == "UserUnauthorizedException"
	}
	return false
}
