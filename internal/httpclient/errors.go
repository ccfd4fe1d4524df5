package httpclient

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ErrDecode marks a response whose body could not be decoded into the result.
var ErrDecode = errors.New("httpclient: decode response")

// StatusError is returned for responses with status >= 400 when no custom
// error handler is installed.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       []byte
	// RetryAfter is parsed from the Retry-After header; zero if absent.
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	body := string(e.Body)
	if len(body) > 256 {
		body = body[:256] + "..."
	}
	return fmt.Sprintf("%s: http %d: %s", e.Provider, e.StatusCode, body)
}

// Temporary reports whether the status is worth retrying.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// AsStatusError extracts a *StatusError from err.
func AsStatusError(err error) (*StatusError, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// ParseRetryAfter reads a Retry-After header given in seconds or as an
// HTTP date.
func ParseRetryAfter(h http.Header, now time.Time) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil && t.After(now) {
		return t.Sub(now)
	}
	return 0
}

// RedactURL replaces the URL carried by a *url.Error in err with redacted.
// Op and the underlying error are kept, so timeouts and net errors are still
// detectable. Errors without a *url.Error are returned unchanged.
func RedactURL(err error, redacted string) error {
	var ue *url.Error
	if !errors.As(err, &ue) {
		return err
	}
	return &url.Error{Op: ue.Op, URL: redacted, Err: ue.Err}
}
