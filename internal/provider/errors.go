package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
)

// ErrAborted is reported when a chat is cancelled before it completes.
var ErrAborted = errors.New("aborted")

// StatusError is a transport failure that carries an HTTP status code.
type StatusError struct {
	Code int
	Err  error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %v", e.Code, e.Err)
}

func (e *StatusError) Unwrap() error { return e.Err }

// Backends format HTTP failures differently:
//
//	error, status code: 401, status: 401 Unauthorized, message: ...
//	POST "https://api.anthropic.com/v1/messages": 529 Overloaded ...
var statusPatterns = []*regexp.Regexp{
	regexp.MustCompile(`status code:? (\d{3})`),
	regexp.MustCompile(`": (\d{3}) [A-Z]`),
}

// StatusCode extracts the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	if err == nil {
		return 0
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	var coder interface{ StatusCode() int }
	if errors.As(err, &coder) {
		return coder.StatusCode()
	}
	msg := err.Error()
	for _, re := range statusPatterns {
		if m := re.FindStringSubmatch(msg); m != nil {
			code, _ := strconv.Atoi(m[1])
			return code
		}
	}
	return 0
}

// IsAbortError reports whether err came from a cancelled request.
func IsAbortError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrAborted) || errors.Is(err, context.Canceled) {
		return true
	}
	// errors that crossed a process boundary only keep their text
	msg := err.Error()
	return msg == "aborted" || msg == "socket hang up"
}

// IsNetworkError reports whether err is a connectivity failure rather than a
// response from the server.
func IsNetworkError(err error) bool {
	if err == nil || IsAbortError(err) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "network is unreachable") ||
		strings.Contains(msg, "ECONNREFUSED")
}

// IsAuthStatus reports whether status is a client error that calls for
// re-authentication.
func IsAuthStatus(status int) bool {
	return status >= 400 && status <= 410
}

func retryable(status int) bool {
	return status == 429 || status >= 500
}
