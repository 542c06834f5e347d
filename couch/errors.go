package couch

import (
	"fmt"
	"io"
	"net/http"

	"github.com/tidwall/gjson"
)

// maxErrorBody bounds how much of an error response is inspected.
const maxErrorBody = 4 << 10

// StatusError is returned for non-2xx HTTP responses.
// Kind and Reason carry the server's {"error","reason"} body when present.
type StatusError struct {
	Code   int
	Kind   string
	Reason string
}

func (e *StatusError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("unexpected status %d: %s: %s", e.Code, e.Kind, e.Reason)
}

// Temporary reports whether the request may succeed if repeated.
func (e *StatusError) Temporary() bool {
	return e.Code >= 500 || e.Code == http.StatusTooManyRequests
}

func newStatusError(resp *http.Response) *StatusError {
	e := &StatusError{Code: resp.StatusCode}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || !gjson.ValidBytes(body) {
		return e
	}
	fields := gjson.GetManyBytes(body, "error", "reason")
	e.Kind = fields[0].String()
	e.Reason = fields[1].String()
	return e
}
