package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Error is a non-2xx response. Payload is the server's body as received.
type Error struct {
	Status  int
	Payload json.RawMessage
	Detail  string
}

func (e *Error) Error() string {
	msg := e.Detail
	if msg == "" {
		msg = strings.TrimSpace(string(e.Payload))
	}
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("api: status %d: %s", e.Status, msg)
}

// PayloadText returns the raw error payload for showing to the user verbatim.
func (e *Error) PayloadText() string {
	return strings.TrimSpace(string(e.Payload))
}

// TransportError means no response was received.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("api: %s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func newError(resp *http.Response) *Error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	e := &Error{Status: resp.StatusCode}
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return e
	}
	if json.Valid([]byte(trimmed)) {
		e.Payload = json.RawMessage(trimmed)
		var detail struct {
			Detail string `json:"detail"`
			Error  string `json:"error"`
		}
		if err := json.Unmarshal(e.Payload, &detail); err == nil {
			e.Detail = detail.Detail
			if e.Detail == "" {
				e.Detail = detail.Error
			}
		}
		return e
	}
	quoted, _ := json.Marshal(trimmed)
	e.Payload = quoted
	e.Detail = trimmed
	return e
}

// Kind classifies a failure for callers deciding what to show.
type Kind int

const (
	KindNone Kind = iota
	KindTransport
	KindUnauthorized
	KindForbidden
	KindValidation
	KindServer
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindTransport:
		return "transport"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindValidation:
		return "validation"
	case KindServer:
		return "server"
	default:
		return "other"
	}
}

// KindOf maps err onto the failure taxonomy.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var te *TransportError
	if errors.As(err, &te) {
		return KindTransport
	}
	var ae *Error
	if !errors.As(err, &ae) {
		return KindOther
	}
	switch {
	case ae.Status == http.StatusUnauthorized:
		return KindUnauthorized
	case ae.Status == http.StatusForbidden:
		return KindForbidden
	case ae.Status >= 400 && ae.Status < 500:
		return KindValidation
	case ae.Status >= 500:
		return KindServer
	default:
		return KindOther
	}
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Status
	}
	return 0
}
