package proxy

import (
	"errors"

	"dqx0.com/go/proxylab/proxy/internal/http1"
)

var (
	ErrBadRequest     = errors.New("proxy: bad request")
	ErrNotImplemented = errors.New("proxy: method not implemented")
	ErrBadGateway     = errors.New("proxy: bad gateway")
	ErrLineTooLong    = http1.ErrLineTooLong
	ErrQueueFull      = errors.New("proxy: task queue full")
	ErrQueueClosed    = errors.New("proxy: task queue closed")
	ErrServerClosed   = errors.New("proxy: server closed")
)

// statusError is a task failure that has a client-visible response.
type statusError struct {
	kind   error
	status int
	short  string
	long   string
	cause  string
}

func (e *statusError) Error() string {
	return e.kind.Error() + ": " + e.long + ": " + e.cause
}

func (e *statusError) Unwrap() error { return e.kind }

func badRequest(cause, long string) *statusError {
	return &statusError{kind: ErrBadRequest, status: 400, short: "Bad Request", long: long, cause: cause}
}

func notImplemented(method string) *statusError {
	return &statusError{kind: ErrNotImplemented, status: 501, short: "Not Implemented", long: "Proxy does not implement this method", cause: method}
}

func badGateway(cause, long string) *statusError {
	return &statusError{kind: ErrBadGateway, status: 502, short: "Bad Gateway", long: long, cause: cause}
}
