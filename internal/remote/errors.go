package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrMissingAPIKey means the deployment has no credentials for the remote
// service. It is a configuration failure, not a transient one.
var ErrMissingAPIKey = errors.New("remote: API key is not configured")

type ErrorKind string

const (
	KindConnection ErrorKind = "connection"
	KindTimeout    ErrorKind = "timeout"
	KindStatus     ErrorKind = "status"
	KindUpstream   ErrorKind = "upstream"
)

// Error is returned for every failed remote call.
type Error struct {
	Kind    ErrorKind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Status != 0:
		return fmt.Sprintf("remote: %s error (status %d): %s", e.Kind, e.Status, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("remote: %s error: %s: %v", e.Kind, e.Message, e.Err)
	default:
		return fmt.Sprintf("remote: %s error: %s", e.Kind, e.Message)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a remote *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var re *Error
	return errors.As(err, &re) && re.Kind == kind
}

// transportError classifies an error returned by the HTTP layer.
func transportError(msg string, err error) *Error {
	kind := KindConnection
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = KindTimeout
	}
	return &Error{Kind: kind, Message: msg, Err: err}
}
