package dav

import (
	"errors"
	"fmt"
	"net/http"
)

// FramingError reports malformed input on the wire: a bad header line, an
// unreadable body, an invalid Keep-Alive value, undecodable credentials or an
// unparseable request document. It aborts the request and closes the
// connection after a 500 response.
type FramingError struct {
	Msg string
	Err error
}

func (e *FramingError) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *FramingError) Unwrap() error {
	return e.Err
}

func framingErrorf(format string, args ...interface{}) error {
	return &FramingError{Msg: fmt.Sprintf(format, args...)}
}

func wrapFramingError(err error, msg string) error {
	return &FramingError{Msg: msg, Err: err}
}

// StatusError carries a backend-chosen HTTP status that is relayed to the
// client without closing the connection.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("%d %s", e.Code, e.Message)
}

var (
	// ErrEventNotFound is returned by Session.GetEvent for an unknown event name.
	ErrEventNotFound = &StatusError{Code: http.StatusNotFound, Message: "event not found"}

	// ErrUnknownRecipient is returned by Session.FreeBusy when the attendee
	// cannot be resolved.
	ErrUnknownRecipient = errors.New("unknown recipient")

	// ErrAuthenticationFailed is wrapped by session providers when the
	// credentials are rejected.
	ErrAuthenticationFailed = errors.New("authentication failed")
)

func isNotFound(err error) bool {
	if errors.Is(err, ErrEventNotFound) {
		return true
	}
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}
