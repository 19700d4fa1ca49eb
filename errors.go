package img2ascii

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure. Kinds are themselves errors so they
// can be used as errors.Is targets.
type Kind string

func (k Kind) Error() string { return string(k) }

const (
	// ErrInvalidRequest: empty URL or a scheme other than http/https.
	ErrInvalidRequest Kind = "invalid request"
	// ErrTransport: the host reported a fetch failure.
	ErrTransport Kind = "transport error"
	// ErrPayloadTooLarge: the result text or decoded payload exceeded its bound.
	ErrPayloadTooLarge Kind = "payload too large"
	// ErrDecode: malformed base64 or unparseable raster bytes.
	ErrDecode Kind = "decode error"
	// ErrAllocation: a scratch or bitmap buffer could not be obtained.
	ErrAllocation Kind = "allocation failure"
	// ErrConfiguration: empty ramp, or dimensions still invalid after fallback.
	ErrConfiguration Kind = "configuration error"
	// ErrRender: font or encode capability failure.
	ErrRender Kind = "render failure"
)

// Error is a failure reported at the poller/renderer boundary.
type Error struct {
	Kind Kind
	// Msg is the human-readable detail, e.g. the host's message for
	// ErrTransport.
	Msg string
	Err error
}

func newError(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

func (e *Error) Error() string {
	switch {
	case e.Msg == "" && e.Err == nil:
		return string(e.Kind)
	case e.Err == nil:
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	case e.Msg == "":
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the error's Kind.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// KindOf returns the Kind of err, or "" if err is not a pipeline error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
