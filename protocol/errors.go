package protocol

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoServer is returned by control operations when no server is bound.
	ErrNoServer = errors.New("no server bound to the gateway")
	// ErrClosed is returned when using a closed connection or client.
	ErrClosed = errors.New("connection closed")
)

// ProtocolError reports a malformed line or type tag.
type ProtocolError struct {
	Line   string
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error: %s (line %q)", e.Reason, e.Line)
}

// NotFoundError reports an unknown registry id, class or member.
type NotFoundError struct {
	Kind string // "object", "class", "method", "field", "constructor", ...
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Name)
}

// AmbiguousOverloadError reports two or more candidates tied at the lowest cost.
type AmbiguousOverloadError struct {
	Name       string
	Candidates []string
	Cost       int
}

func (e *AmbiguousOverloadError) Error() string {
	return fmt.Sprintf("ambiguous overload for %s (cost %d): %s",
		e.Name, e.Cost, strings.Join(e.Candidates, ", "))
}

// ConversionError reports a value that cannot be coerced to a parameter type.
type ConversionError struct {
	Value any
	From  string
	To    string
	Err   error
}

func (e *ConversionError) Error() string {
	msg := fmt.Sprintf("cannot convert %v (%s) to %s", e.Value, e.From, e.To)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConversionError) Unwrap() error { return e.Err }

// NetworkError wraps a socket failure. It is fatal for the connection it occurs on.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// TimeoutError reports an exceeded connect or reply wait.
type TimeoutError struct {
	Op  string
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout during %s: %v", e.Op, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// IsNetworkError reports whether err (or anything it wraps) is a NetworkError.
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}
