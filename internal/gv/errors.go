package gv

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorKind classifies failures surfaced by the remote client and the layers above it.
type ErrorKind int

const (
	KindNetwork ErrorKind = iota + 1
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindValidation
	KindServer
	KindMalformed
)

// Sentinels for errors.Is. An *Error matches the sentinel of its Kind.
var (
	ErrNetwork           = errors.New("network failure")
	ErrUnauthenticated   = errors.New("authentication required")
	ErrForbidden         = errors.New("forbidden")
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation failed")
	ErrServer            = errors.New("server error")
	ErrMalformedResponse = errors.New("malformed response")
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindNetwork:
		return ErrNetwork
	case KindUnauthenticated:
		return ErrUnauthenticated
	case KindForbidden:
		return ErrForbidden
	case KindNotFound:
		return ErrNotFound
	case KindValidation:
		return ErrValidation
	case KindServer:
		return ErrServer
	case KindMalformed:
		return ErrMalformedResponse
	default:
		return nil
	}
}

func (k ErrorKind) String() string {
	if s := k.sentinel(); s != nil {
		return s.Error()
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is the single error shape produced by the remote client.
// Message carries the server's human-readable reason when one was sent,
// e.g. "only verified users can donate".
type Error struct {
	Kind    ErrorKind
	Status  int
	Message string
	Fields  map[string][]string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Status != 0 {
		fmt.Fprintf(&b, " (%d)", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "; %s: %s", k, strings.Join(e.Fields[k], ", "))
		}
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

// Reason returns the message to show a user: the server's reason if present,
// otherwise the kind description.
func (e *Error) Reason() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Kind.String()
}

// NewError builds an *Error of the given kind.
func NewError(kind ErrorKind, status int, message string) *Error {
	return &Error{Kind: kind, Status: status, Message: message}
}

// Malformed wraps err as a MalformedResponse.
func Malformed(err error) *Error {
	return &Error{Kind: KindMalformed, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or 0.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsFallbackable reports whether a list failure may be answered from cache.
// Unauthenticated, Forbidden and ServerError always reach the caller.
func IsFallbackable(err error) bool {
	switch KindOf(err) {
	case KindNetwork, KindNotFound:
		return true
	default:
		return false
	}
}
