package core

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindDocumentNotFound ErrorKind = "DocumentNotFound"
	KindLayerNotFound    ErrorKind = "LayerNotFound"
	KindInvalidOperation ErrorKind = "InvalidOperation"
	KindIO               ErrorKind = "IoError"
	KindSerialization    ErrorKind = "SerializationError"
	KindImage            ErrorKind = "ImageError"
)

// ErrArchiveNotFound is wrapped by archive stores when a key does not exist.
var ErrArchiveNotFound = errors.New("archive not found")

// Error is the single error type returned by engine operations.
type Error struct {
	Kind   ErrorKind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindDocumentNotFound:
		return "Document not found: " + e.Reason
	case KindLayerNotFound:
		return "Layer not found: " + e.Reason
	case KindInvalidOperation:
		return "Invalid operation: " + e.Reason
	case KindIO:
		return "IO error: " + e.Reason
	case KindSerialization:
		return "Serialization error: " + e.Reason
	case KindImage:
		return "Image processing error: " + e.Reason
	}
	return e.Reason
}

func (e *Error) Unwrap() error {
	return e.Err
}

func DocumentNotFound(id string) error {
	return &Error{Kind: KindDocumentNotFound, Reason: id}
}

func LayerNotFound(id string) error {
	return &Error{Kind: KindLayerNotFound, Reason: id}
}

func InvalidOperation(format string, args ...any) error {
	return &Error{Kind: KindInvalidOperation, Reason: fmt.Sprintf(format, args...)}
}

func IOError(err error, format string, args ...any) error {
	return wrap(KindIO, err, format, args...)
}

func SerializationError(err error, format string, args ...any) error {
	return wrap(KindSerialization, err, format, args...)
}

func ImageError(err error, format string, args ...any) error {
	return wrap(KindImage, err, format, args...)
}

func wrap(kind ErrorKind, err error, format string, args ...any) error {
	reason := fmt.Sprintf(format, args...)
	if err != nil {
		reason = reason + ": " + err.Error()
	}
	return &Error{Kind: kind, Reason: reason, Err: err}
}

// KindOf returns the kind of err, or "" when err is not an *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
