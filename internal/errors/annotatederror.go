package errors

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
)

// AnnotatedError includes more context than a plain error that is useful for troubleshooting.
type AnnotatedError struct {
	// msg is the error message.
	msg string
	// cause is the wrapped error, nil for errors created with New.
	cause error
	// pc is the program counter for the location of the error provided by runtime.Callers.
	pc uintptr
	// attrs are slog attributes that are added to the log event to provide more context for the error.
	attrs []slog.Attr
}

// callerPC returns the program counter of the function calling the exported constructor.
func callerPC() uintptr {
	var pcs [1]uintptr
	// Skip runtime.Callers, callerPC, and the constructor.
	runtime.Callers(3, pcs[:]) //nolint:mnd // see above
	return pcs[0]
}

// New creates a new error with the given message and attributes that records where it was created.
func New(msg string, attrs ...slog.Attr) error {
	return AnnotatedError{
		msg:   msg,
		cause: nil,
		pc:    callerPC(),
		attrs: attrs,
	}
}

// NewSentinel creates a plain error without other context that can be used as sentinel error that can be detected
// with errors.Is.
func NewSentinel(msg string) error {
	return errors.New(msg)
}

// Wrap adds a message, source location and attributes to err. Wrapping a nil error returns nil.
func Wrap(err error, msg string, attrs ...slog.Attr) error {
	if err == nil {
		return nil
	}
	return AnnotatedError{
		msg:   msg,
		cause: err,
		pc:    callerPC(),
		attrs: attrs,
	}
}

// Error implements error interface.
func (err AnnotatedError) Error() string {
	if err.cause == nil {
		return err.msg
	}
	return fmt.Sprintf("%s: %s", err.msg, err.cause.Error())
}

// Unwrap returns the wrapped error.
func (err AnnotatedError) Unwrap() error {
	return err.cause
}

func (err AnnotatedError) source() string {
	frames := runtime.CallersFrames([]uintptr{err.pc})
	frame, _ := frames.Next()
	return fmt.Sprintf("%s:%d", frame.File, frame.Line)
}

// LogValue formats the error for useful logging.
//
// The source points to the innermost annotated error so that developers land where the problem happened. Attributes
// of every annotated error in the chain are collected.
func (err AnnotatedError) LogValue() slog.Value {
	var (
		attrs     []slog.Attr
		innermost = err
	)
	var current error = err
	for current != nil {
		var annotated AnnotatedError
		if !errors.As(current, &annotated) {
			break
		}
		attrs = append(attrs, annotated.attrs...)
		innermost = annotated
		current = annotated.cause
	}

	return slog.GroupValue(append(
		[]slog.Attr{
			slog.String("msg", err.Error()),
			slog.String("source", innermost.source()),
		},
		attrs...,
	)...)
}

// SlogError returns a log attribute for err. Annotated errors are logged as a group with source location.
func SlogError(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	var annotated AnnotatedError
	if !errors.As(err, &annotated) {
		return slog.String("error", err.Error())
	}
	group := annotated.LogValue().Group()
	// The outermost message includes plain errors wrapped around the annotated one.
	group[0] = slog.String("msg", err.Error())
	return slog.Attr{Key: "error", Value: slog.GroupValue(group...)}
}

// As exposes stdlib errors.As.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Is exposes stdlib errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// Join exposes stdlib errors.Join.
func Join(errs ...error) error {
	return errors.Join(errs...)
}

// Unwrap exposes stdlib errors.Unwrap.
func Unwrap(err error) error {
	return errors.Unwrap(err)
}
