package lang

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// Class categorizes an [Error].
type Class int

const (
	ClassSyntax  Class = iota + 1 // template could not be compiled
	ClassRuntime                  // template failed while rendering
	ClassLogic                    // programmer misuse of the API
	ClassLoader                   // template source could not be loaded
)

// String returns a short description of the error class.
func (c Class) String() string {
	switch c {
	case ClassSyntax:
		return "syntax error"
	case ClassRuntime:
		return "runtime error"
	case ClassLogic:
		return "logic error"
	case ClassLoader:
		return "loader error"
	default:
		return "error"
	}
}

// Predefined errors (sentinel values).
//
// Every error returned by this package derives from one of these, so callers
// can classify failures with [errors.Is].
var (
	ErrSyntax  = NewError(ClassSyntax, ClassSyntax.String())
	ErrRuntime = NewError(ClassRuntime, ClassRuntime.String())
	ErrLogic   = NewError(ClassLogic, ClassLogic.String())
	ErrLoader  = NewError(ClassLoader, ClassLoader.String())

	ErrTemplateNotFound = ErrLoader.derive("template not found")
	ErrSealed           = ErrLogic.derive("environment is sealed")
	ErrUndefined        = ErrRuntime.derive("undefined variable or attribute")
	ErrInheritanceCycle = ErrRuntime.derive("template inheritance cycle")
)

// Error represents a template error with optional source attribution and
// structured logging attributes.
// It implements both error and slog.LogValuer interfaces.
type Error struct {
	base  *Error      // sentinel this error derives from
	msg   string      // human-readable message
	err   error       // wrapped error (for errors.Unwrap)
	name  string      // template name, if attributed
	attrs []slog.Attr // attributes for structured logging
	line  int         // template line, if attributed
	class Class
}

// NewError creates a new root Error of the given class.
func NewError(class Class, msg string) *Error {
	return &Error{class: class, msg: msg}
}

// WrapError converts any error into an *Error. Errors that already are (or
// wrap) an *Error are returned as is, anything else becomes a runtime error.
func WrapError(err error) *Error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return e
	}

	return ErrRuntime.Cause(err)
}

// derive returns a sentinel-like child of e that still matches e with
// [errors.Is].
func (e *Error) derive(msg string) *Error {
	return &Error{base: e, class: e.class, msg: msg}
}

// copy returns a shallow copy of e whose base is e's root sentinel.
func (e *Error) copy() *Error {
	c := *e
	if e.isSentinel() {
		c.base = e
	}

	return &c
}

func (e *Error) isSentinel() bool {
	return e.err == nil && e.name == "" && e.line == 0 && len(e.attrs) == 0
}

// Errorf returns a new Error deriving from e with a formatted message.
func (e *Error) Errorf(format string, args ...any) *Error {
	c := e.copy()
	c.msg = fmt.Sprintf(format, args...)

	return c
}

// Wrap creates a new Error wrapping another error, keeping e's message.
func (e *Error) Wrap(err error) *Error {
	c := e.copy()
	c.err = err

	return c
}

// Cause creates a new Error whose message is taken from err.
func (e *Error) Cause(err error) *Error {
	c := e.copy()
	c.msg = ""
	c.err = err

	return c
}

// With adds attributes to the error for structured logging.
// This creates a new Error instance to maintain immutability.
func (e *Error) With(attrs ...slog.Attr) *Error {
	c := e.copy()
	c.attrs = make([]slog.Attr, len(e.attrs)+len(attrs))
	copy(c.attrs, e.attrs)
	copy(c.attrs[len(e.attrs):], attrs)

	return c
}

// At returns a copy of e attributed to the given template name and line.
func (e *Error) At(name string, line int) *Error {
	c := e.copy()
	c.name = name
	c.line = line

	return c
}

// attribute fills in the template name and line unless they are already set.
func (e *Error) attribute(name string, line int) *Error {
	if e.name != "" && e.line > 0 {
		return e
	}

	c := e.copy()

	if c.name == "" {
		c.name = name
	}

	if c.line <= 0 {
		c.line = line
	}

	return c
}

// Class returns the category of the error.
func (e *Error) Class() Class { return e.class }

// Message returns the error message without source attribution.
func (e *Error) Message() string {
	if e.msg == "" && e.err != nil {
		return e.err.Error()
	}

	return e.msg
}

// Name returns the name of the template the error is attributed to.
func (e *Error) Name() string { return e.name }

// Line returns the template line the error is attributed to, or 0.
func (e *Error) Line() int { return e.line }

// Error implements the error interface.
//
// The message has the form:
//
//	<msg> in "<name>" at line <line>: <cause>
//
// with each part omitted when unset.
func (e *Error) Error() string {
	var sb strings.Builder

	cause := e.err

	if e.msg != "" {
		sb.WriteString(e.msg)
	} else if cause != nil {
		sb.WriteString(cause.Error())

		cause = nil
	}

	if e.name != "" {
		sb.WriteString(` in "`)
		sb.WriteString(e.name)
		sb.WriteByte('"')
	}

	if e.line > 0 {
		sb.WriteString(" at line ")
		sb.WriteString(strconv.Itoa(e.line))
	}

	if cause != nil {
		sb.WriteString(": ")
		sb.WriteString(cause.Error())
	}

	return sb.String()
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error { return e.err }

// Is reports whether target is a sentinel that e derives from.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}

	for b := e; b != nil; b = b.base {
		if b == t {
			return true
		}
	}

	return false
}

// LogValue implements slog.LogValuer for rich structured logging.
func (e *Error) LogValue() slog.Value {
	attrs := make([]slog.Attr, 0, len(e.attrs)+5)

	attrs = append(attrs,
		slog.String("class", e.class.String()),
		slog.String("error", e.Message()),
	)

	if e.name != "" {
		attrs = append(attrs, slog.String("template", e.name))
	}

	if e.line > 0 {
		attrs = append(attrs, slog.Int("line", e.line))
	}

	if e.msg != "" && e.err != nil {
		attrs = append(attrs, slog.String("cause", e.err.Error()))
	}

	return slog.GroupValue(append(attrs, e.attrs...)...)
}

// Snippet formats the lines of source surrounding the error's line with a
// marker under the offending line. It returns "" when the error carries no
// line or the line is out of range.
func (e *Error) Snippet(source string) string {
	lines := strings.Split(source, "\n")
	if e.line <= 0 || e.line > len(lines) {
		return ""
	}

	first, last := max(e.line-2, 1), min(e.line+1, len(lines))
	width := len(strconv.Itoa(last))

	var sb strings.Builder

	for n := first; n <= last; n++ {
		text := lines[n-1]

		sb.WriteString("  ")
		sb.WriteString(fmt.Sprintf("%*d", width, n))
		sb.WriteString(" | ")
		sb.WriteString(text)
		sb.WriteByte('\n')

		if n != e.line {
			continue
		}

		indent := len(text) - len(strings.TrimLeft(text, " \t"))
		span := max(len(strings.TrimSpace(text)), 1)

		// +5 accounts for: 2 leading spaces + " | " (3 chars)
		sb.WriteString(strings.Repeat(" ", width+5))
		sb.WriteString(text[:indent])
		sb.WriteString(strings.Repeat("^", span))
		sb.WriteByte('\n')
	}

	return sb.String()
}
