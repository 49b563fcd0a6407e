package lang

import (
	"maps"

	"github.com/ardnew/razr/log"
)

// DefaultCharset is the charset reported by the _charset variable.
const DefaultCharset = "UTF-8"

// Option configures an [Environment].
type Option func(*Environment)

// WithLoader sets the source of templates loaded by name.
func WithLoader(loader Loader) Option {
	return func(e *Environment) {
		e.loader = loader
	}
}

// WithStrict makes undefined variables and attributes runtime errors
// instead of null values.
func WithStrict(strict bool) Option {
	return func(e *Environment) {
		e.attrs.strict = strict
	}
}

// WithAutoReload recompiles cached templates whose source the loader
// reports as changed.
func WithAutoReload(reload bool) Option {
	return func(e *Environment) {
		e.autoReload = reload
	}
}

// WithCharset sets the value of the _charset variable.
func WithCharset(charset string) Option {
	return func(e *Environment) {
		e.charset = charset
	}
}

// WithLogger sets the structured logger for trace-level debugging.
// If not provided, the logger is zero-valued and all logging is a no-op.
func WithLogger(logger log.Logger) Option {
	return func(e *Environment) {
		e.logger = logger
	}
}

// WithGlobals adds variables visible to every template. Context values of
// the same name take precedence.
func WithGlobals(globals map[string]any) Option {
	return func(e *Environment) {
		maps.Copy(e.globals, globals)
	}
}

// WithExtensions registers extensions after the core extension.
func WithExtensions(ext ...Extension) Option {
	return func(e *Environment) {
		e.extensions = append(e.extensions, ext...)
	}
}
