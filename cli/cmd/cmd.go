package cmd

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"github.com/ardnew/razr/lang"
)

// contextKey is used to store a [kong.Context] value in [context.Context].
type contextKey struct{}

// environmentKey is used to store a [lang.Environment] in [context.Context].
type environmentKey struct{}

// WithContext returns a new context.Context containing the given kong.Context.
func WithContext(ctx context.Context, ktx *kong.Context) context.Context {
	return context.WithValue(ctx, contextKey{}, ktx)
}

func kongContextFrom(ctx context.Context) *kong.Context {
	ktx, ok := ctx.Value(contextKey{}).(*kong.Context)
	if !ok || ktx == nil {
		return nil
	}

	return ktx
}

// WithEnvironment returns a new context.Context containing the template
// environment shared by all commands.
func WithEnvironment(ctx context.Context, env *lang.Environment) context.Context {
	return context.WithValue(ctx, environmentKey{}, env)
}

func environmentFrom(ctx context.Context) (*lang.Environment, error) {
	env, ok := ctx.Value(environmentKey{}).(*lang.Environment)
	if !ok || env == nil {
		return nil, ErrNoEnvironment
	}

	return env, nil
}

// stdinSource is the special source indicator for reading from stdin.
const stdinSource = "-"

// stdin is replaced in tests.
var stdin io.Reader = os.Stdin

// output returns w, or os.Stdout if w is nil.
func output(w io.Writer) io.Writer {
	if w == nil {
		return os.Stdout
	}

	return w
}

// readTemplate returns the source of the named template, reading stdin when
// name is "-".
func readTemplate(env *lang.Environment, name string) (string, error) {
	if name == stdinSource {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", ErrReadTemplate.Wrap(err).With(slog.String("template", name))
		}

		return string(b), nil
	}

	return env.Loader().Source(name)
}

// loadTemplate loads the named template through the environment cache, or
// compiles stdin when name is "-".
func loadTemplate(
	ctx context.Context,
	env *lang.Environment,
	name string,
) (*lang.Template, error) {
	if name != stdinSource {
		return env.LoadTemplate(ctx, name, 0)
	}

	source, err := readTemplate(env, name)
	if err != nil {
		return nil, err
	}

	return env.FromString(ctx, source, name)
}
