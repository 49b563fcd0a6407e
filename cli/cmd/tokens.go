package cmd

import (
	"context"
	"io"
	"log/slog"

	"github.com/ardnew/razr/lang"
)

// Tokens prints the token stream of a template.
type Tokens struct {
	Template string `arg:"" help:"Template name, path, or '-' for stdin" name:"template"`

	stdout io.Writer
}

// Run executes the tokens command.
func (t *Tokens) Run(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	env, err := environmentFrom(ctx)
	if err != nil {
		return err
	}

	source, err := readTemplate(env, t.Template)
	if err != nil {
		return err
	}

	stream, err := env.Tokenize(ctx, source, t.Template)
	if err != nil {
		return lang.WrapError(err).With(slog.String("command", "tokens"))
	}

	_, err = io.WriteString(output(t.stdout), stream.String())

	return err
}
