package cmd

import (
	"context"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/ardnew/razr/lang"
	"github.com/ardnew/razr/log"
)

// Render renders a template with context data.
type Render struct {
	Template string   `arg:""                                      help:"Template name, path, or '-' for stdin" name:"template"`
	Data     []string `help:"YAML or JSON context file(s), '-' for stdin" placeholder:"FILE"                    short:"d" type:"path"`
	Set      []string `help:"Context value given as key=expression"       placeholder:"KEY=EXPR"                short:"s"`
	Block    string   `help:"Render only the named block"                 short:"b"`
	Output   string   `help:"Output file (default stdout)"                short:"o"                             type:"path"`

	stdout io.Writer
}

// Run executes the render command.
func (r *Render) Run(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	env, err := environmentFrom(ctx)
	if err != nil {
		return err
	}

	if r.Template == stdinSource && slices.Contains(r.Data, stdinSource) {
		return ErrStdinConflict.With(slog.String("command", "render"))
	}

	data, err := loadContext(ctx, r.Data, r.Set)
	if err != nil {
		return err
	}

	tpl, err := loadTemplate(ctx, env, r.Template)
	if err != nil {
		return lang.WrapError(err).With(slog.String("command", "render"))
	}

	var out string

	if r.Block != "" {
		out, err = tpl.RenderBlock(ctx, r.Block, data)
	} else {
		out, err = tpl.Render(ctx, data)
	}

	if err != nil {
		return lang.WrapError(err).With(
			slog.String("command", "render"),
			slog.String("template", r.Template),
		)
	}

	log.DebugContext(ctx, "rendered template",
		slog.String("template", tpl.Name()),
		slog.String("block", r.Block),
		slog.Int("bytes", len(out)))

	return r.write(out)
}

func (r *Render) write(out string) error {
	if r.Output == "" {
		_, err := io.WriteString(output(r.stdout), out)

		return err
	}

	if err := os.WriteFile(r.Output, []byte(out), 0o644); err != nil {
		return ErrWriteOutput.Wrap(err).With(slog.String("file", r.Output))
	}

	return nil
}
