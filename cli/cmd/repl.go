package cmd

import (
	"context"
	"log/slog"

	"github.com/ardnew/razr/cli/cmd/repl"
	"github.com/ardnew/razr/log"
)

// Repl starts an interactive session rendering templates and expressions.
type Repl struct {
	Data []string `help:"YAML or JSON context file(s)"          placeholder:"FILE"     short:"d" type:"path"`
	Set  []string `help:"Context value given as key=expression" placeholder:"KEY=EXPR" short:"s"`
}

// Run executes the repl command.
func (r *Repl) Run(ctx context.Context) error {
	env, err := environmentFrom(ctx)
	if err != nil {
		return err
	}

	data, err := loadContext(ctx, r.Data, r.Set)
	if err != nil {
		return err
	}

	var cache string

	if ktx := kongContextFrom(ctx); ktx != nil {
		cache = ktx.Model.Vars()[CacheIdentifier]
	}

	logger := log.Default().Component("repl")

	if err := repl.Run(ctx, env, data, cache, logger); err != nil {
		return ErrReplSession.Wrap(err).With(slog.String("command", "repl"))
	}

	return nil
}
