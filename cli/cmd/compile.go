package cmd

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/ardnew/razr/lang"
)

// Compile prints the compiled form of a template.
type Compile struct {
	Template string `arg:""                                 help:"Template name, path, or '-' for stdin" name:"template"`
	Format   string `default:"listing" enum:"listing,yaml,json" help:"Output format."                      short:"F"`
	Indent   int    `default:"2"       help:"Indent width for yaml and json output" short:"i"`

	stdout io.Writer
}

// unitDump is the structured form of a compiled unit.
type unitDump struct {
	Name      string      `json:"name"       yaml:"name"`
	Parent    bool        `json:"parent"     yaml:"parent"`
	Blocks    []string    `json:"blocks"     yaml:"blocks"`
	DebugInfo map[int]int `json:"debug_info" yaml:"debug_info"`
	Code      []string    `json:"code"       yaml:"code"`
}

func dumpUnit(u *lang.Unit) unitDump {
	return unitDump{
		Name:      u.Name(),
		Parent:    u.HasParent(),
		Blocks:    u.Blocks(),
		DebugInfo: u.DebugInfo(),
		Code:      strings.Split(strings.TrimSuffix(u.Code(), "\n"), "\n"),
	}
}

// Run executes the compile command.
func (c *Compile) Run(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	env, err := environmentFrom(ctx)
	if err != nil {
		return err
	}

	tpl, err := loadTemplate(ctx, env, c.Template)
	if err != nil {
		return lang.WrapError(err).With(
			slog.String("command", "compile"),
			slog.String("format", c.Format),
		)
	}

	w := output(c.stdout)

	switch c.Format {
	case "yaml":
		b, err := yaml.MarshalContext(ctx, dumpUnit(tpl.Unit()), yaml.Indent(c.Indent))
		if err != nil {
			return ErrYAMLMarshal.Wrap(err)
		}

		_, err = w.Write(b)

		return err

	case "json":
		b, err := json.MarshalIndent(dumpUnit(tpl.Unit()), "", strings.Repeat(" ", c.Indent))
		if err != nil {
			return ErrJSONMarshal.Wrap(err)
		}

		_, err = w.Write(append(b, '\n'))

		return err

	default:
		_, err = io.WriteString(w, tpl.Unit().Code())

		return err
	}
}
