package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"github.com/ardnew/razr/cli/cmd"
	"github.com/ardnew/razr/lang"
	"github.com/ardnew/razr/log"
	"github.com/ardnew/razr/pkg"
)

// CLI is the top-level command-line interface for razr.
type CLI struct {
	Log   logConfig   `embed:"" group:"log"   prefix:"log-"`
	Pprof pprofConfig `embed:"" group:"pprof" prefix:"pprof-"`

	Version kong.VersionFlag `help:"Print version and exit"`

	Path       []string `help:"Template search directories (also ${pathEnv})" placeholder:"DIR" short:"P" type:"path"`
	Strict     bool     `help:"Fail on undefined variables and attributes"`
	Charset    string   `default:"UTF-8"                                      help:"Output charset"`
	AutoReload bool     `help:"Recompile templates whose source changed"`

	Render  cmd.Render  `cmd:"" default:"withargs" help:"Render a template"`
	Tokens  cmd.Tokens  `cmd:""                    help:"Print the token stream of a template"`
	Compile cmd.Compile `cmd:""                    help:"Print the compiled form of a template"`
	Repl    cmd.Repl    `cmd:""                    help:"Start an interactive session"`
	Init    cmd.Init    `cmd:""                    help:"Initialize configuration file"`
}

// environment builds the template environment from the parsed flags.
func (c *CLI) environment() *lang.Environment {
	paths := searchPath(c.Path, os.Getenv(pkg.PathEnv))

	return lang.New(
		lang.WithLoader(lang.NewFilesystemLoader(paths...)),
		lang.WithStrict(c.Strict),
		lang.WithCharset(c.Charset),
		lang.WithAutoReload(c.AutoReload),
		lang.WithLogger(log.Default().Component("lang")),
	)
}

// Run executes the razr CLI with the given context and arguments.
// The exit function is called with the appropriate exit code upon completion.
func Run(
	ctx context.Context,
	exit func(code int),
	args ...string,
) error {
	var cli CLI

	err := mkdirAllRequired()
	if err != nil {
		return err
	}

	configFilePath := configPath(baseConfig)

	vars := kong.Vars{
		cmd.ConfigIdentifier: configFilePath,
		cmd.CacheIdentifier:  cacheDir(),
		"pathEnv":            pkg.PathEnv,
		"version":            pkg.Version(),
	}.
		CloneWith(cli.Log.vars()).
		CloneWith(cli.Pprof.vars())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Pre-scan for logger flags to ensure early configuration regardless of
	// flag position.
	cli.Log.scan(args)

	parser, err := kong.New(&cli,
		kong.Name(pkg.Name),
		kong.Description(pkg.Description),
		kong.UsageOnError(),
		kong.Exit(exit),
		kong.ExplicitGroups(
			[]kong.Group{cli.Log.group(), cli.Pprof.group()},
		),
		kong.BindSingletonProvider(func() context.Context {
			return ctx
		}),
		kong.ConfigureHelp(
			kong.HelpOptions{
				Compact:             true,
				Summary:             true,
				Tree:                true,
				FlagsLast:           false,
				NoAppSummary:        false,
				NoExpandSubcommands: true,
			}),
		kong.Configuration(resolve, configFilePath),
		vars,
	)
	if err != nil {
		return err
	}

	ktx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	defer cli.Log.start(ctx)()

	// [pprofConfig.start] is no-op unless built with tag pprof and enabled.
	defer cli.Pprof.start(ctx)()

	env := cli.environment()

	log.DebugContext(ctx, "environment ready",
		slog.Any("path", searchPath(cli.Path, os.Getenv(pkg.PathEnv))),
		slog.Bool("strict", cli.Strict),
		slog.String("charset", cli.Charset))

	ctx = cmd.WithContext(ctx, ktx)
	ctx = cmd.WithEnvironment(ctx, env)

	return ktx.Run(ctx, &cli)
}
