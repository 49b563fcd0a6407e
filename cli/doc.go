// Package cli contains the command line interface for razr.
//
// # Usage
//
// The default command renders a template found on the search path with
// context data from YAML or JSON files and key=expression assignments:
//
//	razr page.razr -d site.yaml -s 'title="Home"'
//	razr render -P ./templates -b content page.razr
//	echo 'Hello @(name)!' | razr render - -s 'name="World"'
//
// Other commands expose the compiler pipeline:
//
//	razr tokens page.razr              # token stream
//	razr compile --format yaml page.razr
//	razr repl -d site.yaml             # interactive session
//	razr init                          # write the configuration file
//
// # Template Search Path
//
// Templates are loaded from the directories given with --path, followed by
// those listed in the RAZR_PATH environment variable. The working directory
// is used when neither is set.
//
// # Configuration
//
// Flag defaults are read from config.yaml in the user configuration
// directory (e.g. ~/.config/razr/config.yaml). Keys are flag names with
// underscores in place of hyphens:
//
//	log_level: debug
//	strict: true
//	path:
//	  - ./templates
//
// Command-line flags override config file values. The init command writes the
// current flag values to this file.
//
// # Logging Options
//
//   - --log-level: Set minimum log level (trace, debug, info, warn, error)
//   - --log-format: Set log output format (text, json)
//   - --log-time-layout: Set timestamp format (RFC3339, Kitchen, etc.)
//   - --log-caller: Include caller information in log output
//   - --log-pretty: Colorize log output
//
// # Profiling Options
//
// Profiling is only available when built with the pprof build tag:
//
//	go build -tags pprof .
//
//   - --pprof-mode: Enable profiling (allocs, block, clock, cpu, goroutine,
//     heap, mem, mutex, thread, trace)
//   - --pprof-dir: Set profile output directory (default: ~/.cache/razr/pprof)
package cli
