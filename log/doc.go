// Package log provides a concurrency-safe simplified logging interface
// based on [log/slog].
//
// The package offers configurable time formatting, caller information,
// and output formats that are applied at logger creation time using
// functional options.
//
// # Basic Usage
//
//	logger := log.Make(os.Stderr)
//	logger.Info("template rendered", slog.String("name", "page.razr"))
//	logger.Error("compile failed", slog.Any("error", err))
//
// The zero value [Logger] discards everything, so library types can embed
// one and let callers opt in.
//
// # Configuration
//
//	logger := log.Make(os.Stderr,
//		log.WithLevel(log.LevelDebug),
//		log.WithTimeLayout("RFC3339Nano"),
//		log.WithCaller(true))
//
// The package-level logger used by [Info], [Debug] and friends is
// reconfigured with [Config].
//
// # Adding Attributes
//
//	logger = logger.Component("lexer").With(slog.String("template", name))
//	logger.Debug("tokenized") // includes component=lexer template=...
//
// # Context-Aware Logging
//
// Each level has a context-aware and a context-unaware variant. The latter
// use [DefaultContextProvider], which returns [context.TODO] by default.
//
// # Supported Levels
//
// [LevelTrace], [LevelDebug], [LevelInfo], [LevelWarn], and [LevelError].
// Messages below the configured level are discarded.
//
// # Output Formats
//
// [FormatText] (default) and [FormatJSON]. Text output can be colorized
// with [WithPretty].
package log
