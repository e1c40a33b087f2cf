// Package log provides structured logging handler construction for use
// with [log/slog].
//
// It supports three output formats: [FormatText] (human-oriented,
// rendered by charm.land/log), [FormatJSON], and [FormatLogfmt]. Use
// [NewHandler] to create a handler directly, or use [Config] with CLI
// flag integration via [github.com/spf13/pflag] and shell completion
// support via [github.com/spf13/cobra].
//
// Typical usage creates a [Config], registers flags, then builds a
// handler at startup:
//
//	cfg := log.NewConfig()
//	cfg.RegisterFlags(rootCmd.PersistentFlags())
//
//	handler, err := cfg.NewHandler(os.Stderr)
//	if err != nil { ... }
//	slog.SetDefault(slog.New(handler))
package log
