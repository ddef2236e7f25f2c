// Package log provides logging helpers built on top of the standard slog package.
//
// The ContextHandler wraps any slog.Handler and appends attributes carried in
// a context.Context, so that every record emitted while processing one input
// file is tagged with that file without threading a logger through each call.
//
// # Usage
//
//	logger := log.NewLogger(os.Stderr, verbose)
//	ctx = log.ContextWithAttrs(ctx, slog.String("input", path))
//	logger.InfoContext(ctx, "report built", "records", n)
//
// Core packages (model, builder, report) never log; the pipeline and the CLI do.
package log
