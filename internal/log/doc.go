// Package log builds the slog loggers used by ipfsprobe.
//
// The ContextHandler adds attributes stored in a context.Context (the
// dataset, the run label, the CID being probed) to every record logged with
// that context, and masks credentials such as the kubo RPC API
// Authorization header.
//
// # Usage
//
//	logger := log.NewLogger(os.Stderr, verbose)
//	ctx = log.WithAttrs(ctx, "dataset", "en", "label", "daily")
//	logger.WarnContext(ctx, "website does not load", "url", url)
package log
