package log

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"strings"
)

// MaskValue replaces credential values.
const MaskValue = "***REDACTED***"

// credentialKeys are attribute keys whose values are never written.
var credentialKeys = map[string]bool{
	"authorization":       true,
	"proxy-authorization": true,
	"api_auth":            true,
	"api-auth":            true,
	"password":            true,
	"token":               true,
	"access_token":        true,
	"secret":              true,
}

type ctxKey struct{}

// WithAttrs returns a copy of ctx carrying args as log attributes, in
// addition to those already stored in ctx. args follow the slog key-value
// convention.
func WithAttrs(ctx context.Context, args ...any) context.Context {
	if len(args) == 0 {
		return ctx
	}
	prev := attrsFrom(ctx)
	attrs := make([]slog.Attr, 0, len(prev)+len(args)/2)
	attrs = append(attrs, prev...)
	attrs = append(attrs, argsToAttrs(args)...)
	return context.WithValue(ctx, ctxKey{}, attrs)
}

func attrsFrom(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	attrs, _ := ctx.Value(ctxKey{}).([]slog.Attr)
	return attrs
}

func argsToAttrs(args []any) []slog.Attr {
	var r slog.Record
	r.Add(args...)
	attrs := make([]slog.Attr, 0, r.NumAttrs())
	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, a)
		return true
	})
	return attrs
}

// ContextHandler wraps an slog.Handler. It prepends the attributes stored by
// WithAttrs in the record's context and masks credential attributes.
type ContextHandler struct {
	handler slog.Handler
}

// NewContextHandler wraps handler. A nil handler wraps slog.Default's handler.
func NewContextHandler(handler slog.Handler) *ContextHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	return &ContextHandler{handler: handler}
}

// Enabled implements slog.Handler.
func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	for _, a := range attrsFrom(ctx) {
		out.AddAttrs(mask(a))
	}
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(mask(a))
		return true
	})
	return h.handler.Handle(ctx, out)
}

// WithAttrs implements slog.Handler.
func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	masked := slices.Clone(attrs)
	for i, a := range masked {
		masked[i] = mask(a)
	}
	return &ContextHandler{handler: h.handler.WithAttrs(masked)}
}

// WithGroup implements slog.Handler.
func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{handler: h.handler.WithGroup(name)}
}

func mask(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		group := a.Value.Group()
		masked := make([]slog.Attr, len(group))
		for i, ga := range group {
			masked[i] = mask(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(masked...)}
	}
	if credentialKeys[strings.ToLower(a.Key)] {
		return slog.String(a.Key, MaskValue)
	}
	if a.Value.Kind() == slog.KindString && isBearerOrBasic(a.Value.String()) {
		return slog.String(a.Key, MaskValue)
	}
	return a
}

func isBearerOrBasic(v string) bool {
	lower := strings.ToLower(v)
	return strings.HasPrefix(lower, "bearer ") || strings.HasPrefix(lower, "basic ")
}

// Level returns Debug when verbose is set and Warn otherwise.
func Level(verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelWarn
}

// NewLogger returns a text logger writing to w.
func NewLogger(w io.Writer, verbose bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: Level(verbose)}
	return slog.New(NewContextHandler(slog.NewTextHandler(w, opts)))
}

// NewJSONLogger returns a JSON logger writing to w, for log aggregation in
// long-running monitor deployments.
func NewJSONLogger(w io.Writer, verbose bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: Level(verbose)}
	return slog.New(NewContextHandler(slog.NewJSONHandler(w, opts)))
}
