package instrument

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"slices"
	"strings"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/trace"
)

// DefaultMaskFields are always masked: credentials and one-time codes must
// never reach log sinks.
var DefaultMaskFields = []string{"password", "otp", "code", "secret"}

type handlerOptions struct {
	serviceName string
	level       slog.Leveler
	provider    *sdklog.LoggerProvider
	maskFields  []string
}

// parseLevel maps "debug", "info", "warn" and "error" to a slog level,
// falling back to info.
func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return level
}

func newHandler(w io.Writer, opts handlerOptions) slog.Handler {
	if opts.level == nil {
		opts.level = slog.LevelInfo
	}

	var handler slog.Handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       opts.level,
		AddSource:   true,
		ReplaceAttr: renameAttr,
	})
	if opts.provider != nil {
		handler = &multiHandler{handlers: []slog.Handler{
			handler,
			otelslog.NewHandler(opts.serviceName, otelslog.WithLoggerProvider(opts.provider)),
		}}
	}

	return &contextHandler{
		Handler:     &maskHandler{handler: handler, maskKeys: MaskKeys(opts.maskFields)},
		serviceName: opts.serviceName,
	}
}

// renameAttr shortens the built-in keys and reduces the source to a
// module-relative "internal/<pkg>/<file>.go:<line>".
func renameAttr(_ []string, a slog.Attr) slog.Attr {
	switch a.Key {
	case slog.TimeKey:
		a.Key = "ts"
	case slog.LevelKey:
		a.Key = "severity"
	case slog.SourceKey:
		src, ok := a.Value.Any().(*slog.Source)
		if !ok {
			return a
		}
		_, rel, found := strings.Cut(src.File, "/internal/")
		if !found {
			return slog.Attr{}
		}
		return slog.String("file", fmt.Sprintf("%s:%d", filepath.Join("internal", rel), src.Line))
	}
	return a
}

// contextHandler stamps every record with the correlation id, the active
// trace and span ids, and the service name.
type contextHandler struct {
	slog.Handler
	serviceName string
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithAttrs(attrs), serviceName: h.serviceName}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithGroup(name), serviceName: h.serviceName}
}

func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if cID := GetCorrelationID(ctx); cID != "" && cID != invalidCorrelationID {
		r.AddAttrs(slog.String("_cID", cID))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		r.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	if h.serviceName != "" {
		r.AddAttrs(slog.String("service", h.serviceName))
	}

	return h.Handler.Handle(ctx, r)
}

type multiHandler struct {
	handlers []slog.Handler
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range m.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *multiHandler) Handle(ctx context.Context, record slog.Record) error {
	var firstErr error
	for _, handler := range m.handlers {
		if !handler.Enabled(ctx, record.Level) {
			continue
		}
		rec := record.Clone()
		if err := handler.Handle(ctx, rec); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, 0, len(m.handlers))
	for _, handler := range m.handlers {
		handlers = append(handlers, handler.WithAttrs(attrs))
	}
	return &multiHandler{handlers: handlers}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, 0, len(m.handlers))
	for _, handler := range m.handlers {
		handlers = append(handlers, handler.WithGroup(name))
	}
	return &multiHandler{handlers: handlers}
}

type maskHandler struct {
	handler  slog.Handler
	maskKeys map[string]struct{}
}

func (h *maskHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *maskHandler) Handle(ctx context.Context, record slog.Record) error {
	if len(h.maskKeys) == 0 {
		return h.handler.Handle(ctx, record)
	}

	masked := slog.NewRecord(record.Time, record.Level, record.Message, record.PC)
	record.Attrs(func(attr slog.Attr) bool {
		masked.AddAttrs(maskAttr(attr, h.maskKeys))
		return true
	})

	return h.handler.Handle(ctx, masked)
}

func (h *maskHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &maskHandler{
		handler:  h.handler.WithAttrs(attrs),
		maskKeys: h.maskKeys,
	}
}

func (h *maskHandler) WithGroup(name string) slog.Handler {
	return &maskHandler{
		handler:  h.handler.WithGroup(name),
		maskKeys: h.maskKeys,
	}
}

// MaskKeys builds the lookup set of field names to mask: DefaultMaskFields
// plus extra, lower-cased.
func MaskKeys(extra []string) map[string]struct{} {
	maskKeys := make(map[string]struct{})
	for _, field := range slices.Concat(DefaultMaskFields, extra) {
		field = strings.TrimSpace(strings.ToLower(field))
		if field == "" {
			continue
		}
		maskKeys[field] = struct{}{}
	}
	return maskKeys
}

func maskAttr(attr slog.Attr, maskKeys map[string]struct{}) slog.Attr {
	if _, found := maskKeys[strings.ToLower(attr.Key)]; found {
		return slog.String(attr.Key, "***")
	}

	switch attr.Value.Kind() {
	case slog.KindGroup:
		group := attr.Value.Group()
		masked := make([]slog.Attr, 0, len(group))
		for _, ga := range group {
			masked = append(masked, maskAttr(ga, maskKeys))
		}
		attr.Value = slog.GroupValue(masked...)
	case slog.KindString:
		str := attr.Value.String()
		if str == "" || (str[0] != '{' && str[0] != '[') {
			return attr
		}
		if masked, ok := maskJSON([]byte(str), maskKeys); ok {
			attr.Value = slog.StringValue(masked)
		}
	case slog.KindAny:
		val := attr.Value.Any()
		if val == nil {
			return attr
		}
		if masked, ok := maskAny(val, maskKeys); ok {
			attr.Value = slog.AnyValue(masked)
			return attr
		}
		if b, ok := val.([]byte); ok && len(b) > 0 {
			if masked, ok := maskJSON(b, maskKeys); ok {
				attr.Value = slog.StringValue(masked)
			}
		}
	}

	return attr
}

func maskAny(val any, maskKeys map[string]struct{}) (any, bool) {
	switch v := val.(type) {
	case map[string]any:
		return MaskData(v, maskKeys), true
	case map[string]string:
		converted := make(map[string]any, len(v))
		for k, v2 := range v {
			converted[k] = v2
		}
		return MaskData(converted, maskKeys), true
	case http.Header:
		converted := make(map[string]any, len(v))
		for k, v2 := range v {
			converted[k] = strings.Join(v2, ", ")
		}
		return MaskData(converted, maskKeys), true
	case []any:
		return MaskData(v, maskKeys), true
	default:
		return nil, false
	}
}

func maskJSON(payload []byte, maskKeys map[string]struct{}) (string, bool) {
	var jsonBody any
	if err := json.Unmarshal(payload, &jsonBody); err != nil {
		return "", false
	}

	maskedBytes, err := json.Marshal(MaskData(jsonBody, maskKeys))
	if err != nil {
		return "", false
	}
	return string(maskedBytes), true
}

// MaskData replaces the values of masked keys in decoded JSON (maps and
// slices, recursively) with "***".
func MaskData(v any, maskKeys map[string]struct{}) any {
	switch val := v.(type) {
	case map[string]any:
		masked := make(map[string]any, len(val))
		for k, v2 := range val {
			if _, found := maskKeys[strings.ToLower(k)]; found {
				masked[k] = "***"
			} else {
				masked[k] = MaskData(v2, maskKeys)
			}
		}
		return masked
	case []any:
		res := make([]any, len(val))
		for i, v2 := range val {
			res[i] = MaskData(v2, maskKeys)
		}
		return res
	default:
		return v
	}
}
