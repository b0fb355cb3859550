package router

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/julienschmidt/httprouter"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
)

const maxLoggedBodyBytes = 32 * 1024 // 32KB

func maskHeaders(headers http.Header, maskKeys map[string]struct{}) http.Header {
	if len(maskKeys) == 0 {
		return headers
	}

	result := headers.Clone()
	for key := range result {
		if _, found := maskKeys[strings.ToLower(key)]; found {
			result.Set(key, "***")
		}
	}
	return result
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	body   *bytes.Buffer
	capped bool
	err    error
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}

	if w.body != nil && !w.capped && len(p) > 0 {
		remaining := maxLoggedBodyBytes - w.body.Len()
		if remaining > 0 {
			if len(p) > remaining {
				w.body.Write(p[:remaining])
				w.capped = true
			} else {
				w.body.Write(p)
			}
		} else {
			w.capped = true
		}
	}

	n, err := w.ResponseWriter.Write(p)
	w.bytes += n
	return n, err
}

func (w *statusRecorder) SetError(err error) {
	w.err = err
}

func (w *statusRecorder) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

//nolint:err113 // it use dynamic error
func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijack not supported")
	}
	return h.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	if p, ok := w.ResponseWriter.(http.Pusher); ok {
		return p.Push(target, opts)
	}
	return http.ErrNotSupported
}

func matchedRoutePath(r *http.Request) string {
	pattern := httprouter.ParamsFromContext(r.Context()).MatchedRoutePath()
	if pattern != "" {
		return pattern
	}
	return r.URL.Path
}

func parseAndMaskBody(contentType string, body []byte, maskKeys map[string]struct{}) any {
	if len(body) == 0 {
		return nil
	}

	var jsonBody any
	if err := json.Unmarshal(body, &jsonBody); err == nil {
		return instrument.MaskData(jsonBody, maskKeys)
	}

	if strings.HasPrefix(strings.ToLower(contentType), "application/x-www-form-urlencoded") {
		values, err := url.ParseQuery(string(body))
		if err == nil {
			masked := make(map[string]any, len(values))
			for k, v := range values {
				if _, found := maskKeys[strings.ToLower(k)]; found {
					masked[k] = "***"
					continue
				}
				if len(v) == 1 {
					masked[k] = v[0]
				} else {
					masked[k] = v
				}
			}
			return masked
		}
	}

	if !utf8.Valid(body) {
		return "<binary body omitted>"
	}
	if len(body) > maxLoggedBodyBytes {
		return string(body[:maxLoggedBodyBytes]) + "...(truncated)"
	}
	return string(body)
}

func getMaskKeys(cfg config.Config) map[string]struct{} {
	if cfg == nil {
		return instrument.MaskKeys(nil)
	}
	return instrument.MaskKeys(cfg.GetArray("instrument.log_mask_fields"))
}

// getQuietRoutes lists routes, such as liveness probes, whose bodies are not
// logged and whose successful responses are logged at debug level.
func getQuietRoutes(cfg config.Config) map[string]struct{} {
	routes := []string{"/health"}
	if cfg != nil {
		if v := cfg.GetArray("instrument.log_quiet_routes"); len(v) > 0 {
			routes = v
		}
	}

	quiet := make(map[string]struct{}, len(routes))
	for _, route := range routes {
		quiet[route] = struct{}{}
	}
	return quiet
}

func readRequestBody(r *http.Request) []byte {
	if r.Body == nil {
		return nil
	}

	limited := io.LimitReader(r.Body, maxLoggedBodyBytes+1)
	//nolint:errcheck // best effort for logging only
	reqBodyBytes, _ := io.ReadAll(limited)
	r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(reqBodyBytes), r.Body))
	if len(reqBodyBytes) > maxLoggedBodyBytes {
		return reqBodyBytes[:maxLoggedBodyBytes]
	}
	return reqBodyBytes
}

func responseStatus(rec *statusRecorder) int {
	if rec.status == 0 {
		return http.StatusOK
	}
	return rec.status
}

func buildResponseBody(rec *statusRecorder, maskKeys map[string]struct{}) any {
	if rec.body == nil {
		return nil
	}

	var respBody any
	var respJSON any
	if err := json.Unmarshal(rec.body.Bytes(), &respJSON); err == nil {
		respBody = instrument.MaskData(respJSON, maskKeys)
	} else if utf8.Valid(rec.body.Bytes()) {
		respBody = rec.body.String()
	} else if rec.body.Len() > 0 {
		respBody = "<binary body omitted>"
	}

	if rec.capped {
		respBody = map[string]any{
			"body":      respBody,
			"truncated": true,
		}
	}

	return respBody
}

type httpMetrics struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
}

func newHTTPMetrics(meter metric.Meter) httpMetrics {
	var m httpMetrics
	var err error

	m.requests, err = meter.Int64Counter("http.server.requests", metric.WithDescription("Number of HTTP requests received"))
	if err != nil {
		slog.Error("failed to create http request counter", "error", err)
	}

	m.duration, err = meter.Float64Histogram("http.server.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		slog.Error("failed to create http duration histogram", "error", err)
	}

	return m
}

func (m httpMetrics) record(ctx context.Context, elapsed time.Duration, attrs []attribute.KeyValue) {
	opt := metric.WithAttributes(attrs...)
	if m.requests != nil {
		m.requests.Add(ctx, 1, opt)
	}
	if m.duration != nil {
		m.duration.Record(ctx, float64(elapsed.Microseconds())/1000, opt)
	}
}

func finishSpan(span trace.Span, r *http.Request, rec *statusRecorder, status int, attrs []attribute.KeyValue) {
	if rec.err != nil {
		span.RecordError(rec.err)
	}

	switch {
	case status >= http.StatusInternalServerError && rec.err != nil:
		span.SetStatus(codes.Error, rec.err.Error())
	case status >= http.StatusInternalServerError:
		span.SetStatus(codes.Error, http.StatusText(status))
	default:
		span.SetStatus(codes.Ok, "")
	}

	span.SetAttributes(attrs...)
	span.SetAttributes(
		semconv.NetworkProtocolVersionKey.String(r.Proto),
		semconv.ServerAddressKey.String(r.Host),
		semconv.ClientAddressKey.String(r.RemoteAddr),
		attribute.String("http.target", r.URL.Path),
		attribute.String("http.user_agent", r.UserAgent()),
		attribute.String("correlation_id", instrument.GetCorrelationID(r.Context())),
		attribute.Int("http.response_content_length", rec.bytes),
	)
}

// middlewareObservability wraps each request in a server span, records
// request count and latency, and logs masked request and response bodies.
func middlewareObservability(cfg config.Config, ins instrument.Instrumentation) Middleware {
	maskKeys := getMaskKeys(cfg)
	quietRoutes := getQuietRoutes(cfg)
	tracer := ins.Tracer("http.server")
	metrics := newHTTPMetrics(ins.Meter("http.server"))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := matchedRoutePath(r)
			_, quiet := quietRoutes[route]
			start := time.Now()

			ctx, span := tracer.Start(
				r.Context(),
				r.Method+" "+route,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPRequestMethodKey.String(r.Method),
					semconv.HTTPRouteKey.String(route),
				),
			)
			defer span.End()

			logAttrs := []any{"method", r.Method, "path", route, "uri", r.RequestURI, "client_ip", r.RemoteAddr}
			if !quiet {
				body := readRequestBody(r)
				slog.InfoContext(ctx, "request received", append(logAttrs,
					"headers", maskHeaders(r.Header, maskKeys),
					"body", parseAndMaskBody(r.Header.Get("Content-Type"), body, maskKeys),
				)...)
			}

			rec := &statusRecorder{ResponseWriter: w}
			if !quiet {
				rec.body = &bytes.Buffer{}
			}
			next.ServeHTTP(rec, r.WithContext(ctx))

			status := responseStatus(rec)
			elapsed := time.Since(start)
			attrs := []attribute.KeyValue{
				semconv.HTTPRequestMethodKey.String(r.Method),
				semconv.HTTPRouteKey.String(route),
				semconv.HTTPResponseStatusCodeKey.Int(status),
			}

			finishSpan(span, r.WithContext(ctx), rec, status, attrs)
			metrics.record(ctx, elapsed, attrs)

			level := slog.LevelInfo
			if quiet && status < http.StatusBadRequest {
				level = slog.LevelDebug
			}
			slog.Log(ctx, level, "response sent", append(logAttrs,
				"status", status,
				"bytes", rec.bytes,
				"latency_ms", elapsed.Milliseconds(),
				"body", buildResponseBody(rec, maskKeys),
			)...)
		})
	}
}
