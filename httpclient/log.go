package httpclient

import (
	"context"
	"net/http"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/exp/maps"

	"github.com/leelynne/gbusiness-httpsig/internal/logger"
)

// LogOptions tunes WithLog.
type LogOptions struct {
	// Redact replaces the values of Authorization, Digest, Cookie and Set-Cookie headers.
	Redact bool
	// MaxBody caps the number of body bytes written per entry. Zero means unlimited.
	MaxBody int
}

var redactedHeaders = map[string]bool{
	"Authorization": true,
	"Digest":        true,
	"Cookie":        true,
	"Set-Cookie":    true,
}

// WithLog logs each request before delegating and each response after.
// It only reads the request and response, both are passed through unchanged.
func WithLog(l *zap.Logger, opts LogOptions) Decorator {
	if l == nil {
		l = zap.NewNop()
	}
	return func(next Client) Client {
		return ClientFunc(func(ctx context.Context, req *Request) (*Response, error) {
			url := ""
			if req.URL != nil {
				url = req.URL.Redacted()
			}
			fields := []zap.Field{
				logger.Method(req.Method),
				logger.URL(url),
				zap.Strings("headers", headerLines(req.Header, opts.Redact)),
			}
			if req.Body != nil {
				fields = append(fields, zap.String("body", clip(req.Body, opts.MaxBody)))
			}
			l.Info("http request", fields...)

			resp, err := next.Do(ctx, req)
			if err != nil {
				l.Warn("http request failed", logger.Method(req.Method), logger.URL(url), logger.Err(err))
				return nil, err
			}
			l.Info("http response",
				logger.Method(req.Method),
				logger.URL(url),
				logger.Status(resp.StatusCode),
				zap.Strings("headers", headerLines(resp.Header, opts.Redact)),
				zap.String("body", clip(resp.Body, opts.MaxBody)),
			)
			return resp, nil
		})
	}
}

// headerLines renders h as "Name: value" lines in a stable order.
func headerLines(h http.Header, redact bool) []string {
	names := maps.Keys(h)
	sort.Strings(names)
	lines := make([]string, 0, len(names))
	for _, name := range names {
		for _, v := range h[name] {
			if redact && redactedHeaders[http.CanonicalHeaderKey(name)] {
				v = "[REDACTED]"
			}
			lines = append(lines, name+": "+v)
		}
	}
	return lines
}

func clip(body []byte, limit int) string {
	if limit <= 0 || len(body) <= limit {
		return string(body)
	}
	var b strings.Builder
	b.Write(body[:limit])
	b.WriteString("...")
	return b.String()
}
