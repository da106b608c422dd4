package httpclient

import (
	"context"
	"fmt"
	"net/url"
	"time"

	httpsig "github.com/leelynne/gbusiness-httpsig"
)

// WithBaseURL resolves every request URL against base before delegating.
// Absolute request URLs are kept as they are.
func WithBaseURL(base *url.URL) Decorator {
	return func(next Client) Client {
		return ClientFunc(func(ctx context.Context, req *Request) (*Response, error) {
			out := req.Clone()
			if out.URL == nil {
				out.URL = &url.URL{}
			}
			out.URL = base.ResolveReference(out.URL)
			return next.Do(ctx, out)
		})
	}
}

// WithSigning signs every request with s at send time and merges the resulting headers into a clone of the request.
// A signing failure short-circuits and nothing is sent.
func WithSigning(s *httpsig.Signer) Decorator {
	return func(next Client) Client {
		return ClientFunc(func(ctx context.Context, req *Request) (*Response, error) {
			if req.URL == nil || req.URL.Host == "" {
				return nil, httpsig.NewError(httpsig.ErrInvalidRequest, "Signed requests need an absolute URL")
			}
			out := req.Clone()
			m, err := s.SignMessage(httpsig.Message{
				Method: out.Method,
				Target: out.URL.RequestURI(),
				Host:   out.URL.Host,
				Body:   out.Body,
			})
			if err != nil {
				return nil, err
			}
			m.Apply(out.Header)
			return next.Do(ctx, out)
		})
	}
}

// WithTimeout bounds the wrapped call with a deadline. A zero duration disables it.
func WithTimeout(d time.Duration) Decorator {
	return func(next Client) Client {
		if d <= 0 {
			return next
		}
		return ClientFunc(func(ctx context.Context, req *Request) (*Response, error) {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			resp, err := next.Do(ctx, req)
			if err != nil && ctx.Err() == context.DeadlineExceeded && !httpsig.IsCode(err, httpsig.ErrTransport) {
				return nil, httpsig.NewError(httpsig.ErrTransport, fmt.Sprintf("Request timed out after %s", d), err)
			}
			return resp, err
		})
	}
}
