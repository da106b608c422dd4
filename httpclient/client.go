// Package httpclient provides a single method HTTP client abstraction and the decorators
// used to build the signed provider client.
//
// Decorators never mutate the request they receive. They clone it, change the clone and hand
// the clone to the wrapped client, so a signature is always computed over the exact headers
// and body that leave the process.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// Client issues a request and returns the fully read response.
type Client interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, req *Request) (*Response, error)

func (f ClientFunc) Do(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// Decorator adds behaviour to a Client without changing its interface.
type Decorator func(Client) Client

// Wrap applies decorators left to right: the first wraps base, the last is the outermost.
//
//	Wrap(transport, WithLog(l), WithSigning(s))
//
// signs first, then logs the signed request, then sends it.
func Wrap(base Client, decorators ...Decorator) Client {
	c := base
	for _, d := range decorators {
		c = d(c)
	}
	return c
}

// Request is an outgoing request. Treat it as immutable once handed to a Client.
type Request struct {
	Method string
	URL    *url.URL
	Header http.Header
	Body   []byte // nil when the request has no body
}

// NewRequest builds a Request from a method, a raw (possibly relative) URL and an optional body.
func NewRequest(method, rawURL string, body []byte) (*Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url %q: %w", rawURL, err)
	}
	if method == "" {
		method = http.MethodGet
	}
	return &Request{
		Method: method,
		URL:    u,
		Header: http.Header{},
		Body:   body,
	}, nil
}

// NewJSONRequest marshals v and sets the JSON content headers.
func NewJSONRequest(method, rawURL string, v any) (*Request, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}
	req, err := NewRequest(method, rawURL, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// Clone returns a deep copy.
func (r *Request) Clone() *Request {
	out := &Request{
		Method: r.Method,
		Header: r.Header.Clone(),
	}
	if out.Header == nil {
		out.Header = http.Header{}
	}
	if r.URL != nil {
		u := *r.URL
		if r.URL.User != nil {
			user := *r.URL.User
			u.User = &user
		}
		out.URL = &u
	}
	if r.Body != nil {
		out.Body = bytes.Clone(r.Body)
	}
	return out
}

// Response is a response whose body has been read into memory once. Body can be read any number of times.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode <= 299
}

// Text returns the body as a string.
func (r *Response) Text() string {
	return string(r.Body)
}

// JSON decodes the body into v.
func (r *Response) JSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response body: %w", err)
	}
	return nil
}
