package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	httpsig "github.com/leelynne/gbusiness-httpsig"
)

type transport struct {
	hc *http.Client
}

// NewTransport returns the base Client performing network I/O with hc (http.DefaultClient when nil).
// Every failure to get a response is reported with code httpsig.ErrTransport. No retries are attempted.
func NewTransport(hc *http.Client) Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &transport{hc: hc}
}

func (t *transport) Do(ctx context.Context, req *Request) (*Response, error) {
	if req.URL == nil || !req.URL.IsAbs() {
		return nil, httpsig.NewError(httpsig.ErrInvalidRequest, "Request URL must be absolute at the transport")
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	hreq, err := http.NewRequestWithContext(ctx, req.Method, req.URL.String(), body)
	if err != nil {
		return nil, httpsig.NewError(httpsig.ErrInvalidRequest, "Failed to build HTTP request", err)
	}
	hreq.Header = req.Header.Clone()
	if hreq.Header == nil {
		hreq.Header = http.Header{}
	}
	// net/http ignores a Host entry in the header map.
	if host := hreq.Header.Get("Host"); host != "" {
		hreq.Host = host
		hreq.Header.Del("Host")
	}

	resp, err := t.hc.Do(hreq)
	if err != nil {
		return nil, httpsig.NewError(httpsig.ErrTransport, fmt.Sprintf("%s %s failed", req.Method, req.URL.Redacted()), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, httpsig.NewError(httpsig.ErrTransport, "Failed to read response body", err)
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}
