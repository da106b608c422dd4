package satispay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"go.uber.org/zap"

	httpsig "github.com/leelynne/gbusiness-httpsig"
	"github.com/leelynne/gbusiness-httpsig/httpclient"
	"github.com/leelynne/gbusiness-httpsig/internal/logger"
	"github.com/leelynne/gbusiness-httpsig/session"
)

// API names a provider operation.
type API string

const (
	CreatePayment        API = "create-payment"
	ListPayments         API = "list-payments"
	GetPaymentDetails    API = "get-payment-details"
	UpdatePayment        API = "update-payment"
	RetrieveDailyClosure API = "retrieve-daily-closure"
	CreateAuthorization  API = "create-authorization"
	GetAuthorization     API = "get-authorization"
	UpdateAuthorization  API = "update-authorization"
	TestAuthentication   API = "test-authentication"
)

// Operation describes how an API maps onto HTTP.
type Operation struct {
	API    API
	Method string
	// Path may contain an {id} placeholder, filled from the entity ID.
	Path string
	// Body reports whether the operation sends a JSON object.
	Body bool
}

func (o Operation) needsEntity() bool {
	return strings.Contains(o.Path, "{id}")
}

var operations = map[API]Operation{
	CreatePayment:        {API: CreatePayment, Method: http.MethodPost, Path: "/g_business/v1/payments", Body: true},
	ListPayments:         {API: ListPayments, Method: http.MethodGet, Path: "/g_business/v1/payments"},
	GetPaymentDetails:    {API: GetPaymentDetails, Method: http.MethodGet, Path: "/g_business/v1/payments/{id}"},
	UpdatePayment:        {API: UpdatePayment, Method: http.MethodPut, Path: "/g_business/v1/payments/{id}", Body: true},
	RetrieveDailyClosure: {API: RetrieveDailyClosure, Method: http.MethodGet, Path: "/g_business/v1/daily_closure/{id}"},
	CreateAuthorization:  {API: CreateAuthorization, Method: http.MethodPost, Path: "/g_business/v1/pre_authorized_payment_tokens", Body: true},
	GetAuthorization:     {API: GetAuthorization, Method: http.MethodGet, Path: "/g_business/v1/pre_authorized_payment_tokens/{id}"},
	UpdateAuthorization:  {API: UpdateAuthorization, Method: http.MethodPut, Path: "/g_business/v1/pre_authorized_payment_tokens/{id}", Body: true},
	TestAuthentication:   {API: TestAuthentication, Method: http.MethodGet, Path: "/wally-services/protocol/tests/signature"},
}

var aliases = map[string]API{
	"get-list-of-payments": ListPayments,
}

// Lookup returns the operation for name.
func Lookup(name string) (Operation, error) {
	api := API(strings.ToLower(strings.TrimSpace(name)))
	if alias, ok := aliases[string(api)]; ok {
		api = alias
	}
	op, ok := operations[api]
	if !ok {
		return Operation{}, httpsig.NewError(httpsig.ErrInvalidRequest, fmt.Sprintf("Unknown api '%s'", name))
	}
	return op, nil
}

// APIs lists the supported operation names in sorted order.
func APIs() []API {
	out := make([]API, 0, len(operations))
	for api := range operations {
		out = append(out, api)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// InvokeRequest is a call to one provider operation.
type InvokeRequest struct {
	API      API
	EntityID string          // payment id, token id or yyyyMMdd closure date
	Body     json.RawMessage // JSON object for operations that send one
	Query    url.Values
}

// Client performs signed calls with the active credential.
type Client struct {
	sess      *session.Session
	transport httpclient.Client
	opts      Options
}

func NewClient(sess *session.Session, transport httpclient.Client, opts Options) *Client {
	return &Client{sess: sess, transport: transport, opts: opts.withDefaults()}
}

// Build turns an InvokeRequest into a relative request without touching the session.
func Build(in InvokeRequest) (*httpclient.Request, error) {
	op, err := Lookup(string(in.API))
	if err != nil {
		return nil, err
	}

	path := op.Path
	if op.needsEntity() {
		id := strings.TrimSpace(in.EntityID)
		if id == "" {
			return nil, httpsig.NewError(httpsig.ErrInvalidRequest, fmt.Sprintf("Api '%s' requires an entity id", op.API))
		}
		path = strings.Replace(path, "{id}", url.PathEscape(id), 1)
	}
	if len(in.Query) > 0 {
		path += "?" + in.Query.Encode()
	}

	var body []byte
	if op.Body {
		if body, err = compactObject(in.Body); err != nil {
			return nil, err
		}
	}
	req, err := httpclient.NewRequest(op.Method, path, body)
	if err != nil {
		return nil, httpsig.NewError(httpsig.ErrInvalidRequest, "Invalid request path", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// compactObject requires a JSON object and strips insignificant whitespace so the digest covers the exact text sent.
func compactObject(raw json.RawMessage) ([]byte, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, httpsig.NewError(httpsig.ErrInvalidRequest, "A JSON object body is required")
	}
	if trimmed[0] != '{' {
		return nil, httpsig.NewError(httpsig.ErrInvalidRequest, "Body must be a JSON object")
	}
	var out bytes.Buffer
	if err := json.Compact(&out, trimmed); err != nil {
		return nil, httpsig.NewError(httpsig.ErrInvalidRequest, "Body is not valid JSON", err)
	}
	return out.Bytes(), nil
}

// Invoke builds and sends a signed call for in.
func (c *Client) Invoke(ctx context.Context, in InvokeRequest) (*httpclient.Response, error) {
	req, err := Build(in)
	if err != nil {
		return nil, err
	}
	return c.send(ctx, req, c.opts.Logger.With(logger.API(string(in.API))))
}

// Do signs req with the active credential and sends it. req.URL may be relative to the
// credential's environment. Without an active credential nothing is sent.
func (c *Client) Do(ctx context.Context, req *httpclient.Request) (*httpclient.Response, error) {
	return c.send(ctx, req, c.opts.Logger)
}

func (c *Client) send(ctx context.Context, req *httpclient.Request, log *zap.Logger) (*httpclient.Response, error) {
	cred, err := c.sess.Credential()
	if err != nil {
		return nil, err
	}
	base, err := c.opts.baseURL(cred.Environment)
	if err != nil {
		return nil, err
	}
	signer, err := cred.Signer()
	if err != nil {
		return nil, err
	}

	signed := httpclient.Wrap(c.transport,
		httpclient.WithMetrics(c.opts.Metrics),
		httpclient.WithLog(log, c.opts.LogOptions),
		httpclient.WithSigning(signer),
		httpclient.WithBaseURL(base),
		httpclient.WithTimeout(c.opts.Timeout),
	)
	return signed.Do(ctx, req)
}
