package server

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpsig "github.com/leelynne/gbusiness-httpsig"
	"github.com/leelynne/gbusiness-httpsig/httpclient"
	"github.com/leelynne/gbusiness-httpsig/keyutil"
	"github.com/leelynne/gbusiness-httpsig/satispay"
	"github.com/leelynne/gbusiness-httpsig/satispay/satispaytest"
	"github.com/leelynne/gbusiness-httpsig/session"
)

var testKeyPair = sync.OnceValue(func() keyutil.KeyPair {
	kp, err := keyutil.GenerateKeyPairBits(rand.Reader, 2048)
	if err != nil {
		panic(err)
	}
	return kp
})

type fixture struct {
	provider *satispaytest.Provider
	sess     *session.Session
	handler  http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	p := satispaytest.NewProvider()
	t.Cleanup(p.Close)
	p.AcceptToken("ABC123", "kid-1")

	reg := prometheus.NewRegistry()
	metrics, err := httpclient.NewMetrics(reg)
	require.NoError(t, err)

	opts := satispay.Options{
		Endpoints:   p.Endpoints(),
		Metrics:     metrics,
		GenerateKey: func() (keyutil.KeyPair, error) { return testKeyPair(), nil },
	}
	sess := session.New(nil)
	transport := httpclient.NewTransport(p.Client())
	return &fixture{
		provider: p,
		sess:     sess,
		handler: NewRouter(Deps{
			Session:   sess,
			Activator: satispay.NewActivator(sess, transport, opts),
			Client:    satispay.NewClient(sess, transport, opts),
			Metrics:   promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		}),
	}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/authenticate", `{"env":"sandbox","activationCode":"ABC123"}`)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, session.Authenticated, f.sess.Current().State)

	rec = f.do(t, http.MethodGet, "/api/session", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"state":"authenticated","environment":"sandbox","keyID":"kid-1"}`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "PRIVATE")
}

func TestAuthenticateErrors(t *testing.T) {
	testcases := []struct {
		Name   string
		Body   string
		Status int
	}{
		{Name: "invalid json", Body: `{"env":`, Status: http.StatusBadRequest},
		{Name: "unknown env", Body: `{"env":"moon","activationCode":"ABC123"}`, Status: http.StatusBadRequest},
		{Name: "missing code", Body: `{"env":"sandbox"}`, Status: http.StatusBadRequest},
		{Name: "rejected code", Body: `{"env":"sandbox","activationCode":"WRONG"}`, Status: http.StatusInternalServerError},
	}
	for _, tc := range testcases {
		t.Run(tc.Name, func(t *testing.T) {
			f := newFixture(t)
			rec := f.do(t, http.MethodPost, "/api/authenticate", tc.Body)
			assert.Equal(t, tc.Status, rec.Code)
			assert.Equal(t, session.Unauthenticated, f.sess.Current().State)
		})
	}
}

func TestInvoke(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/invoke", `{"api":"create-payment","body":{"amount_unit":100}}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, f.provider.Calls())

	require.Equal(t, http.StatusNoContent, f.do(t, http.MethodPost, "/api/authenticate", `{"env":"sandbox","activationCode":"ABC123"}`).Code)

	rec = f.do(t, http.MethodPost, "/api/invoke", `{"api":"create-payment","body":{"amount_unit":100}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out struct {
		Status  int         `json:"status"`
		Headers [][2]string `json:"headers"`
		Body    string      `json:"body"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, http.StatusOK, out.Status)
	assert.Contains(t, out.Headers, [2]string{"content-type", "application/json"})
	assert.Contains(t, out.Body, `"amount_unit":100`)

	calls := f.provider.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, httpsig.Digest([]byte(`{"amount_unit":100}`)), calls[0].Header.Get("Digest"))
	assert.Equal(t, "kid-1", calls[0].KeyID)

	rec = f.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "gbusiness_client_requests_total")
}

func TestInvokeValidation(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusNoContent, f.do(t, http.MethodPost, "/api/authenticate", `{"env":"sandbox","activationCode":"ABC123"}`).Code)

	for _, body := range []string{
		`{}`,
		`{"api":"nope"}`,
		`{"api":"get-payment-details"}`,
		`{"api":"create-payment","body":"text"}`,
		`not json`,
	} {
		rec := f.do(t, http.MethodPost, "/api/invoke", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	assert.Empty(t, f.provider.Calls())
}

func TestStatusFor(t *testing.T) {
	testcases := []struct {
		Err    error
		Status int
	}{
		{Err: httpsig.NewError(httpsig.ErrInvalidRequest, "x"), Status: http.StatusBadRequest},
		{Err: httpsig.NewError(httpsig.ErrUnauthenticated, "x"), Status: http.StatusUnauthorized},
		{Err: httpsig.NewError(httpsig.ErrActivation, "x"), Status: http.StatusInternalServerError},
		{Err: httpsig.NewError(httpsig.ErrTransport, "x"), Status: http.StatusInternalServerError},
		{Err: context.Canceled, Status: http.StatusInternalServerError},
	}
	for _, tc := range testcases {
		assert.Equal(t, tc.Status, statusFor(tc.Err), "%v", tc.Err)
	}
}

func TestRequestIDPropagates(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/api/session", &bytes.Buffer{})
	req.Header.Set("X-Request-ID", "rid-1")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, "rid-1", rec.Header().Get("X-Request-ID"))
	assert.JSONEq(t, `{"state":"unauthenticated"}`, rec.Body.String())
}
