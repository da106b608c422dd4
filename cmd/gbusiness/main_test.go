package main

import (
	"context"
	"crypto/rand"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/leelynne/gbusiness-httpsig/keyutil"
	"github.com/leelynne/gbusiness-httpsig/session"
)

func activeSession(t *testing.T) *session.Session {
	t.Helper()
	kp, err := keyutil.GenerateKeyPairBits(rand.Reader, 2048)
	require.NoError(t, err)
	sess := session.New(nil)
	require.NoError(t, sess.SetAuthenticated(context.Background(), session.Credential{
		KeyID:       "kid-proxy",
		KeyPair:     kp,
		Environment: session.Sandbox,
	}))
	return sess
}

func proxiedClient(t *testing.T, proxyURL string) *http.Client {
	t.Helper()
	u, err := url.Parse(proxyURL)
	require.NoError(t, err)
	return &http.Client{Transport: &http.Transport{Proxy: http.ProxyURL(u)}}
}

func TestSigningProxy(t *testing.T) {
	sess := activeSession(t)

	verify, err := newVerifyHandler(sess, zap.NewNop())
	require.NoError(t, err)
	backend := httptest.NewServer(verify)
	defer backend.Close()

	proxy := httptest.NewServer(newSigningProxy(sess, zap.NewNop()))
	defer proxy.Close()

	resp, err := proxiedClient(t, proxy.URL).Post(backend.URL+"/g_business/v1/payments?x=1", "application/json", strings.NewReader(`{"amount_unit":100}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, "Success! keyId=kid-proxy\n", string(body))
}

func TestSigningProxyUnauthenticated(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("request must not reach the backend")
	}))
	defer backend.Close()

	proxy := httptest.NewServer(newSigningProxy(session.New(nil), zap.NewNop()))
	defer proxy.Close()

	resp, err := proxiedClient(t, proxy.URL).Get(backend.URL + "/x")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestVerifyHandlerRejectsUnsigned(t *testing.T) {
	h, err := newVerifyHandler(activeSession(t), zap.NewNop())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing_signature")

	_, err = newVerifyHandler(session.New(nil), zap.NewNop())
	assert.Error(t, err)
}

func TestReadBodyArg(t *testing.T) {
	raw, err := readBodyArg(nil, `{"a":1}`, "")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(raw))

	raw, err = readBodyArg(strings.NewReader(`{"b":2}`), "", "-")
	require.NoError(t, err)
	assert.Equal(t, `{"b":2}`, string(raw))

	raw, err = readBodyArg(nil, "", "")
	require.NoError(t, err)
	assert.Nil(t, raw)

	_, err = readBodyArg(nil, "{}", "f.json")
	assert.Error(t, err)
}
