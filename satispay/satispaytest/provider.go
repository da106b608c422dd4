// Package satispaytest provides an in-process fake of the provider API for tests.
//
// The fake registers uploaded public keys on activation and verifies the HTTP
// signature of every other call against them.
package satispaytest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/go-chi/chi/v5"

	httpsig "github.com/leelynne/gbusiness-httpsig"
	"github.com/leelynne/gbusiness-httpsig/keyman"
	"github.com/leelynne/gbusiness-httpsig/session"
)

// Call is a request the fake accepted after signature verification.
type Call struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   []byte
	KeyID  string
}

type Provider struct {
	*httptest.Server
	Keys *keyman.KeyFetchInMemory

	mu               sync.Mutex
	tokens           map[string]string
	activationStatus int
	activations      int
	calls            []Call
	verifier         *httpsig.Verifier
}

// NewProvider starts the fake. Call Close when done.
func NewProvider() *Provider {
	p := &Provider{
		Keys:   keyman.NewKeyFetchInMemory(nil),
		tokens: map[string]string{},
	}
	p.verifier, _ = httpsig.NewVerifier(p.Keys, httpsig.DefaultVerifyProfile)

	r := chi.NewRouter()
	r.Post("/g_business/v1/authentication_keys", p.activate)
	r.HandleFunc("/g_business/*", p.signed)
	r.HandleFunc("/wally-services/*", p.signed)
	p.Server = httptest.NewServer(r)
	return p
}

// AcceptToken makes token activate to keyID. Unknown tokens get a 404.
func (p *Provider) AcceptToken(token, keyID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokens[token] = keyID
}

// FailActivation makes every activation answer with status. Zero restores normal behaviour.
func (p *Provider) FailActivation(status int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.activationStatus = status
}

// Endpoints points every environment at the fake.
func (p *Provider) Endpoints() map[session.Environment]string {
	return map[session.Environment]string{
		session.Sandbox:    p.URL,
		session.Production: p.URL,
	}
}

// Calls returns the signed calls accepted so far.
func (p *Provider) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Call(nil), p.calls...)
}

// Activations returns the number of activation requests received.
func (p *Provider) Activations() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.activations
}

func (p *Provider) activate(w http.ResponseWriter, r *http.Request) {
	var in struct {
		PublicKey string `json:"public_key"`
		Token     string `json:"token"`
	}
	p.mu.Lock()
	p.activations++
	status := p.activationStatus
	p.mu.Unlock()

	if status != 0 {
		writeJSON(w, status, map[string]string{"message": http.StatusText(status)})
		return
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.PublicKey == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid body"})
		return
	}

	p.mu.Lock()
	keyID, ok := p.tokens[in.Token]
	p.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "token not found"})
		return
	}
	if err := p.Keys.RegisterPEM(keyID, in.PublicKey); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid public key"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"key_id": keyID})
}

func (p *Provider) signed(w http.ResponseWriter, r *http.Request) {
	res, err := p.verifier.Verify(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"code":    string(httpsig.CodeOf(err)),
			"message": err.Error(),
		})
		return
	}
	body, _ := io.ReadAll(r.Body)

	p.mu.Lock()
	p.calls = append(p.calls, Call{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Header: r.Header.Clone(),
		Body:   body,
		KeyID:  res.KeyID,
	})
	n := len(p.calls)
	p.mu.Unlock()

	out := map[string]any{
		"id":     fmt.Sprintf("obj-%d", n),
		"method": r.Method,
		"path":   r.URL.Path,
	}
	if len(body) > 0 {
		out["request"] = json.RawMessage(body)
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
