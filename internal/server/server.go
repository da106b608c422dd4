// Package server exposes activation and signed provider calls as a small JSON API.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	httpsig "github.com/leelynne/gbusiness-httpsig"
	"github.com/leelynne/gbusiness-httpsig/internal/logger"
	"github.com/leelynne/gbusiness-httpsig/satispay"
	"github.com/leelynne/gbusiness-httpsig/session"
)

const maxBody = 1 << 20

// Deps are the collaborators of the API. Metrics may be nil.
type Deps struct {
	Session   *session.Session
	Activator *satispay.Activator
	Client    *satispay.Client
	Logger    *zap.Logger
	Metrics   http.Handler
}

type api struct {
	Deps
}

// NewRouter returns the HTTP handler for the API.
func NewRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	a := &api{Deps: d}

	r := chi.NewRouter()
	r.Use(withRequestID, withLogging(d.Logger))
	r.Route("/api", func(r chi.Router) {
		r.Post("/authenticate", a.authenticate)
		r.Post("/invoke", a.invoke)
		r.Get("/session", a.session)
	})
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}
	return r
}

type authenticateBody struct {
	Env            string `json:"env"`
	ActivationCode string `json:"activationCode"`
}

func (a *api) authenticate(w http.ResponseWriter, r *http.Request) {
	var in authenticateBody
	if !readJSON(w, r, &in) {
		return
	}
	env, err := session.ParseEnvironment(in.Env)
	if err != nil {
		a.fail(w, r, "authenticate", err)
		return
	}
	if _, err := a.Activator.Activate(r.Context(), env, in.ActivationCode); err != nil {
		a.fail(w, r, "authenticate", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type invokeBody struct {
	API      string              `json:"api"`
	Body     json.RawMessage     `json:"body,omitempty"`
	EntityID string              `json:"entityID,omitempty"`
	Query    map[string][]string `json:"query,omitempty"`
}

type invokeResult struct {
	Status  int         `json:"status"`
	Headers [][2]string `json:"headers"`
	Body    string      `json:"body"`
}

func (a *api) invoke(w http.ResponseWriter, r *http.Request) {
	var in invokeBody
	if !readJSON(w, r, &in) {
		return
	}
	if in.API == "" {
		a.fail(w, r, "invoke", httpsig.NewError(httpsig.ErrInvalidRequest, "Field 'api' is required"))
		return
	}
	resp, err := a.Client.Invoke(r.Context(), satispay.InvokeRequest{
		API:      satispay.API(in.API),
		EntityID: in.EntityID,
		Body:     in.Body,
		Query:    in.Query,
	})
	if err != nil {
		a.fail(w, r, "invoke", err)
		return
	}
	writeJSON(w, http.StatusOK, invokeResult{
		Status:  resp.StatusCode,
		Headers: collectHeaders(resp.Header),
		Body:    resp.Text(),
	})
}

type sessionResult struct {
	State       string `json:"state"`
	Environment string `json:"environment,omitempty"`
	KeyID       string `json:"keyID,omitempty"`
}

func (a *api) session(w http.ResponseWriter, _ *http.Request) {
	cur := a.Session.Current()
	out := sessionResult{State: cur.State.String()}
	if cur.State == session.Authenticated {
		out.Environment = string(cur.Credential.Environment)
		out.KeyID = cur.Credential.KeyID
	}
	writeJSON(w, http.StatusOK, out)
}

// collectHeaders flattens h into lowercased name/value pairs sorted by name.
func collectHeaders(h http.Header) [][2]string {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([][2]string, 0, len(names))
	for _, name := range names {
		for _, v := range h[name] {
			out = append(out, [2]string{strings.ToLower(name), v})
		}
	}
	return out
}

func (a *api) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	log := logger.From(r.Context(), a.Logger).With(logger.Op(op))
	if status >= http.StatusInternalServerError {
		log.Error("request failed", logger.Err(err))
	} else {
		log.Info("request rejected", logger.Err(err))
	}

	code := httpsig.CodeOf(err)
	switch status {
	case http.StatusBadRequest:
		desc := ""
		var e *httpsig.Error
		if errors.As(err, &e) {
			desc = e.Message
		}
		writeError(w, status, string(code), desc)
	case http.StatusUnauthorized:
		writeError(w, status, string(httpsig.ErrUnauthenticated), "No active credential")
	default:
		writeError(w, status, "internal_error", "")
	}
}

// statusFor maps an error code onto the fixed API statuses.
func statusFor(err error) int {
	switch httpsig.CodeOf(err) {
	case httpsig.ErrInvalidRequest:
		return http.StatusBadRequest
	case httpsig.ErrUnauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

type apiError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
	RequestID        string `json:"request_id,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, desc string) {
	writeJSON(w, status, apiError{
		Error:            code,
		ErrorDescription: desc,
		RequestID:        w.Header().Get(requestIDHeader),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// readJSON decodes the request body into v, answering 400 itself on failure.
func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && err != io.EOF {
		writeError(w, http.StatusBadRequest, string(httpsig.ErrInvalidRequest), "Invalid JSON body")
		return false
	}
	return true
}
