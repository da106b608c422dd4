// Package satispay talks to the Satispay g_business API: key activation and the
// signed payment operations.
package satispay

import (
	"net/url"
	"time"

	"go.uber.org/zap"

	httpsig "github.com/leelynne/gbusiness-httpsig"
	"github.com/leelynne/gbusiness-httpsig/httpclient"
	"github.com/leelynne/gbusiness-httpsig/keyutil"
	"github.com/leelynne/gbusiness-httpsig/session"
)

// Options are shared by Activator and Client. The zero value is usable.
type Options struct {
	Logger     *zap.Logger
	LogOptions httpclient.LogOptions
	Metrics    *httpclient.Metrics
	// Timeout bounds every provider call. Zero means no deadline beyond the caller's context.
	Timeout time.Duration
	// Endpoints overrides the API root per environment.
	Endpoints map[session.Environment]string
	// GenerateKey defaults to keyutil.GenerateKeyPair.
	GenerateKey func() (keyutil.KeyPair, error)
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.GenerateKey == nil {
		o.GenerateKey = keyutil.GenerateKeyPair
	}
	return o
}

// baseURL returns the API root for env, honouring overrides.
func (o Options) baseURL(env session.Environment) (*url.URL, error) {
	if !env.Valid() {
		return nil, httpsig.NewError(httpsig.ErrInvalidRequest, "Unknown environment '"+string(env)+"'")
	}
	if raw, ok := o.Endpoints[env]; ok && raw != "" {
		u, err := url.Parse(raw)
		if err != nil {
			return nil, httpsig.NewError(httpsig.ErrInvalidRequest, "Invalid endpoint override for '"+string(env)+"'", err)
		}
		return u, nil
	}
	return env.BaseURL()
}
