package satispay

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	httpsig "github.com/leelynne/gbusiness-httpsig"
	"github.com/leelynne/gbusiness-httpsig/httpclient"
	"github.com/leelynne/gbusiness-httpsig/internal/logger"
	"github.com/leelynne/gbusiness-httpsig/session"
)

const authenticationKeysPath = "/g_business/v1/authentication_keys"

type activationRequest struct {
	PublicKey string `json:"public_key"`
	Token     string `json:"token"`
}

type activationResponse struct {
	KeyID string `json:"key_id"`
}

// Activator exchanges an activation token for a provider key id.
type Activator struct {
	sess      *session.Session
	transport httpclient.Client
	opts      Options
}

func NewActivator(sess *session.Session, transport httpclient.Client, opts Options) *Activator {
	return &Activator{sess: sess, transport: transport, opts: opts.withDefaults()}
}

// Activate generates a key pair, uploads its public half with token and, on success,
// makes the resulting credential the active one. On any failure the session is unchanged.
//
// Concurrent activations are not coordinated. The last one to succeed wins.
func (a *Activator) Activate(ctx context.Context, env session.Environment, token string) (session.Credential, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return session.Credential{}, httpsig.NewError(httpsig.ErrInvalidRequest, "Activation code is required")
	}
	base, err := a.opts.baseURL(env)
	if err != nil {
		return session.Credential{}, err
	}

	kp, err := a.opts.GenerateKey()
	if err != nil {
		return session.Credential{}, err
	}

	client := httpclient.Wrap(a.transport,
		httpclient.WithMetrics(a.opts.Metrics),
		httpclient.WithLog(a.opts.Logger, a.opts.LogOptions),
		httpclient.WithBaseURL(base),
		httpclient.WithTimeout(a.opts.Timeout),
	)
	req, err := httpclient.NewJSONRequest(http.MethodPost, authenticationKeysPath, activationRequest{
		PublicKey: kp.PublicKey,
		Token:     token,
	})
	if err != nil {
		return session.Credential{}, httpsig.NewError(httpsig.ErrInternal, "Failed to build activation request", err)
	}

	resp, err := client.Do(ctx, req)
	if err != nil {
		return session.Credential{}, err
	}
	if !resp.OK() {
		return session.Credential{}, httpsig.NewError(httpsig.ErrActivation, fmt.Sprintf("Provider rejected activation with status %d", resp.StatusCode))
	}
	var out activationResponse
	if err := resp.JSON(&out); err != nil {
		return session.Credential{}, httpsig.NewError(httpsig.ErrActivation, "Provider returned a malformed activation response", err)
	}
	if out.KeyID == "" {
		return session.Credential{}, httpsig.NewError(httpsig.ErrActivation, "Provider returned no key_id")
	}

	cred := session.Credential{
		KeyID:       out.KeyID,
		KeyPair:     kp,
		Environment: env,
	}
	if err := a.sess.SetAuthenticated(ctx, cred); err != nil {
		return session.Credential{}, httpsig.NewError(httpsig.ErrActivation, "Failed to store the activated credential", err)
	}
	a.opts.Logger.Info("key activated", logger.KeyID(cred.KeyID), logger.Environment(string(env)))
	return cred, nil
}
