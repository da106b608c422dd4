package session

import (
	"fmt"
	"net/url"
	"strings"

	httpsig "github.com/leelynne/gbusiness-httpsig"
	"github.com/leelynne/gbusiness-httpsig/keyutil"
)

// Environment selects the provider deployment.
type Environment string

const (
	Sandbox    Environment = "sandbox"
	Production Environment = "production"
)

var endpoints = map[Environment]string{
	Sandbox:    "https://staging.authservices.satispay.com",
	Production: "https://authservices.satispay.com",
}

// ParseEnvironment accepts "sandbox" or "production", case insensitive.
func ParseEnvironment(s string) (Environment, error) {
	env := Environment(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := endpoints[env]; !ok {
		return "", httpsig.NewError(httpsig.ErrInvalidRequest, fmt.Sprintf("Unknown environment '%s'", s))
	}
	return env, nil
}

func (e Environment) Valid() bool {
	_, ok := endpoints[e]
	return ok
}

// BaseURL returns the API root for e.
func (e Environment) BaseURL() (*url.URL, error) {
	raw, ok := endpoints[e]
	if !ok {
		return nil, httpsig.NewError(httpsig.ErrInvalidRequest, fmt.Sprintf("Unknown environment '%s'", e))
	}
	return url.Parse(raw)
}

// Credential is an activated key pair. It is replaced as a whole, never edited.
type Credential struct {
	KeyID       string
	KeyPair     keyutil.KeyPair
	Environment Environment
}

// Validate checks that the credential is complete and that its private key parses.
func (c Credential) Validate() error {
	if c.KeyID == "" {
		return httpsig.NewError(httpsig.ErrInvalidRequest, "Credential has no key id")
	}
	if !c.Environment.Valid() {
		return httpsig.NewError(httpsig.ErrInvalidRequest, fmt.Sprintf("Credential has unknown environment '%s'", c.Environment))
	}
	if _, err := c.KeyPair.RSAPrivateKey(); err != nil {
		return httpsig.NewError(httpsig.ErrInvalidRequest, "Credential private key is unreadable", err)
	}
	return nil
}

// Signer returns a request signer for the credential.
func (c Credential) Signer() (*httpsig.Signer, error) {
	pk, err := c.KeyPair.RSAPrivateKey()
	if err != nil {
		return nil, httpsig.NewError(httpsig.ErrInvalidSignatureOptions, "Credential private key is unreadable", err)
	}
	return httpsig.NewSigner(httpsig.SigningOptions{
		KeyID:      c.KeyID,
		PrivateKey: pk,
	})
}

func (c Credential) String() string {
	return fmt.Sprintf("Credential{KeyID:%s Environment:%s}", c.KeyID, c.Environment)
}

func (c Credential) GoString() string {
	return c.String()
}
