package httpsig

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"slices"
	"time"
)

var (
	DefaultVerifyProfile = VerifyProfile{
		AllowedAlgorithms: []Algorithm{Algo_RSA_SHA256},
		RequiredHeaders:   signedHeaders,
		DateSkew:          time.Minute * 5, // The Date header must be within 5 minutes of the verifier clock.
	}
)

type KeySpec struct {
	KeyID  string
	Algo   Algorithm
	PubKey crypto.PublicKey
}

type KeyFetcher interface {
	// FetchByKeyID looks up a KeySpec from the 'keyId' parameter of the signature.
	FetchByKeyID(keyID string) (KeySpec, error)
}

// VerifyProfile sets the parameters for a fully valid request.
type VerifyProfile struct {
	AllowedAlgorithms []Algorithm
	RequiredHeaders   []string // Headers that must be covered by the signature.

	DisableTimeEnforcement bool
	DateSkew               time.Duration // Maximum duration allowed between time.Now and the Date header

	nowTime func() time.Time
}

type VerifyResult struct {
	KeyID     string
	Algorithm Algorithm
	Headers   []string
}

type Verifier struct {
	keys    KeyFetcher
	profile VerifyProfile
}

// Verify validates the signature of a request and ensures the signature meets the required profile.
func Verify(req *http.Request, kf KeyFetcher, profile VerifyProfile) (VerifyResult, error) {
	ver, err := NewVerifier(kf, profile)
	if err != nil {
		return VerifyResult{}, err
	}
	return ver.Verify(req)
}

func NewVerifier(kf KeyFetcher, profile VerifyProfile) (*Verifier, error) {
	if kf == nil {
		return nil, NewError(ErrInvalidSignatureOptions, "A KeyFetcher is required")
	}
	if profile.nowTime == nil {
		profile.nowTime = time.Now
	}
	return &Verifier{
		keys:    kf,
		profile: profile,
	}, nil
}

// Verify checks the Authorization signature and the Digest of req. The body is read and replaced with a re-readable copy.
func (ver *Verifier) Verify(req *http.Request) (VerifyResult, error) {
	ap, err := parseAuthorization(req.Header.Get("Authorization"))
	if err != nil {
		return VerifyResult{}, err
	}
	if err := ver.profile.validate(ap, req.Header.Get("Date")); err != nil {
		return VerifyResult{}, err
	}

	body, newBody, err := readBody(req.Body)
	if err != nil {
		return VerifyResult{}, err
	}
	req.Body = newBody
	if slices.Contains(ap.Headers, "digest") {
		if err := checkDigest(req.Header.Get("Digest"), body); err != nil {
			return VerifyResult{}, err
		}
	}

	base, err := signingStringFor(req, ap.Headers)
	if err != nil {
		return VerifyResult{}, err
	}

	ks, err := ver.keys.FetchByKeyID(ap.KeyID)
	if err != nil {
		return VerifyResult{}, NewError(ErrKeyFetch, fmt.Sprintf("Failed to fetch key for keyid '%s'", ap.KeyID), err)
	}
	if ks.Algo != "" && ks.Algo != ap.Algorithm {
		return VerifyResult{}, NewError(ErrInvalidAlgorithm, fmt.Sprintf("Algorithm '%s' does not match the key algorithm '%s'", ap.Algorithm, ks.Algo))
	}

	sig, err := base64.StdEncoding.DecodeString(ap.Signature)
	if err != nil {
		return VerifyResult{}, NewError(ErrInvalidSignature, "Signature is not valid base64", err)
	}

	switch ap.Algorithm {
	case Algo_RSA_SHA256:
		rsapub, ok := ks.PubKey.(*rsa.PublicKey)
		if !ok {
			return VerifyResult{}, NewError(ErrInvalidSignatureOptions, fmt.Sprintf("Invalid public key. Requires *rsa.PublicKey but got type: %T", ks.PubKey))
		}
		msgHash := sha256.Sum256([]byte(base))
		if err := rsa.VerifyPKCS1v15(rsapub, crypto.SHA256, msgHash[:], sig); err != nil {
			return VerifyResult{}, NewError(ErrVerification, fmt.Sprintf("Signature did not verify for algo '%s'", ap.Algorithm), err)
		}
	default:
		return VerifyResult{}, NewError(ErrInvalidAlgorithm, fmt.Sprintf("Invalid verification algorithm '%s'", ap.Algorithm))
	}

	return VerifyResult{
		KeyID:     ap.KeyID,
		Algorithm: ap.Algorithm,
		Headers:   ap.Headers,
	}, nil
}

func (vp VerifyProfile) validate(ap authorizationParams, dateHeader string) error {
	if len(vp.AllowedAlgorithms) > 0 && !slices.Contains(vp.AllowedAlgorithms, ap.Algorithm) {
		return NewError(ErrInvalidAlgorithm, fmt.Sprintf("Algorithm '%s' is not allowed", ap.Algorithm))
	}
	for _, required := range vp.RequiredHeaders {
		if !slices.Contains(ap.Headers, required) {
			return NewError(ErrInvalidSignature, fmt.Sprintf("Required header '%s' is not covered by the signature", required))
		}
	}
	if vp.DisableTimeEnforcement || vp.DateSkew == 0 || !slices.Contains(ap.Headers, "date") {
		return nil
	}
	date, err := http.ParseTime(dateHeader)
	if err != nil {
		return NewError(ErrInvalidHeader, "Date header is not a valid HTTP date", err)
	}
	skew := vp.nowTime().Sub(date)
	if skew < 0 {
		skew = -skew
	}
	if skew > vp.DateSkew {
		return NewError(ErrVerification, fmt.Sprintf("Date header is outside the allowed skew of %s", vp.DateSkew))
	}
	return nil
}
