package httpsig

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

type Algorithm string

// ErrCode enumerates the reasons a signing, verification or signed call can fail
type ErrCode string

const (
	// Supported signing algorithms
	Algo_RSA_SHA256 Algorithm = "rsa-sha256"

	// Error Codes
	ErrKeyGeneration           ErrCode = "key_generation"   // The key pair could not be generated.
	ErrUnsupportedBody         ErrCode = "unsupported_body" // The body is not text and cannot be signed.
	ErrUnauthenticated         ErrCode = "unauthenticated"  // A signed call was attempted without an active credential.
	ErrActivation              ErrCode = "activation"       // The provider rejected or garbled the key activation.
	ErrTransport               ErrCode = "transport"        // Network, DNS or TLS failure.
	ErrInvalidRequest          ErrCode = "invalid_request"
	ErrInvalidSignatureOptions ErrCode = "invalid_signature_options"
	ErrInvalidSignature        ErrCode = "invalid_signature"
	ErrInvalidAlgorithm        ErrCode = "invalid_algorithm"
	ErrInvalidHeader           ErrCode = "invalid_header"
	ErrInvalidDigest           ErrCode = "invalid_digest"
	ErrMissingSignature        ErrCode = "missing_signature"
	ErrVerification            ErrCode = "verification" // The signature did not verify according to the algorithm.
	ErrKeyFetch                ErrCode = "key_fetch"    // An error looking up the key for a signature
	ErrInternal                ErrCode = "internal"
)

// Error is returned by every layer of the signed client. Message and Cause never carry key material.
type Error struct {
	Cause   error // may be nil
	Code    ErrCode
	Message string
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) GoString() string {
	cause := ""
	if e.Cause != nil {
		cause = fmt.Sprintf("Cause: %s\n", e.Cause)
	}
	return fmt.Sprintf("Code: %s\nMessage: %s\n%s", e.Code, e.Message, cause)
}

// NewError creates an Error. Only the first cause is kept.
func NewError(code ErrCode, msg string, cause ...error) *Error {
	var rootErr error
	if len(cause) > 0 {
		rootErr = cause[0]
	}
	return &Error{
		Cause:   rootErr,
		Code:    code,
		Message: msg,
	}
}

// CodeOf returns the code of the first *Error in the chain or an empty code.
func CodeOf(err error) ErrCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrCode) bool {
	return err != nil && CodeOf(err) == code
}

type SigningOptions struct {
	KeyID      string            // Required. The provider issued key identifier.
	PrivateKey crypto.PrivateKey // Required. Must be an *rsa.PrivateKey.
	Algorithm  Algorithm         // Defaults to Algo_RSA_SHA256

	// Now is the clock used for the Date header. Defaults to time.Now.
	Now func() time.Time
	// Rand is the entropy source handed to the signing primitive. PKCS#1 v1.5 is deterministic so it is only used for blinding.
	Rand io.Reader
}

// Message is the part of an outgoing request covered by the signature.
type Message struct {
	Method string
	Target string // path and query, e.g. /g_business/v1/payments?limit=10
	Host   string
	Body   []byte // nil is signed as an empty body
}

// Material is the header set produced for one request. It is request specific and must never be reused.
type Material struct {
	Digest        string
	Date          string
	Authorization string
	Host          string
}

// Apply merges the material into h replacing any existing values.
func (m Material) Apply(h http.Header) {
	h.Set("Authorization", m.Authorization)
	h.Set("Digest", m.Digest)
	h.Set("Date", m.Date)
	if m.Host != "" {
		h.Set("Host", m.Host)
	}
}

func Sign(req *http.Request, params SigningOptions) error {
	s, err := NewSigner(params)
	if err != nil {
		return err
	}
	return s.Sign(req)
}

type Signer struct {
	options SigningOptions
	key     *rsa.PrivateKey
}

func NewSigner(params SigningOptions) (*Signer, error) {
	err := params.validate()
	if err != nil {
		return nil, err
	}
	opts := params.withDefaults()
	return &Signer{
		options: opts,
		key:     opts.PrivateKey.(*rsa.PrivateKey),
	}, nil
}

// KeyID returns the key identifier placed in the Authorization header.
func (s *Signer) KeyID() string {
	return s.options.KeyID
}

// SignMessage computes the Digest, Date and Authorization values for msg.
func (s *Signer) SignMessage(msg Message) (Material, error) {
	if !utf8.Valid(msg.Body) {
		return Material{}, NewError(ErrUnsupportedBody, "Body must be text to be signed")
	}
	digest := digestHeader(msg.Body)
	// Captured once so the canonical string and the Date header agree.
	date := s.options.Now().UTC().Format(http.TimeFormat)

	base := signingString(msg.Method, msg.Target, msg.Host, date, digest)
	msgHash := sha256.Sum256([]byte(base))
	sigBytes, err := rsa.SignPKCS1v15(s.options.Rand, s.key, crypto.SHA256, msgHash[:])
	if err != nil {
		return Material{}, NewError(ErrInternal, "Failed to sign RSA v1.5", err)
	}

	auth, err := formatAuthorization(authorizationParams{
		KeyID:     s.options.KeyID,
		Algorithm: s.options.Algorithm,
		Headers:   signedHeaders,
		Signature: base64.StdEncoding.EncodeToString(sigBytes),
	})
	if err != nil {
		return Material{}, err
	}

	return Material{
		Digest:        digest,
		Date:          date,
		Authorization: auth,
		Host:          msg.Host,
	}, nil
}

// Sign signs a standard library request in place. The body is read fully and replaced with a re-readable copy.
func (s *Signer) Sign(req *http.Request) error {
	if req.URL == nil {
		return NewError(ErrInvalidSignatureOptions, "Request has no URL")
	}
	body, newBody, err := readBody(req.Body)
	if err != nil {
		return err
	}
	req.Body = newBody

	host := req.Host
	if host == "" {
		host = req.URL.Host
	}
	m, err := s.SignMessage(Message{
		Method: req.Method,
		Target: req.URL.RequestURI(),
		Host:   host,
		Body:   body,
	})
	if err != nil {
		return err
	}
	m.Apply(req.Header)
	req.Host = host
	return nil
}

func (so SigningOptions) validate() error {
	if so.KeyID == "" {
		return NewError(ErrInvalidSignatureOptions, "Missing required signing option 'KeyID'")
	}
	if !isSafeString(so.KeyID) {
		return NewError(ErrInvalidSignatureOptions, "'KeyID' can only contain printable ASCII characters")
	}
	if strings.ContainsAny(so.KeyID, `"\`) {
		return NewError(ErrInvalidSignatureOptions, "'KeyID' cannot contain quotes or backslashes")
	}
	if so.PrivateKey == nil {
		return NewError(ErrInvalidSignatureOptions, "Missing required signing option 'PrivateKey'")
	}
	if _, ok := so.PrivateKey.(*rsa.PrivateKey); !ok {
		return NewError(ErrInvalidSignatureOptions, fmt.Sprintf("Invalid private key. Requires *rsa.PrivateKey: %T", so.PrivateKey))
	}
	if so.Algorithm != "" && so.Algorithm != Algo_RSA_SHA256 {
		return NewError(ErrInvalidAlgorithm, fmt.Sprintf("Signing algorithm not supported: '%s'", so.Algorithm))
	}
	return nil
}

func (so SigningOptions) withDefaults() SigningOptions {
	final := SigningOptions{
		KeyID:      so.KeyID,
		PrivateKey: so.PrivateKey,
		Algorithm:  so.Algorithm,
		Now:        so.Now,
		Rand:       so.Rand,
	}
	if final.Algorithm == "" {
		final.Algorithm = Algo_RSA_SHA256
	}
	if final.Now == nil {
		final.Now = time.Now
	}
	if final.Rand == nil {
		final.Rand = rand.Reader
	}
	return final
}

func isSafeString(s string) bool {
	for _, c := range s {
		if c < 0x20 || c > 0x7e {
			return false
		}
	}
	return true
}
