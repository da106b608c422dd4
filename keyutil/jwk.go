package keyutil

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
)

// ReadJWK parses a JSON Web Key.
func ReadJWK(jwkBytes []byte) (JWK, error) {
	base := jwk{}
	err := json.Unmarshal(jwkBytes, &base)
	if err != nil {
		return JWK{}, fmt.Errorf("Failed to json parse JWK public key: %w", err)
	}
	return JWK{
		KeyType:   base.KeyType,
		Algorithm: base.Algo,
		KeyID:     base.KeyID,
		raw:       json.RawMessage(jwkBytes),
	}, nil
}

// ReadJWKFromPEM converts a PEM encoded public key to JWK
func ReadJWKFromPEM(pubkeyBytes []byte, keyID string) (JWK, error) {
	pub, err := ReadPublicKey(pubkeyBytes)
	if err != nil {
		return JWK{}, err
	}
	return FromPublicKey(pub, keyID)
}

// FromPublicKey builds a public JWK. Only RSA keys are supported.
func FromPublicKey(pub crypto.PublicKey, keyID string) (JWK, error) {
	switch key := pub.(type) {
	case *rsa.PublicKey:
		j := jwkRSA{
			jwk: jwk{
				KeyType: "RSA",
				Algo:    "RS256",
				KeyID:   keyID,
			},
			N: octet{key.N},
			E: octet{big.NewInt(int64(key.E))},
		}
		out, err := json.Marshal(j)
		if err != nil {
			return JWK{}, fmt.Errorf("Error marshalling JWK: %w", err)
		}
		return JWK{
			KeyType:   "RSA",
			Algorithm: "RS256",
			KeyID:     keyID,
			raw:       out,
		}, nil
	default:
		return JWK{}, fmt.Errorf("Unsupported public key type '%T'", pub)
	}
}

// JWK provides basic data and usage for a JWK.
type JWK struct {
	KeyType   string // 'kty'
	Algorithm string // 'alg'
	KeyID     string // 'kid'
	raw       json.RawMessage
}

func (ji *JWK) PublicKey() (crypto.PublicKey, error) {
	switch ji.KeyType {
	case "RSA":
		j := jwkRSA{}
		err := json.Unmarshal(ji.raw, &j)
		if err != nil {
			return nil, fmt.Errorf("Failed to json parse JWK into key type 'RSA': %w", err)
		}
		return j.PublicKey()
	}

	return nil, fmt.Errorf("Unsupported key type for PublicKey '%s'", ji.KeyType)
}

// Thumbprint returns the RFC 7638 SHA-256 thumbprint, base64url encoded.
func (ji *JWK) Thumbprint() (string, error) {
	if ji.KeyType != "RSA" {
		return "", fmt.Errorf("Unsupported key type for Thumbprint '%s'", ji.KeyType)
	}
	j := jwkRSA{}
	if err := json.Unmarshal(ji.raw, &j); err != nil {
		return "", fmt.Errorf("Failed to json parse JWK into key type 'RSA': %w", err)
	}
	// Members in lexicographic order with no whitespace.
	e, _ := j.E.MarshalJSON()
	n, _ := j.N.MarshalJSON()
	canonical := fmt.Sprintf(`{"e":%s,"kty":"RSA","n":%s}`, e, n)
	sum := sha256.Sum256([]byte(canonical))
	return base64.RawURLEncoding.EncodeToString(sum[:]), nil
}

// octet represents the data for base64 URL encoded data as specified by JWKs.
type octet struct {
	*big.Int
}

func (ob octet) MarshalJSON() ([]byte, error) {
	out := fmt.Sprintf("\"%s\"", base64.RawURLEncoding.EncodeToString(ob.Bytes()))
	return []byte(out), nil
}

func (ob *octet) UnmarshalJSON(data []byte) error {
	// data is the json value and must be unmarshaled into a go string first
	encoded := ""
	err := json.Unmarshal(data, &encoded)
	if err != nil {
		return err
	}

	rawBytes, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("Failed to base64 decode: %w", err)
	}

	x := new(big.Int)
	x.SetBytes(rawBytes)
	*ob = octet{x}

	return nil
}

type jwk struct {
	KeyType string `json:"kty"`           // kty  algorithm family used with the key such as "RSA" or "EC".
	Algo    string `json:"alg,omitempty"` // alg identifies the algorithm intended for use with the key.
	KeyID   string `json:"kid,omitempty"` // Used to match a specific key
}

type jwkRSA struct {
	jwk
	N octet `json:"n"` // modulus
	E octet `json:"e"` // public exponent
}

func (j *jwkRSA) PublicKey() (*rsa.PublicKey, error) {
	if j.N.Int == nil || j.E.Int == nil {
		return nil, fmt.Errorf("RSA JWK requires 'n' and 'e'")
	}
	if !j.E.IsInt64() || j.E.Int64() > int64(^uint32(0)>>1) {
		return nil, fmt.Errorf("RSA JWK exponent is out of range")
	}
	return &rsa.PublicKey{
		N: j.N.Int,
		E: int(j.E.Int64()),
	}, nil
}

func (jwk JWK) MarshalJSON() ([]byte, error) {
	return jwk.raw, nil
}
