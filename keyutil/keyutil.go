package keyutil

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"io"
	"os"

	httpsig "github.com/leelynne/gbusiness-httpsig"
)

// Private or public key schema
type Format string

const (
	// Hints for reading key
	PKCS1 Format = "pkcs1"
	PKCS8 Format = "pkcs8"
	PKIX  Format = "pxix"

	// DefaultKeyBits is the RSA modulus length used for provider keys.
	DefaultKeyBits = 4096

	pemRSAPrivate = "RSA PRIVATE KEY"
	pemRSAPublic  = "RSA PUBLIC KEY"
	pemPrivate    = "PRIVATE KEY"
	pemPublic     = "PUBLIC KEY"
)

// KeyPair holds both halves of a key pair as PEM text. PrivateKey must never be logged or transmitted.
type KeyPair struct {
	PublicKey  string
	PrivateKey string
}

// GoString hides the private half when a KeyPair is printed with %#v.
func (kp KeyPair) GoString() string {
	return fmt.Sprintf("keyutil.KeyPair{PublicKey:%q, PrivateKey:<redacted>}", kp.PublicKey)
}

// String hides the private half when a KeyPair is printed with %v or %s.
func (kp KeyPair) String() string {
	return kp.GoString()
}

// GenerateKeyPair generates an RSA 4096 key pair encoded as PKCS#1 PEM.
func GenerateKeyPair() (KeyPair, error) {
	return GenerateKeyPairBits(rand.Reader, DefaultKeyBits)
}

// GenerateKeyPairBits generates an RSA key pair of the given size from the supplied entropy source.
func GenerateKeyPairBits(random io.Reader, bits int) (KeyPair, error) {
	pk, err := rsa.GenerateKey(random, bits)
	if err != nil {
		return KeyPair{}, httpsig.NewError(httpsig.ErrKeyGeneration, fmt.Sprintf("Failed to generate %d bit RSA key", bits), err)
	}
	return EncodeKeyPair(pk), nil
}

// EncodeKeyPair PEM encodes both halves of pk with PKCS#1.
func EncodeKeyPair(pk *rsa.PrivateKey) KeyPair {
	priv := pem.EncodeToMemory(&pem.Block{
		Type:  pemRSAPrivate,
		Bytes: x509.MarshalPKCS1PrivateKey(pk),
	})
	pub := pem.EncodeToMemory(&pem.Block{
		Type:  pemRSAPublic,
		Bytes: x509.MarshalPKCS1PublicKey(&pk.PublicKey),
	})
	return KeyPair{
		PublicKey:  string(pub),
		PrivateKey: string(priv),
	}
}

// RSAPrivateKey parses the private half.
func (kp KeyPair) RSAPrivateKey() (*rsa.PrivateKey, error) {
	key, err := ReadPrivateKey([]byte(kp.PrivateKey))
	if err != nil {
		return nil, err
	}
	rsapk, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("Private key is not an RSA key: %T", key)
	}
	return rsapk, nil
}

// RSAPublicKey parses the public half.
func (kp KeyPair) RSAPublicKey() (*rsa.PublicKey, error) {
	key, err := ReadPublicKey([]byte(kp.PublicKey))
	if err != nil {
		return nil, err
	}
	rsapub, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("Public key is not an RSA key: %T", key)
	}
	return rsapub, nil
}

// MustReadPublicKeyFile reads a PEM encoded public key file or panics
func MustReadPublicKeyFile(pubkeyFile string, override ...Format) crypto.PublicKey {
	pk, err := ReadPublicKeyFile(pubkeyFile, override...)
	if err != nil {
		panic(err)
	}
	return pk
}

// ReadPublicKeyFile reads a PEM encdoded public key file and parses into crypto.PublicKey
func ReadPublicKeyFile(pubkeyFile string, override ...Format) (crypto.PublicKey, error) {
	keyBytes, err := os.ReadFile(pubkeyFile)
	if err != nil {
		return nil, fmt.Errorf("Failed to read public key file '%s': %w", pubkeyFile, err)
	}
	return ReadPublicKey(keyBytes, override...)
}

// ReadPublicKey decodes a PEM encoded public key and parses into crypto.PublicKey.
// The format is taken from the PEM block type unless overridden.
func ReadPublicKey(encodedPubkey []byte, override ...Format) (crypto.PublicKey, error) {
	block, _ := pem.Decode(encodedPubkey)
	if block == nil {
		return nil, fmt.Errorf("Failed to PEM decode public key")
	}
	var key crypto.PublicKey
	var err error

	format := PKIX
	if block.Type == pemRSAPublic {
		format = PKCS1
	}
	if len(override) > 0 {
		format = override[0]
	}
	switch format {
	case PKIX:
		key, err = x509.ParsePKIXPublicKey(block.Bytes)
	case PKCS1:
		key, err = x509.ParsePKCS1PublicKey(block.Bytes)
	default:
		return nil, fmt.Errorf("Unsupported pubkey format '%s'", format)
	}
	if err != nil {
		return nil, fmt.Errorf("Failed to parse public key with format '%s': %w", format, err)
	}

	return key, nil
}

// MustReadPrivateKeyFile decodes a PEM encoded private key file and parses into a crypto.PrivateKey or panics.
func MustReadPrivateKeyFile(pkFile string, override ...Format) crypto.PrivateKey {
	pk, err := ReadPrivateKeyFile(pkFile, override...)
	if err != nil {
		panic(err)
	}
	return pk
}

// ReadPrivateKeyFile decodes a PEM encoded private key file and parses into a crypto.PrivateKey
func ReadPrivateKeyFile(pkFile string, override ...Format) (crypto.PrivateKey, error) {
	keyBytes, err := os.ReadFile(pkFile)
	if err != nil {
		return nil, fmt.Errorf("Failed to read private key file '%s': %w", pkFile, err)
	}
	return ReadPrivateKey(keyBytes, override...)
}

// ReadPrivateKey decodes a PEM encoded private key. Error messages never include key bytes.
func ReadPrivateKey(encodedPrivateKey []byte, override ...Format) (crypto.PrivateKey, error) {
	block, _ := pem.Decode(encodedPrivateKey)

	if block == nil {
		return nil, fmt.Errorf("Failed to PEM decode private key")
	}

	var key crypto.PrivateKey
	var err error

	format := PKCS8 // PCKS8 handles all support algorithms. However provider keys are PKCS#1.
	if block.Type == pemRSAPrivate {
		format = PKCS1
	}
	if len(override) > 0 {
		format = override[0]
	}
	switch format {
	case PKCS8:
		key, err = x509.ParsePKCS8PrivateKey(block.Bytes)
	case PKCS1:
		key, err = x509.ParsePKCS1PrivateKey(block.Bytes)
	default:
		return nil, fmt.Errorf("Unsupported private key format '%s'", format)
	}
	if err != nil {
		return nil, fmt.Errorf("Failed to parse private key with format '%s': %w", format, err)
	}
	return key, nil
}
