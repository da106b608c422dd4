// Package sigtest holds helpers shared by the signing tests. It must not import the root package.
package sigtest

import (
	"bufio"
	"bytes"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// Dir is where request and key fixtures live, relative to the root package.
var Dir = "testdata"

// Diff reports a test error when expected and actual differ. It returns true when they differ.
func Diff(t testing.TB, expected, actual any, msg string, opts ...cmp.Option) bool {
	t.Helper()
	if diff := cmp.Diff(expected, actual, opts...); diff != "" {
		t.Errorf("%s (-want +got):\n%s", msg, diff)
		return true
	}
	return false
}

// MustReadFile reads a fixture and panics on failure.
func MustReadFile(file string) []byte {
	data, err := os.ReadFile(file)
	if err != nil {
		panic(err)
	}
	return data
}

// ReadRequest parses a raw HTTP/1.1 request from Dir.
func ReadRequest(t testing.TB, reqFile string) *http.Request {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(Dir, reqFile))
	if err != nil {
		t.Fatal(err)
	}
	req, err := http.ReadRequest(bufio.NewReader(bytes.NewReader(data)))
	if err != nil {
		t.Fatal(err)
	}
	// Requests read off the wire carry a relative URL. Give them an absolute one as a client would.
	req.URL.Scheme = "https"
	req.URL.Host = req.Host
	return req
}

// ReadTestPrivateKey loads a PKCS#1 or PKCS#8 RSA private key from Dir.
func ReadTestPrivateKey(t testing.TB, keyFile string) *rsa.PrivateKey {
	t.Helper()
	block := readPEM(t, keyFile)
	if pk, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return pk
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		t.Fatal(err)
	}
	pk, ok := key.(*rsa.PrivateKey)
	if !ok {
		t.Fatalf("%s is not an RSA key: %T", keyFile, key)
	}
	return pk
}

// ReadTestPublicKey loads a PKCS#1 or PKIX RSA public key from Dir.
func ReadTestPublicKey(t testing.TB, keyFile string) *rsa.PublicKey {
	t.Helper()
	block := readPEM(t, keyFile)
	if pub, err := x509.ParsePKCS1PublicKey(block.Bytes); err == nil {
		return pub
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		t.Fatal(err)
	}
	pub, ok := key.(*rsa.PublicKey)
	if !ok {
		t.Fatalf("%s is not an RSA key: %T", keyFile, key)
	}
	return pub
}

func readPEM(t testing.TB, keyFile string) *pem.Block {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(Dir, keyFile))
	if err != nil {
		t.Fatal(err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		t.Fatalf("no PEM data in %s", keyFile)
	}
	return block
}
