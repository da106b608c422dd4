package httpsig

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"net/http"
	"strings"
)

const digestPrefix = "SHA-256="

var emptySHA256 = sha256.Sum256([]byte{})

// Digest returns the Digest header value for body. A nil body digests the empty byte string.
func Digest(body []byte) string {
	return digestHeader(body)
}

func digestHeader(body []byte) string {
	var d [sha256.Size]byte
	if len(body) == 0 {
		d = emptySHA256
	} else {
		d = sha256.Sum256(body)
	}
	return digestPrefix + base64.StdEncoding.EncodeToString(d[:])
}

// readBody reads the entire body and returns it with a new io.ReadCloser which can be set as the new request body.
func readBody(body io.ReadCloser) (data []byte, newBody io.ReadCloser, err error) {
	// client GET requests have a nil body
	// received/server GET requests have a body but its NoBody
	if body == nil || body == http.NoBody {
		return nil, body, nil
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(body); err != nil {
		return nil, body, NewError(ErrInvalidDigest, "Failed to read message body to calculate digest", err)
	}
	if err := body.Close(); err != nil {
		return nil, body, NewError(ErrInvalidDigest, "Failed to close message body to calculate digest", err)
	}
	return buf.Bytes(), io.NopCloser(bytes.NewReader(buf.Bytes())), nil
}

// checkDigest compares a Digest header against the body actually received.
func checkDigest(header string, body []byte) error {
	if header == "" {
		return NewError(ErrInvalidDigest, "Missing Digest header")
	}
	if !strings.HasPrefix(header, digestPrefix) {
		return NewError(ErrInvalidDigest, "Unsupported digest algorithm. Only SHA-256 is supported")
	}
	if header != digestHeader(body) {
		return NewError(ErrInvalidDigest, "Digest does not match the message body")
	}
	return nil
}
