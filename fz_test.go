package httpsig

import (
	"net/http"
	"testing"

	"github.com/leelynne/gbusiness-httpsig/sigtest"
)

// FuzzParseAuthorization makes sure arbitrary header values never panic and that accepted values are well formed.
func FuzzParseAuthorization(f *testing.F) {
	testcases := []string{
		"",
		"Signature",
		`Signature keyId="a", signature="b"`,
		`Signature keyId="a\"b", signature="c"`,
		`Signature keyId="a", keyId="a"`,
		`Signature keyId="\`,
		`Signature =""`,
		authorization(paymentSignature),
	}
	for _, tc := range testcases {
		f.Add(tc)
	}

	f.Fuzz(func(t *testing.T, header string) {
		ap, err := parseAuthorization(header)
		if err != nil {
			if CodeOf(err) == "" {
				t.Errorf("Parse error without a code: %s", err)
			}
			return
		}
		if ap.KeyID == "" || ap.Signature == "" || len(ap.Headers) == 0 {
			t.Errorf("Accepted incomplete parameters: %#v", ap)
		}
	})
}

// FuzzAuthorizationRoundTrip checks that any header the signer can produce is parsed back to the same parameters.
func FuzzAuthorizationRoundTrip(f *testing.F) {
	f.Add("test-key-rsa", "c2ln")
	f.Add(`a"b`, "")
	f.Add(`\\`, "+/=")
	f.Add("", "\n")

	f.Fuzz(func(t *testing.T, keyID, signature string) {
		in := authorizationParams{
			KeyID:     keyID,
			Algorithm: Algo_RSA_SHA256,
			Headers:   signedHeaders,
			Signature: signature,
		}
		header, err := formatAuthorization(in)
		if err != nil {
			return
		}
		out, err := parseAuthorization(header)
		if keyID == "" || signature == "" {
			if err == nil {
				t.Errorf("Accepted empty parameter in %q", header)
			}
			return
		}
		if err != nil {
			t.Fatalf("Failed to parse %q: %s", header, err)
		}
		sigtest.Diff(t, in, out, "Round trip changed the parameters")
	})
}

// FuzzSigningOptions fuzzes the user supplied key id and request parts. Whatever is signed must verify.
func FuzzSigningOptions(f *testing.F) {
	testcases := [][]string{
		{"test-key-rsa", "POST", "/g_business/v1/payments", `{"amount_unit":100}`},
		{"", "GET", "/", ""},
		{"\n", "GET", "/", ""},
		{"key", "GET", "/a?b=c&d=%20", ""},
		{"key", "PUT", "/g_business/v1/payments/1", "\xde"},
		{`"quoted"`, "PATCH", "/x", "{}"},
	}
	for _, tc := range testcases {
		f.Add(tc[0], tc[1], tc[2], tc[3])
	}

	pk := sigtest.ReadTestPrivateKey(f, "test-key-rsa.key")
	f.Fuzz(func(t *testing.T, keyID, method, target, body string) {
		so := SigningOptions{
			KeyID:      keyID,
			PrivateKey: pk,
			Now:        frozenClock,
		}
		if so.validate() != nil {
			return
		}
		req, err := http.NewRequest(method, "https://"+testHost+target, makeBody(body))
		if err != nil || req.URL.Host != testHost {
			return
		}
		signer, err := NewSigner(so)
		if err != nil {
			t.Fatal(err)
		}
		if err := signer.Sign(req); err != nil {
			if !IsCode(err, ErrUnsupportedBody) {
				t.Errorf("Unexpected signing error: %s", err)
			}
			return
		}

		kf := staticKey{KeySpec{KeyID: keyID, Algo: Algo_RSA_SHA256, PubKey: &pk.PublicKey}}
		if _, err := Verify(req, kf, VerifyProfile{DisableTimeEnforcement: true, RequiredHeaders: signedHeaders}); err != nil {
			t.Errorf("Signed message did not verify: %s", err)
		}
	})
}

type staticKey struct {
	ks KeySpec
}

func (sk staticKey) FetchByKeyID(string) (KeySpec, error) {
	return sk.ks, nil
}
