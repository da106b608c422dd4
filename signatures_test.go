package httpsig

import (
	"testing"

	"github.com/leelynne/gbusiness-httpsig/sigtest"
)

func TestFormatAuthorization(t *testing.T) {
	actual, err := formatAuthorization(authorizationParams{
		KeyID:     "test-key-rsa",
		Algorithm: Algo_RSA_SHA256,
		Headers:   signedHeaders,
		Signature: "c2ln",
	})
	if err != nil {
		t.Fatal(err)
	}
	sigtest.Diff(t, authorization("c2ln"), actual, "Wrong header")

	_, err = formatAuthorization(authorizationParams{KeyID: "tab\tkey", Algorithm: Algo_RSA_SHA256, Headers: signedHeaders, Signature: "c2ln"})
	if err == nil {
		t.Fatal("Expected an err")
	}
	diffErrorCode(t, err, ErrInvalidSignatureOptions)
}

func TestFormatAuthorizationEscapes(t *testing.T) {
	ap := authorizationParams{
		KeyID:     `key"with\quotes`,
		Algorithm: Algo_RSA_SHA256,
		Headers:   signedHeaders,
		Signature: "c2ln",
	}
	header, err := formatAuthorization(ap)
	if err != nil {
		t.Fatal(err)
	}
	parsed, err := parseAuthorization(header)
	if err != nil {
		t.Fatal(err)
	}
	sigtest.Diff(t, ap, parsed, "Escaped key id did not round trip")
}

func TestParseAuthorization(t *testing.T) {
	testcases := []struct {
		Name            string
		Header          string
		Expected        authorizationParams
		ExpectedErrCode ErrCode
	}{
		{
			Name:   "Canonical",
			Header: authorization("c2ln"),
			Expected: authorizationParams{
				KeyID:     "test-key-rsa",
				Algorithm: Algo_RSA_SHA256,
				Headers:   signedHeaders,
				Signature: "c2ln",
			},
		},
		{
			Name:   "ReorderedNoSpaces",
			Header: `signature signature="c2ln",headers="(request-target) host date digest",keyId="abc",algorithm="rsa-sha256"`,
			Expected: authorizationParams{
				KeyID:     "abc",
				Algorithm: Algo_RSA_SHA256,
				Headers:   signedHeaders,
				Signature: "c2ln",
			},
		},
		{
			Name:   "UnknownParameterIgnored",
			Header: `Signature keyId="abc", algorithm="rsa-sha256", created="1", headers="date", signature="c2ln"`,
			Expected: authorizationParams{
				KeyID:     "abc",
				Algorithm: Algo_RSA_SHA256,
				Headers:   []string{"date"},
				Signature: "c2ln",
			},
		},
		{
			Name:   "HeadersDefaultToDate",
			Header: `Signature keyId="abc", algorithm="rsa-sha256", signature="c2ln"`,
			Expected: authorizationParams{
				KeyID:     "abc",
				Algorithm: Algo_RSA_SHA256,
				Headers:   []string{"date"},
				Signature: "c2ln",
			},
		},
		{
			Name:            "Empty",
			Header:          "  ",
			ExpectedErrCode: ErrMissingSignature,
		},
		{
			Name:            "WrongScheme",
			Header:          `Bearer abc`,
			ExpectedErrCode: ErrInvalidHeader,
		},
		{
			Name:            "Unquoted",
			Header:          `Signature keyId=abc, signature="c2ln"`,
			ExpectedErrCode: ErrInvalidHeader,
		},
		{
			Name:            "Unterminated",
			Header:          `Signature keyId="abc, signature="c2ln`,
			ExpectedErrCode: ErrInvalidHeader,
		},
		{
			Name:            "Repeated",
			Header:          `Signature keyId="a", keyid="b", signature="c2ln"`,
			ExpectedErrCode: ErrInvalidHeader,
		},
		{
			Name:            "MissingKeyID",
			Header:          `Signature algorithm="rsa-sha256", signature="c2ln"`,
			ExpectedErrCode: ErrInvalidHeader,
		},
		{
			Name:            "MissingSignature",
			Header:          `Signature keyId="abc", algorithm="rsa-sha256"`,
			ExpectedErrCode: ErrMissingSignature,
		},
	}

	for _, tc := range testcases {
		t.Run(tc.Name, func(t *testing.T) {
			actual, err := parseAuthorization(tc.Header)
			if tc.ExpectedErrCode != "" {
				if err == nil {
					t.Fatal("Expected an err")
				}
				diffErrorCode(t, err, tc.ExpectedErrCode)
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			sigtest.Diff(t, tc.Expected, actual, "Wrong parameters")
		})
	}
}

func TestParseAuthorizationExported(t *testing.T) {
	keyID, algo, headers, sig, err := ParseAuthorization(authorization(paymentSignature))
	if err != nil {
		t.Fatal(err)
	}
	sigtest.Diff(t, "test-key-rsa", keyID, "Wrong keyId")
	sigtest.Diff(t, Algo_RSA_SHA256, algo, "Wrong algorithm")
	sigtest.Diff(t, signedHeaders, headers, "Wrong headers")
	sigtest.Diff(t, paymentSignature, sig, "Wrong signature")
}
