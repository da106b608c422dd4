package httpsig

import (
	"fmt"
	"strings"

	sfv "github.com/dunglas/httpsfv"
)

const authScheme = "Signature"

// authorizationParams are the parameters of a 'Signature' Authorization header.
type authorizationParams struct {
	KeyID     string
	Algorithm Algorithm
	Headers   []string
	Signature string // base64 encoded
}

// formatAuthorization serializes the Authorization header. Parameter order is fixed: keyId, algorithm, headers, signature.
func formatAuthorization(ap authorizationParams) (string, error) {
	params := []struct {
		name  string
		value string
	}{
		{"keyId", ap.KeyID},
		{"algorithm", string(ap.Algorithm)},
		{"headers", strings.Join(ap.Headers, " ")},
		{"signature", ap.Signature},
	}

	parts := make([]string, 0, len(params))
	for _, p := range params {
		// Parameter values are quoted strings. The sfv String serialization escapes '"' and '\' and rejects anything that is not printable ASCII.
		quoted, err := sfv.Marshal(sfv.NewItem(p.value))
		if err != nil {
			return "", NewError(ErrInvalidSignatureOptions, fmt.Sprintf("Unable to serialize signature parameter '%s'", p.name), err)
		}
		parts = append(parts, fmt.Sprintf("%s=%s", p.name, quoted))
	}
	return fmt.Sprintf("%s %s", authScheme, strings.Join(parts, ", ")), nil
}

// ParseAuthorization parses a 'Signature' Authorization header value.
func ParseAuthorization(header string) (keyID string, algorithm Algorithm, headers []string, signature string, err error) {
	ap, err := parseAuthorization(header)
	if err != nil {
		return "", "", nil, "", err
	}
	return ap.KeyID, ap.Algorithm, ap.Headers, ap.Signature, nil
}

func parseAuthorization(header string) (authorizationParams, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return authorizationParams{}, NewError(ErrMissingSignature, "Missing Authorization header")
	}
	scheme, rest, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, authScheme) {
		return authorizationParams{}, NewError(ErrInvalidHeader, fmt.Sprintf("Authorization scheme must be '%s'", authScheme))
	}

	raw, err := splitParams(rest)
	if err != nil {
		return authorizationParams{}, err
	}

	ap := authorizationParams{}
	seen := map[string]bool{}
	for _, kv := range raw {
		name := strings.ToLower(kv[0])
		if seen[name] {
			return authorizationParams{}, NewError(ErrInvalidHeader, fmt.Sprintf("Repeated signature parameter not allowed: '%s'", kv[0]))
		}
		seen[name] = true

		item, err := sfv.UnmarshalItem([]string{kv[1]})
		if err != nil {
			return authorizationParams{}, NewError(ErrInvalidHeader, fmt.Sprintf("Invalid value for signature parameter '%s'", kv[0]), err)
		}
		value, ok := item.Value.(string)
		if !ok {
			return authorizationParams{}, NewError(ErrInvalidHeader, fmt.Sprintf("Signature parameter '%s' must be a quoted string. It was type %T", kv[0], item.Value))
		}

		switch name {
		case "keyid":
			ap.KeyID = value
		case "algorithm":
			ap.Algorithm = Algorithm(value)
		case "headers":
			ap.Headers = strings.Fields(value)
		case "signature":
			ap.Signature = value
		default:
			// Unknown parameters such as 'created' or 'expires' are ignored.
		}
	}

	if ap.KeyID == "" {
		return authorizationParams{}, NewError(ErrInvalidHeader, "Missing 'keyId' signature parameter")
	}
	if ap.Signature == "" {
		return authorizationParams{}, NewError(ErrMissingSignature, "Missing 'signature' signature parameter")
	}
	if len(ap.Headers) == 0 {
		// Absent 'headers' means only the Date header is covered.
		ap.Headers = []string{"date"}
	}
	return ap, nil
}

// splitParams splits `a="x", b="y"` into name and raw (still quoted) value pairs, honouring escapes inside quotes.
func splitParams(s string) ([][2]string, error) {
	out := [][2]string{}
	i := 0
	for i < len(s) {
		for i < len(s) && (s[i] == ' ' || s[i] == ',' || s[i] == '\t') {
			i++
		}
		if i >= len(s) {
			break
		}
		eq := strings.IndexByte(s[i:], '=')
		if eq <= 0 {
			return nil, NewError(ErrInvalidHeader, fmt.Sprintf("Malformed signature parameter at offset %d", i))
		}
		name := strings.TrimSpace(s[i : i+eq])
		i += eq + 1
		if i >= len(s) || s[i] != '"' {
			return nil, NewError(ErrInvalidHeader, fmt.Sprintf("Signature parameter '%s' must be a quoted string", name))
		}
		start := i
		i++
		closed := false
		for i < len(s) {
			if s[i] == '\\' {
				i += 2
				continue
			}
			if s[i] == '"' {
				closed = true
				i++
				break
			}
			i++
		}
		if !closed || i > len(s) {
			return nil, NewError(ErrInvalidHeader, fmt.Sprintf("Unterminated value for signature parameter '%s'", name))
		}
		out = append(out, [2]string{name, s[start:i]})
	}
	return out, nil
}
