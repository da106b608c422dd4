package httpsig

import (
	"fmt"
	"net/http"
	"strings"
)

// Pseudo header covering the lowercased method and the request target.
const requestTarget = "(request-target)"

// signedHeaders are the components covered by every signature this package produces, in order.
var signedHeaders = []string{requestTarget, "host", "date", "digest"}

/*
signingString calculates the canonical string - the data used as the input to signing or verifying.
Lines are newline joined with no trailing newline:

	(request-target): post /g_business/v1/payments
	host: authservices.satispay.com
	date: Tue, 15 Nov 1994 08:12:31 GMT
	digest: SHA-256=...
*/
func signingString(method, target, host, date, digest string) string {
	var base strings.Builder
	base.WriteString(fmt.Sprintf("%s: %s %s\n", requestTarget, strings.ToLower(method), target))
	base.WriteString(fmt.Sprintf("host: %s\n", host))
	base.WriteString(fmt.Sprintf("date: %s\n", date))
	base.WriteString(fmt.Sprintf("digest: %s", digest))
	return strings.TrimSpace(base.String())
}

// signingStringFor rebuilds the canonical string for an arbitrary list of covered headers as sent by a signer.
func signingStringFor(req *http.Request, headers []string) (string, error) {
	lines := make([]string, 0, len(headers))
	for _, name := range headers {
		name = strings.ToLower(name)
		var value string
		switch name {
		case requestTarget:
			value = fmt.Sprintf("%s %s", strings.ToLower(req.Method), req.URL.RequestURI())
		case "host":
			value = req.Host
			if value == "" {
				value = req.URL.Host
			}
		default:
			values := req.Header.Values(name)
			if len(values) == 0 {
				return "", NewError(ErrInvalidSignature, fmt.Sprintf("Signed header '%s' is missing from the request", name))
			}
			if len(values) > 1 {
				return "", NewError(ErrInvalidSignature, fmt.Sprintf("Signed header '%s' has multiple values", name))
			}
			value = values[0]
		}
		lines = append(lines, fmt.Sprintf("%s: %s", name, value))
	}
	return strings.TrimSpace(strings.Join(lines, "\n")), nil
}
