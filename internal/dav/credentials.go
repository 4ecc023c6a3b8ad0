package dav

import (
	"encoding/base64"
	"strings"
)

// decodeCredentials extracts the user name and password from a Basic
// Authorization header value.
func decodeCredentials(authorization string) (string, string, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(authorization), " ")
	if !ok || !strings.EqualFold(scheme, "Basic") {
		return "", "", framingErrorf("unsupported authentication scheme: %s", scheme)
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(token))
	if err != nil {
		return "", "", wrapFramingError(err, "invalid credentials")
	}

	username, password, found := strings.Cut(string(decoded), ":")
	if !found || username == "" {
		return "", "", framingErrorf("invalid credentials")
	}
	return username, password, nil
}
