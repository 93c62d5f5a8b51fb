// Package authcheck implements the Authenticator (C5): credential
// extraction and principal resolution, grounded on the pack's
// Authorization-header parsing and declarative value-matcher compilation.
package authcheck

import (
	"encoding/base64"
	"net/http"
	"strings"
)

// Credential is one extracted credential, at most one of which is produced
// per request (bearer, basic, header, or query, in that precedence order).
type Credential struct {
	Type     string // "bearer", "basic", "header", "query"
	Token    string
	Username string
	Password string
	Value    string // for header/query credentials
	Name     string // header/query field name, for header/query credentials
}

// extract pulls the first recognized credential from the request,
// following the same Authorization-header scheme dispatch as the pack's
// collectCredentials, generalized to also accept named header/query
// credentials.
func extract(r *http.Request, headerName, queryName string) (Credential, bool) {
	scheme, param := parseAuthorization(strings.TrimSpace(r.Header.Get("Authorization")))
	if strings.EqualFold(scheme, "bearer") {
		if token := strings.TrimSpace(param); token != "" {
			return Credential{Type: "bearer", Token: token}, true
		}
	}
	if strings.EqualFold(scheme, "basic") {
		if user, pass, ok := decodeBasicCredential(param); ok {
			return Credential{Type: "basic", Username: user, Password: pass}, true
		}
	}
	if headerName != "" {
		if v := strings.TrimSpace(r.Header.Get(headerName)); v != "" {
			return Credential{Type: "header", Name: headerName, Value: v}, true
		}
	}
	if queryName != "" {
		if v := strings.TrimSpace(r.URL.Query().Get(queryName)); v != "" {
			return Credential{Type: "query", Name: queryName, Value: v}, true
		}
	}
	return Credential{}, false
}

func parseAuthorization(header string) (scheme, param string) {
	if header == "" {
		return "", ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 1 {
		return strings.TrimSpace(parts[0]), ""
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
}

func decodeBasicCredential(payload string) (user, pass string, ok bool) {
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return "", "", false
	}
	parts := strings.SplitN(string(decoded), ":", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}
