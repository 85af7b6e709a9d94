package chi

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// exemptPaths stay reachable without a key so probes and clients can
// discover the service.
var exemptPaths = map[string]struct{}{
	"/health":      {},
	"/metrics":     {},
	"/comparators": {},
}

// BearerAuthMiddleware accepts requests carrying one of apiKeys as a Bearer
// token. Blank keys are ignored; with no keys left, auth is off.
func BearerAuthMiddleware(apiKeys []string) func(http.Handler) http.Handler {
	var validKeys [][]byte
	for _, k := range apiKeys {
		if k = strings.TrimSpace(k); k != "" {
			validKeys = append(validKeys, []byte(k))
		}
	}

	return func(next http.Handler) http.Handler {
		if len(validKeys) == 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isExempt(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			token, msg := bearerToken(r.Header.Get("Authorization"))
			if msg == "" && !validKey(validKeys, token) {
				msg = "invalid api key"
			}
			if msg != "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="sqee"`)
				writeError(w, http.StatusUnauthorized, ErrorCodeUnauthorized, msg)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func isExempt(path string) bool {
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	_, ok := exemptPaths[path]
	return ok
}

// bearerToken extracts the token from an Authorization header. The scheme
// is matched case-insensitively. A non-empty msg explains the rejection.
func bearerToken(header string) (token, msg string) {
	if header == "" {
		return "", "missing authorization header"
	}
	scheme, token, _ := strings.Cut(header, " ")
	if !strings.EqualFold(scheme, "Bearer") {
		return "", "authorization header must use Bearer scheme"
	}
	if token = strings.TrimSpace(token); token == "" {
		return "", "empty bearer token"
	}
	return token, ""
}

// validKey compares in constant time against every configured key.
func validKey(keys [][]byte, token string) bool {
	found := 0
	for _, k := range keys {
		found |= subtle.ConstantTimeCompare(k, []byte(token))
	}
	return found == 1
}
