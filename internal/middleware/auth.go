package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/jacobkus/intelligent-hr-assistant/internal/apperror"
)

// Auth returns middleware that extracts a bearer token and compares it
// against secret using a constant-time comparison that runs over the full
// length of both operands regardless of whether they match. On success the
// extracted token is attached to the request context for downstream rate
// limiting.
func Auth(secret string) func(http.Handler) http.Handler {
	secretBytes := []byte(secret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, malformed := extractToken(r)
			if malformed {
				writeUnauthorized(w, r, "token_malformed")
				return
			}
			if token == "" {
				writeUnauthorized(w, r, "token_missing")
				return
			}
			if !constantTimeEqual([]byte(token), secretBytes) {
				writeUnauthorized(w, r, "token_invalid")
				return
			}

			ctx := WithToken(r.Context(), token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractToken reads the presented token from Authorization or
// X-Access-Token. malformed is true only when Authorization is present,
// non-empty, does not start with "Bearer ", and X-Access-Token is absent.
func extractToken(r *http.Request) (token string, malformed bool) {
	auth := r.Header.Get("Authorization")
	if auth != "" {
		if rest, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return rest, false
		}
		if r.Header.Get("X-Access-Token") == "" {
			return "", true
		}
	}
	return r.Header.Get("X-Access-Token"), false
}

// constantTimeEqual compares a and b over max(len(a), len(b)) bytes,
// accumulating differences rather than returning as soon as a length
// mismatch is detected, so that timing does not leak length information.
func constantTimeEqual(a, b []byte) bool {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	padded := func(s []byte) []byte {
		if len(s) == n {
			return s
		}
		p := make([]byte, n)
		copy(p, s)
		return p
	}
	lengthsEqual := len(a) == len(b)
	eq := subtle.ConstantTimeCompare(padded(a), padded(b)) == 1
	return lengthsEqual && eq
}

func writeUnauthorized(w http.ResponseWriter, r *http.Request, reason string) {
	apperror.WriteJSON(w, RequestIDFromContext(r.Context()),
		apperror.Unauthorized(reason))
}
