package middleware

import (
	"net/http"

	"github.com/jacobkus/intelligent-hr-assistant/internal/apperror"
	"github.com/jacobkus/intelligent-hr-assistant/internal/validator"
)

// CheckSize rejects a request whose declared Content-Length exceeds
// validator.MaxBodyBytes before it reaches the rate limiter, so an
// oversized request is never charged against the caller's window.
func CheckSize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := validator.CheckContentLength(r); err != nil {
			apperror.WriteJSON(w, RequestIDFromContext(r.Context()), err)
			return
		}
		next.ServeHTTP(w, r)
	})
}
