package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/json"
	"log"
	"net/http"
	"strings"
)

// AdminAuth guards admin routes with a static bearer token. With an empty
// token every admin request is refused.
type AdminAuth struct {
	digest  []byte // sha256 of the token
	enabled bool
}

// NewAdminAuth creates the guard for token
func NewAdminAuth(token string) *AdminAuth {
	if token == "" {
		return &AdminAuth{}
	}
	sum := sha256.Sum256([]byte(token))
	return &AdminAuth{digest: sum[:], enabled: true}
}

// Enabled reports whether admin routes can be used at all
func (a *AdminAuth) Enabled() bool {
	return a != nil && a.enabled
}

// Validate checks the Authorization header of r
func (a *AdminAuth) Validate(r *http.Request) bool {
	if !a.Enabled() {
		return false
	}
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return false
	}
	// compare digests so the token length does not leak through timing
	sum := sha256.Sum256([]byte(token))
	return hmac.Equal(sum[:], a.digest)
}

// Middleware rejects requests without a valid admin token
func (a *AdminAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Validate(r) {
			log.Printf("🔐 Admin request rejected from %s: %s %s", GetClientIP(r), r.Method, r.URL.Path)
			RecordConnectionRejected("admin_auth")
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("WWW-Authenticate", `Bearer realm="admin"`)
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"error":   "unauthorized",
				"message": "Admin authentication required",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// AuthStatus reports whether the caller is an admin
type AuthStatus struct {
	Authenticated bool `json:"authenticated"`
	Enabled       bool `json:"enabled"`
}

// HandleAuthStatus returns the caller's admin status
func (a *AdminAuth) HandleAuthStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, AuthStatus{
		Authenticated: a.Validate(r),
		Enabled:       a.Enabled(),
	})
}
