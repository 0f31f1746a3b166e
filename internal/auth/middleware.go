package auth

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const contextKeyDevice contextKey = "auth.device_id"

// WithDevice stores the authenticated device in ctx.
func WithDevice(ctx context.Context, deviceID string) context.Context {
	return context.WithValue(ctx, contextKeyDevice, deviceID)
}

// DeviceFromContext returns the authenticated device or "".
func DeviceFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(contextKeyDevice).(string); ok {
		return v
	}
	return ""
}

// Middleware requires a valid bearer token on every request. An empty secret disables the check.
func Middleware(secret string) func(http.Handler) http.Handler {
	if secret == "" {
		return func(next http.Handler) http.Handler { return next }
	}
	key := []byte(secret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearer(r.Header.Get("Authorization"))
			if !ok {
				w.Header().Set("WWW-Authenticate", `Bearer realm="gnss"`)
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}
			claims, err := ParseToken(raw, key)
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithDevice(r.Context(), claims.DeviceID)))
		})
	}
}

func bearer(h string) (string, bool) {
	const prefix = "bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(h[len(prefix):])
	return token, token != ""
}
