package middleware

import (
	"bytes"
	"crypto/rsa"
	"io"
	"net/http"

	"github.com/and161185/gnss-relay/internal/crypto"
)

// DecryptMiddleware opens request bodies sealed by the agent.
// With required set, requests without the encryption header are rejected.
// A nil key disables the middleware.
func DecryptMiddleware(priv *rsa.PrivateKey, required bool) func(http.Handler) http.Handler {
	if priv == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ver := r.Header.Get(crypto.HeaderEncrypted)
			switch {
			case ver == "" && !required:
				next.ServeHTTP(w, r)
				return
			case ver == "":
				http.Error(w, "encryption required", http.StatusBadRequest)
				return
			case ver != crypto.HeaderValueV1:
				http.Error(w, "unsupported encryption version", http.StatusBadRequest)
				return
			}

			sealed, err := io.ReadAll(r.Body)
			_ = r.Body.Close()
			if err != nil {
				http.Error(w, "read body failed", http.StatusBadRequest)
				return
			}

			plain, err := crypto.Open(priv, sealed)
			if err != nil {
				http.Error(w, "decrypt failed", http.StatusBadRequest)
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(plain))
			r.ContentLength = int64(len(plain))
			if enc := r.Header.Get(crypto.HeaderInnerEncoding); enc != "" {
				r.Header.Set("Content-Encoding", enc)
				r.Header.Del(crypto.HeaderInnerEncoding)
			}
			r.Header.Del(crypto.HeaderEncrypted)

			next.ServeHTTP(w, r)
		})
	}
}
