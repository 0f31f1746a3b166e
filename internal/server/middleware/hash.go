package middleware

import (
	"bytes"
	"io"
	"net/http"

	"github.com/and161185/gnss-relay/internal/utils"
)

// HashHeader carries the hex SHA-256 of body plus shared key.
const HashHeader = "HashSHA256"

// VerifyHashMiddleware checks the body signature of requests that carry one and signs responses.
// An empty key disables it.
func VerifyHashMiddleware(key string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if key == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(r.Body)
			if err != nil {
				http.Error(w, "bad body", http.StatusBadRequest)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			if got := r.Header.Get(HashHeader); got != "" && got != utils.CalculateHash(body, key) {
				http.Error(w, "invalid hash", http.StatusBadRequest)
				return
			}

			capture := &responseCapture{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(capture, r)

			w.Header().Set(HashHeader, utils.CalculateHash(capture.body.Bytes(), key))
			w.WriteHeader(capture.status)
			_, _ = w.Write(capture.body.Bytes())
		})
	}
}

// responseCapture holds the response until it can be signed.
type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (r *responseCapture) WriteHeader(code int) { r.status = code }

func (r *responseCapture) Write(b []byte) (int, error) { return r.body.Write(b) }
