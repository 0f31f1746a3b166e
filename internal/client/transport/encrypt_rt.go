// Package transport holds http.RoundTrippers used by the agent.
package transport

import (
	"bytes"
	"crypto/rsa"
	"fmt"
	"io"
	"net/http"

	"github.com/and161185/gnss-relay/internal/crypto"
)

// EncryptRoundTripper seals request bodies for the collector's private key.
// The sealed payload keeps any gzip encoding inside, so Content-Encoding is dropped from the outer request.
type EncryptRoundTripper struct {
	Base   http.RoundTripper
	PubKey *rsa.PublicKey
}

func (e *EncryptRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	rt := e.Base
	if rt == nil {
		rt = http.DefaultTransport
	}
	if e.PubKey == nil || req.Body == nil || req.Body == http.NoBody {
		return rt.RoundTrip(req)
	}

	plain, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	sealed, err := crypto.Seal(e.PubKey, plain)
	if err != nil {
		return nil, fmt.Errorf("seal body: %w", err)
	}

	out := req.Clone(req.Context())
	out.Body = io.NopCloser(bytes.NewReader(sealed))
	out.GetBody = func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(sealed)), nil }
	out.ContentLength = int64(len(sealed))
	out.Header.Set(crypto.HeaderEncrypted, crypto.HeaderValueV1)
	if enc := req.Header.Get("Content-Encoding"); enc != "" {
		out.Header.Set(crypto.HeaderInnerEncoding, enc)
		out.Header.Del("Content-Encoding")
	}
	return rt.RoundTrip(out)
}
