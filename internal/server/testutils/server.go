// Package testutils builds collector instances for tests.
package testutils

import (
	"go.uber.org/zap"

	"github.com/and161185/gnss-relay/internal/config"
	"github.com/and161185/gnss-relay/internal/server"
	"github.com/and161185/gnss-relay/storage/inmemory"
)

// NewTestServer returns a collector without keys or secrets over a fresh in-memory store.
func NewTestServer() (*server.Server, *inmemory.MemStorage) {
	store := inmemory.NewMemStorage(1000)
	srv, _ := server.NewServer(store, &config.ServerConfig{Logger: zap.NewNop().Sugar()})
	return srv, store
}
