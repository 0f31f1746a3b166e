// Package storage defines what the collector needs from a measurement store.
package storage

//go:generate mockgen -source=storage.go -destination=mocks/mock_storage.go -package=mocks

import (
	"context"
	"errors"

	"github.com/and161185/gnss-relay/model"
)

const (
	DefaultRecentLimit = 100
	MaxRecentLimit     = 10000
)

var ErrEmptyBatch = errors.New("empty batch")

// Storage persists uploads. Implementations deduplicate by batch id: a batch id that was
// already stored is reported as duplicate and nothing is written. An empty id is never a duplicate.
type Storage interface {
	SaveMeasurements(ctx context.Context, batchID string, records []model.Measurement) (accepted int, duplicate bool, err error)
	SaveNavMessage(ctx context.Context, batchID string, msg model.NavMessage) (duplicate bool, err error)
	// Recent returns up to limit newest measurements, oldest first.
	Recent(ctx context.Context, limit int) ([]model.StoredMeasurement, error)
	RecentNav(ctx context.Context, limit int) ([]model.StoredNavMessage, error)
	Ping(ctx context.Context) error
}

// ClampLimit maps a requested row count onto [1, MaxRecentLimit]; non-positive values select the default.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultRecentLimit
	case limit > MaxRecentLimit:
		return MaxRecentLimit
	default:
		return limit
	}
}
