// Package source delivers raw GNSS measurement events from a device or a recording.
package source

import (
	"context"
	"errors"

	"github.com/and161185/gnss-relay/model"
)

// ErrPermissionDenied means the platform refused access to measurements; capture never starts.
var ErrPermissionDenied = errors.New("measurement access denied")

// Handler receives deliveries. Sources call it from their own goroutine and expect it to return fast.
type Handler interface {
	OnMeasurements(ev model.MeasurementEvent)
	OnNavigationMessage(msg model.NavMessage)
}

// Source is a subscribable measurement feed.
// Subscribe blocks until ctx is done or the feed ends.
type Source interface {
	Subscribe(ctx context.Context, h Handler) error
}

// HandlerFuncs adapts plain functions to Handler. Nil fields are ignored.
type HandlerFuncs struct {
	Measurements func(ev model.MeasurementEvent)
	Navigation   func(msg model.NavMessage)
}

func (h HandlerFuncs) OnMeasurements(ev model.MeasurementEvent) {
	if h.Measurements != nil {
		h.Measurements(ev)
	}
}

func (h HandlerFuncs) OnNavigationMessage(msg model.NavMessage) {
	if h.Navigation != nil {
		h.Navigation(msg)
	}
}
