// Package buffer holds measurements between the source callback and the uploader.
package buffer

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/and161185/gnss-relay/model"
)

// Policy decides what happens when a bounded buffer is full.
type Policy string

const (
	DropOldest Policy = "drop-oldest" // evict the oldest record and keep the new one
	DropNewest Policy = "drop-newest" // reject the new record
	Block      Policy = "block"       // wait until a drain frees space
)

var ErrUnknownPolicy = errors.New("unknown overflow policy")

// ParsePolicy validates a policy name. An empty name selects DropOldest.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case "":
		return DropOldest, nil
	case DropOldest, DropNewest, Block:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
}

// Config configures a Buffer.
type Config struct {
	Capacity int    // 0 means unbounded
	Policy   Policy // applies only when Capacity > 0
	WarnAt   int    // unbounded buffers log a warning every time length crosses a multiple of WarnAt
}

// Buffer is an ordered, mutex guarded list of measurements.
type Buffer struct {
	mu       sync.Mutex
	notFull  *sync.Cond
	items    []model.Measurement
	dropped  uint64
	closed   bool
	nextWarn int

	cfg    Config
	logger *zap.SugaredLogger

	// OnDrop is called outside the lock for every record that is lost.
	OnDrop func(n int)
}

// New creates an empty buffer.
func New(cfg Config, logger *zap.SugaredLogger) *Buffer {
	if cfg.Capacity < 0 {
		cfg.Capacity = 0
	}
	if cfg.Policy == "" {
		cfg.Policy = DropOldest
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	b := &Buffer{cfg: cfg, logger: logger, nextWarn: cfg.WarnAt}
	b.notFull = sync.NewCond(&b.mu)
	if cfg.Capacity == 0 {
		logger.Warnw("measurement buffer is unbounded; it grows without limit while uploads fail", "warnAt", cfg.WarnAt)
	}
	return b
}

// Append adds one record. It reports false when the record was rejected.
func (b *Buffer) Append(m model.Measurement) bool {
	b.mu.Lock()

	if b.closed {
		b.dropped++
		b.mu.Unlock()
		b.notifyDrop(1)
		return false
	}

	if b.cfg.Capacity == 0 {
		b.items = append(b.items, m)
		n := len(b.items)
		warn := b.cfg.WarnAt > 0 && n >= b.nextWarn
		if warn {
			b.nextWarn += b.cfg.WarnAt
		}
		b.mu.Unlock()
		if warn {
			b.logger.Warnw("measurement buffer keeps growing", "len", n)
		}
		return true
	}

	evicted := 0
	for len(b.items) >= b.cfg.Capacity {
		switch b.cfg.Policy {
		case DropNewest:
			b.dropped++
			b.mu.Unlock()
			b.notifyDrop(1)
			return false
		case Block:
			b.notFull.Wait()
			if b.closed {
				b.dropped++
				b.mu.Unlock()
				b.notifyDrop(1)
				return false
			}
		default:
			b.items = b.items[1:]
			b.dropped++
			evicted++
		}
	}
	b.items = append(b.items, m)
	b.mu.Unlock()

	if evicted > 0 {
		b.notifyDrop(evicted)
	}
	return true
}

// DrainAll returns the current contents and leaves the buffer empty.
func (b *Buffer) DrainAll() []model.Measurement {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.items) == 0 {
		return []model.Measurement{}
	}
	out := make([]model.Measurement, len(b.items))
	copy(out, b.items)
	b.items = b.items[:0]
	b.nextWarn = b.cfg.WarnAt
	b.notFull.Broadcast()
	return out
}

// Len returns the number of buffered records.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Dropped returns how many records were lost to the overflow policy or after Close.
func (b *Buffer) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Close releases blocked producers. Later appends are rejected; draining still works.
func (b *Buffer) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.notFull.Broadcast()
}

func (b *Buffer) notifyDrop(n int) {
	if b.OnDrop != nil {
		b.OnDrop(n)
	}
}
