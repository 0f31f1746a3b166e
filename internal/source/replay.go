package source

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/and161185/gnss-relay/model"
)

// Capture format: newline delimited JSON, one delivery per line.
//
//	{"kind":"measurements","atNanos":0,"event":{"clock":{...},"measurements":[...]}}
//	{"kind":"navigation","atNanos":1000000,"navigation":{"messageType":257,...}}
//
// Blank lines and lines starting with '#' are skipped. atNanos is the offset from
// the start of the capture and is used to pace playback.

const (
	KindMeasurements = "measurements"
	KindNavigation   = "navigation"
)

var ErrBadRecord = errors.New("bad capture record")

// Record is one line of a capture file.
type Record struct {
	Kind       string                  `json:"kind"`
	AtNanos    int64                   `json:"atNanos"`
	Event      *model.MeasurementEvent `json:"event,omitempty"`
	Navigation *model.NavMessage       `json:"navigation,omitempty"`
}

// ReadRecords parses a whole capture.
func ReadRecords(r io.Reader) ([]Record, error) {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var recs []Record
	line := 0
	for s.Scan() {
		line++
		b := s.Bytes()
		if len(b) == 0 || b[0] == '#' {
			continue
		}
		var rec Record
		if err := json.Unmarshal(b, &rec); err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrBadRecord, line, err)
		}
		switch {
		case rec.Kind == KindMeasurements && rec.Event != nil:
		case rec.Kind == KindNavigation && rec.Navigation != nil:
		default:
			return nil, fmt.Errorf("%w: line %d: kind %q without payload", ErrBadRecord, line, rec.Kind)
		}
		recs = append(recs, rec)
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("read capture: %w", err)
	}
	return recs, nil
}

// Replay plays a capture file back as a source.
type Replay struct {
	Path string
	// Speed scales the recorded pacing: 1 is real time, 0 delivers as fast as possible.
	Speed float64
	Loop  bool
}

func (rp Replay) Subscribe(ctx context.Context, h Handler) error {
	f, err := os.Open(rp.Path)
	if err != nil {
		return fmt.Errorf("open capture: %w", err)
	}
	recs, err := ReadRecords(f)
	_ = f.Close()
	if err != nil {
		return err
	}

	for {
		if err := rp.play(ctx, recs, h); err != nil {
			return err
		}
		if !rp.Loop || len(recs) == 0 {
			return nil
		}
	}
}

func (rp Replay) play(ctx context.Context, recs []Record, h Handler) error {
	var prev int64
	for i, rec := range recs {
		if rp.Speed > 0 && i > 0 && rec.AtNanos > prev {
			wait := time.Duration(float64(rec.AtNanos-prev) / rp.Speed)
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
		prev = rec.AtNanos

		switch rec.Kind {
		case KindMeasurements:
			h.OnMeasurements(*rec.Event)
		case KindNavigation:
			h.OnNavigationMessage(*rec.Navigation)
		}
	}
	return nil
}

// Recorder writes every delivery to w as capture lines and forwards it to Next.
type Recorder struct {
	Next Handler

	mu    sync.Mutex
	enc   *json.Encoder
	start time.Time
	err   error
}

// NewRecorder starts a capture whose offsets are measured from now.
func NewRecorder(w io.Writer, next Handler) *Recorder {
	return &Recorder{Next: next, enc: json.NewEncoder(w), start: time.Now()}
}

func (r *Recorder) OnMeasurements(ev model.MeasurementEvent) {
	r.write(Record{Kind: KindMeasurements, Event: &ev})
	if r.Next != nil {
		r.Next.OnMeasurements(ev)
	}
}

func (r *Recorder) OnNavigationMessage(msg model.NavMessage) {
	r.write(Record{Kind: KindNavigation, Navigation: &msg})
	if r.Next != nil {
		r.Next.OnNavigationMessage(msg)
	}
}

// Err returns the first write error, if any.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *Recorder) write(rec Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return
	}
	rec.AtNanos = time.Since(r.start).Nanoseconds()
	r.err = r.enc.Encode(rec)
}
