package source

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/and161185/gnss-relay/model"
)

const (
	gpsL1Hz     = 1575.42e6
	glonassL1Hz = 1602.0e6
	beidouB1Hz  = 1561.098e6

	speedOfLight = 299792458.0

	// GPS navigation message type for L1 C/A.
	navTypeGPSL1CA = 0x0101
)

// Simulator emits a synthetic constellation at a fixed rate.
// Output depends only on Seed and the event index, so runs are reproducible.
type Simulator struct {
	Interval   time.Duration
	Satellites int
	Seed       uint64
	// NavEvery emits one navigation message after every NavEvery measurement events; 0 disables.
	NavEvery int
	// Denied simulates a platform that refuses measurement access.
	Denied bool
	// Limit stops the feed after that many events; 0 runs until ctx is done.
	Limit int
}

type simSat struct {
	svid          int
	constellation int
	carrierHz     float64
	cn0           float64
	rangeRate     float64
}

func (s Simulator) Subscribe(ctx context.Context, h Handler) error {
	if s.Denied {
		return ErrPermissionDenied
	}
	interval := s.Interval
	if interval <= 0 {
		interval = time.Second
	}
	sats := s.satellites()

	t := time.NewTicker(interval)
	defer t.Stop()

	for i := 0; s.Limit == 0 || i < s.Limit; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}

		h.OnMeasurements(s.event(i, sats))
		if s.NavEvery > 0 && (i+1)%s.NavEvery == 0 {
			h.OnNavigationMessage(s.NavMessage(i))
		}
	}
	return nil
}

func (s Simulator) satellites() []simSat {
	n := s.Satellites
	if n <= 0 {
		n = 8
	}
	rng := rand.New(rand.NewPCG(s.Seed, s.Seed^0x9e3779b97f4a7c15))

	constellations := []int{model.ConstellationGPS, model.ConstellationGalileo, model.ConstellationGLONASS, model.ConstellationBeidou}
	sats := make([]simSat, 0, n)
	for i := 0; i < n; i++ {
		c := constellations[i%len(constellations)]
		sat := simSat{
			svid:          1 + i/len(constellations) + rng.IntN(24),
			constellation: c,
			cn0:           25 + rng.Float64()*20,
			rangeRate:     (rng.Float64() - 0.5) * 1600,
		}
		switch c {
		case model.ConstellationGLONASS:
			sat.carrierHz = glonassL1Hz + float64(sat.svid%14-7)*562.5e3
		case model.ConstellationBeidou:
			sat.carrierHz = beidouB1Hz
		default:
			sat.carrierHz = gpsL1Hz
		}
		sats = append(sats, sat)
	}
	return sats
}

// Event builds the i-th synthetic event.
func (s Simulator) Event(i int) model.MeasurementEvent {
	return s.event(i, s.satellites())
}

func (s Simulator) event(i int, sats []simSat) model.MeasurementEvent {
	timeNanos := int64(i+1) * int64(time.Second)
	clock := model.Clock{
		TimeNanos:     timeNanos,
		FullBiasNanos: -1_300_000_000_000_000_000 - int64(s.Seed%1000),
		BiasNanos:     0.5,
	}

	raws := make([]model.RawMeasurement, 0, len(sats))
	for k, sat := range sats {
		wobble := math.Sin(float64(i+k) / 10)
		raws = append(raws, model.RawMeasurement{
			Svid:                           sat.svid,
			ConstellationType:              sat.constellation,
			State:                          0x3fff,
			ReceivedSvTimeNanos:            timeNanos - 70_000_000 - int64(k)*1_000_000,
			ReceivedSvTimeUncertaintyNanos: 10 + int64(k),
			Cn0DbHz:                        sat.cn0 + wobble,
			PseudorangeRateMetersPerSecond: sat.rangeRate + wobble,
			PseudorangeRateUncertaintyMetersPerSecond: 0.1,
			AccumulatedDeltaRangeState:                1,
			AccumulatedDeltaRangeMeters:               sat.rangeRate * float64(i+1),
			AccumulatedDeltaRangeUncertaintyMeters:    speedOfLight / sat.carrierHz / 100,
			CarrierFrequencyHz:                        sat.carrierHz,
			CodeType:                                  "C",
		})
	}
	return model.MeasurementEvent{Clock: clock, Measurements: raws}
}

// NavMessage builds the navigation message emitted after the i-th event.
func (s Simulator) NavMessage(i int) model.NavMessage {
	data := make([]byte, 40)
	for k := range data {
		data[k] = byte(i*7 + k*13)
	}
	return model.NavMessage{
		MessageType:  navTypeGPSL1CA,
		MessageID:    1 + i%25,
		SubMessageID: 1 + i%5,
		Data:         model.NavData(data),
	}
}
