package source

import "github.com/and161185/gnss-relay/model"

// APILevelCodeType is the first platform level that reports the signal code type.
const APILevelCodeType = 29

// Capabilities describes what the delivering platform can report.
type Capabilities struct {
	APILevel int
}

// SupportsCodeType reports whether codeType should be copied into records.
func (c Capabilities) SupportsCodeType() bool {
	return c.APILevel >= APILevelCodeType
}

// ToRecords flattens one event into one record per satellite.
func ToRecords(ev model.MeasurementEvent, caps Capabilities) []model.Measurement {
	out := make([]model.Measurement, 0, len(ev.Measurements))
	for _, raw := range ev.Measurements {
		out = append(out, ToRecord(raw, ev.Clock, caps))
	}
	return out
}

// ToRecord copies the fixed field set of one sample and the receiver clock.
func ToRecord(raw model.RawMeasurement, clock model.Clock, caps Capabilities) model.Measurement {
	m := model.Measurement{
		Svid:                           raw.Svid,
		ConstellationType:              raw.ConstellationType,
		TimeOffsetNanos:                raw.TimeOffsetNanos,
		State:                          raw.State,
		ReceivedSvTimeNanos:            raw.ReceivedSvTimeNanos,
		ReceivedSvTimeUncertaintyNanos: raw.ReceivedSvTimeUncertaintyNanos,
		Cn0DbHz:                        raw.Cn0DbHz,
		PseudorangeRateMetersPerSecond: raw.PseudorangeRateMetersPerSecond,
		PseudorangeRateUncertaintyMetersPerSecond: raw.PseudorangeRateUncertaintyMetersPerSecond,
		AccumulatedDeltaRangeState:                raw.AccumulatedDeltaRangeState,
		AccumulatedDeltaRangeMeters:               raw.AccumulatedDeltaRangeMeters,
		AccumulatedDeltaRangeUncertaintyMeters:    raw.AccumulatedDeltaRangeUncertaintyMeters,
		CarrierFrequencyHz:                        raw.CarrierFrequencyHz,
		MultipathIndicator:                        raw.MultipathIndicator,
		TimeNanos:                                 clock.TimeNanos,
		FullBiasNanos:                             clock.FullBiasNanos,
		BiasNanos:                                 clock.BiasNanos,
	}
	if caps.SupportsCodeType() {
		code := raw.CodeType
		m.CodeType = &code
	}
	return m
}
