// Package model contains core data types for the project.
package model

import "time"

// Constellation identifiers as reported by the platform.
const (
	ConstellationUnknown = 0
	ConstellationGPS     = 1
	ConstellationSBAS    = 2
	ConstellationGLONASS = 3
	ConstellationQZSS    = 4
	ConstellationBeidou  = 5
	ConstellationGalileo = 6
	ConstellationIRNSS   = 7
)

// Measurement is one satellite observation flattened together with the receiver clock.
// It is the element of the JSON array posted to /gnssdata.
type Measurement struct {
	Svid                                      int     `json:"svid"`
	ConstellationType                         int     `json:"constellationType"`
	TimeOffsetNanos                           float64 `json:"timeOffsetNanos"`
	State                                     int     `json:"state"`
	ReceivedSvTimeNanos                       int64   `json:"receivedSvTimeNanos"`
	ReceivedSvTimeUncertaintyNanos            int64   `json:"receivedSvTimeUncertaintyNanos"`
	Cn0DbHz                                   float64 `json:"cn0DbHz"`
	PseudorangeRateMetersPerSecond            float64 `json:"pseudorangeRateMetersPerSecond"`
	PseudorangeRateUncertaintyMetersPerSecond float64 `json:"pseudorangeRateUncertaintyMetersPerSecond"`
	AccumulatedDeltaRangeState                int     `json:"accumulatedDeltaRangeState"`
	AccumulatedDeltaRangeMeters               float64 `json:"accumulatedDeltaRangeMeters"`
	AccumulatedDeltaRangeUncertaintyMeters    float64 `json:"accumulatedDeltaRangeUncertaintyMeters"`
	CarrierFrequencyHz                        float64 `json:"carrierFrequencyHz"`
	MultipathIndicator                        int     `json:"multipathIndicator"`
	CodeType                                  *string `json:"codeType,omitempty"` // Present only when the platform supports it.

	TimeNanos     int64   `json:"timeNanos"`
	FullBiasNanos int64   `json:"fullBiasNanos"`
	BiasNanos     float64 `json:"biasNanos"`
}

// NavMessage is a navigation message posted to /gnssnavdata.
// Data is kept signed so it serializes as a JSON array of numbers.
type NavMessage struct {
	MessageType  int    `json:"messageType"`
	MessageID    int    `json:"messageId"`
	SubMessageID int    `json:"subMessageId"`
	Data         []int8 `json:"data"`
}

// NavData converts raw navigation bits into the wire representation.
func NavData(b []byte) []int8 {
	out := make([]int8, len(b))
	for i, v := range b {
		out[i] = int8(v)
	}
	return out
}

// Clock holds the receiver clock fields shared by every measurement of one event.
type Clock struct {
	TimeNanos     int64   `json:"timeNanos"`
	FullBiasNanos int64   `json:"fullBiasNanos"`
	BiasNanos     float64 `json:"biasNanos"`
}

// RawMeasurement is a platform sample as delivered by a measurement source.
type RawMeasurement struct {
	Svid                                      int     `json:"svid"`
	ConstellationType                         int     `json:"constellationType"`
	TimeOffsetNanos                           float64 `json:"timeOffsetNanos"`
	State                                     int     `json:"state"`
	ReceivedSvTimeNanos                       int64   `json:"receivedSvTimeNanos"`
	ReceivedSvTimeUncertaintyNanos            int64   `json:"receivedSvTimeUncertaintyNanos"`
	Cn0DbHz                                   float64 `json:"cn0DbHz"`
	PseudorangeRateMetersPerSecond            float64 `json:"pseudorangeRateMetersPerSecond"`
	PseudorangeRateUncertaintyMetersPerSecond float64 `json:"pseudorangeRateUncertaintyMetersPerSecond"`
	AccumulatedDeltaRangeState                int     `json:"accumulatedDeltaRangeState"`
	AccumulatedDeltaRangeMeters               float64 `json:"accumulatedDeltaRangeMeters"`
	AccumulatedDeltaRangeUncertaintyMeters    float64 `json:"accumulatedDeltaRangeUncertaintyMeters"`
	CarrierFrequencyHz                        float64 `json:"carrierFrequencyHz"`
	MultipathIndicator                        int     `json:"multipathIndicator"`
	CodeType                                  string  `json:"codeType"`
}

// MeasurementEvent is one delivery from a measurement source.
type MeasurementEvent struct {
	Clock        Clock            `json:"clock"`
	Measurements []RawMeasurement `json:"measurements"`
}

// StoredMeasurement is a measurement as persisted by the collector.
type StoredMeasurement struct {
	BatchID    string      `json:"batchId"`
	ReceivedAt time.Time   `json:"receivedAt"`
	Record     Measurement `json:"record"`
}

// StoredNavMessage is a navigation message as persisted by the collector.
type StoredNavMessage struct {
	BatchID    string     `json:"batchId"`
	ReceivedAt time.Time  `json:"receivedAt"`
	Message    NavMessage `json:"message"`
}

// ConstellationStats aggregates records of one constellation.
type ConstellationStats struct {
	Constellation int     `json:"constellation"`
	Name          string  `json:"name"`
	Records       int     `json:"records"`
	Satellites    int     `json:"satellites"`
	MeanCn0DbHz   float64 `json:"meanCn0DbHz"`
}

// Summary describes a set of stored measurements.
type Summary struct {
	Records        int                  `json:"records"`
	From           time.Time            `json:"from"`
	To             time.Time            `json:"to"`
	Constellations []ConstellationStats `json:"constellations"`
}

// ConstellationName returns a human readable constellation label.
func ConstellationName(c int) string {
	switch c {
	case ConstellationGPS:
		return "GPS"
	case ConstellationSBAS:
		return "SBAS"
	case ConstellationGLONASS:
		return "GLONASS"
	case ConstellationQZSS:
		return "QZSS"
	case ConstellationBeidou:
		return "BEIDOU"
	case ConstellationGalileo:
		return "GALILEO"
	case ConstellationIRNSS:
		return "IRNSS"
	default:
		return "UNKNOWN"
	}
}
