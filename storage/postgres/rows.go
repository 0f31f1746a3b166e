package postgres

import (
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/and161185/gnss-relay/model"
)

// measurementRow lays out m in measurementColumns order.
func measurementRow(batchID string, at time.Time, m model.Measurement) []any {
	return []any{
		batchID, at, m.Svid, m.ConstellationType, m.TimeOffsetNanos, m.State,
		m.ReceivedSvTimeNanos, m.ReceivedSvTimeUncertaintyNanos, m.Cn0DbHz,
		m.PseudorangeRateMetersPerSecond, m.PseudorangeRateUncertaintyMetersPerSecond,
		m.AccumulatedDeltaRangeState, m.AccumulatedDeltaRangeMeters, m.AccumulatedDeltaRangeUncertaintyMeters,
		m.CarrierFrequencyHz, m.MultipathIndicator, m.CodeType, m.TimeNanos, m.FullBiasNanos, m.BiasNanos,
	}
}

func scanMeasurement(row pgx.CollectableRow) (model.StoredMeasurement, error) {
	var s model.StoredMeasurement
	m := &s.Record
	err := row.Scan(
		&s.BatchID, &s.ReceivedAt, &m.Svid, &m.ConstellationType, &m.TimeOffsetNanos, &m.State,
		&m.ReceivedSvTimeNanos, &m.ReceivedSvTimeUncertaintyNanos, &m.Cn0DbHz,
		&m.PseudorangeRateMetersPerSecond, &m.PseudorangeRateUncertaintyMetersPerSecond,
		&m.AccumulatedDeltaRangeState, &m.AccumulatedDeltaRangeMeters, &m.AccumulatedDeltaRangeUncertaintyMeters,
		&m.CarrierFrequencyHz, &m.MultipathIndicator, &m.CodeType, &m.TimeNanos, &m.FullBiasNanos, &m.BiasNanos,
	)
	s.ReceivedAt = s.ReceivedAt.UTC()
	return s, err
}

func joinColumns(cols []string) string {
	return strings.Join(cols, ", ")
}

// Navigation bits are stored as SMALLINT[] holding the signed byte values.
func navDataToDB(data []int8) []int16 {
	out := make([]int16, len(data))
	for i, v := range data {
		out[i] = int16(v)
	}
	return out
}

func navDataFromDB(data []int16) []int8 {
	out := make([]int8, len(data))
	for i, v := range data {
		out[i] = int8(v)
	}
	return out
}
