package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/and161185/gnss-relay/model"
)

const (
	sheetMeasurements = "measurements"
	sheetSummary      = "summary"
)

var measurementHeader = []any{
	"receivedAt", "batchId", "svid", "constellation", "cn0DbHz", "state",
	"timeOffsetNanos", "receivedSvTimeNanos", "receivedSvTimeUncertaintyNanos",
	"pseudorangeRateMetersPerSecond", "pseudorangeRateUncertaintyMetersPerSecond",
	"accumulatedDeltaRangeState", "accumulatedDeltaRangeMeters", "accumulatedDeltaRangeUncertaintyMeters",
	"carrierFrequencyHz", "multipathIndicator", "codeType", "timeNanos", "fullBiasNanos", "biasNanos",
}

// BuildMeasurementsXLSX writes one row per measurement plus a summary sheet.
func BuildMeasurementsXLSX(stored []model.StoredMeasurement) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetMeasurements); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(sheetSummary); err != nil {
		return nil, err
	}

	if err := f.SetSheetRow(sheetMeasurements, "A1", &measurementHeader); err != nil {
		return nil, err
	}
	for i, s := range stored {
		m := s.Record
		codeType := ""
		if m.CodeType != nil {
			codeType = *m.CodeType
		}
		row := []any{
			s.ReceivedAt.Format(time.RFC3339Nano), s.BatchID, m.Svid, model.ConstellationName(m.ConstellationType),
			m.Cn0DbHz, m.State, m.TimeOffsetNanos, m.ReceivedSvTimeNanos, m.ReceivedSvTimeUncertaintyNanos,
			m.PseudorangeRateMetersPerSecond, m.PseudorangeRateUncertaintyMetersPerSecond,
			m.AccumulatedDeltaRangeState, m.AccumulatedDeltaRangeMeters, m.AccumulatedDeltaRangeUncertaintyMeters,
			m.CarrierFrequencyHz, m.MultipathIndicator, codeType, m.TimeNanos, m.FullBiasNanos, m.BiasNanos,
		}
		if err := f.SetSheetRow(sheetMeasurements, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return nil, err
		}
	}

	sum := Summarize(stored)
	_ = f.SetSheetRow(sheetSummary, "A1", &[]any{"constellation", "records", "satellites", "meanCn0DbHz"})
	for i, c := range sum.Constellations {
		_ = f.SetSheetRow(sheetSummary, fmt.Sprintf("A%d", i+2), &[]any{c.Name, c.Records, c.Satellites, c.MeanCn0DbHz})
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
