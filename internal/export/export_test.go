package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/and161185/gnss-relay/internal/utils"
	"github.com/and161185/gnss-relay/model"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func fixture() []model.StoredMeasurement {
	mk := func(sec, svid, constellation int, cn0 float64) model.StoredMeasurement {
		return model.StoredMeasurement{
			BatchID:    "b1",
			ReceivedAt: t0.Add(time.Duration(sec) * time.Second),
			Record:     model.Measurement{Svid: svid, ConstellationType: constellation, Cn0DbHz: cn0},
		}
	}
	return []model.StoredMeasurement{
		mk(5, 3, model.ConstellationGalileo, 30),
		mk(0, 1, model.ConstellationGPS, 40),
		mk(1, 1, model.ConstellationGPS, 42),
		mk(2, 7, model.ConstellationGPS, 35),
	}
}

func TestSummarize(t *testing.T) {
	sum := Summarize(fixture())
	require.Equal(t, 4, sum.Records)
	require.Equal(t, t0, sum.From)
	require.Equal(t, t0.Add(5*time.Second), sum.To)
	require.Len(t, sum.Constellations, 2)

	gps := sum.Constellations[0]
	require.Equal(t, "GPS", gps.Name)
	require.Equal(t, 3, gps.Records)
	require.Equal(t, 2, gps.Satellites)
	require.InDelta(t, 39.0, gps.MeanCn0DbHz, 1e-9)

	require.Equal(t, "GALILEO", sum.Constellations[1].Name)
}

func TestSummarize_Empty(t *testing.T) {
	sum := Summarize(nil)
	require.Zero(t, sum.Records)
	require.NotNil(t, sum.Constellations)
	require.Empty(t, sum.Constellations)
}

func TestBuildMeasurementsXLSX(t *testing.T) {
	stored := fixture()
	stored[0].Record.CodeType = utils.StrPtr("C")

	raw, err := BuildMeasurementsXLSX(stored)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(raw))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetMeasurements)
	require.NoError(t, err)
	require.Len(t, rows, 5)
	require.Equal(t, "svid", rows[0][2])
	require.Equal(t, "GALILEO", rows[1][3])
	require.Equal(t, "C", rows[1][16])

	summary, err := f.GetRows(sheetSummary)
	require.NoError(t, err)
	require.Len(t, summary, 3)
	require.Equal(t, "GPS", summary[1][0])
}

func TestBuildSummaryPDF(t *testing.T) {
	raw, err := BuildSummaryPDF(Summarize(fixture()), t0)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(raw, []byte("%PDF-")))

	raw, err = BuildSummaryPDF(Summarize(nil), t0)
	require.NoError(t, err)
	require.NotEmpty(t, raw)
}
