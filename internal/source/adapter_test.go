package source

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/and161185/gnss-relay/model"
)

func sampleEvent() model.MeasurementEvent {
	return model.MeasurementEvent{
		Clock: model.Clock{TimeNanos: 1000, FullBiasNanos: -42, BiasNanos: 0.5},
		Measurements: []model.RawMeasurement{
			{Svid: 5, ConstellationType: model.ConstellationGPS, Cn0DbHz: 40.5, CodeType: "C"},
			{Svid: 11, ConstellationType: model.ConstellationGalileo, Cn0DbHz: 33, CodeType: "B"},
		},
	}
}

func TestToRecords_CopiesClockIntoEveryRecord(t *testing.T) {
	recs := ToRecords(sampleEvent(), Capabilities{APILevel: 30})
	require.Len(t, recs, 2)
	for _, r := range recs {
		require.EqualValues(t, 1000, r.TimeNanos)
		require.EqualValues(t, -42, r.FullBiasNanos)
		require.InDelta(t, 0.5, r.BiasNanos, 1e-9)
	}
	require.Equal(t, 5, recs[0].Svid)
	require.Equal(t, "C", *recs[0].CodeType)
	require.Equal(t, "B", *recs[1].CodeType)
}

func TestToRecords_CodeTypeCapability(t *testing.T) {
	tests := []struct {
		name     string
		apiLevel int
		want     bool
	}{
		{"old platform", 28, false},
		{"first supporting level", APILevelCodeType, true},
		{"newer platform", 34, true},
		{"unknown", 0, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			recs := ToRecords(sampleEvent(), Capabilities{APILevel: tc.apiLevel})
			raw, err := json.Marshal(recs[0])
			require.NoError(t, err)

			var fields map[string]any
			require.NoError(t, json.Unmarshal(raw, &fields))
			_, has := fields["codeType"]
			require.Equal(t, tc.want, has)
		})
	}
}

func TestToRecords_EmptyEvent(t *testing.T) {
	require.Empty(t, ToRecords(model.MeasurementEvent{}, Capabilities{}))
}
