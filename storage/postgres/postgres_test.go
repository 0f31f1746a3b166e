package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/and161185/gnss-relay/internal/utils"
	"github.com/and161185/gnss-relay/model"
	"github.com/and161185/gnss-relay/storage"
)

func TestMeasurementRow_MatchesColumns(t *testing.T) {
	m := model.Measurement{Svid: 3, CodeType: utils.StrPtr("C"), BiasNanos: 0.5}
	row := measurementRow("b", time.Unix(0, 0), m)
	require.Len(t, row, len(measurementColumns))
	require.Equal(t, "b", row[0])
	require.Equal(t, 3, row[2])
	require.Equal(t, m.CodeType, row[16])
	require.Equal(t, 0.5, row[len(row)-1])
}

func TestNavDataConversion(t *testing.T) {
	in := []int8{-128, -1, 0, 1, 127}
	require.Equal(t, []int16{-128, -1, 0, 1, 127}, navDataToDB(in))
	require.Equal(t, in, navDataFromDB(navDataToDB(in)))
}

// Integration tests need a disposable database in PG_DSN.
func newTestStorage(t *testing.T) *PostgresStorage {
	t.Helper()
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	store, err := NewPostgresStorage(ctx, dsn, nil)
	require.NoError(t, err)
	t.Cleanup(store.Close)
	return store
}

func TestPostgresStorage_RoundTrip(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	require.NoError(t, store.Ping(ctx))

	batch := []model.Measurement{
		{Svid: 11, ConstellationType: model.ConstellationGalileo, Cn0DbHz: 41.5, CodeType: utils.StrPtr("B")},
		{Svid: 12, ConstellationType: model.ConstellationGPS, Cn0DbHz: 37},
	}
	id := uuid.NewString()

	n, dup, err := store.SaveMeasurements(ctx, id, batch)
	require.NoError(t, err)
	require.False(t, dup)
	require.Equal(t, 2, n)

	n, dup, err = store.SaveMeasurements(ctx, id, batch)
	require.NoError(t, err)
	require.True(t, dup)
	require.Zero(t, n)

	got, err := store.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, id, got[0].BatchID)
	require.Equal(t, batch[0], got[0].Record)
	require.Equal(t, batch[1], got[1].Record)

	_, _, err = store.SaveMeasurements(ctx, id, nil)
	require.ErrorIs(t, err, storage.ErrEmptyBatch)
}

func TestPostgresStorage_Nav(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	msg := model.NavMessage{MessageType: 257, MessageID: 4, SubMessageID: 2, Data: []int8{-5, 7}}
	id := uuid.NewString()

	dup, err := store.SaveNavMessage(ctx, id, msg)
	require.NoError(t, err)
	require.False(t, dup)

	dup, err = store.SaveNavMessage(ctx, id, msg)
	require.NoError(t, err)
	require.True(t, dup)

	got, err := store.RecentNav(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, msg, got[0].Message)
}
