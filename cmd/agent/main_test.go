package main

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/and161185/gnss-relay/internal/config"
	"github.com/and161185/gnss-relay/internal/server/testutils"
	"github.com/and161185/gnss-relay/internal/source"
)

func writeCapture(t *testing.T, dir string, sim source.Simulator, events int) string {
	t.Helper()
	var sb strings.Builder
	sb.WriteString("# two satellites\n")
	for i := 0; i < events; i++ {
		ev := sim.Event(i)
		line, err := json.Marshal(source.Record{Kind: source.KindMeasurements, AtNanos: int64(i) * 1e6, Event: &ev})
		require.NoError(t, err)
		sb.Write(line)
		sb.WriteByte('\n')
	}
	path := filepath.Join(dir, "capture.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0o600))
	return path
}

func TestRun_ReplayToCollector(t *testing.T) {
	srv, store := testutils.NewTestServer()
	h, err := srv.Router()
	require.NoError(t, err)
	ts := httptest.NewServer(h)
	defer ts.Close()

	dir := t.TempDir()
	sim := source.Simulator{Satellites: 2, Seed: 3}
	recordPath := filepath.Join(dir, "record.jsonl")
	cfg := &config.ClientConfig{
		ServerAddr:     ts.URL,
		ClientTimeout:  5,
		RateLimit:      1,
		Mode:           config.ModeBatch,
		Source:         config.SourceReplay,
		ReplayFile:     writeCapture(t, dir, sim, 3),
		RecordFile:     recordPath,
		APILevel:       30,
		BufferCapacity: 100,
		OverflowPolicy: "drop-oldest",
		Logger:         zap.NewNop().Sugar(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	require.NoError(t, run(ctx, cfg))

	require.Equal(t, 6, store.Len())

	f, err := os.Open(recordPath)
	require.NoError(t, err)
	defer f.Close()
	recs, err := source.ReadRecords(f)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	require.Equal(t, sim.Event(2).Clock, recs[2].Event.Clock)
}

func TestRun_BadPolicy(t *testing.T) {
	cfg := &config.ClientConfig{OverflowPolicy: "ring", Logger: zap.NewNop().Sugar()}
	require.Error(t, run(context.Background(), cfg))
}

func TestNewSource(t *testing.T) {
	sim, ok := newSource(&config.ClientConfig{Source: config.SourceSim, PollInterval: 2, SendNav: true}).(source.Simulator)
	require.True(t, ok)
	require.Equal(t, 2*time.Second, sim.Interval)
	require.Equal(t, navEvery, sim.NavEvery)

	rp, ok := newSource(&config.ClientConfig{Source: config.SourceReplay, ReplayFile: "x.jsonl"}).(source.Replay)
	require.True(t, ok)
	require.Equal(t, "x.jsonl", rp.Path)
}
