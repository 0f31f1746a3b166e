package buffer

import (
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/and161185/gnss-relay/model"
)

func rec(svid int) model.Measurement {
	return model.Measurement{Svid: svid, ConstellationType: model.ConstellationGPS}
}

func svids(ms []model.Measurement) []int {
	out := make([]int, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.Svid)
	}
	return out
}

func TestBuffer_AppendThenDrain(t *testing.T) {
	b := New(Config{}, nil)
	b.Append(rec(1))
	b.Append(rec(2))
	b.Append(rec(3))

	batch := b.DrainAll()
	require.Equal(t, []int{1, 2, 3}, svids(batch))
	require.Equal(t, 0, b.Len())

	require.Empty(t, b.DrainAll())
}

func TestBuffer_DrainEmpty(t *testing.T) {
	b := New(Config{Capacity: 2, Policy: Block}, nil)
	done := make(chan []model.Measurement)
	go func() { done <- b.DrainAll() }()
	select {
	case got := <-done:
		require.Empty(t, got)
	case <-time.After(time.Second):
		t.Fatal("drain on empty buffer blocked")
	}
	require.True(t, b.Append(rec(1)))
}

func TestBuffer_DrainedBatchIsIndependent(t *testing.T) {
	b := New(Config{}, nil)
	b.Append(rec(1))
	batch := b.DrainAll()
	b.Append(rec(2))
	require.Equal(t, []int{1}, svids(batch))
	require.Equal(t, []int{2}, svids(b.DrainAll()))
}

func TestBuffer_ConcurrentAppendDrain_ExactlyOnce(t *testing.T) {
	const producers, perProducer = 4, 2500
	b := New(Config{}, nil)

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				b.Append(rec(p*perProducer + i))
				if rand.IntN(100) == 0 {
					time.Sleep(time.Microsecond)
				}
			}
		}(p)
	}

	seen := make(map[int]int)
	stop := make(chan struct{})
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for {
			for _, m := range b.DrainAll() {
				seen[m.Svid]++
			}
			select {
			case <-stop:
				return
			default:
			}
		}
	}()

	wg.Wait()
	close(stop)
	<-drained
	for _, m := range b.DrainAll() {
		seen[m.Svid]++
	}

	require.Len(t, seen, producers*perProducer)
	for id, n := range seen {
		require.Equalf(t, 1, n, "svid %d seen %d times", id, n)
	}
}

func TestBuffer_DropOldest(t *testing.T) {
	b := New(Config{Capacity: 2, Policy: DropOldest}, nil)
	var lost int
	b.OnDrop = func(n int) { lost += n }

	require.True(t, b.Append(rec(1)))
	require.True(t, b.Append(rec(2)))
	require.True(t, b.Append(rec(3)))

	require.Equal(t, []int{2, 3}, svids(b.DrainAll()))
	require.EqualValues(t, 1, b.Dropped())
	require.Equal(t, 1, lost)
}

func TestBuffer_DropNewest(t *testing.T) {
	b := New(Config{Capacity: 2, Policy: DropNewest}, nil)
	require.True(t, b.Append(rec(1)))
	require.True(t, b.Append(rec(2)))
	require.False(t, b.Append(rec(3)))

	require.Equal(t, []int{1, 2}, svids(b.DrainAll()))
	require.EqualValues(t, 1, b.Dropped())
}

func TestBuffer_BlockWaitsForDrain(t *testing.T) {
	b := New(Config{Capacity: 1, Policy: Block}, nil)
	require.True(t, b.Append(rec(1)))

	appended := make(chan bool)
	go func() { appended <- b.Append(rec(2)) }()

	select {
	case <-appended:
		t.Fatal("append should block while the buffer is full")
	case <-time.After(30 * time.Millisecond):
	}

	require.Equal(t, []int{1}, svids(b.DrainAll()))
	select {
	case ok := <-appended:
		require.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("append was not released by drain")
	}
	require.Equal(t, []int{2}, svids(b.DrainAll()))
}

func TestBuffer_CloseReleasesBlocked(t *testing.T) {
	b := New(Config{Capacity: 1, Policy: Block}, nil)
	b.Append(rec(1))

	appended := make(chan bool)
	go func() { appended <- b.Append(rec(2)) }()
	time.Sleep(10 * time.Millisecond)
	b.Close()

	select {
	case ok := <-appended:
		require.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("close did not release producer")
	}
	require.False(t, b.Append(rec(3)))
	require.Equal(t, []int{1}, svids(b.DrainAll()))
	require.EqualValues(t, 2, b.Dropped())
}

func TestBuffer_UnboundedWarns(t *testing.T) {
	core, obs := observer.New(zap.WarnLevel)
	b := New(Config{WarnAt: 2}, zap.New(core).Sugar())
	require.Equal(t, 1, obs.FilterMessageSnippet("unbounded").Len())

	for i := 0; i < 5; i++ {
		b.Append(rec(i))
	}
	require.Equal(t, 2, obs.FilterMessageSnippet("keeps growing").Len())

	b.DrainAll()
	b.Append(rec(9))
	b.Append(rec(10))
	require.Equal(t, 3, obs.FilterMessageSnippet("keeps growing").Len())
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	require.Equal(t, DropOldest, p)

	p, err = ParsePolicy("block")
	require.NoError(t, err)
	require.Equal(t, Block, p)

	_, err = ParsePolicy("ring")
	require.ErrorIs(t, err, ErrUnknownPolicy)
}
