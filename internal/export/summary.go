// Package export renders stored measurements as summaries, spreadsheets and reports.
package export

import (
	"sort"

	"github.com/and161185/gnss-relay/model"
)

type sat struct{ constellation, svid int }

// Summarize aggregates records per constellation. Constellations are ordered by id.
func Summarize(stored []model.StoredMeasurement) model.Summary {
	sum := model.Summary{Records: len(stored), Constellations: []model.ConstellationStats{}}
	if len(stored) == 0 {
		return sum
	}

	type acc struct {
		records int
		cn0     float64
		sats    map[int]struct{}
	}
	byConst := map[int]*acc{}
	sum.From, sum.To = stored[0].ReceivedAt, stored[0].ReceivedAt

	for _, s := range stored {
		if s.ReceivedAt.Before(sum.From) {
			sum.From = s.ReceivedAt
		}
		if s.ReceivedAt.After(sum.To) {
			sum.To = s.ReceivedAt
		}
		c := s.Record.ConstellationType
		a, ok := byConst[c]
		if !ok {
			a = &acc{sats: map[int]struct{}{}}
			byConst[c] = a
		}
		a.records++
		a.cn0 += s.Record.Cn0DbHz
		a.sats[s.Record.Svid] = struct{}{}
	}

	for c, a := range byConst {
		sum.Constellations = append(sum.Constellations, model.ConstellationStats{
			Constellation: c,
			Name:          model.ConstellationName(c),
			Records:       a.records,
			Satellites:    len(a.sats),
			MeanCn0DbHz:   a.cn0 / float64(a.records),
		})
	}
	sort.Slice(sum.Constellations, func(i, j int) bool {
		return sum.Constellations[i].Constellation < sum.Constellations[j].Constellation
	})
	return sum
}
