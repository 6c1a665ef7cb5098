package stats

import (
	"sort"
	"time"

	"github.com/aclements/go-moremath/stats"
)

// Summary holds the statistics of one group of values.
type Summary struct {
	Median float64
	Mean   float64
	Min    float64
	Max    float64
	// StdDev is the sample standard deviation, nil below two values.
	StdDev *float64
	Count  int
}

// Summarize computes the statistics of values. It returns false for an
// empty input.
func Summarize(values []float64) (Summary, bool) {
	if len(values) == 0 {
		return Summary{}, false
	}
	xs := append([]float64(nil), values...)
	sort.Float64s(xs)
	sample := stats.Sample{Xs: xs, Sorted: true}

	lo, hi := sample.Bounds()
	sum := Summary{
		Median: sample.Quantile(0.5),
		Mean:   sample.Mean(),
		Min:    lo,
		Max:    hi,
		Count:  len(xs),
	}
	if len(xs) >= 2 {
		sd := sample.StdDev()
		sum.StdDev = &sd
	}
	return sum, true
}

type groupKey struct {
	Key
	TestCategory string
	Unit         string
	HasUnit      bool
}

// Aggregate groups samples by stat key, category and unit and reduces each
// group to a Stat. When one key appears under several category/unit pairs
// the group with the most samples wins, ties going to the smaller category
// and then the smaller unit. Output is sorted by key.
func Aggregate(samples []Sample, now time.Time) []Stat {
	sorted := append([]Sample(nil), samples...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ResultID < sorted[j].ResultID })

	groups := make(map[groupKey][]float64)
	units := make(map[groupKey]*string)
	for _, s := range sorted {
		gk := groupKey{
			Key:          Key{s.CPUModel, s.Architecture, s.SystemType, s.TestName},
			TestCategory: s.TestCategory,
		}
		if s.Unit != nil {
			gk.Unit, gk.HasUnit = *s.Unit, true
		}
		groups[gk] = append(groups[gk], s.Value)
		if _, ok := units[gk]; !ok {
			units[gk] = s.Unit
		}
	}

	best := make(map[Key]groupKey)
	for gk, values := range groups {
		cur, ok := best[gk.Key]
		if !ok || preferGroup(gk, len(values), cur, len(groups[cur])) {
			best[gk.Key] = gk
		}
	}

	out := make([]Stat, 0, len(best))
	for k, gk := range best {
		sum, ok := Summarize(groups[gk])
		if !ok {
			continue
		}
		out = append(out, Stat{
			CPUModel:     k.CPUModel,
			Architecture: k.Architecture,
			SystemType:   k.SystemType,
			TestName:     k.TestName,
			TestCategory: gk.TestCategory,
			Unit:         units[gk],
			MedianValue:  ptr(sum.Median),
			MeanValue:    ptr(sum.Mean),
			MinValue:     ptr(sum.Min),
			MaxValue:     ptr(sum.Max),
			StddevValue:  sum.StdDev,
			SampleCount:  sum.Count,
			LastUpdated:  now,
		})
	}
	sort.Slice(out, func(i, j int) bool { return lessKey(out[i].Key(), out[j].Key()) })
	return out
}

func preferGroup(a groupKey, an int, b groupKey, bn int) bool {
	if an != bn {
		return an > bn
	}
	if a.TestCategory != b.TestCategory {
		return a.TestCategory < b.TestCategory
	}
	// a unit-less group sorts before any unit
	if a.HasUnit != b.HasUnit {
		return !a.HasUnit
	}
	return a.Unit < b.Unit
}

func lessKey(a, b Key) bool {
	if a.CPUModel != b.CPUModel {
		return a.CPUModel < b.CPUModel
	}
	if a.Architecture != b.Architecture {
		return a.Architecture < b.Architecture
	}
	if a.SystemType != b.SystemType {
		return a.SystemType < b.SystemType
	}
	return a.TestName < b.TestName
}

// StaleIDs returns the ids of existing rows whose key is not in fresh.
func StaleIDs(existing []Stat, fresh []Stat) []int64 {
	keep := make(map[Key]struct{}, len(fresh))
	for i := range fresh {
		keep[fresh[i].Key()] = struct{}{}
	}
	var ids []int64
	for i := range existing {
		if _, ok := keep[existing[i].Key()]; !ok {
			ids = append(ids, existing[i].ID)
		}
	}
	return ids
}

func ptr[T any](v T) *T { return &v }
