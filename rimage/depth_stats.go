package rimage

import (
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
)

// DepthStats summarizes the non-zero samples of a depth map, in raw units.
type DepthStats struct {
	Samples int
	Valid   int
	Min     float64
	Max     float64
	Mean    float64
	Median  float64
	StdDev  float64
	P5      float64
	P95     float64
}

// ValidRatio is the fraction of samples carrying a reading.
func (s DepthStats) ValidRatio() float64 {
	if s.Samples == 0 {
		return 0
	}
	return float64(s.Valid) / float64(s.Samples)
}

// ComputeDepthStats describes the distribution of valid samples. A map without any valid
// sample only reports its sample counts.
func ComputeDepthStats(dm *DepthMap) (DepthStats, error) {
	out := DepthStats{Samples: dm.Width() * dm.Height()}
	data := make(stats.Float64Data, 0, out.Samples)
	for y := 0; y < dm.Height(); y++ {
		for x := 0; x < dm.Width(); x++ {
			if d := dm.GetDepth(x, y); d != 0 {
				data = append(data, float64(d))
			}
		}
	}
	out.Valid = len(data)
	if out.Valid == 0 {
		return out, nil
	}

	var err error
	steps := []struct {
		dst *float64
		fn  func() (float64, error)
	}{
		{&out.Min, data.Min},
		{&out.Max, data.Max},
		{&out.Mean, data.Mean},
		{&out.Median, data.Median},
		{&out.StdDev, data.StandardDeviation},
		{&out.P5, func() (float64, error) { return data.PercentileNearestRank(5) }},
		{&out.P95, func() (float64, error) { return data.PercentileNearestRank(95) }},
	}
	for _, s := range steps {
		if *s.dst, err = s.fn(); err != nil {
			return DepthStats{}, errors.Wrap(err, "depth statistics")
		}
	}
	return out, nil
}
