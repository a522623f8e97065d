package transcribe

import (
	"math"

	"longform-transcriber/internal/domain"
)

// Density classifies how much of a sampled window carries speech content.
type Density string

const (
	DensitySparse   Density = "sparse"
	DensityModerate Density = "moderate"
	DensityDense    Density = "dense"
)

// PlanEntry is one planned segment on the global media timeline.
// An unbounded entry covers the whole resource when duration is unknown.
type PlanEntry struct {
	Index    int     `json:"index"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
	Bounded  bool    `json:"bounded"`
}

// End returns the exclusive end offset of a bounded entry.
func (e PlanEntry) End() float64 {
	return e.Start + e.Duration
}

// Plan is an ordered, gap-free segmentation of the source media.
type Plan struct {
	Entries       []PlanEntry
	TotalDuration float64
	DurationKnown bool
}

// ClassifyDensity maps a sampled silence ratio to a density class.
func ClassifyDensity(ratio float64, cfg domain.SegmentingSettings) Density {
	switch {
	case ratio > cfg.SparseRatio:
		return DensitySparse
	case ratio > cfg.ModerateRatio:
		return DensityModerate
	default:
		return DensityDense
	}
}

// SegmentLength returns the target segment length for a density class.
func SegmentLength(density Density, cfg domain.SegmentingSettings) float64 {
	switch density {
	case DensitySparse:
		return cfg.SparseLengthSeconds
	case DensityDense:
		return cfg.DenseLengthSeconds
	default:
		return cfg.ModerateLengthSeconds
	}
}

// PlanSegments partitions [0, total) into dense, index-ordered entries of at
// most segmentLength seconds, truncating the final entry to the remainder.
func PlanSegments(total, segmentLength float64) Plan {
	if total <= 0 || segmentLength <= 0 {
		return SingleSegmentPlan()
	}

	count := int(math.Ceil(total / segmentLength))
	entries := make([]PlanEntry, 0, count)
	for i := 0; i < count; i++ {
		start := float64(i) * segmentLength
		duration := math.Min(segmentLength, total-start)
		if duration <= 0 {
			break
		}
		entries = append(entries, PlanEntry{
			Index:    i,
			Start:    start,
			Duration: duration,
			Bounded:  true,
		})
	}

	return Plan{
		Entries:       entries,
		TotalDuration: total,
		DurationKnown: true,
	}
}

// SingleSegmentPlan treats the whole resource as one unbounded segment.
// Used when the duration probe fails; parallelism is bypassed entirely.
func SingleSegmentPlan() Plan {
	return Plan{
		Entries: []PlanEntry{{Index: 0}},
	}
}
