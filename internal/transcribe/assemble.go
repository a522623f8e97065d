package transcribe

import (
	"sort"
	"strings"

	"longform-transcriber/internal/domain"
)

// Result contains the assembled transcript and aggregate counts for one run.
type Result struct {
	SegmentTexts []string
	Counts       domain.SegmentCounts
	Transcript   string
	TextPath     string
}

// Assemble orders outcomes strictly by segment index, joins their texts with
// a blank-line separator, and computes aggregate counts. Output order is a
// pure function of index, never of completion order, so any permutation of
// the same outcomes assembles identically.
func Assemble(outcomes []Outcome) Result {
	ordered := append([]Outcome(nil), outcomes...)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Index < ordered[j].Index
	})

	texts := make([]string, 0, len(ordered))
	counts := domain.SegmentCounts{Total: len(ordered)}
	for _, outcome := range ordered {
		texts = append(texts, outcome.Text)
		switch outcome.Kind {
		case OutcomeTranscribed:
			counts.Transcribed++
		case OutcomeSkippedSilent:
			counts.Skipped++
		case OutcomeExtractionFailed, OutcomeTranscriptionFailed:
			counts.Failed++
		}
	}

	return Result{
		SegmentTexts: texts,
		Counts:       counts,
		Transcript:   strings.Join(texts, "\n\n"),
	}
}
