package transcribe

// OutcomeKind classifies the terminal result of one segment job.
type OutcomeKind string

const (
	OutcomeTranscribed         OutcomeKind = "transcribed"
	OutcomeSkippedSilent       OutcomeKind = "skipped_silent"
	OutcomeExtractionFailed    OutcomeKind = "extraction_failed"
	OutcomeTranscriptionFailed OutcomeKind = "transcription_failed"
)

// Outcome is the immutable terminal record for one planned segment. Text
// holds either the normalized transcript or a bracketed marker carrying the
// segment's time range, so the assembled output stays human-navigable even
// when a segment fails.
type Outcome struct {
	Index int         `json:"index"`
	Kind  OutcomeKind `json:"kind"`
	Text  string      `json:"text"`
}

const silentMarkerText = "[Mostly silent - no significant audio content]"

// rangeTag renders an entry's [start - end) range for markers. Unbounded
// entries have no known end time.
func rangeTag(entry PlanEntry) string {
	if !entry.Bounded {
		return "[" + FormatClock(entry.Start) + " - end]"
	}
	return "[" + FormatClock(entry.Start) + " - " + FormatClock(entry.End()) + "]"
}

// skipMarker is the placeholder text for a segment judged mostly silent.
func skipMarker(entry PlanEntry) string {
	return rangeTag(entry) + " " + silentMarkerText
}

// errorMarker is the placeholder text for a failed segment.
func errorMarker(entry PlanEntry, reason string) string {
	return rangeTag(entry) + " [Error: " + reason + "]"
}
