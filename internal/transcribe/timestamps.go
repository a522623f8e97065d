package transcribe

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// timestampPattern is the strict token grammar for timeline tags. The
// upstream text generator is not obligated to emit well-formed tokens, so
// everything here is best-effort.
var timestampPattern = regexp.MustCompile(`\[(\d{1,2}):(\d{2})\]`)

// driftWindowSeconds is the reset-detection boundary: a first tag below this
// offset inside a segment that truly starts beyond it signals that the
// remote capability restarted numbering from zero.
const driftWindowSeconds = 60

// FormatClock renders a timeline offset as MM:SS. Minutes grow past 59 for
// multi-hour media instead of rolling over.
func FormatClock(seconds float64) string {
	total := int(seconds + 0.5)
	if total < 0 {
		total = 0
	}
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

// NormalizeTimestamps corrects reset [MM:SS] numbering onto the global
// timeline. When the first parsed tag implies an offset under the drift
// window while the segment truly starts beyond it, every tag is shifted by
// the segment's start offset; otherwise the text passes through unchanged.
// Non-timestamp content is preserved verbatim either way.
func NormalizeTimestamps(text string, segmentStart float64) string {
	matches := timestampPattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text
	}

	first, ok := tagOffset(text, matches[0])
	if !ok {
		return text
	}
	if !(first < driftWindowSeconds && segmentStart > driftWindowSeconds) {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))
	cursor := 0
	for _, m := range matches {
		offset, ok := tagOffset(text, m)
		if !ok {
			continue
		}
		b.WriteString(text[cursor:m[0]])
		b.WriteString("[" + FormatClock(offset+segmentStart) + "]")
		cursor = m[1]
	}
	b.WriteString(text[cursor:])
	return b.String()
}

// tagOffset parses one matched tag into seconds on the segment timeline.
func tagOffset(text string, m []int) (float64, bool) {
	minutes, err := strconv.Atoi(text[m[2]:m[3]])
	if err != nil {
		return 0, false
	}
	seconds, err := strconv.Atoi(text[m[4]:m[5]])
	if err != nil {
		return 0, false
	}
	if seconds > 59 {
		return 0, false
	}
	return float64(minutes*60 + seconds), true
}
