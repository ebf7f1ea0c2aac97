// SPDX-License-Identifier: MIT

package transcript

import (
	"fmt"
	"strings"
	"time"
)

// Cue is one WebVTT subtitle cue. Cues in a file are sorted by start time
// and never overlap: cue[i].End <= cue[i+1].Start, and End > Start for
// every cue.
type Cue struct {
	Start time.Duration
	End   time.Duration
	Text  string
}

// AppendCue clamps c against the last existing cue so the non-overlap
// invariant holds, then appends it. Cues with a non-positive duration
// after clamping are discarded.
func AppendCue(cues []Cue, c Cue) []Cue {
	if len(cues) > 0 {
		last := cues[len(cues)-1]
		if c.Start < last.End {
			c.Start = last.End
		}
	}
	if c.End <= c.Start {
		return cues
	}
	return append(cues, c)
}

// FormatVTT renders the cues as a WebVTT document.
func FormatVTT(cues []Cue) string {
	var b strings.Builder
	b.WriteString("WEBVTT\n\n")
	for _, c := range cues {
		b.WriteString(vttTimestamp(c.Start))
		b.WriteString(" --> ")
		b.WriteString(vttTimestamp(c.End))
		b.WriteByte('\n')
		b.WriteString(c.Text)
		b.WriteString("\n\n")
	}
	return b.String()
}

func vttTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	ms := (d - s*time.Second) / time.Millisecond
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}
