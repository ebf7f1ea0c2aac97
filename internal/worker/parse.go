// SPDX-License-Identifier: MIT

package worker

import (
	"strings"

	"github.com/ManuGH/livecap/internal/events"
)

// Line prefixes of the worker's stdout protocol.
const (
	prefixPartialEN = "EN ≫ "  // "EN ≫ "
	prefixPartialZH = "ZH* ≫ " // "ZH* ≫ "
	prefixFinalEN   = "EN(final):"
	prefixFinalZH   = "ZH:"
	readyMarker     = "Ready — start speaking now"
)

// StageOperational is the status stage announced when the worker prints
// its ready marker.
const StageOperational = "operational"

// ParseLine maps one raw stdout line to a typed event. Unrecognized lines
// become plain status log events; no line is ever discarded by the parser.
func ParseLine(line string) (events.Type, map[string]any) {
	switch {
	case strings.HasPrefix(line, prefixPartialEN):
		return events.TypePartialEN, map[string]any{"text": strings.TrimSpace(line[len(prefixPartialEN):])}
	case strings.HasPrefix(line, prefixPartialZH):
		return events.TypePartialZH, map[string]any{"text": strings.TrimSpace(line[len(prefixPartialZH):])}
	case strings.HasPrefix(line, prefixFinalEN):
		return events.TypeFinalEN, map[string]any{"text": strings.TrimSpace(line[len(prefixFinalEN):])}
	case strings.HasPrefix(line, prefixFinalZH):
		return events.TypeFinalZH, map[string]any{"text": strings.TrimSpace(line[len(prefixFinalZH):])}
	case strings.Contains(line, readyMarker):
		return events.TypeStatus, map[string]any{"stage": StageOperational, "log": line}
	default:
		return events.TypeStatus, map[string]any{"log": line}
	}
}
