// SPDX-License-Identifier: MIT

// Package events defines the stamped event envelope delivered to
// subscribers and the per-session sequencer that stamps it.
package events

import "encoding/json"

// Type identifies the kind of event carried by an envelope.
type Type string

const (
	TypeHello            Type = "hello"
	TypeStatus           Type = "status"
	TypePartialEN        Type = "partial_en"
	TypePartialZH        Type = "partial_zh"
	TypeFinalEN          Type = "final_en"
	TypeFinalZH          Type = "final_zh"
	TypeVU               Type = "vu"
	TypeDownloadProgress Type = "download_progress"
	TypeError            Type = "error"
)

// IsFinal reports whether the event carries a finalized transcript or
// translation segment.
func (t Type) IsFinal() bool {
	return t == TypeFinalEN || t == TypeFinalZH
}

// Envelope is a single stamped event. Seq, TSServer and TSSession are
// assigned exactly once by a Stamper and never mutated afterwards.
// Payload keys are flattened into the top-level JSON object next to the
// envelope fields.
type Envelope struct {
	Type      Type
	Seq       uint64
	TSServer  float64 // wall clock, unix seconds
	TSSession float64 // monotonic offset from session start, seconds
	Payload   map[string]any
}

// MarshalJSON flattens the payload into the envelope object. Payload keys
// never shadow the reserved envelope fields.
func (e Envelope) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Payload)+4)
	for k, v := range e.Payload {
		out[k] = v
	}
	out["type"] = string(e.Type)
	out["seq"] = e.Seq
	out["ts_server"] = e.TSServer
	out["ts_session"] = e.TSSession
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON: reserved fields are lifted
// out and the remainder becomes the payload.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if v, ok := raw["type"]; ok {
		var t string
		if err := json.Unmarshal(v, &t); err != nil {
			return err
		}
		e.Type = Type(t)
		delete(raw, "type")
	}
	if v, ok := raw["seq"]; ok {
		if err := json.Unmarshal(v, &e.Seq); err != nil {
			return err
		}
		delete(raw, "seq")
	}
	if v, ok := raw["ts_server"]; ok {
		if err := json.Unmarshal(v, &e.TSServer); err != nil {
			return err
		}
		delete(raw, "ts_server")
	}
	if v, ok := raw["ts_session"]; ok {
		if err := json.Unmarshal(v, &e.TSSession); err != nil {
			return err
		}
		delete(raw, "ts_session")
	}
	if len(raw) > 0 {
		e.Payload = make(map[string]any, len(raw))
		for k, v := range raw {
			var val any
			if err := json.Unmarshal(v, &val); err != nil {
				return err
			}
			e.Payload[k] = val
		}
	}
	return nil
}
