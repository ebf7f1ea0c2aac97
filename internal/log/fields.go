// SPDX-License-Identifier: MIT

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID = "session_id"
	FieldRequestID = "request_id"
	FieldJobID     = "job_id"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldDevice    = "device"
	FieldModel     = "model"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"
	FieldStage    = "stage"

	// Path fields
	FieldPath   = "path"
	FieldRunDir = "run_dir"
)
