// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared across spans.
const (
	SessionIDKey     = "session.id"
	SessionDeviceKey = "session.device"
	SessionModelKey  = "session.model"
	SessionStateKey  = "session.state"

	JobIDKey     = "job.id"
	JobRepoIDKey = "job.repo_id"
	JobTypeKey   = "job.type"

	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// SessionAttributes builds span attributes for session lifecycle spans.
func SessionAttributes(sessionID, device, model string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	if sessionID != "" {
		attrs = append(attrs, attribute.String(SessionIDKey, sessionID))
	}
	if device != "" {
		attrs = append(attrs, attribute.String(SessionDeviceKey, device))
	}
	if model != "" {
		attrs = append(attrs, attribute.String(SessionModelKey, model))
	}
	return attrs
}

// JobAttributes builds span attributes for download job spans.
func JobAttributes(jobID, repoID, jobType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(JobIDKey, jobID),
		attribute.String(JobRepoIDKey, repoID),
		attribute.String(JobTypeKey, jobType),
	}
}

// ErrorAttributes marks a span as failed.
func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
