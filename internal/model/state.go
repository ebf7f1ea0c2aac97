// SPDX-License-Identifier: MIT

package model

// SessionState is the client-visible lifecycle of a session.
type SessionState string

const (
	StateInitializing SessionState = "initializing"
	StateOperational  SessionState = "operational"
	StateStopping     SessionState = "stopping"
	StateStopped      SessionState = "stopped"
	StateFailed       SessionState = "failed"
)

// IsTerminal reports whether the state is final.
func (s SessionState) IsTerminal() bool {
	switch s {
	case StateStopped, StateFailed:
		return true
	}
	return false
}

// CanTransition encodes the session state machine.
func (s SessionState) CanTransition(to SessionState) bool {
	switch s {
	case StateInitializing:
		return to == StateOperational || to == StateFailed || to == StateStopping
	case StateOperational:
		return to == StateStopping || to == StateFailed
	case StateStopping:
		return to == StateStopped
	default:
		return false
	}
}
