// SPDX-License-Identifier: MIT

package session

import "errors"

var (
	// ErrGPUBusy is returned when CUDA admission fails. The message is
	// part of the API contract.
	ErrGPUBusy = errors.New("GPU busy: maximum concurrent CUDA sessions reached")

	// ErrSessionNotFound is returned for unknown session ids.
	ErrSessionNotFound = errors.New("session not found")
)
