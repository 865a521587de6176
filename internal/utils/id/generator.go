package id

import (
	"fmt"

	"github.com/google/uuid"
)

// NewRequestID generates a per-invocation correlation identifier. It doubles
// as the tool_call id surfaced on the event stream, so it must never be
// empty.
func NewRequestID() string {
	return newIdentifier("call")
}

// NewSessionID generates a session identifier with a stable prefix for
// display.
func NewSessionID() string {
	return newIdentifier("session")
}

func newIdentifier(prefix string) string {
	v7, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails when the random source does; fall back to v4.
		v7 = uuid.New()
	}
	return fmt.Sprintf("%s-%s", prefix, v7.String())
}
