package core

import (
	"github.com/google/uuid"

	"pkt.systems/panecast/schema"
)

// NewClientID returns a fresh client identifier.
func NewClientID() schema.ClientID {
	return schema.ClientID(uuid.NewString())
}

// NewTerminalID returns a fresh terminal session identifier.
func NewTerminalID() schema.TerminalID {
	return schema.TerminalID(uuid.NewString())
}
