// Package domain contains core concepts of the chat relay.
// Messages are immutable and owned by the history store once written.
// No runtime, network, or UI logic should be added here.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message represents one chat line relayed inside a room.
type Message struct {
	ID      uuid.UUID // unique identifier
	Room    string
	Author  string
	Content string
	Lang    string // ISO 639-1 code detected at relay time, empty when unknown
	At      time.Time
}

// Rendered returns the line delivered to room members: "autor: texto".
func (m Message) Rendered() string {
	return m.Author + ": " + m.Content
}
