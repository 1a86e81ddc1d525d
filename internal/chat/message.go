package chat

import (
	"fmt"
	"strings"
	"time"
)

// User is the authenticated identity as resolved from the auth backend.
type User struct {
	ID   string `json:"id" toml:"id"`
	Name string `json:"name" toml:"name"`
}

// Room is a named broadcast group messages are scoped to.
type Room struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Member is a user enrolled in a room.
type Member struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// pendingPrefix marks client-generated placeholder ids. A message carries
// either a pending id or a server-assigned durable id, never both.
const pendingPrefix = "temp-"

// Message is a single chat message. Timestamps are epoch milliseconds as
// carried on the wire.
type Message struct {
	ID        string `json:"id"`
	RoomID    string `json:"roomId"`
	SenderID  string `json:"senderId"`
	Text      string `json:"message"`
	CreatedAt int64  `json:"createdAt"`
	Timestamp int64  `json:"timestamp"`

	// Failed is set locally when a pending send stays unacknowledged past
	// the session's pending timeout. Never sent on the wire.
	Failed bool `json:"-"`
}

// Pending reports whether this message still carries a client-generated
// placeholder id, i.e. the server has not confirmed persistence yet.
func (m Message) Pending() bool {
	return strings.HasPrefix(m.ID, pendingPrefix)
}

// newPending builds the optimistic local record for a send at instant now.
func newPending(roomID, senderID, text string, now time.Time) Message {
	ms := now.UnixMilli()
	return Message{
		ID:        fmt.Sprintf("%s%d", pendingPrefix, ms),
		RoomID:    roomID,
		SenderID:  senderID,
		Text:      text,
		CreatedAt: ms,
		Timestamp: ms,
	}
}
