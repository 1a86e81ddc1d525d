// Package chat implements the client side of the InternHub room-chat
// protocol: the websocket connection manager, the single-active-room session,
// and the message log that reconciles optimistic sends with server events.
package chat

import "encoding/json"

// Realtime event names. Outbound events are emitted by this client, inbound
// ones are pushed by the chat server.
const (
	// outbound
	EventJoin            = "join"              // announce presence after connect
	EventJoinRoom        = "join_room"         // join a room's broadcast group
	EventLeaveRoom       = "leave_room"        // leave a room's broadcast group
	EventSendRoomMessage = "send_room_message" // submit a new message
	EventTyping          = "typing"
	EventStopTyping      = "stop_typing"

	// inbound
	EventReceiveMessage     = "receive_message"      // direct/legacy delivery
	EventReceiveRoomMessage = "receive_room_message" // room-scoped broadcast
	EventMessageSent        = "message_sent"         // ack of our own send
	EventMessageError       = "message_error"        // send failed server-side
)

// envelope is the wire framing for every realtime event in both directions.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// joinRoomPayload is sent with join_room events.
type joinRoomPayload struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}

// typingPayload is shared by typing and stop_typing in both directions.
type typingPayload struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}

// sendPayload is the body of send_room_message. The server assigns the
// durable id, so none is included here.
type sendPayload struct {
	Text      string `json:"message"`
	SenderID  string `json:"senderId"`
	RoomID    string `json:"roomId"`
	CreatedAt int64  `json:"createdAt"`
	Timestamp int64  `json:"timestamp"`
}

// errorPayload is the body of message_error.
type errorPayload struct {
	Message string `json:"message"`
}
