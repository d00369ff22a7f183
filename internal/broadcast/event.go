// ABOUTME: Broadcast event type shared by local fan-out and the cross-process bridge
// ABOUTME: Events are transient; only the messages they reference are persisted

package broadcast

import (
	"encoding/json"
	"errors"
)

// Event type constants. joined/left/typing/read-receipt are ephemeral;
// new-message accompanies a persisted message and is the only type that
// crosses the process boundary. message-sent is the ack to the sender and
// is never fanned out.
const (
	TypeJoined      = "joined"
	TypeLeft        = "left"
	TypeTyping      = "typing"
	TypeMessageSent = "message-sent"
	TypeNewMessage  = "new-message"
	TypeReadReceipt = "read-receipt"
)

// ErrNoConversation is returned when an event has no target conversation.
// Fan-out without a conversation id is undefined; it must fail loudly rather
// than silently drop.
var ErrNoConversation = errors.New("broadcast event has no conversation id")

// Event is a transient broadcast event targeted at one conversation.
// It is marshaled as-is onto client channels.
type Event struct {
	Type           string          `json:"type"`
	ConversationID string          `json:"conversationId"`
	SenderID       string          `json:"senderId,omitempty"`
	Payload        json.RawMessage `json:"payload,omitempty"`
}

// NewEvent builds an Event, marshaling payload to JSON.
// Panics only on unmarshalable payloads, which is a programming error.
func NewEvent(eventType, conversationID, senderID string, payload interface{}) *Event {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			panic("broadcast: unmarshalable event payload: " + err.Error())
		}
		raw = data
	}
	return &Event{
		Type:           eventType,
		ConversationID: conversationID,
		SenderID:       senderID,
		Payload:        raw,
	}
}

// envelope wraps an Event for the cross-process bridge. Origin identifies the
// publishing relay instance so subscribers can skip their own events.
type envelope struct {
	Origin string `json:"origin"`
	Event  *Event `json:"event"`
}
