// ABOUTME: Wire frame types and tagged-union decoding for the WebSocket protocol
// ABOUTME: The type field discriminates the payload shape so handling stays exhaustive

package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/tckeong/ChatWidget/internal/store"
)

// Inbound frame types accepted from clients.
const (
	frameJoin   = "join"
	frameLeave  = "leave"
	frameTyping = "typing"
	frameSend   = "send"
	frameRead   = "read"
)

// Outbound frame types emitted to clients (in addition to broadcast events).
const (
	frameWelcome = "welcome"
	frameError   = "error"
)

// Machine-readable error codes carried in error frames.
const (
	codeMalformed     = "malformed"
	codeUnknownType   = "unknown_type"
	codeNotJoined     = "not_joined"
	codeAuthorization = "authorization"
	codeStore         = "store"
)

// ErrMalformedEvent indicates an inbound frame that could not be decoded.
var ErrMalformedEvent = errors.New("malformed event")

// UnknownEventError indicates a frame with an unrecognized type.
type UnknownEventError struct {
	Type string
}

func (e *UnknownEventError) Error() string {
	return fmt.Sprintf("unknown event type %q", e.Type)
}

// Frame is the envelope of every wire message in both directions.
type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ClientEvent is a decoded inbound event. The concrete type discriminates
// which protocol transition the frame requests.
type ClientEvent interface {
	clientEvent()
}

// JoinEvent binds the session to a conversation.
type JoinEvent struct {
	ConversationID string `json:"conversationId"`
}

// LeaveEvent clears the session's conversation binding.
type LeaveEvent struct{}

// TypingEvent signals the sender is typing; never persisted.
type TypingEvent struct{}

// AttachmentPayload is the wire shape of one message attachment.
type AttachmentPayload struct {
	URL       string `json:"url"`
	MimeType  string `json:"mimeType"`
	Width     *int64 `json:"width,omitempty"`
	Height    *int64 `json:"height,omitempty"`
	SizeBytes *int64 `json:"sizeBytes,omitempty"`
}

// SendEvent persists a message and fans it out to the conversation.
type SendEvent struct {
	Body        string              `json:"body"`
	ContentType string              `json:"contentType"`
	FileURL     string              `json:"fileUrl"`
	MimeType    string              `json:"mimeType"`
	Attachments []AttachmentPayload `json:"attachments"`
}

// ReadEvent marks messages as read and broadcasts a read receipt.
type ReadEvent struct {
	MessageIDs []string `json:"messageIds"`
}

func (JoinEvent) clientEvent()   {}
func (LeaveEvent) clientEvent()  {}
func (TypingEvent) clientEvent() {}
func (SendEvent) clientEvent()   {}
func (ReadEvent) clientEvent()   {}

// DecodeFrame parses a raw inbound frame into its typed event.
// Returns ErrMalformedEvent for undecodable data and *UnknownEventError for
// unrecognized frame types; both leave session state untouched.
func DecodeFrame(data []byte) (ClientEvent, error) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	switch frame.Type {
	case frameJoin:
		var ev JoinEvent
		if err := decodePayload(frame.Payload, &ev); err != nil {
			return nil, err
		}
		if ev.ConversationID == "" {
			return nil, fmt.Errorf("%w: join requires conversationId", ErrMalformedEvent)
		}
		return ev, nil

	case frameLeave:
		return LeaveEvent{}, nil

	case frameTyping:
		return TypingEvent{}, nil

	case frameSend:
		var ev SendEvent
		if err := decodePayload(frame.Payload, &ev); err != nil {
			return nil, err
		}
		return ev, nil

	case frameRead:
		var ev ReadEvent
		if err := decodePayload(frame.Payload, &ev); err != nil {
			return nil, err
		}
		if len(ev.MessageIDs) == 0 {
			return nil, fmt.Errorf("%w: read requires messageIds", ErrMalformedEvent)
		}
		return ev, nil

	default:
		return nil, &UnknownEventError{Type: frame.Type}
	}
}

func decodePayload(raw json.RawMessage, dst interface{}) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: missing payload", ErrMalformedEvent)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return nil
}

// MessageJSON is the wire representation of a persisted message. All 64-bit
// ids are serialized as strings to preserve precision for JSON consumers;
// timestamps are RFC 3339.
type MessageJSON struct {
	ID             string           `json:"id"`
	ConversationID string           `json:"conversationId"`
	SenderID       string           `json:"senderId,omitempty"`
	Body           string           `json:"body"`
	ContentType    string           `json:"contentType"`
	FileURL        string           `json:"fileUrl,omitempty"`
	MimeType       string           `json:"mimeType,omitempty"`
	Attachments    []AttachmentJSON `json:"attachments"`
	CreatedAt      string           `json:"createdAt"`
	ReadAt         string           `json:"readAt,omitempty"`
	EditedAt       string           `json:"editedAt,omitempty"`
}

// AttachmentJSON is the wire representation of one attachment.
type AttachmentJSON struct {
	URL       string `json:"url"`
	MimeType  string `json:"mimeType"`
	Width     *int64 `json:"width,omitempty"`
	Height    *int64 `json:"height,omitempty"`
	SizeBytes *int64 `json:"sizeBytes,omitempty"`
}

// messageToJSON converts a stored message to its wire representation.
func messageToJSON(msg *store.Message) MessageJSON {
	out := MessageJSON{
		ID:             strconv.FormatInt(msg.ID, 10),
		ConversationID: strconv.FormatInt(msg.ConversationID, 10),
		Body:           msg.Body,
		ContentType:    msg.ContentType,
		FileURL:        msg.FileURL,
		MimeType:       msg.MimeType,
		Attachments:    make([]AttachmentJSON, 0, len(msg.Attachments)),
		CreatedAt:      msg.CreatedAt.UTC().Format(time.RFC3339),
	}
	if msg.SenderID != nil {
		out.SenderID = strconv.FormatInt(*msg.SenderID, 10)
	}
	if msg.ReadAt != nil {
		out.ReadAt = msg.ReadAt.UTC().Format(time.RFC3339)
	}
	if msg.EditedAt != nil {
		out.EditedAt = msg.EditedAt.UTC().Format(time.RFC3339)
	}
	for _, att := range msg.Attachments {
		out.Attachments = append(out.Attachments, AttachmentJSON{
			URL:       att.URL,
			MimeType:  att.MimeType,
			Width:     att.Width,
			Height:    att.Height,
			SizeBytes: att.SizeBytes,
		})
	}
	return out
}
