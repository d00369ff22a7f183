// ABOUTME: Tests for frame decoding and the wire message representation
// ABOUTME: Verifies tagged-union dispatch, validation failures and string-encoded ids

package gateway

import (
	"errors"
	"testing"
	"time"

	"github.com/tckeong/ChatWidget/internal/store"
)

func TestDecodeFrame_Join(t *testing.T) {
	ev, err := DecodeFrame([]byte(`{"type":"join","payload":{"conversationId":"42"}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	join, ok := ev.(JoinEvent)
	if !ok {
		t.Fatalf("expected JoinEvent, got %T", ev)
	}
	if join.ConversationID != "42" {
		t.Errorf("expected conversationId 42, got %q", join.ConversationID)
	}
}

func TestDecodeFrame_JoinMissingConversation(t *testing.T) {
	_, err := DecodeFrame([]byte(`{"type":"join","payload":{}}`))
	if !errors.Is(err, ErrMalformedEvent) {
		t.Errorf("expected ErrMalformedEvent, got %v", err)
	}
}

func TestDecodeFrame_LeaveAndTypingIgnorePayload(t *testing.T) {
	ev, err := DecodeFrame([]byte(`{"type":"leave"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := ev.(LeaveEvent); !ok {
		t.Errorf("expected LeaveEvent, got %T", ev)
	}

	ev, err = DecodeFrame([]byte(`{"type":"typing","payload":{"anything":true}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := ev.(TypingEvent); !ok {
		t.Errorf("expected TypingEvent, got %T", ev)
	}
}

func TestDecodeFrame_Send(t *testing.T) {
	raw := `{"type":"send","payload":{"body":"hi","contentType":"TEXT","attachments":[{"url":"https://x/a.png","mimeType":"image/png","width":100}]}}`
	ev, err := DecodeFrame([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	send, ok := ev.(SendEvent)
	if !ok {
		t.Fatalf("expected SendEvent, got %T", ev)
	}
	if send.Body != "hi" {
		t.Errorf("expected body hi, got %q", send.Body)
	}
	if len(send.Attachments) != 1 || send.Attachments[0].URL != "https://x/a.png" {
		t.Errorf("unexpected attachments: %+v", send.Attachments)
	}
	if send.Attachments[0].Width == nil || *send.Attachments[0].Width != 100 {
		t.Errorf("expected attachment width 100, got %v", send.Attachments[0].Width)
	}
}

func TestDecodeFrame_ReadRequiresIDs(t *testing.T) {
	_, err := DecodeFrame([]byte(`{"type":"read","payload":{"messageIds":[]}}`))
	if !errors.Is(err, ErrMalformedEvent) {
		t.Errorf("expected ErrMalformedEvent for empty ids, got %v", err)
	}

	ev, err := DecodeFrame([]byte(`{"type":"read","payload":{"messageIds":["1","2"]}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	read := ev.(ReadEvent)
	if len(read.MessageIDs) != 2 {
		t.Errorf("expected 2 message ids, got %d", len(read.MessageIDs))
	}
}

func TestDecodeFrame_UnknownType(t *testing.T) {
	_, err := DecodeFrame([]byte(`{"type":"dance"}`))
	var unknown *UnknownEventError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownEventError, got %v", err)
	}
	if unknown.Type != "dance" {
		t.Errorf("expected type dance, got %q", unknown.Type)
	}
}

func TestDecodeFrame_InvalidJSON(t *testing.T) {
	_, err := DecodeFrame([]byte(`{nope`))
	if !errors.Is(err, ErrMalformedEvent) {
		t.Errorf("expected ErrMalformedEvent, got %v", err)
	}
}

func TestMessageToJSON_StringIDs(t *testing.T) {
	senderID := int64(9007199254740993) // above 2^53, breaks float64 JSON consumers
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	readAt := created.Add(time.Minute)

	msg := &store.Message{
		ID:             9007199254740995,
		ConversationID: 42,
		SenderID:       &senderID,
		Body:           "hello",
		ContentType:    store.ContentTypeText,
		CreatedAt:      created,
		ReadAt:         &readAt,
	}

	wire := messageToJSON(msg)
	if wire.ID != "9007199254740995" {
		t.Errorf("expected string id, got %q", wire.ID)
	}
	if wire.ConversationID != "42" {
		t.Errorf("expected conversationId 42, got %q", wire.ConversationID)
	}
	if wire.SenderID != "9007199254740993" {
		t.Errorf("expected string senderId, got %q", wire.SenderID)
	}
	if wire.CreatedAt != "2025-03-01T12:00:00Z" {
		t.Errorf("unexpected createdAt: %q", wire.CreatedAt)
	}
	if wire.ReadAt != "2025-03-01T12:01:00Z" {
		t.Errorf("unexpected readAt: %q", wire.ReadAt)
	}
	if wire.EditedAt != "" {
		t.Errorf("expected empty editedAt, got %q", wire.EditedAt)
	}
}

func TestMessageToJSON_SystemMessageOmitsSender(t *testing.T) {
	msg := &store.Message{
		ID:             1,
		ConversationID: 2,
		Body:           "agent assigned",
		ContentType:    store.ContentTypeOther,
		CreatedAt:      time.Now().UTC(),
	}
	wire := messageToJSON(msg)
	if wire.SenderID != "" {
		t.Errorf("expected empty senderId for system message, got %q", wire.SenderID)
	}
}
