// ABOUTME: Tests for SQLite store implementation
// ABOUTME: Covers conversation/participant CRUD, message persistence, attachments, read marking

package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	return store
}

// seedConversation creates a conversation with the given participant user IDs.
func seedConversation(t *testing.T, s *SQLiteStore, businessID int64, userIDs ...int64) *Conversation {
	t.Helper()
	ctx := context.Background()

	conv := &Conversation{BusinessID: businessID}
	if err := s.CreateConversation(ctx, conv); err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}
	for i, uid := range userIDs {
		role := RoleCustomer
		if i > 0 {
			role = RoleAgent
		}
		err := s.AddParticipant(ctx, &Participant{
			ConversationID: conv.ID,
			UserID:         uid,
			Role:           role,
		})
		if err != nil {
			t.Fatalf("AddParticipant failed: %v", err)
		}
	}
	return conv
}

func int64ptr(v int64) *int64 { return &v }

func TestNewSQLiteStore(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer store.Close()

	// Verify the database file was created
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "subdir", "nested", "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer store.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created in nested directory")
	}
}

func TestCreateConversationAndParticipants(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	conv := seedConversation(t, store, 1, 10, 20)

	if conv.ID == 0 {
		t.Fatal("conversation ID was not assigned")
	}

	got, err := store.GetConversation(ctx, conv.ID)
	if err != nil {
		t.Fatalf("GetConversation failed: %v", err)
	}
	if got.BusinessID != 1 {
		t.Errorf("BusinessID = %d, want 1", got.BusinessID)
	}
	if got.Type != ConversationTypeDirect {
		t.Errorf("Type = %q, want DIRECT default", got.Type)
	}

	for _, tc := range []struct {
		userID int64
		want   bool
	}{
		{10, true},
		{20, true},
		{30, false},
	} {
		ok, err := store.IsParticipant(ctx, tc.userID, conv.ID)
		if err != nil {
			t.Fatalf("IsParticipant(%d) failed: %v", tc.userID, err)
		}
		if ok != tc.want {
			t.Errorf("IsParticipant(%d) = %v, want %v", tc.userID, ok, tc.want)
		}
	}
}

func TestGetConversation_NotFound(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	_, err := store.GetConversation(context.Background(), 999)
	if err != ErrNotFound {
		t.Errorf("GetConversation error = %v, want ErrNotFound", err)
	}
}

func TestCreateMessage_AssignsMonotonicIDs(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	conv := seedConversation(t, store, 1, 10, 20)

	var lastID int64
	for i := 0; i < 5; i++ {
		msg := &Message{
			ConversationID: conv.ID,
			SenderID:       int64ptr(10),
			Body:           "hello",
		}
		if err := store.CreateMessage(ctx, msg); err != nil {
			t.Fatalf("CreateMessage failed: %v", err)
		}
		if msg.ID <= lastID {
			t.Errorf("message ID %d not greater than previous %d", msg.ID, lastID)
		}
		lastID = msg.ID
	}
}

func TestCreateMessage_AttachmentRoundTrip(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	conv := seedConversation(t, store, 1, 10, 20)

	msg := &Message{
		ConversationID: conv.ID,
		SenderID:       int64ptr(10),
		Body:           "look at this",
		ContentType:    ContentTypeImage,
		Attachments: []Attachment{
			{URL: "https://x/img.png", MimeType: "image/png", Width: int64ptr(100), Height: int64ptr(50)},
			{URL: "https://x/doc.pdf", MimeType: "application/pdf", SizeBytes: int64ptr(2048)},
		},
	}
	if err := store.CreateMessage(ctx, msg); err != nil {
		t.Fatalf("CreateMessage failed: %v", err)
	}

	got, err := store.GetMessage(ctx, msg.ID)
	if err != nil {
		t.Fatalf("GetMessage failed: %v", err)
	}
	if len(got.Attachments) != 2 {
		t.Fatalf("attachments = %d, want 2", len(got.Attachments))
	}

	first := got.Attachments[0]
	if first.URL != "https://x/img.png" || first.MimeType != "image/png" {
		t.Errorf("first attachment = %+v, want url and mime preserved", first)
	}
	if first.Width == nil || *first.Width != 100 {
		t.Errorf("Width = %v, want 100", first.Width)
	}
	if first.Height == nil || *first.Height != 50 {
		t.Errorf("Height = %v, want 50", first.Height)
	}
	if first.SizeBytes != nil {
		t.Errorf("SizeBytes = %v, want nil", first.SizeBytes)
	}

	second := got.Attachments[1]
	if second.SizeBytes == nil || *second.SizeBytes != 2048 {
		t.Errorf("SizeBytes = %v, want 2048", second.SizeBytes)
	}
}

func TestCreateMessage_RejectsInvalidContentType(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	conv := seedConversation(t, store, 1, 10)
	err := store.CreateMessage(context.Background(), &Message{
		ConversationID: conv.ID,
		Body:           "x",
		ContentType:    "AUDIO",
	})
	if err == nil {
		t.Error("CreateMessage should reject unknown content type")
	}
}

func TestCreateMessage_SystemMessageWithoutSender(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	conv := seedConversation(t, store, 1, 10)

	msg := &Message{ConversationID: conv.ID, Body: "conversation started"}
	if err := store.CreateMessage(ctx, msg); err != nil {
		t.Fatalf("CreateMessage failed: %v", err)
	}

	got, err := store.GetMessage(ctx, msg.ID)
	if err != nil {
		t.Fatalf("GetMessage failed: %v", err)
	}
	if got.SenderID != nil {
		t.Errorf("SenderID = %v, want nil for system message", got.SenderID)
	}
}

func TestListMessages_AscendingAndExcludesDeleted(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	conv := seedConversation(t, store, 1, 10, 20)

	base := time.Now().UTC().Add(-time.Hour)
	var ids []int64
	for i := 0; i < 3; i++ {
		msg := &Message{
			ConversationID: conv.ID,
			SenderID:       int64ptr(10),
			Body:           "msg",
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.CreateMessage(ctx, msg); err != nil {
			t.Fatalf("CreateMessage failed: %v", err)
		}
		ids = append(ids, msg.ID)
	}

	if err := store.SoftDeleteMessage(ctx, ids[1]); err != nil {
		t.Fatalf("SoftDeleteMessage failed: %v", err)
	}

	messages, err := store.ListMessages(ctx, conv.ID, 0, 0)
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("messages = %d, want 2 (deleted excluded)", len(messages))
	}
	if messages[0].ID != ids[0] || messages[1].ID != ids[2] {
		t.Errorf("message order = [%d %d], want [%d %d]", messages[0].ID, messages[1].ID, ids[0], ids[2])
	}
}

func TestListMessages_LimitOffset(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	conv := seedConversation(t, store, 1, 10)

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		err := store.CreateMessage(ctx, &Message{
			ConversationID: conv.ID,
			SenderID:       int64ptr(10),
			Body:           "msg",
			CreatedAt:      base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("CreateMessage failed: %v", err)
		}
	}

	messages, err := store.ListMessages(ctx, conv.ID, 2, 1)
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(messages))
	}
}

func TestMarkMessagesRead_SkipsOwnMessages(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	conv := seedConversation(t, store, 1, 10, 20)

	// Two messages from user 20, one from the reader (user 10)
	theirs1 := &Message{ConversationID: conv.ID, SenderID: int64ptr(20), Body: "a"}
	theirs2 := &Message{ConversationID: conv.ID, SenderID: int64ptr(20), Body: "b"}
	mine := &Message{ConversationID: conv.ID, SenderID: int64ptr(10), Body: "c"}
	for _, msg := range []*Message{theirs1, theirs2, mine} {
		if err := store.CreateMessage(ctx, msg); err != nil {
			t.Fatalf("CreateMessage failed: %v", err)
		}
	}

	count, err := store.MarkMessagesRead(ctx, []int64{theirs1.ID, theirs2.ID, mine.ID}, conv.ID, 10)
	if err != nil {
		t.Fatalf("MarkMessagesRead failed: %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}

	for _, tc := range []struct {
		id   int64
		read bool
	}{
		{theirs1.ID, true},
		{theirs2.ID, true},
		{mine.ID, false},
	} {
		got, err := store.GetMessage(ctx, tc.id)
		if err != nil {
			t.Fatalf("GetMessage failed: %v", err)
		}
		if (got.ReadAt != nil) != tc.read {
			t.Errorf("message %d ReadAt = %v, want read=%v", tc.id, got.ReadAt, tc.read)
		}
	}

	// Second call is a no-op: already read
	count, err = store.MarkMessagesRead(ctx, []int64{theirs1.ID, theirs2.ID}, conv.ID, 10)
	if err != nil {
		t.Fatalf("MarkMessagesRead failed: %v", err)
	}
	if count != 0 {
		t.Errorf("repeat count = %d, want 0", count)
	}
}

func TestMarkMessagesRead_WrongConversation(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	conv1 := seedConversation(t, store, 1, 10, 20)
	conv2 := seedConversation(t, store, 1, 10, 20)

	msg := &Message{ConversationID: conv1.ID, SenderID: int64ptr(20), Body: "a"}
	if err := store.CreateMessage(ctx, msg); err != nil {
		t.Fatalf("CreateMessage failed: %v", err)
	}

	count, err := store.MarkMessagesRead(ctx, []int64{msg.ID}, conv2.ID, 10)
	if err != nil {
		t.Fatalf("MarkMessagesRead failed: %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0 for wrong conversation", count)
	}
}

func TestSetMessageEdited(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	conv := seedConversation(t, store, 1, 10)

	msg := &Message{ConversationID: conv.ID, SenderID: int64ptr(10), Body: "typo"}
	if err := store.CreateMessage(ctx, msg); err != nil {
		t.Fatalf("CreateMessage failed: %v", err)
	}

	if err := store.SetMessageEdited(ctx, msg.ID, "fixed"); err != nil {
		t.Fatalf("SetMessageEdited failed: %v", err)
	}

	got, err := store.GetMessage(ctx, msg.ID)
	if err != nil {
		t.Fatalf("GetMessage failed: %v", err)
	}
	if got.Body != "fixed" {
		t.Errorf("Body = %q, want %q", got.Body, "fixed")
	}
	if got.EditedAt == nil {
		t.Error("EditedAt was not set")
	}

	if err := store.SetMessageEdited(ctx, 999, "x"); err != ErrNotFound {
		t.Errorf("SetMessageEdited(999) error = %v, want ErrNotFound", err)
	}
}

func TestSoftDeleteMessage_Idempotence(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	conv := seedConversation(t, store, 1, 10)

	msg := &Message{ConversationID: conv.ID, SenderID: int64ptr(10), Body: "bye"}
	if err := store.CreateMessage(ctx, msg); err != nil {
		t.Fatalf("CreateMessage failed: %v", err)
	}

	if err := store.SoftDeleteMessage(ctx, msg.ID); err != nil {
		t.Fatalf("SoftDeleteMessage failed: %v", err)
	}
	if err := store.SoftDeleteMessage(ctx, msg.ID); err != ErrNotFound {
		t.Errorf("second SoftDeleteMessage error = %v, want ErrNotFound", err)
	}
}

func TestListConversations(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	conv1 := seedConversation(t, store, 1, 10, 20)
	seedConversation(t, store, 1, 30, 40) // user 10 not a member
	seedConversation(t, store, 2, 10)     // other business

	summaries, err := store.ListConversations(ctx, 10, 1)
	if err != nil {
		t.Fatalf("ListConversations failed: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("summaries = %d, want 1", len(summaries))
	}
	if summaries[0].Conversation.ID != conv1.ID {
		t.Errorf("conversation ID = %d, want %d", summaries[0].Conversation.ID, conv1.ID)
	}
	if len(summaries[0].Participants) != 2 {
		t.Errorf("participants = %d, want 2", len(summaries[0].Participants))
	}
}

func TestCreateMessage_BumpsConversationUpdatedAt(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	conv := seedConversation(t, store, 1, 10)

	createdAt := time.Now().UTC().Add(time.Hour)
	err := store.CreateMessage(ctx, &Message{
		ConversationID: conv.ID,
		SenderID:       int64ptr(10),
		Body:           "ping",
		CreatedAt:      createdAt,
	})
	if err != nil {
		t.Fatalf("CreateMessage failed: %v", err)
	}

	got, err := store.GetConversation(ctx, conv.ID)
	if err != nil {
		t.Fatalf("GetConversation failed: %v", err)
	}
	if !got.UpdatedAt.Equal(createdAt) {
		t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, createdAt)
	}
}
