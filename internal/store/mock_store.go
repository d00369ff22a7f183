// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows gateway and API tests to run without SQLite

package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu            sync.RWMutex
	conversations map[int64]*Conversation
	participants  map[int64][]Participant // keyed by conversation ID
	messages      map[int64]*Message      // keyed by message ID
	nextConvID    int64
	nextMsgID     int64

	// CreateMessageErr, when set, is returned by CreateMessage. Used to
	// exercise persistence-failure paths.
	CreateMessageErr error

	// CreateMessageHook, when set, runs after a message commits, before
	// CreateMessage returns. Used to race concurrent state changes
	// against an in-flight send.
	CreateMessageHook func(msg *Message)
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		conversations: make(map[int64]*Conversation),
		participants:  make(map[int64][]Participant),
		messages:      make(map[int64]*Message),
	}
}

// CreateConversation stores a new conversation and assigns an ID.
func (m *MockStore) CreateConversation(ctx context.Context, conv *Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextConvID++
	conv.ID = m.nextConvID
	now := time.Now().UTC()
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = now
	}
	if conv.UpdatedAt.IsZero() {
		conv.UpdatedAt = now
	}
	if conv.Type == "" {
		conv.Type = ConversationTypeDirect
	}

	c := *conv
	m.conversations[c.ID] = &c
	return nil
}

// GetConversation retrieves a conversation by ID.
func (m *MockStore) GetConversation(ctx context.Context, id int64) (*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	result := *c
	return &result, nil
}

// AddParticipant adds a participant to a conversation.
func (m *MockStore) AddParticipant(ctx context.Context, p *Participant) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p.JoinedAt.IsZero() {
		p.JoinedAt = time.Now().UTC()
	}
	m.participants[p.ConversationID] = append(m.participants[p.ConversationID], *p)
	return nil
}

// IsParticipant reports whether the user participates in the conversation.
func (m *MockStore) IsParticipant(ctx context.Context, userID, conversationID int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, p := range m.participants[conversationID] {
		if p.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

// ListConversations returns conversations for a user within a business.
func (m *MockStore) ListConversations(ctx context.Context, userID, businessID int64) ([]*ConversationSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var summaries []*ConversationSummary
	for id, conv := range m.conversations {
		if conv.BusinessID != businessID {
			continue
		}
		member := false
		for _, p := range m.participants[id] {
			if p.UserID == userID {
				member = true
				break
			}
		}
		if !member {
			continue
		}
		summaries = append(summaries, &ConversationSummary{
			Conversation: *conv,
			Participants: append([]Participant(nil), m.participants[id]...),
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Conversation.UpdatedAt.After(summaries[j].Conversation.UpdatedAt)
	})
	return summaries, nil
}

// CreateMessage stores a message, assigning an ID and CreatedAt.
func (m *MockStore) CreateMessage(ctx context.Context, msg *Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.CreateMessageErr != nil {
		return m.CreateMessageErr
	}

	if msg.ContentType == "" {
		msg.ContentType = ContentTypeText
	}
	if !ValidContentType(msg.ContentType) {
		return errors.New("invalid content type")
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	m.nextMsgID++
	msg.ID = m.nextMsgID
	for i := range msg.Attachments {
		msg.Attachments[i].MessageID = msg.ID
		msg.Attachments[i].ID = int64(i + 1)
	}

	stored := copyMessage(msg)
	m.messages[msg.ID] = stored

	if conv, ok := m.conversations[msg.ConversationID]; ok {
		conv.UpdatedAt = msg.CreatedAt
	}

	if m.CreateMessageHook != nil {
		// Run outside the store lock so the hook can touch other state.
		m.mu.Unlock()
		m.CreateMessageHook(msg)
		m.mu.Lock()
	}
	return nil
}

// GetMessage retrieves a message by ID.
func (m *MockStore) GetMessage(ctx context.Context, id int64) (*Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	msg, ok := m.messages[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyMessage(msg), nil
}

// ListMessages returns non-deleted messages for a conversation, ascending.
func (m *MockStore) ListMessages(ctx context.Context, conversationID int64, limit, offset int) ([]*Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var messages []*Message
	for _, msg := range m.messages {
		if msg.ConversationID == conversationID && msg.DeletedAt == nil {
			messages = append(messages, copyMessage(msg))
		}
	}

	sort.Slice(messages, func(i, j int) bool {
		if messages[i].CreatedAt.Equal(messages[j].CreatedAt) {
			return messages[i].ID < messages[j].ID
		}
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})

	if offset > 0 {
		if offset >= len(messages) {
			return nil, nil
		}
		messages = messages[offset:]
	}
	if limit > 0 && len(messages) > limit {
		messages = messages[:limit]
	}
	return messages, nil
}

// MarkMessagesRead sets ReadAt on eligible messages, returning the count.
func (m *MockStore) MarkMessagesRead(ctx context.Context, messageIDs []int64, conversationID, readerID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	var count int64
	for _, id := range messageIDs {
		msg, ok := m.messages[id]
		if !ok || msg.ConversationID != conversationID {
			continue
		}
		if msg.SenderID != nil && *msg.SenderID == readerID {
			continue
		}
		if msg.ReadAt != nil || msg.DeletedAt != nil {
			continue
		}
		t := now
		msg.ReadAt = &t
		count++
	}
	return count, nil
}

// SetMessageEdited updates a message body and EditedAt.
func (m *MockStore) SetMessageEdited(ctx context.Context, id int64, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg, ok := m.messages[id]
	if !ok || msg.DeletedAt != nil {
		return ErrNotFound
	}
	now := time.Now().UTC()
	msg.Body = body
	msg.EditedAt = &now
	return nil
}

// SoftDeleteMessage sets DeletedAt on a message.
func (m *MockStore) SoftDeleteMessage(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg, ok := m.messages[id]
	if !ok || msg.DeletedAt != nil {
		return ErrNotFound
	}
	now := time.Now().UTC()
	msg.DeletedAt = &now
	return nil
}

// Close is a no-op for the mock.
func (m *MockStore) Close() error {
	return nil
}

func copyMessage(msg *Message) *Message {
	c := *msg
	if msg.SenderID != nil {
		v := *msg.SenderID
		c.SenderID = &v
	}
	c.Attachments = append([]Attachment(nil), msg.Attachments...)
	return &c
}
