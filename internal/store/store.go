// ABOUTME: Store interface and data types for ChatWidget persistence
// ABOUTME: Defines Conversation, Participant, Message, Attachment and the Store interface

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ContentType constants for message content types
const (
	ContentTypeText  = "TEXT"
	ContentTypeImage = "IMAGE"
	ContentTypeVideo = "VIDEO"
	ContentTypeFile  = "FILE"
	ContentTypeOther = "OTHER"
)

// ValidContentType reports whether ct is one of the known content types.
func ValidContentType(ct string) bool {
	switch ct {
	case ContentTypeText, ContentTypeImage, ContentTypeVideo, ContentTypeFile, ContentTypeOther:
		return true
	}
	return false
}

// ConversationType constants
const (
	ConversationTypeDirect = "DIRECT"
	ConversationTypeGroup  = "GROUP"
)

// Participant role constants. Roles are an open enumeration: the relay never
// branches on them, it only reports them back to clients.
const (
	RoleCustomer = "CUSTOMER"
	RoleAgent    = "AGENT"
	RoleOwner    = "OWNER"
)

// Conversation represents a conversation between participants of a business
type Conversation struct {
	ID         int64
	BusinessID int64
	Type       string // "DIRECT" or "GROUP"
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Participant represents an identity authorized on a conversation
type Participant struct {
	ConversationID int64
	UserID         int64
	Role           string
	JoinedAt       time.Time
}

// Attachment represents a file attached to a message, ordered by position
type Attachment struct {
	ID        int64
	MessageID int64
	URL       string
	MimeType  string
	Width     *int64
	Height    *int64
	SizeBytes *int64
}

// Message represents a persisted chat message.
// SenderID is nil for system messages. ReadAt, EditedAt and DeletedAt are
// status markers set after creation; a message is never hard-deleted.
type Message struct {
	ID             int64
	ConversationID int64
	SenderID       *int64
	Body           string
	ContentType    string
	FileURL        string
	MimeType       string
	Attachments    []Attachment
	CreatedAt      time.Time
	ReadAt         *time.Time
	EditedAt       *time.Time
	DeletedAt      *time.Time
}

// ConversationSummary is a conversation with its participant list
type ConversationSummary struct {
	Conversation Conversation
	Participants []Participant
}

// Store defines the interface for conversation and message persistence
type Store interface {
	// Conversations and participants
	CreateConversation(ctx context.Context, conv *Conversation) error
	GetConversation(ctx context.Context, id int64) (*Conversation, error)
	AddParticipant(ctx context.Context, p *Participant) error
	IsParticipant(ctx context.Context, userID, conversationID int64) (bool, error)
	ListConversations(ctx context.Context, userID, businessID int64) ([]*ConversationSummary, error)

	// Messages
	CreateMessage(ctx context.Context, msg *Message) error
	GetMessage(ctx context.Context, id int64) (*Message, error)
	ListMessages(ctx context.Context, conversationID int64, limit, offset int) ([]*Message, error)
	MarkMessagesRead(ctx context.Context, messageIDs []int64, conversationID, readerID int64) (int64, error)
	SetMessageEdited(ctx context.Context, id int64, body string) error
	SoftDeleteMessage(ctx context.Context, id int64) error

	// Close releases any resources held by the store
	Close() error
}
