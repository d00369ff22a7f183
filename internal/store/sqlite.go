// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides conversation/message persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS conversations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			business_id INTEGER NOT NULL,
			type TEXT NOT NULL DEFAULT 'DIRECT',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_conversations_business
			ON conversations(business_id);

		CREATE TABLE IF NOT EXISTS participants (
			conversation_id INTEGER NOT NULL REFERENCES conversations(id),
			user_id INTEGER NOT NULL,
			role TEXT NOT NULL,
			joined_at TEXT NOT NULL,
			PRIMARY KEY (conversation_id, user_id)
		);

		CREATE INDEX IF NOT EXISTS idx_participants_user
			ON participants(user_id);

		CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			conversation_id INTEGER NOT NULL REFERENCES conversations(id),
			sender_id INTEGER,
			body TEXT NOT NULL DEFAULT '',
			content_type TEXT NOT NULL DEFAULT 'TEXT',
			file_url TEXT,
			mime_type TEXT,
			created_at TEXT NOT NULL,
			read_at TEXT,
			edited_at TEXT,
			deleted_at TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_messages_conversation_created
			ON messages(conversation_id, created_at);

		CREATE TABLE IF NOT EXISTS attachments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			message_id INTEGER NOT NULL REFERENCES messages(id),
			position INTEGER NOT NULL,
			url TEXT NOT NULL,
			mime_type TEXT NOT NULL,
			width INTEGER,
			height INTEGER,
			size_bytes INTEGER
		);

		CREATE INDEX IF NOT EXISTS idx_attachments_message
			ON attachments(message_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// CreateConversation inserts a new conversation and assigns its ID.
func (s *SQLiteStore) CreateConversation(ctx context.Context, conv *Conversation) error {
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

	query := `
		INSERT INTO conversations (business_id, type, created_at, updated_at)
		VALUES (?, ?, ?, ?)
	`

	res, err := s.db.ExecContext(ctx, query,
		conv.BusinessID,
		conv.Type,
		conv.CreatedAt.UTC().Format(time.RFC3339Nano),
		conv.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting conversation: %w", err)
	}

	conv.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading conversation id: %w", err)
	}

	s.logger.Debug("created conversation", "id", conv.ID, "business_id", conv.BusinessID)
	return nil
}

// GetConversation retrieves a conversation by ID.
// Returns ErrNotFound if the conversation doesn't exist.
func (s *SQLiteStore) GetConversation(ctx context.Context, id int64) (*Conversation, error) {
	query := `
		SELECT id, business_id, type, created_at, updated_at
		FROM conversations
		WHERE id = ?
	`

	var conv Conversation
	var createdAtStr, updatedAtStr string

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&conv.ID,
		&conv.BusinessID,
		&conv.Type,
		&createdAtStr,
		&updatedAtStr,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying conversation: %w", err)
	}

	if conv.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAtStr); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if conv.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAtStr); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &conv, nil
}

// AddParticipant adds an identity to a conversation.
func (s *SQLiteStore) AddParticipant(ctx context.Context, p *Participant) error {
	if p.JoinedAt.IsZero() {
		p.JoinedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO participants (conversation_id, user_id, role, joined_at)
		VALUES (?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		p.ConversationID,
		p.UserID,
		p.Role,
		p.JoinedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting participant: %w", err)
	}

	return nil
}

// IsParticipant reports whether the user is a participant of the conversation.
func (s *SQLiteStore) IsParticipant(ctx context.Context, userID, conversationID int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM participants WHERE conversation_id = ? AND user_id = ?`,
		conversationID, userID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("querying participant: %w", err)
	}
	return true, nil
}

// ListConversations returns all conversations the user participates in for
// the given business, with full participant lists.
func (s *SQLiteStore) ListConversations(ctx context.Context, userID, businessID int64) ([]*ConversationSummary, error) {
	query := `
		SELECT c.id, c.business_id, c.type, c.created_at, c.updated_at
		FROM conversations c
		JOIN participants p ON p.conversation_id = c.id
		WHERE p.user_id = ? AND c.business_id = ?
		ORDER BY c.updated_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query, userID, businessID)
	if err != nil {
		return nil, fmt.Errorf("querying conversations: %w", err)
	}
	defer rows.Close()

	var summaries []*ConversationSummary
	for rows.Next() {
		var conv Conversation
		var createdAtStr, updatedAtStr string
		if err := rows.Scan(&conv.ID, &conv.BusinessID, &conv.Type, &createdAtStr, &updatedAtStr); err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		if conv.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAtStr); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		if conv.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAtStr); err != nil {
			return nil, fmt.Errorf("parsing updated_at: %w", err)
		}
		summaries = append(summaries, &ConversationSummary{Conversation: conv})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating conversations: %w", err)
	}

	for _, summary := range summaries {
		participants, err := s.listParticipants(ctx, summary.Conversation.ID)
		if err != nil {
			return nil, err
		}
		summary.Participants = participants
	}

	return summaries, nil
}

func (s *SQLiteStore) listParticipants(ctx context.Context, conversationID int64) ([]Participant, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT conversation_id, user_id, role, joined_at FROM participants WHERE conversation_id = ? ORDER BY joined_at`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying participants: %w", err)
	}
	defer rows.Close()

	var participants []Participant
	for rows.Next() {
		var p Participant
		var joinedAtStr string
		if err := rows.Scan(&p.ConversationID, &p.UserID, &p.Role, &joinedAtStr); err != nil {
			return nil, fmt.Errorf("scanning participant: %w", err)
		}
		if p.JoinedAt, err = time.Parse(time.RFC3339Nano, joinedAtStr); err != nil {
			return nil, fmt.Errorf("parsing joined_at: %w", err)
		}
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

// CreateMessage persists a message and its attachments in one transaction.
// The store assigns the message ID and CreatedAt, inserts attachments in
// order, and bumps the conversation's updated_at timestamp.
func (s *SQLiteStore) CreateMessage(ctx context.Context, msg *Message) error {
	if msg.ContentType == "" {
		msg.ContentType = ContentTypeText
	}
	if !ValidContentType(msg.ContentType) {
		return fmt.Errorf("invalid content type %q", msg.ContentType)
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var senderID interface{}
	if msg.SenderID != nil {
		senderID = *msg.SenderID
	}
	var fileURL, mimeType interface{}
	if msg.FileURL != "" {
		fileURL = msg.FileURL
	}
	if msg.MimeType != "" {
		mimeType = msg.MimeType
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO messages (conversation_id, sender_id, body, content_type, file_url, mime_type, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		msg.ConversationID,
		senderID,
		msg.Body,
		msg.ContentType,
		fileURL,
		mimeType,
		msg.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}

	msg.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading message id: %w", err)
	}

	for i := range msg.Attachments {
		att := &msg.Attachments[i]
		res, err := tx.ExecContext(ctx, `
			INSERT INTO attachments (message_id, position, url, mime_type, width, height, size_bytes)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`,
			msg.ID, i, att.URL, att.MimeType,
			nullableInt(att.Width), nullableInt(att.Height), nullableInt(att.SizeBytes),
		)
		if err != nil {
			return fmt.Errorf("inserting attachment %d: %w", i, err)
		}
		att.MessageID = msg.ID
		if att.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("reading attachment id: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE conversations SET updated_at = ? WHERE id = ?`,
		msg.CreatedAt.UTC().Format(time.RFC3339Nano), msg.ConversationID,
	)
	if err != nil {
		return fmt.Errorf("updating conversation timestamp: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing message: %w", err)
	}

	s.logger.Debug("created message", "id", msg.ID, "conversation_id", msg.ConversationID)
	return nil
}

func nullableInt(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

const messageColumns = `id, conversation_id, sender_id, body, content_type, file_url, mime_type, created_at, read_at, edited_at, deleted_at`

// GetMessage retrieves a message by ID with its attachments.
// Returns ErrNotFound if the message doesn't exist.
func (s *SQLiteStore) GetMessage(ctx context.Context, id int64) (*Message, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE id = ?`, id)

	msg, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying message: %w", err)
	}

	if msg.Attachments, err = s.listAttachments(ctx, msg.ID); err != nil {
		return nil, err
	}
	return msg, nil
}

// ListMessages returns non-deleted messages for a conversation in ascending
// creation order, with attachments populated. limit <= 0 means no limit.
func (s *SQLiteStore) ListMessages(ctx context.Context, conversationID int64, limit, offset int) ([]*Message, error) {
	query := `SELECT ` + messageColumns + `
		FROM messages
		WHERE conversation_id = ? AND deleted_at IS NULL
		ORDER BY created_at ASC, id ASC`

	args := []interface{}{conversationID}
	if limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}

	for _, msg := range messages {
		if msg.Attachments, err = s.listAttachments(ctx, msg.ID); err != nil {
			return nil, err
		}
	}

	return messages, nil
}

func (s *SQLiteStore) listAttachments(ctx context.Context, messageID int64) ([]Attachment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, message_id, url, mime_type, width, height, size_bytes
		FROM attachments
		WHERE message_id = ?
		ORDER BY position ASC
	`, messageID)
	if err != nil {
		return nil, fmt.Errorf("querying attachments: %w", err)
	}
	defer rows.Close()

	var attachments []Attachment
	for rows.Next() {
		var att Attachment
		var width, height, sizeBytes sql.NullInt64
		if err := rows.Scan(&att.ID, &att.MessageID, &att.URL, &att.MimeType, &width, &height, &sizeBytes); err != nil {
			return nil, fmt.Errorf("scanning attachment: %w", err)
		}
		if width.Valid {
			att.Width = &width.Int64
		}
		if height.Valid {
			att.Height = &height.Int64
		}
		if sizeBytes.Valid {
			att.SizeBytes = &sizeBytes.Int64
		}
		attachments = append(attachments, att)
	}
	return attachments, rows.Err()
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanMessage
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMessage(row rowScanner) (*Message, error) {
	var msg Message
	var senderID sql.NullInt64
	var fileURL, mimeType sql.NullString
	var createdAtStr string
	var readAtStr, editedAtStr, deletedAtStr sql.NullString

	err := row.Scan(
		&msg.ID,
		&msg.ConversationID,
		&senderID,
		&msg.Body,
		&msg.ContentType,
		&fileURL,
		&mimeType,
		&createdAtStr,
		&readAtStr,
		&editedAtStr,
		&deletedAtStr,
	)
	if err != nil {
		return nil, err
	}

	if senderID.Valid {
		msg.SenderID = &senderID.Int64
	}
	msg.FileURL = fileURL.String
	msg.MimeType = mimeType.String

	if msg.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAtStr); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if msg.ReadAt, err = parseNullableTime(readAtStr); err != nil {
		return nil, fmt.Errorf("parsing read_at: %w", err)
	}
	if msg.EditedAt, err = parseNullableTime(editedAtStr); err != nil {
		return nil, fmt.Errorf("parsing edited_at: %w", err)
	}
	if msg.DeletedAt, err = parseNullableTime(deletedAtStr); err != nil {
		return nil, fmt.Errorf("parsing deleted_at: %w", err)
	}

	return &msg, nil
}

func parseNullableTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// MarkMessagesRead sets read_at on the given messages within a conversation.
// Messages authored by the reader, already read, or soft-deleted are skipped.
// Returns the number of messages updated.
func (s *SQLiteStore) MarkMessagesRead(ctx context.Context, messageIDs []int64, conversationID, readerID int64) (int64, error) {
	if len(messageIDs) == 0 {
		return 0, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(messageIDs)), ",")
	query := `
		UPDATE messages SET read_at = ?
		WHERE id IN (` + placeholders + `)
		  AND conversation_id = ?
		  AND (sender_id IS NULL OR sender_id != ?)
		  AND read_at IS NULL
		  AND deleted_at IS NULL
	`

	args := make([]interface{}, 0, len(messageIDs)+3)
	args = append(args, time.Now().UTC().Format(time.RFC3339Nano))
	for _, id := range messageIDs {
		args = append(args, id)
	}
	args = append(args, conversationID, readerID)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("marking messages read: %w", err)
	}

	count, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading affected rows: %w", err)
	}

	s.logger.Debug("marked messages read", "count", count, "conversation_id", conversationID, "reader_id", readerID)
	return count, nil
}

// SetMessageEdited updates a message body and records the edit timestamp.
// Returns ErrNotFound if the message doesn't exist or is soft-deleted.
func (s *SQLiteStore) SetMessageEdited(ctx context.Context, id int64, body string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE messages SET body = ?, edited_at = ? WHERE id = ? AND deleted_at IS NULL`,
		body, time.Now().UTC().Format(time.RFC3339Nano), id,
	)
	if err != nil {
		return fmt.Errorf("editing message: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SoftDeleteMessage marks a message deleted without removing the row.
// Returns ErrNotFound if the message doesn't exist or is already deleted.
func (s *SQLiteStore) SoftDeleteMessage(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE messages SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`,
		time.Now().UTC().Format(time.RFC3339Nano), id,
	)
	if err != nil {
		return fmt.Errorf("soft-deleting message: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
