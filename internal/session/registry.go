// ABOUTME: In-memory registry of live client sessions and their conversation bindings
// ABOUTME: Central shared state for the relay; all mutations serialize on one mutex

package session

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/tckeong/ChatWidget/internal/auth"
)

// ErrUnknownSession indicates the session was already removed, usually a race
// with a concurrent disconnect. Callers treat it as already-disconnected.
var ErrUnknownSession = errors.New("unknown session")

// Sender is the send/close capability of a connected client's channel.
// The registry never inspects what it sends; a failed Send is the signal
// that the channel is broken.
type Sender interface {
	Send(data []byte) error
	Close() error
}

// Session is a point-in-time snapshot of one live connection's state.
// The registry owns the mutable state; callers only ever see copies.
type Session struct {
	ID             string
	Identity       auth.Identity
	ConversationID string // empty when unbound
	Sender         Sender
}

// Bound reports whether the session is bound to a conversation.
func (s *Session) Bound() bool {
	return s.ConversationID != ""
}

// Registry tracks all live sessions indexed by session id.
// A session binds to at most one conversation at a time; rebinding replaces
// the previous binding. All mutations are mutually exclusive, and snapshots
// handed out by SessionsIn are safe to iterate without the lock.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	logger   *slog.Logger
}

// NewRegistry creates an empty Registry. Pass nil logger for default.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		sessions: make(map[string]*Session),
		logger:   logger.With("component", "registry"),
	}
}

// Register creates a session for a connected client and returns its id.
// The session starts with no conversation binding. Never fails.
func (r *Registry) Register(sender Sender, identity auth.Identity) string {
	id := uuid.New().String()

	r.mu.Lock()
	r.sessions[id] = &Session{
		ID:       id,
		Identity: identity,
		Sender:   sender,
	}
	total := len(r.sessions)
	r.mu.Unlock()

	r.logger.Info("session registered",
		"session_id", id,
		"user_id", identity.ID,
		"total_sessions", total,
	)
	return id
}

// Bind associates the session with a conversation, replacing any previous
// binding. Returns ErrUnknownSession if the session was already removed.
func (r *Registry) Bind(sessionID, conversationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[sessionID]
	if !ok {
		return ErrUnknownSession
	}
	sess.ConversationID = conversationID

	r.logger.Debug("session bound",
		"session_id", sessionID,
		"conversation_id", conversationID,
	)
	return nil
}

// Unbind clears the session's conversation binding. Idempotent: unbinding an
// unbound or already-removed session is a no-op.
func (r *Registry) Unbind(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sess, ok := r.sessions[sessionID]; ok {
		sess.ConversationID = ""
	}
}

// Remove deletes the session and returns its last known state, used to emit
// a final "left" event. Idempotent: the second call returns (nil, false).
func (r *Registry) Remove(sessionID string) (*Session, bool) {
	r.mu.Lock()
	sess, ok := r.sessions[sessionID]
	if !ok {
		r.mu.Unlock()
		return nil, false
	}
	delete(r.sessions, sessionID)
	snapshot := *sess
	total := len(r.sessions)
	r.mu.Unlock()

	r.logger.Info("session removed",
		"session_id", sessionID,
		"user_id", snapshot.Identity.ID,
		"total_sessions", total,
	)
	return &snapshot, true
}

// Get returns a snapshot of a session, or (nil, false) if it doesn't exist.
func (r *Registry) Get(sessionID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[sessionID]
	if !ok {
		return nil, false
	}
	snapshot := *sess
	return &snapshot, true
}

// SessionsIn returns a point-in-time snapshot of all sessions currently bound
// to the conversation. The snapshot is taken under the lock and released
// immediately so delivery to slow sockets never stalls registry mutations.
func (r *Registry) SessionsIn(conversationID string) []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []*Session
	for _, sess := range r.sessions {
		if sess.ConversationID == conversationID {
			snapshot := *sess
			result = append(result, &snapshot)
		}
	}
	return result
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// All returns a snapshot of every live session, for shutdown drains and
// health reporting.
func (r *Registry) All() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		snapshot := *sess
		result = append(result, &snapshot)
	}
	return result
}
