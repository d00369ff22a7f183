// ABOUTME: Frame dispatch and protocol transitions for live WebSocket sessions
// ABOUTME: Join binds after an authorization check; send persists before any fan-out

package gateway

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/tckeong/ChatWidget/internal/broadcast"
	"github.com/tckeong/ChatWidget/internal/store"
)

// storeTimeout bounds each persistence call. Deliberately not derived from
// the connection's context: a disconnect after commit must not cancel the
// write mid-flight.
const storeTimeout = 5 * time.Second

// handleFrame decodes one inbound frame and dispatches it. Decode failures
// produce an error frame and leave session state untouched.
func (g *Gateway) handleFrame(c *Client, data []byte) {
	event, err := DecodeFrame(data)
	if err != nil {
		var unknown *UnknownEventError
		switch {
		case errors.As(err, &unknown):
			c.sendError(codeUnknownType, unknown.Error())
		default:
			c.sendError(codeMalformed, err.Error())
		}
		return
	}

	ctx := context.Background()

	switch ev := event.(type) {
	case JoinEvent:
		g.handleJoin(ctx, c, ev)
	case LeaveEvent:
		g.handleLeave(c)
	case TypingEvent:
		g.handleTyping(c)
	case SendEvent:
		g.handleSend(ctx, c, ev)
	case ReadEvent:
		g.handleRead(ctx, c, ev)
	}
}

// handleJoin authorizes the identity against the conversation's participant
// list and binds the session. A rejected join leaves the session connected
// but unbound.
func (g *Gateway) handleJoin(ctx context.Context, c *Client, ev JoinEvent) {
	convID, err := strconv.ParseInt(ev.ConversationID, 10, 64)
	if err != nil {
		c.sendError(codeMalformed, "conversationId must be a numeric string")
		return
	}

	userID, err := strconv.ParseInt(c.identity.ID, 10, 64)
	if err != nil {
		c.sendError(codeAuthorization, "identity is not valid for this conversation")
		return
	}

	sctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	ok, err := g.store.IsParticipant(sctx, userID, convID)
	if err != nil {
		g.logger.Error("participant lookup failed", "conversation_id", convID, "error", err)
		c.sendError(codeStore, "could not verify conversation access")
		return
	}
	if !ok {
		c.sendError(codeAuthorization, "not a participant of this conversation")
		return
	}

	if err := g.registry.Bind(c.sessionID, ev.ConversationID); err != nil {
		// Session vanished between read and bind; the socket is gone too.
		g.logger.Warn("bind on removed session", "session_id", c.sessionID)
		return
	}

	g.logger.Info("session joined conversation",
		"session_id", c.sessionID,
		"conversation_id", ev.ConversationID)

	joined := broadcast.NewEvent(broadcast.TypeJoined, ev.ConversationID, c.identity.ID, map[string]string{
		"userId":   c.identity.ID,
		"userName": c.identity.Name,
	})
	if err := g.broadcaster.PublishLocal(joined, c.sessionID); err != nil {
		g.logger.Error("publishing joined event", "error", err)
	}
}

// handleLeave unbinds the session and notifies the conversation it left.
func (g *Gateway) handleLeave(c *Client) {
	sess, ok := g.registry.Get(c.sessionID)
	if !ok || !sess.Bound() {
		c.sendError(codeNotJoined, "no conversation joined")
		return
	}

	conversationID := sess.ConversationID
	g.registry.Unbind(c.sessionID)

	left := broadcast.NewEvent(broadcast.TypeLeft, conversationID, c.identity.ID, map[string]string{
		"userId": c.identity.ID,
	})
	if err := g.broadcaster.PublishLocal(left, c.sessionID); err != nil {
		g.logger.Error("publishing left event", "error", err)
	}
}

// handleTyping relays a typing indicator to the other bound sessions.
// Typing indicators are transient and never touch the store.
func (g *Gateway) handleTyping(c *Client) {
	sess, ok := g.registry.Get(c.sessionID)
	if !ok || !sess.Bound() {
		c.sendError(codeNotJoined, "no conversation joined")
		return
	}

	typing := broadcast.NewEvent(broadcast.TypeTyping, sess.ConversationID, c.identity.ID, map[string]string{
		"userId": c.identity.ID,
	})
	if err := g.broadcaster.PublishLocal(typing, c.sessionID); err != nil {
		g.logger.Error("publishing typing event", "error", err)
	}
}

// handleSend persists the message, then fans it out. Ordering is strict:
// nothing reaches other sessions until the write has committed, and a failed
// write produces only an error frame to the sender.
func (g *Gateway) handleSend(ctx context.Context, c *Client, ev SendEvent) {
	sess, ok := g.registry.Get(c.sessionID)
	if !ok || !sess.Bound() {
		c.sendError(codeNotJoined, "no conversation joined")
		return
	}

	convID, err := strconv.ParseInt(sess.ConversationID, 10, 64)
	if err != nil {
		c.sendError(codeMalformed, "conversationId must be a numeric string")
		return
	}
	senderID, err := strconv.ParseInt(c.identity.ID, 10, 64)
	if err != nil {
		c.sendError(codeAuthorization, "identity is not valid for this conversation")
		return
	}

	msg, errCode, errMsg := buildMessage(convID, senderID, ev)
	if errCode != "" {
		c.sendError(errCode, errMsg)
		return
	}

	sctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	if err := g.store.CreateMessage(sctx, msg); err != nil {
		g.logger.Error("persisting message failed",
			"session_id", c.sessionID,
			"conversation_id", convID,
			"error", err)
		c.sendError(codeStore, "message could not be saved")
		return
	}

	// The sender may have disconnected while the write was in flight. The
	// message is durable either way; only delivery targets change.
	current, stillHere := g.registry.Get(c.sessionID)

	wire := messageToJSON(msg)
	newMessage := broadcast.NewEvent(broadcast.TypeNewMessage, sess.ConversationID, c.identity.ID, wire)
	if err := g.broadcaster.PublishDurable(sctx, newMessage, c.sessionID); err != nil {
		g.logger.Error("publishing new-message event", "error", err)
	}

	if stillHere && current.ConversationID == sess.ConversationID {
		c.sendFrame(broadcast.TypeMessageSent, map[string]string{
			"messageId": wire.ID,
		})
	}
}

// buildMessage validates a send payload into a storable message. Returns an
// error code and human message when the payload is unusable.
func buildMessage(convID, senderID int64, ev SendEvent) (*store.Message, string, string) {
	contentType := ev.ContentType
	if contentType == "" {
		contentType = store.ContentTypeText
	}
	if !store.ValidContentType(contentType) {
		return nil, codeMalformed, "unknown contentType " + strconv.Quote(ev.ContentType)
	}
	if ev.Body == "" && ev.FileURL == "" && len(ev.Attachments) == 0 {
		return nil, codeMalformed, "message requires a body, fileUrl or attachments"
	}

	msg := &store.Message{
		ConversationID: convID,
		SenderID:       &senderID,
		Body:           ev.Body,
		ContentType:    contentType,
		FileURL:        ev.FileURL,
		MimeType:       ev.MimeType,
	}
	for _, att := range ev.Attachments {
		if att.URL == "" {
			return nil, codeMalformed, "attachment requires a url"
		}
		msg.Attachments = append(msg.Attachments, store.Attachment{
			URL:       att.URL,
			MimeType:  att.MimeType,
			Width:     att.Width,
			Height:    att.Height,
			SizeBytes: att.SizeBytes,
		})
	}
	return msg, "", ""
}

// handleRead marks the listed messages read and emits a read receipt. The
// reader's own messages never flip; a receipt is only broadcast when at
// least one message actually changed.
func (g *Gateway) handleRead(ctx context.Context, c *Client, ev ReadEvent) {
	sess, ok := g.registry.Get(c.sessionID)
	if !ok || !sess.Bound() {
		c.sendError(codeNotJoined, "no conversation joined")
		return
	}

	convID, err := strconv.ParseInt(sess.ConversationID, 10, 64)
	if err != nil {
		c.sendError(codeMalformed, "conversationId must be a numeric string")
		return
	}
	readerID, err := strconv.ParseInt(c.identity.ID, 10, 64)
	if err != nil {
		c.sendError(codeAuthorization, "identity is not valid for this conversation")
		return
	}

	messageIDs := make([]int64, 0, len(ev.MessageIDs))
	for _, raw := range ev.MessageIDs {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.sendError(codeMalformed, "messageIds must be numeric strings")
			return
		}
		messageIDs = append(messageIDs, id)
	}

	sctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	updated, err := g.store.MarkMessagesRead(sctx, messageIDs, convID, readerID)
	if err != nil {
		g.logger.Error("marking messages read failed",
			"session_id", c.sessionID,
			"conversation_id", convID,
			"error", err)
		c.sendError(codeStore, "read receipt could not be saved")
		return
	}
	if updated == 0 {
		return
	}

	receipt := broadcast.NewEvent(broadcast.TypeReadReceipt, sess.ConversationID, c.identity.ID, map[string]interface{}{
		"messageIds": ev.MessageIDs,
		"readerId":   c.identity.ID,
	})
	if err := g.broadcaster.PublishLocal(receipt, c.sessionID); err != nil {
		g.logger.Error("publishing read-receipt event", "error", err)
	}
}

// handleDisconnect removes the session and, when it was bound, tells the
// conversation it left. Runs exactly once per connection from readPump's
// close path.
func (g *Gateway) handleDisconnect(c *Client) {
	removed, ok := g.registry.Remove(c.sessionID)
	if !ok {
		return
	}

	g.logger.Info("websocket disconnected",
		"session_id", c.sessionID,
		"user_id", c.identity.ID)

	if !removed.Bound() {
		return
	}

	left := broadcast.NewEvent(broadcast.TypeLeft, removed.ConversationID, c.identity.ID, map[string]string{
		"userId": c.identity.ID,
	})
	if err := g.broadcaster.PublishLocal(left, c.sessionID); err != nil {
		g.logger.Error("publishing left event", "error", err)
	}
}
