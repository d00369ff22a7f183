// ABOUTME: REST handlers for sending messages and reading conversation history
// ABOUTME: Same authorization and fan-out path as the WebSocket handlers

package gateway

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/tckeong/ChatWidget/internal/auth"
	"github.com/tckeong/ChatWidget/internal/broadcast"
)

var validate = validator.New()

// SendMessageRequest is the JSON request body for POST /api/messages.
// Ids are numeric strings, matching the wire representation everywhere else.
type SendMessageRequest struct {
	ConversationID string              `json:"conversationId" validate:"required,number"`
	Body           string              `json:"body"`
	ContentType    string              `json:"contentType"`
	FileURL        string              `json:"fileUrl"`
	MimeType       string              `json:"mimeType"`
	Attachments    []AttachmentPayload `json:"attachments" validate:"dive"`
}

// HistoryResponse is the JSON response for conversation history.
type HistoryResponse struct {
	ConversationID string        `json:"conversationId"`
	Messages       []MessageJSON `json:"messages"`
}

// ConversationResponse is one entry in the conversation list.
type ConversationResponse struct {
	ID           string                `json:"id"`
	BusinessID   string                `json:"businessId"`
	Type         string                `json:"type"`
	CreatedAt    string                `json:"createdAt"`
	UpdatedAt    string                `json:"updatedAt"`
	Participants []ParticipantResponse `json:"participants"`
}

// ParticipantResponse is one participant within a conversation listing.
type ParticipantResponse struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func (g *Gateway) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		g.logger.Error("encoding response", "error", err)
	}
}

// requireUserID extracts the authenticated identity and parses its numeric id.
func (g *Gateway) requireUserID(w http.ResponseWriter, r *http.Request) (*auth.Identity, int64, bool) {
	identity := auth.FromContext(r.Context())
	if identity == nil {
		g.sendJSONError(w, http.StatusUnauthorized, "authentication required")
		return nil, 0, false
	}
	userID, err := strconv.ParseInt(identity.ID, 10, 64)
	if err != nil {
		g.sendJSONError(w, http.StatusForbidden, "identity is not valid for this resource")
		return nil, 0, false
	}
	return identity, userID, true
}

// handleSendMessage handles POST /api/messages. It follows the same
// persist-then-fan-out ordering as the WebSocket send path, so REST clients
// and live sessions see an identical contract.
func (g *Gateway) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	identity, userID, ok := g.requireUserID(w, r)
	if !ok {
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	convID, err := strconv.ParseInt(req.ConversationID, 10, 64)
	if err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "conversationId must be a numeric string")
		return
	}

	isMember, err := g.store.IsParticipant(r.Context(), userID, convID)
	if err != nil {
		g.logger.Error("participant lookup failed", "conversation_id", convID, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "could not verify conversation access")
		return
	}
	if !isMember {
		g.sendJSONError(w, http.StatusForbidden, "not a participant of this conversation")
		return
	}

	msg, errCode, errMsg := buildMessage(convID, userID, SendEvent{
		Body:        req.Body,
		ContentType: req.ContentType,
		FileURL:     req.FileURL,
		MimeType:    req.MimeType,
		Attachments: req.Attachments,
	})
	if errCode != "" {
		g.sendJSONError(w, http.StatusBadRequest, errMsg)
		return
	}

	if err := g.store.CreateMessage(r.Context(), msg); err != nil {
		g.logger.Error("persisting message failed", "conversation_id", convID, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "message could not be saved")
		return
	}

	wire := messageToJSON(msg)
	event := broadcast.NewEvent(broadcast.TypeNewMessage, req.ConversationID, identity.ID, wire)
	if err := g.broadcaster.PublishDurable(r.Context(), event, ""); err != nil {
		g.logger.Error("publishing new-message event", "error", err)
	}

	g.writeJSON(w, http.StatusCreated, wire)
}

// handleHistory handles GET /api/conversations/{conversationID}/messages.
// Messages come back oldest first; deleted messages are never included.
func (g *Gateway) handleHistory(w http.ResponseWriter, r *http.Request) {
	_, userID, ok := g.requireUserID(w, r)
	if !ok {
		return
	}

	rawConvID := r.PathValue("conversationID")
	convID, err := strconv.ParseInt(rawConvID, 10, 64)
	if err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "conversationID must be a numeric string")
		return
	}

	isMember, err := g.store.IsParticipant(r.Context(), userID, convID)
	if err != nil {
		g.logger.Error("participant lookup failed", "conversation_id", convID, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "could not verify conversation access")
		return
	}
	if !isMember {
		g.sendJSONError(w, http.StatusForbidden, "not a participant of this conversation")
		return
	}

	// Optional limit parameter (default 50, max 500).
	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			g.sendJSONError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
		if limit > 500 {
			limit = 500
		}
	}
	offset := 0
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		parsed, err := strconv.Atoi(offsetStr)
		if err != nil || parsed < 0 {
			g.sendJSONError(w, http.StatusBadRequest, "offset must be a non-negative integer")
			return
		}
		offset = parsed
	}

	messages, err := g.store.ListMessages(r.Context(), convID, limit, offset)
	if err != nil {
		g.logger.Error("listing messages failed", "conversation_id", convID, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "could not load history")
		return
	}

	resp := HistoryResponse{
		ConversationID: rawConvID,
		Messages:       make([]MessageJSON, 0, len(messages)),
	}
	for _, msg := range messages {
		resp.Messages = append(resp.Messages, messageToJSON(msg))
	}
	g.writeJSON(w, http.StatusOK, resp)
}

// handleListConversations handles GET /api/conversations?businessId=N,
// returning the caller's conversations within that business.
func (g *Gateway) handleListConversations(w http.ResponseWriter, r *http.Request) {
	_, userID, ok := g.requireUserID(w, r)
	if !ok {
		return
	}

	businessID, err := strconv.ParseInt(r.URL.Query().Get("businessId"), 10, 64)
	if err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "businessId must be a numeric string")
		return
	}

	summaries, err := g.store.ListConversations(r.Context(), userID, businessID)
	if err != nil {
		g.logger.Error("listing conversations failed", "business_id", businessID, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "could not load conversations")
		return
	}

	resp := make([]ConversationResponse, 0, len(summaries))
	for _, s := range summaries {
		conv := ConversationResponse{
			ID:           strconv.FormatInt(s.Conversation.ID, 10),
			BusinessID:   strconv.FormatInt(s.Conversation.BusinessID, 10),
			Type:         s.Conversation.Type,
			CreatedAt:    s.Conversation.CreatedAt.UTC().Format(time.RFC3339),
			UpdatedAt:    s.Conversation.UpdatedAt.UTC().Format(time.RFC3339),
			Participants: make([]ParticipantResponse, 0, len(s.Participants)),
		}
		for _, p := range s.Participants {
			conv.Participants = append(conv.Participants, ParticipantResponse{
				UserID: strconv.FormatInt(p.UserID, 10),
				Role:   p.Role,
			})
		}
		resp = append(resp, conv)
	}
	g.writeJSON(w, http.StatusOK, resp)
}
