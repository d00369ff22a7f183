// ABOUTME: Fan-out broadcaster delivering events to sessions bound to a conversation
// ABOUTME: Bridges local delivery with cross-process pub/sub via origin-tagged envelopes

package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/tckeong/ChatWidget/internal/session"
)

// Broadcaster delivers events to every session bound to the target
// conversation, and replicates durable events to peer relay instances through
// the Bridge. A nil bridge disables cross-process replication.
type Broadcaster struct {
	registry *session.Registry
	bridge   Bridge
	origin   string
	logger   *slog.Logger
}

// NewBroadcaster creates a Broadcaster with a unique origin id.
// Pass nil logger for default, nil bridge for single-instance operation.
func NewBroadcaster(registry *session.Registry, bridge Bridge, logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		registry: registry,
		bridge:   bridge,
		origin:   uuid.New().String(),
		logger:   logger.With("component", "broadcaster"),
	}
}

// Origin returns this instance's origin tag. Exposed for tests.
func (b *Broadcaster) Origin() string {
	return b.origin
}

// PublishLocal delivers the event to all local sessions bound to its
// conversation, excluding excludeSessionID when non-empty. Delivery is
// best-effort per target: a failed channel write removes that session from
// the registry and never aborts delivery to the survivors.
func (b *Broadcaster) PublishLocal(event *Event, excludeSessionID string) error {
	if event.ConversationID == "" {
		return fmt.Errorf("%w: type %q", ErrNoConversation, event.Type)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	// Snapshot under the registry lock, deliver outside it
	targets := b.registry.SessionsIn(event.ConversationID)
	for _, target := range targets {
		if excludeSessionID != "" && target.ID == excludeSessionID {
			continue
		}
		if err := target.Sender.Send(data); err != nil {
			// Broken channel: drop the session, keep delivering
			b.logger.Warn("channel write failed, removing session",
				"session_id", target.ID,
				"conversation_id", event.ConversationID,
				"error", err,
			)
			b.registry.Remove(target.ID)
			_ = target.Sender.Close()
		}
	}

	b.logger.Debug("event published",
		"type", event.Type,
		"conversation_id", event.ConversationID,
		"targets", len(targets),
	)
	return nil
}

// PublishDurable delivers the event locally and then replicates it to peer
// relay instances through the bridge. Local delivery happens exactly once,
// before the external publish, so the subscription handler never re-delivers
// this instance's own events. Used only for events tied to a persisted
// message.
func (b *Broadcaster) PublishDurable(ctx context.Context, event *Event, excludeSessionID string) error {
	if err := b.PublishLocal(event, excludeSessionID); err != nil {
		return err
	}
	if b.bridge == nil {
		return nil
	}

	data, err := json.Marshal(envelope{Origin: b.origin, Event: event})
	if err != nil {
		return fmt.Errorf("marshaling envelope: %w", err)
	}
	if err := b.bridge.Publish(ctx, data); err != nil {
		return fmt.Errorf("publishing to bridge: %w", err)
	}
	return nil
}

// Run subscribes to the bridge and re-delivers peer events to local sessions
// until ctx is cancelled. Envelopes tagged with this instance's own origin
// are dropped to prevent re-publishing loops. Returns nil immediately when
// no bridge is configured.
func (b *Broadcaster) Run(ctx context.Context) error {
	if b.bridge == nil {
		return nil
	}

	ch, err := b.bridge.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribing to bridge: %w", err)
	}
	b.logger.Info("subscribed to bridge", "origin", b.origin)

	for {
		select {
		case <-ctx.Done():
			return nil
		case data, ok := <-ch:
			if !ok {
				return nil
			}
			b.handleBridgeMessage(data)
		}
	}
}

func (b *Broadcaster) handleBridgeMessage(data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		b.logger.Error("dropping malformed bridge message", "error", err)
		return
	}
	if env.Origin == b.origin {
		// Our own publish; local delivery already happened
		return
	}
	if env.Event == nil {
		b.logger.Error("dropping bridge envelope with no event", "origin", env.Origin)
		return
	}
	if err := b.PublishLocal(env.Event, ""); err != nil {
		b.logger.Error("delivering bridge event",
			"type", env.Event.Type,
			"error", err,
		)
	}
}
