// ABOUTME: Bridge interface for cross-process event replication
// ABOUTME: MemoryBridge fans out in-process; used by tests and single-node deployments

package broadcast

import (
	"context"
	"log/slog"
	"sync"
)

// bridgeBufferSize is the channel buffer for each bridge subscriber.
const bridgeBufferSize = 64

// Bridge is the shared channel-of-record connecting relay instances.
// Subscribers receive every payload published by any instance, including
// their own; origin filtering happens in the Broadcaster.
type Bridge interface {
	Publish(ctx context.Context, payload []byte) error
	Subscribe(ctx context.Context) (<-chan []byte, error)
	Close() error
}

// MemoryBridge is an in-process Bridge. It connects broadcasters inside one
// process, which is what tests and redis-disabled deployments need.
type MemoryBridge struct {
	mu     sync.Mutex
	subs   map[int]chan []byte
	nextID int
	closed bool
	logger *slog.Logger
}

// NewMemoryBridge creates an empty MemoryBridge.
func NewMemoryBridge() *MemoryBridge {
	return &MemoryBridge{
		subs:   make(map[int]chan []byte),
		logger: slog.Default().With("component", "memory_bridge"),
	}
}

// Publish delivers the payload to all subscribers. Non-blocking: payloads are
// dropped for subscribers whose channels are full. Sends happen under the
// mutex; they cannot block, and unsubscribing closes channels under the same
// mutex, so a send never races a close.
func (m *MemoryBridge) Publish(ctx context.Context, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, ch := range m.subs {
		select {
		case ch <- payload:
		default:
			m.logger.Debug("dropped payload for slow bridge subscriber")
		}
	}
	return nil
}

// Subscribe registers a subscriber channel, cleaned up when ctx is cancelled.
func (m *MemoryBridge) Subscribe(ctx context.Context) (<-chan []byte, error) {
	ch := make(chan []byte, bridgeBufferSize)

	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = ch
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		defer m.mu.Unlock()
		if _, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(ch)
		}
	}()

	return ch, nil
}

// Close closes all subscriber channels.
func (m *MemoryBridge) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	for id, ch := range m.subs {
		close(ch)
		delete(m.subs, id)
	}
	return nil
}
