// ABOUTME: Tests for the client outbound queue semantics
// ABOUTME: A closed or saturated client must fail sends without blocking

package gateway

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tckeong/ChatWidget/internal/auth"
)

func newChannelClient() *Client {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return newClient(nil, auth.Identity{ID: "1"}, logger)
}

func TestClientSend_QueuesUntilFull(t *testing.T) {
	c := newChannelClient()

	for i := 0; i < sendBufferSize; i++ {
		require.NoError(t, c.Send([]byte("x")))
	}

	// Buffer is full and nothing drains it: the next send must fail
	// immediately instead of blocking the broadcaster.
	err := c.Send([]byte("overflow"))
	assert.ErrorIs(t, err, errSendBufferFull)
}

func TestClientSend_AfterClose(t *testing.T) {
	c := newChannelClient()
	require.NoError(t, c.Close())

	err := c.Send([]byte("late"))
	assert.ErrorIs(t, err, errClientClosed)
}

func TestClientClose_Idempotent(t *testing.T) {
	c := newChannelClient()
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}
