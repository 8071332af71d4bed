package ws

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NadimGhaznavi/hydra-router/internal/transport"
)

func dialAndIdentify(t *testing.T, addr, path, identity string) *websocket.Conn {
	t.Helper()
	url := fmt.Sprintf("ws://%s%s", addr, path)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(identity)))
	return conn
}

func TestSendUnknownTargetFails(t *testing.T) {
	tr := New("127.0.0.1:0", "/ws")
	err := tr.Send("ghost", []byte("x"))
	assert.ErrorIs(t, err, transport.ErrUnknownTarget)
}

func TestRoundTrip(t *testing.T) {
	tr := New("127.0.0.1:0", "/ws")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, tr.Listen(ctx))
	defer tr.Close()

	addr := tr.ln.Addr().String()

	conn := dialAndIdentify(t, addr, "/ws", "peer-1")
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"sender":"SimpleClient","elem":"heartbeat"}`)))

	acceptCtx, acceptCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer acceptCancel()
	frame, err := tr.Accept(acceptCtx)
	require.NoError(t, err)
	assert.Equal(t, "peer-1", frame.Identity)
	assert.Contains(t, string(frame.Payload), "heartbeat")

	require.NoError(t, tr.Send("peer-1", []byte(`{"sender":"HydraRouter","elem":"error"}`)))
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, reply, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(reply), "error")
}

func TestAcceptUnblocksOnClose(t *testing.T) {
	tr := New("127.0.0.1:0", "/ws")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, tr.Listen(ctx))

	go func() {
		time.Sleep(50 * time.Millisecond)
		tr.Close()
	}()

	_, err := tr.Accept(context.Background())
	assert.ErrorIs(t, err, transport.ErrClosed)
}

func TestDisconnectRemovesPeer(t *testing.T) {
	tr := New("127.0.0.1:0", "/ws")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, tr.Listen(ctx))
	defer tr.Close()

	addr := tr.ln.Addr().String()
	conn := dialAndIdentify(t, addr, "/ws", "peer-2")

	acceptCtx, acceptCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer acceptCancel()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"elem":"heartbeat"}`)))
	_, err := tr.Accept(acceptCtx)
	require.NoError(t, err)

	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		return tr.Send("peer-2", []byte("x")) == transport.ErrUnknownTarget
	}, 2*time.Second, 10*time.Millisecond)
}
