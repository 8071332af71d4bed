package inproc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NadimGhaznavi/hydra-router/internal/transport"
	"github.com/NadimGhaznavi/hydra-router/internal/transport/tcp"
)

func TestConnectSendAccept(t *testing.T) {
	tr := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, tr.Listen(ctx))
	defer tr.Close()

	conn := tr.Connect("c1")
	defer conn.Close()

	require.NoError(t, tcp.WriteEnvelope(conn, []byte(`{"elem":"heartbeat"}`)))

	acceptCtx, acceptCancel := context.WithTimeout(context.Background(), time.Second)
	defer acceptCancel()
	f, err := tr.Accept(acceptCtx)
	require.NoError(t, err)
	assert.Equal(t, "c1", f.Identity)

	require.NoError(t, tr.Send("c1", []byte(`{"elem":"error"}`)))
	reply, err := tcp.ReadEnvelope(conn)
	require.NoError(t, err)
	assert.Contains(t, string(reply), "error")
}

func TestSendUnknownTarget(t *testing.T) {
	tr := New()
	err := tr.Send("ghost", []byte("x"))
	assert.ErrorIs(t, err, transport.ErrUnknownTarget)
}

func TestCloseDisconnectsPeers(t *testing.T) {
	tr := New()
	ctx := context.Background()
	require.NoError(t, tr.Listen(ctx))
	conn := tr.Connect("c1")

	require.NoError(t, tr.Close())

	buf := make([]byte, 1)
	_, err := conn.Read(buf)
	assert.Error(t, err)
}
