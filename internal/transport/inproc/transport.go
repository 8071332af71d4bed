// Package inproc implements transport.Transport over net.Pipe, giving
// tests a real duplex-stream transport without opening a socket. It shares
// tcp's length-prefixed framing so the router runtime's receive loop is
// identical across transports.
package inproc

import (
	"context"
	"net"
	"sync"

	"github.com/NadimGhaznavi/hydra-router/internal/transport"
	"github.com/NadimGhaznavi/hydra-router/internal/transport/tcp"
)

// Transport is an in-memory, net.Pipe-backed transport.Transport. Peers
// attach via Connect rather than dialing an address.
type Transport struct {
	mu    sync.RWMutex
	conns map[string]net.Conn

	inbound chan transport.Frame
	closed  chan struct{}
	once    sync.Once
}

// New constructs an empty inproc transport.
func New() *Transport {
	return &Transport{
		conns:   make(map[string]net.Conn),
		inbound: make(chan transport.Frame, 256),
		closed:  make(chan struct{}),
	}
}

func (t *Transport) Listen(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		t.Close()
	}()
	return nil
}

// Connect attaches a new peer under identity and returns its end of the
// pipe; the transport retains the other end for Send/Accept.
func (t *Transport) Connect(identity string) net.Conn {
	serverSide, clientSide := net.Pipe()

	t.mu.Lock()
	t.conns[identity] = serverSide
	t.mu.Unlock()

	go t.readLoop(identity, serverSide)
	return clientSide
}

func (t *Transport) readLoop(identity string, conn net.Conn) {
	defer conn.Close()
	for {
		payload, err := tcp.ReadEnvelope(conn)
		if err != nil {
			t.mu.Lock()
			if t.conns[identity] == conn {
				delete(t.conns, identity)
			}
			t.mu.Unlock()
			return
		}
		select {
		case t.inbound <- transport.Frame{Identity: identity, Payload: payload}:
		case <-t.closed:
			return
		}
	}
}

func (t *Transport) Accept(ctx context.Context) (transport.Frame, error) {
	select {
	case f := <-t.inbound:
		return f, nil
	case <-t.closed:
		return transport.Frame{}, transport.ErrClosed
	case <-ctx.Done():
		return transport.Frame{}, ctx.Err()
	}
}

func (t *Transport) Send(identity string, payload []byte) error {
	t.mu.RLock()
	conn, ok := t.conns[identity]
	t.mu.RUnlock()
	if !ok {
		return transport.ErrUnknownTarget
	}
	return tcp.WriteEnvelope(conn, payload)
}

func (t *Transport) Close() error {
	t.once.Do(func() {
		close(t.closed)
		t.mu.Lock()
		for id, c := range t.conns {
			c.Close()
			delete(t.conns, id)
		}
		t.mu.Unlock()
	})
	return nil
}
