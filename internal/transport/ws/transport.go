// Package ws implements transport.Transport over WebSocket connections
// using gorilla/websocket, the alternate real transport spec §6 allows
// alongside raw TCP. Each WebSocket connection is one frame-per-message:
// the first text message a peer sends after the handshake is its chosen
// transport identity, every message after that is envelope bytes.
package ws

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/NadimGhaznavi/hydra-router/internal/transport"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Transport is a WebSocket-backed transport.Transport.
type Transport struct {
	addr string
	srv  *http.Server
	ln   net.Listener

	mu    sync.RWMutex
	conns map[string]*websocket.Conn

	inbound chan transport.Frame
	closed  chan struct{}
	once    sync.Once
}

// New constructs a WebSocket transport that serves upgrades at path on
// addr (e.g. ":9091").
func New(addr, path string) *Transport {
	t := &Transport{
		addr:    addr,
		conns:   make(map[string]*websocket.Conn),
		inbound: make(chan transport.Frame, 256),
		closed:  make(chan struct{}),
	}
	mux := http.NewServeMux()
	mux.HandleFunc(path, t.handleUpgrade)
	t.srv = &http.Server{Handler: mux}
	return t
}

func (t *Transport) Listen(ctx context.Context) error {
	ln, err := net.Listen("tcp", t.addr)
	if err != nil {
		return fmt.Errorf("ws transport: listen %s: %w", t.addr, err)
	}
	t.ln = ln

	go func() {
		<-ctx.Done()
		t.Close()
	}()

	go func() {
		_ = t.srv.Serve(ln)
	}()
	return nil
}

func (t *Transport) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	go t.readLoop(conn)
}

func (t *Transport) readLoop(conn *websocket.Conn) {
	defer conn.Close()

	_, identityBytes, err := conn.ReadMessage()
	if err != nil {
		return
	}
	identity := string(identityBytes)

	t.mu.Lock()
	t.conns[identity] = conn
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		if t.conns[identity] == conn {
			delete(t.conns, identity)
		}
		t.mu.Unlock()
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
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
	return conn.WriteMessage(websocket.TextMessage, payload)
}

func (t *Transport) Close() error {
	var err error
	t.once.Do(func() {
		close(t.closed)
		if t.ln != nil {
			err = t.ln.Close()
		}
		t.mu.Lock()
		for id, c := range t.conns {
			c.Close()
			delete(t.conns, id)
		}
		t.mu.Unlock()
	})
	return err
}
