// Package client provides a thin peer library for processes that speak to
// the router over the tcp transport: connect, send fire-and-forget
// envelopes, and issue correlated request/response calls with a deadline.
// Grounded on code/cellorg/internal/client/broker.go's BrokerClient —
// call()'s request-ID/response-channel correlation and
// messageListener()'s single-reader dispatch loop are kept almost
// unchanged in shape, generalized from JSON-RPC method calls to the
// router's closed envelope.Kind set.
package client

import (
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/NadimGhaznavi/hydra-router/internal/envelope"
	"github.com/NadimGhaznavi/hydra-router/internal/transport/tcp"
)

const defaultCallTimeout = 10 * time.Second

// Client is a router peer: one TCP connection, identified to the router by
// identity, declaring role as its sender role on every outbound envelope.
type Client struct {
	addr     string
	identity string
	role     envelope.Role

	mu   sync.Mutex
	conn net.Conn

	waitersMu sync.Mutex
	waiters   map[string]chan *envelope.App

	handlersMu sync.RWMutex
	handlers   map[envelope.Kind]func(*envelope.App)

	closed chan struct{}
	once   sync.Once
}

// New constructs a disconnected Client. identity is the transport identity
// this peer will present to the router; role is the declared sender role
// placed on every outbound envelope (spec §3).
func New(addr, identity string, role envelope.Role) *Client {
	return &Client{
		addr:     addr,
		identity: identity,
		role:     role,
		waiters:  make(map[string]chan *envelope.App),
		handlers: make(map[envelope.Kind]func(*envelope.App)),
		closed:   make(chan struct{}),
	}
}

// Connect dials the router and starts the background read loop. Connect is
// idempotent.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return nil
	}

	conn, err := tcp.DialAndIdentify(c.addr, c.identity)
	if err != nil {
		return fmt.Errorf("client: connect to %s: %w", c.addr, err)
	}
	c.conn = conn
	go c.readLoop(conn)
	return nil
}

// Close disconnects from the router, failing every outstanding Request
// call.
func (c *Client) Close() error {
	c.once.Do(func() {
		close(c.closed)
	})
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// OnKind registers a handler invoked for every inbound envelope of the
// given kind that is not itself a correlated Request reply. Only one
// handler per kind is kept; a later call replaces an earlier one.
func (c *Client) OnKind(kind envelope.Kind, handler func(*envelope.App)) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.handlers[kind] = handler
}

// Send transmits app as a fire-and-forget envelope; no reply is awaited.
func (c *Client) Send(app *envelope.App) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("client: not connected")
	}

	wire := envelope.ToWire(app, c.role)
	payload, err := json.Marshal(wire)
	if err != nil {
		return fmt.Errorf("client: marshal envelope: %w", err)
	}
	return tcp.WriteEnvelope(conn, payload)
}

// Request sends app with a freshly generated RequestID and blocks until a
// reply carrying the same RequestID arrives, timeout elapses, or the
// client is closed.
func (c *Client) Request(app *envelope.App, timeout time.Duration) (*envelope.App, error) {
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	requestID := uuid.NewString()
	app.RequestID = requestID

	respChan := make(chan *envelope.App, 1)
	c.waitersMu.Lock()
	c.waiters[requestID] = respChan
	c.waitersMu.Unlock()

	cleanup := func() {
		c.waitersMu.Lock()
		delete(c.waiters, requestID)
		c.waitersMu.Unlock()
	}

	if err := c.Send(app); err != nil {
		cleanup()
		return nil, err
	}

	select {
	case resp := <-respChan:
		cleanup()
		if resp == nil {
			return nil, fmt.Errorf("client: connection closed while awaiting reply")
		}
		return resp, nil
	case <-time.After(timeout):
		cleanup()
		return nil, fmt.Errorf("client: request %s timed out after %s", requestID, timeout)
	case <-c.closed:
		cleanup()
		return nil, fmt.Errorf("client: closed while awaiting reply")
	}
}

func (c *Client) readLoop(conn net.Conn) {
	defer func() {
		c.waitersMu.Lock()
		for id, ch := range c.waiters {
			close(ch)
			delete(c.waiters, id)
		}
		c.waitersMu.Unlock()
	}()

	for {
		payload, err := tcp.ReadEnvelope(conn)
		if err != nil {
			return
		}

		wire, err := envelope.ParseAndValidate(payload)
		if err != nil {
			continue
		}
		app, err := envelope.FromWire(wire)
		if err != nil {
			continue
		}

		if app.RequestID != "" {
			c.waitersMu.Lock()
			ch, ok := c.waiters[app.RequestID]
			if ok {
				delete(c.waiters, app.RequestID)
			}
			c.waitersMu.Unlock()
			if ok {
				// Single-shot delivery: the waiter is removed before the
				// reply is handed over, so a duplicate or late reply finds
				// no waiter and never reaches a Request caller. Such a
				// reply is handled below like an unsolicited envelope and
				// goes to the kind's handler, if one is registered.
				ch <- app
				continue
			}
		}

		c.handlersMu.RLock()
		handler := c.handlers[app.Kind]
		c.handlersMu.RUnlock()
		if handler != nil {
			handler(app)
		}
	}
}
