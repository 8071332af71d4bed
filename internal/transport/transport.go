// Package transport defines the framed, identity-addressed duplex socket
// abstraction spec §6 requires: peers choose a stable transport identity at
// connect time, which the transport carries automatically alongside every
// inbound envelope.
package transport

import (
	"context"
	"errors"
)

// ErrClosed is returned by Accept once the transport has been closed. Close
// drops every peer connection, so Send after Close returns
// ErrUnknownTarget.
var ErrClosed = errors.New("transport: closed")

// ErrUnknownTarget is returned by Send when no connected peer matches the
// given identity — the dispatcher treats this as a per-target transport
// error to log and skip (spec §4.4/§7).
var ErrUnknownTarget = errors.New("transport: unknown target identity")

// Frame is one inbound unit: the transport identity the peer chose at
// connect time, paired with the raw envelope bytes it sent.
type Frame struct {
	Identity string
	Payload  []byte
}

// Transport is the duplex, identity-addressed socket the router runtime
// binds. Implementations: tcp (the primary wire transport), inproc (an
// in-memory net.Pipe-backed transport used by tests), and ws
// (gorilla/websocket, an alternate real transport).
type Transport interface {
	// Listen starts accepting peer connections at the transport's
	// configured address. Listen must be called before Accept or Send.
	Listen(ctx context.Context) error

	// Accept blocks until an inbound frame is available, the context is
	// done, or the transport is closed (returning ErrClosed). A
	// bounded-timeout context is expected from callers that need
	// cooperative-shutdown checks per spec §5.
	Accept(ctx context.Context) (Frame, error)

	// Send delivers payload to the peer identified by identity. It returns
	// ErrUnknownTarget if no such peer is currently connected, or a
	// transport-specific error on a transient send failure — both are
	// per-target errors the dispatcher/runtime skip-and-log (spec §4.4/§7).
	Send(identity string, payload []byte) error

	// Close shuts down the transport, releasing all peer connections.
	// Close is idempotent.
	Close() error
}
