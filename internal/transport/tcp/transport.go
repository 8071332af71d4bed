// Package tcp implements transport.Transport over plain TCP connections,
// the spec's primary wire transport. Framing: each logical unit is a
// 4-byte big-endian length prefix followed by that many payload bytes. The
// first frame a peer sends after dialing is its chosen transport identity;
// every frame after that is envelope bytes. This mirrors
// code/cellorg/internal/broker/service.go's one-goroutine-per-connection
// accept loop, generalized to carry an explicit peer-chosen identity
// instead of a broker-generated connection id.
package tcp

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/NadimGhaznavi/hydra-router/internal/transport"
)

const maxFrameBytes = transportMaxFrame

// transportMaxFrame bounds a single frame read to guard against a
// misbehaving peer claiming an enormous length prefix. Set comfortably
// above the 1 MiB envelope cap to leave headroom for the identity frame.
const transportMaxFrame = 2 << 20

// Transport is a TCP-backed transport.Transport.
type Transport struct {
	addr     string
	listener net.Listener

	mu    sync.RWMutex
	conns map[string]net.Conn

	inbound chan transport.Frame
	closed  chan struct{}
	once    sync.Once
}

// New constructs a TCP transport bound to addr (e.g. ":9090").
func New(addr string) *Transport {
	return &Transport{
		addr:    addr,
		conns:   make(map[string]net.Conn),
		inbound: make(chan transport.Frame, 256),
		closed:  make(chan struct{}),
	}
}

func (t *Transport) Listen(ctx context.Context) error {
	l, err := net.Listen("tcp", t.addr)
	if err != nil {
		return fmt.Errorf("tcp transport: listen %s: %w", t.addr, err)
	}
	t.listener = l

	go func() {
		<-ctx.Done()
		t.Close()
	}()

	go t.acceptLoop()
	return nil
}

// Addr returns the listener's actual address, useful when New was given
// a ":0" port and the caller needs to know what was bound.
func (t *Transport) Addr() string {
	if t.listener == nil {
		return ""
	}
	return t.listener.Addr().String()
}

func (t *Transport) acceptLoop() {
	for {
		conn, err := t.listener.Accept()
		if err != nil {
			select {
			case <-t.closed:
				return
			default:
			}
			continue
		}
		go t.handleConn(conn)
	}
}

func (t *Transport) handleConn(conn net.Conn) {
	defer conn.Close()

	identity, err := readFrame(conn)
	if err != nil {
		return
	}
	idStr := string(identity)

	t.mu.Lock()
	t.conns[idStr] = conn
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		if t.conns[idStr] == conn {
			delete(t.conns, idStr)
		}
		t.mu.Unlock()
	}()

	for {
		payload, err := readFrame(conn)
		if err != nil {
			return
		}
		frame := transport.Frame{Identity: idStr, Payload: payload}
		select {
		case t.inbound <- frame:
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
	return writeFrame(conn, payload)
}

func (t *Transport) Close() error {
	var err error
	t.once.Do(func() {
		close(t.closed)
		if t.listener != nil {
			err = t.listener.Close()
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

func readFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > maxFrameBytes {
		return nil, fmt.Errorf("tcp transport: frame of %d bytes exceeds max %d", n, maxFrameBytes)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func writeFrame(w io.Writer, payload []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// DialAndIdentify is the client-side half of the handshake: it dials addr
// and immediately sends identity as the first frame, returning the raw
// connection for subsequent envelope frames.
func DialAndIdentify(addr, identity string) (net.Conn, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	if err := writeFrame(conn, []byte(identity)); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// WriteEnvelope writes a single framed envelope payload on conn.
func WriteEnvelope(conn net.Conn, payload []byte) error {
	return writeFrame(conn, payload)
}

// ReadEnvelope reads a single framed envelope payload from conn.
func ReadEnvelope(conn net.Conn) ([]byte, error) {
	return readFrame(conn)
}
