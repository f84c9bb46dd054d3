// Package session implements the connection/session layer: the Client
// record, its reader and writer tasks, and the process-wide registry
// that admits, tracks, and removes them (spec §4.3-§4.5).
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/rdenton/battleshipd/internal/protocol"
)

// Role is a Client's current position in matchmaking or a match
// (spec §3 "Client").
type Role int

const (
	RoleWaitingPlayer Role = iota
	RoleWaitingSpectator
	RoleActivePlayer
	RoleActiveSpectator
)

func (r Role) String() string {
	switch r {
	case RoleWaitingPlayer:
		return "waiting_player"
	case RoleWaitingSpectator:
		return "waiting_spectator"
	case RoleActivePlayer:
		return "active_player"
	case RoleActiveSpectator:
		return "active_spectator"
	default:
		return "unknown"
	}
}

// outboundQueueSize bounds the writer's serialization channel.
const outboundQueueSize = 64

type outboundFrame struct {
	kind    protocol.Kind
	payload string
}

// Client is one admitted connection. The ClientRegistry shared-owns it
// with the reader/writer goroutines; a MatchController never owns a
// Client, only its bounded input channel (spec §3 "Ownership").
type Client struct {
	ID string

	mu       sync.Mutex
	role     Role
	codec    protocol.FrameCodec
	conn     net.Conn
	inputCh  chan string // set by Queue.TryPromote, nil otherwise

	Events chan InboundEvent // produced by Reader, consumed by the dispatch loop

	disconnectedMu    sync.Mutex
	disconnected      bool
	reconnectDeadline time.Time

	limiter *rate.Limiter

	outbound  chan outboundFrame
	closeOnce sync.Once
	closed    chan struct{}
}

// NewClient constructs a Client around an already-accepted connection
// and its selected frame codec, and starts its writer pump.
func NewClient(id string, conn net.Conn, codec protocol.FrameCodec, limiter *rate.Limiter) *Client {
	c := &Client{
		ID:       id,
		role:     RoleWaitingSpectator,
		codec:    codec,
		conn:     conn,
		Events:   make(chan InboundEvent, 16),
		limiter:  limiter,
		outbound: make(chan outboundFrame, outboundQueueSize),
		closed:   make(chan struct{}),
	}
	go c.writePump()
	return c
}

// Role returns the client's current role under the client's own mutex.
func (c *Client) Role() Role {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.role
}

// SetRole mutates the client's role. Callers must hold the registry
// lock when this affects matchmaking-visible state (spec §5).
func (c *Client) SetRole(r Role) {
	c.mu.Lock()
	c.role = r
	c.mu.Unlock()
}

// AttachInputChannel creates the bounded per-turn input channel for a
// newly promoted active player. capacity bounds backpressure per
// spec §5.
func (c *Client) AttachInputChannel(capacity int) chan string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan string, capacity)
	c.inputCh = ch
	return ch
}

// InputChannel returns the client's current bounded input channel, or
// nil if the client is not an active player.
func (c *Client) InputChannel() chan string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inputCh
}

// DetachInputChannel closes and clears the input channel. The registry
// calls it when the client is removed.
func (c *Client) DetachInputChannel() {
	c.mu.Lock()
	ch := c.inputCh
	c.inputCh = nil
	c.mu.Unlock()
	if ch != nil {
		close(ch)
	}
}

// Send enqueues an outbound frame. Never blocks on network I/O itself;
// a full queue is treated as a slow/broken client and converts to a
// synthetic EOF, same as a hard write failure (spec §4.4).
func (c *Client) Send(kind protocol.Kind, payload string) {
	select {
	case c.outbound <- outboundFrame{kind: kind, payload: payload}:
	case <-c.closed:
	default:
		slog.Warn("outbound queue full, disconnecting client", "client", c.ID)
		c.signalEOF()
	}
}

// SendBoard enqueues a grid-block frame. Distinct name for readability
// at call sites; identical delivery semantics to Send.
func (c *Client) SendBoard(payload string) {
	c.Send(protocol.KindBoard, payload)
}

func (c *Client) writePump() {
	for {
		select {
		case frame := <-c.outbound:
			c.mu.Lock()
			codec := c.codec
			c.mu.Unlock()
			if codec == nil {
				continue
			}
			if err := codec.WriteFrame(frame.kind, frame.payload); err != nil {
				slog.Debug("write failed, converting to EOF", "client", c.ID, "error", err)
				c.signalEOF()
			}
		case <-c.closed:
			return
		}
	}
}

func (c *Client) signalEOF() {
	select {
	case c.Events <- InboundEvent{Kind: EventEOF}:
	default:
	}
}

// Swap replaces the transport and codec in place, used by the
// ReconnectBroker to splice a new connection into an existing Client
// without disturbing its input channel (spec §4.8).
func (c *Client) Swap(conn net.Conn, codec protocol.FrameCodec) {
	c.mu.Lock()
	old := c.conn
	c.conn = conn
	c.codec = codec
	c.mu.Unlock()
	if old != nil {
		old.Close()
	}
}

// MarkDisconnected records a mid-match transport failure and the
// reconnect deadline. If a reconnect window is already in flight for
// this client, it changes nothing and returns the existing deadline
// with already set to true (spec §4.8 "only one in-flight window").
func (c *Client) MarkDisconnected(window time.Duration) (deadline time.Time, already bool) {
	c.disconnectedMu.Lock()
	defer c.disconnectedMu.Unlock()
	if c.disconnected {
		return c.reconnectDeadline, true
	}
	c.disconnected = true
	c.reconnectDeadline = time.Now().Add(window)
	return c.reconnectDeadline, false
}

// ClearDisconnected resolves a reconnect window, successful or not.
func (c *Client) ClearDisconnected() {
	c.disconnectedMu.Lock()
	c.disconnected = false
	c.reconnectDeadline = time.Time{}
	c.disconnectedMu.Unlock()
}

// IsDisconnected reports the current reconnect-window state: whether a
// window is open, and its deadline.
func (c *Client) IsDisconnected() (bool, time.Time) {
	c.disconnectedMu.Lock()
	defer c.disconnectedMu.Unlock()
	return c.disconnected, c.reconnectDeadline
}

// Close tears down the writer pump and underlying transport exactly
// once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
	})
}

// RunReader drives the per-client read loop, translating codec frames
// into InboundEvents, applying the rate limiter, and recognizing the
// "/quit" command at the reader level (spec §4.3).
func (c *Client) RunReader(ctx context.Context) {
	defer func() {
		select {
		case c.Events <- InboundEvent{Kind: EventEOF}:
		default:
		}
	}()

	for {
		c.mu.Lock()
		codec := c.codec
		c.mu.Unlock()

		_, text, err := codec.ReadFrame()
		if err != nil {
			var decErr *protocol.DecodeError
			if errors.As(err, &decErr) {
				c.Events <- InboundEvent{Kind: EventDecodeError, Text: decErr.Error()}
				c.Send(protocol.KindError, fmt.Sprintf("malformed frame dropped: %s", decErr.Error()))
				continue
			}
			return
		}

		if c.limiter != nil && !c.limiter.Allow() {
			c.Send(protocol.KindSystem, "you are sending input too fast; message dropped")
			continue
		}

		if isQuitCommand(text) {
			c.Events <- InboundEvent{Kind: EventQuit}
			continue
		}

		select {
		case c.Events <- InboundEvent{Kind: EventLine, Text: text}:
		case <-ctx.Done():
			return
		}
	}
}

func isQuitCommand(text string) bool {
	return strings.EqualFold(strings.TrimSpace(text), "/quit")
}
