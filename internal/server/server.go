// Package server implements AcceptLoop: binds, listens, admits
// connections, and wires the registry, queue, match controller, and
// command handler together for the life of the process (spec §4.10).
// Grounded on the teacher's internal/gameserver/server.go
// acceptLoop/handleConnection pair.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rdenton/battleshipd/internal/command"
	"github.com/rdenton/battleshipd/internal/config"
	"github.com/rdenton/battleshipd/internal/history"
	"github.com/rdenton/battleshipd/internal/match"
	"github.com/rdenton/battleshipd/internal/protocol"
	"github.com/rdenton/battleshipd/internal/queue"
	"github.com/rdenton/battleshipd/internal/session"
)

const handshakeTimeout = 10 * time.Second

// Server is the Battleship session server's accept loop.
type Server struct {
	cfg     config.Server
	registry *session.Registry
	queue   *queue.Queue
	history history.Store
	cmd     *command.Handler
	rng     *rand.Rand

	mu       sync.Mutex
	listener net.Listener

	currentMatch atomic.Pointer[match.Controller]
}

// New constructs a Server bound to its own fresh registry and queue.
func New(cfg config.Server, store history.Store) *Server {
	if store == nil {
		store = history.NullStore{}
	}
	s := &Server{
		cfg:     cfg,
		registry: session.NewRegistry(cfg.MaxConnections),
		history: store,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	s.queue = queue.New(s.registry)
	s.cmd = command.New(s.registry, s.queue, s.matchSnapshot)
	return s
}

func (s *Server) matchSnapshot() (match.Snapshot, bool) {
	m := s.currentMatch.Load()
	if m == nil {
		return match.Snapshot{}, false
	}
	return m.Snapshot(), true
}

// Addr returns the bound address, or nil before Run/Serve starts.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Run listens on cfg.BindAddress:cfg.Port and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.BindAddress, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	return s.Serve(ctx, ln)
}

// Serve accepts connections from ln until ctx is done. Exposed
// separately so tests can supply their own listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	var wg sync.WaitGroup
	slog.Info("battleship session server started", "address", ln.Addr())
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				break
			}
			slog.Error("accept failed", "error", err)
			continue
		}
		if tcpConn, ok := conn.(*net.TCPConn); ok {
			_ = tcpConn.SetKeepAlive(true)
			_ = tcpConn.SetKeepAlivePeriod(30 * time.Second)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleConnection(ctx, conn)
		}()
	}
	wg.Wait()
	return nil
}

func (s *Server) newCodec(conn net.Conn) protocol.FrameCodec {
	if strings.EqualFold(s.cfg.Framing, "packet") {
		return protocol.NewPacketCodec(conn, conn)
	}
	return protocol.NewLineCodec(conn, conn)
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	codec := s.newCodec(conn)

	conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, id, err := codec.ReadFrame()
	conn.SetReadDeadline(time.Time{})
	id = strings.TrimSpace(id)
	if err != nil || id == "" {
		codec.WriteFrame(protocol.KindError, "expected a username as the first line; closing")
		conn.Close()
		return
	}

	client, reconnect := s.admitOrReconnect(id, conn, codec)
	if client == nil {
		conn.Close()
		return
	}

	s.runClientSession(ctx, client, reconnect)
}

// admitOrReconnect resolves one incoming connection's username against
// the registry: first as a possible reconnect into an in-flight
// ReconnectBroker window (spec §4.8 step 3), then as a brand-new
// admission (spec §4.5, §4.10 step 2).
func (s *Server) admitOrReconnect(id string, conn net.Conn, codec protocol.FrameCodec) (client *session.Client, reconnect bool) {
	s.registry.Lock()
	existing, ok := s.registry.ClientsLocked()[id]
	s.registry.Unlock()

	if ok {
		disconnected, deadline := existing.IsDisconnected()
		if disconnected && time.Now().Before(deadline) {
			existing.Swap(conn, codec)
			if m := s.currentMatch.Load(); m != nil {
				m.NotifyReconnect(id)
			}
			return existing, true
		}
		codec.WriteFrame(protocol.KindError, "that username is already connected")
		return nil, false
	}

	limiter := session.NewInputLimiter(s.cfg.InputRatePerSecond)
	client = session.NewClient(id, conn, codec, limiter)
	if err := s.registry.Admit(id, client); err != nil {
		// Written synchronously so the refusal line reaches the peer
		// before Close tears the transport down.
		codec.WriteFrame(protocol.KindError, admitErrorMessage(err))
		client.Close()
		return nil, false
	}

	role, pos := s.queue.Join(id)
	client.Send(protocol.KindSystem, welcomeMessage(role, pos))
	return client, false
}

func admitErrorMessage(err error) string {
	switch err {
	case session.AdmitDuplicateID:
		return "that username is already connected"
	case session.AdmitCapacityExceeded:
		return "server is full, try again later"
	case session.AdmitEmptyID:
		return "a username is required"
	default:
		return "connection refused"
	}
}

func welcomeMessage(role session.Role, pos int) string {
	switch role {
	case session.RoleWaitingPlayer:
		return fmt.Sprintf("welcome — you are seated as a player (position %d)", pos)
	default:
		return fmt.Sprintf("welcome — you are spectating (position %d)", pos)
	}
}

// runClientSession drives one admitted (or reconnected) Client's
// reader and event dispatch for the lifetime of one TCP connection,
// then decides whether the Client itself survives the disconnect
// (soft, mid-match) or must be fully removed (spec §7).
func (s *Server) runClientSession(ctx context.Context, client *session.Client, reconnect bool) {
	if !reconnect {
		s.tryStartMatch(ctx)
	}

	readerDone := make(chan struct{})
	go func() {
		client.RunReader(ctx)
		close(readerDone)
	}()

	s.dispatch(ctx, client)
	<-readerDone
}

// dispatch consumes one Client's typed inbound events until its
// transport ends, routing each to the command handler, the active
// match's input channel, or a chat broadcast (spec §2 "Data flows").
func (s *Server) dispatch(ctx context.Context, client *session.Client) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-client.Events:
			if !ok {
				return
			}
			switch ev.Kind {
			case session.EventLine:
				s.dispatchLine(client, ev.Text)
			case session.EventDecodeError:
				// Already warned the client at the reader level;
				// nothing further to do.
			case session.EventQuit:
				s.handleQuit(client)
				return
			case session.EventEOF:
				s.handleEOF(ctx, client)
				return
			}
		}
	}
}

func (s *Server) dispatchLine(client *session.Client, text string) {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "/") {
		s.cmd.Handle(client, trimmed)
		return
	}

	if client.Role() == session.RoleActivePlayer {
		if ch := client.InputChannel(); ch != nil {
			select {
			case ch <- trimmed:
			default:
				// Bounded input channel full: drop the oldest queued
				// input, warn the sender, and retry once.
				select {
				case <-ch:
					client.Send(protocol.KindSystem, "input queue full; your oldest pending input was dropped")
				default:
				}
				select {
				case ch <- trimmed:
				default:
				}
			}
		}
		return
	}

	s.cmd.BroadcastChat(client, trimmed)
}

func (s *Server) handleQuit(client *session.Client) {
	if client.Role() == session.RoleActivePlayer {
		if ch := client.InputChannel(); ch != nil {
			select {
			case ch <- "quit":
			default:
			}
		}
	}
	s.removeClient(client.ID)
}

// handleEOF routes a transport failure either into the ReconnectBroker
// (active player, turn phase already under way) or a hard removal
// (everyone else, and active players still in placement — spec §7
// distinguishes "mid-match" from "outside a match").
func (s *Server) handleEOF(ctx context.Context, client *session.Client) {
	if client.Role() == session.RoleActivePlayer {
		if m := s.currentMatch.Load(); m != nil && m.InTurnPhase() && m.HasPlayer(client.ID) {
			m.NotifyTransportFailure(client.ID)
			return
		}
	}
	s.removeClient(client.ID)
}

func (s *Server) removeClient(id string) {
	s.registry.Remove(id)
	s.queue.Leave(id)
}

// tryStartMatch attempts one promotion and, on success, runs the
// resulting match to completion in its own goroutine, retrying
// promotion again once it ends (spec §4.6, scenario 6 "recycling").
func (s *Server) tryStartMatch(ctx context.Context) {
	idA, idB, chA, chB, ok := s.queue.TryPromote()
	if !ok {
		return
	}

	ctrl := match.New(s.cfg, s.registry, s.queue, s.history, idA, idB, chA, chB, s.rng)
	s.currentMatch.Store(ctrl)

	go func() {
		ctrl.Run(ctx)
		s.currentMatch.Store(nil)
		s.tryStartMatch(ctx)
	}()
}
