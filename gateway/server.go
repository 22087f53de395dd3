// Package gateway is a line-oriented TCP front end: the first line names the
// participant, every following line is a chat message, "/quit" leaves.
package gateway

import (
	"bufio"
	"chat-pipeline/broadcast"
	"chat-pipeline/contract"
	"chat-pipeline/domain"
	"chat-pipeline/errors"
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	quitCommand   = "/quit"
	maxNameLength = 16
)

type Handler interface {
	Handle(evt domain.MessageEvent) broadcast.DeliveryReport
}

type Sessions interface {
	Subscribe(recipient contract.Recipient)
	Unsubscribe(recipient contract.Recipient)
}

type Capabilities interface {
	Capabilities(p domain.Participant) domain.CapabilitySet
}

type Server struct {
	log                  *slog.Logger
	handler              Handler
	sessions             Sessions
	capabilities         Capabilities
	serverTag            string
	connectionBufferSize int

	mu    sync.Mutex
	conns map[net.Conn]struct{}
	wg    sync.WaitGroup
}

func NewServer(log *slog.Logger, handler Handler, sessions Sessions, capabilities Capabilities,
	serverTag string, connectionBufferSize int) *Server {
	return &Server{
		log:                  log,
		handler:              handler,
		sessions:             sessions,
		capabilities:         capabilities,
		serverTag:            serverTag,
		connectionBufferSize: connectionBufferSize,
		conns:                make(map[net.Conn]struct{}),
	}
}

// Serve accepts connections until ctx is canceled, then closes every open
// connection and waits for their handlers to return.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	go func() {
		<-ctx.Done()
		_ = listener.Close()
		s.closeAll()
	}()

	s.log.Info("Gateway listening", "address", listener.Addr().String())
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.wg.Wait()
				return nil
			}
			s.wg.Wait()
			return fmt.Errorf("accept: %w", err)
		}
		s.track(conn)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrack(conn)
			s.handle(conn)
		}()
	}
}

func (s *Server) handle(conn net.Conn) {
	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		return
	}
	name, err := parseName(scanner.Text())
	if err != nil {
		_, _ = fmt.Fprintln(conn, err.Error())
		return
	}

	session := NewSession(participantID(name), name, s.connectionBufferSize)
	done := make(chan struct{})
	go func() {
		defer close(done)
		session.WriteLoop(conn, s.log)
	}()
	s.sessions.Subscribe(session)
	s.log.Info("Participant joined", "name", name, "id", session.ID(), "remote", conn.RemoteAddr().String())
	defer func() {
		s.sessions.Unsubscribe(session)
		session.Close()
		<-done
		s.log.Info("Participant left", "name", name, "id", session.ID())
	}()

	participant := domain.Participant{ID: session.ID(), Name: name}
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.EqualFold(line, quitCommand) {
			return
		}
		// One connection is handled sequentially, the sender's messages keep their order
		s.handler.Handle(domain.MessageEvent{
			SenderID:           participant.ID,
			SenderName:         name,
			SenderCapabilities: s.capabilities.Capabilities(participant),
			RawBody:            line,
			ServerTag:          s.serverTag,
			ReceivedAt:         time.Now().UTC(),
		})
	}
	if err := scanner.Err(); err != nil {
		s.log.Debug("Connection read failed", "name", name, "error", err)
	}
}

// participantID is stable across reconnections of the same name.
func participantID(name string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("participant:"+strings.ToLower(name)))
}

func parseName(line string) (string, error) {
	name := strings.TrimSpace(line)
	if name == "" || utf8.RuneCountInString(name) > maxNameLength || strings.ContainsAny(name, " \t&§") {
		return "", fmt.Errorf("%w: %q", errors.ErrInvalidName, name)
	}
	return name, nil
}

func (s *Server) track(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[conn] = struct{}{}
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, conn)
	_ = conn.Close()
}

func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		_ = conn.Close()
	}
}
