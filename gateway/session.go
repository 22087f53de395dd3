package gateway

import (
	"chat-pipeline/contract"
	"chat-pipeline/errors"
	"chat-pipeline/markup"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

var _ contract.Recipient = (*Session)(nil)

// Session is one connected participant. Send only enqueues, a dedicated
// goroutine writes the outbound buffer to the connection.
type Session struct {
	id       uuid.UUID
	name     string
	mu       sync.RWMutex
	closed   bool
	outbound chan string
}

func NewSession(id uuid.UUID, name string, bufferSize int) *Session {
	return &Session{id: id, name: name, outbound: make(chan string, bufferSize)}
}

func (s *Session) ID() uuid.UUID { return s.id }

func (s *Session) Name() string { return s.name }

// Send never blocks: a slow reader loses messages instead of slowing the chat down.
func (s *Session) Send(text string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errors.ErrRecipientGone
	}
	select {
	case s.outbound <- text:
		return nil
	default:
		return errors.ErrOutboundFull
	}
}

func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.outbound)
}

// WriteLoop renders every queued message as terminal colors until the session is closed.
func (s *Session) WriteLoop(w io.Writer, log *slog.Logger) {
	for text := range s.outbound {
		// A failed write keeps draining, the buffer must not stay full until Close
		if _, err := fmt.Fprintln(w, markup.ToANSI(text)); err != nil {
			log.Debug("Unable to write to participant", "name", s.name, "error", err)
		}
	}
}
