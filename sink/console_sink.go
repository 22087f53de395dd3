package sink

import (
	"chat-pipeline/contract"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

var _ contract.Console = (*ConsoleSink)(nil)

const filterTag = "(filter) "

// ConsoleSink prints the chat to the server console, one line per message.
type ConsoleSink struct {
	mu  sync.Mutex
	out io.Writer
	log *slog.Logger
}

func NewConsoleSink(out io.Writer, log *slog.Logger) *ConsoleSink {
	return &ConsoleSink{out: out, log: log}
}

func (c *ConsoleSink) Broadcast(text string) {
	c.write(text)
}

func (c *ConsoleSink) Filtered(text string) {
	c.write(filterTag + text)
}

func (c *ConsoleSink) write(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := fmt.Fprintln(c.out, line); err != nil {
		c.log.Error("Unable to write to console", "error", err)
	}
}
