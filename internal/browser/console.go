package browser

import (
	"strconv"
	"strings"
	"sync"
	"time"
)

// consoleBuffer collects console entries pushed by backend event listeners.
// Listeners run on backend goroutines, hence the lock.
type consoleBuffer struct {
	mu      sync.Mutex
	entries []LogEntry
	limit   int
}

func newConsoleBuffer(limit int) *consoleBuffer {
	return &consoleBuffer{limit: limit}
}

func (c *consoleBuffer) add(level, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, LogEntry{Time: time.Now(), Level: level, Message: message})
	if c.limit > 0 && len(c.entries) > c.limit {
		c.entries = c.entries[len(c.entries)-c.limit:]
	}
}

// drain returns and forgets everything collected so far
func (c *consoleBuffer) drain() []LogEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.entries
	c.entries = nil
	return out
}

// formatConsoleArgs joins raw JSON argument values the way the console shows
// them: strings unquoted, everything else verbatim.
func formatConsoleArgs(args []string) string {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		if strings.HasPrefix(a, `"`) {
			if s, err := strconv.Unquote(a); err == nil {
				a = s
			}
		}
		parts = append(parts, a)
	}
	return strings.Join(parts, " ")
}
