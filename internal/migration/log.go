package migration

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Log is the append-only console log of a run. Each entry is a human-readable
// line prefixed with its wall-clock time.
type Log struct {
	clock   func() time.Time
	onEntry func(string)
	entries []string
	mu      sync.Mutex
}

// NewLog creates a log. onEntry, when set, receives each line as it is
// appended.
func NewLog(onEntry func(string)) *Log {
	return &Log{clock: time.Now, onEntry: onEntry}
}

func (l *Log) appendf(format string, args ...any) {
	line := fmt.Sprintf("[%s] %s", l.clock().Format("15:04:05"), fmt.Sprintf(format, args...))

	l.mu.Lock()
	l.entries = append(l.entries, line)
	onEntry := l.onEntry
	l.mu.Unlock()

	if onEntry != nil {
		onEntry(line)
	}
}

// Entries returns a copy of every line appended so far.
func (l *Log) Entries() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.entries))
	copy(out, l.entries)
	return out
}

// String joins the entries with newlines.
func (l *Log) String() string {
	return strings.Join(l.Entries(), "\n")
}
