// fixtures.go - Log fixtures and a fixed clock for testing
package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// WriterLayout is how the connectivity logger prints instants.
const WriterLayout = "Mon 02 Jan 2006 15:04:05"

// Denver is a fixed UTC-7 zone used where tests must not depend on tzdata.
var Denver = time.FixedZone("UTC-7", -7*60*60)

// LogBuilder assembles connectivity log text line by line.
type LogBuilder struct {
	lines []string
}

// NewLog creates an empty LogBuilder.
func NewLog() *LogBuilder {
	return &LogBuilder{}
}

// Down appends a LINK DOWN marker for t, written in UTC.
func (b *LogBuilder) Down(t time.Time) *LogBuilder {
	return b.Line("LINK DOWN: " + FormatUTC(t))
}

// Up appends a LINK RECONNECTED marker for t, written in UTC.
func (b *LogBuilder) Up(t time.Time) *LogBuilder {
	return b.Line("LINK RECONNECTED: " + FormatUTC(t))
}

// Outage appends a DOWN/UP pair.
func (b *LogBuilder) Outage(down, up time.Time) *LogBuilder {
	return b.Down(down).Up(up)
}

// Line appends raw text.
func (b *LogBuilder) Line(s string) *LogBuilder {
	b.lines = append(b.lines, s)
	return b
}

// String returns the log with a trailing newline.
func (b *LogBuilder) String() string {
	if len(b.lines) == 0 {
		return ""
	}
	return strings.Join(b.lines, "\n") + "\n"
}

// WriteFile writes the log into a fresh temp dir and returns its path.
func (b *LogBuilder) WriteFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "connection_log.txt")
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		t.Fatalf("Failed to create test log: %v", err)
	}
	return path
}

// FormatUTC renders t the way the logger does, with a trailing UTC token.
func FormatUTC(t time.Time) string {
	return t.UTC().Format(WriterLayout) + " UTC"
}

// Clock is a settable clock safe for concurrent use.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock frozen at now.
func NewClock(now time.Time) *Clock {
	return &Clock{now: now}
}

// Now returns the frozen instant.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
