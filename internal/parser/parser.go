package parser

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/netcheck/linkwatch/internal/models"
)

var (
	// DownRegex matches a link-loss marker and captures its timestamp payload.
	DownRegex = regexp.MustCompile(`LINK DOWN:\s*(.*)$`)
	// UpRegex matches a link-restoration marker and captures its timestamp payload.
	UpRegex = regexp.MustCompile(`LINK RECONNECTED:\s*(.*)$`)
)

const (
	reasonDownTimestamp = "invalid LINK DOWN timestamp"
	reasonUpTimestamp   = "invalid LINK RECONNECTED timestamp; pending outage voided"
	reasonNotAfter      = "reconnect not after outage"
	reasonTooLong       = "line too long"

	// MaxLineBytes bounds a single log line. Longer lines are skipped and reported.
	MaxLineBytes    = 1024 * 1024
	maxErrorContent = 256
)

// Options configure the interpreter.
type Options struct {
	// Location is the display zone all timestamps are normalized to.
	Location *time.Location
	// Logf receives one line per recoverable parse failure. Nil uses log.Printf.
	Logf func(format string, args ...any)
}

func (o Options) logf(format string, args ...any) {
	if o.Logf != nil {
		o.Logf(format, args...)
		return
	}
	log.Printf(format, args...)
}

// ParseFile interprets the log at path. A missing file is an empty log.
func ParseFile(path string, opts Options) (*models.ParsedLog, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return models.NewParsedLog(), nil
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer file.Close()

	return Interpret(file, opts)
}

// Interpret reads the whole log and returns every resolvable down->up interval,
// sorted by down instant. Malformed lines and unmatched markers only shrink the
// result; the returned error is reserved for read failures.
func Interpret(r io.Reader, opts Options) (*models.ParsedLog, error) {
	result := models.NewParsedLog()
	var state pending

	lines := newLineReader(r, MaxLineBytes)
	lineNum := 0
	for {
		raw, tooLong, err := lines.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read log: %w", err)
		}
		lineNum++
		if tooLong {
			recordError(result, opts, lineNum, string(truncate(raw, maxErrorContent)), reasonTooLong,
				fmt.Errorf("exceeds %d bytes", MaxLineBytes))
			continue
		}
		line := string(raw)
		if lineNum == 1 {
			line = strings.TrimPrefix(line, "\uFEFF")
		}
		state = step(state, line, lineNum, opts, result)
	}
	result.Stats.Lines = lineNum

	if state.awaiting() {
		// An outage with no reconnect yet is not reported.
		result.Stats.OpenAtEOF = 1
	}

	sort.SliceStable(result.Intervals, func(i, j int) bool {
		return result.Intervals[i].Down.Before(result.Intervals[j].Down)
	})
	if n := len(result.Intervals); n > 0 {
		end := result.Intervals[0].Up
		for _, iv := range result.Intervals[1:] {
			if iv.Up.After(end) {
				end = iv.Up
			}
		}
		result.TimeRange = &models.TimeRange{Start: result.Intervals[0].Down, End: end}
	}
	return result, nil
}

// step applies one line to the pending tracker. DOWN wins when a line carries both markers.
func step(state pending, line string, lineNum int, opts Options, result *models.ParsedLog) pending {
	if m := DownRegex.FindStringSubmatch(line); m != nil {
		result.Stats.DownMarkers++
		at, err := ParseTimestamp(m[1], opts.Location)
		if err != nil {
			recordError(result, opts, lineNum, line, reasonDownTimestamp, err)
			return state
		}
		next, overwritten := state.openDown(at, lineNum)
		if overwritten {
			result.Stats.OverwrittenDowns++
		}
		return next
	}

	m := UpRegex.FindStringSubmatch(line)
	if m == nil {
		return state
	}
	result.Stats.UpMarkers++
	if !state.awaiting() {
		result.Stats.UnmatchedUps++
		return state
	}

	up, err := ParseTimestamp(m[1], opts.Location)
	if err != nil {
		result.Stats.Voided++
		recordError(result, opts, lineNum, line, reasonUpTimestamp, err)
		return state.void()
	}

	next, down, _ := state.resolve()
	if !down.Before(up) {
		result.Stats.Rejected++
		recordError(result, opts, lineNum, line, reasonNotAfter,
			fmt.Errorf("down %s, up %s", down.Format(time.RFC3339), up.Format(time.RFC3339)))
		return next
	}
	result.Intervals = append(result.Intervals, models.Interval{Down: down, Up: up})
	return next
}

func recordError(result *models.ParsedLog, opts Options, lineNum int, line, reason string, err error) {
	opts.logf("[Parser] line %d: %s: %v", lineNum, reason, err)
	result.Errors = append(result.Errors, models.ParseError{
		Line:    lineNum,
		Content: line,
		Reason:  reason,
	})
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}

// lineReader splits input on '\n' like bufio.ScanLines, but reports lines over
// limit instead of failing. Only the first limit bytes of such a line are kept.
type lineReader struct {
	r     *bufio.Reader
	limit int
	buf   []byte
}

func newLineReader(r io.Reader, limit int) *lineReader {
	return &lineReader{r: bufio.NewReaderSize(r, 64*1024), limit: limit}
}

// next returns the following line without its terminator. io.EOF means no more lines.
func (lr *lineReader) next() ([]byte, bool, error) {
	lr.buf = lr.buf[:0]
	tooLong := false
	read := false
	for {
		chunk, err := lr.r.ReadSlice('\n')
		if len(chunk) > 0 {
			read = true
		}
		if !tooLong {
			if len(lr.buf)+len(bytes.TrimSuffix(chunk, []byte("\n"))) > lr.limit {
				tooLong = true
				if room := lr.limit - len(lr.buf); room > 0 {
					lr.buf = append(lr.buf, chunk[:room]...)
				}
			} else {
				lr.buf = append(lr.buf, chunk...)
			}
		}
		switch {
		case err == bufio.ErrBufferFull:
			continue
		case err == io.EOF:
			if !read {
				return nil, false, io.EOF
			}
		case err != nil:
			return nil, false, err
		}
		if tooLong {
			return lr.buf, true, nil
		}
		line := bytes.TrimSuffix(lr.buf, []byte("\n"))
		return bytes.TrimSuffix(line, []byte("\r")), false, nil
	}
}
