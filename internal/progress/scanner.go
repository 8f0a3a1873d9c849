// Package progress turns the collector's raw stdout stream into percent
// updates. The collector reports progress as lines of the form
// PROGRESS:<n>% mixed with arbitrary diagnostic output; only completed,
// matching lines produce updates.
package progress

import (
	"bytes"
	"strconv"
)

// marker prefixes every progress line emitted by the collector.
const marker = "PROGRESS:"

// Scanner assembles raw stdout chunks into lines and extracts percent
// values. Pipe buffering means chunk boundaries carry no meaning, so
// partial lines are held until their terminator arrives. A final
// unterminated line at stream end is never emitted: it cannot be
// confirmed complete, and the collector always terminates its last
// progress line.
type Scanner struct {
	buf []byte
}

// NewScanner creates a scanner for one job's output stream.
func NewScanner() *Scanner {
	return &Scanner{}
}

// Feed consumes one raw chunk and returns the percent value of every
// completed matching line, in stream order. Non-matching lines are
// silently discarded.
func (s *Scanner) Feed(chunk []byte) []int {
	s.buf = append(s.buf, chunk...)

	var out []int
	for {
		idx := bytes.IndexByte(s.buf, '\n')
		if idx < 0 {
			return out
		}

		line := s.buf[:idx]
		s.buf = s.buf[idx+1:]
		if pct, ok := parseLine(line); ok {
			out = append(out, pct)
		}
	}
}

// Pending reports how many buffered bytes await a line terminator.
func (s *Scanner) Pending() int {
	return len(s.buf)
}

// parseLine matches one complete line against the PROGRESS:<n>% pattern.
// Values outside 0..100 are treated as diagnostic noise, not progress.
func parseLine(line []byte) (int, bool) {
	line = bytes.TrimSuffix(line, []byte("\r"))
	if !bytes.HasPrefix(line, []byte(marker)) {
		return 0, false
	}

	rest := line[len(marker):]
	if len(rest) < 2 || rest[len(rest)-1] != '%' {
		return 0, false
	}

	pct, err := strconv.Atoi(string(rest[:len(rest)-1]))
	if err != nil || pct < 0 || pct > 100 {
		return 0, false
	}
	return pct, true
}
