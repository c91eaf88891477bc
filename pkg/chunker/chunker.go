// Package chunker splits long replies into chat-sized messages without breaking code fences
package chunker

import (
	"strings"
	"unicode/utf8"
)

const (
	// DefaultLimit leaves headroom under Discord's 2000 character ceiling.
	DefaultLimit = 1990
	// HeaderLimit is the hard ceiling for the echoed question header.
	HeaderLimit = 2000

	fenceMarker = "```"
	closeFence  = "\n```"
)

// Split breaks text into chunks of at most limit characters (runes).
//
// Text is split on line boundaries. When a split falls inside a fenced block
// the chunk is closed with a synthetic fence and the next chunk reopens with
// the original delimiter, language hint included. Lines longer than the budget
// are hard-split. A fence left open at the end of text is closed. Blank chunks
// are dropped and chunks lose trailing whitespace.
func Split(text string, limit int) []string {
	if limit <= 0 {
		limit = DefaultLimit
	}
	s := &splitter{limit: limit}
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		s.addLine(line)
	}
	s.finish()
	return s.chunks
}

type splitter struct {
	limit  int
	chunks []string
	cur    strings.Builder
	curLen int
	fence  string // opening delimiter of the fence open at the end of cur, "" if none
}

func (s *splitter) addLine(line string) {
	n := utf8.RuneCountInString(line)
	if max := s.lineBudget(); n > max {
		for _, piece := range hardSplit(line, max) {
			s.place(piece, utf8.RuneCountInString(piece), s.fence)
		}
		return
	}
	s.place(line, n, s.nextFence(line, n))
}

// lineBudget is the longest line that still fits a chunk reopened inside the current fence.
func (s *splitter) lineBudget() int {
	if s.fence == "" {
		return s.limit
	}
	b := s.limit - utf8.RuneCountInString(s.fence) - 1 - len(closeFence)
	if b < 1 {
		b = 1
	}
	return b
}

// nextFence returns the fence state after line.
func (s *splitter) nextFence(line string, n int) string {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, fenceMarker) {
		return s.fence
	}
	if s.fence == "" {
		// an opener too long to be reopened is treated as text
		if n > s.limit/2 {
			return ""
		}
		return trimmed
	}
	if trimmed == fenceMarker || trimmed == s.fence {
		return ""
	}
	return s.fence
}

func (s *splitter) place(line string, n int, after string) {
	reserve := 0
	if after != "" {
		reserve = len(closeFence)
	}
	if s.curLen > 0 && s.curLen+1+n+reserve > s.limit {
		s.flush(true)
	}
	if s.curLen == 0 && strings.TrimSpace(line) == "" {
		s.fence = after
		return
	}
	s.write(line, n)
	s.fence = after
}

func (s *splitter) write(line string, n int) {
	if s.curLen > 0 {
		s.cur.WriteByte('\n')
		s.curLen++
	}
	s.cur.WriteString(line)
	s.curLen += n
}

// flush emits the current chunk. On a mid-fence split it closes the fence and
// seeds the next chunk with the opening delimiter.
func (s *splitter) flush(split bool) {
	if s.curLen == 0 {
		return
	}
	chunk := s.cur.String()
	reopen := split && s.fence != ""
	if reopen {
		chunk += closeFence
	}
	if chunk = strings.TrimRightFunc(chunk, isSpace); strings.TrimSpace(chunk) != "" {
		s.chunks = append(s.chunks, chunk)
	}
	s.cur.Reset()
	s.curLen = 0
	if reopen {
		s.write(s.fence, utf8.RuneCountInString(s.fence))
	}
}

// finish emits the last chunk. A fence still open at the end of text, usually
// a reply cut off by the token limit, gets the closing delimiter it was
// reserved room for.
func (s *splitter) finish() {
	if s.fence != "" && s.curLen > 0 {
		s.cur.WriteString(closeFence)
		s.curLen += len(closeFence)
	}
	s.flush(false)
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

func hardSplit(line string, size int) []string {
	var out []string
	runes := []rune(line)
	for len(runes) > size {
		out = append(out, string(runes[:size]))
		runes = runes[size:]
	}
	if len(runes) > 0 {
		out = append(out, string(runes))
	}
	return out
}

// Header renders the echoed question shown before a reply.
func Header(displayName, message string) string {
	h := "> **" + displayName + " asked:** " + message
	if utf8.RuneCountInString(h) <= HeaderLimit {
		return h
	}
	return string([]rune(h)[:HeaderLimit-3]) + "..."
}
