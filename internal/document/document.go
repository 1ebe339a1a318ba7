// Package document tracks the text of open documents. Each document has one
// writer at a time; readers take immutable snapshots without locking.
package document

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"unicode/utf8"
)

// ErrUnknownDocument is returned when changing a document that is not open.
var ErrUnknownDocument = errors.New("document not open")

// Position is a zero-based line and UTF-16 code unit offset.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range is a half-open span between two positions.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Change replaces Range with Text, or the whole document when Range is nil.
type Change struct {
	Range *Range `json:"range,omitempty"`
	Text  string `json:"text"`
}

// Snapshot is one immutable version of a document.
type Snapshot struct {
	URI     string
	Version int32
	Text    string
	// starts holds the byte offset of every line start.
	starts []int
}

func newSnapshot(uri string, version int32, text string) *Snapshot {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &Snapshot{URI: uri, Version: version, Text: text, starts: starts}
}

// LineCount returns the number of lines. An empty document has one line.
func (s *Snapshot) LineCount() int {
	return len(s.starts)
}

// Line returns line n without its terminator.
func (s *Snapshot) Line(n int) (string, bool) {
	if n < 0 || n >= len(s.starts) {
		return "", false
	}
	end := len(s.Text)
	if n+1 < len(s.starts) {
		end = s.starts[n+1] - 1
	}
	return strings.TrimSuffix(s.Text[s.starts[n]:end], "\r"), true
}

// Locate returns the text of pos's line and pos's byte offset within it.
func (s *Snapshot) Locate(pos Position) (line string, col int, ok bool) {
	line, ok = s.Line(pos.Line)
	if !ok {
		return "", 0, false
	}
	return line, ByteOffset(line, pos.Character), true
}

// offset converts pos to a byte offset into Text, clamping positions past
// the end of a line or of the document.
func (s *Snapshot) offset(pos Position) int {
	if pos.Line < 0 {
		return 0
	}
	if pos.Line >= len(s.starts) {
		return len(s.Text)
	}
	line, _ := s.Line(pos.Line)
	return s.starts[pos.Line] + ByteOffset(line, pos.Character)
}

// ByteOffset converts a UTF-16 code unit offset into a byte offset of line,
// clamped to the line length.
func ByteOffset(line string, units int) int {
	if units <= 0 {
		return 0
	}
	n := 0
	for i, r := range line {
		if n >= units {
			return i
		}
		if r >= 0x10000 {
			n += 2
		} else {
			n++
		}
	}
	return len(line)
}

// UTF16Offset converts a byte offset of line into UTF-16 code units.
func UTF16Offset(line string, col int) int {
	if col > len(line) {
		col = len(line)
	}
	n := 0
	for i := 0; i < col; {
		r, size := utf8.DecodeRuneInString(line[i:])
		if r >= 0x10000 {
			n += 2
		} else {
			n++
		}
		i += size
	}
	return n
}

type entry struct {
	mu   sync.Mutex
	snap atomic.Pointer[Snapshot]
}

// Store holds every open document.
type Store struct {
	mu   sync.RWMutex
	docs map[string]*entry
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{docs: make(map[string]*entry)}
}

// Open records a document's initial text, replacing any previous state.
func (s *Store) Open(uri string, version int32, text string) *Snapshot {
	e := &entry{}
	snap := newSnapshot(uri, version, text)
	e.snap.Store(snap)
	s.mu.Lock()
	s.docs[uri] = e
	s.mu.Unlock()
	return snap
}

// Change applies changes in order and publishes the result as version.
func (s *Store) Change(uri string, version int32, changes []Change) (*Snapshot, error) {
	s.mu.RLock()
	e, ok := s.docs[uri]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDocument, uri)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	snap := e.snap.Load()
	for _, c := range changes {
		if c.Range == nil {
			snap = newSnapshot(uri, version, c.Text)
			continue
		}
		start, end := snap.offset(c.Range.Start), snap.offset(c.Range.End)
		if end < start {
			start, end = end, start
		}
		snap = newSnapshot(uri, version, snap.Text[:start]+c.Text+snap.Text[end:])
	}
	if len(changes) == 0 {
		snap = newSnapshot(uri, version, snap.Text)
	}
	e.snap.Store(snap)
	return snap, nil
}

// Close forgets a document.
func (s *Store) Close(uri string) {
	s.mu.Lock()
	delete(s.docs, uri)
	s.mu.Unlock()
}

// Snapshot returns the latest version of a document.
func (s *Store) Snapshot(uri string) (*Snapshot, bool) {
	s.mu.RLock()
	e, ok := s.docs[uri]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return e.snap.Load(), true
}

// URIs returns the open documents, unordered.
func (s *Store) URIs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.docs))
	for uri := range s.docs {
		out = append(out, uri)
	}
	return out
}
