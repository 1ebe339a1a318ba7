package document

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const uri = "file:///ws/main.s"

func rng(sl, sc, el, ec int) *Range {
	return &Range{Start: Position{Line: sl, Character: sc}, End: Position{Line: el, Character: ec}}
}

func TestOpenAndLines(t *testing.T) {
	s := NewStore()
	snap := s.Open(uri, 1, "mov eax, 1\r\n  ret\n")
	assert.Equal(t, 3, snap.LineCount())

	line, ok := snap.Line(0)
	require.True(t, ok)
	assert.Equal(t, "mov eax, 1", line)
	line, _ = snap.Line(1)
	assert.Equal(t, "  ret", line)
	line, ok = snap.Line(2)
	require.True(t, ok)
	assert.Empty(t, line)
	_, ok = snap.Line(3)
	assert.False(t, ok)

	got, ok := s.Snapshot(uri)
	require.True(t, ok)
	assert.Same(t, snap, got)
}

func TestChange(t *testing.T) {
	s := NewStore()
	s.Open(uri, 1, "mov eax, 1\nret\n")

	tests := []struct {
		name    string
		changes []Change
		want    string
	}{
		{"insert", []Change{{Range: rng(0, 4, 0, 4), Text: "r"}}, "mov reax, 1\nret\n"},
		{"replace", []Change{{Range: rng(0, 4, 0, 8), Text: "ebx"}}, "mov ebx, 1\nret\n"},
		{"span lines", []Change{{Range: rng(0, 8, 1, 3), Text: "2"}}, "mov eax,2\n"},
		{"delete line", []Change{{Range: rng(1, 0, 2, 0), Text: ""}}, "mov eax, 1\n"},
		{"past line end clamps", []Change{{Range: rng(1, 99, 1, 99), Text: " ; done"}}, "mov eax, 1\nret ; done\n"},
		{"past document end", []Change{{Range: rng(9, 0, 9, 0), Text: "nop"}}, "mov eax, 1\nret\nnop"},
		{"full", []Change{{Text: "nop"}}, "nop"},
		{"sequence", []Change{
			{Text: "a\nb"},
			{Range: rng(1, 0, 1, 1), Text: "c"},
			{Range: rng(0, 1, 0, 1), Text: "d"},
		}, "ad\nc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s.Open(uri, 1, "mov eax, 1\nret\n")
			snap, err := s.Change(uri, 2, tt.changes)
			require.NoError(t, err)
			assert.Equal(t, tt.want, snap.Text)
			assert.Equal(t, int32(2), snap.Version)
		})
	}
}

func TestChangeUTF16(t *testing.T) {
	s := NewStore()
	// The emoji is two UTF-16 units and four bytes.
	s.Open(uri, 1, "db \"😀\", 0 ; é")
	snap, err := s.Change(uri, 2, []Change{{Range: rng(0, 7, 0, 8), Text: ";"}})
	require.NoError(t, err)
	assert.Equal(t, "db \"😀\"; 0 ; é", snap.Text)

	line, col, ok := snap.Locate(Position{Line: 0, Character: 13})
	require.True(t, ok)
	assert.Equal(t, "é", line[col:])
	assert.Equal(t, 13, UTF16Offset(line, col))
}

func TestByteOffset(t *testing.T) {
	assert.Equal(t, 0, ByteOffset("abc", -1))
	assert.Equal(t, 2, ByteOffset("abc", 2))
	assert.Equal(t, 3, ByteOffset("abc", 10))
	assert.Equal(t, 5, ByteOffset("a😀b", 3))
	assert.Equal(t, 3, UTF16Offset("a😀b", 5))
	assert.Equal(t, 4, UTF16Offset("a😀b", 99))
}

func TestUnknownDocument(t *testing.T) {
	s := NewStore()
	_, err := s.Change(uri, 1, []Change{{Text: "x"}})
	assert.ErrorIs(t, err, ErrUnknownDocument)

	s.Open(uri, 1, "x")
	s.Close(uri)
	_, ok := s.Snapshot(uri)
	assert.False(t, ok)
	assert.Empty(t, s.URIs())
}

func TestConcurrentReadersSeeWholeVersions(t *testing.T) {
	s := NewStore()
	s.Open(uri, 0, "v0")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for v := 1; v <= 200; v++ {
			_, err := s.Change(uri, int32(v), []Change{{Text: fmt.Sprintf("v%d", v)}})
			assert.NoError(t, err)
		}
	}()
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			last := int32(-1)
			for i := 0; i < 200; i++ {
				snap, ok := s.Snapshot(uri)
				if !assert.True(t, ok) {
					return
				}
				assert.Equal(t, fmt.Sprintf("v%d", snap.Version), snap.Text)
				assert.GreaterOrEqual(t, snap.Version, last)
				last = snap.Version
			}
		}()
	}
	wg.Wait()

	snap, _ := s.Snapshot(uri)
	assert.Equal(t, "v200", snap.Text)
	assert.True(t, strings.HasPrefix(snap.URI, "file://"))
}
