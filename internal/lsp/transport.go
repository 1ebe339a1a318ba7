package lsp

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
)

// MaxMessageSize bounds a single message body.
const MaxMessageSize = 64 * 1024 * 1024

// Reader decodes Content-Length framed messages.
type Reader struct {
	r *bufio.Reader
}

// NewReader wraps r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Read reads a single message (headers + content). It returns io.EOF when
// the stream ends between messages. A body that is not JSON yields a
// *RPCError with code ParseError; the stream stays usable.
func (r *Reader) Read() (*Message, error) {
	headers := make(map[string]string)
	first := true
	for {
		line, err := r.r.ReadString('\n')
		if err != nil {
			if err == io.EOF && first && line == "" {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("failed to read header: %w", err)
		}
		first = false

		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
		parts := strings.SplitN(line, ":", 2)
		if len(parts) == 2 {
			headers[strings.ToLower(strings.TrimSpace(parts[0]))] = strings.TrimSpace(parts[1])
		}
	}

	lengthStr, ok := headers["content-length"]
	if !ok {
		return nil, fmt.Errorf("missing Content-Length header")
	}
	length, err := strconv.Atoi(lengthStr)
	if err != nil || length < 0 {
		return nil, fmt.Errorf("invalid Content-Length %q", lengthStr)
	}
	if length > MaxMessageSize {
		return nil, fmt.Errorf("message of %d bytes exceeds limit", length)
	}

	content := make([]byte, length)
	if _, err := io.ReadFull(r.r, content); err != nil {
		return nil, fmt.Errorf("failed to read content: %w", err)
	}

	var msg Message
	if err := json.Unmarshal(content, &msg); err != nil {
		return nil, &RPCError{Code: ParseError, Message: "failed to parse message: " + err.Error()}
	}
	return &msg, nil
}

// Writer encodes framed messages. It is safe for concurrent use.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write marshals v and writes it with its header in one call.
func (w *Writer) Write(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	frame := make([]byte, 0, len(data)+32)
	frame = append(frame, "Content-Length: "...)
	frame = strconv.AppendInt(frame, int64(len(data)), 10)
	frame = append(frame, "\r\n\r\n"...)
	frame = append(frame, data...)

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.w.Write(frame); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}
