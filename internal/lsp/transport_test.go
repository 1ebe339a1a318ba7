package lsp

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFramingRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.Write(&notification{Jsonrpc: "2.0", Method: "initialized"}))
	require.NoError(t, w.Write(&response{Jsonrpc: "2.0", ID: []byte("7"), Result: nil}))
	assert.True(t, strings.HasPrefix(buf.String(), "Content-Length: "))

	r := NewReader(&buf)
	msg, err := r.Read()
	require.NoError(t, err)
	assert.True(t, msg.IsNotification())
	assert.Equal(t, "initialized", msg.Method)

	msg, err = r.Read()
	require.NoError(t, err)
	assert.False(t, msg.IsRequest())
	assert.Equal(t, "7", string(msg.ID))

	_, err = r.Read()
	assert.Equal(t, io.EOF, err)
}

func TestReaderHeaderCase(t *testing.T) {
	body := `{"jsonrpc":"2.0","id":1,"method":"shutdown"}`
	in := "content-length: " + itoa(len(body)) + "\r\nContent-Type: application/vscode-jsonrpc; charset=utf-8\r\n\r\n" + body
	msg, err := NewReader(strings.NewReader(in)).Read()
	require.NoError(t, err)
	assert.True(t, msg.IsRequest())
	assert.Equal(t, "shutdown", msg.Method)
}

func TestReaderMissingLength(t *testing.T) {
	_, err := NewReader(strings.NewReader("Content-Type: x\r\n\r\n{}")).Read()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Content-Length")
}

func TestReaderBadJSONKeepsStream(t *testing.T) {
	good := `{"jsonrpc":"2.0","method":"exit"}`
	in := "Content-Length: 5\r\n\r\n{nope" + "Content-Length: " + itoa(len(good)) + "\r\n\r\n" + good
	r := NewReader(strings.NewReader(in))

	_, err := r.Read()
	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, ParseError, rpcErr.Code)

	msg, err := r.Read()
	require.NoError(t, err)
	assert.Equal(t, "exit", msg.Method)
}

func TestReaderTruncatedBody(t *testing.T) {
	_, err := NewReader(strings.NewReader("Content-Length: 50\r\n\r\n{}")).Read()
	require.Error(t, err)
	assert.NotEqual(t, io.EOF, err)
}
