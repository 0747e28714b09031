package http1

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReader(raw string, maxLine int) *Reader {
	return NewReader(strings.NewReader(raw), maxLine)
}

func TestReader_RequestLineAndHeaders(t *testing.T) {
	r := newTestReader("GET http://example.test:9000/foo HTTP/1.1\r\nHost: x\r\nAccept: */*\r\n\r\nleftover", 0)
	rl, err := r.ReadRequestLine()
	require.NoError(t, err)
	assert.Equal(t, &RequestLine{Method: "GET", Target: "http://example.test:9000/foo", Proto: "HTTP/1.1"}, rl)

	skipped, err := r.DiscardHeaders()
	require.NoError(t, err)
	assert.Equal(t, []string{"Host: x", "Accept: */*"}, skipped)

	rest, _ := io.ReadAll(r.BR)
	assert.Equal(t, "leftover", string(rest))
}

func TestReader_BareLF(t *testing.T) {
	r := newTestReader("GET / HTTP/1.0\nHost: x\n\n", 0)
	_, err := r.ReadRequestLine()
	require.NoError(t, err)
	_, err = r.DiscardHeaders()
	require.NoError(t, err)
}

func TestParseRequestLine_Malformed(t *testing.T) {
	for _, line := range []string{"", "GET", "GET /", "GET / FTP/1.0", "GET / HTTP/1.0 extra"} {
		_, err := ParseRequestLine(line)
		assert.ErrorIs(t, err, ErrMalformedRequestLine, "line %q", line)
	}
}

func TestReader_LineTooLong(t *testing.T) {
	long := "GET /" + strings.Repeat("a", 100) + " HTTP/1.0\r\n\r\n"
	_, err := newTestReader(long, 32).ReadRequestLine()
	assert.ErrorIs(t, err, ErrLineTooLong)

	// Longer than the bufio buffer but within the limit.
	big := "GET /" + strings.Repeat("b", 6000) + " HTTP/1.0\r\n"
	rl, err := newTestReader(big, 8192).ReadRequestLine()
	require.NoError(t, err)
	assert.Len(t, rl.Target, 6001)

	_, err = newTestReader(big, 5000).ReadRequestLine()
	assert.ErrorIs(t, err, ErrLineTooLong)
}

func TestReader_RawLinesKeepTerminators(t *testing.T) {
	r := newTestReader("HTTP/1.0 200 OK\r\nContent-Length: 2\r\n\r\nhi", 0)
	var got [][]byte
	for {
		line, err := r.ReadRawLine()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, append([]byte(nil), line...))
	}
	assert.Equal(t, "HTTP/1.0 200 OK\r\nContent-Length: 2\r\n\r\nhi", string(bytes.Join(got, nil)))
	assert.Len(t, got, 4)
}

func TestReader_UnexpectedEOF(t *testing.T) {
	r := newTestReader("GET / HTTP/1.0\r\nHost: x\r\n", 0)
	_, err := r.ReadRequestLine()
	require.NoError(t, err)
	_, err = r.DiscardHeaders()
	assert.ErrorIs(t, err, io.EOF)

	_, err = newTestReader("GET / HTTP/1.0", 0).ReadRequestLine()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
