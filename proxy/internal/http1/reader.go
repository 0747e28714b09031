package http1

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"
)

var (
	// ErrLineTooLong reports a line longer than Reader.MaxLineBytes.
	ErrLineTooLong = errors.New("http1: line too long")
	// ErrMalformedRequestLine reports a request line that is not
	// "<method> <target> HTTP/<version>".
	ErrMalformedRequestLine = errors.New("http1: malformed request line")
)

// DefaultMaxLineBytes bounds a single line when Reader.MaxLineBytes is unset.
const DefaultMaxLineBytes = 8192

// RequestLine is the first line of a client request.
type RequestLine struct {
	Method string
	Target string
	Proto  string
}

// Reader reads CRLF (or bare LF) terminated lines with a per-line limit.
type Reader struct {
	BR           *bufio.Reader
	MaxLineBytes int
}

func NewReader(r io.Reader, maxLine int) *Reader {
	return &Reader{BR: bufio.NewReader(r), MaxLineBytes: maxLine}
}

func (r *Reader) limit() int {
	if r.MaxLineBytes <= 0 {
		return DefaultMaxLineBytes
	}
	return r.MaxLineBytes
}

// ReadRawLine returns the next line with its terminator left intact.
// A final unterminated line is returned with a nil error; the call after
// it reports io.EOF. The returned slice is only valid until the next call.
func (r *Reader) ReadRawLine() ([]byte, error) {
	line, err := r.BR.ReadSlice('\n')
	if err == nil {
		if len(line) > r.limit() {
			return nil, ErrLineTooLong
		}
		return line, nil
	}
	if err != bufio.ErrBufferFull {
		if len(line) > 0 && err == io.EOF {
			if len(line) > r.limit() {
				return nil, ErrLineTooLong
			}
			return line, nil
		}
		return nil, err
	}
	// Line spans more than one buffer.
	buf := append([]byte(nil), line...)
	for {
		if len(buf) > r.limit() {
			return nil, ErrLineTooLong
		}
		line, err = r.BR.ReadSlice('\n')
		buf = append(buf, line...)
		switch {
		case err == nil:
			if len(buf) > r.limit() {
				return nil, ErrLineTooLong
			}
			return buf, nil
		case err == bufio.ErrBufferFull:
			continue
		case err == io.EOF && len(buf) > 0:
			if len(buf) > r.limit() {
				return nil, ErrLineTooLong
			}
			return buf, nil
		default:
			return nil, err
		}
	}
}

// ReadLine returns the next line with the trailing CRLF or LF removed.
// Unlike ReadRawLine, reaching EOF before a terminator is an error.
func (r *Reader) ReadLine() (string, error) {
	raw, err := r.ReadRawLine()
	if err != nil {
		return "", err
	}
	if !bytes.HasSuffix(raw, []byte{'\n'}) {
		return "", io.ErrUnexpectedEOF
	}
	raw = bytes.TrimSuffix(raw, []byte{'\n'})
	raw = bytes.TrimSuffix(raw, []byte{'\r'})
	return string(raw), nil
}

// ReadRequestLine reads and splits the request line. Fields may be
// separated by any run of spaces or tabs.
func (r *Reader) ReadRequestLine() (*RequestLine, error) {
	line, err := r.ReadLine()
	if err != nil {
		return nil, err
	}
	return ParseRequestLine(line)
}

func ParseRequestLine(line string) (*RequestLine, error) {
	parts := strings.Fields(line)
	if len(parts) != 3 {
		return nil, ErrMalformedRequestLine
	}
	if !strings.HasPrefix(parts[2], "HTTP/") {
		return nil, ErrMalformedRequestLine
	}
	return &RequestLine{Method: parts[0], Target: parts[1], Proto: parts[2]}, nil
}

// DiscardHeaders consumes header lines up to and including the blank
// line ending the block, returning what it skipped.
func (r *Reader) DiscardHeaders() ([]string, error) {
	var skipped []string
	for {
		line, err := r.ReadLine()
		if err != nil {
			return skipped, err
		}
		if line == "" {
			return skipped, nil
		}
		skipped = append(skipped, line)
	}
}
