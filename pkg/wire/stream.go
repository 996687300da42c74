package wire

import (
	"bufio"
	"io"

	"github.com/pkg/errors"
)

// LineReader reads CRLF-framed lines off a transport, tolerating a bare LF
// or a missing trailing CR (spec.md §4.2).
type LineReader struct {
	br *bufio.Reader
}

// NewLineReader wraps r for line-oriented reading.
func NewLineReader(r io.Reader) *LineReader {
	return &LineReader{br: bufio.NewReader(r)}
}

// ReadLine reads a single line, stripping its trailing CRLF.
func (l *LineReader) ReadLine() (string, error) {
	line, err := l.br.ReadString('\n')
	if err != nil {
		if err == io.EOF && line != "" {
			return TrimCRLF(line), nil
		}
		return "", err
	}
	return TrimCRLF(line), nil
}

// ReadBody reads exactly size bytes from the underlying stream and writes
// them to dst, per spec.md §4.3: "the server reads exactly size bytes
// regardless of EOF on the underlying file" (on the client's read side) and
// §4.4's BODY handler (on the server's write side). Short reads from the
// transport are transparently handled by io.CopyN's internal retry loop.
func (l *LineReader) ReadBody(dst io.Writer, size int64) error {
	written, err := io.CopyN(dst, l.br, size)
	if err != nil {
		return errors.Wrapf(err, "short body: wrote %d of %d bytes", written, size)
	}
	return nil
}

// WriteLine writes a single CRLF-framed line to w.
func WriteLine(w io.Writer, line string) error {
	_, err := io.WriteString(w, line+"\r\n")
	return err
}

// Conn is a synchronous request/response connection over a transport's
// write/read pair, used by the client (Send/Recv) and by the server's
// dispatch loop (RecvLine/RecvBody/Reply). The protocol is strictly
// request/response (spec.md §5): a second request must not be sent before
// the prior response has been read. Conn does not enforce this itself; the
// caller's control flow (the session driver and walker) does.
type Conn struct {
	w io.Writer
	r *LineReader
}

// NewConn wraps a transport's write and read ends.
func NewConn(w io.Writer, r io.Reader) *Conn {
	return &Conn{w: w, r: NewLineReader(r)}
}

// Send writes a single request line.
func (c *Conn) Send(line string) error {
	return WriteLine(c.w, line)
}

// SendBody writes exactly size bytes following a BODY request.
func (c *Conn) SendBody(src io.Reader, size int64) error {
	return WriteBody(c.w, src, size)
}

// Recv reads and parses a single response line.
func (c *Conn) Recv() (Response, error) {
	line, err := c.r.ReadLine()
	if err != nil {
		return Response{}, err
	}
	return DecodeResponse(line)
}

// RecvLine reads a single raw request line from the server side of the
// connection (used by the snapshot engine's dispatch loop).
func (c *Conn) RecvLine() (string, error) {
	return c.r.ReadLine()
}

// RecvBody reads exactly size bytes into dst, used by the server to consume
// a BODY payload.
func (c *Conn) RecvBody(dst io.Writer, size int64) error {
	return c.r.ReadBody(dst, size)
}

// Reply writes a Response as a single reply line, used by the server side of
// the connection.
func (c *Conn) Reply(r Response) error {
	return c.Send(EncodeResponse(r))
}

// WriteBody copies exactly size bytes from src to w, padding with zero bytes
// if src is exhausted early (mirroring the original's behavior of trusting
// the size it already computed via stat, and reading from the file "until
// size bytes are sent" even across short reads).
func WriteBody(w io.Writer, src io.Reader, size int64) error {
	written, err := io.CopyN(w, src, size)
	if err == io.EOF {
		// Source was shorter than the previously stat'd size (e.g. truncated
		// concurrently); pad with zeros so the declared BODY length is
		// honored on the wire.
		zero := make([]byte, 4096)
		remaining := size - written
		for remaining > 0 {
			n := int64(len(zero))
			if remaining < n {
				n = remaining
			}
			if _, werr := w.Write(zero[:n]); werr != nil {
				return werr
			}
			remaining -= n
		}
		return nil
	}
	return err
}
