// Package netconn provides a line-oriented view of a stream connection.
package netconn

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"
)

// MaxLineLength bounds a single line, terminator included.
const MaxLineLength = 8 << 10

// ErrLineTooLong is returned by ReadLine when no terminator arrives within
// MaxLineLength bytes. It wraps bufio.ErrBufferFull.
var ErrLineTooLong = fmt.Errorf("line exceeds %d bytes: %w", MaxLineLength, bufio.ErrBufferFull)

// Conn wraps a net.Conn with buffered line reads and writes. It is owned by a
// single connection goroutine; only Close may be called concurrently.
type Conn struct {
	raw     net.Conn
	r       *bufio.Reader
	w       *bufio.Writer
	timeout time.Duration

	closeOnce sync.Once
	closeErr  error
}

// New wraps raw. A zero timeout disables read deadlines.
func New(raw net.Conn, timeout time.Duration) *Conn {
	return &Conn{
		raw:     raw,
		r:       bufio.NewReader(raw),
		w:       bufio.NewWriter(raw),
		timeout: timeout,
	}
}

// ReadLine returns the next line without its CRLF or LF terminator. It returns
// io.EOF when the peer closed the stream before sending anything, and
// ErrLineTooLong once a line outgrows MaxLineLength.
func (c *Conn) ReadLine() (string, error) {
	if err := c.armDeadline(); err != nil {
		return "", err
	}
	var line []byte
	for {
		chunk, err := c.r.ReadSlice('\n')
		if len(line)+len(chunk) > MaxLineLength {
			return "", ErrLineTooLong
		}
		line = append(line, chunk...)
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if err != nil {
			if err == io.EOF && len(line) > 0 {
				break
			}
			return "", err
		}
		break
	}
	s := strings.TrimSuffix(string(line), "\n")
	return strings.TrimSuffix(s, "\r"), nil
}

// ReadFull reads exactly n bytes or fails with io.ErrUnexpectedEOF.
func (c *Conn) ReadFull(n int) ([]byte, error) {
	if err := c.armDeadline(); err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(c.r, buf); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return buf, nil
}

func (c *Conn) SendLine(s string) error {
	if _, err := c.w.WriteString(s); err != nil {
		return err
	}
	_, err := c.w.WriteString("\r\n")
	return err
}

func (c *Conn) SendBytes(b []byte) error {
	_, err := c.w.Write(b)
	return err
}

func (c *Conn) Flush() error {
	return c.w.Flush()
}

// SetReadTimeout changes the deadline applied before each subsequent read.
func (c *Conn) SetReadTimeout(d time.Duration) {
	c.timeout = d
}

func (c *Conn) ReadTimeout() time.Duration {
	return c.timeout
}

func (c *Conn) RemoteAddr() net.Addr {
	return c.raw.RemoteAddr()
}

func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.raw.Close()
	})
	return c.closeErr
}

func (c *Conn) armDeadline() error {
	if c.timeout <= 0 {
		return c.raw.SetReadDeadline(time.Time{})
	}
	return c.raw.SetReadDeadline(time.Now().Add(c.timeout))
}
