package dav

import (
	"bufio"
	"errors"
	"io"
	"net"
	"strconv"
	"strings"
	"time"
)

// maxKeepAlive caps the read timeout a client can request through Keep-Alive.
const maxKeepAlive = 300 * time.Second

// maxDAVBodyBytes caps the Content-Length accepted for a request body.
const maxDAVBodyBytes = 10 << 20

// LineConn is the line-oriented stream a Handler serves.
type LineConn interface {
	ReadLine() (string, error)
	ReadFull(n int) ([]byte, error)
	SendLine(s string) error
	SendBytes(b []byte) error
	Flush() error
	SetReadTimeout(d time.Duration)
	RemoteAddr() net.Addr
	Close() error
}

// Request is one parsed HTTP exchange. Header keys are lower case.
type Request struct {
	Method  string
	Path    string
	Header  map[string]string
	Body    string
	HasBody bool
	Depth   int
}

func (r *Request) header(name string) string {
	return r.Header[strings.ToLower(name)]
}

func (r *Request) hasHeader(name string) bool {
	_, ok := r.Header[strings.ToLower(name)]
	return ok
}

// readRequest reads one request from c. It returns io.EOF when the peer
// closed the connection, or sent an empty line, before a new request began.
// A request line without a path yields a Request with an empty Path and no
// body; the caller answers it with 501.
func readRequest(c LineConn) (*Request, error) {
	line, err := readLine(c)
	if err != nil {
		return nil, err
	}
	tokens := strings.Fields(line)
	if len(tokens) == 0 {
		return nil, io.EOF
	}

	req := &Request{Method: tokens[0]}
	if req.Header, err = readHeaders(c); err != nil {
		return nil, err
	}
	if len(tokens) < 2 {
		return req, nil
	}
	req.Path = tokens[1]

	if v := req.header("content-length"); v != "" {
		body, err := readBody(c, v)
		if err != nil {
			return nil, err
		}
		req.Body = body
		req.HasBody = true
	}

	if v := req.header("keep-alive"); v != "" {
		timeout, err := parseKeepAlive(v)
		if err != nil {
			return nil, err
		}
		c.SetReadTimeout(timeout)
	}

	return req, nil
}

func readHeaders(c LineConn) (map[string]string, error) {
	headers := make(map[string]string)
	for {
		line, err := readLine(c)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
		if line == "" {
			return headers, nil
		}
		idx := strings.IndexByte(line, ':')
		if idx <= 0 {
			return nil, framingErrorf("invalid header: %s", line)
		}
		headers[strings.ToLower(line[:idx])] = strings.TrimSpace(line[idx+1:])
	}
}

// readLine turns an overlong line into a FramingError.
func readLine(c LineConn) (string, error) {
	line, err := c.ReadLine()
	if errors.Is(err, bufio.ErrBufferFull) {
		return "", wrapFramingError(err, "request line too long")
	}
	return line, err
}

func readBody(c LineConn, contentLength string) (string, error) {
	size, err := strconv.Atoi(strings.TrimSpace(contentLength))
	if err != nil || size < 0 {
		return "", framingErrorf("invalid content length: %s", contentLength)
	}
	if size > maxDAVBodyBytes {
		return "", framingErrorf("content length too large: %s", contentLength)
	}
	if size == 0 {
		return "", nil
	}
	buf, err := c.ReadFull(size)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return "", wrapFramingError(err, "end of stream reached reading content")
		}
		return "", err
	}
	return string(buf), nil
}

// parseKeepAlive converts a Keep-Alive header value in seconds to a read
// timeout, clamped to maxKeepAlive. Zero disables the timeout.
func parseKeepAlive(v string) (time.Duration, error) {
	seconds, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || seconds < 0 {
		return 0, framingErrorf("invalid keep-alive: %s", v)
	}
	timeout := time.Duration(seconds) * time.Second
	if timeout > maxKeepAlive {
		timeout = maxKeepAlive
	}
	return timeout, nil
}

// parseDepth reads the Depth header. Absent or unparseable values yield 0;
// the error is returned only so the caller can log it.
func parseDepth(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	depth, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, err
	}
	return depth, nil
}
