package dav

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"gitea.jw6.us/james/caldavgw/internal/config"
)

// fakeConn replays scripted input and records everything written.
type fakeConn struct {
	r        *bufio.Reader
	out      bytes.Buffer
	timeouts []time.Duration
	closed   bool
}

func newFakeConn(input string) *fakeConn {
	return &fakeConn{r: bufio.NewReader(strings.NewReader(input))}
}

// fakeMaxLine mirrors the line bound of the production connection.
const fakeMaxLine = 8 << 10

func (f *fakeConn) ReadLine() (string, error) {
	line, err := f.r.ReadString('\n')
	if len(line) > fakeMaxLine {
		return "", fmt.Errorf("line too long: %w", bufio.ErrBufferFull)
	}
	if err != nil {
		if err == io.EOF && line != "" {
			return strings.TrimSuffix(line, "\r"), nil
		}
		return "", err
	}
	return strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r"), nil
}

func (f *fakeConn) ReadFull(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(f.r, buf); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return buf, nil
}

func (f *fakeConn) SendLine(s string) error {
	f.out.WriteString(s + "\r\n")
	return nil
}

func (f *fakeConn) SendBytes(b []byte) error {
	f.out.Write(b)
	return nil
}

func (f *fakeConn) Flush() error { return nil }

func (f *fakeConn) SetReadTimeout(d time.Duration) {
	f.timeouts = append(f.timeouts, d)
}

func (f *fakeConn) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 50000}
}

func (f *fakeConn) Close() error {
	f.closed = true
	return nil
}

type fakeSession struct {
	email     string
	ctag      string
	events    map[string]Event
	putStatus int
	puts      []string
	ifMatches []string
	busy      map[string]string
	fbValues  map[string]string
}

func newFakeSession(email string) *fakeSession {
	return &fakeSession{
		email:     email,
		ctag:      "1",
		events:    make(map[string]Event),
		putStatus: http.StatusCreated,
		busy:      make(map[string]string),
	}
}

func (s *fakeSession) Email() string { return s.email }

func (s *fakeSession) CalendarCTag(context.Context) (string, error) {
	return s.ctag, nil
}

func (s *fakeSession) ListEvents(context.Context) ([]Event, error) {
	names := make([]string, 0, len(s.events))
	for name := range s.events {
		names = append(names, name)
	}
	sort.Strings(names)
	events := make([]Event, 0, len(names))
	for _, name := range names {
		events = append(events, s.events[name])
	}
	return events, nil
}

func (s *fakeSession) GetEvent(_ context.Context, name string) (*Event, error) {
	ev, ok := s.events[name]
	if !ok {
		return nil, fmt.Errorf("lookup %s: %w", name, ErrEventNotFound)
	}
	return &ev, nil
}

func (s *fakeSession) PutEvent(_ context.Context, name, body, ifMatch string) (int, error) {
	s.puts = append(s.puts, name+"="+body)
	s.ifMatches = append(s.ifMatches, ifMatch)
	return s.putStatus, nil
}

func (s *fakeSession) DeleteEvent(_ context.Context, name string) (int, error) {
	if _, ok := s.events[name]; !ok {
		return http.StatusNotFound, nil
	}
	delete(s.events, name)
	return http.StatusNoContent, nil
}

func (s *fakeSession) FreeBusy(_ context.Context, values map[string]string) (string, error) {
	s.fbValues = values
	periods, ok := s.busy[values["ATTENDEE"]]
	if !ok {
		return "", ErrUnknownRecipient
	}
	return periods, nil
}

type fakeProvider struct {
	mu       sync.Mutex
	sessions map[string]Session
	calls    int
	err      error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{sessions: make(map[string]Session)}
}

func (p *fakeProvider) add(username, password string, s Session) {
	p.sessions[username+":"+password] = s
}

func (p *fakeProvider) Session(_ context.Context, username, password string) (Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	s, ok := p.sessions[username+":"+password]
	if !ok {
		return nil, fmt.Errorf("%w: invalid user name or password", ErrAuthenticationFailed)
	}
	return s, nil
}

func basicAuth(username, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}

// rawRequest renders a request. A Content-Length header is added when body
// is not empty.
func rawRequest(method, path string, headers map[string]string, body string) string {
	var b strings.Builder
	b.WriteString(method + " " + path + " HTTP/1.1\r\n")
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		b.WriteString(name + ": " + headers[name] + "\r\n")
	}
	if body != "" {
		b.WriteString("Content-Length: " + strconv.Itoa(len(body)) + "\r\n")
	}
	b.WriteString("\r\n")
	b.WriteString(body)
	return b.String()
}

type capturedResponse struct {
	Status int
	Header http.Header
	Body   string
}

// serveScript runs a handler over the concatenated requests and parses every
// response written.
func serveScript(t *testing.T, provider SessionProvider, requests ...string) ([]capturedResponse, *fakeConn) {
	t.Helper()
	h := NewHandler(&config.Config{BaseURL: "http://gateway.test:1080"}, provider)
	conn := newFakeConn(strings.Join(requests, ""))
	h.ServeConn(context.Background(), conn)

	var responses []capturedResponse
	r := bufio.NewReader(bytes.NewReader(conn.out.Bytes()))
	for {
		// http.ReadResponse reports a clean end of stream as
		// io.ErrUnexpectedEOF, so detect exhaustion before calling it.
		if _, err := r.Peek(1); errors.Is(err, io.EOF) {
			break
		}
		resp, err := http.ReadResponse(r, nil)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			t.Fatalf("failed to parse response %d: %v\nraw:\n%s", len(responses)+1, err, conn.out.String())
		}
		// http.ReadResponse strips "Connection: close" into resp.Close.
		if resp.Close {
			resp.Header.Set("Connection", "close")
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			t.Fatalf("failed to read response body: %v", err)
		}
		responses = append(responses, capturedResponse{Status: resp.StatusCode, Header: resp.Header, Body: string(body)})
	}
	return responses, conn
}

const propfindAll = `<?xml version="1.0" encoding="utf-8"?>
<D:propfind xmlns:D="DAV:" xmlns:C="urn:ietf:params:xml:ns:caldav" xmlns:CS="http://calendarserver.org/ns/">
  <D:prop>
    <D:resourcetype/>
    <D:displayname/>
    <D:owner/>
    <D:getetag/>
    <CS:getctag/>
    <C:calendar-data/>
    <D:principal-collection-set/>
    <C:calendar-home-set/>
    <C:calendar-user-address-set/>
    <C:schedule-inbox-URL/>
    <C:schedule-outbox-URL/>
  </D:prop>
</D:propfind>`
