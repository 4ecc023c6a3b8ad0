package dav

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"syscall"
	"time"

	"gitea.jw6.us/james/caldavgw/internal/config"
	"gitea.jw6.us/james/caldavgw/internal/metrics"
)

// Handler serves CalDAV over line-oriented connections.
type Handler struct {
	realm     string
	wireDebug bool
	sessions  SessionProvider
}

func NewHandler(cfg *config.Config, sessions SessionProvider) *Handler {
	return &Handler{
		realm:     cfg.BaseURL,
		wireDebug: cfg.WireDebug,
		sessions:  sessions,
	}
}

// connection is the state of one client connection. It is confined to the
// goroutine running ServeConn.
type connection struct {
	h    *Handler
	conn LineConn
	id   string

	username string
	password string
	session  Session
	closed   bool

	// per request
	route  string
	status int
}

// ServeConn answers requests on lc one at a time until the peer closes, a
// read times out, a response closes the connection or ctx is done. lc is
// closed on return.
func (h *Handler) ServeConn(ctx context.Context, lc LineConn) {
	c := &connection{h: h, conn: lc, id: lc.RemoteAddr().String()}

	metrics.ConnectionOpened()
	defer metrics.ConnectionClosed()
	defer lc.Close()

	for !c.closed && ctx.Err() == nil {
		c.route, c.status = "", 0
		start := time.Now()

		req, err := c.serveRequest(ctx)
		if err != nil {
			c.fail(err)
		}
		if req != nil && c.status != 0 {
			metrics.ObserveCalDAVRequest(req.Method, c.route, c.status, time.Since(start))
		}
		if err != nil {
			return
		}
	}
}

func (c *connection) serveRequest(ctx context.Context) (*Request, error) {
	req, err := readRequest(c.conn)
	if err != nil {
		return nil, err
	}
	if req.Path == "" {
		c.route = "invalid-uri"
		return req, c.sendErr(http.StatusNotImplemented, "Invalid URI")
	}

	depth, err := parseDepth(req.header("depth"))
	if err != nil {
		c.warnf("invalid depth value: %s", req.header("depth"))
	}
	req.Depth = depth

	if req.Method != "OPTIONS" {
		if !req.hasHeader("authorization") {
			c.route = "challenge"
			return req, c.sendUnauthorized()
		}
		if err := c.authenticate(ctx, req); err != nil {
			c.route = "auth"
			if errors.Is(err, ErrAuthenticationFailed) {
				c.warnf("authentication failed for %s: %v", c.username, err)
				return req, c.sendErr(http.StatusUnauthorized, err.Error())
			}
			return req, err
		}
	}

	return req, c.dispatch(ctx, req)
}

// authenticate decodes the credentials and acquires the backend session on
// the first authenticated request. The session is never replaced.
func (c *connection) authenticate(ctx context.Context, req *Request) error {
	username, password, err := decodeCredentials(req.header("authorization"))
	if err != nil {
		return err
	}
	c.username, c.password = username, password
	if c.session != nil {
		return nil
	}
	session, err := c.h.sessions.Session(ctx, username, password)
	if err != nil {
		if errors.Is(err, ErrAuthenticationFailed) {
			return err
		}
		return fmt.Errorf("acquire session: %w", err)
	}
	c.session = session
	return nil
}

func (c *connection) dispatch(ctx context.Context, req *Request) error {
	c.debugf("CalDAV command: %s %s depth: %d\n%s", req.Method, req.Path, req.Depth, req.Body)

	self := ""
	if c.session != nil {
		self = c.session.Email()
	}
	x := &exchange{req: req, paths: splitPath(req.Path)}
	r := matchRoute(req.Method, x.paths, self)
	c.route = r.name

	if (req.Method == "PROPFIND" || req.Method == "REPORT") && req.HasBody {
		doc, err := ParseRequestDocument(req.Body)
		if err != nil {
			return err
		}
		x.doc = doc
	}

	return r.handle(c, metrics.WithRoute(ctx, r.name), x)
}

// fail ends the connection after err. Peer closes and timeouts end it
// quietly; anything else is logged and answered with 500 when possible.
func (c *connection) fail(err error) {
	var fe *FramingError
	switch {
	case errors.As(err, &fe):
	case errors.Is(err, os.ErrDeadlineExceeded):
		c.debugf("closing connection on timeout")
		return
	case errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.ErrClosedPipe),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE):
		c.debugf("connection closed")
		return
	}

	c.errorf("%v", err)
	if sendErr := c.sendErr(http.StatusInternalServerError, err.Error()); sendErr != nil {
		c.debugf("sending error to client: %v", sendErr)
	}
}

func (c *connection) sendLegacyCalendar(_ context.Context, _ *exchange) error {
	msg := "/calendar no longer supported, recreate calendar with /users/" + c.session.Email() + "/calendar"
	c.errorf("%s", msg)
	return c.sendMessage(http.StatusBadRequest, msg)
}

func (c *connection) sendUserRedirect(_ context.Context, x *exchange) error {
	return c.sendRedirect(x.req, principalHref(c.session.Email()))
}

func (c *connection) sendUnsupported(_ context.Context, x *exchange) error {
	msg := fmt.Sprintf("Unsupported request: %s %s Depth: %d\n%s", x.req.Method, x.req.Path, x.req.Depth, x.req.Body)
	c.errorf("%s", msg)
	return c.sendMessage(http.StatusBadRequest, msg)
}

func (c *connection) debugf(format string, args ...interface{}) {
	if c.h.wireDebug {
		log.Printf("[DEBUG] conn=%s: %s", c.id, fmt.Sprintf(format, args...))
	}
}

func (c *connection) warnf(format string, args ...interface{}) {
	log.Printf("[WARN] conn=%s: %s", c.id, fmt.Sprintf(format, args...))
}

func (c *connection) errorf(format string, args ...interface{}) {
	log.Printf("[ERROR] conn=%s: %s", c.id, fmt.Sprintf(format, args...))
}
