package dav

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

func (c *connection) getEvent(ctx context.Context, x *exchange) error {
	name := x.paths[4]
	ev, err := c.session.GetEvent(ctx, name)
	if err != nil {
		return c.relayStatusError(err, fmt.Sprintf("get event %s", name))
	}
	return c.sendHTTPResponse(http.StatusOK, nil, contentTypeCalendar, ev.ICS, true)
}

func (c *connection) putEvent(ctx context.Context, x *exchange) error {
	name := x.paths[4]
	status, err := c.session.PutEvent(ctx, name, x.req.Body, x.req.header("if-match"))
	if err != nil {
		return c.relayStatusError(err, fmt.Sprintf("put event %s", name))
	}
	return c.sendHTTPResponse(status, nil, "", "", true)
}

func (c *connection) deleteEvent(ctx context.Context, x *exchange) error {
	name := x.paths[4]
	status, err := c.session.DeleteEvent(ctx, name)
	if err != nil {
		return c.relayStatusError(err, fmt.Sprintf("delete event %s", name))
	}
	return c.sendHTTPResponse(status, nil, "", "", true)
}

// relayStatusError sends a backend StatusError to the client and keeps the
// connection. Any other error is returned wrapped.
func (c *connection) relayStatusError(err error, op string) error {
	var se *StatusError
	if errors.As(err, &se) {
		c.warnf("%s: %v", op, err)
		return c.sendMessage(se.Code, se.Message)
	}
	return fmt.Errorf("%s: %w", op, err)
}
