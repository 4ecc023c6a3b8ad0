package dav

import (
	"context"
	"encoding/base64"
	"fmt"
	"html"
	"net/http"
)

func (c *connection) requireDoc(x *exchange) (*RequestDocument, error) {
	if x.doc == nil {
		return nil, framingErrorf("missing %s request body", x.req.Method)
	}
	return x.doc, nil
}

func (c *connection) sendRoot(_ context.Context, x *exchange) error {
	doc, err := c.requireDoc(x)
	if err != nil {
		return err
	}
	return c.sendMultistatus(rootFragment(doc, c.session.Email()))
}

func (c *connection) sendGetRoot(_ context.Context, _ *exchange) error {
	body := fmt.Sprintf("Connected to CalDAV gateway<br/>UserName :%s<br/>Email :%s<br/>",
		html.EscapeString(c.username), html.EscapeString(c.session.Email()))
	return c.sendHTTPResponse(http.StatusOK, nil, contentTypeHTML, body, true)
}

func (c *connection) sendPrincipal(_ context.Context, x *exchange) error {
	doc, err := c.requireDoc(x)
	if err != nil {
		return err
	}
	return c.sendMultistatus(principalFragment(doc, x.paths[3]))
}

// reportPrincipal answers a principal search with the caller's own principal.
func (c *connection) reportPrincipal(_ context.Context, x *exchange) error {
	doc, err := c.requireDoc(x)
	if err != nil {
		return err
	}
	return c.sendMultistatus(principalFragment(doc, c.session.Email()))
}

func (c *connection) sendUserRoot(ctx context.Context, x *exchange) error {
	doc, err := c.requireDoc(x)
	if err != nil {
		return err
	}
	name := x.paths[2]
	fragments := []string{homeFragment(doc, name)}
	if x.req.Depth == 1 {
		ctag, err := c.calendarCTag(ctx, doc)
		if err != nil {
			return err
		}
		fragments = append(fragments,
			inboxFragment(doc, name),
			outboxFragment(doc, name),
			calendarFragment(doc, name, ctag))
	}
	return c.sendMultistatus(fragments...)
}

func (c *connection) sendInbox(_ context.Context, x *exchange) error {
	doc, err := c.requireDoc(x)
	if err != nil {
		return err
	}
	return c.sendMultistatus(inboxFragment(doc, x.paths[2]))
}

func (c *connection) sendOutbox(_ context.Context, x *exchange) error {
	doc, err := c.requireDoc(x)
	if err != nil {
		return err
	}
	return c.sendMultistatus(outboxFragment(doc, x.paths[2]))
}

func (c *connection) sendCalendar(ctx context.Context, x *exchange) error {
	doc, err := c.requireDoc(x)
	if err != nil {
		return err
	}
	ctag, err := c.calendarCTag(ctx, doc)
	if err != nil {
		return err
	}
	fragments := []string{calendarFragment(doc, x.paths[2], ctag)}
	if x.req.Depth == 1 {
		events, err := c.session.ListEvents(ctx)
		if err != nil {
			return fmt.Errorf("list events: %w", err)
		}
		fragments = append(fragments, c.eventFragments(doc, events)...)
	}
	return c.sendMultistatus(fragments...)
}

// calendarCTag returns the encoded change tag, or "" when the request did
// not ask for getctag.
func (c *connection) calendarCTag(ctx context.Context, doc *RequestDocument) (string, error) {
	if !doc.Has("getctag") {
		return "", nil
	}
	tag, err := c.session.CalendarCTag(ctx)
	if err != nil {
		return "", fmt.Errorf("calendar ctag: %w", err)
	}
	return base64.StdEncoding.EncodeToString([]byte(tag)), nil
}

func (c *connection) eventFragments(doc *RequestDocument, events []Event) []string {
	email := c.session.Email()
	fragments := make([]string, 0, len(events))
	for i, ev := range events {
		c.debugf("Retrieving event %d/%d", i+1, len(events))
		fragments = append(fragments, eventFragment(doc, email, ev))
	}
	return fragments
}
