package dav

import (
	"context"
	"fmt"
)

// reportInbox always answers with an empty multistatus; the inbox holds no
// items.
func (c *connection) reportInbox(_ context.Context, _ *exchange) error {
	return c.sendMultistatus()
}

func (c *connection) reportCalendar(ctx context.Context, x *exchange) error {
	doc, err := c.requireDoc(x)
	if err != nil {
		return err
	}

	var events []Event
	var notFound []string
	if doc.Multiget() {
		for _, href := range doc.Hrefs() {
			name, ok := eventNameFromHref(href)
			if !ok {
				notFound = append(notFound, href)
				continue
			}
			ev, err := c.session.GetEvent(ctx, name)
			if err != nil {
				if isNotFound(err) {
					notFound = append(notFound, href)
					continue
				}
				return fmt.Errorf("get event %s: %w", name, err)
			}
			events = append(events, *ev)
		}
	} else {
		if events, err = c.session.ListEvents(ctx); err != nil {
			return fmt.Errorf("list events: %w", err)
		}
	}

	fragments := c.eventFragments(doc, events)
	for _, href := range notFound {
		fragments = append(fragments, notFoundFragment(href))
	}
	return c.sendMultistatus(fragments...)
}
