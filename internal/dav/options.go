package dav

import (
	"context"
	"net/http"
)

const (
	allowedMethods = "OPTIONS, GET, PROPFIND, PUT, POST"
	davCapability  = "1, 2, 3, access-control, calendar-access, ticket, calendar-schedule"
)

// sendOptions needs no session; it is answered before authentication.
func (c *connection) sendOptions(_ context.Context, _ *exchange) error {
	headers := map[string]string{
		"Allow": allowedMethods,
		"DAV":   davCapability,
	}
	return c.sendHTTPResponse(http.StatusOK, headers, "", "", true)
}
