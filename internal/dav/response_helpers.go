package dav

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"
)

const serverName = "caldavgw"

const dateFormat = "Mon, 02 Jan 2006 15:04:05 -0700"

var now = time.Now

// sendHTTPResponse writes one complete response. The connection is marked
// for closing when keepAlive is false.
func (c *connection) sendHTTPResponse(status int, headers map[string]string, contentType, body string, keepAlive bool) error {
	c.status = status
	text := http.StatusText(status)
	if text == "" {
		text = "Status " + strconv.Itoa(status)
	}

	lines := []string{
		fmt.Sprintf("HTTP/1.1 %d %s", status, text),
		"Server: " + serverName,
		"Date: " + now().UTC().Format(dateFormat),
	}
	if len(headers) > 0 {
		names := make([]string, 0, len(headers))
		for name := range headers {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			lines = append(lines, name+": "+headers[name])
		}
	}
	if contentType != "" {
		lines = append(lines, "Content-Type: "+contentType)
	}
	if keepAlive {
		lines = append(lines, "Connection: keep-alive")
	} else {
		lines = append(lines, "Connection: close")
	}
	c.closed = !keepAlive
	lines = append(lines, "Content-Length: "+strconv.Itoa(len(body)), "")

	for _, line := range lines {
		if err := c.conn.SendLine(line); err != nil {
			return err
		}
	}
	if body != "" {
		c.debugf("> %s", body)
		if err := c.conn.SendBytes([]byte(body)); err != nil {
			return err
		}
	}
	return c.conn.Flush()
}

// sendErr answers with a plain text message and closes the connection.
func (c *connection) sendErr(status int, message string) error {
	return c.sendHTTPResponse(status, nil, contentTypeText, message, false)
}

// sendMessage answers with a plain text message and keeps the connection.
func (c *connection) sendMessage(status int, message string) error {
	return c.sendHTTPResponse(status, nil, contentTypeText, message, true)
}

func (c *connection) sendMultistatus(fragments ...string) error {
	return c.sendHTTPResponse(http.StatusMultiStatus, nil, contentTypeXML, multistatus(fragments...), true)
}

func (c *connection) sendUnauthorized() error {
	headers := map[string]string{
		"WWW-Authenticate": `Basic realm="` + c.h.realm + `"`,
	}
	return c.sendHTTPResponse(http.StatusUnauthorized, headers, "", "", true)
}

func (c *connection) sendRedirect(req *Request, path string) error {
	location := path
	if host := req.header("host"); host != "" {
		location = "http://" + host + path
	}
	return c.sendHTTPResponse(http.StatusMovedPermanently, map[string]string{"Location": location}, "", "", true)
}
