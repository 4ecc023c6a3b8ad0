package dav

import "context"

// pathMatch is the input to route predicates. self is the authenticated
// user's email, empty before authentication.
type pathMatch struct {
	paths []string
	self  string
}

func (m pathMatch) segment(i int) string {
	if i < 0 || i >= len(m.paths) {
		return ""
	}
	return m.paths[i]
}

func (m pathMatch) userCollection(name string) bool {
	return len(m.paths) == 4 && m.segment(1) == "users" && m.segment(3) == name
}

func (m pathMatch) ownEvent() bool {
	return len(m.paths) == 5 && m.segment(1) == "users" && m.segment(3) == "calendar" && m.segment(2) == m.self
}

// exchange is one routed request.
type exchange struct {
	req   *Request
	paths []string
	doc   *RequestDocument
}

type route struct {
	// name labels the route in logs and metrics.
	name   string
	method string // empty matches any method
	match  func(m pathMatch) bool
	handle func(c *connection, ctx context.Context, x *exchange) error
}

// routes is evaluated in order; the first match wins and the last entry
// always matches.
var routes = []route{
	{"options", "OPTIONS", anyPath, (*connection).sendOptions},
	{"root", "PROPFIND", func(m pathMatch) bool { return len(m.paths) <= 1 }, (*connection).sendRoot},
	{"root-info", "GET", func(m pathMatch) bool { return len(m.paths) <= 1 }, (*connection).sendGetRoot},
	{"legacy-calendar", "", func(m pathMatch) bool { return m.segment(1) == "calendar" }, (*connection).sendLegacyCalendar},
	{"user-redirect", "", func(m pathMatch) bool { return m.segment(1) == "user" }, (*connection).sendUserRedirect},
	{"principal", "PROPFIND", func(m pathMatch) bool {
		return len(m.paths) == 4 && m.segment(1) == "principals" && m.segment(2) == "users"
	}, (*connection).sendPrincipal},
	{"principal-report", "REPORT", func(m pathMatch) bool {
		return len(m.paths) == 3 && m.segment(1) == "principals" && m.segment(2) == "users"
	}, (*connection).reportPrincipal},
	{"home", "PROPFIND", func(m pathMatch) bool {
		return len(m.paths) == 3 && m.segment(1) == "users"
	}, (*connection).sendUserRoot},
	{"inbox", "PROPFIND", func(m pathMatch) bool { return m.userCollection("inbox") }, (*connection).sendInbox},
	{"inbox-report", "REPORT", func(m pathMatch) bool { return m.userCollection("inbox") }, (*connection).reportInbox},
	{"outbox", "PROPFIND", func(m pathMatch) bool { return m.userCollection("outbox") }, (*connection).sendOutbox},
	{"freebusy", "POST", func(m pathMatch) bool { return m.userCollection("outbox") }, (*connection).sendFreeBusy},
	{"calendar", "PROPFIND", func(m pathMatch) bool { return m.userCollection("calendar") }, (*connection).sendCalendar},
	{"calendar-report", "REPORT", func(m pathMatch) bool {
		return m.userCollection("calendar") && m.segment(2) == m.self
	}, (*connection).reportCalendar},
	{"event-put", "PUT", pathMatch.ownEvent, (*connection).putEvent},
	{"event-delete", "DELETE", pathMatch.ownEvent, (*connection).deleteEvent},
	{"event-get", "GET", pathMatch.ownEvent, (*connection).getEvent},
	{"unsupported", "", anyPath, (*connection).sendUnsupported},
}

func anyPath(pathMatch) bool { return true }

// matchRoute returns the first route accepting method and paths.
func matchRoute(method string, paths []string, self string) *route {
	m := pathMatch{paths: paths, self: self}
	for i := range routes {
		r := &routes[i]
		if r.method != "" && r.method != method {
			continue
		}
		if r.match(m) {
			return r
		}
	}
	return &routes[len(routes)-1]
}
