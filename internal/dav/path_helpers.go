package dav

import "strings"

// splitPath splits a request path on "/" and drops trailing empty segments,
// so "/" has no segments and "/users/bob/" has three ("", "users", "bob").
func splitPath(p string) []string {
	parts := strings.Split(p, "/")
	for len(parts) > 0 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}

const calendarSegment = "/calendar/"

// eventNameFromHref returns what follows the first "/calendar/" in href.
func eventNameFromHref(href string) (string, bool) {
	idx := strings.Index(href, calendarSegment)
	if idx < 0 {
		return "", false
	}
	name := href[idx+len(calendarSegment):]
	return name, name != ""
}
