package dav

import "strings"

const (
	multistatusOpen = `<?xml version="1.0" encoding="UTF-8"?>` + "\n" +
		`<D:multistatus xmlns:D="DAV:" xmlns:C="urn:ietf:params:xml:ns:caldav" xmlns:CS="http://calendarserver.org/ns/">` + "\n"
	multistatusClose = "</D:multistatus>\n"
)

// multistatus wraps response fragments in a multistatus envelope.
func multistatus(fragments ...string) string {
	var b strings.Builder
	b.WriteString(multistatusOpen)
	for _, f := range fragments {
		b.WriteString(f)
	}
	b.WriteString(multistatusClose)
	return b.String()
}

// propResponse renders a response with a single 200 propstat. The prop
// callback writes whichever properties the request asked for.
func propResponse(href string, prop func(b *strings.Builder)) string {
	var b strings.Builder
	b.WriteString("<D:response>\n")
	b.WriteString("<D:href>" + escapeXML(href) + "</D:href>\n")
	b.WriteString("<D:propstat>\n<D:prop>\n")
	prop(&b)
	b.WriteString("</D:prop>\n")
	b.WriteString("<D:status>" + httpStatusOK + "</D:status>\n")
	b.WriteString("</D:propstat>\n")
	b.WriteString("</D:response>\n")
	return b.String()
}

func hrefProp(b *strings.Builder, element, href string) {
	b.WriteString("<" + element + "><D:href>" + escapeXML(href) + "</D:href></" + element + ">\n")
}

func textProp(b *strings.Builder, element, value string) {
	b.WriteString("<" + element + ">" + escapeXML(value) + "</" + element + ">\n")
}

func principalHref(name string) string {
	return "/principals/users/" + name
}

func homeHref(name string) string {
	return "/users/" + name
}

func rootFragment(doc *RequestDocument, email string) string {
	return propResponse("/", func(b *strings.Builder) {
		if doc.Has("principal-collection-set") {
			hrefProp(b, "D:principal-collection-set", principalHref(email))
		}
		if doc.Has("displayname") {
			textProp(b, "D:displayname", "ROOT")
		}
	})
}

func principalFragment(doc *RequestDocument, name string) string {
	return propResponse(principalHref(name), func(b *strings.Builder) {
		if doc.Has("calendar-home-set") {
			hrefProp(b, "C:calendar-home-set", homeHref(name))
		}
		if doc.Has("calendar-user-address-set") {
			hrefProp(b, "C:calendar-user-address-set", "mailto:"+name)
		}
		if doc.Has("schedule-inbox-URL") {
			hrefProp(b, "C:schedule-inbox-URL", homeHref(name)+"/inbox")
		}
		if doc.Has("schedule-outbox-URL") {
			hrefProp(b, "C:schedule-outbox-URL", homeHref(name)+"/outbox")
		}
		if doc.Has("displayname") {
			textProp(b, "D:displayname", name)
		}
		if doc.Has("resourcetype") {
			b.WriteString("<D:resourcetype><D:collection/><D:principal/></D:resourcetype>\n")
		}
	})
}

func homeFragment(doc *RequestDocument, name string) string {
	return propResponse(homeHref(name), func(b *strings.Builder) {
		if doc.Has("resourcetype") {
			b.WriteString("<D:resourcetype><D:collection/></D:resourcetype>\n")
		}
		if doc.Has("displayname") {
			textProp(b, "D:displayname", name)
		}
	})
}

func inboxFragment(doc *RequestDocument, name string) string {
	return propResponse(homeHref(name)+"/inbox", func(b *strings.Builder) {
		if doc.Has("resourcetype") {
			b.WriteString("<D:resourcetype><D:collection/><C:schedule-inbox/></D:resourcetype>\n")
		}
		if doc.Has("getctag") {
			textProp(b, "CS:getctag", "0")
		}
		if doc.Has("displayname") {
			textProp(b, "D:displayname", "inbox")
		}
	})
}

func outboxFragment(doc *RequestDocument, name string) string {
	return propResponse(homeHref(name)+"/outbox", func(b *strings.Builder) {
		if doc.Has("resourcetype") {
			b.WriteString("<D:resourcetype><D:collection/><C:schedule-outbox/></D:resourcetype>\n")
		}
		if doc.Has("getctag") {
			textProp(b, "CS:getctag", "0")
		}
		if doc.Has("displayname") {
			textProp(b, "D:displayname", "outbox")
		}
	})
}

// calendarFragment renders the calendar collection. ctag is the encoded
// change tag and is only read when the request asked for getctag.
func calendarFragment(doc *RequestDocument, name, ctag string) string {
	return propResponse(homeHref(name)+"/calendar", func(b *strings.Builder) {
		if doc.Has("resourcetype") {
			b.WriteString("<D:resourcetype><D:collection/><C:calendar/></D:resourcetype>\n")
		}
		if doc.Has("owner") {
			hrefProp(b, "D:owner", principalHref(name))
		}
		if doc.Has("getctag") {
			textProp(b, "CS:getctag", ctag)
		}
		if doc.Has("displayname") {
			textProp(b, "D:displayname", "calendar")
		}
	})
}

func eventFragment(doc *RequestDocument, email string, ev Event) string {
	return propResponse(homeHref(email)+"/calendar/"+ev.Name, func(b *strings.Builder) {
		if doc.Has("calendar-data") && ev.ICS != "" {
			b.WriteString(`<C:calendar-data xmlns:C="urn:ietf:params:xml:ns:caldav" C:content-type="text/calendar" C:version="2.0">`)
			b.WriteString(escapeXML(ev.ICS))
			b.WriteString("</C:calendar-data>\n")
		}
		if doc.Has("getetag") {
			textProp(b, "D:getetag", ev.ETag)
		}
		if doc.Has("resourcetype") {
			b.WriteString("<D:resourcetype/>\n")
		}
		if doc.Has("displayname") {
			textProp(b, "D:displayname", ev.Name)
		}
	})
}

func notFoundFragment(href string) string {
	return "<D:response>\n" +
		"<D:href>" + escapeXML(href) + "</D:href>\n" +
		"<D:status>" + httpStatusNotFound + "</D:status>\n" +
		"</D:response>\n"
}
