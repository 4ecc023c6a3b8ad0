package dav

const (
	httpStatusOK       = "HTTP/1.1 200 OK"
	httpStatusNotFound = "HTTP/1.1 404 Not Found"
)

const (
	contentTypeXML      = "text/xml;charset=UTF-8"
	contentTypeText     = "text/plain;charset=UTF-8"
	contentTypeHTML     = "text/html;charset=UTF-8"
	contentTypeCalendar = "text/calendar;charset=UTF-8"
)
