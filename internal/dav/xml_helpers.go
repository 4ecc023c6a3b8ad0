package dav

import (
	"encoding/xml"
	"io"
	"strings"
)

// newSafeDecoder returns a decoder that resolves only the predefined HTML
// entities, so request bodies cannot pull in external entities.
func newSafeDecoder(r io.Reader) *xml.Decoder {
	decoder := xml.NewDecoder(r)
	decoder.Entity = xml.HTMLEntity
	return decoder
}

var xmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// escapeXML escapes the characters that would break element content.
func escapeXML(s string) string {
	return xmlEscaper.Replace(s)
}
