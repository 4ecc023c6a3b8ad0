package dav

import (
	"encoding/xml"
	"errors"
	"io"
	"strings"
)

type tokenKind int

const (
	startElement tokenKind = iota
	endElement
	charData
)

type xmlToken struct {
	Kind  tokenKind
	Local string
	Text  string
}

// tokenizer is a pull source of XML events. Next returns io.EOF once the
// input is exhausted.
type tokenizer interface {
	Next() (xmlToken, error)
}

type xmlTokenizer struct {
	dec *xml.Decoder
}

func newXMLTokenizer(r io.Reader) *xmlTokenizer {
	return &xmlTokenizer{dec: newSafeDecoder(r)}
}

func (t *xmlTokenizer) Next() (xmlToken, error) {
	for {
		tok, err := t.dec.Token()
		if err != nil {
			return xmlToken{}, err
		}
		switch v := tok.(type) {
		case xml.StartElement:
			return xmlToken{Kind: startElement, Local: v.Name.Local}, nil
		case xml.EndElement:
			return xmlToken{Kind: endElement, Local: v.Name.Local}, nil
		case xml.CharData:
			return xmlToken{Kind: charData, Text: string(v)}, nil
		}
	}
}

// RequestDocument is what a PROPFIND or REPORT body asks for.
type RequestDocument struct {
	props    map[string]struct{}
	multiget bool
	hrefs    []string
}

// ParseRequestDocument parses a PROPFIND or REPORT body.
func ParseRequestDocument(body string) (*RequestDocument, error) {
	return parseRequestDocument(newXMLTokenizer(strings.NewReader(body)))
}

func parseRequestDocument(t tokenizer) (*RequestDocument, error) {
	doc := &RequestDocument{props: make(map[string]struct{})}
	seen := make(map[string]struct{})

	propDepth := 0
	inHref := false
	var href strings.Builder

	for {
		tok, err := t.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, wrapFramingError(err, "invalid request document")
		}

		switch tok.Kind {
		case startElement:
			if propDepth > 0 {
				doc.props[tok.Local] = struct{}{}
				propDepth++
			} else if tok.Local == "prop" {
				propDepth = 1
			}
			switch tok.Local {
			case "calendar-multiget":
				doc.multiget = true
			case "href":
				inHref = true
				href.Reset()
			}
		case endElement:
			if propDepth > 0 {
				propDepth--
			}
			if tok.Local == "href" && inHref {
				inHref = false
				value := strings.TrimSpace(href.String())
				if _, dup := seen[value]; value != "" && !dup {
					seen[value] = struct{}{}
					doc.hrefs = append(doc.hrefs, value)
				}
			}
		case charData:
			if inHref {
				href.WriteString(tok.Text)
			}
		}
	}

	return doc, nil
}

// Has reports whether the request asked for the property with the given
// local name.
func (d *RequestDocument) Has(name string) bool {
	if d == nil {
		return false
	}
	_, ok := d.props[name]
	return ok
}

// Multiget reports whether the body is a calendar-multiget naming at least
// one href.
func (d *RequestDocument) Multiget() bool {
	return d != nil && d.multiget && len(d.hrefs) > 0
}

func (d *RequestDocument) Hrefs() []string {
	if d == nil {
		return nil
	}
	return append([]string(nil), d.hrefs...)
}
