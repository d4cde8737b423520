package mapping

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	log "github.com/sirupsen/logrus"
)

// elements that describe result or cache wiring; rows are mapped by the
// session, so these are skipped.
var ignoredXMLElements = map[string]struct{}{
	"resultMap":    {},
	"parameterMap": {},
	"cache":        {},
	"cache-ref":    {},
}

func parseXML(resource string, data []byte) (*document, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var doc *document
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if doc != nil {
			return nil, fmt.Errorf("unexpected element <%s> after <mapper>", start.Name.Local)
		}
		if start.Name.Local != "mapper" {
			return nil, fmt.Errorf("root element must be <mapper>, got <%s>", start.Name.Local)
		}
		ns := strings.TrimSpace(attr(start, "namespace"))
		if ns == "" {
			return nil, fmt.Errorf("<mapper> requires a namespace attribute")
		}
		doc = &document{namespace: ns}
		if err := parseMapperBody(dec, doc, resource); err != nil {
			return nil, err
		}
	}
	if doc == nil {
		return nil, fmt.Errorf("no <mapper> element found")
	}
	return doc, nil
}

func parseMapperBody(dec *xml.Decoder, doc *document, resource string) error {
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return io.ErrUnexpectedEOF
			}
			return err
		}
		switch t := tok.(type) {
		case xml.EndElement:
			return nil
		case xml.StartElement:
			name := t.Name.Local
			switch {
			case Kind(name).Valid():
				parts, err := readBody(dec, name)
				if err != nil {
					return err
				}
				if err := doc.addStatement(attr(t, "id"), Kind(name), parts, resource); err != nil {
					return err
				}
			case name == "sql":
				parts, err := readBody(dec, name)
				if err != nil {
					return err
				}
				if err := doc.addFragment(attr(t, "id"), parts, resource); err != nil {
					return err
				}
			default:
				if _, ok := ignoredXMLElements[name]; !ok {
					return fmt.Errorf("unsupported element <%s> in namespace [%s]", name, doc.namespace)
				}
				log.Debugf("skipping <%s> in namespace [%s]", name, doc.namespace)
				if err := dec.Skip(); err != nil {
					return err
				}
			}
		}
	}
}

// readBody collects the text and <include> references of one statement or
// fragment up to its end tag.
func readBody(dec *xml.Decoder, element string) ([]part, error) {
	var parts []part
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
		switch t := tok.(type) {
		case xml.CharData:
			parts = append(parts, part{text: string(t)})
		case xml.StartElement:
			if t.Name.Local != "include" {
				return nil, fmt.Errorf("dynamic element <%s> inside <%s> is not supported", t.Name.Local, element)
			}
			ref := strings.TrimSpace(attr(t, "refid"))
			if ref == "" {
				return nil, fmt.Errorf("<include> requires a refid attribute")
			}
			parts = append(parts, part{ref: ref})
			if err := dec.Skip(); err != nil {
				return nil, err
			}
		case xml.EndElement:
			return parts, nil
		}
	}
}

func attr(el xml.StartElement, name string) string {
	for _, a := range el.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}
