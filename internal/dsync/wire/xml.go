package wire

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// nsXMLNS maps a Namespace to the xmlns value an element carries when it
// is the root of that namespace's subtree.
var nsXMLNS = map[Namespace]string{
	NSSyncML: XMLNSSyncML12,
	NSMetInf: XMLNSMetInf,
	NSDevInf: XMLNSDevInf,
}

var xmlnsNS = map[string]Namespace{
	XMLNSSyncML11: NSSyncML,
	XMLNSSyncML12: NSSyncML,
	XMLNSMetInf: NSMetInf,
	XMLNSDevInf: NSDevInf,
}

// EncodeXML serializes an Element tree to an XML byte stream. An xmlns
// attribute is emitted whenever a child's namespace differs from its
// parent's, matching how SyncML messages nest <Meta>/<DevInf> islands
// inside the outer SyncML namespace.
func EncodeXML(root *Element) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	if err := writeXMLElement(&buf, root, NSSyncML); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeXMLElement(buf *bytes.Buffer, el *Element, parentNS Namespace) error {
	buf.WriteByte('<')
	buf.WriteString(el.Name)

	if el.NS != parentNS {
		xmlns, ok := nsXMLNS[el.NS]
		if !ok {
			return fmt.Errorf("wire: unknown namespace %d", el.NS)
		}
		buf.WriteString(` xmlns="`)
		buf.WriteString(xmlns)
		buf.WriteByte('"')
	}
	for k, v := range el.Attrs {
		buf.WriteByte(' ')
		buf.WriteString(k)
		buf.WriteString(`="`)
		xml.EscapeText(buf, []byte(v))
		buf.WriteByte('"')
	}

	if el.Text == "" && len(el.Children) == 0 {
		buf.WriteString("/>")
		return nil
	}
	buf.WriteByte('>')

	if el.Text != "" {
		if el.CDATA {
			buf.WriteString("<![CDATA[")
			buf.WriteString(strings.ReplaceAll(el.Text, "]]>", "]]]]><![CDATA[>"))
			buf.WriteString("]]>")
		} else {
			xml.EscapeText(buf, []byte(el.Text))
		}
	}
	for _, child := range el.Children {
		if err := writeXMLElement(buf, child, el.NS); err != nil {
			return err
		}
	}

	buf.WriteString("</")
	buf.WriteString(el.Name)
	buf.WriteByte('>')
	return nil
}

// DecodeXML parses an XML byte stream into an Element tree, tracking
// namespace switches via the xmlns attribute.
func DecodeXML(data []byte) (*Element, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = true

	var stack []*Element
	var root *Element
	nsStack := []Namespace{NSSyncML}

	for {
		tok, err := dec.Token()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("wire: xml decode: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			ns := nsStack[len(nsStack)-1]
			for _, a := range t.Attr {
				if a.Name.Local == "xmlns" {
					if mapped, ok := xmlnsNS[a.Value]; ok {
						ns = mapped
					}
				}
			}
			el := &Element{Name: t.Name.Local, NS: ns}
			for _, a := range t.Attr {
				if a.Name.Local == "xmlns" {
					continue
				}
				el.SetAttr(a.Name.Local, a.Value)
			}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, el)
			} else {
				root = el
			}
			stack = append(stack, el)
			nsStack = append(nsStack, ns)
		case xml.EndElement:
			if len(stack) == 0 {
				return nil, fmt.Errorf("wire: unbalanced end element %q", t.Name.Local)
			}
			stack = stack[:len(stack)-1]
			nsStack = nsStack[:len(nsStack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				s := strings.TrimSpace(string(t))
				if s != "" {
					stack[len(stack)-1].Text += string(t)
				}
			}
		}
	}
	if root == nil {
		return nil, fmt.Errorf("wire: no root element found")
	}
	return root, nil
}
