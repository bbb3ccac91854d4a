package wire

import (
	"bytes"
	"fmt"
)

// wbxmlVersion12 is the WBXML version byte for WBXML 1.2, the only
// version this codec emits or accepts.
const wbxmlVersion12 byte = 0x03

// wbxmlPublicIDUnknown selects the "unknown or missing public identifier"
// well-known value (mb_u_int32 value 1), followed by an inline charset
// string table reference. SyncML WBXML commonly ships without a
// registered public identifier; the per-element xmlns attribute already
// disambiguates namespace.
const wbxmlPublicIDUnknown byte = 0x01

// charsetUTF8 is the IANA MIBenum for UTF-8 (106), encoded as mb_u_int32.
const charsetUTF8 = 106

// EncodeWbXML serializes an Element tree to a WBXML byte stream.
//
// Version 1.2, no string table (STR_T length is always 0; all text is
// emitted as inline STR_I), UTF-8 payload verbatim.
func EncodeWbXML(root *Element) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(wbxmlVersion12)
	writeMBUint32(&buf, uint32(wbxmlPublicIDUnknown))
	writeMBUint32(&buf, charsetUTF8)
	writeMBUint32(&buf, 0) // string table length: MUST NOT be used

	enc := &wbxmlEncoder{buf: &buf, page: 0}
	if err := enc.encodeElement(root); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type wbxmlEncoder struct {
	buf  *bytes.Buffer
	page byte
}

func (e *wbxmlEncoder) switchPageIfNeeded(ns Namespace) error {
	page, ok := nsPage[ns]
	if !ok {
		return fmt.Errorf("wbxml: unknown namespace %v", ns)
	}
	if page != e.page {
		e.buf.WriteByte(tokSwitchPage)
		e.buf.WriteByte(page)
		e.page = page
	}
	return nil
}

func (e *wbxmlEncoder) encodeElement(el *Element) error {
	if err := e.switchPageIfNeeded(el.NS); err != nil {
		return err
	}
	tok, ok := tokenFor(el.NS, el.Name)
	if !ok {
		return fmt.Errorf("wbxml: no token for element %q in namespace %d", el.Name, el.NS)
	}

	hasContent := el.Text != "" || len(el.Children) > 0
	if hasContent {
		e.buf.WriteByte(tok | attrFlag)
	} else {
		e.buf.WriteByte(tok)
	}

	if el.Text != "" {
		e.writeInlineString(el.Text)
	}
	for _, child := range el.Children {
		if err := e.encodeElement(child); err != nil {
			return err
		}
	}
	if hasContent {
		// restore namespace page in case a child switched it, then close
		if err := e.switchPageIfNeeded(el.NS); err != nil {
			return err
		}
		e.buf.WriteByte(tokEnd)
	}
	return nil
}

func (e *wbxmlEncoder) writeInlineString(s string) {
	e.buf.WriteByte(tokStrI)
	e.buf.WriteString(s) // UTF-8 verbatim, no string table
	e.buf.WriteByte(0x00)
}

// writeMBUint32 encodes v as a WBXML multi-byte uint32 (mb_u_int32): base-128,
// continuation bit set on every byte but the last.
func writeMBUint32(buf *bytes.Buffer, v uint32) {
	var stack [5]byte
	n := 0
	stack[n] = byte(v & 0x7F)
	n++
	v >>= 7
	for v > 0 {
		stack[n] = byte(v&0x7F) | 0x80
		n++
		v >>= 7
	}
	for i := n - 1; i >= 0; i-- {
		buf.WriteByte(stack[i])
	}
}

func readMBUint32(data []byte, pos int) (uint32, int, error) {
	var v uint32
	for {
		if pos >= len(data) {
			return 0, pos, fmt.Errorf("wbxml: truncated mb_u_int32")
		}
		b := data[pos]
		pos++
		v = (v << 7) | uint32(b&0x7F)
		if b&0x80 == 0 {
			break
		}
	}
	return v, pos, nil
}

// DecodeWbXML parses a WBXML byte stream back into an Element tree.
func DecodeWbXML(data []byte) (*Element, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("wbxml: empty input")
	}
	pos := 0
	version := data[pos]
	pos++
	if version != wbxmlVersion12 {
		return nil, fmt.Errorf("wbxml: unsupported version 0x%02x", version)
	}

	var err error
	_, pos, err = readMBUint32(data, pos) // public id
	if err != nil {
		return nil, err
	}
	_, pos, err = readMBUint32(data, pos) // charset
	if err != nil {
		return nil, err
	}
	strTabLen, pos, err := readMBUint32(data, pos)
	if err != nil {
		return nil, err
	}
	pos += int(strTabLen) // skip string table (must be empty, but tolerate)

	dec := &wbxmlDecoder{data: data, pos: pos, page: 0}
	root, err := dec.decodeElement()
	if err != nil {
		return nil, err
	}
	return root, nil
}

type wbxmlDecoder struct {
	data []byte
	pos int
	page byte
}

func (d *wbxmlDecoder) decodeElement() (*Element, error) {
	if d.pos >= len(d.data) {
		return nil, fmt.Errorf("wbxml: truncated stream")
	}

	// Consume any leading SWITCH_PAGE bytes.
	for d.data[d.pos] == tokSwitchPage {
		if d.pos+1 >= len(d.data) {
			return nil, fmt.Errorf("wbxml: truncated switch page")
		}
		d.page = d.data[d.pos+1]
		d.pos += 2
		if d.pos >= len(d.data) {
			return nil, fmt.Errorf("wbxml: truncated stream after switch page")
		}
	}

	raw := d.data[d.pos]
	d.pos++
	tok := raw &^ attrFlag
	hasContent := raw&attrFlag != 0

	ns, ok := pageNS[d.page]
	if !ok {
		return nil, fmt.Errorf("wbxml: unknown page %d", d.page)
	}
	name, ok := nameFor(ns, tok)
	if !ok {
		return nil, fmt.Errorf("wbxml: unknown token 0x%02x in namespace %d", tok, ns)
	}

	el := &Element{Name: name, NS: ns}
	if !hasContent {
		return el, nil
	}

	for {
		if d.pos >= len(d.data) {
			return nil, fmt.Errorf("wbxml: truncated element body for %q", name)
		}

		switch d.data[d.pos] {
		case tokEnd:
			d.pos++
			return el, nil
		case tokStrI:
			d.pos++
			text, err := d.readInlineString()
			if err != nil {
				return nil, err
			}
			el.Text += text
		case tokSwitchPage:
			if d.pos+1 >= len(d.data) {
				return nil, fmt.Errorf("wbxml: truncated switch page in %q", name)
			}
			d.page = d.data[d.pos+1]
			d.pos += 2
		default:
			child, err := d.decodeElement()
			if err != nil {
				return nil, err
			}
			el.Children = append(el.Children, child)
		}
	}
}

func (d *wbxmlDecoder) readInlineString() (string, error) {
	start := d.pos
	for d.pos < len(d.data) && d.data[d.pos] != 0x00 {
		d.pos++
	}
	if d.pos >= len(d.data) {
		return "", fmt.Errorf("wbxml: unterminated inline string")
	}
	s := string(d.data[start:d.pos])
	d.pos++ // consume NUL
	return s, nil
}
