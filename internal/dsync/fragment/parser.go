package fragment

import (
	"strconv"

	"github.com/marmos91/syncmld/internal/dsync/wire"
)

// Parse walks a decoded SyncML message tree and yields its fragments in
// document order: one KindHeader fragment for <SyncHdr>, then one
// fragment per direct child of <SyncBody>, and a trailing KindFinal
// fragment if a <Final/> element was present.
//
// Any structural problem is reported as a *ParseError with the specific
// ErrorKind requires (INCOMPLETE_DATA / UNEXPECTED_DATA /
// INVALID_DATA / UNSPECIFIED); Parse never panics on malformed input.
func Parse(root *wire.Element) ([]Fragment, error) {
	if root == nil {
		return nil, newErr(ErrIncompleteData, "nil message root")
	}
	if root.Name != "SyncML" {
		return nil, newErr(ErrUnexpectedData, "root element is not SyncML")
	}

	hdrEl := root.Find("SyncHdr")
	if hdrEl == nil {
		return nil, newErr(ErrInvalidData, "missing SyncHdr")
	}
	hdr, err := parseHeader(hdrEl)
	if err != nil {
		return nil, err
	}

	bodyEl := root.Find("SyncBody")
	if bodyEl == nil {
		return nil, newErr(ErrInvalidData, "missing SyncBody")
	}

	fragments := make([]Fragment, 0, len(bodyEl.Children)+1)
	fragments = append(fragments, Fragment{Kind: KindHeader, Header: hdr})

	for _, child := range bodyEl.Children {
		frag, err := parseBodyElement(child)
		if err != nil {
			return nil, err
		}
		fragments = append(fragments, frag)
	}
	return fragments, nil
}

func parseBodyElement(el *wire.Element) (Fragment, error) {
	switch el.Name {
	case "Status":
		s, err := parseStatus(el)
		if err != nil {
			return Fragment{}, err
		}
		return Fragment{Kind: KindStatus, Status: s}, nil
	case "Alert":
		a, err := parseAlert(el)
		if err != nil {
			return Fragment{}, err
		}
		return Fragment{Kind: KindAlert, Alert: a}, nil
	case "Sync":
		s, err := parseSync(el)
		if err != nil {
			return Fragment{}, err
		}
		return Fragment{Kind: KindSync, Sync: s}, nil
	case "Map":
		m, err := parseMap(el)
		if err != nil {
			return Fragment{}, err
		}
		return Fragment{Kind: KindMap, Map: m}, nil
	case "Put":
		p, err := parsePut(el)
		if err != nil {
			return Fragment{}, err
		}
		return Fragment{Kind: KindPut, Put: p}, nil
	case "Get":
		g, err := parsePut(el)
		if err != nil {
			return Fragment{}, err
		}
		return Fragment{Kind: KindGet, Get: g}, nil
	case "Results":
		r, err := parseResults(el)
		if err != nil {
			return Fragment{}, err
		}
		return Fragment{Kind: KindResults, Results: r}, nil
	case "Final":
		return Fragment{Kind: KindFinal}, nil
	case "Add", "Replace", "Delete", "Copy", "Move", "Exec", "Atomic", "Sequence":
		c, err := parseCommand(el)
		if err != nil {
			return Fragment{}, err
		}
		return Fragment{Kind: KindCommand, Command: c}, nil
	default:
		return Fragment{}, newErr(ErrUnexpectedData, "unknown SyncBody element "+el.Name)
	}
}

func parseHeader(el *wire.Element) (*HeaderParams, error) {
	h := &HeaderParams{
		VerDTD: text(el, "VerDTD"),
		VerProto: text(el, "VerProto"),
		SessionID: text(el, "SessionID"),
		MsgID: text(el, "MsgID"),
		RespURI: text(el, "RespURI"),
		NoResp: el.Find("NoResp") != nil,
	}
	if h.VerDTD == "" || h.MsgID == "" {
		return nil, newErr(ErrInvalidData, "SyncHdr missing VerDTD or MsgID")
	}
	if target := el.Find("Target"); target != nil {
		h.TargetURI = text(target, "LocURI")
	}
	if source := el.Find("Source"); source != nil {
		h.SourceURI = text(source, "LocURI")
	}
	if cred := el.Find("Cred"); cred != nil {
		h.Cred = parseCred(cred)
	}
	if meta := el.Find("Meta"); meta != nil {
		m := parseMeta(meta)
		h.MaxMsgSize = m.MaxMsgSize
	}
	return h, nil
}

func parseCred(el *wire.Element) *CredParams {
	c := &CredParams{}
	if meta := el.Find("Meta"); meta != nil {
		c.Type = text(meta, "Type")
		c.NextNonce = text(meta, "NextNonce")
	}
	c.Data = text(el, "Data")
	return c
}

func parseMeta(el *wire.Element) *MetaParams {
	m := &MetaParams{
		Type: text(el, "Type"),
		Format: text(el, "Format"),
		Version: text(el, "Version"),
		NextNonce: text(el, "NextNonce"),
	}
	if sz := text(el, "Size"); sz != "" {
		m.Size, _ = strconv.ParseInt(sz, 10, 64)
	}
	if mms := text(el, "MaxMsgSize"); mms != "" {
		m.MaxMsgSize, _ = strconv.ParseInt(mms, 10, 64)
	}
	if mos := text(el, "MaxObjSize"); mos != "" {
		m.MaxObjSize, _ = strconv.ParseInt(mos, 10, 64)
	}
	if anchor := el.Find("Anchor"); anchor != nil {
		m.Anchor = &AnchorParams{Last: text(anchor, "Last"), Next: text(anchor, "Next")}
	}
	return m
}

func parseStatus(el *wire.Element) (*StatusParams, error) {
	s := &StatusParams{
		CmdID: text(el, "CmdID"),
		MsgRef: text(el, "MsgRef"),
		CmdRef: text(el, "CmdRef"),
		Cmd: text(el, "Cmd"),
	}
	if target := el.Find("TargetRef"); target != nil {
		s.TargetURI = target.Text
	}
	if source := el.Find("SourceRef"); source != nil {
		s.SourceURI = source.Text
	}
	data := text(el, "Data")
	if data == "" {
		return nil, newErr(ErrInvalidData, "Status missing Data")
	}
	code, err := strconv.Atoi(data)
	if err != nil {
		return nil, newErr(ErrInvalidData, "Status Data not numeric: "+data)
	}
	s.Data = code
	if chal := el.Find("Chal"); chal != nil {
		s.Chal = parseCred(chal)
	}
	return s, nil
}

func parseAlert(el *wire.Element) (*AlertParams, error) {
	a := &AlertParams{
		CmdID: text(el, "CmdID"),
		NoResp: el.Find("NoResp") != nil,
	}
	data := text(el, "Data")
	code, err := strconv.Atoi(data)
	if err != nil {
		return nil, newErr(ErrInvalidData, "Alert Data not numeric: "+data)
	}
	a.Code = code
	if target := el.Find("Item"); target != nil {
		if t := target.Find("Target"); t != nil {
			a.TargetURI = text(t, "LocURI")
		}
		if s := target.Find("Source"); s != nil {
			a.SourceURI = text(s, "LocURI")
		}
		if meta := target.Find("Meta"); meta != nil {
			a.Meta = parseMeta(meta)
		}
	}
	return a, nil
}

func parseItems(el *wire.Element) []*ItemParams {
	var items []*ItemParams
	for _, itemEl := range el.FindAll("Item") {
		item := &ItemParams{
			MoreData: itemEl.Find("MoreData") != nil,
		}
		if t := itemEl.Find("Target"); t != nil {
			item.TargetURI = text(t, "LocURI")
		}
		if s := itemEl.Find("Source"); s != nil {
			item.SourceURI = text(s, "LocURI")
		}
		if meta := itemEl.Find("Meta"); meta != nil {
			item.Meta = parseMeta(meta)
		}
		if d := itemEl.Find("Data"); d != nil {
			if len(d.Children) > 0 {
				item.DataElement = d.Children[0]
			} else {
				item.Data = d.Text
			}
		}
		items = append(items, item)
	}
	return items
}

var commandTypeByName = map[string]CommandType{
	"Add": CmdAdd,
	"Replace": CmdReplace,
	"Delete": CmdDelete,
	"Get": CmdGet,
	"Copy": CmdCopy,
	"Move": CmdMove,
	"Exec": CmdExec,
	"Atomic": CmdAtomic,
	"Sequence": CmdSequence,
}

func parseCommand(el *wire.Element) (*CommandParams, error) {
	ctype, ok := commandTypeByName[el.Name]
	if !ok {
		return nil, newErr(ErrUnexpectedData, "unsupported command "+el.Name)
	}
	c := &CommandParams{
		CommandType: ctype,
		CmdID: text(el, "CmdID"),
		NoResp: el.Find("NoResp") != nil,
		Items: parseItems(el),
	}
	if meta := el.Find("Meta"); meta != nil {
		c.Meta = parseMeta(meta)
	}
	if ctype == CmdAtomic || ctype == CmdSequence {
		for _, child := range el.Children {
			if _, known := commandTypeByName[child.Name]; known {
				nested, err := parseCommand(child)
				if err != nil {
					return nil, err
				}
				c.Commands = append(c.Commands, nested)
			}
		}
	}
	return c, nil
}

func parseSync(el *wire.Element) (*SyncParams, error) {
	s := &SyncParams{
		CmdID: text(el, "CmdID"),
		NoResp: el.Find("NoResp") != nil,
	}
	if target := el.Find("Target"); target != nil {
		s.TargetURI = text(target, "LocURI")
	}
	if source := el.Find("Source"); source != nil {
		s.SourceURI = text(source, "LocURI")
	}
	if n := text(el, "NumberOfChanges"); n != "" {
		s.NumberOfChanges, _ = strconv.Atoi(n)
	}
	for _, child := range el.Children {
		ctype, ok := commandTypeByName[child.Name]
		if !ok {
			continue
		}
		cmd, err := parseCommand(child)
		if err != nil {
			return nil, err
		}
		cmd.CommandType = ctype
		s.Commands = append(s.Commands, cmd)
	}
	return s, nil
}

func parseMap(el *wire.Element) (*MapParams, error) {
	m := &MapParams{CmdID: text(el, "CmdID")}
	if target := el.Find("Target"); target != nil {
		m.TargetURI = text(target, "LocURI")
	}
	if source := el.Find("Source"); source != nil {
		m.SourceURI = text(source, "LocURI")
	}
	for _, itemEl := range el.FindAll("MapItem") {
		mi := &MapItemParams{}
		if t := itemEl.Find("Target"); t != nil {
			mi.TargetURI = text(t, "LocURI")
		}
		if s := itemEl.Find("Source"); s != nil {
			mi.SourceURI = text(s, "LocURI")
		}
		m.Items = append(m.Items, mi)
	}
	if len(m.Items) == 0 {
		return nil, newErr(ErrInvalidData, "Map has no MapItem")
	}
	return m, nil
}

func parsePut(el *wire.Element) (*PutParams, error) {
	p := &PutParams{CmdID: text(el, "CmdID")}
	if meta := el.Find("Meta"); meta != nil {
		p.Meta = parseMeta(meta)
	}
	p.Items = parseItems(el)
	return p, nil
}

func parseResults(el *wire.Element) (*ResultsParams, error) {
	r := &ResultsParams{
		CmdID: text(el, "CmdID"),
		MsgRef: text(el, "MsgRef"),
		CmdRef: text(el, "CmdRef"),
	}
	if meta := el.Find("Meta"); meta != nil {
		r.Meta = parseMeta(meta)
	}
	r.Items = parseItems(el)
	return r, nil
}

func text(el *wire.Element, childName string) string {
	child := el.Find(childName)
	if child == nil {
		return ""
	}
	return child.Text
}
