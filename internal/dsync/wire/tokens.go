package wire

// WbXML global tokens reserved by the WBXML 1.2 spec itself (not
// namespace-specific): these occupy the low byte values so per-namespace
// element tokens start at 0x05.
const (
	tokSwitchPage byte = 0x00
	tokEnd byte = 0x01
	tokEntity byte = 0x02
	tokStrI byte = 0x03
	tokLiteral byte = 0x04

	// attrFlag marks an element as carrying content (vs. being self-closing);
	// set in bit 6 per WBXML convention.
	attrFlag byte = 0x40
)

// elementTokens maps element name → WBXML tag token, one table per
// namespace page (SyncML, MetInf, DevInf). Codes start at 0x05 to leave
// the WBXML-reserved low codes free. This table need not match any
// externally published byte assignment: what must hold is that encode
// and decode agree, and that switching namespace page mid-stream
// (SWITCH_PAGE) is honored both ways.
var elementTokens = map[Namespace]map[string]byte{
	NSSyncML: {
		"SyncML":    0x05,
		"SyncHdr":   0x06,
		"SyncBody":  0x07,
		"Status":    0x08,
		"Chal":      0x09,
		"Cred":      0x0A,
		"Data":      0x0B,
		"Meta":      0x0C,
		"SessionID": 0x0D,
		"MsgID":     0x0E,
		"CmdID":     0x0F,
		"MsgRef":    0x10,
		"CmdRef":    0x11,
		"Cmd":       0x12,
		"Target":    0x13,
		"Source":    0x14,
		"LocURI":    0x15,
		"LocName":   0x16,
		"VerDTD":    0x17,
		"VerProto":  0x18,
		"TargetRef": 0x19,
		"SourceRef": 0x1A,
		"RespURI":   0x1B,
		"NoResp":    0x1C,
		"NoResults": 0x1D,
		"Alert":     0x1E,
		"Sync":      0x1F,
		"Add":       0x20,
		"Replace":   0x21,
		"Delete":    0x22,
		"Get":       0x23,
		"Put":       0x24,
		"Results":   0x25,
		"Map":       0x26,
		"MapItem":   0x27,
		"Final":     0x28,
		"Item":      0x29,
		"Archive":   0x2A,
		"SftDel":    0x2B,
		"MoreData":  0x2C,
		"NumberOfChanges": 0x2D,
		"Move":      0x2E,
		"Copy":      0x2F,
		"Exec":      0x30,
		"Atomic":    0x31,
		"Sequence":  0x32,
	},
	NSMetInf: {
		"Meta":     0x05,
		"Anchor":   0x06,
		"Last":     0x07,
		"Next":     0x08,
		"Type":     0x09,
		"Format":   0x0A,
		"Size":     0x0B,
		"Version":  0x0C,
		"MaxMsgSize": 0x0D,
		"MaxObjSize": 0x0E,
		"NextNonce": 0x0F,
		"Mem":      0x10,
		"SharedMem": 0x11,
		"FreeMem":  0x12,
		"FreeID":   0x13,
		"MaxID":    0x14,
		"EMI":      0x15,
	},
	NSDevInf: {
		"DevInf":     0x05,
		"VerDTD":     0x06,
		"Man":        0x07,
		"Mod":        0x08,
		"OEM":        0x09,
		"FwV":        0x0A,
		"SwV":        0x0B,
		"HwV":        0x0C,
		"DevID":      0x0D,
		"DevTyp":     0x0E,
		"UTC":        0x0F,
		"SupportLargeObjs":       0x10,
		"SupportNumberOfChanges": 0x11,
		"DataStore":  0x12,
		"SourceRef":  0x13,
		"Rx-Pref":    0x14,
		"Tx-Pref":    0x15,
		"Rx":         0x16,
		"Tx":         0x17,
		"CTCap":      0x18,
		"CTType":     0x19,
		"VerCT":      0x1A,
		"DSMem":      0x1B,
		"MaxGUIDSize": 0x1C,
	},
}

var reverseElementTokens = func() map[Namespace]map[byte]string {
	out := make(map[Namespace]map[byte]string, len(elementTokens))
	for ns, table := range elementTokens {
		inv := make(map[byte]string, len(table))
		for name, tok := range table {
			inv[tok] = name
		}
		out[ns] = inv
	}
	return out
}()

// nsPage maps a Namespace to its WBXML SWITCH_PAGE index.
var nsPage = map[Namespace]byte{
	NSSyncML: 0,
	NSMetInf: 1,
	NSDevInf: 2,
}

var pageNS = map[byte]Namespace{
	0: NSSyncML,
	1: NSMetInf,
	2: NSDevInf,
}

func tokenFor(ns Namespace, name string) (byte, bool) {
	table, ok := elementTokens[ns]
	if !ok {
		return 0, false
	}
	tok, ok := table[name]
	return tok, ok
}

func nameFor(ns Namespace, tok byte) (string, bool) {
	table, ok := reverseElementTokens[ns]
	if !ok {
		return "", false
	}
	name, ok := table[tok]
	return name, ok
}
