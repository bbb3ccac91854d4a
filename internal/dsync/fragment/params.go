// Package fragment implements the Parser + Fragment Model: a
// streaming walk over a decoded wire.Element tree that yields a sequence
// of typed fragments in document order, or a typed ParseError.
//
// Grounded on this codebase's internal/protocol/nfs procedure Request/
// Response structs (one struct per wire shape, heavily doc-commented
// field by field) — here, one struct per SyncML element class instead of
// one per NFS procedure.
package fragment

import "github.com/marmos91/syncmld/internal/dsync/wire"

// AnchorParams carries the last/next anchor pair from a <Meta><Anchor>
// block.
type AnchorParams struct {
	Last string
	Next string
}

// MetaParams is the transparent contents of a <Meta> island: the optional
// type/format/size/version fields plus an optional anchor and max sizes
// relevant to Alert and item commands.
type MetaParams struct {
	Type string
	Format string
	Size int64
	Version string
	Anchor     *AnchorParams
	MaxMsgSize int64
	MaxObjSize int64
	NextNonce string
}

// HeaderParams mirrors <SyncHdr>.
type HeaderParams struct {
	VerDTD string
	VerProto string
	SessionID string
	MsgID string
	TargetURI string
	SourceURI string
	RespURI string
	NoResp bool
	Cred         *CredParams
	MaxMsgSize int64
}

// CredParams is the decoded <Cred> or <Chal> block: a base64 auth type
// plus the opaque encoded data. Type is the SyncML auth type
// string, e.g. "syncml:auth-basic" or "syncml:auth-md5". NextNonce is
// only populated on a <Chal>, carrying the MD5 nonce for the next attempt.
type CredParams struct {
	Type string
	Data string
	NextNonce string
}

// ItemParams is one <Item> inside a command.
type ItemParams struct {
	TargetURI string
	SourceURI string
	Meta      *MetaParams
	Data string
	MoreData bool

	// DataElement is set instead of Data when <Data> carries a nested
	// element tree rather than plain text — e.g. an inline <DevInf>
	// block in a Put/Get/Results exchange.
	DataElement *wire.Element
}

// CommandType tags the verb of a CommandParams.
type CommandType int

const (
	CmdAlert CommandType = iota
	CmdAdd
	CmdReplace
	CmdDelete
	CmdGet
	CmdCopy
	CmdMove
	CmdExec
	CmdAtomic
	CmdSequence
)

// CommandParams is a generic inbound command (Add/Replace/Delete/... or a
// nested Alert) inside a <Sync> block. Items carries the
// command's item list; Commands carries nested subcommands for
// Atomic/Sequence.
type CommandParams struct {
	CommandType CommandType
	CmdID string
	NoResp bool
	Meta        *MetaParams
	Items       []*ItemParams
	Commands    []*CommandParams

	// AlertCode is populated when CommandType == CmdAlert.
	AlertCode int
}

// SyncParams mirrors <Sync>: target/source database URIs, an
// optional item-count hint, and the ordered command list.
type SyncParams struct {
	CmdID string
	NoResp bool
	TargetURI string
	SourceURI string
	NumberOfChanges int
	Commands  []*CommandParams
}

// StatusParams mirrors <Status>.
type StatusParams struct {
	CmdID string
	MsgRef string
	CmdRef string
	Cmd string
	TargetURI string
	SourceURI string
	Data int
	Chal      *CredParams

	// Items carries one TargetRef/SourceRef pair per acknowledged item
	// when this Status addresses a batch of Add/Replace/Delete items
	// sharing one response code, in ascending item-index order. When
	// set, it takes precedence over the single TargetURI/SourceURI
	// fields above.
	Items []StatusItemRef
}

// StatusItemRef is one item's TargetRef/SourceRef pair inside a batched
// Status.
type StatusItemRef struct {
	TargetURI string
	SourceURI string
}

// AlertParams mirrors a top-level <Alert>.
type AlertParams struct {
	CmdID string
	NoResp bool
	Code int
	TargetURI string
	SourceURI string
	Meta      *MetaParams
}

// MapItemParams is one <MapItem> inside a <Map>.
type MapItemParams struct {
	TargetURI string
	SourceURI string
}

// MapParams mirrors <Map>.
type MapParams struct {
	CmdID string
	TargetURI string
	SourceURI string
	Items     []*MapItemParams
}

// PutParams mirrors <Put> (device capability push) or <Get> (pull
// request) — both share the same shape (a target URI plus an optional
// item list carrying the pushed/requested data), so Get reuses this type
// with an empty Items on request and populated on a Results response.
type PutParams struct {
	CmdID string
	Meta  *MetaParams
	Items []*ItemParams
}

// ResultsParams mirrors <Results>: a response to a prior
// <Get>/<Search>, correlated via MsgRef/CmdRef.
type ResultsParams struct {
	CmdID string
	MsgRef string
	CmdRef string
	Meta   *MetaParams
	Items  []*ItemParams
}

// Kind tags which field of Fragment is populated.
type Kind int

const (
	KindHeader Kind = iota
	KindStatus
	KindAlert
	KindSync
	KindMap
	KindPut
	KindGet
	KindResults
	KindCommand
	KindFinal
)

// Fragment is the sum type the Parser yields, in document order.
type Fragment struct {
	Kind Kind
	Header  *HeaderParams
	Status  *StatusParams
	Alert   *AlertParams
	Sync    *SyncParams
	Map     *MapParams
	Put     *PutParams
	Get     *PutParams
	Results *ResultsParams
	Command *CommandParams
}
