// Package ports declares the external-collaborator contracts the core
// depends on but does not implement: the storage backend, the
// transport, and the small credential/nonce/changelog persistence layer.
// Concrete implementations live under internal/storagemem,
// internal/transport/*, and internal/persistence/*.
package ports

import (
	"context"

	"github.com/marmos91/syncmld/internal/dsync/model"
	"github.com/marmos91/syncmld/internal/dsync/xerr"
)

// StorageBackend is the persistent item store behind one SyncTarget.
// Every mutating operation returns a positionally-aligned slice of
// *xerr.BackendError (nil entry = success for that item).
type StorageBackend interface {
	SourceURI() string
	MaxObjSize() int64
	SupportedFormats() []string
	PreferredFormat() string
	CTCapsXML(version model.ProtocolVersion) string

	GetAll(ctx context.Context) ([]string, error)
	GetModifications(ctx context.Context, since string) (newKeys, replacedKeys, deletedKeys []string, err error)

	NewItem(ctx context.Context, parentKey, itemType, format, version string) (model.SyncItem, error)
	GetSyncItem(ctx context.Context, key string) (model.SyncItem, error)
	GetSyncItems(ctx context.Context, keys []string) ([]model.SyncItem, error)

	AddItems(ctx context.Context, items []model.SyncItem) []*xerr.BackendError
	ReplaceItems(ctx context.Context, items []model.SyncItem) []*xerr.BackendError
	DeleteItems(ctx context.Context, keys []string) []*xerr.BackendError
}

// StorageProvider acquires/releases a StorageBackend by URI, once per
// session per URI.
type StorageProvider interface {
	Acquire(ctx context.Context, uri string) (StorageBackend, error)
	Release(ctx context.Context, uri string, backend StorageBackend) error
}

// ContentType is the wire encoding a Transport moves: XML, WbXML, or a SAN
// binary blob.
type ContentType int

const (
	ContentXML ContentType = iota
	ContentWbXML
	ContentSAN
)

func (c ContentType) MIMEType() string {
	switch c {
	case ContentXML:
		return "application/vnd.syncml+xml"
	case ContentWbXML:
		return "application/vnd.syncml+wbxml"
	case ContentSAN:
		return "application/vnd.syncml.notification"
	default:
		return ""
	}
}

// TransportEvent is a signal the Transport raises that the Session Handler
// must react to.
type TransportEvent int

const (
	EventTimeout TransportEvent = iota
	EventAuthNeeded
	EventFailed
	EventAborted
	EventInvalidContentType
	EventInvalidContent
)

// Transport delivers encoded message bytes and reports connection events.
// The Session Handler calls SendSyncML/SendSAN; Receive blocks (or is
// invoked from an event loop) until the next inbound message or a
// TransportEvent fires.
type Transport interface {
	SetRemoteLocURI(uri string)
	SendSyncML(ctx context.Context, data []byte, contentType ContentType) error
	SendSAN(ctx context.Context, data []byte) error
	Receive(ctx context.Context) ([]byte, ContentType, error)
	GetMaxTxSize() int64
	GetMaxRxSize() int64
}

// NoncePersister stores MD5 auth nonces keyed by (issuer, target).
type NoncePersister interface {
	Upsert(ctx context.Context, issuer, target, nonce string) error
	Get(ctx context.Context, issuer, target string) (string, bool, error)
	Clear(ctx context.Context, issuer, target string) error
	Generate() (string, error)
}

// ChangelogEntry is the persisted, not-yet-acknowledged delta for one
// (remoteDevice, sourceURI, direction) tuple.
type ChangelogEntry struct {
	Anchor string
	Added   []string
	Modified []string
	Removed []string
}

// ChangelogPersister stores per-target changelog state across sessions.
type ChangelogPersister interface {
	Load(ctx context.Context, remoteDevice, sourceURI string, direction model.SyncDirection) (*ChangelogEntry, error)
	Save(ctx context.Context, remoteDevice, sourceURI string, direction model.SyncDirection, entry *ChangelogEntry) error
}

// SessionSnapshot is the transactional write performed on a successful
// finalize: every target's anchors and mappings.
type SessionSnapshot struct {
	RemoteDevice string
	Targets      []TargetSnapshot
}

// TargetSnapshot is one target's persisted state.
type TargetSnapshot struct {
	SourceURI string
	LocalLastAnchor string
	RemoteLastAnchor string
	Mappings         []model.UIDMapping
}

// SessionSaver commits a SessionSnapshot transactionally.
type SessionSaver interface {
	SaveSession(ctx context.Context, snapshot SessionSnapshot) error
}
