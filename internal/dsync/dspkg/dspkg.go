// Package dspkg implements the outbound package contract: pluggable
// producers of wire content drained by the Response Generator, one
// variant per package kind (Alert, Cred, DevInf, Sync, Map, Final).
//
// Grounded on this codebase's transfer.Writer / io.WriterTo split (a small
// "write what fits, report what's left" interface reused across multiple
// producers) — here reused across the six SyncML package kinds instead of
// across transfer chunk types.
package dspkg

import (
	"context"

	"github.com/marmos91/syncmld/internal/dsync/model"
	"github.com/marmos91/syncmld/internal/dsync/target"
	"github.com/marmos91/syncmld/internal/dsync/wire"
)

// Package is the abstract producer of "write(message,
// remainingBytes) → done?". It appends its content as a child of body and
// reports whether it has fully drained (true) or must be invoked again on
// a subsequent message (false).
type Package interface {
	Write(body *wire.Element, remainingBytes int) bool
}

func anchorMeta(last, next string) *wire.Element {
	meta := wire.NewElement(wire.NSSyncML, "Meta")
	a := meta.AddChild(wire.NewElement(wire.NSMetInf, "Anchor"))
	if last != "" {
		a.AddText("Last", last)
	}
	if next != "" {
		a.AddText("Next", next)
	}
	return meta
}

// AlertPackage writes a single <Alert> element and is always done after
// one Write call.
type AlertPackage struct {
	CmdID string
	Code int
	SourceURI string
	TargetURI string
	LocalLastAnchor string
	LocalNextAnchor string

	written bool
}

func (p *AlertPackage) Write(body *wire.Element, _ int) bool {
	if p.written {
		return true
	}
	alert := body.AddChild(wire.NewElement(wire.NSSyncML, "Alert"))
	alert.AddText("CmdID", p.CmdID)
	alert.AddText("Data", itoa(p.Code))
	if p.SourceURI != "" || p.TargetURI != "" {
		item := alert.AddChild(wire.NewElement(wire.NSSyncML, "Item"))
		if p.TargetURI != "" {
			t := item.AddChild(wire.NewElement(wire.NSSyncML, "Target"))
			t.AddText("LocURI", p.TargetURI)
		}
		if p.SourceURI != "" {
			s := item.AddChild(wire.NewElement(wire.NSSyncML, "Source"))
			s.AddText("LocURI", p.SourceURI)
		}
		if p.LocalLastAnchor != "" || p.LocalNextAnchor != "" {
			item.AddChild(anchorMeta(p.LocalLastAnchor, p.LocalNextAnchor))
		}
	}
	p.written = true
	return true
}

// AuthenticationPackage writes a <Cred> block; the caller is responsible
// for attaching it under the header element produced by the Response
// Generator.
type AuthenticationPackage struct {
	Type model.AuthType
	Data string // already-encoded credential value

	written bool
}

// BuildCred returns the <Cred> element to splice into <SyncHdr>.
func (p *AuthenticationPackage) BuildCred() *wire.Element {
	cred := wire.NewElement(wire.NSSyncML, "Cred")
	meta := cred.AddChild(wire.NewElement(wire.NSSyncML, "Meta"))
	typ := meta.AddChild(wire.NewElement(wire.NSMetInf, "Type"))
	switch p.Type {
	case model.AuthBasic:
		typ.Text = "syncml:auth-basic"
	case model.AuthMD5:
		typ.Text = "syncml:auth-md5"
	}
	cred.AddText("Data", p.Data)
	return cred
}

func (p *AuthenticationPackage) Write(_ *wire.Element, _ int) bool {
	p.written = true
	return true
}

// DevInfPackage writes the devinfo exchange shape (Put/Get/Results).
// The actual shape is pre-decided by the caller (the Device-Info Handler)
// and carried as pre-built elements — dspkg does not know about
// devinfo.Handler to avoid an import cycle.
type DevInfPackage struct {
	TargetURI string
	Put       *wire.Element // nil if this exchange has no Put
	Get       *wire.Element // nil if this exchange has no Get
	Results   *wire.Element // nil if this exchange has no Results

	written bool
}

func (p *DevInfPackage) Write(body *wire.Element, _ int) bool {
	if p.written {
		return true
	}
	if p.Put != nil {
		body.AddChild(p.Put)
	}
	if p.Results != nil {
		body.AddChild(p.Results)
	}
	if p.Get != nil {
		body.AddChild(p.Get)
	}
	p.written = true
	return true
}

// LocalChangesPackage writes one <Sync> wrapper containing up to
// MaxChangesPerMessage item commands, chunking items larger than
// LargeObjectThreshold across messages.
type LocalChangesPackage struct {
	CmdID string
	SourceURI string
	TargetURI string
	Target               *target.Target
	Role model.Role
	MaxChangesPerMessage int
	LargeObjectThreshold int64

	// Prefetcher, if set, is consulted before falling back to a direct
	// blocking Target.Storage.GetSyncItem call — see
	// internal/dsync/target.Prefetcher.
	Prefetcher *target.Prefetcher

	pending    []pendingChange
	started bool
	chunkState *chunkState
	nextCmdID int
}

type changeKind int

const (
	changeAdd changeKind = iota
	changeModify
	changeDelete
)

type pendingChange struct {
	kind changeKind
	key string
}

type chunkState struct {
	key string
	offset int64
}

func (p *LocalChangesPackage) ensureStarted() {
	if p.started {
		return
	}
	p.started = true
	changes := p.Target.LocalChanges()
	if changes == nil {
		return
	}
	for k := range changes.Added {
		p.pending = append(p.pending, pendingChange{changeAdd, string(k)})
	}
	for k := range changes.Modified {
		p.pending = append(p.pending, pendingChange{changeModify, string(k)})
	}
	for k := range changes.Removed {
		p.pending = append(p.pending, pendingChange{changeDelete, string(k)})
	}
}

// Write implements Package. Returns true only when every local change has
// been written.
func (p *LocalChangesPackage) Write(body *wire.Element, remainingBytes int) bool {
	p.ensureStarted()
	if len(p.pending) == 0 {
		return true
	}

	sync := body.AddChild(wire.NewElement(wire.NSSyncML, "Sync"))
	sync.AddText("CmdID", p.CmdID)
	t := sync.AddChild(wire.NewElement(wire.NSSyncML, "Target"))
	t.AddText("LocURI", p.TargetURI)
	s := sync.AddChild(wire.NewElement(wire.NSSyncML, "Source"))
	s.AddText("LocURI", p.SourceURI)

	if p.Prefetcher != nil {
		for i, c := range p.pending {
			if i >= p.MaxChangesPerMessage {
				break
			}
			if c.kind != changeDelete {
				p.Prefetcher.Prefetch(context.Background(), model.SyncItemKey(c.key))
			}
		}
	}

	written := 0
	for written < p.MaxChangesPerMessage && len(p.pending) > 0 {
		if wire.SizeEstimate(sync) >= remainingBytes {
			break
		}
		change := p.pending[0]
		if change.kind == changeDelete {
			p.writeWhole(sync, change, nil)
			p.pending = p.pending[1:]
			written++
			continue
		}
		item, err := p.fetchItem(change.key)
		if err != nil || item == nil {
			p.pending = p.pending[1:]
			continue
		}
		if item.Size() > p.LargeObjectThreshold {
			p.writeChunk(sync, change, item, remainingBytes-wire.SizeEstimate(sync))
			if p.chunkState == nil {
				p.pending = p.pending[1:]
			}
		} else {
			p.writeWhole(sync, change, item)
			p.pending = p.pending[1:]
		}
		written++
	}
	return len(p.pending) == 0
}

// fetchItem reads a staged item, preferring a completed Prefetcher result
// over a fresh blocking backend call.
func (p *LocalChangesPackage) fetchItem(key string) (model.SyncItem, error) {
	if p.Prefetcher != nil {
		if item, err, ok := p.Prefetcher.Take(model.SyncItemKey(key)); ok {
			return item, err
		}
	}
	return p.Target.Storage.GetSyncItem(context.Background(), key)
}

func (p *LocalChangesPackage) cmdFor(kind changeKind) string {
	switch kind {
	case changeAdd:
		return "Add"
	case changeModify:
		return "Replace"
	default:
		return "Delete"
	}
}

func (p *LocalChangesPackage) writeWhole(sync *wire.Element, change pendingChange, item model.SyncItem) {
	cmd := sync.AddChild(wire.NewElement(wire.NSSyncML, "Replace"))
	cmd.Name = p.cmdFor(change.kind)
	p.nextCmdID++
	cmd.AddText("CmdID", itoa(p.nextCmdID))

	if change.kind == changeDelete {
		sourceItem := cmd.AddChild(wire.NewElement(wire.NSSyncML, "Item"))
		src := sourceItem.AddChild(wire.NewElement(wire.NSSyncML, "Source"))
		src.AddText("LocURI", change.key)
		return
	}

	itemEl := cmd.AddChild(wire.NewElement(wire.NSSyncML, "Item"))
	src := itemEl.AddChild(wire.NewElement(wire.NSSyncML, "Source"))
	src.AddText("LocURI", item.Key())
	meta := itemEl.AddChild(wire.NewElement(wire.NSSyncML, "Meta"))
	meta.AddChild(wire.NewElement(wire.NSMetInf, "Type")).Text = item.Type()
	data, _ := item.Read(0, item.Size())
	itemEl.AddText("Data", string(data))
}

func (p *LocalChangesPackage) writeChunk(sync *wire.Element, change pendingChange, item model.SyncItem, budget int) {
	if p.chunkState == nil {
		p.chunkState = &chunkState{key: change.key}
	}
	remaining := item.Size() - p.chunkState.offset
	chunkSize := int64(budget / 2)
	if chunkSize <= 0 {
		chunkSize = 1
	}
	last := false
	if chunkSize >= remaining {
		chunkSize = remaining
		last = true
	}
	data, _ := item.Read(p.chunkState.offset, chunkSize)

	cmd := sync.AddChild(wire.NewElement(wire.NSSyncML, p.cmdFor(change.kind)))
	p.nextCmdID++
	cmd.AddText("CmdID", itoa(p.nextCmdID))
	itemEl := cmd.AddChild(wire.NewElement(wire.NSSyncML, "Item"))
	src := itemEl.AddChild(wire.NewElement(wire.NSSyncML, "Source"))
	src.AddText("LocURI", item.Key())
	meta := itemEl.AddChild(wire.NewElement(wire.NSSyncML, "Meta"))
	meta.AddChild(wire.NewElement(wire.NSMetInf, "Type")).Text = item.Type()
	if p.chunkState.offset == 0 {
		size := meta.AddChild(wire.NewElement(wire.NSMetInf, "Size"))
		size.Text = itoa64(item.Size())
	}
	itemEl.AddText("Data", string(data))
	if !last {
		itemEl.AddChild(wire.NewElement(wire.NSSyncML, "MoreData"))
	}

	p.chunkState.offset += chunkSize
	if last {
		p.chunkState = nil
	}
}

// LocalMappingsPackage writes <Map> with at least one <MapItem>,
// continuing until a size threshold is hit.
type LocalMappingsPackage struct {
	CmdID string
	SourceURI string
	TargetURI string
	Mappings  []model.UIDMapping

	idx int
}

// Done reports whether every mapping has been written: true iff the
// mapping list is empty.
func (p *LocalMappingsPackage) Done() bool {
	return len(p.Mappings) == 0
}

func (p *LocalMappingsPackage) Write(body *wire.Element, remainingBytes int) bool {
	if len(p.Mappings) == 0 {
		return true
	}
	m := body.AddChild(wire.NewElement(wire.NSSyncML, "Map"))
	m.AddText("CmdID", p.CmdID)
	t := m.AddChild(wire.NewElement(wire.NSSyncML, "Target"))
	t.AddText("LocURI", p.TargetURI)
	s := m.AddChild(wire.NewElement(wire.NSSyncML, "Source"))
	s.AddText("LocURI", p.SourceURI)

	written := 0
	for len(p.Mappings) > 0 {
		if written > 0 && wire.SizeEstimate(m) >= remainingBytes {
			break
		}
		mapping := p.Mappings[0]
		mi := m.AddChild(wire.NewElement(wire.NSSyncML, "MapItem"))
		t := mi.AddChild(wire.NewElement(wire.NSSyncML, "Target"))
		t.AddText("LocURI", mapping.LocalUID)
		s := mi.AddChild(wire.NewElement(wire.NSSyncML, "Source"))
		s.AddText("LocURI", mapping.RemoteUID)
		p.Mappings = p.Mappings[1:]
		written++
	}
	return len(p.Mappings) == 0
}

// FinalPackage writes <Final/> and is always done after one Write call.
type FinalPackage struct {
	written bool
}

func (p *FinalPackage) Write(body *wire.Element, _ int) bool {
	if p.written {
		return true
	}
	body.AddChild(wire.NewElement(wire.NSSyncML, "Final"))
	p.written = true
	return true
}

func itoa(n int) string {
	return itoa64(int64(n))
}

func itoa64(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
