// Package target implements the Sync Target: the per-datastore binding
// held for the lifetime of one session — sync mode, anchors, the
// UID-mapping table, and the lazily-computed local-changes manifest.
//
// Grounded on _teacher_ref/transfer/manager.go's mutex-guarded map shape:
// a Target is mutated from a single session goroutine for fragment
// dispatch but its mapping table and Storage handle are read concurrently
// by packages draining into an outbound message, so access is guarded the
// same way TransferManager guards its upload-tracking maps.
package target

import (
	"sync"

	"github.com/marmos91/syncmld/internal/dsync/model"
	"github.com/marmos91/syncmld/internal/dsync/ports"
)

// SyncMode is the negotiated direction, type, and initiating role for one
// target's sync pass.
type SyncMode struct {
	Direction model.SyncDirection
	Type      model.SyncType
	Initiator model.Role
}

// Target is one active datastore binding within a session: the backend
// handle, the source/target URIs, the anchor pairs, the UID-mapping
// table, and the lazily-computed local-changes manifest.
//
// Zero value is not usable; construct with New.
type Target struct {
	Storage ports.StorageBackend

	SourceDatabase string
	TargetDatabase string

	Mode SyncMode

	LocalLastAnchor  string
	LocalNextAnchor  string
	RemoteLastAnchor string
	RemoteNextAnchor string

	mu           sync.RWMutex
	forward      map[string]string // remoteUID -> localUID
	reverse      map[string]string // localUID -> remoteUID
	localChanges *model.LocalChanges
	reverted     bool
}

// New returns a Target bound to backend, addressed by sourceURI/targetURI,
// with the given initial sync mode. Anchors and mappings are empty until
// the caller loads persisted state (see internal/dsync/session.Handler.Prepare).
func New(storage ports.StorageBackend, sourceURI, targetURI string, mode SyncMode) *Target {
	return &Target{
		Storage:        storage,
		SourceDatabase: sourceURI,
		TargetDatabase: targetURI,
		Mode:           mode,
		forward:        make(map[string]string),
		reverse:        make(map[string]string),
	}
}

// AnchorsMatch reports whether remoteLast is consistent with the stored
// LocalLastAnchor for a fast sync. Slow and refresh modes never mismatch
// here — anchor comparison only gates fast sync. An empty remoteLast
// always mismatches: the spec treats a missing anchor the same as a
// stale one.
func (t *Target) AnchorsMatch(remoteLast string) bool {
	if t.Mode.Type != model.SyncFast {
		return true
	}
	if remoteLast == "" {
		return false
	}
	return remoteLast == t.LocalLastAnchor
}

// RevertToSlowSync downgrades this target to a slow sync and clears its
// UID-mapping table, per the invariant that a slow sync invalidates any
// mapping built under a previous fast sync.
func (t *Target) RevertToSlowSync() {
	t.Mode.Type = model.SyncSlow
	t.reverted = true

	t.mu.Lock()
	defer t.mu.Unlock()
	t.forward = make(map[string]string)
	t.reverse = make(map[string]string)
}

// Reverted reports whether a mode downgrade occurred mid-session.
func (t *Target) Reverted() bool {
	return t.reverted
}

// AddMapping records (remoteUID, localUID) in both directions. Re-adding
// an existing remoteUID replaces its prior localUID (and the stale
// reverse entry, if different).
func (t *Target) AddMapping(remoteUID, localUID string) {
	if remoteUID == "" || localUID == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if old, ok := t.forward[remoteUID]; ok && old != localUID {
		delete(t.reverse, old)
	}
	t.forward[remoteUID] = localUID
	t.reverse[localUID] = remoteUID
}

// RemoveMapping drops the entry keyed by remoteUID, if any.
func (t *Target) RemoveMapping(remoteUID string) {
	if remoteUID == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if localUID, ok := t.forward[remoteUID]; ok {
		delete(t.forward, remoteUID)
		delete(t.reverse, localUID)
	}
}

// RemoveMappingByLocalUID drops the entry keyed by localUID, if any. The
// server role needs inverse removal since commit results only carry the
// local key.
func (t *Target) RemoveMappingByLocalUID(localUID string) {
	if localUID == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if remoteUID, ok := t.reverse[localUID]; ok {
		delete(t.reverse, localUID)
		delete(t.forward, remoteUID)
	}
}

// MapToLocalUID resolves a remote-issued identifier to its local
// counterpart. Returns remoteUID unchanged if no mapping exists, so
// callers can use it directly as a fallback local key.
func (t *Target) MapToLocalUID(remoteUID string) string {
	if remoteUID == "" {
		return ""
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	if localUID, ok := t.forward[remoteUID]; ok {
		return localUID
	}
	return remoteUID
}

// MapToRemoteUID resolves a local identifier to its remote counterpart.
// Returns "" if no mapping exists.
func (t *Target) MapToRemoteUID(localUID string) string {
	if localUID == "" {
		return ""
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.reverse[localUID]
}

// Mappings returns every current (remoteUID, localUID) pair. Order is not
// significant to callers — response.Generator and session save both
// consume it as a set.
func (t *Target) Mappings() []model.UIDMapping {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]model.UIDMapping, 0, len(t.forward))
	for remoteUID, localUID := range t.forward {
		out = append(out, model.UIDMapping{RemoteUID: remoteUID, LocalUID: localUID})
	}
	return out
}

// LocalChanges returns the lazily-computed change manifest for this
// target, or nil if it has not been computed yet this session (see
// internal/dsync/session.Handler.computeLocalChanges).
func (t *Target) LocalChanges() *model.LocalChanges {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.localChanges
}

// SetLocalChanges installs the change manifest computed for this sync
// pass (from a full backend scan on slow sync, or change-log delta plus
// backend GetModifications on fast sync).
func (t *Target) SetLocalChanges(changes *model.LocalChanges) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.localChanges = changes
}
