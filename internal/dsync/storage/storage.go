// Package storage implements the Storage Handler: staging of
// Add/Replace/Delete commands, large-object assembly, batch commit against
// a ports.StorageBackend, and translation of backend outcomes into
// CommitStatus/CommitResult records the Command Handler maps to wire
// status codes.
//
// Grounded on this codebase's pkg/fs staging + commit split (stage writes in
// a scratch buffer, commit applies them to the backing store atomically
// per batch) and on original_source/src/StorageHandler.cpp for the large-
// object single-buffer-per-direction rule and the commit status taxonomy.
package storage

import (
	"context"
	"fmt"

	"github.com/marmos91/syncmld/internal/dsync/model"
	"github.com/marmos91/syncmld/internal/dsync/ports"
	"github.com/marmos91/syncmld/internal/dsync/xerr"
)

// CommitStatus is the backend-outcome taxonomy this package works with,
// already translated from xerr.Code plus the conflict/verb context.
type CommitStatus int

const (
	CommitAdded CommitStatus = iota
	CommitReplaced
	CommitDeleted
	CommitDuplicate
	CommitNotDeleted
	CommitUnsupportedFormat
	CommitItemTooBig
	CommitNotEnoughSpace
	CommitGeneralError
)

// ConflictOutcome flags which side a Conflict Resolver decided wins, or
// that there was no conflict for this item.
type ConflictOutcome int

const (
	ConflictNone ConflictOutcome = iota
	ConflictLocalWin
	ConflictRemoteWin
)

// CommitResult is the per-item outcome of a commit*Items call.
type CommitResult struct {
	Status CommitStatus
	Conflict ConflictOutcome
	ItemKey string
}

// StagedItem binds a staged SyncItem to the ItemId the Command Handler
// used to enqueue it, and the remote-reported key used for conflict
// lookups against the target's LocalChanges.
type StagedItem struct {
	ID model.ItemId
	Item model.SyncItem
	RemoteKey string
	LocalKey string // Replace/Delete: resolved local key; empty for Add
}

// ConflictChecker is the subset of the Conflict Resolver the Storage
// Handler calls during commit.
type ConflictChecker interface {
	IsConflict(changes *model.LocalChanges, localKey string, isDelete bool) bool
	LocalSideWins(policy model.ConflictPolicy) bool
}

// largeObjectBuffer assembles one chunked item across messages. Only one
// may be in flight per direction.
type largeObjectBuffer struct {
	remoteKey string
	parent string
	itemType string
	format string
	version string
	totalSize int64
	data      []byte
	isReplace bool
}

// Handler stages commands for one SyncTarget and commits them against a
// backend. One Handler exists per (target, direction) pair for the
// duration of a session.
type Handler struct {
	backend ports.StorageBackend

	added    []StagedItem
	replaced []StagedItem
	deleted  []StagedItem

	addBuf     *largeObjectBuffer
	replaceBuf *largeObjectBuffer
}

// NewHandler returns a Handler staging against the given backend.
func NewHandler(backend ports.StorageBackend) *Handler {
	return &Handler{backend: backend}
}

// ErrLargeObjectInFlight is returned when a second large-object transfer
// is attempted in the same direction while one is still open.
var ErrLargeObjectInFlight = fmt.Errorf("storage: a large object is already in flight for this direction")

// AddItem stages a normal (non-chunked) add.
func (h *Handler) AddItem(id model.ItemId, item model.SyncItem, remoteKey string) {
	h.added = append(h.added, StagedItem{ID: id, Item: item, RemoteKey: remoteKey})
}

// ReplaceItem stages a replace. A Replace with an empty/unknown localKey
// is transparently promoted to Add.
func (h *Handler) ReplaceItem(id model.ItemId, item model.SyncItem, remoteKey, localKey string) {
	if localKey == "" {
		h.AddItem(id, item, remoteKey)
		return
	}
	h.replaced = append(h.replaced, StagedItem{ID: id, Item: item, RemoteKey: remoteKey, LocalKey: localKey})
}

// DeleteItem stages a delete.
func (h *Handler) DeleteItem(id model.ItemId, localKey string) {
	h.deleted = append(h.deleted, StagedItem{ID: id, LocalKey: localKey})
}

// StartLargeObjectAdd opens an assembly buffer for a chunked Add.
func (h *Handler) StartLargeObjectAdd(remoteKey, parent, itemType, format, version string, totalSize int64) error {
	if h.addBuf != nil {
		return ErrLargeObjectInFlight
	}
	h.addBuf = &largeObjectBuffer{
		remoteKey: remoteKey, parent: parent, itemType: itemType,
		format: format, version: version, totalSize: totalSize,
	}
	return nil
}

// StartLargeObjectReplace opens an assembly buffer for a chunked Replace.
func (h *Handler) StartLargeObjectReplace(remoteKey, parent, itemType, format, version string, totalSize int64) error {
	if h.replaceBuf != nil {
		return ErrLargeObjectInFlight
	}
	h.replaceBuf = &largeObjectBuffer{
		remoteKey: remoteKey, parent: parent, itemType: itemType,
		format: format, version: version, totalSize: totalSize, isReplace: true,
	}
	return nil
}

// AppendLargeObjectAdd appends a chunk to the in-flight add buffer.
func (h *Handler) AppendLargeObjectAdd(data []byte) {
	if h.addBuf != nil {
		h.addBuf.data = append(h.addBuf.data, data...)
	}
}

// AppendLargeObjectReplace appends a chunk to the in-flight replace buffer.
func (h *Handler) AppendLargeObjectReplace(data []byte) {
	if h.replaceBuf != nil {
		h.replaceBuf.data = append(h.replaceBuf.data, data...)
	}
}

// MatchesLargeObjectAdd verifies continuity of a subsequent chunk against
// the open add buffer; mismatch discards the buffer.
func (h *Handler) MatchesLargeObjectAdd(remoteKey string) bool {
	if h.addBuf == nil || h.addBuf.remoteKey != remoteKey {
		h.addBuf = nil
		return false
	}
	return true
}

// MatchesLargeObjectReplace is MatchesLargeObjectAdd for the replace
// direction.
func (h *Handler) MatchesLargeObjectReplace(remoteKey string) bool {
	if h.replaceBuf == nil || h.replaceBuf.remoteKey != remoteKey {
		h.replaceBuf = nil
		return false
	}
	return true
}

// HasOpenLargeObjectAdd reports whether an add buffer is currently open.
func (h *Handler) HasOpenLargeObjectAdd() bool { return h.addBuf != nil }

// HasOpenLargeObjectReplace reports whether a replace buffer is open.
func (h *Handler) HasOpenLargeObjectReplace() bool { return h.replaceBuf != nil }

// FinishLargeObjectAdd moves the assembled add buffer into the add
// staging queue and clears it.
func (h *Handler) FinishLargeObjectAdd(ctx context.Context, id model.ItemId, localKey string) error {
	buf := h.addBuf
	h.addBuf = nil
	if buf == nil {
		return fmt.Errorf("storage: finishLargeObjectAdd with no open buffer")
	}
	item, err := h.newAssembledItem(ctx, buf, localKey)
	if err != nil {
		return err
	}
	h.AddItem(id, item, buf.remoteKey)
	return nil
}

// FinishLargeObjectReplace is FinishLargeObjectAdd for the replace
// direction.
func (h *Handler) FinishLargeObjectReplace(ctx context.Context, id model.ItemId, localKey string) error {
	buf := h.replaceBuf
	h.replaceBuf = nil
	if buf == nil {
		return fmt.Errorf("storage: finishLargeObjectReplace with no open buffer")
	}
	item, err := h.newAssembledItem(ctx, buf, localKey)
	if err != nil {
		return err
	}
	h.ReplaceItem(id, item, buf.remoteKey, localKey)
	return nil
}

func (h *Handler) newAssembledItem(ctx context.Context, buf *largeObjectBuffer, localKey string) (model.SyncItem, error) {
	item, err := h.backend.NewItem(ctx, buf.parent, buf.itemType, buf.format, buf.version)
	if err != nil {
		return nil, fmt.Errorf("storage: allocate item for assembled large object: %w", err)
	}
	if localKey != "" {
		item.SetKey(localKey)
	}
	if err := item.Resize(int64(len(buf.data))); err != nil {
		return nil, fmt.Errorf("storage: resize assembled item: %w", err)
	}
	if err := item.Write(0, buf.data); err != nil {
		return nil, fmt.Errorf("storage: write assembled item: %w", err)
	}
	return item, nil
}

// commitBatch runs the conflict-check/backend/translate pipeline
// common to all three commit phases.
func (h *Handler) commitBatch(
	ctx context.Context,
	staged []StagedItem,
	changes *model.LocalChanges,
	resolver ConflictChecker,
	policy model.ConflictPolicy,
	isDelete bool,
	apply func(ctx context.Context, survivors []StagedItem) []*xerr.BackendError,
	successStatus CommitStatus,
) map[model.ItemId]CommitResult {
	results := make(map[model.ItemId]CommitResult, len(staged))

	var survivors []StagedItem
	for _, s := range staged {
		key := s.LocalKey
		if key == "" {
			key = s.RemoteKey
		}
		if resolver == nil || changes == nil || !resolver.IsConflict(changes, key, isDelete) {
			survivors = append(survivors, s)
			continue
		}
		outcome := ConflictRemoteWin
		if resolver.LocalSideWins(policy) {
			outcome = ConflictLocalWin
		}
		if outcome == ConflictLocalWin {
			results[s.ID] = CommitResult{Status: successStatus, Conflict: ConflictLocalWin, ItemKey: key}
			continue
		}
		survivors = append(survivors, s)
		results[s.ID] = CommitResult{Status: successStatus, Conflict: ConflictRemoteWin, ItemKey: key}
	}

	if len(survivors) == 0 {
		return results
	}

	errs := apply(ctx, survivors)
	for i, s := range survivors {
		var be *xerr.BackendError
		if i < len(errs) {
			be = errs[i]
		}
		prior, hadConflict := results[s.ID]
		key := s.LocalKey
		if s.Item != nil && s.Item.Key() != "" {
			key = s.Item.Key()
		}
		if key == "" {
			key = s.RemoteKey
		}
		res := CommitResult{ItemKey: key}
		if hadConflict {
			res.Conflict = prior.Conflict
		}
		res.Status = translateBackendOutcome(be, successStatus)
		results[s.ID] = res
	}
	return results
}

func translateBackendOutcome(be *xerr.BackendError, success CommitStatus) CommitStatus {
	if be == nil {
		return success
	}
	switch be.Code {
	case xerr.Duplicate:
		return CommitDuplicate
	case xerr.NotFound:
		return CommitNotDeleted
	case xerr.InvalidFormat:
		return CommitUnsupportedFormat
	case xerr.ObjectTooBig:
		return CommitItemTooBig
	case xerr.StorageFull:
		return CommitNotEnoughSpace
	default:
		return CommitGeneralError
	}
}

// CommitAddedItems runs the three-phase commit pipeline over staged adds.
func (h *Handler) CommitAddedItems(ctx context.Context, changes *model.LocalChanges, resolver ConflictChecker, policy model.ConflictPolicy) map[model.ItemId]CommitResult {
	return h.commitBatch(ctx, h.added, changes, resolver, policy, false, func(ctx context.Context, survivors []StagedItem) []*xerr.BackendError {
		items := make([]model.SyncItem, len(survivors))
		for i, s := range survivors {
			items[i] = s.Item
		}
		return h.backend.AddItems(ctx, items)
	}, CommitAdded)
}

// CommitReplacedItems runs the three-phase commit pipeline over staged
// replaces.
func (h *Handler) CommitReplacedItems(ctx context.Context, changes *model.LocalChanges, resolver ConflictChecker, policy model.ConflictPolicy) map[model.ItemId]CommitResult {
	return h.commitBatch(ctx, h.replaced, changes, resolver, policy, false, func(ctx context.Context, survivors []StagedItem) []*xerr.BackendError {
		items := make([]model.SyncItem, len(survivors))
		for i, s := range survivors {
			if s.Item.Key() == "" {
				s.Item.SetKey(s.LocalKey)
			}
			items[i] = s.Item
		}
		return h.backend.ReplaceItems(ctx, items)
	}, CommitReplaced)
}

// CommitDeletedItems runs the three-phase commit pipeline over staged
// deletes.
func (h *Handler) CommitDeletedItems(ctx context.Context, changes *model.LocalChanges, resolver ConflictChecker, policy model.ConflictPolicy) map[model.ItemId]CommitResult {
	return h.commitBatch(ctx, h.deleted, changes, resolver, policy, true, func(ctx context.Context, survivors []StagedItem) []*xerr.BackendError {
		keys := make([]string, len(survivors))
		for i, s := range survivors {
			keys[i] = s.LocalKey
		}
		return h.backend.DeleteItems(ctx, keys)
	}, CommitDeleted)
}

// StagedAdded returns the currently staged adds, for callers that need to
// correlate a commit result back to the remote key it was staged under.
func (h *Handler) StagedAdded() []StagedItem { return h.added }

// StagedReplaced returns the currently staged replaces.
func (h *Handler) StagedReplaced() []StagedItem { return h.replaced }

// StagedDeleted returns the currently staged deletes.
func (h *Handler) StagedDeleted() []StagedItem { return h.deleted }

// Reset clears all staged batches, e.g. after a committed Sync block.
func (h *Handler) Reset() {
	h.added = nil
	h.replaced = nil
	h.deleted = nil
}
