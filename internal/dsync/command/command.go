// Package command implements the Command Handler: inbound
// Sync processing (batch composition, commit, result-to-status mapping,
// map emission), Map application, and Status classification.
//
// Grounded on original_source/src/CommandHandler.cpp's four-phase split
// (compose, commit, translate, emit) and on this codebase's nfs_dispatch.go
// verb-switch shape for composeBatches' per-command-type dispatch.
package command

import (
	"context"
	"fmt"
	"sort"

	"github.com/marmos91/syncmld/internal/dsync/dspkg"
	"github.com/marmos91/syncmld/internal/dsync/fragment"
	"github.com/marmos91/syncmld/internal/dsync/model"
	"github.com/marmos91/syncmld/internal/dsync/response"
	"github.com/marmos91/syncmld/internal/dsync/storage"
	"github.com/marmos91/syncmld/internal/dsync/target"
)

// ItemAckObserver is notified of acknowledged item references from
// handleStatus.
type ItemAckObserver interface {
	ItemAcknowledged(msgRef, cmdRef, sourceRef string)
}

// StatusOutcome is what the caller (the Session Handler) must do after
// handleStatus classifies an inbound status.
type StatusOutcome int

const (
	StatusNoAction StatusOutcome = iota
	StatusReportNotImplemented
	StatusAbort
	StatusRevertToSlowSync
)

// Handler runs the four command-processing phases over one inbound
// <Sync> block for one target.
type Handler struct {
	Role model.Role
	FastMapsSend bool
	Resolver storage.ConflictChecker
	Policy model.ConflictPolicy
}

// New returns a Handler.
func New(role model.Role, resolver storage.ConflictChecker, policy model.ConflictPolicy, fastMapsSend bool) *Handler {
	return &Handler{Role: role, FastMapsSend: fastMapsSend, Resolver: resolver, Policy: policy}
}

type itemStatus struct {
	id model.ItemId
	code model.ResponseStatusCode
}

// HandleSync runs composeBatches → commitBatches → processResults →
// manageNewMappings for one <Sync> block against one target.
func (h *Handler) HandleSync(ctx context.Context, sync *fragment.SyncParams, tgt *target.Target, sh *storage.Handler, rg *response.Generator) error {
	itemStatuses, alerts, err := h.composeBatches(ctx, sync, tgt, sh)
	if err != nil {
		return err
	}
	for _, code := range alerts {
		rg.EnqueuePackage(&dspkg.AlertPackage{CmdID: "0", Code: code})
	}

	remoteKeyByID := make(map[model.ItemId]string)
	for _, s := range sh.StagedAdded() {
		remoteKeyByID[s.ID] = s.RemoteKey
	}

	results := h.commitBatches(ctx, tgt, sh)
	var newMappings []model.UIDMapping
	for id, res := range results {
		code := mapCommitResult(h.Role, res)
		itemStatuses = append(itemStatuses, itemStatus{id: id, code: code})

		if code == model.StatusItemAdded {
			if remoteKey := remoteKeyByID[id]; remoteKey != "" {
				newMappings = append(newMappings, model.UIDMapping{RemoteUID: remoteKey, LocalUID: res.ItemKey})
			}
		}
		if res.Status == storage.CommitDeleted {
			// On a deleted item, regardless of conflict outcome, remove its
			// UID mapping from the target.
			tgt.RemoveMapping(tgt.MapToRemoteUID(res.ItemKey))
			tgt.RemoveMappingByLocalUID(res.ItemKey)
		}
		if code == model.StatusItemNotDeleted {
			tgt.RemoveMappingByLocalUID(res.ItemKey)
		}
	}

	h.processResults(sync, itemStatuses, rg)
	h.manageNewMappings(tgt, newMappings, rg, sync)
	return nil
}

// composeBatches resolves parent/format/version per item and stages
// Add/Replace/Delete on the Storage Handler. It returns any per-item
// statuses decided during composition (e.g. chunk acceptance) and any
// informational Alert codes to enqueue.
func (h *Handler) composeBatches(ctx context.Context, sync *fragment.SyncParams, tgt *target.Target, sh *storage.Handler) ([]itemStatus, []int, error) {
	var statuses []itemStatus
	var alerts []int

	for _, cmd := range sync.Commands {
		switch cmd.CommandType {
		case fragment.CmdAdd:
			s, a := h.composeAdd(ctx, cmd, tgt, sh)
			statuses = append(statuses, s...)
			alerts = append(alerts, a...)
		case fragment.CmdReplace:
			s, a := h.composeReplace(ctx, cmd, tgt, sh)
			statuses = append(statuses, s...)
			alerts = append(alerts, a...)
		case fragment.CmdDelete:
			statuses = append(statuses, h.composeDelete(cmd, tgt, sh)...)
		default:
			for i := range cmd.Items {
				statuses = append(statuses, itemStatus{
					id: model.ItemId{CmdID: cmd.CmdID, ItemIndex: i},
					code: model.StatusNotImplemented,
				})
			}
		}
	}
	return statuses, alerts, nil
}

func resolveParent(role model.Role, item *fragment.ItemParams, tgt *target.Target) string {
	sourceParentMapped := tgt.MapToLocalUID(item.SourceURI)
	if role == model.RoleServer {
		return sourceParentMapped
	}
	if sourceParentMapped != "" {
		return sourceParentMapped
	}
	return item.TargetURI
}

func (h *Handler) composeAdd(ctx context.Context, cmd *fragment.CommandParams, tgt *target.Target, sh *storage.Handler) ([]itemStatus, []int) {
	var statuses []itemStatus
	var alerts []int

	for i, item := range cmd.Items {
		id := model.ItemId{CmdID: cmd.CmdID, ItemIndex: i}
		parent := resolveParent(h.Role, item, tgt)

		if item.MoreData {
			if !sh.HasOpenLargeObjectAdd() {
				size := int64(0)
				if item.Meta != nil {
					size = item.Meta.Size
				}
				typ, format, version := itemMeta(item)
				_ = sh.StartLargeObjectAdd(item.SourceURI, parent, typ, format, version, size)
			} else if !sh.MatchesLargeObjectAdd(item.SourceURI) {
				alerts = append(alerts, int(model.StatusNoEndOfData))
				statuses = append(statuses, itemStatus{id: id, code: model.StatusCommandNotAllowed})
				continue
			}
			sh.AppendLargeObjectAdd([]byte(item.Data))
			alerts = append(alerts, int(model.StatusNextMessage))
			statuses = append(statuses, itemStatus{id: id, code: model.StatusChunkedItemAccepted})
			continue
		}

		if sh.HasOpenLargeObjectAdd() {
			if sh.MatchesLargeObjectAdd(item.SourceURI) {
				sh.AppendLargeObjectAdd([]byte(item.Data))
				if err := sh.FinishLargeObjectAdd(ctx, id, ""); err != nil {
					statuses = append(statuses, itemStatus{id: id, code: model.StatusCommandFailed})
				}
				continue
			}
			// Final chunk whose remote key doesn't match the open buffer.
			alerts = append(alerts, int(model.StatusNoEndOfData))
			statuses = append(statuses, itemStatus{id: id, code: model.StatusCommandNotAllowed})
			continue
		}

		newItem, err := newItemFromWire(ctx, tgt, item, parent)
		if err != nil {
			statuses = append(statuses, itemStatus{id: id, code: model.StatusCommandFailed})
			continue
		}
		sh.AddItem(id, newItem, item.SourceURI)
	}
	return statuses, alerts
}

func (h *Handler) composeReplace(ctx context.Context, cmd *fragment.CommandParams, tgt *target.Target, sh *storage.Handler) ([]itemStatus, []int) {
	var statuses []itemStatus
	var alerts []int
	for i, item := range cmd.Items {
		id := model.ItemId{CmdID: cmd.CmdID, ItemIndex: i}
		localKey := resolveReplaceDeleteKey(h.Role, item.TargetURI, item.SourceURI, tgt)

		if item.MoreData {
			if !sh.HasOpenLargeObjectReplace() {
				size := int64(0)
				if item.Meta != nil {
					size = item.Meta.Size
				}
				typ, format, version := itemMeta(item)
				_ = sh.StartLargeObjectReplace(item.SourceURI, "", typ, format, version, size)
			} else if !sh.MatchesLargeObjectReplace(item.SourceURI) {
				statuses = append(statuses, itemStatus{id: id, code: model.StatusCommandNotAllowed})
				continue
			}
			sh.AppendLargeObjectReplace([]byte(item.Data))
			statuses = append(statuses, itemStatus{id: id, code: model.StatusChunkedItemAccepted})
			continue
		}

		if sh.HasOpenLargeObjectReplace() {
			if sh.MatchesLargeObjectReplace(item.SourceURI) {
				sh.AppendLargeObjectReplace([]byte(item.Data))
				if err := sh.FinishLargeObjectReplace(ctx, id, localKey); err != nil {
					statuses = append(statuses, itemStatus{id: id, code: model.StatusCommandFailed})
				}
				continue
			}
			// Final chunk whose remote key doesn't match the open buffer.
			alerts = append(alerts, int(model.StatusNoEndOfData))
			statuses = append(statuses, itemStatus{id: id, code: model.StatusCommandNotAllowed})
			continue
		}

		newItem, err := newItemFromWire(ctx, tgt, item, "")
		if err != nil {
			statuses = append(statuses, itemStatus{id: id, code: model.StatusCommandFailed})
			continue
		}
		sh.ReplaceItem(id, newItem, item.SourceURI, localKey)
	}
	return statuses, alerts
}

func (h *Handler) composeDelete(cmd *fragment.CommandParams, tgt *target.Target, sh *storage.Handler) []itemStatus {
	for i, item := range cmd.Items {
		id := model.ItemId{CmdID: cmd.CmdID, ItemIndex: i}
		localKey := resolveReplaceDeleteKey(h.Role, item.TargetURI, item.SourceURI, tgt)
		sh.DeleteItem(id, localKey)
	}
	return nil
}

func resolveReplaceDeleteKey(role model.Role, itemTarget, itemSource string, tgt *target.Target) string {
	if role == model.RoleClient {
		return itemTarget
	}
	return tgt.MapToLocalUID(itemSource)
}

func itemMeta(item *fragment.ItemParams) (typ, format, version string) {
	if item.Meta == nil {
		return "", "", ""
	}
	return item.Meta.Type, item.Meta.Format, item.Meta.Version
}

// commitBatches invokes the Storage Handler's three commit phases. A
// Conflict Resolver is used only when role=Server.
func (h *Handler) commitBatches(ctx context.Context, tgt *target.Target, sh *storage.Handler) map[model.ItemId]storage.CommitResult {
	var resolver storage.ConflictChecker
	if h.Role == model.RoleServer {
		resolver = h.Resolver
	}
	changes := tgt.LocalChanges()

	results := make(map[model.ItemId]storage.CommitResult)
	for id, res := range sh.CommitAddedItems(ctx, changes, resolver, h.Policy) {
		results[id] = res
	}
	for id, res := range sh.CommitReplacedItems(ctx, changes, resolver, h.Policy) {
		results[id] = res
	}
	for id, res := range sh.CommitDeletedItems(ctx, changes, resolver, h.Policy) {
		results[id] = res
	}
	return results
}

// mapCommitResult implements the commit-result-to-status tie-break table.
func mapCommitResult(role model.Role, res storage.CommitResult) model.ResponseStatusCode {
	switch res.Status {
	case storage.CommitAdded:
		if res.Conflict == storage.ConflictNone {
			return model.StatusItemAdded
		}
		return resolvedCode(role, res.Conflict)
	case storage.CommitReplaced, storage.CommitDeleted:
		if res.Conflict != storage.ConflictNone {
			return resolvedCode(role, res.Conflict)
		}
		return model.StatusSuccess
	case storage.CommitDuplicate:
		return model.StatusAlreadyExists
	case storage.CommitNotDeleted:
		return model.StatusItemNotDeleted
	case storage.CommitUnsupportedFormat:
		return model.StatusUnsupportedFormat
	case storage.CommitItemTooBig:
		return model.StatusRequestSizeTooBig
	case storage.CommitNotEnoughSpace:
		return model.StatusDeviceFull
	default:
		return model.StatusCommandFailed
	}
}

func resolvedCode(role model.Role, conflict storage.ConflictOutcome) model.ResponseStatusCode {
	if conflict == storage.ConflictLocalWin {
		if role == model.RoleClient {
			return model.StatusResolvedClientWinning
		}
		return model.StatusResolvedWithServerData
	}
	if role == model.RoleClient {
		return model.StatusResolvedWithServerData
	}
	return model.StatusResolvedClientWinning
}

// cmdMeta carries, per originating command, what processResults needs to
// emit a faithful Status: the command's verb (for the Status's Cmd field),
// whether it asked for noResp, and each item's Target/SourceRef by index.
type cmdMeta struct {
	name     string
	noResp   bool
	itemRefs map[int]fragment.StatusItemRef
}

// commandTypeName returns the wire verb for a CommandType, as it belongs
// in a Status's Cmd field.
func commandTypeName(t fragment.CommandType) string {
	switch t {
	case fragment.CmdAdd:
		return "Add"
	case fragment.CmdReplace:
		return "Replace"
	case fragment.CmdDelete:
		return "Delete"
	case fragment.CmdGet:
		return "Get"
	case fragment.CmdCopy:
		return "Copy"
	case fragment.CmdMove:
		return "Move"
	case fragment.CmdExec:
		return "Exec"
	case fragment.CmdAtomic:
		return "Atomic"
	case fragment.CmdSequence:
		return "Sequence"
	case fragment.CmdAlert:
		return "Alert"
	default:
		return "Sync"
	}
}

// processResults groups item indices by (command, responseBucket) and
// emits one Status per bucket, items ascending within each. Commands
// marked noResp are skipped entirely: §4.7.4 only requires a Status "for
// each parent command with noResp=false" (mirrors CommandHandler.cpp's
// check of command.noResp before calling addStatus). Each emitted Status
// carries the originating command's verb and the acknowledged items'
// Target/SourceRef pairs so a receiving peer's handleStatus can correlate
// them back to specific items.
func (h *Handler) processResults(sync *fragment.SyncParams, statuses []itemStatus, rg *response.Generator) {
	cmds := make(map[string]cmdMeta, len(sync.Commands))
	for _, cmd := range sync.Commands {
		refs := make(map[int]fragment.StatusItemRef, len(cmd.Items))
		for i, item := range cmd.Items {
			refs[i] = fragment.StatusItemRef{TargetURI: item.TargetURI, SourceURI: item.SourceURI}
		}
		cmds[cmd.CmdID] = cmdMeta{
			name:     commandTypeName(cmd.CommandType),
			noResp:   cmd.NoResp,
			itemRefs: refs,
		}
	}

	type bucketKey struct {
		cmdID string
		code model.ResponseStatusCode
	}
	buckets := make(map[bucketKey][]int)
	for _, s := range statuses {
		if meta, ok := cmds[s.id.CmdID]; ok && meta.noResp {
			continue
		}
		k := bucketKey{cmdID: s.id.CmdID, code: s.code}
		buckets[k] = append(buckets[k], s.id.ItemIndex)
	}

	var keys []bucketKey
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].cmdID != keys[j].cmdID {
			return keys[i].cmdID < keys[j].cmdID
		}
		return keys[i].code < keys[j].code
	})

	for _, k := range keys {
		indices := buckets[k]
		sort.Ints(indices)

		meta := cmds[k.cmdID]
		name := meta.name
		if name == "" {
			name = "Sync"
		}
		items := make([]fragment.StatusItemRef, 0, len(indices))
		for _, idx := range indices {
			if ref, ok := meta.itemRefs[idx]; ok {
				items = append(items, ref)
			}
		}

		rg.AddStatus(fragment.StatusParams{
			CmdID:  "0",
			CmdRef: k.cmdID,
			Cmd:    name,
			Data:  int(k.code),
			Items: items,
		}, false, nil)
	}
}

// manageNewMappings persists new mappings on the target and, for a
// client with fastMapsSend, enqueues a LocalMappingsPackage immediately
// instead of waiting for the map-acknowledgement phase.
func (h *Handler) manageNewMappings(tgt *target.Target, newMappings []model.UIDMapping, rg *response.Generator, sync *fragment.SyncParams) {
	for _, m := range newMappings {
		tgt.AddMapping(m.RemoteUID, m.LocalUID)
	}
	if h.Role == model.RoleClient && h.FastMapsSend && len(newMappings) > 0 {
		rg.EnqueuePackage(&dspkg.LocalMappingsPackage{
			CmdID:     "0",
			SourceURI: sync.SourceURI,
			TargetURI: sync.TargetURI,
			Mappings: newMappings,
		})
	}
}

// HandleMap applies each (source, target) MapItem as (remoteUID=source,
// localUID=target) and always succeeds.
func (h *Handler) HandleMap(mapParams *fragment.MapParams, tgt *target.Target) model.ResponseStatusCode {
	for _, item := range mapParams.Items {
		tgt.AddMapping(item.SourceURI, item.TargetURI)
	}
	return model.StatusSuccess
}

// HandleStatus classifies an inbound status by class and reports upward
// via observer when it addresses an Add/Replace/Delete.
func (h *Handler) HandleStatus(status *fragment.StatusParams, observer ItemAckObserver) StatusOutcome {
	code := model.ResponseStatusCode(status.Data)
	class := model.Classify(code)

	if observer != nil && (status.Cmd == "Add" || status.Cmd == "Replace" || status.Cmd == "Delete") {
		observer.ItemAcknowledged(status.MsgRef, status.CmdRef, status.SourceURI)
	}

	switch class {
	case model.ClassInformational, model.ClassSuccess:
		return StatusNoAction
	case model.ClassRedirection:
		return StatusReportNotImplemented
	case model.ClassOriginatorException:
		if code == model.StatusAlreadyExists {
			return StatusNoAction
		}
		return StatusAbort
	case model.ClassRecipientException:
		if code == model.StatusRefreshRequired {
			return StatusRevertToSlowSync
		}
		return StatusAbort
	default:
		return StatusAbort
	}
}

// newItemFromWire allocates a backend item and writes the wire-decoded
// item's data and size into it.
func newItemFromWire(ctx context.Context, tgt *target.Target, item *fragment.ItemParams, parent string) (model.SyncItem, error) {
	typ, format, version := itemMeta(item)
	syncItem, err := tgt.Storage.NewItem(ctx, parent, typ, format, version)
	if err != nil {
		return nil, fmt.Errorf("command: allocate item: %w", err)
	}
	data := []byte(item.Data)
	if err := syncItem.Resize(int64(len(data))); err != nil {
		return nil, fmt.Errorf("command: resize item: %w", err)
	}
	if err := syncItem.Write(0, data); err != nil {
		return nil, fmt.Errorf("command: write item: %w", err)
	}
	return syncItem, nil
}
