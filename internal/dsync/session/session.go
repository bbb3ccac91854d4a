// Package session implements the Session Handler: the
// cooperative state machine that drives one complete sync, in both
// Client and Server roles, by consuming the Parser's fragment stream and
// dispatching to the Authentication, Device-Info, Command, Storage, and
// Response Generator components.
//
// Grounded on this codebase's nfs_dispatch.go top-level procedure dispatch
// (one exported Handler walking an inbound stream and fanning out to
// per-concern handlers, heavily doc-commented) — here the "procedures"
// are SyncML fragment kinds instead of NFSv3 procedure numbers, and the
// dispatch additionally carries cross-message state.
package session

import (
	"context"
	"fmt"
	"strconv"

	"github.com/marmos91/syncmld/internal/dsync/command"
	"github.com/marmos91/syncmld/internal/dsync/conflict"
	"github.com/marmos91/syncmld/internal/dsync/devinfo"
	"github.com/marmos91/syncmld/internal/dsync/dspkg"
	"github.com/marmos91/syncmld/internal/dsync/fragment"
	"github.com/marmos91/syncmld/internal/dsync/model"
	"github.com/marmos91/syncmld/internal/dsync/ports"
	"github.com/marmos91/syncmld/internal/dsync/response"
	"github.com/marmos91/syncmld/internal/dsync/storage"
	"github.com/marmos91/syncmld/internal/dsync/target"
	"github.com/marmos91/syncmld/internal/dsync/wire"
)

// State is one node of the state machine, including the error
// terminals.
type State int

const (
	StateNotPrepared State = iota
	StatePrepared
	StateLocalInit
	StateRemoteInit
	StateSendingItems
	StateReceivingItems
	StateSendingMappings
	StateReceivingMappings
	StateFinalizing
	StateSyncFinished

	// Error terminals.
	StateInternalError
	StateAuthenticationFailure
	StateDatabaseFailure
	StateConnectionError
	StateInvalidSyncMLMessage
	StateUnsupportedSyncType
	StateUnsupportedStorageType
	StateSuspended
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateNotPrepared:
		return "NOT_PREPARED"
	case StatePrepared:
		return "PREPARED"
	case StateLocalInit:
		return "LOCAL_INIT"
	case StateRemoteInit:
		return "REMOTE_INIT"
	case StateSendingItems:
		return "SENDING_ITEMS"
	case StateReceivingItems:
		return "RECEIVING_ITEMS"
	case StateSendingMappings:
		return "SENDING_MAPPINGS"
	case StateReceivingMappings:
		return "RECEIVING_MAPPINGS"
	case StateFinalizing:
		return "FINALIZING"
	case StateSyncFinished:
		return "SYNC_FINISHED"
	case StateInternalError:
		return "INTERNAL_ERROR"
	case StateAuthenticationFailure:
		return "AUTHENTICATION_FAILURE"
	case StateDatabaseFailure:
		return "DATABASE_FAILURE"
	case StateConnectionError:
		return "CONNECTION_ERROR"
	case StateInvalidSyncMLMessage:
		return "INVALID_SYNCML_MESSAGE"
	case StateUnsupportedSyncType:
		return "UNSUPPORTED_SYNC_TYPE"
	case StateUnsupportedStorageType:
		return "UNSUPPORTED_STORAGE_TYPE"
	case StateSuspended:
		return "SUSPENDED"
	case StateAborted:
		return "ABORTED"
	default:
		return "UNKNOWN"
	}
}

// IsErrorTerminal reports whether s is one of the error terminal states.
func (s State) IsErrorTerminal() bool {
	return s >= StateInternalError
}

// Observer collapses this codebase's signal/slot surface (itemProcessed,
// syncFinished, syncStateChanged, abortSync, newItemWritten, newMapWritten,
// storageAcquired) into a single set of typed callback methods. A nil *Handler.Observer is valid; every
// call site nil-checks before invoking it.
type Observer interface {
	SyncStateChanged(state State)
	SyncFinished(remoteDevice string, state State, description string)
	ItemProcessed(sourceURI string, id model.ItemId, status model.ResponseStatusCode)
	NewItemWritten(sourceURI, localKey string)
	NewMapWritten(sourceURI string, mapping model.UIDMapping)
	StorageAcquired(sourceURI string)
}

// TargetConfig is the caller-supplied configuration for one datastore to
// bind into the session.
type TargetConfig struct {
	SourceURI string
	TargetURI string
	Mode target.SyncMode
}

// Config is the session-wide configuration surface.
type Config struct {
	Role model.Role
	ProtocolVersion model.ProtocolVersion
	LocalURI string
	RemoteDevice string
	SessionID string

	AuthType model.AuthType
	AuthUser string
	AuthPass string

	ConflictPolicy model.ConflictPolicy
	FastMapsSend bool
	MaxChangesPerMessage int
	LargeObjectThreshold int64
	SyncWithoutInitPhase bool
	OmitDataUpdateStatus bool

	Targets []TargetConfig
}

// targetState bundles everything the session tracks per active datastore.
type targetState struct {
	target  *target.Target
	storage *storage.Handler
	cmd     *command.Handler
}

// Handler is the Session Handler. It is not safe for
// concurrent use: the session is single-threaded cooperative.
type Handler struct {
	cfg Config
	state State
	observer Observer

	storageProvider ports.StorageProvider
	noncePersister ports.NoncePersister
	changelogPersister ports.ChangelogPersister
	sessionSaver ports.SessionSaver

	responseGen *response.Generator
	devinfo     *devinfo.Handler
	localInfo devinfo.Info
	conflictRes *conflict.Resolver

	targets map[string]*targetState // keyed by SourceURI
	targetByTU map[string]*targetState // keyed by TargetURI, for inbound addressing

	remoteMsgID string
	cmdIDSeq int

	currentAuthType model.AuthType
	authAttemptPending bool
	authenticated bool

	abortDeferred bool
	abortPending bool
	abortState State
	abortReason string

	syncWithoutInitUsed bool
}

// New returns a Handler in StateNotPrepared for the given role, wired to
// its external collaborators and local device capabilities.
func New(
	cfg Config,
	localInfo devinfo.Info,
	storageProvider ports.StorageProvider,
	noncePersister ports.NoncePersister,
	changelogPersister ports.ChangelogPersister,
	sessionSaver ports.SessionSaver,
	observer Observer,
) *Handler {
	return &Handler{
		cfg: cfg,
		state: StateNotPrepared,
		observer: observer,
		storageProvider: storageProvider,
		noncePersister: noncePersister,
		changelogPersister: changelogPersister,
		sessionSaver: sessionSaver,
		devinfo: devinfo.NewHandler(localInfo),
		localInfo: localInfo,
		conflictRes: conflict.New(),
		targets: make(map[string]*targetState),
		targetByTU: make(map[string]*targetState),
		currentAuthType: model.AuthNone,
	}
}

// State returns the current state.
func (h *Handler) State() State { return h.state }

// Role returns the role this session was configured for.
func (h *Handler) Role() model.Role { return h.cfg.Role }

// SessionID returns the session identifier this Handler was configured with.
func (h *Handler) SessionID() string { return h.cfg.SessionID }

// RemoteDevice returns the remote device identifier this Handler was configured with.
func (h *Handler) RemoteDevice() string { return h.cfg.RemoteDevice }

func (h *Handler) setState(s State) {
	if h.state == s {
		return
	}
	h.state = s
	if h.observer != nil {
		h.observer.SyncStateChanged(s)
	}
}

// NextCmdID returns a fresh, session-unique outbound CmdID string.
func (h *Handler) NextCmdID() string {
	h.cmdIDSeq++
	return strconv.Itoa(h.cmdIDSeq)
}

// GenerateNextMessage drains the response generator into the next
// outbound message, budgeted at maxBytes. Returns the built root element
// and whether this was the last message needed for the current package
// (no statuses or packages remain queued).
func (h *Handler) GenerateNextMessage(maxBytes int) (*wire.Element, bool) {
	return h.responseGen.GenerateNextMessage(maxBytes, h.cfg.ProtocolVersion)
}

// HasPendingOutbound reports whether the response generator still has
// statuses or packages queued for the next GenerateNextMessage call.
func (h *Handler) HasPendingOutbound() bool {
	return h.responseGen.PendingStatuses() || h.responseGen.PendingPackages()
}

// Prepare acquires storage for every configured target, builds the
// response generator's header template, and loads persisted anchors/
// mappings for each target. This is the session-setup step that runs
// once before any fragment is processed.
func (h *Handler) Prepare(ctx context.Context) error {
	if h.state != StateNotPrepared {
		return fmt.Errorf("session: Prepare called in state %s", h.state)
	}

	h.responseGen = response.NewGenerator(fragment.HeaderParams{
		VerDTD: h.cfg.ProtocolVersion.String(),
		VerProto: h.cfg.ProtocolVersion.ProtocolString(),
		SessionID: h.cfg.SessionID,
		SourceURI: h.cfg.LocalURI,
	})

	for _, tc := range h.cfg.Targets {
		backend, err := h.storageProvider.Acquire(ctx, tc.SourceURI)
		if err != nil {
			h.abort(ctx, StateDatabaseFailure, fmt.Sprintf("acquire storage %q: %v", tc.SourceURI, err))
			return err
		}
		tgt := target.New(backend, tc.SourceURI, tc.TargetURI, tc.Mode)

		entry, err := h.changelogPersister.Load(ctx, h.cfg.RemoteDevice, tc.SourceURI, tc.Mode.Direction)
		if err != nil {
			h.abort(ctx, StateDatabaseFailure, fmt.Sprintf("load changelog %q: %v", tc.SourceURI, err))
			return err
		}
		tgt.LocalLastAnchor = entry.Anchor
		tgt.RemoteLastAnchor = entry.Anchor
		if entry.Anchor == "" && tgt.Mode.Type == model.SyncFast {
			// No persisted anchor: there is nothing to delta against, so the
			// first sync against a target always starts slow.
			tgt.Mode.Type = model.SyncSlow
		}

		ts := &targetState{
			target: tgt,
			storage: storage.NewHandler(backend),
		}
		ts.cmd = command.New(h.cfg.Role, h.conflictRes, h.cfg.ConflictPolicy, h.cfg.FastMapsSend)
		h.targets[tc.SourceURI] = ts
		if tc.TargetURI != "" {
			h.targetByTU[tc.TargetURI] = ts
		}

		if h.observer != nil {
			h.observer.StorageAcquired(tc.SourceURI)
		}
	}

	h.setState(StatePrepared)
	return nil
}

// Release releases every acquired storage backend. Called from the
// finalize path and from Abort's teardown path.
func (h *Handler) Release(ctx context.Context) {
	for uri, ts := range h.targets {
		_ = h.storageProvider.Release(ctx, uri, ts.target.Storage)
	}
}

func (h *Handler) targetBySource(uri string) *targetState { return h.targets[uri] }

func (h *Handler) targetByTarget(uri string) *targetState {
	if ts, ok := h.targetByTU[uri]; ok {
		return ts
	}
	// Fall back to the sole configured target when a peer omits explicit
	// addressing (common with single-datastore sessions).
	if len(h.targets) == 1 {
		for _, ts := range h.targets {
			return ts
		}
	}
	return nil
}

// anyOutbound reports whether any target's negotiated direction requires
// the local side to send modifications.
func (h *Handler) anyOutbound() bool {
	for _, ts := range h.targets {
		switch ts.target.Mode.Direction {
		case model.DirTwoWay, model.DirFromServer:
			if h.cfg.Role == model.RoleServer {
				return true
			}
		case model.DirFromClient:
			// server never sends modifications for a from-client target
		}
		if h.cfg.Role == model.RoleClient && (ts.target.Mode.Direction == model.DirTwoWay || ts.target.Mode.Direction == model.DirFromClient) {
			return true
		}
	}
	return false
}

// abort implements abortSync(state, description): idempotent,
// defers teardown if a message is currently mid-parse (tracked by the
// caller via SetMidParse), and otherwise tears down immediately.
func (h *Handler) abort(ctx context.Context, terminal State, description string) {
	if h.state.IsErrorTerminal() || h.state == StateAborted {
		return
	}
	h.abortState = terminal
	h.abortReason = description
	if h.abortDeferred {
		h.abortPending = true
		return
	}
	h.finishAbort(ctx)
}

// SetMidParse marks whether the caller is currently mid-parse of an
// inbound message, so a concurrent abort request defers teardown until
// SetMidParse(false) is called.
func (h *Handler) SetMidParse(midParse bool) {
	h.abortDeferred = midParse
	if !midParse && h.abortPending {
		h.abortPending = false
		h.finishAbort(context.Background())
	}
}

func (h *Handler) finishAbort(ctx context.Context) {
	h.setState(h.abortState)
	h.Release(ctx)
	if h.observer != nil {
		h.observer.SyncFinished(h.cfg.RemoteDevice, h.abortState, h.abortReason)
	}
}

// Abort requests termination for a TransportEvent: maps the event to its error terminal and calls abort.
func (h *Handler) Abort(ctx context.Context, event ports.TransportEvent, description string) {
	terminal := StateConnectionError
	switch event {
	case ports.EventTimeout, ports.EventFailed, ports.EventAborted:
		terminal = StateConnectionError
	case ports.EventAuthNeeded:
		terminal = StateAuthenticationFailure
	case ports.EventInvalidContentType, ports.EventInvalidContent:
		terminal = StateInvalidSyncMLMessage
	}
	h.abort(ctx, terminal, description)
}

// finalize enters SYNC_FINISHED, persists the session snapshot via
// sessionSaver.SaveSession, and releases storages.
func (h *Handler) finalize(ctx context.Context) {
	snapshot := ports.SessionSnapshot{RemoteDevice: h.cfg.RemoteDevice}
	for uri, ts := range h.targets {
		tgt := ts.target
		tgt.LocalLastAnchor = tgt.LocalNextAnchor
		tgt.RemoteLastAnchor = tgt.RemoteNextAnchor

		snapshot.Targets = append(snapshot.Targets, ports.TargetSnapshot{
			SourceURI: uri,
			LocalLastAnchor: tgt.LocalLastAnchor,
			RemoteLastAnchor: tgt.RemoteLastAnchor,
			Mappings: tgt.Mappings(),
		})
		_ = h.changelogPersister.Save(ctx, h.cfg.RemoteDevice, uri, tgt.Mode.Direction, &ports.ChangelogEntry{Anchor: tgt.LocalLastAnchor})
	}

	if err := h.sessionSaver.SaveSession(ctx, snapshot); err != nil {
		h.abort(ctx, StateDatabaseFailure, fmt.Sprintf("save session: %v", err))
		return
	}

	h.setState(StateSyncFinished)
	h.Release(ctx)
	if h.observer != nil {
		h.observer.SyncFinished(h.cfg.RemoteDevice, StateSyncFinished, "")
	}
}

// enqueueDevInfIfNeeded queues a DevInfPackage per the local-initiated or
// remote-requested shape the first time it's needed.
func (h *Handler) enqueueDevInfIfNeeded(version model.ProtocolVersion) {
	if h.devinfo.LocalSent() {
		return
	}
	shape := h.devinfo.DetermineShape()
	pkg := &dspkg.DevInfPackage{TargetURI: version.DevInfURI()}
	switch shape {
	case devinfo.ShapePutGet:
		pkg.Put = buildDevInfPut(h.localInfo, version)
		pkg.Get = buildDevInfGet(version)
	case devinfo.ShapeResults:
		pkg.Results = buildDevInfResults(h.localInfo, version, h.remoteMsgID, "0")
	case devinfo.ShapeResultsGet:
		pkg.Results = buildDevInfResults(h.localInfo, version, h.remoteMsgID, "0")
		pkg.Get = buildDevInfGet(version)
	}
	h.responseGen.EnqueuePackage(pkg)
	h.devinfo.MarkLocalSent()
}

// enqueueAlert queues an AlertPackage for the given target's sync mode
// and anchor pair.
func (h *Handler) enqueueAlert(ts *targetState) {
	code := alertCodeFor(ts.target.Mode)
	ts.target.LocalNextAnchor = ts.target.LocalLastAnchor
	h.responseGen.EnqueuePackage(&dspkg.AlertPackage{
		CmdID: h.NextCmdID(),
		Code: code,
		SourceURI: ts.target.SourceDatabase,
		TargetURI: ts.target.TargetDatabase,
		LocalLastAnchor: ts.target.LocalLastAnchor,
		LocalNextAnchor: ts.target.LocalNextAnchor,
	})
}

func alertCodeFor(mode target.SyncMode) int {
	switch mode.Type {
	case model.SyncSlow:
		return model.AlertSlow
	case model.SyncRefresh:
		switch mode.Direction {
		case model.DirFromClient:
			return model.AlertRefreshFromClient
		default:
			return model.AlertRefreshFromServer
		}
	default: // SyncFast
		switch mode.Direction {
		case model.DirFromClient:
			return model.AlertOneWayFromClient
		case model.DirFromServer:
			return model.AlertOneWayFromServer
		default:
			return model.AlertTwoWay
		}
	}
}

// enqueueLocalChanges queues a LocalChangesPackage for every target whose
// negotiated direction requires sending modifications.
func (h *Handler) enqueueLocalChanges(ctx context.Context) {
	for uri, ts := range h.targets {
		changes := ts.target.LocalChanges()
		if changes == nil {
			changes = h.computeLocalChanges(ctx, ts.target)
		}
		if changes.Empty() {
			continue
		}
		h.responseGen.EnqueuePackage(&dspkg.LocalChangesPackage{
			CmdID: h.NextCmdID(),
			SourceURI: uri,
			TargetURI: ts.target.TargetDatabase,
			Target: ts.target,
			Role: h.cfg.Role,
			MaxChangesPerMessage: h.cfg.MaxChangesPerMessage,
			LargeObjectThreshold: h.cfg.LargeObjectThreshold,
			Prefetcher: target.NewPrefetcher(ts.target.Storage),
		})
	}
}

// computeLocalChanges derives a target's LocalChanges manifest from the
// backend's reported delta since the stored anchor.
func (h *Handler) computeLocalChanges(ctx context.Context, tgt *target.Target) *model.LocalChanges {
	changes := model.NewLocalChanges()
	if tgt.Mode.Type == model.SyncSlow {
		keys, err := tgt.Storage.GetAll(ctx)
		if err == nil {
			for _, k := range keys {
				changes.Added[model.SyncItemKey(k)] = struct{}{}
			}
		}
		tgt.SetLocalChanges(changes)
		return changes
	}
	added, replaced, deleted, err := tgt.Storage.GetModifications(ctx, tgt.LocalLastAnchor)
	if err == nil {
		for _, k := range added {
			changes.Added[model.SyncItemKey(k)] = struct{}{}
		}
		for _, k := range replaced {
			changes.Modified[model.SyncItemKey(k)] = struct{}{}
		}
		for _, k := range deleted {
			changes.Removed[model.SyncItemKey(k)] = struct{}{}
		}
	}
	tgt.SetLocalChanges(changes)
	return changes
}
