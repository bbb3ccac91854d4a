package session

import (
	"context"

	"github.com/marmos91/syncmld/internal/dsync/devinfo"
	"github.com/marmos91/syncmld/internal/dsync/fragment"
	"github.com/marmos91/syncmld/internal/dsync/model"
)

// handleAlertFragment processes an inbound top-level <Alert>.
// Informational alerts (NEXT_MESSAGE/NO_END_OF_DATA) only matter inside a
// Sync block and are handled by the Command Handler during composeBatches,
// so by the time a bare Alert fragment reaches here it is always a sync-
// mode alert addressing one target.
func (h *Handler) handleAlertFragment(ctx context.Context, alert *fragment.AlertParams) error {
	if alert == nil {
		return nil
	}
	if h.cfg.Role == model.RoleServer {
		return h.serverHandleAlert(ctx, alert)
	}
	return h.clientHandleAlert(ctx, alert)
}

// handleSyncFragment dispatches an inbound <Sync> block to the target's
// Command Handler and emits the Sync's own 200 Status.
func (h *Handler) handleSyncFragment(ctx context.Context, sync *fragment.SyncParams) error {
	if sync == nil {
		return nil
	}
	ts := h.resolveSyncTarget(sync)
	if ts == nil {
		h.responseGen.AddStatus(fragment.StatusParams{
			CmdID: h.NextCmdID(), CmdRef: sync.CmdID, Cmd: "Sync",
			Data: int(model.StatusCommandFailed),
		}, false, nil)
		return nil
	}

	if !sync.NoResp {
		h.responseGen.AddStatus(fragment.StatusParams{
			CmdID: h.NextCmdID(), CmdRef: sync.CmdID, Cmd: "Sync",
			TargetURI: sync.TargetURI, SourceURI: sync.SourceURI,
			Data: int(model.StatusSuccess),
		}, false, nil)
	}

	if err := ts.cmd.HandleSync(ctx, sync, ts.target, ts.storage, h.responseGen); err != nil {
		h.abort(ctx, StateInternalError, "command handler: "+err.Error())
		return nil
	}

	if h.cfg.Role == model.RoleServer {
		h.serverAfterSync(ctx)
	} else {
		h.clientAfterSync(ctx)
	}
	return nil
}

func (h *Handler) resolveSyncTarget(sync *fragment.SyncParams) *targetState {
	if ts := h.targetByTarget(sync.TargetURI); ts != nil {
		return ts
	}
	return h.targetBySource(sync.SourceURI)
}

// handleMapFragment applies an inbound <Map> and always succeeds.
func (h *Handler) handleMapFragment(ctx context.Context, m *fragment.MapParams) error {
	if m == nil {
		return nil
	}
	ts := h.targetByTarget(m.TargetURI)
	if ts == nil {
		ts = h.targetBySource(m.SourceURI)
	}
	if ts == nil {
		return nil
	}
	code := ts.cmd.HandleMap(m, ts.target)
	h.responseGen.AddStatus(fragment.StatusParams{
		CmdID: h.NextCmdID(), CmdRef: m.CmdID, Cmd: "Map",
		TargetURI: m.TargetURI, SourceURI: m.SourceURI,
		Data: int(code),
	}, false, nil)

	if h.observer != nil {
		for _, item := range m.Items {
			h.observer.NewMapWritten(ts.target.SourceDatabase, model.UIDMapping{RemoteUID: item.SourceURI, LocalUID: item.TargetURI})
		}
	}

	if h.cfg.Role == model.RoleServer {
		h.setState(StateReceivingMappings)
	}
	return nil
}

// handlePutFragment processes an inbound device-info Put: a
// Put whose target is the version-specific DevInf URI carries the
// remote's capability record.
func (h *Handler) handlePutFragment(ctx context.Context, put *fragment.PutParams) error {
	if put == nil {
		return nil
	}
	status := model.StatusSuccess
	for _, item := range put.Items {
		if err := devinfo.ValidateTargetURI(h.cfg.ProtocolVersion, item.TargetURI); err != nil {
			status = model.StatusCommandFailed
			continue
		}
		if el := findDevInfElement(item); el != nil {
			h.devinfo.RecordRemote(parseDevInfElement(el))
		}
	}
	h.responseGen.AddStatus(fragment.StatusParams{
		CmdID: h.NextCmdID(), CmdRef: put.CmdID, Cmd: "Put",
		Data: int(status),
	}, false, nil)
	return nil
}

// handleGetFragment processes an inbound device-info Get: a
// Get whose target is the version-specific DevInf URI requires a Results
// response carrying the local capability record.
func (h *Handler) handleGetFragment(ctx context.Context, get *fragment.PutParams) error {
	if get == nil {
		return nil
	}
	status := model.StatusSuccess
	for _, item := range get.Items {
		if err := devinfo.ValidateTargetURI(h.cfg.ProtocolVersion, item.TargetURI); err != nil {
			status = model.StatusCommandFailed
			continue
		}
		h.devinfo.RecordRemoteGet()
	}
	h.responseGen.AddStatus(fragment.StatusParams{
		CmdID: h.NextCmdID(), CmdRef: get.CmdID, Cmd: "Get",
		Data: int(status),
	}, false, nil)
	h.enqueueDevInfIfNeeded(h.cfg.ProtocolVersion)
	return nil
}

// handleResultsFragment processes an inbound <Results>.
func (h *Handler) handleResultsFragment(ctx context.Context, results *fragment.ResultsParams) error {
	if results == nil {
		return nil
	}
	for _, item := range results.Items {
		if el := findDevInfElement(item); el != nil {
			h.devinfo.RecordRemote(parseDevInfElement(el))
		}
	}
	return nil
}

// handleFinal processes an inbound <Final/>, the trigger for every
// role-specific major transition (server/client next-phase dispatch).
func (h *Handler) handleFinal(ctx context.Context) error {
	if h.cfg.Role == model.RoleServer {
		return h.serverHandleFinal(ctx)
	}
	return h.clientHandleFinal(ctx)
}
