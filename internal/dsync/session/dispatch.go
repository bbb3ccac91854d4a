package session

import (
	"context"
	"fmt"

	"github.com/marmos91/syncmld/internal/dsync/command"
	"github.com/marmos91/syncmld/internal/dsync/fragment"
	"github.com/marmos91/syncmld/internal/dsync/model"
)

// IngestMessage processes one inbound message's fragments in document
// order, dispatching each to the role-specific handler. A parse failure
// from the caller should instead go straight to Abort with
// StateInvalidSyncMLMessage without calling IngestMessage.
func (h *Handler) IngestMessage(ctx context.Context, frags []fragment.Fragment) error {
	h.SetMidParse(true)
	defer h.SetMidParse(false)

	for _, frag := range frags {
		if h.state.IsErrorTerminal() {
			return nil
		}
		if err := h.dispatchFragment(ctx, frag); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) dispatchFragment(ctx context.Context, frag fragment.Fragment) error {
	switch frag.Kind {
	case fragment.KindHeader:
		return h.handleHeader(ctx, frag.Header)
	case fragment.KindStatus:
		return h.handleStatusFragment(ctx, frag.Status)
	case fragment.KindAlert:
		return h.handleAlertFragment(ctx, frag.Alert)
	case fragment.KindSync:
		return h.handleSyncFragment(ctx, frag.Sync)
	case fragment.KindMap:
		return h.handleMapFragment(ctx, frag.Map)
	case fragment.KindPut:
		return h.handlePutFragment(ctx, frag.Put)
	case fragment.KindGet:
		return h.handleGetFragment(ctx, frag.Get)
	case fragment.KindResults:
		return h.handleResultsFragment(ctx, frag.Results)
	case fragment.KindCommand:
		// A bare top-level Command outside a Sync block (e.g. a
		// standalone Exec) is not part of this engine's scope; report
		// not-implemented, the same way other unsupported command
		// types are handled.
		if frag.Command != nil {
			h.responseGen.AddStatus(fragment.StatusParams{
				CmdID: h.NextCmdID(),
				CmdRef: frag.Command.CmdID,
				Cmd: cmdName(frag.Command.CommandType),
				Data: int(model.StatusNotImplemented),
			}, false, nil)
		}
		return nil
	case fragment.KindFinal:
		return h.handleFinal(ctx)
	default:
		return fmt.Errorf("session: unhandled fragment kind %d", frag.Kind)
	}
}

func cmdName(ct fragment.CommandType) string {
	switch ct {
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
	default:
		return "Alert"
	}
}

// handleHeader processes the inbound <SyncHdr>: authentication check,
// session/message bookkeeping. It is shared by both roles; role-specific
// reaction to an auth challenge/failure happens in client.go/server.go.
func (h *Handler) handleHeader(ctx context.Context, hdr *fragment.HeaderParams) error {
	if hdr == nil {
		h.abort(ctx, StateInvalidSyncMLMessage, "nil header fragment")
		return nil
	}
	h.remoteMsgID = hdr.MsgID
	h.responseGen.SetRemoteLastMsgID(hdr.MsgID)

	if h.cfg.Role == model.RoleServer {
		return h.serverHandleHeader(ctx, hdr)
	}
	return h.clientHandleHeader(ctx, hdr)
}

func (h *Handler) handleStatusFragment(ctx context.Context, status *fragment.StatusParams) error {
	if status == nil {
		return nil
	}
	if status.Cmd == "SyncHdr" {
		return h.handleHeaderStatus(ctx, status)
	}
	ts := h.resolveTargetForStatus(status)
	if ts == nil {
		return nil
	}
	outcome := ts.cmd.HandleStatus(status, h)
	return h.applyStatusOutcome(ctx, ts, status, outcome)
}

// resolveTargetForStatus finds the targetState a Status fragment
// addresses, by its SourceRef/TargetRef (falling back to the sole
// configured target).
func (h *Handler) resolveTargetForStatus(status *fragment.StatusParams) *targetState {
	if status.SourceURI != "" {
		if ts := h.targetBySource(status.SourceURI); ts != nil {
			return ts
		}
	}
	if status.TargetURI != "" {
		if ts := h.targetByTarget(status.TargetURI); ts != nil {
			return ts
		}
	}
	if len(h.targets) == 1 {
		for _, ts := range h.targets {
			return ts
		}
	}
	return nil
}

// ItemAcknowledged implements command.ItemAckObserver.
func (h *Handler) ItemAcknowledged(msgRef, cmdRef, sourceRef string) {
	if h.observer == nil {
		return
	}
	h.observer.ItemProcessed(sourceRef, model.ItemId{CmdID: cmdRef}, model.StatusSuccess)
}

// applyStatusOutcome reacts to the command.StatusOutcome computed by
// ts.cmd.HandleStatus.
func (h *Handler) applyStatusOutcome(ctx context.Context, ts *targetState, status *fragment.StatusParams, outcome command.StatusOutcome) error {
	switch outcome {
	case command.StatusNoAction:
		return nil
	case command.StatusReportNotImplemented:
		h.responseGen.AddStatus(fragment.StatusParams{
			CmdID: h.NextCmdID(),
			CmdRef: status.CmdRef,
			Cmd: status.Cmd,
			Data: int(model.StatusNotImplemented),
		}, false, nil)
		return nil
	case command.StatusRevertToSlowSync:
		ts.target.RevertToSlowSync()
		return nil
	case command.StatusAbort:
		h.abort(ctx, StateInvalidSyncMLMessage, fmt.Sprintf("peer reported status %d", status.Data))
		return nil
	default:
		return nil
	}
}
