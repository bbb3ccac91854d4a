// Server-role transitions of the Session Handler.
package session

import (
	"context"

	"github.com/marmos91/syncmld/internal/dsync/authn"
	"github.com/marmos91/syncmld/internal/dsync/dspkg"
	"github.com/marmos91/syncmld/internal/dsync/fragment"
	"github.com/marmos91/syncmld/internal/dsync/model"
	"github.com/marmos91/syncmld/internal/dsync/target"
	"github.com/marmos91/syncmld/internal/dsync/wire"
)

// serverHandleHeader verifies the inbound <SyncHdr>'s credential against
// the configured auth type, queuing either an acceptance status or a
// Chal-bearing challenge status.
func (h *Handler) serverHandleHeader(ctx context.Context, hdr *fragment.HeaderParams) error {
	if h.cfg.AuthType == model.AuthNone {
		h.authenticated = true
		h.queueHeaderStatus(hdr, model.StatusSuccess, nil)
		return nil
	}

	if hdr.Cred == nil {
		return h.challengeHeader(ctx, hdr, model.StatusMissingCredentials)
	}

	suppliedType := authTypeFromWireString(hdr.Cred.Type)
	ok, err := h.verifyCred(ctx, suppliedType, hdr.Cred.Data)
	if err != nil {
		return err
	}
	if !ok {
		return h.challengeHeader(ctx, hdr, model.StatusInvalidCredentials)
	}

	h.authenticated = true
	if suppliedType == model.AuthMD5 {
		_ = h.noncePersister.Clear(ctx, h.cfg.LocalURI, h.cfg.RemoteDevice)
	}
	h.queueHeaderStatus(hdr, model.StatusAuthAccepted, nil)
	return nil
}

func (h *Handler) verifyCred(ctx context.Context, suppliedType model.AuthType, data string) (bool, error) {
	switch suppliedType {
	case model.AuthBasic:
		return authn.VerifyBasic(h.cfg.AuthUser, h.cfg.AuthPass, data), nil
	case model.AuthMD5:
		nonce, found, err := h.noncePersister.Get(ctx, h.cfg.LocalURI, h.cfg.RemoteDevice)
		if err != nil {
			return false, err
		}
		return found && authn.VerifyMD5(h.cfg.AuthUser, h.cfg.AuthPass, nonce, data), nil
	default:
		return false, nil
	}
}

func (h *Handler) challengeHeader(ctx context.Context, hdr *fragment.HeaderParams, code model.ResponseStatusCode) error {
	ch, err := authn.GenerateChallenge(ctx, h.cfg.AuthType, h.noncePersister, h.cfg.LocalURI, h.cfg.RemoteDevice)
	if err != nil {
		return err
	}
	h.queueHeaderStatus(hdr, code, buildChalElement(ch))
	return nil
}

func (h *Handler) queueHeaderStatus(hdr *fragment.HeaderParams, code model.ResponseStatusCode, chal *wire.Element) {
	h.responseGen.AddStatus(fragment.StatusParams{
		CmdID: h.NextCmdID(),
		MsgRef: hdr.MsgID,
		Cmd:    "SyncHdr",
		Data: int(code),
	}, true, chal)
}

func buildChalElement(ch *authn.Challenge) *wire.Element {
	chal := wire.NewElement(wire.NSSyncML, "Chal")
	meta := chal.AddChild(wire.NewElement(wire.NSSyncML, "Meta"))
	meta.AddChild(wire.NewElement(wire.NSMetInf, "Type")).Text = toWireAuthString(ch.Type)
	if ch.NextNonce != "" {
		meta.AddChild(wire.NewElement(wire.NSMetInf, "NextNonce")).Text = ch.NextNonce
	}
	return chal
}

func toWireAuthString(t model.AuthType) string {
	switch t {
	case model.AuthBasic:
		return "syncml:auth-basic"
	case model.AuthMD5:
		return "syncml:auth-md5"
	default:
		return ""
	}
}

// serverHandleAlert processes the client's init Alert: binds or reuses the
// addressed target, negotiates sync mode from the alert code, and checks
// the fast-sync anchor.
func (h *Handler) serverHandleAlert(ctx context.Context, alert *fragment.AlertParams) error {
	ts := h.targetBySource(alert.TargetURI)
	if ts == nil {
		ts = h.targetByTarget(alert.SourceURI)
	}
	if ts == nil {
		h.responseGen.AddStatus(fragment.StatusParams{
			CmdID: h.NextCmdID(), CmdRef: alert.CmdID, Cmd: "Alert",
			Data: int(model.StatusNotImplemented),
		}, false, nil)
		return nil
	}

	ts.target.Mode = target.SyncMode{
		Direction: modeDirectionForAlert(alert.Code),
		Type: modeTypeForAlert(alert.Code),
	}

	var remoteLast, remoteNext string
	if alert.Meta != nil && alert.Meta.Anchor != nil {
		remoteLast, remoteNext = alert.Meta.Anchor.Last, alert.Meta.Anchor.Next
	}
	ts.target.RemoteLastAnchor = remoteLast
	ts.target.RemoteNextAnchor = remoteNext

	if !ts.target.AnchorsMatch(remoteLast) {
		ts.target.RevertToSlowSync()
	}

	ts.target.LocalNextAnchor = ts.target.LocalLastAnchor
	code := model.StatusSuccess
	if ts.target.Mode.Type == model.SyncSlow {
		code = model.StatusSuccess
	}
	h.responseGen.AddStatus(fragment.StatusParams{
		CmdID: h.NextCmdID(), CmdRef: alert.CmdID, Cmd: "Alert",
		TargetURI: alert.TargetURI, SourceURI: alert.SourceURI,
		Data: int(code),
	}, false, anchorAckMeta(ts.target.LocalLastAnchor, ts.target.LocalNextAnchor))

	if h.state == StateNotPrepared || h.state == StatePrepared {
		h.setState(StateRemoteInit)
	}
	return nil
}

func anchorAckMeta(last, next string) *wire.Element {
	if last == "" && next == "" {
		return nil
	}
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

func modeDirectionForAlert(code int) model.SyncDirection {
	switch code {
	case model.AlertOneWayFromClient, model.AlertRefreshFromClient:
		return model.DirFromClient
	case model.AlertOneWayFromServer, model.AlertRefreshFromServer:
		return model.DirFromServer
	default:
		return model.DirTwoWay
	}
}

func modeTypeForAlert(code int) model.SyncType {
	switch code {
	case model.AlertSlow:
		return model.SyncSlow
	case model.AlertRefreshFromClient, model.AlertRefreshFromServer:
		return model.SyncRefresh
	default:
		return model.SyncFast
	}
}

// serverAfterSync records that the client's modifications for this target
// have been applied. The move onward to SENDING_ITEMS happens once the whole
// message (and its trailing Final) has been processed, in
// serverHandleFinal.
func (h *Handler) serverAfterSync(ctx context.Context) {
	if h.state == StateRemoteInit || h.state == StateLocalInit {
		h.setState(StateReceivingItems)
	}
}

// serverHandleFinal drives every Final-triggered server transition of
// the server-role state table, including the sync-without-init-phase
// optimization (REMOTE_INIT and RECEIVING_ITEMS collapse into the same
// message when the client piggybacks Sync onto its init message).
func (h *Handler) serverHandleFinal(ctx context.Context) error {
	switch h.state {
	case StateRemoteInit:
		h.setState(StateLocalInit)
		h.enqueueServerInit(ctx)
		h.responseGen.EnqueuePackage(&dspkg.FinalPackage{})
	case StateLocalInit, StateReceivingItems:
		if h.anyOutbound() {
			h.setState(StateSendingItems)
			h.enqueueLocalChanges(ctx)
		} else {
			h.setState(StateFinalizing)
		}
		h.responseGen.EnqueuePackage(&dspkg.FinalPackage{})
	case StateReceivingMappings:
		h.setState(StateFinalizing)
		h.responseGen.EnqueuePackage(&dspkg.FinalPackage{})
	default:
	}
	return nil
}

// enqueueServerInit queues the server's own init-phase reply content once
// the client's init message has been fully processed: an Alert echo per
// target is already queued from serverHandleAlert's Status, so only the
// device-info exchange remains here.
func (h *Handler) enqueueServerInit(ctx context.Context) {
	h.enqueueDevInfIfNeeded(h.cfg.ProtocolVersion)
}
