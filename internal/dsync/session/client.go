// Client-role transitions of the Session Handler.
package session

import (
	"context"

	"github.com/marmos91/syncmld/internal/dsync/authn"
	"github.com/marmos91/syncmld/internal/dsync/dspkg"
	"github.com/marmos91/syncmld/internal/dsync/fragment"
	"github.com/marmos91/syncmld/internal/dsync/model"
)

// BeginClientInit builds and enqueues the client's init package: the
// outbound header (with Cred only when already known to be accepted or
// when Basic auth needs no challenge round-trip) plus one Alert per
// target.
func (h *Handler) BeginClientInit(ctx context.Context) error {
	if h.state != StatePrepared {
		return nil
	}
	if h.cfg.AuthType != model.AuthNone {
		if err := h.enqueueClientCred(ctx); err != nil {
			return err
		}
	}
	for _, ts := range h.targets {
		h.enqueueAlert(ts)
	}
	if h.cfg.SyncWithoutInitPhase {
		h.enqueueLocalChanges(ctx)
	}
	h.setState(StateLocalInit)
	return nil
}

// enqueueClientCred queues an AuthenticationPackage. For MD5 it only
// attaches a credential if a nonce from a prior challenge (this session
// or persisted from a previous one) is already known; otherwise the
// client waits for the server's 407 challenge.
func (h *Handler) enqueueClientCred(ctx context.Context) error {
	switch h.cfg.AuthType {
	case model.AuthBasic:
		pkg := &dspkg.AuthenticationPackage{
			Type: model.AuthBasic,
			Data: authn.EncodeBasic(h.cfg.AuthUser, h.cfg.AuthPass),
		}
		h.responseGen.SetCred(pkg.BuildCred())
		h.currentAuthType = model.AuthBasic
		h.authAttemptPending = true
	case model.AuthMD5:
		nonce, ok, err := h.noncePersister.Get(ctx, h.cfg.LocalURI, h.cfg.RemoteDevice)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		pkg := &dspkg.AuthenticationPackage{
			Type: model.AuthMD5,
			Data: authn.EncodeMD5(h.cfg.AuthUser, h.cfg.AuthPass, nonce),
		}
		h.responseGen.SetCred(pkg.BuildCred())
		h.currentAuthType = model.AuthMD5
		h.authAttemptPending = true
	}
	return nil
}

// clientHandleHeader reacts to the server's response header. The first
// response from the server completes the implicit LOCAL_INIT → REMOTE_INIT
// transition.
func (h *Handler) clientHandleHeader(ctx context.Context, hdr *fragment.HeaderParams) error {
	if h.state == StateLocalInit {
		h.setState(StateRemoteInit)
	}
	return nil
}

// clientHandleAlert reacts to a top-level Alert sent by the server. In
// the basic client/server flow the server does not alert sync mode back
// to the client; this covers the rare case of a server requesting a mode
// change (e.g. forcing a slow resync) by recording the new anchors.
func (h *Handler) clientHandleAlert(ctx context.Context, alert *fragment.AlertParams) error {
	ts := h.targetByTarget(alert.TargetURI)
	if ts == nil {
		ts = h.targetBySource(alert.SourceURI)
	}
	if ts == nil {
		return nil
	}
	if alert.Meta != nil && alert.Meta.Anchor != nil {
		ts.target.RemoteLastAnchor = alert.Meta.Anchor.Last
		ts.target.RemoteNextAnchor = alert.Meta.Anchor.Next
	}
	h.responseGen.AddStatus(fragment.StatusParams{
		CmdID: h.NextCmdID(), CmdRef: alert.CmdID, Cmd: "Alert",
		Data: int(model.StatusSuccess),
	}, false, nil)
	return nil
}

// clientAfterSync marks that inbound item processing has begun, so the
// subsequent Final triggers RECEIVING_ITEMS → SENDING_MAPPINGS rather
// than REMOTE_INIT → SENDING_ITEMS.
func (h *Handler) clientAfterSync(ctx context.Context) {
	if h.state == StateRemoteInit || h.state == StateLocalInit {
		h.setState(StateReceivingItems)
	}
}

// clientHandleFinal drives every Final-triggered client transition of
// the client-role state table.
func (h *Handler) clientHandleFinal(ctx context.Context) error {
	switch h.state {
	case StateRemoteInit:
		h.setState(StateSendingItems)
		h.enqueueLocalChanges(ctx)
		h.responseGen.EnqueuePackage(&dspkg.FinalPackage{})
	case StateReceivingItems:
		h.setState(StateSendingMappings)
		h.enqueueClientMappings(ctx)
		h.responseGen.EnqueuePackage(&dspkg.FinalPackage{})
	case StateSendingItems, StateSendingMappings:
		h.setState(StateFinalizing)
		h.responseGen.EnqueuePackage(&dspkg.FinalPackage{})
	default:
	}
	return nil
}

// enqueueClientMappings queues a LocalMappingsPackage per target with new
// mappings pending acknowledgement, unless fast-maps-send already sent
// them alongside the item-ack statuses.
func (h *Handler) enqueueClientMappings(ctx context.Context) {
	for uri, ts := range h.targets {
		mappings := ts.target.Mappings()
		if len(mappings) == 0 {
			continue
		}
		h.responseGen.EnqueuePackage(&dspkg.LocalMappingsPackage{
			CmdID: h.NextCmdID(),
			SourceURI: uri,
			TargetURI: ts.target.TargetDatabase,
			Mappings: mappings,
		})
	}
}

// handleHeaderStatus reacts to a Status addressing SyncHdr: the auth
// challenge / acceptance cycle.
func (h *Handler) handleHeaderStatus(ctx context.Context, status *fragment.StatusParams) error {
	code := model.ResponseStatusCode(status.Data)
	switch code {
	case model.StatusAuthAccepted, model.StatusSuccess:
		h.authenticated = true
		h.authAttemptPending = false
		if h.cfg.AuthType == model.AuthMD5 {
			_ = h.noncePersister.Clear(ctx, h.cfg.LocalURI, h.cfg.RemoteDevice)
		}
		return nil
	case model.StatusMissingCredentials, model.StatusInvalidCredentials:
		return h.reactToChallenge(ctx, status)
	default:
		return nil
	}
}

func (h *Handler) reactToChallenge(ctx context.Context, status *fragment.StatusParams) error {
	challengedType := model.AuthNone
	nonce := ""
	if status.Chal != nil {
		challengedType = authTypeFromWireString(status.Chal.Type)
		nonce = status.Chal.NextNonce
	}
	newType, err := authn.HandleChallenge(h.currentAuthType, h.authAttemptPending, challengedType)
	if err != nil {
		h.abort(ctx, StateAuthenticationFailure, err.Error())
		return nil
	}
	h.currentAuthType = newType
	if newType == model.AuthMD5 && nonce != "" {
		if err := h.noncePersister.Upsert(ctx, h.cfg.LocalURI, h.cfg.RemoteDevice, nonce); err != nil {
			return err
		}
	}
	h.authAttemptPending = false
	// Resend the current outbound package with credentials attached.
	return h.enqueueClientCred(ctx)
}

func authTypeFromWireString(s string) model.AuthType {
	switch s {
	case "syncml:auth-basic":
		return model.AuthBasic
	case "syncml:auth-md5":
		return model.AuthMD5
	default:
		return model.AuthNone
	}
}
