// Package response implements the Response Generator: the
// outbound-message assembly loop that owns the header, the queued Status
// records, and the queued Packages, slicing output into one or more
// messages honoring the remote max-message-size minus a safety margin.
//
// Grounded on this codebase's rpc response-framing loop (build header, drain
// a bounded work queue until the frame budget is exhausted, defer the
// rest) generalized from one wire frame to the Status/Package double
// queue this package drains.
package response

import (
	"github.com/marmos91/syncmld/internal/dsync/dspkg"
	"github.com/marmos91/syncmld/internal/dsync/fragment"
	"github.com/marmos91/syncmld/internal/dsync/model"
	"github.com/marmos91/syncmld/internal/dsync/wire"
)

// queuedStatus is a pending outbound <Status>, built lazily into a wire
// element at drain time so its estimated size reflects any Chal payload
// attached after it was queued.
type queuedStatus struct {
	params fragment.StatusParams
	isHeader bool
	chal        *wire.Element
}

// Generator assembles outbound messages for one session direction.
type Generator struct {
	header fragment.HeaderParams
	remoteLastMsgID string
	localMsgID int
	statuses       []queuedStatus
	packages       []dspkg.Package
	ignoreStatuses bool
	pendingCred    *wire.Element
}

// NewGenerator returns a Generator seeded with the session's local header
// template (session ID, source/target URIs; MsgID is overwritten per
// message).
func NewGenerator(header fragment.HeaderParams) *Generator {
	return &Generator{header: header}
}

// SetRemoteLastMsgID records the remote's most recent MsgID, used as
// MsgRef on statuses addressing that message.
func (g *Generator) SetRemoteLastMsgID(msgID string) {
	g.remoteLastMsgID = msgID
}

// SetIgnoreStatuses toggles the "ignore everything except challenge
// header statuses" mode, e.g. while aborting a session.
func (g *Generator) SetIgnoreStatuses(ignore bool) {
	g.ignoreStatuses = ignore
}

// AddStatus queues a StatusParams built by the caller from the
// originating fragment, optionally carrying a Chal block. When
// ignoreStatuses is set, only header statuses carrying a Chal survive.
func (g *Generator) AddStatus(params fragment.StatusParams, isHeaderStatus bool, chal *wire.Element) {
	if g.ignoreStatuses && !(isHeaderStatus && chal != nil) {
		return
	}
	if params.MsgRef == "" {
		params.MsgRef = g.remoteLastMsgID
	}
	g.statuses = append(g.statuses, queuedStatus{params: params, isHeader: isHeaderStatus, chal: chal})
}

// EnqueuePackage appends a Package to the drain queue, in order.
func (g *Generator) EnqueuePackage(p dspkg.Package) {
	g.packages = append(g.packages, p)
}

// SetCred installs a <Cred> element to splice into the next outbound
// header.
func (g *Generator) SetCred(cred *wire.Element) {
	g.pendingCred = cred
}

// PendingPackages reports whether any package remains queued.
func (g *Generator) PendingPackages() bool {
	return len(g.packages) > 0
}

// PendingStatuses reports whether any status remains queued.
func (g *Generator) PendingStatuses() bool {
	return len(g.statuses) > 0
}

func statusElement(s queuedStatus) *wire.Element {
	el := wire.NewElement(wire.NSSyncML, "Status")
	el.AddText("CmdID", s.params.CmdID)
	el.AddText("MsgRef", s.params.MsgRef)
	el.AddText("CmdRef", s.params.CmdRef)
	el.AddText("Cmd", s.params.Cmd)
	if len(s.params.Items) > 0 {
		for _, ref := range s.params.Items {
			if ref.TargetURI != "" {
				t := el.AddChild(wire.NewElement(wire.NSSyncML, "TargetRef"))
				t.Text = ref.TargetURI
			}
			if ref.SourceURI != "" {
				src := el.AddChild(wire.NewElement(wire.NSSyncML, "SourceRef"))
				src.Text = ref.SourceURI
			}
		}
	} else {
		if s.params.TargetURI != "" {
			t := el.AddChild(wire.NewElement(wire.NSSyncML, "TargetRef"))
			t.Text = s.params.TargetURI
		}
		if s.params.SourceURI != "" {
			src := el.AddChild(wire.NewElement(wire.NSSyncML, "SourceRef"))
			src.Text = s.params.SourceURI
		}
	}
	el.AddText("Data", itoa(s.params.Data))
	if s.chal != nil {
		el.AddChild(s.chal)
	}
	return el
}

// GenerateNextMessage builds the next outbound message against a working
// budget of floor(maxBytes*0.9) bytes: header, then as many
// queued statuses as fit, then packages drained via their Write contract
// until one returns false or the budget is exhausted.
//
// Returns the built SyncML root element and whether this message was the
// last one needed (no statuses or packages remain queued).
func (g *Generator) GenerateNextMessage(maxBytes int, version model.ProtocolVersion) (*wire.Element, bool) {
	g.localMsgID++
	budget := (maxBytes * 9) / 10

	root := wire.NewElement(wire.NSSyncML, "SyncML")
	root.SetAttr("xmlns", xmlnsFor(version))
	hdr := root.AddChild(wire.NewElement(wire.NSSyncML, "SyncHdr"))
	hdr.AddText("VerDTD", version.String())
	hdr.AddText("VerProto", version.ProtocolString())
	hdr.AddText("SessionID", g.header.SessionID)
	hdr.AddText("MsgID", itoa(g.localMsgID))
	if g.header.TargetURI != "" {
		t := hdr.AddChild(wire.NewElement(wire.NSSyncML, "Target"))
		t.AddText("LocURI", g.header.TargetURI)
	}
	if g.header.SourceURI != "" {
		s := hdr.AddChild(wire.NewElement(wire.NSSyncML, "Source"))
		s.AddText("LocURI", g.header.SourceURI)
	}
	if g.pendingCred != nil {
		hdr.AddChild(g.pendingCred)
		g.pendingCred = nil
	}
	budget -= wire.SizeEstimate(hdr)

	body := root.AddChild(wire.NewElement(wire.NSSyncML, "SyncBody"))

	var deferredStatuses []queuedStatus
	drainedAll := true
	for i, qs := range g.statuses {
		el := statusElement(qs)
		size := wire.SizeEstimate(el)
		if size > budget {
			deferredStatuses = append(deferredStatuses, g.statuses[i:]...)
			drainedAll = false
			break
		}
		body.AddChild(el)
		budget -= size
	}
	g.statuses = deferredStatuses

	var remainingPackages []dspkg.Package
	for i, pkg := range g.packages {
		before := wire.SizeEstimate(body)
		done := pkg.Write(body, budget)
		budget -= wire.SizeEstimate(body) - before
		if done {
			continue
		}
		remainingPackages = append(remainingPackages, g.packages[i:]...)
		drainedAll = false
		break
	}
	if remainingPackages != nil {
		g.packages = remainingPackages
	} else {
		g.packages = nil
	}

	last := drainedAll && len(g.statuses) == 0 && len(g.packages) == 0
	return root, last
}

func xmlnsFor(version model.ProtocolVersion) string {
	if version == model.VersionDS11 {
		return wire.XMLNSSyncML11
	}
	return wire.XMLNSSyncML12
}

func itoa(n int) string {
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
