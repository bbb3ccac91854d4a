// Package devinfo implements the Device-Info Handler: the
// one-shot-per-session Put/Get/Results dance that exchanges device and
// datastore capabilities between peers.
package devinfo

import (
	"fmt"

	"github.com/marmos91/syncmld/internal/dsync/model"
)

// DataStoreInfo is one entry of a DevInf <DataStore> block.
type DataStoreInfo struct {
	SourceURI string
	RxPreferredType string
	RxPreferredVer string
	TxPreferredType string
	TxPreferredVer string
	CTCapXML string
	MaxGUIDSize int
}

// Info is the local or remote device capability record exchanged via
// DevInf.
type Info struct {
	Man string
	Mod string
	OEM string
	FwV string
	SwV string
	HwV string
	DevID string
	DevTyp string
	UTC bool
	SupportLargeObjs bool
	SupportNumberOfChanges bool
	DataStores             []DataStoreInfo
}

// Shape is which of the three wire shapes the Handler must
// produce for the current session.
type Shape int

const (
	ShapePutGet Shape = iota
	ShapeResults
	ShapeResultsGet
)

// Handler drives device-info exchange for one session. It is not safe for
// concurrent use — the session is single-threaded.
type Handler struct {
	local Info
	localSent bool
	remote          *Info
	remoteRequested bool
}

// NewHandler returns a Handler carrying the local capability record.
func NewHandler(local Info) *Handler {
	return &Handler{local: local}
}

// LocalSent reports whether the local DevInfPackage has already been
// queued this session.
func (h *Handler) LocalSent() bool {
	return h.localSent
}

// MarkLocalSent records that the local DevInfPackage has been queued.
func (h *Handler) MarkLocalSent() {
	h.localSent = true
}

// RecordRemote stores the remote peer's capability record, learned from
// an inbound Put or Results targeting the DevInf URI.
func (h *Handler) RecordRemote(info Info) {
	h.remote = &info
}

// HaveRemote reports whether the remote capability record has been
// recorded yet.
func (h *Handler) HaveRemote() bool {
	return h.remote != nil
}

// Remote returns the recorded remote capability record, or nil.
func (h *Handler) Remote() *Info {
	return h.remote
}

// RecordRemoteGet records that the remote peer issued a Get against the
// DevInf URI, requiring a Results response.
func (h *Handler) RecordRemoteGet() {
	h.remoteRequested = true
}

// DetermineShape decides which of the three wire shapes
// applies for the local peer's next package:
//
//  1. Put+Get — local-initiated: local hasn't sent yet and remote hasn't
//     asked for it.
//  2. Results — remote asked (Get) and local already has remote's info.
//  3. Results+Get — remote asked, but local doesn't have remote's info
//     yet, so it piggybacks its own Get.
func (h *Handler) DetermineShape() Shape {
	if h.remoteRequested {
		if h.HaveRemote() {
			return ShapeResults
		}
		return ShapeResultsGet
	}
	return ShapePutGet
}

// ErrWrongDevInfURI is returned by ValidateTargetURI on a mismatch.
var ErrWrongDevInfURI = fmt.Errorf("devinfo: target URI does not match version-specific DevInf URI")

// ValidateTargetURI checks an inbound Put/Get/Results target URI against
// the version-specific DevInf URI (./devinf11 or ./devinf12).
func ValidateTargetURI(version model.ProtocolVersion, targetURI string) error {
	want := version.DevInfURI()
	if want == "" || targetURI != want {
		return ErrWrongDevInfURI
	}
	return nil
}
