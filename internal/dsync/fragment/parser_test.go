package fragment

import (
	"testing"

	"github.com/marmos91/syncmld/internal/dsync/wire"
	"github.com/stretchr/testify/require"
)

func buildMessage() *wire.Element {
	root := wire.NewElement(wire.NSSyncML, "SyncML")
	hdr := root.AddChild(wire.NewElement(wire.NSSyncML, "SyncHdr"))
	hdr.AddText("VerDTD", "1.2")
	hdr.AddText("VerProto", "SyncML/1.2")
	hdr.AddText("SessionID", "1")
	hdr.AddText("MsgID", "2")

	body := root.AddChild(wire.NewElement(wire.NSSyncML, "SyncBody"))
	status := body.AddChild(wire.NewElement(wire.NSSyncML, "Status"))
	status.AddText("CmdID", "1")
	status.AddText("MsgRef", "1")
	status.AddText("CmdRef", "0")
	status.AddText("Cmd", "SyncHdr")
	status.AddText("Data", "200")

	alert := body.AddChild(wire.NewElement(wire.NSSyncML, "Alert"))
	alert.AddText("CmdID", "2")
	alert.AddText("Data", "200")

	body.AddChild(wire.NewElement(wire.NSSyncML, "Final"))
	return root
}

func TestParseOrdersFragments(t *testing.T) {
	frags, err := Parse(buildMessage())
	require.NoError(t, err)
	require.Len(t, frags, 4)
	require.Equal(t, KindHeader, frags[0].Kind)
	require.Equal(t, "2", frags[0].Header.MsgID)
	require.Equal(t, KindStatus, frags[1].Kind)
	require.Equal(t, 200, frags[1].Status.Data)
	require.Equal(t, KindAlert, frags[2].Kind)
	require.Equal(t, 200, frags[2].Alert.Code)
	require.Equal(t, KindFinal, frags[3].Kind)
}

func TestParseMissingSyncHdrIsInvalidData(t *testing.T) {
	root := wire.NewElement(wire.NSSyncML, "SyncML")
	root.AddChild(wire.NewElement(wire.NSSyncML, "SyncBody"))

	_, err := Parse(root)
	require.Error(t, err)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, ErrInvalidData, perr.Kind)
}

func TestParseUnknownRootIsUnexpectedData(t *testing.T) {
	root := wire.NewElement(wire.NSSyncML, "NotSyncML")
	_, err := Parse(root)
	require.Error(t, err)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, ErrUnexpectedData, perr.Kind)
}
