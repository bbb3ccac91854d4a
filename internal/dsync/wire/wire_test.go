package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTree() *Element {
	root := NewElement(NSSyncML, "SyncML")
	hdr := root.AddChild(NewElement(NSSyncML, "SyncHdr"))
	hdr.AddText("VerDTD", "1.2")
	hdr.AddText("VerProto", "SyncML/1.2")
	hdr.AddText("SessionID", "1")
	hdr.AddText("MsgID", "1")

	body := root.AddChild(NewElement(NSSyncML, "SyncBody"))
	status := body.AddChild(NewElement(NSSyncML, "Status"))
	status.AddText("CmdID", "1")
	status.AddText("MsgRef", "1")
	status.AddText("CmdRef", "0")
	status.AddText("Cmd", "SyncHdr")
	meta := status.AddChild(NewElement(NSMetInf, "Meta"))
	meta.AddText("Type", "application/vnd.syncml-devinf+xml")
	status.AddText("Data", "200")
	body.AddChild(NewElement(NSSyncML, "Final"))
	return root
}

func TestWbXMLRoundTrip(t *testing.T) {
	root := sampleTree()
	encoded, err := EncodeWbXML(root)
	require.NoError(t, err)

	decoded, err := DecodeWbXML(encoded)
	require.NoError(t, err)

	assert.True(t, root.Equal(decoded), "wbxml round trip should preserve tree structure")
}

func TestXMLRoundTrip(t *testing.T) {
	root := sampleTree()
	encoded, err := EncodeXML(root)
	require.NoError(t, err)

	decoded, err := DecodeXML(encoded)
	require.NoError(t, err)

	assert.True(t, root.Equal(decoded), "xml round trip should preserve tree structure")
}

func TestSizeEstimateMonotonic(t *testing.T) {
	root := NewElement(NSSyncML, "SyncBody")
	base := SizeEstimate(root)

	root.AddChild(NewElement(NSSyncML, "Final"))
	withChild := SizeEstimate(root)
	assert.Greater(t, withChild, base)

	root.AddText("Extra", "more data")
	withMore := SizeEstimate(root)
	assert.Greater(t, withMore, withChild)
}

func TestSizeEstimateAccuracy(t *testing.T) {
	root := sampleTree()
	estimate := SizeEstimate(root)
	encoded, err := EncodeXML(root)
	require.NoError(t, err)

	// subtract the XML prolog, which SizeEstimate doesn't model
	actual := len(encoded) - len(`<?xml version="1.0" encoding="UTF-8"?>`+"\n")
	assert.LessOrEqual(t, float64(actual), float64(estimate)*1.11+32)
}
