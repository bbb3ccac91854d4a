package response

import (
	"testing"

	"github.com/marmos91/syncmld/internal/dsync/dspkg"
	"github.com/marmos91/syncmld/internal/dsync/fragment"
	"github.com/marmos91/syncmld/internal/dsync/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateNextMessageHeaderAndMsgID(t *testing.T) {
	g := NewGenerator(fragment.HeaderParams{SessionID: "1", SourceURI: "server", TargetURI: "client"})
	root, done := g.GenerateNextMessage(10000, model.VersionDS12)
	require.True(t, done)
	hdr := root.Find("SyncHdr")
	require.NotNil(t, hdr)
	assert.Equal(t, "1", hdr.Find("MsgID").Text)

	root2, _ := g.GenerateNextMessage(10000, model.VersionDS12)
	hdr2 := root2.Find("SyncHdr")
	assert.Equal(t, "2", hdr2.Find("MsgID").Text)
}

func TestAddStatusIgnoredWhenIgnoreStatusesSet(t *testing.T) {
	g := NewGenerator(fragment.HeaderParams{SessionID: "1"})
	g.SetIgnoreStatuses(true)
	g.AddStatus(fragment.StatusParams{CmdID: "1", Data: 200}, false, nil)
	assert.False(t, g.PendingStatuses())
}

func TestAddStatusDrainedIntoMessage(t *testing.T) {
	g := NewGenerator(fragment.HeaderParams{SessionID: "1"})
	g.AddStatus(fragment.StatusParams{CmdID: "1", MsgRef: "1", CmdRef: "0", Cmd: "SyncHdr", Data: 200}, true, nil)
	root, done := g.GenerateNextMessage(10000, model.VersionDS12)
	require.True(t, done)
	body := root.Find("SyncBody")
	require.NotNil(t, body)
	status := body.Find("Status")
	require.NotNil(t, status)
	assert.Equal(t, "200", status.Find("Data").Text)
}

func TestEnqueuedPackageDrainsIntoMessage(t *testing.T) {
	g := NewGenerator(fragment.HeaderParams{SessionID: "1"})
	g.EnqueuePackage(&dspkg.FinalPackage{})
	root, done := g.GenerateNextMessage(10000, model.VersionDS12)
	require.True(t, done)
	body := root.Find("SyncBody")
	require.NotNil(t, body)
	assert.NotNil(t, body.Find("Final"))
	assert.False(t, g.PendingPackages())
}
