package target

import (
	"testing"

	"github.com/marmos91/syncmld/internal/dsync/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTarget() *Target {
	return New(nil, "card", "card", SyncMode{Type: model.SyncFast})
}

func TestAnchorsMatch(t *testing.T) {
	tgt := newTestTarget()
	tgt.LocalLastAnchor = "100"

	assert.True(t, tgt.AnchorsMatch("100"))
	assert.False(t, tgt.AnchorsMatch("99"))
	assert.False(t, tgt.AnchorsMatch(""))
}

func TestAnchorsMatchIgnoredOutsideFastSync(t *testing.T) {
	tgt := newTestTarget()
	tgt.Mode.Type = model.SyncSlow
	tgt.LocalLastAnchor = "100"

	assert.True(t, tgt.AnchorsMatch(""))
	assert.True(t, tgt.AnchorsMatch("anything"))
}

func TestRevertToSlowSyncClearsMappings(t *testing.T) {
	tgt := newTestTarget()
	tgt.AddMapping("r1", "l1")
	require.Equal(t, "l1", tgt.MapToLocalUID("r1"))

	tgt.RevertToSlowSync()

	assert.Equal(t, model.SyncSlow, tgt.Mode.Type)
	assert.True(t, tgt.Reverted())
	assert.Empty(t, tgt.Mappings())
	assert.Equal(t, "r1", tgt.MapToLocalUID("r1")) // falls back to remoteUID, no mapping left
}

func TestMappingRoundTrip(t *testing.T) {
	tgt := newTestTarget()
	tgt.AddMapping("r1", "l1")
	tgt.AddMapping("r2", "l2")

	assert.Equal(t, "l1", tgt.MapToLocalUID("r1"))
	assert.Equal(t, "r1", tgt.MapToRemoteUID("l1"))
	assert.ElementsMatch(t, []model.UIDMapping{{RemoteUID: "r1", LocalUID: "l1"}, {RemoteUID: "r2", LocalUID: "l2"}}, tgt.Mappings())
}

func TestAddMappingReplacesStaleReverse(t *testing.T) {
	tgt := newTestTarget()
	tgt.AddMapping("r1", "l1")
	tgt.AddMapping("r1", "l2") // same remote key re-mapped to a new local key

	assert.Equal(t, "l2", tgt.MapToLocalUID("r1"))
	assert.Equal(t, "", tgt.MapToRemoteUID("l1"))
	assert.Equal(t, "r1", tgt.MapToRemoteUID("l2"))
}

func TestRemoveMapping(t *testing.T) {
	tgt := newTestTarget()
	tgt.AddMapping("r1", "l1")
	tgt.RemoveMapping("r1")

	assert.Equal(t, "r1", tgt.MapToLocalUID("r1"))
	assert.Equal(t, "", tgt.MapToRemoteUID("l1"))
}

func TestRemoveMappingByLocalUID(t *testing.T) {
	tgt := newTestTarget()
	tgt.AddMapping("r1", "l1")
	tgt.RemoveMappingByLocalUID("l1")

	assert.Equal(t, "r1", tgt.MapToLocalUID("r1"))
	assert.Equal(t, "", tgt.MapToRemoteUID("l1"))
}

func TestLocalChangesRoundTrip(t *testing.T) {
	tgt := newTestTarget()
	assert.Nil(t, tgt.LocalChanges())

	changes := model.NewLocalChanges()
	changes.Added[model.SyncItemKey("a")] = struct{}{}
	tgt.SetLocalChanges(changes)

	assert.Same(t, changes, tgt.LocalChanges())
}
