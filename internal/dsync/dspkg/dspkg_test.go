package dspkg

import (
	"context"
	"testing"

	"github.com/marmos91/syncmld/internal/dsync/model"
	"github.com/marmos91/syncmld/internal/dsync/target"
	"github.com/marmos91/syncmld/internal/dsync/wire"
	"github.com/marmos91/syncmld/internal/dsync/xerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubFullBackend implements the full ports.StorageBackend contract with
// a single fake item, enough to exercise LocalChangesPackage.
type stubFullBackend struct{ item *fakeItem }

func (b *stubFullBackend) SourceURI() string { return "./c" }
func (b *stubFullBackend) MaxObjSize() int64 { return 1 << 20 }
func (b *stubFullBackend) SupportedFormats() []string { return nil }
func (b *stubFullBackend) PreferredFormat() string { return "" }
func (b *stubFullBackend) CTCapsXML(model.ProtocolVersion) string { return "" }
func (b *stubFullBackend) GetAll(context.Context) ([]string, error) { return nil, nil }
func (b *stubFullBackend) GetModifications(context.Context, string) ([]string, []string, []string, error) {
	return nil, nil, nil, nil
}
func (b *stubFullBackend) NewItem(context.Context, string, string, string, string) (model.SyncItem, error) {
	return nil, nil
}
func (b *stubFullBackend) GetSyncItem(_ context.Context, key string) (model.SyncItem, error) {
	if b.item == nil || b.item.key != key {
		return nil, nil
	}
	return b.item, nil
}
func (b *stubFullBackend) GetSyncItems(context.Context, []string) ([]model.SyncItem, error) {
	return nil, nil
}
func (b *stubFullBackend) AddItems(context.Context, []model.SyncItem) []*xerr.BackendError {
	return nil
}
func (b *stubFullBackend) ReplaceItems(context.Context, []model.SyncItem) []*xerr.BackendError {
	return nil
}
func (b *stubFullBackend) DeleteItems(context.Context, []string) []*xerr.BackendError {
	return nil
}

type fakeItem struct {
	key string
	content []byte
	typ string
}

func (f *fakeItem) Key() string { return f.key }
func (f *fakeItem) SetKey(k string)   { f.key = k }
func (f *fakeItem) ParentKey() string { return "" }
func (f *fakeItem) Type() string { return f.typ }
func (f *fakeItem) Format() string { return "bin" }
func (f *fakeItem) Version() string { return "2.1" }
func (f *fakeItem) Size() int64 { return int64(len(f.content)) }
func (f *fakeItem) Read(off, n int64) ([]byte, error) {
	return f.content[off : off+n], nil
}
func (f *fakeItem) Write(off int64, data []byte) error { return nil }
func (f *fakeItem) Resize(n int64) error               { return nil }

func TestAlertPackageWritesOnce(t *testing.T) {
	body := wire.NewElement(wire.NSSyncML, "SyncBody")
	p := &AlertPackage{CmdID: "1", Code: model.AlertTwoWay}
	assert.True(t, p.Write(body, 10000))
	assert.Len(t, body.Children, 1)
	assert.True(t, p.Write(body, 10000))
	assert.Len(t, body.Children, 1, "second write must be a no-op")
}

func TestFinalPackageWritesOnce(t *testing.T) {
	body := wire.NewElement(wire.NSSyncML, "SyncBody")
	p := &FinalPackage{}
	assert.True(t, p.Write(body, 10000))
	assert.Equal(t, "Final", body.Children[0].Name)
}

func TestLocalMappingsPackageDoneWhenEmpty(t *testing.T) {
	p := &LocalMappingsPackage{CmdID: "1"}
	assert.True(t, p.Done())
	body := wire.NewElement(wire.NSSyncML, "SyncBody")
	assert.True(t, p.Write(body, 10000))
	assert.Empty(t, body.Children)
}

func TestLocalMappingsPackageWritesAllThenDone(t *testing.T) {
	p := &LocalMappingsPackage{
		CmdID: "1", SourceURI: "./c", TargetURI: "./c",
		Mappings: []model.UIDMapping{{RemoteUID: "R1", LocalUID: "L1"}, {RemoteUID: "R2", LocalUID: "L2"}},
	}
	body := wire.NewElement(wire.NSSyncML, "SyncBody")
	done := p.Write(body, 100000)
	require.True(t, done)
	assert.True(t, p.Done())
	mapEl := body.Find("Map")
	require.NotNil(t, mapEl)
	assert.Len(t, mapEl.FindAll("MapItem"), 2)
}

func TestLocalChangesPackageWritesAddedItem(t *testing.T) {
	backend := &stubFullBackend{item: &fakeItem{key: "a", content: []byte("hello"), typ: "text/x-vcard"}}
	tg := target.New(backend, "./c", "./c", target.SyncMode{})
	changes := model.NewLocalChanges()
	changes.Added["a"] = struct{}{}
	tg.SetLocalChanges(changes)

	p := &LocalChangesPackage{
		CmdID: "1", SourceURI: "./c", TargetURI: "./c",
		Target: tg, MaxChangesPerMessage: 10, LargeObjectThreshold: 1 << 20,
	}
	body := wire.NewElement(wire.NSSyncML, "SyncBody")
	done := p.Write(body, 100000)
	require.True(t, done)
	sync := body.Find("Sync")
	require.NotNil(t, sync)
	add := sync.Find("Add")
	require.NotNil(t, add)
}

func TestLocalChangesPackageEmptyReturnsTrue(t *testing.T) {
	backend := &stubFullBackend{}
	tg := target.New(backend, "./c", "./c", target.SyncMode{})
	tg.SetLocalChanges(model.NewLocalChanges())
	p := &LocalChangesPackage{Target: tg, MaxChangesPerMessage: 10, LargeObjectThreshold: 1 << 20}
	body := wire.NewElement(wire.NSSyncML, "SyncBody")
	assert.True(t, p.Write(body, 10000))
	assert.Empty(t, body.Children)
}
