package storage

import (
	"context"
	"testing"

	"github.com/marmos91/syncmld/internal/dsync/model"
	"github.com/marmos91/syncmld/internal/dsync/xerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeItem struct {
	key string
	content []byte
}

func (f *fakeItem) Key() string { return f.key }
func (f *fakeItem) SetKey(k string)     { f.key = k }
func (f *fakeItem) ParentKey() string { return "" }
func (f *fakeItem) Type() string { return "text/x-vcard" }
func (f *fakeItem) Format() string { return "bin" }
func (f *fakeItem) Version() string { return "2.1" }
func (f *fakeItem) Size() int64 { return int64(len(f.content)) }
func (f *fakeItem) Read(off, n int64) ([]byte, error) {
	return f.content[off : off+n], nil
}
func (f *fakeItem) Write(off int64, data []byte) error {
	need := int(off) + len(data)
	if need > len(f.content) {
		grown := make([]byte, need)
		copy(grown, f.content)
		f.content = grown
	}
	copy(f.content[off:], data)
	return nil
}
func (f *fakeItem) Resize(n int64) error {
	buf := make([]byte, n)
	copy(buf, f.content)
	f.content = buf
	return nil
}

type fakeBackend struct {
	addErrs     []*xerr.BackendError
	replaceErrs []*xerr.BackendError
	deleteErrs  []*xerr.BackendError
}

func (b *fakeBackend) SourceURI() string { return "./test" }
func (b *fakeBackend) MaxObjSize() int64 { return 1 << 20 }
func (b *fakeBackend) SupportedFormats() []string { return []string{"bin"} }
func (b *fakeBackend) PreferredFormat() string { return "bin" }
func (b *fakeBackend) CTCapsXML(model.ProtocolVersion) string { return "" }
func (b *fakeBackend) GetAll(context.Context) ([]string, error) { return nil, nil }
func (b *fakeBackend) GetModifications(context.Context, string) ([]string, []string, []string, error) {
	return nil, nil, nil, nil
}
func (b *fakeBackend) NewItem(context.Context, string, string, string, string) (model.SyncItem, error) {
	return &fakeItem{}, nil
}
func (b *fakeBackend) GetSyncItem(context.Context, string) (model.SyncItem, error) {
	return &fakeItem{}, nil
}
func (b *fakeBackend) GetSyncItems(context.Context, []string) ([]model.SyncItem, error) {
	return nil, nil
}
func (b *fakeBackend) AddItems(context.Context, []model.SyncItem) []*xerr.BackendError {
	return b.addErrs
}
func (b *fakeBackend) ReplaceItems(context.Context, []model.SyncItem) []*xerr.BackendError {
	return b.replaceErrs
}
func (b *fakeBackend) DeleteItems(context.Context, []string) []*xerr.BackendError {
	return b.deleteErrs
}

type fakeResolver struct {
	conflictKeys map[string]bool
	localWins bool
}

func (r *fakeResolver) IsConflict(changes *model.LocalChanges, localKey string, isDelete bool) bool {
	return r.conflictKeys[localKey]
}
func (r *fakeResolver) LocalSideWins(policy model.ConflictPolicy) bool {
	return r.localWins
}

func TestAddItemsCommitSuccess(t *testing.T) {
	backend := &fakeBackend{addErrs: []*xerr.BackendError{nil}}
	h := NewHandler(backend)
	id := model.ItemId{CmdID: "1", ItemIndex: 0}
	h.AddItem(id, &fakeItem{key: "a"}, "remote-a")

	results := h.CommitAddedItems(context.Background(), model.NewLocalChanges(), nil, model.PreferLocal)
	require.Len(t, results, 1)
	assert.Equal(t, CommitAdded, results[id].Status)
	assert.Equal(t, ConflictNone, results[id].Conflict)
}

func TestReplaceWithEmptyLocalKeyPromotedToAdd(t *testing.T) {
	backend := &fakeBackend{addErrs: []*xerr.BackendError{nil}}
	h := NewHandler(backend)
	id := model.ItemId{CmdID: "1", ItemIndex: 0}
	h.ReplaceItem(id, &fakeItem{}, "remote-a", "")

	results := h.CommitAddedItems(context.Background(), model.NewLocalChanges(), nil, model.PreferLocal)
	require.Len(t, results, 1)
	assert.Equal(t, CommitAdded, results[id].Status)
}

func TestCommitBackendDuplicateTranslates(t *testing.T) {
	backend := &fakeBackend{addErrs: []*xerr.BackendError{xerr.NewDuplicate("a")}}
	h := NewHandler(backend)
	id := model.ItemId{CmdID: "1", ItemIndex: 0}
	h.AddItem(id, &fakeItem{key: "a"}, "remote-a")

	results := h.CommitAddedItems(context.Background(), model.NewLocalChanges(), nil, model.PreferLocal)
	assert.Equal(t, CommitDuplicate, results[id].Status)
}

func TestCommitConflictLocalWinSkipsBackendCall(t *testing.T) {
	backend := &fakeBackend{}
	h := NewHandler(backend)
	id := model.ItemId{CmdID: "1", ItemIndex: 0}
	h.ReplaceItem(id, &fakeItem{}, "remote-a", "local-a")

	resolver := &fakeResolver{conflictKeys: map[string]bool{"local-a": true}, localWins: true}
	results := h.CommitReplacedItems(context.Background(), model.NewLocalChanges(), resolver, model.PreferLocal)
	require.Len(t, results, 1)
	assert.Equal(t, ConflictLocalWin, results[id].Conflict)
	assert.Equal(t, CommitReplaced, results[id].Status)
}

func TestLargeObjectAssembly(t *testing.T) {
	backend := &fakeBackend{addErrs: []*xerr.BackendError{nil}}
	h := NewHandler(backend)

	require.NoError(t, h.StartLargeObjectAdd("remote-a", "", "text/x-vcard", "bin", "2.1", 10))
	require.ErrorIs(t, h.StartLargeObjectAdd("remote-a", "", "", "", "", 10), ErrLargeObjectInFlight)

	h.AppendLargeObjectAdd([]byte("hello"))
	require.True(t, h.MatchesLargeObjectAdd("remote-a"))
	h.AppendLargeObjectAdd([]byte("world"))

	id := model.ItemId{CmdID: "1", ItemIndex: 0}
	require.NoError(t, h.FinishLargeObjectAdd(context.Background(), id, ""))
	assert.False(t, h.HasOpenLargeObjectAdd())

	results := h.CommitAddedItems(context.Background(), model.NewLocalChanges(), nil, model.PreferLocal)
	require.Len(t, results, 1)
	assert.Equal(t, CommitAdded, results[id].Status)
}

func TestLargeObjectMismatchDiscardsBuffer(t *testing.T) {
	h := NewHandler(&fakeBackend{})
	require.NoError(t, h.StartLargeObjectAdd("remote-a", "", "", "", "", 10))
	assert.False(t, h.MatchesLargeObjectAdd("remote-b"))
	assert.False(t, h.HasOpenLargeObjectAdd())
}
