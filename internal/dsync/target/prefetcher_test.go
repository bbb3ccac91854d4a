package target

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
}

func (f *fakeItem) Key() string               { return f.key }
func (f *fakeItem) SetKey(k string)           { f.key = k }
func (f *fakeItem) ParentKey() string         { return "" }
func (f *fakeItem) Type() string              { return "text/x-vcard" }
func (f *fakeItem) Format() string            { return "bin" }
func (f *fakeItem) Version() string           { return "2.1" }
func (f *fakeItem) Size() int64               { return 0 }
func (f *fakeItem) Read(int64, int64) ([]byte, error) { return nil, nil }
func (f *fakeItem) Write(int64, []byte) error { return nil }
func (f *fakeItem) Resize(int64) error        { return nil }

type fakeBackend struct{}

func (fakeBackend) SourceURI() string          { return "card" }
func (fakeBackend) MaxObjSize() int64           { return 1 << 20 }
func (fakeBackend) SupportedFormats() []string  { return []string{"text/x-vcard"} }
func (fakeBackend) PreferredFormat() string     { return "text/x-vcard" }
func (fakeBackend) CTCapsXML(model.ProtocolVersion) string { return "" }
func (fakeBackend) GetAll(context.Context) ([]string, error) { return nil, nil }
func (fakeBackend) GetModifications(context.Context, string) ([]string, []string, []string, error) {
	return nil, nil, nil, nil
}
func (fakeBackend) NewItem(context.Context, string, string, string, string) (model.SyncItem, error) {
	return nil, nil
}
func (fakeBackend) GetSyncItem(_ context.Context, key string) (model.SyncItem, error) {
	return &fakeItem{key: key}, nil
}
func (fakeBackend) GetSyncItems(context.Context, []string) ([]model.SyncItem, error) {
	return nil, nil
}
func (fakeBackend) AddItems(context.Context, []model.SyncItem) []*xerr.BackendError     { return nil }
func (fakeBackend) ReplaceItems(context.Context, []model.SyncItem) []*xerr.BackendError { return nil }
func (fakeBackend) DeleteItems(context.Context, []string) []*xerr.BackendError          { return nil }

func TestPrefetchThenTake(t *testing.T) {
	p := NewPrefetcher(fakeBackend{})
	p.Prefetch(context.Background(), model.SyncItemKey("k1"))

	item, err, ok := p.Take(model.SyncItemKey("k1"))
	require.True(t, ok)
	require.NoError(t, err)
	assert.Equal(t, "k1", item.Key())
}

func TestTakeWithoutPrefetchReportsNotOK(t *testing.T) {
	p := NewPrefetcher(fakeBackend{})
	_, _, ok := p.Take(model.SyncItemKey("never-prefetched"))
	assert.False(t, ok)
}

func TestTakeConsumesEntry(t *testing.T) {
	p := NewPrefetcher(fakeBackend{})
	p.Prefetch(context.Background(), model.SyncItemKey("k1"))
	_, _, ok := p.Take(model.SyncItemKey("k1"))
	require.True(t, ok)

	_, _, ok = p.Take(model.SyncItemKey("k1"))
	assert.False(t, ok)
}

func TestPrefetchIsIdempotentWhileInFlight(t *testing.T) {
	p := NewPrefetcher(fakeBackend{})
	p.Prefetch(context.Background(), model.SyncItemKey("k1"))
	p.Prefetch(context.Background(), model.SyncItemKey("k1")) // second call is a no-op

	item, _, ok := p.Take(model.SyncItemKey("k1"))
	require.True(t, ok)
	assert.Equal(t, "k1", item.Key())
}
