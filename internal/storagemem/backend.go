package storagemem

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/marmos91/syncmld/internal/dsync/model"
	"github.com/marmos91/syncmld/internal/dsync/ports"
	"github.com/marmos91/syncmld/internal/dsync/xerr"
)

// Backend is a ports.StorageBackend holding every item for one datastore
// URI in memory.
type Backend struct {
	sourceURI        string
	maxObjSize       int64
	supportedFormats []string
	preferredFormat  string

	mu    sync.Mutex
	items map[string]*item
}

var _ ports.StorageBackend = (*Backend)(nil)

// NewBackend builds an empty Backend for sourceURI.
func NewBackend(sourceURI string, maxObjSize int64, supportedFormats []string, preferredFormat string) *Backend {
	return &Backend{
		sourceURI:        sourceURI,
		maxObjSize:       maxObjSize,
		supportedFormats: supportedFormats,
		preferredFormat:  preferredFormat,
		items:            make(map[string]*item),
	}
}

func (b *Backend) SourceURI() string           { return b.sourceURI }
func (b *Backend) MaxObjSize() int64           { return b.maxObjSize }
func (b *Backend) SupportedFormats() []string  { return b.supportedFormats }
func (b *Backend) PreferredFormat() string     { return b.preferredFormat }

// CTCapsXML returns an empty CTCap block; a real backend would advertise
// its supported item properties per datastore and version here.
func (b *Backend) CTCapsXML(model.ProtocolVersion) string { return "" }

func (b *Backend) GetAll(ctx context.Context) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	keys := make([]string, 0, len(b.items))
	for k := range b.items {
		keys = append(keys, k)
	}
	return keys, nil
}

// GetModifications always reports no changes: this in-memory backend does
// not journal writes, so it cannot answer an anchor-based delta query. A
// durable backend (filesystem watcher, database changelog) would replace
// this with real tracking; callers relying on incremental sync against
// this backend should force a slow sync instead.
func (b *Backend) GetModifications(ctx context.Context, since string) (newKeys, replacedKeys, deletedKeys []string, err error) {
	return nil, nil, nil, nil
}

func (b *Backend) NewItem(ctx context.Context, parentKey, itemType, format, version string) (model.SyncItem, error) {
	return &item{
		key:       uuid.NewString(),
		parentKey: parentKey,
		itemType:  itemType,
		format:    format,
		version:   version,
	}, nil
}

func (b *Backend) GetSyncItem(ctx context.Context, key string) (model.SyncItem, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	it, ok := b.items[key]
	if !ok {
		return nil, fmt.Errorf("storagemem: item %q not found", key)
	}
	return it.clone(), nil
}

func (b *Backend) GetSyncItems(ctx context.Context, keys []string) ([]model.SyncItem, error) {
	out := make([]model.SyncItem, 0, len(keys))
	for _, k := range keys {
		it, err := b.GetSyncItem(ctx, k)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, nil
}

func (b *Backend) AddItems(ctx context.Context, items []model.SyncItem) []*xerr.BackendError {
	b.mu.Lock()
	defer b.mu.Unlock()

	errs := make([]*xerr.BackendError, len(items))
	for i, si := range items {
		mi, ok := si.(*item)
		if !ok {
			errs[i] = xerr.New(xerr.ErrorGeneral, "storagemem: foreign item type")
			continue
		}
		if mi.Size() > b.maxObjSize {
			errs[i] = xerr.NewObjectTooBig(mi.key)
			continue
		}
		if _, exists := b.items[mi.key]; exists {
			errs[i] = xerr.NewDuplicate(mi.key)
			continue
		}
		b.items[mi.key] = mi.clone()
	}
	return errs
}

func (b *Backend) ReplaceItems(ctx context.Context, items []model.SyncItem) []*xerr.BackendError {
	b.mu.Lock()
	defer b.mu.Unlock()

	errs := make([]*xerr.BackendError, len(items))
	for i, si := range items {
		mi, ok := si.(*item)
		if !ok {
			errs[i] = xerr.New(xerr.ErrorGeneral, "storagemem: foreign item type")
			continue
		}
		if mi.Size() > b.maxObjSize {
			errs[i] = xerr.NewObjectTooBig(mi.key)
			continue
		}
		b.items[mi.key] = mi.clone()
	}
	return errs
}

func (b *Backend) DeleteItems(ctx context.Context, keys []string) []*xerr.BackendError {
	b.mu.Lock()
	defer b.mu.Unlock()

	errs := make([]*xerr.BackendError, len(keys))
	for i, key := range keys {
		if _, ok := b.items[key]; !ok {
			errs[i] = xerr.NewNotFound(key)
			continue
		}
		delete(b.items, key)
	}
	return errs
}

// Provider acquires/releases Backend instances by URI, building one lazily
// on first Acquire and keeping it for the process lifetime (or until a
// caller calls Reset).
type Provider struct {
	maxObjSize       int64
	supportedFormats []string
	preferredFormat  string

	mu       sync.Mutex
	backends map[string]*Backend
}

var _ ports.StorageProvider = (*Provider)(nil)

// NewProvider builds a Provider applying the same size/format defaults to
// every datastore it creates.
func NewProvider(maxObjSize int64, supportedFormats []string, preferredFormat string) *Provider {
	return &Provider{
		maxObjSize:       maxObjSize,
		supportedFormats: supportedFormats,
		preferredFormat:  preferredFormat,
		backends:         make(map[string]*Backend),
	}
}

func (p *Provider) Acquire(ctx context.Context, uri string) (ports.StorageBackend, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if b, ok := p.backends[uri]; ok {
		return b, nil
	}
	b := NewBackend(uri, p.maxObjSize, p.supportedFormats, p.preferredFormat)
	p.backends[uri] = b
	return b, nil
}

func (p *Provider) Release(ctx context.Context, uri string, backend ports.StorageBackend) error {
	return nil
}
