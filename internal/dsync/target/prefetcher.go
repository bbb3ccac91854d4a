package target

import (
	"context"
	"sync"

	"github.com/marmos91/syncmld/internal/dsync/model"
	"github.com/marmos91/syncmld/internal/dsync/ports"
)

// Prefetcher warms the next batch of outbound items in the background
// while the current batch is still being written to the outbound
// message, so LocalChangesPackage.Write spends less time blocked on
// Target.Storage.GetSyncItem between items.
//
// Grounded on _teacher_ref/transfer/manager.go's fileUploadState: a
// bounded set of in-flight background operations tracked by key, drained
// by the caller once each completes.
type Prefetcher struct {
	storage ports.StorageBackend

	mu      sync.Mutex
	results map[model.SyncItemKey]*prefetchResult
}

type prefetchResult struct {
	done sync.WaitGroup
	item model.SyncItem
	err  error
}

// NewPrefetcher returns a Prefetcher reading items from storage.
func NewPrefetcher(storage ports.StorageBackend) *Prefetcher {
	return &Prefetcher{
		storage: storage,
		results: make(map[model.SyncItemKey]*prefetchResult),
	}
}

// Prefetch starts a background fetch of key if one is not already
// in flight or completed. Safe to call repeatedly for the same key.
func (p *Prefetcher) Prefetch(ctx context.Context, key model.SyncItemKey) {
	p.mu.Lock()
	if _, ok := p.results[key]; ok {
		p.mu.Unlock()
		return
	}
	res := &prefetchResult{}
	res.done.Add(1)
	p.results[key] = res
	p.mu.Unlock()

	go func() {
		defer res.done.Done()
		res.item, res.err = p.storage.GetSyncItem(ctx, string(key))
	}()
}

// Take blocks until key's prefetch completes and returns its result,
// consuming the entry so a later Prefetch for the same key starts fresh.
// ok is false if Prefetch was never called for key.
func (p *Prefetcher) Take(key model.SyncItemKey) (item model.SyncItem, err error, ok bool) {
	p.mu.Lock()
	res, ok := p.results[key]
	if ok {
		delete(p.results, key)
	}
	p.mu.Unlock()
	if !ok {
		return nil, nil, false
	}
	res.done.Wait()
	return res.item, res.err, true
}
