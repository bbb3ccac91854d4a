// Package storagemem is an in-memory ports.StorageBackend/StorageProvider
// pair: a reference datastore for tests, local demos, and as the default
// backend wired by the CLI when no persistent store is configured.
//
// Grounded on this codebase's in-memory fakeBackend/fakeItem pair in
// internal/dsync/storage/storage_test.go — the same mutex-guarded map and
// byte-slice item, generalized into a standalone package that actually
// enforces size limits and generates keys the way a real backend must.
package storagemem

import (
	"fmt"
)

// item is one stored object: a key, optional parent, content-type triple,
// and its raw bytes.
type item struct {
	key       string
	parentKey string
	itemType  string
	format    string
	version   string
	data      []byte
}

func (it *item) Key() string        { return it.key }
func (it *item) SetKey(key string)  { it.key = key }
func (it *item) ParentKey() string  { return it.parentKey }
func (it *item) Type() string       { return it.itemType }
func (it *item) Format() string     { return it.format }
func (it *item) Version() string    { return it.version }
func (it *item) Size() int64        { return int64(len(it.data)) }

func (it *item) Read(offset, length int64) ([]byte, error) {
	if offset < 0 || length < 0 || offset+length > int64(len(it.data)) {
		return nil, fmt.Errorf("storagemem: read [%d:%d] out of range for %d-byte item", offset, offset+length, len(it.data))
	}
	out := make([]byte, length)
	copy(out, it.data[offset:offset+length])
	return out, nil
}

func (it *item) Write(offset int64, data []byte) error {
	if offset < 0 {
		return fmt.Errorf("storagemem: negative write offset %d", offset)
	}
	need := offset + int64(len(data))
	if need > int64(len(it.data)) {
		grown := make([]byte, need)
		copy(grown, it.data)
		it.data = grown
	}
	copy(it.data[offset:], data)
	return nil
}

func (it *item) Resize(length int64) error {
	if length < 0 {
		return fmt.Errorf("storagemem: negative resize length %d", length)
	}
	buf := make([]byte, length)
	copy(buf, it.data)
	it.data = buf
	return nil
}

func (it *item) clone() *item {
	data := make([]byte, len(it.data))
	copy(data, it.data)
	return &item{key: it.key, parentKey: it.parentKey, itemType: it.itemType, format: it.format, version: it.version, data: data}
}
