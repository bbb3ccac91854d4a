// Package badger is a BadgerDB-backed implementation of the persistence
// contract: nonces, changelog entries, and session snapshots durable
// across restarts, for deployments that need survivable sync state.
//
// Grounded on this codebase's pkg/metadata/store/badger package: the same
// prefixed-key namespace design (one letter/short prefix per data kind,
// JSON-encoded values, badger.Txn-scoped View/Update closures) adapted
// from filesystem metadata keys to the three small records this package
// persists.
package badger

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/marmos91/syncmld/internal/dsync/model"
	"github.com/marmos91/syncmld/internal/dsync/ports"
)

// Key namespace, following this codebase's metadata store convention of a
// short literal prefix per data kind so range scans and key collisions
// stay obvious at a glance:
//
//	n:<issuer>:<target>                         nonce (raw string)
//	c:<remoteDevice>:<sourceURI>:<direction>     ChangelogEntry (JSON)
//	sess:<uuid>                                  SessionSnapshot (JSON)
const (
	prefixNonce     = "n:"
	prefixChangelog = "c:"
	prefixSession   = "sess:"
)

func keyNonce(issuer, target string) []byte {
	return []byte(prefixNonce + issuer + ":" + target)
}

func keyChangelog(remoteDevice, sourceURI string, direction model.SyncDirection) []byte {
	return []byte(prefixChangelog + remoteDevice + ":" + sourceURI + ":" + dirTag(direction))
}

func keySession(id uuid.UUID) []byte {
	return []byte(prefixSession + id.String())
}

func dirTag(direction model.SyncDirection) string {
	switch direction {
	case model.DirFromClient:
		return "fc"
	case model.DirFromServer:
		return "fs"
	default:
		return "2w"
	}
}

// Store is the BadgerDB-backed persistence backend, implementing
// ports.NoncePersister, ports.ChangelogPersister and ports.SessionSaver.
type Store struct {
	db *badgerdb.DB
}

// Open opens (creating if absent) a BadgerDB database at path and returns
// a Store backed by it. The caller must call Close when done.
func Open(path string) (*Store, error) {
	opts := badgerdb.DefaultOptions(path).WithLogger(nil)
	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: open %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

var _ ports.NoncePersister = (*Store)(nil)
var _ ports.ChangelogPersister = (*Store)(nil)
var _ ports.SessionSaver = (*Store)(nil)

func (s *Store) Upsert(_ context.Context, issuer, target, nonce string) error {
	return s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(keyNonce(issuer, target), []byte(nonce))
	})
}

func (s *Store) Get(_ context.Context, issuer, target string) (string, bool, error) {
	var nonce string
	found := false
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(keyNonce(issuer, target))
		if err == badgerdb.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			nonce = string(val)
			return nil
		})
	})
	if err != nil {
		return "", false, fmt.Errorf("badger: get nonce: %w", err)
	}
	return nonce, found, nil
}

func (s *Store) Clear(_ context.Context, issuer, target string) error {
	return s.db.Update(func(txn *badgerdb.Txn) error {
		err := txn.Delete(keyNonce(issuer, target))
		if err == badgerdb.ErrKeyNotFound {
			return nil
		}
		return err
	})
}

// Generate returns a fresh 16-byte random nonce, hex-encoded.
func (s *Store) Generate() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func (s *Store) Load(_ context.Context, remoteDevice, sourceURI string, direction model.SyncDirection) (*ports.ChangelogEntry, error) {
	entry := &ports.ChangelogEntry{}
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(keyChangelog(remoteDevice, sourceURI, direction))
		if err == badgerdb.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, entry)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("badger: load changelog: %w", err)
	}
	return entry, nil
}

func (s *Store) Save(_ context.Context, remoteDevice, sourceURI string, direction model.SyncDirection, entry *ports.ChangelogEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("badger: encode changelog: %w", err)
	}
	return s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(keyChangelog(remoteDevice, sourceURI, direction), payload)
	})
}

func (s *Store) SaveSession(_ context.Context, snapshot ports.SessionSnapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("badger: encode session snapshot: %w", err)
	}
	id := uuid.New()
	return s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(keySession(id), payload)
	})
}
