// Package memory is an in-process implementation of the persistence
// contract: nonces, changelog entries, and session snapshots
// held in maps guarded by a mutex. Used for tests and single-process
// deployments where durability across restarts is not required.
//
// Grounded on this codebase's pkg/wal.NullPersister: a minimal, always-
// available implementation of a small persistence interface, kept next to
// the real (Badger-backed) implementation rather than hidden behind it.
package memory

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"

	"github.com/marmos91/syncmld/internal/dsync/model"
	"github.com/marmos91/syncmld/internal/dsync/ports"
)

type nonceKey struct{ issuer, target string }

// Store is the in-memory persistence backend, implementing
// ports.NoncePersister, ports.ChangelogPersister and ports.SessionSaver.
type Store struct {
	mu sync.Mutex
	nonces map[nonceKey]string
	changelogs map[string]*ports.ChangelogEntry
	snapshots  []ports.SessionSnapshot
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		nonces: make(map[nonceKey]string),
		changelogs: make(map[string]*ports.ChangelogEntry),
	}
}

var _ ports.NoncePersister = (*Store)(nil)
var _ ports.ChangelogPersister = (*Store)(nil)
var _ ports.SessionSaver = (*Store)(nil)

func (s *Store) Upsert(_ context.Context, issuer, target, nonce string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nonces[nonceKey{issuer, target}] = nonce
	return nil
}

func (s *Store) Get(_ context.Context, issuer, target string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nonces[nonceKey{issuer, target}]
	return n, ok, nil
}

func (s *Store) Clear(_ context.Context, issuer, target string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.nonces, nonceKey{issuer, target})
	return nil
}

// Generate returns a fresh 16-byte random nonce, hex-encoded.
func (s *Store) Generate() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func changelogKey(remoteDevice, sourceURI string, direction model.SyncDirection) string {
	dirTag := "2w"
	switch direction {
	case model.DirFromClient:
		dirTag = "fc"
	case model.DirFromServer:
		dirTag = "fs"
	}
	return remoteDevice + "\x00" + sourceURI + "\x00" + dirTag
}

func (s *Store) Load(_ context.Context, remoteDevice, sourceURI string, direction model.SyncDirection) (*ports.ChangelogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.changelogs[changelogKey(remoteDevice, sourceURI, direction)]
	if !ok {
		return &ports.ChangelogEntry{}, nil
	}
	return entry, nil
}

func (s *Store) Save(_ context.Context, remoteDevice, sourceURI string, direction model.SyncDirection, entry *ports.ChangelogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.changelogs[changelogKey(remoteDevice, sourceURI, direction)] = entry
	return nil
}

func (s *Store) SaveSession(_ context.Context, snapshot ports.SessionSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = append(s.snapshots, snapshot)
	return nil
}

// Snapshots returns every SaveSession call recorded so far, for tests.
func (s *Store) Snapshots() []ports.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ports.SessionSnapshot, len(s.snapshots))
	copy(out, s.snapshots)
	return out
}
