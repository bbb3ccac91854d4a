// Package credentials stores basic-auth secrets for remote devices outside
// the config file itself, so a session.auth_user/auth_pass pair doesn't
// have to sit in plaintext YAML alongside the rest of a config.
//
// Grounded on _teacher_ref/cli/credentials/store.go, narrowed: that store
// keeps per-server OAuth contexts (access/refresh tokens, current-context
// switching) for a control-plane CLI talking to a multi-tenant API. A
// SyncML session authenticates one remote device at a time with a single
// basic or MD5 credential pair, so this keeps only the on-disk
// load/save/get/set/delete shape and drops the OAuth token and
// context-switching fields it has no use for. Adapted into valid Go: the
// reference source's bare `func (s *Store) save error { ... }`-style
// method declarations and parenthesis-free calls (`return s.save`,
// `os.UserHomeDir`) don't compile.
package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	configDirName   = "syncmld"
	credentialsFile = "credentials.json"
	filePermissions = 0600
	dirPermissions  = 0700
)

// ErrNotFound indicates no stored credential exists for a remote device.
var ErrNotFound = errors.New("no stored credential for this remote device")

// Credential is a stored basic-auth secret for one remote device.
type Credential struct {
	AuthUser string `json:"auth_user"`
	AuthPass string `json:"auth_pass"`
}

type fileFormat struct {
	Credentials map[string]Credential `json:"credentials"`
}

// Store manages on-disk credential storage, keyed by remote device URI.
type Store struct {
	path string
	data fileFormat
}

// NewStore opens (or initializes) the credential store at its default
// location, $XDG_CONFIG_HOME/syncmld/credentials.json.
func NewStore() (*Store, error) {
	path, err := defaultPath()
	if err != nil {
		return nil, err
	}
	return NewStoreAt(path)
}

// NewStoreAt opens (or initializes) the credential store at path.
func NewStoreAt(path string) (*Store, error) {
	s := &Store{path: path, data: fileFormat{Credentials: make(map[string]Credential)}}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}
	if err := json.Unmarshal(raw, &s.data); err != nil {
		return nil, fmt.Errorf("failed to parse credentials file: %w", err)
	}
	if s.data.Credentials == nil {
		s.data.Credentials = make(map[string]Credential)
	}
	return s, nil
}

func defaultPath() (string, error) {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, configDirName, credentialsFile), nil
}

// Get returns the stored credential for remoteDevice, or ErrNotFound.
func (s *Store) Get(remoteDevice string) (Credential, error) {
	cred, ok := s.data.Credentials[remoteDevice]
	if !ok {
		return Credential{}, ErrNotFound
	}
	return cred, nil
}

// Set stores (or replaces) the credential for remoteDevice and persists it.
func (s *Store) Set(remoteDevice string, cred Credential) error {
	s.data.Credentials[remoteDevice] = cred
	return s.save()
}

// Delete removes the credential for remoteDevice, if any, and persists it.
func (s *Store) Delete(remoteDevice string) error {
	delete(s.data.Credentials, remoteDevice)
	return s.save()
}

// Path returns the file path this store reads and writes.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), dirPermissions); err != nil {
		return fmt.Errorf("cannot create credentials directory: %w", err)
	}
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, raw, filePermissions)
}
