package session

import (
	"context"
	"testing"

	"github.com/marmos91/syncmld/internal/dsync/authn"
	"github.com/marmos91/syncmld/internal/dsync/devinfo"
	"github.com/marmos91/syncmld/internal/dsync/fragment"
	"github.com/marmos91/syncmld/internal/dsync/model"
	"github.com/marmos91/syncmld/internal/dsync/ports"
	"github.com/marmos91/syncmld/internal/dsync/target"
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
func (f *fakeItem) Read(off, n int64) ([]byte, error) { return f.content[off : off+n], nil }
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
	addErrs []*xerr.BackendError
}

func (b *fakeBackend) SourceURI() string { return "./card" }
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
	return make([]*xerr.BackendError, 1)
}
func (b *fakeBackend) DeleteItems(context.Context, []string) []*xerr.BackendError {
	return make([]*xerr.BackendError, 1)
}

type fakeStorageProvider struct {
	backend ports.StorageBackend
}

func (p *fakeStorageProvider) Acquire(context.Context, string) (ports.StorageBackend, error) {
	return p.backend, nil
}
func (p *fakeStorageProvider) Release(context.Context, string, ports.StorageBackend) error {
	return nil
}

type fakeNoncePersister struct {
	nonces map[string]string
	next string
}

func newFakeNoncePersister() *fakeNoncePersister {
	return &fakeNoncePersister{nonces: make(map[string]string)}
}

func (p *fakeNoncePersister) key(issuer, target string) string { return issuer + "|" + target }
func (p *fakeNoncePersister) Upsert(_ context.Context, issuer, target, nonce string) error {
	p.nonces[p.key(issuer, target)] = nonce
	return nil
}
func (p *fakeNoncePersister) Get(_ context.Context, issuer, target string) (string, bool, error) {
	n, ok := p.nonces[p.key(issuer, target)]
	return n, ok, nil
}
func (p *fakeNoncePersister) Clear(_ context.Context, issuer, target string) error {
	delete(p.nonces, p.key(issuer, target))
	return nil
}
func (p *fakeNoncePersister) Generate() (string, error) {
	if p.next != "" {
		return p.next, nil
	}
	return "fixed-nonce", nil
}

type fakeChangelogPersister struct {
	entries map[string]*ports.ChangelogEntry
}

func newFakeChangelogPersister() *fakeChangelogPersister {
	return &fakeChangelogPersister{entries: make(map[string]*ports.ChangelogEntry)}
}

func (p *fakeChangelogPersister) Load(_ context.Context, remoteDevice, sourceURI string, _ model.SyncDirection) (*ports.ChangelogEntry, error) {
	if e, ok := p.entries[remoteDevice+"|"+sourceURI]; ok {
		return e, nil
	}
	return &ports.ChangelogEntry{}, nil
}
func (p *fakeChangelogPersister) Save(_ context.Context, remoteDevice, sourceURI string, _ model.SyncDirection, entry *ports.ChangelogEntry) error {
	p.entries[remoteDevice+"|"+sourceURI] = entry
	return nil
}

type fakeSessionSaver struct {
	saved *ports.SessionSnapshot
}

func (s *fakeSessionSaver) SaveSession(_ context.Context, snapshot ports.SessionSnapshot) error {
	s.saved = &snapshot
	return nil
}

func newPreparedServer(t *testing.T, cfg Config, backend *fakeBackend) (*Handler, *fakeNoncePersister) {
	t.Helper()
	if cfg.Targets == nil {
		cfg.Targets = []TargetConfig{{SourceURI: "./card", TargetURI: "./card", Mode: target.SyncMode{Type: model.SyncSlow}}}
	}
	nonces := newFakeNoncePersister()
	h := New(cfg, devinfo.Info{}, &fakeStorageProvider{backend: backend}, nonces, newFakeChangelogPersister(), &fakeSessionSaver{}, nil)
	require.NoError(t, h.Prepare(context.Background()))
	return h, nonces
}

func TestServerMD5AuthMissingCredentialsChallenges(t *testing.T) {
	h, _ := newPreparedServer(t, Config{
		Role: model.RoleServer,
		ProtocolVersion: model.VersionDS12,
		AuthType: model.AuthMD5,
		AuthUser: "alice",
		AuthPass: "secret",
		LocalURI: "server",
		RemoteDevice: "phone-1",
	}, &fakeBackend{})

	err := h.IngestMessage(context.Background(), []fragment.Fragment{
		{Kind: fragment.KindHeader, Header: &fragment.HeaderParams{MsgID: "1"}},
	})
	require.NoError(t, err)

	root, _ := h.GenerateNextMessage(1 << 16)
	status := root.Find("SyncBody").Find("Status")
	require.NotNil(t, status)
	assert.Equal(t, "407", status.Find("Data").Text)
	require.NotNil(t, status.Find("Chal"))
}

func TestServerMD5AuthValidCredentialAccepted(t *testing.T) {
	h, nonces := newPreparedServer(t, Config{
		Role: model.RoleServer,
		ProtocolVersion: model.VersionDS12,
		AuthType: model.AuthMD5,
		AuthUser: "alice",
		AuthPass: "secret",
		LocalURI: "server",
		RemoteDevice: "phone-1",
	}, &fakeBackend{})
	require.NoError(t, nonces.Upsert(context.Background(), "server", "phone-1", "nonce-1"))

	digest := authn.EncodeMD5("alice", "secret", "nonce-1")
	err := h.IngestMessage(context.Background(), []fragment.Fragment{
		{Kind: fragment.KindHeader, Header: &fragment.HeaderParams{
			MsgID: "1",
			Cred: &fragment.CredParams{Type: "syncml:auth-md5", Data: digest},
		}},
	})
	require.NoError(t, err)
	assert.True(t, h.authenticated)

	root, _ := h.GenerateNextMessage(1 << 16)
	status := root.Find("SyncBody").Find("Status")
	require.NotNil(t, status)
	assert.Equal(t, "212", status.Find("Data").Text)
}

func TestServerMD5AuthWrongCredentialRechallenges(t *testing.T) {
	h, nonces := newPreparedServer(t, Config{
		Role: model.RoleServer,
		ProtocolVersion: model.VersionDS12,
		AuthType: model.AuthMD5,
		AuthUser: "alice",
		AuthPass: "secret",
		LocalURI: "server",
		RemoteDevice: "phone-1",
	}, &fakeBackend{})
	require.NoError(t, nonces.Upsert(context.Background(), "server", "phone-1", "nonce-1"))

	err := h.IngestMessage(context.Background(), []fragment.Fragment{
		{Kind: fragment.KindHeader, Header: &fragment.HeaderParams{
			MsgID: "1",
			Cred: &fragment.CredParams{Type: "syncml:auth-md5", Data: "not-the-right-digest"},
		}},
	})
	require.NoError(t, err)
	assert.False(t, h.authenticated)

	root, _ := h.GenerateNextMessage(1 << 16)
	status := root.Find("SyncBody").Find("Status")
	require.NotNil(t, status)
	assert.Equal(t, "401", status.Find("Data").Text)
}

func TestServerAnchorMismatchRevertsTargetToSlowSync(t *testing.T) {
	h, _ := newPreparedServer(t, Config{
		Role: model.RoleServer,
		ProtocolVersion: model.VersionDS12,
		LocalURI: "server",
		RemoteDevice: "phone-1",
		Targets: []TargetConfig{{SourceURI: "./card", TargetURI: "./card", Mode: target.SyncMode{Type: model.SyncFast}}},
	}, &fakeBackend{})
	ts := h.targetBySource("./card")
	ts.target.LocalLastAnchor = "anchor-100"

	err := h.IngestMessage(context.Background(), []fragment.Fragment{
		{Kind: fragment.KindAlert, Alert: &fragment.AlertParams{
			CmdID: "1", Code: model.AlertTwoWay,
			TargetURI: "./card", SourceURI: "./card",
			Meta: &fragment.MetaParams{Anchor: &fragment.AnchorParams{Last: "stale-anchor", Next: "anchor-200"}},
		}},
	})
	require.NoError(t, err)

	assert.Equal(t, model.SyncSlow, ts.target.Mode.Type)
	assert.True(t, ts.target.Reverted())
}

func TestServerAnchorMatchKeepsFastSync(t *testing.T) {
	h, _ := newPreparedServer(t, Config{
		Role: model.RoleServer,
		ProtocolVersion: model.VersionDS12,
		LocalURI: "server",
		RemoteDevice: "phone-1",
		Targets: []TargetConfig{{SourceURI: "./card", TargetURI: "./card", Mode: target.SyncMode{Type: model.SyncFast}}},
	}, &fakeBackend{})
	ts := h.targetBySource("./card")
	ts.target.LocalLastAnchor = "anchor-100"

	err := h.IngestMessage(context.Background(), []fragment.Fragment{
		{Kind: fragment.KindAlert, Alert: &fragment.AlertParams{
			CmdID: "1", Code: model.AlertTwoWay,
			TargetURI: "./card", SourceURI: "./card",
			Meta: &fragment.MetaParams{Anchor: &fragment.AnchorParams{Last: "anchor-100", Next: "anchor-200"}},
		}},
	})
	require.NoError(t, err)

	assert.Equal(t, model.SyncFast, ts.target.Mode.Type)
	assert.False(t, ts.target.Reverted())
}

func TestServerSyncReplaceConflictResolvedClientWinning(t *testing.T) {
	h, _ := newPreparedServer(t, Config{
		Role: model.RoleServer,
		ProtocolVersion: model.VersionDS12,
		LocalURI: "server",
		RemoteDevice: "phone-1",
		ConflictPolicy: model.PreferRemote,
	}, &fakeBackend{addErrs: []*xerr.BackendError{nil}})
	ts := h.targetBySource("./card")
	ts.target.SetLocalChanges(&model.LocalChanges{
		Added: map[model.SyncItemKey]struct{}{},
		Modified: map[model.SyncItemKey]struct{}{"local-a": {}},
		Removed: map[model.SyncItemKey]struct{}{},
	})
	ts.target.AddMapping("remote-a", "local-a")

	err := h.IngestMessage(context.Background(), []fragment.Fragment{
		{Kind: fragment.KindSync, Sync: &fragment.SyncParams{
			CmdID: "2", TargetURI: "./card", SourceURI: "./card",
			Commands: []*fragment.CommandParams{
				{
					CommandType: fragment.CmdReplace,
					CmdID: "3",
					Items: []*fragment.ItemParams{
						{SourceURI: "remote-a", TargetURI: "local-a", Data: "BEGIN:VCARD"},
					},
				},
			},
		}},
	})
	require.NoError(t, err)

	root, _ := h.GenerateNextMessage(1 << 16)
	statuses := root.Find("SyncBody").FindAll("Status")
	var found bool
	for _, s := range statuses {
		if s.Find("CmdRef").Text == "3" {
			found = true
			// PreferRemote means the incoming (client) change wins; from the
			// server's role that is StatusResolvedClientWinning (207).
			assert.Equal(t, "207", s.Find("Data").Text)
		}
	}
	assert.True(t, found, "expected a Status addressing cmdID 3")
}

func TestClientFastMapsSendEnqueuesMappingsImmediately(t *testing.T) {
	backend := &fakeBackend{addErrs: []*xerr.BackendError{nil}}
	nonces := newFakeNoncePersister()
	h := New(Config{
		Role: model.RoleClient,
		ProtocolVersion: model.VersionDS12,
		LocalURI: "client",
		RemoteDevice: "server-1",
		FastMapsSend: true,
		Targets: []TargetConfig{{SourceURI: "./card", TargetURI: "./card", Mode: target.SyncMode{Type: model.SyncSlow}}},
	}, devinfo.Info{}, &fakeStorageProvider{backend: backend}, nonces, newFakeChangelogPersister(), &fakeSessionSaver{}, nil)
	require.NoError(t, h.Prepare(context.Background()))
	ts := h.targetBySource("./card")
	ts.target.SetLocalChanges(model.NewLocalChanges())

	err := h.IngestMessage(context.Background(), []fragment.Fragment{
		{Kind: fragment.KindSync, Sync: &fragment.SyncParams{
			CmdID: "2", TargetURI: "./card", SourceURI: "./card",
			Commands: []*fragment.CommandParams{
				{
					CommandType: fragment.CmdAdd,
					CmdID: "3",
					Items: []*fragment.ItemParams{
						{SourceURI: "remote-a", Data: "BEGIN:VCARD"},
					},
				},
			},
		}},
	})
	require.NoError(t, err)

	assert.True(t, h.responseGen.PendingPackages(), "fast-maps-send should enqueue a LocalMappingsPackage immediately")
}
