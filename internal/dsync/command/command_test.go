package command

import (
	"context"
	"testing"

	"github.com/marmos91/syncmld/internal/dsync/fragment"
	"github.com/marmos91/syncmld/internal/dsync/model"
	"github.com/marmos91/syncmld/internal/dsync/response"
	"github.com/marmos91/syncmld/internal/dsync/storage"
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
	return make([]*xerr.BackendError, 1)
}
func (b *fakeBackend) DeleteItems(context.Context, []string) []*xerr.BackendError {
	return make([]*xerr.BackendError, 1)
}

func newServerTarget(backend *fakeBackend) *target.Target {
	return target.New(backend, "./card", "./card", target.SyncMode{Type: model.SyncSlow})
}

func TestHandleSyncAddCommitsAndEmitsStatusWithItemRefs(t *testing.T) {
	backend := &fakeBackend{addErrs: []*xerr.BackendError{nil}}
	tgt := newServerTarget(backend)
	tgt.SetLocalChanges(model.NewLocalChanges())
	sh := storage.NewHandler(backend)
	rg := response.NewGenerator(fragment.HeaderParams{SessionID: "1"})
	h := New(model.RoleServer, nil, model.PreferLocal, false)

	sync := &fragment.SyncParams{
		CmdID: "2",
		Commands: []*fragment.CommandParams{
			{
				CommandType: fragment.CmdAdd,
				CmdID: "3",
				Items: []*fragment.ItemParams{
					{SourceURI: "luid-1", TargetURI: "", Data: "BEGIN:VCARD"},
				},
			},
		},
	}

	require.NoError(t, h.HandleSync(context.Background(), sync, tgt, sh, rg))
	require.True(t, rg.PendingStatuses())

	root, _ := rg.GenerateNextMessage(1<<16, model.VersionDS12)
	body := root.Find("SyncBody")
	require.NotNil(t, body)
	status := body.Find("Status")
	require.NotNil(t, status)
	assert.Equal(t, "3", status.Find("CmdRef").Text)
	assert.Equal(t, "Add", status.Find("Cmd").Text)
	assert.Equal(t, "201", status.Find("Data").Text)

	sourceRefs := status.FindAll("SourceRef")
	require.Len(t, sourceRefs, 1)
	assert.Equal(t, "luid-1", sourceRefs[0].Text)
}

func TestHandleSyncNoRespSuppressesStatus(t *testing.T) {
	backend := &fakeBackend{addErrs: []*xerr.BackendError{nil}}
	tgt := newServerTarget(backend)
	tgt.SetLocalChanges(model.NewLocalChanges())
	sh := storage.NewHandler(backend)
	rg := response.NewGenerator(fragment.HeaderParams{SessionID: "1"})
	h := New(model.RoleServer, nil, model.PreferLocal, false)

	sync := &fragment.SyncParams{
		CmdID: "2",
		Commands: []*fragment.CommandParams{
			{
				CommandType: fragment.CmdAdd,
				CmdID: "3",
				NoResp: true,
				Items: []*fragment.ItemParams{
					{SourceURI: "luid-1", Data: "BEGIN:VCARD"},
				},
			},
		},
	}

	require.NoError(t, h.HandleSync(context.Background(), sync, tgt, sh, rg))
	assert.False(t, rg.PendingStatuses())
}

func TestComposeAddFinalChunkMismatchEmitsNoEndOfDataAndCommandNotAllowed(t *testing.T) {
	backend := &fakeBackend{}
	tgt := newServerTarget(backend)
	sh := storage.NewHandler(backend)
	h := New(model.RoleServer, nil, model.PreferLocal, false)

	require.NoError(t, sh.StartLargeObjectAdd("remote-a", "", "text/x-vcard", "bin", "2.1", 100))
	sh.AppendLargeObjectAdd([]byte("part-one"))

	cmd := &fragment.CommandParams{
		CommandType: fragment.CmdAdd,
		CmdID: "4",
		Items: []*fragment.ItemParams{
			{SourceURI: "remote-b", Data: "final-chunk"},
		},
	}

	statuses, alerts := h.composeAdd(context.Background(), cmd, tgt, sh)
	require.Len(t, statuses, 1)
	assert.Equal(t, model.StatusCommandNotAllowed, statuses[0].code)
	require.Len(t, alerts, 1)
	assert.Equal(t, int(model.StatusNoEndOfData), alerts[0])
	assert.False(t, sh.HasOpenLargeObjectAdd())
}

func TestComposeReplaceFinalChunkMismatchEmitsNoEndOfDataAndCommandNotAllowed(t *testing.T) {
	backend := &fakeBackend{}
	tgt := newServerTarget(backend)
	sh := storage.NewHandler(backend)
	h := New(model.RoleServer, nil, model.PreferLocal, false)

	require.NoError(t, sh.StartLargeObjectReplace("remote-a", "", "text/x-vcard", "bin", "2.1", 100))
	sh.AppendLargeObjectReplace([]byte("part-one"))

	cmd := &fragment.CommandParams{
		CommandType: fragment.CmdReplace,
		CmdID: "5",
		Items: []*fragment.ItemParams{
			{SourceURI: "remote-b", TargetURI: "local-b", Data: "final-chunk"},
		},
	}

	statuses, alerts := h.composeReplace(context.Background(), cmd, tgt, sh)
	require.Len(t, statuses, 1)
	assert.Equal(t, model.StatusCommandNotAllowed, statuses[0].code)
	require.Len(t, alerts, 1)
	assert.Equal(t, int(model.StatusNoEndOfData), alerts[0])
	assert.False(t, sh.HasOpenLargeObjectReplace())
}

func TestComposeReplaceMoreDataContinuesWithoutAlert(t *testing.T) {
	backend := &fakeBackend{}
	tgt := newServerTarget(backend)
	sh := storage.NewHandler(backend)
	h := New(model.RoleServer, nil, model.PreferLocal, false)

	cmd := &fragment.CommandParams{
		CommandType: fragment.CmdReplace,
		CmdID: "6",
		Items: []*fragment.ItemParams{
			{SourceURI: "remote-a", TargetURI: "local-a", Data: "chunk-one", MoreData: true},
		},
	}

	statuses, alerts := h.composeReplace(context.Background(), cmd, tgt, sh)
	require.Len(t, statuses, 1)
	assert.Equal(t, model.StatusChunkedItemAccepted, statuses[0].code)
	assert.Empty(t, alerts)
	assert.True(t, sh.HasOpenLargeObjectReplace())
}

func TestHandleMapAddsMapping(t *testing.T) {
	backend := &fakeBackend{}
	tgt := newServerTarget(backend)
	h := New(model.RoleServer, nil, model.PreferLocal, false)

	mapParams := &fragment.MapParams{
		CmdID: "1",
		Items: []*fragment.MapItemParams{
			{SourceURI: "remote-a", TargetURI: "local-a"},
		},
	}

	code := h.HandleMap(mapParams, tgt)
	assert.Equal(t, model.StatusSuccess, code)
	assert.Equal(t, "local-a", tgt.MapToLocalUID("remote-a"))
}

type trackingObserver struct {
	acked []string
}

func (o *trackingObserver) ItemAcknowledged(msgRef, cmdRef, sourceRef string) {
	o.acked = append(o.acked, sourceRef)
}

func TestHandleStatusAddSuccessReportsAck(t *testing.T) {
	h := New(model.RoleClient, nil, model.PreferLocal, false)
	obs := &trackingObserver{}

	outcome := h.HandleStatus(&fragment.StatusParams{
		Cmd: "Add", MsgRef: "1", CmdRef: "2", SourceURI: "luid-1", Data: int(model.StatusItemAdded),
	}, obs)

	assert.Equal(t, StatusNoAction, outcome)
	require.Len(t, obs.acked, 1)
	assert.Equal(t, "luid-1", obs.acked[0])
}

func TestHandleStatusRefreshRequiredRevertsToSlowSync(t *testing.T) {
	h := New(model.RoleClient, nil, model.PreferLocal, false)

	outcome := h.HandleStatus(&fragment.StatusParams{
		Cmd: "Sync", Data: int(model.StatusRefreshRequired),
	}, nil)

	assert.Equal(t, StatusRevertToSlowSync, outcome)
}

func TestHandleStatusAlreadyExistsIsNotAnAbort(t *testing.T) {
	h := New(model.RoleClient, nil, model.PreferLocal, false)

	outcome := h.HandleStatus(&fragment.StatusParams{
		Cmd: "Add", Data: int(model.StatusAlreadyExists),
	}, nil)

	assert.Equal(t, StatusNoAction, outcome)
}

func TestHandleStatusCommandFailedAborts(t *testing.T) {
	h := New(model.RoleClient, nil, model.PreferLocal, false)

	outcome := h.HandleStatus(&fragment.StatusParams{
		Cmd: "Add", Data: int(model.StatusCommandFailed),
	}, nil)

	assert.Equal(t, StatusAbort, outcome)
}
