package storagemem

import (
	"context"
	"testing"

	"github.com/marmos91/syncmld/internal/dsync/model"
	"github.com/marmos91/syncmld/internal/dsync/xerr"
)

func newTestItem(t *testing.T, b *Backend, content string) model.SyncItem {
	t.Helper()
	it, err := b.NewItem(context.Background(), "", "text/vcard", "2.1", "3.0")
	if err != nil {
		t.Fatalf("NewItem: %v", err)
	}
	if err := it.Write(0, []byte(content)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return it
}

func TestNewItemAssignsUniqueKeys(t *testing.T) {
	b := NewBackend("./contacts", 1<<20, []string{"text/vcard"}, "text/vcard")

	a := newTestItem(t, b, "BEGIN:VCARD")
	c := newTestItem(t, b, "BEGIN:VCARD")

	if a.Key() == "" {
		t.Fatal("expected NewItem to assign a non-empty key")
	}
	if a.Key() == c.Key() {
		t.Fatal("expected distinct keys for distinct items")
	}
}

func TestAddItemsCommitsAndDeleteRemoves(t *testing.T) {
	ctx := context.Background()
	b := NewBackend("./contacts", 1<<20, []string{"text/vcard"}, "text/vcard")

	mi := newTestItem(t, b, "BEGIN:VCARD")

	if _, err := b.GetSyncItem(ctx, mi.Key()); err == nil {
		t.Fatal("expected item to not exist before AddItems commits it")
	}

	addErrs := b.AddItems(ctx, []model.SyncItem{mi})
	for i, e := range addErrs {
		if e != nil {
			t.Fatalf("AddItems[%d]: %v", i, e)
		}
	}

	got, err := b.GetSyncItem(ctx, mi.Key())
	if err != nil {
		t.Fatalf("GetSyncItem after add: %v", err)
	}
	data, err := got.Read(0, got.Size())
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(data) != "BEGIN:VCARD" {
		t.Fatalf("got %q, want BEGIN:VCARD", data)
	}

	if errs := b.DeleteItems(ctx, []string{mi.Key()}); errs[0] != nil {
		t.Fatalf("DeleteItems: %v", errs[0])
	}
	if _, err := b.GetSyncItem(ctx, mi.Key()); err == nil {
		t.Fatal("expected item to be gone after delete")
	}
}

func TestAddItemsRejectsDuplicateKey(t *testing.T) {
	ctx := context.Background()
	b := NewBackend("./contacts", 1<<20, nil, "")

	mi := newTestItem(t, b, "BEGIN:VCARD")
	if errs := b.AddItems(ctx, []model.SyncItem{mi}); errs[0] != nil {
		t.Fatalf("first AddItems: %v", errs[0])
	}
	if errs := b.AddItems(ctx, []model.SyncItem{mi}); errs[0] == nil || errs[0].Code != xerr.Duplicate {
		t.Fatalf("expected Duplicate on re-adding the same key, got %v", errs[0])
	}
}

func TestAddItemsRejectsOversized(t *testing.T) {
	ctx := context.Background()
	b := NewBackend("./contacts", 4, nil, "")

	mi := newTestItem(t, b, "way too big")

	errs := b.AddItems(ctx, []model.SyncItem{mi})
	if errs[0] == nil || errs[0].Code != xerr.ObjectTooBig {
		t.Fatalf("expected ObjectTooBig, got %v", errs[0])
	}
}

func TestReplaceItemsOverwritesContent(t *testing.T) {
	ctx := context.Background()
	b := NewBackend("./contacts", 1<<20, nil, "")

	mi := newTestItem(t, b, "BEGIN:VCARD;v1")
	if errs := b.AddItems(ctx, []model.SyncItem{mi}); errs[0] != nil {
		t.Fatalf("AddItems: %v", errs[0])
	}

	if err := mi.Resize(0); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if err := mi.Write(0, []byte("BEGIN:VCARD;v2")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if errs := b.ReplaceItems(ctx, []model.SyncItem{mi}); errs[0] != nil {
		t.Fatalf("ReplaceItems: %v", errs[0])
	}

	got, err := b.GetSyncItem(ctx, mi.Key())
	if err != nil {
		t.Fatalf("GetSyncItem: %v", err)
	}
	data, _ := got.Read(0, got.Size())
	if string(data) != "BEGIN:VCARD;v2" {
		t.Fatalf("got %q, want the replaced content", data)
	}
}

func TestProviderReusesBackendPerURI(t *testing.T) {
	ctx := context.Background()
	p := NewProvider(1<<20, nil, "")

	a, err := p.Acquire(ctx, "./contacts")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	b, err := p.Acquire(ctx, "./contacts")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if a != b {
		t.Fatal("expected the same backend instance for repeated Acquire of one URI")
	}

	c, err := p.Acquire(ctx, "./calendar")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if c == a {
		t.Fatal("expected a distinct backend for a different URI")
	}
}
