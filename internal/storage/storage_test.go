package storage_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"pageeditor/internal/domain"
	"pageeditor/internal/storage"
)

func openDB(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.New(filepath.Join(t.TempDir(), "editor.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// ─────────────────────────────────────────────────────────────
// ConfigStore tests
// ─────────────────────────────────────────────────────────────

func TestConfigStore_LoadMissing(t *testing.T) {
	s := storage.NewConfigStore(openDB(t))
	if _, err := s.LoadConfig(context.Background(), "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestConfigStore_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	s := storage.NewConfigStore(openDB(t))

	if err := s.SaveConfig(ctx, "home", []byte(`{"version":2}`)); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveConfig(ctx, "home", []byte(`{"version":2,"elements":[]}`)); err != nil {
		t.Fatal(err)
	}

	got, err := s.LoadConfig(ctx, "home")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"version":2,"elements":[]}` {
		t.Fatalf("expected last write to win, got %s", got)
	}

	keys, err := s.Keys(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 1 || keys[0] != "home" {
		t.Fatalf("unexpected keys %v", keys)
	}
}

func TestConfigStore_Revisions(t *testing.T) {
	ctx := context.Background()
	s := storage.NewConfigStore(openDB(t))

	_ = s.SaveConfig(ctx, "home", []byte(`{"n":1}`))
	_ = s.SaveLabelled(ctx, "home", []byte(`{"n":2}`), "restore")
	_ = s.SaveConfig(ctx, "other", []byte(`{"n":3}`))

	revs, err := s.ListRevisions(ctx, "home")
	if err != nil {
		t.Fatal(err)
	}
	if len(revs) != 2 {
		t.Fatalf("expected 2 revisions, got %d", len(revs))
	}
	if revs[0].Label != "restore" || revs[0].Size != len(`{"n":2}`) {
		t.Fatalf("expected newest first, got %+v", revs[0])
	}

	doc, err := s.GetRevision(ctx, revs[1].ID)
	if err != nil {
		t.Fatal(err)
	}
	if string(doc) != `{"n":1}` {
		t.Fatalf("unexpected revision body %s", doc)
	}
	if _, err := s.GetRevision(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestConfigStore_PrunesRevisions(t *testing.T) {
	ctx := context.Background()
	s := storage.NewConfigStore(openDB(t))

	for i := 0; i < storage.MaxRevisions+5; i++ {
		if err := s.SaveConfig(ctx, "home", []byte(fmt.Sprintf(`{"n":%d}`, i))); err != nil {
			t.Fatal(err)
		}
	}
	revs, err := s.ListRevisions(ctx, "home")
	if err != nil {
		t.Fatal(err)
	}
	if len(revs) != storage.MaxRevisions {
		t.Fatalf("expected %d revisions, got %d", storage.MaxRevisions, len(revs))
	}
	newest, _ := s.GetRevision(ctx, revs[0].ID)
	if string(newest) != fmt.Sprintf(`{"n":%d}`, storage.MaxRevisions+4) {
		t.Fatalf("newest revision should survive pruning, got %s", newest)
	}
}

func TestConfigStore_Delete(t *testing.T) {
	ctx := context.Background()
	s := storage.NewConfigStore(openDB(t))
	_ = s.SaveConfig(ctx, "home", []byte(`{}`))

	if err := s.DeleteConfig(ctx, "home"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.LoadConfig(ctx, "home"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if revs, _ := s.ListRevisions(ctx, "home"); len(revs) != 0 {
		t.Fatalf("expected revisions to be deleted, got %d", len(revs))
	}
}

func TestNew_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "editor.db")

	db, err := storage.New(path)
	if err != nil {
		t.Fatal(err)
	}
	_ = storage.NewConfigStore(db).SaveConfig(ctx, "home", []byte(`{"a":1}`))
	db.Close()

	db, err = storage.New(path)
	if err != nil {
		t.Fatalf("reopen should tolerate existing schema: %v", err)
	}
	defer db.Close()
	got, err := storage.NewConfigStore(db).LoadConfig(ctx, "home")
	if err != nil || string(got) != `{"a":1}` {
		t.Fatalf("unexpected %s, %v", got, err)
	}
}

// ─────────────────────────────────────────────────────────────
// SettingsStore tests
// ─────────────────────────────────────────────────────────────

func TestSettingsStore(t *testing.T) {
	ctx := context.Background()
	s := storage.NewSettingsStore(openDB(t))

	if got := s.GetInt(ctx, "window_width", 1280); got != 1280 {
		t.Fatalf("expected default, got %d", got)
	}
	if err := s.SetInt(ctx, "window_width", 1600); err != nil {
		t.Fatal(err)
	}
	if got := s.GetInt(ctx, "window_width", 1280); got != 1600 {
		t.Fatalf("expected 1600, got %d", got)
	}
	_ = s.Set(ctx, "window_width", "wide")
	if got := s.GetInt(ctx, "window_width", 1280); got != 1280 {
		t.Fatalf("non-numeric value should fall back, got %d", got)
	}
}

// ─────────────────────────────────────────────────────────────
// ApprovalStore tests
// ─────────────────────────────────────────────────────────────

func TestApprovalStore(t *testing.T) {
	ctx := context.Background()
	s := storage.NewApprovalStore(openDB(t))

	if err := s.Create(ctx, storage.Approval{ID: "a1", Tool: "reset", Description: "Reset home"}); err != nil {
		t.Fatal(err)
	}
	_ = s.Create(ctx, storage.Approval{ID: "a2", Tool: "remove_element", Metadata: `{"elementIds":["x"]}`})

	pending, err := s.ListPending(ctx)
	if err != nil || len(pending) != 2 {
		t.Fatalf("expected 2 pending, got %v, %v", pending, err)
	}
	if pending[0].Metadata != "{}" {
		t.Errorf("empty metadata should default to {}, got %q", pending[0].Metadata)
	}

	if err := s.Resolve(ctx, "a1", true); err != nil {
		t.Fatal(err)
	}
	if status, _ := s.Status(ctx, "a1"); status != storage.ApprovalApproved {
		t.Fatalf("expected approved, got %q", status)
	}
	if err := s.Resolve(ctx, "a1", false); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("resolving twice should fail, got %v", err)
	}

	_ = s.Delete(ctx, "a2")
	if _, err := s.Status(ctx, "a2"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if pending, _ := s.ListPending(ctx); len(pending) != 0 {
		t.Fatalf("expected nothing pending, got %v", pending)
	}
}
