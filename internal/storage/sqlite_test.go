//go:build sqlite

package storage

import (
	"context"
	"path/filepath"
	"testing"

	"speciestrainer/internal/model"
)

func TestSQLiteStoreRunAndHistoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "speciestrainer.db")

	store := NewSQLiteStore(dbPath)
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	run := model.RunRecord{VersionedRecord: CurrentVersion(), ID: "run-1", CreatedAtUTC: "2026-01-01T00:00:00Z", Scape: "sphere", Dimensions: 3}
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatalf("save run: %v", err)
	}
	run.Dimensions = 5
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatalf("upsert run: %v", err)
	}

	loaded, ok, err := store.GetRun(ctx, "run-1")
	if err != nil || !ok {
		t.Fatalf("get run: ok=%t err=%v", ok, err)
	}
	if loaded.Dimensions != 5 {
		t.Fatalf("expected upserted run, got %+v", loaded)
	}

	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected one run, got %d", len(runs))
	}

	if err := store.SaveFitnessHistory(ctx, "run-1", []float64{3, 2, 1}); err != nil {
		t.Fatalf("save history: %v", err)
	}
	history, ok, err := store.GetFitnessHistory(ctx, "run-1")
	if err != nil || !ok || len(history) != 3 {
		t.Fatalf("get history: ok=%t err=%v history=%v", ok, err, history)
	}

	if err := store.SaveBestGenome(ctx, model.BestGenomeRecord{VersionedRecord: CurrentVersion(), RunID: "run-1", GenomeID: "g1", Genes: []float64{0.1}}); err != nil {
		t.Fatalf("save best: %v", err)
	}
	best, ok, err := store.GetBestGenome(ctx, "run-1")
	if err != nil || !ok || best.GenomeID != "g1" {
		t.Fatalf("get best: ok=%t err=%v best=%+v", ok, err, best)
	}
}

func TestSQLiteStoreMissingRecords(t *testing.T) {
	ctx := context.Background()
	store := NewSQLiteStore(filepath.Join(t.TempDir(), "empty.db"))
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	if _, ok, err := store.GetRun(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected missing run, ok=%t err=%v", ok, err)
	}
	if _, ok, err := store.GetSpeciesHistory(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected missing species history, ok=%t err=%v", ok, err)
	}
}

func TestSQLiteStoreRequiresInit(t *testing.T) {
	store := NewSQLiteStore(filepath.Join(t.TempDir(), "uninit.db"))
	if err := store.SaveRun(context.Background(), model.RunRecord{ID: "x"}); err == nil {
		t.Fatal("expected error before init")
	}
}

func TestSQLiteStoreOrdersRunsBySubSecondTime(t *testing.T) {
	ctx := context.Background()
	store := NewSQLiteStore(filepath.Join(t.TempDir(), "order.db"))
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	older := model.RunRecord{VersionedRecord: CurrentVersion(), ID: "run-older", CreatedAtUTC: "2026-10-19T10:00:00.1Z"}
	newer := model.RunRecord{VersionedRecord: CurrentVersion(), ID: "run-newer", CreatedAtUTC: "2026-10-19T10:00:00.12Z"}
	for _, run := range []model.RunRecord{older, newer} {
		if err := store.SaveRun(ctx, run); err != nil {
			t.Fatalf("save run %s: %v", run.ID, err)
		}
	}

	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "run-newer" {
		t.Fatalf("expected newest first, got %v", runIDs(runs))
	}
}
