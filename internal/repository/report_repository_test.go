package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/osvaldoandrade/xebench/pkg/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

func setupReportRepo(t *testing.T) (context.Context, *miniredis.Miniredis, ReportRepository) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return context.Background(), mr, NewReportRepository(rdb, "")
}

func TestReportRepositorySaveGet(t *testing.T) {
	ctx, mr, repo := setupReportRepo(t)

	xeb := 0.0021
	rep := &domain.Report{
		ID:        "r1",
		CreatedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Rows:      12,
		Workers:   3,
		Fidelity:  &domain.FidelityResult{Qubits: 53, Samples: 1000, XEB: xeb},
	}
	if err := repo.Save(ctx, rep); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !mr.Exists("xebench:reports") {
		t.Fatal("expected reports hash to exist")
	}

	got, err := repo.Get(ctx, "r1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Rows != 12 || got.Workers != 3 {
		t.Errorf("unexpected report: %+v", got)
	}
	if got.Fidelity == nil || got.Fidelity.XEB != xeb {
		t.Errorf("fidelity not round-tripped: %+v", got.Fidelity)
	}
	if !got.CreatedAt.Equal(rep.CreatedAt) {
		t.Errorf("createdAt = %v, want %v", got.CreatedAt, rep.CreatedAt)
	}
}

func TestReportRepositoryGetMissing(t *testing.T) {
	ctx, _, repo := setupReportRepo(t)

	_, err := repo.Get(ctx, "nope")
	if !errors.Is(err, ErrReportNotFound) {
		t.Fatalf("expected ErrReportNotFound, got %v", err)
	}
}

func TestReportRepositoryListNewestFirst(t *testing.T) {
	ctx, mr, repo := setupReportRepo(t)
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		if err := repo.Save(ctx, &domain.Report{ID: id, CreatedAt: base.Add(time.Duration(i) * time.Minute)}); err != nil {
			t.Fatalf("Save %s: %v", id, err)
		}
	}
	// Orphaned index entry is skipped.
	if _, err := mr.ZAdd("xebench:reports:created", float64(base.Add(time.Hour).UnixMilli()), "ghost"); err != nil {
		t.Fatalf("zadd: %v", err)
	}

	all, err := repo.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var ids []string
	for _, r := range all {
		ids = append(ids, r.ID)
	}
	if len(ids) != 3 || ids[0] != "c" || ids[1] != "b" || ids[2] != "a" {
		t.Errorf("List order = %v", ids)
	}

	two, err := repo.List(ctx, 3)
	if err != nil {
		t.Fatalf("List limit: %v", err)
	}
	if len(two) != 2 || two[0].ID != "c" {
		t.Errorf("limited list = %d reports", len(two))
	}
}

func TestReportRepositoryListEmpty(t *testing.T) {
	ctx, _, repo := setupReportRepo(t)

	all, err := repo.List(ctx, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("expected no reports, got %d", len(all))
	}
}
