package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/osvaldoandrade/xebench/pkg/domain"
	"github.com/osvaldoandrade/xebench/pkg/persistence"
)

func TestMemoryPlugin(t *testing.T) {
	plugin, err := NewPlugin(persistence.PluginConfig{Config: []byte("{}")})
	if err != nil {
		t.Fatalf("Failed to create plugin: %v", err)
	}
	defer plugin.Close()

	ctx := context.Background()
	if err := plugin.Health(ctx); err != nil {
		t.Errorf("Health check failed: %v", err)
	}

	store := plugin.ReportStorage()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "new", "mid"} {
		offsets := []time.Duration{0, 2 * time.Hour, time.Hour}
		rep := &domain.Report{ID: id, CreatedAt: base.Add(offsets[i]), Rows: i}
		if err := store.Save(ctx, rep); err != nil {
			t.Fatalf("Save %s failed: %v", id, err)
		}
	}

	got, err := store.Get(ctx, "mid")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Rows != 2 {
		t.Errorf("Expected rows 2, got %d", got.Rows)
	}

	list, err := store.List(ctx, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	var ids []string
	for _, r := range list {
		ids = append(ids, r.ID)
	}
	if len(ids) != 3 || ids[0] != "new" || ids[1] != "mid" || ids[2] != "old" {
		t.Errorf("Expected newest first, got %v", ids)
	}

	list, _ = store.List(ctx, 1)
	if len(list) != 1 || list[0].ID != "new" {
		t.Errorf("Expected limit to keep newest, got %d reports", len(list))
	}
}

func TestMemoryPluginErrors(t *testing.T) {
	plugin, _ := NewPlugin(persistence.PluginConfig{})
	store := plugin.ReportStorage()
	ctx := context.Background()

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, persistence.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if err := store.Save(ctx, &domain.Report{}); !errors.Is(err, persistence.ErrInvalidReport) {
		t.Errorf("Expected ErrInvalidReport, got %v", err)
	}
}

func TestMemoryPluginIsolatesCallers(t *testing.T) {
	plugin, _ := NewPlugin(persistence.PluginConfig{})
	store := plugin.ReportStorage()
	ctx := context.Background()

	rep := &domain.Report{ID: "r", Rows: 1}
	_ = store.Save(ctx, rep)
	rep.Rows = 99

	got, _ := store.Get(ctx, "r")
	if got.Rows != 1 {
		t.Errorf("Stored report changed through caller pointer: rows=%d", got.Rows)
	}
}
