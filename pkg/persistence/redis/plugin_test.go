package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/osvaldoandrade/xebench/pkg/domain"
	"github.com/osvaldoandrade/xebench/pkg/persistence"

	"github.com/alicebob/miniredis/v2"
)

func TestRedisPlugin(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	defer mr.Close()

	plugin, err := persistence.NewPersistence(persistence.ProviderConfig{
		Type:   "redis",
		Config: []byte(`{"addr":"` + mr.Addr() + `","keyPrefix":"test"}`),
	})
	if err != nil {
		t.Fatalf("NewPersistence: %v", err)
	}
	defer plugin.Close()

	ctx := context.Background()
	if err := plugin.Health(ctx); err != nil {
		t.Fatalf("Health: %v", err)
	}

	store := plugin.ReportStorage()
	rep := &domain.Report{ID: "r1", CreatedAt: time.Now().UTC(), Rows: 4}
	if err := store.Save(ctx, rep); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !mr.Exists("test:reports") {
		t.Error("expected key prefix to be honoured")
	}

	got, err := store.Get(ctx, "r1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Rows != 4 {
		t.Errorf("rows = %d, want 4", got.Rows)
	}

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, persistence.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := store.Save(ctx, &domain.Report{}); !errors.Is(err, persistence.ErrInvalidReport) {
		t.Errorf("expected ErrInvalidReport, got %v", err)
	}

	list, err := store.List(ctx, 0)
	if err != nil || len(list) != 1 {
		t.Fatalf("List = %d reports, err %v", len(list), err)
	}
}

func TestRedisPluginRequiresAddr(t *testing.T) {
	if _, err := NewPlugin(persistence.PluginConfig{Config: []byte(`{}`)}); err == nil {
		t.Fatal("expected error without addr")
	}
}
