package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/osvaldoandrade/xebench/pkg/domain"
	"github.com/osvaldoandrade/xebench/pkg/persistence"
)

// Plugin implements PluginPersistence for in-memory storage.
// Reports live for the life of the process.
type Plugin struct {
	mu      sync.RWMutex
	reports map[string][]byte
}

// NewPlugin creates a new in-memory persistence plugin
func NewPlugin(config persistence.PluginConfig) (persistence.PluginPersistence, error) {
	return &Plugin{reports: make(map[string][]byte)}, nil
}

// ReportStorage returns the report storage implementation
func (p *Plugin) ReportStorage() persistence.ReportStorage {
	return &reportStorage{plugin: p}
}

// Health always returns nil for in-memory storage
func (p *Plugin) Health(ctx context.Context) error {
	return nil
}

// Close is a no-op for in-memory storage
func (p *Plugin) Close() error {
	return nil
}

func init() {
	persistence.RegisterProvider("memory", NewPlugin)
}

type reportStorage struct {
	plugin *Plugin
}

// Reports are stored encoded so callers never share memory with the store.
func (s *reportStorage) Save(ctx context.Context, rep *domain.Report) error {
	if err := persistence.Validate(rep); err != nil {
		return err
	}
	b, err := json.Marshal(rep)
	if err != nil {
		return err
	}
	s.plugin.mu.Lock()
	defer s.plugin.mu.Unlock()
	s.plugin.reports[rep.ID] = b
	return nil
}

func (s *reportStorage) Get(ctx context.Context, id string) (*domain.Report, error) {
	s.plugin.mu.RLock()
	b, ok := s.plugin.reports[id]
	s.plugin.mu.RUnlock()
	if !ok {
		return nil, persistence.ErrNotFound
	}
	var rep domain.Report
	if err := json.Unmarshal(b, &rep); err != nil {
		return nil, err
	}
	return &rep, nil
}

func (s *reportStorage) List(ctx context.Context, limit int) ([]*domain.Report, error) {
	s.plugin.mu.RLock()
	out := make([]*domain.Report, 0, len(s.plugin.reports))
	for _, b := range s.plugin.reports {
		var rep domain.Report
		if err := json.Unmarshal(b, &rep); err != nil {
			s.plugin.mu.RUnlock()
			return nil, err
		}
		out = append(out, &rep)
	}
	s.plugin.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
