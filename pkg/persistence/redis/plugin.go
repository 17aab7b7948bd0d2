package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/osvaldoandrade/xebench/internal/providers"
	"github.com/osvaldoandrade/xebench/internal/repository"
	"github.com/osvaldoandrade/xebench/pkg/domain"
	"github.com/osvaldoandrade/xebench/pkg/persistence"

	"github.com/go-redis/redis/v8"
)

// Config holds Redis-specific configuration
type Config struct {
	Addr      string `json:"addr"`
	Password  string `json:"password,omitempty"`
	DB        int    `json:"db,omitempty"`
	KeyPrefix string `json:"keyPrefix,omitempty"`
}

// Plugin implements PluginPersistence for Redis/KVRocks
type Plugin struct {
	client *redis.Client
	repo   repository.ReportRepository
}

// NewPlugin creates a new Redis persistence plugin
func NewPlugin(config persistence.PluginConfig) (persistence.PluginPersistence, error) {
	var cfg Config
	if err := json.Unmarshal(config.Config, &cfg); err != nil {
		return nil, err
	}
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis persistence: addr is required")
	}

	client := providers.NewRedisProvider(cfg.Addr, cfg.Password, cfg.DB)
	return &Plugin{
		client: client,
		repo:   repository.NewReportRepository(client, cfg.KeyPrefix),
	}, nil
}

// ReportStorage returns the report storage implementation
func (p *Plugin) ReportStorage() persistence.ReportStorage {
	return &reportStorageAdapter{repo: p.repo}
}

// Health checks if Redis is healthy
func (p *Plugin) Health(ctx context.Context) error {
	return providers.PingRedis(ctx, p.client)
}

// Close releases Redis connection
func (p *Plugin) Close() error {
	return p.client.Close()
}

func init() {
	persistence.RegisterProvider("redis", NewPlugin)
}

// reportStorageAdapter maps repository errors onto persistence errors.
type reportStorageAdapter struct {
	repo repository.ReportRepository
}

func (a *reportStorageAdapter) Save(ctx context.Context, rep *domain.Report) error {
	if err := persistence.Validate(rep); err != nil {
		return err
	}
	return a.repo.Save(ctx, rep)
}

func (a *reportStorageAdapter) Get(ctx context.Context, id string) (*domain.Report, error) {
	rep, err := a.repo.Get(ctx, id)
	if errors.Is(err, repository.ErrReportNotFound) {
		return nil, persistence.ErrNotFound
	}
	return rep, err
}

func (a *reportStorageAdapter) List(ctx context.Context, limit int) ([]*domain.Report, error) {
	return a.repo.List(ctx, limit)
}
