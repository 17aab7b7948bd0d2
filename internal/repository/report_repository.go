package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/osvaldoandrade/xebench/pkg/domain"

	"github.com/go-redis/redis/v8"
)

// ErrReportNotFound is returned by Get for unknown report IDs.
var ErrReportNotFound = errors.New("report not found")

type ReportRepository interface {
	Save(ctx context.Context, rep *domain.Report) error
	Get(ctx context.Context, id string) (*domain.Report, error)
	List(ctx context.Context, limit int) ([]*domain.Report, error)
}

type reportRedisRepo struct {
	rdb    *redis.Client
	prefix string
}

// NewReportRepository stores reports in a hash keyed by ID plus a sorted set
// indexed by creation time.
func NewReportRepository(rdb *redis.Client, prefix string) ReportRepository {
	if prefix == "" {
		prefix = "xebench"
	}
	return &reportRedisRepo{rdb: rdb, prefix: prefix}
}

func (r *reportRedisRepo) keyReportsHash() string { return r.prefix + ":reports" }
func (r *reportRedisRepo) keyCreatedIndex() string {
	return r.prefix + ":reports:created"
}

func (r *reportRedisRepo) Save(ctx context.Context, rep *domain.Report) error {
	b, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	pipe := r.rdb.TxPipeline()
	pipe.HSet(ctx, r.keyReportsHash(), rep.ID, string(b))
	pipe.ZAdd(ctx, r.keyCreatedIndex(), &redis.Z{Score: float64(rep.CreatedAt.UnixMilli()), Member: rep.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis save report: %w", err)
	}
	return nil
}

func (r *reportRedisRepo) Get(ctx context.Context, id string) (*domain.Report, error) {
	js, err := r.rdb.HGet(ctx, r.keyReportsHash(), id).Result()
	if err == redis.Nil || (err == nil && js == "") {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis HGET report: %w", err)
	}
	var rep domain.Report
	if err := json.Unmarshal([]byte(js), &rep); err != nil {
		return nil, fmt.Errorf("unmarshal report: %w", err)
	}
	return &rep, nil
}

func (r *reportRedisRepo) List(ctx context.Context, limit int) ([]*domain.Report, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	ids, err := r.rdb.ZRevRange(ctx, r.keyCreatedIndex(), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("redis ZREVRANGE reports: %w", err)
	}
	if len(ids) == 0 {
		return []*domain.Report{}, nil
	}
	vals, err := r.rdb.HMGet(ctx, r.keyReportsHash(), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis HMGET reports: %w", err)
	}
	out := make([]*domain.Report, 0, len(vals))
	for _, v := range vals {
		s, ok := v.(string)
		if !ok || s == "" {
			// Index entry without a body; skip it.
			continue
		}
		var rep domain.Report
		if err := json.Unmarshal([]byte(s), &rep); err != nil {
			return nil, fmt.Errorf("unmarshal report: %w", err)
		}
		out = append(out, &rep)
	}
	return out, nil
}
