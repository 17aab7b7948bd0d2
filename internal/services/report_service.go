package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/osvaldoandrade/xebench/pkg/domain"
	"github.com/osvaldoandrade/xebench/pkg/persistence"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 200
)

type ReportService interface {
	Save(ctx context.Context, rep *domain.Report) error
	Get(ctx context.Context, id string) (*domain.Report, error)
	List(ctx context.Context, limit int) ([]*domain.Report, error)
	Shots(ctx context.Context, id string) ([]domain.ShotGroup, error)
	Health(ctx context.Context) error
}

type reportService struct {
	store  persistence.PluginPersistence
	logger *slog.Logger
	tracer trace.Tracer
}

func NewReportService(store persistence.PluginPersistence, logger *slog.Logger) ReportService {
	if logger == nil {
		logger = slog.Default()
	}
	return &reportService{store: store, logger: logger, tracer: otel.Tracer("xebench/reports")}
}

func (s *reportService) Save(ctx context.Context, rep *domain.Report) error {
	ctx, span := s.tracer.Start(ctx, "xebench.report.save")
	defer span.End()
	if rep != nil {
		span.SetAttributes(attribute.String("xebench.report_id", rep.ID))
	}
	if err := s.store.ReportStorage().Save(ctx, rep); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("save report: %w", err)
	}
	s.logger.Info("report stored", "report_id", rep.ID, "rows", rep.Rows)
	return nil
}

func (s *reportService) Get(ctx context.Context, id string) (*domain.Report, error) {
	ctx, span := s.tracer.Start(ctx, "xebench.report.get", trace.WithAttributes(attribute.String("xebench.report_id", id)))
	defer span.End()
	rep, err := s.store.ReportStorage().Get(ctx, id)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return rep, nil
}

// List clamps limit to [1, MaxListLimit]; zero or negative means the default.
func (s *reportService) List(ctx context.Context, limit int) ([]*domain.Report, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	ctx, span := s.tracer.Start(ctx, "xebench.report.list", trace.WithAttributes(attribute.Int("xebench.limit", limit)))
	defer span.End()
	reps, err := s.store.ReportStorage().List(ctx, limit)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return reps, nil
}

func (s *reportService) Shots(ctx context.Context, id string) ([]domain.ShotGroup, error) {
	rep, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rep.ShotGroups == nil {
		return []domain.ShotGroup{}, nil
	}
	return rep.ShotGroups, nil
}

func (s *reportService) Health(ctx context.Context) error {
	return s.store.Health(ctx)
}
