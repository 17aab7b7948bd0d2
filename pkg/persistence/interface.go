package persistence

import (
	"context"
	"errors"

	"github.com/osvaldoandrade/xebench/pkg/domain"
)

var (
	// ErrNotFound is returned when a report does not exist
	ErrNotFound = errors.New("not found")

	// ErrInvalidReport is returned when a report cannot be stored
	ErrInvalidReport = errors.New("invalid report")
)

// PluginPersistence is implemented by every report store backend.
type PluginPersistence interface {
	// ReportStorage returns the report storage implementation
	ReportStorage() ReportStorage

	// Health checks if the persistence backend is healthy
	Health(ctx context.Context) error

	// Close releases resources held by the persistence backend
	Close() error
}

// ReportStorage stores aggregation reports keyed by report ID.
type ReportStorage interface {
	// Save stores a report, replacing any report with the same ID
	Save(ctx context.Context, rep *domain.Report) error

	// Get retrieves a report by ID
	Get(ctx context.Context, id string) (*domain.Report, error)

	// List returns up to limit reports, newest first. A limit <= 0 returns all.
	List(ctx context.Context, limit int) ([]*domain.Report, error)
}

// Validate reports whether rep can be stored.
func Validate(rep *domain.Report) error {
	if rep == nil || rep.ID == "" {
		return ErrInvalidReport
	}
	return nil
}
