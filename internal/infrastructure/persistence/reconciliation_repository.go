package persistence

import (
	"context"

	"github.com/peertrade/backend/internal/domain/reconciliation"
	"github.com/peertrade/backend/internal/domain/shared"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// GormFailureRecordRepository implements reconciliation.Repository using GORM
type GormFailureRecordRepository struct {
	db *gorm.DB
}

// NewGormFailureRecordRepository creates a new GormFailureRecordRepository
func NewGormFailureRecordRepository(db *gorm.DB) *GormFailureRecordRepository {
	return &GormFailureRecordRepository{db: db}
}

// Create appends a failure record
func (r *GormFailureRecordRepository) Create(ctx context.Context, record *reconciliation.FailureRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// FindRecent finds the most recent failure records
func (r *GormFailureRecordRepository) FindRecent(ctx context.Context, filter shared.Filter) ([]reconciliation.FailureRecord, error) {
	var records []reconciliation.FailureRecord
	query := r.db.WithContext(ctx).
		Model(&reconciliation.FailureRecord{}).
		Order("created_at DESC")

	if op, ok := filter.Filters["operation"]; ok {
		query = query.Where("operation = ?", op)
	}
	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// Ensure GormFailureRecordRepository implements reconciliation.Repository
var _ reconciliation.Repository = (*GormFailureRecordRepository)(nil)

// GormFailureSink writes failure records to the database outside of the
// failing transaction. Write errors are logged and swallowed; telemetry
// must never change the outcome of the operation it observes.
type GormFailureSink struct {
	repo   *GormFailureRecordRepository
	logger *zap.Logger
}

// NewGormFailureSink creates a new GormFailureSink
func NewGormFailureSink(db *gorm.DB, logger *zap.Logger) *GormFailureSink {
	return &GormFailureSink{
		repo:   NewGormFailureRecordRepository(db),
		logger: logger,
	}
}

// Record implements reconciliation.Sink
func (s *GormFailureSink) Record(ctx context.Context, record *reconciliation.FailureRecord) {
	if record == nil {
		return
	}
	if err := s.repo.Create(ctx, record); err != nil {
		s.logger.Warn("failed to persist reconciliation failure record",
			zap.String("operation", record.Operation),
			zap.String("reference_id", record.ReferenceID),
			zap.Error(err))
	}
}

// Ensure GormFailureSink implements reconciliation.Sink
var _ reconciliation.Sink = (*GormFailureSink)(nil)
