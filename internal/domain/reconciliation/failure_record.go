package reconciliation

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/peertrade/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// FailureRecord is an audit trail entry for a failed financial operation.
// Records feed reconciliation dashboards; writing them is best-effort and
// never blocks the operation that failed.
type FailureRecord struct {
	shared.BaseEntity
	Operation   string          `gorm:"type:varchar(50);not null;index"`
	UserID      uuid.UUID       `gorm:"type:uuid;index"`
	Amount      decimal.Decimal `gorm:"type:decimal(18,8)"`
	ReferenceID string          `gorm:"type:varchar(100);index"`
	Reason      string          `gorm:"type:text"`
	ErrorCode   string          `gorm:"type:varchar(50);index"`
}

// TableName returns the table name for GORM
func (FailureRecord) TableName() string {
	return "reconciliation_failures"
}

// NewFailureRecord creates a failure record for the given operation and error
func NewFailureRecord(operation string, userID uuid.UUID, amount decimal.Decimal, referenceID string, err error) *FailureRecord {
	record := &FailureRecord{
		BaseEntity:  shared.NewBaseEntity(),
		Operation:   strings.TrimSpace(operation),
		UserID:      userID,
		Amount:      amount,
		ReferenceID: referenceID,
	}
	if err != nil {
		record.Reason = err.Error()
		if de, ok := err.(*shared.DomainError); ok {
			record.ErrorCode = de.Code
		} else {
			record.ErrorCode = "INTERNAL"
		}
	}
	return record
}

// Sink records failed financial operations. Implementations must swallow
// their own errors; a failed telemetry write never propagates to the caller.
type Sink interface {
	Record(ctx context.Context, record *FailureRecord)
}

// Repository defines the interface for failure record persistence
type Repository interface {
	// Create appends a failure record
	Create(ctx context.Context, record *FailureRecord) error

	// FindRecent finds the most recent failure records
	FindRecent(ctx context.Context, filter shared.Filter) ([]FailureRecord, error)
}

// NoOpSink discards all records. Used where telemetry is not wired.
type NoOpSink struct{}

// Record implements Sink
func (NoOpSink) Record(ctx context.Context, record *FailureRecord) {}
