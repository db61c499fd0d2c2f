package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OperationView is a read-only snapshot of a mutating operation handed to
// observers. Observers receive a copy; nothing they do can alter or veto the
// underlying financial operation.
type OperationView struct {
	Operation   string
	UserID      uuid.UUID
	Amount      decimal.Decimal
	ReferenceID string
}

// Observer receives lifecycle callbacks around every mutating operation.
// Callbacks are invoked synchronously in registration order; panics and
// errors inside an observer are contained and never reach the caller.
type Observer interface {
	// BeforeOperation is invoked before the operation starts
	BeforeOperation(ctx context.Context, op OperationView)
	// AfterOperation is invoked after the operation committed
	AfterOperation(ctx context.Context, op OperationView)
	// OnError is invoked when the operation failed
	OnError(ctx context.Context, op OperationView, err error)
}

// observerList fans callbacks out to an ordered set of observers
type observerList []Observer

func (l observerList) notifyBefore(ctx context.Context, op OperationView) {
	for _, o := range l {
		func() {
			defer func() { _ = recover() }()
			o.BeforeOperation(ctx, op)
		}()
	}
}

func (l observerList) notifyAfter(ctx context.Context, op OperationView) {
	for _, o := range l {
		func() {
			defer func() { _ = recover() }()
			o.AfterOperation(ctx, op)
		}()
	}
}

func (l observerList) notifyError(ctx context.Context, op OperationView, err error) {
	for _, o := range l {
		func() {
			defer func() { _ = recover() }()
			o.OnError(ctx, op, err)
		}()
	}
}
