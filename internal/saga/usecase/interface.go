package usecase

import (
	"context"

	"github.com/allisson/exactly-once/internal/saga/domain"
)

// SagaRepository defines the persistence operations for saga transactions.
type SagaRepository interface {
	Save(ctx context.Context, txn *domain.Transaction) error
	Update(ctx context.Context, txn *domain.Transaction) error
	Get(ctx context.Context, sagaID string) (*domain.Transaction, error)
	ListByStatus(ctx context.Context, status domain.TransactionStatus, limit int) ([]*domain.Transaction, error)
}

// Coordinator defines the saga orchestration operations.
type Coordinator interface {
	RegisterStep(step *domain.Step) error
	Execute(ctx context.Context, name string, stepIDs []string, data map[string]any) (*domain.Transaction, error)
	GetSaga(ctx context.Context, sagaID string) (*domain.Transaction, error)
}
