package repository

import (
	"context"

	"gorm.io/gorm"
)

type contextKey struct{}

var txKey contextKey

// TransactionManager scopes repository calls to a single database
// transaction via the context. The PO lifecycle pipeline runs its balance
// update, status recompute, and notification inserts inside one RunInTx so
// they commit or roll back together.
type TransactionManager interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
}

type transactionManager struct {
	db *gorm.DB
}

func NewTransactionManager(db *gorm.DB) TransactionManager {
	return &transactionManager{db: db}
}

// RunInTx begins a transaction and injects it into the context handed to fn.
// Nested calls reuse gorm's SAVEPOINT support, so services may compose.
func (t *transactionManager) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return GetDB(ctx, t.db).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey, tx))
	})
}

// GetDB returns the transaction bound to ctx by RunInTx, or rootDB when the
// caller is running outside any transaction scope.
func GetDB(ctx context.Context, rootDB *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey).(*gorm.DB); ok {
		return tx.WithContext(ctx)
	}
	return rootDB.WithContext(ctx)
}
