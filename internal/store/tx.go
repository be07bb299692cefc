package store

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type txCtxKey struct{}

// TxManager runs callbacks inside a database transaction carried in the context.
type TxManager struct {
	db *gorm.DB
}

func NewTxManager(db *gorm.DB) *TxManager {
	return &TxManager{db: db}
}

// RunInTx executes fn within a transaction. It commits when fn returns nil and
// rolls back on error or panic. A call made while a transaction is already in
// the context joins it instead of opening a second one.
func (m *TxManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txCtxKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txCtxKey{}, tx))
	})
}

// conn returns the transaction from ctx when present, otherwise the pool.
func conn(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txCtxKey{}).(*gorm.DB); ok {
		return tx.WithContext(ctx)
	}
	return db.WithContext(ctx)
}

// forUpdate adds SELECT ... FOR UPDATE when running inside a transaction.
func forUpdate(ctx context.Context, q *gorm.DB) *gorm.DB {
	if _, ok := ctx.Value(txCtxKey{}).(*gorm.DB); ok {
		return q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return q
}
