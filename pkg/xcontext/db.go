package xcontext

import (
	"context"

	"gorm.io/gorm"
)

type dbTransaction struct {
	tx   *gorm.DB
	done bool
}

func WithDB(ctx context.Context, db *gorm.DB) context.Context {
	return context.WithValue(ctx, dbKey{}, db)
}

// DB returns the running transaction of ctx if any, otherwise the root
// database bound to ctx.
func DB(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(dbTxKey{}).(*dbTransaction); ok && !tx.done {
		return tx.tx
	}

	db, ok := ctx.Value(dbKey{}).(*gorm.DB)
	if !ok {
		panic("xcontext: no database in context")
	}

	return db.WithContext(ctx)
}

// WithDBTransaction begins a transaction. Every later DB(ctx) call on the
// returned context runs inside it until it is committed or rolled back.
func WithDBTransaction(ctx context.Context) context.Context {
	tx := DB(ctx).Begin()
	return context.WithValue(ctx, dbTxKey{}, &dbTransaction{tx: tx})
}

// WithCommitDBTransaction commits the transaction of ctx. Calling it on a
// finished transaction is a no-op.
func WithCommitDBTransaction(ctx context.Context) error {
	if tx, ok := ctx.Value(dbTxKey{}).(*dbTransaction); ok && !tx.done {
		tx.done = true
		return tx.tx.Commit().Error
	}
	return nil
}

// WithRollbackDBTransaction is safe to defer right after WithDBTransaction.
func WithRollbackDBTransaction(ctx context.Context) {
	if tx, ok := ctx.Value(dbTxKey{}).(*dbTransaction); ok && !tx.done {
		tx.done = true
		tx.tx.Rollback()
	}
}
