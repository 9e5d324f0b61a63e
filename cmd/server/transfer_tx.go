package main

import (
	"context"
	"database/sql"
	"time"

	dErrors "pharmatrace/pkg/domain-errors"
	txcontext "pharmatrace/pkg/platform/tx"
)

const defaultTransferTxTimeout = 5 * time.Second

// transferPostgresTx runs a custody movement inside one database
// transaction. The *sql.Tx rides in the context, so every store touched by
// the movement joins the same transaction and a failure rolls all of it back.
type transferPostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newTransferPostgresTx(db *sql.DB) *transferPostgresTx {
	return &transferPostgresTx{db: db}
}

func (t *transferPostgresTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultTransferTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to begin transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to commit transaction")
	}
	return nil
}
