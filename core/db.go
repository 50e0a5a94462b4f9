package core

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

type (
	DBExecutor interface {
		Exec(query string, args ...interface{}) (sql.Result, error)
		ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
		Query(query string, args ...interface{}) (*sql.Rows, error)
		QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
		QueryRow(query string, args ...interface{}) *sql.Row
		QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	}

	DB interface {
		DBExecutor

		Begin() (*sql.Tx, error)
		BeginTx(context.Context, *sql.TxOptions) (*sql.Tx, error)
	}

	DBTransactor interface {
		DBExecutor

		Commit() error
		Rollback() error
	}

	// TxRunner runs a unit of work atomically.
	// The DBExecutor handed to fn must be passed on to every repository call made inside it.
	TxRunner interface {
		RunInTx(ctx context.Context, fn func(exec DBExecutor) error) error
	}
)

type sqlTxRunner struct {
	db DB
}

var _ TxRunner = (*sqlTxRunner)(nil)

func NewTxRunner(db DB) TxRunner {
	return &sqlTxRunner{db: db}
}

func (r sqlTxRunner) RunInTx(ctx context.Context, fn func(exec DBExecutor) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	return runInTx(tx, fn)
}

func runInTx(tx DBTransactor, fn func(exec DBExecutor) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Wrapf(err, "rolling back transaction: %v", rbErr)
		}
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}
