package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"campusmarket/internal/apperr"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Storage runs queries either on the pool or, inside InTx, on a transaction.
type Storage struct {
	db      *sqlx.DB
	ext     sqlx.ExtContext
	builder sq.StatementBuilderType
}

func NewStorage(db *sqlx.DB) *Storage {
	return &Storage{
		db:      db,
		ext:     db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Ping checks the connection pool.
func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// InTx runs fn inside a transaction. fn receives a Storage bound to the transaction;
// a returned error rolls everything back. Nested calls reuse the outer transaction.
func (s *Storage) InTx(ctx context.Context, fn func(tx *Storage) error) error {
	if _, ok := s.ext.(*sqlx.Tx); ok {
		return fn(s)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return apperr.Internal("failed to begin transaction", err)
	}

	txStorage := &Storage{db: s.db, ext: tx, builder: s.builder}
	if err := fn(txStorage); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return apperr.Internal("failed to commit transaction", err)
	}
	return nil
}

func (s *Storage) get(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return sqlx.GetContext(ctx, s.ext, dest, query, args...)
}

func (s *Storage) selectAll(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return sqlx.SelectContext(ctx, s.ext, dest, query, args...)
}

func (s *Storage) selectBuilt(ctx context.Context, dest interface{}, b sq.Sqlizer) error {
	query, args, err := b.ToSql()
	if err != nil {
		return apperr.Internal("failed to build query", err)
	}
	return s.selectAll(ctx, dest, query, args...)
}

func (s *Storage) getBuilt(ctx context.Context, dest interface{}, b sq.Sqlizer) error {
	query, args, err := b.ToSql()
	if err != nil {
		return apperr.Internal("failed to build query", err)
	}
	return s.get(ctx, dest, query, args...)
}

func (s *Storage) execBuilt(ctx context.Context, b sq.Sqlizer) (int64, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return 0, apperr.Internal("failed to build query", err)
	}
	res, err := s.ext.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// notFound turns sql.ErrNoRows into a NotFound error and wraps anything else as Internal.
func notFound(err error, message string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound(message)
	}
	return internal(err)
}

// conflict turns unique violations into a Conflict error.
func conflict(err error, message string) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return &apperr.Error{Kind: apperr.KindConflict, Message: message, Err: err}
	}
	return internal(err)
}

func internal(err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	return apperr.Internal("database error", err)
}

func affectedOrNotFound(res sql.Result, err error, message string) error {
	if err != nil {
		return internal(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return internal(err)
	}
	if n == 0 {
		return apperr.NotFound(message)
	}
	return nil
}
