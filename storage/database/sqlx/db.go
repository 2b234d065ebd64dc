package sqlxrepos

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	pkgerrors "github.com/pkg/errors"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// DB wraps a Postgres connection shared by every repository.
type DB struct {
	*sqlx.DB
}

func New(db *sql.DB) *DB {
	return &DB{DB: sqlx.NewDb(db, "postgres")}
}

type queryer interface {
	sqlx.QueryerContext
	sqlx.ExecerContext
}

func get(ctx context.Context, q queryer, dest interface{}, b sq.Sqlizer) error {
	query, args, err := b.ToSql()
	if err != nil {
		return pkgerrors.Wrap(err, "building query")
	}
	return sqlx.GetContext(ctx, q, dest, query, args...)
}

func selectRows(ctx context.Context, q queryer, dest interface{}, b sq.Sqlizer) error {
	query, args, err := b.ToSql()
	if err != nil {
		return pkgerrors.Wrap(err, "building query")
	}
	return sqlx.SelectContext(ctx, q, dest, query, args...)
}

func exec(ctx context.Context, q queryer, b sq.Sqlizer) (int64, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return 0, pkgerrors.Wrap(err, "building query")
	}
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// execOne runs b and returns notFound when no row was affected.
func execOne(ctx context.Context, q queryer, b sq.Sqlizer, notFound error) error {
	n, err := exec(ctx, q, b)
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func withTx(ctx context.Context, db *DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return pkgerrors.Wrap(err, "beginning transaction")
	}
	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return pkgerrors.Wrap(tx.Commit(), "committing transaction")
}

func trapNoRowsErr(err, notFound error) error {
	if err == sql.ErrNoRows {
		return notFound
	}
	return err
}

// uniqueViolation returns the violated constraint name when err is a unique violation.
func uniqueViolation(err error) (string, bool) {
	if pqErr, ok := pkgerrors.Cause(err).(*pq.Error); ok && pqErr.Code == "23505" {
		return pqErr.Constraint, true
	}
	return "", false
}

func trapUniqueErr(err, exists error) error {
	if _, ok := uniqueViolation(err); ok {
		return exists
	}
	return err
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
