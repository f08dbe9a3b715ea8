// Package postgres implements the corpus and output stores on PostgreSQL
// with JSONB documents.
package postgres

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ppiankov/wikiner/internal/errors"
	"github.com/ppiankov/wikiner/internal/model"
)

// ConnString builds a connection URL for database on the configured server
func ConnString(cfg model.DatabaseConfig, database string) string {
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:   "/" + database,
	}
	if cfg.Auth {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	}
	q := url.Values{}
	q.Set("application_name", "wikiner")
	u.RawQuery = q.Encode()
	return u.String()
}

// Connect opens a pool for connString
func Connect(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, errors.Wrap(err, "parse connection string")
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, errors.Wrap(err, "create pool")
	}
	return pool, nil
}

func ident(name string) (string, error) {
	if !model.ValidIdentifier(name) {
		return "", errors.NewInvalidConfig("invalid table name %q", name)
	}
	return pgx.Identifier{name}.Sanitize(), nil
}

func suffixed(name, suffix string) string {
	return pgx.Identifier{name + suffix}.Sanitize()
}

func execAll(ctx context.Context, pool *pgxpool.Pool, stmts ...string) error {
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return withSQLState(errors.Wrapf(err, "exec %q", firstLine(stmt)), err)
		}
	}
	return nil
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}

// withSQLState attaches the server error code so it shows in logs
func withSQLState(wrapped, cause error) error {
	var pgErr *pgconn.PgError
	if errors.As(cause, &pgErr) {
		return errors.WithDetailf(wrapped, "sqlstate %s: %s", pgErr.Code, pgErr.Message)
	}
	return wrapped
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func ping(ctx context.Context, pool *pgxpool.Pool) error {
	return errors.Wrap(pool.Ping(ctx), "ping postgres")
}

func int64s(ids []model.ClassID) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}

func indexName(table, field string) string {
	return pgx.Identifier{fmt.Sprintf("%s_%s_idx", table, field)}.Sanitize()
}
