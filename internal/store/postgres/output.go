package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/ppiankov/wikiner/internal/errors"
	"github.com/ppiankov/wikiner/internal/model"
	"github.com/ppiankov/wikiner/internal/store"
)

// Output stores classified records as JSONB rows keyed by (id, ne_class)
type Output struct {
	pool    *pgxpool.Pool
	name    string
	records string
	log     *zap.SugaredLogger
}

var _ store.Output = (*Output)(nil)

// NewOutput wraps pool, creating the record table when missing
func NewOutput(ctx context.Context, pool *pgxpool.Pool, table string, log *zap.SugaredLogger) (*Output, error) {
	records, err := ident(table)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	err = execAll(ctx, pool, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id       TEXT NOT NULL,
		ne_class TEXT NOT NULL,
		run_id   TEXT NOT NULL,
		doc      JSONB NOT NULL,
		UNIQUE (id, ne_class)
	)`, records))
	if err != nil {
		return nil, err
	}
	return &Output{pool: pool, name: table, records: records, log: log}, nil
}

// DeleteMany removes every record tagged with category
func (o *Output) DeleteMany(ctx context.Context, category model.Category) (int64, error) {
	tag, err := o.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE ne_class = $1`, o.records), string(category))
	if err != nil {
		return 0, withSQLState(errors.Wrapf(err, "delete %s records", category), err)
	}
	return tag.RowsAffected(), nil
}

// FindOne returns the record stored for id under category
func (o *Output) FindOne(ctx context.Context, id string, category model.Category) (*model.Record, error) {
	var doc []byte
	err := o.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT doc FROM %s WHERE id = $1 AND ne_class = $2`, o.records),
		id, string(category)).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrapf(errors.ErrNotFound, "record %s (%s)", id, category)
	}
	if err != nil {
		return nil, withSQLState(errors.Wrapf(err, "find record %s", id), err)
	}
	return decodeRecord(doc)
}

// BulkInsert sends the records as one pipelined batch inside a transaction.
// Conflicting (id, category) pairs come back as CodeDuplicateKey document
// errors while the rest commit. Any other statement error aborts the
// transaction and is returned whole.
func (o *Output) BulkInsert(ctx context.Context, records []*model.Record) (store.BulkResult, error) {
	var result store.BulkResult
	if len(records) == 0 {
		return result, nil
	}

	insert := fmt.Sprintf(`INSERT INTO %s (id, ne_class, run_id, doc) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id, ne_class) DO NOTHING RETURNING id`, o.records)

	batch := &pgx.Batch{}
	queued := make([]int, 0, len(records))
	for i, r := range records {
		doc, err := json.Marshal(r)
		if err != nil {
			result.Errors = append(result.Errors, store.DocumentError{Index: i, ID: r.ID, Code: "encode", Err: err})
			continue
		}
		batch.Queue(insert, r.ID, string(r.Category), r.RunID, doc)
		queued = append(queued, i)
	}

	err := pgx.BeginFunc(ctx, o.pool, func(tx pgx.Tx) error {
		br := tx.SendBatch(ctx, batch)
		for _, i := range queued {
			var id string
			err := br.QueryRow().Scan(&id)
			switch {
			case err == nil:
				result.Inserted++
			case errors.Is(err, pgx.ErrNoRows), isUniqueViolation(err):
				result.Errors = append(result.Errors, store.DocumentError{
					Index: i,
					ID:    records[i].ID,
					Code:  store.CodeDuplicateKey,
					Err:   errors.Newf("record %s (%s) already exists", records[i].ID, records[i].Category),
				})
			default:
				_ = br.Close()
				return withSQLState(errors.Wrapf(err, "insert record %s", records[i].ID), err)
			}
		}
		return br.Close()
	})
	if err != nil {
		return store.BulkResult{}, errors.Wrap(err, "bulk insert")
	}
	return result, nil
}

var indexColumns = map[string]string{
	model.FieldID:       "id",
	model.FieldCategory: "ne_class",
	model.FieldRunID:    "run_id",
}

// CreateIndex indexes field, through the JSONB document for non-key fields
func (o *Output) CreateIndex(ctx context.Context, field string, ascending bool) error {
	if !model.ValidIdentifier(field) {
		return errors.NewInvalidConfig("invalid index field %q", field)
	}
	expr, ok := indexColumns[field]
	if !ok {
		expr = fmt.Sprintf(`(doc ->> '%s')`, field)
	}
	order := "ASC"
	if !ascending {
		order = "DESC"
	}
	return execAll(ctx, o.pool, fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (%s %s)`,
		indexName(o.name, field), o.records, expr, order))
}

// ExistingIDs returns the ids stored under category
func (o *Output) ExistingIDs(ctx context.Context, category model.Category) (map[string]struct{}, error) {
	rows, err := o.pool.Query(ctx, fmt.Sprintf(`SELECT id FROM %s WHERE ne_class = $1`, o.records), string(category))
	if err != nil {
		return nil, withSQLState(errors.Wrap(err, "query existing ids"), err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, errors.Wrap(err, "collect ids")
	}
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out, nil
}

// Records iterates stored records ordered by id then category
func (o *Output) Records(ctx context.Context, category model.Category) iter.Seq2[*model.Record, error] {
	return func(yield func(*model.Record, error) bool) {
		query := fmt.Sprintf(`SELECT doc FROM %s`, o.records)
		var args []any
		if category != "" {
			query += ` WHERE ne_class = $1`
			args = append(args, string(category))
		}
		query += ` ORDER BY id, ne_class`

		rows, err := o.pool.Query(ctx, query, args...)
		if err != nil {
			yield(nil, withSQLState(errors.Wrap(err, "query records"), err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var doc []byte
			if err := rows.Scan(&doc); err != nil {
				yield(nil, errors.Wrap(err, "scan record"))
				return
			}
			r, err := decodeRecord(doc)
			if !yield(r, err) || err != nil {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, errors.Wrap(err, "iterate records"))
		}
	}
}

// Ping checks the server is reachable
func (o *Output) Ping(ctx context.Context) error {
	return ping(ctx, o.pool)
}

// Close releases the pool
func (o *Output) Close() error {
	o.pool.Close()
	return nil
}

func decodeRecord(doc []byte) (*model.Record, error) {
	var r model.Record
	if err := json.Unmarshal(doc, &r); err != nil {
		return nil, errors.Wrap(err, "decode record")
	}
	return &r, nil
}
