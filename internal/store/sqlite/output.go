package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"iter"

	"go.uber.org/zap"

	"github.com/ppiankov/wikiner/internal/errors"
	"github.com/ppiankov/wikiner/internal/model"
	"github.com/ppiankov/wikiner/internal/store"
)

// Output stores classified records in SQLite, one row per (id, category)
type Output struct {
	db      *sql.DB
	records string
	log     *zap.SugaredLogger
}

var _ store.Output = (*Output)(nil)

// NewOutput wraps db, creating the record table when missing
func NewOutput(db *sql.DB, table string, log *zap.SugaredLogger) (*Output, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if err := applySchema(db, "output.sql", tableNames{Records: table}); err != nil {
		return nil, err
	}
	return &Output{db: db, records: table, log: log}, nil
}

// DeleteMany removes every record tagged with category
func (o *Output) DeleteMany(ctx context.Context, category model.Category) (int64, error) {
	res, err := o.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE ne_class = ?`, o.records), string(category))
	if err != nil {
		return 0, errors.Wrapf(err, "delete %s records", category)
	}
	n, err := res.RowsAffected()
	return n, errors.Wrap(err, "rows affected")
}

// FindOne returns the record stored for id under category
func (o *Output) FindOne(ctx context.Context, id string, category model.Category) (*model.Record, error) {
	var doc string
	err := o.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT doc FROM %s WHERE id = ? AND ne_class = ?`, o.records),
		id, string(category)).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(errors.ErrNotFound, "record %s (%s)", id, category)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "find record %s", id)
	}
	return decodeRecord(doc)
}

// BulkInsert inserts records in one transaction. A record whose (id,
// category) already exists is rejected with CodeDuplicateKey and the rest
// are still committed.
func (o *Output) BulkInsert(ctx context.Context, records []*model.Record) (store.BulkResult, error) {
	var result store.BulkResult
	if len(records) == 0 {
		return result, nil
	}

	tx, err := o.db.BeginTx(ctx, nil)
	if err != nil {
		return result, errors.Wrap(err, "begin bulk insert")
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (id, ne_class, run_id, doc) VALUES (?, ?, ?, ?)
		 ON CONFLICT (id, ne_class) DO NOTHING`, o.records))
	if err != nil {
		return result, errors.Wrap(err, "prepare bulk insert")
	}
	defer func() { _ = stmt.Close() }()

	for i, r := range records {
		doc, err := json.Marshal(r)
		if err != nil {
			result.Errors = append(result.Errors, store.DocumentError{Index: i, ID: r.ID, Code: "encode", Err: err})
			continue
		}
		res, err := stmt.ExecContext(ctx, r.ID, string(r.Category), r.RunID, string(doc))
		if err != nil {
			if ctx.Err() != nil {
				return store.BulkResult{}, errors.Wrap(err, "bulk insert")
			}
			result.Errors = append(result.Errors, store.DocumentError{Index: i, ID: r.ID, Code: "write", Err: err})
			continue
		}
		if n, _ := res.RowsAffected(); n == 0 {
			result.Errors = append(result.Errors, store.DocumentError{
				Index: i,
				ID:    r.ID,
				Code:  store.CodeDuplicateKey,
				Err:   errors.Newf("record %s (%s) already exists", r.ID, r.Category),
			})
			continue
		}
		result.Inserted++
	}

	if err := tx.Commit(); err != nil {
		return store.BulkResult{}, errors.Wrap(err, "commit bulk insert")
	}
	return result, nil
}

var indexColumns = map[string]string{
	model.FieldID:       "id",
	model.FieldCategory: "ne_class",
	model.FieldRunID:    "run_id",
}

// CreateIndex indexes field. Fields outside the key columns are indexed
// through the JSON document.
func (o *Output) CreateIndex(ctx context.Context, field string, ascending bool) error {
	if !model.ValidIdentifier(field) {
		return errors.NewInvalidConfig("invalid index field %q", field)
	}
	expr, ok := indexColumns[field]
	if !ok {
		expr = fmt.Sprintf(`json_extract(doc, '$.%s')`, field)
	}
	order := "ASC"
	if !ascending {
		order = "DESC"
	}
	_, err := o.db.ExecContext(ctx, fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_%s_idx ON %s (%s %s)`,
		o.records, field, o.records, expr, order))
	return errors.Wrapf(err, "create index on %s", field)
}

// ExistingIDs returns the ids stored under category
func (o *Output) ExistingIDs(ctx context.Context, category model.Category) (map[string]struct{}, error) {
	rows, err := o.db.QueryContext(ctx, fmt.Sprintf(`SELECT id FROM %s WHERE ne_class = ?`, o.records), string(category))
	if err != nil {
		return nil, errors.Wrap(err, "query existing ids")
	}
	defer func() { _ = rows.Close() }()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "scan id")
		}
		ids[id] = struct{}{}
	}
	return ids, errors.Wrap(rows.Err(), "iterate ids")
}

// Records iterates stored records ordered by id then category
func (o *Output) Records(ctx context.Context, category model.Category) iter.Seq2[*model.Record, error] {
	return func(yield func(*model.Record, error) bool) {
		query := fmt.Sprintf(`SELECT doc FROM %s`, o.records)
		var args []any
		if category != "" {
			query += ` WHERE ne_class = ?`
			args = append(args, string(category))
		}
		query += ` ORDER BY id, ne_class`

		rows, err := o.db.QueryContext(ctx, query, args...)
		if err != nil {
			yield(nil, errors.Wrap(err, "query records"))
			return
		}
		defer func() { _ = rows.Close() }()

		for rows.Next() {
			var doc string
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

// Ping checks the database is reachable
func (o *Output) Ping(ctx context.Context) error {
	return ping(ctx, o.db)
}

// Close closes the database
func (o *Output) Close() error {
	return o.db.Close()
}

func decodeRecord(doc string) (*model.Record, error) {
	var r model.Record
	if err := json.Unmarshal([]byte(doc), &r); err != nil {
		return nil, errors.Wrap(err, "decode record")
	}
	return &r, nil
}
