package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/ppiankov/wikiner/internal/closure"
	"github.com/ppiankov/wikiner/internal/errors"
	"github.com/ppiankov/wikiner/internal/model"
	"github.com/ppiankov/wikiner/internal/store"
)

// Corpus is an item corpus in SQLite. Items are stored as their JSON
// document with side tables for instance-of and subclass-of claims.
type Corpus struct {
	db    *sql.DB
	items string
	log   *zap.SugaredLogger
}

var (
	_ store.Corpus = (*Corpus)(nil)
	_ store.Loader = (*Corpus)(nil)
)

// NewCorpus wraps db, creating the corpus tables when missing
func NewCorpus(db *sql.DB, table string, log *zap.SugaredLogger) (*Corpus, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if err := applySchema(db, "corpus.sql", tableNames{Items: table}); err != nil {
		return nil, err
	}
	return &Corpus{db: db, items: table, log: log}, nil
}

// Find starts a streaming scan. Rows are read lazily, so the scan has no
// idle expiry and holds one connection until the cursor is closed.
func (c *Corpus) Find(ctx context.Context, filter store.Filter) (store.Cursor, error) {
	query := fmt.Sprintf(`SELECT i.doc FROM %s i WHERE i.type = ?`, c.items)
	args := []any{filter.Type}

	if filter.InstanceOf != nil {
		ids, err := classIDsJSON(filter.InstanceOf)
		if err != nil {
			return nil, err
		}
		query += fmt.Sprintf(` AND EXISTS (SELECT 1 FROM %s_instance_of x
			WHERE x.item_id = i.id AND x.class_id IN (SELECT value FROM json_each(?)))`, c.items)
		args = append(args, ids)
	}
	query += ` ORDER BY i.id`

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query corpus")
	}
	return &cursor{rows: rows}, nil
}

// LookupEdges answers one subclass-of hop from the loaded claims
func (c *Corpus) LookupEdges(ctx context.Context, ids []model.ClassID, dir closure.Direction) ([]model.ClassID, error) {
	raw, err := classIDsJSON(ids)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT DISTINCT class_id FROM %s_subclass_of
		WHERE parent_id IN (SELECT value FROM json_each(?))`, c.items)
	if dir == closure.Forward {
		query = fmt.Sprintf(`SELECT DISTINCT parent_id FROM %s_subclass_of
			WHERE class_id IN (SELECT value FROM json_each(?))`, c.items)
	}

	rows, err := c.db.QueryContext(ctx, query, raw)
	if err != nil {
		return nil, errors.Wrap(err, "query subclass edges")
	}
	defer func() { _ = rows.Close() }()

	var out []model.ClassID
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "scan subclass edge")
		}
		out = append(out, model.ClassID(id))
	}
	return out, errors.Wrap(rows.Err(), "iterate subclass edges")
}

// InsertItems upserts items and refreshes their claim side tables
func (c *Corpus) InsertItems(ctx context.Context, items []*model.Item) (int, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "begin insert")
	}
	defer func() { _ = tx.Rollback() }()

	upsert, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (id, type, doc) VALUES (?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET type = excluded.type, doc = excluded.doc`, c.items))
	if err != nil {
		return 0, errors.Wrap(err, "prepare item upsert")
	}
	defer func() { _ = upsert.Close() }()

	stmts := map[string]string{
		"clear_instance": fmt.Sprintf(`DELETE FROM %s_instance_of WHERE item_id = ?`, c.items),
		"instance":       fmt.Sprintf(`INSERT OR IGNORE INTO %s_instance_of (item_id, class_id) VALUES (?, ?)`, c.items),
		"clear_subclass": fmt.Sprintf(`DELETE FROM %s_subclass_of WHERE class_id = ?`, c.items),
		"subclass":       fmt.Sprintf(`INSERT OR IGNORE INTO %s_subclass_of (class_id, parent_id) VALUES (?, ?)`, c.items),
	}

	inserted := 0
	for _, it := range items {
		if it == nil || it.ID == "" {
			continue
		}
		doc, err := json.Marshal(it)
		if err != nil {
			return inserted, errors.Wrapf(err, "encode item %s", it.ID)
		}
		if _, err := upsert.ExecContext(ctx, it.ID, it.Type, string(doc)); err != nil {
			return inserted, errors.Wrapf(err, "insert item %s", it.ID)
		}

		if _, err := tx.ExecContext(ctx, stmts["clear_instance"], it.ID); err != nil {
			return inserted, errors.Wrapf(err, "clear instance-of for %s", it.ID)
		}
		for _, class := range it.InstanceOf() {
			if _, err := tx.ExecContext(ctx, stmts["instance"], it.ID, int64(class)); err != nil {
				return inserted, errors.Wrapf(err, "index instance-of for %s", it.ID)
			}
		}

		if num, ok := it.NumericID(); ok {
			if _, err := tx.ExecContext(ctx, stmts["clear_subclass"], int64(num)); err != nil {
				return inserted, errors.Wrapf(err, "clear subclass-of for %s", it.ID)
			}
			for _, parent := range it.SubclassOf() {
				if _, err := tx.ExecContext(ctx, stmts["subclass"], int64(num), int64(parent)); err != nil {
					return inserted, errors.Wrapf(err, "index subclass-of for %s", it.ID)
				}
			}
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "commit items")
	}
	return inserted, nil
}

// CreateCorpusIndexes builds the scan and lookup indexes
func (c *Corpus) CreateCorpusIndexes(ctx context.Context) error {
	return applySchema(c.db, "corpus_indexes.sql", tableNames{Items: c.items})
}

// Ping checks the database is reachable
func (c *Corpus) Ping(ctx context.Context) error {
	return ping(ctx, c.db)
}

// Close closes the database
func (c *Corpus) Close() error {
	return c.db.Close()
}

type cursor struct {
	rows *sql.Rows
	item *model.Item
	err  error
}

func (c *cursor) Next(ctx context.Context) bool {
	if c.err != nil {
		return false
	}
	if err := ctx.Err(); err != nil {
		c.err = err
		return false
	}
	if !c.rows.Next() {
		c.err = c.rows.Err()
		return false
	}

	var doc string
	if err := c.rows.Scan(&doc); err != nil {
		c.err = errors.Wrap(err, "scan item")
		return false
	}
	var it model.Item
	if err := json.Unmarshal([]byte(doc), &it); err != nil {
		c.err = errors.Wrap(err, "decode item")
		return false
	}
	c.item = &it
	return true
}

func (c *cursor) Item() *model.Item { return c.item }

func (c *cursor) Err() error { return c.err }

func (c *cursor) Close() error { return c.rows.Close() }
