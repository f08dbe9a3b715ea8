package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/ppiankov/wikiner/internal/closure"
	"github.com/ppiankov/wikiner/internal/errors"
	"github.com/ppiankov/wikiner/internal/model"
	"github.com/ppiankov/wikiner/internal/store"
)

// Corpus is an item corpus in PostgreSQL
type Corpus struct {
	pool       *pgxpool.Pool
	name       string
	items      string
	instanceOf string
	subclassOf string
	log        *zap.SugaredLogger
}

var (
	_ store.Corpus = (*Corpus)(nil)
	_ store.Loader = (*Corpus)(nil)
)

// NewCorpus wraps pool, creating the corpus tables when missing
func NewCorpus(ctx context.Context, pool *pgxpool.Pool, table string, log *zap.SugaredLogger) (*Corpus, error) {
	items, err := ident(table)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	c := &Corpus{
		pool:       pool,
		name:       table,
		items:      items,
		instanceOf: suffixed(table, "_instance_of"),
		subclassOf: suffixed(table, "_subclass_of"),
		log:        log,
	}

	err = execAll(ctx, pool,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id   TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			doc  JSONB NOT NULL
		)`, c.items),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			item_id  TEXT NOT NULL REFERENCES %s (id) ON DELETE CASCADE,
			class_id BIGINT NOT NULL,
			PRIMARY KEY (item_id, class_id)
		)`, c.instanceOf, c.items),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			class_id  BIGINT NOT NULL,
			parent_id BIGINT NOT NULL,
			PRIMARY KEY (class_id, parent_id)
		)`, c.subclassOf),
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Find starts a streaming scan over one pooled connection
func (c *Corpus) Find(ctx context.Context, filter store.Filter) (store.Cursor, error) {
	query := fmt.Sprintf(`SELECT i.doc FROM %s i WHERE i.type = $1`, c.items)
	args := []any{filter.Type}
	if filter.InstanceOf != nil {
		query += fmt.Sprintf(` AND EXISTS (SELECT 1 FROM %s x WHERE x.item_id = i.id AND x.class_id = ANY($2))`, c.instanceOf)
		args = append(args, int64s(filter.InstanceOf))
	}
	query += ` ORDER BY i.id`

	rows, err := c.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, withSQLState(errors.Wrap(err, "query corpus"), err)
	}
	return &cursor{rows: rows}, nil
}

// LookupEdges answers one subclass-of hop from the loaded claims
func (c *Corpus) LookupEdges(ctx context.Context, ids []model.ClassID, dir closure.Direction) ([]model.ClassID, error) {
	query := fmt.Sprintf(`SELECT DISTINCT class_id FROM %s WHERE parent_id = ANY($1)`, c.subclassOf)
	if dir == closure.Forward {
		query = fmt.Sprintf(`SELECT DISTINCT parent_id FROM %s WHERE class_id = ANY($1)`, c.subclassOf)
	}

	rows, err := c.pool.Query(ctx, query, int64s(ids))
	if err != nil {
		return nil, withSQLState(errors.Wrap(err, "query subclass edges"), err)
	}
	related, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, errors.Wrap(err, "collect subclass edges")
	}

	out := make([]model.ClassID, len(related))
	for i, id := range related {
		out[i] = model.ClassID(id)
	}
	return out, nil
}

// InsertItems upserts items and refreshes their claim side tables in one transaction
func (c *Corpus) InsertItems(ctx context.Context, items []*model.Item) (int, error) {
	batch := &pgx.Batch{}
	inserted := 0
	for _, it := range items {
		if it == nil || it.ID == "" {
			continue
		}
		doc, err := json.Marshal(it)
		if err != nil {
			return 0, errors.Wrapf(err, "encode item %s", it.ID)
		}
		batch.Queue(fmt.Sprintf(`INSERT INTO %s (id, type, doc) VALUES ($1, $2, $3)
			ON CONFLICT (id) DO UPDATE SET type = EXCLUDED.type, doc = EXCLUDED.doc`, c.items),
			it.ID, it.Type, doc)
		batch.Queue(fmt.Sprintf(`DELETE FROM %s WHERE item_id = $1`, c.instanceOf), it.ID)
		if classes := it.InstanceOf(); len(classes) > 0 {
			batch.Queue(fmt.Sprintf(`INSERT INTO %s (item_id, class_id)
				SELECT $1, unnest($2::bigint[]) ON CONFLICT DO NOTHING`, c.instanceOf),
				it.ID, int64s(classes))
		}
		if num, ok := it.NumericID(); ok {
			batch.Queue(fmt.Sprintf(`DELETE FROM %s WHERE class_id = $1`, c.subclassOf), int64(num))
			if parents := it.SubclassOf(); len(parents) > 0 {
				batch.Queue(fmt.Sprintf(`INSERT INTO %s (class_id, parent_id)
					SELECT $1, unnest($2::bigint[]) ON CONFLICT DO NOTHING`, c.subclassOf),
					int64(num), int64s(parents))
			}
		}
		inserted++
	}
	if inserted == 0 {
		return 0, nil
	}

	err := pgx.BeginFunc(ctx, c.pool, func(tx pgx.Tx) error {
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return 0, withSQLState(errors.Wrap(err, "insert items"), err)
	}
	return inserted, nil
}

// CreateCorpusIndexes builds the scan and lookup indexes
func (c *Corpus) CreateCorpusIndexes(ctx context.Context) error {
	return execAll(ctx, c.pool,
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (type)`, indexName(c.name, "type"), c.items),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (class_id, item_id)`, indexName(c.name, "instance_of_class"), c.instanceOf),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (parent_id, class_id)`, indexName(c.name, "subclass_of_parent"), c.subclassOf),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s ((doc #>> '{sitelinks,enwiki,title}'))`, indexName(c.name, "en_sitelink"), c.items),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s ((doc #>> '{sitelinks,dewiki,title}'))`, indexName(c.name, "de_sitelink"), c.items),
	)
}

// Ping checks the server is reachable
func (c *Corpus) Ping(ctx context.Context) error {
	return ping(ctx, c.pool)
}

// Close releases the pool
func (c *Corpus) Close() error {
	c.pool.Close()
	return nil
}

type cursor struct {
	rows pgx.Rows
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
	var doc []byte
	if err := c.rows.Scan(&doc); err != nil {
		c.err = errors.Wrap(err, "scan item")
		return false
	}
	var it model.Item
	if err := json.Unmarshal(doc, &it); err != nil {
		c.err = errors.Wrap(err, "decode item")
		return false
	}
	c.item = &it
	return true
}

func (c *cursor) Item() *model.Item { return c.item }

func (c *cursor) Err() error { return c.err }

func (c *cursor) Close() error {
	c.rows.Close()
	return nil
}
