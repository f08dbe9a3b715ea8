//go:build integration

package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/ppiankov/wikiner/internal/closure"
	"github.com/ppiankov/wikiner/internal/errors"
	"github.com/ppiankov/wikiner/internal/model"
	"github.com/ppiankov/wikiner/internal/store"
)

type PostgresStoreSuite struct {
	suite.Suite
	container testcontainers.Container
	pool      *pgxpool.Pool
	corpus    *Corpus
	output    *Output
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("wikiner"),
		tcpostgres.WithUsername("wikiner"),
		tcpostgres.WithPassword("wikiner"),
		tcpostgres.BasicWaitStrategies(),
	)
	s.Require().NoError(err)
	s.container = container

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	s.Require().NoError(err)

	s.pool, err = Connect(ctx, dsn)
	s.Require().NoError(err)

	s.corpus, err = NewCorpus(ctx, s.pool, "items", nil)
	s.Require().NoError(err)
	s.output, err = NewOutput(ctx, s.pool, "entities", nil)
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(context.Background())
	}
}

func (s *PostgresStoreSuite) SetupTest() {
	_, err := s.pool.Exec(context.Background(), `TRUNCATE entities, items_subclass_of, items_instance_of, items CASCADE`)
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) item(id string, instanceOf, subclassOf []int64) *model.Item {
	claim := func(prop string, ids []int64) []map[string]any {
		var out []map[string]any
		for _, n := range ids {
			out = append(out, map[string]any{
				"mainsnak": map[string]any{
					"snaktype": "value",
					"property": prop,
					"datavalue": map[string]any{
						"type":  "wikibase-entityid",
						"value": map[string]any{"numeric-id": n, "id": fmt.Sprintf("Q%d", n)},
					},
				},
			})
		}
		return out
	}
	raw, err := json.Marshal(map[string]any{
		"id":     id,
		"type":   "item",
		"claims": map[string]any{"P31": claim("P31", instanceOf), "P279": claim("P279", subclassOf)},
	})
	s.Require().NoError(err)
	var it model.Item
	s.Require().NoError(json.Unmarshal(raw, &it))
	return &it
}

func (s *PostgresStoreSuite) TestCorpusFindAndEdges() {
	ctx := context.Background()
	n, err := s.corpus.InsertItems(ctx, []*model.Item{
		s.item("Q42", []int64{5}, nil),
		s.item("Q64", []int64{515, 1549591}, nil),
		s.item("Q1549591", nil, []int64{515}),
	})
	s.Require().NoError(err)
	s.Equal(3, n)
	s.Require().NoError(s.corpus.CreateCorpusIndexes(ctx))

	cur, err := s.corpus.Find(ctx, store.Filter{Type: model.ItemType, InstanceOf: []model.ClassID{515}})
	s.Require().NoError(err)
	var ids []string
	for cur.Next(ctx) {
		ids = append(ids, cur.Item().ID)
	}
	s.Require().NoError(cur.Err())
	s.Require().NoError(cur.Close())
	s.Equal([]string{"Q64"}, ids)

	set, err := closure.NewResolver(s.corpus, nil).Resolve(ctx, []model.ClassID{515}, closure.Backward)
	s.Require().NoError(err)
	s.Equal([]model.ClassID{515, 1549591}, set.Sorted())
}

func (s *PostgresStoreSuite) TestOutputBulkInsertDuplicates() {
	ctx := context.Background()
	rec := func(id string, c model.Category) *model.Record { return model.NewRecord(id, c, "run-1") }

	res, err := s.output.BulkInsert(ctx, []*model.Record{
		rec("Q64", model.CategoryLocation),
		rec("Q64", model.CategoryOrganization),
		rec("Q64", model.CategoryLocation),
	})
	s.Require().NoError(err)
	s.Equal(2, res.Inserted)
	s.Require().Len(res.Errors, 1)
	s.Equal(2, res.Errors[0].Index)
	s.Equal(store.CodeDuplicateKey, res.Errors[0].Code)

	got, err := s.output.FindOne(ctx, "Q64", model.CategoryOrganization)
	s.Require().NoError(err)
	s.Equal(model.CategoryOrganization, got.Category)

	_, err = s.output.FindOne(ctx, "Q64", model.CategoryPerson)
	s.True(errors.IsNotFound(err))

	deleted, err := s.output.DeleteMany(ctx, model.CategoryLocation)
	s.Require().NoError(err)
	s.Equal(int64(1), deleted)

	s.Require().NoError(s.output.CreateIndex(ctx, store.IndexFieldID, true))
	s.Require().NoError(s.output.CreateIndex(ctx, store.IndexFieldCategory, true))

	var left []string
	for r, err := range s.output.Records(ctx, "") {
		s.Require().NoError(err)
		left = append(left, r.ID+"/"+string(r.Category))
	}
	s.Equal([]string{"Q64/ORG"}, left)
}
