package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/ppiankov/wikiner/internal/errors"
	"github.com/ppiankov/wikiner/internal/model"
	"github.com/ppiankov/wikiner/internal/store"
	"github.com/ppiankov/wikiner/internal/store/postgres"
	"github.com/ppiankov/wikiner/internal/store/sqlite"
)

// Stores bundles the corpus and output backends of one configuration
type Stores struct {
	Corpus store.Corpus
	Loader store.Loader
	Output store.Output
}

type corpusLoader interface {
	store.Corpus
	store.Loader
}

// OpenStores opens the configured corpus and output stores. Either store
// failing to open is a connectivity error.
func OpenStores(ctx context.Context, cfg *model.Config, log *zap.SugaredLogger) (*Stores, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	db := cfg.Database

	var (
		corpus corpusLoader
		output store.Output
		err    error
	)
	switch db.Driver {
	case "sqlite":
		corpus, output, err = openSQLite(db, log)
	case "postgres":
		corpus, output, err = openPostgres(ctx, db, log)
	default:
		return nil, errors.NewInvalidConfig("unknown database.driver %q", db.Driver)
	}
	if err != nil {
		return nil, errors.Mark(err, errors.ErrConnectivity)
	}
	return &Stores{Corpus: corpus, Loader: corpus, Output: output}, nil
}

func openSQLite(db model.DatabaseConfig, log *zap.SugaredLogger) (corpusLoader, store.Output, error) {
	cdb, err := sqlite.Open(db.SourceDB, log)
	if err != nil {
		return nil, nil, errors.Wrap(err, "open corpus")
	}
	corpus, err := sqlite.NewCorpus(cdb, db.SourceCollection, log)
	if err != nil {
		_ = cdb.Close()
		return nil, nil, err
	}

	odb, err := sqlite.Open(db.DestDB, log)
	if err != nil {
		_ = corpus.Close()
		return nil, nil, errors.Wrap(err, "open output")
	}
	output, err := sqlite.NewOutput(odb, db.DestCollection, log)
	if err != nil {
		_ = corpus.Close()
		_ = odb.Close()
		return nil, nil, err
	}
	return corpus, output, nil
}

func openPostgres(ctx context.Context, db model.DatabaseConfig, log *zap.SugaredLogger) (corpusLoader, store.Output, error) {
	cpool, err := postgres.Connect(ctx, postgres.ConnString(db, db.SourceDB))
	if err != nil {
		return nil, nil, errors.Wrap(err, "connect corpus")
	}
	corpus, err := postgres.NewCorpus(ctx, cpool, db.SourceCollection, log)
	if err != nil {
		cpool.Close()
		return nil, nil, err
	}

	opool, err := postgres.Connect(ctx, postgres.ConnString(db, db.DestDB))
	if err != nil {
		_ = corpus.Close()
		return nil, nil, errors.Wrap(err, "connect output")
	}
	output, err := postgres.NewOutput(ctx, opool, db.DestCollection, log)
	if err != nil {
		_ = corpus.Close()
		opool.Close()
		return nil, nil, err
	}
	return corpus, output, nil
}

// Close closes both stores
func (s *Stores) Close() error {
	return errors.Join(s.Corpus.Close(), s.Output.Close())
}
