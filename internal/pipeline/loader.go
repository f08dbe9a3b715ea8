package pipeline

import (
	"bufio"
	"bytes"
	"compress/bzip2"
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"github.com/ppiankov/wikiner/internal/errors"
	"github.com/ppiankov/wikiner/internal/model"
	"github.com/ppiankov/wikiner/internal/store"
)

// DefaultLoadBatchSize is the number of items inserted per corpus write
const DefaultLoadBatchSize = 1000

// LoadStats summarises a dump load
type LoadStats struct {
	Lines    int
	Items    int
	Rejected int // lines that did not decode as an entity
}

// DumpLoader reads a Wikidata JSON dump into a corpus store
type DumpLoader struct {
	loader    store.Loader
	fetcher   *Fetcher
	batchSize int
	log       *zap.SugaredLogger
}

// NewDumpLoader creates a DumpLoader. fetcher may be nil when only local
// files are loaded.
func NewDumpLoader(loader store.Loader, fetcher *Fetcher, batchSize int, log *zap.SugaredLogger) *DumpLoader {
	if batchSize <= 0 {
		batchSize = DefaultLoadBatchSize
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &DumpLoader{loader: loader, fetcher: fetcher, batchSize: batchSize, log: log}
}

// Open opens a local or remote dump and decompresses it by extension
// (.bz2, .gz, .zst)
func (d *DumpLoader) Open(ctx context.Context, src string) (io.ReadCloser, error) {
	var raw io.ReadCloser
	if isRemote(src) {
		if d.fetcher == nil {
			return nil, errors.Newf("cannot download %s without a fetcher", src)
		}
		body, err := d.fetcher.OpenWithRetry(ctx, src)
		if err != nil {
			return nil, errors.Wrapf(err, "download %s", src)
		}
		raw = body
	} else {
		f, err := os.Open(src)
		if err != nil {
			return nil, errors.Wrap(err, "open dump")
		}
		raw = f
	}
	return decompress(raw, dumpName(src))
}

func decompress(raw io.ReadCloser, name string) (io.ReadCloser, error) {
	switch {
	case strings.HasSuffix(name, ".bz2"):
		return readCloser{Reader: bzip2.NewReader(raw), close: raw.Close}, nil
	case strings.HasSuffix(name, ".gz"):
		zr, err := gzip.NewReader(raw)
		if err != nil {
			_ = raw.Close()
			return nil, errors.Wrap(err, "open gzip stream")
		}
		return readCloser{Reader: zr, close: func() error {
			_ = zr.Close()
			return raw.Close()
		}}, nil
	case strings.HasSuffix(name, ".zst"):
		zr, err := zstd.NewReader(raw)
		if err != nil {
			_ = raw.Close()
			return nil, errors.Wrap(err, "open zstd stream")
		}
		return readCloser{Reader: zr, close: func() error {
			zr.Close()
			return raw.Close()
		}}, nil
	}
	return raw, nil
}

type readCloser struct {
	io.Reader
	close func() error
}

func (r readCloser) Close() error { return r.close() }

// LoadFile opens src and loads it
func (d *DumpLoader) LoadFile(ctx context.Context, src string) (LoadStats, error) {
	r, err := d.Open(ctx, src)
	if err != nil {
		return LoadStats{}, err
	}
	defer func() { _ = r.Close() }()
	return d.Load(ctx, r)
}

// Load reads one entity per line. The dump's enclosing brackets and
// trailing commas are tolerated. Undecodable lines are counted and
// skipped. Corpus indexes are created once every item is in.
func (d *DumpLoader) Load(ctx context.Context, r io.Reader) (LoadStats, error) {
	var stats LoadStats
	br := bufio.NewReaderSize(r, 1<<20)
	batch := make([]*model.Item, 0, d.batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := d.loader.InsertItems(ctx, batch)
		if err != nil {
			return errors.Wrapf(err, "insert items after line %d", stats.Lines)
		}
		stats.Items += n
		batch = batch[:0]
		d.log.Debugw("Items inserted", "items", stats.Items, "lines", stats.Lines)
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		line, readErr := br.ReadBytes('\n')
		if len(line) > 0 {
			stats.Lines++
			it, err := decodeLine(line)
			switch {
			case err != nil:
				stats.Rejected++
				d.log.Warnw("Skipping undecodable dump line", "line", stats.Lines, "error", err)
			case it != nil:
				batch = append(batch, it)
			}
			if len(batch) >= d.batchSize {
				if err := flush(); err != nil {
					return stats, err
				}
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return stats, errors.Wrapf(readErr, "read dump at line %d", stats.Lines)
		}
	}
	if err := flush(); err != nil {
		return stats, err
	}

	if err := d.loader.CreateCorpusIndexes(ctx); err != nil {
		return stats, errors.Wrap(err, "create corpus indexes")
	}
	d.log.Infow("Dump loaded", "lines", stats.Lines, "items", stats.Items, "rejected", stats.Rejected)
	return stats, nil
}

// decodeLine returns nil without error for the dump's framing lines
func decodeLine(line []byte) (*model.Item, error) {
	line = bytes.TrimSpace(line)
	line = bytes.TrimSuffix(line, []byte(","))
	if len(line) == 0 || bytes.Equal(line, []byte("[")) || bytes.Equal(line, []byte("]")) {
		return nil, nil
	}
	var it model.Item
	if err := json.Unmarshal(line, &it); err != nil {
		return nil, err
	}
	if it.ID == "" {
		return nil, errors.New("entity without id")
	}
	return &it, nil
}
