package edges

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/wikiner/internal/closure"
	"github.com/ppiankov/wikiner/internal/errors"
	"github.com/ppiankov/wikiner/internal/model"
	"github.com/ppiankov/wikiner/internal/util"
	"github.com/ppiankov/wikiner/internal/worker"
)

const maxResponseBytes = 64 << 20

// SPARQLSource looks up subclass-of edges on a SPARQL endpoint
type SPARQLSource struct {
	endpoint   string
	property   string
	userAgent  string
	batchSize  int
	httpClient *http.Client
	limiter    *worker.Limiter
	robots     *util.RobotsChecker
	log        *zap.SugaredLogger

	maxAttempts int
	backoff     time.Duration
	chunk       closure.EdgeSource
}

// SPARQLOption configures a SPARQLSource
type SPARQLOption func(*SPARQLSource)

// WithLimiter rate-limits requests through l
func WithLimiter(l *worker.Limiter) SPARQLOption {
	return func(s *SPARQLSource) { s.limiter = l }
}

// WithRobots consults robots.txt before the first request and adopts its crawl delay
func WithRobots(r *util.RobotsChecker) SPARQLOption {
	return func(s *SPARQLSource) { s.robots = r }
}

// WithRetry retries each chunk request on transient failure. maxAttempts
// counts the first try and backoff is the first delay.
func WithRetry(maxAttempts int, backoff time.Duration) SPARQLOption {
	return func(s *SPARQLSource) {
		s.maxAttempts = maxAttempts
		s.backoff = backoff
	}
}

// WithLogger sets the logger
func WithLogger(log *zap.SugaredLogger) SPARQLOption {
	return func(s *SPARQLSource) { s.log = log }
}

// NewSPARQLSource creates a source for cfg
func NewSPARQLSource(cfg model.EdgesConfig, client *http.Client, opts ...SPARQLOption) *SPARQLSource {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	property := cfg.Property
	if property == "" {
		property = model.PropSubclassOf
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 200
	}
	s := &SPARQLSource{
		endpoint:   cfg.Endpoint,
		property:   property,
		userAgent:  cfg.UserAgent,
		batchSize:  batchSize,
		httpClient: client,
		log:        zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.chunk = closure.EdgeSourceFunc(s.lookupChunk)
	if s.maxAttempts > 1 {
		s.chunk = closure.NewRetryingSource(s.chunk, s.maxAttempts, s.log, closure.WithBackoff(s.backoff))
	}
	return s
}

// Check verifies the endpoint may be queried and applies any robots crawl delay
func (s *SPARQLSource) Check(ctx context.Context) error {
	if s.robots == nil {
		return nil
	}
	policy, err := s.robots.Policy(ctx, s.endpoint)
	if err != nil {
		return err
	}
	if !policy.Allowed {
		return errors.Newf("robots.txt disallows %s for this user agent", s.endpoint)
	}
	if policy.CrawlDelay > 0 && s.limiter != nil {
		parsed, err := url.Parse(s.endpoint)
		if err == nil {
			s.limiter.SetCrawlDelay(parsed.Host, policy.CrawlDelay)
			s.log.Infow("applying robots crawl delay", "host", parsed.Host, "delay", policy.CrawlDelay)
		}
	}
	return nil
}

// LookupEdges queries the endpoint in chunks of the configured batch size.
// Retries apply per chunk, so a failed chunk never resends earlier ones.
func (s *SPARQLSource) LookupEdges(ctx context.Context, ids []model.ClassID, dir closure.Direction) ([]model.ClassID, error) {
	var out []model.ClassID
	for start := 0; start < len(ids); start += s.batchSize {
		end := min(start+s.batchSize, len(ids))
		related, err := s.chunk.LookupEdges(ctx, ids[start:end], dir)
		if err != nil {
			return nil, err
		}
		out = append(out, related...)
	}
	return out, nil
}

func (s *SPARQLSource) lookupChunk(ctx context.Context, ids []model.ClassID, dir closure.Direction) ([]model.ClassID, error) {
	return s.query(ctx, BuildQuery(ids, s.property, dir))
}

// BuildQuery renders the one-hop query for ids
func BuildQuery(ids []model.ClassID, property string, dir closure.Direction) string {
	var values strings.Builder
	for i, id := range ids {
		if i > 0 {
			values.WriteByte(' ')
		}
		values.WriteString("wd:")
		values.WriteString(id.String())
	}

	pattern := fmt.Sprintf("?item wdt:%s ?class .", property)
	if dir == closure.Forward {
		pattern = fmt.Sprintf("?class wdt:%s ?item .", property)
	}
	return fmt.Sprintf("SELECT DISTINCT ?item WHERE { VALUES ?class { %s } %s }", values.String(), pattern)
}

type sparqlResponse struct {
	Results struct {
		Bindings []map[string]struct {
			Type  string `json:"type"`
			Value string `json:"value"`
		} `json:"bindings"`
	} `json:"results"`
}

func (s *SPARQLSource) query(ctx context.Context, query string) ([]model.ClassID, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx, s.endpoint); err != nil {
			return nil, errors.Wrap(err, "rate limit")
		}
	}

	form := url.Values{"query": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/sparql-results+json")
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.Wrap(err, "query endpoint")
		}
		return nil, errors.MarkTransient(errors.Wrap(err, "query endpoint"))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := errors.Newf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			if retry := resp.Header.Get("Retry-After"); retry != "" {
				err = errors.WithDetailf(err, "retry-after: %s", retry)
			}
			return nil, errors.MarkTransient(err)
		}
		return nil, err
	}

	var parsed sparqlResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&parsed); err != nil {
		return nil, errors.MarkTransient(errors.Wrap(err, "decode results"))
	}

	out := make([]model.ClassID, 0, len(parsed.Results.Bindings))
	for _, binding := range parsed.Results.Bindings {
		item, ok := binding["item"]
		if !ok || item.Type != "uri" {
			continue
		}
		id, err := model.ParseClassID(item.Value[strings.LastIndex(item.Value, "/")+1:])
		if err != nil {
			continue
		}
		out = append(out, id)
	}
	s.log.Debugw("sparql lookup", "results", len(out))
	return out, nil
}
