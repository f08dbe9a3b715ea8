package util

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"

	"github.com/ppiankov/wikiner/internal/errors"
	"github.com/ppiankov/wikiner/internal/logger"
)

// RobotsPolicy is what a host's robots.txt says about one endpoint path
type RobotsPolicy struct {
	Allowed    bool
	CrawlDelay time.Duration
}

// RobotsChecker reads robots.txt once per host and answers policy queries
type RobotsChecker struct {
	cache      map[string]*robotstxt.RobotsData
	mu         sync.RWMutex
	httpClient *http.Client
	userAgent  string
	agent      string
}

// NewRobotsChecker creates a new robots.txt checker
func NewRobotsChecker(client *http.Client, userAgent string) *RobotsChecker {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &RobotsChecker{
		cache:      make(map[string]*robotstxt.RobotsData),
		httpClient: client,
		userAgent:  userAgent,
		agent:      NormalizeUserAgent(userAgent),
	}
}

// Policy returns the robots policy for rawURL. An unreachable robots.txt
// allows everything with no delay.
func (r *RobotsChecker) Policy(ctx context.Context, rawURL string) (RobotsPolicy, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return RobotsPolicy{}, errors.Wrap(err, "parse URL")
	}
	if parsed.Host == "" {
		return RobotsPolicy{}, errors.Newf("URL %q has no host", rawURL)
	}

	data, err := r.robotsData(ctx, parsed)
	if err != nil {
		logger.Logger.Warnw("robots.txt unavailable, assuming allowed", "host", parsed.Host, "error", err)
		return RobotsPolicy{Allowed: true}, nil
	}

	policy := RobotsPolicy{Allowed: data.TestAgent(parsed.Path, r.agent)}
	if group := data.FindGroup(r.agent); group != nil {
		policy.CrawlDelay = group.CrawlDelay
	}
	return policy, nil
}

func (r *RobotsChecker) robotsData(ctx context.Context, endpoint *url.URL) (*robotstxt.RobotsData, error) {
	r.mu.RLock()
	data, exists := r.cache[endpoint.Host]
	r.mu.RUnlock()

	if exists {
		return data, nil
	}

	robotsURL := fmt.Sprintf("%s://%s/robots.txt", endpoint.Scheme, endpoint.Host)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetch robots.txt")
	}
	defer func() { _ = resp.Body.Close() }()

	data, err = robotstxt.FromResponse(resp)
	if err != nil {
		return nil, errors.Wrap(err, "parse robots.txt")
	}

	r.mu.Lock()
	r.cache[endpoint.Host] = data
	r.mu.Unlock()

	return data, nil
}

// NormalizeUserAgent reduces a user agent string to its product token,
// which is what robots.txt groups match against.
func NormalizeUserAgent(ua string) string {
	parts := strings.Fields(ua)
	if len(parts) > 0 {
		return strings.Split(parts[0], "/")[0]
	}
	return ua
}
