package util

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRobotsChecker_Policy(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write([]byte("User-agent: wikiner\nCrawl-delay: 2\nDisallow: /private\n\nUser-agent: *\nDisallow: /\n"))
	}))
	defer server.Close()

	checker := NewRobotsChecker(server.Client(), "wikiner/0.1 (+https://example.org)")
	ctx := context.Background()

	policy, err := checker.Policy(ctx, server.URL+"/sparql")
	require.NoError(t, err)
	assert.True(t, policy.Allowed)
	assert.Equal(t, 2*time.Second, policy.CrawlDelay)

	policy, err = checker.Policy(ctx, server.URL+"/private/sparql")
	require.NoError(t, err)
	assert.False(t, policy.Allowed)

	assert.Equal(t, int32(1), atomic.LoadInt32(&hits), "robots.txt is fetched once per host")

	other := NewRobotsChecker(server.Client(), "curl/8.0")
	policy, err = other.Policy(ctx, server.URL+"/sparql")
	require.NoError(t, err)
	assert.False(t, policy.Allowed)
}

func TestRobotsChecker_MissingRobots(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	checker := NewRobotsChecker(server.Client(), "wikiner/0.1")
	policy, err := checker.Policy(context.Background(), server.URL+"/sparql")
	require.NoError(t, err)
	assert.True(t, policy.Allowed)
	assert.Zero(t, policy.CrawlDelay)
}

func TestRobotsChecker_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	checker := NewRobotsChecker(nil, "wikiner/0.1")
	policy, err := checker.Policy(context.Background(), url+"/sparql")
	require.NoError(t, err)
	assert.True(t, policy.Allowed)

	_, err = checker.Policy(context.Background(), "not a url")
	assert.Error(t, err)
}

func TestNormalizeUserAgent(t *testing.T) {
	assert.Equal(t, "wikiner", NormalizeUserAgent("wikiner/0.1 (+https://github.com/ppiankov/wikiner)"))
	assert.Equal(t, "curl", NormalizeUserAgent("curl/8.0"))
	assert.Equal(t, "", NormalizeUserAgent(""))
}
