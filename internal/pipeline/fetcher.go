package pipeline

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/ppiankov/wikiner/internal/errors"
	"github.com/ppiankov/wikiner/internal/util"
)

// fetchSleepFunc is the sleep between download attempts; tests replace it
var fetchSleepFunc = time.Sleep

const fetchAttempts = 3

// Fetcher opens remote dump files
type Fetcher struct {
	httpClient *http.Client
}

// NewFetcher creates a Fetcher. A download may run for hours, so the
// client timeout is cleared and the context bounds it instead.
func NewFetcher(opts util.ClientOptions) (*Fetcher, error) {
	opts.Timeout = 0
	if opts.MaxRedirects == 0 {
		opts.MaxRedirects = 3
	}
	client, err := util.NewHTTPClient(opts)
	if err != nil {
		return nil, err
	}
	return &Fetcher{httpClient: client}, nil
}

// Open starts a download and returns the response body
func (f *Fetcher) Open(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, errors.MarkTransient(errors.Wrap(err, "fetch"))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_ = resp.Body.Close()
		err := errors.Newf("unexpected status: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			err = errors.MarkTransient(err)
		}
		return nil, err
	}
	return resp.Body, nil
}

// OpenWithRetry retries Open on network errors, 429 and 5xx
func (f *Fetcher) OpenWithRetry(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	var lastErr error
	for attempt := 0; attempt < fetchAttempts; attempt++ {
		if attempt > 0 {
			fetchSleepFunc(time.Duration(1<<uint(attempt)) * time.Second)
		}
		body, err := f.Open(ctx, rawURL)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !isRetryableFetchError(err) || ctx.Err() != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func isRetryableFetchError(err error) bool {
	return errors.IsTransient(err)
}

// isRemote reports whether src names an http(s) resource
func isRemote(src string) bool {
	return strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://")
}

// dumpName returns the file name of a local path or URL, used to pick the
// decompressor
func dumpName(src string) string {
	if isRemote(src) {
		parsed, err := url.Parse(src)
		if err == nil {
			src = parsed.Path
		}
	}
	return path.Base(strings.TrimRight(src, "/"))
}
