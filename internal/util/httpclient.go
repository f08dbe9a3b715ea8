package util

import (
	"net/http"
	"net/url"
	"time"

	"github.com/ppiankov/wikiner/internal/errors"
)

// ClientOptions configures outbound HTTP for the SPARQL endpoint and dump
// downloads
type ClientOptions struct {
	Timeout      time.Duration // whole exchange; zero leaves it to the request context
	HTTPProxy    string
	HTTPSProxy   string
	UserAgent    string // sent when a request carries none
	MaxRedirects int    // zero keeps the net/http limit of 10
}

// NewHTTPClient builds a client for opts. Proxy URLs are parsed here so a
// typo fails at start-up instead of on the first request. Without explicit
// proxies the environment (HTTP_PROXY, HTTPS_PROXY, NO_PROXY) applies.
func NewHTTPClient(opts ClientOptions) (*http.Client, error) {
	proxy, err := proxyFunc(opts.HTTPProxy, opts.HTTPSProxy)
	if err != nil {
		return nil, err
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = proxy
	transport.MaxIdleConnsPerHost = 4

	client := &http.Client{
		Timeout:   opts.Timeout,
		Transport: &userAgentTransport{base: transport, agent: opts.UserAgent},
	}
	if opts.MaxRedirects > 0 {
		limit := opts.MaxRedirects
		client.CheckRedirect = func(_ *http.Request, via []*http.Request) error {
			if len(via) >= limit {
				return errors.Newf("stopped after %d redirects", limit)
			}
			return nil
		}
	}
	return client, nil
}

func proxyFunc(httpProxy, httpsProxy string) (func(*http.Request) (*url.URL, error), error) {
	if httpProxy == "" && httpsProxy == "" {
		return http.ProxyFromEnvironment, nil
	}
	plain, err := parseProxy("http_proxy", httpProxy)
	if err != nil {
		return nil, err
	}
	secure, err := parseProxy("https_proxy", httpsProxy)
	if err != nil {
		return nil, err
	}

	return func(req *http.Request) (*url.URL, error) {
		if req.URL.Scheme == "https" && secure != nil {
			return secure, nil
		}
		if plain != nil {
			return plain, nil
		}
		return http.ProxyFromEnvironment(req)
	}, nil
}

func parseProxy(name, raw string) (*url.URL, error) {
	if raw == "" {
		return nil, nil
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return nil, errors.NewInvalidConfig("%s %q is not a proxy URL", name, raw)
	}
	return u, nil
}

// userAgentTransport fills in the User-Agent header
type userAgentTransport struct {
	base  http.RoundTripper
	agent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.agent == "" || req.Header.Get("User-Agent") != "" {
		return t.base.RoundTrip(req)
	}
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.agent)
	return t.base.RoundTrip(req)
}
