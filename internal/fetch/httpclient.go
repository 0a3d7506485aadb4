package fetch

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"net"
	nethttp "net/http"
	"net/url"
	"strings"

	ntlmssp "github.com/Azure/go-ntlmssp"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/net/http/httpproxy"

	"github.com/mongohaul/mongohaul/internal/config"
	"github.com/mongohaul/mongohaul/internal/constants"
)

// NewHTTPClient builds the base HTTP client with the configured proxy mode.
// Every remote fetch, including the S3 and Azure SDK calls, goes through this
// client so proxy settings apply uniformly.
func NewHTTPClient(cfg *config.Config) (*nethttp.Client, error) {
	transport := &nethttp.Transport{
		DialContext: (&net.Dialer{
			Timeout:   constants.HTTPDialTimeout,
			KeepAlive: constants.HTTPDialKeepAlive,
		}).DialContext,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     constants.HTTPIdleConnTimeout,
		TLSHandshakeTimeout: constants.HTTPTLSHandshakeTimeout,
	}

	mode := strings.ToLower(cfg.HTTP.ProxyMode)
	switch mode {
	case "no-proxy", "":
		transport.Proxy = nil

	case "system":
		transport.Proxy = nethttp.ProxyFromEnvironment

	case "basic", "ntlm":
		if cfg.HTTP.ProxyHost == "" {
			// Incomplete saved config; fall back to direct so the tool still
			// starts and the user can fix the proxy settings.
			log.Printf("[WARN] proxy mode %s but no host configured, using direct connections", mode)
			transport.Proxy = nil
			break
		}
		proxyURL := buildProxyURL(cfg.HTTP)
		transport.Proxy = proxyFuncWithBypass(proxyURL, cfg.HTTP.NoProxy)

		if mode == "ntlm" {
			// NTLM negotiates per connection; the negotiator wraps the
			// transport rather than replacing it.
			return &nethttp.Client{
				Transport: ntlmssp.Negotiator{RoundTripper: transport},
			}, nil
		}

	default:
		return nil, fmt.Errorf("unsupported proxy mode: %s", cfg.HTTP.ProxyMode)
	}

	// No overall timeout: archives can be large, callers bound requests with
	// contexts instead.
	return &nethttp.Client{Transport: transport}, nil
}

// NewRetryingClient wraps the base client with retryablehttp backoff for
// archive GETs and PUTs.
func NewRetryingClient(cfg *config.Config) (*retryablehttp.Client, error) {
	base, err := NewHTTPClient(cfg)
	if err != nil {
		return nil, err
	}
	rc := retryablehttp.NewClient()
	rc.HTTPClient = base
	rc.RetryMax = constants.FetchRetryMax
	rc.RetryWaitMin = constants.FetchRetryWaitMin
	rc.RetryWaitMax = constants.FetchRetryWaitMax
	rc.Logger = nil
	return rc, nil
}

// buildProxyURL constructs a proxy URL from the http config section.
func buildProxyURL(cfg config.HTTPConfig) *url.URL {
	port := cfg.ProxyPort
	if port == 0 {
		port = 8080
	}
	proxyURL := &url.URL{
		Scheme: "http",
		Host:   fmt.Sprintf("%s:%d", cfg.ProxyHost, port),
	}
	// Only embed credentials when both parts exist; an empty password in the
	// URL confuses some proxies.
	if cfg.ProxyUser != "" && cfg.ProxyPassword != "" {
		proxyURL.User = url.UserPassword(cfg.ProxyUser, cfg.ProxyPassword)
	}
	return proxyURL
}

// proxyFuncWithBypass returns a proxy function that respects the no_proxy
// bypass list. With an empty list it behaves identically to http.ProxyURL;
// otherwise golang.org/x/net/http/httpproxy matches hosts and CIDRs.
func proxyFuncWithBypass(proxyURL *url.URL, noProxy string) func(*nethttp.Request) (*url.URL, error) {
	if noProxy == "" {
		return nethttp.ProxyURL(proxyURL)
	}
	cfg := httpproxy.Config{
		HTTPProxy:  proxyURL.String(),
		HTTPSProxy: proxyURL.String(),
		NoProxy:    noProxy,
	}
	proxyFunc := cfg.ProxyFunc()
	return func(req *nethttp.Request) (*url.URL, error) {
		return proxyFunc(req.URL)
	}
}

// retryableRequest builds a GET request for the retrying client.
func retryableRequest(ctx context.Context, url string) (*retryablehttp.Request, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, nethttp.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", url, err)
	}
	return req, nil
}

// NeedsProxyPassword reports whether the proxy configuration requires a
// password that has not been provided, so the CLI can prompt before dialing.
func NeedsProxyPassword(cfg *config.Config) bool {
	mode := strings.ToLower(cfg.HTTP.ProxyMode)
	if mode != "basic" && mode != "ntlm" {
		return false
	}
	return cfg.HTTP.ProxyUser != "" && cfg.HTTP.ProxyPassword == ""
}
