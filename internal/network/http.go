package network

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/proxy"

	"github.com/akidev/akibot/internal/logger"
)

const LogProxyNotConfigured = "Proxy not configured, using direct connection"

// HTTPClientConfig tunes one http.Client. The three constructors below cover
// the traffic profiles the bot actually has; SetupHTTPClient turns a config
// into a client with optional proxying.
type HTTPClientConfig struct {
	ProxyURL              string
	Timeout               time.Duration
	DisableKeepAlives     bool
	MaxIdleConns          int
	IdleConnTimeout       time.Duration
	TLSHandshakeTimeout   time.Duration
	ExpectContinueTimeout time.Duration
	ForceAttemptHTTP2     bool
	DisableCompression    bool
}

// NewDefaultHTTPClientConfig is the general-purpose profile: generous
// timeout, pooled connections.
func NewDefaultHTTPClientConfig(proxyURL string) HTTPClientConfig {
	return HTTPClientConfig{
		ProxyURL:              proxyURL,
		Timeout:               3 * time.Minute,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
}

// NewStreamingHTTPClientConfig has no overall timeout, for long-lived
// streaming responses. Callers bound requests with a context instead.
func NewStreamingHTTPClientConfig(proxyURL string) HTTPClientConfig {
	return HTTPClientConfig{
		ProxyURL:              proxyURL,
		DisableKeepAlives:     true,
		MaxIdleConns:          100,
		TLSHandshakeTimeout:   30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
		DisableCompression:    true,
	}
}

// NewHTTPClientConfigForPages suits one-shot page downloads: short timeout,
// no connection reuse.
func NewHTTPClientConfigForPages(proxyURL string) HTTPClientConfig {
	cfg := NewDefaultHTTPClientConfig(proxyURL)
	cfg.Timeout = 30 * time.Second
	cfg.MaxIdleConns = 10
	cfg.IdleConnTimeout = 10 * time.Second
	cfg.DisableKeepAlives = true
	return cfg
}

func SetupHTTPClient(cfg HTTPClientConfig, log logger.Logger) *http.Client {
	transport := &http.Transport{
		ForceAttemptHTTP2:     cfg.ForceAttemptHTTP2,
		MaxIdleConns:          cfg.MaxIdleConns,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		DisableKeepAlives:     cfg.DisableKeepAlives,
		DisableCompression:    cfg.DisableCompression,
		TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,
		ExpectContinueTimeout: cfg.ExpectContinueTimeout,
	}

	if cfg.ProxyURL == "" {
		log.Info(LogProxyNotConfigured)
	} else if err := configureProxy(transport, cfg.ProxyURL, log); err != nil {
		log.WithError(err).Fatal("failed to configure proxy")
	}

	return &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
	}
}

func configureProxy(transport *http.Transport, proxyURL string, log logger.Logger) error {
	parsed, err := url.Parse(proxyURL)
	if err != nil {
		return fmt.Errorf("failed to parse proxy URL: %w", err)
	}

	switch parsed.Scheme {
	case "socks5":
		dialContext, err := createSOCKS5ProxyDialer(parsed, log)
		if err != nil {
			return fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		transport.DialContext = dialContext
	case "http", "https":
		transport.Proxy = http.ProxyURL(parsed)
		log.Info(fmt.Sprintf("Proxy configured: %s", parsed.Redacted()))
	default:
		return fmt.Errorf("unsupported proxy scheme: %s", parsed.Scheme)
	}
	return nil
}

func createSOCKS5ProxyDialer(proxyURL *url.URL, log logger.Logger) (func(ctx context.Context, network, addr string) (net.Conn, error), error) {
	direct := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	dialer, err := proxy.FromURL(proxyURL, direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create proxy dialer: %w", err)
	}
	log.Info(fmt.Sprintf("Proxy configured: %s", proxyURL.Redacted()))

	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return dialer.Dial(network, addr)
	}, nil
}
