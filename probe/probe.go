// Package probe inspects a remote URL before any download starts. It
// issues a HEAD request (falling back to a one-byte ranged GET for
// servers that reject HEAD) and extracts the metadata the add-download
// flow needs: suggested filename, size, validators and whether the
// server supports resumable transfers.
//
// The HTTP client is built from the network settings group, so probes
// go out with the same identity and proxy the engine will use.
package probe

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	xproxy "golang.org/x/net/proxy"

	"github.com/turdm/turc/safe"
	"github.com/turdm/turc/settings"
)

// Browser identities selectable through network.user_agent.
const (
	uaChrome  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	uaFirefox = "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0"
	uaEdge    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.0.0"
	uaSafari  = "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_2) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15"
)

const maxRedirects = 10

// UserAgent resolves a preset name from settings to a concrete
// User-Agent string. Unknown presets fall back to Chrome, as does
// "custom" with an empty custom string.
func UserAgent(preset, custom string) string {
	switch preset {
	case "chrome":
		return uaChrome
	case "firefox":
		return uaFirefox
	case "edge":
		return uaEdge
	case "safari":
		return uaSafari
	case "custom":
		if custom != "" {
			return custom
		}
	}
	return uaChrome
}

// Info is the metadata a probe extracts.
type Info struct {
	URL             string `json:"url"`
	FinalURL        string `json:"final_url,omitempty"`
	Filename        string `json:"filename"`
	Size            *int64 `json:"size,omitempty"`
	ContentType     string `json:"content_type,omitempty"`
	ETag            string `json:"etag,omitempty"`
	LastModified    string `json:"last_modified,omitempty"`
	ResumeSupported bool   `json:"resume_supported"`
}

// Client probes URLs. Safe for concurrent use.
type Client struct {
	http       *http.Client
	ua         string
	retries    int
	retryDelay time.Duration
	logger     *slog.Logger
}

// Option adjusts a Client beyond what the network settings carry.
type Option func(*Client)

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithHTTPClient swaps the underlying HTTP client, for tests.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New builds a Client from the network settings group.
func New(network settings.NetworkGroup, opts ...Option) (*Client, error) {
	connectTimeout := time.Duration(network.ConnectTimeoutSecs) * time.Second
	if connectTimeout <= 0 {
		connectTimeout = 30 * time.Second
	}
	readTimeout := time.Duration(network.ReadTimeoutSecs) * time.Second
	if readTimeout <= 0 {
		readTimeout = 30 * time.Second
	}

	dialer := &net.Dialer{Timeout: connectTimeout, KeepAlive: 60 * time.Second}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: readTimeout,
	}
	if network.AllowInsecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	if err := configureProxy(transport, dialer, network.Proxy); err != nil {
		return nil, err
	}

	retryDelay := time.Duration(network.RetryDelayMs) * time.Millisecond
	if retryDelay <= 0 {
		retryDelay = time.Second
	}

	c := &Client{
		http: &http.Client{
			Transport: transport,
			Timeout:   5 * time.Minute,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
		ua:         UserAgent(network.UserAgent, network.CustomUserAgent),
		retries:    max(network.RetryCount, 0),
		retryDelay: retryDelay,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func configureProxy(transport *http.Transport, dialer *net.Dialer, p settings.ProxyGroup) error {
	if !p.Enabled || p.Host == "" {
		return nil
	}
	addr := net.JoinHostPort(p.Host, strconv.Itoa(p.Port))

	switch p.Type {
	case "socks5":
		var auth *xproxy.Auth
		if p.AuthEnabled && p.Username != "" {
			auth = &xproxy.Auth{User: p.Username, Password: p.Password}
		}
		d, err := xproxy.SOCKS5("tcp", addr, auth, dialer)
		if err != nil {
			return fmt.Errorf("probe: socks5 proxy: %w", err)
		}
		cd, ok := d.(xproxy.ContextDialer)
		if !ok {
			return errors.New("probe: socks5 dialer lacks context support")
		}
		transport.DialContext = cd.DialContext
	case "http", "https", "":
		scheme := p.Type
		if scheme == "" {
			scheme = "http"
		}
		u := &url.URL{Scheme: scheme, Host: addr}
		if p.AuthEnabled && p.Username != "" {
			u.User = url.UserPassword(p.Username, p.Password)
		}
		transport.Proxy = http.ProxyURL(u)
	default:
		return fmt.Errorf("probe: unknown proxy type %q", p.Type)
	}
	return nil
}

// Probe fetches metadata for rawURL. Transport failures are retried per
// network.retry_count; HTTP error statuses are not, the server has
// already answered.
func (c *Client) Probe(ctx context.Context, rawURL string) (*Info, error) {
	if err := safe.ValidateDownloadURL(rawURL); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		info, err := c.probeOnce(ctx, rawURL)
		if err == nil {
			return info, nil
		}
		lastErr = err

		var se *statusError
		if errors.As(err, &se) || attempt >= c.retries || ctx.Err() != nil {
			break
		}
		c.logger.Debug("probe attempt failed", "url", rawURL, "attempt", attempt+1, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.retryDelay):
		}
	}
	return nil, lastErr
}

func (c *Client) probeOnce(ctx context.Context, rawURL string) (*Info, error) {
	resp, err := c.do(ctx, http.MethodHead, rawURL, "")
	switch {
	case err != nil:
		// Some servers drop HEAD at the TCP level; try the ranged GET
		// before giving up on the attempt.
		resp, err = c.do(ctx, http.MethodGet, rawURL, "bytes=0-0")
		if err != nil {
			return nil, fmt.Errorf("probe: %w", err)
		}
	case resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusNotImplemented:
		drain(resp.Body)
		resp, err = c.do(ctx, http.MethodGet, rawURL, "bytes=0-0")
		if err != nil {
			return nil, fmt.Errorf("probe: %w", err)
		}
	}
	defer drain(resp.Body)

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("probe: %w", &statusError{status: resp.Status})
	}
	return infoFromResponse(rawURL, resp), nil
}

func (c *Client) do(ctx context.Context, method, rawURL, rangeHeader string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.ua)
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}
	return c.http.Do(req)
}

type statusError struct {
	status string
}

func (e *statusError) Error() string {
	return "unexpected status " + e.status
}
