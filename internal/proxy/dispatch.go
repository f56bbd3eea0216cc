package proxy

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	xproxy "golang.org/x/net/proxy"

	"beopsuny/internal/config"
)

const defaultUserAgent = "Mozilla/5.0 (compatible; beopsuny/1.0; +https://open.law.go.kr)"

// Residential upstream defaults. The country qualifier keeps the exit IP
// in Korea; the check is a literal substring match, so a username that
// already carries the qualifier is left untouched.
const (
	upstreamCountryQualifier = "-country-kr"
	defaultUpstreamHost      = "gate.smartproxy.com"
	defaultUpstreamPort      = 7000
)

const defaultFetchTimeout = 30 * time.Second

// FetchOptions tune a single fetch. Headers overlay the default
// user-agent; ForceProxy skips the geolocation decision.
type FetchOptions struct {
	Timeout    time.Duration
	Headers    map[string]string
	ForceProxy bool
}

// Client decides per call whether to fetch directly or through the
// configured proxy backend. The only cached inputs are the geo resolution
// and the parsed settings; the decision tree itself is stateless.
type Client struct {
	geo *GeoResolver

	// resolveConfig is swappable in tests.
	resolveConfig func() Config
}

func NewClient(geo *GeoResolver) *Client {
	if geo == nil {
		geo = NewGeoResolver(nil)
	}
	return &Client{geo: geo, resolveConfig: ResolveConfig}
}

// Geo exposes the resolver backing this client.
func (c *Client) Geo() *GeoResolver {
	return c.geo
}

// Fetch performs a GET of target and returns the response body. Requests
// from a Korean egress point go out directly; everything else is routed
// through the resolved proxy backend. There is no fallback across
// backends: a failing backend fails the call.
func (c *Client) Fetch(ctx context.Context, target string, opts FetchOptions) (string, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout()
	}

	if !opts.ForceProxy && !c.geo.IsOverseas(ctx) {
		log.Debug("Fetching directly", "url", target)
		return c.do(ctx, "direct", target, nil, timeout, opts.Headers)
	}

	cfg := c.resolveConfig()
	log.Debug("Fetching via proxy", "kind", cfg.Kind, "url", target)

	switch cfg.Kind {
	case KindRelay:
		return c.fetchRelay(ctx, cfg, target, timeout, opts.Headers)
	case KindUpstream:
		return c.fetchUpstream(ctx, cfg, target, timeout, opts.Headers)
	case KindGeneric:
		return c.fetchGeneric(ctx, cfg, target, timeout, opts.Headers)
	default:
		return "", &ConfigError{Reason: fmt.Sprintf("unsupported proxy kind %q", cfg.Kind)}
	}
}

// fetchRelay asks the relay endpoint to fetch the target on our behalf.
// The target travels percent-encoded in the `url` query parameter, never
// in the path.
func (c *Client) fetchRelay(ctx context.Context, cfg Config, target string, timeout time.Duration, headers map[string]string) (string, error) {
	if strings.TrimSpace(cfg.RelayURL) == "" {
		return "", &ConfigError{Reason: "relay proxy requires a relay URL (set PROXY_URL or proxy.url in settings.yaml)"}
	}

	relay, err := url.Parse(cfg.RelayURL)
	if err != nil {
		return "", &ConfigError{Reason: fmt.Sprintf("invalid relay URL %q: %v", cfg.RelayURL, err)}
	}

	q := relay.Query()
	q.Set("url", target)
	relay.RawQuery = q.Encode()

	return c.do(ctx, "relay", relay.String(), nil, timeout, headers)
}

// fetchUpstream routes the original target through the credentialed
// residential proxy.
func (c *Client) fetchUpstream(ctx context.Context, cfg Config, target string, timeout time.Duration, headers map[string]string) (string, error) {
	if cfg.Username == "" || cfg.Password == "" {
		return "", &ConfigError{Reason: "upstream proxy requires credentials (set UPSTREAM_USERNAME and UPSTREAM_PASSWORD)"}
	}

	username := cfg.Username
	if !strings.Contains(username, upstreamCountryQualifier) {
		username += upstreamCountryQualifier
	}

	host := cfg.UpstreamHost
	if host == "" {
		host = defaultUpstreamHost
	}
	port := cfg.UpstreamPort
	if port == 0 {
		port = defaultUpstreamPort
	}

	proxyURL := &url.URL{
		Scheme: "http",
		User:   url.UserPassword(username, cfg.Password),
		Host:   fmt.Sprintf("%s:%d", host, port),
	}

	transport := baseTransport(timeout)
	transport.Proxy = http.ProxyURL(proxyURL)

	return c.do(ctx, "upstream", target, transport, timeout, headers)
}

// fetchGeneric routes the original target through a plain forward proxy.
// socks5 URLs get a SOCKS dialer, anything else the standard Proxy hook.
func (c *Client) fetchGeneric(ctx context.Context, cfg Config, target string, timeout time.Duration, headers map[string]string) (string, error) {
	if strings.TrimSpace(cfg.GenericURL) == "" {
		return "", &ConfigError{Reason: "generic proxy requires a proxy URL (set PROXY_URL or proxy.url in settings.yaml)"}
	}

	proxyURL, err := url.Parse(cfg.GenericURL)
	if err != nil {
		return "", &ConfigError{Reason: fmt.Sprintf("invalid proxy URL %q: %v", cfg.GenericURL, err)}
	}

	transport := baseTransport(timeout)

	switch proxyURL.Scheme {
	case "socks5", "socks5h":
		var auth *xproxy.Auth
		if user := proxyURL.User; user != nil {
			password, _ := user.Password()
			auth = &xproxy.Auth{User: user.Username(), Password: password}
		}

		dialer, err := xproxy.SOCKS5("tcp", proxyURL.Host, auth, &net.Dialer{Timeout: timeout})
		if err != nil {
			return "", &ConfigError{Reason: fmt.Sprintf("invalid socks5 proxy %q: %v", cfg.GenericURL, err)}
		}
		transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialer.Dial(network, addr)
		}
	default:
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	return c.do(ctx, "generic", target, transport, timeout, headers)
}

func (c *Client) do(ctx context.Context, backend, target string, transport *http.Transport, timeout time.Duration, headers map[string]string) (string, error) {
	if transport == nil {
		transport = baseTransport(timeout)
	}

	client := &http.Client{Transport: transport, Timeout: timeout}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", &NetworkError{Backend: backend, Err: err}
	}

	req.Header.Set("User-Agent", defaultUserAgent)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", classify(backend, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return "", &HTTPError{Backend: backend, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", classify(backend, err)
	}

	return string(body), nil
}

func baseTransport(timeout time.Duration) *http.Transport {
	return &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 0,
		}).DialContext,
		DisableKeepAlives:     true,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

func defaultTimeout() time.Duration {
	if seconds := config.Get().API.Timeout; seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return defaultFetchTimeout
}
