package proxy

import (
	"strings"

	"github.com/charmbracelet/log"

	"beopsuny/internal/config"
	"beopsuny/internal/support"
)

// Kind selects the proxy backend used when a fetch must not go out
// directly.
type Kind string

const (
	// KindRelay is a stateless HTTP relay that fetches the target itself
	// and returns the body (a Cloudflare Worker style endpoint).
	KindRelay Kind = "relay"
	// KindUpstream is a credentialed residential forward proxy with a
	// country qualifier appended to the username.
	KindUpstream Kind = "upstream"
	// KindGeneric is a plain forward http(s) or socks5 proxy URL.
	KindGeneric Kind = "generic"
)

// Environment override keys. When any of them carries a value the settings
// file is ignored entirely.
const (
	envProxyType        = "PROXY_TYPE"
	envProxyURL         = "PROXY_URL"
	envUpstreamUsername = "UPSTREAM_USERNAME"
	envUpstreamPassword = "UPSTREAM_PASSWORD"
)

// Config is the resolved proxy backend selection. Which fields must be
// non-empty depends on Kind; dispatch validates them before any network
// call.
type Config struct {
	Kind Kind

	RelayURL   string
	GenericURL string

	Username string
	Password string

	UpstreamHost string
	UpstreamPort int
}

// ResolveConfig picks the proxy backend from the environment first and the
// settings file second. With neither source present the result is an empty
// relay config, which dispatch rejects as a configuration error.
func ResolveConfig() Config {
	if support.EnvSet(envProxyType, envProxyURL, envUpstreamUsername, envUpstreamPassword) {
		cfg := Config{
			Kind:     normalizeKind(support.GetEnv(envProxyType, "")),
			Username: support.GetEnv(envUpstreamUsername, ""),
			Password: support.GetEnv(envUpstreamPassword, ""),
		}
		cfg.setURL(support.GetEnv(envProxyURL, ""))
		return cfg
	}

	s := config.Get().Proxy
	cfg := Config{
		Kind:         normalizeKind(s.Type),
		Username:     s.Username,
		Password:     s.Password,
		UpstreamHost: s.UpstreamHost,
		UpstreamPort: s.UpstreamPort,
	}
	cfg.setURL(s.URL)
	return cfg
}

func (c *Config) setURL(raw string) {
	switch c.Kind {
	case KindGeneric:
		c.GenericURL = raw
	default:
		c.RelayURL = raw
	}
}

func normalizeKind(raw string) Kind {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "relay", "worker", "cloudflare":
		return KindRelay
	case "upstream", "upstream-auth", "residential":
		return KindUpstream
	case "generic", "http", "https", "socks5":
		return KindGeneric
	default:
		log.Warn("Unknown proxy type, defaulting to relay", "type", raw)
		return KindRelay
	}
}
