package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v2"

	"beopsuny/internal/support"
)

// Settings mirrors the settings.yaml shipped inside the skill bundle. The
// file is parsed at most once per process; Reset exists for tests.
type Settings struct {
	OCCode         string `yaml:"oc_code"`
	AssemblyAPIKey string `yaml:"assembly_api_key"`

	API struct {
		BaseURL        string `yaml:"base_url"`
		Timeout        int    `yaml:"timeout"`
		DefaultDisplay int    `yaml:"default_display"`
	} `yaml:"api"`

	Targets map[string]string `yaml:"targets"`

	Press struct {
		RSSURL string `yaml:"rss_url"`
	} `yaml:"press"`

	Assembly struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"assembly"`

	Proxy ProxySettings `yaml:"proxy"`
}

// ProxySettings is the settings-file side of the proxy backend selection.
// Environment variables take precedence; see internal/proxy.
type ProxySettings struct {
	Type         string `yaml:"type"`
	URL          string `yaml:"url"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	UpstreamHost string `yaml:"upstream_host"`
	UpstreamPort int    `yaml:"upstream_port"`
	MMDBPath     string `yaml:"mmdb_path"`
	ForceProxy   bool   `yaml:"force_proxy"`
	SkipGeoCheck bool   `yaml:"skip_geo_check"`
}

const settingsEnvKey = "BEOPSUNY_SETTINGS"

const defaultSettingsPath = "settings.yaml"

var (
	//go:embed default_settings.yaml
	defaultSettings []byte

	settingsValue atomic.Pointer[Settings]
	loadGroup     singleflight.Group
)

// Get returns the cached settings, loading the file on first use. Load
// failures degrade to the embedded defaults and are not retried.
func Get() Settings {
	if s := settingsValue.Load(); s != nil {
		return *s
	}

	v, _, _ := loadGroup.Do("settings", func() (interface{}, error) {
		s, err := load(SettingsPath())
		if err != nil {
			log.Warn("Falling back to default settings", "error", err)
		}
		settingsValue.Store(&s)
		return s, nil
	})
	return v.(Settings)
}

// Reset drops the cached settings so the next Get reloads the file.
func Reset() {
	settingsValue.Store(nil)
}

// SettingsPath resolves the settings file location, preferring the
// BEOPSUNY_SETTINGS environment variable.
func SettingsPath() string {
	return support.GetEnv(settingsEnvKey, defaultSettingsPath)
}

func load(path string) (Settings, error) {
	s, err := Defaults()
	if err != nil {
		return s, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Debug("Settings file not found, using defaults", "path", path)
			return s, nil
		}
		return s, fmt.Errorf("read settings: %w", err)
	}

	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("parse settings: %w", err)
	}

	log.Debug("Settings file loaded", "path", path)
	return s, nil
}

// Defaults parses the embedded settings template.
func Defaults() (Settings, error) {
	var s Settings
	if err := yaml.Unmarshal(defaultSettings, &s); err != nil {
		return s, fmt.Errorf("parse embedded defaults: %w", err)
	}
	return s, nil
}

// WriteDefault creates a settings file from the embedded template. Backs
// the `init` subcommand.
func WriteDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	if err := os.WriteFile(path, defaultSettings, 0o644); err != nil {
		return fmt.Errorf("write default settings: %w", err)
	}
	return nil
}
