package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultsParse(t *testing.T) {
	s, err := Defaults()
	if err != nil {
		t.Fatalf("Defaults: %v", err)
	}

	if s.API.BaseURL != "http://www.law.go.kr/DRF" {
		t.Fatalf("default base url = %q", s.API.BaseURL)
	}
	if s.API.Timeout != 30 {
		t.Fatalf("default timeout = %d, want 30", s.API.Timeout)
	}
	if s.Targets["expc"] != "법령해석례" {
		t.Fatalf("expc target = %q", s.Targets["expc"])
	}
	if s.Proxy.ForceProxy || s.Proxy.SkipGeoCheck {
		t.Fatal("proxy overrides should default to false")
	}
}

func TestGetReadsSettingsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")
	content := "oc_code: \"tester\"\nproxy:\n  type: \"upstream\"\n  username: \"user\"\n  password: \"pass\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write settings: %v", err)
	}

	t.Setenv("BEOPSUNY_SETTINGS", path)
	Reset()
	t.Cleanup(Reset)

	s := Get()
	if s.OCCode != "tester" {
		t.Fatalf("oc_code = %q, want tester", s.OCCode)
	}
	if s.Proxy.Type != "upstream" || s.Proxy.Username != "user" {
		t.Fatalf("proxy settings not loaded: %+v", s.Proxy)
	}
	// File values overlay the defaults rather than replacing them.
	if s.API.BaseURL != "http://www.law.go.kr/DRF" {
		t.Fatalf("defaults lost after overlay: %q", s.API.BaseURL)
	}
}

func TestGetCachesUntilReset(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")
	if err := os.WriteFile(path, []byte("oc_code: \"first\"\n"), 0o644); err != nil {
		t.Fatalf("write settings: %v", err)
	}

	t.Setenv("BEOPSUNY_SETTINGS", path)
	Reset()
	t.Cleanup(Reset)

	if got := Get().OCCode; got != "first" {
		t.Fatalf("oc_code = %q, want first", got)
	}

	if err := os.WriteFile(path, []byte("oc_code: \"second\"\n"), 0o644); err != nil {
		t.Fatalf("rewrite settings: %v", err)
	}
	if got := Get().OCCode; got != "first" {
		t.Fatalf("oc_code after rewrite = %q, want cached first", got)
	}

	Reset()
	if got := Get().OCCode; got != "second" {
		t.Fatalf("oc_code after reset = %q, want second", got)
	}
}

func TestGetMissingFileFallsBackToDefaults(t *testing.T) {
	t.Setenv("BEOPSUNY_SETTINGS", filepath.Join(t.TempDir(), "missing.yaml"))
	Reset()
	t.Cleanup(Reset)

	s := Get()
	if s.OCCode != "" {
		t.Fatalf("oc_code = %q, want empty", s.OCCode)
	}
	if s.API.DefaultDisplay != 20 {
		t.Fatalf("default display = %d, want 20", s.API.DefaultDisplay)
	}
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "settings.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read written template: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("written template is empty")
	}
}
