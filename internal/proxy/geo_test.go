package proxy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"beopsuny/internal/config"
	"beopsuny/internal/domain"
)

// resetEnv clears every recognized override and points the settings loader
// at a non-existent file so each test starts from defaults.
func resetEnv(t *testing.T) {
	t.Helper()

	for _, key := range []string{"PROXY_TYPE", "PROXY_URL", "UPSTREAM_USERNAME", "UPSTREAM_PASSWORD", "FORCE_PROXY", "SKIP_GEO_CHECK"} {
		t.Setenv(key, "")
	}
	t.Setenv("BEOPSUNY_SETTINGS", filepath.Join(t.TempDir(), "missing.yaml"))
	config.Reset()
	t.Cleanup(config.Reset)
}

func writeSettings(t *testing.T, content string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "settings.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write settings: %v", err)
	}
	t.Setenv("BEOPSUNY_SETTINGS", path)
	config.Reset()
}

func geoStub(t *testing.T, body string, calls *atomic.Int64) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			calls.Add(1)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestResolveFirstProbeWins(t *testing.T) {
	resetEnv(t)

	var firstCalls, secondCalls atomic.Int64
	first := geoStub(t, `{"country_code":"kr","ip":"203.0.113.7"}`, &firstCalls)
	second := geoStub(t, `{"countryCode":"US","query":"198.51.100.9"}`, &secondCalls)

	r := NewGeoResolver(nil, Probe{Name: "first", URL: first.URL}, Probe{Name: "second", URL: second.URL})

	info := r.Resolve(context.Background())
	if info.Country != "KR" {
		t.Fatalf("country = %q, want KR", info.Country)
	}
	if info.IP != "203.0.113.7" {
		t.Fatalf("ip = %q", info.IP)
	}
	if info.Source != "first" {
		t.Fatalf("source = %q, want first", info.Source)
	}
	if secondCalls.Load() != 0 {
		t.Fatal("second probe should not be queried once the first succeeds")
	}
}

func TestResolveFallsBackAcrossProbes(t *testing.T) {
	resetEnv(t)

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(broken.Close)
	malformed := geoStub(t, `not json`, nil)
	working := geoStub(t, `{"country_iso":"JP","ip":"192.0.2.4"}`, nil)

	r := NewGeoResolver(nil,
		Probe{Name: "broken", URL: broken.URL},
		Probe{Name: "malformed", URL: malformed.URL},
		Probe{Name: "working", URL: working.URL},
	)

	info := r.Resolve(context.Background())
	if info.Country != "JP" || info.Source != "working" {
		t.Fatalf("resolved %+v, want JP from working", info)
	}
}

func TestResolveCachesResult(t *testing.T) {
	resetEnv(t)

	var calls atomic.Int64
	stub := geoStub(t, `{"country":"DE","ip":"192.0.2.1"}`, &calls)

	r := NewGeoResolver(nil, Probe{Name: "stub", URL: stub.URL})

	r.Resolve(context.Background())
	r.Resolve(context.Background())

	if got := calls.Load(); got != 1 {
		t.Fatalf("probe queried %d times, want 1", got)
	}
}

func TestResolveCachesUnknownSentinel(t *testing.T) {
	resetEnv(t)

	var calls atomic.Int64
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(failing.Close)

	r := NewGeoResolver(nil, Probe{Name: "failing", URL: failing.URL})

	if info := r.Resolve(context.Background()); info.Country != domain.CountryUnknown {
		t.Fatalf("country = %q, want %s", info.Country, domain.CountryUnknown)
	}
	if info := r.Resolve(context.Background()); info.Country != domain.CountryUnknown {
		t.Fatalf("second resolve country = %q, want cached sentinel", info.Country)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("failed probe queried %d times, want 1 (no retry on failure)", got)
	}
}

func TestIsOverseasForceProxyWinsOverDomesticGeo(t *testing.T) {
	resetEnv(t)
	t.Setenv("FORCE_PROXY", "true")

	stub := geoStub(t, `{"country_code":"KR"}`, nil)
	r := NewGeoResolver(nil, Probe{Name: "stub", URL: stub.URL})

	if !r.IsOverseas(context.Background()) {
		t.Fatal("FORCE_PROXY must win even when geolocation reports KR")
	}
}

func TestIsOverseasSkipCheckWinsOverUnreachableGeo(t *testing.T) {
	resetEnv(t)
	t.Setenv("SKIP_GEO_CHECK", "1")

	// Unreachable probe: the skip flag must short-circuit before any lookup.
	r := NewGeoResolver(nil, Probe{Name: "dead", URL: "http://127.0.0.1:1"})

	if r.IsOverseas(context.Background()) {
		t.Fatal("SKIP_GEO_CHECK must force the direct path")
	}
}

func TestIsOverseasSettingsFlags(t *testing.T) {
	resetEnv(t)
	writeSettings(t, "proxy:\n  force_proxy: true\n")

	stub := geoStub(t, `{"country_code":"KR"}`, nil)
	r := NewGeoResolver(nil, Probe{Name: "stub", URL: stub.URL})
	if !r.IsOverseas(context.Background()) {
		t.Fatal("settings force_proxy must win over a domestic geolocation")
	}

	writeSettings(t, "proxy:\n  skip_geo_check: true\n")
	r = NewGeoResolver(nil, Probe{Name: "dead", URL: "http://127.0.0.1:1"})
	if r.IsOverseas(context.Background()) {
		t.Fatal("settings skip_geo_check must force the direct path")
	}
}

func TestIsOverseasByCountry(t *testing.T) {
	cases := []struct {
		body     string
		overseas bool
	}{
		{`{"country_code":"KR"}`, false},
		{`{"country_code":"KOR"}`, false},
		{`{"country_code":"US"}`, true},
		{`{"country_code":"JP"}`, true},
	}

	for _, tc := range cases {
		resetEnv(t)
		stub := geoStub(t, tc.body, nil)
		r := NewGeoResolver(nil, Probe{Name: "stub", URL: stub.URL})
		if got := r.IsOverseas(context.Background()); got != tc.overseas {
			t.Errorf("IsOverseas for %s = %v, want %v", tc.body, got, tc.overseas)
		}
	}
}

func TestIsOverseasUnknownDefaultsToProxy(t *testing.T) {
	resetEnv(t)

	r := NewGeoResolver(nil, Probe{Name: "dead", URL: "http://127.0.0.1:1"})
	if !r.IsOverseas(context.Background()) {
		t.Fatal("unknown egress country must be treated as overseas")
	}
}
