package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/oschwald/geoip2-golang"
	"golang.org/x/sync/singleflight"

	"beopsuny/internal/config"
	"beopsuny/internal/domain"
	"beopsuny/internal/support"
)

const geoProbeTimeout = 5 * time.Second

// Probe is one public "what is my IP" JSON endpoint. Responses differ in
// which key carries the country code, so extraction tries a list of known
// field names.
type Probe struct {
	Name string
	URL  string
}

var defaultProbes = []Probe{
	{Name: "ipapi.co", URL: "https://ipapi.co/json/"},
	{Name: "ip-api.com", URL: "http://ip-api.com/json"},
	{Name: "ifconfig.co", URL: "https://ifconfig.co/json"},
	{Name: "ipinfo.io", URL: "https://ipinfo.io/json"},
}

var countryFields = []string{"country_code", "countryCode", "country_iso", "country"}

var ipFields = []string{"ip", "query"}

// GeoResolver determines the country of this process's network egress
// point. The first successful probe is memoized for the process lifetime,
// including the UNKNOWN sentinel when every probe fails.
type GeoResolver struct {
	probes []Probe
	client *http.Client

	group  singleflight.Group
	cached atomic.Pointer[domain.GeoInfo]
}

// NewGeoResolver builds a resolver over the default probe list. A nil
// client gets a probe-timeout default.
func NewGeoResolver(client *http.Client, probes ...Probe) *GeoResolver {
	if client == nil {
		client = &http.Client{Timeout: geoProbeTimeout}
	}
	if len(probes) == 0 {
		probes = defaultProbes
	}
	return &GeoResolver{probes: probes, client: client}
}

// Resolve returns the cached GeoInfo, probing the endpoints in order on
// first use. It never fails; exhausting every probe yields the UNKNOWN
// sentinel, which is cached like any other result.
func (r *GeoResolver) Resolve(ctx context.Context) domain.GeoInfo {
	if g := r.cached.Load(); g != nil {
		return *g
	}

	v, _, _ := r.group.Do("geo", func() (interface{}, error) {
		info := r.probe(ctx)
		r.cached.Store(&info)
		return info, nil
	})
	return v.(domain.GeoInfo)
}

// Reset drops the cached result so the next Resolve probes again.
func (r *GeoResolver) Reset() {
	r.cached.Store(nil)
}

// IsOverseas decides whether outbound requests must go through a proxy.
// Precedence: FORCE_PROXY env > SKIP_GEO_CHECK env > settings force_proxy >
// settings skip_geo_check > live geolocation. An unknown country counts as
// overseas so that a blocked direct request is never attempted silently.
func (r *GeoResolver) IsOverseas(ctx context.Context) bool {
	if support.GetEnvBool("FORCE_PROXY", false) {
		return true
	}
	if support.GetEnvBool("SKIP_GEO_CHECK", false) {
		return false
	}

	s := config.Get()
	if s.Proxy.ForceProxy {
		return true
	}
	if s.Proxy.SkipGeoCheck {
		return false
	}

	return !r.Resolve(ctx).Domestic()
}

func (r *GeoResolver) probe(ctx context.Context) domain.GeoInfo {
	for _, p := range r.probes {
		info, err := r.query(ctx, p)
		if err != nil {
			log.Debug("Geolocation probe failed", "probe", p.Name, "error", err)
			continue
		}

		refineWithMMDB(&info)
		log.Debug("Geolocation resolved", "country", info.Country, "ip", info.IP, "source", info.Source)
		return info
	}

	log.Warn("All geolocation probes failed, assuming overseas")
	return domain.GeoInfo{Country: domain.CountryUnknown, Source: "none"}
}

func (r *GeoResolver) query(ctx context.Context, p Probe) (domain.GeoInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, geoProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return domain.GeoInfo{}, err
	}
	req.Header.Set("User-Agent", defaultUserAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return domain.GeoInfo{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.GeoInfo{}, &HTTPError{Backend: p.Name, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return domain.GeoInfo{}, err
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return domain.GeoInfo{}, err
	}

	info := domain.GeoInfo{Source: p.Name}
	info.Country = firstString(fields, countryFields)
	info.IP = firstString(fields, ipFields)
	if info.Country == "" {
		return domain.GeoInfo{}, &NetworkError{Backend: p.Name, Err: errMissingCountry}
	}
	info.Country = strings.ToUpper(info.Country)
	return info, nil
}

var errMissingCountry = errors.New("response carries no country field")

func firstString(fields map[string]interface{}, keys []string) string {
	for _, key := range keys {
		if v, ok := fields[key].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// refineWithMMDB overrides the probed country with a local GeoLite2 lookup
// when settings point at an mmdb file. Probed data stays authoritative for
// the IP itself.
func refineWithMMDB(info *domain.GeoInfo) {
	path := config.Get().Proxy.MMDBPath
	if path == "" || info.IP == "" {
		return
	}

	ip := net.ParseIP(info.IP)
	if ip == nil {
		return
	}

	db, err := geoip2.Open(path)
	if err != nil {
		log.Debug("GeoLite database unavailable", "path", path, "error", err)
		return
	}
	defer db.Close()

	record, err := db.Country(ip)
	if err != nil || record.Country.IsoCode == "" {
		return
	}

	info.Country = record.Country.IsoCode
	info.Source = info.Source + "+mmdb"
}
