package domain

// CountryUnknown is the sentinel country code stored when every
// geolocation lookup failed.
const CountryUnknown = "UNKNOWN"

// GeoInfo describes the network egress point of this process as seen by a
// public geolocation service.
type GeoInfo struct {
	Country string `json:"country"`
	IP      string `json:"ip"`
	Source  string `json:"source"`
}

// Domestic reports whether the detected country is Korea. The unknown
// sentinel is never domestic.
func (g GeoInfo) Domestic() bool {
	return g.Country == "KR" || g.Country == "KOR"
}
