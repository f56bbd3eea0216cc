// Package lawdata fetches Korean government regulatory data sources
// (press-release RSS, legal interpretation records, legislative notices)
// through the geo-aware proxy dispatcher.
package lawdata

import (
	"context"

	"beopsuny/internal/proxy"
)

// Fetcher is the outbound HTTP dependency; *proxy.Client satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, target string, opts proxy.FetchOptions) (string, error)
}
