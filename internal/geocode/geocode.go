package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Cache is the subset of the redis client used for geocode lookups. Cache
// failures are ignored; the geocoder falls through to the remote lookup.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, expiration time.Duration) error
}

// Metrics receives cache outcome counters. A nil Metrics is a no-op.
type Metrics interface {
	GeocodeCacheHit()
	GeocodeCacheMiss()
}

// Geocoder resolves coordinates into short display names. Lookups are
// best-effort: every failure path yields the formatted coordinate string,
// never an error, so a geocoding outage can't break the dashboard.
type Geocoder struct {
	endpoint string
	apiKey   string
	cache    Cache
	cacheTTL time.Duration
	metrics  Metrics
	httpc    *http.Client
}

func New(endpoint, apiKey string, cache Cache, cacheTTL time.Duration, m Metrics) *Geocoder {
	return &Geocoder{
		endpoint: endpoint,
		apiKey:   apiKey,
		cache:    cache,
		cacheTTL: cacheTTL,
		metrics:  m,
		httpc:    &http.Client{Timeout: 10 * time.Second},
	}
}

func cacheKey(lat, lng float64) string {
	return fmt.Sprintf("geo:%.4f,%.4f", lat, lng)
}

func coordText(lat, lng float64) string {
	return fmt.Sprintf("%.4f, %.4f", lat, lng)
}

type component struct {
	LongName  string   `json:"long_name"`
	ShortName string   `json:"short_name"`
	Types     []string `json:"types"`
}

type geocodeResponse struct {
	Results []struct {
		AddressComponents []component `json:"address_components"`
		FormattedAddress  string      `json:"formatted_address"`
	} `json:"results"`
}

// Reverse returns a display name for the coordinates.
func (g *Geocoder) Reverse(ctx context.Context, lat, lng float64) string {
	key := cacheKey(lat, lng)
	if g.cache != nil {
		if v, err := g.cache.Get(ctx, key); err == nil && v != "" {
			if g.metrics != nil {
				g.metrics.GeocodeCacheHit()
			}
			return v
		}
		if g.metrics != nil {
			g.metrics.GeocodeCacheMiss()
		}
	}

	name, ok := g.lookup(ctx, lat, lng)
	if !ok {
		return coordText(lat, lng)
	}
	if g.cache != nil {
		_ = g.cache.Set(ctx, key, name, g.cacheTTL)
	}
	return name
}

func (g *Geocoder) lookup(ctx context.Context, lat, lng float64) (string, bool) {
	u := fmt.Sprintf("%s?latlng=%f,%f&key=%s", g.endpoint, lat, lng, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", false
	}
	resp, err := g.httpc.Do(req)
	if err != nil {
		return "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", false
	}

	var payload geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", false
	}
	if len(payload.Results) == 0 {
		return "", false
	}

	result := payload.Results[0]
	name := composeName(result.AddressComponents, result.FormattedAddress)
	if name == "" {
		return "", false
	}
	return name, true
}

// composeName picks the most recognizable address components: a named
// establishment first, then the road, then the locality, skipping parts
// already contained in an earlier one.
func composeName(components []component, formatted string) string {
	find := func(types ...string) *component {
		for i := range components {
			for _, want := range types {
				for _, have := range components[i].Types {
					if have == want {
						return &components[i]
					}
				}
			}
		}
		return nil
	}

	var parts []string
	establishment := find("establishment", "point_of_interest")
	if establishment != nil {
		parts = append(parts, establishment.LongName)
	}

	if route := find("route"); route != nil {
		if establishment == nil || !strings.Contains(establishment.LongName, route.ShortName) {
			parts = append(parts, route.ShortName)
		}
	}

	if locality := find("sublocality", "locality"); locality != nil {
		contained := false
		for _, p := range parts {
			if strings.Contains(p, locality.ShortName) {
				contained = true
				break
			}
		}
		if !contained {
			parts = append(parts, locality.ShortName)
		}
	}

	if len(parts) > 0 {
		return strings.Join(parts, ", ")
	}

	pieces := strings.Split(formatted, ",")
	if len(pieces) > 2 {
		return strings.TrimSpace(strings.Join(pieces[:2], ","))
	}
	return strings.TrimSpace(formatted)
}
