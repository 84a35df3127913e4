package partition

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kieferlin/SDLE-CASFER-WWTP/internal/fetcher"
	"github.com/kieferlin/SDLE-CASFER-WWTP/internal/model"
)

func testFetcher() *fetcher.HTTPFetcher {
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		Timeout:      5 * time.Second,
		MaxRetries:   1,
		PerHostRate:  10000,
		PerHostBurst: 10000,
	})
}

// partitionServer serves {label}/{region}_{label}.json for the given
// region→records map and 404s everything else.
func partitionServer(t *testing.T, year string, byRegion map[string][]model.FacilityRecord) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	for region, records := range byRegion {
		records := records
		path := fmt.Sprintf("/%s/%s_%s.json", Label(year), region, Label(year))
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(records)
		})
	}
	return httptest.NewServer(mux)
}

func TestFetchRegion_OK(t *testing.T) {
	srv := partitionServer(t, "2015", map[string][]model.FacilityRecord{
		"OH": {{NPDES: "OH001", Pollutant: "Nitrogen"}},
	})
	defer srv.Close()

	c := NewClient(testFetcher(), ClientOptions{BaseURL: srv.URL})
	records, err := c.FetchRegion(context.Background(), "OH", "2015")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "OH001", records[0].NPDES)
}

func TestFetchRegion_MissingNamesRegionAndYear(t *testing.T) {
	srv := partitionServer(t, "2015", nil)
	defer srv.Close()

	c := NewClient(testFetcher(), ClientOptions{BaseURL: srv.URL})
	_, err := c.FetchRegion(context.Background(), "OH", "2015")
	require.Error(t, err)
	assert.True(t, eris.Is(err, fetcher.ErrNotFound))
	assert.Contains(t, err.Error(), "OH")
	assert.Contains(t, err.Error(), "2015")
}

func TestFetchRegion_UnknownRegion(t *testing.T) {
	c := NewClient(testFetcher(), ClientOptions{BaseURL: "http://unused"})
	_, err := c.FetchRegion(context.Background(), "ZZ", "2015")
	assert.Error(t, err)
}

func TestFetchAll_ToleratesMissingPartitions(t *testing.T) {
	// Only three regions have data; the other 46 partitions 404.
	byRegion := map[string][]model.FacilityRecord{
		"AL": {{NPDES: "AL001"}},
		"OH": {{NPDES: "OH001"}, {NPDES: "OH002"}},
		"WY": {{NPDES: "WY001"}},
	}
	srv := partitionServer(t, "2015", byRegion)
	defer srv.Close()

	var (
		mu      sync.Mutex
		reports [][2]int
	)
	progress := func(done, total int) {
		mu.Lock()
		reports = append(reports, [2]int{done, total})
		mu.Unlock()
	}

	c := NewClient(testFetcher(), ClientOptions{BaseURL: srv.URL, Concurrency: 16})
	merged, report, err := c.FetchAll(context.Background(), "2015", progress)
	require.NoError(t, err)

	// Merged collection is the concatenation of successful payloads in
	// region-iteration order.
	var ids []string
	for _, r := range merged {
		ids = append(ids, r.NPDES)
	}
	assert.Equal(t, []string{"AL001", "OH001", "OH002", "WY001"}, ids)

	assert.Equal(t, len(Regions), report.Total)
	assert.Len(t, report.Missing, len(Regions)-3)
	assert.NotContains(t, report.Missing, "OH")

	// Progress: one report per settlement, strictly increasing, ending at
	// (total, total).
	require.Len(t, reports, len(Regions))
	for i, p := range reports {
		assert.Equal(t, i+1, p[0])
		assert.Equal(t, len(Regions), p[1])
	}
}

func TestFetchAll_TransportFailureAborts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(testFetcher(), ClientOptions{BaseURL: srv.URL, Concurrency: 16})
	_, _, err := c.FetchAll(context.Background(), "2015", nil)
	require.Error(t, err)
	assert.False(t, eris.Is(err, fetcher.ErrNotFound))
}

func TestFetchAll_AllMissingIsError(t *testing.T) {
	srv := partitionServer(t, "2031", nil)
	defer srv.Close()

	c := NewClient(testFetcher(), ClientOptions{BaseURL: srv.URL, Concurrency: 16})
	_, _, err := c.FetchAll(context.Background(), "2031", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2031")
}

// staticCache is an in-memory PayloadCache for tests.
type staticCache struct {
	mu     sync.Mutex
	bodies map[string][]byte
	etags  map[string]string
	puts   int
}

func newStaticCache() *staticCache {
	return &staticCache{bodies: map[string][]byte{}, etags: map[string]string{}}
}

func (c *staticCache) Get(_ context.Context, url string) ([]byte, string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.bodies[url]
	return b, c.etags[url], ok, nil
}

func (c *staticCache) Put(_ context.Context, url, etag string, body []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bodies[url] = body
	c.etags[url] = etag
	c.puts++
	return nil
}

func TestFetchRegion_CacheRevalidation(t *testing.T) {
	var hits int
	mux := http.NewServeMux()
	mux.HandleFunc("/2015/OH_2015.json", func(w http.ResponseWriter, r *http.Request) {
		hits++
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_ = json.NewEncoder(w).Encode([]model.FacilityRecord{{NPDES: "OH001"}})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cache := newStaticCache()
	c := NewClient(testFetcher(), ClientOptions{BaseURL: srv.URL, Cache: cache})

	// First fetch populates the cache.
	records, err := c.FetchRegion(context.Background(), "OH", "2015")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 1, cache.puts)

	// Second fetch revalidates and serves the cached body on 304.
	records, err = c.FetchRegion(context.Background(), "OH", "2015")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 1, cache.puts)
	assert.Equal(t, 2, hits)
}
