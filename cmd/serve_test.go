package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kieferlin/SDLE-CASFER-WWTP/internal/fetcher"
	"github.com/kieferlin/SDLE-CASFER-WWTP/internal/model"
	"github.com/kieferlin/SDLE-CASFER-WWTP/internal/partition"
	"github.com/kieferlin/SDLE-CASFER-WWTP/internal/proximity"
	"github.com/kieferlin/SDLE-CASFER-WWTP/internal/reconciler"
)

const ohioPartition = `[
	{"npdes": "OHB", "pollutant": "Nitrogen, total [as N]", "unit": "mg/L",
	 "lat": 41.502, "lon": -81.498,
	 "measurements": [{"date": "03/15/2015", "value": "2.1"}]},
	{"npdes": "OHA", "pollutant": "Phosphorus", "unit": "mg/L",
	 "lat": 41.499, "lon": -81.501,
	 "measurements": [{"date": "06/01/2015", "value": "0.4"}]},
	{"npdes": "OHZ", "pollutant": "Phosphorus", "unit": "mg/L",
	 "lat": 41.9, "lon": -81.9,
	 "measurements": [{"date": "07/20/2015", "value": "1.0"}]}
]`

func newServeReconciler(t *testing.T) *reconciler.Reconciler {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/2015/OH_2015.json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(ohioPartition))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{MaxRetries: 1})
	parts := partition.NewClient(f, partition.ClientOptions{BaseURL: srv.URL})
	ix := proximity.NewIndex([]model.ReferenceLocation{{Lat: 41.5, Lon: -81.5}}, proximity.DefaultTolerance)
	return reconciler.New(parts, ix, nil)
}

func TestHandleFacilities_SortedNear(t *testing.T) {
	rec := newServeReconciler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/facilities?region=OH&year=2015", nil)
	w := httptest.NewRecorder()
	handleFacilities(rec)(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp facilitiesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.Equal(t, 3, resp.Count)
	assert.Equal(t, 3, resp.Plottable)
	// OHA and OHB are within tolerance of the reference site, OHZ is not.
	// The order is fixed regardless of map iteration.
	assert.Equal(t, []string{"OHA", "OHB"}, resp.Near)
}

func TestHandleFacilities_BadParams(t *testing.T) {
	rec := newServeReconciler(t)

	cases := []string{
		"/api/facilities?region=XX&year=2015",
		"/api/facilities?region=OH&year=15",
		"/api/facilities?region=OH&year=2015&class=bogus",
	}
	for _, target := range cases {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		w := httptest.NewRecorder()
		handleFacilities(rec)(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code, target)
	}
}

func TestHandleFacilities_MissingPartition(t *testing.T) {
	rec := newServeReconciler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/facilities?region=WY&year=2015", nil)
	w := httptest.NewRecorder()
	handleFacilities(rec)(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandlePollutants_SortedVocabulary(t *testing.T) {
	rec := newServeReconciler(t)

	// The pollutant filter must not narrow the vocabulary.
	req := httptest.NewRequest(http.MethodGet, "/api/pollutants?region=OH&year=2015&pollutant=Phosphorus", nil)
	w := httptest.NewRecorder()
	handlePollutants(rec)(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Pollutants []string `json:"pollutants"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"Nitrogen, total [as N]", "Phosphorus"}, resp.Pollutants)
}
