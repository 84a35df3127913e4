package reconciler

import (
	"net/url"
	"strconv"

	"github.com/kieferlin/SDLE-CASFER-WWTP/internal/model"
	"github.com/kieferlin/SDLE-CASFER-WWTP/internal/partition"
)

// Query-string keys of the restorable view selection.
const (
	queryYear      = "year"
	queryRegion    = "region"
	queryPollutant = "pollutant"
	queryClass     = "class"
)

// EncodeQuery serializes an AppState into its restorable query form.
func EncodeQuery(st model.AppState) url.Values {
	q := url.Values{}
	q.Set(queryYear, st.Year)
	q.Set(queryRegion, st.Region)
	q.Set(queryPollutant, st.Pollutant)
	q.Set(queryClass, st.Class.String())
	return q
}

// DecodeQuery parses a restorable query into an AppState. Missing or
// invalid fields fall back to their zero defaults rather than failing:
// a bad URL must still yield a usable state.
func DecodeQuery(q url.Values) model.AppState {
	st := model.AppState{}

	if year := q.Get(queryYear); validYear(year) {
		st.Year = year
	}
	if region := q.Get(queryRegion); region == partition.AllRegions || partition.IsRegion(region) {
		st.Region = region
	}
	st.Pollutant = q.Get(queryPollutant)
	if cf, err := model.ParseClassFilter(q.Get(queryClass)); err == nil {
		st.Class = cf
	}
	return st
}

func validYear(s string) bool {
	if len(s) != 4 {
		return false
	}
	_, err := strconv.Atoi(s)
	return err == nil
}
