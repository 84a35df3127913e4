// Package pipeline applies the pollutant, year-window, and proximity-class
// filters that turn a merged record collection into the display set.
//
// The pipeline is deterministic and side-effect-free: input records are
// never mutated, output order follows input order, and re-running it on the
// same inputs yields the same output. It is re-run in full on every filter
// change rather than patched incrementally.
package pipeline

import (
	"strings"

	"github.com/kieferlin/SDLE-CASFER-WWTP/internal/model"
	"github.com/kieferlin/SDLE-CASFER-WWTP/internal/proximity"
)

// Options selects what the display set keeps.
type Options struct {
	Pollutant string            // display name, empty = no pollutant filter
	Year      string            // keep only measurements from this year
	Class     model.ClassFilter // proximity-class restriction
	Near      proximity.Set     // classification set backing Only/Exclude
}

// Filter produces the display set. Steps, in order: pollutant-name match
// (normalized comparison), per-record year trim of measurements with
// empty records dropped, then the class filter.
func Filter(records []model.FacilityRecord, opts Options) []model.FacilityRecord {
	want := model.NormalizePollutant(opts.Pollutant)

	out := make([]model.FacilityRecord, 0, len(records))
	for i := range records {
		r := records[i]

		if want != "" && model.NormalizePollutant(r.Pollutant) != want {
			continue
		}

		kept := measurementsInYear(r.Measurements, opts.Year)
		if len(kept) == 0 {
			continue
		}

		switch opts.Class {
		case model.ClassOnly:
			if !opts.Near.Contains(r.NPDES) {
				continue
			}
		case model.ClassExclude:
			if opts.Near.Contains(r.NPDES) {
				continue
			}
		}

		r.Measurements = kept
		out = append(out, r)
	}
	return out
}

// Plottable counts display-set records that carry coordinates and can be
// placed on the map. The display count includes coordinate-less records;
// this does not.
func Plottable(records []model.FacilityRecord) int {
	n := 0
	for i := range records {
		if records[i].HasCoordinates() {
			n++
		}
	}
	return n
}

// measurementsInYear returns a fresh slice of the measurements whose date's
// year component equals year. Dates are "MM/DD/YYYY"; anything else is
// treated as outside the window.
func measurementsInYear(ms []model.Measurement, year string) []model.Measurement {
	var kept []model.Measurement
	for _, m := range ms {
		parts := strings.Split(m.Date, "/")
		if len(parts) == 3 && parts[2] == year {
			kept = append(kept, m)
		}
	}
	return kept
}
