// Package proximity classifies facilities by nearness to a fixed set of
// reference locations using a coarse grid-bucketed lookup.
//
// Nearness is a per-axis absolute coordinate difference, not a geodesic
// distance: a facility is near a reference point when both |Δlat| and |Δlon|
// are strictly below the tolerance. The comparison must be strict: the grid
// cell side equals the tolerance, and |Δ| < tol bounds the per-axis cell
// index difference at 1, so any matching reference lives in the candidate's
// cell or one of its eight neighbors. At |Δ| == tol two points can straddle
// a half-cell boundary and land two cells apart, outside the probe.
package proximity

import (
	"math"

	"github.com/kieferlin/SDLE-CASFER-WWTP/internal/model"
)

// DefaultTolerance is the per-axis matching tolerance in decimal degrees,
// roughly 1.1 km of latitude.
const DefaultTolerance = 0.01

// Set holds the NPDES identifiers classified as near a reference location.
type Set map[string]struct{}

// Contains reports whether the identifier was classified as near.
func (s Set) Contains(id string) bool {
	_, ok := s[id]
	return ok
}

type cell struct {
	lat int
	lon int
}

// Index is an immutable grid of reference locations bucketed by cell.
type Index struct {
	tol     float64
	scale   float64
	buckets map[cell][]model.ReferenceLocation
}

// NewIndex buckets the reference set. References with non-finite coordinates
// are skipped. A non-positive tolerance falls back to DefaultTolerance.
func NewIndex(refs []model.ReferenceLocation, tol float64) *Index {
	if tol <= 0 {
		tol = DefaultTolerance
	}
	ix := &Index{
		tol:     tol,
		scale:   1 / tol,
		buckets: make(map[cell][]model.ReferenceLocation),
	}
	for _, r := range refs {
		if !finite(r.Lat) || !finite(r.Lon) {
			continue
		}
		k := ix.cellOf(r.Lat, r.Lon)
		ix.buckets[k] = append(ix.buckets[k], r)
	}
	return ix
}

// Len returns the number of indexed reference locations.
func (ix *Index) Len() int {
	n := 0
	for _, b := range ix.buckets {
		n += len(b)
	}
	return n
}

// Cells returns the number of occupied grid cells.
func (ix *Index) Cells() int {
	return len(ix.buckets)
}

// Near reports whether any reference location is strictly within the
// per-axis tolerance of the given point. It probes the point's cell and the
// eight surrounding cells and stops at the first hit.
func (ix *Index) Near(lat, lon float64) bool {
	if !finite(lat) || !finite(lon) {
		return false
	}
	c := ix.cellOf(lat, lon)
	for dlat := -1; dlat <= 1; dlat++ {
		for dlon := -1; dlon <= 1; dlon++ {
			for _, r := range ix.buckets[cell{c.lat + dlat, c.lon + dlon}] {
				if math.Abs(r.Lat-lat) < ix.tol && math.Abs(r.Lon-lon) < ix.tol {
					return true
				}
			}
		}
	}
	return false
}

// Classify returns the set of facility identifiers near any reference
// location. Records without coordinates never match. The set is rebuilt
// from scratch on every call; it is never patched incrementally.
func (ix *Index) Classify(records []model.FacilityRecord) Set {
	out := make(Set)
	for i := range records {
		r := &records[i]
		if !r.HasCoordinates() {
			continue
		}
		if out.Contains(r.NPDES) {
			continue
		}
		if ix.Near(*r.Lat, *r.Lon) {
			out[r.NPDES] = struct{}{}
		}
	}
	return out
}

func (ix *Index) cellOf(lat, lon float64) cell {
	return cell{
		lat: int(math.Round(lat * ix.scale)),
		lon: int(math.Round(lon * ix.scale)),
	}
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
