// Package partition resolves and fetches the year/region partition files
// produced by the DMR aggregation pipeline.
//
// Partitions live at {base}/{label}/{region}_{label}.json. The label is the
// four-digit year for 2009 onward; everything earlier collapses into the
// consolidated PREFY2009 dataset, mirroring the upstream ECHO file naming.
package partition

import (
	"fmt"
	"strconv"
)

// PreCutoffLabel is the shared partition label for years before the cutoff.
const PreCutoffLabel = "PREFY2009"

// cutoffYear is the first fiscal year with its own partition.
const cutoffYear = 2009

// AllRegions is the sentinel region code meaning "every region".
const AllRegions = "ALL"

// Regions is the fixed set of region codes the producers emit partitions
// for, in iteration order. Merged all-region results follow this order.
var Regions = []string{
	"AL", "AR", "AZ", "CA", "CO", "CT", "DC", "DE", "FL", "GA",
	"IA", "ID", "IL", "IN", "KS", "KY", "LA", "MA", "MD", "ME",
	"MI", "MN", "MO", "MS", "MT", "NC", "ND", "NE", "NH", "NJ",
	"NM", "NV", "NY", "OH", "OK", "OR", "PA", "RI", "SC", "SD",
	"TN", "TX", "UT", "VA", "VT", "WA", "WI", "WV", "WY",
}

var regionSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(Regions))
	for _, r := range Regions {
		m[r] = struct{}{}
	}
	return m
}()

// IsRegion reports whether code is a known region code.
func IsRegion(code string) bool {
	_, ok := regionSet[code]
	return ok
}

// Label maps a year string to its partition directory label. Years before
// the cutoff share PreCutoffLabel; non-numeric input is returned unchanged
// so a caller can pass a label through.
func Label(year string) string {
	y, err := strconv.Atoi(year)
	if err != nil {
		return year
	}
	if y < cutoffYear {
		return PreCutoffLabel
	}
	return year
}

// URL builds the partition resource path for a region and year.
func URL(base, region, year string) string {
	label := Label(year)
	return fmt.Sprintf("%s/%s/%s_%s.json", base, label, region, label)
}
