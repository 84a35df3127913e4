package model

import "github.com/rotisserie/eris"

// ClassFilter selects how proximity classification restricts the display set.
type ClassFilter int

const (
	// ClassAll passes every record regardless of classification.
	ClassAll ClassFilter = iota
	// ClassOnly keeps records classified as near a reference location.
	ClassOnly
	// ClassExclude keeps records not classified as near a reference location.
	ClassExclude
)

// String returns the query-string token for the filter.
func (f ClassFilter) String() string {
	switch f {
	case ClassOnly:
		return "only"
	case ClassExclude:
		return "exclude"
	default:
		return "all"
	}
}

// ParseClassFilter parses a query-string token. Empty input means ClassAll.
func ParseClassFilter(s string) (ClassFilter, error) {
	switch s {
	case "", "all":
		return ClassAll, nil
	case "only":
		return ClassOnly, nil
	case "exclude":
		return ClassExclude, nil
	default:
		return ClassAll, eris.Errorf("model: unknown class filter %q", s)
	}
}

// AppState is the canonical view selection. It has a single writer (the
// reconciler); everything else receives copies.
type AppState struct {
	Pollutant string      // display name, empty = no pollutant filter
	Region    string      // region code, empty = not selected, "ALL" = all regions
	Year      string      // four-digit year string, empty = not selected
	Class     ClassFilter // proximity class filter
}
