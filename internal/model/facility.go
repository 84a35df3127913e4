// Package model defines the facility, reference-location, and view-state
// types shared by the fetch, classification, and filter layers.
package model

// Measurement is a single reported discharge value for a monitoring period.
// Date is the raw "MM/DD/YYYY" string from the DMR extract; Value keeps the
// reported string form (units live on the parent record).
type Measurement struct {
	Date  string `json:"date"`
	Value string `json:"value"`
}

// FacilityRecord is one (permit, pollutant) series from a partition file.
// Lat/Lon are nil for facilities the ECHO registry has no coordinates for;
// such records are excluded from spatial operations but still counted.
type FacilityRecord struct {
	NPDES        string        `json:"npdes"`
	Pollutant    string        `json:"pollutant"`
	Unit         string        `json:"unit"`
	Lat          *float64      `json:"lat"`
	Lon          *float64      `json:"lon"`
	Measurements []Measurement `json:"measurements"`
}

// HasCoordinates reports whether the record can participate in spatial
// classification and map plotting.
func (r *FacilityRecord) HasCoordinates() bool {
	return r.Lat != nil && r.Lon != nil
}

// ReferenceLocation is one anaerobic-digestion site from the reference
// registry. Identity is positional; the registry's names and addresses are
// not needed for proximity matching.
type ReferenceLocation struct {
	Lat float64
	Lon float64
}
