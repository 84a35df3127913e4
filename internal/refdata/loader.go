// Package refdata loads the anaerobic-digestion reference registry: a
// delimited text file whose fixed columns hold facility latitude and
// longitude.
package refdata

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/kieferlin/SDLE-CASFER-WWTP/internal/model"
)

// Column positions of latitude and longitude in the current registry schema
// (zero-based).
const (
	DefaultLatColumn = 11
	DefaultLonColumn = 12
)

// Load reads reference locations from delimited text. The first row is a
// header and is skipped. Rows that are too short or whose coordinate fields
// fail numeric parse are dropped; a malformed row never aborts the load.
func Load(r io.Reader, latCol, lonCol int) ([]model.ReferenceLocation, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var (
		refs    []model.ReferenceLocation
		dropped int
		first   = true
	)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "refdata: read row")
		}
		if first {
			first = false
			continue
		}

		if len(row) <= latCol || len(row) <= lonCol {
			dropped++
			continue
		}
		lat, latErr := strconv.ParseFloat(row[latCol], 64)
		lon, lonErr := strconv.ParseFloat(row[lonCol], 64)
		if latErr != nil || lonErr != nil {
			dropped++
			continue
		}
		refs = append(refs, model.ReferenceLocation{Lat: lat, Lon: lon})
	}

	zap.L().Debug("reference registry loaded",
		zap.Int("locations", len(refs)),
		zap.Int("dropped_rows", dropped),
	)
	return refs, nil
}

// LoadFile loads reference locations from a file on disk. Failure to open
// or read the registry is fatal to the caller: proximity classification
// cannot run without it.
func LoadFile(path string, latCol, lonCol int) ([]model.ReferenceLocation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "refdata: open registry %s", path)
	}
	defer f.Close() //nolint:errcheck

	refs, err := Load(f, latCol, lonCol)
	if err != nil {
		return nil, eris.Wrapf(err, "refdata: load registry %s", path)
	}
	return refs, nil
}
