// Package fetcher downloads partition and reference data over HTTP with
// retry, per-host rate limiting, and ETag revalidation.
package fetcher

import (
	"context"
	"io"

	"github.com/rotisserie/eris"
)

// ErrNotFound marks an HTTP 404: the resource does not exist. For
// year-partitioned data this usually means "no data for that region/year"
// and callers decide whether that is fatal. It is never retried.
var ErrNotFound = eris.New("fetcher: resource not found")

// Fetcher downloads remote resources.
type Fetcher interface {
	// Fetch retrieves the URL and returns the response body.
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)

	// FetchIfChanged retrieves the URL only if the ETag has changed.
	// Returns (body, newETag, changed, error); on 304 body is nil and
	// changed is false.
	FetchIfChanged(ctx context.Context, url string, etag string) (io.ReadCloser, string, bool, error)
}
