package fetcher

import (
	"context"
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
)

// DecodeJSON decodes a single JSON value from a reader.
func DecodeJSON[T any](r io.Reader) (T, error) {
	var v T
	if err := json.NewDecoder(r).Decode(&v); err != nil {
		return v, eris.Wrap(err, "json: decode")
	}
	return v, nil
}

// FetchJSON downloads a URL and decodes its JSON body.
func FetchJSON[T any](ctx context.Context, f Fetcher, url string) (T, error) {
	var zero T
	body, err := f.Fetch(ctx, url)
	if err != nil {
		return zero, err
	}
	defer body.Close() //nolint:errcheck
	return DecodeJSON[T](body)
}
