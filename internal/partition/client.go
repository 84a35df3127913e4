package partition

import (
	"bytes"
	"context"
	"io"
	"sort"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kieferlin/SDLE-CASFER-WWTP/internal/fetcher"
	"github.com/kieferlin/SDLE-CASFER-WWTP/internal/model"
)

// PayloadCache stores raw partition payloads keyed by URL together with the
// ETag they were fetched under.
type PayloadCache interface {
	Get(ctx context.Context, url string) (body []byte, etag string, ok bool, err error)
	Put(ctx context.Context, url string, etag string, body []byte) error
}

// ProgressFunc receives aggregation progress. It is called once per settled
// partition with a strictly increasing done count ending at (total, total).
type ProgressFunc func(done, total int)

// FetchReport describes the outcome of an all-region aggregation.
type FetchReport struct {
	Total   int      // partitions attempted
	Missing []string // regions whose partition returned not-found, sorted
}

// ClientOptions configures a partition Client.
type ClientOptions struct {
	BaseURL     string
	Concurrency int          // concurrent region fetches (default 8)
	Cache       PayloadCache // optional payload cache with ETag revalidation
}

// Client fetches and decodes partition files.
type Client struct {
	f    fetcher.Fetcher
	opts ClientOptions
	log  *zap.Logger
}

// NewClient creates a partition client over the given fetcher.
func NewClient(f fetcher.Fetcher, opts ClientOptions) *Client {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}
	return &Client{
		f:    f,
		opts: opts,
		log:  zap.L().With(zap.String("component", "partition.client")),
	}
}

// FetchRegion fetches and decodes one region's partition for a year. A
// missing partition or transport failure surfaces as an error naming the
// region and year; not-found remains detectable via fetcher.ErrNotFound.
func (c *Client) FetchRegion(ctx context.Context, region, year string) ([]model.FacilityRecord, error) {
	if !IsRegion(region) {
		return nil, eris.Errorf("partition: unknown region %q", region)
	}

	url := URL(c.opts.BaseURL, region, year)
	payload, err := c.payload(ctx, url)
	if err != nil {
		return nil, eris.Wrapf(err, "partition: fetch region %s year %s", region, year)
	}

	records, err := fetcher.DecodeJSON[[]model.FacilityRecord](bytes.NewReader(payload))
	if err != nil {
		return nil, eris.Wrapf(err, "partition: decode region %s year %s", region, year)
	}
	return records, nil
}

// FetchAll fetches every region's partition for a year concurrently and
// merges the successful payloads in Regions order. A not-found partition is
// an empty result and is recorded in the report; any other failure aborts
// the aggregation. The merge runs only after all fetches have settled.
func (c *Client) FetchAll(ctx context.Context, year string, progress ProgressFunc) ([]model.FacilityRecord, *FetchReport, error) {
	total := len(Regions)
	slots := make([][]model.FacilityRecord, total)
	report := &FetchReport{Total: total}

	var (
		mu   sync.Mutex
		done int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Concurrency)

	for i, region := range Regions {
		i, region := i, region
		g.Go(func() error {
			records, err := c.FetchRegion(gctx, region, year)
			if err != nil && !eris.Is(err, fetcher.ErrNotFound) {
				return err
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				// No data for this region/year. Tolerated, not fatal.
				report.Missing = append(report.Missing, region)
				c.log.Debug("partition missing",
					zap.String("region", region),
					zap.String("year", year),
				)
			} else {
				slots[i] = records
			}
			done++
			if progress != nil {
				progress(done, total)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, eris.Wrapf(err, "partition: aggregate year %s", year)
	}

	if len(report.Missing) == total {
		return nil, nil, eris.Errorf("partition: no partitions found for year %s", year)
	}

	sort.Strings(report.Missing)

	var merged []model.FacilityRecord
	for _, s := range slots {
		merged = append(merged, s...)
	}

	c.log.Info("all-region aggregation complete",
		zap.String("year", year),
		zap.Int("regions", total),
		zap.Int("missing", len(report.Missing)),
		zap.Int("records", len(merged)),
	)
	return merged, report, nil
}

// payload returns the raw partition body, consulting the cache when one is
// configured. Cached bodies are revalidated by ETag; a 304 serves the
// cached copy without a transfer.
func (c *Client) payload(ctx context.Context, url string) ([]byte, error) {
	if c.opts.Cache == nil {
		body, err := c.f.Fetch(ctx, url)
		if err != nil {
			return nil, err
		}
		defer body.Close() //nolint:errcheck
		return io.ReadAll(body)
	}

	cached, etag, ok, err := c.opts.Cache.Get(ctx, url)
	if err != nil {
		c.log.Warn("payload cache read failed", zap.String("url", url), zap.Error(err))
		ok = false
	}

	if !ok {
		etag = ""
	}
	body, newETag, changed, err := c.f.FetchIfChanged(ctx, url, etag)
	if err != nil {
		return nil, err
	}
	if !changed {
		return cached, nil
	}
	defer body.Close() //nolint:errcheck

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, eris.Wrap(err, "read payload")
	}
	if err := c.opts.Cache.Put(ctx, url, newETag, data); err != nil {
		c.log.Warn("payload cache write failed", zap.String("url", url), zap.Error(err))
	}
	return data, nil
}
