package main

import (
	"time"

	"go.uber.org/zap"

	"github.com/kieferlin/SDLE-CASFER-WWTP/internal/cache"
	"github.com/kieferlin/SDLE-CASFER-WWTP/internal/config"
	"github.com/kieferlin/SDLE-CASFER-WWTP/internal/fetcher"
	"github.com/kieferlin/SDLE-CASFER-WWTP/internal/partition"
	"github.com/kieferlin/SDLE-CASFER-WWTP/internal/proximity"
	"github.com/kieferlin/SDLE-CASFER-WWTP/internal/refdata"
)

// viewerEnv bundles the shared components behind every command.
type viewerEnv struct {
	parts *partition.Client
	index *proximity.Index
	cache *cache.SQLiteCache
}

// initViewer builds the fetcher, optional payload cache, partition client,
// and proximity index from config. A reference registry that fails to load
// is fatal: classification cannot run without it.
func initViewer(cfg *config.Config) (*viewerEnv, error) {
	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		Timeout:    time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		MaxRetries: cfg.Fetch.MaxRetries,
	})

	env := &viewerEnv{}

	var payloadCache partition.PayloadCache
	if cfg.Data.CachePath != "" {
		c, err := cache.Open(cfg.Data.CachePath)
		if err != nil {
			return nil, err
		}
		env.cache = c
		payloadCache = c
	}

	env.parts = partition.NewClient(f, partition.ClientOptions{
		BaseURL:     cfg.Data.BaseURL,
		Concurrency: cfg.Fetch.Concurrency,
		Cache:       payloadCache,
	})

	refs, err := refdata.LoadFile(cfg.Reference.Path, cfg.Reference.LatCol, cfg.Reference.LonCol)
	if err != nil {
		return nil, err
	}
	env.index = proximity.NewIndex(refs, proximity.DefaultTolerance)

	zap.L().Info("viewer initialized",
		zap.Int("reference_locations", env.index.Len()),
		zap.Bool("payload_cache", payloadCache != nil),
	)
	return env, nil
}

// Close releases the payload cache, if open.
func (e *viewerEnv) Close() {
	if e.cache != nil {
		_ = e.cache.Close()
	}
}
