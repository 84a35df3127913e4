// Package reconciler owns the canonical view selection and keeps it, the
// displayed result set, and the restorable query representation consistent
// under rapid, possibly overlapping control changes.
//
// Every request is tagged with a generation; a settlement whose generation
// is no longer current is dropped silently at the point of application, so
// a late-arriving superseded response is never rendered and never touches
// shared state.
package reconciler

import (
	"context"
	"net/url"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kieferlin/SDLE-CASFER-WWTP/internal/model"
	"github.com/kieferlin/SDLE-CASFER-WWTP/internal/partition"
	"github.com/kieferlin/SDLE-CASFER-WWTP/internal/pipeline"
	"github.com/kieferlin/SDLE-CASFER-WWTP/internal/proximity"
)

// Phase is the reconciler's lifecycle state.
type Phase int

const (
	// PhaseIdle means no region+year selection is active.
	PhaseIdle Phase = iota
	// PhaseLoading means a fetch/classify/filter cycle is in flight.
	PhaseLoading
	// PhaseReady means the display set is computed and rendered.
	PhaseReady
	// PhaseError means the last cycle failed and rendering was cleared.
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	case PhaseError:
		return "error"
	default:
		return "idle"
	}
}

// Result is one resolved query epoch: the merged record collection, its
// classification set, and the filtered display set.
type Result struct {
	Records []model.FacilityRecord
	Display []model.FacilityRecord
	Near    proximity.Set
	Report  *partition.FetchReport // nil for single-region queries
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithQueryMirror registers the hook that receives the restorable query
// representation after every state mutation.
func WithQueryMirror(fn func(url.Values)) Option {
	return func(c *Reconciler) { c.onQuery = fn }
}

// Reconciler is the single writer of AppState. All control changes funnel
// through one reconciliation entry point; epoch data (merged records,
// classification set, display set) belongs to the current generation and is
// replaced wholesale, never partially mutated.
type Reconciler struct {
	parts    *partition.Client
	index    *proximity.Index
	renderer Renderer
	onQuery  func(url.Values)
	log      *zap.Logger

	mu      sync.Mutex
	state   model.AppState
	phase   Phase
	gen     uint64
	epoch   string // region|year key of the epoch data below
	records []model.FacilityRecord
	near    proximity.Set
	display []model.FacilityRecord

	// classCache holds classification sets per region|year for the session.
	// Partitions are static per deployment, so a recomputation for the same
	// scope would reproduce the same set.
	classCache map[string]proximity.Set

	loads sync.WaitGroup
}

// New creates a Reconciler. A nil renderer falls back to NopRenderer.
func New(parts *partition.Client, index *proximity.Index, r Renderer, opts ...Option) *Reconciler {
	if r == nil {
		r = NopRenderer{}
	}
	c := &Reconciler{
		parts:      parts,
		index:      index,
		renderer:   r,
		log:        zap.L().With(zap.String("component", "reconciler")),
		classCache: make(map[string]proximity.Set),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns a copy of the current selection.
func (c *Reconciler) State() model.AppState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Phase returns the current lifecycle phase.
func (c *Reconciler) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Display returns the current display set.
func (c *Reconciler) Display() []model.FacilityRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.display
}

// Query returns the restorable query representation of the current state.
func (c *Reconciler) Query() url.Values {
	c.mu.Lock()
	defer c.mu.Unlock()
	return EncodeQuery(c.state)
}

// Restore seeds AppState from a restorable query. It does not trigger a
// transition; call Reconcile afterwards to fire the first one.
func (c *Reconciler) Restore(q url.Values) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = DecodeQuery(q)
}

// Reconcile re-evaluates the current selection without changing it.
func (c *Reconciler) Reconcile(ctx context.Context) {
	c.apply(ctx, func(*model.AppState) {})
}

// SetYear updates the selected year.
func (c *Reconciler) SetYear(ctx context.Context, year string) {
	c.apply(ctx, func(s *model.AppState) { s.Year = year })
}

// SetRegion updates the selected region code (or partition.AllRegions).
func (c *Reconciler) SetRegion(ctx context.Context, region string) {
	c.apply(ctx, func(s *model.AppState) { s.Region = region })
}

// SetPollutant updates the pollutant filter.
func (c *Reconciler) SetPollutant(ctx context.Context, pollutant string) {
	c.apply(ctx, func(s *model.AppState) { s.Pollutant = pollutant })
}

// SetClassFilter updates the proximity-class filter.
func (c *Reconciler) SetClassFilter(ctx context.Context, f model.ClassFilter) {
	c.apply(ctx, func(s *model.AppState) { s.Class = f })
}

// WaitIdle blocks until no load is in flight. Test and CLI support.
func (c *Reconciler) WaitIdle() {
	c.loads.Wait()
}

// apply is the single reconciliation entry point: mutate state, bump the
// generation, mirror the query representation, then transition.
func (c *Reconciler) apply(ctx context.Context, mutate func(*model.AppState)) {
	c.mu.Lock()
	mutate(&c.state)
	c.gen++
	gen := c.gen
	st := c.state
	sameScope := c.phase == PhaseReady && c.epoch == epochKey(st)

	if c.onQuery != nil {
		c.onQuery(EncodeQuery(st))
	}

	// No full selection: go Idle and clear everything.
	if st.Region == "" || st.Year == "" {
		c.phase = PhaseIdle
		c.dropEpochLocked()
		c.renderer.ClearRendering()
		c.renderer.ReportCount(0)
		c.mu.Unlock()
		return
	}

	// Pollutant/class-only change within the same region/year: re-filter the
	// cached epoch synchronously, no refetch, no reclassification.
	if sameScope {
		c.display = pipeline.Filter(c.records, pipeline.Options{
			Pollutant: st.Pollutant,
			Year:      st.Year,
			Class:     st.Class,
			Near:      c.near,
		})
		c.renderer.RenderDisplaySet(c.display)
		c.renderer.ReportCount(len(c.display))
		c.mu.Unlock()
		return
	}

	c.phase = PhaseLoading
	c.mu.Unlock()

	epochID := uuid.NewString()
	c.log.Info("query epoch started",
		zap.String("epoch_id", epochID),
		zap.Uint64("generation", gen),
		zap.String("region", st.Region),
		zap.String("year", st.Year),
	)

	c.loads.Add(1)
	go func() {
		defer c.loads.Done()
		c.load(ctx, gen, epochID, st)
	}()
}

// load runs one generation's fetch/classify/filter cycle and applies the
// outcome only if the generation is still current.
func (c *Reconciler) load(ctx context.Context, gen uint64, epochID string, st model.AppState) {
	progress := func(done, total int) {
		c.mu.Lock()
		current := c.gen == gen
		if current {
			c.renderer.ReportProgress(done, total)
		}
		c.mu.Unlock()
	}

	res, err := c.resolve(ctx, st, progress)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		// Superseded while in flight: drop the settlement, success or not.
		c.log.Debug("stale settlement dropped",
			zap.String("epoch_id", epochID),
			zap.Uint64("generation", gen),
			zap.Uint64("current", c.gen),
		)
		return
	}

	if err != nil {
		c.phase = PhaseError
		c.dropEpochLocked()
		c.renderer.ClearRendering()
		c.renderer.ReportError(err.Error())
		c.renderer.ReportCount(0)
		c.log.Warn("query epoch failed",
			zap.String("epoch_id", epochID),
			zap.Error(err),
		)
		return
	}

	c.phase = PhaseReady
	c.epoch = epochKey(st)
	c.records = res.Records
	c.near = res.Near
	c.display = res.Display
	c.renderer.RenderDisplaySet(c.display)
	c.renderer.ReportCount(len(c.display))
	c.log.Info("query epoch ready",
		zap.String("epoch_id", epochID),
		zap.Int("records", len(res.Records)),
		zap.Int("display", len(res.Display)),
	)
}

// Resolve runs the stateless fetch/classify/filter path for an arbitrary
// selection, sharing the session classification cache. The HTTP API uses
// this directly; the control path goes through load.
func (c *Reconciler) Resolve(ctx context.Context, st model.AppState) (*Result, error) {
	return c.resolve(ctx, st, nil)
}

func (c *Reconciler) resolve(ctx context.Context, st model.AppState, progress partition.ProgressFunc) (*Result, error) {
	var (
		records []model.FacilityRecord
		report  *partition.FetchReport
		err     error
	)
	if st.Region == partition.AllRegions {
		records, report, err = c.parts.FetchAll(ctx, st.Year, progress)
	} else {
		records, err = c.parts.FetchRegion(ctx, st.Region, st.Year)
		if err == nil && progress != nil {
			progress(1, 1)
		}
	}
	if err != nil {
		return nil, err
	}

	near := c.classification(epochKey(st), records)
	display := pipeline.Filter(records, pipeline.Options{
		Pollutant: st.Pollutant,
		Year:      st.Year,
		Class:     st.Class,
		Near:      near,
	})
	return &Result{Records: records, Display: display, Near: near, Report: report}, nil
}

// classification returns the session-cached classification set for a
// region/year scope, computing and caching it on first use. The set is
// always rebuilt from the full merged collection, never patched.
func (c *Reconciler) classification(key string, records []model.FacilityRecord) proximity.Set {
	c.mu.Lock()
	if s, ok := c.classCache[key]; ok {
		c.mu.Unlock()
		return s
	}
	c.mu.Unlock()

	s := c.index.Classify(records)

	c.mu.Lock()
	c.classCache[key] = s
	c.mu.Unlock()
	return s
}

func (c *Reconciler) dropEpochLocked() {
	c.epoch = ""
	c.records = nil
	c.near = nil
	c.display = nil
}

func epochKey(st model.AppState) string {
	return st.Region + "|" + st.Year
}
