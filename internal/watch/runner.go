package watch

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ramkansal/capwatch/pkg/plugin"
)

// Resolver is the part of the resolution engine the runner needs.
type Resolver interface {
	Resolve(ctx context.Context, url string, timeout time.Duration) plugin.CapacityResult
	ResolveTjing(ctx context.Context, url string, timeout time.Duration) plugin.CapacityResult
}

// Store persists results.
type Store interface {
	Put(ctx context.Context, name, url string, r plugin.CapacityResult) error
}

// Outcome is the result of one competition.
type Outcome struct {
	Competition Competition
	Result      plugin.CapacityResult
	NearlyFull  bool
	// Err is set when the result could not be stored or the run was
	// cancelled before this competition was scheduled.
	Err error
}

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	Concurrency int
	Timeout     time.Duration
	Threshold   int
	Store       Store
	Writer      plugin.ResultWriter
	Logger      zerolog.Logger
	// OnOutcome, if set, is called once per finished competition. Calls are
	// serialized but arrive in completion order.
	OnOutcome func(Outcome)
}

// Runner drives one pass over a watch list.
type Runner struct {
	resolver Resolver
	cfg      RunnerConfig

	mu      sync.Mutex
	summary plugin.Summary
}

// NewRunner creates a Runner.
func NewRunner(r Resolver, cfg RunnerConfig) *Runner {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	return &Runner{resolver: r, cfg: cfg}
}

// NearlyFull reports whether an event is at or near capacity.
func NearlyFull(r plugin.CapacityResult, threshold int) bool {
	if r.Queued != nil && *r.Queued > 0 {
		return true
	}
	return r.Remaining != nil && *r.Remaining <= threshold
}

// Run resolves every competition and returns the outcomes in input order.
// Cancelling ctx stops scheduling; competitions already running finish and
// are stored. The returned error is ctx's error if the run was cut short.
func (r *Runner) Run(ctx context.Context, comps []Competition) ([]Outcome, error) {
	started := time.Now()
	r.mu.Lock()
	r.summary = plugin.Summary{StartedAt: started, Total: len(comps)}
	r.mu.Unlock()

	out := make([]Outcome, len(comps))
	// In-flight work outlives cancellation of ctx.
	work := context.WithoutCancel(ctx)

	// A slot is taken before scheduling so cancellation is seen while the pool is full.
	slots := make(chan struct{}, r.cfg.Concurrency)
	var g errgroup.Group

	next := 0
schedule:
	for ; next < len(comps); next++ {
		select {
		case <-ctx.Done():
			break schedule
		case slots <- struct{}{}:
		}
		if ctx.Err() != nil {
			<-slots
			break
		}
		i, comp := next, comps[next]
		g.Go(func() error {
			defer func() { <-slots }()
			out[i] = r.process(work, comp)
			return nil
		})
	}
	g.Wait()

	for i := next; i < len(comps); i++ {
		out[i] = Outcome{
			Competition: comps[i],
			Result:      plugin.Empty(plugin.FetchErrorNote(ctx.Err())),
			Err:         ctx.Err(),
		}
	}

	summary := r.finish(started)
	if r.cfg.Writer != nil {
		if err := r.cfg.Writer.Finalize(summary); err != nil {
			r.cfg.Logger.Warn().Err(err).Str("writer", r.cfg.Writer.Name()).Msg("failed to write report")
		}
	}

	if next < len(comps) {
		return out, ctx.Err()
	}
	return out, nil
}

// process resolves and stores a single competition.
func (r *Runner) process(ctx context.Context, comp Competition) Outcome {
	var res plugin.CapacityResult
	switch comp.Detect() {
	case PlatformTjing:
		res = r.resolver.ResolveTjing(ctx, comp.URL, r.cfg.Timeout)
	default:
		res = r.resolver.Resolve(ctx, comp.URL, r.cfg.Timeout)
	}

	o := Outcome{
		Competition: comp,
		Result:      res,
		NearlyFull:  NearlyFull(res, r.cfg.Threshold),
	}

	if r.cfg.Store != nil {
		if err := r.cfg.Store.Put(ctx, comp.Name, comp.URL, res); err != nil {
			r.cfg.Logger.Warn().Err(err).Str("competition", comp.Name).Msg("failed to store result")
			o.Err = err
		}
	}

	r.cfg.Logger.Debug().
		Str("competition", comp.Name).
		Stringer("note", res.Note).
		Bool("nearly_full", o.NearlyFull).
		Msg("competition resolved")

	r.mu.Lock()
	defer r.mu.Unlock()
	if res.HasData() {
		r.summary.Resolved++
	} else {
		r.summary.NoData++
	}
	if o.NearlyFull {
		r.summary.NearlyFull++
	}
	if r.cfg.Writer != nil {
		_ = r.cfg.Writer.WriteResult(comp.Name, comp.URL, res, o.NearlyFull)
	}
	if r.cfg.OnOutcome != nil {
		r.cfg.OnOutcome(o)
	}
	return o
}

// finish stamps the summary and returns a copy.
func (r *Runner) finish(started time.Time) *plugin.Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summary.FinishedAt = time.Now()
	r.summary.Duration = r.summary.FinishedAt.Sub(started)
	s := r.summary
	return &s
}

// Summary returns a copy of the counters of the last run.
func (r *Runner) Summary() plugin.Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.summary
}
