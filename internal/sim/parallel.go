package sim

import (
	"context"
	"errors"
	"runtime"

	"github.com/go-logr/logr"
	"github.com/san-kum/sphsim/internal/sph"
	"golang.org/x/sync/errgroup"
)

// Ensemble runs independent simulations concurrently, one State per
// parameter set.
type Ensemble struct {
	// Setup, when set, adjusts each freshly built State before its run.
	Setup func(run int, st *sph.State)

	newMetrics func() []Metric
	limit      int
	log        logr.Logger
}

// NewEnsemble builds an ensemble. newMetrics is called once per run so
// runs never share metric state; it may be nil.
func NewEnsemble(log logr.Logger, newMetrics func() []Metric) *Ensemble {
	return &Ensemble{newMetrics: newMetrics, limit: runtime.GOMAXPROCS(0), log: log}
}

// SetLimit caps the number of concurrent runs.
func (e *Ensemble) SetLimit(n int) {
	if n > 0 {
		e.limit = n
	}
}

// Run returns results in the order of params. A run that diverges keeps
// its partial result with the SimError in Result.Errors; any other
// failure cancels the remaining runs.
func (e *Ensemble) Run(ctx context.Context, params []sph.Params, cfg Config) ([]*Result, error) {
	results := make([]*Result, len(params))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.limit)

	for i, p := range params {
		g.Go(func() error {
			st, err := sph.New(p)
			if err != nil {
				return err
			}
			if e.Setup != nil {
				e.Setup(i, st)
			}

			sim := New(e.log.WithValues("run", i))
			if e.newMetrics != nil {
				for _, m := range e.newMetrics() {
					sim.AddMetric(m)
				}
			}

			res, err := sim.Run(ctx, st, cfg)
			if err != nil && !errors.Is(err, ErrUnstable) {
				return err
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
