package optim

import (
	"context"
	"fmt"
	"math"

	"github.com/go-logr/logr"
	"github.com/san-kum/sphsim/internal/config"
	"github.com/san-kum/sphsim/internal/sim"
	"github.com/san-kum/sphsim/internal/sph"
)

// GridSearch evaluates every combination of the given parameter values
// and keeps the one minimizing a metric.
type GridSearch struct {
	paramNames []string
	ranges     [][]float64
}

func NewGridSearch(params []string, ranges [][]float64) *GridSearch {
	return &GridSearch{paramNames: params, ranges: ranges}
}

// Candidate is one evaluated grid point.
type Candidate struct {
	Params map[string]float64
	Value  float64
}

// Size returns the number of grid points.
func (g *GridSearch) Size() int {
	n := 1
	for _, r := range g.ranges {
		n *= len(r)
	}
	return n
}

func (g *GridSearch) points() []map[string]float64 {
	points := make([]map[string]float64, 0, g.Size())
	var walk func(depth int, current map[string]float64)
	walk = func(depth int, current map[string]float64) {
		if depth == len(g.paramNames) {
			points = append(points, current)
			return
		}
		for _, val := range g.ranges[depth] {
			next := make(map[string]float64, len(current)+1)
			for k, v := range current {
				next[k] = v
			}
			next[g.paramNames[depth]] = val
			walk(depth+1, next)
		}
	}
	walk(0, map[string]float64{})
	return points
}

// Search runs every grid point from base concurrently and returns the
// best candidate together with all of them in grid order. Diverged runs
// score +Inf.
func (g *GridSearch) Search(ctx context.Context, base *config.Config, newMetric func() sim.Metric, workers int, log logr.Logger) (Candidate, []Candidate, error) {
	if len(g.paramNames) != len(g.ranges) {
		return Candidate{}, nil, fmt.Errorf("%d parameter names for %d ranges", len(g.paramNames), len(g.ranges))
	}
	if g.Size() == 0 {
		return Candidate{}, nil, fmt.Errorf("empty search grid")
	}

	points := g.points()
	params := make([]sph.Params, len(points))
	for i, pt := range points {
		cfg := *base
		for k, v := range pt {
			if err := cfg.SetParam(k, v); err != nil {
				return Candidate{}, nil, err
			}
		}
		if err := cfg.Validate(); err != nil {
			return Candidate{}, nil, fmt.Errorf("grid point %v: %w", pt, err)
		}
		params[i] = cfg.Params()
	}

	name := newMetric().Name()
	ens := sim.NewEnsemble(log, func() []sim.Metric { return []sim.Metric{newMetric()} })
	ens.SetLimit(workers)
	runs, err := ens.Run(ctx, params, sim.Config{Frames: base.Frames, ValidateState: true})
	if err != nil {
		return Candidate{}, nil, err
	}

	all := make([]Candidate, len(runs))
	best := Candidate{Value: math.Inf(1)}
	for i, r := range runs {
		val := r.Metrics[name]
		if len(r.Errors) > 0 || math.IsNaN(val) {
			val = math.Inf(1)
		}
		all[i] = Candidate{Params: points[i], Value: val}
		if best.Params == nil || val < best.Value {
			best = all[i]
		}
	}
	return best, all, nil
}
