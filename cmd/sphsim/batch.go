package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/san-kum/sphsim/internal/automation"
	"github.com/san-kum/sphsim/internal/config"
	"github.com/san-kum/sphsim/internal/metrics"
	"github.com/san-kum/sphsim/internal/optim"
	"github.com/san-kum/sphsim/internal/sim"
	"github.com/san-kum/sphsim/internal/storage"
	"github.com/spf13/cobra"
)

var (
	workers   int
	sweepMin  float64
	sweepMax  float64
	numSteps  int
	jitter    float64
	trials    int
	metric    string
	gridSpecs []string
)

var metricFactories = map[string]func() sim.Metric{
	"energy":        func() sim.Metric { return metrics.NewEnergy() },
	"energy_drift":  func() sim.Metric { return metrics.NewEnergyDrift() },
	"density_error": func() sim.Metric { return metrics.NewDensityError() },
	"peak_speed":    func() sim.Metric { return metrics.NewPeakSpeed() },
	"cell_load":     func() sim.Metric { return metrics.NewCellLoad() },
}

func batchCommands() []*cobra.Command {
	scenarioCmd := &cobra.Command{
		Use:   "scenario [file]",
		Short: "run a scripted sequence of simulations and record each",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}

	sweepCmd := &cobra.Command{
		Use:   "sweep [param]",
		Short: "run one simulation per value of a parameter",
		Args:  cobra.ExactArgs(1),
		RunE:  runSweep,
	}
	addParamFlags(sweepCmd)
	sweepCmd.Flags().IntVar(&frames, "frames", config.DefaultFrames, "frames per run")
	sweepCmd.Flags().Float64Var(&sweepMin, "min", 0, "first value")
	sweepCmd.Flags().Float64Var(&sweepMax, "max", 1, "last value")
	sweepCmd.Flags().IntVar(&numSteps, "steps", 5, "number of values")
	sweepCmd.Flags().IntVar(&workers, "workers", 0, "concurrent runs (0 = GOMAXPROCS)")

	mcCmd := &cobra.Command{
		Use:   "montecarlo",
		Short: "repeat a run from randomly perturbed layouts",
		Args:  cobra.NoArgs,
		RunE:  runMonteCarlo,
	}
	addParamFlags(mcCmd)
	mcCmd.Flags().IntVar(&frames, "frames", config.DefaultFrames, "frames per trial")
	mcCmd.Flags().Int64Var(&seed, "seed", 0, "base seed")
	mcCmd.Flags().Float64Var(&jitter, "jitter", 0.1, "position jitter in units of h")
	mcCmd.Flags().IntVar(&trials, "trials", 8, "number of trials")
	mcCmd.Flags().IntVar(&workers, "workers", 0, "concurrent runs (0 = GOMAXPROCS)")

	searchCmd := &cobra.Command{
		Use:     "search",
		Short:   "grid search parameters minimizing a metric",
		Example: "  sphsim search --grid tait_c=5,10,20 --grid h=0.2,0.3 --metric density_error",
		Args:    cobra.NoArgs,
		RunE:    runSearch,
	}
	addParamFlags(searchCmd)
	searchCmd.Flags().IntVar(&frames, "frames", config.DefaultFrames, "frames per run")
	searchCmd.Flags().StringArrayVar(&gridSpecs, "grid", nil, "name=v1,v2,... (repeatable)")
	searchCmd.Flags().StringVar(&metric, "metric", "density_error", "metric to minimize")
	searchCmd.Flags().IntVar(&workers, "workers", 0, "concurrent runs (0 = GOMAXPROCS)")

	return []*cobra.Command{scenarioCmd, sweepCmd, mcCmd, searchCmd}
}

func runScenario(cmd *cobra.Command, args []string) error {
	sc, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}

	store := storage.New(dataDir)
	store.SetLogger(log.WithName("storage"))
	if err := store.Init(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("scenario %s: %s\n", sc.Name, sc.Description)
	_, err = automation.RunScenario(ctx, sc, log.WithName("scenario"), func(i int, r automation.StepResult) error {
		runID, err := store.Save(r.Name, r.Config.Seed, r.Result, r.Final)
		if err != nil {
			return err
		}
		fmt.Printf("  [%d/%d] %s: %d frames, peak speed %.3f -> %s\n",
			i+1, len(sc.Steps), r.Name, r.Result.FramesTaken, r.Result.Metrics["peak_speed"], runID)
		return nil
	})
	return err
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	sw := &automation.ParameterSweep{
		Base:      cfg,
		ParamName: args[0],
		ParamMin:  sweepMin,
		ParamMax:  sweepMax,
		NumSteps:  numSteps,
	}
	results, err := automation.RunSweep(cmd.Context(), sw, workers, log.WithName("sweep"))
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\tPEAK SPEED\tDENSITY ERR\tFINAL KE\tSTABLE\n", strings.ToUpper(args[0]))
	for _, r := range results {
		fmt.Fprintf(w, "%g\t%.4f\t%.4f\t%.6f\t%v\n", r.ParamValue, r.PeakSpeed, r.DensityError, r.FinalKinetic, r.Stable)
	}
	return w.Flush()
}

func runMonteCarlo(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	mc := &automation.MonteCarloConfig{Base: cfg, Jitter: jitter, NumTrials: trials, Seed: cfg.Seed}
	results, err := automation.RunMonteCarlo(cmd.Context(), mc, workers, log.WithName("montecarlo"))
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TRIAL\tPEAK SPEED\tDENSITY ERR\tSTABLE")
	for _, r := range results {
		fmt.Fprintf(w, "%d\t%.4f\t%.4f\t%v\n", r.TrialID, r.PeakSpeed, r.DensityError, r.Stable)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	stable, unstable := automation.MonteCarloStats(results)
	fmt.Printf("\n%d stable, %d diverged\n", stable, unstable)
	return nil
}

// parseGrid turns "name=v1,v2" specs into parallel name and value lists.
func parseGrid(specs []string) ([]string, [][]float64, error) {
	names := make([]string, 0, len(specs))
	ranges := make([][]float64, 0, len(specs))
	for _, spec := range specs {
		name, list, ok := strings.Cut(spec, "=")
		if !ok || name == "" {
			return nil, nil, fmt.Errorf("bad grid spec %q, want name=v1,v2", spec)
		}
		var vals []float64
		for _, s := range strings.Split(list, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, nil, fmt.Errorf("grid %s: %w", name, err)
			}
			vals = append(vals, v)
		}
		names = append(names, name)
		ranges = append(ranges, vals)
	}
	return names, ranges, nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	newMetric, ok := metricFactories[metric]
	if !ok {
		names := make([]string, 0, len(metricFactories))
		for k := range metricFactories {
			names = append(names, k)
		}
		sort.Strings(names)
		return fmt.Errorf("unknown metric: %s (available: %v)", metric, names)
	}
	if len(gridSpecs) == 0 {
		return fmt.Errorf("at least one --grid is required")
	}

	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	names, ranges, err := parseGrid(gridSpecs)
	if err != nil {
		return err
	}

	g := optim.NewGridSearch(names, ranges)
	fmt.Printf("searching %d combinations for minimum %s...\n", g.Size(), metric)
	best, all, err := g.Search(cmd.Context(), cfg, newMetric, workers, log.WithName("search"))
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\t%s\n", strings.ToUpper(strings.Join(names, "\t")), strings.ToUpper(metric))
	for _, c := range all {
		row := make([]string, len(names))
		for i, n := range names {
			row[i] = strconv.FormatFloat(c.Params[n], 'g', -1, 64)
		}
		fmt.Fprintf(w, "%s\t%.6f\n", strings.Join(row, "\t"), c.Value)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\nbest: %v (%s = %.6f)\n", best.Params, metric, best.Value)
	return nil
}
