package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-logr/logr"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/sphsim/internal/analysis"
	"github.com/san-kum/sphsim/internal/config"
	"github.com/san-kum/sphsim/internal/logging"
	"github.com/san-kum/sphsim/internal/metrics"
	"github.com/san-kum/sphsim/internal/sim"
	"github.com/san-kum/sphsim/internal/sph"
	"github.com/san-kum/sphsim/internal/storage"
	"github.com/san-kum/sphsim/internal/stream"
	"github.com/san-kum/sphsim/internal/viz"
	"github.com/spf13/cobra"
)

var (
	dataDir   string
	verbosity int

	configFile  string
	preset      string
	writeConfig string

	particles     int
	smoothing     float64
	gravity       float64
	dt            float64
	stepsPerFrame int
	dim           int
	frames        int
	recordUntil   int
	seed          int64

	series   string
	output   string
	asF32    bool
	addr     string
	fps      int
	serve    string
	parallel int

	benchFrames int

	log logr.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "sphsim",
		Short: "2D smoothed particle hydrodynamics lab",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log = logging.New(os.Stderr, verbosity)
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".sphsim", "data directory")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "log verbosity (repeat for more)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run a simulation and record it",
		Args:  cobra.NoArgs,
		RunE:  runSimulation,
	}
	addParamFlags(runCmd)
	runCmd.Flags().IntVar(&frames, "frames", config.DefaultFrames, "frames to simulate")
	runCmd.Flags().IntVar(&recordUntil, "record-until", 0, "stop recording after this many frames (0 = all)")
	runCmd.Flags().Int64Var(&seed, "seed", 0, "seed recorded with the run")
	runCmd.Flags().StringVar(&writeConfig, "write-config", "", "save the resolved configuration to this file")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list recorded runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot the recorded frame series",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&series, "series", "all", "series to plot: kinetic, density, speed or all")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "print run metadata as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run metadata and frame series to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}

	exportBinCmd := &cobra.Command{
		Use:   "export-bin [run_id]",
		Short: "export the final flat state buffer",
		Args:  cobra.ExactArgs(1),
		RunE:  exportBin,
	}
	exportBinCmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	exportBinCmd.Flags().BoolVar(&asF32, "float32", false, "write header-less little-endian float32 instead of the framed float64 format")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "summarize series and find the sloshing frequency",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}

	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "measure step throughput across particle counts",
		Args:  cobra.NoArgs,
		RunE:  benchParticles,
	}
	benchCmd.Flags().IntVar(&benchFrames, "frames", 20, "frames per measurement")
	benchCmd.Flags().IntVar(&parallel, "parallel", 0, "also run every size concurrently with this many workers (0 = skip)")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		Args:  cobra.NoArgs,
		RunE:  listPresets,
	}

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "watch a simulation in the terminal",
		Args:  cobra.NoArgs,
		RunE:  runLive,
	}
	addParamFlags(liveCmd)
	liveCmd.Flags().StringVar(&serve, "serve", "", "also stream frames on this address")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "stream frames to websocket clients",
		Args:  cobra.NoArgs,
		RunE:  runServer,
	}
	addParamFlags(serveCmd)
	serveCmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	serveCmd.Flags().IntVar(&fps, "fps", 30, "frames per second")

	rootCmd.AddCommand(runCmd, listCmd, plotCmd, exportCmd, exportJSONCmd, exportBinCmd, analyzeCmd, benchCmd, presetsCmd, liveCmd, serveCmd)
	rootCmd.AddCommand(batchCommands()...)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addParamFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	cmd.Flags().IntVarP(&particles, "particles", "n", config.DefaultParticles, "number of particles")
	cmd.Flags().Float64Var(&smoothing, "h", config.DefaultSmoothingRadius, "smoothing radius")
	cmd.Flags().Float64Var(&gravity, "gravity", config.DefaultGravity, "vertical acceleration")
	cmd.Flags().Float64Var(&dt, "dt", config.DefaultTimestep, "timestep")
	cmd.Flags().IntVar(&stepsPerFrame, "steps-per-frame", config.DefaultStepsPerFrame, "timesteps per frame")
	cmd.Flags().IntVar(&dim, "dim", config.DefaultDim, "dimension (2, or 3 to reflect the z axis)")
}

// resolveConfig layers the preset, then the config file, then any flag
// the user actually set.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}

	if configFile != "" {
		fileCfg, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = fileCfg
	}

	flags := cmd.Flags()
	if flags.Changed("particles") {
		cfg.NumParticles = particles
	}
	if flags.Changed("h") {
		cfg.SmoothingRadius = smoothing
	}
	if flags.Changed("gravity") {
		cfg.Gravity = gravity
	}
	if flags.Changed("dt") {
		cfg.Timestep = dt
	}
	if flags.Changed("steps-per-frame") {
		cfg.StepsPerFrame = stepsPerFrame
	}
	if flags.Changed("dim") {
		cfg.Dim = dim
	}
	if flags.Lookup("frames") != nil && flags.Changed("frames") {
		cfg.Frames = frames
	}
	if flags.Lookup("record-until") != nil && flags.Changed("record-until") {
		cfg.RecordUntil = recordUntil
	}
	if flags.Lookup("seed") != nil && flags.Changed("seed") {
		cfg.Seed = seed
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultMetrics() []sim.Metric {
	return []sim.Metric{
		metrics.NewEnergy(),
		metrics.NewEnergyDrift(),
		metrics.NewDensityError(),
		metrics.NewPeakSpeed(),
		metrics.NewCellLoad(),
	}
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	if writeConfig != "" {
		if err := config.Save(writeConfig, cfg); err != nil {
			return err
		}
	}

	store := storage.New(dataDir)
	store.SetLogger(log.WithName("storage"))
	if err := store.Init(); err != nil {
		return err
	}

	st, err := sph.New(cfg.Params())
	if err != nil {
		return err
	}

	s := sim.New(log.WithName("sim"))
	for _, m := range defaultMetrics() {
		s.AddMetric(m)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("running %d particles for %d frames...\n", cfg.NumParticles, cfg.Frames)
	start := time.Now()

	result, runErr := s.Run(ctx, st, sim.Config{
		Frames:        cfg.Frames,
		RecordUntil:   cfg.RecordUntil,
		ValidateState: true,
	})
	if result == nil {
		return runErr
	}
	elapsed := time.Since(start)

	name := cfg.Name
	if name == "" {
		name = "sph"
	}
	runID, err := store.Save(name, cfg.Seed, result, st)
	if err != nil {
		return err
	}

	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("frames: %d (%d recorded), steps: %d\n", result.FramesTaken, len(result.Frames), st.Steps())
	fmt.Println("\nmetrics:")
	for _, m := range defaultMetrics() {
		fmt.Printf("  %s: %.6f\n", m.Name(), result.Metrics[m.Name()])
	}

	if runErr != nil {
		return fmt.Errorf("run stopped early (partial run saved): %w", runErr)
	}
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	store := storage.New(dataDir)
	runs, err := store.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTIME\tPARTICLES\tH\tFRAMES\tSTEPS")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.3f\t%d\t%d\n",
			run.ID,
			run.Name,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Params.NumParticles,
			run.Params.SmoothingRadius,
			run.Frames,
			run.Steps,
		)
	}

	return w.Flush()
}

type namedSeries struct {
	key, caption string
	pick         func(sim.Frame) float64
}

var frameSeries = []namedSeries{
	{"kinetic", "kinetic energy", func(f sim.Frame) float64 { return f.KineticEnergy }},
	{"density", "mean density", func(f sim.Frame) float64 { return f.MeanDensity }},
	{"speed", "max speed", func(f sim.Frame) float64 { return f.MaxSpeed }},
}

func extract(frames []sim.Frame, pick func(sim.Frame) float64) []float64 {
	out := make([]float64, len(frames))
	for i, f := range frames {
		out[i] = pick(f)
	}
	return out
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	store := storage.New(dataDir)
	meta, err := store.Load(runID)
	if err != nil {
		return err
	}

	recorded, err := store.LoadFrames(runID)
	if err != nil {
		return err
	}
	if len(recorded) < 2 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("particles: %d\n", meta.Params.NumParticles)
	fmt.Printf("samples: %d\n\n", len(recorded))

	plotted := 0
	for _, s := range frameSeries {
		if series != "all" && series != s.key {
			continue
		}
		graph := asciigraph.Plot(extract(recorded, s.pick),
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(s.caption),
		)
		fmt.Println(graph)
		fmt.Println()
		plotted++
	}
	if plotted == 0 {
		return fmt.Errorf("unknown series: %s", series)
	}
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	store := storage.New(dataDir)
	meta, err := store.Load(args[0])
	if err != nil {
		return err
	}
	return printJSON(os.Stdout, meta)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func exportJSON(cmd *cobra.Command, args []string) error {
	return storage.New(dataDir).ExportJSON(args[0], os.Stdout)
}

func exportBin(cmd *cobra.Command, args []string) error {
	flat, n, err := storage.New(dataDir).LoadState(args[0])
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	if asF32 {
		_, err = w.Write(stream.EncodeFlat(nil, flat))
	} else {
		err = storage.WriteFlat(w, n, flat)
	}
	if err != nil {
		return err
	}
	if output != "" {
		fmt.Fprintf(os.Stderr, "wrote %d particles x %d fields to %s\n", n, sph.NumFields, output)
	}
	return nil
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	store := storage.New(dataDir)
	meta, err := store.Load(runID)
	if err != nil {
		return err
	}
	recorded, err := store.LoadFrames(runID)
	if err != nil {
		return err
	}
	if len(recorded) < 6 {
		return fmt.Errorf("run %s has too few frames to analyze", runID)
	}

	fmt.Printf("analysis: %s\n\n", meta.ID)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SERIES\tMEAN\tSTD\tMIN\tMAX")
	for _, s := range frameSeries {
		d := analysis.Describe(extract(recorded, s.pick))
		fmt.Fprintf(w, "%s\t%.5f\t%.5f\t%.5f\t%.5f\n", s.caption, d.Mean, d.Std, d.Min, d.Max)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	kinetic := extract(recorded, frameSeries[0].pick)
	// Skip the frame-0 sample so the series is evenly spaced.
	kinetic = kinetic[1:]

	ps := analysis.PowerSpectrum(kinetic)
	graph := asciigraph.Plot(ps[1:],
		asciigraph.Height(12),
		asciigraph.Width(80),
		asciigraph.Caption("kinetic energy spectrum"),
	)
	fmt.Println()
	fmt.Println(graph)
	fmt.Println()

	interval := meta.Params.Timestep * float64(meta.Params.StepsPerFrame)
	freq, err := analysis.DominantFrequency(kinetic, interval)
	if err != nil {
		return err
	}
	fmt.Printf("dominant frequency: %.3f hz\n", freq)
	if freq > 0 {
		fmt.Printf("period: %.4f s\n", 1.0/freq)
	}

	settle := analysis.SettlingFrame(kinetic, 0.05*analysis.Describe(kinetic).Max)
	fmt.Printf("kinetic energy settles by frame %d of %d\n", settle+1, len(kinetic))
	return nil
}

func benchParticles(cmd *cobra.Command, args []string) error {
	sizes := []int{250, 500, 1000, 2000}
	ctx := context.Background()

	params := make([]sph.Params, len(sizes))
	for i, n := range sizes {
		params[i] = sph.DefaultParams()
		params[i].NumParticles = n
	}
	cfg := sim.Config{Frames: benchFrames}

	fmt.Printf("benchmarking %d frames per size\n\n", benchFrames)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PARTICLES\tSTEPS\tTIME\tSTEPS/SEC\tMAX CELL")

	for _, p := range params {
		st, err := sph.New(p)
		if err != nil {
			return err
		}
		start := time.Now()
		if _, err := sim.New(log).Run(ctx, st, cfg); err != nil {
			return err
		}
		elapsed := time.Since(start)

		fmt.Fprintf(w, "%d\t%d\t%v\t%.0f\t%d\n",
			p.NumParticles, st.Steps(), elapsed.Round(time.Microsecond),
			float64(st.Steps())/elapsed.Seconds(), metrics.MaxCellLoad(st))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if parallel <= 0 {
		return nil
	}

	ens := sim.NewEnsemble(log.WithName("ensemble"), nil)
	ens.SetLimit(parallel)
	start := time.Now()
	if _, err := ens.Run(ctx, params, cfg); err != nil {
		return err
	}
	fmt.Printf("\nall sizes concurrently (%d workers): %v\n", parallel, time.Since(start).Round(time.Microsecond))
	return nil
}

func listPresets(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tPARTICLES\tH\tGRAVITY\tTAIT C\tDT")
	for _, name := range config.ListPresets() {
		p := config.GetPreset(name)
		fmt.Fprintf(w, "%s\t%d\t%.2f\t%.1f\t%.1f\t%g\n",
			name, p.NumParticles, p.SmoothingRadius, p.Gravity, p.TaitC, p.Timestep)
	}
	return w.Flush()
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	st, err := sph.New(cfg.Params())
	if err != nil {
		return err
	}
	shared := sim.NewShared(st)

	if serve != "" {
		// The terminal owns stdout, so stream logs go nowhere.
		srv := stream.NewServer(shared, time.Second/30, logr.Discard())
		srv.Follow = true

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			if err := srv.ListenAndServe(ctx, serve); err != nil {
				log.Error(err, "stream server stopped")
			}
		}()
	}

	p := tea.NewProgram(viz.NewModel(shared, cfg), tea.WithAltScreen())
	_, err = p.Run()
	return err
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	if fps <= 0 {
		return fmt.Errorf("fps must be positive, got %d", fps)
	}
	st, err := sph.New(cfg.Params())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	srv := stream.NewServer(sim.NewShared(st), time.Second/time.Duration(fps), log.WithName("stream"))
	fmt.Printf("streaming %d particles on ws://%s/ws\n", cfg.NumParticles, addr)
	return srv.ListenAndServe(ctx, addr)
}
