package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/veloxphys/velox/internal/config"
	"github.com/veloxphys/velox/internal/experiment"
	"github.com/veloxphys/velox/internal/export"
	"github.com/veloxphys/velox/internal/metrics"
	"github.com/veloxphys/velox/internal/scenario"
	"github.com/veloxphys/velox/internal/sim"
	"github.com/veloxphys/velox/internal/storage"
	"github.com/veloxphys/velox/internal/tui"
	"github.com/veloxphys/velox/internal/world"
)

var (
	dataDir    string
	configFile string
	preset     string
	duration   float64
	dt         float64
	workers    int
	seed       int64
	live       bool
	frameRate  int
	outFile    string
	sweepDts   []float64
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "velox",
		Short: "rigid body physics sandbox",
		RunE: func(cmd *cobra.Command, args []string) error {
			return tui.RunWatch()
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".velox", "data directory")

	runCmd := &cobra.Command{
		Use:   "run [scenario]",
		Short: "run a scenario and store the result",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}
	runCmd.Flags().StringVar(&preset, "preset", "", "use a named preset configuration")
	runCmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	runCmd.Flags().Float64Var(&duration, "time", config.DefaultDuration, "simulated duration in seconds")
	runCmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "fixed timestep")
	runCmd.Flags().IntVar(&workers, "workers", 1, "island solver workers")
	runCmd.Flags().Int64Var(&seed, "seed", time.Now().UnixNano(), "random seed recorded with the run")
	runCmd.Flags().BoolVar(&live, "live", false, "stream frames while running")
	runCmd.Flags().IntVar(&frameRate, "fps", 30, "frame rate for --live")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a stored run's metric series",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export run metadata as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export full run data as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export run series as CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}

	traceCmd := &cobra.Command{
		Use:   "trace [scenario]",
		Short: "run a scenario and write body trajectories as SVG",
		Args:  cobra.ExactArgs(1),
		RunE:  traceScenario,
	}
	traceCmd.Flags().StringVar(&preset, "preset", "", "use a named preset configuration")
	traceCmd.Flags().Float64Var(&duration, "time", config.DefaultDuration, "simulated duration in seconds")
	traceCmd.Flags().StringVarP(&outFile, "out", "o", "trace.svg", "output file")

	sweepCmd := &cobra.Command{
		Use:   "sweep [scenario]",
		Short: "step a scenario at several dt values and compare metrics",
		Args:  cobra.ExactArgs(1),
		RunE:  sweepScenario,
	}
	sweepCmd.Flags().StringVar(&preset, "preset", "", "use a named preset configuration")
	sweepCmd.Flags().Float64Var(&duration, "time", 5.0, "simulated duration in seconds")
	sweepCmd.Flags().Float64SliceVar(&sweepDts, "dts", []float64{1.0 / 30.0, 1.0 / 60.0, 1.0 / 120.0, 1.0 / 240.0}, "timesteps to sweep")

	benchCmd := &cobra.Command{
		Use:   "bench [scenario]",
		Short: "benchmark stepping throughput",
		Args:  cobra.ExactArgs(1),
		RunE:  benchScenario,
	}

	scenariosCmd := &cobra.Command{
		Use:   "scenarios",
		Short: "list built-in scenarios",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			for _, name := range scenario.List() {
				s, err := scenario.Get(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s\t%s\n", s.Name, s.Description)
			}
			return w.Flush()
		},
	}

	presetsCmd := &cobra.Command{
		Use:   "presets [scenario]",
		Short: "list available presets for a scenario",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			presets := config.ListPresets(args[0])
			if len(presets) == 0 {
				fmt.Printf("no presets for scenario: %s\n", args[0])
				return nil
			}
			sort.Strings(presets)
			fmt.Printf("presets for %s:\n", args[0])
			for _, p := range presets {
				fmt.Printf("  %s\n", p)
			}
			return nil
		},
	}

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "interactive scenario browser",
		RunE: func(cmd *cobra.Command, args []string) error {
			return tui.RunWatch()
		},
	}

	rootCmd.AddCommand(runCmd, listCmd, plotCmd, exportCmd, exportJSONCmd, exportCSVCmd, traceCmd, sweepCmd, benchCmd, scenariosCmd, presetsCmd, watchCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfig layers preset, config file and explicit flags, with
// flags winning.
func resolveConfig(cmd *cobra.Command, scenarioName string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	cfg.Scenario = scenarioName

	if preset != "" {
		p := config.GetPreset(scenarioName, preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(scenarioName))
		}
		copied := *p
		cfg = &copied
	}

	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		loaded.Scenario = scenarioName
		cfg = loaded
	}

	if cmd.Flags().Changed("time") {
		cfg.Duration = duration
	}
	if cmd.Flags().Changed("dt") {
		cfg.Step.Dt = dt
	}
	if cmd.Flags().Changed("workers") {
		cfg.Step.Workers = workers
	}
	if cmd.Flags().Changed("seed") || cfg.Seed == 0 {
		cfg.Seed = seed
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func buildRunner(cfg *config.Config) (*sim.Runner, error) {
	w := world.New(cfg.Step)
	s, err := scenario.Get(cfg.Scenario)
	if err != nil {
		return nil, err
	}
	if err := s.Build(w); err != nil {
		return nil, err
	}

	r := sim.New(w)
	r.AddMetric(metrics.NewEnergy())
	r.AddMetric(metrics.NewEnergyDrift())
	r.AddMetric(metrics.NewMomentum())
	r.AddMetric(metrics.NewPenetration())
	r.AddMetric(metrics.NewContacts())
	return r, nil
}

func runScenario(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args[0])
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	r, err := buildRunner(cfg)
	if err != nil {
		return err
	}

	if live {
		renderer := tui.NewLiveRenderer(cfg.Scenario, frameRate)
		renderer.Start()
		defer renderer.Stop()
		r.AddObserver(renderer)
	}

	fmt.Printf("running %s...\n", cfg.Scenario)
	result, err := r.Run(context.Background(), cfg.Duration)
	if err != nil {
		return err
	}

	runID, err := st.Save(cfg.Scenario, preset, cfg.Step.Dt, cfg.Duration, cfg.Seed, result)
	if err != nil {
		return err
	}

	fmt.Printf("completed in %v\n", result.Elapsed)
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("steps: %d\n", result.Steps)

	fmt.Println("\nmetrics:")
	names := make([]string, 0, len(result.Metrics))
	for name := range result.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %s: %.6f\n", name, result.Metrics[name])
	}

	if n := result.Events[world.EventFrozen]; n > 0 {
		fmt.Printf("\nwarning: %d bodies froze on non-finite state\n", n)
	}
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSCENARIO\tPRESET\tTIME\tDURATION\tDT\tSTEPS")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2fs\t%.4fs\t%d\n",
			run.ID,
			run.Scenario,
			run.Preset,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Duration,
			run.Dt,
			run.Steps,
		)
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	header, rows, err := st.LoadSeries(runID)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("scenario: %s\n", meta.Scenario)
	fmt.Printf("samples: %d\n\n", len(rows))

	for col := 1; col < len(header); col++ {
		data := make([]float64, len(rows))
		for i, row := range rows {
			if col < len(row) {
				data[i] = row[col]
			}
		}
		graph := asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(header[col]+" vs time"),
		)
		fmt.Println(graph)
		fmt.Println()
	}
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

func exportJSON(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	return st.ExportStoredJSON(os.Stdout, args[0])
}

func exportCSV(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	header, rows, err := st.LoadSeries(args[0])
	if err != nil {
		return err
	}

	w := csv.NewWriter(os.Stdout)
	defer w.Flush()

	if err := w.Write(header); err != nil {
		return err
	}
	for _, row := range rows {
		record := make([]string, len(row))
		for i, val := range row {
			record[i] = strconv.FormatFloat(val, 'f', 6, 64)
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	return nil
}

func traceScenario(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args[0])
	if err != nil {
		return err
	}

	r, err := buildRunner(cfg)
	if err != nil {
		return err
	}
	tracer := export.NewTracer()
	r.AddObserver(tracer)

	if _, err := r.Run(context.Background(), cfg.Duration); err != nil {
		return err
	}

	if err := os.WriteFile(outFile, []byte(tracer.SVG(800, 600)), 0644); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", outFile)
	return nil
}

func sweepScenario(cmd *cobra.Command, args []string) error {
	s := &experiment.Sweep{
		Scenario: args[0],
		Preset:   preset,
		Dts:      sweepDts,
		Duration: duration,
	}

	fmt.Printf("sweeping %s over %d timesteps...\n\n", s.Scenario, len(s.Dts))
	points, err := s.Run(context.Background())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DT\tSTEPS\tENERGY_DRIFT\tMAX_PENETRATION\tMOMENTUM")
	for _, p := range points {
		fmt.Fprintf(w, "%.5f\t%d\t%.6f\t%.6f\t%.6f\n",
			p.Dt,
			p.Steps,
			p.Metrics["energy_drift"],
			p.Metrics["max_penetration"],
			p.Metrics["momentum"],
		)
	}
	return w.Flush()
}

func benchScenario(cmd *cobra.Command, args []string) error {
	scenarioName := args[0]
	if _, err := scenario.Get(scenarioName); err != nil {
		return err
	}

	durations := []float64{1.0, 5.0}
	workerCounts := []int{1, 2, 4}

	fmt.Printf("benchmarking %s\n\n", scenarioName)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DURATION\tWORKERS\tSTEPS\tTIME\tSTEPS/SEC")

	for _, dur := range durations {
		for _, n := range workerCounts {
			cfg := config.DefaultConfig()
			cfg.Scenario = scenarioName
			cfg.Duration = dur
			cfg.Step.Workers = n

			r, err := buildRunner(cfg)
			if err != nil {
				return err
			}
			result, err := r.Run(context.Background(), dur)
			if err != nil {
				return err
			}

			stepsPerSec := float64(result.Steps) / result.Elapsed.Seconds()
			fmt.Fprintf(w, "%.1fs\t%d\t%d\t%v\t%.0f\n",
				dur, n, result.Steps, result.Elapsed, stepsPerSec)
		}
	}
	return w.Flush()
}
