package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"speciestrainer/internal/storage"
	api "speciestrainer/pkg/speciestrainer"
)

const defaultDBPath = "speciestrainer.db"

var stdout io.Writer = os.Stdout

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "reset":
		return runReset(ctx, args[1:])
	case "run":
		return runRun(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "fitness":
		return runFitness(ctx, args[1:])
	case "diagnostics":
		return runDiagnostics(ctx, args[1:])
	case "species":
		return runSpecies(ctx, args[1:])
	case "best":
		return runBest(ctx, args[1:])
	case "scapes":
		return runScapes(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

type storeFlags struct {
	kind     *string
	dbPath   *string
	logLevel *string
}

func addStoreFlags(fs *flag.FlagSet) storeFlags {
	return storeFlags{
		kind:     fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite"),
		dbPath:   fs.String("db-path", defaultDBPath, "sqlite database path"),
		logLevel: fs.String("log-level", "warn", "log level: debug|info|warn|error"),
	}
}

func (f storeFlags) client(registerer prometheus.Registerer) (*api.Client, error) {
	logger, err := newLogger(os.Stderr, *f.logLevel)
	if err != nil {
		return nil, err
	}
	return api.New(api.Options{
		StoreKind:  *f.kind,
		DBPath:     *f.dbPath,
		Logger:     logger,
		Registerer: registerer,
	})
}

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	sf := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := sf.client(nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "initialized store=%s\n", *sf.kind)
	return nil
}

func runReset(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	sf := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := sf.client(nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Reset(ctx); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "reset store=%s\n", *sf.kind)
	return nil
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	sf := addStoreFlags(fs)
	configPath := fs.String("config", "", "optional run config path (.json, .yaml, .yml or .ini)")
	metricsAddr := fs.String("metrics-addr", "", "serve Prometheus metrics on this address while running")
	runID := fs.String("run-id", "", "explicit run id (optional)")
	scapeName := fs.String("scape", "sphere", "scape name")
	dims := fs.Int("dims", 8, "genome dimensions")
	population := fs.Int("pop", 50, "population size")
	generations := fs.Int("gens", 100, "generation count")
	seed := fs.Int64("seed", 1, "rng seed")
	threads := fs.Int("threads", 0, "worker threads (0 uses every CPU)")
	selectionName := fs.String("selection", "tournament", "parent selection: tournament|truncation|rank")
	tournamentRounds := fs.Int("tournament-rounds", 4, "tournament sample count")
	truncationFraction := fs.Float64("truncation-fraction", 0.5, "fraction of a species eligible under truncation selection")
	survivalRate := fs.Float64("survival-rate", 0.2, "fraction of a species carried forward as elites (negative disables)")
	eliteThreshold := fs.Int("elite-threshold", 5, "species size above which elitism applies")
	maxParentRetries := fs.Int("max-parent-retries", 5, "second-parent redraws before an attempt is skipped")
	stallLimit := fs.Int("stall-limit", 1000, "consecutive skipped attempts before a species fails (negative disables)")
	targetSpecies := fs.Int("target-species", 0, "species count the speciation steers toward (0 derives it)")
	mutationRate := fs.Float64("mutation-rate", 0.2, "per-gene gaussian mutation probability")
	mutationSigma := fs.Float64("mutation-sigma", 0.1, "gaussian mutation scale as a fraction of the bounds span")
	blendAlpha := fs.Float64("blend-alpha", 0.5, "blend crossover extension factor")
	wGaussian := fs.Float64("w-gaussian", 0, "weight for gaussian mutation")
	wReset := fs.Float64("w-reset", 0, "weight for gene reset mutation")
	wUniform := fs.Float64("w-uniform", 0, "weight for uniform crossover")
	wSinglePoint := fs.Float64("w-single-point", 0, "weight for single-point crossover")
	wBlend := fs.Float64("w-blend", 0, "weight for blend crossover")
	fitnessGoal := fs.Float64("fitness-goal", 0, "stop once the best score reaches this value (unset runs every generation)")
	validate := fs.Bool("validate", false, "check generation invariants after every generation")
	jsonOut := fs.Bool("json", false, "emit run summary as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	setFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})

	req, err := loadOrDefaultRunRequest(*configPath)
	if err != nil {
		return err
	}
	if *configPath == "" {
		fs.VisitAll(func(f *flag.Flag) {
			if f.Name != "fitness-goal" {
				setFlags[f.Name] = true
			}
		})
	}
	overrideFromFlags(&req, setFlags, map[string]any{
		"run-id":              *runID,
		"scape":               *scapeName,
		"dims":                *dims,
		"pop":                 *population,
		"gens":                *generations,
		"seed":                *seed,
		"threads":             *threads,
		"selection":           *selectionName,
		"tournament-rounds":   *tournamentRounds,
		"truncation-fraction": *truncationFraction,
		"survival-rate":       *survivalRate,
		"elite-threshold":     *eliteThreshold,
		"max-parent-retries":  *maxParentRetries,
		"stall-limit":         *stallLimit,
		"target-species":      *targetSpecies,
		"mutation-rate":       *mutationRate,
		"mutation-sigma":      *mutationSigma,
		"blend-alpha":         *blendAlpha,
		"w-gaussian":          *wGaussian,
		"w-reset":             *wReset,
		"w-uniform":           *wUniform,
		"w-single-point":      *wSinglePoint,
		"w-blend":             *wBlend,
		"fitness-goal":        *fitnessGoal,
		"validate":            *validate,
	})

	var registerer prometheus.Registerer
	if *metricsAddr != "" {
		reg := prometheus.NewRegistry()
		registerer = reg
		shutdown := serveMetrics(*metricsAddr, reg)
		defer shutdown()
	}

	client, err := sf.client(registerer)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	started := time.Now()
	summary, err := client.Run(ctx, req)
	if err != nil {
		return err
	}

	if *jsonOut {
		return writeJSON(struct {
			RunID          string    `json:"run_id"`
			Generations    int       `json:"generations"`
			FinalBestScore float64   `json:"final_best_score"`
			BestGenomeID   string    `json:"best_genome_id"`
			BestGenes      []float64 `json:"best_genes"`
			SpeciesCount   int       `json:"species_count"`
			GoalReached    bool      `json:"goal_reached"`
			Threads        int       `json:"threads"`
		}{
			RunID:          summary.RunID,
			Generations:    summary.Generations,
			FinalBestScore: summary.FinalBestScore,
			BestGenomeID:   summary.BestGenomeID,
			BestGenes:      summary.BestGenes,
			SpeciesCount:   summary.SpeciesCount,
			GoalReached:    summary.GoalReached,
			Threads:        summary.Threads,
		})
	}

	fmt.Fprintf(stdout, "run_id=%s generations=%s best=%s species=%d threads=%d goal_reached=%t elapsed=%s\n",
		summary.RunID,
		humanize.Comma(int64(summary.Generations)),
		formatScore(summary.FinalBestScore),
		summary.SpeciesCount,
		summary.Threads,
		summary.GoalReached,
		time.Since(started).Round(time.Millisecond),
	)
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	sf := addStoreFlags(fs)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := sf.client(nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	runs, err := client.Runs(ctx, api.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(stdout, "no runs found")
		return nil
	}
	for _, item := range runs {
		fmt.Fprintf(stdout, "%s created=%s scape=%s dims=%d pop=%s gens=%s seed=%d best=%s\n",
			item.RunID,
			humanizeCreatedAt(item.CreatedAtUTC),
			item.Scape,
			item.Dimensions,
			humanize.Comma(int64(item.Population)),
			humanize.Comma(int64(item.Generations)),
			item.Seed,
			formatScore(item.FinalBestScore),
		)
	}
	return nil
}

func runFitness(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("fitness", flag.ContinueOnError)
	sf := addStoreFlags(fs)
	query := addRunQueryFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := sf.client(nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	history, err := client.FitnessHistory(ctx, query.request())
	if err != nil {
		return err
	}
	for i, best := range history {
		fmt.Fprintf(stdout, "generation=%d best=%s\n", i+1, formatScore(best))
	}
	return nil
}

func runDiagnostics(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("diagnostics", flag.ContinueOnError)
	sf := addStoreFlags(fs)
	query := addRunQueryFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := sf.client(nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	diagnostics, err := client.Diagnostics(ctx, query.request())
	if err != nil {
		return err
	}
	for _, d := range diagnostics {
		fmt.Fprintf(stdout, "generation=%d best=%s mean=%s worst=%s stddev=%s species=%d mean_species_size=%s largest_species=%d rejected=%d\n",
			d.Generation,
			formatScore(d.BestScore),
			formatScore(d.MeanScore),
			formatScore(d.WorstScore),
			formatScore(d.ScoreStdDev),
			d.SpeciesCount,
			humanize.FtoaWithDigits(d.MeanSpeciesSize, 2),
			d.LargestSpeciesSize,
			d.RejectedChildren,
		)
	}
	return nil
}

func runSpecies(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("species", flag.ContinueOnError)
	sf := addStoreFlags(fs)
	query := addRunQueryFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := sf.client(nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	history, err := client.SpeciesHistory(ctx, query.request())
	if err != nil {
		return err
	}
	for _, generation := range history {
		fmt.Fprintf(stdout, "generation=%d species=%d new=%s extinct=%s\n",
			generation.Generation,
			len(generation.Species),
			joinOrDash(generation.NewSpecies),
			joinOrDash(generation.ExtinctSpecies),
		)
		for _, sp := range generation.Species {
			fmt.Fprintf(stdout, "  %s size=%d best=%s mean=%s offspring=%s\n",
				sp.Key,
				sp.Size,
				formatScore(sp.BestScore),
				formatScore(sp.MeanScore),
				humanize.FtoaWithDigits(sp.OffspringCount, 2),
			)
		}
	}
	return nil
}

func runBest(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("best", flag.ContinueOnError)
	sf := addStoreFlags(fs)
	query := addRunQueryFlags(fs)
	jsonOut := fs.Bool("json", false, "emit best genome as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := sf.client(nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	best, err := client.Best(ctx, query.request())
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(best)
	}
	genes := make([]string, len(best.Genes))
	for i, g := range best.Genes {
		genes[i] = humanize.FtoaWithDigits(g, 6)
	}
	fmt.Fprintf(stdout, "run_id=%s genome_id=%s score=%s born=%d genes=[%s]\n",
		best.RunID,
		best.GenomeID,
		formatScore(best.Score),
		best.BirthGeneration,
		strings.Join(genes, " "),
	)
	return nil
}

func runScapes(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("scapes", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	client, err := api.New(api.Options{StoreKind: "memory"})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	for _, name := range client.Scapes() {
		fmt.Fprintln(stdout, name)
	}
	return nil
}

type runQueryFlags struct {
	runID  *string
	latest *bool
	limit  *int
}

func addRunQueryFlags(fs *flag.FlagSet) runQueryFlags {
	return runQueryFlags{
		runID:  fs.String("run-id", "", "run id"),
		latest: fs.Bool("latest", false, "use the newest run"),
		limit:  fs.Int("limit", 0, "max entries to show (0 shows all)"),
	}
}

func (f runQueryFlags) request() api.RunQuery {
	return api.RunQuery{RunID: *f.runID, Latest: *f.latest, Limit: *f.limit}
}

// newLogger writes text to a terminal and JSON everywhere else.
func newLogger(w *os.File, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if isatty.IsTerminal(w.Fd()) || isatty.IsCygwinTerminal(w.Fd()) {
		return slog.New(slog.NewTextHandler(w, opts)), nil
	}
	return slog.New(slog.NewJSONHandler(w, opts)), nil
}

func serveMetrics(addr string, reg *prometheus.Registry) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "metrics server: %v\n", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func writeJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatScore(v float64) string {
	return humanize.FtoaWithDigits(v, 6)
}

func humanizeCreatedAt(value string) string {
	created, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return value
	}
	return humanize.Time(created)
}

func joinOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ",")
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: speciesctl <init|reset|run|runs|fitness|diagnostics|species|best|scapes> [flags]", msg)
}
