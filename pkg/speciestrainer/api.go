package speciestrainer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"speciestrainer/internal/evo"
	"speciestrainer/internal/genotype"
	"speciestrainer/internal/model"
	"speciestrainer/internal/scape"
	"speciestrainer/internal/storage"
)

const defaultDBPath = "speciestrainer.db"

type Options struct {
	StoreKind string
	DBPath    string
	Logger    *slog.Logger
	// Registerer receives the trainer collectors. Nil disables metrics.
	Registerer prometheus.Registerer
}

type Client struct {
	store   storage.Store
	logger  *slog.Logger
	metrics *evo.Metrics

	mu          sync.Mutex
	initialized bool
}

type RunRequest struct {
	RunID       string
	Scape       string
	Dimensions  int
	Population  int
	Generations int
	Seed        int64
	Threads     int

	Selection          string
	TournamentRounds   int
	TruncationFraction float64

	// SurvivalRate of zero keeps the trainer default; negative disables
	// species elitism.
	SurvivalRate     float64
	EliteThreshold   int
	MaxParentRetries int
	StallLimit       int
	TargetSpecies    int

	MutationRate  float64
	MutationSigma float64
	BlendAlpha    float64

	WeightGaussian    float64
	WeightReset       float64
	WeightUniform     float64
	WeightSinglePoint float64
	WeightBlend       float64

	// FitnessGoal stops the run once the best score reaches it. Nil runs
	// every generation.
	FitnessGoal        *float64
	ValidateInvariants bool
}

type RunSummary struct {
	RunID            string
	Generations      int
	BestByGeneration []float64
	FinalBestScore   float64
	BestGenomeID     string
	BestGenes        []float64
	SpeciesCount     int
	GoalReached      bool
	Threads          int
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID          string
	CreatedAtUTC   string
	Scape          string
	Dimensions     int
	Seed           int64
	Population     int
	Generations    int
	Threads        int
	Minimize       bool
	FinalBestScore float64
}

// RunQuery addresses one persisted run, either by id or as the newest one.
type RunQuery struct {
	RunID  string
	Latest bool
	Limit  int
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	var metrics *evo.Metrics
	if opts.Registerer != nil {
		metrics, err = evo.NewMetrics(opts.Registerer)
		if err != nil {
			_ = storage.CloseStore(store)
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}

	return &Client{
		store:   store,
		logger:  logger,
		metrics: metrics,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseStore(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.ensureStore(ctx)
}

// Reset drops every persisted run.
func (c *Client) Reset(ctx context.Context) error {
	if err := c.ensureStore(ctx); err != nil {
		return err
	}
	return c.store.Reset(ctx)
}

func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	if err := applyRunDefaults(&req); err != nil {
		return RunSummary{}, err
	}
	sc, err := scape.Resolve(req.Scape)
	if err != nil {
		return RunSummary{}, err
	}
	selection, err := evo.NewSelection[*genotype.Vector](req.Selection, req.TournamentRounds, req.TruncationFraction)
	if err != nil {
		return RunSummary{}, err
	}
	if err := c.ensureStore(ctx); err != nil {
		return RunSummary{}, err
	}

	lower, upper := sc.DefaultBounds()
	bounds := genotype.Bounds{Lower: lower, Upper: upper}
	initial, err := genotype.RandomPopulation(rand.New(rand.NewSource(req.Seed)), req.Population, req.Dimensions, bounds)
	if err != nil {
		return RunSummary{}, err
	}

	speciation := evo.NewAdaptiveSpeciation[*genotype.Vector](genotype.Distance)
	speciation.TargetSpeciesCount = req.TargetSpecies
	speciation.Threshold = 0.3
	speciation.MinThreshold = 0.01
	speciation.MaxThreshold = 1.0
	speciation.AdjustStep = 0.02

	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	logger := c.logger.With("run_id", runID, "scape", sc.Name())

	trainer, err := evo.NewTrainer(evo.Config[*genotype.Vector, []float64]{
		PopulationSize:     req.Population,
		Threads:            req.Threads,
		Seed:               req.Seed,
		SurvivalRate:       req.SurvivalRate,
		EliteThreshold:     req.EliteThreshold,
		MaxParentRetries:   req.MaxParentRetries,
		StallLimit:         req.StallLimit,
		ValidateInvariants: req.ValidateInvariants,
		Score:              sc,
		Codec:              genotype.Codec{},
		Factory:            genotype.Factory{},
		Selection:          selection,
		Operators:          defaultOperators(req),
		Speciation:         speciation,
		FallbackMutation:   genotype.GaussianMutation{Rate: req.MutationRate, Sigma: req.MutationSigma},
		Logger:             logger,
		Metrics:            c.metrics,
	}, initial)
	if err != nil {
		return RunSummary{}, err
	}
	defer trainer.Close()

	if err := trainer.Initialize(ctx); err != nil {
		return RunSummary{}, err
	}
	goalReached := false
	for trainer.Generation() < req.Generations {
		if req.FitnessGoal != nil && reachedGoal(trainer.Objective(), trainer.Error(), *req.FitnessGoal) {
			goalReached = true
			break
		}
		if err := trainer.Iteration(ctx); err != nil {
			return RunSummary{}, fmt.Errorf("run %s: %w", runID, err)
		}
	}
	if !goalReached && req.FitnessGoal != nil {
		goalReached = reachedGoal(trainer.Objective(), trainer.Error(), *req.FitnessGoal)
	}

	best, ok := trainer.BestGenome()
	if !ok {
		return RunSummary{}, fmt.Errorf("run %s: no best genome", runID)
	}
	history := trainer.BestHistory()
	summary := RunSummary{
		RunID:            runID,
		Generations:      trainer.Generation(),
		BestByGeneration: history,
		FinalBestScore:   best.Score(),
		BestGenomeID:     best.ID(),
		BestGenes:        best.Values(),
		SpeciesCount:     len(trainer.Species()),
		GoalReached:      goalReached,
		Threads:          trainer.EffectiveThreads(),
	}

	if err := c.persistRun(ctx, req, sc, trainer, summary); err != nil {
		return RunSummary{}, err
	}
	logger.Info("run finished",
		"generations", summary.Generations,
		"best", summary.FinalBestScore,
		"species", summary.SpeciesCount,
		"goal_reached", goalReached,
	)
	return summary, nil
}

func (c *Client) persistRun(ctx context.Context, req RunRequest, sc scape.Scape, trainer *evo.Trainer[*genotype.Vector, []float64], summary RunSummary) error {
	best, _ := trainer.BestGenome()
	run := model.RunRecord{
		VersionedRecord: storage.CurrentVersion(),
		ID:              summary.RunID,
		CreatedAtUTC:    time.Now().UTC().Format(time.RFC3339Nano),
		Scape:           sc.Name(),
		Dimensions:      req.Dimensions,
		PopulationSize:  req.Population,
		Generations:     summary.Generations,
		Seed:            req.Seed,
		Threads:         summary.Threads,
		Minimize:        sc.ShouldMinimize(),
		FinalBestScore:  summary.FinalBestScore,
		BestGenomeID:    summary.BestGenomeID,
	}
	if err := c.store.SaveRun(ctx, run); err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	if err := c.store.SaveFitnessHistory(ctx, summary.RunID, summary.BestByGeneration); err != nil {
		return fmt.Errorf("save fitness history: %w", err)
	}
	if err := c.store.SaveGenerationDiagnostics(ctx, summary.RunID, trainer.Diagnostics()); err != nil {
		return fmt.Errorf("save diagnostics: %w", err)
	}
	if err := c.store.SaveSpeciesHistory(ctx, summary.RunID, trainer.SpeciesHistory()); err != nil {
		return fmt.Errorf("save species history: %w", err)
	}
	if err := c.store.SaveBestGenome(ctx, model.BestGenomeRecord{
		VersionedRecord: storage.CurrentVersion(),
		RunID:           summary.RunID,
		GenomeID:        best.ID(),
		Score:           best.Score(),
		BirthGeneration: best.BirthGeneration(),
		Genes:           best.Values(),
	}); err != nil {
		return fmt.Errorf("save best genome: %w", err)
	}
	return nil
}

func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}
	if err := c.ensureStore(ctx); err != nil {
		return nil, err
	}

	runs, err := c.store.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	if len(runs) > req.Limit {
		runs = runs[:req.Limit]
	}

	out := make([]RunItem, 0, len(runs))
	for _, run := range runs {
		out = append(out, RunItem{
			RunID:          run.ID,
			CreatedAtUTC:   run.CreatedAtUTC,
			Scape:          run.Scape,
			Dimensions:     run.Dimensions,
			Seed:           run.Seed,
			Population:     run.PopulationSize,
			Generations:    run.Generations,
			Threads:        run.Threads,
			Minimize:       run.Minimize,
			FinalBestScore: run.FinalBestScore,
		})
	}
	return out, nil
}

func (c *Client) FitnessHistory(ctx context.Context, req RunQuery) ([]float64, error) {
	runID, err := c.resolveRunID(ctx, req, "fitness history")
	if err != nil {
		return nil, err
	}
	history, ok, err := c.store.GetFitnessHistory(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("fitness history not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(history) > req.Limit {
		history = history[:req.Limit]
	}
	return append([]float64(nil), history...), nil
}

func (c *Client) Diagnostics(ctx context.Context, req RunQuery) ([]model.GenerationDiagnostics, error) {
	runID, err := c.resolveRunID(ctx, req, "diagnostics")
	if err != nil {
		return nil, err
	}
	diagnostics, ok, err := c.store.GetGenerationDiagnostics(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("diagnostics not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(diagnostics) > req.Limit {
		diagnostics = diagnostics[:req.Limit]
	}
	out := make([]model.GenerationDiagnostics, len(diagnostics))
	copy(out, diagnostics)
	return out, nil
}

func (c *Client) SpeciesHistory(ctx context.Context, req RunQuery) ([]model.SpeciesGeneration, error) {
	runID, err := c.resolveRunID(ctx, req, "species history")
	if err != nil {
		return nil, err
	}
	history, ok, err := c.store.GetSpeciesHistory(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("species history not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(history) > req.Limit {
		history = history[:req.Limit]
	}
	return history, nil
}

func (c *Client) Best(ctx context.Context, req RunQuery) (model.BestGenomeRecord, error) {
	runID, err := c.resolveRunID(ctx, req, "best genome")
	if err != nil {
		return model.BestGenomeRecord{}, err
	}
	record, ok, err := c.store.GetBestGenome(ctx, runID)
	if err != nil {
		return model.BestGenomeRecord{}, err
	}
	if !ok {
		return model.BestGenomeRecord{}, fmt.Errorf("best genome not found for run id: %s", runID)
	}
	return record, nil
}

// Scapes lists the registered score functions.
func (c *Client) Scapes() []string {
	return scape.Names()
}

func (c *Client) resolveRunID(ctx context.Context, req RunQuery, what string) (string, error) {
	if req.RunID != "" && req.Latest {
		return "", errors.New("use either run id or latest")
	}
	if req.Limit < 0 {
		return "", errors.New("limit must be >= 0")
	}
	if err := c.ensureStore(ctx); err != nil {
		return "", err
	}
	if req.RunID != "" {
		return req.RunID, nil
	}
	if !req.Latest {
		return "", fmt.Errorf("%s requires run id or latest", what)
	}
	runs, err := c.store.ListRuns(ctx)
	if err != nil {
		return "", err
	}
	if len(runs) == 0 {
		return "", errors.New("no runs available")
	}
	return runs[0].ID, nil
}

func (c *Client) ensureStore(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.initialized {
		return nil
	}
	if err := c.store.Init(ctx); err != nil {
		return err
	}
	c.initialized = true
	return nil
}

func applyRunDefaults(req *RunRequest) error {
	if req.Scape == "" {
		req.Scape = "sphere"
	}
	if req.Dimensions <= 0 {
		req.Dimensions = 8
	}
	if req.Population <= 0 {
		req.Population = 50
	}
	if req.Generations <= 0 {
		req.Generations = 100
	}
	if req.Threads < 0 {
		return errors.New("threads must be >= 0")
	}
	if req.Selection == "" {
		req.Selection = "tournament"
	}
	if req.MutationRate <= 0 {
		req.MutationRate = 0.2
	}
	if req.MutationSigma <= 0 {
		req.MutationSigma = 0.1
	}
	if req.BlendAlpha <= 0 {
		req.BlendAlpha = 0.5
	}
	if req.WeightGaussian == 0 && req.WeightReset == 0 && req.WeightUniform == 0 && req.WeightSinglePoint == 0 && req.WeightBlend == 0 {
		req.WeightGaussian = 0.50
		req.WeightReset = 0.05
		req.WeightUniform = 0.20
		req.WeightSinglePoint = 0.15
		req.WeightBlend = 0.10
	}
	if req.WeightGaussian < 0 || req.WeightReset < 0 || req.WeightUniform < 0 || req.WeightSinglePoint < 0 || req.WeightBlend < 0 {
		return errors.New("operator weights must be >= 0")
	}
	return nil
}

func defaultOperators(req RunRequest) []evo.WeightedOperator[*genotype.Vector] {
	return []evo.WeightedOperator[*genotype.Vector]{
		{Operator: genotype.GaussianMutation{Rate: req.MutationRate, Sigma: req.MutationSigma}, Weight: req.WeightGaussian},
		{Operator: genotype.ResetMutation{}, Weight: req.WeightReset},
		{Operator: genotype.UniformCrossover{}, Weight: req.WeightUniform},
		{Operator: genotype.SinglePointCrossover{}, Weight: req.WeightSinglePoint},
		{Operator: genotype.BlendCrossover{Alpha: req.BlendAlpha}, Weight: req.WeightBlend},
	}
}

func reachedGoal(objective evo.Objective, best, goal float64) bool {
	if objective.Minimize {
		return best <= goal
	}
	return best >= goal
}
