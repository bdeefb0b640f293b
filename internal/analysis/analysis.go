// Package analysis runs the whole pipeline: resolve record files, load them,
// register modules, pick top modules, build the hierarchy and lint it.
package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robert-at-pretension-io/sv-hier/internal/config"
	"github.com/robert-at-pretension-io/sv-hier/internal/facts"
	"github.com/robert-at-pretension-io/sv-hier/internal/hierarchy"
	"github.com/robert-at-pretension-io/sv-hier/internal/loader"
	"github.com/robert-at-pretension-io/sv-hier/internal/logging"
	"github.com/robert-at-pretension-io/sv-hier/internal/policy"
	"github.com/robert-at-pretension-io/sv-hier/internal/registry"
	"github.com/robert-at-pretension-io/sv-hier/internal/validator"
)

// Analyzer runs the pipeline with one configuration.
type Analyzer struct {
	cfg    *config.Config
	logger *slog.Logger

	// Tops overrides cfg.Tops when non-empty.
	Tops []string
	// TimingPath streams stage timings as JSON lines when set.
	TimingPath string
	// SkipLint leaves Result.Lint empty.
	SkipLint bool
}

// Result is everything one run produced.
type Result struct {
	Root     string
	Files    []string
	Load     *loader.Result
	Registry *registry.Registry
	// Rejected merges loader and registry rejections in file order.
	Rejected []registry.Rejection
	// Detected is the detector output, whatever Tops were expanded.
	Detected []string
	Forest   *hierarchy.Forest
	Lint     policy.Result
	Timings  []StageTiming
}

// New returns an Analyzer. A nil cfg uses defaults; a nil logger discards.
func New(cfg *config.Config, logger *slog.Logger) *Analyzer {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Analyzer{cfg: cfg, logger: logger}
}

// Run analyses the record files under root (a directory or a single file).
func (a *Analyzer) Run(ctx context.Context, root string) (*Result, error) {
	runStart := time.Now()
	timing := newTimingRecorder(runStart, a.TimingPath)
	if err := timing.Err(); err != nil {
		a.logger.Warn("timing output disabled", slog.String("error", err.Error()))
	}
	defer timing.Close()

	res := &Result{Root: root}

	// 1. Find record files
	stepStart := time.Now()
	files, err := a.cfg.ResolveInputs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving inputs: %w", err)
	}
	res.Files = files
	a.logger.Info("record files found", slog.Int("count", len(files)))
	timing.RecordStage("scan", stepStart, "")

	// 2. Read, validate and decode
	stepStart = time.Now()
	opts := loader.Options{
		MaxParallel: a.cfg.Analysis.MaxParallelFiles,
		Logger:      a.logger,
	}
	if a.cfg.SchemaValidationEnabled() {
		v, err := validator.NewRecordValidator()
		if err != nil {
			return nil, fmt.Errorf("record schema: %w", err)
		}
		opts.Validator = v
	}
	loaded, err := loader.Load(ctx, files, opts)
	if err != nil {
		return nil, err
	}
	res.Load = loaded
	timing.RecordStage("load", stepStart, "")

	// 3. Register
	stepStart = time.Now()
	reg, rejected := registry.Build(loaded.Records(), a.logger)
	res.Registry = reg
	res.Rejected = append(append([]registry.Rejection{}, loaded.Rejected...), rejected...)
	timing.RecordStage("register", stepStart, "")

	// 4. Top modules and hierarchy
	stepStart = time.Now()
	res.Detected = hierarchy.DetectTopModules(reg, a.logger)
	tops := a.Tops
	if len(tops) == 0 {
		tops = a.cfg.Tops
	}
	if len(tops) == 0 {
		tops = res.Detected
	}
	res.Forest = hierarchy.NewBuilder(a.logger).Build(reg, tops)
	timing.RecordStage("hierarchy", stepStart, "")

	// 5. Lint
	if !a.SkipLint {
		stepStart = time.Now()
		engine, err := policy.New(a.cfg.Lint.PolicyDir)
		if err != nil {
			return nil, fmt.Errorf("loading policies: %w", err)
		}
		input := policy.BuildInput(reg, res.Forest, res.Rejected)
		for _, pe := range loaded.ParseErrors {
			input.Unreadable = append(input.Unreadable, policy.Unreadable{File: pe.File, Message: pe.Message})
		}
		violations, err := engine.Evaluate(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("policy evaluation: %w", err)
		}
		res.Lint = policy.Apply(a.cfg, violations)
		timing.RecordStage("lint", stepStart, "")
	} else {
		res.Lint = policy.Apply(a.cfg, nil)
	}

	timing.RecordStage("total", runStart, "")
	res.Timings = timing.Events()
	return res, nil
}

// Facts returns the relational snapshot of the run.
func (r *Result) Facts() facts.Tables {
	return facts.BuildTables(r.Registry, r.Forest)
}
