// Package training drives the jet-tagging training loop: a batch
// evaluator over graph or flat inputs, a per-phase epoch lifecycle
// controller, optimizers, and the run driver tying them to checkpoints
// and the metric sink.
package training

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/hepqml/jettag/checkpoints"
	"github.com/hepqml/jettag/dataset"
)

// Config holds the run-level knobs of a training run. Validate fills
// defaults and rejects unsupported settings.
type Config struct {
	Project string `json:"project"`
	RunID   string `json:"run_id"`

	LearningRate  float64 `json:"learning_rate"`
	MaxEpochs     int     `json:"max_epochs"`
	BatchSize     int     `json:"batch_size"`
	LogEverySteps int     `json:"log_every_n_steps"`
	Seed          int64   `json:"seed"`
	TrainRatio    float64 `json:"train_ratio"`

	// Accelerator must be "cpu"; the loop runs on the host only.
	Accelerator string `json:"accelerator"`

	ResultDir string `json:"result_dir"`
}

// Validate checks the config and fills defaults in place.
func (c *Config) Validate() error {
	if c.Project == "" {
		return fmt.Errorf("training: project must be set")
	}
	if c.RunID == "" {
		return fmt.Errorf("training: run id must be set")
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("training: learning rate must be > 0 (got %g)", c.LearningRate)
	}
	if c.MaxEpochs <= 0 {
		return fmt.Errorf("training: max epochs must be > 0 (got %d)", c.MaxEpochs)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("training: batch size must be > 0 (got %d)", c.BatchSize)
	}
	if c.TrainRatio <= 0 || c.TrainRatio >= 1 {
		return fmt.Errorf("training: train ratio must be in (0, 1) (got %g)", c.TrainRatio)
	}
	if c.Accelerator == "" {
		c.Accelerator = "cpu"
	}
	if c.Accelerator != "cpu" {
		return fmt.Errorf("training: unsupported accelerator %q, only cpu is available", c.Accelerator)
	}
	if c.LogEverySteps <= 0 {
		c.LogEverySteps = 1
	}
	if c.ResultDir == "" {
		c.ResultDir = "result"
	}
	return nil
}

// CheckpointDir returns where this run's checkpoints live.
func (c *Config) CheckpointDir() string {
	return filepath.Join(c.ResultDir, c.Project, c.RunID, "checkpoints")
}

// Trainer owns one training run: it resumes from the newest checkpoint
// if one exists, runs the fit loop (train + validation per epoch with a
// checkpoint after each), runs the test pass, and releases the sink.
type Trainer struct {
	cfg  Config
	eval *BatchEvaluator
	opt  Optimizer
	sink MetricSink
	ctl  *EpochController

	startEpoch int
}

// NewTrainer validates the config and wires the loop together.
func NewTrainer(cfg Config, eval *BatchEvaluator, opt Optimizer, sink MetricSink) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Trainer{
		cfg:  cfg,
		eval: eval,
		opt:  opt,
		sink: sink,
		ctl:  NewEpochController(eval, sink, cfg.LogEverySteps),
	}, nil
}

// Resume restores the newest checkpoint of this run if one exists. A
// missing or empty checkpoint directory is a fresh start, not an error.
func (t *Trainer) Resume() error {
	path, ok, err := checkpoints.Resolve(t.cfg.CheckpointDir())
	if err != nil {
		return err
	}
	if !ok {
		log.Printf("trainer: run=%s no checkpoint found, starting fresh", t.cfg.RunID)
		return nil
	}

	ckpt, err := checkpoints.Load(path)
	if err != nil {
		return err
	}
	if err := ckpt.ApplyWeights(t.eval.Parameters()); err != nil {
		return err
	}
	t.startEpoch = ckpt.State.Epoch + 1
	t.ctl.SetGlobalStep(ckpt.State.GlobalStep)
	t.opt.SetLR(ckpt.State.LearningRate)

	log.Printf("trainer: run=%s resumed from %s epoch=%d step=%d", t.cfg.RunID, path, ckpt.State.Epoch, ckpt.State.GlobalStep)
	return nil
}

// Fit runs the remaining epochs, each a train phase followed by a
// validation phase, saving a checkpoint after every epoch.
func (t *Trainer) Fit(train, valid *dataset.Loader) error {
	for epoch := t.startEpoch; epoch < t.cfg.MaxEpochs; epoch++ {
		log.Printf("trainer: run=%s epoch=%d/%d", t.cfg.RunID, epoch+1, t.cfg.MaxEpochs)

		trainAUC, err := t.runPhase(PhaseTrain, train)
		if err != nil {
			return fmt.Errorf("training: epoch %d: %w", epoch, err)
		}
		validAUC, err := t.runPhase(PhaseValid, valid)
		if err != nil {
			return fmt.Errorf("training: epoch %d: %w", epoch, err)
		}
		log.Printf("trainer: run=%s epoch=%d train_roc_auc=%.4f val_roc_auc=%.4f", t.cfg.RunID, epoch+1, trainAUC, validAUC)

		if err := t.saveCheckpoint(epoch); err != nil {
			return err
		}
	}
	return nil
}

// Test runs one pass over the held-out split.
func (t *Trainer) Test(test *dataset.Loader) error {
	auc, err := t.runPhase(PhaseTest, test)
	if err != nil {
		return err
	}
	log.Printf("trainer: run=%s test_roc_auc=%.4f", t.cfg.RunID, auc)
	return nil
}

// Run is the full driver: resume, fit, test, release the sink. The sink
// is finished even when training fails.
func (t *Trainer) Run(train, valid, test *dataset.Loader) (err error) {
	defer func() {
		if ferr := t.sink.Finish(); ferr != nil && err == nil {
			err = ferr
		}
	}()

	if err = t.Resume(); err != nil {
		return err
	}
	if err = t.Fit(train, valid); err != nil {
		return err
	}
	return t.Test(test)
}

func (t *Trainer) runPhase(p Phase, loader *dataset.Loader) (float64, error) {
	if loader == nil {
		return 0, fmt.Errorf("training: no loader for %s phase", p)
	}
	if err := t.ctl.StartPhase(p); err != nil {
		return 0, err
	}

	loader.Reset()
	for {
		batch, err := loader.Next()
		if err != nil {
			return 0, err
		}
		if batch == nil {
			break
		}

		if p == PhaseTrain {
			t.opt.ZeroGrad()
		}
		if _, _, err := t.ctl.OnBatch(p, batch); err != nil {
			return 0, err
		}
		if p == PhaseTrain {
			t.opt.Step()
		}
	}

	return t.ctl.EndPhase(p)
}

func (t *Trainer) saveCheckpoint(epoch int) error {
	dir := t.cfg.CheckpointDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("training: create checkpoint dir: %w", err)
	}

	state := checkpoints.TrainingState{
		Epoch:        epoch,
		GlobalStep:   t.ctl.GlobalStep(),
		LearningRate: t.opt.GetLR(),
	}
	ckpt := checkpoints.FromParams(t.cfg.Project, t.cfg.RunID, state, t.eval.Parameters())

	path := filepath.Join(dir, fmt.Sprintf("epoch-%03d.ckpt", epoch))
	return ckpt.Save(path, checkpoints.FormatBinary)
}
