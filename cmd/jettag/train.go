package main

import (
	"fmt"
	"log"
	"math/rand"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hepqml/jettag/dataset"
	"github.com/hepqml/jettag/model"
	"github.com/hepqml/jettag/track"
	"github.com/hepqml/jettag/training"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Run one training run end to end",
	RunE:  runTrain,
}

func init() {
	f := trainCmd.Flags()
	f.String("project", "jettag", "tracking project name")
	f.String("run-id", "", "run identifier (derived from the setup when empty)")
	f.String("model", "2pcgnn", "model variant: 2pcgnn, q2pcgnn, eq2pcgnn, flat, qflat")
	f.String("preprocess", "normalize", "particle preprocessing: raw or normalize")
	f.Float64("lr", 1e-2, "learning rate")
	f.Int("max-epochs", 10, "number of training epochs")
	f.Int("batch-size", 64, "batch size")
	f.Float64("train-ratio", 0.8, "fraction of each channel used for training")
	f.Int64("seed", 42, "random seed")
	f.Int("log-every", 1, "log step metrics every N steps")
	f.String("accelerator", "cpu", "compute device (only cpu is supported)")
	f.String("result-dir", "result", "root directory for run artifacts")
	f.String("sidecar", "", "metric sidecar base URL (optional)")

	f.String("signal", "", "signal events file (JSON lines); toy data when empty")
	f.String("background", "", "background events file (JSON lines); toy data when empty")
	f.Int("toy-events", 400, "events per channel when generating toy data")
	f.Float64("pt-min", 800, "fat-jet pt cut lower bound")
	f.Float64("pt-max", 1000, "fat-jet pt cut upper bound")
	f.Int("pt-bins", 10, "uniform fat-jet pt bins for resampling file input")
	f.Int("bin-events", 500, "events sampled per pt bin (0 disables resampling)")

	f.Int("gnn-hidden", 32, "hidden width of the classical message function")
	f.Int("gnn-layers", 2, "hidden layers of the classical message function")
	f.Int("gnn-out", 16, "message width of the classical GNN")
	f.Int("mlp-hidden", 32, "hidden width of the readout head")
	f.Int("mlp-layers", 2, "hidden layers of the readout head")
	f.Int("q-layers", 2, "rotation layers per quantum block")
	f.Int("reupload", 1, "data re-uploads of the quantum encoder")

	if err := viper.BindPFlags(f); err != nil {
		log.Fatalf("jettag: bind flags: %v", err)
	}
}

func runTrain(cmd *cobra.Command, args []string) error {
	cfg := training.Config{
		Project:       viper.GetString("project"),
		RunID:         viper.GetString("run-id"),
		LearningRate:  viper.GetFloat64("lr"),
		MaxEpochs:     viper.GetInt("max-epochs"),
		BatchSize:     viper.GetInt("batch-size"),
		LogEverySteps: viper.GetInt("log-every"),
		Seed:          viper.GetInt64("seed"),
		TrainRatio:    viper.GetFloat64("train-ratio"),
		Accelerator:   viper.GetString("accelerator"),
		ResultDir:     viper.GetString("result-dir"),
	}

	variant := viper.GetString("model")
	preprocess, err := preprocessMode(viper.GetString("preprocess"))
	if err != nil {
		return err
	}

	sig, bkg, dataTag, err := loadChannels(cfg.Seed)
	if err != nil {
		return err
	}
	log.Printf("jettag: signal=%d background=%d source=%s", len(sig), len(bkg), dataTag)

	if cfg.RunID == "" {
		cfg.RunID = runName(variant, preprocess, dataTag)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	trainSig, testSig := sig.Split(cfg.TrainRatio)
	trainBkg, testBkg := bkg.Split(cfg.TrainRatio)

	model.SetRandomSeed(cfg.Seed)
	eval, trainLoader, testLoader, err := buildEvaluator(variant, preprocess, cfg,
		trainSig, trainBkg, testSig, testBkg)
	if err != nil {
		return err
	}

	run, err := track.NewRun(cfg.ResultDir, cfg.Project, variant, cfg.RunID)
	if err != nil {
		return err
	}
	if url := viper.GetString("sidecar"); url != "" {
		run.SetSidecar(url)
	}
	if err := run.LogConfig(cfg); err != nil {
		return err
	}

	opt := training.NewAdam(eval.Parameters(), cfg.LearningRate, 0, 0, 0)
	trainer, err := training.NewTrainer(cfg, eval, opt, run)
	if err != nil {
		return err
	}

	log.Printf("jettag: run=%s model=%s mode=%s", cfg.RunID, variant, eval.Mode())
	// The held-out split doubles as the validation set, as in small
	// fixed-budget sweeps.
	return trainer.Run(trainLoader, testLoader, testLoader)
}

func preprocessMode(name string) (dataset.PreprocessMode, error) {
	switch name {
	case "raw", "":
		return dataset.PreprocessRaw, nil
	case "normalize":
		return dataset.PreprocessNormalize, nil
	default:
		return "", fmt.Errorf("jettag: unknown preprocess mode %q", name)
	}
}

func loadChannels(seed int64) (sig, bkg dataset.Events, tag string, err error) {
	sigPath := viper.GetString("signal")
	bkgPath := viper.GetString("background")

	if sigPath == "" && bkgPath == "" {
		n := viper.GetInt("toy-events")
		return dataset.GenerateToy(n, true, seed),
			dataset.GenerateToy(n, false, seed+1),
			fmt.Sprintf("toy%d", n), nil
	}
	if sigPath == "" || bkgPath == "" {
		return nil, nil, "", fmt.Errorf("jettag: both --signal and --background are required for file input")
	}

	sig, err = dataset.LoadEvents(sigPath)
	if err != nil {
		return nil, nil, "", err
	}
	bkg, err = dataset.LoadEvents(bkgPath)
	if err != nil {
		return nil, nil, "", err
	}

	lo, hi := viper.GetFloat64("pt-min"), viper.GetFloat64("pt-max")
	sig = sig.CutPt(lo, hi)
	bkg = bkg.CutPt(lo, hi)

	// Flatten the pt spectrum of both channels before splitting so the
	// classifier cannot lean on the fat-jet pt distribution.
	if perBin := viper.GetInt("bin-events"); perBin > 0 {
		bins := viper.GetInt("pt-bins")
		rng := rand.New(rand.NewSource(seed))
		sig, err = sig.SelectUniformPtBins(bins, perBin, rng)
		if err != nil {
			return nil, nil, "", fmt.Errorf("jettag: signal channel: %w", err)
		}
		bkg, err = bkg.SelectUniformPtBins(bins, perBin, rng)
		if err != nil {
			return nil, nil, "", fmt.Errorf("jettag: background channel: %w", err)
		}
	}

	tag = strings.TrimSuffix(filepath.Base(sigPath), filepath.Ext(sigPath))
	return sig, bkg, tag, nil
}

// runName builds the sweep-style identifier: model, preprocessing, and
// the hyperparameters that distinguish variants, then the data suffix.
func runName(variant string, preprocess dataset.PreprocessMode, dataTag string) string {
	pre := string(preprocess)
	if pre == "" {
		pre = "raw"
	}
	tags := fmt.Sprintf("l%d_r%d", viper.GetInt("q-layers"), viper.GetInt("reupload"))
	return fmt.Sprintf("%s_%s_%s | %s", variant, pre, tags, dataTag)
}

func buildEvaluator(variant string, preprocess dataset.PreprocessMode, cfg training.Config,
	trainSig, trainBkg, testSig, testBkg dataset.Events) (*training.BatchEvaluator, *dataset.Loader, *dataset.Loader, error) {

	qubits := 2 * dataset.NumFeatures
	measure := allQubits(qubits)

	switch variant {
	case "2pcgnn", "q2pcgnn", "eq2pcgnn":
		var m model.GraphModel
		switch variant {
		case "2pcgnn":
			m = model.NewClassical2PC(dataset.NumFeatures, viper.GetInt("gnn-out"),
				viper.GetInt("gnn-hidden"), viper.GetInt("gnn-layers"),
				viper.GetInt("mlp-hidden"), viper.GetInt("mlp-layers"))
		case "q2pcgnn":
			m = model.NewQuantumAngle2PC(qubits, viper.GetInt("q-layers"), viper.GetInt("reupload"), measure)
		case "eq2pcgnn":
			m = model.NewQuantumElementwiseAngle2PC(qubits, viper.GetInt("q-layers"), viper.GetInt("reupload"), measure)
		}

		trainDS := dataset.NewGraphDataset(trainSig, trainBkg, preprocess)
		testDS := dataset.NewGraphDataset(testSig, testBkg, preprocess)
		trainLoader, err := dataset.NewGraphLoader(trainDS, cfg.BatchSize, true, cfg.Seed)
		if err != nil {
			return nil, nil, nil, err
		}
		testLoader, err := dataset.NewGraphLoader(testDS, cfg.BatchSize, false, cfg.Seed)
		if err != nil {
			return nil, nil, nil, err
		}
		return training.NewGraphEvaluator(m), trainLoader, testLoader, nil

	case "flat", "qflat":
		maxPtcs := dataset.MaxParticles(trainSig, trainBkg, testSig, testBkg)
		width := maxPtcs * dataset.NumFeatures

		var m model.FlatModel
		if variant == "flat" {
			m = model.NewFlatMLP(width, viper.GetInt("mlp-hidden"), viper.GetInt("mlp-layers"))
		} else {
			m = model.NewQuantumFlat(width, viper.GetInt("q-layers"), viper.GetInt("reupload"), allQubits(width))
		}

		trainDS, err := dataset.NewFlatDataset(trainSig, trainBkg, preprocess, maxPtcs)
		if err != nil {
			return nil, nil, nil, err
		}
		testDS, err := dataset.NewFlatDataset(testSig, testBkg, preprocess, maxPtcs)
		if err != nil {
			return nil, nil, nil, err
		}
		trainLoader, err := dataset.NewFlatLoader(trainDS, cfg.BatchSize, true, cfg.Seed)
		if err != nil {
			return nil, nil, nil, err
		}
		testLoader, err := dataset.NewFlatLoader(testDS, cfg.BatchSize, false, cfg.Seed)
		if err != nil {
			return nil, nil, nil, err
		}
		return training.NewFlatEvaluator(m), trainLoader, testLoader, nil

	default:
		return nil, nil, nil, fmt.Errorf("jettag: unknown model variant %q", variant)
	}
}

func allQubits(n int) []int {
	qs := make([]int, n)
	for i := range qs {
		qs[i] = i
	}
	return qs
}
