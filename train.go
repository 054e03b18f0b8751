package main

import (
	"fmt"
	"io"
	"math/rand"
	"os"
	"time"

	"github.com/Doct0rWats0n/imdb-classification/IO"
	"github.com/Doct0rWats0n/imdb-classification/history"
	"github.com/Doct0rWats0n/imdb-classification/optimizations"
	"github.com/Doct0rWats0n/imdb-classification/params"
	"github.com/Doct0rWats0n/imdb-classification/rnn"
	"github.com/Doct0rWats0n/imdb-classification/training"
	"github.com/google/uuid"
	"github.com/klauspost/cpuid/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

func runTrain(cfg params.Config, log *zap.Logger, out io.Writer) error {
	runID := uuid.NewString()
	log = log.With(zap.String("run_id", runID))
	logCPU(log)
	cfg.ClampWorkers(cpuid.CPU.LogicalCores)

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UTC().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	t1 := time.Now()
	store, err := IO.LoadStore(cfg.TrainPath, cfg.Comma())
	if err != nil {
		return err
	}
	labels := IO.LabelsOf(store)
	log.Info("loaded training set",
		zap.String("path", cfg.TrainPath),
		zap.Int("records", store.Len()),
		zap.Strings("labels", labels.Names()),
		zap.Duration("took", time.Since(t1)))

	model, err := rnn.New(cfg.EDim, cfg.HDim, rng)
	if err != nil {
		return err
	}
	opt, err := optimizations.FromConfig(cfg)
	if err != nil {
		return err
	}
	trainer, err := training.NewTrainer(model, opt, labels, cfg)
	if err != nil {
		return err
	}
	trainer.Out = out
	trainer.Log = log
	trainer.RunID = runID

	if cfg.HistoryPath != "" {
		h, err := history.Open(cfg.HistoryPath)
		if err != nil {
			return err
		}
		defer h.Close()
		trainer.History = h
	}

	loader := &IO.Loader{
		Data:      IO.NewDataset(store, cfg.CacheBytes),
		BatchSize: cfg.BatchSize,
		Shuffle:   cfg.Shuffle,
		Workers:   cfg.Workers,
		Rand:      rng,
	}
	log.Info("config",
		zap.Int64("seed", seed),
		zap.Int("e_dim", cfg.EDim),
		zap.Int("h_dim", cfg.HDim),
		zap.Int("epochs", cfg.Epochs),
		zap.Int("workers", cfg.Workers),
		zap.String("optimizer", cfg.Optimizer),
		zap.Float64("lr", cfg.LearningRate))

	t2 := time.Now()
	if err := trainer.Run(loader); err != nil {
		return err
	}
	log.Info("training finished", zap.Duration("took", time.Since(t2)))

	if cfg.ModelPath != "" {
		if err := rnn.Save(model, cfg.ModelPath); err != nil {
			return err
		}
		log.Info("saved model", zap.String("path", cfg.ModelPath))
	}

	if cfg.TestPath == "" {
		return nil
	}
	if _, err := os.Stat(cfg.TestPath); os.IsNotExist(err) {
		log.Warn("no testing file, skipping evaluation", zap.String("path", cfg.TestPath))
		return nil
	}
	return evaluateFile(model, labels, cfg, log, out)
}

func runEval(cfg params.Config, log *zap.Logger, out io.Writer) error {
	if cfg.ModelPath == "" {
		return errors.Wrap(params.ErrInvalidConfig, "eval needs a model path")
	}
	model, err := rnn.Load(cfg.ModelPath)
	if err != nil {
		return err
	}
	// labels are numbered by first occurrence in the training file, as
	// during training
	store, err := IO.LoadStore(cfg.TrainPath, cfg.Comma())
	if err != nil {
		return err
	}
	return evaluateFile(model, IO.LabelsOf(store), cfg, log, out)
}

func evaluateFile(model *rnn.Model, labels *IO.LabelSet, cfg params.Config, log *zap.Logger, out io.Writer) error {
	store, err := IO.LoadStore(cfg.TestPath, cfg.Comma())
	if err != nil {
		return err
	}
	if store.Len() == 0 {
		log.Warn("testing file is empty, nothing to score", zap.String("path", cfg.TestPath))
		return nil
	}
	loader := &IO.Loader{
		Data:      IO.NewDataset(store, cfg.CacheBytes),
		BatchSize: cfg.BatchSize,
		Workers:   cfg.Workers,
	}
	res, err := training.Evaluate(model, loader, labels)
	if err != nil {
		return err
	}
	if res.Skipped > 0 {
		log.Warn("test records with labels unseen in training", zap.Int("count", res.Skipped))
	}
	fmt.Fprintf(out, "Accuracy on %d test reviews: %.2f%% (loss %.3f)\n",
		res.Samples, 100*res.Accuracy, res.Loss)
	return nil
}

func logCPU(log *zap.Logger) {
	log.Info("cpu",
		zap.String("brand", cpuid.CPU.BrandName),
		zap.Int("physical_cores", cpuid.CPU.PhysicalCores),
		zap.Int("logical_cores", cpuid.CPU.LogicalCores),
		zap.Bool("avx2", cpuid.CPU.Supports(cpuid.AVX2)),
		zap.Bool("avx512f", cpuid.CPU.Supports(cpuid.AVX512F)))
}
