package main

import (
	"fmt"
	"strings"

	"github.com/Doct0rWats0n/imdb-classification/IO"
	"github.com/Doct0rWats0n/imdb-classification/history"
	"github.com/Doct0rWats0n/imdb-classification/params"
	"github.com/Doct0rWats0n/imdb-classification/utils"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// cli carries the root flags shared by every subcommand.
type cli struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	d := params.Defaults()

	root := &cobra.Command{
		Use:           "imdb",
		Short:         "Character-level RNN sentiment classifier for the IMDB review dataset",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (yaml, json or toml)")
	root.PersistentFlags().String("log-level", d.Logging.Level, "debug, info, warn or error")

	root.AddCommand(c.splitCmd(d), c.trainCmd(d), c.evalCmd(d), c.encodeCmd(), c.exportCmd(d), c.historyCmd())
	return root
}

// load reads the config with the given flags of cmd bound to their keys.
func (c *cli) load(cmd *cobra.Command, keys map[string]string) (params.Config, *zap.Logger, error) {
	v := viper.New()
	keys["log-level"] = "logging.level"
	for flag, key := range keys {
		f := cmd.Flags().Lookup(flag)
		if f == nil {
			return params.Config{}, nil, errors.Errorf("no flag %q on %s", flag, cmd.Name())
		}
		if err := v.BindPFlag(key, f); err != nil {
			return params.Config{}, nil, errors.Wrapf(err, "bind %s", flag)
		}
	}
	cfg, err := params.Load(v, c.configPath)
	if err != nil {
		return params.Config{}, nil, err
	}
	log, err := utils.NewLogger(cfg.Logging.Level)
	if err != nil {
		return params.Config{}, nil, err
	}
	return cfg, log, nil
}

func (c *cli) splitCmd(d params.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "split",
		Short: "Split the source CSV into training and testing files at a fixed row count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := c.load(cmd, map[string]string{
				"source":    "source_path",
				"train":     "train_path",
				"test":      "test_path",
				"cutoff":    "cutoff",
				"delimiter": "delimiter",
			})
			if err != nil {
				return err
			}
			defer log.Sync()

			res, err := IO.Split(cfg.SourcePath, cfg.TrainPath, cfg.TestPath, IO.SplitOptions{
				Cutoff: cfg.Cutoff,
				Comma:  cfg.Comma(),
			})
			if err != nil {
				return err
			}
			log.Info("split done",
				zap.String("source", cfg.SourcePath),
				zap.Int("train_rows", res.Train),
				zap.Int("test_rows", res.Test))
			fmt.Fprintf(cmd.OutOrStdout(), "training: %d rows -> %s\ntesting: %d rows -> %s\n",
				res.Train, cfg.TrainPath, res.Test, cfg.TestPath)
			return nil
		},
	}
	f := cmd.Flags()
	f.String("source", d.SourcePath, "source CSV (.xz allowed)")
	f.String("train", d.TrainPath, "training CSV to write")
	f.String("test", d.TestPath, "testing CSV to write")
	f.Int("cutoff", d.Cutoff, "number of rows that go to the training file")
	f.String("delimiter", d.Delimiter, "field delimiter")
	return cmd
}

func (c *cli) trainCmd(d params.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the RNN on the training file and report the running loss",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := c.load(cmd, map[string]string{
				"train":        "train_path",
				"test":         "test_path",
				"delimiter":    "delimiter",
				"e-dim":        "e_dim",
				"h-dim":        "h_dim",
				"epochs":       "epochs",
				"batch-size":   "batch_size",
				"workers":      "workers",
				"shuffle":      "shuffle",
				"log-every":    "log_every",
				"seed":         "seed",
				"cache-bytes":  "cache_bytes",
				"optimizer":    "optimizer",
				"lr":           "learning_rate",
				"momentum":     "momentum",
				"weight-decay": "weight_decay",
				"grad-clip":    "grad_clip",
				"warmup":       "warmup_steps",
				"decay":        "decay_steps",
				"model":        "model_path",
				"history":      "history_path",
			})
			if err != nil {
				return err
			}
			defer log.Sync()
			return runTrain(cfg, log, cmd.OutOrStdout())
		},
	}
	f := cmd.Flags()
	f.String("train", d.TrainPath, "training CSV")
	f.String("test", d.TestPath, "testing CSV scored after training, empty to skip")
	f.String("delimiter", d.Delimiter, "field delimiter")
	f.Int("e-dim", d.EDim, "one-hot input width")
	f.Int("h-dim", d.HDim, "hidden size")
	f.Int("epochs", d.Epochs, "passes over the training data")
	f.Int("batch-size", d.BatchSize, "samples per optimizer step")
	f.Int("workers", d.Workers, "batch collation goroutines")
	f.Bool("shuffle", d.Shuffle, "reshuffle the training data every epoch")
	f.Int("log-every", d.LogEvery, "batches per loss report")
	f.Int64("seed", d.Seed, "random seed, 0 seeds from the clock")
	f.Int("cache-bytes", d.CacheBytes, "encoded-sample cache size, 0 disables")
	f.String("optimizer", d.Optimizer, "sgd or adam")
	f.Float64("lr", d.LearningRate, "learning rate")
	f.Float64("momentum", d.Momentum, "sgd momentum")
	f.Float64("weight-decay", d.WeightDecay, "weight decay")
	f.Float64("grad-clip", d.GradClip, "global gradient norm limit, 0 disables")
	f.Int("warmup", d.WarmupSteps, "linear learning-rate warmup steps")
	f.Int("decay", d.DecaySteps, "cosine learning-rate decay steps after warmup")
	f.String("model", d.ModelPath, "write the trained model here")
	f.String("history", d.HistoryPath, "sqlite file that keeps the loss reports")
	return cmd
}

func (c *cli) evalCmd(d params.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Score a saved model on the testing file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := c.load(cmd, map[string]string{
				"train":       "train_path",
				"test":        "test_path",
				"delimiter":   "delimiter",
				"model":       "model_path",
				"batch-size":  "batch_size",
				"workers":     "workers",
				"cache-bytes": "cache_bytes",
			})
			if err != nil {
				return err
			}
			defer log.Sync()
			return runEval(cfg, log, cmd.OutOrStdout())
		},
	}
	f := cmd.Flags()
	f.String("train", d.TrainPath, "training CSV, fixes the label order")
	f.String("test", d.TestPath, "testing CSV")
	f.String("delimiter", d.Delimiter, "field delimiter")
	f.String("model", d.ModelPath, "saved model")
	f.Int("batch-size", d.BatchSize, "samples per batch")
	f.Int("workers", d.Workers, "batch collation goroutines")
	f.Int("cache-bytes", 0, "encoded-sample cache size, 0 disables")
	return cmd
}

func (c *cli) encodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "encode TEXT...",
		Short: "Print the per-text character indices of each argument",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, text := range args {
				seq := IO.Encode(text)
				nums := make([]string, len(seq))
				for i, k := range seq {
					nums[i] = fmt.Sprint(k)
				}
				fmt.Fprintf(out, "%q [%s] alphabet=%q\n",
					text, strings.Join(nums, " "), string(IO.NewAlphabet(text).Symbols()))
			}
			return nil
		},
	}
}

func (c *cli) exportCmd(d params.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export PREFIX",
		Short: "Write the encoded training records as binary shards",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := c.load(cmd, map[string]string{
				"train":     "train_path",
				"delimiter": "delimiter",
			})
			if err != nil {
				return err
			}
			defer log.Sync()
			maxBytes, _ := cmd.Flags().GetInt64("max-shard-bytes")

			store, err := IO.LoadStore(cfg.TrainPath, cfg.Comma())
			if err != nil {
				return err
			}
			n, err := IO.Export(IO.NewDataset(store, 0), IO.LabelsOf(store), args[0], maxBytes)
			if err != nil {
				return err
			}
			log.Info("export done", zap.Int("records", store.Len()), zap.Int("shards", n))
			fmt.Fprintf(cmd.OutOrStdout(), "%d records -> %d shards at %s\n", store.Len(), n, args[0])
			return nil
		},
	}
	f := cmd.Flags()
	f.String("train", d.TrainPath, "CSV to export")
	f.String("delimiter", d.Delimiter, "field delimiter")
	f.Int64("max-shard-bytes", 10<<30, "start a new shard past this many bytes, 0 = single shard")
	return cmd
}

func (c *cli) historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs, or the loss reports of one run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("history")
			run, _ := cmd.Flags().GetString("run")
			if path == "" {
				return errors.Wrap(params.ErrInvalidConfig, "history path is empty")
			}
			s, err := history.Open(path)
			if err != nil {
				return err
			}
			defer s.Close()

			out := cmd.OutOrStdout()
			if run == "" {
				runs, err := s.Runs()
				if err != nil {
					return err
				}
				for _, id := range runs {
					fmt.Fprintln(out, id)
				}
				return nil
			}
			reports, err := s.Reports(run)
			if err != nil {
				return err
			}
			for _, r := range reports {
				fmt.Fprintf(out, "%s [%d, %5d] loss: %.3f\n", r.At.Format("2006-01-02 15:04:05"), r.Epoch, r.Batch, r.Loss)
			}
			return nil
		},
	}
	cmd.Flags().String("history", "history.sqlite3", "sqlite history file")
	cmd.Flags().String("run", "", "run id to print")
	return cmd
}
