package main

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"k8s.io/klog/v2"

	"charlm/internal/store"
	"charlm/pkg/checkpoint"
	"charlm/pkg/config"
	"charlm/pkg/corpus"
	"charlm/pkg/generate"
	"charlm/pkg/model"
	"charlm/pkg/train"
	"charlm/pkg/vocab"
	"charlm/pkg/window"
)

const buildVersion = "dev"

func bindTrainFlags(fs *pflag.FlagSet, c *config.Train) {
	fs.StringVar(&c.Corpus, "corpus", c.Corpus, "Path to training corpus (required)")
	fs.StringVar(&c.Out, "out", c.Out, "Output directory for the model (required)")
	fs.StringVar(&c.DB, "db", c.DB, "sqlite run history (optional)")
	fs.StringVar(&c.Tokenizer, "tokenizer", c.Tokenizer, "Tokenizer: char, word or bpe[:encoding]")
	fs.IntVar(&c.Vocab, "vocab", c.Vocab, "Maximum vocabulary size, <unk> included")
	fs.StringVar(&c.Cell, "cell", c.Cell, "Recurrent cell: rnn or lstm")
	fs.IntVar(&c.Window, "window", c.Window, "Training window length")
	fs.IntVar(&c.Hidden, "hidden", c.Hidden, "Hidden state size")
	fs.IntVar(&c.Batch, "batch", c.Batch, "Batch size")
	fs.IntVar(&c.Epochs, "epochs", c.Epochs, "Number of epochs")
	fs.Float64Var(&c.LR, "lr", c.LR, "Learning rate")
	fs.Float64Var(&c.Clip, "clip", c.Clip, "Gradient clipping (0 disables)")
	fs.Float64Var(&c.L2, "l2", c.L2, "L2 regularization")
	fs.Float64Var(&c.ValFrac, "val-frac", c.ValFrac, "Fraction of windows held out for validation")
	fs.IntVar(&c.Patience, "patience", c.Patience, "Early stopping patience in epochs (0 disables)")
	fs.Int64Var(&c.Seed, "seed", c.Seed, "Random seed")
}

func newTrainCmd() *cobra.Command {
	var configPath string
	flagCfg := config.DefaultTrain()

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a new model from a text corpus",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadTrain(configPath)
			if err != nil {
				return err
			}
			if err := overlayFlags(cmd, func(fs *pflag.FlagSet) { bindTrainFlags(fs, &cfg) }); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runTrain(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "YAML training configuration")
	bindTrainFlags(cmd.Flags(), &flagCfg)
	return cmd
}

func runTrain(ctx context.Context, cfg config.Train) error {
	klog.InfoS("loading corpus", "path", cfg.Corpus)
	text, err := corpus.Load(cfg.Corpus)
	if err != nil {
		return fmt.Errorf("loading corpus: %w", err)
	}
	hash := corpus.Hash(text)
	lines := corpus.Lines(text)
	klog.InfoS("corpus loaded", "chars", len(text), "lines", len(lines), "hash", hash)

	tok, err := vocab.TokenizerByName(cfg.Tokenizer)
	if err != nil {
		return err
	}
	v := vocab.Build(lines, tok, vocab.WithMaxSize(cfg.Vocab))
	klog.InfoS("vocabulary built", "size", v.Size(), "tokenizer", tok.Name())
	if rate := v.UnkRate(text); rate > 0.1 {
		klog.Warningf("high <unk> rate %.2f%%, consider increasing --vocab", rate*100)
	}

	windows, err := window.FromTexts(v, lines, cfg.Window)
	if err != nil {
		return err
	}
	if len(windows) == 0 {
		return fmt.Errorf("no line of %s is longer than the window (%d symbols)", cfg.Corpus, cfg.Window)
	}

	tc := cfg.TrainerConfig()
	var (
		st    *store.Store
		runID int64
	)
	if cfg.DB != "" {
		if st, err = store.Open(ctx, cfg.DB); err != nil {
			return err
		}
		defer st.Close()
		runID, err = st.CreateRun(ctx, store.Run{
			StartedAt:  time.Now(),
			ModelDir:   cfg.Out,
			CorpusHash: hash,
			Config:     tc,
		})
		if err != nil {
			return err
		}
	}
	onEpoch := func(em train.EpochMetrics) {
		logEpoch(em)
		if st == nil {
			return
		}
		if err := st.RecordEpoch(ctx, runID, em); err != nil {
			klog.Warningf("run history: %v", err)
		}
	}

	res, err := train.Train(ctx, windows, v.Size(), tc, train.WithEpochHook(onEpoch))
	if err != nil {
		return err
	}
	klog.InfoS("training complete", "best_val_loss", res.BestValLoss, "perplexity", math.Exp(res.BestValLoss), "early_stop", res.EarlyStop)

	err = checkpoint.Save(cfg.Out, checkpoint.Bundle{
		Model: res.Model,
		Vocab: v,
		Manifest: checkpoint.Manifest{
			CorpusPath:   cfg.Corpus,
			CorpusHash:   hash,
			Tokenizer:    tok.Name(),
			VocabSize:    v.Size(),
			Train:        tc,
			BestValLoss:  res.BestValLoss,
			TrainedAt:    time.Now(),
			BuildVersion: buildVersion,
		},
		Metrics: res.Metrics,
	})
	if err != nil {
		return err
	}
	fmt.Printf("💾 Model saved to %s\n", cfg.Out)

	fmt.Println("\n🎲 Quick quality test:")
	printSamples(res.Model, v, []string{"the", "and", "in"}, 40, cfg.Seed)
	fmt.Printf("\n🚀 Generate with: echo \"your prompt\" | charlm generate --model %s\n", cfg.Out)
	return nil
}

func logEpoch(em train.EpochMetrics) {
	klog.InfoS("epoch", "epoch", em.Epoch, "train", fmt.Sprintf("%.4f", em.TrainLoss),
		"val", fmt.Sprintf("%.4f", em.ValLoss), "ppl", fmt.Sprintf("%.2f", em.Perplexity), "best", em.Best)
}

// printSamples shows a greedy and a sampled continuation for each prefix.
func printSamples(m model.Model, v *vocab.Vocabulary, prefixes []string, length int, seed int64) {
	rng := rand.New(rand.NewSource(seed))
	for _, p := range prefixes {
		greedy, err := generate.GenerateGreedy(m, v, p, length)
		if err != nil {
			fmt.Printf("   %q: %v\n", p, err)
			continue
		}
		sampled, err := generate.GenerateSampled(m, v, p, length, 0.8, rng)
		if err != nil {
			fmt.Printf("   %q: %v\n", p, err)
			continue
		}
		fmt.Printf("   greedy  %q → %q\n", p, greedy)
		fmt.Printf("   t=0.8   %q → %q\n", p, sampled)
	}
}
