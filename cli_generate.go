package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math/rand"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"k8s.io/klog/v2"

	"charlm/internal/store"
	"charlm/pkg/checkpoint"
	"charlm/pkg/config"
	"charlm/pkg/generate"
)

func bindGenerateFlags(fs *pflag.FlagSet, c *config.Generate) {
	fs.StringVar(&c.Model, "model", c.Model, "Model directory written by train (required)")
	fs.StringVar(&c.DB, "db", c.DB, "sqlite run history to record samples in (optional)")
	fs.StringVar(&c.Prompt, "prompt", c.Prompt, "Seed text; read one prompt per stdin line when empty")
	fs.IntVar(&c.Length, "length", c.Length, "Number of symbols to generate")
	fs.Float64Var(&c.Temperature, "temperature", c.Temperature, "Sampling temperature (> 0)")
	fs.BoolVar(&c.Greedy, "greedy", c.Greedy, "Always pick the most likely symbol")
	fs.Int64Var(&c.Seed, "rng-seed", c.Seed, "Random seed (0 for time-based)")
	fs.IntVar(&c.CacheSize, "cache-size", c.CacheSize, "Number of primed prompts to keep")
}

func newGenerateCmd() *cobra.Command {
	var configPath string
	flagCfg := config.DefaultGenerate()

	cmd := &cobra.Command{
		Use:     "generate",
		Aliases: []string{"infer"},
		Short:   "Generate text from a trained model",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadGenerate(configPath)
			if err != nil {
				return err
			}
			if err := overlayFlags(cmd, func(fs *pflag.FlagSet) { bindGenerateFlags(fs, &cfg) }); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runGenerate(cmd.Context(), cfg, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "YAML generation configuration")
	bindGenerateFlags(cmd.Flags(), &flagCfg)
	return cmd
}

func runGenerate(ctx context.Context, cfg config.Generate, in io.Reader, out io.Writer) error {
	b, err := checkpoint.Load(cfg.Model)
	if err != nil {
		return err
	}
	klog.V(1).InfoS("model loaded", "dir", cfg.Model, "cell", b.Model.Kind(), "vocab", b.Vocab.Size())

	g := &generate.Generator{Model: b.Model, Vocab: b.Vocab}
	if cfg.CacheSize > 0 {
		if g.Cache, err = generate.NewPrimeCache(cfg.CacheSize); err != nil {
			return err
		}
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	var st *store.Store
	if cfg.DB != "" {
		if st, err = store.Open(ctx, cfg.DB); err != nil {
			return err
		}
		defer st.Close()
	}

	complete := func(prompt string) error {
		var text string
		if cfg.Greedy {
			text, err = g.Greedy(prompt, cfg.Length)
		} else {
			text, err = g.Sampled(prompt, cfg.Length, cfg.Temperature, rng)
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(out, text)
		if st == nil {
			return nil
		}
		return st.RecordSample(ctx, store.Sample{
			ModelDir:    cfg.Model,
			Seed:        prompt,
			Temperature: cfg.Temperature,
			Greedy:      cfg.Greedy,
			Output:      text,
		})
	}

	if cfg.Prompt != "" {
		return complete(cfg.Prompt)
	}

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		prompt := strings.TrimSpace(scanner.Text())
		if prompt == "" {
			continue
		}
		if err := complete(prompt); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading prompts: %w", err)
	}
	return nil
}
