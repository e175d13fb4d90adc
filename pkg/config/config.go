// Package config holds the charlm training and generation settings.
// Values come from defaults, then an optional YAML file, then flags.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"charlm/pkg/lmerr"
	"charlm/pkg/train"
)

// Train configures the train command.
type Train struct {
	Corpus    string  `yaml:"corpus"`
	Out       string  `yaml:"out"`
	DB        string  `yaml:"db"`
	Tokenizer string  `yaml:"tokenizer"`
	Vocab     int     `yaml:"vocab"`
	Cell      string  `yaml:"cell"`
	Window    int     `yaml:"window"`
	Hidden    int     `yaml:"hidden"`
	Batch     int     `yaml:"batch"`
	Epochs    int     `yaml:"epochs"`
	LR        float64 `yaml:"lr"`
	Clip      float64 `yaml:"clip"`
	L2        float64 `yaml:"l2"`
	ValFrac   float64 `yaml:"val_frac"`
	Patience  int     `yaml:"patience"`
	Seed      int64   `yaml:"seed"`
}

type Generate struct {
	Model       string  `yaml:"model"`
	DB          string  `yaml:"db"`
	Prompt      string  `yaml:"prompt"`
	Length      int     `yaml:"length"`
	Temperature float64 `yaml:"temperature"`
	Greedy      bool    `yaml:"greedy"`
	Seed        int64   `yaml:"seed"`
	CacheSize   int     `yaml:"cache_size"`
}

// DefaultTrain mirrors the flag defaults of the train command.
func DefaultTrain() Train {
	return Train{
		Tokenizer: "char",
		Vocab:     128,
		Cell:      "lstm",
		Window:    32,
		Hidden:    64,
		Batch:     32,
		Epochs:    30,
		LR:        5e-3,
		Clip:      5,
		L2:        0,
		ValFrac:   0.1,
		Patience:  5,
		Seed:      1337,
	}
}

func DefaultGenerate() Generate {
	return Generate{
		Length:      200,
		Temperature: 0.8,
		Seed:        0,
		CacheSize:   64,
	}
}

// LoadTrain overlays the YAML file at path on the defaults.
func LoadTrain(path string) (Train, error) {
	cfg := DefaultTrain()
	if err := loadYAML(path, &cfg); err != nil {
		return Train{}, err
	}
	return cfg, nil
}

func LoadGenerate(path string) (Generate, error) {
	cfg := DefaultGenerate()
	if err := loadYAML(path, &cfg); err != nil {
		return Generate{}, err
	}
	return cfg, nil
}

func loadYAML(path string, into any) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, into); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

func (c Train) Validate() error {
	if c.Corpus == "" || c.Out == "" {
		return fmt.Errorf("corpus and out are required: %w", lmerr.ErrInvalidArgument)
	}
	if c.Vocab < 2 {
		return fmt.Errorf("vocab %d must leave room beyond <unk>: %w", c.Vocab, lmerr.ErrInvalidArgument)
	}
	return nil
}

// TrainerConfig extracts the optimisation settings.
func (c Train) TrainerConfig() train.Config {
	return train.Config{
		Cell:     c.Cell,
		Hidden:   c.Hidden,
		Window:   c.Window,
		Batch:    c.Batch,
		Epochs:   c.Epochs,
		LR:       c.LR,
		Clip:     c.Clip,
		L2:       c.L2,
		ValFrac:  c.ValFrac,
		Patience: c.Patience,
		Seed:     c.Seed,
	}
}

func (c Generate) Validate() error {
	switch {
	case c.Model == "":
		return fmt.Errorf("model directory is required: %w", lmerr.ErrInvalidArgument)
	case c.Length <= 0:
		return fmt.Errorf("length %d: %w", c.Length, lmerr.ErrInvalidArgument)
	case !c.Greedy && !(c.Temperature > 0):
		return fmt.Errorf("temperature %v: %w", c.Temperature, lmerr.ErrInvalidArgument)
	}
	return nil
}
