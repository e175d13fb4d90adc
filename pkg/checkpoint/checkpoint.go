// Package checkpoint stores a trained model directory:
//
//	model.gob      model parameters
//	vocab.json     vocabulary and tokenizer name
//	manifest.json  how the model was trained
//	metrics.json   per-epoch losses
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"charlm/pkg/model"
	"charlm/pkg/train"
	"charlm/pkg/vocab"
)

const (
	ModelFile    = "model.gob"
	VocabFile    = "vocab.json"
	ManifestFile = "manifest.json"
	MetricsFile  = "metrics.json"
)

type Manifest struct {
	CorpusPath   string       `json:"corpus_path"`
	CorpusHash   string       `json:"corpus_hash"`
	Tokenizer    string       `json:"tokenizer"`
	VocabSize    int          `json:"vocab_size"`
	Train        train.Config `json:"train"`
	BestValLoss  float64      `json:"best_val_loss"`
	TrainedAt    time.Time    `json:"trained_at"`
	BuildVersion string       `json:"build_version"`
}

type Bundle struct {
	Model    model.Model
	Vocab    *vocab.Vocabulary
	Manifest Manifest
	Metrics  train.Metrics
}

// Save writes b into dir, creating it if needed.
func Save(dir string, b Bundle) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := model.Save(filepath.Join(dir, ModelFile), b.Model); err != nil {
		return fmt.Errorf("saving model: %w", err)
	}
	if err := b.Vocab.Save(filepath.Join(dir, VocabFile)); err != nil {
		return fmt.Errorf("saving vocabulary: %w", err)
	}
	if err := saveJSON(filepath.Join(dir, ManifestFile), b.Manifest); err != nil {
		return fmt.Errorf("saving manifest: %w", err)
	}
	if err := b.Metrics.SaveJSON(filepath.Join(dir, MetricsFile)); err != nil {
		return fmt.Errorf("saving metrics: %w", err)
	}
	return nil
}

// Load reads a directory written by Save. metrics.json is optional.
func Load(dir string) (*Bundle, error) {
	m, err := model.Load(filepath.Join(dir, ModelFile))
	if err != nil {
		return nil, err
	}
	v, err := vocab.Load(filepath.Join(dir, VocabFile))
	if err != nil {
		return nil, err
	}
	if m.VocabSize() != v.Size() {
		return nil, fmt.Errorf("%s: model expects %d symbols, vocabulary has %d", dir, m.VocabSize(), v.Size())
	}

	b := &Bundle{Model: m, Vocab: v}
	if err := loadJSON(filepath.Join(dir, ManifestFile), &b.Manifest); err != nil {
		return nil, fmt.Errorf("loading manifest: %w", err)
	}
	if err := loadJSON(filepath.Join(dir, MetricsFile), &b.Metrics); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading metrics: %w", err)
	}
	return b, nil
}

func saveJSON(path string, data any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func loadJSON(path string, data any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewDecoder(f).Decode(data)
}
