package train

import (
	"encoding/json"
	"os"
)

// EpochMetrics summarises one pass over the training windows.
type EpochMetrics struct {
	Epoch      int     `json:"epoch"`
	TrainLoss  float64 `json:"train_loss"`
	ValLoss    float64 `json:"val_loss"`
	Perplexity float64 `json:"perplexity"`
	Skipped    int     `json:"skipped_batches,omitempty"`
	Best       bool    `json:"best,omitempty"`
}

type Metrics struct {
	Epochs []EpochMetrics `json:"epochs"`
}

// Last returns the most recent epoch, if any.
func (m Metrics) Last() (EpochMetrics, bool) {
	if len(m.Epochs) == 0 {
		return EpochMetrics{}, false
	}
	return m.Epochs[len(m.Epochs)-1], true
}

// SaveJSON writes the metrics as indented JSON.
func (m Metrics) SaveJSON(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(m)
}
