package model

import (
	"encoding/gob"
	"fmt"
	"os"

	"charlm/pkg/lmerr"
)

type checkpoint struct {
	Kind string
	RNN  *RNN
	LSTM *LSTM
}

// Save writes m to path with gob.
func Save(path string, m Model) error {
	ck := checkpoint{Kind: m.Kind()}
	switch mm := m.(type) {
	case *RNN:
		ck.RNN = mm
	case *LSTM:
		ck.LSTM = mm
	default:
		return fmt.Errorf("save model: unsupported model %T", m)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gob.NewEncoder(f).Encode(ck)
}

// Load reads a model written by Save.
func Load(path string) (Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var ck checkpoint
	if err := gob.NewDecoder(f).Decode(&ck); err != nil {
		return nil, fmt.Errorf("decoding model %s: %w", path, err)
	}
	switch {
	case ck.Kind == "rnn" && ck.RNN != nil:
		return ck.RNN, nil
	case ck.Kind == "lstm" && ck.LSTM != nil:
		return ck.LSTM, nil
	}
	return nil, fmt.Errorf("model %s: unknown kind %q", path, ck.Kind)
}

// New builds a freshly initialised model of the given kind.
func New(kind string, seed int64, vocabSize, hidden int) (Model, error) {
	rng := newRand(seed)
	switch kind {
	case "rnn":
		return NewRNN(rng, vocabSize, hidden), nil
	case "lstm":
		return NewLSTM(rng, vocabSize, hidden), nil
	}
	return nil, fmt.Errorf("model kind %q: %w", kind, lmerr.ErrInvalidArgument)
}
