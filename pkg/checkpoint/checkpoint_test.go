package checkpoint

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"charlm/pkg/model"
	"charlm/pkg/train"
	"charlm/pkg/vocab"
)

func TestSaveLoad(t *testing.T) {
	v := vocab.Build([]string{"hello world"}, vocab.Char{})
	m, err := model.New("lstm", 4, v.Size(), 6)
	if err != nil {
		t.Fatal(err)
	}
	want := Bundle{
		Model: m,
		Vocab: v,
		Manifest: Manifest{
			CorpusPath: "corpus.txt",
			CorpusHash: "0123456789abcdef",
			Tokenizer:  "char",
			VocabSize:  v.Size(),
			Train:      train.Config{Cell: "lstm", Hidden: 6, Window: 8, Batch: 4, Epochs: 1, LR: 0.01},
			TrainedAt:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		},
		Metrics: train.Metrics{Epochs: []train.EpochMetrics{{Epoch: 0, TrainLoss: 2, ValLoss: 2.1}}},
	}

	dir := filepath.Join(t.TempDir(), "run")
	if err := Save(dir, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if !reflect.DeepEqual(got.Manifest, want.Manifest) {
		t.Errorf("manifest = %+v, want %+v", got.Manifest, want.Manifest)
	}
	if !reflect.DeepEqual(got.Metrics, want.Metrics) {
		t.Errorf("metrics = %+v", got.Metrics)
	}
	if !reflect.DeepEqual(got.Vocab.Symbols(), v.Symbols()) {
		t.Errorf("symbols = %q", got.Vocab.Symbols())
	}
	a, _, _ := m.StepBatch(v.Encode("hello"), nil)
	b, _, err := got.Model.StepBatch(v.Encode("hello"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Error("reloaded model produces different logits")
	}
}

func TestLoadWithoutMetrics(t *testing.T) {
	v := vocab.Build([]string{"ab"}, vocab.Char{})
	m, _ := model.New("rnn", 1, v.Size(), 2)
	dir := t.TempDir()
	if err := Save(dir, Bundle{Model: m, Vocab: v}); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(filepath.Join(dir, MetricsFile)); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err != nil {
		t.Fatalf("load without metrics: %v", err)
	}
}

func TestLoadRejectsMismatchedVocab(t *testing.T) {
	v := vocab.Build([]string{"abc"}, vocab.Char{})
	m, _ := model.New("rnn", 1, v.Size()+1, 2)
	dir := t.TempDir()
	if err := Save(dir, Bundle{Model: m, Vocab: v}); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatal("expected size mismatch error")
	}
}
