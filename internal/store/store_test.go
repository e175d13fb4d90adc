package store

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"charlm/pkg/train"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRunsAndEpochs(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	cfg := train.Config{Cell: "rnn", Hidden: 16, Window: 8, Batch: 4, Epochs: 2, LR: 0.01, Seed: 7}
	started := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	id, err := s.CreateRun(ctx, Run{StartedAt: started, ModelDir: "out/a", CorpusHash: "abc", Config: cfg})
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.CreateRun(ctx, Run{StartedAt: started, ModelDir: "out/b", CorpusHash: "def", Config: cfg})
	if err != nil {
		t.Fatal(err)
	}

	want := []train.EpochMetrics{
		{Epoch: 0, TrainLoss: 2.5, ValLoss: 2.6, Perplexity: 13.5},
		{Epoch: 1, TrainLoss: 1.5, ValLoss: 1.7, Perplexity: 5.5},
	}
	for _, em := range want {
		if err := s.RecordEpoch(ctx, id, em); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := s.ListRuns(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0].ID != second || runs[1].ID != id {
		t.Fatalf("runs = %+v", runs)
	}
	if !runs[1].StartedAt.Equal(started) || runs[1].Config != cfg || runs[1].ModelDir != "out/a" {
		t.Fatalf("run = %+v", runs[1])
	}

	got, err := s.Epochs(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("epochs = %+v, want %+v", got, want)
	}
	if none, _ := s.Epochs(ctx, second); len(none) != 0 {
		t.Fatalf("second run has epochs: %+v", none)
	}
}

func TestSamples(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)
	want := []Sample{
		{ModelDir: "out/a", Seed: "the", Temperature: 0.8, Output: "the cat"},
		{ModelDir: "out/a", Seed: "the", Greedy: true, Output: "the the"},
	}
	for _, smp := range want {
		if err := s.RecordSample(ctx, smp); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.RecordSample(ctx, Sample{ModelDir: "out/b", Seed: "x", Output: "xy"}); err != nil {
		t.Fatal(err)
	}
	got, err := s.Samples(ctx, "out/a")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("samples = %+v", got)
	}
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "runs.db")
	s, err := Open(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateRun(ctx, Run{StartedAt: time.Now(), ModelDir: "m", CorpusHash: "h", Config: train.Config{Cell: "lstm"}}); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = Open(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	runs, err := s.ListRuns(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Config.Cell != "lstm" {
		t.Fatalf("runs after reopen = %+v", runs)
	}
}
