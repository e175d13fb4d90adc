package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"charlm/pkg/checkpoint"
	"charlm/pkg/config"
	"charlm/pkg/lmerr"
	"charlm/pkg/model"
	"charlm/pkg/train"
	"charlm/pkg/vocab"
)

func TestOverlayFlagsOnlyExplicit(t *testing.T) {
	defaults := config.DefaultTrain()
	cmd := &cobra.Command{Use: "train", RunE: func(*cobra.Command, []string) error { return nil }}
	bindTrainFlags(cmd.Flags(), &defaults)
	if err := cmd.Flags().Parse([]string{"--hidden", "7", "--cell", "rnn"}); err != nil {
		t.Fatalf("parse: %v", err)
	}

	fromFile := config.DefaultTrain()
	fromFile.Hidden = 99
	fromFile.Epochs = 3
	if err := overlayFlags(cmd, func(fs *pflag.FlagSet) { bindTrainFlags(fs, &fromFile) }); err != nil {
		t.Fatalf("overlay: %v", err)
	}
	if fromFile.Hidden != 7 || fromFile.Cell != "rnn" {
		t.Errorf("explicit flags not applied: hidden=%d cell=%q", fromFile.Hidden, fromFile.Cell)
	}
	if fromFile.Epochs != 3 {
		t.Errorf("file value overwritten by default: epochs=%d", fromFile.Epochs)
	}
}

func TestDemoSentences(t *testing.T) {
	got := demoSentences("the cat sat. hello world! ok. ")
	want := []string{"the cat sat.", "hello world! ok."}
	if len(got) != len(want) {
		t.Fatalf("got %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sentence %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func saveTinyModel(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	v := vocab.Build([]string{"abc abc"}, vocab.Char{})
	m, err := model.New("rnn", 1, v.Size(), 4)
	if err != nil {
		t.Fatalf("new model: %v", err)
	}
	err = checkpoint.Save(dir, checkpoint.Bundle{
		Model: m,
		Vocab: v,
		Manifest: checkpoint.Manifest{
			Tokenizer: "char",
			VocabSize: v.Size(),
			Train:     train.Config{Cell: "rnn", Hidden: 4},
		},
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	return dir
}

func TestRunGenerateFromStdin(t *testing.T) {
	cfg := config.DefaultGenerate()
	cfg.Model = saveTinyModel(t)
	cfg.DB = filepath.Join(t.TempDir(), "runs.db")
	cfg.Length = 5
	cfg.Greedy = true

	var out bytes.Buffer
	in := strings.NewReader("ab\n\nc\n")
	if err := runGenerate(context.Background(), cfg, in, &out); err != nil {
		t.Fatalf("runGenerate: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %q", len(lines), out.String())
	}
	if !strings.HasPrefix(lines[0], "ab") || !strings.HasPrefix(lines[1], "c") {
		t.Errorf("outputs do not start with their prompts: %q", lines)
	}
}

func TestRunGenerateRejectsBadLength(t *testing.T) {
	cfg := config.DefaultGenerate()
	cfg.Model = saveTinyModel(t)
	cfg.Prompt = "a"
	cfg.Length = 0

	err := runGenerate(context.Background(), cfg, strings.NewReader(""), &bytes.Buffer{})
	if !errors.Is(err, lmerr.ErrInvalidArgument) {
		t.Fatalf("got %v, want ErrInvalidArgument", err)
	}
}
