package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/aschepis/backscratcher/summarizer/relay"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintStream(t *testing.T) {
	stream := relay.Start(context.Background(), 0, func(ctx context.Context, emit relay.Emit) error {
		for _, tok := range []string{"Short", " summary."} {
			if err := emit(tok); err != nil {
				return err
			}
		}
		return nil
	}, zerolog.Nop())

	var out bytes.Buffer
	require.NoError(t, printStream(&out, stream))
	assert.Equal(t, "Short summary.\n", out.String())
}

func TestPrintStreamError(t *testing.T) {
	stream := relay.Start(context.Background(), 0, func(ctx context.Context, emit relay.Emit) error {
		return errors.New("boom")
	}, zerolog.Nop())

	var out bytes.Buffer
	assert.EqualError(t, printStream(&out, stream), "boom")
	assert.Empty(t, out.String())
}

func TestLoadConfigModelFlag(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("summary:\n  max_tokens: 512\n"), 0o600))

	configPathFlag, modelFlag = path, "gpt-test"
	t.Cleanup(func() { configPathFlag, modelFlag = "", "" })

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "gpt-test", cfg.Agent.Model)
	assert.Equal(t, "gpt-test", cfg.Summary.Model)
	assert.Equal(t, int64(512), cfg.Summary.MaxTokens)
}

func TestWriteSummary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.txt")
	stream := relay.Start(context.Background(), 0, func(ctx context.Context, emit relay.Emit) error {
		for _, tok := range []string{"Short", " summary."} {
			if err := emit(tok); err != nil {
				return err
			}
		}
		return nil
	}, zerolog.Nop())

	require.NoError(t, writeSummary(context.Background(), path, stream))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Short summary.\n", string(data))
}

func TestWriteSummaryErrorLeavesNoFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.txt")
	stream := relay.Start(context.Background(), 0, func(ctx context.Context, emit relay.Emit) error {
		if err := emit("Partial"); err != nil {
			return err
		}
		return errors.New("connection reset")
	}, zerolog.Nop())

	assert.EqualError(t, writeSummary(context.Background(), path, stream), "connection reset")
	assert.NoFileExists(t, path)
}
