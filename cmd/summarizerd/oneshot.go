package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/aschepis/backscratcher/summarizer/logger"
	"github.com/aschepis/backscratcher/summarizer/relay"
	"github.com/aschepis/backscratcher/summarizer/summarize"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	percentFlag     int
	bulletsFlag     bool
	temperatureFlag float64
	outputFlag      string
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize [file]",
	Short: "Summarize a file, or stdin, to the terminal",
	Long: `Summarize a file, or stdin when no file is given, streaming the summary to stdout.

Examples:
  summarizerd summarize notes.txt
  summarizerd summarize --percent 10 --bullets report.md
  cat article.txt | summarizerd summarize -t 0.7
  summarizerd summarize -o summary.txt report.md`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSummarize,
}

var chatCmd = &cobra.Command{
	Use:   "chat <text>",
	Short: "Send one message to the agent and stream its answer",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log := cliLogger()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		stream, err := newEngine(cfg, log).StreamResponse(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		return printStream(cmd.OutOrStdout(), stream)
	},
}

func init() {
	summarizeCmd.Flags().IntVar(&percentFlag, "percent", summarize.DefaultPercent, "Target summary length as a percentage of the input (1-100)")
	summarizeCmd.Flags().BoolVarP(&bulletsFlag, "bullets", "b", false, "Format the summary as bullet points")
	summarizeCmd.Flags().Float64VarP(&temperatureFlag, "temperature", "t", summarize.DefaultTemperature, "Sampling temperature (0.0-1.0)")
	summarizeCmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Write the finished summary to this file instead of streaming it to stdout")
}

func runSummarize(cmd *cobra.Command, args []string) error {
	log := cliLogger()

	var in io.Reader = cmd.InOrStdin()
	if len(args) == 1 {
		//nolint:gosec // G304: user-specified input path is intentional
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", args[0], err)
		}
		defer f.Close() //nolint:errcheck // read-only file
		in = f
	}
	content, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stream, err := newEngine(cfg, log).StreamSummary(ctx, summarize.Params{
		Content:     string(content),
		Percent:     percentFlag,
		Bullets:     bulletsFlag,
		Temperature: temperatureFlag,
	})
	if err != nil {
		return err
	}
	if outputFlag != "" {
		return writeSummary(ctx, outputFlag, stream)
	}
	return printStream(cmd.OutOrStdout(), stream)
}

// writeSummary waits for the whole summary and writes it to path. Nothing is
// written when the stream fails.
func writeSummary(ctx context.Context, path string, stream *relay.Stream) error {
	summary, err := stream.Collect(ctx)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(summary+"\n"), 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// cliLogger logs to stderr so that stdout carries only generated text.
func cliLogger() zerolog.Logger {
	level := zerolog.WarnLevel
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		level = logger.ParseLevel(env)
	}
	return logger.New(zerolog.ConsoleWriter{Out: os.Stderr}, level)
}

func printStream(out io.Writer, stream *relay.Stream) error {
	defer func() { _ = stream.Close() }()

	for token := range stream.Tokens() {
		if _, err := io.WriteString(out, token); err != nil {
			return err
		}
	}
	if err := stream.Wait(); err != nil {
		return err
	}
	_, err := fmt.Fprintln(out)
	return err
}
