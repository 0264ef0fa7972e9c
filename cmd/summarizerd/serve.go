package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/aschepis/backscratcher/summarizer/logger"
	"github.com/aschepis/backscratcher/summarizer/server"
	"github.com/spf13/cobra"
)

var (
	hostFlag    string
	portFlag    int
	grpcFlag    string
	logFileFlag string
	prettyFlag  bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	Long: `Run the HTTP server.

Endpoints:
  GET  /health           - liveness check
  POST /stream_summary/  - stream a summary of {"content", "percent", "bullets", "temperature"}
  POST /stream_chat/     - stream an agent response to {"content"}

With --grpc, the standard gRPC health service is served on that address too.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	addServeFlags(serveCmd)
}

func addServeFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&hostFlag, "host", "", "Host to listen on (default from config, 0.0.0.0)")
	cmd.Flags().IntVarP(&portFlag, "port", "p", 0, "Port to listen on (default from config, 6677)")
	cmd.Flags().StringVar(&grpcFlag, "grpc", "", "Address for the gRPC health server (e.g., localhost:6678)")
	cmd.Flags().StringVar(&logFileFlag, "logfile", "", "Path to log file. If not set, logs to stdout")
	cmd.Flags().BoolVar(&prettyFlag, "pretty", false, "Use pretty console output (only valid when logfile is not set)")
}

func runServe(cmd *cobra.Command, args []string) error {
	if logFileFlag != "" && prettyFlag {
		return fmt.Errorf("--logfile and --pretty are mutually exclusive")
	}

	log, err := logger.InitWithOptions(logFileFlag, prettyFlag)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if hostFlag != "" {
		cfg.Server.Host = hostFlag
	}
	if portFlag != 0 {
		if portFlag < 1 || portFlag > 65535 {
			return fmt.Errorf("invalid port %d", portFlag)
		}
		cfg.Server.Port = portFlag
	}
	if grpcFlag != "" {
		cfg.Server.GRPC = grpcFlag
	}

	log.Info().
		Str("address", cfg.Server.Addr()).
		Str("grpc", cfg.Server.GRPC).
		Strs("providers", cfg.LLMProviders).
		Msg("summarizerd starting")

	eng := newEngine(cfg, log)
	srv := server.New(cfg.Server, eng, log)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx); err != nil {
		return err
	}
	log.Info().Msg("summarizerd stopped")
	return nil
}
