// Command goftpd runs the FTP server daemon.
package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/gera2ld/goftpd"
	"github.com/gera2ld/goftpd/internal/config"
	"github.com/gera2ld/goftpd/log/gokit"
)

var confFile string

func main() {
	root := &cobra.Command{
		Use:   "goftpd",
		Short: "goftpd is a lightweight FTP server",
	}

	root.PersistentFlags().StringVar(&confFile, "conf", "goftpd.toml", "Configuration file")

	root.AddCommand(runCmd(), genConfCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the FTP server (blocking)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func genConfCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "genconfig",
		Short: "Write a starter configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				if _, err := os.Stat(confFile); err == nil {
					return fmt.Errorf("%s already exists, pass --force to overwrite", confFile)
				}
			}

			return os.WriteFile(confFile, config.SampleContent(), 0o644)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")

	return cmd
}

func runServer() error {
	logger := gokit.NewGKLoggerStdout()

	cfg, err := config.Load(confFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	driver, err := config.NewDriver(cfg)
	if err != nil {
		return fmt.Errorf("building driver: %w", err)
	}

	server := ftpd.NewServer(driver)
	server.Logger = logger.With("component", "server")

	if cfg.Metrics.Enabled {
		go serveMetrics(cfg.Metrics.ListenAddr, logger.With("component", "metrics"))
	}

	done := make(chan struct{})

	go signalHandler(server, done)

	if err := server.ListenAndServe(); err != nil {
		select {
		case <-done:
			// Stop() was already called by the signal handler.
			return nil
		default:
			return fmt.Errorf("serving: %w", err)
		}
	}

	return nil
}

func serveMetrics(addr string, logger interface {
	Error(event string, keyvals ...interface{})
}) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	if err := http.ListenAndServe(addr, mux); err != nil { //nolint:gosec
		logger.Error("metrics server stopped", "err", err)
	}
}

func signalHandler(server *ftpd.Server, done chan struct{}) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(ch)

	<-ch
	close(done)
	server.Stop() //nolint:errcheck
}
