package main

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/jonathan/skill-improver/internal/metrics"
	"github.com/jonathan/skill-improver/internal/server"
)

var (
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start an HTTP server that exposes the skill registry, grading and improvement review endpoints.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (default from config or PORT, else 8080)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a, err := newApp(cmd.Context(), metrics.New(reg))
	if err != nil {
		return err
	}

	port := a.cfg.Port
	if servePort != 0 {
		port = servePort
	}

	srv, err := server.New(server.Config{
		Port:       port,
		Engine:     a.engine,
		Logger:     a.logger,
		Gatherer:   reg,
		OnShutdown: a.close,
	})
	if err != nil {
		a.close()
		return fmt.Errorf("failed to create server: %w", err)
	}

	a.logger.Info().Str("store", a.cfg.Store).Int("port", port).Msg("skill_agent serving")
	return srv.Start()
}
