package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"firestige.xyz/firestorm/internal/config"
	"firestige.xyz/firestorm/internal/engine"
	"firestige.xyz/firestorm/internal/log"
	"firestige.xyz/firestorm/internal/metrics"
	"firestige.xyz/firestorm/internal/pipeline"
	"firestige.xyz/firestorm/internal/source/pcap"
)

var decodeCmd = &cobra.Command{
	Use:   "decode [file.pcap ...]",
	Short: "Decode capture files and report layer summaries",
	Long: `Decode one or more pcap or pcapng files. Every packet that passes the configured
BPF filter is decoded and its layer summary is sent to the configured sink.

Examples:
  firestorm decode trace.pcap
  firestorm decode -c /etc/firestorm/config.yml a.pcapng b.pcap`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(configFile)
		if err != nil {
			exitWithError("failed to load config", err)
		}
		if err := log.Init(cfg.Log); err != nil {
			exitWithError("failed to initialize logger", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if cfg.Metrics.Enabled {
			srv := metrics.NewServer(cfg.Metrics)
			if err := srv.Start(ctx); err != nil {
				exitWithError("failed to start metrics server", err)
			}
			defer srv.Stop(context.Background())
		}

		if err := runDecode(ctx, cfg, args, os.Stdout); err != nil {
			exitWithError("decode failed", err)
		}
	},
}

// runDecode activates a fresh engine, drives every file through the
// configured pipeline and shuts the engine down again.
func runDecode(ctx context.Context, cfg *config.GlobalConfig, files []string, out io.Writer) error {
	sources := make([]pipeline.Source, 0, len(files))
	closeAll := func() {
		for _, s := range sources {
			s.Close()
		}
	}
	for _, path := range files {
		src, err := pcap.Open(path)
		if err != nil {
			closeAll()
			return err
		}
		sources = append(sources, src)
	}

	eng, err := engine.New(cfg)
	if err != nil {
		closeAll()
		return err
	}
	if err := eng.Start(); err != nil {
		closeAll()
		return fmt.Errorf("activate flow subsystems: %w", err)
	}
	defer eng.Stop()

	p, err := pipeline.FromConfig(eng.Registry, cfg.Pipeline, out)
	if err != nil {
		closeAll()
		return fmt.Errorf("build pipeline: %w", err)
	}
	defer p.Close()

	// Run closes the sources it drains.
	runErr := p.Run(ctx, sources...)

	stats := p.Stats()
	log.GetLogger().WithFields(map[string]interface{}{
		"received":    stats.Received.Load(),
		"filtered":    stats.Filtered.Load(),
		"decoded":     stats.Decoded.Load(),
		"reported":    stats.Reported.Load(),
		"sink_errors": stats.SinkErrors.Load(),
		"fragments":   eng.Fragments.Len(),
		"connections": eng.Streams.Len(),
	}).Info("decode finished")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}
