// Command importer runs the write path: it first drains the historical
// backlog from the legacy relational collaborator (if configured), then
// takes over as the live Kafka consumer for newly sold auctions, per
// spec.md section 4.8.
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/skyblock-archive/auctions/internal/config"
	"github.com/skyblock-archive/auctions/internal/ingest"
	"github.com/skyblock-archive/auctions/internal/obslog"
	"github.com/skyblock-archive/auctions/internal/wiring"
	"github.com/skyblock-archive/auctions/internal/workerpool"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "importer",
	Short: "Drain the historical backlog, then consume the live sold-auction feed",
	RunE:  run,
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to a TOML config overlay")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		obslog.Root().Error(err.Error())
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	obslog.SetLevel(cfg.LogLevel)
	log := obslog.New("component", "cmd.importer")

	hot, err := wiring.OpenHotStore(cfg)
	if err != nil {
		return err
	}
	offsets := wiring.OpenOffsetTracker(cfg)
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := offsets.Load(ctx); err != nil {
		log.Warn("offset hydration failed, starting from zero", "err", err)
	}

	pool := workerpool.New(cfg.WorkerPoolSize)
	pool.Start(ctx)
	defer pool.Stop()

	pipeline := ingest.NewPipeline(pool, hot, offsets)
	pipeline.QueueHighWatermarkAuctions = cfg.QueueHighWatermarkAuctions
	pipeline.QueueHighWatermarkBids = cfg.QueueHighWatermarkBids

	source, _, err := wiring.OpenSQLSource(cfg)
	if err != nil {
		return err
	}
	if source != nil {
		log.Info("draining historical backlog")
		histMigrator := ingest.NewHistoricalMigrator(source, pipeline)
		if err := histMigrator.Run(ctx); err != nil {
			return err
		}
		log.Info("historical backlog drained, switching to live feed")
	}

	consumer := wiring.OpenBusConsumer(cfg)
	busConsumer := ingest.NewBusConsumer(consumer, pipeline)
	return busConsumer.Run(ctx)
}
