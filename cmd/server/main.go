// Command server runs the HTTP query/archive-browsing surface (spec.md
// section 6): auction fetch, recent overview, price summary/history,
// restore/retire against the legacy collaborator, import offset control,
// and archive browsing/migration trigger.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/skyblock-archive/auctions/internal/api"
	"github.com/skyblock-archive/auctions/internal/config"
	"github.com/skyblock-archive/auctions/internal/filter"
	"github.com/skyblock-archive/auctions/internal/migrator"
	"github.com/skyblock-archive/auctions/internal/obslog"
	"github.com/skyblock-archive/auctions/internal/query"
	"github.com/skyblock-archive/auctions/internal/wiring"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "server",
	Short: "Serve the auction archive's query and archive-browsing API",
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
	log := obslog.New("component", "cmd.server")

	hot, err := wiring.OpenHotStore(cfg)
	if err != nil {
		return err
	}
	cold, err := wiring.OpenColdStore(cfg)
	if err != nil {
		return err
	}
	if err := cold.LoadIndexes(cmd.Context(), cfg.Tags); err != nil {
		log.Warn("cold store index hydration failed, starting with empty master bloom", "err", err)
	}

	router := query.NewTierRouter(hot, cold, true, cfg.RetentionMonths)
	engine := query.NewEngine(router, hot, query.NewMemSummaryStore(), filter.BasicCompiler{}, wiring.OpenPlayerLookup(cfg))
	mig := migrator.New(hot, cold, cfg.Tags, cfg.RetentionMonths)
	offsets := wiring.OpenOffsetTracker(cfg)
	if err := offsets.Load(cmd.Context()); err != nil {
		log.Warn("offset hydration failed, starting from zero", "err", err)
	}

	_, restorer, err := wiring.OpenSQLSource(cfg)
	if err != nil {
		return err
	}

	server := api.NewServer(engine, hot, cold, mig, offsets, restorer)

	httpServer := &http.Server{Addr: cfg.HTTPAddr, Handler: server.Router()}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server exited", "err", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
