// Command migrator runs the archive migrator: one pass of hot→cold
// copy/verify/delete per configured tag, from 2019-01 up to
// now−RetentionMonths. Intended to run on a schedule (cron, k8s CronJob);
// each invocation is a single idempotent pass, not a daemon.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/skyblock-archive/auctions/internal/config"
	"github.com/skyblock-archive/auctions/internal/migrator"
	"github.com/skyblock-archive/auctions/internal/obslog"
	"github.com/skyblock-archive/auctions/internal/wiring"
)

var (
	configPath string
	dryRun     bool
)

var rootCmd = &cobra.Command{
	Use:   "migrator",
	Short: "Run one pass of the hot-to-cold archive migration",
	RunE:  run,
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to a TOML config overlay")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "archive to cold storage but skip deleting hot rows")
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
	log := obslog.New("component", "cmd.migrator")

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

	mig := migrator.New(hot, cold, cfg.Tags, cfg.RetentionMonths)
	mig.DryRun = dryRun

	if err := mig.RunOnce(cmd.Context()); err != nil {
		return err
	}
	log.Info("migration pass complete")
	return nil
}
