// Package cmd holds the fleetdocs cobra commands.
package cmd

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"fleetdocs-service/internal/config"
	"fleetdocs-service/internal/db"
	"fleetdocs-service/internal/logger"
	"fleetdocs-service/internal/notify"
	"fleetdocs-service/internal/reconcile"
	"fleetdocs-service/internal/repository"
	"fleetdocs-service/internal/schema"
	"fleetdocs-service/internal/service"
)

// app carries what every subcommand needs once configuration is loaded.
type app struct {
	v   *viper.Viper
	cfg *config.Config
	log zerolog.Logger
}

func Execute(ctx context.Context, version string) error {
	return NewRootCommand(version).ExecuteContext(ctx)
}

func NewRootCommand(version string) *cobra.Command {
	a := &app{v: viper.New(), log: zerolog.Nop()}
	var configFile string

	root := &cobra.Command{
		Use:           "fleetdocs",
		Short:         "Reconcile fleet document expirations and build driver reminders",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.v, configFile)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.log = logger.New(cfg.Log.Level, cfg.Log.Format)
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "config file (default ./fleetdocs.yaml when present)")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("log-format", "json", "log format: json or console")
	pf.String("schema-mode", string(schema.ModeFuzzy), "header resolution: fuzzy or strict")
	pf.String("duplicate-policy", string(reconcile.PolicyFirstMatch), "repeated weekly plates: first_match or fan_out")
	pf.String("timezone", "Europe/Madrid", "timezone that decides the run date")
	pf.Int("urgent-days", notify.DefaultUrgentWindowDays, "days ahead that count as due soon")
	pf.Int("report-days", notify.DefaultReportWindowDays, "days ahead included in the report")

	bindFlags(a.v, pf, map[string]string{
		"log.level":                    "log-level",
		"log.format":                   "log-format",
		"reconcile.schema_mode":        "schema-mode",
		"reconcile.duplicate_policy":   "duplicate-policy",
		"reconcile.timezone":           "timezone",
		"reconcile.urgent_window_days": "urgent-days",
		"reconcile.report_window_days": "report-days",
	})

	root.AddCommand(newServeCommand(a), newReconcileCommand(a))
	return root
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			panic(fmt.Sprintf("programming error: failed to bind flag %q: %v", name, err))
		}
	}
}

// runRepository returns the postgres history store when enabled, otherwise
// an in-memory one. The returned func releases the connection.
func (a *app) runRepository() (repository.RunRepository, func(), error) {
	if !a.cfg.DB.Enabled {
		return repository.NewMemoryRunRepository(), func() {}, nil
	}

	gdb, err := db.Connect(a.cfg.DB.DSN, a.log)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return repository.NewGormRunRepository(gdb), closeFn, nil
}

func (a *app) reconcileService(runs repository.RunRepository) *service.ReconcileService {
	return service.NewReconcileService(
		schema.NewNormalizer(a.cfg.SchemaMode(), a.log),
		reconcile.NewEngine(a.cfg.DuplicatePolicy(), a.log),
		notify.NewBuilder(a.cfg.Notify(), a.log),
		runs,
		a.cfg.Location(),
		a.log,
	)
}
