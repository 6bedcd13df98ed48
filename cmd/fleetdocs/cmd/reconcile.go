package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"fleetdocs-service/internal/service"
	"fleetdocs-service/internal/sheet"
)

type reconcileOptions struct {
	master string
	weekly string
	out    string
	now    string
	format string
}

func newReconcileCommand(a *app) *cobra.Command {
	opts := &reconcileOptions{}
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Merge a weekly export into the master table and print the reminder report",
		Example: `  # Print the report as a table
  fleetdocs reconcile --master maestro.xlsx --weekly semanal.csv

  # Write the updated master and emit JSON for a given run date
  fleetdocs reconcile --master maestro.xlsx --weekly semanal.xlsx --out maestro_actualizado.xlsx --now 2025-06-10 --format json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.reconcile(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.master, "master", "", "master table (.xlsx or .csv)")
	f.StringVar(&opts.weekly, "weekly", "", "weekly export (.xlsx or .csv)")
	f.StringVar(&opts.out, "out", "", "write the updated master here (.xlsx or .csv)")
	f.StringVar(&opts.now, "now", "", "run date as YYYY-MM-DD (default today)")
	f.StringVar(&opts.format, "format", string(FormatTable), "report format: table, json or yaml")
	_ = cmd.MarkFlagRequired("master")
	_ = cmd.MarkFlagRequired("weekly")
	return cmd
}

func (a *app) reconcile(ctx context.Context, w io.Writer, opts *reconcileOptions) error {
	format, err := ParseFormat(opts.format)
	if err != nil {
		return err
	}

	var now time.Time
	if opts.now != "" {
		now, err = time.ParseInLocation("2006-01-02", opts.now, a.cfg.Location())
		if err != nil {
			return fmt.Errorf("--now must be a YYYY-MM-DD date: %w", err)
		}
	}

	master, err := readUpload(opts.master)
	if err != nil {
		return err
	}
	weekly, err := readUpload(opts.weekly)
	if err != nil {
		return err
	}

	runs, closeRuns, err := a.runRepository()
	if err != nil {
		return err
	}
	defer closeRuns()

	svc := a.reconcileService(runs)
	res, err := svc.Run(ctx, service.RunInput{Master: master, Weekly: weekly, Now: now})
	if err != nil {
		return err
	}

	if opts.out != "" {
		if err := writeUpdated(svc, res, opts.out); err != nil {
			return err
		}
		a.log.Info().Str("path", opts.out).Msg("updated master written")
	}

	return NewFormatter(format).Format(w, newRunSummary(res))
}

func readUpload(path string) (service.Upload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return service.Upload{}, fmt.Errorf("read %s: %w", path, err)
	}
	return service.Upload{Name: filepath.Base(path), Data: data}, nil
}

func writeUpdated(svc *service.ReconcileService, res *service.RunResult, path string) error {
	var data []byte
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		var b strings.Builder
		if err := sheet.WriteCSV(&b, res.Updated); err != nil {
			return fmt.Errorf("render %s: %w", path, err)
		}
		data = []byte(b.String())
	} else {
		xlsx, err := svc.ExportXLSX(res)
		if err != nil {
			return err
		}
		data = xlsx
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
