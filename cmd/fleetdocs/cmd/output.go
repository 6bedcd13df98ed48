package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/olekukonko/tablewriter"

	"fleetdocs-service/internal/domain/fleet"
	"fleetdocs-service/internal/notify"
	"fleetdocs-service/internal/reconcile"
	"fleetdocs-service/internal/schema"
	"fleetdocs-service/internal/service"
)

// Format is a report output format.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "table", "text":
		return FormatTable, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unknown format %q (want table, json or yaml)", s)
}

type Formatter interface {
	Format(w io.Writer, s *RunSummary) error
}

type FormatterFunc func(w io.Writer, s *RunSummary) error

func (f FormatterFunc) Format(w io.Writer, s *RunSummary) error {
	return f(w, s)
}

func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return FormatterFunc(formatJSON)
	case FormatYAML:
		return FormatterFunc(formatYAML)
	default:
		return FormatterFunc(formatTable)
	}
}

// RunSummary is what the CLI prints for a run.
type RunSummary struct {
	RunID     string                     `json:"run_id"`
	Date      string                     `json:"date"`
	Stats     reconcile.Stats            `json:"stats"`
	Unmatched []reconcile.UnmatchedPlate `json:"unmatched,omitempty"`
	Warnings  []schema.DateParseWarning  `json:"warnings,omitempty"`
	Report    *notify.Report             `json:"report"`
}

func newRunSummary(res *service.RunResult) *RunSummary {
	return &RunSummary{
		RunID:     res.RunID,
		Date:      res.Date.Format("2006-01-02"),
		Stats:     res.Merge.Stats,
		Unmatched: res.Merge.Unmatched,
		Warnings:  res.Warnings,
		Report:    res.Report,
	}
}

func formatJSON(w io.Writer, s *RunSummary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

func formatYAML(w io.Writer, s *RunSummary) error {
	data, err := yaml.MarshalWithOptions(s, yaml.Indent(2), yaml.IndentSequence(false))
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func formatTable(w io.Writer, s *RunSummary) error {
	st := s.Stats
	fmt.Fprintf(w, "Run %s for %s\n", s.RunID, s.Date)
	fmt.Fprintf(w, "master rows %d, weekly rows %d, matched %d, dates updated %d, unmatched weekly %d, duplicate plates %d\n\n",
		st.MasterRows, st.WeeklyRows, st.Matched, st.DatesUpdated, st.UnmatchedWeekly, st.DuplicatePlates)

	table := tablewriter.NewTable(w)
	table.Header("Tier", "Plate", "Driver", "Expires", "Link")
	rows := append(append([]fleet.NotificationPayload(nil), s.Report.Payloads...), s.Report.Unknown...)
	for _, p := range rows {
		link := "-"
		if p.Link != nil {
			link = *p.Link
		}
		if err := table.Append(string(p.Tier), p.Plate, p.DriverName, p.FormattedDate, link); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}

	for _, u := range s.Unmatched {
		fmt.Fprintf(w, "unmatched weekly plate %s (row %d)\n", u.Plate, u.Row+2)
	}
	for _, warn := range s.Warnings {
		fmt.Fprintln(w, warn.String())
	}
	return nil
}
