package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"fleetdocs-service/internal/domain/fleet"
	"fleetdocs-service/internal/notify"
	"fleetdocs-service/internal/reconcile"
	"fleetdocs-service/internal/repository"
	"fleetdocs-service/internal/schema"
	"fleetdocs-service/internal/sheet"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
)

// Upload is a file handed over by the ingestion boundary.
type Upload struct {
	Name string
	Data []byte
}

type RunInput struct {
	Master Upload
	Weekly Upload
	// Now overrides the clock; its calendar date in the service timezone is
	// the run date.
	Now time.Time
}

// RunResult holds every artifact of a successful run. Nothing is produced
// for a failed run.
type RunResult struct {
	RunID       string
	Date        time.Time
	Master      *schema.Normalized
	Weekly      *schema.Normalized
	Merge       *reconcile.Result
	Updated     *sheet.Table
	DateColumns []int
	Report      *notify.Report
	Warnings    []schema.DateParseWarning
}

type ReconcileService struct {
	normalizer *schema.Normalizer
	engine     *reconcile.Engine
	builder    *notify.Builder
	runs       repository.RunRepository
	loc        *time.Location
	clock      func() time.Time
	log        zerolog.Logger
}

func NewReconcileService(
	normalizer *schema.Normalizer,
	engine *reconcile.Engine,
	builder *notify.Builder,
	runs repository.RunRepository,
	loc *time.Location,
	log zerolog.Logger,
) *ReconcileService {
	if loc == nil {
		loc = time.UTC
	}
	if runs == nil {
		runs = repository.NewMemoryRunRepository()
	}
	return &ReconcileService{
		normalizer: normalizer,
		engine:     engine,
		builder:    builder,
		runs:       runs,
		loc:        loc,
		clock:      time.Now,
		log:        log,
	}
}

// Run loads both uploads and reconciles them.
func (s *ReconcileService) Run(ctx context.Context, in RunInput) (*RunResult, error) {
	master, err := load(fleet.RoleMaster, in.Master)
	if err != nil {
		return nil, err
	}
	weekly, err := load(fleet.RoleWeekly, in.Weekly)
	if err != nil {
		return nil, err
	}
	return s.RunTables(ctx, master, weekly, in.Now)
}

// RunTables is the pipeline over already parsed tables: normalize both
// sources, merge, classify and build payloads, then record a summary.
func (s *ReconcileService) RunTables(ctx context.Context, masterTable, weeklyTable *sheet.Table, now time.Time) (*RunResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if now.IsZero() {
		now = s.clock()
	}
	now = now.In(s.loc)
	runID := uuid.NewString()
	log := s.log.With().Str("run_id", runID).Logger()

	master, err := s.normalizer.Normalize(masterTable, fleet.RoleMaster)
	if err != nil {
		log.Warn().Err(err).Msg("master schema resolution failed")
		return nil, err
	}
	weekly, err := s.normalizer.Normalize(weeklyTable, fleet.RoleWeekly)
	if err != nil {
		log.Warn().Err(err).Msg("weekly schema resolution failed")
		return nil, err
	}

	merged, err := s.engine.Merge(master, weekly)
	if err != nil {
		log.Warn().Err(err).Msg("merge rejected input")
		return nil, err
	}

	report := s.builder.BuildReport(merged.Records, now)

	res := &RunResult{
		RunID:       runID,
		Date:        notify.Today(now),
		Master:      master,
		Weekly:      weekly,
		Merge:       merged,
		Updated:     reconcile.UpdatedMaster(master, merged),
		DateColumns: reconcile.DateColumns(master),
		Report:      report,
		Warnings:    append(append([]schema.DateParseWarning(nil), master.Warnings...), weekly.Warnings...),
	}

	log.Info().
		Str("run_date", res.Date.Format("2006-01-02")).
		Int("payloads", len(report.Payloads)).
		Int("unknown", len(report.Unknown)).
		Int("skipped_links", len(report.Skipped)).
		Int("date_warnings", len(res.Warnings)).
		Msg("reconciliation run completed")

	if err := s.record(ctx, fileNames{master: masterTable.Name, weekly: weeklyTable.Name}, res); err != nil {
		log.Error().Err(err).Msg("failed to record reconciliation run")
	}
	return res, nil
}

// ExportXLSX renders the updated master workbook.
func (s *ReconcileService) ExportXLSX(res *RunResult) ([]byte, error) {
	data, err := sheet.XLSXBytes(res.Updated, sheet.WriteOptions{DateColumns: res.DateColumns})
	if err != nil {
		return nil, fmt.Errorf("failed to export updated master: %w", err)
	}
	return data, nil
}

func (s *ReconcileService) FindRuns(ctx context.Context, limit, offset int) ([]RunInfo, error) {
	if limit < 0 || offset < 0 {
		return nil, fmt.Errorf("%w: limit and offset must not be negative", ErrInvalidInput)
	}
	runs, err := s.runs.FindRuns(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to find runs: %w", err)
	}
	result := make([]RunInfo, 0, len(runs))
	for _, r := range runs {
		result = append(result, toRunInfo(r))
	}
	return result, nil
}

func (s *ReconcileService) GetRun(ctx context.Context, id string) (*RunInfo, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: run id must be a UUID", ErrInvalidInput)
	}
	run, err := s.runs.GetRun(ctx, id)
	if errors.Is(err, repository.ErrRunNotFound) {
		return nil, fmt.Errorf("%w: run %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	info := toRunInfo(*run)
	return &info, nil
}

func load(role fleet.Role, up Upload) (*sheet.Table, error) {
	if len(up.Data) == 0 {
		return nil, reconcile.NewMergeInputError(role, "empty upload", nil)
	}
	t, err := sheet.Read(up.Name, up.Data)
	if err != nil {
		return nil, reconcile.NewMergeInputError(role, "unreadable file", err)
	}
	return t, nil
}

type fileNames struct {
	master string
	weekly string
}

func (s *ReconcileService) record(ctx context.Context, files fileNames, res *RunResult) error {
	tiers, err := json.Marshal(res.Report.Counts)
	if err != nil {
		return err
	}
	unmatched, err := json.Marshal(res.Merge.Unmatched)
	if err != nil {
		return err
	}
	st := res.Merge.Stats
	return s.runs.CreateRun(ctx, &repository.ReconciliationRun{
		ID:              res.RunID,
		MasterFile:      files.master,
		WeeklyFile:      files.weekly,
		SchemaMode:      string(s.normalizer.Mode()),
		DuplicatePolicy: string(s.engine.Policy()),
		RunDate:         res.Date,
		MasterRows:      st.MasterRows,
		WeeklyRows:      st.WeeklyRows,
		MergedRows:      st.MergedRows,
		Matched:         st.Matched,
		DatesUpdated:    st.DatesUpdated,
		UnmatchedWeekly: st.UnmatchedWeekly,
		DuplicatePlates: st.DuplicatePlates,
		PayloadCount:    len(res.Report.Payloads),
		UnknownCount:    len(res.Report.Unknown),
		SkippedLinks:    len(res.Report.Skipped),
		DateWarnings:    len(res.Warnings),
		TierCounts:      datatypes.JSON(tiers),
		UnmatchedPlates: datatypes.JSON(unmatched),
	})
}

type RunInfo struct {
	ID              string                     `json:"id"`
	MasterFile      string                     `json:"master_file,omitempty"`
	WeeklyFile      string                     `json:"weekly_file,omitempty"`
	SchemaMode      string                     `json:"schema_mode"`
	DuplicatePolicy string                     `json:"duplicate_policy"`
	RunDate         string                     `json:"run_date"`
	Stats           reconcile.Stats            `json:"stats"`
	PayloadCount    int                        `json:"payload_count"`
	UnknownCount    int                        `json:"unknown_count"`
	SkippedLinks    int                        `json:"skipped_links"`
	DateWarnings    int                        `json:"date_warnings"`
	TierCounts      map[fleet.UrgencyTier]int  `json:"tier_counts,omitempty"`
	UnmatchedPlates []reconcile.UnmatchedPlate `json:"unmatched_plates,omitempty"`
	CreatedAt       time.Time                  `json:"created_at"`
}

func toRunInfo(r repository.ReconciliationRun) RunInfo {
	info := RunInfo{
		ID:              r.ID,
		MasterFile:      r.MasterFile,
		WeeklyFile:      r.WeeklyFile,
		SchemaMode:      r.SchemaMode,
		DuplicatePolicy: r.DuplicatePolicy,
		RunDate:         r.RunDate.Format("2006-01-02"),
		Stats: reconcile.Stats{
			MasterRows:      r.MasterRows,
			WeeklyRows:      r.WeeklyRows,
			MergedRows:      r.MergedRows,
			Matched:         r.Matched,
			DatesUpdated:    r.DatesUpdated,
			UnmatchedWeekly: r.UnmatchedWeekly,
			DuplicatePlates: r.DuplicatePlates,
		},
		PayloadCount: r.PayloadCount,
		UnknownCount: r.UnknownCount,
		SkippedLinks: r.SkippedLinks,
		DateWarnings: r.DateWarnings,
		CreatedAt:    r.CreatedAt,
	}
	if len(r.TierCounts) > 0 {
		_ = json.Unmarshal(r.TierCounts, &info.TierCounts)
	}
	if len(r.UnmatchedPlates) > 0 {
		_ = json.Unmarshal(r.UnmatchedPlates, &info.UnmatchedPlates)
	}
	return info
}
