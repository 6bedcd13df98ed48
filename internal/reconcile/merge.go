// Package reconcile joins the master roster with the weekly feed on the
// normalized plate and refreshes expiration dates.
package reconcile

import (
	"github.com/rs/zerolog"

	"fleetdocs-service/internal/domain/fleet"
	"fleetdocs-service/internal/schema"
	"fleetdocs-service/internal/utils"
)

// DuplicatePolicy decides what happens when the weekly feed repeats a plate.
type DuplicatePolicy string

const (
	// PolicyFirstMatch uses the first weekly row, in file order, for each
	// plate. The merged table has exactly as many rows as the master.
	PolicyFirstMatch DuplicatePolicy = "first_match"
	// PolicyFanOut emits one merged row per matching weekly row, so the
	// merged table can be longer than the master.
	PolicyFanOut DuplicatePolicy = "fan_out"
)

// ParsePolicy maps a config value to a policy, defaulting to first match.
func ParsePolicy(s string) DuplicatePolicy {
	if DuplicatePolicy(s) == PolicyFanOut {
		return PolicyFanOut
	}
	return PolicyFirstMatch
}

// UnmatchedPlate is a weekly row whose plate is not in the master. Such rows
// are dropped from the merge and only reported.
type UnmatchedPlate struct {
	Plate string `json:"plate"`
	Row   int    `json:"row"`
}

type Stats struct {
	MasterRows      int `json:"master_rows"`
	WeeklyRows      int `json:"weekly_rows"`
	MergedRows      int `json:"merged_rows"`
	Matched         int `json:"matched"`
	DatesUpdated    int `json:"dates_updated"`
	UnmatchedWeekly int `json:"unmatched_weekly"`
	DuplicatePlates int `json:"duplicate_plates"`
}

type Result struct {
	Policy     DuplicatePolicy      `json:"policy"`
	Records    []fleet.MergedRecord `json:"records"`
	Unmatched  []UnmatchedPlate     `json:"unmatched"`
	Duplicates []string             `json:"duplicates"`
	Stats      Stats                `json:"stats"`
}

type Engine struct {
	policy DuplicatePolicy
	log    zerolog.Logger
}

func NewEngine(policy DuplicatePolicy, log zerolog.Logger) *Engine {
	return &Engine{policy: policy, log: log}
}

func (e *Engine) Policy() DuplicatePolicy {
	return e.policy
}

// Merge runs a left outer join with the master as the driving side.
func (e *Engine) Merge(master, weekly *schema.Normalized) (*Result, error) {
	if master == nil || len(master.Records) == 0 {
		return nil, NewMergeInputError(fleet.RoleMaster, "no data rows", nil)
	}
	if weekly == nil || len(weekly.Records) == 0 {
		return nil, NewMergeInputError(fleet.RoleWeekly, "no data rows", nil)
	}

	res := Merge(master.Records, weekly.Records, e.policy)

	if len(res.Duplicates) > 0 {
		e.log.Warn().
			Strs("plates", res.Duplicates).
			Str("policy", string(e.policy)).
			Msg("weekly feed repeats plates")
	}
	for _, u := range res.Unmatched {
		e.log.Debug().
			Str("plate", u.Plate).
			Int("weekly_row", u.Row).
			Msg("weekly plate not in master, dropped")
	}
	e.log.Info().
		Int("master_rows", res.Stats.MasterRows).
		Int("weekly_rows", res.Stats.WeeklyRows).
		Int("merged_rows", res.Stats.MergedRows).
		Int("matched", res.Stats.Matched).
		Int("dates_updated", res.Stats.DatesUpdated).
		Int("unmatched_weekly", res.Stats.UnmatchedWeekly).
		Msg("merged weekly feed into master")

	return res, nil
}

// Merge is the pure join. The new expiration date is the weekly date when
// present, otherwise the master date: a blank weekly date never erases a
// known one. Every other master attribute passes through untouched.
func Merge(master, weekly []fleet.VehicleRecord, policy DuplicatePolicy) *Result {
	index := make(map[string][]int, len(weekly))
	var order []string
	for i, w := range weekly {
		key := utils.NormalizePlate(w.Plate)
		if key == "" {
			continue
		}
		if _, seen := index[key]; !seen {
			order = append(order, key)
		}
		index[key] = append(index[key], i)
	}

	res := &Result{
		Policy:  policy,
		Records: make([]fleet.MergedRecord, 0, len(master)),
	}

	masterKeys := make(map[string]bool, len(master))
	for _, m := range master {
		key := utils.NormalizePlate(m.Plate)
		if key != "" {
			masterKeys[key] = true
		}

		matches := index[key]
		if key == "" || len(matches) == 0 {
			res.Records = append(res.Records, fleet.MergedRecord{
				VehicleRecord:      m,
				PreviousExpiration: m.ExpirationDate,
			})
			continue
		}

		res.Stats.Matched++
		if policy != PolicyFanOut {
			matches = matches[:1]
		}
		for _, wi := range matches {
			merged := fleet.MergedRecord{
				VehicleRecord:      m,
				PreviousExpiration: m.ExpirationDate,
				Matched:            true,
				WeeklyRow:          weekly[wi].Row,
			}
			if d := weekly[wi].ExpirationDate; d != nil {
				nd := *d
				merged.ExpirationDate = &nd
			}
			if merged.DateChanged() {
				res.Stats.DatesUpdated++
			}
			res.Records = append(res.Records, merged)
		}
	}

	for _, key := range order {
		if len(index[key]) > 1 {
			res.Duplicates = append(res.Duplicates, key)
		}
	}
	for _, w := range weekly {
		key := utils.NormalizePlate(w.Plate)
		if key != "" && !masterKeys[key] {
			res.Unmatched = append(res.Unmatched, UnmatchedPlate{Plate: key, Row: w.Row})
		}
	}

	res.Stats.MasterRows = len(master)
	res.Stats.WeeklyRows = len(weekly)
	res.Stats.MergedRows = len(res.Records)
	res.Stats.UnmatchedWeekly = len(res.Unmatched)
	res.Stats.DuplicatePlates = len(res.Duplicates)
	return res
}
