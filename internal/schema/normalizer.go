// Package schema maps inconsistently named spreadsheet columns from the
// master roster and the weekly ERP feed onto one canonical record shape.
package schema

import (
	"strings"

	"github.com/rs/zerolog"

	"fleetdocs-service/internal/domain/fleet"
	"fleetdocs-service/internal/sheet"
)

// Normalized is a source table after header resolution and type coercion.
// Source is kept so the updated master can be written back with its
// original columns.
type Normalized struct {
	Role       fleet.Role
	Source     *sheet.Table
	Resolution Resolution
	Records    []fleet.VehicleRecord
	Warnings   []DateParseWarning
}

type Normalizer struct {
	mode Mode
	log  zerolog.Logger
}

func NewNormalizer(mode Mode, log zerolog.Logger) *Normalizer {
	return &Normalizer{mode: mode, log: log}
}

func (n *Normalizer) Mode() Mode {
	return n.mode
}

// Normalize resolves the headers of t and converts every row to a
// VehicleRecord. A bad date becomes nil with a warning; it never fails the
// table.
func (n *Normalizer) Normalize(t *sheet.Table, role fleet.Role) (*Normalized, error) {
	res, err := Resolve(t.Headers, role, n.mode)
	if err != nil {
		return nil, err
	}

	out := &Normalized{
		Role:       role,
		Source:     t,
		Resolution: res,
		Records:    make([]fleet.VehicleRecord, 0, len(t.Rows)),
	}

	dateCol := res.Columns[fleet.AttrExpirationDate]
	for i := range t.Rows {
		rec := fleet.VehicleRecord{
			Row:          i,
			DocumentType: n.text(t, res, i, fleet.AttrDocumentType),
			Company:      n.text(t, res, i, fleet.AttrCompany),
			DriverName:   n.text(t, res, i, fleet.AttrDriverName),
			VehicleLabel: n.text(t, res, i, fleet.AttrVehicleLabel),
			Plate:        n.text(t, res, i, fleet.AttrPlate),
			Brand:        n.text(t, res, i, fleet.AttrBrand),
			VehicleType:  n.text(t, res, i, fleet.AttrVehicleType),
		}
		if rec.DriverName == "" {
			rec.DriverName = fleet.UnassignedDriver
		}
		if phone := n.text(t, res, i, fleet.AttrPhone); phone != "" {
			rec.Phone = &phone
		}

		raw := t.Cell(i, dateCol.Index)
		date, ok := ParseDate(raw)
		if !ok {
			w := DateParseWarning{Role: role, Row: i + 2, Column: dateCol.Header, Value: raw}
			out.Warnings = append(out.Warnings, w)
			n.log.Debug().
				Str("role", string(role)).
				Int("row", w.Row).
				Str("value", raw).
				Msg("unparseable expiration date, treating as unknown")
		}
		rec.ExpirationDate = date
		out.Records = append(out.Records, rec)
	}

	return out, nil
}

func (n *Normalizer) text(t *sheet.Table, res Resolution, row int, attr string) string {
	idx := res.Index(attr)
	if idx < 0 {
		return ""
	}
	return strings.TrimSpace(t.Cell(row, idx))
}
