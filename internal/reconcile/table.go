package reconcile

import (
	"fleetdocs-service/internal/domain/fleet"
	"fleetdocs-service/internal/schema"
	"fleetdocs-service/internal/sheet"
)

// UpdatedMaster rebuilds the master table from the merge result: same
// headers and column order, one row per merged record, with the expiration
// column rewritten as DD/MM/YYYY wherever the merged date is known. Cells
// whose date stayed unknown keep their original text.
func UpdatedMaster(master *schema.Normalized, res *Result) *sheet.Table {
	src := master.Source
	out := &sheet.Table{
		Name:    src.Name,
		Headers: append([]string(nil), src.Headers...),
		Rows:    make([][]string, 0, len(res.Records)),
	}

	dateCol := master.Resolution.Index(fleet.AttrExpirationDate)
	for _, rec := range res.Records {
		row := make([]string, len(src.Headers))
		copy(row, src.Rows[rec.Row])
		if dateCol >= 0 && dateCol < len(row) && rec.ExpirationDate != nil {
			row[dateCol] = rec.ExpirationDate.Format(sheet.DisplayDateLayout)
		}
		out.Rows = append(out.Rows, row)
	}
	return out
}

// DateColumns lists the columns of the updated master holding dates, for
// sheet.WriteOptions.
func DateColumns(master *schema.Normalized) []int {
	if idx := master.Resolution.Index(fleet.AttrExpirationDate); idx >= 0 {
		return []int{idx}
	}
	return nil
}
