// Package artifact reads and writes the two-sheet comparison workbooks
// produced by the comparison stage and consumed by the merge stage.
package artifact

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/rias-ai/research-engine/internal/domain"
)

// Sheet names of a comparison workbook.
const (
	SheetOverview = "Overview"
	SheetResults  = "Results"
)

// Row is one named-field record from a workbook sheet. The header row of the
// sheet defines the field names; column order is owned by the template, so a
// map is sufficient here.
type Row map[string]string

// Comparison holds both record sets of a comparison workbook.
type Comparison struct {
	Overview []Row
	Results  []Row
}

// ReadComparison loads the Overview and Results sheets from a workbook.
// A missing sheet yields an empty record set, not an error; an unreadable
// file yields a merge-read error.
func ReadComparison(path string) (*Comparison, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, domain.MergeReadError(fmt.Sprintf("open workbook %s", path), err)
	}
	defer f.Close()

	overview, err := readSheet(f, SheetOverview)
	if err != nil {
		return nil, err
	}
	results, err := readSheet(f, SheetResults)
	if err != nil {
		return nil, err
	}

	return &Comparison{Overview: overview, Results: results}, nil
}

func readSheet(f *excelize.File, sheet string) ([]Row, error) {
	idx, err := f.GetSheetIndex(sheet)
	if err != nil || idx < 0 {
		return nil, nil
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, domain.MergeReadError(fmt.Sprintf("read sheet %s", sheet), err)
	}
	if len(rows) < 2 {
		return nil, nil
	}

	headers := rows[0]
	records := make([]Row, 0, len(rows)-1)
	for _, raw := range rows[1:] {
		if isEmptyRow(raw) {
			continue
		}
		rec := make(Row, len(headers))
		for i, h := range headers {
			if h == "" {
				continue
			}
			if i < len(raw) {
				rec[h] = raw[i]
			} else {
				rec[h] = ""
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

func isEmptyRow(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}

// WriteComparison writes record sets into a fresh copy of the template and
// saves it at outPath. The template's header rows are authoritative: records
// are projected onto them, unknown fields are dropped and missing fields
// become empty strings. Existing data rows in the template are cleared first.
func WriteComparison(templatePath, outPath string, cmp *Comparison) error {
	f, err := excelize.OpenFile(templatePath)
	if err != nil {
		return domain.WorkspaceError(fmt.Sprintf("open template %s", templatePath), err)
	}
	defer f.Close()

	if err := fillSheet(f, SheetOverview, cmp.Overview); err != nil {
		return err
	}
	if err := fillSheet(f, SheetResults, cmp.Results); err != nil {
		return err
	}

	if err := f.SaveAs(outPath); err != nil {
		return domain.WorkspaceError(fmt.Sprintf("save workbook %s", outPath), err)
	}
	return nil
}

func fillSheet(f *excelize.File, sheet string, records []Row) error {
	idx, err := f.GetSheetIndex(sheet)
	if err != nil || idx < 0 {
		// Template without the sheet: nothing to project onto.
		return nil
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return domain.WorkspaceError(fmt.Sprintf("read template sheet %s", sheet), err)
	}
	if len(rows) == 0 {
		return nil
	}
	headers := rows[0]

	// Clear placeholder/data rows below the header.
	for i := len(rows); i >= 2; i-- {
		if err := f.RemoveRow(sheet, i); err != nil {
			return domain.WorkspaceError(fmt.Sprintf("clear template sheet %s", sheet), err)
		}
	}

	for i, rec := range records {
		cells := make([]interface{}, len(headers))
		for j, h := range headers {
			cells[j] = rec[h]
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return domain.WorkspaceError("compute cell coordinates", err)
		}
		if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
			return domain.WorkspaceError(fmt.Sprintf("append row to sheet %s", sheet), err)
		}
	}
	return nil
}
