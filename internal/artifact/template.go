package artifact

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/rias-ai/research-engine/internal/domain"
)

// Column order of the default comparison template. The template on disk is
// authoritative at merge time; these are only used when generating one.
var (
	OverviewHeaders = []string{
		"Paper ID", "Title", "Authors", "Year", "Venue",
		"Research Area", "Methodology", "Key Contribution",
	}
	ResultsHeaders = []string{
		"Paper ID", "Metric", "Dataset", "Result",
		"Baseline", "Improvement", "Notes",
	}
)

// WriteDefaultTemplate creates a headers-only comparison template workbook.
func WriteDefaultTemplate(path string) error {
	f := excelize.NewFile()
	defer f.Close()

	if _, err := f.NewSheet(SheetOverview); err != nil {
		return domain.WorkspaceError("create Overview sheet", err)
	}
	if _, err := f.NewSheet(SheetResults); err != nil {
		return domain.WorkspaceError("create Results sheet", err)
	}

	overview := toCells(OverviewHeaders)
	if err := f.SetSheetRow(SheetOverview, "A1", &overview); err != nil {
		return domain.WorkspaceError("write Overview headers", err)
	}
	results := toCells(ResultsHeaders)
	if err := f.SetSheetRow(SheetResults, "A1", &results); err != nil {
		return domain.WorkspaceError("write Results headers", err)
	}

	// Drop the default sheet excelize creates.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return domain.WorkspaceError("remove default sheet", err)
	}

	if err := f.SaveAs(path); err != nil {
		return domain.WorkspaceError(fmt.Sprintf("save template %s", path), err)
	}
	return nil
}

func toCells(headers []string) []interface{} {
	cells := make([]interface{}, len(headers))
	for i, h := range headers {
		cells[i] = h
	}
	return cells
}
