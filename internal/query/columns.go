package query

import "strconv"

// ExportColumns is the fixed column order of spreadsheet, CSV and JSON exports.
var ExportColumns = []string{
	"RequestID", "Date", "Project", "Warehouse", "Material",
	"Unit", "Requested", "Supplied", "Remaining", "Status",
}

// SummaryColumns are the headers of the printed summary table.
var SummaryColumns = []string{
	"Request ID", "Date", "Project", "Material", "Unit",
	"Requested", "Supplied", "Remaining", "Status",
}

// ExportValues returns the row's values in ExportColumns order with numbers
// kept numeric.
func (r Row) ExportValues() []any {
	return []any{
		r.RequestID, r.RequestDate, r.ProjectTitle, r.Warehouse, r.Material,
		r.Unit, r.RequestedQty, r.Supplied, r.Remaining, r.StatusText,
	}
}

// ExportRecord returns the row's values in ExportColumns order as text.
func (r Row) ExportRecord() []string {
	return []string{
		r.RequestID, r.RequestDate, r.ProjectTitle, r.Warehouse, r.Material,
		r.Unit, strconv.Itoa(r.RequestedQty), strconv.Itoa(r.Supplied), strconv.Itoa(r.Remaining), r.StatusText,
	}
}

// SummaryRecord returns the row's values in SummaryColumns order.
func (r Row) SummaryRecord() []string {
	return []string{
		r.RequestID, r.RequestDate, r.ProjectTitle, r.Material, r.Unit,
		strconv.Itoa(r.RequestedQty), strconv.Itoa(r.Supplied), strconv.Itoa(r.Remaining), r.StatusText,
	}
}
