// Package printing renders the printable HTML documents: the filtered
// summary table and the per-request delivery sheet.
package printing

import (
	"fmt"
	"html/template"
	"io"
	"sort"

	"materialtracker/internal/query"
	"materialtracker/pkg/domain"
)

// SummaryTitle heads the summary document.
const SummaryTitle = "Material Requests Summary"

const notesPlaceholder = "N/A"

var summaryTmpl = template.Must(template.New("summary").Parse(`<html>
  <head>
    <title>Print Summary Table</title>
    <style>
      body { font-family: Arial, sans-serif; padding: 20px; font-size: 14px; margin: 0; background: white; }
      h2 { margin-bottom: 20px; }
      table { border-collapse: collapse; width: 100%; border-spacing: 0; border: none; }
      thead th { border-bottom: 2px solid #ccc; background-color: #eee; font-weight: bold; padding: 8px; text-align: center; }
      tbody td { border: none; padding: 4px 8px; text-align: center; }
      tbody td.material-cell { text-align: left; width: 300px; }
      .status-pending { color: red; font-weight: bold; }
      .status-partial { color: blue; font-weight: bold; }
      .status-fully { color: green; font-weight: bold; }
      .status-over { color: orange; font-weight: bold; }
    </style>
  </head>
  <body>
    <h2>{{.Title}}</h2>
    <table>
      <thead>
        <tr>{{range .Columns}}<th>{{.}}</th>{{end}}</tr>
      </thead>
      <tbody>
{{- range .Rows}}
        <tr>
          <td>{{.RequestID}}</td>
          <td>{{.RequestDate}}</td>
          <td>{{.ProjectTitle}}</td>
          <td class="material-cell">{{.Material}}</td>
          <td>{{.Unit}}</td>
          <td>{{.RequestedQty}}</td>
          <td>{{.Supplied}}</td>
          <td>{{.Remaining}}</td>
          <td class="{{.Status.StyleClass}}">{{.StatusText}}</td>
        </tr>
{{- else}}
        <tr><td colspan="{{len .Columns}}">No requests found.</td></tr>
{{- end}}
      </tbody>
    </table>
  </body>
</html>
`))

var requestTmpl = template.Must(template.New("request").Parse(`<html>
  <head>
    <title>Print Request {{.ID}}</title>
    <style>
      body { font-family: Arial, sans-serif; font-size: 14px; padding: 20px; }
      table { border-collapse: collapse; width: 100%; margin-top: 10px; }
      th, td { border: 1px solid #ccc; padding: 8px; text-align: center; }
      th { background-color: #f2f2f2; }
    </style>
  </head>
  <body>
    <h2>Request ID: {{.ID}}</h2>
    <p><strong>Date:</strong> {{.Date}}</p>
    <p><strong>Project Title:</strong> {{.ProjectTitle}}</p>
    <p><strong>Warehouse:</strong> {{.Warehouse}}</p>
    <p><strong>Notes:</strong> {{.Notes}}</p>
    <table>
      <thead>
        <tr>
          <th>Material</th>
          <th>Unit</th>
          <th>Requested Qty</th>
          <th>Supplied Qty</th>
          <th>Remaining</th>
          <th>Status</th>
          {{- range .Dates}}
          <th>{{.}}</th>
          {{- end}}
        </tr>
      </thead>
      <tbody>
{{- range .Items}}
        <tr>
          <td>{{.Material}}</td>
          <td>{{.Unit}}</td>
          <td>{{.RequestedQty}}</td>
          <td>{{.Supplied}}</td>
          <td>{{.Remaining}}</td>
          <td>{{.Status}}</td>
          {{- range .ByDate}}
          <td>{{.}}</td>
          {{- end}}
        </tr>
{{- end}}
      </tbody>
    </table>
  </body>
</html>
`))

type summaryView struct {
	Title   string
	Columns []string
	Rows    []query.Row
}

// RenderSummary writes the summary table for rows, typically the currently
// filtered projection.
func RenderSummary(w io.Writer, rows []query.Row) error {
	if err := summaryTmpl.Execute(w, summaryView{Title: SummaryTitle, Columns: query.SummaryColumns, Rows: rows}); err != nil {
		return fmt.Errorf("render summary: %w", err)
	}
	return nil
}

type requestView struct {
	ID           string
	Date         string
	ProjectTitle string
	Warehouse    string
	Notes        string
	Dates        []string
	Items        []itemView
}

type itemView struct {
	Material     string
	Unit         string
	RequestedQty int
	Supplied     int
	Remaining    int
	Status       string
	ByDate       []string
}

// RenderRequest writes the delivery sheet of one request: a header block,
// then one row per item with a column per distinct delivery date.
func RenderRequest(w io.Writer, req domain.Request) error {
	dates := DeliveryDates(req)
	view := requestView{
		ID:           req.ID,
		Date:         req.Date,
		ProjectTitle: req.ProjectTitle,
		Warehouse:    req.Warehouse,
		Notes:        req.Notes,
		Dates:        dates,
	}
	if view.Notes == "" {
		view.Notes = notesPlaceholder
	}
	for _, item := range req.Items {
		supplied := item.SuppliedTotal()
		iv := itemView{
			Material:     item.Material,
			Unit:         item.Unit,
			RequestedQty: item.RequestedQty,
			Supplied:     supplied,
			Remaining:    item.RequestedQty - supplied,
			Status:       item.Status().Text(),
			ByDate:       make([]string, len(dates)),
		}
		for i, d := range dates {
			iv.ByDate[i] = DateCell(item, d)
		}
		view.Items = append(view.Items, iv)
	}
	if err := requestTmpl.Execute(w, view); err != nil {
		return fmt.Errorf("render request %s: %w", req.ID, err)
	}
	return nil
}

// DeliveryDates returns the distinct delivery dates across all items of req,
// sorted ascending as text.
func DeliveryDates(req domain.Request) []string {
	seen := make(map[string]struct{})
	var dates []string
	for _, item := range req.Items {
		for _, d := range item.Supplied {
			if _, ok := seen[d.Date]; ok {
				continue
			}
			seen[d.Date] = struct{}{}
			dates = append(dates, d.Date)
		}
	}
	sort.Strings(dates)
	return dates
}

// QtyOnDate sums the item's deliveries made on date.
func QtyOnDate(item domain.LineItem, date string) int {
	total := 0
	for _, d := range item.Supplied {
		if d.Date == date {
			total += d.Qty
		}
	}
	return total
}

// DateCell is the printed cell for QtyOnDate: blank when the sum is zero.
func DateCell(item domain.LineItem, date string) string {
	if qty := QtyOnDate(item, date); qty != 0 {
		return fmt.Sprint(qty)
	}
	return ""
}
