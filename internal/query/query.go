// Package query flattens requests into per-item rows and applies the list
// filters shared by the table view, export and summary print.
package query

import (
	"strings"

	"materialtracker/pkg/domain"
)

// Row is one (request, line item) pair with its derived figures.
type Row struct {
	RequestID    string `json:"requestId"`
	RequestDate  string `json:"requestDate"`
	Warehouse    string `json:"warehouse"`
	ProjectTitle string `json:"projectTitle"`
	Material     string `json:"material"`
	Unit         string `json:"unit"`
	RequestedQty int    `json:"requestedQty"`
	Supplied     int    `json:"supplied"`
	Remaining    int    `json:"remaining"`
	StatusText   string `json:"statusText"`
	StatusColor  string `json:"statusColor"`
	// ItemIndex addresses the line item within its request for delivery entry.
	ItemIndex int `json:"itemIndex"`
}

// Status returns the parsed fulfillment status of the row.
func (r Row) Status() domain.Status {
	s, _ := domain.ParseStatus(r.StatusText)
	return s
}

// Filters narrows the projection. Blank fields match everything; set fields
// are combined with AND.
type Filters struct {
	Project string
	Status  string
	Search  string
}

// IsZero reports whether no filter is set.
func (f Filters) IsZero() bool {
	return f.Project == "" && f.Status == "" && f.Search == ""
}

// Match reports whether the item of req passes every set filter. Project and
// status compare exactly. Search matches a case-insensitive substring of the
// material or project title, or a raw substring of the request id.
func (f Filters) Match(req domain.Request, item domain.LineItem) bool {
	if f.Project != "" && req.ProjectTitle != f.Project {
		return false
	}
	if f.Status != "" && item.Status().Text() != f.Status {
		return false
	}
	if f.Search == "" {
		return true
	}
	needle := strings.ToLower(f.Search)
	return strings.Contains(strings.ToLower(item.Material), needle) ||
		strings.Contains(strings.ToLower(req.ProjectTitle), needle) ||
		strings.Contains(req.ID, f.Search)
}

// Project flattens requests into rows in request order, then item order,
// keeping only items accepted by filters.
func Project(requests []domain.Request, filters Filters) []Row {
	rows := make([]Row, 0, len(requests))
	for _, req := range requests {
		for i, item := range req.Items {
			if !filters.Match(req, item) {
				continue
			}
			rows = append(rows, NewRow(req, i))
		}
	}
	return rows
}

// NewRow builds the row for req.Items[index]. The index must be in range.
func NewRow(req domain.Request, index int) Row {
	item := req.Items[index]
	supplied := item.SuppliedTotal()
	status := domain.Classify(item.RequestedQty, supplied)
	return Row{
		RequestID:    req.ID,
		RequestDate:  req.Date,
		Warehouse:    req.Warehouse,
		ProjectTitle: req.ProjectTitle,
		Material:     item.Material,
		Unit:         item.Unit,
		RequestedQty: item.RequestedQty,
		Supplied:     supplied,
		Remaining:    item.RequestedQty - supplied,
		StatusText:   status.Text(),
		StatusColor:  status.Color(),
		ItemIndex:    index,
	}
}

// UniqueProjects lists distinct project titles in first-seen order.
func UniqueProjects(requests []domain.Request) []string {
	seen := make(map[string]struct{}, len(requests))
	var out []string
	for _, req := range requests {
		if _, ok := seen[req.ProjectTitle]; ok {
			continue
		}
		seen[req.ProjectTitle] = struct{}{}
		out = append(out, req.ProjectTitle)
	}
	return out
}

// UniqueStatuses lists every status text in ladder order, independent of
// the data.
func UniqueStatuses() []string {
	all := domain.AllStatuses()
	out := make([]string, len(all))
	for i, s := range all {
		out[i] = s.Text()
	}
	return out
}
