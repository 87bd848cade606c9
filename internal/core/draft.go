package core

import (
	"strconv"
	"strings"
)

// Draft stages a request before it is submitted. A draft opened with
// EditDraft replaces the original request on submit; otherwise submit
// creates a new one.
type Draft struct {
	Date         string
	ProjectTitle string
	Warehouse    string
	Notes        string
	Items        []LineItem

	editingID string
}

// NewDraft returns an empty draft for a new request.
func NewDraft() *Draft {
	return &Draft{}
}

// EditDraft opens req for editing. Items are deep copied, delivery history
// included, so edits never alias stored data.
func EditDraft(req Request) *Draft {
	cp := req.Clone()
	return &Draft{
		Date:         cp.Date,
		ProjectTitle: cp.ProjectTitle,
		Warehouse:    cp.Warehouse,
		Notes:        cp.Notes,
		Items:        cp.Items,
		editingID:    cp.ID,
	}
}

// EditingID returns the id of the request being edited, or "".
func (d *Draft) EditingID() string { return d.editingID }

// AddItem parses and appends a line item with no deliveries.
func (d *Draft) AddItem(material, unit, requestedQty string) error {
	material = strings.TrimSpace(material)
	unit = strings.TrimSpace(unit)
	requestedQty = strings.TrimSpace(requestedQty)
	if material == "" || unit == "" || requestedQty == "" {
		return &ValidationError{Field: "item", Message: MsgItemFieldsRequired}
	}
	qty, err := strconv.Atoi(requestedQty)
	if err != nil {
		return &ValidationError{Field: "requestedQty", Message: MsgQtyNotInteger}
	}
	if qty < 0 {
		return &ValidationError{Field: "requestedQty", Message: MsgQtyNegative}
	}
	d.Items = append(d.Items, LineItem{Material: material, Unit: unit, RequestedQty: qty, Supplied: []Delivery{}})
	return nil
}

// RemoveItem drops the item at index, reporting whether it existed.
func (d *Draft) RemoveItem(index int) bool {
	if index < 0 || index >= len(d.Items) {
		return false
	}
	d.Items = append(d.Items[:index:index], d.Items[index+1:]...)
	return true
}

// Reset clears every field and leaves edit mode.
func (d *Draft) Reset() {
	*d = Draft{}
}

// Validate checks the submission preconditions.
func (d *Draft) Validate() error {
	missing := ""
	switch {
	case strings.TrimSpace(d.Date) == "":
		missing = "date"
	case strings.TrimSpace(d.ProjectTitle) == "":
		missing = "projectTitle"
	case strings.TrimSpace(d.Warehouse) == "":
		missing = "warehouse"
	case len(d.Items) == 0:
		missing = "items"
	}
	if missing != "" {
		return &ValidationError{Field: missing, Message: MsgRequestFieldsRequired}
	}
	return nil
}

func (d *Draft) request() Request {
	req := Request{
		Date:         d.Date,
		ProjectTitle: d.ProjectTitle,
		Warehouse:    d.Warehouse,
		Notes:        d.Notes,
		Items:        d.Items,
	}
	return req.Clone()
}
