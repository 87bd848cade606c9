// Package export renders the row projection as a spreadsheet, CSV or JSON
// document and publishes rendered artifacts to a blob store.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"materialtracker/internal/query"
)

// Format names an export encoding.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// SheetName is the single worksheet of the spreadsheet export.
const SheetName = "MaterialRequests"

const baseName = "material_requests"

var columnWidths = []float64{12, 12, 24, 14, 32, 10, 12, 12, 12, 20}

// ParseFormat accepts a format name case-insensitively. Blank selects xlsx.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case "":
		return FormatXLSX, nil
	case FormatXLSX, FormatCSV, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", name)
	}
}

// FileName is the fixed download name for the format.
func (f Format) FileName() string {
	return baseName + "." + string(f)
}

// ContentType is the MIME type of the format.
func (f Format) ContentType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatCSV:
		return "text/csv"
	case FormatJSON:
		return "application/json"
	default:
		return "application/octet-stream"
	}
}

// Render writes rows to w in format f.
func Render(w io.Writer, f Format, rows []query.Row) error {
	switch f {
	case FormatXLSX:
		return WriteXLSX(w, rows)
	case FormatCSV:
		return WriteCSV(w, rows)
	case FormatJSON:
		return WriteJSON(w, rows)
	default:
		return fmt.Errorf("unsupported export format %q", f)
	}
}

// WriteXLSX writes a workbook with one sheet: a bold header row in
// query.ExportColumns order followed by one row per projected item.
func WriteXLSX(w io.Writer, rows []query.Row) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	for i, h := range query.ExportColumns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(SheetName, cell, h); err != nil {
			return err
		}
		if err := f.SetCellStyle(SheetName, cell, cell, headerStyle); err != nil {
			return err
		}
	}
	for r, row := range rows {
		for c, v := range row.ExportValues() {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(SheetName, cell, v); err != nil {
				return err
			}
		}
	}
	for i, width := range columnWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(SheetName, col, col, width); err != nil {
			return err
		}
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// WriteCSV writes a header line and one record per row.
func WriteCSV(w io.Writer, rows []query.Row) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(query.ExportColumns); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writer.Write(row.ExportRecord()); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

type jsonRecord struct {
	RequestID string `json:"RequestID"`
	Date      string `json:"Date"`
	Project   string `json:"Project"`
	Warehouse string `json:"Warehouse"`
	Material  string `json:"Material"`
	Unit      string `json:"Unit"`
	Requested int    `json:"Requested"`
	Supplied  int    `json:"Supplied"`
	Remaining int    `json:"Remaining"`
	Status    string `json:"Status"`
}

// WriteJSON writes an array of objects keyed by the export column names, in
// column order.
func WriteJSON(w io.Writer, rows []query.Row) error {
	records := make([]jsonRecord, len(rows))
	for i, r := range rows {
		records[i] = jsonRecord{
			RequestID: r.RequestID,
			Date:      r.RequestDate,
			Project:   r.ProjectTitle,
			Warehouse: r.Warehouse,
			Material:  r.Material,
			Unit:      r.Unit,
			Requested: r.RequestedQty,
			Supplied:  r.Supplied,
			Remaining: r.Remaining,
			Status:    r.StatusText,
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

// Bytes renders rows into memory.
func Bytes(f Format, rows []query.Row) ([]byte, error) {
	var buf bytes.Buffer
	if err := Render(&buf, f, rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteFile renders rows into dir under the format's fixed file name,
// replacing any previous export, and returns the written path.
func WriteFile(dir string, f Format, rows []query.Row) (string, error) {
	data, err := Bytes(f, rows)
	if err != nil {
		return "", err
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(dir, f.FileName())
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	return path, nil
}
