// Package xlsx adapts an uploaded Excel workbook to the exporter's
// template interface.
package xlsx

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"kintai/internal/export"
)

// Workbook wraps an open excelize file. Values are written in place so
// the template's formatting survives untouched.
type Workbook struct {
	f *excelize.File
}

var _ export.Template = (*Workbook)(nil)

// Open parses an uploaded workbook.
func Open(r io.Reader) (*Workbook, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	return &Workbook{f: f}, nil
}

func (w *Workbook) SetString(sheet, cell, value string) error {
	return w.f.SetCellStr(sheet, cell, value)
}

func (w *Workbook) SetNumber(sheet, cell string, value float64) error {
	return w.f.SetCellValue(sheet, cell, value)
}

// Bytes serializes the filled workbook for download.
func (w *Workbook) Bytes() ([]byte, error) {
	buf, err := w.f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("serializing workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func (w *Workbook) Close() error {
	return w.f.Close()
}
