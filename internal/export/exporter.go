// Package export fills a user-supplied invoice workbook with one month of
// work entries. The workbook layout is fixed by convention (Layout); the
// exporter only writes values, never formatting.
package export

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"kintai/internal/core"
)

// MIMEXLSX is the content type of the produced workbook.
const MIMEXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ErrMissingTemplate is returned when a fill is requested without an
// uploaded workbook. No cell is written in that case.
var ErrMissingTemplate = errors.New("no invoice template uploaded")

// Template is the writable workbook the exporter fills. Implemented by
// xlsx.Workbook for real exports and memory.Grid in tests.
type Template interface {
	SetString(sheet, cell, value string) error
	SetNumber(sheet, cell string, value float64) error
	Bytes() ([]byte, error)
}

// MonthReader supplies the per-date task durations of one user's month.
type MonthReader interface {
	GetEntriesByMonth(ctx context.Context, username, yearMonth string) (map[string][]core.TaskDuration, error)
}

// Request identifies one export: whose month, and the billing terms that
// go on the invoice sheet.
type Request struct {
	Username   string
	YearMonth  string // core.MonthLayout
	Label      string // line item label, e.g. "システム開発業務"
	HourlyRate float64
}

// Exporter writes monthly summaries into invoice templates.
type Exporter struct {
	reader MonthReader
	layout Layout
	now    func() time.Time
}

func NewExporter(reader MonthReader, layout Layout) *Exporter {
	return &Exporter{reader: reader, layout: layout, now: time.Now}
}

// Fill aggregates the requested month and writes it into tmpl.
//
// Report sheet: each day's row carries the floored hour total and a
// bullet list of task titles with their own floored hours. Invoice
// sheet: monthly total hours, the label and rate, a subtotal floored to
// one decimal, the tax-inclusive figure, and the issue date.
func (e *Exporter) Fill(ctx context.Context, req Request, tmpl Template) error {
	if tmpl == nil {
		return ErrMissingTemplate
	}

	yearMonth, err := core.ParseMonth(req.YearMonth)
	if err != nil {
		return err
	}
	byDate, err := e.reader.GetEntriesByMonth(ctx, req.Username, yearMonth)
	if err != nil {
		return fmt.Errorf("reading month %s: %w", yearMonth, err)
	}
	sum := core.SummarizeMonth(yearMonth, byDate)

	for _, day := range sum.Days {
		row, err := dayRow(day.Date, e.layout.DayRowOffset)
		if err != nil {
			return err
		}
		hoursCell := fmt.Sprintf("%s%d", e.layout.HoursColumn, row)
		if err := tmpl.SetNumber(e.layout.ReportSheet, hoursCell, core.FloorHours(day.TotalMinutes)); err != nil {
			return err
		}
		descCell := fmt.Sprintf("%s%d", e.layout.DescriptionColumn, row)
		if err := tmpl.SetString(e.layout.ReportSheet, descCell, describe(day.Tasks)); err != nil {
			return err
		}
	}

	totalHours := sum.TotalHours()
	if err := tmpl.SetNumber(e.layout.ReportSheet, e.layout.MonthlyTotalCell, totalHours); err != nil {
		return err
	}

	if err := tmpl.SetString(e.layout.InvoiceSheet, e.layout.LabelCell, req.Label); err != nil {
		return err
	}
	if err := tmpl.SetNumber(e.layout.InvoiceSheet, e.layout.RateCell, req.HourlyRate); err != nil {
		return err
	}
	subtotal := core.FloorOneDecimal(req.HourlyRate * totalHours)
	if err := tmpl.SetNumber(e.layout.InvoiceSheet, e.layout.SubtotalCell, subtotal); err != nil {
		return err
	}
	taxed := core.FloorOneDecimal(subtotal * e.layout.TaxMultiplier)
	if err := tmpl.SetNumber(e.layout.InvoiceSheet, e.layout.TaxTotalCell, taxed); err != nil {
		return err
	}
	return tmpl.SetString(e.layout.InvoiceSheet, e.layout.IssueDateCell, e.now().Format(core.DateLayout))
}

// Filename names the produced workbook after its month, e.g.
// "invoice_202506.xlsx" for 2025-06.
func Filename(yearMonth string) string {
	return "invoice_" + strings.ReplaceAll(yearMonth, "-", "") + ".xlsx"
}

// dayRow maps a "2006-01-02" date to its row on the report sheet.
func dayRow(date string, offset int) (int, error) {
	if len(date) != len(core.DateLayout) {
		return 0, fmt.Errorf("%w: %q", core.ErrInvalidDate, date)
	}
	day, err := strconv.Atoi(date[8:])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", core.ErrInvalidDate, date)
	}
	return day + offset, nil
}

// describe renders a day's tasks as one bullet line each, with the task's
// floored hours in parentheses.
func describe(tasks []core.TaskDuration) string {
	lines := make([]string, 0, len(tasks))
	for _, t := range tasks {
		lines = append(lines, fmt.Sprintf("- %s（%sh）", t.Title, core.FormatHours(t.Minutes)))
	}
	return strings.Join(lines, "\n")
}
