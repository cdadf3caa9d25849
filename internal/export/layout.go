package export

// DefaultTaxMultiplier converts a net amount to its tax-inclusive figure.
const DefaultTaxMultiplier = 1.10

// Layout maps the fixed cells of the invoice workbook. The workbook is a
// user-supplied template, so every position is configurable rather than
// hard-coded in the fill logic.
type Layout struct {
	// InvoiceSheet holds the invoice header cells and the monthly totals.
	InvoiceSheet string
	// ReportSheet holds one row per day of the month.
	ReportSheet string

	// DayRowOffset is added to the day of month to obtain the row index
	// on the report sheet. With an offset of 6, day 1 lands on row 7.
	DayRowOffset int

	HoursColumn       string
	DescriptionColumn string
	MonthlyTotalCell  string

	LabelCell    string
	RateCell     string
	SubtotalCell string
	TaxTotalCell string

	IssueDateCell string

	TaxMultiplier float64
}

// DefaultLayout matches the stock invoice template.
func DefaultLayout() Layout {
	return Layout{
		InvoiceSheet:      "請求書",
		ReportSheet:       "稼働時間報告書（時間単価の場合提出）",
		DayRowOffset:      6,
		HoursColumn:       "C",
		DescriptionColumn: "D",
		MonthlyTotalCell:  "C38",
		LabelCell:         "C25",
		RateCell:          "I25",
		SubtotalCell:      "K26",
		TaxTotalCell:      "I26",
		IssueDateCell:     "K4",
		TaxMultiplier:     DefaultTaxMultiplier,
	}
}
