package core

import "sort"

// DaySummary aggregates one calendar date of a monthly report.
type DaySummary struct {
	Date         string // DateLayout
	Tasks        []TaskDuration
	TotalMinutes int64
}

// MonthSummary is the aggregation the exporter writes into the template.
type MonthSummary struct {
	YearMonth    string // MonthLayout
	Days         []DaySummary
	TotalMinutes int64
}

// SummarizeMonth folds a per-date task mapping into day and month totals.
// Days come out sorted by date so export writes are deterministic.
func SummarizeMonth(yearMonth string, byDate map[string][]TaskDuration) MonthSummary {
	sum := MonthSummary{YearMonth: yearMonth}
	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	for _, d := range dates {
		day := DaySummary{Date: d, Tasks: byDate[d]}
		for _, t := range day.Tasks {
			day.TotalMinutes += t.Minutes
		}
		sum.Days = append(sum.Days, day)
		sum.TotalMinutes += day.TotalMinutes
	}
	return sum
}

// TotalHours returns the month total floored to one decimal.
func (m MonthSummary) TotalHours() float64 {
	return FloorHours(m.TotalMinutes)
}
