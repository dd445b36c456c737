package shared

import "time"

// MonthRange returns the first and last posting date of a fiscal month.
// Fiscal years align with calendar years; month is 1..12.
func MonthRange(fiscalYear, month int) (time.Time, time.Time) {
	from := time.Date(fiscalYear, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, -1)
	return from, to
}

// NextMonth returns the fiscal year and month following the given one.
func NextMonth(fiscalYear, month int) (int, int) {
	if month >= 12 {
		return fiscalYear + 1, 1
	}
	return fiscalYear, month + 1
}
