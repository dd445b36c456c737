package shared

import (
	"testing"
	"time"
)

func TestMonthRange(t *testing.T) {
	from, to := MonthRange(2024, 2)
	if !from.Equal(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected from: %v", from)
	}
	if !to.Equal(time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected to: %v", to)
	}
}

func TestNextMonthRollsFiscalYear(t *testing.T) {
	year, month := NextMonth(2024, 12)
	if year != 2025 || month != 1 {
		t.Fatalf("unexpected next month: %d/%d", year, month)
	}
	year, month = NextMonth(2024, 4)
	if year != 2024 || month != 5 {
		t.Fatalf("unexpected next month: %d/%d", year, month)
	}
}
