package journals

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/ledger/shared"
)

// EntryInput describes one debit or credit posting in a create command.
type EntryInput struct {
	Side                  EntrySide
	AccountCode           string
	SubAccountCode        string
	DepartmentCode        string
	ProjectCode           string
	SegmentCode           string
	Amount                decimal.Decimal
	CurrencyCode          string
	ExchangeRate          decimal.Decimal
	BaseAmount            decimal.Decimal
	TaxType               string
	TaxRate               decimal.Decimal
	TaxCalcType           string
	DueDate               *time.Time
	CashFlowFlag          bool
	CounterAccountCode    string
	CounterSubAccountCode string
	TagCode               string
	TagContent            string
}

// LineInput groups entries under one summary.
type LineInput struct {
	Summary string
	Entries []EntryInput
}

// CreateInput groups the fields required to post a journal.
type CreateInput struct {
	PostingDate         time.Time
	EntryDate           time.Time
	VoucherType         VoucherType
	ClosingJournalFlag  bool
	SingleEntryFlag     bool
	PeriodicPostingFlag bool
	EmployeeCode        string
	DepartmentCode      string
	Lines               []LineInput
}

// Validate checks command structure. The balance invariant is checked by the
// service against the built journal, never here and never per line.
func (in CreateInput) Validate() error {
	if in.PostingDate.IsZero() {
		return shared.Validationf("posting date required")
	}
	if len(in.Lines) == 0 {
		return shared.Validationf("journal requires at least one line")
	}
	for li, line := range in.Lines {
		if len(line.Entries) == 0 {
			return shared.Validationf("line %d requires at least one entry", li+1)
		}
		for ei, entry := range line.Entries {
			if !entry.Side.Valid() {
				return shared.Validationf("line %d entry %d: unknown side %q", li+1, ei+1, entry.Side)
			}
			if entry.AccountCode == "" {
				return shared.Validationf("line %d entry %d: account code required", li+1, ei+1)
			}
			if entry.Amount.IsNegative() {
				return shared.Validationf("line %d entry %d: amount must not be negative", li+1, ei+1)
			}
		}
	}
	return nil
}

// UpdateHeaderInput carries the mutable header fields plus the observed version.
type UpdateHeaderInput struct {
	VoucherNumber  string
	EmployeeCode   string
	DepartmentCode string
	Version        int64
}
