package journals

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntrySide marks a ledger entry as debit or credit.
type EntrySide string

const (
	SideDebit  EntrySide = "DEBIT"
	SideCredit EntrySide = "CREDIT"
)

// Flip returns the opposite side, used when building red slips.
func (s EntrySide) Flip() EntrySide {
	if s == SideDebit {
		return SideCredit
	}
	return SideDebit
}

// Valid reports whether the side is one of the two known values.
func (s EntrySide) Valid() bool {
	return s == SideDebit || s == SideCredit
}

// VoucherType enumerates journal voucher categories.
type VoucherType string

const (
	VoucherNormal     VoucherType = "NORMAL"
	VoucherOpening    VoucherType = "OPENING"
	VoucherClosing    VoucherType = "CLOSING"
	VoucherAdjustment VoucherType = "ADJUSTMENT"
)

// Journal is the aggregate root for a double-entry accounting transaction.
// Once posted it is never edited in place; corrections are new journals.
type Journal struct {
	VoucherNumber         string
	PostingDate           time.Time
	EntryDate             time.Time
	VoucherType           VoucherType
	ClosingJournalFlag    bool
	SingleEntryFlag       bool
	PeriodicPostingFlag   bool
	RedSlipFlag           bool
	RedBlackVoucherNumber *int64
	ReversalOf            *string
	EmployeeCode          string
	DepartmentCode        string
	Version               int64
	CreatedAt             time.Time
	UpdatedAt             time.Time
	Lines                 []Line
}

// Line groups the debit/credit entries sharing one summary within a journal.
type Line struct {
	VoucherNumber string
	LineNumber    int
	Summary       string
	Entries       []Entry
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Entry is a single debit or credit posting against an account.
type Entry struct {
	VoucherNumber         string
	LineNumber            int
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
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Totals sums entry amounts per side across all lines.
func (j *Journal) Totals() (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for _, line := range j.Lines {
		for _, entry := range line.Entries {
			if entry.Side == SideDebit {
				debit = debit.Add(entry.Amount)
			} else {
				credit = credit.Add(entry.Amount)
			}
		}
	}
	return debit, credit
}

// IsBalanced reports whether total debits equal total credits.
func (j *Journal) IsBalanced() bool {
	debit, credit := j.Totals()
	return debit.Equal(credit)
}
