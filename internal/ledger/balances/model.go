package balances

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Key identifies a balance row within its period: account plus the optional
// analysis dimensions. Absent dimensions are stored as empty strings so the
// composite key stays unique in the store.
type Key struct {
	AccountCode        string
	SubAccountCode     string
	DepartmentCode     string
	ProjectCode        string
	ClosingJournalFlag bool
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s/%s/%t",
		k.AccountCode, k.SubAccountCode, k.DepartmentCode, k.ProjectCode, k.ClosingJournalFlag)
}

// Daily accumulates debit and credit postings for one key on one posting date.
type Daily struct {
	PostingDate  time.Time
	Key          Key
	DebitAmount  decimal.Decimal
	CreditAmount decimal.Decimal
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DailyDelta is one additive contribution to a daily balance row.
type DailyDelta struct {
	PostingDate time.Time
	Key         Key
	DebitDelta  decimal.Decimal
	CreditDelta decimal.Decimal
}

// Monthly holds the per-month aggregate for one key: opening balance carried
// in from the prior month plus the month's debit and credit totals.
type Monthly struct {
	FiscalYear     int
	Month          int
	Key            Key
	OpeningBalance decimal.Decimal
	DebitAmount    decimal.Decimal
	CreditAmount   decimal.Decimal
	Version        int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ClosingBalance computes the month-end balance. Debit-normal accounts grow
// with debits; credit-normal accounts grow with credits.
func (m Monthly) ClosingBalance(debitNormal bool) decimal.Decimal {
	if debitNormal {
		return m.OpeningBalance.Add(m.DebitAmount).Sub(m.CreditAmount)
	}
	return m.OpeningBalance.Sub(m.DebitAmount).Add(m.CreditAmount)
}

// TrialBalanceLine is one account row of the trial balance for a period.
// Closing balance sign is already resolved against the account's normal side.
type TrialBalanceLine struct {
	AccountCode    string
	AccountName    string
	NormalSide     string
	OpeningBalance decimal.Decimal
	DebitTotal     decimal.Decimal
	CreditTotal    decimal.Decimal
	ClosingBalance decimal.Decimal
}
