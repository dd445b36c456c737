// Package accounts holds the chart-of-accounts master: one row per account
// code with its normal balance side and statement classification.
package accounts

import "time"

// Account is one row of the account master.
type Account struct {
	Code          string
	Name          string
	NormalSide    string // DEBIT or CREDIT
	StatementType string // BS or PL
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DebitNormal reports whether the account grows with debits.
func (a Account) DebitNormal() bool {
	return a.NormalSide == "DEBIT"
}
