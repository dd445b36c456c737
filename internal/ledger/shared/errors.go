package shared

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrJournalNotFound indicates the voucher does not exist.
	ErrJournalNotFound = errors.New("ledger: journal not found")
	// ErrBalanceNotFound indicates no balance row for the requested key.
	ErrBalanceNotFound = errors.New("ledger: balance not found")
	// ErrAccountNotFound indicates the account master has no such code.
	ErrAccountNotFound = errors.New("ledger: account not found")
	// ErrAlreadyCancelled indicates a red slip was already issued for the voucher.
	ErrAlreadyCancelled = errors.New("ledger: journal already cancelled")
	// ErrVoucherExists indicates a voucher number collision at insert time.
	ErrVoucherExists = errors.New("ledger: voucher number already exists")
	// ErrUnbalanced indicates debit and credit totals differ.
	ErrUnbalanced = errors.New("ledger: journal entries must balance")
)

// BalanceMismatchError reports unequal debit and credit totals, with both
// totals attached for diagnostics.
type BalanceMismatchError struct {
	DebitTotal  decimal.Decimal
	CreditTotal decimal.Decimal
}

func (e *BalanceMismatchError) Error() string {
	return fmt.Sprintf("ledger: journal entries must balance: debit %s, credit %s",
		e.DebitTotal.String(), e.CreditTotal.String())
}

func (e *BalanceMismatchError) Unwrap() error { return ErrUnbalanced }

// ValidationError wraps malformed command input recovered at the boundary.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return "ledger: " + e.Msg }

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}
