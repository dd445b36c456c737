// Package corrections implements red-slip/black-slip accounting. A posted
// journal is never edited: cancelling issues a reversal journal (red slip)
// whose entry sides are flipped, and correcting additionally posts the
// replacement journal (black slip) in the same transaction.
package corrections

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/ledger/journals"
	"github.com/meridian-erp/meridian-erp/internal/ledger/shared"
)

// Result carries the voucher numbers produced by a correction.
type Result struct {
	RedSlipVoucherNumber   string
	BlackSlipVoucherNumber string
}

type Service struct {
	repo       journals.Repository
	now        func() time.Time
	newVoucher func() string
}

func NewService(repo journals.Repository) *Service {
	return &Service{repo: repo, now: time.Now, newVoucher: journals.NewVoucherNumber}
}

// WithNow overrides the clock, used in tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// WithVoucherSource overrides voucher number generation, used in tests.
func (s *Service) WithVoucherSource(gen func() string) {
	if gen != nil {
		s.newVoucher = gen
	}
}

// Cancel issues a red slip for the voucher and persists only the red slip;
// the original journal is left untouched.
func (s *Service) Cancel(ctx context.Context, voucherNumber string) (string, error) {
	var redNumber string
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx journals.TxRepository) error {
		redSlip, err := s.buildRedSlip(ctx, tx, voucherNumber)
		if err != nil {
			return err
		}
		if err := tx.InsertJournal(ctx, redSlip); err != nil {
			return err
		}
		if err := tx.InsertLines(ctx, redSlip.VoucherNumber, redSlip.Lines); err != nil {
			return err
		}
		redNumber = redSlip.VoucherNumber
		return nil
	})
	if err != nil {
		return "", err
	}
	return redNumber, nil
}

// Correct issues the red slip for the original voucher and posts the supplied
// replacement journal as the black slip. Both writes share one transaction;
// nothing is persisted when either fails.
func (s *Service) Correct(ctx context.Context, originalVoucherNumber string, corrected journals.CreateInput) (Result, error) {
	if err := corrected.Validate(); err != nil {
		return Result{}, err
	}

	var result Result
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx journals.TxRepository) error {
		redSlip, err := s.buildRedSlip(ctx, tx, originalVoucherNumber)
		if err != nil {
			return err
		}
		if err := tx.InsertJournal(ctx, redSlip); err != nil {
			return err
		}
		if err := tx.InsertLines(ctx, redSlip.VoucherNumber, redSlip.Lines); err != nil {
			return err
		}

		blackSlip := journals.Build(corrected, s.newVoucher(), s.now())
		if debit, credit := blackSlip.Totals(); !debit.Equal(credit) {
			return &shared.BalanceMismatchError{DebitTotal: debit, CreditTotal: credit}
		}
		if err := tx.InsertJournal(ctx, blackSlip); err != nil {
			return err
		}
		if err := tx.InsertLines(ctx, blackSlip.VoucherNumber, blackSlip.Lines); err != nil {
			return err
		}

		result = Result{
			RedSlipVoucherNumber:   redSlip.VoucherNumber,
			BlackSlipVoucherNumber: blackSlip.VoucherNumber,
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return result, nil
}

// buildRedSlip loads the original and derives its reversal. A voucher that is
// itself a red slip, or that already has a linked reversal, cannot be
// cancelled again.
func (s *Service) buildRedSlip(ctx context.Context, tx journals.TxRepository, voucherNumber string) (journals.Journal, error) {
	original, err := tx.GetWithDetails(ctx, voucherNumber)
	if err != nil {
		return journals.Journal{}, err
	}
	if original.RedSlipFlag {
		return journals.Journal{}, shared.ErrAlreadyCancelled
	}

	reversed, err := tx.HasReversalOf(ctx, original.VoucherNumber)
	if err != nil {
		return journals.Journal{}, err
	}
	if reversed {
		return journals.Journal{}, shared.ErrAlreadyCancelled
	}

	now := s.now()
	redNumber := original.VoucherNumber + "R"
	ref := NumericPart(original.VoucherNumber)
	originalNumber := original.VoucherNumber

	lines := make([]journals.Line, 0, len(original.Lines))
	for _, line := range original.Lines {
		entries := make([]journals.Entry, 0, len(line.Entries))
		for _, entry := range line.Entries {
			reversedEntry := entry
			reversedEntry.VoucherNumber = redNumber
			reversedEntry.Side = entry.Side.Flip()
			reversedEntry.CreatedAt = now
			reversedEntry.UpdatedAt = now
			entries = append(entries, reversedEntry)
		}
		lines = append(lines, journals.Line{
			VoucherNumber: redNumber,
			LineNumber:    line.LineNumber,
			Summary:       line.Summary + " (cancelled)",
			Entries:       entries,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	}

	return journals.Journal{
		VoucherNumber:         redNumber,
		PostingDate:           now,
		EntryDate:             now,
		VoucherType:           original.VoucherType,
		ClosingJournalFlag:    original.ClosingJournalFlag,
		SingleEntryFlag:       original.SingleEntryFlag,
		PeriodicPostingFlag:   false,
		RedSlipFlag:           true,
		RedBlackVoucherNumber: &ref,
		ReversalOf:            &originalNumber,
		EmployeeCode:          original.EmployeeCode,
		DepartmentCode:        original.DepartmentCode,
		Version:               1,
		CreatedAt:             now,
		UpdatedAt:             now,
		Lines:                 lines,
	}, nil
}

// NumericPart extracts the digits of a voucher number as its numeric red/black
// id. Distinct vouchers can share a digit projection, so the id is carried for
// display while the reversal link itself uses the full voucher number.
func NumericPart(voucherNumber string) int64 {
	var b strings.Builder
	for _, r := range voucherNumber {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return 0
	}
	if len(digits) > 18 {
		digits = digits[:18]
	}
	n, _ := strconv.ParseInt(digits, 10, 64)
	return n
}
