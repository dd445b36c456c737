package journals

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-erp/meridian-erp/internal/ledger/shared"
)

// Service implements the journal engine: posting, lookup, queries, and the
// administrative hard delete. Posted journals are immutable except for the
// version-guarded header update.
type Service struct {
	repo       Repository
	now        func() time.Time
	newVoucher func() string
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now, newVoucher: NewVoucherNumber}
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

// NewVoucherNumber generates a fresh voucher number. Numbers are generated
// independently per call; the store enforces uniqueness at insert time.
func NewVoucherNumber() string {
	return "J" + strings.ToUpper(uuid.NewString()[:8])
}

// Create builds a journal from the command, enforces the balance invariant,
// and persists header, lines, and entries in one transaction.
func (s *Service) Create(ctx context.Context, in CreateInput) (Journal, error) {
	if err := in.Validate(); err != nil {
		return Journal{}, err
	}

	journal := Build(in, s.newVoucher(), s.now())
	if debit, credit := journal.Totals(); !debit.Equal(credit) {
		return Journal{}, &shared.BalanceMismatchError{DebitTotal: debit, CreditTotal: credit}
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.InsertJournal(ctx, journal); err != nil {
			return err
		}
		return tx.InsertLines(ctx, journal.VoucherNumber, journal.Lines)
	})
	if err != nil {
		return Journal{}, err
	}
	return journal, nil
}

// Get fetches the full aggregate in one logical read.
func (s *Service) Get(ctx context.Context, voucherNumber string) (Journal, error) {
	return s.repo.GetWithDetails(ctx, voucherNumber)
}

// Delete removes a journal outright. Administrative use only; the audit trail
// normally grows by correction, never by deletion.
func (s *Service) Delete(ctx context.Context, voucherNumber string) error {
	if _, err := s.repo.GetWithDetails(ctx, voucherNumber); err != nil {
		return err
	}
	return s.repo.Delete(ctx, voucherNumber)
}

// ListByPostingDateRange returns journals posted within [from, to].
func (s *Service) ListByPostingDateRange(ctx context.Context, from, to time.Time) ([]Journal, error) {
	return s.repo.ListByPostingDateRange(ctx, from, to)
}

// ListByAccountCode returns journals with at least one entry on the account.
func (s *Service) ListByAccountCode(ctx context.Context, accountCode string) ([]Journal, error) {
	return s.repo.ListByAccountCode(ctx, accountCode)
}

// UpdateHeader applies a version-guarded update to mutable header fields.
func (s *Service) UpdateHeader(ctx context.Context, in UpdateHeaderInput) error {
	if in.VoucherNumber == "" {
		return shared.Validationf("voucher number required")
	}
	return s.repo.UpdateHeader(ctx, in, s.now())
}

// Build materialises a journal aggregate from a create command. Line and
// entry numbering starts at 1; version starts at 1.
func Build(in CreateInput, voucherNumber string, now time.Time) Journal {
	entryDate := in.EntryDate
	if entryDate.IsZero() {
		entryDate = now
	}
	voucherType := in.VoucherType
	if voucherType == "" {
		voucherType = VoucherNormal
	}

	lines := make([]Line, 0, len(in.Lines))
	for li, lineIn := range in.Lines {
		lineNumber := li + 1
		entries := make([]Entry, 0, len(lineIn.Entries))
		for _, entryIn := range lineIn.Entries {
			entries = append(entries, Entry{
				VoucherNumber:         voucherNumber,
				LineNumber:            lineNumber,
				Side:                  entryIn.Side,
				AccountCode:           entryIn.AccountCode,
				SubAccountCode:        entryIn.SubAccountCode,
				DepartmentCode:        entryIn.DepartmentCode,
				ProjectCode:           entryIn.ProjectCode,
				SegmentCode:           entryIn.SegmentCode,
				Amount:                entryIn.Amount,
				CurrencyCode:          entryIn.CurrencyCode,
				ExchangeRate:          entryIn.ExchangeRate,
				BaseAmount:            entryIn.BaseAmount,
				TaxType:               entryIn.TaxType,
				TaxRate:               entryIn.TaxRate,
				TaxCalcType:           entryIn.TaxCalcType,
				DueDate:               entryIn.DueDate,
				CashFlowFlag:          entryIn.CashFlowFlag,
				CounterAccountCode:    entryIn.CounterAccountCode,
				CounterSubAccountCode: entryIn.CounterSubAccountCode,
				TagCode:               entryIn.TagCode,
				TagContent:            entryIn.TagContent,
				CreatedAt:             now,
				UpdatedAt:             now,
			})
		}
		lines = append(lines, Line{
			VoucherNumber: voucherNumber,
			LineNumber:    lineNumber,
			Summary:       lineIn.Summary,
			Entries:       entries,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	}

	return Journal{
		VoucherNumber:       voucherNumber,
		PostingDate:         in.PostingDate,
		EntryDate:           entryDate,
		VoucherType:         voucherType,
		ClosingJournalFlag:  in.ClosingJournalFlag,
		SingleEntryFlag:     in.SingleEntryFlag,
		PeriodicPostingFlag: in.PeriodicPostingFlag,
		EmployeeCode:        in.EmployeeCode,
		DepartmentCode:      in.DepartmentCode,
		RedSlipFlag:         false,
		Version:             1,
		CreatedAt:           now,
		UpdatedAt:           now,
		Lines:               lines,
	}
}
