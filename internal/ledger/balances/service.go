package balances

import (
	"context"
	"sort"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/ledger/journals"
	"github.com/meridian-erp/meridian-erp/internal/ledger/reports"
	"github.com/meridian-erp/meridian-erp/internal/ledger/shared"
)

// Service is the balance aggregation engine: it folds posted journals into
// daily rows, rolls daily rows up into monthly rows, carries closing balances
// into the next period, and projects trial balances and statements.
type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// WithNow overrides the clock, used by tests.
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

// UpsertDaily merges one delta into its daily balance row. The merge is
// additive: repeated postings to the same key accumulate, they never replace.
func (s *Service) UpsertDaily(ctx context.Context, delta DailyDelta) error {
	if delta.PostingDate.IsZero() {
		return shared.Validationf("posting date is required")
	}
	if delta.Key.AccountCode == "" {
		return shared.Validationf("account code is required")
	}
	if delta.DebitDelta.IsNegative() || delta.CreditDelta.IsNegative() {
		return shared.Validationf("balance deltas must not be negative")
	}
	return s.repo.UpsertDaily(ctx, delta)
}

// ApplyJournal projects a posted journal onto the daily balances. All of the
// journal's deltas land in one transaction keyed by its voucher number, so a
// journal is applied exactly once however often the projection is retried or
// redelivered.
func (s *Service) ApplyJournal(ctx context.Context, journal journals.Journal) error {
	if journal.VoucherNumber == "" {
		return shared.Validationf("voucher number is required")
	}
	_, err := s.repo.ApplyJournalDeltas(ctx, journal.VoucherNumber, ProjectJournal(journal))
	return err
}

// ProjectJournal groups a journal's entries into daily balance deltas. Every
// entry lands on the journal's posting date; entries sharing the account and
// analysis dimensions collapse into one delta. Output order is deterministic.
func ProjectJournal(journal journals.Journal) []DailyDelta {
	byKey := make(map[Key]*DailyDelta)
	for _, line := range journal.Lines {
		for _, entry := range line.Entries {
			key := Key{
				AccountCode:        entry.AccountCode,
				SubAccountCode:     entry.SubAccountCode,
				DepartmentCode:     entry.DepartmentCode,
				ProjectCode:        entry.ProjectCode,
				ClosingJournalFlag: journal.ClosingJournalFlag,
			}
			delta, ok := byKey[key]
			if !ok {
				delta = &DailyDelta{PostingDate: journal.PostingDate, Key: key}
				byKey[key] = delta
			}
			if entry.Side == journals.SideDebit {
				delta.DebitDelta = delta.DebitDelta.Add(entry.Amount)
			} else {
				delta.CreditDelta = delta.CreditDelta.Add(entry.Amount)
			}
		}
	}

	out := make([]DailyDelta, 0, len(byKey))
	for _, delta := range byKey {
		out = append(out, *delta)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Key.String() < out[j].Key.String()
	})
	return out
}

// DailyReport returns all daily balance rows for one posting date.
func (s *Service) DailyReport(ctx context.Context, postingDate time.Time) ([]Daily, error) {
	if postingDate.IsZero() {
		return nil, shared.Validationf("posting date is required")
	}
	return s.repo.ListDailyByPostingDate(ctx, postingDate)
}

func (s *Service) GetDaily(ctx context.Context, postingDate time.Time, key Key) (Daily, error) {
	return s.repo.GetDaily(ctx, postingDate, key)
}

// AdjustDaily replaces a daily row's amounts under the version guard. The
// caller passes the version it read; a stale version fails without retry.
func (s *Service) AdjustDaily(ctx context.Context, row Daily) error {
	if row.DebitAmount.IsNegative() || row.CreditAmount.IsNegative() {
		return shared.Validationf("balance amounts must not be negative")
	}
	return s.repo.UpdateDailyWithVersion(ctx, row, s.now())
}

func (s *Service) GetMonthly(ctx context.Context, fiscalYear, month int, key Key) (Monthly, error) {
	if err := validPeriod(fiscalYear, month); err != nil {
		return Monthly{}, err
	}
	return s.repo.GetMonthly(ctx, fiscalYear, month, key)
}

func (s *Service) ListMonthly(ctx context.Context, fiscalYear, month int) ([]Monthly, error) {
	if err := validPeriod(fiscalYear, month); err != nil {
		return nil, err
	}
	return s.repo.ListMonthly(ctx, fiscalYear, month)
}

// ListMonthlyByAccountCode returns one account's monthly rows across a fiscal
// year, ordered by month.
func (s *Service) ListMonthlyByAccountCode(ctx context.Context, fiscalYear int, accountCode string) ([]Monthly, error) {
	if accountCode == "" {
		return nil, shared.Validationf("account code is required")
	}
	return s.repo.ListMonthlyByAccountCode(ctx, fiscalYear, accountCode)
}

// AdjustMonthly replaces a monthly row's amounts under the version guard.
func (s *Service) AdjustMonthly(ctx context.Context, row Monthly) error {
	if err := validPeriod(row.FiscalYear, row.Month); err != nil {
		return err
	}
	return s.repo.UpdateMonthlyWithVersion(ctx, row, s.now())
}

// AggregateMonthly rolls the month's daily rows up into monthly rows and
// returns how many monthly rows were written. Re-running the rollup for a
// month that already has rows adds on top of them, so callers schedule it
// once per period close.
func (s *Service) AggregateMonthly(ctx context.Context, fiscalYear, month int) (int64, error) {
	if err := validPeriod(fiscalYear, month); err != nil {
		return 0, err
	}
	from, to := shared.MonthRange(fiscalYear, month)
	return s.repo.AggregateFromDaily(ctx, fiscalYear, month, from, to)
}

// CarryForward seeds the next month's opening balances from this month's
// closing balances. Month 12 is closed by the year-end procedure, not by
// carry-forward.
func (s *Service) CarryForward(ctx context.Context, fiscalYear, month int) (int64, error) {
	if err := validPeriod(fiscalYear, month); err != nil {
		return 0, err
	}
	if month == 12 {
		return 0, shared.Validationf("month 12 has no in-year successor")
	}
	return s.repo.CarryForward(ctx, fiscalYear, month, month+1)
}

// TrialBalance projects the month's balances into the grouped trial balance.
func (s *Service) TrialBalance(ctx context.Context, fiscalYear, month int) (reports.TrialBalance, error) {
	lines, err := s.trialBalanceLines(ctx, fiscalYear, month, "")
	if err != nil {
		return reports.TrialBalance{}, err
	}
	return reports.BuildTrialBalance(toAccountBalances(lines)), nil
}

// BalanceSheet projects the month's balance sheet accounts into sections.
func (s *Service) BalanceSheet(ctx context.Context, fiscalYear, month int) (reports.BalanceSheet, error) {
	lines, err := s.trialBalanceLines(ctx, fiscalYear, month, "BS")
	if err != nil {
		return reports.BalanceSheet{}, err
	}
	return reports.BuildBalanceSheet(toAccountBalances(lines), reports.DefaultRules), nil
}

// IncomeStatement projects the month's profit and loss accounts into the
// stepped income statement.
func (s *Service) IncomeStatement(ctx context.Context, fiscalYear, month int) (reports.IncomeStatement, error) {
	lines, err := s.trialBalanceLines(ctx, fiscalYear, month, "PL")
	if err != nil {
		return reports.IncomeStatement{}, err
	}
	return reports.BuildIncomeStatement(toAccountBalances(lines), reports.DefaultRules), nil
}

func (s *Service) trialBalanceLines(ctx context.Context, fiscalYear, month int, statementType string) ([]TrialBalanceLine, error) {
	if err := validPeriod(fiscalYear, month); err != nil {
		return nil, err
	}
	return s.repo.TrialBalance(ctx, fiscalYear, month, statementType)
}

func toAccountBalances(lines []TrialBalanceLine) []reports.AccountBalance {
	out := make([]reports.AccountBalance, 0, len(lines))
	for _, line := range lines {
		out = append(out, reports.AccountBalance{
			Code:       line.AccountCode,
			Name:       line.AccountName,
			NormalSide: line.NormalSide,
			Opening:    line.OpeningBalance,
			Debit:      line.DebitTotal,
			Credit:     line.CreditTotal,
		})
	}
	return out
}

func validPeriod(fiscalYear, month int) error {
	if fiscalYear <= 0 {
		return shared.Validationf("fiscal year must be positive")
	}
	if month < 1 || month > 12 {
		return shared.Validationf("month must be between 1 and 12")
	}
	return nil
}
