package balances

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/ledger/journals"
	"github.com/meridian-erp/meridian-erp/internal/ledger/oplock"
	"github.com/meridian-erp/meridian-erp/internal/ledger/shared"

	_ "github.com/meridian-erp/meridian-erp/testing"
)

type dailyKey struct {
	date string
	key  Key
}

type monthlyKey struct {
	fiscalYear int
	month      int
	key        Key
}

type memoryBalanceRepo struct {
	daily     map[dailyKey]Daily
	monthly   map[monthlyKey]Monthly
	projected map[string]bool

	// accounts simulates the account master; nil accepts every code
	accounts map[string]struct{}
	// applyFailures fails that many ApplyJournalDeltas calls before committing
	applyFailures int
}

func newMemoryBalanceRepo() *memoryBalanceRepo {
	return &memoryBalanceRepo{
		daily:     make(map[dailyKey]Daily),
		monthly:   make(map[monthlyKey]Monthly),
		projected: make(map[string]bool),
	}
}

func dkey(date time.Time, key Key) dailyKey {
	return dailyKey{date: date.Format("2006-01-02"), key: key}
}

func (r *memoryBalanceRepo) UpsertDaily(ctx context.Context, delta DailyDelta) error {
	k := dkey(delta.PostingDate, delta.Key)
	row, ok := r.daily[k]
	if !ok {
		r.daily[k] = Daily{
			PostingDate:  delta.PostingDate,
			Key:          delta.Key,
			DebitAmount:  delta.DebitDelta,
			CreditAmount: delta.CreditDelta,
			Version:      1,
		}
		return nil
	}
	row.DebitAmount = row.DebitAmount.Add(delta.DebitDelta)
	row.CreditAmount = row.CreditAmount.Add(delta.CreditDelta)
	row.Version++
	r.daily[k] = row
	return nil
}

// ApplyJournalDeltas mirrors the real repository's transaction: either the
// voucher is claimed and every delta lands, or nothing changes.
func (r *memoryBalanceRepo) ApplyJournalDeltas(ctx context.Context, voucherNumber string, deltas []DailyDelta) (bool, error) {
	if r.projected[voucherNumber] {
		return false, nil
	}
	if r.applyFailures > 0 {
		r.applyFailures--
		return false, errors.New("daily upsert failed")
	}
	for _, delta := range deltas {
		if err := r.UpsertDaily(ctx, delta); err != nil {
			return false, err
		}
	}
	r.projected[voucherNumber] = true
	return true, nil
}

func (r *memoryBalanceRepo) GetDaily(ctx context.Context, postingDate time.Time, key Key) (Daily, error) {
	row, ok := r.daily[dkey(postingDate, key)]
	if !ok {
		return Daily{}, shared.ErrBalanceNotFound
	}
	return row, nil
}

func (r *memoryBalanceRepo) ListDailyByPostingDate(ctx context.Context, postingDate time.Time) ([]Daily, error) {
	var out []Daily
	for k, row := range r.daily {
		if k.date == postingDate.Format("2006-01-02") {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *memoryBalanceRepo) UpdateDailyWithVersion(ctx context.Context, row Daily, now time.Time) error {
	k := dkey(row.PostingDate, row.Key)
	current, ok := r.daily[k]
	if !ok {
		return oplock.Classify("daily balance", row.Key.String(), row.Version, 0, false)
	}
	if current.Version != row.Version {
		return oplock.Classify("daily balance", row.Key.String(), row.Version, current.Version, true)
	}
	row.Version++
	row.UpdatedAt = now
	r.daily[k] = row
	return nil
}

func (r *memoryBalanceRepo) GetMonthly(ctx context.Context, fiscalYear, month int, key Key) (Monthly, error) {
	row, ok := r.monthly[monthlyKey{fiscalYear, month, key}]
	if !ok {
		return Monthly{}, shared.ErrBalanceNotFound
	}
	return row, nil
}

func (r *memoryBalanceRepo) ListMonthly(ctx context.Context, fiscalYear, month int) ([]Monthly, error) {
	var out []Monthly
	for k, row := range r.monthly {
		if k.fiscalYear == fiscalYear && k.month == month {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *memoryBalanceRepo) ListMonthlyByAccountCode(ctx context.Context, fiscalYear int, accountCode string) ([]Monthly, error) {
	var out []Monthly
	for k, row := range r.monthly {
		if k.fiscalYear == fiscalYear && k.key.AccountCode == accountCode {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *memoryBalanceRepo) UpdateMonthlyWithVersion(ctx context.Context, row Monthly, now time.Time) error {
	k := monthlyKey{row.FiscalYear, row.Month, row.Key}
	current, ok := r.monthly[k]
	if !ok {
		return oplock.Classify("monthly balance", row.Key.String(), row.Version, 0, false)
	}
	if current.Version != row.Version {
		return oplock.Classify("monthly balance", row.Key.String(), row.Version, current.Version, true)
	}
	row.Version++
	row.UpdatedAt = now
	r.monthly[k] = row
	return nil
}

func (r *memoryBalanceRepo) AggregateFromDaily(ctx context.Context, fiscalYear, month int, fromDate, toDate time.Time) (int64, error) {
	var affected int64
	for _, row := range r.daily {
		if row.PostingDate.Before(fromDate) || row.PostingDate.After(toDate) {
			continue
		}
		k := monthlyKey{fiscalYear, month, row.Key}
		m, ok := r.monthly[k]
		if !ok {
			m = Monthly{FiscalYear: fiscalYear, Month: month, Key: row.Key, Version: 0}
		}
		m.DebitAmount = m.DebitAmount.Add(row.DebitAmount)
		m.CreditAmount = m.CreditAmount.Add(row.CreditAmount)
		m.Version++
		r.monthly[k] = m
		affected++
	}
	return affected, nil
}

func (r *memoryBalanceRepo) CarryForward(ctx context.Context, fiscalYear, fromMonth, toMonth int) (int64, error) {
	var affected int64
	for k, row := range r.monthly {
		if k.fiscalYear != fiscalYear || k.month != fromMonth {
			continue
		}
		if r.accounts != nil {
			if _, ok := r.accounts[row.Key.AccountCode]; !ok {
				return 0, fmt.Errorf("%w: code %s has balance rows", shared.ErrAccountNotFound, row.Key.AccountCode)
			}
		}
		// the fake treats every account as debit-normal
		closing := row.ClosingBalance(true)
		nk := monthlyKey{fiscalYear, toMonth, row.Key}
		next, ok := r.monthly[nk]
		if !ok {
			next = Monthly{FiscalYear: fiscalYear, Month: toMonth, Key: row.Key, Version: 0}
		}
		next.OpeningBalance = closing
		next.Version++
		r.monthly[nk] = next
		affected++
	}
	return affected, nil
}

func (r *memoryBalanceRepo) TrialBalance(ctx context.Context, fiscalYear, month int, statementType string) ([]TrialBalanceLine, error) {
	byAccount := make(map[string]*TrialBalanceLine)
	for k, row := range r.monthly {
		if k.fiscalYear != fiscalYear || k.month != month {
			continue
		}
		line, ok := byAccount[k.key.AccountCode]
		if !ok {
			line = &TrialBalanceLine{AccountCode: k.key.AccountCode, NormalSide: "DEBIT"}
			byAccount[k.key.AccountCode] = line
		}
		line.OpeningBalance = line.OpeningBalance.Add(row.OpeningBalance)
		line.DebitTotal = line.DebitTotal.Add(row.DebitAmount)
		line.CreditTotal = line.CreditTotal.Add(row.CreditAmount)
		line.ClosingBalance = line.ClosingBalance.Add(row.ClosingBalance(true))
	}
	var out []TrialBalanceLine
	for _, line := range byAccount {
		out = append(out, *line)
	}
	return out, nil
}

func newBalanceService(repo Repository) *Service {
	return NewService(repo).WithNow(func() time.Time {
		return time.Date(2025, 4, 15, 12, 0, 0, 0, time.UTC)
	})
}

func TestUpsertDailyAccumulates(t *testing.T) {
	repo := newMemoryBalanceRepo()
	svc := newBalanceService(repo)
	ctx := context.Background()

	date := time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC)
	key := Key{AccountCode: "1101"}

	require.NoError(t, svc.UpsertDaily(ctx, DailyDelta{
		PostingDate: date, Key: key,
		DebitDelta: decimal.NewFromInt(100000), CreditDelta: decimal.Zero,
	}))
	require.NoError(t, svc.UpsertDaily(ctx, DailyDelta{
		PostingDate: date, Key: key,
		DebitDelta: decimal.NewFromInt(50000), CreditDelta: decimal.NewFromInt(30000),
	}))

	row, err := svc.GetDaily(ctx, date, key)
	require.NoError(t, err)
	require.True(t, row.DebitAmount.Equal(decimal.NewFromInt(150000)), "debit %v", row.DebitAmount)
	require.True(t, row.CreditAmount.Equal(decimal.NewFromInt(30000)), "credit %v", row.CreditAmount)
	require.EqualValues(t, 2, row.Version)
}

func TestUpsertDailyRejectsNegativeDelta(t *testing.T) {
	svc := newBalanceService(newMemoryBalanceRepo())

	err := svc.UpsertDaily(context.Background(), DailyDelta{
		PostingDate: time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC),
		Key:         Key{AccountCode: "1101"},
		DebitDelta:  decimal.NewFromInt(-1),
	})
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestProjectJournalGroupsByKey(t *testing.T) {
	date := time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC)
	journal := journals.Journal{
		VoucherNumber: "J1A2B3C4",
		PostingDate:   date,
		Lines: []journals.Line{
			{
				Entries: []journals.Entry{
					{Side: journals.SideDebit, AccountCode: "1101", Amount: decimal.NewFromInt(60000)},
					{Side: journals.SideCredit, AccountCode: "4001", Amount: decimal.NewFromInt(60000)},
				},
			},
			{
				Entries: []journals.Entry{
					{Side: journals.SideDebit, AccountCode: "1101", Amount: decimal.NewFromInt(40000)},
					{Side: journals.SideCredit, AccountCode: "4001", Amount: decimal.NewFromInt(40000)},
				},
			},
		},
	}

	deltas := ProjectJournal(journal)
	require.Len(t, deltas, 2)
	require.Equal(t, "1101", deltas[0].Key.AccountCode)
	require.True(t, deltas[0].DebitDelta.Equal(decimal.NewFromInt(100000)))
	require.True(t, deltas[0].CreditDelta.IsZero())
	require.Equal(t, "4001", deltas[1].Key.AccountCode)
	require.True(t, deltas[1].CreditDelta.Equal(decimal.NewFromInt(100000)))
	for _, delta := range deltas {
		require.True(t, delta.PostingDate.Equal(date))
	}
}

func TestApplyJournalUpsertsDeltas(t *testing.T) {
	repo := newMemoryBalanceRepo()
	svc := newBalanceService(repo)
	ctx := context.Background()

	date := time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC)
	journal := journals.Journal{
		VoucherNumber: "J12345",
		PostingDate:   date,
		Lines: []journals.Line{{
			Entries: []journals.Entry{
				{Side: journals.SideDebit, AccountCode: "1101", Amount: decimal.NewFromInt(5000)},
				{Side: journals.SideCredit, AccountCode: "2101", Amount: decimal.NewFromInt(5000)},
			},
		}},
	}
	require.NoError(t, svc.ApplyJournal(ctx, journal))

	cash, err := svc.GetDaily(ctx, date, Key{AccountCode: "1101"})
	require.NoError(t, err)
	require.True(t, cash.DebitAmount.Equal(decimal.NewFromInt(5000)))
	payable, err := svc.GetDaily(ctx, date, Key{AccountCode: "2101"})
	require.NoError(t, err)
	require.True(t, payable.CreditAmount.Equal(decimal.NewFromInt(5000)))
}

func TestApplyJournalRetryAppliesExactlyOnce(t *testing.T) {
	repo := newMemoryBalanceRepo()
	repo.applyFailures = 1
	svc := newBalanceService(repo)
	ctx := context.Background()

	date := time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC)
	journal := journals.Journal{
		VoucherNumber: "J12345",
		PostingDate:   date,
		Lines: []journals.Line{{
			Entries: []journals.Entry{
				{Side: journals.SideDebit, AccountCode: "1101", Amount: decimal.NewFromInt(5000)},
				{Side: journals.SideCredit, AccountCode: "2101", Amount: decimal.NewFromInt(5000)},
			},
		}},
	}

	// a failed projection leaves no partial deltas behind
	require.Error(t, svc.ApplyJournal(ctx, journal))
	_, err := svc.GetDaily(ctx, date, Key{AccountCode: "1101"})
	require.ErrorIs(t, err, shared.ErrBalanceNotFound)

	// the redelivered task lands the full set once
	require.NoError(t, svc.ApplyJournal(ctx, journal))
	cash, err := svc.GetDaily(ctx, date, Key{AccountCode: "1101"})
	require.NoError(t, err)
	require.True(t, cash.DebitAmount.Equal(decimal.NewFromInt(5000)), "debit %v", cash.DebitAmount)

	// further redeliveries are no-ops, not additions
	require.NoError(t, svc.ApplyJournal(ctx, journal))
	cash, err = svc.GetDaily(ctx, date, Key{AccountCode: "1101"})
	require.NoError(t, err)
	require.True(t, cash.DebitAmount.Equal(decimal.NewFromInt(5000)), "debit %v", cash.DebitAmount)
	require.EqualValues(t, 1, cash.Version)
}

func TestApplyJournalRequiresVoucherNumber(t *testing.T) {
	svc := newBalanceService(newMemoryBalanceRepo())

	err := svc.ApplyJournal(context.Background(), journals.Journal{
		PostingDate: time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC),
	})
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestAdjustDailyStaleVersionConflicts(t *testing.T) {
	repo := newMemoryBalanceRepo()
	svc := newBalanceService(repo)
	ctx := context.Background()

	date := time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC)
	key := Key{AccountCode: "1101"}
	require.NoError(t, svc.UpsertDaily(ctx, DailyDelta{
		PostingDate: date, Key: key, DebitDelta: decimal.NewFromInt(1000),
	}))

	// two readers hold the same snapshot at version 1
	first, err := svc.GetDaily(ctx, date, key)
	require.NoError(t, err)
	second := first

	first.DebitAmount = decimal.NewFromInt(2000)
	require.NoError(t, svc.AdjustDaily(ctx, first))

	second.DebitAmount = decimal.NewFromInt(3000)
	err = svc.AdjustDaily(ctx, second)
	require.ErrorIs(t, err, oplock.ErrConflict)

	var conflict *oplock.ConflictError
	require.ErrorAs(t, err, &conflict)
	require.EqualValues(t, 1, conflict.Expected)
	require.EqualValues(t, 2, conflict.Actual)

	// the winner's write is intact
	row, err := svc.GetDaily(ctx, date, key)
	require.NoError(t, err)
	require.True(t, row.DebitAmount.Equal(decimal.NewFromInt(2000)))
	require.EqualValues(t, 2, row.Version)
}

func TestAdjustMonthlyDeletedRow(t *testing.T) {
	svc := newBalanceService(newMemoryBalanceRepo())

	err := svc.AdjustMonthly(context.Background(), Monthly{
		FiscalYear: 2025, Month: 4,
		Key:     Key{AccountCode: "1101"},
		Version: 3,
	})
	require.ErrorIs(t, err, oplock.ErrDeleted)
}

func TestAggregateMonthlyUsesMonthRange(t *testing.T) {
	repo := newMemoryBalanceRepo()
	svc := newBalanceService(repo)
	ctx := context.Background()

	key := Key{AccountCode: "1101"}
	inApril := time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC)
	inMay := time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC)
	require.NoError(t, svc.UpsertDaily(ctx, DailyDelta{PostingDate: inApril, Key: key, DebitDelta: decimal.NewFromInt(700)}))
	require.NoError(t, svc.UpsertDaily(ctx, DailyDelta{PostingDate: inMay, Key: key, DebitDelta: decimal.NewFromInt(900)}))

	affected, err := svc.AggregateMonthly(ctx, 2025, 4)
	require.NoError(t, err)
	require.EqualValues(t, 1, affected)

	row, err := svc.GetMonthly(ctx, 2025, 4, key)
	require.NoError(t, err)
	require.True(t, row.DebitAmount.Equal(decimal.NewFromInt(700)), "debit %v", row.DebitAmount)

	_, err = svc.GetMonthly(ctx, 2025, 5, key)
	require.ErrorIs(t, err, shared.ErrBalanceNotFound)
}

func TestCarryForwardSeedsNextOpening(t *testing.T) {
	repo := newMemoryBalanceRepo()
	svc := newBalanceService(repo)
	ctx := context.Background()

	key := Key{AccountCode: "1101"}
	repo.monthly[monthlyKey{2025, 4, key}] = Monthly{
		FiscalYear: 2025, Month: 4, Key: key,
		OpeningBalance: decimal.NewFromInt(1000),
		DebitAmount:    decimal.NewFromInt(500),
		CreditAmount:   decimal.NewFromInt(200),
		Version:        1,
	}

	affected, err := svc.CarryForward(ctx, 2025, 4)
	require.NoError(t, err)
	require.EqualValues(t, 1, affected)

	next, err := svc.GetMonthly(ctx, 2025, 5, key)
	require.NoError(t, err)
	require.True(t, next.OpeningBalance.Equal(decimal.NewFromInt(1300)), "opening %v", next.OpeningBalance)
	require.True(t, next.DebitAmount.IsZero())
	require.True(t, next.CreditAmount.IsZero())
}

func TestCarryForwardMissingAccountFails(t *testing.T) {
	repo := newMemoryBalanceRepo()
	repo.accounts = map[string]struct{}{"1101": {}}
	svc := newBalanceService(repo)
	ctx := context.Background()

	key := Key{AccountCode: "9999"}
	repo.monthly[monthlyKey{2025, 4, key}] = Monthly{
		FiscalYear: 2025, Month: 4, Key: key,
		DebitAmount: decimal.NewFromInt(500),
		Version:     1,
	}

	_, err := svc.CarryForward(ctx, 2025, 4)
	require.ErrorIs(t, err, shared.ErrAccountNotFound)

	// the row was not silently skipped into month 5
	_, err = svc.GetMonthly(ctx, 2025, 5, key)
	require.ErrorIs(t, err, shared.ErrBalanceNotFound)
}

func TestCarryForwardRejectsDecember(t *testing.T) {
	svc := newBalanceService(newMemoryBalanceRepo())

	_, err := svc.CarryForward(context.Background(), 2025, 12)
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestTrialBalanceProjection(t *testing.T) {
	repo := newMemoryBalanceRepo()
	svc := newBalanceService(repo)
	ctx := context.Background()

	repo.monthly[monthlyKey{2025, 4, Key{AccountCode: "1101"}}] = Monthly{
		FiscalYear: 2025, Month: 4, Key: Key{AccountCode: "1101"},
		OpeningBalance: decimal.NewFromInt(1000),
		DebitAmount:    decimal.NewFromInt(300),
		CreditAmount:   decimal.NewFromInt(100),
		Version:        1,
	}
	repo.monthly[monthlyKey{2025, 4, Key{AccountCode: "2101"}}] = Monthly{
		FiscalYear: 2025, Month: 4, Key: Key{AccountCode: "2101"},
		DebitAmount:  decimal.NewFromInt(50),
		CreditAmount: decimal.NewFromInt(250),
		Version:      1,
	}

	tb, err := svc.TrialBalance(ctx, 2025, 4)
	require.NoError(t, err)
	require.Len(t, tb.Groups, 2)
	require.True(t, tb.TotalDebit.Equal(decimal.NewFromInt(350)))
	require.True(t, tb.TotalCredit.Equal(decimal.NewFromInt(350)))
	require.True(t, tb.Balanced())
}

func TestPeriodValidation(t *testing.T) {
	svc := newBalanceService(newMemoryBalanceRepo())
	ctx := context.Background()

	_, err := svc.ListMonthly(ctx, 2025, 13)
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)

	_, err = svc.AggregateMonthly(ctx, 0, 4)
	require.ErrorAs(t, err, &verr)
}
