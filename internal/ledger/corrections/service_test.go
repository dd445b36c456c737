package corrections

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/ledger/journals"
	"github.com/meridian-erp/meridian-erp/internal/ledger/oplock"
	"github.com/meridian-erp/meridian-erp/internal/ledger/shared"

	_ "github.com/meridian-erp/meridian-erp/testing"
)

type memoryJournalRepo struct {
	journals map[string]journals.Journal
}

func newMemoryJournalRepo() *memoryJournalRepo {
	return &memoryJournalRepo{journals: make(map[string]journals.Journal)}
}

// WithTx snapshots the store and restores it when fn fails, mirroring a
// rolled back transaction.
func (r *memoryJournalRepo) WithTx(ctx context.Context, fn func(context.Context, journals.TxRepository) error) error {
	snapshot := make(map[string]journals.Journal, len(r.journals))
	for k, v := range r.journals {
		snapshot[k] = v
	}
	if err := fn(ctx, &memoryJournalTx{repo: r}); err != nil {
		r.journals = snapshot
		return err
	}
	return nil
}

func (r *memoryJournalRepo) GetWithDetails(ctx context.Context, voucherNumber string) (journals.Journal, error) {
	journal, ok := r.journals[voucherNumber]
	if !ok {
		return journals.Journal{}, shared.ErrJournalNotFound
	}
	return journal, nil
}

func (r *memoryJournalRepo) ListByPostingDateRange(ctx context.Context, from, to time.Time) ([]journals.Journal, error) {
	return nil, nil
}

func (r *memoryJournalRepo) ListByAccountCode(ctx context.Context, accountCode string) ([]journals.Journal, error) {
	return nil, nil
}

func (r *memoryJournalRepo) HasReversalOf(ctx context.Context, voucherNumber string) (bool, error) {
	for _, journal := range r.journals {
		if journal.RedSlipFlag && journal.ReversalOf != nil && *journal.ReversalOf == voucherNumber {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryJournalRepo) Delete(ctx context.Context, voucherNumber string) error {
	if _, ok := r.journals[voucherNumber]; !ok {
		return shared.ErrJournalNotFound
	}
	delete(r.journals, voucherNumber)
	return nil
}

func (r *memoryJournalRepo) UpdateHeader(ctx context.Context, in journals.UpdateHeaderInput, now time.Time) error {
	journal, ok := r.journals[in.VoucherNumber]
	if !ok {
		return oplock.Classify("journal", in.VoucherNumber, in.Version, 0, false)
	}
	if journal.Version != in.Version {
		return oplock.Classify("journal", in.VoucherNumber, in.Version, journal.Version, true)
	}
	journal.Version++
	r.journals[in.VoucherNumber] = journal
	return nil
}

type memoryJournalTx struct {
	repo *memoryJournalRepo
}

func (t *memoryJournalTx) InsertJournal(ctx context.Context, journal journals.Journal) error {
	if _, ok := t.repo.journals[journal.VoucherNumber]; ok {
		return shared.ErrVoucherExists
	}
	journal.Lines = nil
	t.repo.journals[journal.VoucherNumber] = journal
	return nil
}

func (t *memoryJournalTx) InsertLines(ctx context.Context, voucherNumber string, lines []journals.Line) error {
	journal, ok := t.repo.journals[voucherNumber]
	if !ok {
		return shared.ErrJournalNotFound
	}
	journal.Lines = append(journal.Lines, lines...)
	t.repo.journals[voucherNumber] = journal
	return nil
}

func (t *memoryJournalTx) GetWithDetails(ctx context.Context, voucherNumber string) (journals.Journal, error) {
	return t.repo.GetWithDetails(ctx, voucherNumber)
}

func (t *memoryJournalTx) HasReversalOf(ctx context.Context, voucherNumber string) (bool, error) {
	return t.repo.HasReversalOf(ctx, voucherNumber)
}

func fixedClock() time.Time {
	return time.Date(2025, 4, 20, 14, 0, 0, 0, time.UTC)
}

// postJournal seeds the store with a posted journal the way the journal
// engine would have written it.
func postJournal(t *testing.T, repo *memoryJournalRepo, voucherNumber string, in journals.CreateInput) journals.Journal {
	t.Helper()
	journal := journals.Build(in, voucherNumber, time.Date(2025, 4, 10, 9, 0, 0, 0, time.UTC))
	require.True(t, journal.IsBalanced())
	err := repo.WithTx(context.Background(), func(ctx context.Context, tx journals.TxRepository) error {
		if err := tx.InsertJournal(ctx, journal); err != nil {
			return err
		}
		return tx.InsertLines(ctx, voucherNumber, journal.Lines)
	})
	require.NoError(t, err)
	return journal
}

func salesInput(amount int64) journals.CreateInput {
	return journals.CreateInput{
		PostingDate: time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC),
		Lines: []journals.LineInput{{
			Summary: "cash sale",
			Entries: []journals.EntryInput{
				{Side: journals.SideDebit, AccountCode: "1101", Amount: decimal.NewFromInt(amount)},
				{Side: journals.SideCredit, AccountCode: "4001", Amount: decimal.NewFromInt(amount)},
			},
		}},
	}
}

func TestCancelIssuesRedSlip(t *testing.T) {
	repo := newMemoryJournalRepo()
	svc := NewService(repo)
	svc.WithNow(fixedClock)

	postJournal(t, repo, "J12345", salesInput(100000))

	redNumber, err := svc.Cancel(context.Background(), "J12345")
	require.NoError(t, err)
	require.Equal(t, "J12345R", redNumber)

	redSlip, err := repo.GetWithDetails(context.Background(), "J12345R")
	require.NoError(t, err)
	require.True(t, redSlip.RedSlipFlag)
	require.NotNil(t, redSlip.RedBlackVoucherNumber)
	require.EqualValues(t, 12345, *redSlip.RedBlackVoucherNumber)
	require.NotNil(t, redSlip.ReversalOf)
	require.Equal(t, "J12345", *redSlip.ReversalOf)
	require.True(t, redSlip.PostingDate.Equal(fixedClock()))

	// sides flipped, amounts kept, still balanced
	require.Len(t, redSlip.Lines, 1)
	entries := redSlip.Lines[0].Entries
	require.Len(t, entries, 2)
	require.Equal(t, journals.SideCredit, entries[0].Side)
	require.Equal(t, "1101", entries[0].AccountCode)
	require.Equal(t, journals.SideDebit, entries[1].Side)
	require.Equal(t, "4001", entries[1].AccountCode)
	require.True(t, entries[0].Amount.Equal(decimal.NewFromInt(100000)))
	require.True(t, redSlip.IsBalanced())
	require.Contains(t, redSlip.Lines[0].Summary, "(cancelled)")

	// the original is untouched
	original, err := repo.GetWithDetails(context.Background(), "J12345")
	require.NoError(t, err)
	require.False(t, original.RedSlipFlag)
	require.EqualValues(t, 1, original.Version)
}

func TestCancelTwiceFails(t *testing.T) {
	repo := newMemoryJournalRepo()
	svc := NewService(repo)
	svc.WithNow(fixedClock)

	postJournal(t, repo, "J12345", salesInput(100000))

	_, err := svc.Cancel(context.Background(), "J12345")
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), "J12345")
	require.ErrorIs(t, err, shared.ErrAlreadyCancelled)
}

func TestCancelVoucherSharingDigitsStaysIndependent(t *testing.T) {
	repo := newMemoryJournalRepo()
	svc := NewService(repo)
	svc.WithNow(fixedClock)

	// both vouchers project to the same digits (1234)
	postJournal(t, repo, "J1A2B3C4", salesInput(100000))
	postJournal(t, repo, "JA1B2C3D", salesInput(50000))
	require.Equal(t, NumericPart("J1A2B3C4"), NumericPart("JA1B2C3D"))

	_, err := svc.Cancel(context.Background(), "J1A2B3C4")
	require.NoError(t, err)

	redNumber, err := svc.Cancel(context.Background(), "JA1B2C3D")
	require.NoError(t, err)
	require.Equal(t, "JA1B2C3DR", redNumber)

	_, err = svc.Cancel(context.Background(), "JA1B2C3D")
	require.ErrorIs(t, err, shared.ErrAlreadyCancelled)
}

func TestCancelRedSlipFails(t *testing.T) {
	repo := newMemoryJournalRepo()
	svc := NewService(repo)
	svc.WithNow(fixedClock)

	postJournal(t, repo, "J12345", salesInput(100000))

	redNumber, err := svc.Cancel(context.Background(), "J12345")
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), redNumber)
	require.ErrorIs(t, err, shared.ErrAlreadyCancelled)
}

func TestCancelMissingJournal(t *testing.T) {
	svc := NewService(newMemoryJournalRepo())
	svc.WithNow(fixedClock)

	_, err := svc.Cancel(context.Background(), "JMISSING")
	require.ErrorIs(t, err, shared.ErrJournalNotFound)
}

func TestCorrectPostsRedAndBlackPair(t *testing.T) {
	repo := newMemoryJournalRepo()
	svc := NewService(repo)
	svc.WithNow(fixedClock)
	svc.WithVoucherSource(func() string { return "JBLACK01" })

	postJournal(t, repo, "J12345", salesInput(100000))

	result, err := svc.Correct(context.Background(), "J12345", salesInput(120000))
	require.NoError(t, err)
	require.Equal(t, "J12345R", result.RedSlipVoucherNumber)
	require.Equal(t, "JBLACK01", result.BlackSlipVoucherNumber)

	blackSlip, err := repo.GetWithDetails(context.Background(), "JBLACK01")
	require.NoError(t, err)
	require.False(t, blackSlip.RedSlipFlag)
	require.True(t, blackSlip.IsBalanced())
	debit, _ := blackSlip.Totals()
	require.True(t, debit.Equal(decimal.NewFromInt(120000)))

	// three journals now: original, red, black
	require.Len(t, repo.journals, 3)
}

func TestCorrectUnbalancedReplacementPersistsNothing(t *testing.T) {
	repo := newMemoryJournalRepo()
	svc := NewService(repo)
	svc.WithNow(fixedClock)
	svc.WithVoucherSource(func() string { return "JBLACK01" })

	postJournal(t, repo, "J12345", salesInput(100000))

	bad := salesInput(120000)
	bad.Lines[0].Entries[1].Amount = decimal.NewFromInt(90000)

	_, err := svc.Correct(context.Background(), "J12345", bad)
	require.ErrorIs(t, err, shared.ErrUnbalanced)

	var mismatch *shared.BalanceMismatchError
	require.ErrorAs(t, err, &mismatch)

	// the red slip was rolled back with the black slip
	_, err = repo.GetWithDetails(context.Background(), "J12345R")
	require.ErrorIs(t, err, shared.ErrJournalNotFound)
	_, err = repo.GetWithDetails(context.Background(), "JBLACK01")
	require.ErrorIs(t, err, shared.ErrJournalNotFound)

	// and the original can still be corrected
	_, err = svc.Correct(context.Background(), "J12345", salesInput(120000))
	require.NoError(t, err)
}

func TestCorrectCancelledJournalFails(t *testing.T) {
	repo := newMemoryJournalRepo()
	svc := NewService(repo)
	svc.WithNow(fixedClock)

	postJournal(t, repo, "J12345", salesInput(100000))

	_, err := svc.Cancel(context.Background(), "J12345")
	require.NoError(t, err)

	_, err = svc.Correct(context.Background(), "J12345", salesInput(120000))
	require.ErrorIs(t, err, shared.ErrAlreadyCancelled)
}

func TestNumericPart(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"J12345", 12345},
		{"J12345R", 12345},
		{"JA1B2C3", 123},
		{"JABCDEF", 0},
		{"", 0},
	}
	for _, tc := range cases {
		if got := NumericPart(tc.in); got != tc.want {
			t.Fatalf("NumericPart(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}
