package journals

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/meridian-erp/meridian-erp/internal/ledger/oplock"
	"github.com/meridian-erp/meridian-erp/internal/ledger/shared"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
)

// Repository encapsulates DB operations for journal aggregates.
type Repository interface {
	GetWithDetails(ctx context.Context, voucherNumber string) (Journal, error)
	ListByPostingDateRange(ctx context.Context, from, to time.Time) ([]Journal, error)
	ListByAccountCode(ctx context.Context, accountCode string) ([]Journal, error)
	HasReversalOf(ctx context.Context, voucherNumber string) (bool, error)
	Delete(ctx context.Context, voucherNumber string) error
	UpdateHeader(ctx context.Context, in UpdateHeaderInput, now time.Time) error
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes the writes available within one transaction. The
// correction engine spans its red/black pair inside a single WithTx scope.
type TxRepository interface {
	InsertJournal(ctx context.Context, journal Journal) error
	InsertLines(ctx context.Context, voucherNumber string, lines []Line) error
	GetWithDetails(ctx context.Context, voucherNumber string) (Journal, error)
	HasReversalOf(ctx context.Context, voucherNumber string) (bool, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const journalColumns = `voucher_number, posting_date, entry_date, voucher_type,
closing_journal_flag, single_entry_flag, periodic_posting_flag, red_slip_flag,
red_black_voucher_number, reversal_of, employee_code, department_code, version, created_at, updated_at`

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{q: tx})
	})
}

func (r *repository) GetWithDetails(ctx context.Context, voucherNumber string) (Journal, error) {
	return (&txRepository{q: r.db}).GetWithDetails(ctx, voucherNumber)
}

func (r *repository) HasReversalOf(ctx context.Context, voucherNumber string) (bool, error) {
	return (&txRepository{q: r.db}).HasReversalOf(ctx, voucherNumber)
}

func (r *repository) ListByPostingDateRange(ctx context.Context, from, to time.Time) ([]Journal, error) {
	rows, err := r.db.Query(ctx, `SELECT voucher_number FROM journals
WHERE posting_date BETWEEN $1 AND $2 ORDER BY posting_date, voucher_number`, from, to)
	if err != nil {
		return nil, err
	}
	return r.collect(ctx, rows)
}

func (r *repository) ListByAccountCode(ctx context.Context, accountCode string) ([]Journal, error) {
	rows, err := r.db.Query(ctx, `SELECT DISTINCT j.voucher_number FROM journals j
JOIN journal_entries e ON e.voucher_number = j.voucher_number
WHERE e.account_code = $1 ORDER BY j.voucher_number`, accountCode)
	if err != nil {
		return nil, err
	}
	return r.collect(ctx, rows)
}

func (r *repository) collect(ctx context.Context, rows pgx.Rows) ([]Journal, error) {
	var numbers []string
	for rows.Next() {
		var number string
		if err := rows.Scan(&number); err != nil {
			rows.Close()
			return nil, err
		}
		numbers = append(numbers, number)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	journals := make([]Journal, len(numbers))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, number := range numbers {
		g.Go(func() error {
			journal, err := r.GetWithDetails(ctx, number)
			if err != nil {
				return err
			}
			journals[i] = journal
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return journals, nil
}

func (r *repository) Delete(ctx context.Context, voucherNumber string) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM journals WHERE voucher_number = $1`, voucherNumber)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrJournalNotFound
		}
		if _, err := tx.Exec(ctx, `DELETE FROM journal_lines WHERE voucher_number = $1`, voucherNumber); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `DELETE FROM journal_entries WHERE voucher_number = $1`, voucherNumber)
		return err
	})
}

func (r *repository) UpdateHeader(ctx context.Context, in UpdateHeaderInput, now time.Time) error {
	tag, err := r.db.Exec(ctx, `UPDATE journals
SET employee_code = $2, department_code = $3, version = version + 1, updated_at = $4
WHERE voucher_number = $1 AND version = $5`,
		in.VoucherNumber, in.EmployeeCode, in.DepartmentCode, now, in.Version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var current int64
	err = r.db.QueryRow(ctx, `SELECT version FROM journals WHERE voucher_number = $1`,
		in.VoucherNumber).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return oplock.Classify("journal", in.VoucherNumber, in.Version, 0, false)
	}
	if err != nil {
		return err
	}
	return oplock.Classify("journal", in.VoucherNumber, in.Version, current, true)
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txRepository struct {
	q querier
}

func (r *txRepository) InsertJournal(ctx context.Context, j Journal) error {
	_, err := r.q.Exec(ctx, `INSERT INTO journals (`+journalColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		j.VoucherNumber, j.PostingDate, j.EntryDate, j.VoucherType,
		j.ClosingJournalFlag, j.SingleEntryFlag, j.PeriodicPostingFlag, j.RedSlipFlag,
		j.RedBlackVoucherNumber, j.ReversalOf, j.EmployeeCode, j.DepartmentCode, j.Version, j.CreatedAt, j.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return shared.ErrVoucherExists
		}
		return err
	}
	return nil
}

func (r *txRepository) InsertLines(ctx context.Context, voucherNumber string, lines []Line) error {
	for _, line := range lines {
		if _, err := r.q.Exec(ctx, `INSERT INTO journal_lines
(voucher_number, line_number, summary, created_at, updated_at) VALUES ($1,$2,$3,$4,$5)`,
			voucherNumber, line.LineNumber, line.Summary, line.CreatedAt, line.UpdatedAt); err != nil {
			return err
		}
		for _, entry := range line.Entries {
			if _, err := r.q.Exec(ctx, `INSERT INTO journal_entries
(voucher_number, line_number, side, account_code, sub_account_code, department_code,
project_code, segment_code, amount, currency_code, exchange_rate, base_amount,
tax_type, tax_rate, tax_calc_type, due_date, cash_flow_flag, counter_account_code,
counter_sub_account_code, tag_code, tag_content, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23)`,
				voucherNumber, entry.LineNumber, entry.Side, entry.AccountCode, entry.SubAccountCode,
				entry.DepartmentCode, entry.ProjectCode, entry.SegmentCode,
				shared.DecimalToNumeric(entry.Amount), entry.CurrencyCode,
				shared.DecimalToNumeric(entry.ExchangeRate), shared.DecimalToNumeric(entry.BaseAmount),
				entry.TaxType, shared.DecimalToNumeric(entry.TaxRate), entry.TaxCalcType,
				entry.DueDate, entry.CashFlowFlag, entry.CounterAccountCode,
				entry.CounterSubAccountCode, entry.TagCode, entry.TagContent,
				entry.CreatedAt, entry.UpdatedAt); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *txRepository) GetWithDetails(ctx context.Context, voucherNumber string) (Journal, error) {
	var j Journal
	err := r.q.QueryRow(ctx, `SELECT `+journalColumns+` FROM journals WHERE voucher_number = $1`,
		voucherNumber).Scan(
		&j.VoucherNumber, &j.PostingDate, &j.EntryDate, &j.VoucherType,
		&j.ClosingJournalFlag, &j.SingleEntryFlag, &j.PeriodicPostingFlag, &j.RedSlipFlag,
		&j.RedBlackVoucherNumber, &j.ReversalOf, &j.EmployeeCode, &j.DepartmentCode, &j.Version, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Journal{}, shared.ErrJournalNotFound
		}
		return Journal{}, err
	}

	lines, err := r.loadLines(ctx, voucherNumber)
	if err != nil {
		return Journal{}, err
	}
	j.Lines = lines
	return j, nil
}

func (r *txRepository) loadLines(ctx context.Context, voucherNumber string) ([]Line, error) {
	rows, err := r.q.Query(ctx, `SELECT voucher_number, line_number, summary, created_at, updated_at
FROM journal_lines WHERE voucher_number = $1 ORDER BY line_number`, voucherNumber)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []Line
	byNumber := map[int]int{}
	for rows.Next() {
		var line Line
		if err := rows.Scan(&line.VoucherNumber, &line.LineNumber, &line.Summary, &line.CreatedAt, &line.UpdatedAt); err != nil {
			return nil, err
		}
		byNumber[line.LineNumber] = len(lines)
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	entryRows, err := r.q.Query(ctx, `SELECT voucher_number, line_number, side, account_code,
sub_account_code, department_code, project_code, segment_code, amount, currency_code,
exchange_rate, base_amount, tax_type, tax_rate, tax_calc_type, due_date, cash_flow_flag,
counter_account_code, counter_sub_account_code, tag_code, tag_content, created_at, updated_at
FROM journal_entries WHERE voucher_number = $1 ORDER BY line_number, side DESC`, voucherNumber)
	if err != nil {
		return nil, err
	}
	defer entryRows.Close()

	for entryRows.Next() {
		entry, err := scanEntry(entryRows)
		if err != nil {
			return nil, err
		}
		idx, ok := byNumber[entry.LineNumber]
		if !ok {
			continue
		}
		lines[idx].Entries = append(lines[idx].Entries, entry)
	}
	return lines, entryRows.Err()
}

// HasReversalOf matches on the original voucher number itself. The numeric
// red/black id is kept for display but is not unique across vouchers.
func (r *txRepository) HasReversalOf(ctx context.Context, voucherNumber string) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx, `SELECT EXISTS (
SELECT 1 FROM journals WHERE red_slip_flag AND reversal_of = $1)`, voucherNumber).Scan(&exists)
	return exists, err
}

func scanEntry(rows pgx.Rows) (Entry, error) {
	var entry Entry
	var amount, rate, base, taxRate pgtype.Numeric
	if err := rows.Scan(&entry.VoucherNumber, &entry.LineNumber, &entry.Side, &entry.AccountCode,
		&entry.SubAccountCode, &entry.DepartmentCode, &entry.ProjectCode, &entry.SegmentCode,
		&amount, &entry.CurrencyCode, &rate, &base, &entry.TaxType, &taxRate, &entry.TaxCalcType,
		&entry.DueDate, &entry.CashFlowFlag, &entry.CounterAccountCode,
		&entry.CounterSubAccountCode, &entry.TagCode, &entry.TagContent,
		&entry.CreatedAt, &entry.UpdatedAt); err != nil {
		return Entry{}, err
	}
	entry.Amount = shared.NumericToDecimal(amount)
	entry.ExchangeRate = shared.NumericToDecimal(rate)
	entry.BaseAmount = shared.NumericToDecimal(base)
	entry.TaxRate = shared.NumericToDecimal(taxRate)
	return entry, nil
}
