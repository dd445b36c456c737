package balances

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/ledger/oplock"
	"github.com/meridian-erp/meridian-erp/internal/ledger/shared"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
)

// Repository encapsulates DB operations for daily and monthly balance rows.
// Daily upserts and the daily->monthly aggregation rely on the store's
// conflict-merge so concurrent postings to one key never lose a delta;
// everything else runs under the version-check-and-increment guard.
type Repository interface {
	UpsertDaily(ctx context.Context, delta DailyDelta) error
	ApplyJournalDeltas(ctx context.Context, voucherNumber string, deltas []DailyDelta) (bool, error)
	GetDaily(ctx context.Context, postingDate time.Time, key Key) (Daily, error)
	ListDailyByPostingDate(ctx context.Context, postingDate time.Time) ([]Daily, error)
	UpdateDailyWithVersion(ctx context.Context, row Daily, now time.Time) error

	GetMonthly(ctx context.Context, fiscalYear, month int, key Key) (Monthly, error)
	ListMonthly(ctx context.Context, fiscalYear, month int) ([]Monthly, error)
	ListMonthlyByAccountCode(ctx context.Context, fiscalYear int, accountCode string) ([]Monthly, error)
	UpdateMonthlyWithVersion(ctx context.Context, row Monthly, now time.Time) error

	AggregateFromDaily(ctx context.Context, fiscalYear, month int, fromDate, toDate time.Time) (int64, error)
	CarryForward(ctx context.Context, fiscalYear, fromMonth, toMonth int) (int64, error)
	TrialBalance(ctx context.Context, fiscalYear, month int, statementType string) ([]TrialBalanceLine, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const dailyColumns = `posting_date, account_code, sub_account_code, department_code,
project_code, closing_journal_flag, debit_amount, credit_amount, version, created_at, updated_at`

const monthlyColumns = `fiscal_year, month, account_code, sub_account_code, department_code,
project_code, closing_journal_flag, opening_balance, debit_amount, credit_amount, version, created_at, updated_at`

// execer covers pgxpool.Pool and pgx.Tx for the daily upsert.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// UpsertDaily merges one delta into the daily row for the key: first posting
// inserts at version 1, later postings add amounts and bump the version. The
// conflict clause makes the read-modify-write atomic per key.
func (r *repository) UpsertDaily(ctx context.Context, delta DailyDelta) error {
	return upsertDaily(ctx, r.db, delta)
}

func upsertDaily(ctx context.Context, q execer, delta DailyDelta) error {
	_, err := q.Exec(ctx, `INSERT INTO daily_account_balances (`+dailyColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,1,NOW(),NOW())
ON CONFLICT (posting_date, account_code, sub_account_code, department_code, project_code, closing_journal_flag)
DO UPDATE SET
	debit_amount = daily_account_balances.debit_amount + EXCLUDED.debit_amount,
	credit_amount = daily_account_balances.credit_amount + EXCLUDED.credit_amount,
	version = daily_account_balances.version + 1,
	updated_at = NOW()`,
		delta.PostingDate, delta.Key.AccountCode, delta.Key.SubAccountCode,
		delta.Key.DepartmentCode, delta.Key.ProjectCode, delta.Key.ClosingJournalFlag,
		shared.DecimalToNumeric(delta.DebitDelta), shared.DecimalToNumeric(delta.CreditDelta))
	return err
}

// ApplyJournalDeltas projects one journal's deltas in a single transaction.
// The voucher is claimed in journal_projections first; a voucher already
// claimed was applied by an earlier delivery and the call is a no-op, which
// keeps redelivered projection tasks from double-counting. Returns whether
// the deltas were applied by this call.
func (r *repository) ApplyJournalDeltas(ctx context.Context, voucherNumber string, deltas []DailyDelta) (bool, error) {
	var applied bool
	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `INSERT INTO journal_projections (voucher_number, projected_at)
VALUES ($1, NOW()) ON CONFLICT (voucher_number) DO NOTHING`, voucherNumber)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		for _, delta := range deltas {
			if err := upsertDaily(ctx, tx, delta); err != nil {
				return err
			}
		}
		applied = true
		return nil
	})
	return applied, err
}

func (r *repository) GetDaily(ctx context.Context, postingDate time.Time, key Key) (Daily, error) {
	row := r.db.QueryRow(ctx, `SELECT `+dailyColumns+` FROM daily_account_balances
WHERE posting_date = $1 AND account_code = $2 AND sub_account_code = $3
AND department_code = $4 AND project_code = $5 AND closing_journal_flag = $6`,
		postingDate, key.AccountCode, key.SubAccountCode, key.DepartmentCode,
		key.ProjectCode, key.ClosingJournalFlag)
	daily, err := scanDaily(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Daily{}, shared.ErrBalanceNotFound
	}
	return daily, err
}

func (r *repository) ListDailyByPostingDate(ctx context.Context, postingDate time.Time) ([]Daily, error) {
	rows, err := r.db.Query(ctx, `SELECT `+dailyColumns+` FROM daily_account_balances
WHERE posting_date = $1
ORDER BY account_code, sub_account_code, department_code, project_code, closing_journal_flag`, postingDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Daily
	for rows.Next() {
		daily, err := scanDaily(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, daily)
	}
	return out, rows.Err()
}

func (r *repository) UpdateDailyWithVersion(ctx context.Context, row Daily, now time.Time) error {
	tag, err := r.db.Exec(ctx, `UPDATE daily_account_balances
SET debit_amount = $7, credit_amount = $8, version = version + 1, updated_at = $9
WHERE posting_date = $1 AND account_code = $2 AND sub_account_code = $3
AND department_code = $4 AND project_code = $5 AND closing_journal_flag = $6
AND version = $10`,
		row.PostingDate, row.Key.AccountCode, row.Key.SubAccountCode,
		row.Key.DepartmentCode, row.Key.ProjectCode, row.Key.ClosingJournalFlag,
		shared.DecimalToNumeric(row.DebitAmount), shared.DecimalToNumeric(row.CreditAmount),
		now, row.Version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	key := row.PostingDate.Format("2006-01-02") + "/" + row.Key.String()
	var current int64
	err = r.db.QueryRow(ctx, `SELECT version FROM daily_account_balances
WHERE posting_date = $1 AND account_code = $2 AND sub_account_code = $3
AND department_code = $4 AND project_code = $5 AND closing_journal_flag = $6`,
		row.PostingDate, row.Key.AccountCode, row.Key.SubAccountCode,
		row.Key.DepartmentCode, row.Key.ProjectCode, row.Key.ClosingJournalFlag).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return oplock.Classify("daily balance", key, row.Version, 0, false)
	}
	if err != nil {
		return err
	}
	return oplock.Classify("daily balance", key, row.Version, current, true)
}

func (r *repository) GetMonthly(ctx context.Context, fiscalYear, month int, key Key) (Monthly, error) {
	row := r.db.QueryRow(ctx, `SELECT `+monthlyColumns+` FROM monthly_account_balances
WHERE fiscal_year = $1 AND month = $2 AND account_code = $3 AND sub_account_code = $4
AND department_code = $5 AND project_code = $6 AND closing_journal_flag = $7`,
		fiscalYear, month, key.AccountCode, key.SubAccountCode, key.DepartmentCode,
		key.ProjectCode, key.ClosingJournalFlag)
	monthly, err := scanMonthly(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Monthly{}, shared.ErrBalanceNotFound
	}
	return monthly, err
}

func (r *repository) ListMonthly(ctx context.Context, fiscalYear, month int) ([]Monthly, error) {
	return r.listMonthly(ctx, `SELECT `+monthlyColumns+` FROM monthly_account_balances
WHERE fiscal_year = $1 AND month = $2
ORDER BY account_code, sub_account_code, department_code, project_code, closing_journal_flag`,
		fiscalYear, month)
}

func (r *repository) ListMonthlyByAccountCode(ctx context.Context, fiscalYear int, accountCode string) ([]Monthly, error) {
	return r.listMonthly(ctx, `SELECT `+monthlyColumns+` FROM monthly_account_balances
WHERE fiscal_year = $1 AND account_code = $2
ORDER BY month, sub_account_code, department_code, project_code, closing_journal_flag`,
		fiscalYear, accountCode)
}

func (r *repository) listMonthly(ctx context.Context, query string, args ...any) ([]Monthly, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Monthly
	for rows.Next() {
		monthly, err := scanMonthly(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, monthly)
	}
	return out, rows.Err()
}

func (r *repository) UpdateMonthlyWithVersion(ctx context.Context, row Monthly, now time.Time) error {
	tag, err := r.db.Exec(ctx, `UPDATE monthly_account_balances
SET opening_balance = $8, debit_amount = $9, credit_amount = $10, version = version + 1, updated_at = $11
WHERE fiscal_year = $1 AND month = $2 AND account_code = $3 AND sub_account_code = $4
AND department_code = $5 AND project_code = $6 AND closing_journal_flag = $7
AND version = $12`,
		row.FiscalYear, row.Month, row.Key.AccountCode, row.Key.SubAccountCode,
		row.Key.DepartmentCode, row.Key.ProjectCode, row.Key.ClosingJournalFlag,
		shared.DecimalToNumeric(row.OpeningBalance), shared.DecimalToNumeric(row.DebitAmount),
		shared.DecimalToNumeric(row.CreditAmount), now, row.Version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	key := fmtMonthlyKey(row)
	var current int64
	err = r.db.QueryRow(ctx, `SELECT version FROM monthly_account_balances
WHERE fiscal_year = $1 AND month = $2 AND account_code = $3 AND sub_account_code = $4
AND department_code = $5 AND project_code = $6 AND closing_journal_flag = $7`,
		row.FiscalYear, row.Month, row.Key.AccountCode, row.Key.SubAccountCode,
		row.Key.DepartmentCode, row.Key.ProjectCode, row.Key.ClosingJournalFlag).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return oplock.Classify("monthly balance", key, row.Version, 0, false)
	}
	if err != nil {
		return err
	}
	return oplock.Classify("monthly balance", key, row.Version, current, true)
}

// AggregateFromDaily folds the date range's daily rows into monthly rows for
// the period: one grouped scan, merged additively into any existing rows.
func (r *repository) AggregateFromDaily(ctx context.Context, fiscalYear, month int, fromDate, toDate time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `INSERT INTO monthly_account_balances (`+monthlyColumns+`)
SELECT $1, $2, account_code, sub_account_code, department_code, project_code, closing_journal_flag,
	0, SUM(debit_amount), SUM(credit_amount), 1, NOW(), NOW()
FROM daily_account_balances
WHERE posting_date BETWEEN $3 AND $4
GROUP BY account_code, sub_account_code, department_code, project_code, closing_journal_flag
ON CONFLICT (fiscal_year, month, account_code, sub_account_code, department_code, project_code, closing_journal_flag)
DO UPDATE SET
	debit_amount = monthly_account_balances.debit_amount + EXCLUDED.debit_amount,
	credit_amount = monthly_account_balances.credit_amount + EXCLUDED.credit_amount,
	version = monthly_account_balances.version + 1,
	updated_at = NOW()`,
		fiscalYear, month, fromDate, toDate)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// CarryForward seeds next month's opening balances from this month's closing
// balances. The closing sign follows each account's normal balance side. A
// monthly row whose account is missing from the master fails the whole run;
// silently skipping it would drop its closing balance from the next period.
func (r *repository) CarryForward(ctx context.Context, fiscalYear, fromMonth, toMonth int) (int64, error) {
	var affected int64
	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		var missing string
		err := tx.QueryRow(ctx, `SELECT m.account_code FROM monthly_account_balances m
LEFT JOIN accounts a ON a.code = m.account_code
WHERE m.fiscal_year = $1 AND m.month = $2 AND a.code IS NULL
LIMIT 1`, fiscalYear, fromMonth).Scan(&missing)
		if err == nil {
			return fmt.Errorf("%w: code %s has balance rows", shared.ErrAccountNotFound, missing)
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return err
		}

		tag, err := tx.Exec(ctx, `INSERT INTO monthly_account_balances (`+monthlyColumns+`)
SELECT m.fiscal_year, $3, m.account_code, m.sub_account_code, m.department_code,
	m.project_code, m.closing_journal_flag,
	CASE WHEN a.normal_side = 'DEBIT'
		THEN m.opening_balance + m.debit_amount - m.credit_amount
		ELSE m.opening_balance - m.debit_amount + m.credit_amount END,
	0, 0, 1, NOW(), NOW()
FROM monthly_account_balances m
JOIN accounts a ON a.code = m.account_code
WHERE m.fiscal_year = $1 AND m.month = $2
ON CONFLICT (fiscal_year, month, account_code, sub_account_code, department_code, project_code, closing_journal_flag)
DO UPDATE SET
	opening_balance = EXCLUDED.opening_balance,
	version = monthly_account_balances.version + 1,
	updated_at = NOW()`,
			fiscalYear, fromMonth, toMonth)
		if err != nil {
			return err
		}
		affected = tag.RowsAffected()
		return nil
	})
	return affected, err
}

// TrialBalance joins monthly rows with the account master so each line carries
// the account name and a sign-resolved closing balance. statementType filters
// on the account's BS/PL classification when non-empty.
func (r *repository) TrialBalance(ctx context.Context, fiscalYear, month int, statementType string) ([]TrialBalanceLine, error) {
	query := `SELECT m.account_code, a.name, a.normal_side,
	SUM(m.opening_balance), SUM(m.debit_amount), SUM(m.credit_amount),
	SUM(CASE WHEN a.normal_side = 'DEBIT'
		THEN m.opening_balance + m.debit_amount - m.credit_amount
		ELSE m.opening_balance - m.debit_amount + m.credit_amount END)
FROM monthly_account_balances m
LEFT JOIN accounts a ON a.code = m.account_code
WHERE m.fiscal_year = $1 AND m.month = $2`
	args := []any{fiscalYear, month}
	if statementType != "" {
		query += ` AND a.statement_type = $3`
		args = append(args, statementType)
	}
	query += ` GROUP BY m.account_code, a.name, a.normal_side ORDER BY m.account_code`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []TrialBalanceLine
	for rows.Next() {
		var line TrialBalanceLine
		var name, normalSide *string
		var opening, debit, credit, closing pgtype.Numeric
		if err := rows.Scan(&line.AccountCode, &name, &normalSide, &opening, &debit, &credit, &closing); err != nil {
			return nil, err
		}
		if name == nil || normalSide == nil {
			return nil, fmt.Errorf("%w: code %s has balance rows", shared.ErrAccountNotFound, line.AccountCode)
		}
		line.AccountName = *name
		line.NormalSide = *normalSide
		line.OpeningBalance = shared.NumericToDecimal(opening)
		line.DebitTotal = shared.NumericToDecimal(debit)
		line.CreditTotal = shared.NumericToDecimal(credit)
		line.ClosingBalance = shared.NumericToDecimal(closing)
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func scanDaily(row pgx.Row) (Daily, error) {
	var d Daily
	var debit, credit pgtype.Numeric
	err := row.Scan(&d.PostingDate, &d.Key.AccountCode, &d.Key.SubAccountCode,
		&d.Key.DepartmentCode, &d.Key.ProjectCode, &d.Key.ClosingJournalFlag,
		&debit, &credit, &d.Version, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return Daily{}, err
	}
	d.DebitAmount = shared.NumericToDecimal(debit)
	d.CreditAmount = shared.NumericToDecimal(credit)
	return d, nil
}

func scanMonthly(row pgx.Row) (Monthly, error) {
	var m Monthly
	var opening, debit, credit pgtype.Numeric
	err := row.Scan(&m.FiscalYear, &m.Month, &m.Key.AccountCode, &m.Key.SubAccountCode,
		&m.Key.DepartmentCode, &m.Key.ProjectCode, &m.Key.ClosingJournalFlag,
		&opening, &debit, &credit, &m.Version, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return Monthly{}, err
	}
	m.OpeningBalance = shared.NumericToDecimal(opening)
	m.DebitAmount = shared.NumericToDecimal(debit)
	m.CreditAmount = shared.NumericToDecimal(credit)
	return m, nil
}

func fmtMonthlyKey(row Monthly) string {
	return time.Date(row.FiscalYear, time.Month(row.Month), 1, 0, 0, 0, 0, time.UTC).Format("2006-01") +
		"/" + row.Key.String()
}
