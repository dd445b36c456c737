package accounts

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/ledger/oplock"
	"github.com/meridian-erp/meridian-erp/internal/ledger/shared"
)

type Repository interface {
	Get(ctx context.Context, code string) (Account, error)
	List(ctx context.Context, statementType string) ([]Account, error)
	Create(ctx context.Context, account Account) error
	Update(ctx context.Context, account Account, now time.Time) error
	Delete(ctx context.Context, code string) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const accountColumns = `code, name, normal_side, statement_type, version, created_at, updated_at`

func (r *repository) Get(ctx context.Context, code string) (Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE code = $1`, code)
	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, shared.ErrAccountNotFound
	}
	return account, err
}

func (r *repository) List(ctx context.Context, statementType string) ([]Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts`
	args := []any{}
	if statementType != "" {
		query += ` WHERE statement_type = $1`
		args = append(args, statementType)
	}
	query += ` ORDER BY code`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, account)
	}
	return out, rows.Err()
}

func (r *repository) Create(ctx context.Context, account Account) error {
	_, err := r.db.Exec(ctx, `INSERT INTO accounts (`+accountColumns+`)
VALUES ($1, $2, $3, $4, 1, NOW(), NOW())`,
		account.Code, account.Name, account.NormalSide, account.StatementType)
	return err
}

// Update rewrites an account row under the version guard.
func (r *repository) Update(ctx context.Context, account Account, now time.Time) error {
	tag, err := r.db.Exec(ctx, `UPDATE accounts
SET name = $2, normal_side = $3, statement_type = $4, version = version + 1, updated_at = $5
WHERE code = $1 AND version = $6`,
		account.Code, account.Name, account.NormalSide, account.StatementType, now, account.Version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var current int64
	err = r.db.QueryRow(ctx, `SELECT version FROM accounts WHERE code = $1`, account.Code).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return oplock.Classify("account", account.Code, account.Version, 0, false)
	}
	if err != nil {
		return err
	}
	return oplock.Classify("account", account.Code, account.Version, current, true)
}

func (r *repository) Delete(ctx context.Context, code string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM accounts WHERE code = $1`, code)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrAccountNotFound
	}
	return nil
}

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.Code, &a.Name, &a.NormalSide, &a.StatementType,
		&a.Version, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}
