package accounts

import (
	"context"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/ledger/shared"
)

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

func (s *Service) Get(ctx context.Context, code string) (Account, error) {
	if code == "" {
		return Account{}, shared.Validationf("account code is required")
	}
	return s.repo.Get(ctx, code)
}

func (s *Service) List(ctx context.Context, statementType string) ([]Account, error) {
	if err := validStatementType(statementType, true); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, statementType)
}

func (s *Service) Create(ctx context.Context, account Account) (Account, error) {
	if err := validate(account); err != nil {
		return Account{}, err
	}
	if err := s.repo.Create(ctx, account); err != nil {
		return Account{}, err
	}
	account.Version = 1
	return account, nil
}

func (s *Service) Update(ctx context.Context, account Account) error {
	if err := validate(account); err != nil {
		return err
	}
	return s.repo.Update(ctx, account, s.now())
}

func (s *Service) Delete(ctx context.Context, code string) error {
	if code == "" {
		return shared.Validationf("account code is required")
	}
	return s.repo.Delete(ctx, code)
}

func validate(account Account) error {
	if account.Code == "" {
		return shared.Validationf("account code is required")
	}
	if account.Name == "" {
		return shared.Validationf("account name is required")
	}
	if account.NormalSide != "DEBIT" && account.NormalSide != "CREDIT" {
		return shared.Validationf("normal side must be DEBIT or CREDIT")
	}
	return validStatementType(account.StatementType, false)
}

func validStatementType(statementType string, allowEmpty bool) error {
	switch statementType {
	case "BS", "PL":
		return nil
	case "":
		if allowEmpty {
			return nil
		}
	}
	return shared.Validationf("statement type must be BS or PL")
}
