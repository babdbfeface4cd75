package service

import (
	"github.com/shopspring/decimal"

	"github.com/kolfi-labs/mindmarket/internal/domain"
	"github.com/kolfi-labs/mindmarket/internal/ledger"
)

// BalanceView is the external rendering of an account's balances.
type BalanceView struct {
	AccountID string
	Free      decimal.Decimal
	Locked    map[string]decimal.Decimal // market id → locked amount
	Total     decimal.Decimal
}

// AccountService handles deposits and balance queries against the
// escrow ledger.
type AccountService struct {
	ledger *ledger.Ledger
}

// NewAccountService creates a new AccountService.
func NewAccountService(l *ledger.Ledger) *AccountService {
	return &AccountService{ledger: l}
}

// Deposit credits the account's free balance with an external
// collateral amount. The amount must be positive with at most two
// decimal places.
func (s *AccountService) Deposit(accountID string, amount decimal.Decimal) (BalanceView, error) {
	if accountID == "" {
		return BalanceView{}, &domain.ValidationError{Message: "account_id is required"}
	}
	units, ok := domain.DecimalToUnits(amount)
	if !ok {
		return BalanceView{}, &domain.ValidationError{Message: "amount must have at most 2 decimal places"}
	}
	if err := s.ledger.Deposit(accountID, units); err != nil {
		return BalanceView{}, err
	}
	return s.balance(accountID), nil
}

// Balance returns the account's free and locked balances.
func (s *AccountService) Balance(accountID string) (BalanceView, error) {
	if !s.ledger.Exists(accountID) {
		return BalanceView{}, domain.ErrAccountNotFound
	}
	return s.balance(accountID), nil
}

func (s *AccountService) balance(accountID string) BalanceView {
	free := s.ledger.Balance(accountID)
	total := free

	locked := make(map[string]decimal.Decimal)
	for marketID, amount := range s.ledger.LockedBalances(accountID) {
		locked[marketID] = domain.UnitsToDecimal(amount)
		total += amount
	}

	return BalanceView{
		AccountID: accountID,
		Free:      domain.UnitsToDecimal(free),
		Locked:    locked,
		Total:     domain.UnitsToDecimal(total),
	}
}
