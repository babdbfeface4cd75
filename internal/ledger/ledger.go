// Package ledger implements the escrow accounting shared by all
// markets: per-account free balances, per-(account, market) locked
// balances, and per-market custody. Funds only move between these
// three pools, so their sum always equals cumulative deposits.
package ledger

import (
	"sync"

	"github.com/kolfi-labs/mindmarket/internal/domain"
)

// Persister receives write-through copies of balance mutations so they
// survive restarts. A nil Persister disables persistence.
type Persister interface {
	SaveAccount(accountID string, free int64) error
	SaveLock(accountID, marketID string, locked int64) error
	SaveCustody(marketID string, custody int64) error
	SaveDeposited(total int64) error
}

// Ledger is the escrow ledger. Market-scoped operations require the
// calling market to have been authorized by the factory; the
// authorization is revocable by an administrator.
type Ledger struct {
	mu         sync.RWMutex
	free       map[string]int64
	locked     map[string]map[string]int64 // account → market → units
	custody    map[string]int64            // market → units
	authorized map[string]bool             // market ids allowed to move funds
	deposited  int64                       // cumulative deposits
	persister  Persister
}

// New creates an empty Ledger. persister may be nil.
func New(persister Persister) *Ledger {
	return &Ledger{
		free:       make(map[string]int64),
		locked:     make(map[string]map[string]int64),
		custody:    make(map[string]int64),
		authorized: make(map[string]bool),
		persister:  persister,
	}
}

// AuthorizeMarket grants a market the capability to move funds.
func (l *Ledger) AuthorizeMarket(marketID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.authorized[marketID] = true
}

// RevokeMarket removes a market's capability to move funds.
func (l *Ledger) RevokeMarket(marketID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.authorized, marketID)
}

// Authorized reports whether a market may move funds.
func (l *Ledger) Authorized(marketID string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.authorized[marketID]
}

// Deposit credits an account's free balance. The external collateral
// transfer into custody happens at the API boundary; here it is a
// ledger credit. Rejects non-positive amounts.
func (l *Ledger) Deposit(accountID string, amount int64) error {
	if amount <= 0 {
		return domain.ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.free[accountID] += amount
	l.deposited += amount
	l.saveAccount(accountID)
	if l.persister != nil {
		_ = l.persister.SaveDeposited(l.deposited)
	}
	return nil
}

// DebitFree moves amount from the account's free balance into the
// market's custody. Fails with ErrInsufficientBalance when the free
// balance cannot cover it.
func (l *Ledger) DebitFree(accountID string, amount int64, marketID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.check(marketID, amount); err != nil {
		return err
	}
	if l.free[accountID] < amount {
		return domain.ErrInsufficientBalance
	}
	l.free[accountID] -= amount
	l.custody[marketID] += amount
	l.saveAccount(accountID)
	l.saveCustody(marketID)
	return nil
}

// DebitLocked moves amount from the account's balance locked for the
// market into the market's custody. Fails with
// ErrInsufficientLockedBalance when the lock cannot cover it.
func (l *Ledger) DebitLocked(accountID string, amount int64, marketID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.check(marketID, amount); err != nil {
		return err
	}
	if l.lockedOf(accountID, marketID) < amount {
		return domain.ErrInsufficientLockedBalance
	}
	l.locked[accountID][marketID] -= amount
	l.custody[marketID] += amount
	l.saveLock(accountID, marketID)
	l.saveCustody(marketID)
	return nil
}

// Lock moves amount from the account's free balance into its locked
// balance for the market.
func (l *Ledger) Lock(accountID string, amount int64, marketID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.check(marketID, amount); err != nil {
		return err
	}
	if l.free[accountID] < amount {
		return domain.ErrInsufficientBalance
	}
	l.free[accountID] -= amount
	if l.locked[accountID] == nil {
		l.locked[accountID] = make(map[string]int64)
	}
	l.locked[accountID][marketID] += amount
	l.saveAccount(accountID)
	l.saveLock(accountID, marketID)
	return nil
}

// Unlock moves amount back from the account's locked balance for the
// market into its free balance.
func (l *Ledger) Unlock(accountID string, amount int64, marketID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.check(marketID, amount); err != nil {
		return err
	}
	if l.lockedOf(accountID, marketID) < amount {
		return domain.ErrInsufficientLockedBalance
	}
	l.locked[accountID][marketID] -= amount
	l.free[accountID] += amount
	l.saveAccount(accountID)
	l.saveLock(accountID, marketID)
	return nil
}

// Settle credits the account's free balance out of the market's
// custody. The amount is a payout already computed by the market; a
// net loss is represented by settling less than the filled size,
// never by a negative entry. Fails with ErrInsufficientLiquidity when
// the market's custody cannot cover the payout.
func (l *Ledger) Settle(accountID string, amount int64, marketID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.check(marketID, amount); err != nil {
		return err
	}
	if l.custody[marketID] < amount {
		return domain.ErrInsufficientLiquidity
	}
	l.custody[marketID] -= amount
	l.free[accountID] += amount
	l.saveAccount(accountID)
	l.saveCustody(marketID)
	return nil
}

// Balance returns the account's free balance. Unknown accounts read
// as zero.
func (l *Ledger) Balance(accountID string) int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.free[accountID]
}

// LockedBalance returns the account's balance locked for one market.
func (l *Ledger) LockedBalance(accountID, marketID string) int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lockedOf(accountID, marketID)
}

// LockedBalances returns a copy of the account's locks keyed by market.
func (l *Ledger) LockedBalances(accountID string) map[string]int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[string]int64, len(l.locked[accountID]))
	for marketID, amount := range l.locked[accountID] {
		if amount != 0 {
			out[marketID] = amount
		}
	}
	return out
}

// Custody returns the funds currently held by a market.
func (l *Ledger) Custody(marketID string) int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.custody[marketID]
}

// TotalDeposited returns cumulative deposits, the conserved quantity.
func (l *Ledger) TotalDeposited() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.deposited
}

// Exists reports whether the account has ever held funds.
func (l *Ledger) Exists(accountID string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.free[accountID]
	return ok
}

// Restore loads persisted balances at startup.
func (l *Ledger) Restore(free map[string]int64, locked map[string]map[string]int64, custody map[string]int64, deposited int64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for account, amount := range free {
		l.free[account] = amount
	}
	for account, byMarket := range locked {
		if l.locked[account] == nil {
			l.locked[account] = make(map[string]int64)
		}
		for marketID, amount := range byMarket {
			l.locked[account][marketID] = amount
		}
	}
	for marketID, amount := range custody {
		l.custody[marketID] = amount
	}
	l.deposited = deposited
}

// check validates a market-scoped operation. Callers must hold the
// write lock.
func (l *Ledger) check(marketID string, amount int64) error {
	if !l.authorized[marketID] {
		return domain.ErrMarketNotAuthorized
	}
	if amount < 0 {
		return domain.ErrInvalidAmount
	}
	return nil
}

// lockedOf reads a lock without allocating the inner map. Callers must
// hold at least the read lock.
func (l *Ledger) lockedOf(accountID, marketID string) int64 {
	byMarket, ok := l.locked[accountID]
	if !ok {
		return 0
	}
	return byMarket[marketID]
}

func (l *Ledger) saveAccount(accountID string) {
	if l.persister != nil {
		_ = l.persister.SaveAccount(accountID, l.free[accountID])
	}
}

func (l *Ledger) saveLock(accountID, marketID string) {
	if l.persister != nil {
		_ = l.persister.SaveLock(accountID, marketID, l.lockedOf(accountID, marketID))
	}
}

func (l *Ledger) saveCustody(marketID string) {
	if l.persister != nil {
		_ = l.persister.SaveCustody(marketID, l.custody[marketID])
	}
}
