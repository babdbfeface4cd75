package engine

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kolfi-labs/mindmarket/internal/domain"
)

// Authorizer is the ledger capability-granting surface used by the
// factory when it instantiates a market.
type Authorizer interface {
	AuthorizeMarket(marketID string)
	RevokeMarket(marketID string)
}

// MarketFactory creates and registers Market instances, one live
// market per subject, and authorizes each against the ledger.
type MarketFactory struct {
	mu       sync.RWMutex
	markets  map[uint64]*Market // subject id → market
	subjects *domain.SubjectRegistry

	epochLength time.Duration
	feeBps      int64
	priceScale  decimal.Decimal

	prices    PriceSource
	escrow    Escrow
	auth      Authorizer
	notifier  Notifier
	persister Persister
	now       func() time.Time
}

// NewMarketFactory creates a factory. Markets it creates share the
// given epoch length, fee, and price scale. notifier and persister may
// be nil.
func NewMarketFactory(
	epochLength time.Duration,
	feeBps int64,
	priceScale decimal.Decimal,
	subjects *domain.SubjectRegistry,
	prices PriceSource,
	escrow Escrow,
	auth Authorizer,
	notifier Notifier,
	persister Persister,
) *MarketFactory {
	return &MarketFactory{
		markets:     make(map[uint64]*Market),
		subjects:    subjects,
		epochLength: epochLength,
		feeBps:      feeBps,
		priceScale:  priceScale,
		prices:      prices,
		escrow:      escrow,
		auth:        auth,
		notifier:    notifier,
		persister:   persister,
		now:         time.Now,
	}
}

// CreateMarket instantiates a market bound to (subject, price source,
// expiry), grants it the ledger capability, and registers the subject.
// Rejects a zero price source, a non-future expiry, and a subject that
// already has a live market.
func (f *MarketFactory) CreateMarket(subjectID, priceSourceID uint64, expiry time.Time) (*Market, error) {
	if subjectID == 0 {
		return nil, &domain.ValidationError{Message: "subject_id is required"}
	}
	if priceSourceID == 0 {
		return nil, domain.ErrInvalidPriceSource
	}
	if !expiry.After(f.now()) {
		return nil, domain.ErrInvalidExpiry
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.markets[subjectID]; exists {
		return nil, domain.ErrMarketAlreadyExists
	}

	m := NewMarket(MarketConfig{
		ID:            uuid.New().String(),
		SubjectID:     subjectID,
		PriceSourceID: priceSourceID,
		Expiry:        expiry,
		EpochLength:   f.epochLength,
		FeeBps:        f.feeBps,
		PriceScale:    f.priceScale,
	}, f.prices, f.escrow, f.notifier, f.persister)

	f.auth.AuthorizeMarket(m.ID())
	f.subjects.Register(subjectID)
	f.markets[subjectID] = m

	if f.persister != nil {
		_ = f.persister.SaveMarket(m.State())
	}
	return m, nil
}

// Get returns the live market for a subject.
func (f *MarketFactory) Get(subjectID uint64) (*Market, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	m, ok := f.markets[subjectID]
	if !ok {
		return nil, domain.ErrMarketNotFound
	}
	return m, nil
}

// List returns all live markets ordered by subject id.
func (f *MarketFactory) List() []*Market {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]*Market, 0, len(f.markets))
	for _, m := range f.markets {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SubjectID() < out[j].SubjectID()
	})
	return out
}

// Reset rolls the markets for the given subjects into a new epoch.
// Rejects empty input; a missing subject, a market still inside its
// epoch, or a market holding unsettled positions fails the whole batch
// without resetting the remainder.
func (f *MarketFactory) Reset(subjectIDs []uint64) error {
	if len(subjectIDs) == 0 {
		return domain.ErrEmptyInput
	}

	f.mu.RLock()
	markets := make([]*Market, 0, len(subjectIDs))
	for _, id := range subjectIDs {
		m, ok := f.markets[id]
		if !ok {
			f.mu.RUnlock()
			return domain.ErrMarketNotFound
		}
		markets = append(markets, m)
	}
	f.mu.RUnlock()

	now := f.now()
	for _, m := range markets {
		if now.Before(m.Expiry()) {
			return domain.ErrMarketStillActive
		}
		if m.HasUnsettledPositions() {
			return domain.ErrUnsettledPositions
		}
	}
	for _, m := range markets {
		if err := m.Reset(); err != nil {
			return err
		}
	}
	return nil
}

// Restore re-registers a persisted market at startup and re-grants its
// ledger capability.
func (f *MarketFactory) Restore(s MarketState, orders []*domain.Order) *Market {
	f.mu.Lock()
	defer f.mu.Unlock()

	m := NewMarket(MarketConfig{
		ID:            s.ID,
		SubjectID:     s.SubjectID,
		PriceSourceID: s.PriceSourceID,
		Expiry:        s.Expiry,
		EpochLength:   s.EpochLength,
		FeeBps:        s.FeeBps,
		PriceScale:    f.priceScale,
	}, f.prices, f.escrow, f.notifier, f.persister)
	m.RestoreOrders(orders, s)

	f.auth.AuthorizeMarket(m.ID())
	f.subjects.Register(s.SubjectID)
	f.markets[s.SubjectID] = m
	return m
}
