package service

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/kolfi-labs/mindmarket/internal/domain"
	"github.com/kolfi-labs/mindmarket/internal/engine"
	"github.com/kolfi-labs/mindmarket/internal/ledger"
)

// MarketView is the external rendering of a market's state.
type MarketView struct {
	SubjectID        uint64
	PriceSourceID    uint64
	Expiry           time.Time
	Volume           int64
	FeeCollected     int64
	ActiveOrderCount int64
	Custody          decimal.Decimal
}

// DepthView aggregates both sides of a market's order index.
type DepthView struct {
	SubjectID uint64
	Longs     []engine.PriceLevel
	Shorts    []engine.PriceLevel
}

// MarketService handles market lifecycle and the administrator-gated
// operations: position close, epoch reset, and fee withdrawal.
type MarketService struct {
	factory  *engine.MarketFactory
	ledger   *ledger.Ledger
	treasury string
}

// NewMarketService creates a new MarketService. treasury is the
// account credited by fee withdrawals.
func NewMarketService(factory *engine.MarketFactory, l *ledger.Ledger, treasury string) *MarketService {
	return &MarketService{
		factory:  factory,
		ledger:   l,
		treasury: treasury,
	}
}

// Create registers a new market for a subject. Admin gating happens at
// the handler layer.
func (s *MarketService) Create(subjectID, priceSourceID uint64, expiry time.Time) (MarketView, error) {
	m, err := s.factory.CreateMarket(subjectID, priceSourceID, expiry)
	if err != nil {
		return MarketView{}, err
	}
	return s.view(m), nil
}

// Get returns the live market view for a subject.
func (s *MarketService) Get(subjectID uint64) (MarketView, error) {
	m, err := s.factory.Get(subjectID)
	if err != nil {
		return MarketView{}, err
	}
	return s.view(m), nil
}

// List returns all live markets ordered by subject id.
func (s *MarketService) List() []MarketView {
	markets := s.factory.List()
	out := make([]MarketView, 0, len(markets))
	for _, m := range markets {
		out = append(out, s.view(m))
	}
	return out
}

// Depth returns up to n aggregated price buckets per side.
func (s *MarketService) Depth(subjectID uint64, n int) (DepthView, error) {
	m, err := s.factory.Get(subjectID)
	if err != nil {
		return DepthView{}, err
	}
	return DepthView{
		SubjectID: subjectID,
		Longs:     m.Depth(domain.SideLong, n),
		Shorts:    m.Depth(domain.SideShort, n),
	}, nil
}

// Close settles one position after epoch expiry.
func (s *MarketService) Close(subjectID uint64, orderID uint64) (engine.CloseResult, error) {
	m, err := s.factory.Get(subjectID)
	if err != nil {
		return engine.CloseResult{}, err
	}
	return m.ClosePosition(orderID)
}

// Reset rolls the given subjects' markets into a new epoch.
func (s *MarketService) Reset(subjectIDs []uint64) error {
	return s.factory.Reset(subjectIDs)
}

// WithdrawFee moves amount of collected fees to the treasury account.
func (s *MarketService) WithdrawFee(subjectID uint64, amount int64) error {
	m, err := s.factory.Get(subjectID)
	if err != nil {
		return err
	}
	return m.WithdrawFee(s.treasury, amount)
}

func (s *MarketService) view(m *engine.Market) MarketView {
	st := m.State()
	return MarketView{
		SubjectID:        st.SubjectID,
		PriceSourceID:    st.PriceSourceID,
		Expiry:           st.Expiry,
		Volume:           st.Volume,
		FeeCollected:     st.FeeCollected,
		ActiveOrderCount: st.ActiveOrderCount,
		Custody:          domain.UnitsToDecimal(s.ledger.Custody(st.ID)),
	}
}
