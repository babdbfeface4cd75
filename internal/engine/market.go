package engine

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kolfi-labs/mindmarket/internal/domain"
)

// feeDenominator converts basis points to a fraction.
const feeDenominator = 10_000

// maxOrderQuantity bounds a single order so that quantity*feeBps and
// quantity+feeOn(quantity) stay inside int64 for any feeBps up to
// feeDenominator.
const maxOrderQuantity = math.MaxInt64 / feeDenominator

// PriceSource answers point queries for the latest mindshare score.
type PriceSource interface {
	GetPrice(subjectID uint64) (value decimal.Decimal, isStale bool)
}

// Escrow is the subset of the ledger a market drives. Every call is
// scoped to this market's id, which the factory has authorized.
type Escrow interface {
	DebitLocked(accountID string, amount int64, marketID string) error
	Lock(accountID string, amount int64, marketID string) error
	Unlock(accountID string, amount int64, marketID string) error
	Settle(accountID string, amount int64, marketID string) error
	Custody(marketID string) int64
}

// Notifier receives market events. Implemented by the webhook service.
type Notifier interface {
	DispatchOrderFilled(subjectID uint64, fill *domain.Fill, order *domain.Order)
	DispatchOrderCanceled(subjectID uint64, order *domain.Order)
	DispatchPositionClosed(subjectID uint64, order *domain.Order, result CloseResult)
}

// Persister receives write-through copies of order and market state.
// A nil Persister disables persistence.
type Persister interface {
	SaveOrder(marketID string, o *domain.Order) error
	ArchiveOrder(marketID string, o *domain.Order, pnl int64) error
	SaveMarket(s MarketState) error
}

// MarketState is a snapshot of a market's scalar state, used for
// persistence and views.
type MarketState struct {
	ID               string
	SubjectID        uint64
	PriceSourceID    uint64
	Expiry           time.Time
	EpochLength      time.Duration
	FeeBps           int64
	Volume           int64
	FeeCollected     int64
	ActiveOrderCount int64
	NextOrderID      uint64
}

// CloseResult reports the settlement outcome of one closed position.
type CloseResult struct {
	OrderID        uint64
	Trader         string
	FilledQuantity int64
	PnL            int64
	Fee            int64
	Payout         int64
	ExitPrice      decimal.Decimal
}

// Market owns one subject's order flow for one trading epoch: it
// creates orders, matches them FIFO against the opposite side at the
// same reference price, and drives the escrow ledger to move funds.
//
// The market mutex is held for the entirety of each public operation,
// so every operation is atomic and the outcome of a call sequence is
// deterministic.
type Market struct {
	mu sync.Mutex

	id            string
	subjectID     uint64
	priceSourceID uint64
	expiry        time.Time
	epochLength   time.Duration
	feeBps        int64
	priceScale    decimal.Decimal

	volume           int64
	feeCollected     int64
	activeOrderCount int64
	nextOrderID      uint64

	orders map[uint64]*domain.Order
	index  *OrderIndex

	prices    PriceSource
	escrow    Escrow
	notifier  Notifier
	persister Persister
	now       func() time.Time
}

// MarketConfig carries the immutable parameters of a market.
type MarketConfig struct {
	ID            string
	SubjectID     uint64
	PriceSourceID uint64
	Expiry        time.Time
	EpochLength   time.Duration
	FeeBps        int64
	PriceScale    decimal.Decimal
}

// NewMarket creates a market. Use the factory rather than calling this
// directly: the factory authorizes the market against the ledger.
// notifier and persister may be nil.
func NewMarket(cfg MarketConfig, prices PriceSource, escrow Escrow, notifier Notifier, persister Persister) *Market {
	return &Market{
		id:            cfg.ID,
		subjectID:     cfg.SubjectID,
		priceSourceID: cfg.PriceSourceID,
		expiry:        cfg.Expiry,
		epochLength:   cfg.EpochLength,
		feeBps:        cfg.FeeBps,
		priceScale:    cfg.PriceScale,
		nextOrderID:   1,
		orders:        make(map[uint64]*domain.Order),
		index:         NewOrderIndex(),
		prices:        prices,
		escrow:        escrow,
		notifier:      notifier,
		persister:     persister,
		now:           time.Now,
	}
}

// CreateOrder opens a sized directional order for trader. The current
// oracle score is snapshotted as the order's reference price, the order
// is matched FIFO against resting opposite-side orders in the same
// price bucket, and any unmatched remainder stays locked for later
// matching. Returns the new order's id.
func (m *Market) CreateOrder(trader string, side domain.Side, quantity int64) (uint64, error) {
	if quantity <= 0 || quantity > maxOrderQuantity {
		return 0, domain.ErrInvalidSize
	}
	if !side.Valid() {
		return 0, domain.ErrInvalidOrder
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.now().Before(m.expiry) {
		return 0, domain.ErrMarketExpired
	}

	price, stale := m.prices.GetPrice(m.priceSourceID)
	if stale {
		return 0, domain.ErrDataExpired
	}

	// Reserve the full quantity plus the taker fee on the part that is
	// about to fill before touching the book. The lock is atomic against
	// concurrent operations on other markets sharing the free balance,
	// and once it holds, every ledger call inside the match loop acts on
	// funds this market already controls.
	matchable := m.matchableQuantity(side, price, quantity)
	reserve := quantity + feeOn(matchable, m.feeBps)
	if err := m.escrow.Lock(trader, reserve, m.id); err != nil {
		return 0, err
	}

	order := &domain.Order{
		ID:             m.nextOrderID,
		Trader:         trader,
		SubjectID:      m.subjectID,
		Side:           side,
		ReferencePrice: price,
		Quantity:       quantity,
		CreatedAt:      m.now(),
		Status:         domain.OrderStatusActive,
	}
	m.nextOrderID++
	m.orders[order.ID] = order
	m.index.Insert(order)
	m.activeOrderCount++

	if err := m.match(order, reserve); err != nil {
		return 0, err
	}

	m.saveOrder(order)
	m.saveMarket()
	return order.ID, nil
}

// matchableQuantity reports how much of a prospective order would fill
// against the current bucket, capped at quantity. Caller holds m.mu.
func (m *Market) matchableQuantity(side domain.Side, price decimal.Decimal, quantity int64) int64 {
	var total int64
	for _, resting := range m.index.Bucket(side.Opposite(), price) {
		if !resting.Open() {
			continue
		}
		total += resting.Remaining()
		if total >= quantity {
			return quantity
		}
	}
	return total
}

// match runs the single-pass FIFO matching routine for an order whose
// reservation is already locked. It is a no-op unless the order is
// Active. Resting opposite-side orders in the same reference-price
// bucket are consumed head-first; each step moves the fill amount from
// the resting trader's locked balance into market custody. Afterwards,
// the matched part plus the taker fee moves from the incoming trader's
// lock into custody, and any reservation beyond the unmatched remainder
// is released. An error here means a ledger invariant broke; the caller
// propagates it instead of recording partial state as success.
func (m *Market) match(incoming *domain.Order, reserved int64) error {
	if incoming.Status != domain.OrderStatusActive {
		return nil
	}

	executedAt := m.now()
	var totalFilled, totalFee int64

	for _, resting := range m.index.Bucket(incoming.Side.Opposite(), incoming.ReferencePrice) {
		if !resting.Open() {
			continue
		}
		fill := resting.Remaining()
		if remaining := incoming.Remaining(); remaining < fill {
			fill = remaining
		}
		if fill <= 0 {
			break
		}

		incoming.FilledQuantity += fill
		resting.FilledQuantity += fill

		// The resting trader's residual is locked for this market, so
		// by the lock invariant this cannot fail.
		if err := m.escrow.DebitLocked(resting.Trader, fill, m.id); err != nil {
			return err
		}

		if resting.Remaining() == 0 {
			resting.Status = domain.OrderStatusFilled
			m.activeOrderCount--
			m.index.Remove(resting.ID)
		} else {
			resting.Status = domain.OrderStatusPartialFilled
		}

		fillID := uuid.New().String()
		incomingFill := &domain.Fill{
			FillID:         fillID,
			OrderID:        incoming.ID,
			CounterOrderID: resting.ID,
			Price:          incoming.ReferencePrice,
			Quantity:       fill,
			ExecutedAt:     executedAt,
		}
		restingFill := &domain.Fill{
			FillID:         fillID,
			OrderID:        resting.ID,
			CounterOrderID: incoming.ID,
			Price:          incoming.ReferencePrice,
			Quantity:       fill,
			ExecutedAt:     executedAt,
		}
		incoming.Fills = append(incoming.Fills, incomingFill)
		resting.Fills = append(resting.Fills, restingFill)

		// Taker fee is basis points of the amount filled in this step.
		totalFee += feeOn(fill, m.feeBps)
		totalFilled += fill
		m.volume += fill

		m.saveOrder(resting)
		if m.notifier != nil {
			m.notifier.DispatchOrderFilled(m.subjectID, restingFill, resting)
		}

		if incoming.Remaining() == 0 {
			break
		}
	}

	switch {
	case totalFilled == incoming.Quantity:
		incoming.Status = domain.OrderStatusFilled
		m.activeOrderCount--
		m.index.Remove(incoming.ID)
	case totalFilled > 0:
		incoming.Status = domain.OrderStatusPartialFilled
	}

	if totalFilled > 0 {
		if err := m.escrow.DebitLocked(incoming.Trader, totalFilled+totalFee, m.id); err != nil {
			return err
		}
		m.feeCollected += totalFee
	}

	// Per-step fee truncation can leave the reservation above what the
	// fills consumed; the difference goes back to the trader.
	if excess := reserved - incoming.Remaining() - totalFilled - totalFee; excess > 0 {
		if err := m.escrow.Unlock(incoming.Trader, excess, m.id); err != nil {
			return err
		}
	}

	if totalFilled > 0 && m.notifier != nil {
		for _, f := range incoming.Fills {
			m.notifier.DispatchOrderFilled(m.subjectID, f, incoming)
		}
	}
	return nil
}

// CancelOrder cancels an Active or PartialFilled order owned by caller,
// unlocking the unfilled remainder back to the trader's free balance.
func (m *Market) CancelOrder(caller string, orderID uint64) (domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.orders[orderID]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if order.Trader != caller {
		return domain.Order{}, domain.ErrCallerNotOwner
	}
	if !order.Open() {
		return domain.Order{}, domain.ErrOrderNotCancelable
	}

	if refund := order.Remaining(); refund > 0 {
		if err := m.escrow.Unlock(order.Trader, refund, m.id); err != nil {
			return domain.Order{}, err
		}
	}
	order.Status = domain.OrderStatusCanceled
	m.activeOrderCount--
	m.index.Remove(order.ID)

	m.saveOrder(order)
	m.saveMarket()
	if m.notifier != nil {
		m.notifier.DispatchOrderCanceled(m.subjectID, order)
	}
	return snapshotOrder(order), nil
}

// ClosePosition settles one order after epoch expiry and purges it.
// A zero-fill order is refunded in full with zero PnL. Otherwise the
// filled quantity settles at the current oracle score: the trader is
// credited filled + pnl − fee out of market custody, with the payout
// clamped at zero (a loss is settled by crediting less, never by a
// negative ledger entry). Admin gating happens at the service layer.
func (m *Market) ClosePosition(orderID uint64) (CloseResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.now().Before(m.expiry) {
		return CloseResult{}, domain.ErrCantCloseBeforeExpiry
	}

	order, ok := m.orders[orderID]
	if !ok {
		return CloseResult{}, domain.ErrOrderNotFound
	}
	if order.Status == domain.OrderStatusCanceled {
		return CloseResult{}, domain.ErrInvalidOrder
	}

	if order.FilledQuantity == 0 {
		if err := m.escrow.Unlock(order.Trader, order.Quantity, m.id); err != nil {
			return CloseResult{}, err
		}
		result := CloseResult{
			OrderID: order.ID,
			Trader:  order.Trader,
		}
		m.purge(order)
		m.saveMarket()
		if m.persister != nil {
			_ = m.persister.ArchiveOrder(m.id, order, 0)
		}
		if m.notifier != nil {
			m.notifier.DispatchPositionClosed(m.subjectID, order, result)
		}
		return result, nil
	}

	// Price is read before any mutation so a stale feed fails the
	// operation without observable effects.
	exit, stale := m.prices.GetPrice(m.priceSourceID)
	if stale {
		return CloseResult{}, domain.ErrDataExpired
	}

	pnl := m.pnl(order, exit)
	fee := feeOn(order.FilledQuantity, m.feeBps)
	payout := order.FilledQuantity + pnl - fee
	if payout < 0 {
		payout = 0
	}
	if m.escrow.Custody(m.id) < payout {
		return CloseResult{}, domain.ErrInsufficientLiquidity
	}

	if remainder := order.Remaining(); remainder > 0 {
		if err := m.escrow.Unlock(order.Trader, remainder, m.id); err != nil {
			return CloseResult{}, err
		}
	}
	if err := m.escrow.Settle(order.Trader, payout, m.id); err != nil {
		return CloseResult{}, err
	}
	m.feeCollected += fee

	result := CloseResult{
		OrderID:        order.ID,
		Trader:         order.Trader,
		FilledQuantity: order.FilledQuantity,
		PnL:            pnl,
		Fee:            fee,
		Payout:         payout,
		ExitPrice:      exit,
	}
	m.purge(order)
	m.saveMarket()
	if m.persister != nil {
		_ = m.persister.ArchiveOrder(m.id, order, pnl)
	}
	if m.notifier != nil {
		m.notifier.DispatchPositionClosed(m.subjectID, order, result)
	}
	return result, nil
}

// Reset rolls the market into a new epoch after expiry: residual locks
// of unfilled orders are refunded, the order table and index are
// purged, volume resets, and expiry advances by one epoch length.
// A filled position that has not been closed still has collateral in
// custody waiting for settlement, so the reset is refused until every
// such position is closed. Collected fees remain withdrawable across
// epochs, and order ids keep increasing. Admin gating happens at the
// service layer.
func (m *Market) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.now().Before(m.expiry) {
		return domain.ErrMarketStillActive
	}
	if m.unsettledPositions() {
		return domain.ErrUnsettledPositions
	}

	for _, order := range m.index.Clear() {
		if refund := order.Remaining(); refund > 0 {
			if err := m.escrow.Unlock(order.Trader, refund, m.id); err != nil {
				return err
			}
		}
		order.Status = domain.OrderStatusCanceled
	}
	if m.persister != nil {
		for _, order := range m.orders {
			_ = m.persister.ArchiveOrder(m.id, order, 0)
		}
	}
	m.orders = make(map[uint64]*domain.Order)
	m.activeOrderCount = 0
	m.volume = 0
	m.expiry = m.expiry.Add(m.epochLength)

	m.saveMarket()
	return nil
}

// HasUnsettledPositions reports whether any order carries fills that
// still await settlement through ClosePosition. A canceled order is
// not closeable and never counts.
func (m *Market) HasUnsettledPositions() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unsettledPositions()
}

func (m *Market) unsettledPositions() bool {
	for _, order := range m.orders {
		if order.FilledQuantity > 0 && order.Status != domain.OrderStatusCanceled {
			return true
		}
	}
	return false
}

// WithdrawFee moves amount out of the accrued fee pool into the
// treasury account's free balance. Admin gating happens at the service
// layer.
func (m *Market) WithdrawFee(treasury string, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if amount <= 0 {
		return domain.ErrInvalidAmount
	}
	if amount > m.feeCollected {
		return domain.ErrWithdrawalTooHigh
	}
	if err := m.escrow.Settle(treasury, amount, m.id); err != nil {
		return err
	}
	m.feeCollected -= amount
	m.saveMarket()
	return nil
}

// GetOrder returns a snapshot of one order.
func (m *Market) GetOrder(orderID uint64) (domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.orders[orderID]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return snapshotOrder(order), nil
}

// ActiveOrderCount returns the number of orders in Active or
// PartialFilled status.
func (m *Market) ActiveOrderCount() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeOrderCount
}

// Depth returns up to n aggregated price buckets for one side.
func (m *Market) Depth(side domain.Side, n int) []PriceLevel {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.index.Depth(side, n)
}

// ID returns the market's ledger identity.
func (m *Market) ID() string { return m.id }

// SubjectID returns the subject whose score this market trades.
func (m *Market) SubjectID() uint64 { return m.subjectID }

// Expiry returns the current epoch's expiry.
func (m *Market) Expiry() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.expiry
}

// State returns a snapshot of the market's scalar state.
func (m *Market) State() MarketState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state()
}

// RestoreOrders loads persisted open orders at startup, rebuilding the
// index and the active-order count, and restores scalar counters.
func (m *Market) RestoreOrders(orders []*domain.Order, s MarketState) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.volume = s.Volume
	m.feeCollected = s.FeeCollected
	m.nextOrderID = s.NextOrderID
	m.expiry = s.Expiry
	for _, order := range orders {
		m.orders[order.ID] = order
		if order.Open() {
			m.index.Insert(order)
			m.activeOrderCount++
		}
	}
}

// purge removes an order from the table and index, adjusting the
// active count when the order was still open.
func (m *Market) purge(order *domain.Order) {
	if order.Open() {
		m.activeOrderCount--
	}
	m.index.Remove(order.ID)
	delete(m.orders, order.ID)
}

// pnl computes the signed linear PnL of the filled quantity at the
// exit score: long gains when the score rises, short when it falls.
// The score delta is normalized by the price scale and truncated
// toward zero into collateral units.
func (m *Market) pnl(order *domain.Order, exit decimal.Decimal) int64 {
	diff := exit.Sub(order.ReferencePrice)
	if order.Side == domain.SideShort {
		diff = diff.Neg()
	}
	return diff.Mul(decimal.NewFromInt(order.FilledQuantity)).Div(m.priceScale).IntPart()
}

func (m *Market) state() MarketState {
	return MarketState{
		ID:               m.id,
		SubjectID:        m.subjectID,
		PriceSourceID:    m.priceSourceID,
		Expiry:           m.expiry,
		EpochLength:      m.epochLength,
		FeeBps:           m.feeBps,
		Volume:           m.volume,
		FeeCollected:     m.feeCollected,
		ActiveOrderCount: m.activeOrderCount,
		NextOrderID:      m.nextOrderID,
	}
}

func (m *Market) saveOrder(order *domain.Order) {
	if m.persister != nil {
		_ = m.persister.SaveOrder(m.id, order)
	}
}

func (m *Market) saveMarket() {
	if m.persister != nil {
		_ = m.persister.SaveMarket(m.state())
	}
}

// feeOn returns the basis-point fee on an amount, truncated.
func feeOn(amount, feeBps int64) int64 {
	return amount * feeBps / feeDenominator
}

// snapshotOrder copies an order, including its fill history, so views
// do not alias engine-owned state.
func snapshotOrder(order *domain.Order) domain.Order {
	out := *order
	out.Fills = append([]*domain.Fill(nil), order.Fills...)
	return out
}
