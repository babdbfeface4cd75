// Package store persists ledger balances, orders, markets, and oracle
// points to SQLite so a restarted process resumes with the same state.
// The in-memory engine and ledger remain authoritative; the store is a
// write-through copy plus a boot-time loader.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/kolfi-labs/mindmarket/internal/domain"
	"github.com/kolfi-labs/mindmarket/internal/engine"
	"github.com/kolfi-labs/mindmarket/internal/oracle"
)

// AccountRow is an account's free balance.
type AccountRow struct {
	AccountID string `gorm:"primaryKey"`
	Free      int64
}

// LockRow is one (account, market) locked balance.
type LockRow struct {
	AccountID string `gorm:"primaryKey"`
	MarketID  string `gorm:"primaryKey"`
	Locked    int64
}

// CustodyRow is one market's custody balance.
type CustodyRow struct {
	MarketID string `gorm:"primaryKey"`
	Custody  int64
}

// MetaRow holds scalar bookkeeping values (cumulative deposits).
type MetaRow struct {
	Key   string `gorm:"primaryKey"`
	Value int64
}

// OrderRow is one order, open or archived.
type OrderRow struct {
	MarketID       string `gorm:"primaryKey"`
	OrderID        uint64 `gorm:"primaryKey"`
	Trader         string
	SubjectID      uint64
	Side           string
	ReferencePrice string
	Quantity       int64
	FilledQuantity int64
	Status         string
	CreatedAt      time.Time
	Closed         bool
	PnL            int64
}

// MarketRow is one market's scalar state.
type MarketRow struct {
	MarketID         string `gorm:"primaryKey"`
	SubjectID        uint64
	PriceSourceID    uint64
	Expiry           time.Time
	EpochLengthNS    int64
	FeeBps           int64
	Volume           int64
	FeeCollected     int64
	ActiveOrderCount int64
	NextOrderID      uint64
}

// PointRow is one oracle reading.
type PointRow struct {
	SubjectID uint64 `gorm:"primaryKey"`
	Rank      uint64
	Score     string
	// autoUpdateTime is disabled so gorm stores the oracle reading's
	// own timestamp instead of overwriting it with time.Now on save.
	UpdatedAt time.Time `gorm:"autoUpdateTime:false"`
}

const metaDeposited = "total_deposited"

// Store is a SQLite-backed persister for the ledger, engine, and
// oracle packages.
type Store struct {
	db *gorm.DB
}

// Open connects to the SQLite database at path, creating the directory
// if needed, and migrates the schema. Use ":memory:" for tests.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create DB directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(
		&AccountRow{}, &LockRow{}, &CustodyRow{}, &MetaRow{},
		&OrderRow{}, &MarketRow{}, &PointRow{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: db}, nil
}

// SaveAccount implements ledger.Persister.
func (s *Store) SaveAccount(accountID string, free int64) error {
	return s.db.Save(&AccountRow{AccountID: accountID, Free: free}).Error
}

// SaveLock implements ledger.Persister.
func (s *Store) SaveLock(accountID, marketID string, locked int64) error {
	return s.db.Save(&LockRow{AccountID: accountID, MarketID: marketID, Locked: locked}).Error
}

// SaveCustody implements ledger.Persister.
func (s *Store) SaveCustody(marketID string, custody int64) error {
	return s.db.Save(&CustodyRow{MarketID: marketID, Custody: custody}).Error
}

// SaveDeposited implements ledger.Persister.
func (s *Store) SaveDeposited(total int64) error {
	return s.db.Save(&MetaRow{Key: metaDeposited, Value: total}).Error
}

// SaveOrder implements engine.Persister.
func (s *Store) SaveOrder(marketID string, o *domain.Order) error {
	return s.db.Save(orderRow(marketID, o, false, 0)).Error
}

// ArchiveOrder implements engine.Persister: the order is purged from
// memory but its terminal state is kept for history.
func (s *Store) ArchiveOrder(marketID string, o *domain.Order, pnl int64) error {
	return s.db.Save(orderRow(marketID, o, true, pnl)).Error
}

// SaveMarket implements engine.Persister.
func (s *Store) SaveMarket(st engine.MarketState) error {
	return s.db.Save(&MarketRow{
		MarketID:         st.ID,
		SubjectID:        st.SubjectID,
		PriceSourceID:    st.PriceSourceID,
		Expiry:           st.Expiry,
		EpochLengthNS:    int64(st.EpochLength),
		FeeBps:           st.FeeBps,
		Volume:           st.Volume,
		FeeCollected:     st.FeeCollected,
		ActiveOrderCount: st.ActiveOrderCount,
		NextOrderID:      st.NextOrderID,
	}).Error
}

// SavePoint implements oracle.Persister.
func (s *Store) SavePoint(p oracle.Point) error {
	return s.db.Save(&PointRow{
		SubjectID: p.SubjectID,
		Rank:      p.Rank,
		Score:     p.Score.String(),
		UpdatedAt: p.UpdatedAt,
	}).Error
}

// LoadBalances returns all persisted balances for ledger restore.
func (s *Store) LoadBalances() (free map[string]int64, locked map[string]map[string]int64, custody map[string]int64, deposited int64, err error) {
	var accounts []AccountRow
	if err = s.db.Find(&accounts).Error; err != nil {
		return nil, nil, nil, 0, err
	}
	free = make(map[string]int64, len(accounts))
	for _, a := range accounts {
		free[a.AccountID] = a.Free
	}

	var locks []LockRow
	if err = s.db.Find(&locks).Error; err != nil {
		return nil, nil, nil, 0, err
	}
	locked = make(map[string]map[string]int64)
	for _, l := range locks {
		if locked[l.AccountID] == nil {
			locked[l.AccountID] = make(map[string]int64)
		}
		locked[l.AccountID][l.MarketID] = l.Locked
	}

	var custodies []CustodyRow
	if err = s.db.Find(&custodies).Error; err != nil {
		return nil, nil, nil, 0, err
	}
	custody = make(map[string]int64, len(custodies))
	for _, c := range custodies {
		custody[c.MarketID] = c.Custody
	}

	var meta MetaRow
	res := s.db.First(&meta, "key = ?", metaDeposited)
	if res.Error != nil && !errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return nil, nil, nil, 0, res.Error
	}
	return free, locked, custody, meta.Value, nil
}

// LoadMarkets returns all persisted market states for factory restore.
func (s *Store) LoadMarkets() ([]engine.MarketState, error) {
	var rows []MarketRow
	if err := s.db.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]engine.MarketState, 0, len(rows))
	for _, r := range rows {
		out = append(out, engine.MarketState{
			ID:               r.MarketID,
			SubjectID:        r.SubjectID,
			PriceSourceID:    r.PriceSourceID,
			Expiry:           r.Expiry,
			EpochLength:      time.Duration(r.EpochLengthNS),
			FeeBps:           r.FeeBps,
			Volume:           r.Volume,
			FeeCollected:     r.FeeCollected,
			ActiveOrderCount: r.ActiveOrderCount,
			NextOrderID:      r.NextOrderID,
		})
	}
	return out, nil
}

// LoadOpenOrders returns a market's non-archived orders for restore.
// Fill history is not reconstructed; only matching-relevant state is.
func (s *Store) LoadOpenOrders(marketID string) ([]*domain.Order, error) {
	var rows []OrderRow
	if err := s.db.Where("market_id = ? AND closed = ?", marketID, false).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*domain.Order, 0, len(rows))
	for _, r := range rows {
		price, err := decimal.NewFromString(r.ReferencePrice)
		if err != nil {
			return nil, fmt.Errorf("corrupt reference price for order %d: %w", r.OrderID, err)
		}
		out = append(out, &domain.Order{
			ID:             r.OrderID,
			Trader:         r.Trader,
			SubjectID:      r.SubjectID,
			Side:           domain.Side(r.Side),
			ReferencePrice: price,
			Quantity:       r.Quantity,
			FilledQuantity: r.FilledQuantity,
			CreatedAt:      r.CreatedAt,
			Status:         domain.OrderStatus(r.Status),
		})
	}
	return out, nil
}

// LoadPoints returns all persisted oracle readings for restore.
func (s *Store) LoadPoints() ([]oracle.Point, error) {
	var rows []PointRow
	if err := s.db.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]oracle.Point, 0, len(rows))
	for _, r := range rows {
		score, err := decimal.NewFromString(r.Score)
		if err != nil {
			return nil, fmt.Errorf("corrupt score for subject %d: %w", r.SubjectID, err)
		}
		out = append(out, oracle.Point{
			SubjectID: r.SubjectID,
			Rank:      r.Rank,
			Score:     score,
			UpdatedAt: r.UpdatedAt,
		})
	}
	return out, nil
}

func orderRow(marketID string, o *domain.Order, closed bool, pnl int64) *OrderRow {
	return &OrderRow{
		MarketID:       marketID,
		OrderID:        o.ID,
		Trader:         o.Trader,
		SubjectID:      o.SubjectID,
		Side:           string(o.Side),
		ReferencePrice: o.ReferencePrice.String(),
		Quantity:       o.Quantity,
		FilledQuantity: o.FilledQuantity,
		Status:         string(o.Status),
		CreatedAt:      o.CreatedAt,
		Closed:         closed,
		PnL:            pnl,
	}
}
