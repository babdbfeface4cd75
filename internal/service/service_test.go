package service

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kolfi-labs/mindmarket/internal/domain"
	"github.com/kolfi-labs/mindmarket/internal/engine"
	"github.com/kolfi-labs/mindmarket/internal/ledger"
	"github.com/kolfi-labs/mindmarket/internal/oracle"
	"github.com/kolfi-labs/mindmarket/internal/store"
)

// testEnv wires the full service stack over in-memory state.
type testEnv struct {
	book     *ledger.Ledger
	prices   *oracle.Oracle
	factory  *engine.MarketFactory
	accounts *AccountService
	orders   *OrderService
	markets  *MarketService
	oracles  *OracleService
	webhooks *WebhookService
}

func newTestEnv() *testEnv {
	book := ledger.New(nil)
	subjects := domain.NewSubjectRegistry()
	prices := oracle.New(time.Hour, subjects, nil, nil)
	factory := engine.NewMarketFactory(
		7*24*time.Hour,
		100,
		decimal.NewFromInt(100),
		subjects,
		prices,
		book,
		book,
		nil,
		nil,
	)
	return &testEnv{
		book:     book,
		prices:   prices,
		factory:  factory,
		accounts: NewAccountService(book),
		orders:   NewOrderService(factory),
		markets:  NewMarketService(factory, book, "treasury"),
		oracles:  NewOracleService(prices),
		webhooks: NewWebhookService(store.NewWebhookStore(), book, time.Second),
	}
}

// setScore publishes a fresh oracle reading for a subject.
func (e *testEnv) setScore(t *testing.T, subjectID uint64, score string) {
	t.Helper()
	err := e.oracles.Update([]PriceUpdate{{
		SubjectID: subjectID,
		Rank:      1,
		Score:     decimal.RequireFromString(score),
	}})
	if err != nil {
		t.Fatalf("oracle update failed: %v", err)
	}
}

// openMarket creates a market for a subject expiring one hour out.
func (e *testEnv) openMarket(t *testing.T, subjectID uint64) {
	t.Helper()
	if _, err := e.markets.Create(subjectID, subjectID, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("create market failed: %v", err)
	}
}

func TestAccountDeposit(t *testing.T) {
	e := newTestEnv()

	view, err := e.accounts.Deposit("alice", decimal.RequireFromString("10.50"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.AccountID != "alice" {
		t.Errorf("expected account alice, got %s", view.AccountID)
	}
	if !view.Free.Equal(decimal.RequireFromString("10.5")) {
		t.Errorf("expected free 10.5, got %s", view.Free)
	}
	if e.book.Balance("alice") != 1050 {
		t.Errorf("expected 1050 units in ledger, got %d", e.book.Balance("alice"))
	}
}

func TestAccountDeposit_Validation(t *testing.T) {
	e := newTestEnv()

	if _, err := e.accounts.Deposit("", decimal.NewFromInt(10)); err == nil {
		t.Error("expected error for empty account id")
	}
	if _, err := e.accounts.Deposit("alice", decimal.RequireFromString("1.005")); err == nil {
		t.Error("expected error for >2 decimal places")
	}
	if _, err := e.accounts.Deposit("alice", decimal.Zero); err != domain.ErrInvalidAmount {
		t.Errorf("expected ErrInvalidAmount for zero, got %v", err)
	}
	if _, err := e.accounts.Deposit("alice", decimal.NewFromInt(-5)); err != domain.ErrInvalidAmount {
		t.Errorf("expected ErrInvalidAmount for negative, got %v", err)
	}
}

func TestAccountBalance(t *testing.T) {
	e := newTestEnv()

	if _, err := e.accounts.Balance("nobody"); err != domain.ErrAccountNotFound {
		t.Errorf("expected ErrAccountNotFound, got %v", err)
	}

	e.accounts.Deposit("alice", decimal.NewFromInt(100))
	e.setScore(t, 1, "50")
	e.openMarket(t, 1)

	// A resting order splits the balance into free and locked.
	_, err := e.orders.Create(CreateOrderRequest{SubjectID: 1, AccountID: "alice", Side: "long", Quantity: 3000})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}

	view, err := e.accounts.Balance("alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !view.Free.Equal(decimal.RequireFromString("70")) {
		t.Errorf("expected free 70, got %s", view.Free)
	}
	if len(view.Locked) != 1 {
		t.Fatalf("expected 1 lock, got %d", len(view.Locked))
	}
	if !view.Total.Equal(decimal.NewFromInt(100)) {
		t.Errorf("expected total 100, got %s", view.Total)
	}
}

func TestOrderCreate(t *testing.T) {
	e := newTestEnv()
	e.accounts.Deposit("alice", decimal.NewFromInt(100))
	e.setScore(t, 1, "50")
	e.openMarket(t, 1)

	order, err := e.orders.Create(CreateOrderRequest{SubjectID: 1, AccountID: "alice", Side: "long", Quantity: 500})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.ID != 1 {
		t.Errorf("expected order id 1, got %d", order.ID)
	}
	if !order.ReferencePrice.Equal(decimal.NewFromInt(50)) {
		t.Errorf("expected reference price 50, got %s", order.ReferencePrice)
	}
	if order.Status != domain.OrderStatusActive {
		t.Errorf("expected active, got %s", order.Status)
	}
}

func TestOrderCreate_Validation(t *testing.T) {
	e := newTestEnv()
	e.accounts.Deposit("alice", decimal.NewFromInt(100))
	e.setScore(t, 1, "50")
	e.openMarket(t, 1)

	if _, err := e.orders.Create(CreateOrderRequest{SubjectID: 1, Side: "long", Quantity: 10}); err == nil {
		t.Error("expected error for missing account id")
	}
	if _, err := e.orders.Create(CreateOrderRequest{SubjectID: 1, AccountID: "alice", Side: "buy", Quantity: 10}); err == nil {
		t.Error("expected error for invalid side")
	}
	if _, err := e.orders.Create(CreateOrderRequest{SubjectID: 9, AccountID: "alice", Side: "long", Quantity: 10}); err != domain.ErrMarketNotFound {
		t.Errorf("expected ErrMarketNotFound, got %v", err)
	}
}

func TestOrderCancelAndGet(t *testing.T) {
	e := newTestEnv()
	e.accounts.Deposit("alice", decimal.NewFromInt(100))
	e.setScore(t, 1, "50")
	e.openMarket(t, 1)

	order, _ := e.orders.Create(CreateOrderRequest{SubjectID: 1, AccountID: "alice", Side: "long", Quantity: 500})

	got, err := e.orders.Get(1, order.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != order.ID {
		t.Errorf("expected order %d, got %d", order.ID, got.ID)
	}

	if _, err := e.orders.Cancel(1, "", order.ID); err == nil {
		t.Error("expected error for empty caller")
	}
	canceled, err := e.orders.Cancel(1, "alice", order.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if canceled.Status != domain.OrderStatusCanceled {
		t.Errorf("expected canceled, got %s", canceled.Status)
	}
}

func TestMarketViews(t *testing.T) {
	e := newTestEnv()
	e.accounts.Deposit("alice", decimal.NewFromInt(100))
	e.accounts.Deposit("bob", decimal.NewFromInt(100))
	e.setScore(t, 1, "50")
	e.setScore(t, 2, "70")
	e.openMarket(t, 1)
	e.openMarket(t, 2)

	e.orders.Create(CreateOrderRequest{SubjectID: 1, AccountID: "alice", Side: "long", Quantity: 200})
	e.orders.Create(CreateOrderRequest{SubjectID: 1, AccountID: "bob", Side: "short", Quantity: 200})

	view, err := e.markets.Get(1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Volume != 200 {
		t.Errorf("expected volume 200, got %d", view.Volume)
	}
	// Matched collateral plus taker fee sits in custody: 402 units.
	if !view.Custody.Equal(decimal.RequireFromString("4.02")) {
		t.Errorf("expected custody 4.02, got %s", view.Custody)
	}

	list := e.markets.List()
	if len(list) != 2 {
		t.Fatalf("expected 2 markets, got %d", len(list))
	}
	if list[0].SubjectID != 1 || list[1].SubjectID != 2 {
		t.Errorf("expected subjects [1 2], got [%d %d]", list[0].SubjectID, list[1].SubjectID)
	}

	if _, err := e.markets.Get(9); err != domain.ErrMarketNotFound {
		t.Errorf("expected ErrMarketNotFound, got %v", err)
	}
}

func TestMarketDepth(t *testing.T) {
	e := newTestEnv()
	e.accounts.Deposit("alice", decimal.NewFromInt(100))
	e.setScore(t, 1, "50")
	e.openMarket(t, 1)

	e.orders.Create(CreateOrderRequest{SubjectID: 1, AccountID: "alice", Side: "long", Quantity: 300})

	depth, err := e.markets.Depth(1, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(depth.Longs) != 1 || depth.Longs[0].TotalQuantity != 300 {
		t.Errorf("unexpected long depth: %+v", depth.Longs)
	}
	if len(depth.Shorts) != 0 {
		t.Errorf("expected empty short depth, got %+v", depth.Shorts)
	}
}

func TestOracleService(t *testing.T) {
	e := newTestEnv()

	if _, ok := e.oracles.Price(1); ok {
		t.Error("expected no reading for unseen subject")
	}

	e.setScore(t, 1, "42.5")
	view, ok := e.oracles.Price(1)
	if !ok {
		t.Fatal("expected reading for subject 1")
	}
	if !view.Score.Equal(decimal.RequireFromString("42.5")) {
		t.Errorf("expected score 42.5, got %s", view.Score)
	}
	if view.Stale {
		t.Error("expected fresh reading")
	}

	// Malformed batches surface the oracle's sentinel.
	if err := e.oracles.Update(nil); err != domain.ErrEmptyInput {
		t.Errorf("expected ErrEmptyInput, got %v", err)
	}
}
