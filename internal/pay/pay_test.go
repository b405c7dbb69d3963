package pay_test

import (
	"strings"
	"testing"
	"time"

	"github.com/agnt-gg/slop-sub000/internal/clock"
	"github.com/agnt-gg/slop-sub000/internal/pay"
)

func newLedger() (*pay.Ledger, *clock.Manual) {
	clk := clock.NewManual(time.Unix(1_700_000_000, 0))
	return pay.New(clk, nil), clk
}

func TestChargeAlwaysSucceeds(t *testing.T) {
	t.Parallel()

	ledger, _ := newLedger()
	tx := ledger.Charge(pay.Request{Amount: 19.99, Currency: "EUR", Description: "plan upgrade", PaymentMethod: "card_visa"})
	if tx.Status != "success" {
		t.Fatalf("mock processor should always succeed, got %q", tx.Status)
	}
	if tx.ID == "" {
		t.Fatal("transaction missing generated id")
	}
	if !strings.Contains(tx.ReceiptURL, tx.ID) {
		t.Fatalf("receipt url %q does not reference the transaction", tx.ReceiptURL)
	}
	if tx.Amount != 19.99 || tx.Currency != "EUR" || tx.PaymentMethod != "card_visa" {
		t.Fatalf("unexpected transaction: %+v", tx)
	}

	got, ok := ledger.Get(tx.ID)
	if !ok || got.ID != tx.ID {
		t.Fatalf("recorded transaction not retrievable: ok=%v %+v", ok, got)
	}
	if _, ok := ledger.Get("missing"); ok {
		t.Fatal("unknown id should not resolve")
	}
}

func TestChargeDefaultsCurrency(t *testing.T) {
	t.Parallel()

	ledger, _ := newLedger()
	tx := ledger.Charge(pay.Request{Amount: 1})
	if tx.Currency != "USD" {
		t.Fatalf("expected USD default, got %q", tx.Currency)
	}
}

func TestListNewestFirst(t *testing.T) {
	t.Parallel()

	ledger, clk := newLedger()
	first := ledger.Charge(pay.Request{Amount: 1})
	clk.Advance(time.Minute)
	second := ledger.Charge(pay.Request{Amount: 2})

	got := ledger.List()
	if len(got) != 2 || got[0].ID != second.ID || got[1].ID != first.ID {
		t.Fatalf("unexpected order: %+v", got)
	}
	if ledger.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", ledger.Len())
	}
}

func TestLedgerEntriesImmutable(t *testing.T) {
	t.Parallel()

	ledger, _ := newLedger()
	tx := ledger.Charge(pay.Request{Amount: 5})
	tx.Amount = 500

	fresh, _ := ledger.Get(tx.ID)
	if fresh.Amount != 5 {
		t.Fatal("mutating a returned transaction leaked into the ledger")
	}
}
