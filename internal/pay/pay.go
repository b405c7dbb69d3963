// Package pay implements the payment ledger. Transactions are recorded
// against a mock processor that always succeeds; the ledger itself is
// append-only and immutable once written.
package pay

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/xid"
	"pkt.systems/pslog"

	"github.com/agnt-gg/slop-sub000/internal/clock"
	"github.com/agnt-gg/slop-sub000/internal/svcfields"
)

// Transaction is one ledger entry. Entries never change after creation.
type Transaction struct {
	ID            string    `json:"transaction_id"`
	Amount        float64   `json:"amount"`
	Currency      string    `json:"currency"`
	Description   string    `json:"description,omitempty"`
	PaymentMethod string    `json:"payment_method,omitempty"`
	Status        string    `json:"status"`
	ReceiptURL    string    `json:"receipt_url"`
	CreatedAt     time.Time `json:"created_at"`
}

// Request carries the caller-supplied fields of a charge.
type Request struct {
	Amount        float64
	Currency      string
	Description   string
	PaymentMethod string
}

// Ledger records transactions in memory.
type Ledger struct {
	mu      sync.Mutex
	entries map[string]Transaction
	clock   clock.Clock
	logger  pslog.Logger
}

// New returns an empty ledger.
func New(clk clock.Clock, logger pslog.Logger) *Ledger {
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = pslog.NoopLogger()
	}
	return &Ledger{
		entries: make(map[string]Transaction),
		clock:   clk,
		logger:  svcfields.WithSubsystem(logger, "pay"),
	}
}

// Charge records a transaction. The mock processor accepts every charge;
// the returned entry carries a generated id and receipt URL.
func (l *Ledger) Charge(req Request) Transaction {
	id := xid.New().String()
	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}
	tx := Transaction{
		ID:            id,
		Amount:        req.Amount,
		Currency:      currency,
		Description:   req.Description,
		PaymentMethod: req.PaymentMethod,
		Status:        "success",
		ReceiptURL:    fmt.Sprintf("https://receipts.example.com/%s", id),
		CreatedAt:     l.clock.Now(),
	}
	l.mu.Lock()
	l.entries[id] = tx
	l.mu.Unlock()
	l.logger.Debug("pay.charge", "transaction_id", id, "amount", req.Amount, "currency", currency)
	return tx
}

// Get returns the transaction with the given id.
func (l *Ledger) Get(id string) (Transaction, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	tx, ok := l.entries[id]
	return tx, ok
}

// List returns every transaction, newest first.
func (l *Ledger) List() []Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Transaction, 0, len(l.entries))
	for _, tx := range l.entries {
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Len reports the number of recorded transactions.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
