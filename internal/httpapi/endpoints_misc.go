package httpapi

import (
	"net/http"

	"github.com/agnt-gg/slop-sub000/api"
	"github.com/agnt-gg/slop-sub000/internal/pay"
)

func toWireTransaction(tx pay.Transaction) api.Transaction {
	return api.Transaction{
		TransactionID: tx.ID,
		Amount:        tx.Amount,
		Currency:      tx.Currency,
		Description:   tx.Description,
		PaymentMethod: tx.PaymentMethod,
		Status:        tx.Status,
		ReceiptURL:    tx.ReceiptURL,
		CreatedAt:     tx.CreatedAt,
	}
}

func (h *Handler) handlePayCharge(w http.ResponseWriter, r *http.Request) error {
	var req api.PayRequest
	if err := h.decodeRequest(r, &req); err != nil {
		return err
	}
	if req.Amount <= 0 {
		return errInvalidRequest("amount must be positive")
	}
	tx := h.ledger.Charge(pay.Request{
		Amount:        req.Amount,
		Currency:      req.Currency,
		Description:   req.Description,
		PaymentMethod: req.PaymentMethod,
	})
	h.writeJSON(w, http.StatusOK, toWireTransaction(tx), nil)
	return nil
}

func (h *Handler) handlePayGet(w http.ResponseWriter, r *http.Request) error {
	id := param(r, "id")
	tx, ok := h.ledger.Get(id)
	if !ok {
		return errNotFound("transaction " + id + " does not exist")
	}
	h.writeJSON(w, http.StatusOK, toWireTransaction(tx), nil)
	return nil
}

func (h *Handler) handlePayList(w http.ResponseWriter, _ *http.Request) error {
	entries := h.ledger.List()
	out := make([]api.Transaction, len(entries))
	for i, tx := range entries {
		out[i] = toWireTransaction(tx)
	}
	h.writeJSON(w, http.StatusOK, api.TransactionListResponse{Transactions: out}, nil)
	return nil
}

func (h *Handler) handleModels(w http.ResponseWriter, _ *http.Request) error {
	models := make([]string, 0, len(h.models))
	models = append(models, h.models...)
	h.writeJSON(w, http.StatusOK, api.ModelsResponse{Models: models}, nil)
	return nil
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) error {
	h.writeJSON(w, http.StatusOK, api.StatusResponse{Status: "ok"}, nil)
	return nil
}

func (h *Handler) handleReady(w http.ResponseWriter, _ *http.Request) error {
	h.writeJSON(w, http.StatusOK, api.StatusResponse{Status: "ready"}, nil)
	return nil
}
