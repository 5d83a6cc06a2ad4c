package http

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"proptrack/internal/auth"
	"proptrack/internal/core"
)

type paymentRequest struct {
	Amount json.Number `json:"amount"`
	Date   string      `json:"date"`
	Notes  string      `json:"notes"`
}

type paymentItem struct {
	ID     int64   `json:"id"`
	Amount float64 `json:"amount"`
	Date   string  `json:"date"`
	Notes  string  `json:"notes,omitempty"`
}

func toPaymentItem(p core.Payment) paymentItem {
	return paymentItem{
		ID:     p.ID,
		Amount: p.Amount.Float(),
		Date:   p.Date.Format("2006-01-02"),
		Notes:  p.Notes,
	}
}

func (s *Server) parsePayment(w http.ResponseWriter, r *http.Request, debtorID int64) (core.Payment, bool) {
	var req paymentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return core.Payment{}, false
	}

	cents, err := core.ParseDecimalToCents(req.Amount.String())
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid amount")
		return core.Payment{}, false
	}

	date, err := time.Parse("2006-01-02", strings.TrimSpace(req.Date))
	if err != nil {
		date, err = time.Parse(time.RFC3339, strings.TrimSpace(req.Date))
	}
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid date")
		return core.Payment{}, false
	}

	payment := core.Payment{
		Amount:   core.Money{Cents: cents},
		Date:     date,
		Notes:    strings.TrimSpace(req.Notes),
		DebtorID: debtorID,
	}
	if err := payment.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return core.Payment{}, false
	}
	return payment, true
}

func (s *Server) handleListPayments(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	debtorID, err := urlID(r, "debtorID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid debtor id")
		return
	}

	debtor, err := s.repo.GetDebtorForUser(r.Context(), userID, debtorID)
	if err != nil {
		respondStorageError(w, err)
		return
	}

	items := make([]paymentItem, 0, len(debtor.Payments))
	for _, p := range debtor.Payments {
		items = append(items, toPaymentItem(p))
	}
	respondJSON(w, http.StatusOK, items)
}

func (s *Server) handleCreatePayment(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	debtorID, err := urlID(r, "debtorID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid debtor id")
		return
	}

	debtor, err := s.repo.GetDebtorForUser(r.Context(), userID, debtorID)
	if err != nil {
		respondStorageError(w, err)
		return
	}

	payment, ok := s.parsePayment(w, r, debtor.ID)
	if !ok {
		return
	}

	created, err := s.repo.CreatePayment(r.Context(), payment)
	if err != nil {
		respondStorageError(w, err)
		return
	}

	s.invalidateReports(r.Context(), debtor.PropertyID)
	respondJSON(w, http.StatusCreated, toPaymentItem(created))
}

func (s *Server) handleUpdatePayment(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	paymentID, err := urlID(r, "paymentID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid payment id")
		return
	}

	existing, err := s.repo.GetPaymentForUser(r.Context(), userID, paymentID)
	if err != nil {
		respondStorageError(w, err)
		return
	}

	payment, ok := s.parsePayment(w, r, existing.DebtorID)
	if !ok {
		return
	}
	payment.ID = paymentID

	updated, err := s.repo.UpdatePayment(r.Context(), payment)
	if err != nil {
		respondStorageError(w, err)
		return
	}

	debtor, err := s.repo.GetDebtorForUser(r.Context(), userID, existing.DebtorID)
	if err == nil {
		s.invalidateReports(r.Context(), debtor.PropertyID)
	}
	respondJSON(w, http.StatusOK, toPaymentItem(updated))
}

func (s *Server) handleDeletePayment(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	paymentID, err := urlID(r, "paymentID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid payment id")
		return
	}

	existing, err := s.repo.GetPaymentForUser(r.Context(), userID, paymentID)
	if err != nil {
		respondStorageError(w, err)
		return
	}

	if err := s.repo.DeletePayment(r.Context(), userID, paymentID); err != nil {
		respondStorageError(w, err)
		return
	}

	debtor, err := s.repo.GetDebtorForUser(r.Context(), userID, existing.DebtorID)
	if err == nil {
		s.invalidateReports(r.Context(), debtor.PropertyID)
	}
	respondJSON(w, http.StatusNoContent, nil)
}
