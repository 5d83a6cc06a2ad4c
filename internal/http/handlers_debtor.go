package http

import (
	"net/http"

	"proptrack/internal/core"
)

type debtorRequest struct {
	Name string `json:"name"`
}

type debtorItem struct {
	ID        int64         `json:"id"`
	Name      string        `json:"name"`
	TotalPaid float64       `json:"totalPaid"`
	Payments  []paymentItem `json:"payments"`
}

// toDebtorItem shapes a debtor with every payment and the all-time total.
// Listings are deliberately unwindowed; only reports filter payments.
func toDebtorItem(d core.Debtor) debtorItem {
	payments := make([]paymentItem, 0, len(d.Payments))
	for _, p := range d.Payments {
		payments = append(payments, toPaymentItem(p))
	}
	return debtorItem{
		ID:        d.ID,
		Name:      d.Name,
		TotalPaid: d.TotalPaid().Float(),
		Payments:  payments,
	}
}

func (s *Server) handleListDebtors(w http.ResponseWriter, r *http.Request) {
	property, ok := s.ownedProperty(w, r)
	if !ok {
		return
	}

	debtors, err := s.repo.ListDebtors(r.Context(), property.ID)
	if err != nil {
		respondStorageError(w, err)
		return
	}

	items := make([]debtorItem, 0, len(debtors))
	for _, d := range debtors {
		items = append(items, toDebtorItem(d))
	}
	respondJSON(w, http.StatusOK, items)
}

func (s *Server) handleCreateDebtor(w http.ResponseWriter, r *http.Request) {
	property, ok := s.ownedProperty(w, r)
	if !ok {
		return
	}

	var req debtorRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	debtor := core.Debtor{Name: req.Name, PropertyID: property.ID}
	if err := debtor.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := s.repo.CreateDebtor(r.Context(), debtor)
	if err != nil {
		respondStorageError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, toDebtorItem(created))
}

func (s *Server) handleUpdateDebtor(w http.ResponseWriter, r *http.Request) {
	property, ok := s.ownedProperty(w, r)
	if !ok {
		return
	}
	debtorID, err := urlID(r, "debtorID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid debtor id")
		return
	}

	var req debtorRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	debtor := core.Debtor{ID: debtorID, Name: req.Name, PropertyID: property.ID}
	if err := debtor.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := s.repo.UpdateDebtor(r.Context(), debtor)
	if err != nil {
		respondStorageError(w, err)
		return
	}

	// Cached reports carry debtor names in the balances.
	s.invalidateReports(r.Context(), property.ID)
	respondJSON(w, http.StatusOK, toDebtorItem(updated))
}

func (s *Server) handleDeleteDebtor(w http.ResponseWriter, r *http.Request) {
	property, ok := s.ownedProperty(w, r)
	if !ok {
		return
	}
	debtorID, err := urlID(r, "debtorID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid debtor id")
		return
	}

	if err := s.repo.DeleteDebtor(r.Context(), property.ID, debtorID); err != nil {
		respondStorageError(w, err)
		return
	}

	s.invalidateReports(r.Context(), property.ID)
	respondJSON(w, http.StatusNoContent, nil)
}
