package http

import (
	"net/http"

	"proptrack/internal/auth"
	"proptrack/internal/core"
	"proptrack/internal/storage"
)

type propertyRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type propertyItem struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	ExpenseCount  int    `json:"expenseCount"`
	CategoryCount int    `json:"categoryCount"`
	DebtorCount   int    `json:"debtorCount"`
}

type propertyDetail struct {
	ID           int64          `json:"id"`
	Name         string         `json:"name"`
	Description  string         `json:"description,omitempty"`
	Categories   []categoryItem `json:"categories"`
	Debtors      []debtorItem   `json:"debtors"`
	ExpenseCount int            `json:"expenseCount"`
}

func (s *Server) handleListProperties(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	properties, err := s.repo.ListProperties(r.Context(), userID)
	if err != nil {
		respondStorageError(w, err)
		return
	}

	items := make([]propertyItem, 0, len(properties))
	for _, p := range properties {
		items = append(items, propertyItem{
			ID:            p.ID,
			Name:          p.Name,
			Description:   p.Description,
			ExpenseCount:  p.ExpenseCount,
			CategoryCount: p.CategoryCount,
			DebtorCount:   p.DebtorCount,
		})
	}
	respondJSON(w, http.StatusOK, items)
}

func (s *Server) handleGetProperty(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	propertyID, err := urlID(r, "propertyID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid property id")
		return
	}

	detail, err := s.repo.GetPropertyDetail(r.Context(), userID, propertyID)
	if err != nil {
		respondStorageError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, toPropertyDetail(detail))
}

func toPropertyDetail(d storage.PropertyDetail) propertyDetail {
	categories := make([]categoryItem, 0, len(d.Categories))
	for _, c := range d.Categories {
		categories = append(categories, categoryItem{ID: c.ID, Name: c.Name})
	}
	debtors := make([]debtorItem, 0, len(d.Debtors))
	for _, db := range d.Debtors {
		debtors = append(debtors, toDebtorItem(db))
	}
	return propertyDetail{
		ID:           d.ID,
		Name:         d.Name,
		Description:  d.Description,
		Categories:   categories,
		Debtors:      debtors,
		ExpenseCount: d.ExpenseCount,
	}
}

func (s *Server) handleCreateProperty(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	var req propertyRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	property := core.Property{
		Name:        req.Name,
		Description: req.Description,
		UserID:      userID,
	}
	if err := property.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := s.repo.CreateProperty(r.Context(), property)
	if err != nil {
		respondStorageError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, propertyItem{
		ID:          created.ID,
		Name:        created.Name,
		Description: created.Description,
	})
}

func (s *Server) handleUpdateProperty(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	propertyID, err := urlID(r, "propertyID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid property id")
		return
	}

	var req propertyRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	property := core.Property{
		ID:          propertyID,
		Name:        req.Name,
		Description: req.Description,
		UserID:      userID,
	}
	if err := property.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := s.repo.UpdateProperty(r.Context(), property)
	if err != nil {
		respondStorageError(w, err)
		return
	}

	// Cached reports carry the property name.
	s.invalidateReports(r.Context(), propertyID)
	respondJSON(w, http.StatusOK, propertyItem{
		ID:          updated.ID,
		Name:        updated.Name,
		Description: updated.Description,
	})
}

func (s *Server) handleDeleteProperty(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	propertyID, err := urlID(r, "propertyID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid property id")
		return
	}

	if err := s.repo.DeleteProperty(r.Context(), userID, propertyID); err != nil {
		respondStorageError(w, err)
		return
	}

	s.invalidateReports(r.Context(), propertyID)
	respondJSON(w, http.StatusNoContent, nil)
}
