package http

import (
	"errors"
	"net/http"

	"proptrack/internal/auth"
	"proptrack/internal/core"
	"proptrack/internal/storage"
)

type categoryRequest struct {
	Name string `json:"name"`
}

type categoryItem struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	ExpenseCount int    `json:"expenseCount,omitempty"`
}

// ownedProperty resolves the propertyID route parameter and checks the
// property belongs to the authenticated user.
func (s *Server) ownedProperty(w http.ResponseWriter, r *http.Request) (core.Property, bool) {
	userID := auth.UserIDFromContext(r.Context())
	propertyID, err := urlID(r, "propertyID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid property id")
		return core.Property{}, false
	}

	property, err := s.repo.GetProperty(r.Context(), userID, propertyID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "not found")
		} else {
			respondStorageError(w, err)
		}
		return core.Property{}, false
	}
	return property, true
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	property, ok := s.ownedProperty(w, r)
	if !ok {
		return
	}

	categories, err := s.repo.ListCategories(r.Context(), property.ID)
	if err != nil {
		respondStorageError(w, err)
		return
	}

	items := make([]categoryItem, 0, len(categories))
	for _, c := range categories {
		items = append(items, categoryItem{
			ID:           c.ID,
			Name:         c.Name,
			ExpenseCount: c.ExpenseCount,
		})
	}
	respondJSON(w, http.StatusOK, items)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	property, ok := s.ownedProperty(w, r)
	if !ok {
		return
	}

	var req categoryRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	category := core.Category{Name: req.Name, PropertyID: property.ID}
	if err := category.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := s.repo.CreateCategory(r.Context(), category)
	if err != nil {
		respondStorageError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, categoryItem{ID: created.ID, Name: created.Name})
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	property, ok := s.ownedProperty(w, r)
	if !ok {
		return
	}
	categoryID, err := urlID(r, "categoryID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid category id")
		return
	}

	var req categoryRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	category := core.Category{ID: categoryID, Name: req.Name, PropertyID: property.ID}
	if err := category.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := s.repo.UpdateCategory(r.Context(), category)
	if err != nil {
		respondStorageError(w, err)
		return
	}

	s.invalidateReports(r.Context(), property.ID)
	respondJSON(w, http.StatusOK, categoryItem{ID: updated.ID, Name: updated.Name})
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	property, ok := s.ownedProperty(w, r)
	if !ok {
		return
	}
	categoryID, err := urlID(r, "categoryID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid category id")
		return
	}

	if err := s.repo.DeleteCategory(r.Context(), property.ID, categoryID); err != nil {
		respondStorageError(w, err)
		return
	}

	s.invalidateReports(r.Context(), property.ID)
	respondJSON(w, http.StatusNoContent, nil)
}
