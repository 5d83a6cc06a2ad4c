package http

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"proptrack/internal/core"
	"proptrack/internal/report"
	"proptrack/internal/storage"
	"proptrack/internal/uploads"
)

type expenseItem struct {
	ID          int64   `json:"id"`
	Date        string  `json:"date"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description,omitempty"`
	CategoryID  int64   `json:"categoryId"`
	Category    string  `json:"category"`
	ReceiptURL  string  `json:"receiptUrl,omitempty"`
}

func toExpenseItem(e core.Expense) expenseItem {
	item := expenseItem{
		ID:          e.ID,
		Date:        e.Date.Format("2006-01-02"),
		Amount:      e.Amount.Float(),
		Description: e.Description,
		CategoryID:  e.CategoryID,
		Category:    e.CategoryName,
	}
	if e.ReceiptPath != "" {
		item.ReceiptURL = "/uploads/" + e.ReceiptPath
	}
	return item
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	property, ok := s.ownedProperty(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	window, err := report.ResolveWindow(q.Get("startDate"), q.Get("endDate"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	filter := storage.ExpenseFilter{Start: window.Start, End: window.End}
	if raw := q.Get("categoryId"); raw != "" {
		categoryID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || categoryID <= 0 {
			respondError(w, http.StatusBadRequest, "invalid category id")
			return
		}
		filter.CategoryID = categoryID
	}

	expenses, err := s.repo.ListExpenses(r.Context(), property.ID, filter)
	if err != nil {
		respondStorageError(w, err)
		return
	}

	items := make([]expenseItem, 0, len(expenses))
	for _, e := range expenses {
		items = append(items, toExpenseItem(e))
	}
	respondJSON(w, http.StatusOK, items)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	property, ok := s.ownedProperty(w, r)
	if !ok {
		return
	}
	expenseID, err := urlID(r, "expenseID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid expense id")
		return
	}

	expense, err := s.repo.GetExpense(r.Context(), property.ID, expenseID)
	if err != nil {
		respondStorageError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, toExpenseItem(expense))
}

// expenseInput is the parsed create/update payload, shared between the
// JSON and multipart forms of the endpoint.
type expenseInput struct {
	date        time.Time
	amountCents int64
	description string
	categoryID  int64
	receiptName string // set when a file was uploaded
}

func (s *Server) parseExpenseInput(w http.ResponseWriter, r *http.Request) (expenseInput, bool) {
	var in expenseInput

	contentType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if contentType == "multipart/form-data" {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadSize+1<<20)
		if err := r.ParseMultipartForm(s.maxUploadSize); err != nil {
			respondError(w, http.StatusBadRequest, "invalid multipart form")
			return in, false
		}

		var ok bool
		in, ok = s.parseExpenseFields(w,
			r.FormValue("date"),
			r.FormValue("amount"),
			r.FormValue("description"),
			r.FormValue("categoryId"))
		if !ok {
			return in, false
		}

		file, header, err := r.FormFile("receipt")
		if err == nil {
			defer file.Close()
			if s.receipts == nil {
				respondError(w, http.StatusInternalServerError, "receipt storage not configured")
				return in, false
			}
			name, err := s.receipts.Save(file, header.Filename)
			if err != nil {
				switch {
				case errors.Is(err, uploads.ErrUnsupportedType):
					respondError(w, http.StatusBadRequest, err.Error())
				case errors.Is(err, uploads.ErrTooLarge):
					respondError(w, http.StatusRequestEntityTooLarge, err.Error())
				default:
					respondError(w, http.StatusInternalServerError, "failed to store receipt")
				}
				return in, false
			}
			in.receiptName = name
		}
		return in, true
	}

	var req struct {
		Date        string      `json:"date"`
		Amount      json.Number `json:"amount"`
		Description string      `json:"description"`
		CategoryID  int64       `json:"categoryId"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return in, false
	}
	return s.parseExpenseFields(w, req.Date, req.Amount.String(), req.Description,
		strconv.FormatInt(req.CategoryID, 10))
}

func (s *Server) parseExpenseFields(w http.ResponseWriter, date, amount, description, categoryID string) (expenseInput, bool) {
	var in expenseInput

	parsed, err := time.Parse("2006-01-02", strings.TrimSpace(date))
	if err != nil {
		parsed, err = time.Parse(time.RFC3339, strings.TrimSpace(date))
	}
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid date")
		return in, false
	}
	in.date = parsed

	cents, err := core.ParseDecimalToCents(amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid amount")
		return in, false
	}
	in.amountCents = cents

	in.description = strings.TrimSpace(description)

	id, err := strconv.ParseInt(strings.TrimSpace(categoryID), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid category id")
		return in, false
	}
	in.categoryID = id

	return in, true
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	property, ok := s.ownedProperty(w, r)
	if !ok {
		return
	}

	in, ok := s.parseExpenseInput(w, r)
	if !ok {
		return
	}

	// Category must belong to this property.
	if _, err := s.repo.GetCategory(r.Context(), property.ID, in.categoryID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusBadRequest, "invalid category")
		} else {
			respondStorageError(w, err)
		}
		s.discardReceipt(in.receiptName)
		return
	}

	expense := core.Expense{
		Date:        in.date,
		Amount:      core.Money{Cents: in.amountCents},
		Description: in.description,
		CategoryID:  in.categoryID,
		PropertyID:  property.ID,
		ReceiptPath: in.receiptName,
	}

	created, err := s.expenses.CreateExpense(r.Context(), expense)
	if err != nil {
		s.discardReceipt(in.receiptName)
		if isValidationError(err) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondStorageError(w, err)
		return
	}

	s.invalidateReports(r.Context(), property.ID)
	respondJSON(w, http.StatusCreated, toExpenseItem(created))
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	property, ok := s.ownedProperty(w, r)
	if !ok {
		return
	}
	expenseID, err := urlID(r, "expenseID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid expense id")
		return
	}

	existing, err := s.repo.GetExpense(r.Context(), property.ID, expenseID)
	if err != nil {
		respondStorageError(w, err)
		return
	}

	in, ok := s.parseExpenseInput(w, r)
	if !ok {
		return
	}

	if _, err := s.repo.GetCategory(r.Context(), property.ID, in.categoryID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusBadRequest, "invalid category")
		} else {
			respondStorageError(w, err)
		}
		s.discardReceipt(in.receiptName)
		return
	}

	receiptPath := existing.ReceiptPath
	if in.receiptName != "" {
		receiptPath = in.receiptName
	}

	expense := core.Expense{
		ID:          expenseID,
		Date:        in.date,
		Amount:      core.Money{Cents: in.amountCents},
		Description: in.description,
		CategoryID:  in.categoryID,
		PropertyID:  property.ID,
		ReceiptPath: receiptPath,
	}

	updated, err := s.expenses.UpdateExpense(r.Context(), expense)
	if err != nil {
		s.discardReceipt(in.receiptName)
		if isValidationError(err) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondStorageError(w, err)
		return
	}

	s.invalidateReports(r.Context(), property.ID)
	respondJSON(w, http.StatusOK, toExpenseItem(updated))
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	property, ok := s.ownedProperty(w, r)
	if !ok {
		return
	}
	expenseID, err := urlID(r, "expenseID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid expense id")
		return
	}

	if err := s.expenses.DeleteExpense(r.Context(), property.ID, expenseID); err != nil {
		respondStorageError(w, err)
		return
	}

	s.invalidateReports(r.Context(), property.ID)
	respondJSON(w, http.StatusNoContent, nil)
}

// discardReceipt removes a just-uploaded file after a failed write so no
// orphan files accumulate.
func (s *Server) discardReceipt(name string) {
	if name == "" {
		return
	}
	_ = s.receipts.Remove(name)
}

func isValidationError(err error) bool {
	return errors.Is(err, core.ErrInvalidDate) ||
		errors.Is(err, core.ErrInvalidAmount) ||
		errors.Is(err, core.ErrEmptyName) ||
		errors.Is(err, core.ErrMissingCategory) ||
		errors.Is(err, core.ErrDescriptionSize) ||
		errors.Is(err, core.ErrNameSize)
}
