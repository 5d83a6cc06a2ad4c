package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"proptrack/internal/auth"
	"proptrack/internal/core"
	"proptrack/internal/report"
	"proptrack/internal/storage"
)

// reportCachePrefix groups every cached report of a property under one
// key prefix so a single write invalidates them all.
func reportCachePrefix(propertyID int64) string {
	return fmt.Sprintf("report:p%d:", propertyID)
}

func (s *Server) invalidateReports(ctx context.Context, propertyID int64) {
	if s.reportCache == nil {
		return
	}
	s.reportCache.DeletePrefix(ctx, reportCachePrefix(propertyID))
}

// windowKeySegment renders a bound at full precision. Display labels are
// date-only, so two different windows over the same day would collide on
// them; unix seconds keep the cache keyed on the exact window.
func windowKeySegment(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return strconv.FormatInt(t.Unix(), 10)
}

// cachedReport serves a report from cache or builds and caches it. The
// build closure runs only on a miss.
func (s *Server) cachedReport(ctx context.Context, key string, build func() (any, error)) ([]byte, error) {
	if s.reportCache != nil {
		if data, ok := s.reportCache.Get(ctx, key); ok {
			return data, nil
		}
	}

	result, err := build()
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}

	if s.reportCache != nil {
		s.reportCache.Set(ctx, key, data)
	}
	return data, nil
}

// reportInputs loads the aggregator's inputs for an already
// ownership-checked property.
func (s *Server) reportInputs(ctx context.Context, propertyID int64) ([]core.Expense, []core.Debtor, error) {
	expenses, err := s.repo.ListExpenses(ctx, propertyID, storage.ExpenseFilter{Ascending: true})
	if err != nil {
		return nil, nil, err
	}

	debtors, err := s.repo.ListDebtors(ctx, propertyID)
	if err != nil {
		return nil, nil, err
	}

	return expenses, debtors, nil
}

func (s *Server) handlePropertyReport(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	propertyID, err := urlID(r, "propertyID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid property id")
		return
	}

	// Ownership is checked before the cache so a foreign property can
	// never be served from a cached entry.
	property, err := s.repo.GetProperty(r.Context(), userID, propertyID)
	if err != nil {
		respondStorageError(w, err)
		return
	}

	q := r.URL.Query()
	window, err := report.ResolveWindow(q.Get("startDate"), q.Get("endDate"))
	if err != nil {
		if errors.Is(err, report.ErrInvalidDate) || errors.Is(err, report.ErrInvalidWindow) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	key := reportCachePrefix(propertyID) + windowKeySegment(window.Start) + ":" + windowKeySegment(window.End)

	data, err := s.cachedReport(r.Context(), key, func() (any, error) {
		expenses, debtors, err := s.reportInputs(r.Context(), propertyID)
		if err != nil {
			return nil, err
		}
		return report.Build(property, expenses, debtors, window)
	})
	if err != nil {
		respondStorageError(w, err)
		return
	}

	writeRawJSON(w, data)
}

func (s *Server) handleYearlyReport(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	propertyID, err := urlID(r, "propertyID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid property id")
		return
	}
	year64, err := urlID(r, "year")
	if err != nil || year64 < 1970 || year64 > 9999 {
		respondError(w, http.StatusBadRequest, "invalid year")
		return
	}
	year := int(year64)

	property, err := s.repo.GetProperty(r.Context(), userID, propertyID)
	if err != nil {
		respondStorageError(w, err)
		return
	}

	key := fmt.Sprintf("%syear:%d", reportCachePrefix(propertyID), year)

	data, err := s.cachedReport(r.Context(), key, func() (any, error) {
		expenses, debtors, err := s.reportInputs(r.Context(), propertyID)
		if err != nil {
			return nil, err
		}
		return report.BuildYearly(property, expenses, debtors, year)
	})
	if err != nil {
		respondStorageError(w, err)
		return
	}

	writeRawJSON(w, data)
}

func writeRawJSON(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}
