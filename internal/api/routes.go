package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nqzz6767/Blockchain-Price-Tracker/internal/storage"
)

type priceJSON struct {
	ID        int64   `json:"id"`
	Chain     string  `json:"chain"`
	Price     float64 `json:"price"`
	Timestamp string  `json:"timestamp"`
}

type alertJSON struct {
	ID        int64   `json:"id"`
	Chain     string  `json:"chain"`
	Threshold float64 `json:"threshold"`
	Email     string  `json:"email"`
}

type createAlertRequest struct {
	Chain     string  `json:"chain"`
	Threshold float64 `json:"threshold"`
	Email     string  `json:"email"`
}

// handleListPrices returns all records of the last 24 hours, newest first.
func (s *Server) handleListPrices(w http.ResponseWriter, r *http.Request) {
	since := s.now().UTC().Add(-24 * time.Hour)

	records, err := s.prices.ListPricesSince(r.Context(), since)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list prices")
		writeError(w, http.StatusInternalServerError, "failed to fetch prices")
		return
	}

	out := make([]priceJSON, len(records))
	for i, rec := range records {
		out[i] = priceJSON{
			ID:        rec.ID,
			Chain:     rec.Chain,
			Price:     rec.Price.InexactFloat64(),
			Timestamp: rec.Timestamp.UTC().Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// handleCreateAlert registers a threshold alert rule.
func (s *Server) handleCreateAlert(w http.ResponseWriter, r *http.Request) {
	var req createAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rule, err := s.alerts.CreateAlert(r.Context(), req.Chain, decimal.NewFromFloat(req.Threshold), req.Email)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidAlert) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error().Err(err).Msg("failed to create alert")
		writeError(w, http.StatusInternalServerError, "failed to create alert")
		return
	}

	writeJSON(w, http.StatusCreated, alertJSON{
		ID:        rule.ID,
		Chain:     rule.Chain,
		Threshold: rule.Threshold.InexactFloat64(),
		Email:     rule.Email,
	})
}
