/*
handlers.go - HTTP API handlers for the car insurance service

ENDPOINTS:
  GET    /api/cars                            List cars with owner contact
  GET    /api/cars/{carId}/insurance-valid    Coverage check for a date
  POST   /api/cars/{carId}/claims             Register a claim
  GET    /api/cars/{carId}/history            Merged policy/claim timeline
  GET    /api/expirations/runs                Expiry scanner audit records

ERROR HANDLING:
  400: malformed carId/date, non-positive amount, oversized description
  404: unknown car
  500: store failures
Scanner failures never surface here; they only appear in logs and metrics.
*/
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/Calin1302/ProjectCarInsurance/insurance"
	"github.com/Calin1302/ProjectCarInsurance/store/sqlite"
)

// maxClaimDescriptionLength bounds the free-text claim description.
const maxClaimDescriptionLength = 500

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    *sqlite.Store
	Validity *insurance.ValidityChecker
	History  *insurance.HistoryAggregator
}

// NewHandler creates a handler over the given store.
func NewHandler(store *sqlite.Store) *Handler {
	return &Handler{
		Store:    store,
		Validity: insurance.NewValidityChecker(store, store),
		History:  insurance.NewHistoryAggregator(store, store, store),
	}
}

// ListCars returns all cars with embedded owner name and email.
func (h *Handler) ListCars(w http.ResponseWriter, r *http.Request) {
	cars, err := h.Store.ListCars(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list cars", err)
		return
	}

	dtos := make([]CarDTO, 0, len(cars))
	for _, c := range cars {
		dtos = append(dtos, toCarDTO(c))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// InsuranceValid answers whether the car is covered on the query date.
func (h *Handler) InsuranceValid(w http.ResponseWriter, r *http.Request) {
	carID, ok := parseCarID(w, r)
	if !ok {
		return
	}

	date, err := insurance.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format. Use YYYY-MM-DD.", err)
		return
	}

	valid, err := h.Validity.IsValid(r.Context(), carID, date)
	if err != nil {
		if insurance.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "Car not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to check insurance validity", err)
		return
	}

	writeJSON(w, http.StatusOK, InsuranceValidityDTO{
		CarID: carID,
		Date:  date.String(),
		Valid: valid,
	})
}

// RegisterClaim records a claim against a car.
func (h *Handler) RegisterClaim(w http.ResponseWriter, r *http.Request) {
	carID, ok := parseCarID(w, r)
	if !ok {
		return
	}

	var req CreateClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	claimDate, err := insurance.ParseDate(req.ClaimDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format. Use YYYY-MM-DD.", err)
		return
	}
	amount := decimal.NewFromFloat(req.Amount)
	if amount.Sign() <= 0 {
		writeError(w, http.StatusBadRequest, "Amount must be > 0.", insurance.ErrInvalidAmount)
		return
	}
	if len(req.Description) > maxClaimDescriptionLength {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("Description must be at most %d characters.", maxClaimDescriptionLength), nil)
		return
	}

	exists, err := h.Store.CarExists(r.Context(), carID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to check car", err)
		return
	}
	if !exists {
		writeError(w, http.StatusNotFound, "Car not found", nil)
		return
	}

	claim := insurance.Claim{
		CarID:       carID,
		ClaimDate:   claimDate,
		Description: req.Description,
		Amount:      amount,
	}
	claim.ID, err = h.Store.AppendClaim(r.Context(), claim)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to register claim", err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/cars/%d/history", carID))
	writeJSON(w, http.StatusCreated, toClaimDTO(claim))
}

// GetHistory returns the car's merged timeline.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	carID, ok := parseCarID(w, r)
	if !ok {
		return
	}

	events, err := h.History.History(r.Context(), carID)
	if err != nil {
		if insurance.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "Car not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to load history", err)
		return
	}

	dtos := make([]HistoryEventDTO, 0, len(events))
	for _, e := range events {
		dtos = append(dtos, toHistoryEventDTO(e))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListScanRuns returns the expiry scanner's audit records, most recent first.
func (h *Handler) ListScanRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.Store.ListScanRuns(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list scan runs", err)
		return
	}

	dtos := make([]ScanRunDTO, 0, len(runs))
	for _, run := range runs {
		dtos = append(dtos, toScanRunDTO(run))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// Health is a liveness probe.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// parseCarID extracts and validates the carId route parameter. On failure it
// writes a 400 response and returns ok=false.
func parseCarID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	carID, err := strconv.ParseInt(chi.URLParam(r, "carId"), 10, 64)
	if err != nil || carID <= 0 {
		writeError(w, http.StatusBadRequest, "CarId must be a positive integer.", err)
		return 0, false
	}
	return carID, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
