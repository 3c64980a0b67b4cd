/*
dto.go - Data Transfer Objects for API requests and responses

JSON fields are camelCase, matching the published contract
(carId/claimDate/...). DTOs are pure data carriers; validation happens in
handlers.
*/
package api

import (
	"time"

	"github.com/Calin1302/ProjectCarInsurance/insurance"
)

// CarDTO represents a car with its owner's contact fields.
type CarDTO struct {
	ID                int64  `json:"id"`
	VIN               string `json:"vin"`
	Make              string `json:"make"`
	Model             string `json:"model"`
	YearOfManufacture int    `json:"yearOfManufacture"`
	OwnerID           int64  `json:"ownerId"`
	OwnerName         string `json:"ownerName"`
	OwnerEmail        string `json:"ownerEmail"`
}

// InsuranceValidityDTO is the response of the insurance-valid query.
type InsuranceValidityDTO struct {
	CarID int64  `json:"carId"`
	Date  string `json:"date"`
	Valid bool   `json:"valid"`
}

// CreateClaimRequest is the request body to register a claim.
type CreateClaimRequest struct {
	ClaimDate   string  `json:"claimDate"`
	Description string  `json:"description,omitempty"`
	Amount      float64 `json:"amount"`
}

// ClaimDTO represents a registered claim.
type ClaimDTO struct {
	ID          int64   `json:"id"`
	CarID       int64   `json:"carId"`
	ClaimDate   string  `json:"claimDate"`
	Description string  `json:"description,omitempty"`
	Amount      float64 `json:"amount"`
}

// HistoryEventDTO is one entry of a car's timeline. Label is the provider
// name for policy events and omitted for claims.
type HistoryEventDTO struct {
	Kind        string `json:"kind"`
	Date        string `json:"date"`
	Label       string `json:"label,omitempty"`
	Description string `json:"description"`
}

// ScanRunDTO represents one audit record of the expiry scanner.
type ScanRunDTO struct {
	ID          string `json:"id"`
	ScannedFor  string `json:"scannedFor"`
	Found       int    `json:"found"`
	Recorded    int    `json:"recorded"`
	Status      string `json:"status"`
	Error       string `json:"error,omitempty"`
	StartedAt   string `json:"startedAt"`
	CompletedAt string `json:"completedAt"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toCarDTO(c insurance.CarWithOwner) CarDTO {
	return CarDTO{
		ID:                c.ID,
		VIN:               c.VIN,
		Make:              c.Make,
		Model:             c.Model,
		YearOfManufacture: c.YearOfManufacture,
		OwnerID:           c.OwnerID,
		OwnerName:         c.OwnerName,
		OwnerEmail:        c.OwnerEmail,
	}
}

func toClaimDTO(c insurance.Claim) ClaimDTO {
	amount, _ := c.Amount.Float64()
	return ClaimDTO{
		ID:          c.ID,
		CarID:       c.CarID,
		ClaimDate:   c.ClaimDate.String(),
		Description: c.Description,
		Amount:      amount,
	}
}

func toHistoryEventDTO(e insurance.HistoryEvent) HistoryEventDTO {
	return HistoryEventDTO{
		Kind:        string(e.Kind),
		Date:        e.Date.String(),
		Label:       e.Label,
		Description: e.Description,
	}
}

func toScanRunDTO(r insurance.ScanRun) ScanRunDTO {
	return ScanRunDTO{
		ID:          r.ID,
		ScannedFor:  r.ScannedFor.String(),
		Found:       r.Found,
		Recorded:    r.Recorded,
		Status:      r.Status,
		Error:       r.Error,
		StartedAt:   r.StartedAt.Format(time.RFC3339),
		CompletedAt: r.CompletedAt.Format(time.RFC3339),
	}
}
