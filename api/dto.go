/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON structures for API communication, decoupling the domain model from
  the external contract.

NAMING CONVENTION:
  - *DTO: response types returned to clients
  - *Request: request body types from clients

VALIDATION:
  Validation is done in handlers and the domain layer, not in DTOs. DTOs are
  pure data carriers.

SEE ALSO:
  - handlers.go: uses these types
*/
package api

import (
	"time"

	"github.com/warp/license-engine/catalog"
	"github.com/warp/license-engine/importer"
	"github.com/warp/license-engine/ledger"
	"github.com/warp/license-engine/pool"
	"github.com/warp/license-engine/report"
)

const dateLayout = "2006-01-02"

// =============================================================================
// CATALOG / DIRECTORY
// =============================================================================

type SoftwareDTO struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Vendor        string `json:"vendor"`
	LicenseType   string `json:"license_type"`
	Cost          string `json:"cost"`
	CostFrequency string `json:"cost_frequency"`
}

type EmployeeDTO struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	Department string `json:"department"`
	Status     string `json:"status"`
}

// =============================================================================
// POOLS
// =============================================================================

type PoolDTO struct {
	ID               string  `json:"id"`
	SoftwareID       string  `json:"software_id"`
	LicenseType      string  `json:"license_type"`
	TotalSeats       int     `json:"total_seats"`
	AssignedSeats    int     `json:"assigned_seats"`
	AvailableSeats   int     `json:"available_seats"`
	Utilization      float64 `json:"utilization"`
	Classification   string  `json:"classification"`
	ExpiringSoon     bool    `json:"expiring_soon"`
	RenewalFrequency string  `json:"renewal_frequency,omitempty"`
	RenewalDate      *string `json:"renewal_date,omitempty"`
}

type CreatePoolRequest struct {
	SoftwareID       string  `json:"software_id"`
	TotalSeats       int     `json:"total_seats"`
	RenewalFrequency string  `json:"renewal_frequency,omitempty"`
	RenewalDate      *string `json:"renewal_date,omitempty"` // YYYY-MM-DD
}

type ExpandPoolRequest struct {
	AdditionalSeats int `json:"additional_seats"`
}

type ExpansionDTO struct {
	Pool       PoolDTO `json:"pool"`
	AddedSeats int     `json:"added_seats"`
	CostDelta  string  `json:"cost_delta"` // informational only
}

// =============================================================================
// ASSIGNMENTS
// =============================================================================

type AssignmentDTO struct {
	ID             string  `json:"id"`
	PoolID         string  `json:"pool_id"`
	EmployeeID     string  `json:"employee_id"`
	EmployeeName   string  `json:"employee_name"`
	EmployeeEmail  string  `json:"employee_email"`
	AssignedDate   string  `json:"assigned_date"`
	AssignedBy     string  `json:"assigned_by"`
	ExpirationDate *string `json:"expiration_date,omitempty"`
	Status         string  `json:"status"`
	Notes          string  `json:"notes,omitempty"`
}

type AssignRequest struct {
	PoolID         string  `json:"pool_id"`
	EmployeeID     string  `json:"employee_id"`
	AssignedDate   *string `json:"assigned_date,omitempty"` // YYYY-MM-DD, default today
	AssignedBy     string  `json:"assigned_by,omitempty"`
	ExpirationDate *string `json:"expiration_date,omitempty"`
	Notes          string  `json:"notes,omitempty"`
}

type AssignResponse struct {
	Assignment AssignmentDTO `json:"assignment"`
	Warnings   []WarningDTO  `json:"warnings,omitempty"`
}

type WarningDTO struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// =============================================================================
// IMPORT
// =============================================================================

type ImportResultDTO struct {
	Total        int          `json:"total"`
	SuccessCount int          `json:"success_count"`
	ErrorCount   int          `json:"error_count"`
	WarningCount int          `json:"warning_count"`
	Rows         []RowReport  `json:"rows"`
}

type RowReport struct {
	Line         int              `json:"line"`
	Email        string           `json:"employee_email"`
	License      string           `json:"license_name"`
	Valid        bool             `json:"valid"`
	Committed    bool             `json:"committed"`
	AssignmentID string           `json:"assignment_id,omitempty"`
	Errors       []importer.Issue `json:"errors,omitempty"`
	Warnings     []importer.Issue `json:"warnings,omitempty"`
}

// =============================================================================
// REPORTING
// =============================================================================

type EmployeeSummaryDTO struct {
	EmployeeID  string          `json:"employee_id"`
	Total       int             `json:"total"`
	ByStatus    map[string]int  `json:"by_status"`
	Assignments []AssignmentDTO `json:"assignments"`
}

type FleetStatsDTO struct {
	Pools            int    `json:"pools"`
	TotalSeats       int    `json:"total_seats"`
	AssignedSeats    int    `json:"assigned_seats"`
	AvailableSeats   int    `json:"available_seats"`
	OverAllocated    int    `json:"over_allocated"`
	ExpiringSoon     int    `json:"expiring_soon"`
	AdvisorySeatCost string `json:"advisory_seat_cost"`
}

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toSoftwareDTO(s catalog.Software) SoftwareDTO {
	return SoftwareDTO{
		ID:            s.ID,
		Name:          s.Name,
		Vendor:        s.Vendor,
		LicenseType:   string(s.LicenseType),
		Cost:          s.Cost.String(),
		CostFrequency: string(s.CostFrequency),
	}
}

func toEmployeeDTO(e catalog.Employee) EmployeeDTO {
	return EmployeeDTO{
		ID:         e.ID,
		Email:      e.Email,
		Name:       e.Name,
		Department: e.Department,
		Status:     string(e.Status),
	}
}

func toPoolDTO(u pool.Usage) PoolDTO {
	dto := PoolDTO{
		ID:               u.Pool.ID,
		SoftwareID:       u.Pool.SoftwareID,
		LicenseType:      string(u.Pool.LicenseType),
		TotalSeats:       u.Pool.TotalSeats,
		AssignedSeats:    u.AssignedSeats,
		AvailableSeats:   u.AvailableSeats,
		Utilization:      u.Utilization,
		Classification:   string(u.Classification),
		ExpiringSoon:     u.ExpiringSoon,
		RenewalFrequency: u.Pool.RenewalFrequency,
	}
	if u.Pool.RenewalDate != nil {
		d := u.Pool.RenewalDate.Format(dateLayout)
		dto.RenewalDate = &d
	}
	return dto
}

func toAssignmentDTO(a ledger.Assignment) AssignmentDTO {
	dto := AssignmentDTO{
		ID:            a.ID,
		PoolID:        a.PoolID,
		EmployeeID:    a.EmployeeID,
		EmployeeName:  a.EmployeeName,
		EmployeeEmail: a.EmployeeEmail,
		AssignedDate:  a.AssignedDate.Format(dateLayout),
		AssignedBy:    a.AssignedBy,
		Status:        string(a.Status),
		Notes:         a.Notes,
	}
	if a.ExpirationDate != nil {
		d := a.ExpirationDate.Format(dateLayout)
		dto.ExpirationDate = &d
	}
	return dto
}

func toAssignmentDTOs(as []ledger.Assignment) []AssignmentDTO {
	dtos := make([]AssignmentDTO, len(as))
	for i, a := range as {
		dtos[i] = toAssignmentDTO(a)
	}
	return dtos
}

func toWarningDTOs(ws []ledger.Warning) []WarningDTO {
	if len(ws) == 0 {
		return nil
	}
	dtos := make([]WarningDTO, len(ws))
	for i, w := range ws {
		dtos[i] = WarningDTO{Code: string(w.Code), Message: w.Message}
	}
	return dtos
}

func toImportResultDTO(res *importer.Result) ImportResultDTO {
	dto := ImportResultDTO{
		Total:        res.Total,
		SuccessCount: res.SuccessCount,
		ErrorCount:   res.ErrorCount,
		WarningCount: res.WarningCount,
		Rows:         make([]RowReport, len(res.Rows)),
	}
	for i, row := range res.Rows {
		dto.Rows[i] = RowReport{
			Line:         row.Line,
			Email:        row.EmployeeEmail,
			License:      row.LicenseName,
			Valid:        row.Valid(),
			Committed:    row.Committed,
			AssignmentID: row.AssignmentID,
			Errors:       row.Errors,
			Warnings:     row.Warnings,
		}
	}
	return dto
}

func toEmployeeSummaryDTO(s *report.EmployeeSummary) EmployeeSummaryDTO {
	byStatus := make(map[string]int, len(s.ByStatus))
	for status, n := range s.ByStatus {
		byStatus[string(status)] = n
	}
	return EmployeeSummaryDTO{
		EmployeeID:  s.EmployeeID,
		Total:       s.Total,
		ByStatus:    byStatus,
		Assignments: toAssignmentDTOs(s.Assignments),
	}
}

func toFleetStatsDTO(s *report.FleetStats) FleetStatsDTO {
	return FleetStatsDTO{
		Pools:            s.Pools,
		TotalSeats:       s.TotalSeats,
		AssignedSeats:    s.AssignedSeats,
		AvailableSeats:   s.AvailableSeats,
		OverAllocated:    s.OverAllocated,
		ExpiringSoon:     s.ExpiringSoon,
		AdvisorySeatCost: s.AdvisorySeatCost.String(),
	}
}

func parseOptionalDate(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, *s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
