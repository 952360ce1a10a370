/*
handlers.go - HTTP handlers for the license allocation engine

PURPOSE:
  Exposes the engine via REST. Handlers parse HTTP, delegate to the domain
  layers, and serialize DTOs. No business rules live here.

ENDPOINTS:
  Catalog / Directory:
    GET  /api/software                      List catalog entries
    GET  /api/employees                     List directory entries
    GET  /api/employees/{id}/summary        Per-employee assignment summary

  Pools:
    GET  /api/pools                         List pools with derived usage
    POST /api/pools                         Create pool
    POST /api/pools/{id}/expand             Add seats

  Assignments:
    GET  /api/assignments                   List (employee_id, pool_id, status,
                                            from, to query filters)
    POST /api/assignments                   Assign a seat
    POST /api/assignments/{id}/revoke       Revoke (idempotent)
    POST /api/assignments/{id}/expire       Apply expiry policy

  Import:
    POST /api/import                        Commit a CSV batch
    POST /api/import/preview                Validate only, report per row
    GET  /api/import/template               Canonical CSV template

  Fleet:
    GET  /api/fleet/stats                   Fleet-wide seat aggregates

ERROR HANDLING:
  - 400: validation errors, malformed input
  - 404: unknown pool/employee/assignment
  - 409: duplicate active assignment
  - 422: structural import failure (missing columns)
  - 500: everything else

SEE ALSO:
  - dto.go: request/response shapes
  - server.go: router and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/warp/license-engine/catalog"
	"github.com/warp/license-engine/importer"
	"github.com/warp/license-engine/ledger"
	"github.com/warp/license-engine/pool"
	"github.com/warp/license-engine/report"
)

// =============================================================================
// HANDLER
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Registry  catalog.Registry
	Directory catalog.Directory
	Pools     pool.Store
	Manager   *pool.Manager
	Ledger    *ledger.Ledger
	Importer  *importer.Engine
	Reporter  *report.Reporter
}

// NewHandler wires the handler from the engine's layers.
func NewHandler(reg catalog.Registry, dir catalog.Directory, pools pool.Store, led *ledger.Ledger, imp *importer.Engine) *Handler {
	return &Handler{
		Registry:  reg,
		Directory: dir,
		Pools:     pools,
		Manager:   pool.NewManager(pools, led),
		Ledger:    led,
		Importer:  imp,
		Reporter:  report.NewReporter(led, reg),
	}
}

// =============================================================================
// CATALOG / DIRECTORY HANDLERS
// =============================================================================

func (h *Handler) ListSoftware(w http.ResponseWriter, r *http.Request) {
	items, err := h.Registry.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list software", err)
		return
	}
	dtos := make([]SoftwareDTO, len(items))
	for i, s := range items {
		dtos[i] = toSoftwareDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	items, err := h.Directory.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list employees", err)
		return
	}
	dtos := make([]EmployeeDTO, len(items))
	for i, e := range items {
		dtos[i] = toEmployeeDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) EmployeeSummary(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.Directory.FindByID(r.Context(), id); err != nil {
		writeError(w, http.StatusNotFound, "employee not found", err)
		return
	}

	summary, err := h.Reporter.Summary(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to build summary", err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeSummaryDTO(summary))
}

// =============================================================================
// POOL HANDLERS
// =============================================================================

func (h *Handler) ListPools(w http.ResponseWriter, r *http.Request) {
	pools, err := h.Pools.ListPools(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list pools", err)
		return
	}

	dtos := make([]PoolDTO, len(pools))
	for i, p := range pools {
		usage, err := h.Manager.Snapshot(r.Context(), p)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to derive pool usage", err)
			return
		}
		dtos[i] = toPoolDTO(usage)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreatePool(w http.ResponseWriter, r *http.Request) {
	var req CreatePoolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	sw, err := h.Registry.FindByID(r.Context(), req.SoftwareID)
	if err != nil {
		writeError(w, http.StatusNotFound, "software not found", err)
		return
	}

	renewalDate, err := parseOptionalDate(req.RenewalDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid renewal_date (use YYYY-MM-DD)", err)
		return
	}
	var renewal *pool.RenewalInfo
	if req.RenewalFrequency != "" || renewalDate != nil {
		renewal = &pool.RenewalInfo{Frequency: req.RenewalFrequency, Date: renewalDate}
	}

	p, err := h.Manager.Create(r.Context(), sw.ID, sw.LicenseType, req.TotalSeats, renewal)
	if errors.Is(err, pool.ErrInvalidSeatCount) {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create pool", err)
		return
	}

	usage, err := h.Manager.Snapshot(r.Context(), p)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to derive pool usage", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPoolDTO(usage))
}

func (h *Handler) ExpandPool(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req ExpandPoolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	p, err := h.Pools.GetPool(r.Context(), id)
	if errors.Is(err, pool.ErrPoolNotFound) {
		writeError(w, http.StatusNotFound, "pool not found", err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load pool", err)
		return
	}

	// Unit cost is advisory and comes from the catalog entry.
	sw, err := h.Registry.FindByID(r.Context(), p.SoftwareID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "pool references unknown software", err)
		return
	}

	exp, err := h.Manager.Expand(r.Context(), id, req.AdditionalSeats, sw.Cost)
	if errors.Is(err, pool.ErrInvalidExpansion) {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to expand pool", err)
		return
	}

	usage, err := h.Manager.Snapshot(r.Context(), exp.Pool)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to derive pool usage", err)
		return
	}
	writeJSON(w, http.StatusOK, ExpansionDTO{
		Pool:       toPoolDTO(usage),
		AddedSeats: exp.AddedSeats,
		CostDelta:  exp.CostDelta.String(),
	})
}

// =============================================================================
// ASSIGNMENT HANDLERS
// =============================================================================

func (h *Handler) ListAssignments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := ledger.Filter{
		EmployeeID: q.Get("employee_id"),
		PoolID:     q.Get("pool_id"),
	}
	if s := q.Get("status"); s != "" {
		status, ok := ledger.ParseStatus(s)
		if !ok {
			writeError(w, http.StatusBadRequest, "status must be one of active, expired, revoked", nil)
			return
		}
		f.Status = status
	}
	for _, bound := range []struct {
		param string
		dst   **time.Time
	}{{"from", &f.From}, {"to", &f.To}} {
		if v := q.Get(bound.param); v != "" {
			t, err := time.Parse(dateLayout, v)
			if err != nil {
				writeError(w, http.StatusBadRequest, bound.param+" must be YYYY-MM-DD", err)
				return
			}
			*bound.dst = &t
		}
	}

	assignments, err := h.Ledger.List(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list assignments", err)
		return
	}
	writeJSON(w, http.StatusOK, toAssignmentDTOs(assignments))
}

func (h *Handler) CreateAssignment(w http.ResponseWriter, r *http.Request) {
	var req AssignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	p, err := h.Pools.GetPool(r.Context(), req.PoolID)
	if errors.Is(err, pool.ErrPoolNotFound) {
		writeError(w, http.StatusNotFound, "pool not found", err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load pool", err)
		return
	}

	emp, err := h.Directory.FindByID(r.Context(), req.EmployeeID)
	if errors.Is(err, catalog.ErrEmployeeNotFound) {
		writeError(w, http.StatusNotFound, "employee not found", err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to resolve employee", err)
		return
	}

	assignedDate, err := parseOptionalDate(req.AssignedDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid assigned_date (use YYYY-MM-DD)", err)
		return
	}
	expirationDate, err := parseOptionalDate(req.ExpirationDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid expiration_date (use YYYY-MM-DD)", err)
		return
	}

	details := ledger.Details{
		AssignedBy:     req.AssignedBy,
		ExpirationDate: expirationDate,
		Notes:          req.Notes,
	}
	if assignedDate != nil {
		details.AssignedDate = *assignedDate
	}

	a, warnings, err := h.Ledger.Assign(r.Context(), p, emp, details)
	if errors.Is(err, ledger.ErrDuplicateAssignment) {
		writeError(w, http.StatusConflict, err.Error(), nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to assign", err)
		return
	}

	writeJSON(w, http.StatusCreated, AssignResponse{
		Assignment: toAssignmentDTO(a),
		Warnings:   toWarningDTOs(warnings),
	})
}

func (h *Handler) RevokeAssignment(w http.ResponseWriter, r *http.Request) {
	a, err := h.Ledger.Revoke(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, ledger.ErrAssignmentNotFound) {
		writeError(w, http.StatusNotFound, "assignment not found", err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to revoke", err)
		return
	}
	writeJSON(w, http.StatusOK, toAssignmentDTO(a))
}

func (h *Handler) ExpireAssignment(w http.ResponseWriter, r *http.Request) {
	a, err := h.Ledger.Expire(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, ledger.ErrAssignmentNotFound) {
		writeError(w, http.StatusNotFound, "assignment not found", err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to expire", err)
		return
	}
	writeJSON(w, http.StatusOK, toAssignmentDTO(a))
}

// =============================================================================
// IMPORT HANDLERS
// =============================================================================

func (h *Handler) ImportBatch(w http.ResponseWriter, r *http.Request) {
	result, err := h.Importer.Import(r.Context(), r.Body)
	h.writeImportOutcome(w, result, err)
}

func (h *Handler) PreviewImport(w http.ResponseWriter, r *http.Request) {
	result, err := h.Importer.Preview(r.Context(), r.Body)
	h.writeImportOutcome(w, result, err)
}

func (h *Handler) writeImportOutcome(w http.ResponseWriter, result *importer.Result, err error) {
	var missing *importer.MissingColumnsError
	if errors.As(err, &missing) {
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error: missing.Error(),
			Code:  "missing_columns",
		})
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read import file", err)
		return
	}
	writeJSON(w, http.StatusOK, toImportResultDTO(result))
}

func (h *Handler) ImportTemplate(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="license-import-template.csv"`)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(importer.Template()))
}

// =============================================================================
// FLEET HANDLERS
// =============================================================================

func (h *Handler) FleetStats(w http.ResponseWriter, r *http.Request) {
	pools, err := h.Pools.ListPools(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list pools", err)
		return
	}
	stats, err := h.Reporter.FleetStats(r.Context(), pools)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to aggregate fleet stats", err)
		return
	}
	writeJSON(w, http.StatusOK, toFleetStatsDTO(stats))
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, err error) {
	body := ErrorResponse{Error: msg}
	if err != nil && msg != err.Error() {
		body.Error = msg + ": " + err.Error()
	}
	writeJSON(w, status, body)
}
