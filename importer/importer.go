/*
Package importer is the bulk import and validation engine.

PURPOSE:
  Ingests comma-delimited assignment data: parses the header, maps each line
  to a strongly-typed row record, validates every row INDEPENDENTLY against
  the catalog, directory, and pool layers, then commits the valid rows
  through the ledger with partial-success semantics.

TWO FAILURE TIERS:
  1. Structural: a missing required column fails the whole import with
     MissingColumnsError BEFORE any row is parsed. Nothing commits.
  2. Row-level: blocking errors (unknown employee, unknown license, existing
     active assignment, bad date, bad status) invalidate only their own row.
     Warnings (inactive employee, pool at capacity) never invalidate anything.

PARTIAL COMMIT:
  Each valid row commits independently. A commit-time failure - typically a
  duplicate introduced by an earlier row in the same batch - increments the
  error count without aborting the remaining rows. Once a row has committed,
  undoing it is an explicit compensating revoke, not a rollback.

HEADER MATCHING:
  Column names match case-insensitively after stripping internal whitespace:
  "Employee Email" and "employeeemail" are the same column.

SEE ALSO:
  - ledger/ledger.go: the commit path (assign) and its warnings
  - template.go: canonical header and example rows for user guidance
*/
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/warp/license-engine/catalog"
	"github.com/warp/license-engine/ledger"
	"github.com/warp/license-engine/pool"
)

// =============================================================================
// COLUMNS
// =============================================================================

// Canonical (normalized) column names.
const (
	colEmployeeEmail  = "employeeemail"
	colLicenseName    = "licensename"
	colAssignedDate   = "assigneddate"
	colExpirationDate = "expirationdate"
	colStatus         = "status"
	colNotes          = "notes"
	colAssignedBy     = "assignedby"
)

var requiredColumns = []string{colEmployeeEmail, colLicenseName, colAssignedDate, colStatus}

// normalizeHeader lowercases and strips ALL whitespace, so "Employee Email",
// "employeeEmail" and "employeeemail" all match.
func normalizeHeader(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// =============================================================================
// ERRORS AND ISSUES
// =============================================================================

// ErrMissingColumns is the structural failure: required header columns are
// absent and no row processing happens at all.
var ErrMissingColumns = errors.New("missing required columns")

// MissingColumnsError lists which required columns were not found.
type MissingColumnsError struct {
	Missing []string
}

func (e *MissingColumnsError) Error() string {
	return "missing required columns: " + strings.Join(e.Missing, ", ")
}

func (e *MissingColumnsError) Unwrap() error { return ErrMissingColumns }

// Issue codes attached to individual rows.
const (
	CodeEmployeeNotFound    = "employee_not_found"
	CodeLicenseNotFound     = "license_not_found"
	CodeInvalidDate         = "invalid_date"
	CodeInvalidStatus       = "invalid_status"
	CodeDuplicateAssignment = "duplicate_assignment"
	CodeCommitFailed        = "commit_failed"
)

// Issue is one error or warning attached to a row.
type Issue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// =============================================================================
// ROW - Strongly-typed record for one input line
// =============================================================================

// Row is the typed form of one data line. Raw fields are captured at parse
// time; resolved fields are filled during validation. A row is valid iff it
// accumulated zero blocking errors - warnings never affect validity.
type Row struct {
	Line int // 1-based line number in the file (header is line 1)

	// Raw fields, positionally mapped from the header.
	EmployeeEmail     string
	LicenseName       string
	AssignedDateRaw   string
	ExpirationDateRaw string
	StatusRaw         string
	Notes             string
	AssignedBy        string

	// Resolved during validation.
	Employee       catalog.Employee
	Software       catalog.Software
	Pool           pool.Pool
	AssignedDate   time.Time
	ExpirationDate *time.Time
	Status         ledger.Status

	Errors   []Issue
	Warnings []Issue

	// Commit outcome.
	Committed    bool
	AssignmentID string
}

// Valid reports whether the row may proceed to commit.
func (r *Row) Valid() bool { return len(r.Errors) == 0 }

func (r *Row) addError(code, msg string)   { r.Errors = append(r.Errors, Issue{Code: code, Message: msg}) }
func (r *Row) addWarning(code, msg string) { r.Warnings = append(r.Warnings, Issue{Code: code, Message: msg}) }

// Result is the canonical post-commit report.
// ErrorCount = invalid rows + failed commits.
// WarningCount = committed rows that carried at least one warning.
type Result struct {
	Total        int
	SuccessCount int
	ErrorCount   int
	WarningCount int
	Rows         []*Row
}

// =============================================================================
// PARSE - Tabular text to typed rows
// =============================================================================

// strict YYYY-MM-DD; time.Parse alone would accept some malformed spacing.
var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

const dateLayout = "2006-01-02"

// Parse reads the CSV, checks the header, and maps every data line to a Row.
// Returns MissingColumnsError before touching any row when a required column
// is absent. Ragged lines are tolerated; missing cells read as empty.
func Parse(r io.Reader) ([]*Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, &MissingColumnsError{Missing: requiredColumns}
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[normalizeHeader(name)] = i
	}

	var missing []string
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{Missing: missing}
	}

	cell := func(record []string, col string) string {
		i, ok := index[col]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var rows []*Row
	line := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading line %d: %w", line+1, err)
		}
		line++

		rows = append(rows, &Row{
			Line:              line,
			EmployeeEmail:     cell(record, colEmployeeEmail),
			LicenseName:       cell(record, colLicenseName),
			AssignedDateRaw:   cell(record, colAssignedDate),
			ExpirationDateRaw: cell(record, colExpirationDate),
			StatusRaw:         cell(record, colStatus),
			Notes:             cell(record, colNotes),
			AssignedBy:        cell(record, colAssignedBy),
		})
	}
	return rows, nil
}

// parseDate enforces the strict pattern, then requires a real calendar date.
func parseDate(raw string) (time.Time, error) {
	if !datePattern.MatchString(raw) {
		return time.Time{}, fmt.Errorf("%q does not match YYYY-MM-DD", raw)
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is not a real calendar date", raw)
	}
	return t, nil
}

// =============================================================================
// ENGINE - Validation and commit
// =============================================================================

// Engine orchestrates the lower layers per row.
type Engine struct {
	Directory catalog.Directory
	Registry  catalog.Registry
	Pools     pool.Store
	Ledger    *ledger.Ledger
	Log       zerolog.Logger
}

func NewEngine(dir catalog.Directory, reg catalog.Registry, pools pool.Store, led *ledger.Ledger, log zerolog.Logger) *Engine {
	return &Engine{Directory: dir, Registry: reg, Pools: pools, Ledger: led, Log: log}
}

// Validate checks every row independently; no row short-circuits another.
// Reads only - pool capacity warnings reflect the ledger at validation time,
// which may differ from commit time (commit re-evaluates under the pool lock).
func (e *Engine) Validate(ctx context.Context, rows []*Row) error {
	for _, row := range rows {
		if err := e.validateRow(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) validateRow(ctx context.Context, row *Row) error {
	// 1. Employee resolution (blocking) + status warning (non-blocking).
	if row.EmployeeEmail == "" {
		row.addError(CodeEmployeeNotFound, "employeeEmail is required")
	} else {
		emp, err := e.Directory.FindByEmail(ctx, row.EmployeeEmail)
		switch {
		case errors.Is(err, catalog.ErrEmployeeNotFound):
			row.addError(CodeEmployeeNotFound, "no employee with email "+row.EmployeeEmail)
		case err != nil:
			return err
		default:
			row.Employee = emp
			if !emp.Assignable() {
				row.addWarning(string(ledger.WarnInactiveEmployee),
					"employee "+emp.Email+" has status "+string(emp.Status))
			}
		}
	}

	// 2. License resolution to a catalog entry with a pool (blocking),
	//    plus capacity warning (non-blocking).
	if row.LicenseName == "" {
		row.addError(CodeLicenseNotFound, "licenseName is required")
	} else {
		sw, err := e.Registry.FindByName(ctx, row.LicenseName)
		switch {
		case errors.Is(err, catalog.ErrSoftwareNotFound):
			row.addError(CodeLicenseNotFound, "no license named "+row.LicenseName)
		case err != nil:
			return err
		default:
			row.Software = sw
			p, err := e.Pools.PoolBySoftwareID(ctx, sw.ID)
			switch {
			case errors.Is(err, pool.ErrPoolNotFound):
				row.addError(CodeLicenseNotFound, "no pool exists for license "+sw.Name)
			case err != nil:
				return err
			default:
				row.Pool = p
				assigned, err := e.Ledger.ActiveCount(ctx, p.ID)
				if err != nil {
					return err
				}
				if p.TotalSeats-assigned <= 0 {
					row.addWarning(string(ledger.WarnOverAllocation),
						fmt.Sprintf("pool for %s is at capacity (%d/%d)", sw.Name, assigned, p.TotalSeats))
				}
			}
		}
	}

	// 3. Pre-existing active assignment (blocking). A read-only check so the
	//    pre-commit report already shows the duplicate; commit re-checks the
	//    same condition under the pool lock.
	if row.Employee.ID != "" && row.Pool.ID != "" {
		existing, err := e.Ledger.List(ctx, ledger.Filter{
			EmployeeID: row.Employee.ID,
			PoolID:     row.Pool.ID,
			Status:     ledger.StatusActive,
		})
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			row.addError(CodeDuplicateAssignment,
				row.Employee.Email+" already holds an active assignment on this pool")
		}
	}

	// 4. Assigned date: required, strict format, real calendar date.
	if row.AssignedDateRaw == "" {
		row.addError(CodeInvalidDate, "assignedDate is required")
	} else if t, err := parseDate(row.AssignedDateRaw); err != nil {
		row.addError(CodeInvalidDate, "assignedDate: "+err.Error())
	} else {
		row.AssignedDate = t
	}

	// 5. Expiration date: optional, same rule when present.
	if row.ExpirationDateRaw != "" {
		if t, err := parseDate(row.ExpirationDateRaw); err != nil {
			row.addError(CodeInvalidDate, "expirationDate: "+err.Error())
		} else {
			row.ExpirationDate = &t
		}
	}

	// 6. Status: required, one of the lifecycle states.
	if row.StatusRaw == "" {
		row.addError(CodeInvalidStatus, "status is required")
	} else if s, ok := ledger.ParseStatus(row.StatusRaw); !ok {
		row.addError(CodeInvalidStatus, fmt.Sprintf("status %q must be one of active, expired, revoked", row.StatusRaw))
	} else {
		row.Status = s
	}

	return nil
}

// Commit assigns every valid row through the ledger. Each row commits
// independently: a failure (most often a duplicate introduced by an earlier
// row in this same batch) marks that row as an error and moves on.
func (e *Engine) Commit(ctx context.Context, rows []*Row) *Result {
	result := &Result{Total: len(rows), Rows: rows}

	for _, row := range rows {
		if !row.Valid() {
			result.ErrorCount++
			continue
		}

		a, warns, err := e.Ledger.Assign(ctx, row.Pool, row.Employee, ledger.Details{
			AssignedDate:   row.AssignedDate,
			AssignedBy:     row.AssignedBy,
			ExpirationDate: row.ExpirationDate,
			Status:         row.Status,
			Notes:          row.Notes,
		})
		if err != nil {
			code := CodeCommitFailed
			if errors.Is(err, ledger.ErrDuplicateAssignment) {
				code = CodeDuplicateAssignment
			}
			row.addError(code, err.Error())
			result.ErrorCount++
			continue
		}

		// Assign-time warnings join the validation-time ones; the row still
		// counts once toward the warning total.
		for _, w := range warns {
			if !row.hasWarning(string(w.Code)) {
				row.addWarning(string(w.Code), w.Message)
			}
		}

		row.Committed = true
		row.AssignmentID = a.ID
		result.SuccessCount++
		if len(row.Warnings) > 0 {
			result.WarningCount++
		}
	}

	e.Log.Info().
		Int("total", result.Total).
		Int("success", result.SuccessCount).
		Int("errors", result.ErrorCount).
		Int("warnings", result.WarningCount).
		Msg("bulk import committed")

	return result
}

func (r *Row) hasWarning(code string) bool {
	for _, w := range r.Warnings {
		if w.Code == code {
			return true
		}
	}
	return false
}

// Import is the full pipeline: parse, validate, commit.
// A MissingColumnsError aborts before any side effects.
func (e *Engine) Import(ctx context.Context, r io.Reader) (*Result, error) {
	rows, err := Parse(r)
	if err != nil {
		return nil, err
	}
	if err := e.Validate(ctx, rows); err != nil {
		return nil, err
	}
	return e.Commit(ctx, rows), nil
}

// Preview parses and validates without committing anything. This backs the
// pre-commit report surface: every row with its errors and warnings.
func (e *Engine) Preview(ctx context.Context, r io.Reader) (*Result, error) {
	rows, err := Parse(r)
	if err != nil {
		return nil, err
	}
	if err := e.Validate(ctx, rows); err != nil {
		return nil, err
	}

	result := &Result{Total: len(rows), Rows: rows}
	for _, row := range rows {
		if !row.Valid() {
			result.ErrorCount++
		} else if len(row.Warnings) > 0 {
			result.WarningCount++
		}
	}
	return result, nil
}
