/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements ledger.Store and pool.Store using database/sql + mattn/go-sqlite3.
  In production the same patterns apply to PostgreSQL; only minor dialect
  differences.

STATUS-ONLY MUTATION:
  The assignments table has exactly one UPDATE statement, and it touches only
  the status column. No DELETE exists. Audit history is preserved by
  construction.

DUPLICATE BACKSTOP:
  The ledger serializes assigns per pool and checks for an existing active
  record before inserting. The partial unique index on
  (employee_id, pool_id) WHERE status='active' is the database-level backstop
  for that invariant: if two processes share the file, the second insert
  fails with ErrDuplicateAssignment instead of corrupting seat counts.

WAL MODE:
  Opened with WAL for better concurrency: readers don't block, single writer,
  better crash recovery.

USAGE:
  store, err := sqlite.New("./data/licenses.db")   // ":memory:" for tests
  defer store.Close()
  led := ledger.New(store)

SEE ALSO:
  - ledger/assignment.go, pool/pool.go: interface definitions
  - store/memory/memory.go: in-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/warp/license-engine/catalog"
	"github.com/warp/license-engine/ledger"
	"github.com/warp/license-engine/pool"
)

// Store implements ledger.Store and pool.Store using SQLite.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS pools (
		id TEXT PRIMARY KEY,
		software_id TEXT NOT NULL,
		license_type TEXT NOT NULL,
		total_seats INTEGER NOT NULL,
		renewal_frequency TEXT,
		renewal_date TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_pools_software
		ON pools(software_id);

	CREATE TABLE IF NOT EXISTS assignments (
		id TEXT PRIMARY KEY,
		pool_id TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		employee_name TEXT NOT NULL,
		employee_email TEXT NOT NULL,
		assigned_date TEXT NOT NULL,
		assigned_by TEXT NOT NULL,
		expiration_date TEXT,
		status TEXT NOT NULL,
		notes TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_assignments_pool_status
		ON assignments(pool_id, status);
	CREATE INDEX IF NOT EXISTS idx_assignments_employee
		ON assignments(employee_id);

	-- CRITICAL: at most one ACTIVE assignment per (employee, pool).
	-- The ledger enforces this under its per-pool lock; this index is the
	-- database-level backstop when multiple processes share the file.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_unique_active_assignment
		ON assignments(employee_id, pool_id)
		WHERE status = 'active';
	`
	_, err := s.db.Exec(schema)
	return err
}

const timeLayout = time.RFC3339

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

// =============================================================================
// LEDGER STORE
// =============================================================================

func (s *Store) InsertAssignment(ctx context.Context, a ledger.Assignment) error {
	var expiration sql.NullString
	if a.ExpirationDate != nil {
		expiration = sql.NullString{String: a.ExpirationDate.UTC().Format(timeLayout), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO assignments
			(id, pool_id, employee_id, employee_name, employee_email,
			 assigned_date, assigned_by, expiration_date, status, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.PoolID, a.EmployeeID, a.EmployeeName, a.EmployeeEmail,
		a.AssignedDate.UTC().Format(timeLayout), a.AssignedBy, expiration,
		string(a.Status), a.Notes, time.Now().UTC().Format(timeLayout),
	)
	if err != nil && isUniqueViolation(err) {
		return &ledger.DuplicateAssignmentError{EmployeeID: a.EmployeeID, PoolID: a.PoolID}
	}
	return err
}

func (s *Store) GetAssignment(ctx context.Context, id string) (ledger.Assignment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, pool_id, employee_id, employee_name, employee_email,
		       assigned_date, assigned_by, expiration_date, status, notes
		FROM assignments WHERE id = ?`, id)

	a, err := scanAssignment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Assignment{}, ledger.ErrAssignmentNotFound
	}
	return a, err
}

func (s *Store) SetAssignmentStatus(ctx context.Context, id string, status ledger.Status) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE assignments SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ledger.ErrAssignmentNotFound
	}
	return nil
}

func (s *Store) ListAssignments(ctx context.Context, f ledger.Filter) ([]ledger.Assignment, error) {
	query := `
		SELECT id, pool_id, employee_id, employee_name, employee_email,
		       assigned_date, assigned_by, expiration_date, status, notes
		FROM assignments WHERE 1=1`
	var args []any

	if f.EmployeeID != "" {
		query += ` AND employee_id = ?`
		args = append(args, f.EmployeeID)
	}
	if f.PoolID != "" {
		query += ` AND pool_id = ?`
		args = append(args, f.PoolID)
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(f.Status))
	}
	if f.From != nil {
		query += ` AND assigned_date >= ?`
		args = append(args, f.From.UTC().Format(timeLayout))
	}
	if f.To != nil {
		query += ` AND assigned_date <= ?`
		args = append(args, f.To.UTC().Format(timeLayout))
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) CountActive(ctx context.Context, poolID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM assignments WHERE pool_id = ? AND status = 'active'`,
		poolID).Scan(&n)
	return n, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAssignment(row scanner) (ledger.Assignment, error) {
	var a ledger.Assignment
	var assignedDate, status string
	var expiration, notes sql.NullString

	err := row.Scan(&a.ID, &a.PoolID, &a.EmployeeID, &a.EmployeeName, &a.EmployeeEmail,
		&assignedDate, &a.AssignedBy, &expiration, &status, &notes)
	if err != nil {
		return ledger.Assignment{}, err
	}

	a.AssignedDate, err = time.Parse(timeLayout, assignedDate)
	if err != nil {
		return ledger.Assignment{}, fmt.Errorf("corrupt assigned_date for %s: %w", a.ID, err)
	}
	if expiration.Valid {
		t, err := time.Parse(timeLayout, expiration.String)
		if err != nil {
			return ledger.Assignment{}, fmt.Errorf("corrupt expiration_date for %s: %w", a.ID, err)
		}
		a.ExpirationDate = &t
	}
	a.Status = ledger.Status(status)
	a.Notes = notes.String
	return a, nil
}

// =============================================================================
// POOL STORE
// =============================================================================

func (s *Store) SavePool(ctx context.Context, p pool.Pool) error {
	var renewalDate sql.NullString
	if p.RenewalDate != nil {
		renewalDate = sql.NullString{String: p.RenewalDate.UTC().Format(timeLayout), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pools (id, software_id, license_type, total_seats,
		                   renewal_frequency, renewal_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			software_id = excluded.software_id,
			license_type = excluded.license_type,
			total_seats = excluded.total_seats,
			renewal_frequency = excluded.renewal_frequency,
			renewal_date = excluded.renewal_date`,
		p.ID, p.SoftwareID, string(p.LicenseType), p.TotalSeats,
		p.RenewalFrequency, renewalDate, time.Now().UTC().Format(timeLayout),
	)
	return err
}

func (s *Store) GetPool(ctx context.Context, id string) (pool.Pool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, software_id, license_type, total_seats, renewal_frequency, renewal_date
		FROM pools WHERE id = ?`, id)
	return scanPool(row)
}

func (s *Store) PoolBySoftwareID(ctx context.Context, softwareID string) (pool.Pool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, software_id, license_type, total_seats, renewal_frequency, renewal_date
		FROM pools WHERE software_id = ? ORDER BY created_at LIMIT 1`, softwareID)
	return scanPool(row)
}

func (s *Store) ListPools(ctx context.Context) ([]pool.Pool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, software_id, license_type, total_seats, renewal_frequency, renewal_date
		FROM pools ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []pool.Pool
	for rows.Next() {
		p, err := scanPool(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPool(row scanner) (pool.Pool, error) {
	var p pool.Pool
	var licenseType string
	var renewalFreq, renewalDate sql.NullString

	err := row.Scan(&p.ID, &p.SoftwareID, &licenseType, &p.TotalSeats, &renewalFreq, &renewalDate)
	if errors.Is(err, sql.ErrNoRows) {
		return pool.Pool{}, pool.ErrPoolNotFound
	}
	if err != nil {
		return pool.Pool{}, err
	}

	p.LicenseType = catalog.LicenseType(licenseType)
	p.RenewalFrequency = renewalFreq.String
	if renewalDate.Valid {
		t, err := time.Parse(timeLayout, renewalDate.String)
		if err != nil {
			return pool.Pool{}, fmt.Errorf("corrupt renewal_date for %s: %w", p.ID, err)
		}
		p.RenewalDate = &t
	}
	return p, nil
}
