/*
Package catalog provides the read-only lookups the allocation engine is built on:
the software catalog (license products) and the employee directory.

PURPOSE:
  Everything above this package (pools, the assignment ledger, bulk import)
  resolves names and emails through these two lookups. Neither is owned by the
  engine: the host application supplies them at construction, seeded from its
  own records (see factory package for the JSON seed loader).

KEY CONCEPTS:
  - Software: a license product (name, vendor, cost, cost frequency)
  - Employee: a directory entry with an employment status
  - Registry/Directory: the lookup contracts the engine consumes
  - Name and email resolution is ALWAYS case-insensitive

DESIGN PRINCIPLES:
  1. Read-only: the engine never mutates catalog or directory records
  2. Injected: no module-level seed data, registries are constructor arguments
  3. Precision: costs use decimal.Decimal, never float

SEE ALSO:
  - pool/pool.go: capacity bookkeeping for one Software product
  - factory/seed.go: JSON seed data -> constructed registries
*/
package catalog

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SOFTWARE - License product catalog entry
// =============================================================================

type LicenseType string

const (
	LicensePerpetual    LicenseType = "perpetual"
	LicenseSubscription LicenseType = "subscription"
	LicenseConcurrent   LicenseType = "concurrent"
)

// ParseLicenseType resolves a license type case-insensitively.
func ParseLicenseType(s string) (LicenseType, error) {
	switch LicenseType(strings.ToLower(strings.TrimSpace(s))) {
	case LicensePerpetual:
		return LicensePerpetual, nil
	case LicenseSubscription:
		return LicenseSubscription, nil
	case LicenseConcurrent:
		return LicenseConcurrent, nil
	}
	return "", errors.New("unknown license type: " + s)
}

type CostFrequency string

const (
	CostOneTime CostFrequency = "one-time"
	CostMonthly CostFrequency = "monthly"
	CostAnnual  CostFrequency = "annual"
)

// Software is a catalog item. Immutable from the engine's perspective;
// administrative edits happen in the host application.
type Software struct {
	ID            string
	Name          string
	Vendor        string
	LicenseType   LicenseType
	Cost          decimal.Decimal // per seat, advisory only
	CostFrequency CostFrequency
}

// =============================================================================
// EMPLOYEE - Directory entry
// =============================================================================

type EmployeeStatus string

const (
	EmployeeActive    EmployeeStatus = "active"
	EmployeeInactive  EmployeeStatus = "inactive"
	EmployeeWithdrawn EmployeeStatus = "withdrawn"
	EmployeePreHire   EmployeeStatus = "pre-hire"
)

type Employee struct {
	ID         string
	Email      string
	Name       string
	Department string
	Status     EmployeeStatus
}

// Assignable reports whether assigning a seat to this employee is expected.
// Non-assignable employees still receive seats, but with a warning attached.
func (e Employee) Assignable() bool {
	return e.Status == EmployeeActive || e.Status == EmployeePreHire
}

// =============================================================================
// LOOKUP CONTRACTS
// =============================================================================

var (
	// ErrSoftwareNotFound is returned when a catalog lookup resolves nothing.
	ErrSoftwareNotFound = errors.New("software not found")

	// ErrEmployeeNotFound is returned when a directory lookup resolves nothing.
	ErrEmployeeNotFound = errors.New("employee not found")
)

// Registry is the software catalog lookup consumed by the engine.
type Registry interface {
	// FindByID returns the software with the given identifier.
	FindByID(ctx context.Context, id string) (Software, error)

	// FindByName resolves a product name case-insensitively.
	FindByName(ctx context.Context, name string) (Software, error)

	// List returns every catalog entry.
	List(ctx context.Context) ([]Software, error)
}

// Directory is the employee lookup consumed by the engine.
type Directory interface {
	// FindByID returns the employee with the given identifier.
	FindByID(ctx context.Context, id string) (Employee, error)

	// FindByEmail resolves an email case-insensitively.
	FindByEmail(ctx context.Context, email string) (Employee, error)

	// List returns every directory entry.
	List(ctx context.Context) ([]Employee, error)
}

// =============================================================================
// IN-MEMORY IMPLEMENTATIONS
// =============================================================================

// MemoryRegistry is a Registry backed by a map. The host seeds it once at
// startup; reads are safe for concurrent use.
type MemoryRegistry struct {
	mu     sync.RWMutex
	byID   map[string]Software
	byName map[string]Software // key: lowercased name
	order  []string
}

func NewMemoryRegistry(items ...Software) *MemoryRegistry {
	r := &MemoryRegistry{
		byID:   make(map[string]Software),
		byName: make(map[string]Software),
	}
	for _, s := range items {
		r.Add(s)
	}
	return r
}

func (r *MemoryRegistry) Add(s Software) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[s.ID]; !exists {
		r.order = append(r.order, s.ID)
	}
	r.byID[s.ID] = s
	r.byName[strings.ToLower(s.Name)] = s
}

func (r *MemoryRegistry) FindByID(_ context.Context, id string) (Software, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[id]
	if !ok {
		return Software{}, ErrSoftwareNotFound
	}
	return s, nil
}

func (r *MemoryRegistry) FindByName(_ context.Context, name string) (Software, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Software{}, ErrSoftwareNotFound
	}
	return s, nil
}

func (r *MemoryRegistry) List(_ context.Context) ([]Software, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Software, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out, nil
}

// MemoryDirectory is a Directory backed by a map, seeded at startup.
type MemoryDirectory struct {
	mu      sync.RWMutex
	byID    map[string]Employee
	byEmail map[string]Employee // key: lowercased email
	order   []string
}

func NewMemoryDirectory(items ...Employee) *MemoryDirectory {
	d := &MemoryDirectory{
		byID:    make(map[string]Employee),
		byEmail: make(map[string]Employee),
	}
	for _, e := range items {
		d.Add(e)
	}
	return d
}

func (d *MemoryDirectory) Add(e Employee) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.byID[e.ID]; !exists {
		d.order = append(d.order, e.ID)
	}
	d.byID[e.ID] = e
	d.byEmail[strings.ToLower(e.Email)] = e
}

func (d *MemoryDirectory) FindByID(_ context.Context, id string) (Employee, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.byID[id]
	if !ok {
		return Employee{}, ErrEmployeeNotFound
	}
	return e, nil
}

func (d *MemoryDirectory) FindByEmail(_ context.Context, email string) (Employee, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return Employee{}, ErrEmployeeNotFound
	}
	return e, nil
}

func (d *MemoryDirectory) List(_ context.Context) ([]Employee, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Employee, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.byID[id])
	}
	return out, nil
}
