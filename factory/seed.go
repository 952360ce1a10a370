/*
Package factory converts JSON seed definitions into constructed registries.

PURPOSE:
  The catalog and directory are read-only collaborators supplied by the host.
  This package parses a JSON seed document (software products, employees,
  pools) into the injected in-memory lookups and pool records, replacing
  module-level hardcoded seed data with configuration supplied at
  construction.

WHY JSON?
  - Non-developers can edit the seed (demo data, staging fixtures)
  - Easy to version control
  - The same document shape works for tests and the dev server

JSON SCHEMA:
  {
    "software": [
      {"id": "sw-1", "name": "Acme Design Suite", "vendor": "Acme",
       "license_type": "subscription", "cost": "29.99", "cost_frequency": "monthly"}
    ],
    "employees": [
      {"id": "emp-1", "email": "jane@example.com", "name": "Jane Doe",
       "department": "Design", "status": "active"}
    ],
    "pools": [
      {"software_id": "sw-1", "total_seats": 10,
       "renewal_frequency": "annual", "renewal_date": "2026-01-01"}
    ]
  }

SEE ALSO:
  - catalog/catalog.go: the registries being constructed
  - cmd/server/main.go: loads the seed at startup
*/
package factory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/license-engine/catalog"
	"github.com/warp/license-engine/pool"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

type SeedJSON struct {
	Software  []SoftwareJSON `json:"software"`
	Employees []EmployeeJSON `json:"employees"`
	Pools     []PoolJSON     `json:"pools"`
}

type SoftwareJSON struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Vendor        string `json:"vendor"`
	LicenseType   string `json:"license_type"`
	Cost          string `json:"cost"`
	CostFrequency string `json:"cost_frequency"`
}

type EmployeeJSON struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	Department string `json:"department"`
	Status     string `json:"status"`
}

type PoolJSON struct {
	ID               string `json:"id,omitempty"`
	SoftwareID       string `json:"software_id"`
	TotalSeats       int    `json:"total_seats"`
	RenewalFrequency string `json:"renewal_frequency,omitempty"`
	RenewalDate      string `json:"renewal_date,omitempty"` // YYYY-MM-DD
}

// Seed is the constructed result: injected lookups plus pool records ready
// to persist.
type Seed struct {
	Registry  *catalog.MemoryRegistry
	Directory *catalog.MemoryDirectory
	Pools     []pool.Pool
}

// =============================================================================
// PARSING
// =============================================================================

// Parse validates and converts a seed document.
func Parse(data []byte) (*Seed, error) {
	var doc SeedJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid seed JSON: %w", err)
	}

	seed := &Seed{
		Registry:  catalog.NewMemoryRegistry(),
		Directory: catalog.NewMemoryDirectory(),
	}

	for i, sj := range doc.Software {
		sw, err := parseSoftware(sj)
		if err != nil {
			return nil, fmt.Errorf("software[%d]: %w", i, err)
		}
		seed.Registry.Add(sw)
	}

	for i, ej := range doc.Employees {
		emp, err := parseEmployee(ej)
		if err != nil {
			return nil, fmt.Errorf("employees[%d]: %w", i, err)
		}
		seed.Directory.Add(emp)
	}

	for i, pj := range doc.Pools {
		p, err := parsePool(pj, seed.Registry)
		if err != nil {
			return nil, fmt.Errorf("pools[%d]: %w", i, err)
		}
		seed.Pools = append(seed.Pools, p)
	}

	return seed, nil
}

// Load reads and parses a seed file.
func Load(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}
	return Parse(data)
}

// Apply persists the seed's pools into the given store.
func (s *Seed) Apply(ctx context.Context, pools pool.Store) error {
	for _, p := range s.Pools {
		if err := pools.SavePool(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func parseSoftware(sj SoftwareJSON) (catalog.Software, error) {
	if sj.ID == "" || sj.Name == "" {
		return catalog.Software{}, fmt.Errorf("id and name are required")
	}
	lt, err := catalog.ParseLicenseType(sj.LicenseType)
	if err != nil {
		return catalog.Software{}, err
	}

	cost := decimal.Zero
	if sj.Cost != "" {
		cost, err = decimal.NewFromString(sj.Cost)
		if err != nil {
			return catalog.Software{}, fmt.Errorf("invalid cost %q: %w", sj.Cost, err)
		}
	}

	freq := catalog.CostFrequency(sj.CostFrequency)
	switch freq {
	case catalog.CostOneTime, catalog.CostMonthly, catalog.CostAnnual:
	case "":
		freq = catalog.CostOneTime
	default:
		return catalog.Software{}, fmt.Errorf("unknown cost frequency %q", sj.CostFrequency)
	}

	return catalog.Software{
		ID:            sj.ID,
		Name:          sj.Name,
		Vendor:        sj.Vendor,
		LicenseType:   lt,
		Cost:          cost,
		CostFrequency: freq,
	}, nil
}

func parseEmployee(ej EmployeeJSON) (catalog.Employee, error) {
	if ej.ID == "" || ej.Email == "" {
		return catalog.Employee{}, fmt.Errorf("id and email are required")
	}
	status := catalog.EmployeeStatus(ej.Status)
	switch status {
	case catalog.EmployeeActive, catalog.EmployeeInactive, catalog.EmployeeWithdrawn, catalog.EmployeePreHire:
	case "":
		status = catalog.EmployeeActive
	default:
		return catalog.Employee{}, fmt.Errorf("unknown employee status %q", ej.Status)
	}

	return catalog.Employee{
		ID:         ej.ID,
		Email:      ej.Email,
		Name:       ej.Name,
		Department: ej.Department,
		Status:     status,
	}, nil
}

func parsePool(pj PoolJSON, reg *catalog.MemoryRegistry) (pool.Pool, error) {
	sw, err := reg.FindByID(context.Background(), pj.SoftwareID)
	if err != nil {
		return pool.Pool{}, fmt.Errorf("pool references unknown software %q", pj.SoftwareID)
	}

	var renewal *pool.RenewalInfo
	if pj.RenewalFrequency != "" || pj.RenewalDate != "" {
		renewal = &pool.RenewalInfo{Frequency: pj.RenewalFrequency}
		if pj.RenewalDate != "" {
			t, err := time.Parse("2006-01-02", pj.RenewalDate)
			if err != nil {
				return pool.Pool{}, fmt.Errorf("invalid renewal_date %q: %w", pj.RenewalDate, err)
			}
			renewal.Date = &t
		}
	}

	p, err := pool.New(sw.ID, sw.LicenseType, pj.TotalSeats, renewal)
	if err != nil {
		return pool.Pool{}, err
	}
	if pj.ID != "" {
		p.ID = pj.ID
	}
	return p, nil
}
