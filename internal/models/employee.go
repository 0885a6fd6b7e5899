package models

import "time"

// DefaultAsset is the implicit settlement asset. Every employee may allocate
// into it without it being listed in their allowed set, and its USD rate is
// always 1, so it never appears in the rate cache.
const DefaultAsset = "USD"

// Employee represents a single roster record. Records are never deleted:
// removal flips Active to false and freezes the rest for audit.
type Employee struct {
	ID               int64     `json:"id"`
	Account          string    `json:"account"`       // payee identity, immutable after creation
	FullName         string    `json:"fullname"`
	Email            string    `json:"email"`
	Active           bool      `json:"active"`
	YearlySalary     int64     `json:"yearlySalary"`  // USD per year
	LastPayoutAt     time.Time `json:"lastPayoutAt"`
	LastAllocationAt time.Time `json:"lastAllocationAt"` // zero until the first allocation
	AllowedAssets    []string  `json:"allowedAssets"`
	CreatedAt        time.Time `json:"createdAt"`
}

// AllowedAsset reports whether the employee may allocate into the given asset.
// The default asset is always allowed.
func (e Employee) AllowedAsset(asset string) bool {
	if asset == DefaultAsset {
		return true
	}
	for _, a := range e.AllowedAssets {
		if a == asset {
			return true
		}
	}
	return false
}

// AllocationLine is one entry of an employee's salary split.
type AllocationLine struct {
	Asset   string `json:"asset"`
	Percent int64  `json:"percent"`
}
