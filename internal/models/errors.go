package models

import "errors"

// Failure kinds reported by ledger operations. Every failure leaves the ledger
// untouched; callers may correct the condition and retry.
var (
	// Authorization failures.
	ErrNotAdmin  = errors.New("caller is not the administrator")
	ErrNotOracle = errors.New("caller is not the oracle")
	ErrNotSelf   = errors.New("caller is not an active employee")

	// Lifecycle violations.
	ErrEmployeeNotFound = errors.New("employee does not exist")
	ErrEmployeeInactive = errors.New("employee is not active")
	ErrDuplicateAccount = errors.New("account already belongs to an active employee")

	// Time-lock violations.
	ErrAllocationLocked = errors.New("allocation cooldown has not elapsed")
	ErrPayoutTooSoon    = errors.New("no salary owed yet")

	// Validation failures.
	ErrInvalidSalary     = errors.New("salary must be positive")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrInvalidRate       = errors.New("exchange rate must be positive")
	ErrInvalidLimit      = errors.New("runway limit must be positive")
	ErrInvalidAllocation = errors.New("allocation percentages must sum to 100")
	ErrAssetNotAllowed   = errors.New("asset is not allowed for this employee")
	ErrUnknownAsset      = errors.New("asset is not accepted")

	// Capacity violations.
	ErrRunwayExceeded    = errors.New("deposit would exceed the runway limit")
	ErrInsufficientFunds = errors.New("treasury balance is insufficient")

	// Suspension violations.
	ErrSuspended    = errors.New("operations are suspended")
	ErrNotSuspended = errors.New("operations are not suspended")
)
