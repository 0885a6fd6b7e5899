package models

import (
	"time"

	"github.com/google/uuid"
)

// Balance is one pooled treasury holding.
type Balance struct {
	Asset  string `json:"asset"`
	Amount int64  `json:"amount"`
}

// Rate is a cached exchange rate, expressed as asset units per USD.
type Rate struct {
	Asset     string    `json:"asset"`
	UsdRate   int64     `json:"usdRate"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Settings is the single global configuration row of the ledger.
type Settings struct {
	Suspended       bool   `json:"suspended"`
	RunwayLimitDays int64  `json:"runwayLimitDays"`
	OracleAccount   string `json:"oracleAccount"`
}

// PayoutLine is one disbursed portion of a payday, in its target asset.
type PayoutLine struct {
	Asset     string `json:"asset"`
	Amount    int64  `json:"amount"`    // asset units credited to the employee
	UsdAmount int64  `json:"usdAmount"` // USD value the line was derived from
}

// Payout is a recorded payday result, one row per disbursed line.
type Payout struct {
	ID         int64     `json:"id"`
	Reference  uuid.UUID `json:"reference"`
	EmployeeID int64     `json:"employeeId"`
	Asset      string    `json:"asset"`
	Amount     int64     `json:"amount"`
	UsdAmount  int64     `json:"usdAmount"`
	PaidAt     time.Time `json:"paidAt"`
}
