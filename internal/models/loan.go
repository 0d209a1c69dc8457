package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Loan represents a loan issued to a member
type Loan struct {
	ID              int64           `json:"id"`
	MemberID        int64           `json:"member_id"`
	PrincipalAmount decimal.Decimal `json:"principal_amount"`
	InterestRate    decimal.Decimal `json:"interest_rate"` // 4-digit scale, e.g. 0.2000
	InterestAmount  decimal.Decimal `json:"interest_amount"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	CurrentBalance  decimal.Decimal `json:"current_balance"`
	IssueDate       time.Time       `json:"issue_date"`
	NextDueDate     time.Time       `json:"next_due_date"`
	IsActive        bool            `json:"is_active"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
