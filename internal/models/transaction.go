package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Savings transaction types
const (
	SavingsTypeInitialDeposit      = "initial_deposit"
	SavingsTypeMonthlySubscription = "monthly_subscription"
)

// Loan transaction types
const (
	LoanTypeIssued          = "loan_issued"
	LoanTypeRepayment       = "repayment"
	LoanTypeOverdueInterest = "overdue_interest"
)

// SavingsTransaction is an append-only audit record of a savings movement
type SavingsTransaction struct {
	ID          int64           `json:"id"`
	MemberID    int64           `json:"member_id"`
	Amount      decimal.Decimal `json:"amount"`
	Type        string          `json:"type"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"created_at"`
}

// LoanTransaction is an append-only audit record tied to one loan
type LoanTransaction struct {
	ID          int64           `json:"id"`
	LoanID      int64           `json:"loan_id"`
	Amount      decimal.Decimal `json:"amount"`
	Type        string          `json:"type"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"created_at"`
}
