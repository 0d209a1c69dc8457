package models

import "github.com/shopspring/decimal"

// MemberSummary represents a member overview with loan standing
type MemberSummary struct {
	Member      *Member           `json:"member"`
	ActiveLoan  *Loan             `json:"active_loan,omitempty"`
	DaysOverdue int               `json:"days_overdue"`
	LoanHistory []LoanTransaction `json:"loan_history,omitempty"`
}

// DashboardStats represents scheme-wide totals for the overview page
type DashboardStats struct {
	TotalMembers     int             `json:"total_members"`
	TotalSavings     decimal.Decimal `json:"total_savings"`
	TotalLoanBalance decimal.Decimal `json:"total_loan_balance"`
	OverdueLoans     int             `json:"overdue_loans"`
}
