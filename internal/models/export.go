package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MemberExportRow pairs a member with its active loan, if any, for the
// members report.
type MemberExportRow struct {
	Member     Member
	ActiveLoan *Loan
}

// TransactionExportRow is a denormalized transaction row for report exports.
// LoanBalance is nil for savings rows.
type TransactionExportRow struct {
	Date        time.Time
	MemberID    string
	MemberName  string
	Type        string
	Category    string
	Amount      decimal.Decimal
	Description string
	LoanBalance *decimal.Decimal
}
