package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Member represents a registered member of the savings scheme
type Member struct {
	ID             int64           `json:"id"`
	MemberID       string          `json:"member_id"`
	FullName       string          `json:"full_name"`
	Email          string          `json:"email,omitempty"`
	DateJoined     time.Time       `json:"date_joined"`
	SavingsBalance decimal.Decimal `json:"savings_balance"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}
