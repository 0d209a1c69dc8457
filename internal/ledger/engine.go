package ledger

import (
	"fmt"
	"time"

	"github.com/mnkambule/sacco-service/internal/models"
	"github.com/shopspring/decimal"
)

// Config holds the scheme's policy values. They are injected rather than
// declared as package constants so the engine stays pure and testable.
type Config struct {
	InterestRate   decimal.Decimal // monthly rate at 4-digit scale, e.g. 0.2000
	DueDay         int             // day of month payments fall due
	InitialDeposit decimal.Decimal // credited on registration
	CloseTolerance decimal.Decimal // balance at or below this closes the loan
	Currency       string
}

// Engine implements the savings and loan state transitions. All functions
// operate on in-memory entity snapshots and emit transaction records; the
// caller is responsible for persisting both atomically.
type Engine struct {
	cfg Config
}

// NewEngine initializes an engine with the given policy configuration
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Config returns the policy configuration the engine was built with
func (e *Engine) Config() Config {
	return e.cfg
}

// NewMember builds a member snapshot credited with the initial deposit,
// together with the initial_deposit transaction recording it.
func (e *Engine) NewMember(fullName, memberID, email string, today time.Time) (*models.Member, *models.SavingsTransaction, error) {
	if fullName == "" {
		return nil, nil, fmt.Errorf("%w: full name is required", ErrValidation)
	}
	if memberID == "" {
		return nil, nil, fmt.Errorf("%w: member ID is required", ErrValidation)
	}

	member := &models.Member{
		MemberID:       memberID,
		FullName:       fullName,
		Email:          email,
		DateJoined:     DateOnly(today),
		SavingsBalance: e.cfg.InitialDeposit,
	}
	txn := &models.SavingsTransaction{
		Amount:      e.cfg.InitialDeposit,
		Type:        models.SavingsTypeInitialDeposit,
		Description: fmt.Sprintf("Initial deposit of %s %s", e.cfg.Currency, e.cfg.InitialDeposit.StringFixed(2)),
	}
	return member, txn, nil
}

// RecordSavingsPayment credits a subscription payment to the member's savings
// balance. Any positive amount is accepted at any time; there is no schedule
// enforcement and no upper bound.
func (e *Engine) RecordSavingsPayment(member *models.Member, amount decimal.Decimal) (*models.SavingsTransaction, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be greater than zero", ErrValidation)
	}

	member.SavingsBalance = member.SavingsBalance.Add(amount)
	return &models.SavingsTransaction{
		MemberID:    member.ID,
		Amount:      amount,
		Type:        models.SavingsTypeMonthlySubscription,
		Description: fmt.Sprintf("Monthly subscription payment of %s %s", e.cfg.Currency, amount.StringFixed(2)),
	}, nil
}

// IssueLoan creates a loan for the member. Interest is computed once, at
// issuance, on the principal only; later compounding applies to the running
// balance, never to the principal again.
func (e *Engine) IssueLoan(member *models.Member, hasActiveLoan bool, principal decimal.Decimal, today time.Time) (*models.Loan, *models.LoanTransaction, error) {
	if hasActiveLoan {
		return nil, nil, fmt.Errorf("%w: member %s already has an active loan", ErrConflict, member.MemberID)
	}
	if !principal.IsPositive() {
		return nil, nil, fmt.Errorf("%w: loan amount must be greater than zero", ErrValidation)
	}

	today = DateOnly(today)
	interest := principal.Mul(e.cfg.InterestRate).Round(2)
	total := principal.Add(interest)

	loan := &models.Loan{
		MemberID:        member.ID,
		PrincipalAmount: principal,
		InterestRate:    e.cfg.InterestRate,
		InterestAmount:  interest,
		TotalAmount:     total,
		CurrentBalance:  total,
		IssueDate:       today,
		NextDueDate:     NextDueDate(today, e.cfg.DueDay),
		IsActive:        true,
	}
	txn := &models.LoanTransaction{
		Amount: principal,
		Type:   models.LoanTypeIssued,
		Description: fmt.Sprintf("Loan issued: principal %s %s, interest %s %s",
			e.cfg.Currency, principal.StringFixed(2), e.cfg.Currency, interest.StringFixed(2)),
	}
	return loan, txn, nil
}

// Accrual reports the outcome of an overdue-interest pass over one loan.
// InterestApplied is informational for caller notification; it is not
// persisted as a separate field.
type Accrual struct {
	MonthsOverdue   int
	InterestApplied decimal.Decimal
	Transactions    []models.LoanTransaction
}

// AccrueOverdueInterest compounds interest on an overdue loan, one step per
// overdue calendar month, and rolls the due date forward from today. It never
// rejects input and is a no-op once the due date has been advanced past
// today, so redundant invocation is safe.
//
// Overdue months are a calendar-month difference that ignores day-of-month:
// a loan due on the 5th accrues nothing on the 6th of the same month but one
// full month on the 1st of the next. That is the scheme's billing policy and
// must not be replaced with a day count.
func (e *Engine) AccrueOverdueInterest(loan *models.Loan, today time.Time) Accrual {
	result := Accrual{InterestApplied: decimal.Zero}
	today = DateOnly(today)
	if !loan.NextDueDate.Before(today) {
		return result
	}

	monthsOverdue := (today.Year()-loan.NextDueDate.Year())*12 +
		int(today.Month()) - int(loan.NextDueDate.Month())
	if monthsOverdue <= 0 {
		// Unreachable after the date check above; kept as a guard.
		return result
	}

	before := loan.CurrentBalance
	for month := 1; month <= monthsOverdue; month++ {
		// Each step compounds on the balance after the previous step.
		interest := loan.CurrentBalance.Mul(e.cfg.InterestRate).Round(2)
		loan.CurrentBalance = loan.CurrentBalance.Add(interest)
		result.Transactions = append(result.Transactions, models.LoanTransaction{
			LoanID: loan.ID,
			Amount: interest,
			Type:   models.LoanTypeOverdueInterest,
			Description: fmt.Sprintf("Overdue interest (month %d): %s %s",
				month, e.cfg.Currency, interest.StringFixed(2)),
		})
	}

	loan.NextDueDate = NextDueDate(today, e.cfg.DueDay)
	result.MonthsOverdue = monthsOverdue
	result.InterestApplied = loan.CurrentBalance.Sub(before)
	return result
}

// ApplyRepayment records a payment against an active loan and closes it when
// the remaining balance falls within the close tolerance. Overdue interest
// must already be accrued for today so the balance being validated against is
// current. Returns the repayment record and whether the loan was closed.
func (e *Engine) ApplyRepayment(loan *models.Loan, amount decimal.Decimal, today time.Time) (*models.LoanTransaction, bool, error) {
	if !amount.IsPositive() {
		return nil, false, fmt.Errorf("%w: payment amount must be greater than zero", ErrValidation)
	}
	if amount.GreaterThan(loan.CurrentBalance) {
		return nil, false, fmt.Errorf("%w: payment amount %s exceeds outstanding balance %s",
			ErrValidation, amount.StringFixed(2), loan.CurrentBalance.StringFixed(2))
	}

	loan.CurrentBalance = loan.CurrentBalance.Sub(amount)
	txn := &models.LoanTransaction{
		LoanID:      loan.ID,
		Amount:      amount,
		Type:        models.LoanTypeRepayment,
		Description: fmt.Sprintf("Loan repayment of %s %s", e.cfg.Currency, amount.StringFixed(2)),
	}

	closed := false
	if loan.CurrentBalance.LessThanOrEqual(e.cfg.CloseTolerance) {
		// Residue within tolerance is written off, never refunded.
		loan.IsActive = false
		loan.CurrentBalance = decimal.Zero
		closed = true
	} else {
		// Any repayment resets the cycle relative to today, even when the
		// prior due date was still in the future.
		loan.NextDueDate = NextDueDate(DateOnly(today), e.cfg.DueDay)
	}
	return txn, closed, nil
}

// DaysOverdue returns whole days between the loan's due date and today, or
// zero when the loan is nil or not yet due.
func DaysOverdue(loan *models.Loan, today time.Time) int {
	if loan == nil || !loan.IsActive {
		return 0
	}
	today = DateOnly(today)
	if !loan.NextDueDate.Before(today) {
		return 0
	}
	return int(today.Sub(loan.NextDueDate).Hours() / 24)
}
