package ledger_test

import (
	"testing"
	"time"

	"github.com/mnkambule/sacco-service/internal/ledger"
	"github.com/mnkambule/sacco-service/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEngine() *ledger.Engine {
	return ledger.NewEngine(ledger.Config{
		InterestRate:   decimal.RequireFromString("0.2000"),
		DueDay:         5,
		InitialDeposit: decimal.RequireFromString("1000.00"),
		CloseTolerance: decimal.RequireFromString("0.01"),
		Currency:       "SZL",
	})
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestNewMember(t *testing.T) {
	e := testEngine()

	member, txn, err := e.NewMember("Thandi Dlamini", "MBR-001", "thandi@example.com", date(2024, time.March, 1))
	require.NoError(t, err)

	assert.Equal(t, "1000.00", member.SavingsBalance.StringFixed(2))
	assert.True(t, member.DateJoined.Equal(date(2024, time.March, 1)))
	assert.Equal(t, models.SavingsTypeInitialDeposit, txn.Type)
	assert.Equal(t, "1000.00", txn.Amount.StringFixed(2))

	_, _, err = e.NewMember("", "MBR-002", "", date(2024, time.March, 1))
	assert.ErrorIs(t, err, ledger.ErrValidation)

	_, _, err = e.NewMember("No ID", "", "", date(2024, time.March, 1))
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

func TestRecordSavingsPayment(t *testing.T) {
	e := testEngine()

	t.Run("credits balance by exactly the amount", func(t *testing.T) {
		member := &models.Member{ID: 1, SavingsBalance: dec("1000.00")}
		txn, err := e.RecordSavingsPayment(member, dec("500.00"))
		require.NoError(t, err)
		assert.Equal(t, "1500.00", member.SavingsBalance.StringFixed(2))
		assert.Equal(t, models.SavingsTypeMonthlySubscription, txn.Type)
		assert.Equal(t, "500.00", txn.Amount.StringFixed(2))
		assert.Equal(t, int64(1), txn.MemberID)
	})

	t.Run("rejects non-positive amounts", func(t *testing.T) {
		member := &models.Member{ID: 1, SavingsBalance: dec("1000.00")}
		for _, amount := range []string{"0.00", "-25.00"} {
			_, err := e.RecordSavingsPayment(member, dec(amount))
			assert.ErrorIs(t, err, ledger.ErrValidation)
		}
		assert.Equal(t, "1000.00", member.SavingsBalance.StringFixed(2))
	})
}

func TestIssueLoan(t *testing.T) {
	e := testEngine()
	member := &models.Member{ID: 7, MemberID: "MBR-007"}

	t.Run("computes interest once on principal", func(t *testing.T) {
		loan, txn, err := e.IssueLoan(member, false, dec("10000.00"), date(2024, time.March, 1))
		require.NoError(t, err)

		assert.Equal(t, "10000.00", loan.PrincipalAmount.StringFixed(2))
		assert.Equal(t, "2000.00", loan.InterestAmount.StringFixed(2))
		assert.Equal(t, "12000.00", loan.TotalAmount.StringFixed(2))
		assert.Equal(t, "12000.00", loan.CurrentBalance.StringFixed(2))
		assert.Equal(t, "0.2000", loan.InterestRate.StringFixed(4))
		assert.True(t, loan.IsActive)
		assert.True(t, loan.IssueDate.Equal(date(2024, time.March, 1)))
		assert.True(t, loan.NextDueDate.Equal(date(2024, time.March, 5)))

		assert.Equal(t, models.LoanTypeIssued, txn.Type)
		assert.Equal(t, "10000.00", txn.Amount.StringFixed(2))
	})

	t.Run("due date rolls when issued after the due day", func(t *testing.T) {
		loan, _, err := e.IssueLoan(member, false, dec("100.00"), date(2024, time.March, 20))
		require.NoError(t, err)
		assert.True(t, loan.NextDueDate.Equal(date(2024, time.April, 5)))
	})

	t.Run("rejects a second active loan", func(t *testing.T) {
		_, _, err := e.IssueLoan(member, true, dec("100.00"), date(2024, time.March, 1))
		assert.ErrorIs(t, err, ledger.ErrConflict)
	})

	t.Run("rejects non-positive principal", func(t *testing.T) {
		_, _, err := e.IssueLoan(member, false, dec("0.00"), date(2024, time.March, 1))
		assert.ErrorIs(t, err, ledger.ErrValidation)
	})
}

func TestAccrueOverdueInterest(t *testing.T) {
	e := testEngine()

	newLoan := func(balance string, due time.Time) *models.Loan {
		return &models.Loan{
			ID:             3,
			CurrentBalance: dec(balance),
			NextDueDate:    due,
			IsActive:       true,
		}
	}

	t.Run("no-op when not yet due", func(t *testing.T) {
		loan := newLoan("1000.00", date(2024, time.April, 5))
		result := e.AccrueOverdueInterest(loan, date(2024, time.March, 20))
		assert.Equal(t, 0, result.MonthsOverdue)
		assert.True(t, result.InterestApplied.IsZero())
		assert.Empty(t, result.Transactions)
		assert.Equal(t, "1000.00", loan.CurrentBalance.StringFixed(2))
		assert.True(t, loan.NextDueDate.Equal(date(2024, time.April, 5)))
	})

	t.Run("no-op one day past due within the same month", func(t *testing.T) {
		// Calendar-month difference ignores day-of-month.
		loan := newLoan("1000.00", date(2024, time.March, 5))
		result := e.AccrueOverdueInterest(loan, date(2024, time.March, 6))
		assert.Equal(t, 0, result.MonthsOverdue)
		assert.Equal(t, "1000.00", loan.CurrentBalance.StringFixed(2))
	})

	t.Run("one month on the first of the following month", func(t *testing.T) {
		loan := newLoan("1000.00", date(2024, time.March, 5))
		result := e.AccrueOverdueInterest(loan, date(2024, time.April, 1))
		assert.Equal(t, 1, result.MonthsOverdue)
		assert.Equal(t, "200.00", result.InterestApplied.StringFixed(2))
		assert.Equal(t, "1200.00", loan.CurrentBalance.StringFixed(2))
		require.Len(t, result.Transactions, 1)
		assert.Equal(t, models.LoanTypeOverdueInterest, result.Transactions[0].Type)
		// Due date recomputed from today, not from the old due date.
		assert.True(t, loan.NextDueDate.Equal(date(2024, time.April, 5)))
	})

	t.Run("three months compound geometrically", func(t *testing.T) {
		loan := newLoan("1000.00", date(2024, time.January, 5))
		result := e.AccrueOverdueInterest(loan, date(2024, time.April, 10))

		assert.Equal(t, 3, result.MonthsOverdue)
		assert.Equal(t, "1728.00", loan.CurrentBalance.StringFixed(2))
		assert.Equal(t, "728.00", result.InterestApplied.StringFixed(2))
		require.Len(t, result.Transactions, 3)
		assert.Equal(t, "200.00", result.Transactions[0].Amount.StringFixed(2))
		assert.Equal(t, "240.00", result.Transactions[1].Amount.StringFixed(2))
		assert.Equal(t, "288.00", result.Transactions[2].Amount.StringFixed(2))
		assert.Contains(t, result.Transactions[0].Description, "month 1")
		assert.Contains(t, result.Transactions[2].Description, "month 3")
		assert.True(t, loan.NextDueDate.Equal(date(2024, time.May, 5)))
	})

	t.Run("idempotent for the same reference date", func(t *testing.T) {
		loan := newLoan("1000.00", date(2024, time.January, 5))
		today := date(2024, time.April, 10)

		first := e.AccrueOverdueInterest(loan, today)
		assert.Equal(t, 3, first.MonthsOverdue)

		second := e.AccrueOverdueInterest(loan, today)
		assert.Equal(t, 0, second.MonthsOverdue)
		assert.True(t, second.InterestApplied.IsZero())
		assert.Equal(t, "1728.00", loan.CurrentBalance.StringFixed(2))
	})
}

func TestApplyRepayment(t *testing.T) {
	e := testEngine()

	newLoan := func(balance string) *models.Loan {
		return &models.Loan{
			ID:             3,
			CurrentBalance: dec(balance),
			NextDueDate:    date(2024, time.March, 5),
			IsActive:       true,
		}
	}

	t.Run("partial payment rolls the due date forward", func(t *testing.T) {
		loan := newLoan("1200.00")
		txn, closed, err := e.ApplyRepayment(loan, dec("200.00"), date(2024, time.March, 10))
		require.NoError(t, err)

		assert.False(t, closed)
		assert.True(t, loan.IsActive)
		assert.Equal(t, "1000.00", loan.CurrentBalance.StringFixed(2))
		assert.True(t, loan.NextDueDate.Equal(date(2024, time.April, 5)))
		assert.Equal(t, models.LoanTypeRepayment, txn.Type)
		assert.Equal(t, "200.00", txn.Amount.StringFixed(2))
	})

	t.Run("full payment closes the loan", func(t *testing.T) {
		loan := newLoan("1200.00")
		_, closed, err := e.ApplyRepayment(loan, dec("1200.00"), date(2024, time.March, 10))
		require.NoError(t, err)

		assert.True(t, closed)
		assert.False(t, loan.IsActive)
		assert.Equal(t, "0.00", loan.CurrentBalance.StringFixed(2))
	})

	t.Run("residue within tolerance is written off", func(t *testing.T) {
		loan := newLoan("1200.00")
		_, closed, err := e.ApplyRepayment(loan, dec("1199.99"), date(2024, time.March, 10))
		require.NoError(t, err)

		assert.True(t, closed)
		assert.False(t, loan.IsActive)
		assert.Equal(t, "0.00", loan.CurrentBalance.StringFixed(2))
	})

	t.Run("residue above tolerance keeps the loan open", func(t *testing.T) {
		loan := newLoan("1200.00")
		_, closed, err := e.ApplyRepayment(loan, dec("1199.98"), date(2024, time.March, 10))
		require.NoError(t, err)

		assert.False(t, closed)
		assert.True(t, loan.IsActive)
		assert.Equal(t, "0.02", loan.CurrentBalance.StringFixed(2))
	})

	t.Run("overpayment is rejected and the balance unchanged", func(t *testing.T) {
		loan := newLoan("1200.00")
		_, _, err := e.ApplyRepayment(loan, dec("1200.01"), date(2024, time.March, 10))
		assert.ErrorIs(t, err, ledger.ErrValidation)
		assert.Equal(t, "1200.00", loan.CurrentBalance.StringFixed(2))
		assert.True(t, loan.IsActive)
	})

	t.Run("non-positive payment is rejected", func(t *testing.T) {
		loan := newLoan("1200.00")
		_, _, err := e.ApplyRepayment(loan, dec("0.00"), date(2024, time.March, 10))
		assert.ErrorIs(t, err, ledger.ErrValidation)
	})
}

func TestDaysOverdue(t *testing.T) {
	loan := &models.Loan{
		NextDueDate: date(2024, time.March, 5),
		IsActive:    true,
	}

	assert.Equal(t, 0, ledger.DaysOverdue(nil, date(2024, time.March, 10)))
	assert.Equal(t, 0, ledger.DaysOverdue(loan, date(2024, time.March, 5)))
	assert.Equal(t, 0, ledger.DaysOverdue(loan, date(2024, time.February, 20)))
	assert.Equal(t, 5, ledger.DaysOverdue(loan, date(2024, time.March, 10)))
	assert.Equal(t, 31, ledger.DaysOverdue(loan, date(2024, time.April, 5)))
}
