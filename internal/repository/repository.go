package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/mnkambule/sacco-service/internal/ledger"
	"github.com/mnkambule/sacco-service/internal/models"
	"github.com/shopspring/decimal"
)

// Repository provides database operations
type Repository struct {
	db *sql.DB
}

// NewRepository initializes a new repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// withTx runs fn inside a single transaction so a balance update and its
// transaction rows commit or roll back together.
func (r *Repository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// CreateStaff creates a new staff user
func (r *Repository) CreateStaff(ctx context.Context, staff *models.Staff) error {
	query := `
		INSERT INTO sacco.staff (username, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query, staff.Username, staff.Email, staff.PasswordHash).
		Scan(&staff.ID, &staff.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("staff email %s already registered: %w", staff.Email, ledger.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to create staff user: %w", err)
	}
	return nil
}

// FindStaffByEmail retrieves a staff user by email
func (r *Repository) FindStaffByEmail(ctx context.Context, email string) (*models.Staff, error) {
	staff := &models.Staff{}
	query := `
		SELECT id, username, email, password_hash, created_at
		FROM sacco.staff
		WHERE email = $1`
	err := r.db.QueryRowContext(ctx, query, email).
		Scan(&staff.ID, &staff.Username, &staff.Email, &staff.PasswordHash, &staff.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("staff user %s: %w", email, ledger.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find staff user: %w", err)
	}
	return staff, nil
}

// CreateMember creates a member together with its initial deposit transaction
func (r *Repository) CreateMember(ctx context.Context, member *models.Member, txn *models.SavingsTransaction) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		query := `
			INSERT INTO sacco.members (member_id, full_name, email, date_joined, savings_balance, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
			RETURNING id, created_at, updated_at`
		err := tx.QueryRowContext(ctx, query,
			member.MemberID, member.FullName, member.Email, member.DateJoined, member.SavingsBalance).
			Scan(&member.ID, &member.CreatedAt, &member.UpdatedAt)
		if isUniqueViolation(err) {
			return fmt.Errorf("member ID %s already exists: %w", member.MemberID, ledger.ErrConflict)
		}
		if err != nil {
			return fmt.Errorf("failed to create member: %w", err)
		}
		txn.MemberID = member.ID
		return insertSavingsTransaction(ctx, tx, txn)
	})
}

// FindMemberByMemberID retrieves a member by its unique scheme identifier
func (r *Repository) FindMemberByMemberID(ctx context.Context, memberID string) (*models.Member, error) {
	member := &models.Member{}
	query := `
		SELECT id, member_id, full_name, email, date_joined, savings_balance, created_at, updated_at
		FROM sacco.members
		WHERE member_id = $1`
	err := r.db.QueryRowContext(ctx, query, memberID).
		Scan(&member.ID, &member.MemberID, &member.FullName, &member.Email,
			&member.DateJoined, &member.SavingsBalance, &member.CreatedAt, &member.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("member %s: %w", memberID, ledger.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find member: %w", err)
	}
	return member, nil
}

// FindMemberByID retrieves a member by its database row ID
func (r *Repository) FindMemberByID(ctx context.Context, id int64) (*models.Member, error) {
	member := &models.Member{}
	query := `
		SELECT id, member_id, full_name, email, date_joined, savings_balance, created_at, updated_at
		FROM sacco.members
		WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&member.ID, &member.MemberID, &member.FullName, &member.Email,
			&member.DateJoined, &member.SavingsBalance, &member.CreatedAt, &member.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("member id %d: %w", id, ledger.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find member: %w", err)
	}
	return member, nil
}

// ListMembers retrieves all members ordered by join date
func (r *Repository) ListMembers(ctx context.Context) ([]models.Member, error) {
	query := `
		SELECT id, member_id, full_name, email, date_joined, savings_balance, created_at, updated_at
		FROM sacco.members
		ORDER BY date_joined, member_id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []models.Member
	for rows.Next() {
		var m models.Member
		if err := rows.Scan(&m.ID, &m.MemberID, &m.FullName, &m.Email,
			&m.DateJoined, &m.SavingsBalance, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// SaveSavingsPayment persists the updated savings balance and its transaction
// record in one unit of work.
func (r *Repository) SaveSavingsPayment(ctx context.Context, member *models.Member, txn *models.SavingsTransaction) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		query := `
			UPDATE sacco.members
			SET savings_balance = $1, updated_at = CURRENT_TIMESTAMP
			WHERE id = $2`
		if _, err := tx.ExecContext(ctx, query, member.SavingsBalance, member.ID); err != nil {
			return fmt.Errorf("failed to update savings balance: %w", err)
		}
		return insertSavingsTransaction(ctx, tx, txn)
	})
}

func insertSavingsTransaction(ctx context.Context, tx *sql.Tx, txn *models.SavingsTransaction) error {
	query := `
		INSERT INTO sacco.savings_transactions (member_id, amount, transaction_type, description, created_at)
		VALUES ($1, $2, $3, $4, CURRENT_TIMESTAMP)
		RETURNING id, created_at`
	err := tx.QueryRowContext(ctx, query, txn.MemberID, txn.Amount, txn.Type, txn.Description).
		Scan(&txn.ID, &txn.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record savings transaction: %w", err)
	}
	return nil
}

const loanColumns = `id, member_id, principal_amount, interest_rate, interest_amount,
	total_amount, current_balance, issue_date, next_due_date, is_active, created_at, updated_at`

func scanLoan(row interface{ Scan(...any) error }) (*models.Loan, error) {
	loan := &models.Loan{}
	err := row.Scan(&loan.ID, &loan.MemberID, &loan.PrincipalAmount, &loan.InterestRate,
		&loan.InterestAmount, &loan.TotalAmount, &loan.CurrentBalance,
		&loan.IssueDate, &loan.NextDueDate, &loan.IsActive, &loan.CreatedAt, &loan.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return loan, nil
}

// CreateLoan creates a loan together with its loan_issued transaction
func (r *Repository) CreateLoan(ctx context.Context, loan *models.Loan, txn *models.LoanTransaction) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		query := `
			INSERT INTO sacco.loans (member_id, principal_amount, interest_rate, interest_amount,
				total_amount, current_balance, issue_date, next_due_date, is_active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
			RETURNING id, created_at, updated_at`
		err := tx.QueryRowContext(ctx, query,
			loan.MemberID, loan.PrincipalAmount, loan.InterestRate, loan.InterestAmount,
			loan.TotalAmount, loan.CurrentBalance, loan.IssueDate, loan.NextDueDate, loan.IsActive).
			Scan(&loan.ID, &loan.CreatedAt, &loan.UpdatedAt)
		if isUniqueViolation(err) {
			// The partial unique index on (member_id) WHERE is_active backs
			// the one-active-loan invariant at the store level too.
			return fmt.Errorf("member already has an active loan: %w", ledger.ErrConflict)
		}
		if err != nil {
			return fmt.Errorf("failed to create loan: %w", err)
		}
		txn.LoanID = loan.ID
		return insertLoanTransaction(ctx, tx, txn)
	})
}

// FindActiveLoanByMember retrieves the member's single active loan
func (r *Repository) FindActiveLoanByMember(ctx context.Context, memberRowID int64) (*models.Loan, error) {
	query := `SELECT ` + loanColumns + `
		FROM sacco.loans
		WHERE member_id = $1 AND is_active`
	loan, err := scanLoan(r.db.QueryRowContext(ctx, query, memberRowID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no active loan for member: %w", ledger.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find active loan: %w", err)
	}
	return loan, nil
}

// ListActiveLoans retrieves all active loans ordered by due date
func (r *Repository) ListActiveLoans(ctx context.Context) ([]models.Loan, error) {
	query := `SELECT ` + loanColumns + `
		FROM sacco.loans
		WHERE is_active
		ORDER BY next_due_date`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list active loans: %w", err)
	}
	defer rows.Close()

	var loans []models.Loan
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan loan: %w", err)
		}
		loans = append(loans, *loan)
	}
	return loans, rows.Err()
}

// SaveLoan persists a mutated loan snapshot and appends its transaction
// records in one unit of work. The loan row is locked before the update so
// concurrent accrual and repayment on the same loan serialize in the store.
func (r *Repository) SaveLoan(ctx context.Context, loan *models.Loan, txns []models.LoanTransaction) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`SELECT id FROM sacco.loans WHERE id = $1 FOR UPDATE`, loan.ID); err != nil {
			return fmt.Errorf("failed to lock loan: %w", err)
		}
		query := `
			UPDATE sacco.loans
			SET current_balance = $1, next_due_date = $2, is_active = $3, updated_at = CURRENT_TIMESTAMP
			WHERE id = $4`
		if _, err := tx.ExecContext(ctx, query,
			loan.CurrentBalance, loan.NextDueDate, loan.IsActive, loan.ID); err != nil {
			return fmt.Errorf("failed to update loan: %w", err)
		}
		for i := range txns {
			txns[i].LoanID = loan.ID
			if err := insertLoanTransaction(ctx, tx, &txns[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// SaveLoans persists a batch of mutated loans and their transaction records
// in a single commit. Rows are locked in id order to keep concurrent batches
// from deadlocking.
func (r *Repository) SaveLoans(ctx context.Context, loans []*models.Loan, txns []models.LoanTransaction) error {
	if len(loans) == 0 {
		return nil
	}
	return r.withTx(ctx, func(tx *sql.Tx) error {
		ids := make([]int64, len(loans))
		for i, loan := range loans {
			ids[i] = loan.ID
		}
		if _, err := tx.ExecContext(ctx,
			`SELECT id FROM sacco.loans WHERE id = ANY($1) ORDER BY id FOR UPDATE`, pq.Array(ids)); err != nil {
			return fmt.Errorf("failed to lock loans: %w", err)
		}
		for _, loan := range loans {
			query := `
				UPDATE sacco.loans
				SET current_balance = $1, next_due_date = $2, is_active = $3, updated_at = CURRENT_TIMESTAMP
				WHERE id = $4`
			if _, err := tx.ExecContext(ctx, query,
				loan.CurrentBalance, loan.NextDueDate, loan.IsActive, loan.ID); err != nil {
				return fmt.Errorf("failed to update loan %d: %w", loan.ID, err)
			}
		}
		for i := range txns {
			if err := insertLoanTransaction(ctx, tx, &txns[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func insertLoanTransaction(ctx context.Context, tx *sql.Tx, txn *models.LoanTransaction) error {
	query := `
		INSERT INTO sacco.loan_transactions (loan_id, amount, transaction_type, description, created_at)
		VALUES ($1, $2, $3, $4, CURRENT_TIMESTAMP)
		RETURNING id, created_at`
	err := tx.QueryRowContext(ctx, query, txn.LoanID, txn.Amount, txn.Type, txn.Description).
		Scan(&txn.ID, &txn.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record loan transaction: %w", err)
	}
	return nil
}

// ListSavingsTransactions retrieves a member's savings history, newest first
func (r *Repository) ListSavingsTransactions(ctx context.Context, memberRowID int64) ([]models.SavingsTransaction, error) {
	query := `
		SELECT id, member_id, amount, transaction_type, description, created_at
		FROM sacco.savings_transactions
		WHERE member_id = $1
		ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, memberRowID)
	if err != nil {
		return nil, fmt.Errorf("failed to list savings transactions: %w", err)
	}
	defer rows.Close()

	var txns []models.SavingsTransaction
	for rows.Next() {
		var t models.SavingsTransaction
		if err := rows.Scan(&t.ID, &t.MemberID, &t.Amount, &t.Type, &t.Description, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan savings transaction: %w", err)
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

// ListLoanTransactions retrieves a loan's history, newest first
func (r *Repository) ListLoanTransactions(ctx context.Context, loanID int64) ([]models.LoanTransaction, error) {
	query := `
		SELECT id, loan_id, amount, transaction_type, description, created_at
		FROM sacco.loan_transactions
		WHERE loan_id = $1
		ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, loanID)
	if err != nil {
		return nil, fmt.Errorf("failed to list loan transactions: %w", err)
	}
	defer rows.Close()

	var txns []models.LoanTransaction
	for rows.Next() {
		var t models.LoanTransaction
		if err := rows.Scan(&t.ID, &t.LoanID, &t.Amount, &t.Type, &t.Description, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan loan transaction: %w", err)
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

// GetDashboardStats computes scheme-wide totals for the overview page
func (r *Repository) GetDashboardStats(ctx context.Context, today time.Time) (*models.DashboardStats, error) {
	stats := &models.DashboardStats{}
	query := `
		SELECT
			(SELECT COUNT(*) FROM sacco.members),
			(SELECT COALESCE(SUM(savings_balance), 0.00) FROM sacco.members),
			(SELECT COALESCE(SUM(current_balance), 0.00) FROM sacco.loans WHERE is_active),
			(SELECT COUNT(*) FROM sacco.loans WHERE is_active AND next_due_date < $1)`
	err := r.db.QueryRowContext(ctx, query, today).
		Scan(&stats.TotalMembers, &stats.TotalSavings, &stats.TotalLoanBalance, &stats.OverdueLoans)
	if err != nil {
		return nil, fmt.Errorf("failed to compute dashboard stats: %w", err)
	}
	return stats, nil
}

// ListSavingsTransactionRows retrieves all savings transactions joined with
// member details for report exports, newest first.
func (r *Repository) ListSavingsTransactionRows(ctx context.Context) ([]models.TransactionExportRow, error) {
	query := `
		SELECT t.created_at, m.member_id, m.full_name, t.transaction_type, t.amount, t.description
		FROM sacco.savings_transactions t
		JOIN sacco.members m ON t.member_id = m.id
		ORDER BY t.created_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list savings export rows: %w", err)
	}
	defer rows.Close()

	var out []models.TransactionExportRow
	for rows.Next() {
		row := models.TransactionExportRow{Category: "Savings"}
		if err := rows.Scan(&row.Date, &row.MemberID, &row.MemberName, &row.Type, &row.Amount, &row.Description); err != nil {
			return nil, fmt.Errorf("failed to scan savings export row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// ListLoanTransactionRows retrieves all loan transactions joined with loan and
// member details for report exports, newest first.
func (r *Repository) ListLoanTransactionRows(ctx context.Context) ([]models.TransactionExportRow, error) {
	query := `
		SELECT t.created_at, m.member_id, m.full_name, t.transaction_type, t.amount, t.description, l.current_balance
		FROM sacco.loan_transactions t
		JOIN sacco.loans l ON t.loan_id = l.id
		JOIN sacco.members m ON l.member_id = m.id
		ORDER BY t.created_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list loan export rows: %w", err)
	}
	defer rows.Close()

	var out []models.TransactionExportRow
	for rows.Next() {
		row := models.TransactionExportRow{Category: "Loan"}
		var balance decimal.Decimal
		if err := rows.Scan(&row.Date, &row.MemberID, &row.MemberName, &row.Type, &row.Amount, &row.Description, &balance); err != nil {
			return nil, fmt.Errorf("failed to scan loan export row: %w", err)
		}
		row.LoanBalance = &balance
		out = append(out, row)
	}
	return out, rows.Err()
}
