package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mnkambule/sacco-service/internal/config"
	"github.com/mnkambule/sacco-service/internal/ledger"
	"github.com/mnkambule/sacco-service/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// Store is the persistence collaborator the service drives. Each mutating
// method is one atomic unit of work: balance change and transaction rows
// commit or roll back together.
type Store interface {
	CreateStaff(ctx context.Context, staff *models.Staff) error
	FindStaffByEmail(ctx context.Context, email string) (*models.Staff, error)

	CreateMember(ctx context.Context, member *models.Member, txn *models.SavingsTransaction) error
	FindMemberByID(ctx context.Context, id int64) (*models.Member, error)
	FindMemberByMemberID(ctx context.Context, memberID string) (*models.Member, error)
	ListMembers(ctx context.Context) ([]models.Member, error)
	SaveSavingsPayment(ctx context.Context, member *models.Member, txn *models.SavingsTransaction) error

	CreateLoan(ctx context.Context, loan *models.Loan, txn *models.LoanTransaction) error
	FindActiveLoanByMember(ctx context.Context, memberRowID int64) (*models.Loan, error)
	ListActiveLoans(ctx context.Context) ([]models.Loan, error)
	SaveLoan(ctx context.Context, loan *models.Loan, txns []models.LoanTransaction) error
	SaveLoans(ctx context.Context, loans []*models.Loan, txns []models.LoanTransaction) error

	ListSavingsTransactions(ctx context.Context, memberRowID int64) ([]models.SavingsTransaction, error)
	ListLoanTransactions(ctx context.Context, loanID int64) ([]models.LoanTransaction, error)
	GetDashboardStats(ctx context.Context, today time.Time) (*models.DashboardStats, error)
	ListSavingsTransactionRows(ctx context.Context) ([]models.TransactionExportRow, error)
	ListLoanTransactionRows(ctx context.Context) ([]models.TransactionExportRow, error)
}

// Notifier delivers member notifications. Implementations must tolerate being
// called for members without contact details by never being called for them.
type Notifier interface {
	SendOverdueNotice(to, name string, monthsOverdue int, interest, balance decimal.Decimal, nextDue time.Time) error
	SendLoanClosedNotice(to, name string, amount decimal.Decimal) error
}

// Service handles business logic
type Service struct {
	store    Store
	engine   *ledger.Engine
	log      *logrus.Logger
	config   *config.Config
	notifier Notifier
	now      func() time.Time

	// Per-member locks serialize repayment and accrual on the same loan
	// within this process.
	locks sync.Map
}

// NewService initializes a new service. notifier may be nil when no SMTP
// settings are configured.
func NewService(store Store, engine *ledger.Engine, log *logrus.Logger, cfg *config.Config, notifier Notifier) *Service {
	return &Service{
		store:    store,
		engine:   engine,
		log:      log,
		config:   cfg,
		notifier: notifier,
		now:      time.Now,
	}
}

func (s *Service) memberLock(id int64) *sync.Mutex {
	v, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// RegisterStaff creates a back-office user with a hashed password
func (s *Service) RegisterStaff(ctx context.Context, username, email, password string) (*models.Staff, error) {
	if username == "" || email == "" || len(password) < 8 {
		return nil, fmt.Errorf("%w: username, email and a password of at least 8 characters are required", ledger.ErrValidation)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	staff := &models.Staff{
		Username:     username,
		Email:        email,
		PasswordHash: string(hashedPassword),
	}
	if err := s.store.CreateStaff(ctx, staff); err != nil {
		return nil, err
	}

	s.log.Infof("Staff registered: %s", staff.Email)
	return staff, nil
}

// LoginStaff authenticates a staff user and returns a JWT token
func (s *Service) LoginStaff(ctx context.Context, email, password string) (string, error) {
	staff, err := s.store.FindStaffByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(staff.PasswordHash), []byte(password)); err != nil {
		return "", fmt.Errorf("invalid credentials")
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   fmt.Sprintf("%d", staff.ID),
		ExpiresAt: jwt.NewNumericDate(s.now().Add(24 * time.Hour)),
	})
	tokenString, err := token.SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	s.log.Infof("Staff logged in: %s", staff.Email)
	return tokenString, nil
}

// RegisterMember registers a member and credits the initial deposit
func (s *Service) RegisterMember(ctx context.Context, fullName, memberID, email string) (*models.Member, error) {
	member, txn, err := s.engine.NewMember(fullName, memberID, email, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateMember(ctx, member, txn); err != nil {
		return nil, err
	}

	s.log.Infof("Member registered: %s (%s)", member.MemberID, member.FullName)
	return member, nil
}

// PaySavings records a subscription payment against a member's savings
func (s *Service) PaySavings(ctx context.Context, memberID string, amount decimal.Decimal) (*models.SavingsTransaction, error) {
	member, err := s.store.FindMemberByMemberID(ctx, memberID)
	if err != nil {
		return nil, err
	}

	lock := s.memberLock(member.ID)
	lock.Lock()
	defer lock.Unlock()

	txn, err := s.engine.RecordSavingsPayment(member, amount)
	if err != nil {
		return nil, err
	}
	if err := s.store.SaveSavingsPayment(ctx, member, txn); err != nil {
		return nil, err
	}

	s.log.Infof("Savings payment of %s recorded for member %s", amount.StringFixed(2), member.MemberID)
	return txn, nil
}

// IssueLoan issues a loan to a member with no active loan
func (s *Service) IssueLoan(ctx context.Context, memberID string, principal decimal.Decimal) (*models.Loan, error) {
	member, err := s.store.FindMemberByMemberID(ctx, memberID)
	if err != nil {
		return nil, err
	}

	lock := s.memberLock(member.ID)
	lock.Lock()
	defer lock.Unlock()

	hasActiveLoan := true
	if _, err := s.store.FindActiveLoanByMember(ctx, member.ID); err != nil {
		if !errors.Is(err, ledger.ErrNotFound) {
			return nil, err
		}
		hasActiveLoan = false
	}

	loan, txn, err := s.engine.IssueLoan(member, hasActiveLoan, principal, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateLoan(ctx, loan, txn); err != nil {
		return nil, err
	}

	s.log.Infof("Loan of %s issued to member %s, total due %s",
		principal.StringFixed(2), member.MemberID, loan.TotalAmount.StringFixed(2))
	return loan, nil
}

// accrueAndSave applies overdue interest to the loan for today and persists
// the outcome when anything accrued. Safe to call redundantly.
func (s *Service) accrueAndSave(ctx context.Context, member *models.Member, loan *models.Loan, today time.Time) (ledger.Accrual, error) {
	accrual := s.engine.AccrueOverdueInterest(loan, today)
	if accrual.MonthsOverdue == 0 {
		return accrual, nil
	}
	if err := s.store.SaveLoan(ctx, loan, accrual.Transactions); err != nil {
		return accrual, err
	}

	s.log.Warnf("Applied overdue interest of %s to loan %d (%d month(s) overdue)",
		accrual.InterestApplied.StringFixed(2), loan.ID, accrual.MonthsOverdue)
	s.notifyOverdue(member, loan, accrual)
	return accrual, nil
}

func (s *Service) notifyOverdue(member *models.Member, loan *models.Loan, accrual ledger.Accrual) {
	if s.notifier == nil || member == nil || member.Email == "" {
		return
	}
	err := s.notifier.SendOverdueNotice(member.Email, member.FullName,
		accrual.MonthsOverdue, accrual.InterestApplied, loan.CurrentBalance, loan.NextDueDate)
	if err != nil {
		s.log.Errorf("Failed to send overdue notice to %s: %v", member.Email, err)
	}
}

// RepayLoan records a repayment against the member's active loan. Overdue
// interest is accrued and persisted first so the payment is validated against
// the current balance.
func (s *Service) RepayLoan(ctx context.Context, memberID string, amount decimal.Decimal) (*models.Loan, error) {
	member, err := s.store.FindMemberByMemberID(ctx, memberID)
	if err != nil {
		return nil, err
	}

	lock := s.memberLock(member.ID)
	lock.Lock()
	defer lock.Unlock()

	loan, err := s.store.FindActiveLoanByMember(ctx, member.ID)
	if err != nil {
		return nil, err
	}

	today := s.now()
	if _, err := s.accrueAndSave(ctx, member, loan, today); err != nil {
		return nil, err
	}

	txn, closed, err := s.engine.ApplyRepayment(loan, amount, today)
	if err != nil {
		return nil, err
	}
	if err := s.store.SaveLoan(ctx, loan, []models.LoanTransaction{*txn}); err != nil {
		return nil, err
	}

	if closed {
		s.log.Infof("Loan %d fully repaid and closed for member %s", loan.ID, member.MemberID)
		if s.notifier != nil && member.Email != "" {
			if err := s.notifier.SendLoanClosedNotice(member.Email, member.FullName, amount); err != nil {
				s.log.Errorf("Failed to send loan closed notice to %s: %v", member.Email, err)
			}
		}
	} else {
		s.log.Infof("Repayment of %s recorded for member %s, remaining balance %s",
			amount.StringFixed(2), member.MemberID, loan.CurrentBalance.StringFixed(2))
	}
	return loan, nil
}

// SweepOverdueInterest accrues overdue interest across all active loans in a
// single commit and returns how many loans were overdue at sweep start.
func (s *Service) SweepOverdueInterest(ctx context.Context, today time.Time) (int, error) {
	loans, err := s.store.ListActiveLoans(ctx)
	if err != nil {
		return 0, err
	}

	today = ledger.DateOnly(today)
	var memberIDs []int64
	for i := range loans {
		if loans[i].NextDueDate.Before(today) {
			memberIDs = append(memberIDs, loans[i].MemberID)
		}
	}
	sort.Slice(memberIDs, func(i, j int) bool { return memberIDs[i] < memberIDs[j] })

	count, notices, err := s.sweepLocked(ctx, memberIDs, today)
	if err != nil {
		return 0, err
	}
	for _, notify := range notices {
		notify()
	}

	s.log.Infof("Overdue sweep processed %d loan(s)", count)
	return count, nil
}

// sweepLocked re-reads and accrues the overdue loans while holding every
// affected member lock, and commits the batch before any lock is released.
// A repayment can therefore never land between the in-memory accrual and the
// save and be overwritten by a stale snapshot. Locks are acquired in
// member-id order so concurrent sweeps cannot deadlock; memberIDs must be
// sorted.
func (s *Service) sweepLocked(ctx context.Context, memberIDs []int64, today time.Time) (int, []func(), error) {
	for i, id := range memberIDs {
		if i > 0 && id == memberIDs[i-1] {
			continue
		}
		lock := s.memberLock(id)
		lock.Lock()
		defer lock.Unlock()
	}

	var (
		mutated []*models.Loan
		txns    []models.LoanTransaction
		notices []func()
	)
	count := 0
	for i, id := range memberIDs {
		if i > 0 && id == memberIDs[i-1] {
			continue
		}

		// Re-read under the lock: the listed snapshot may predate a
		// repayment that reduced or closed the loan.
		loan, err := s.store.FindActiveLoanByMember(ctx, id)
		if errors.Is(err, ledger.ErrNotFound) {
			continue
		}
		if err != nil {
			return 0, nil, err
		}
		if !loan.NextDueDate.Before(today) {
			continue
		}
		// Overdue by due date, counted even when the calendar-month
		// accrual below turns out to be a no-op.
		count++

		accrual := s.engine.AccrueOverdueInterest(loan, today)
		if accrual.MonthsOverdue == 0 {
			continue
		}

		mutated = append(mutated, loan)
		txns = append(txns, accrual.Transactions...)

		member, err := s.store.FindMemberByID(ctx, loan.MemberID)
		if err != nil {
			s.log.Errorf("Failed to load member %d during sweep: %v", loan.MemberID, err)
			continue
		}
		notices = append(notices, func() { s.notifyOverdue(member, loan, accrual) })
	}

	if err := s.store.SaveLoans(ctx, mutated, txns); err != nil {
		return 0, nil, err
	}
	return count, notices, nil
}

// GetMemberSummary returns a member overview with savings, loan standing and
// days overdue. Overdue interest is accrued first so the view reflects it.
func (s *Service) GetMemberSummary(ctx context.Context, memberID string) (*models.MemberSummary, error) {
	member, err := s.store.FindMemberByMemberID(ctx, memberID)
	if err != nil {
		return nil, err
	}

	summary := &models.MemberSummary{Member: member}

	loan, err := s.store.FindActiveLoanByMember(ctx, member.ID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return summary, nil
		}
		return nil, err
	}

	lock := s.memberLock(member.ID)
	lock.Lock()
	_, err = s.accrueAndSave(ctx, member, loan, s.now())
	lock.Unlock()
	if err != nil {
		return nil, err
	}

	history, err := s.store.ListLoanTransactions(ctx, loan.ID)
	if err != nil {
		return nil, err
	}

	summary.ActiveLoan = loan
	summary.DaysOverdue = ledger.DaysOverdue(loan, s.now())
	summary.LoanHistory = history
	return summary, nil
}

// ListMembers returns all registered members
func (s *Service) ListMembers(ctx context.Context) ([]models.Member, error) {
	return s.store.ListMembers(ctx)
}

// GetDashboardStats returns scheme-wide totals for the overview page
func (s *Service) GetDashboardStats(ctx context.Context) (*models.DashboardStats, error) {
	return s.store.GetDashboardStats(ctx, ledger.DateOnly(s.now()))
}

// ListMemberExportRows returns every member paired with its active loan for
// the members report.
func (s *Service) ListMemberExportRows(ctx context.Context) ([]models.MemberExportRow, error) {
	members, err := s.store.ListMembers(ctx)
	if err != nil {
		return nil, err
	}

	rows := make([]models.MemberExportRow, 0, len(members))
	for _, member := range members {
		row := models.MemberExportRow{Member: member}
		loan, err := s.store.FindActiveLoanByMember(ctx, member.ID)
		if err != nil && !errors.Is(err, ledger.ErrNotFound) {
			return nil, err
		}
		if err == nil {
			row.ActiveLoan = loan
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ListTransactionExportRows returns all savings and loan transactions for the
// transactions report, savings first.
func (s *Service) ListTransactionExportRows(ctx context.Context) ([]models.TransactionExportRow, error) {
	savings, err := s.store.ListSavingsTransactionRows(ctx)
	if err != nil {
		return nil, err
	}
	loans, err := s.store.ListLoanTransactionRows(ctx)
	if err != nil {
		return nil, err
	}
	return append(savings, loans...), nil
}
