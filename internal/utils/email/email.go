package email

import (
	"fmt"
	"net/smtp"
	"time"

	"github.com/jordan-wright/email"
	"github.com/mnkambule/sacco-service/internal/config"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Sender handles sending member notifications via SMTP
type Sender struct {
	cfg    *config.Config
	logger *logrus.Logger
}

// NewSender creates a new email sender
func NewSender(cfg *config.Config, logger *logrus.Logger) *Sender {
	return &Sender{
		cfg:    cfg,
		logger: logger,
	}
}

// SendOverdueNotice notifies a member that overdue interest was applied
func (s *Sender) SendOverdueNotice(to, name string, monthsOverdue int, interest, balance decimal.Decimal, nextDue time.Time) error {
	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{to}
	e.Subject = "Overdue Loan Interest Notification"

	body := fmt.Sprintf(
		"Dear %s,\n\n"+
			"Your loan payment is %d month(s) overdue and interest of %s %s has been applied.\n"+
			"Your outstanding balance is now %s %s.\n"+
			"Your next payment is due on %s.\n"+
			"Please make a payment as soon as possible to avoid further interest.\n"+
			"\nBest regards,\nThe Savings Scheme",
		name, monthsOverdue,
		s.cfg.Currency, interest.StringFixed(2),
		s.cfg.Currency, balance.StringFixed(2),
		nextDue.Format("2006-01-02"),
	)
	e.Text = []byte(body)

	return s.send(e, to)
}

// SendLoanClosedNotice notifies a member that their loan is fully repaid
func (s *Sender) SendLoanClosedNotice(to, name string, amount decimal.Decimal) error {
	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{to}
	e.Subject = "Loan Fully Repaid"

	body := fmt.Sprintf(
		"Dear %s,\n\n"+
			"Your final payment of %s %s has been received and your loan is now fully repaid and closed.\n"+
			"Thank you for settling your loan.\n"+
			"\nBest regards,\nThe Savings Scheme",
		name, s.cfg.Currency, amount.StringFixed(2),
	)
	e.Text = []byte(body)

	return s.send(e, to)
}

func (s *Sender) send(e *email.Email, to string) error {
	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	auth := smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	if err := e.Send(addr, auth); err != nil {
		s.logger.Errorf("Failed to send email to %s: %v", to, err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Infof("Email sent to %s: %s", to, e.Subject)
	return nil
}
