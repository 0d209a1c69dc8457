package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/mnkambule/sacco-service/internal/ledger"
	"github.com/mnkambule/sacco-service/internal/report"
	"github.com/mnkambule/sacco-service/internal/service"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	svc *service.Service
	log *logrus.Logger
}

func NewHandler(svc *service.Service, log *logrus.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps the error taxonomy onto HTTP statuses
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ledger.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, ledger.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ledger.ErrConflict):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		h.log.Errorf("Request failed: %v", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	return true
}

// Register handles staff registration
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	staff, err := h.svc.RegisterStaff(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, staff)
}

// Login handles staff authentication
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	token, err := h.svc.LoginStaff(r.Context(), req.Email, req.Password)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// CreateMember handles member registration with the initial deposit
func (h *Handler) CreateMember(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FullName string `json:"full_name"`
		MemberID string `json:"member_id"`
		Email    string `json:"email"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	member, err := h.svc.RegisterMember(r.Context(), req.FullName, req.MemberID, req.Email)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, member)
}

// ListMembers returns all registered members
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.svc.ListMembers(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

// GetMemberSummary returns a member overview with loan standing
func (h *Handler) GetMemberSummary(w http.ResponseWriter, r *http.Request) {
	memberID := mux.Vars(r)["memberID"]
	summary, err := h.svc.GetMemberSummary(r.Context(), memberID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// PaySavings records a monthly subscription payment
func (h *Handler) PaySavings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	txn, err := h.svc.PaySavings(r.Context(), mux.Vars(r)["memberID"], req.Amount)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, txn)
}

// IssueLoan issues a loan to a member
func (h *Handler) IssueLoan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PrincipalAmount decimal.Decimal `json:"principal_amount"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	loan, err := h.svc.IssueLoan(r.Context(), mux.Vars(r)["memberID"], req.PrincipalAmount)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, loan)
}

// RepayLoan records a repayment against the member's active loan
func (h *Handler) RepayLoan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PaymentAmount decimal.Decimal `json:"payment_amount"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	loan, err := h.svc.RepayLoan(r.Context(), mux.Vars(r)["memberID"], req.PaymentAmount)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

// SweepOverdue accrues overdue interest across all active loans
func (h *Handler) SweepOverdue(w http.ResponseWriter, r *http.Request) {
	count, err := h.svc.SweepOverdueInterest(r.Context(), time.Now())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"overdue_loans_processed": count})
}

// Dashboard returns scheme-wide totals
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.GetDashboardStats(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// ExportMembersCSV streams the members report as CSV
func (h *Handler) ExportMembersCSV(w http.ResponseWriter, r *http.Request) {
	rows, err := h.svc.ListMemberExportRows(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="members_export_%s.csv"`, time.Now().Format("20060102")))
	if err := report.WriteMembersCSV(w, rows); err != nil {
		h.log.Errorf("Failed to write members CSV: %v", err)
	}
}

// ExportTransactionsCSV streams the combined transactions report as CSV
func (h *Handler) ExportTransactionsCSV(w http.ResponseWriter, r *http.Request) {
	rows, err := h.svc.ListTransactionExportRows(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="transactions_export_%s.csv"`, time.Now().Format("20060102")))
	if err := report.WriteTransactionsCSV(w, rows); err != nil {
		h.log.Errorf("Failed to write transactions CSV: %v", err)
	}
}

// ExportTransactionsXML streams the combined transactions report as XML
func (h *Handler) ExportTransactionsXML(w http.ResponseWriter, r *http.Request) {
	rows, err := h.svc.ListTransactionExportRows(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	data, err := report.TransactionsXML(rows, time.Now())
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.Write(data)
}
