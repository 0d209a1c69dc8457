package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/beevik/etree"
	"github.com/mnkambule/sacco-service/internal/models"
)

// WriteMembersCSV renders the members report: one row per member with the
// active loan columns blank when the member has none.
func WriteMembersCSV(w io.Writer, rows []models.MemberExportRow) error {
	cw := csv.NewWriter(w)
	header := []string{"Member ID", "Full Name", "Date Joined", "Savings Balance",
		"Loan Balance", "Active Loan", "Loan Issue Date", "Next Due Date"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, row := range rows {
		record := []string{
			row.Member.MemberID,
			row.Member.FullName,
			row.Member.DateJoined.Format("2006-01-02"),
			row.Member.SavingsBalance.StringFixed(2),
			"0.00", "No", "", "",
		}
		if loan := row.ActiveLoan; loan != nil {
			record[4] = loan.CurrentBalance.StringFixed(2)
			record[5] = "Yes"
			record[6] = loan.IssueDate.Format("2006-01-02")
			record[7] = loan.NextDueDate.Format("2006-01-02")
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteTransactionsCSV renders the combined savings and loan transaction
// report.
func WriteTransactionsCSV(w io.Writer, rows []models.TransactionExportRow) error {
	cw := csv.NewWriter(w)
	header := []string{"Date", "Member ID", "Member Name", "Transaction Type",
		"Category", "Amount", "Description", "Loan Balance (if applicable)"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, row := range rows {
		balance := ""
		if row.LoanBalance != nil {
			balance = row.LoanBalance.StringFixed(2)
		}
		record := []string{
			row.Date.Format("2006-01-02 15:04:05"),
			row.MemberID,
			row.MemberName,
			row.Type,
			row.Category,
			row.Amount.StringFixed(2),
			row.Description,
			balance,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// TransactionsXML renders the combined transaction report as an XML statement
func TransactionsXML(rows []models.TransactionExportRow, generatedAt time.Time) ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	statement := doc.CreateElement("Statement")
	statement.CreateAttr("generatedAt", generatedAt.Format(time.RFC3339))

	transactions := statement.CreateElement("Transactions")
	for _, row := range rows {
		txn := transactions.CreateElement("Transaction")
		txn.CreateAttr("category", row.Category)
		txn.CreateElement("Date").SetText(row.Date.Format("2006-01-02 15:04:05"))
		txn.CreateElement("MemberID").SetText(row.MemberID)
		txn.CreateElement("MemberName").SetText(row.MemberName)
		txn.CreateElement("Type").SetText(row.Type)
		txn.CreateElement("Amount").SetText(row.Amount.StringFixed(2))
		txn.CreateElement("Description").SetText(row.Description)
		if row.LoanBalance != nil {
			txn.CreateElement("LoanBalance").SetText(row.LoanBalance.StringFixed(2))
		}
	}

	doc.Indent(2)
	data, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("failed to render XML statement: %w", err)
	}
	return data, nil
}
