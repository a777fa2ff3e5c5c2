package pdf

import "context"

// ReceiptData carries engine-computed values into the receipt document.
type ReceiptData struct {
	CompanyName string
	ReceiptID   string
	ClientName  string
	ClientEmail string
	AmountPaid  string
	PaidAt      string
	IssueDate   string
}

// Provider renders billing documents to PDF.
type Provider interface {
	GenerateReceipt(ctx context.Context, data ReceiptData) ([]byte, error)
}
