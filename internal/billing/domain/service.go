package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/nextlevelcode/meterbill/pkg/db/pagination"
)

var (
	// ErrBillingNotFound is returned when no cycle matches the lookup.
	ErrBillingNotFound = errors.New("billing_not_found")
	// ErrInvalidHash is returned uniformly for unknown, consumed, or
	// malformed pay hashes so callers cannot distinguish them.
	ErrInvalidHash = errors.New("invalid_hash")
	// ErrDuplicateOpenCycle is returned when the client already has a
	// non-terminal cycle.
	ErrDuplicateOpenCycle = errors.New("duplicate_open_cycle")
	// ErrInvalidDueDate is returned for due dates outside 1-31.
	ErrInvalidDueDate = errors.New("invalid_due_date")
	// ErrReceiptNotFound is returned when a cycle has no stored receipt.
	ErrReceiptNotFound = errors.New("receipt_not_found")
)

// Service manages billing cycles end to end: opening, invoicing,
// receipt intake, and payment confirmation.
type Service interface {
	// Issue opens a new cycle for the client with the given due day of
	// month. Fails with ErrDuplicateOpenCycle if a non-terminal cycle
	// already exists.
	Issue(ctx context.Context, clientID snowflake.ID, dueDate int) (*Billing, error)

	// Invoice computes the amount owed for the client's open cycle,
	// mints a pay hash, deactivates the client, and sends the invoice
	// email. The email is best effort; the state change is not.
	Invoice(ctx context.Context, clientID snowflake.ID) (*Billing, error)

	// InvoiceDueToday invoices every open cycle whose due date matches
	// the current day of month. Per-client failures are joined and do
	// not stop the sweep.
	InvoiceDueToday(ctx context.Context) error

	// SubmitReceipt attaches a payment proof to the cycle identified by
	// payHash and reactivates the client. filename is the original
	// upload name, data the raw file bytes.
	SubmitReceipt(ctx context.Context, payHash, filename string, data []byte) (*Billing, error)

	// VerifyPayment consumes the pay hash exactly once, marks the cycle
	// paid, and opens the successor cycle. A second call with the same
	// hash fails with ErrBillingNotFound.
	VerifyPayment(ctx context.Context, payHash string) (*Billing, error)

	// ValidateHash reports whether payHash identifies a live, unpaid
	// cycle.
	ValidateHash(ctx context.Context, payHash string) (bool, error)

	// Get returns the cycle by ID.
	Get(ctx context.Context, id snowflake.ID) (*Billing, error)

	// ListByClient returns the client's cycles newest first, one cursor
	// page at a time.
	ListByClient(ctx context.Context, clientID snowflake.ID, page pagination.Pagination) ([]Billing, *pagination.PageInfo, error)

	// ReceiptPath returns the stored receipt file path for the cycle.
	ReceiptPath(ctx context.Context, id snowflake.ID) (string, error)

	// ReceiptPDF renders the payment receipt document for a paid cycle.
	ReceiptPDF(ctx context.Context, id snowflake.ID) ([]byte, error)
}
