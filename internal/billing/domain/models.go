// Package domain contains the billing cycle model and its state machine.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// State is the derived position of a cycle in its lifecycle. It is not
// stored; it falls out of pay_hash/receipt_file/status.
type State string

const (
	// StateOpen: accruing usage, nothing invoiced yet.
	StateOpen State = "OPEN"
	// StateInvoiced: amount computed, pay hash live, client deactivated.
	StateInvoiced State = "INVOICED"
	// StateReceiptSubmitted: proof of payment stored, awaiting admin
	// confirmation, client reactivated.
	StateReceiptSubmitted State = "RECEIPT_SUBMITTED"
	// StatePaid: terminal; the pay hash is cleared and can never be
	// replayed.
	StatePaid State = "PAID"
)

// Billing is one billing cycle for a client. At most one row per client
// may be in a non-terminal state at any time.
type Billing struct {
	ID       snowflake.ID `json:"id" gorm:"primaryKey"`
	ClientID snowflake.ID `json:"client_id" gorm:"not null;index"`
	// DueDate is the day of month (1-31) the cycle is invoiced on.
	DueDate     int             `json:"due_date" gorm:"not null"`
	AmountDue   decimal.Decimal `json:"amount_due" gorm:"type:numeric(12,6);not null;default:0"`
	PayHash     *string         `json:"-" gorm:"type:text;uniqueIndex"`
	Status      bool            `json:"status" gorm:"not null;default:false"`
	ReceiptFile *string         `json:"receipt_file" gorm:"type:text"`
	PaidAt      *time.Time      `json:"paid_at"`
	CreatedAt   time.Time       `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time       `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Billing) TableName() string { return "billings" }

// State derives the lifecycle position.
func (b Billing) State() State {
	switch {
	case b.Status:
		return StatePaid
	case b.ReceiptFile != nil && b.PayHash != nil:
		return StateReceiptSubmitted
	case b.PayHash != nil:
		return StateInvoiced
	default:
		return StateOpen
	}
}

// Terminal reports whether the cycle can no longer change.
func (b Billing) Terminal() bool { return b.Status }
