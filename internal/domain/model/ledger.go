package model

import "time"

// LedgerEntryKind categorizes a ledger posting.
type LedgerEntryKind string

const (
	// LedgerEntryCommission is a sales-commission posting derived from a payment.
	LedgerEntryCommission LedgerEntryKind = "commission"
)

// LedgerEntry is an append-only financial posting. Amount is in minor
// currency units. Entries are never mutated after creation; idempotency is
// keyed by (OrganizationID, ReferenceID).
type LedgerEntry struct {
	ID             string          `json:"id"              db:"id"`
	OrganizationID string          `json:"organization_id" db:"organization_id"`
	ReferenceID    string          `json:"reference_id"    db:"reference_id"`
	Amount         int64           `json:"amount"          db:"amount"`
	Kind           LedgerEntryKind `json:"kind"            db:"kind"`
	CreatedAt      time.Time       `json:"created_at"      db:"created_at"`
}

// CommissionAttribution describes how an organization's payments convert to
// commission postings. Bps is basis points of the payment amount; an
// organization without attribution (empty SalesmanID or zero Bps) posts
// nothing.
type CommissionAttribution struct {
	OrganizationID string `json:"organization_id" db:"organization_id"`
	SalesmanID     string `json:"salesman_id"     db:"salesman_id"`
	Bps            int    `json:"bps"             db:"bps"`
}
