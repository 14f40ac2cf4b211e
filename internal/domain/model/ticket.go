package model

import "time"

// Ticket is the persisted record of a triaged support report. Severity and
// Team are the triage outcome; the report text is kept for the humans who
// pick it up.
type Ticket struct {
	ID             string    `json:"id"              db:"id"`
	OrganizationID string    `json:"organization_id" db:"organization_id"`
	Subject        string    `json:"subject"         db:"subject"`
	Body           string    `json:"body"            db:"body"`
	Severity       string    `json:"severity"        db:"severity"`
	Team           string    `json:"team"            db:"team"`
	CreatedAt      time.Time `json:"created_at"      db:"created_at"`
}
