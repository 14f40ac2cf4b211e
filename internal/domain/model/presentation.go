package model

import (
	"encoding/json"
	"time"
)

// PresentationEventKind is the open set of live display update kinds.
type PresentationEventKind string

const (
	// PresentationLayoutUpdated signals a display's layout structure changed.
	PresentationLayoutUpdated PresentationEventKind = "layout_updated"
	// PresentationContentUpdated signals a display's rendered content changed.
	PresentationContentUpdated PresentationEventKind = "content_updated"
)

// PresentationEvent is an ephemeral live-display update. It exists only in
// transit through the broadcaster and is never persisted: subscribers that
// connect later pull current state through the query collaborator instead.
type PresentationEvent struct {
	HardwareID     string                `json:"hardware_id"`
	OrganizationID string                `json:"organization_id"`
	Kind           PresentationEventKind `json:"kind"`
	Payload        json.RawMessage       `json:"payload"`
}

// Display is a physical screen registered to an organization, addressed by
// its hardware identity.
type Display struct {
	ID             string    `json:"id"              db:"id"`
	OrganizationID string    `json:"organization_id" db:"organization_id"`
	HardwareID     string    `json:"hardware_id"     db:"hardware_id"`
	Name           string    `json:"name"            db:"name"`
	RecipeID       *string   `json:"recipe_id,omitempty" db:"recipe_id"`
	CreatedAt      time.Time `json:"created_at"      db:"created_at"`
}

// SubscriptionState tracks the lifecycle of a realtime channel subscription.
// Closed is terminal: a dropped connection re-subscribes from Requesting.
type SubscriptionState string

const (
	// SubscriptionRequesting is the initial state before authorization.
	SubscriptionRequesting SubscriptionState = "requesting"
	// SubscriptionAuthorized means tenant ownership checks passed.
	SubscriptionAuthorized SubscriptionState = "authorized"
	// SubscriptionLive means the subscriber receives published events.
	SubscriptionLive SubscriptionState = "live"
	// SubscriptionClosed is terminal.
	SubscriptionClosed SubscriptionState = "closed"
)
