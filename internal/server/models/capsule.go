// Package models defines server-side data models persisted in the database.
package models

import "time"

// CapsuleStatus is the lifecycle state of a capsule. The only legal
// transition is StatusLocked -> StatusUnlocked; unlocked is terminal.
type CapsuleStatus string

const (
	StatusLocked   CapsuleStatus = "LOCKED"
	StatusUnlocked CapsuleStatus = "UNLOCKED"
)

// Capsule is a sealed deposit of files and a message addressed to a future
// recipient. It stays locked until UnlockAt, when the scheduler flips it to
// unlocked, issues the public access token and notifies the recipient.
type Capsule struct {
	ID             string
	OwnerID        string
	RecipientEmail string
	Title          string
	// Topic feeds the quote enrichment of the unlock email. Empty means the
	// configured default topic.
	Topic    string
	UnlockAt time.Time
	Status   CapsuleStatus
	// PublicAccessToken is empty while the capsule is locked. It is generated
	// exactly once, at the moment of the unlock transition, and never reused.
	PublicAccessToken string
	Attachments       []Attachment
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Unlocked reports whether the capsule has reached its terminal state.
func (c *Capsule) Unlocked() bool {
	return c.Status == StatusUnlocked
}

// Due reports whether the capsule should transition at the given instant.
func (c *Capsule) Due(now time.Time) bool {
	return c.Status == StatusLocked && !c.UnlockAt.After(now)
}
