package models

import "time"

// Attachment describes one file deposited in a capsule. The bytes themselves
// live in object storage under StoredName; the row is immutable once written
// and is removed together with its backing object.
type Attachment struct {
	// CapsuleID links the attachment to its owning capsule.
	CapsuleID string
	// StoredName is the unique object-storage key of the payload.
	StoredName string
	// OriginalName is the filename as uploaded.
	OriginalName string
	// ContentType is the MIME type, e.g. image/png.
	ContentType string
	// Size is the payload size in bytes.
	Size      int64
	CreatedAt time.Time
}
