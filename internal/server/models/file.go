// Package models defines server-side data models persisted in the database.
package models

import "time"

// FileRecord describes one uploaded file. The encrypted content itself lives
// in object storage under StorageKey; StorageKey and EncryptionIV are set
// together at creation and never change.
type FileRecord struct {
	ID           string
	Filename     string
	OriginalName string
	// StorageKey is the object-storage key of the ciphertext blob.
	StorageKey string
	// OwnerID is the uploading user; only the owner may share or list the file.
	OwnerID string
	// EncryptionIV is the hex-encoded IV the blob was sealed with.
	EncryptionIV string
	Size         int64
	MimeType     string
	// ShareTokens are kept in creation order and only ever appended to.
	ShareTokens []ShareToken
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ShareToken is a bearer capability for anonymous download of one file.
type ShareToken struct {
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// ValidAt reports whether the token can be redeemed at now. Validity is
// strictly now < ExpiresAt.
func (t ShareToken) ValidAt(now time.Time) bool {
	return now.Before(t.ExpiresAt)
}

// FileSummary is the owner-facing listing row.
type FileSummary struct {
	ID           string
	Filename     string
	OriginalName string
	Size         int64
	MimeType     string
	CreatedAt    time.Time
}
