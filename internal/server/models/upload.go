// Package models defines server-side data models persisted in the database.
package models

import "time"

// Upload describes one stored file: the opaque identifier handed to
// clients, where the encrypted envelope lives in object storage, and the
// lifecycle timestamps. All fields are write-once; the record is only ever
// mutated by being deleted.
type Upload struct {
	// UploadID is the opaque token returned to the uploader and required
	// (with the passcode) for retrieval. Generated at creation, never reused.
	UploadID string
	// RemoteLocation is the object-storage key of the encrypted envelope.
	RemoteLocation string
	// Filename is the original client-supplied name, used to derive the
	// MIME type at retrieval.
	Filename string
	// CreatedAt and ExpiresAt bound the record's lifetime.
	// ExpiresAt is fixed at creation and never extended.
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the upload is past its expiry at the given time.
func (u *Upload) Expired(now time.Time) bool {
	return !now.Before(u.ExpiresAt)
}
