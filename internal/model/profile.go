// Package model defines the data structures used throughout the application.
package model

import "time"

// Profile is the locally stored record for a registered account.
//
// The identity provider is the system of record for credentials and email
// verification; the profile store holds the supplementary fields the provider
// doesn't know about (display name, phone number). ExternalID is the
// provider's stable user identifier and links the two systems — it is unique,
// immutable once set, and doubles as our primary key.
//
// PasswordHash is a bcrypt hash of the credential, kept so login can be
// verified locally without a round trip to the provider. It is never
// serialized to JSON.
type Profile struct {
	ExternalID   string    `json:"externalId"  db:"external_id"`
	Email        string    `json:"email"       db:"email"`
	PasswordHash string    `json:"-"           db:"password_hash"`
	DisplayName  string    `json:"name"        db:"display_name"`
	PhoneNumber  string    `json:"phoneNumber" db:"phone_number"` // optional, empty by default
	CreatedAt    time.Time `json:"createdAt"   db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt"   db:"updated_at"`
}
