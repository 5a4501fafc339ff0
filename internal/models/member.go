package models

// Member represents a person recording and splitting expenses.
type Member struct {
	// ID is the unique identifier for the member (UUID format).
	ID string

	// Name is the display name of the member.
	Name string

	// Email is the member's email address (unique). Used for login.
	Email string

	// PasswordHash is the bcrypt hash of the member's password.
	// Never serialized to clients.
	PasswordHash string

	// JoinedAt is the Unix timestamp when the member account was created.
	// Shown in trip history views.
	JoinedAt int64
}
