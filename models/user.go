package models

// User represents a registered account.
// It maps to the `users` table.
type User struct {
	ID             int64  `db:"id" json:"id"`
	Username       string `db:"username" json:"username"`
	PasswordDigest string `db:"password" json:"-"`
}
