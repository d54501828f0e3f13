// Package model defines domain entities for the application.
package model

import "time"

// User is an account holder. A user owns zero or more Emails.
type User struct {
	ID           string    `json:"id"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Phone        *string   `json:"phone"`
	PasswordHash string    `json:"-"`
	Emails       []Email   `json:"emails"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// FullName joins first and last name with a single space.
// Whitespace inside either part is preserved as stored.
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// PrimaryEmail returns the email flagged primary, or nil when the user has none.
func (u *User) PrimaryEmail() *Email {
	for i := range u.Emails {
		if u.Emails[i].IsPrimary {
			return &u.Emails[i]
		}
	}
	return nil
}

// PrimaryCount returns how many owned emails are flagged primary.
func (u *User) PrimaryCount() int {
	n := 0
	for _, e := range u.Emails {
		if e.IsPrimary {
			n++
		}
	}
	return n
}

// Addresses returns the owned email addresses in their current order.
func (u *User) Addresses() []string {
	out := make([]string, 0, len(u.Emails))
	for _, e := range u.Emails {
		out = append(out, e.Address)
	}
	return out
}
