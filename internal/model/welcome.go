package model

import "time"

// WelcomeJob is a queued request to send the welcome mail to one address.
type WelcomeJob struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Address   string    `json:"email"`
	Attempt   int       `json:"attempt"`
	NotBefore time.Time `json:"not_before"`
	QueuedAt  time.Time `json:"queued_at"`
}
