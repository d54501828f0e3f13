package model

import "time"

// Email is an address owned by exactly one User.
type Email struct {
	ID         string     `json:"id"`
	UserID     string     `json:"-"`
	Address    string     `json:"email"`
	IsPrimary  bool       `json:"is_primary"`
	VerifiedAt *time.Time `json:"verified_at"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// EmailInput is one submitted entry of an email list.
// A nil IsPrimary means the caller did not say.
type EmailInput struct {
	Address   string
	IsPrimary *bool
}

// ResolvePrimary applies the primary-resolution policy to a submitted list.
// The first entry flagged primary wins; when none is flagged the first entry
// wins. Every other entry is non-primary. The result is aligned with inputs.
func ResolvePrimary(inputs []EmailInput) []bool {
	flags := make([]bool, len(inputs))
	if len(inputs) == 0 {
		return flags
	}

	chosen := 0
	for i, in := range inputs {
		if in.IsPrimary != nil && *in.IsPrimary {
			chosen = i
			break
		}
	}
	flags[chosen] = true
	return flags
}
