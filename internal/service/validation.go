package service

import (
	"fmt"
	"net/mail"
	"regexp"
	"unicode/utf8"

	"github.com/userhub/userhub/internal/model"
)

// Field limits.
const (
	MaxNameLength     = 255
	MaxPhoneLength    = 20
	MinPasswordLength = 8
	MaxPasswordLength = 255
	MaxEmailLength    = 255
	MaxEmailsPerUser  = 20
)

var phonePattern = regexp.MustCompile(`^[+\d\s\-()]+$`)

func validateName(verr *ValidationError, field, label, value string) {
	n := utf8.RuneCountInString(value)
	switch {
	case n == 0:
		verr.Add(field, label+" is required")
	case n > MaxNameLength:
		verr.Add(field, fmt.Sprintf("The %s must not be greater than %d characters.", label, MaxNameLength))
	}
}

func validatePhone(verr *ValidationError, phone string) {
	if utf8.RuneCountInString(phone) > MaxPhoneLength {
		verr.Add("phone", fmt.Sprintf("The phone must not be greater than %d characters.", MaxPhoneLength))
	}
	if !phonePattern.MatchString(phone) {
		verr.Add("phone", "The phone format is invalid.")
	}
}

func validatePassword(verr *ValidationError, password string) {
	n := utf8.RuneCountInString(password)
	switch {
	case n == 0:
		verr.Add("password", "Password is required")
	case n < MinPasswordLength:
		verr.Add("password", fmt.Sprintf("The password must be at least %d characters.", MinPasswordLength))
	case n > MaxPasswordLength:
		verr.Add("password", fmt.Sprintf("The password must not be greater than %d characters.", MaxPasswordLength))
	}
}

// validateAddress checks format and length of a single address.
func validateAddress(verr *ValidationError, field, address string) {
	if address == "" {
		verr.Add(field, "Email address is required")
		return
	}
	if utf8.RuneCountInString(address) > MaxEmailLength {
		verr.Add(field, fmt.Sprintf("The email must not be greater than %d characters.", MaxEmailLength))
		return
	}
	if !isEmailFormat(address) {
		verr.Add(field, "Please provide a valid email address")
	}
}

// isEmailFormat accepts a bare RFC 5322 address. Display names and angle
// brackets are rejected.
func isEmailFormat(address string) bool {
	parsed, err := mail.ParseAddress(address)
	if err != nil {
		return false
	}
	return parsed.Name == "" && parsed.Address == address
}

// validateEmailList checks a submitted list: size bounds, per-entry format
// and duplicates within the list itself.
func validateEmailList(verr *ValidationError, emails []model.EmailInput) {
	switch {
	case len(emails) == 0:
		verr.Add("emails", "At least one email address is required")
		return
	case len(emails) > MaxEmailsPerUser:
		verr.Add("emails", fmt.Sprintf("The emails must not have more than %d items.", MaxEmailsPerUser))
		return
	}

	seen := make(map[string]int, len(emails))
	for i, e := range emails {
		field := emailField(i)
		validateAddress(verr, field, e.Address)
		if verr.Has(field) {
			continue
		}
		if _, dup := seen[e.Address]; dup {
			verr.Add(field, fmt.Sprintf("The %s field has a duplicate value.", field))
			continue
		}
		seen[e.Address] = i
	}
}

func emailField(i int) string {
	return fmt.Sprintf("emails.%d.email", i)
}
