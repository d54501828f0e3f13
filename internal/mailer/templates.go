package mailer

import (
	"fmt"

	"github.com/userhub/userhub/internal/model"
)

// WelcomeSubject is the subject line of the welcome mail.
const WelcomeSubject = "Welcome to Our Application"

func welcomeEmailTemplate(user *model.User, recipient string) (string, string) {
	phone := "Not provided"
	if user.Phone != nil && *user.Phone != "" {
		phone = *user.Phone
	}
	primary := "Not set"
	if p := user.PrimaryEmail(); p != nil {
		primary = p.Address
	}

	body := fmt.Sprintf(`Hello %s,

Thank you for joining our application. We're excited to have you on board!

Your account details:
- Name: %s
- Phone: %s
- Primary Email: %s

This message was sent to %s.

If you have any questions, please don't hesitate to contact us.

Best regards,
The Team`, user.FullName(), user.FullName(), phone, primary, recipient)

	return WelcomeSubject, body
}
