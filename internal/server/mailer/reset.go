package mailer

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const ResetSubject = "Password Reset Request - WBCMS"

// ResetLink builds the frontend URL a user follows to choose a new password.
func ResetLink(frontendURL, token string) string {
	return strings.TrimRight(frontendURL, "/") + "/reset-password/" + url.PathEscape(token)
}

// ResetBody renders the plain-text reset message.
func ResetBody(link string, validity time.Duration) string {
	var b strings.Builder
	b.WriteString("Hello,\n\n")
	b.WriteString("You have requested to reset your password for the Web-based Complaint Monitoring System (WBCMS).\n\n")
	fmt.Fprintf(&b, "Click the following link to reset your password: %s\n\n", link)
	fmt.Fprintf(&b, "This link will expire in %s.\n\n", humanHours(validity))
	b.WriteString("If you did not request a password reset, please ignore this email and ensure your account is secure.\n\n")
	b.WriteString("Best regards,\nWBCMS Team")
	return b.String()
}

func humanHours(d time.Duration) string {
	h := int(d.Round(time.Hour) / time.Hour)
	if h <= 1 {
		return "1 hour"
	}
	return fmt.Sprintf("%d hours", h)
}
