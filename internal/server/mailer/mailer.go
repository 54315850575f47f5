// Package mailer delivers outbound e-mail. Delivery is a blocking call with
// no retry; a failure is returned to the caller wrapped in common.ErrDelivery.
package mailer

import "context"

// Mailer sends a single plain-text message.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}
