package port

import "context"

// Mailer sends a single plain-text email. Implementations must be safe for
// concurrent use.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}
