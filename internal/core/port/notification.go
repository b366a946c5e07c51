package port

import "context"

// EmailSender delivers transactional account emails. Implementations report
// delivery failures as errors; callers treat them as non-fatal.
type EmailSender interface {
	SendVerificationEmail(ctx context.Context, to, username, token string) error
	SendPasswordResetEmail(ctx context.Context, to, username, token string) error
}
