// Package notify delivers verification and password reset codes to users.
package notify

import (
	"context"
	"log/slog"
)

// Notifier sends one-time codes out of band. Implementations must never log
// the code itself.
type Notifier interface {
	SendVerificationEmail(ctx context.Context, recipient, displayName, code string) error
	SendPasswordResetEmail(ctx context.Context, recipient, displayName, code string) error
}

// LogNotifier is a development fallback that records delivery attempts without
// sending anything. Codes are redacted from the output.
type LogNotifier struct{}

func (LogNotifier) SendVerificationEmail(ctx context.Context, recipient, displayName, code string) error {
	slog.InfoContext(ctx, "verification email suppressed",
		"recipient", recipient,
		"code_length", len(code),
	)
	return nil
}

func (LogNotifier) SendPasswordResetEmail(ctx context.Context, recipient, displayName, code string) error {
	slog.InfoContext(ctx, "password reset email suppressed",
		"recipient", recipient,
		"code_length", len(code),
	)
	return nil
}
