// Copyright (c) 2026 Vendora Commerce. All rights reserved.
// Author: platform@vendora.dev

/*
Package notify defines the outbound notification contract for the identity core.

Actual delivery (template rendering, SMTP/provider integration) is an external
collaborator. The core invokes this interface with pre-built content references
and treats every send as best-effort: a delivery failure is logged by the
caller but never fails the security operation that triggered it.
*/
package notify

import (
	"context"
	"log/slog"
)

// Dispatcher is the contract for security-related account notifications.
type Dispatcher interface {

	/*
		SendVerificationEmail delivers the email-ownership verification link.

		Parameters:
		  - context: context.Context
		  - email: string (recipient)
		  - token: string (single-use verification token embedded in the link)

		Returns:
		  - error: Delivery failures (caller logs, never propagates)
	*/
	SendVerificationEmail(context context.Context, email, token string) error

	/*
		SendPasswordResetEmail delivers the password recovery link.

		Parameters:
		  - context: context.Context
		  - email: string
		  - token: string (single-use reset token embedded in the link)

		Returns:
		  - error: Delivery failures
	*/
	SendPasswordResetEmail(context context.Context, email, token string) error

	/*
		SendPasswordChangedNotice informs the owner that their password changed.

		Parameters:
		  - context: context.Context
		  - email: string

		Returns:
		  - error: Delivery failures
	*/
	SendPasswordChangedNotice(context context.Context, email string) error

	/*
		SendMFAEnabledNotice informs the owner that MFA was activated.

		Parameters:
		  - context: context.Context
		  - email: string

		Returns:
		  - error: Delivery failures
	*/
	SendMFAEnabledNotice(context context.Context, email string) error
}

// # Log Dispatcher

// LogDispatcher is the development/edge implementation: it records the intent
// to notify without delivering anything. Tokens are logged truncated.
type LogDispatcher struct {
	logger *slog.Logger
}

// NewLogDispatcher creates a [Dispatcher] that only logs.
func NewLogDispatcher(logger *slog.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

// SendVerificationEmail implements [Dispatcher].
func (dispatcher *LogDispatcher) SendVerificationEmail(context context.Context, email, token string) error {
	dispatcher.logger.InfoContext(context, "notify_verification_email",
		slog.String("email", email),
		slog.String("token_prefix", truncate(token)),
	)
	return nil
}

// SendPasswordResetEmail implements [Dispatcher].
func (dispatcher *LogDispatcher) SendPasswordResetEmail(context context.Context, email, token string) error {
	dispatcher.logger.InfoContext(context, "notify_password_reset_email",
		slog.String("email", email),
		slog.String("token_prefix", truncate(token)),
	)
	return nil
}

// SendPasswordChangedNotice implements [Dispatcher].
func (dispatcher *LogDispatcher) SendPasswordChangedNotice(context context.Context, email string) error {
	dispatcher.logger.InfoContext(context, "notify_password_changed", slog.String("email", email))
	return nil
}

// SendMFAEnabledNotice implements [Dispatcher].
func (dispatcher *LogDispatcher) SendMFAEnabledNotice(context context.Context, email string) error {
	dispatcher.logger.InfoContext(context, "notify_mfa_enabled", slog.String("email", email))
	return nil
}

// truncate keeps enough of a token to correlate logs without leaking it.
func truncate(token string) string {
	if len(token) <= 8 {
		return token
	}
	return token[:8] + "…"
}
