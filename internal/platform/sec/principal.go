// Copyright (c) 2026 Vendora Commerce. All rights reserved.
// Author: platform@vendora.dev

package sec

// Principal represents the authenticated identity attached to a request.
//
// # Why a dedicated type?
//
// The middleware layer must not import the identity domain (that would create
// an import cycle: domain handlers use the middleware). Principal carries the
// session attributes every layer needs — nothing more.
type Principal struct {
	// SessionID is the opaque identifier of the backing session.
	SessionID string `json:"-"`

	// AccountID is the UUID of the authenticated account.
	AccountID string `json:"account_id"`

	// Email is the account email captured at session creation.
	Email string `json:"email"`

	// Role is the account role captured at session creation.
	Role Role `json:"role"`

	// TenantID scopes the principal to a store. Empty for platform-level accounts.
	TenantID string `json:"tenant_id,omitempty"`

	// MFAVerified reports whether multi-factor verification completed for
	// this session. False blocks MFA-gated endpoints via RequireMFACompleted.
	MFAVerified bool `json:"mfa_verified"`
}
