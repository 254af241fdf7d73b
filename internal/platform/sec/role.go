// Copyright (c) 2026 Vendora Commerce. All rights reserved.
// Author: platform@vendora.dev

package sec

// # Account Roles

// Role represents the authorization level granted to an account.
//
// Roles are a closed set validated at the boundary; stringly-typed
// comparisons against raw input are never allowed past [ParseRole].
type Role string

const (
	// Unrestricted platform access across all tenants
	RoleSuperAdmin Role = "super_admin"

	// Full administrative access within a single store (tenant)
	RoleStoreAdmin Role = "store_admin"

	// Operational access (orders, catalogue) within a store
	RoleStaff Role = "staff"

	// Default role for registered shoppers
	RoleCustomer Role = "customer"
)

// # Role Hierarchy

// AtLeast checks if the current role meets or exceeds the required target role.
func (r Role) AtLeast(target Role) bool {
	return r.level() >= target.level()
}

// IsValid reports whether the role is one of the closed set.
func (r Role) IsValid() bool {
	return r.level() > 0
}

// ParseRole validates a raw string against the closed role set.
func ParseRole(raw string) (Role, bool) {
	role := Role(raw)
	return role, role.IsValid()
}

// level maps a role to a numeric hierarchy level for comparison logic.
func (r Role) level() int {

	// Linear scale (10-40) allows for future intermediate roles
	switch r {
	case RoleSuperAdmin:
		return 40
	case RoleStoreAdmin:
		return 30
	case RoleStaff:
		return 20
	case RoleCustomer:
		return 10
	default:
		return 0
	}
}

// # Account Status

// AccountStatus represents the lifecycle state of an account.
type AccountStatus string

const (
	// StatusActive accounts may authenticate normally.
	StatusActive AccountStatus = "active"

	// StatusSuspended accounts are blocked by an administrator.
	StatusSuspended AccountStatus = "suspended"

	// StatusDeactivated accounts were closed by their owner.
	StatusDeactivated AccountStatus = "deactivated"
)

// IsActive reports whether the account may authenticate.
func (s AccountStatus) IsActive() bool {
	return s == StatusActive
}

// ParseStatus validates a raw string against the closed status set.
func ParseStatus(raw string) (AccountStatus, bool) {
	status := AccountStatus(raw)
	switch status {
	case StatusActive, StatusSuspended, StatusDeactivated:
		return status, true
	default:
		return status, false
	}
}
