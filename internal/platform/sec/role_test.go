// Copyright (c) 2026 Vendora Commerce. All rights reserved.
// Author: platform@vendora.dev

package sec_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vendora/vendora/internal/platform/sec"
)

/*
TestRole_AtLeast checks the role hierarchy ordering.
*/
func TestRole_AtLeast(t *testing.T) {
	tests := []struct {
		name    string
		role    sec.Role
		target  sec.Role
		satisfy bool
	}{
		{"super_admin_over_store_admin", sec.RoleSuperAdmin, sec.RoleStoreAdmin, true},
		{"store_admin_over_staff", sec.RoleStoreAdmin, sec.RoleStaff, true},
		{"staff_over_customer", sec.RoleStaff, sec.RoleCustomer, true},
		{"customer_equals_customer", sec.RoleCustomer, sec.RoleCustomer, true},
		{"customer_below_staff", sec.RoleCustomer, sec.RoleStaff, false},
		{"staff_below_store_admin", sec.RoleStaff, sec.RoleStoreAdmin, false},
		{"unknown_below_everything", sec.Role("ghost"), sec.RoleCustomer, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.satisfy, tt.role.AtLeast(tt.target))
		})
	}
}

/*
TestParseRole checks boundary validation of raw role strings.
*/
func TestParseRole(t *testing.T) {
	role, ok := sec.ParseRole("store_admin")
	assert.True(t, ok)
	assert.Equal(t, sec.RoleStoreAdmin, role)

	_, ok = sec.ParseRole("root")
	assert.False(t, ok)

	_, ok = sec.ParseRole("")
	assert.False(t, ok)
}

/*
TestParseStatus checks boundary validation of raw status strings.
*/
func TestParseStatus(t *testing.T) {
	status, ok := sec.ParseStatus("suspended")
	assert.True(t, ok)
	assert.Equal(t, sec.StatusSuspended, status)
	assert.False(t, status.IsActive())

	status, ok = sec.ParseStatus("active")
	assert.True(t, ok)
	assert.True(t, status.IsActive())

	_, ok = sec.ParseStatus("banned")
	assert.False(t, ok)
}
