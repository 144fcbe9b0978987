package authz

import "testing"

func TestCan(t *testing.T) {
	tests := []struct {
		name string
		role Role
		op   Operation
		want bool
	}{
		{"client lists availability", RoleClient, OpListAvailability, true},
		{"client creates request", RoleClient, OpCreateRequest, true},
		{"client reads request", RoleClient, OpReadRequest, true},
		{"client cancels request", RoleClient, OpCancelRequest, true},
		{"client cannot create slot", RoleClient, OpCreateSlot, false},
		{"client cannot generate slots", RoleClient, OpGenerateSlots, false},
		{"client cannot delete slot", RoleClient, OpDeleteSlot, false},
		{"client cannot reserve slot", RoleClient, OpReserveSlot, false},
		{"client cannot release slot", RoleClient, OpReleaseSlot, false},
		{"client cannot list requests", RoleClient, OpListRequests, false},
		{"client cannot process request", RoleClient, OpProcessRequest, false},
		{"manager creates slot", RoleManager, OpCreateSlot, true},
		{"manager processes request", RoleManager, OpProcessRequest, true},
		{"manager lists requests", RoleManager, OpListRequests, true},
		{"manager cancels request", RoleManager, OpCancelRequest, true},
		{"unknown role denied", Role("intern"), OpListAvailability, false},
		{"unknown operation denied", RoleManager, Operation("drop_tables"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Can(tt.role, tt.op); got != tt.want {
				t.Errorf("Can(%q, %q) = %v, want %v", tt.role, tt.op, got, tt.want)
			}
		})
	}
}
