// Package authz is the single capability table gating scheduling operations by
// caller role. The transport layer consults it; the core itself stays
// role-agnostic.
package authz

type Role string

const (
	RoleClient  Role = "client"
	RoleManager Role = "manager"
)

type Operation string

const (
	OpListAvailability Operation = "list_availability"
	OpCreateSlot       Operation = "create_slot"
	OpGenerateSlots    Operation = "generate_slots"
	OpDeleteSlot       Operation = "delete_slot"
	OpReserveSlot      Operation = "reserve_slot"
	OpReleaseSlot      Operation = "release_slot"
	OpListSlots        Operation = "list_slots"
	OpCreateRequest    Operation = "create_request"
	OpReadRequest      Operation = "read_request"
	OpListRequests     Operation = "list_requests"
	OpProcessRequest   Operation = "process_request"
	OpCancelRequest    Operation = "cancel_request"
)

var capabilities = map[Operation]map[Role]struct{}{
	OpListAvailability: both(),
	OpCreateSlot:       managerOnly(),
	OpGenerateSlots:    managerOnly(),
	OpDeleteSlot:       managerOnly(),
	OpReserveSlot:      managerOnly(),
	OpReleaseSlot:      managerOnly(),
	OpListSlots:        both(),
	OpCreateRequest:    both(),
	OpReadRequest:      both(),
	OpListRequests:     managerOnly(),
	OpProcessRequest:   managerOnly(),
	OpCancelRequest:    both(),
}

// Can reports whether the role may perform the operation.
func Can(role Role, op Operation) bool {
	allowed, ok := capabilities[op]
	if !ok {
		return false
	}
	_, ok = allowed[role]
	return ok
}

func managerOnly() map[Role]struct{} {
	return map[Role]struct{}{RoleManager: {}}
}

func both() map[Role]struct{} {
	return map[Role]struct{}{RoleClient: {}, RoleManager: {}}
}
