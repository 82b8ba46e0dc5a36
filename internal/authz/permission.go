package authz

import "strings"

// Action is one of the four operations a handler can perform on a
// resource section.
type Action string

const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
)

// ParseAction decodes an action name. Unknown actions resolve to deny at
// evaluation time, but handlers reject them early for clearer errors.
func ParseAction(s string) (Action, bool) {
	switch Action(strings.TrimSpace(strings.ToLower(s))) {
	case ActionView:
		return ActionView, true
	case ActionCreate:
		return ActionCreate, true
	case ActionEdit:
		return ActionEdit, true
	case ActionDelete:
		return ActionDelete, true
	default:
		return "", false
	}
}

// Resource sections known to the permission matrix. Sections are opaque
// strings; a section absent from the matrix denies everything.
const (
	SectionInventory      = "inventory"
	SectionFinance        = "finance"
	SectionPOS            = "pos"
	SectionTables         = "tables"
	SectionReports        = "reports"
	SectionAdminUsers     = "admin.users"
	SectionAdminCompanies = "admin.companies"
)

type actionSet uint8

const (
	maskView actionSet = 1 << iota
	maskCreate
	maskEdit
	maskDelete

	maskAll = maskView | maskCreate | maskEdit | maskDelete
)

func (s actionSet) has(a Action) bool {
	switch a {
	case ActionView:
		return s&maskView != 0
	case ActionCreate:
		return s&maskCreate != 0
	case ActionEdit:
		return s&maskEdit != 0
	case ActionDelete:
		return s&maskDelete != 0
	default:
		return false
	}
}

// grants is the whole permission matrix. There is deliberately no
// RoleSuperAdmin row: the superadmin bypass lives in Allowed and can
// never be weakened by editing this table.
var grants = map[Role]map[string]actionSet{
	RoleUser: {
		SectionTables: maskView,
		SectionPOS:    maskView,
	},
	RoleSeller: {
		SectionTables:    maskView | maskCreate | maskEdit,
		SectionPOS:       maskAll,
		SectionInventory: maskView | maskCreate | maskEdit,
		SectionReports:   maskView,
	},
	RoleAdmin: {
		SectionTables:     maskAll,
		SectionPOS:        maskAll,
		SectionInventory:  maskAll,
		SectionFinance:    maskAll,
		SectionReports:    maskAll,
		SectionAdminUsers: maskAll,
	},
}

// Allowed evaluates the permission matrix. Default is deny: an unknown
// role, section or action resolves to false. Superadmin short-circuits
// before any matrix lookup.
func Allowed(role Role, section string, action Action) bool {
	if role == RoleSuperAdmin {
		return true
	}
	sections, ok := grants[role]
	if !ok {
		return false
	}
	set, ok := sections[section]
	if !ok {
		return false
	}
	return set.has(action)
}
