package domain

// writers lists which roles may create documents of each kind.
// Activity entries can be appended by any member; memberships are governed separately.
var writers = map[EntityKind][]Role{
	KindClients:     {RoleAdmin, RoleSales},
	KindInvoices:    {RoleAdmin, RoleFinance},
	KindExpenses:    {RoleAdmin, RoleFinance},
	KindSoftware:    {RoleAdmin, RoleIT},
	KindTimeEntries: {RoleAdmin, RoleIT},
	KindLeads:       {RoleAdmin, RoleSales},
	KindActivity:    {RoleAdmin, RoleFinance, RoleSales, RoleIT, RoleViewer},
}

// CanWrite reports whether the role may create documents of the kind
func (r Role) CanWrite(kind EntityKind) bool {
	for _, allowed := range writers[kind] {
		if allowed == r {
			return true
		}
	}
	return false
}

// CanManageMembers reports whether the role may invite members and change roles
func (r Role) CanManageMembers() bool {
	return r == RoleAdmin
}

// CanManageOrganization reports whether the role may change organization settings
func (r Role) CanManageOrganization() bool {
	return r == RoleAdmin
}

// orgHousekeepingFields may be touched by any member as part of a regular write
var orgHousekeepingFields = map[string]bool{"updatedAt": true}

// IsHousekeepingUpdate reports whether an organization update only touches bookkeeping fields
func IsHousekeepingUpdate(fields map[string]interface{}) bool {
	for k := range fields {
		if !orgHousekeepingFields[k] {
			return false
		}
	}
	return true
}
