package member

// Primary roles
const (
	RoleNew      = "new"
	RoleAnimator = "animator"
	RoleParent   = "parent"
	RoleChild    = "child"
)

// Secondary roles
const (
	RoleActiveParent        = "active_parent"
	RoleResponsibleAnimator = "responsible_animator"
	RoleTreasurer           = "treasurer"
	RoleRegistrationAdmin   = "registration_admin"
	RoleAdmin               = "admin"
)

var (
	// DefaultRoles is the reference role table seeded on install.
	DefaultRoles = []Role{
		{Code: RoleNew, Name: "New", Description: "Registered, not yet validated by the staff", IsPrimary: true},
		{Code: RoleAnimator, Name: "Animator", Description: "Leads a section", IsPrimary: true},
		{Code: RoleParent, Name: "Parent", Description: "Parent of one or more members", IsPrimary: true},
		{Code: RoleChild, Name: "Child", Description: "Member enrolled in a section", IsPrimary: true},
		{Code: RoleActiveParent, Name: "Active Parent", Description: "Parent helping the unit"},
		{Code: RoleResponsibleAnimator, Name: "Responsible Animator", Description: "Animator in charge of a section"},
		{Code: RoleTreasurer, Name: "Treasurer", Description: "Manages the unit's finances"},
		{Code: RoleRegistrationAdmin, Name: "Registration Admin", Description: "Validates new registrations"},
		{Code: RoleAdmin, Name: "Admin", Description: "Manages the unit"},
	}

	// sectionRoles are the primary roles allowed to hold a section enrollment.
	sectionRoles = map[string]struct{}{
		RoleChild:    {},
		RoleAnimator: {},
	}
)

// CanHoldSection reports whether a person with the given primary role may be enrolled in a section.
func CanHoldSection(primaryRole string) bool {
	_, ok := sectionRoles[primaryRole]
	return ok
}

func rolesByCode(roles []Role) map[string]Role {
	byCode := make(map[string]Role, len(roles))
	for _, r := range roles {
		byCode[r.Code] = r
	}
	return byCode
}
