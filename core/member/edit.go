package member

import (
	"fmt"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/troopconnect/troopconnect/core"
)

// RoleSectionEdit is a proposed role/section edit of a person.
// A nil section removes the enrollment of that school year.
type RoleSectionEdit struct {
	PrimaryRole    string   `json:"primary_role" validate:"required"`
	SecondaryRoles []string `json:"secondary_roles"`
	CurrentSection *int     `json:"current_section"`
	NextSection    *int     `json:"next_section"`
	Email          string   `json:"email" validate:"omitempty,email"`
}

func (e *RoleSectionEdit) Clean() {
	e.PrimaryRole = core.CleanString(e.PrimaryRole, true /* lower */)
	e.Email = core.CleanString(e.Email, true /* lower */)

	seen := make(map[string]struct{}, len(e.SecondaryRoles))
	roles := make([]string, 0, len(e.SecondaryRoles))
	for _, r := range e.SecondaryRoles {
		r = core.CleanString(r, true /* lower */)
		if _, ok := seen[r]; ok || r == "" {
			continue
		}
		seen[r] = struct{}{}
		roles = append(roles, r)
	}
	e.SecondaryRoles = roles
}

// EditState is what an edit is validated and planned against.
type EditState struct {
	Person       Person
	Roles        []Role
	Sections     []Section
	Current      SchoolYear
	Next         *SchoolYear // nil when the next school year does not exist yet
	Enrollments  []Enrollment
	HasAccount   bool
	AccountEmail string
}

// ChangeSet holds every write an edit needs. Empty fields mean nothing to do.
type ChangeSet struct {
	PersonID      string       `json:"person_id"`
	PrimaryRole   string       `json:"primary_role,omitempty"`
	AddRoles      []string     `json:"add_roles,omitempty"`
	RemoveRoles   []string     `json:"remove_roles,omitempty"`
	Upserts       []Enrollment `json:"upserts,omitempty"`
	Deletes       []int        `json:"deletes,omitempty"` // school years
	CreateAccount string       `json:"create_account,omitempty"`
	UpdateEmail   string       `json:"update_email,omitempty"`
}

func (cs ChangeSet) IsEmpty() bool {
	return cs.PrimaryRole == "" && len(cs.AddRoles) == 0 && len(cs.RemoveRoles) == 0 && len(cs.Upserts) == 0 &&
		len(cs.Deletes) == 0 && cs.CreateAccount == "" && cs.UpdateEmail == ""
}

// ValidateEdit checks edit against st and reports every broken rule at once.
// The first failure is the returned *core.ValidationError's Err; errors.Is matches any of them.
func ValidateEdit(validate *validator.Validate, translator ut.Translator, edit *RoleSectionEdit, st EditState) error {
	edit.Clean()

	var flds []core.FieldError
	addErr := func(field string, kind error, detail ...string) {
		msg := kind.Error()
		if len(detail) > 0 {
			msg = detail[0] + ": " + msg
		}
		flds = append(flds, core.FieldError{Field: field, Error: msg, Kind: kind})
	}

	if err := validate.Struct(edit); err != nil {
		tagErrs, err := core.TranslateFieldErrors(err, translator)
		if err != nil {
			return err
		}
		flds = append(flds, tagErrs...)
	}

	// sections are for children and animators only
	if edit.PrimaryRole != "" && !CanHoldSection(edit.PrimaryRole) {
		if edit.CurrentSection != nil {
			addErr("current_section", ErrInvalidRoleSectionCombination)
		}
		if edit.NextSection != nil {
			addErr("next_section", ErrInvalidRoleSectionCombination)
		}
	}

	// roles must exist and sit in the right category
	roles := rolesByCode(st.Roles)
	if edit.PrimaryRole != "" {
		if r, ok := roles[edit.PrimaryRole]; !ok {
			addErr("primary_role", ErrUnknownRole, edit.PrimaryRole)
		} else if !r.IsPrimary {
			addErr("primary_role", ErrRoleCategoryMismatch, edit.PrimaryRole)
		}
	}
	for _, code := range edit.SecondaryRoles {
		if r, ok := roles[code]; !ok {
			addErr("secondary_roles", ErrUnknownRole, code)
		} else if r.IsPrimary {
			addErr("secondary_roles", ErrRoleCategoryMismatch, code)
		}
	}

	sections := make(map[int]struct{}, len(st.Sections))
	for _, s := range st.Sections {
		sections[s.ID] = struct{}{}
	}
	if edit.CurrentSection != nil {
		if _, ok := sections[*edit.CurrentSection]; !ok {
			addErr("current_section", ErrSectionNotFound, fmt.Sprintf("#%d", *edit.CurrentSection))
		}
	}
	if edit.NextSection != nil && st.Next != nil {
		if _, ok := sections[*edit.NextSection]; !ok {
			addErr("next_section", ErrSectionNotFound, fmt.Sprintf("#%d", *edit.NextSection))
		}
	}

	if len(flds) == 0 {
		return nil
	}
	return core.NewValidationError(flds[0].Kind, flds...)
}

// PlanEdit computes the writes turning st into the validated edit.
// The plan is empty when the edit is already applied.
func PlanEdit(edit RoleSectionEdit, st EditState) (ChangeSet, error) {
	cs := ChangeSet{PersonID: st.Person.ID}

	if edit.PrimaryRole != st.Person.PrimaryRole {
		cs.PrimaryRole = edit.PrimaryRole
	}

	// replace the whole secondary role set
	proposed := make(map[string]struct{}, len(edit.SecondaryRoles))
	for _, r := range edit.SecondaryRoles {
		proposed[r] = struct{}{}
	}
	held := make(map[string]struct{}, len(st.Person.SecondaryRoles))
	for _, r := range st.Person.SecondaryRoles {
		held[r] = struct{}{}
		if _, ok := proposed[r]; !ok {
			cs.RemoveRoles = append(cs.RemoveRoles, r)
		}
	}
	for _, r := range edit.SecondaryRoles {
		if _, ok := held[r]; !ok {
			cs.AddRoles = append(cs.AddRoles, r)
		}
	}

	if err := planEnrollment(&cs, st.Enrollments, st.Current.Name, edit.CurrentSection); err != nil {
		return ChangeSet{}, err
	}
	if st.Next != nil {
		if err := planEnrollment(&cs, st.Enrollments, st.Next.Name, edit.NextSection); err != nil {
			return ChangeSet{}, err
		}
	}

	if edit.Email != "" {
		if !st.HasAccount {
			cs.CreateAccount = edit.Email
		} else if !strings.EqualFold(edit.Email, st.AccountEmail) {
			cs.UpdateEmail = edit.Email
		}
	}
	return cs, nil
}

func planEnrollment(cs *ChangeSet, enrollments []Enrollment, year int, sectionID *int) error {
	existing, err := findEnrollment(enrollments, year)
	if err != nil {
		return err
	}
	switch {
	case sectionID != nil && (existing == nil || existing.SectionID != *sectionID):
		cs.Upserts = append(cs.Upserts, Enrollment{PersonID: cs.PersonID, SectionID: *sectionID, SchoolYear: year})
	case sectionID == nil && existing != nil:
		cs.Deletes = append(cs.Deletes, year)
	}
	return nil
}
