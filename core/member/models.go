package member

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/troopconnect/troopconnect/core"
)

// Person statuses
const (
	StatusActive    = "active"
	StatusArchived  = "archived"
	StatusRequested = "requested"
)

// Sexes. SexBoth only applies to sections.
const (
	SexMale   = "M"
	SexFemale = "F"
	SexBoth   = "B"
)

var Statuses = []string{StatusActive, StatusArchived, StatusRequested}

type (
	Person struct {
		ID             string    `json:"id"`
		FirstName      string    `json:"first_name"`
		LastName       string    `json:"last_name"`
		Birthday       time.Time `json:"birthday"` // UTC date; zero when unknown
		Sex            string    `json:"sex"`
		Address        string    `json:"address"`
		Phone          string    `json:"phone"`
		Nickname       string    `json:"nickname"`
		PhotoConsent   bool      `json:"photo_consent"`
		Note           string    `json:"note"`
		Status         string    `json:"status"`
		PrimaryRole    string    `json:"primary_role"`
		SecondaryRoles []string  `json:"secondary_roles"`
		CreatedAt      time.Time `json:"created_at"` // UTC
		UpdatedAt      time.Time `json:"updated_at"` // UTC
	}

	Role struct {
		Code        string `json:"code"`
		Name        string `json:"name"`
		Description string `json:"description"`
		IsPrimary   bool   `json:"is_primary"`
	}

	SchoolYear struct {
		Name      int       `json:"name"`
		StartDate time.Time `json:"start_date"`
		EndDate   time.Time `json:"end_date"`
		Range     string    `json:"range"`
	}

	// Branch is an age band. Both bounds are ages at December 31 of the school year, inclusive.
	Branch struct {
		ID          int    `json:"id"`
		Name        string `json:"name"`
		MinAgeDec31 *int   `json:"min_age_dec_31"`
		MaxAgeDec31 *int   `json:"max_age_dec_31"`
	}

	Section struct {
		ID       int    `json:"id"`
		Name     string `json:"name"`
		BranchID *int   `json:"branch_id"`
		Sex      string `json:"sex"`
	}

	Enrollment struct {
		PersonID   string `json:"person_id"`
		SectionID  int    `json:"section_id"`
		SchoolYear int    `json:"school_year"`
	}

	ParentChild struct {
		ParentID       string `json:"parent_id"`
		ChildID        string `json:"child_id"`
		PrimaryContact bool   `json:"primary_contact"`
	}
)

func (p Person) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

func (p Person) HasRole(code string) bool {
	if p.PrimaryRole == code {
		return true
	}
	for _, r := range p.SecondaryRoles {
		if r == code {
			return true
		}
	}
	return false
}

// Contains reports whether day falls within the school year, bounds included.
func (sy SchoolYear) Contains(day time.Time) bool {
	day = truncateDate(day)
	return !day.Before(sy.StartDate) && !day.After(sy.EndDate)
}

// NewPerson contains information needed to create a new Person.
type NewPerson struct {
	FirstName    string `json:"first_name" validate:"required,notblank,max=150"`
	LastName     string `json:"last_name" validate:"required,notblank,max=150"`
	Birthday     string `json:"birthday" validate:"omitempty,datetime=2006-01-02"`
	Sex          string `json:"sex" validate:"omitempty,oneof=M F"`
	Address      string `json:"address"`
	Phone        string `json:"phone" validate:"max=30"`
	Nickname     string `json:"nickname" validate:"max=100"`
	PhotoConsent bool   `json:"photo_consent"`
	Note         string `json:"note"`
}

func (np *NewPerson) Validate(validate *validator.Validate) error {
	np.FirstName = core.CleanString(np.FirstName)
	np.LastName = core.CleanString(np.LastName)
	np.Birthday = core.CleanString(np.Birthday)
	np.Sex = strings.ToUpper(core.CleanString(np.Sex))
	np.Address = core.CleanString(np.Address)
	np.Phone = core.CleanString(np.Phone)
	np.Nickname = core.CleanString(np.Nickname)
	np.Note = core.CleanString(np.Note)
	return validate.Struct(np)
}

// birthday returns the parsed birthday; zero when absent.
func (np NewPerson) birthday() time.Time {
	if np.Birthday == "" {
		return time.Time{}
	}
	bday, err := time.Parse("2006-01-02", np.Birthday)
	if err != nil {
		return time.Time{}
	}
	return bday
}

// UpdatePerson defines what information may be provided to modify an existing Person.
// Nil fields are left unchanged; an empty Birthday clears it.
type UpdatePerson struct {
	FirstName    *string `json:"first_name" validate:"omitnil,notblank,max=150"`
	LastName     *string `json:"last_name" validate:"omitnil,notblank,max=150"`
	Birthday     *string `json:"birthday" validate:"omitempty,datetime=2006-01-02"`
	Sex          *string `json:"sex" validate:"omitempty,oneof=M F"`
	Address      *string `json:"address"`
	Phone        *string `json:"phone" validate:"omitempty,max=30"`
	Nickname     *string `json:"nickname" validate:"omitempty,max=100"`
	PhotoConsent *bool   `json:"photo_consent"`
	Note         *string `json:"note"`
	Status       *string `json:"status" validate:"omitempty,oneof=active archived requested"`
}

func (up *UpdatePerson) Validate(validate *validator.Validate) error {
	for _, fld := range []*string{up.FirstName, up.LastName, up.Birthday, up.Address, up.Phone, up.Nickname, up.Note} {
		if fld != nil {
			*fld = core.CleanString(*fld)
		}
	}
	if up.Sex != nil {
		*up.Sex = strings.ToUpper(core.CleanString(*up.Sex))
	}
	if up.Status != nil {
		*up.Status = core.CleanString(*up.Status, true /* lower */)
	}
	return validate.Struct(up)
}

func (up UpdatePerson) apply(p *Person) {
	if up.FirstName != nil {
		p.FirstName = *up.FirstName
	}
	if up.LastName != nil {
		p.LastName = *up.LastName
	}
	if up.Birthday != nil {
		p.Birthday = NewPerson{Birthday: *up.Birthday}.birthday()
	}
	if up.Sex != nil {
		p.Sex = *up.Sex
	}
	if up.Address != nil {
		p.Address = *up.Address
	}
	if up.Phone != nil {
		p.Phone = *up.Phone
	}
	if up.Nickname != nil {
		p.Nickname = *up.Nickname
	}
	if up.PhotoConsent != nil {
		p.PhotoConsent = *up.PhotoConsent
	}
	if up.Note != nil {
		p.Note = *up.Note
	}
	if up.Status != nil {
		p.Status = *up.Status
	}
}

type QueryFilter struct {
	Search     string `query:"search"`
	Status     string `query:"status"`
	Role       string `query:"role"`
	SchoolYear int    `query:"school_year"`
	SectionID  int    `query:"section"`
	BirthYear  int    `query:"birth_year"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Status == "" && qf.Role == "" && qf.SchoolYear == 0 && qf.SectionID == 0 &&
		qf.BirthYear == 0
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.FoldString(qf.Search)
	qf.Status = core.CleanString(qf.Status, true /* lower */)
	qf.Role = core.CleanString(qf.Role, true /* lower */)
}

// Match applies the filter to a single Person.
// enrollments are the person's enrollments, used by the school year and section filters.
func (qf *QueryFilter) Match(p Person, enrollments []Enrollment) bool {
	if qf.Search != "" {
		if !strings.Contains(SearchName(p.FirstName, p.LastName), qf.Search) &&
			!strings.Contains(core.FoldString(p.Nickname), qf.Search) {
			return false
		}
	}
	if qf.Status != "" && p.Status != qf.Status {
		return false
	}
	if qf.Role != "" && !p.HasRole(qf.Role) {
		return false
	}
	if qf.BirthYear != 0 && (p.Birthday.IsZero() || p.Birthday.Year() != qf.BirthYear) {
		return false
	}
	if qf.SchoolYear != 0 || qf.SectionID != 0 {
		var found bool
		for _, e := range enrollments {
			if e.PersonID != p.ID {
				continue
			}
			if (qf.SchoolYear == 0 || e.SchoolYear == qf.SchoolYear) && (qf.SectionID == 0 || e.SectionID == qf.SectionID) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// SearchName is the folded "first last" form persons are searched by.
func SearchName(firstName, lastName string) string {
	return core.FoldString(firstName + " " + lastName)
}

// OrderingFields whitelists the fields persons can be ordered by.
var OrderingFields = map[string]string{
	"first_name": "first_name",
	"last_name":  "last_name",
	"birthday":   "birthday",
	"status":     "status",
	"created_at": "created_at",
}

// CleanOrderings drops orderings on unknown fields.
func CleanOrderings(orderings []core.DBOrdering) []core.DBOrdering {
	cleaned := make([]core.DBOrdering, 0, len(orderings))
	for _, ord := range orderings {
		if col, ok := OrderingFields[ord.Field]; ok {
			cleaned = append(cleaned, core.DBOrdering{Field: col, Ascending: ord.Ascending})
		}
	}
	return cleaned
}
