package member

import (
	"context"
	"fmt"
	"sort"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/troopconnect/troopconnect/core"
)

const newChildStaffTemplate = "new_child_staff"

var NowFunc = time.Now // mockable

type (
	Service interface {
		SchoolYears(ctx context.Context) ([]SchoolYear, error)
		// CurrentSchoolYear returns the current school year and the next one, nil when not created yet.
		CurrentSchoolYear(ctx context.Context) (SchoolYear, *SchoolYear, error)
		CreateSchoolYear(ctx context.Context, year int) (SchoolYear, error)
		// EnsureSchoolYears creates the current and next school years when missing.
		EnsureSchoolYears(ctx context.Context) ([]SchoolYear, error)

		SeedRoles(ctx context.Context) error
		Roles(ctx context.Context) ([]Role, error)
		Sections(ctx context.Context) ([]Section, error)
		BirthYearChoices(ctx context.Context) ([]BirthYearChoice, error)

		CreatePerson(ctx context.Context, np NewPerson) (Person, error)
		GetPerson(ctx context.Context, id string) (Person, error)
		QueryPersons(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Person, error)
		UpdatePerson(ctx context.Context, id string, up UpdatePerson) (Person, error)

		ResolveSection(ctx context.Context, personID string) (Resolution, error)
		// PreviewEdit validates edit and returns the writes ApplyEdit would make, without writing.
		PreviewEdit(ctx context.Context, personID string, edit RoleSectionEdit) (ChangeSet, error)
		ApplyEdit(ctx context.Context, personID string, edit RoleSectionEdit) (ChangeSet, error)

		LinkParent(ctx context.Context, parentID, childID string, primaryContact bool) error
		DetachChild(ctx context.Context, parentID, childID string) error
		RegisterChild(ctx context.Context, parentID string, np NewPerson) (Person, error)
		Children(ctx context.Context, parentID string) ([]Person, error)
		Parents(ctx context.Context, childID string) ([]Person, error)
	}

	Options struct {
		DefaultRole       string
		RegistrationRole  string
		BirthYearSpan     int
		FrontendBaseURL   string
		AdminUpdateURLFmt string // fmt taking the frontend base URL and the person ID
	}

	service struct {
		repo       Repository
		tx         core.Transactor
		accounts   Accounts
		notifier   Notifier
		logger     core.Logger
		validate   *validator.Validate
		translator ut.Translator
		opts       Options
	}
)

var _ Service = (*service)(nil)

func NewOptions(conf *core.Config) Options {
	return Options{
		DefaultRole:       conf.Members.DefaultRole,
		RegistrationRole:  conf.Members.RegistrationRole,
		BirthYearSpan:     conf.Members.BirthYearSpan,
		FrontendBaseURL:   conf.FrontendBaseURL,
		AdminUpdateURLFmt: conf.Members.AdminUpdateURLFmt,
	}
}

func NewService(
	repo Repository,
	tx core.Transactor,
	accounts Accounts,
	notifier Notifier,
	logger core.Logger,
	validate *validator.Validate,
	translator ut.Translator,
	opts Options,
) Service {
	if opts.DefaultRole == "" {
		opts.DefaultRole = RoleNew
	}
	if opts.RegistrationRole == "" {
		opts.RegistrationRole = RoleRegistrationAdmin
	}
	return &service{
		repo:       repo,
		tx:         tx,
		accounts:   accounts,
		notifier:   notifier,
		logger:     logger,
		validate:   validate,
		translator: translator,
		opts:       opts,
	}
}

func today() time.Time {
	return truncateDate(NowFunc().UTC())
}

// School years

func (svc *service) SchoolYears(ctx context.Context) ([]SchoolYear, error) {
	years, err := svc.repo.QuerySchoolYears(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying school years")
	}
	sortSchoolYears(years)
	return years, nil
}

func (svc *service) currentSchoolYear(ctx context.Context, exec ...core.DBExecutor) (SchoolYear, *SchoolYear, error) {
	years, err := svc.repo.QuerySchoolYears(ctx, exec...)
	if err != nil {
		return SchoolYear{}, nil, errors.Wrap(err, "querying school years")
	}
	current, err := CurrentSchoolYear(years, today())
	if err != nil {
		return SchoolYear{}, nil, err
	}
	next, err := NextSchoolYear(years, current)
	if errors.Is(err, ErrUnknownNextSchoolYear) { // next year operations are skipped
		return current, nil, nil
	}
	return current, &next, err
}

func (svc *service) CurrentSchoolYear(ctx context.Context) (SchoolYear, *SchoolYear, error) {
	return svc.currentSchoolYear(ctx)
}

func (svc *service) CreateSchoolYear(ctx context.Context, year int) (SchoolYear, error) {
	if year < 1900 || year > 9998 {
		return SchoolYear{}, core.NewValidationError(nil, core.FieldError{Field: "name", Error: "invalid school year"})
	}
	years, err := svc.repo.QuerySchoolYears(ctx)
	if err != nil {
		return SchoolYear{}, errors.Wrap(err, "querying school years")
	}
	for _, sy := range years {
		if sy.Name == year {
			return SchoolYear{}, core.NewValidationError(
				ErrSchoolYearExists,
				core.FieldError{Field: "name", Error: ErrSchoolYearExists.Error(), Kind: ErrSchoolYearExists},
			)
		}
	}
	sy := NewSchoolYear(year)
	if err = svc.repo.CreateSchoolYear(ctx, sy); err != nil {
		return SchoolYear{}, errors.Wrap(err, "creating school year")
	}
	return sy, nil
}

func (svc *service) EnsureSchoolYears(ctx context.Context) ([]SchoolYear, error) {
	years, err := svc.repo.QuerySchoolYears(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying school years")
	}
	existing := make(map[int]struct{}, len(years))
	for _, sy := range years {
		existing[sy.Name] = struct{}{}
	}

	current := SchoolYearStarting(today())
	for _, name := range []int{current, current + 1} {
		if _, ok := existing[name]; ok {
			continue
		}
		sy := NewSchoolYear(name)
		if err = svc.repo.CreateSchoolYear(ctx, sy); err != nil {
			return nil, errors.Wrapf(err, "creating school year %d", name)
		}
		years = append(years, sy)
	}
	sortSchoolYears(years)
	return years, nil
}

// Reference data

func (svc *service) SeedRoles(ctx context.Context) error {
	if err := svc.repo.CreateRoles(ctx, DefaultRoles); err != nil {
		return errors.Wrap(err, "seeding roles")
	}
	return nil
}

func (svc *service) Roles(ctx context.Context) ([]Role, error) {
	roles, err := svc.repo.QueryRoles(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying roles")
	}
	return roles, nil
}

func (svc *service) Sections(ctx context.Context) ([]Section, error) {
	sections, err := svc.repo.QuerySections(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying sections")
	}
	return sections, nil
}

func (svc *service) BirthYearChoices(ctx context.Context) ([]BirthYearChoice, error) {
	current, _, err := svc.currentSchoolYear(ctx)
	if err != nil {
		return nil, err
	}
	branches, err := svc.repo.QueryBranches(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying branches")
	}
	return BirthYearChoices(today(), current.Name, branches, svc.opts.BirthYearSpan), nil
}

// Persons

func (svc *service) newPerson(np NewPerson) Person {
	now := NowFunc().UTC()
	return Person{
		FirstName:    np.FirstName,
		LastName:     np.LastName,
		Birthday:     np.birthday(),
		Sex:          np.Sex,
		Address:      np.Address,
		Phone:        np.Phone,
		Nickname:     np.Nickname,
		PhotoConsent: np.PhotoConsent,
		Note:         np.Note,
		Status:       StatusRequested,
		PrimaryRole:  svc.opts.DefaultRole,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (svc *service) CreatePerson(ctx context.Context, np NewPerson) (Person, error) {
	if err := np.Validate(svc.validate); err != nil {
		return Person{}, err
	}
	p, err := svc.repo.CreatePerson(ctx, svc.newPerson(np))
	if err != nil {
		return Person{}, errors.Wrap(err, "creating person")
	}
	return p, nil
}

func (svc *service) GetPerson(ctx context.Context, id string) (Person, error) {
	return svc.repo.GetPerson(ctx, id)
}

func (svc *service) QueryPersons(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Person, error) {
	if filter != nil {
		filter.Clean()
	}
	persons, err := svc.repo.QueryPersons(ctx, filter, CleanOrderings(ordering))
	if err != nil {
		return nil, errors.Wrap(err, "querying persons")
	}
	return persons, nil
}

func (svc *service) UpdatePerson(ctx context.Context, id string, up UpdatePerson) (Person, error) {
	if err := up.Validate(svc.validate); err != nil {
		return Person{}, err
	}
	p, err := svc.repo.GetPerson(ctx, id)
	if err != nil {
		return Person{}, err
	}
	up.apply(&p)
	p.UpdatedAt = NowFunc().UTC()
	if p, err = svc.repo.UpdatePerson(ctx, p); err != nil {
		return Person{}, errors.Wrap(err, "updating person")
	}
	return p, nil
}

// Sections & edits

func (svc *service) ResolveSection(ctx context.Context, personID string) (Resolution, error) {
	if _, err := svc.repo.GetPerson(ctx, personID); err != nil {
		return Resolution{}, err
	}
	current, next, err := svc.currentSchoolYear(ctx)
	if err != nil {
		return Resolution{}, err
	}
	enrollments, err := svc.repo.QueryEnrollments(ctx, personID)
	if err != nil {
		return Resolution{}, errors.Wrap(err, "querying enrollments")
	}
	res, err := ResolveSection(current, next, enrollments)
	if err != nil {
		return Resolution{}, err
	}

	if res.Enrollment != nil {
		sections, err := svc.repo.QuerySections(ctx)
		if err != nil {
			return Resolution{}, errors.Wrap(err, "querying sections")
		}
		for i := range sections {
			if sections[i].ID == res.Enrollment.SectionID {
				res.Section = &sections[i]
				break
			}
		}
	}
	return res, nil
}

// editState loads everything an edit of personID is validated and planned against.
func (svc *service) editState(ctx context.Context, personID string, exec ...core.DBExecutor) (EditState, error) {
	var (
		st  EditState
		err error
	)
	if st.Person, err = svc.repo.GetPerson(ctx, personID, exec...); err != nil {
		return EditState{}, err
	}
	if st.Current, st.Next, err = svc.currentSchoolYear(ctx, exec...); err != nil {
		return EditState{}, err
	}
	if st.Roles, err = svc.repo.QueryRoles(ctx, exec...); err != nil {
		return EditState{}, errors.Wrap(err, "querying roles")
	}
	if st.Sections, err = svc.repo.QuerySections(ctx, exec...); err != nil {
		return EditState{}, errors.Wrap(err, "querying sections")
	}
	if st.Enrollments, err = svc.repo.QueryEnrollments(ctx, personID, exec...); err != nil {
		return EditState{}, errors.Wrap(err, "querying enrollments")
	}
	if st.HasAccount, err = svc.accounts.HasAccount(ctx, personID, exec...); err != nil {
		return EditState{}, errors.Wrap(err, "checking account")
	}
	if st.HasAccount {
		if st.AccountEmail, err = svc.accounts.AccountEmail(ctx, personID, exec...); err != nil {
			return EditState{}, errors.Wrap(err, "getting account email")
		}
	}
	return st, nil
}

func (svc *service) planEdit(ctx context.Context, personID string, edit *RoleSectionEdit, exec ...core.DBExecutor) (ChangeSet, error) {
	st, err := svc.editState(ctx, personID, exec...)
	if err != nil {
		return ChangeSet{}, err
	}
	if err = ValidateEdit(svc.validate, svc.translator, edit, st); err != nil {
		return ChangeSet{}, err
	}
	return PlanEdit(*edit, st)
}

func (svc *service) PreviewEdit(ctx context.Context, personID string, edit RoleSectionEdit) (ChangeSet, error) {
	return svc.planEdit(ctx, personID, &edit)
}

func (svc *service) ApplyEdit(ctx context.Context, personID string, edit RoleSectionEdit) (ChangeSet, error) {
	var cs ChangeSet
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if cs, err = svc.planEdit(ctx, personID, &edit, exec); err != nil {
			return err
		}
		return svc.applyChanges(ctx, cs, exec)
	})
	if err != nil {
		return ChangeSet{}, err
	}

	// best effort: the edit is committed whatever happens next
	if cs.CreateAccount != "" {
		if err = svc.accounts.TriggerPasswordReset(ctx, cs.CreateAccount); err != nil {
			svc.logger.Error("sending account invitation", errors.Wrap(err, "triggering password reset"),
				map[string]interface{}{"person_id": personID})
		}
	}
	return cs, nil
}

func (svc *service) applyChanges(ctx context.Context, cs ChangeSet, exec core.DBExecutor) error {
	if cs.PrimaryRole != "" {
		if err := svc.repo.SetPrimaryRole(ctx, cs.PersonID, cs.PrimaryRole, exec); err != nil {
			return errors.Wrap(err, "setting primary role")
		}
	}
	if len(cs.RemoveRoles) > 0 {
		if err := svc.repo.RemoveSecondaryRoles(ctx, cs.PersonID, cs.RemoveRoles, exec); err != nil {
			return errors.Wrap(err, "removing secondary roles")
		}
	}
	if len(cs.AddRoles) > 0 {
		if err := svc.repo.AddSecondaryRoles(ctx, cs.PersonID, cs.AddRoles, today(), exec); err != nil {
			return errors.Wrap(err, "adding secondary roles")
		}
	}
	for _, e := range cs.Upserts {
		if err := svc.repo.UpsertEnrollment(ctx, e, exec); err != nil {
			return errors.Wrapf(err, "enrolling in section %d for %d", e.SectionID, e.SchoolYear)
		}
	}
	for _, year := range cs.Deletes {
		if err := svc.repo.DeleteEnrollment(ctx, cs.PersonID, year, exec); err != nil {
			return errors.Wrapf(err, "deleting enrollment for %d", year)
		}
	}
	if cs.CreateAccount != "" {
		if err := svc.accounts.CreateAccount(ctx, cs.PersonID, cs.CreateAccount, exec); err != nil {
			return errors.Wrap(err, "creating account")
		}
	}
	if cs.UpdateEmail != "" {
		if err := svc.accounts.UpdateEmail(ctx, cs.PersonID, cs.UpdateEmail, exec); err != nil {
			return errors.Wrap(err, "updating account email")
		}
	}
	return nil
}

// Family

func (svc *service) LinkParent(ctx context.Context, parentID, childID string, primaryContact bool) error {
	if parentID == childID {
		return ErrParentChildCycle
	}
	return svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		for _, id := range []string{parentID, childID} {
			if _, err := svc.repo.GetPerson(ctx, id, exec); err != nil {
				return err
			}
		}
		isAncestor, err := svc.isAncestor(ctx, childID, parentID, exec)
		if err != nil {
			return err
		}
		if isAncestor {
			return ErrParentChildCycle
		}
		pc := ParentChild{ParentID: parentID, ChildID: childID, PrimaryContact: primaryContact}
		if err = svc.repo.CreateParentChild(ctx, pc, exec); err != nil {
			return errors.Wrap(err, "linking parent")
		}
		return nil
	})
}

// isAncestor reports whether ancestorID is personID or one of its ancestors.
func (svc *service) isAncestor(ctx context.Context, ancestorID, personID string, exec core.DBExecutor) (bool, error) {
	visited := map[string]struct{}{personID: {}}
	queue := []string{personID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if id == ancestorID {
			return true, nil
		}
		parents, err := svc.repo.QueryParents(ctx, id, exec)
		if err != nil {
			return false, errors.Wrap(err, "querying parents")
		}
		for _, pc := range parents {
			if _, ok := visited[pc.ParentID]; !ok {
				visited[pc.ParentID] = struct{}{}
				queue = append(queue, pc.ParentID)
			}
		}
	}
	return false, nil
}

func (svc *service) DetachChild(ctx context.Context, parentID, childID string) error {
	return svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		parents, err := svc.repo.QueryParents(ctx, childID, exec)
		if err != nil {
			return errors.Wrap(err, "querying parents")
		}
		var linked bool
		for _, pc := range parents {
			if pc.ParentID == parentID {
				linked = true
				break
			}
		}
		if !linked {
			return ErrNotParent
		}

		// the child must keep another parent, or manage their own account
		if len(parents) < 2 {
			child, err := svc.repo.GetPerson(ctx, childID, exec)
			if err != nil {
				return err
			}
			if !IsAdult(child.Birthday, today()) {
				return ErrDetachNotAllowed
			}
			hasAccount, err := svc.accounts.HasAccount(ctx, childID, exec)
			if err != nil {
				return errors.Wrap(err, "checking account")
			}
			if !hasAccount {
				return ErrDetachNotAllowed
			}
		}

		if err = svc.repo.DeleteParentChild(ctx, parentID, childID, exec); err != nil {
			return errors.Wrap(err, "detaching child")
		}
		return nil
	})
}

func (svc *service) RegisterChild(ctx context.Context, parentID string, np NewPerson) (Person, error) {
	if err := np.Validate(svc.validate); err != nil {
		return Person{}, err
	}

	var child Person
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		parent, err := svc.repo.GetPerson(ctx, parentID, exec)
		if err != nil {
			return err
		}

		p := svc.newPerson(np)
		if p.Address == "" {
			p.Address = parent.Address
		}
		if p.Phone == "" {
			p.Phone = parent.Phone
		}
		p.PhotoConsent = parent.PhotoConsent

		if child, err = svc.repo.CreatePerson(ctx, p, exec); err != nil {
			return errors.Wrap(err, "creating child")
		}
		pc := ParentChild{ParentID: parent.ID, ChildID: child.ID, PrimaryContact: true}
		if err = svc.repo.CreateParentChild(ctx, pc, exec); err != nil {
			return errors.Wrap(err, "linking parent")
		}
		return nil
	})
	if err != nil {
		return Person{}, err
	}

	svc.notifyRegistrationStaff(ctx, child)
	return child, nil
}

// notifyRegistrationStaff tells the registration admins a new child awaits validation.
func (svc *service) notifyRegistrationStaff(ctx context.Context, child Person) {
	staff, err := svc.repo.QueryPersons(ctx, &QueryFilter{Role: svc.opts.RegistrationRole}, nil)
	if err != nil {
		svc.logger.Error("notifying registration staff", errors.Wrap(err, "querying registration staff"))
		return
	}
	ids := make([]string, 0, len(staff))
	for _, p := range staff {
		ids = append(ids, p.ID)
	}
	emails, err := svc.accounts.Emails(ctx, ids)
	if err != nil {
		svc.logger.Error("notifying registration staff", errors.Wrap(err, "getting staff emails"))
		return
	}
	if len(emails) == 0 {
		svc.logger.Warn(fmt.Sprintf("no %s account to notify about new child %s", svc.opts.RegistrationRole, child.ID))
		return
	}

	recipients := make([]string, 0, len(emails))
	for _, email := range emails {
		recipients = append(recipients, email)
	}
	sort.Strings(recipients)

	svc.notifier.Notify(recipients, newChildStaffTemplate, map[string]string{
		"FirstName": child.FirstName,
		"LastName":  child.LastName,
		"URL":       fmt.Sprintf(svc.opts.AdminUpdateURLFmt, svc.opts.FrontendBaseURL, child.ID),
	})
}

func (svc *service) Children(ctx context.Context, parentID string) ([]Person, error) {
	if _, err := svc.repo.GetPerson(ctx, parentID); err != nil {
		return nil, err
	}
	links, err := svc.repo.QueryChildren(ctx, parentID)
	if err != nil {
		return nil, errors.Wrap(err, "querying children")
	}
	ids := make([]string, 0, len(links))
	for _, pc := range links {
		ids = append(ids, pc.ChildID)
	}
	return svc.getPersons(ctx, ids)
}

func (svc *service) Parents(ctx context.Context, childID string) ([]Person, error) {
	if _, err := svc.repo.GetPerson(ctx, childID); err != nil {
		return nil, err
	}
	links, err := svc.repo.QueryParents(ctx, childID)
	if err != nil {
		return nil, errors.Wrap(err, "querying parents")
	}
	ids := make([]string, 0, len(links))
	for _, pc := range links {
		ids = append(ids, pc.ParentID)
	}
	return svc.getPersons(ctx, ids)
}

func (svc *service) getPersons(ctx context.Context, ids []string) ([]Person, error) {
	persons := make([]Person, 0, len(ids))
	for _, id := range ids {
		p, err := svc.repo.GetPerson(ctx, id)
		if err != nil {
			return nil, errors.Wrapf(err, "getting person %s", id)
		}
		persons = append(persons, p)
	}
	sort.Slice(persons, func(i, j int) bool { return persons[i].FullName() < persons[j].FullName() })
	return persons, nil
}
