package dummydb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/troopconnect/troopconnect/core"
	"github.com/troopconnect/troopconnect/core/member"
)

type memberRepository struct {
	db *DB
}

var _ member.Repository = (*memberRepository)(nil) // interface compliance check

func NewMemberRepository(db *DB) *memberRepository {
	return &memberRepository{db: db}
}

// School years

func (repo *memberRepository) CreateSchoolYear(_ context.Context, sy member.SchoolYear, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.t.schoolYears[sy.Name]; ok {
		return member.ErrSchoolYearExists
	}
	repo.db.t.schoolYears[sy.Name] = sy
	return nil
}

func (repo *memberRepository) QuerySchoolYears(_ context.Context, _ ...core.DBExecutor) ([]member.SchoolYear, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	years := make([]member.SchoolYear, 0, len(repo.db.t.schoolYears))
	for _, sy := range repo.db.t.schoolYears {
		years = append(years, sy)
	}
	sort.Slice(years, func(i, j int) bool { return years[i].Name < years[j].Name })
	return years, nil
}

// Reference data

func (repo *memberRepository) CreateRoles(_ context.Context, roles []member.Role, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, r := range roles {
		if _, ok := repo.db.t.roles[r.Code]; !ok {
			repo.db.t.roles[r.Code] = r
		}
	}
	return nil
}

func (repo *memberRepository) QueryRoles(_ context.Context, _ ...core.DBExecutor) ([]member.Role, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	roles := make([]member.Role, 0, len(repo.db.t.roles))
	for _, r := range repo.db.t.roles {
		roles = append(roles, r)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].Code < roles[j].Code })
	return roles, nil
}

// CreateBranches adds or replaces branches. Branches are reference data loaded by migrations in SQL stores.
func (repo *memberRepository) CreateBranches(branches ...member.Branch) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, b := range branches {
		repo.db.t.branches[b.ID] = b
	}
}

// CreateSections adds or replaces sections.
func (repo *memberRepository) CreateSections(sections ...member.Section) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, s := range sections {
		repo.db.t.sections[s.ID] = s
	}
}

func (repo *memberRepository) QueryBranches(_ context.Context, _ ...core.DBExecutor) ([]member.Branch, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	branches := make([]member.Branch, 0, len(repo.db.t.branches))
	for _, b := range repo.db.t.branches {
		branches = append(branches, b)
	}
	sort.Slice(branches, func(i, j int) bool { return branches[i].ID < branches[j].ID })
	return branches, nil
}

func (repo *memberRepository) QuerySections(_ context.Context, _ ...core.DBExecutor) ([]member.Section, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	sections := make([]member.Section, 0, len(repo.db.t.sections))
	for _, s := range repo.db.t.sections {
		sections = append(sections, s)
	}
	sort.Slice(sections, func(i, j int) bool { return sections[i].ID < sections[j].ID })
	return sections, nil
}

// Persons

// person returns the stored person with its secondary roles. The caller holds the lock.
func (repo *memberRepository) person(id string) (member.Person, bool) {
	p, ok := repo.db.t.persons[id]
	if !ok {
		return member.Person{}, false
	}
	p.SecondaryRoles = make([]string, 0, len(repo.db.t.personRoles[id]))
	for r := range repo.db.t.personRoles[id] {
		p.SecondaryRoles = append(p.SecondaryRoles, r)
	}
	sort.Strings(p.SecondaryRoles)
	return p, true
}

func (repo *memberRepository) CreatePerson(_ context.Context, p member.Person, _ ...core.DBExecutor) (member.Person, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	p.ID = uuid.New().String()
	roles := p.SecondaryRoles
	p.SecondaryRoles = nil
	repo.db.t.persons[p.ID] = p
	if len(roles) > 0 {
		assigned := make(map[string]time.Time, len(roles))
		for _, r := range roles {
			assigned[r] = p.CreatedAt
		}
		repo.db.t.personRoles[p.ID] = assigned
	}
	p, _ = repo.person(p.ID)
	return p, nil
}

func (repo *memberRepository) GetPerson(_ context.Context, id string, _ ...core.DBExecutor) (member.Person, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if p, ok := repo.person(id); ok {
		return p, nil
	}
	return member.Person{}, member.ErrNotFound
}

func (repo *memberRepository) QueryPersons(_ context.Context, filter *member.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]member.Person, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var enrollments []member.Enrollment
	if filter != nil && (filter.SchoolYear != 0 || filter.SectionID != 0) {
		enrollments = make([]member.Enrollment, 0, len(repo.db.t.enrollments))
		for _, e := range repo.db.t.enrollments {
			enrollments = append(enrollments, e)
		}
	}

	persons := make([]member.Person, 0, len(repo.db.t.persons))
	for id := range repo.db.t.persons {
		p, _ := repo.person(id)
		if filter == nil || filter.Match(p, enrollments) {
			persons = append(persons, p)
		}
	}
	sortPersons(persons, ordering)
	return persons, nil
}

// sortPersons orders by ordering, then by name.
func sortPersons(persons []member.Person, ordering []core.DBOrdering) {
	sort.SliceStable(persons, func(i, j int) bool {
		a, b := persons[i], persons[j]
		for _, ord := range ordering {
			var cmp int
			switch ord.Field {
			case "first_name":
				cmp = strings.Compare(a.FirstName, b.FirstName)
			case "last_name":
				cmp = strings.Compare(a.LastName, b.LastName)
			case "status":
				cmp = strings.Compare(a.Status, b.Status)
			case "birthday":
				cmp = compareTimes(a.Birthday, b.Birthday)
			case "created_at":
				cmp = compareTimes(a.CreatedAt, b.CreatedAt)
			}
			if cmp != 0 {
				return (cmp < 0) == ord.Ascending
			}
		}
		if a.LastName != b.LastName {
			return a.LastName < b.LastName
		}
		if a.FirstName != b.FirstName {
			return a.FirstName < b.FirstName
		}
		return a.ID < b.ID
	})
}

func compareTimes(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}

func (repo *memberRepository) UpdatePerson(_ context.Context, p member.Person, _ ...core.DBExecutor) (member.Person, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	stored, ok := repo.db.t.persons[p.ID]
	if !ok {
		return member.Person{}, member.ErrNotFound
	}
	// roles have their own writes
	p.PrimaryRole = stored.PrimaryRole
	p.SecondaryRoles = nil
	p.CreatedAt = stored.CreatedAt
	repo.db.t.persons[p.ID] = p
	p, _ = repo.person(p.ID)
	return p, nil
}

func (repo *memberRepository) SetPrimaryRole(_ context.Context, personID, role string, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	p, ok := repo.db.t.persons[personID]
	if !ok {
		return member.ErrNotFound
	}
	p.PrimaryRole = role
	p.UpdatedAt = time.Now().UTC()
	repo.db.t.persons[personID] = p
	return nil
}

func (repo *memberRepository) AddSecondaryRoles(_ context.Context, personID string, roles []string, assignedOn time.Time, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.t.persons[personID]; !ok {
		return member.ErrNotFound
	}
	assigned, ok := repo.db.t.personRoles[personID]
	if !ok {
		assigned = make(map[string]time.Time, len(roles))
		repo.db.t.personRoles[personID] = assigned
	}
	for _, r := range roles {
		if _, ok := assigned[r]; !ok {
			assigned[r] = assignedOn
		}
	}
	return nil
}

func (repo *memberRepository) RemoveSecondaryRoles(_ context.Context, personID string, roles []string, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, r := range roles {
		delete(repo.db.t.personRoles[personID], r)
	}
	return nil
}

// Enrollments

func (repo *memberRepository) QueryEnrollments(_ context.Context, personID string, _ ...core.DBExecutor) ([]member.Enrollment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	enrollments := make([]member.Enrollment, 0)
	for k, e := range repo.db.t.enrollments {
		if k.personID == personID {
			enrollments = append(enrollments, e)
		}
	}
	sort.Slice(enrollments, func(i, j int) bool { return enrollments[i].SchoolYear < enrollments[j].SchoolYear })
	return enrollments, nil
}

func (repo *memberRepository) UpsertEnrollment(_ context.Context, e member.Enrollment, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.db.t.enrollments[enrollmentKey{personID: e.PersonID, schoolYear: e.SchoolYear}] = e
	return nil
}

func (repo *memberRepository) DeleteEnrollment(_ context.Context, personID string, schoolYear int, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	delete(repo.db.t.enrollments, enrollmentKey{personID: personID, schoolYear: schoolYear})
	return nil
}

// Parents & children

func (repo *memberRepository) CreateParentChild(_ context.Context, pc member.ParentChild, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	key := parentChildKey{parentID: pc.ParentID, childID: pc.ChildID}
	if _, ok := repo.db.t.parentChild[key]; !ok {
		repo.db.t.parentChild[key] = pc
	}
	return nil
}

func (repo *memberRepository) DeleteParentChild(_ context.Context, parentID, childID string, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	delete(repo.db.t.parentChild, parentChildKey{parentID: parentID, childID: childID})
	return nil
}

func (repo *memberRepository) QueryParents(_ context.Context, childID string, _ ...core.DBExecutor) ([]member.ParentChild, error) {
	return repo.queryParentChild(func(pc member.ParentChild) bool { return pc.ChildID == childID }), nil
}

func (repo *memberRepository) QueryChildren(_ context.Context, parentID string, _ ...core.DBExecutor) ([]member.ParentChild, error) {
	return repo.queryParentChild(func(pc member.ParentChild) bool { return pc.ParentID == parentID }), nil
}

func (repo *memberRepository) queryParentChild(match func(member.ParentChild) bool) []member.ParentChild {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	links := make([]member.ParentChild, 0)
	for _, pc := range repo.db.t.parentChild {
		if match(pc) {
			links = append(links, pc)
		}
	}
	sort.Slice(links, func(i, j int) bool {
		if links[i].ParentID != links[j].ParentID {
			return links[i].ParentID < links[j].ParentID
		}
		return links[i].ChildID < links[j].ChildID
	})
	return links
}
