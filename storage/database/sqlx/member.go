package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/troopconnect/troopconnect/core"
	"github.com/troopconnect/troopconnect/core/member"
)

const personColumns = `p.id, p.first_name, p.last_name, p.search_name, p.birthday, p.sex, p.address, p.phone,
	p.nickname, p.photo_consent, p.note, p.status, p.primary_role, p.created_at, p.updated_at`

type (
	schoolYearRow struct {
		Name      int       `db:"name"`
		StartDate time.Time `db:"start_date"`
		EndDate   time.Time `db:"end_date"`
		Range     string    `db:"range"`
	}

	roleRow struct {
		Code        string `db:"code"`
		Name        string `db:"name"`
		Description string `db:"description"`
		IsPrimary   bool   `db:"is_primary"`
	}

	branchRow struct {
		ID          int      `db:"id"`
		Name        string   `db:"name"`
		MinAgeDec31 null.Int `db:"min_age_dec_31"`
		MaxAgeDec31 null.Int `db:"max_age_dec_31"`
	}

	sectionRow struct {
		ID       int         `db:"id"`
		Name     string      `db:"name"`
		BranchID null.Int    `db:"branch_id"`
		Sex      null.String `db:"sex"`
	}

	personRow struct {
		ID           string      `db:"id"`
		FirstName    string      `db:"first_name"`
		LastName     string      `db:"last_name"`
		SearchName   string      `db:"search_name"`
		Birthday     null.Time   `db:"birthday"`
		Sex          null.String `db:"sex"`
		Address      null.String `db:"address"`
		Phone        null.String `db:"phone"`
		Nickname     null.String `db:"nickname"`
		PhotoConsent bool        `db:"photo_consent"`
		Note         null.String `db:"note"`
		Status       string      `db:"status"`
		PrimaryRole  string      `db:"primary_role"`
		CreatedAt    time.Time   `db:"created_at"`
		UpdatedAt    time.Time   `db:"updated_at"`
	}

	personRoleRow struct {
		PersonID string `db:"person_id"`
		RoleCode string `db:"role_code"`
	}

	parentChildRow struct {
		ParentID       string `db:"parent_id"`
		ChildID        string `db:"child_id"`
		PrimaryContact bool   `db:"primary_contact"`
	}

	enrollmentRow struct {
		PersonID   string `db:"person_id"`
		SectionID  int    `db:"section_id"`
		SchoolYear int    `db:"school_year"`
	}
)

func intPtr(i null.Int) *int {
	if !i.Valid {
		return nil
	}
	v := i.Int
	return &v
}

func dateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func toPersonRow(p member.Person) personRow {
	row := personRow{
		ID:           p.ID,
		FirstName:    p.FirstName,
		LastName:     p.LastName,
		SearchName:   member.SearchName(p.FirstName, p.LastName),
		Sex:          null.NewString(p.Sex, p.Sex != ""),
		Address:      null.NewString(p.Address, p.Address != ""),
		Phone:        null.NewString(p.Phone, p.Phone != ""),
		Nickname:     null.NewString(p.Nickname, p.Nickname != ""),
		PhotoConsent: p.PhotoConsent,
		Note:         null.NewString(p.Note, p.Note != ""),
		Status:       p.Status,
		PrimaryRole:  p.PrimaryRole,
		CreatedAt:    p.CreatedAt.UTC(),
		UpdatedAt:    p.UpdatedAt.UTC(),
	}
	if !p.Birthday.IsZero() {
		row.Birthday = null.TimeFrom(dateOf(p.Birthday))
	}
	return row
}

func (row personRow) person(roles []string) member.Person {
	p := member.Person{
		ID:             row.ID,
		FirstName:      row.FirstName,
		LastName:       row.LastName,
		Sex:            row.Sex.String,
		Address:        row.Address.String,
		Phone:          row.Phone.String,
		Nickname:       row.Nickname.String,
		PhotoConsent:   row.PhotoConsent,
		Note:           row.Note.String,
		Status:         row.Status,
		PrimaryRole:    row.PrimaryRole,
		SecondaryRoles: roles,
		CreatedAt:      row.CreatedAt.UTC(),
		UpdatedAt:      row.UpdatedAt.UTC(),
	}
	if row.Birthday.Valid {
		p.Birthday = dateOf(row.Birthday.Time)
	}
	if p.SecondaryRoles == nil {
		p.SecondaryRoles = make([]string, 0)
	}
	return p
}

type memberRepository struct {
	store
}

var _ member.Repository = (*memberRepository)(nil) // interface compliance check

func NewMemberRepository(db *sqlx.DB) *memberRepository {
	return &memberRepository{store: store{db: db}}
}

// trapNoRowsErr maps the "no rows" err to member.ErrNotFound
func (repo memberRepository) trapNoRowsErr(err error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return member.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

// School years

func (repo memberRepository) CreateSchoolYear(ctx context.Context, sy member.SchoolYear, exec ...core.DBExecutor) error {
	q := repo.db.Rebind(`INSERT INTO school_year (name, start_date, end_date, "range") VALUES (?, ?, ?, ?)`)
	if _, err := repo.getExec(exec).ExecContext(ctx, q, sy.Name, dateOf(sy.StartDate), dateOf(sy.EndDate), sy.Range); err != nil {
		return errors.Wrap(err, "inserting school year")
	}
	return nil
}

func (repo memberRepository) QuerySchoolYears(ctx context.Context, exec ...core.DBExecutor) ([]member.SchoolYear, error) {
	var rows []schoolYearRow
	q := `SELECT name, start_date, end_date, "range" FROM school_year ORDER BY start_date`
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &rows, q); err != nil {
		return nil, errors.Wrap(err, "selecting school years")
	}
	years := make([]member.SchoolYear, 0, len(rows))
	for _, row := range rows {
		years = append(years, member.SchoolYear{
			Name:      row.Name,
			StartDate: dateOf(row.StartDate),
			EndDate:   dateOf(row.EndDate),
			Range:     row.Range,
		})
	}
	return years, nil
}

// Reference data

func (repo memberRepository) CreateRoles(ctx context.Context, roles []member.Role, exec ...core.DBExecutor) error {
	q := repo.db.Rebind(`
		INSERT INTO role (code, name, description, is_primary) VALUES (?, ?, ?, ?)
		ON CONFLICT (code) DO NOTHING`)
	exe := repo.getExec(exec)
	for _, r := range roles {
		if _, err := exe.ExecContext(ctx, q, r.Code, r.Name, r.Description, r.IsPrimary); err != nil {
			return errors.Wrapf(err, "inserting role %s", r.Code)
		}
	}
	return nil
}

func (repo memberRepository) QueryRoles(ctx context.Context, exec ...core.DBExecutor) ([]member.Role, error) {
	var rows []roleRow
	q := `SELECT code, name, description, is_primary FROM role ORDER BY is_primary DESC, code`
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &rows, q); err != nil {
		return nil, errors.Wrap(err, "selecting roles")
	}
	roles := make([]member.Role, 0, len(rows))
	for _, row := range rows {
		roles = append(roles, member.Role(row))
	}
	return roles, nil
}

func (repo memberRepository) QueryBranches(ctx context.Context, exec ...core.DBExecutor) ([]member.Branch, error) {
	var rows []branchRow
	q := `SELECT id, name, min_age_dec_31, max_age_dec_31 FROM branch ORDER BY id`
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &rows, q); err != nil {
		return nil, errors.Wrap(err, "selecting branches")
	}
	branches := make([]member.Branch, 0, len(rows))
	for _, row := range rows {
		branches = append(branches, member.Branch{
			ID:          row.ID,
			Name:        row.Name,
			MinAgeDec31: intPtr(row.MinAgeDec31),
			MaxAgeDec31: intPtr(row.MaxAgeDec31),
		})
	}
	return branches, nil
}

func (repo memberRepository) QuerySections(ctx context.Context, exec ...core.DBExecutor) ([]member.Section, error) {
	var rows []sectionRow
	q := `SELECT id, name, branch_id, sex FROM section ORDER BY id`
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &rows, q); err != nil {
		return nil, errors.Wrap(err, "selecting sections")
	}
	sections := make([]member.Section, 0, len(rows))
	for _, row := range rows {
		sections = append(sections, member.Section{
			ID:       row.ID,
			Name:     row.Name,
			BranchID: intPtr(row.BranchID),
			Sex:      row.Sex.String,
		})
	}
	return sections, nil
}

// Persons

// secondaryRoles returns the secondary roles of the given persons, by person ID.
func (repo memberRepository) secondaryRoles(ctx context.Context, exe sqlx.ExtContext, personIDs []string) (map[string][]string, error) {
	roles := make(map[string][]string, len(personIDs))
	if len(personIDs) == 0 {
		return roles, nil
	}
	q, args, err := repo.in(`SELECT person_id, role_code FROM person_role WHERE person_id IN (?) ORDER BY role_code`, personIDs)
	if err != nil {
		return nil, errors.Wrap(err, "building person roles query")
	}
	var rows []personRoleRow
	if err = sqlx.SelectContext(ctx, exe, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting person roles")
	}
	for _, row := range rows {
		roles[row.PersonID] = append(roles[row.PersonID], row.RoleCode)
	}
	return roles, nil
}

func (repo memberRepository) CreatePerson(ctx context.Context, p member.Person, exec ...core.DBExecutor) (member.Person, error) {
	p.ID = uuid.New().String()
	row := toPersonRow(p)
	exe := repo.getExec(exec)

	q := repo.db.Rebind(`
		INSERT INTO person (id, first_name, last_name, search_name, birthday, sex, address, phone, nickname,
			photo_consent, note, status, primary_role, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := exe.ExecContext(ctx, q, row.ID, row.FirstName, row.LastName, row.SearchName, row.Birthday, row.Sex,
		row.Address, row.Phone, row.Nickname, row.PhotoConsent, row.Note, row.Status, row.PrimaryRole, row.CreatedAt,
		row.UpdatedAt)
	if err != nil {
		return member.Person{}, errors.Wrap(err, "inserting person")
	}

	if len(p.SecondaryRoles) > 0 {
		if err = repo.AddSecondaryRoles(ctx, p.ID, p.SecondaryRoles, p.CreatedAt, exec...); err != nil {
			return member.Person{}, err
		}
	}
	return repo.GetPerson(ctx, p.ID, exec...)
}

func (repo memberRepository) GetPerson(ctx context.Context, id string, exec ...core.DBExecutor) (member.Person, error) {
	if _, err := uuid.Parse(id); err != nil {
		return member.Person{}, member.ErrNotFound
	}
	exe := repo.getExec(exec)

	var row personRow
	q := repo.db.Rebind(fmt.Sprintf(`SELECT %s FROM person p WHERE p.id = ?`, personColumns))
	if err := sqlx.GetContext(ctx, exe, &row, q, id); err != nil {
		return member.Person{}, repo.trapNoRowsErr(err, "selecting person")
	}
	roles, err := repo.secondaryRoles(ctx, exe, []string{id})
	if err != nil {
		return member.Person{}, err
	}
	return row.person(roles[id]), nil
}

func (repo memberRepository) QueryPersons(ctx context.Context, filter *member.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]member.Person, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter != nil {
		// persons with a name or nickname containing the search keyword
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			where = append(where, "(p.search_name LIKE ? OR LOWER(COALESCE(p.nickname, '')) LIKE ?)")
			args = append(args, val, val)
		}
		if filter.Status != "" {
			where = append(where, "p.status = ?")
			args = append(args, filter.Status)
		}
		if filter.Role != "" {
			where = append(where, "(p.primary_role = ? OR EXISTS "+
				"(SELECT 1 FROM person_role pr WHERE pr.person_id = p.id AND pr.role_code = ?))")
			args = append(args, filter.Role, filter.Role)
		}
		if filter.BirthYear != 0 {
			where = append(where, "p.birthday >= ? AND p.birthday < ?")
			args = append(args,
				time.Date(filter.BirthYear, time.January, 1, 0, 0, 0, 0, time.UTC),
				time.Date(filter.BirthYear+1, time.January, 1, 0, 0, 0, 0, time.UTC))
		}
		if filter.SchoolYear != 0 || filter.SectionID != 0 {
			cond := "SELECT 1 FROM enrollment e WHERE e.person_id = p.id"
			if filter.SchoolYear != 0 {
				cond += " AND e.school_year = ?"
				args = append(args, filter.SchoolYear)
			}
			if filter.SectionID != 0 {
				cond += " AND e.section_id = ?"
				args = append(args, filter.SectionID)
			}
			where = append(where, "EXISTS ("+cond+")")
		}
	}

	q := fmt.Sprintf("SELECT %s FROM person p", personColumns)
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	orderList := make([]string, 0, len(ordering)+3)
	for _, ord := range ordering {
		if _, ok := member.OrderingFields[ord.Field]; ok {
			orderList = append(orderList, "p."+ord.String())
		}
	}
	orderList = append(orderList, "p.last_name ASC", "p.first_name ASC", "p.id ASC")
	q += " ORDER BY " + strings.Join(orderList, ", ")

	exe := repo.getExec(exec)
	var rows []personRow
	if err := sqlx.SelectContext(ctx, exe, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "selecting persons")
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	roles, err := repo.secondaryRoles(ctx, exe, ids)
	if err != nil {
		return nil, err
	}
	persons := make([]member.Person, 0, len(rows))
	for _, row := range rows {
		persons = append(persons, row.person(roles[row.ID]))
	}
	return persons, nil
}

func (repo memberRepository) UpdatePerson(ctx context.Context, p member.Person, exec ...core.DBExecutor) (member.Person, error) {
	row := toPersonRow(p)
	exe := repo.getExec(exec)

	q := repo.db.Rebind(`
		UPDATE person SET first_name = ?, last_name = ?, search_name = ?, birthday = ?, sex = ?, address = ?,
			phone = ?, nickname = ?, photo_consent = ?, note = ?, status = ?, updated_at = ?
		WHERE id = ?`)
	res, err := exe.ExecContext(ctx, q, row.FirstName, row.LastName, row.SearchName, row.Birthday, row.Sex,
		row.Address, row.Phone, row.Nickname, row.PhotoConsent, row.Note, row.Status, row.UpdatedAt, row.ID)
	if err != nil {
		return member.Person{}, errors.Wrap(err, "updating person")
	}
	if cnt, err := res.RowsAffected(); err == nil && cnt == 0 {
		return member.Person{}, member.ErrNotFound
	}
	return repo.GetPerson(ctx, p.ID, exec...)
}

func (repo memberRepository) SetPrimaryRole(ctx context.Context, personID, role string, exec ...core.DBExecutor) error {
	q := repo.db.Rebind(`UPDATE person SET primary_role = ?, updated_at = ? WHERE id = ?`)
	res, err := repo.getExec(exec).ExecContext(ctx, q, role, time.Now().UTC(), personID)
	if err != nil {
		return errors.Wrap(err, "updating primary role")
	}
	if cnt, err := res.RowsAffected(); err == nil && cnt == 0 {
		return member.ErrNotFound
	}
	return nil
}

func (repo memberRepository) AddSecondaryRoles(ctx context.Context, personID string, roles []string, assignedOn time.Time, exec ...core.DBExecutor) error {
	q := repo.db.Rebind(`
		INSERT INTO person_role (person_id, role_code, date_assigned) VALUES (?, ?, ?)
		ON CONFLICT (person_id, role_code) DO NOTHING`)
	exe := repo.getExec(exec)
	for _, r := range roles {
		if _, err := exe.ExecContext(ctx, q, personID, r, dateOf(assignedOn)); err != nil {
			return errors.Wrapf(err, "inserting role %s", r)
		}
	}
	return nil
}

func (repo memberRepository) RemoveSecondaryRoles(ctx context.Context, personID string, roles []string, exec ...core.DBExecutor) error {
	if len(roles) == 0 {
		return nil
	}
	q, args, err := repo.in(`DELETE FROM person_role WHERE person_id = ? AND role_code IN (?)`, personID, roles)
	if err != nil {
		return errors.Wrap(err, "building person roles query")
	}
	if _, err = repo.getExec(exec).ExecContext(ctx, q, args...); err != nil {
		return errors.Wrap(err, "deleting roles")
	}
	return nil
}

// Enrollments

func (repo memberRepository) QueryEnrollments(ctx context.Context, personID string, exec ...core.DBExecutor) ([]member.Enrollment, error) {
	var rows []enrollmentRow
	q := repo.db.Rebind(`SELECT person_id, section_id, school_year FROM enrollment WHERE person_id = ? ORDER BY school_year`)
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &rows, q, personID); err != nil {
		return nil, errors.Wrap(err, "selecting enrollments")
	}
	enrollments := make([]member.Enrollment, 0, len(rows))
	for _, row := range rows {
		enrollments = append(enrollments, member.Enrollment(row))
	}
	return enrollments, nil
}

func (repo memberRepository) UpsertEnrollment(ctx context.Context, e member.Enrollment, exec ...core.DBExecutor) error {
	q := repo.db.Rebind(`
		INSERT INTO enrollment (person_id, section_id, school_year) VALUES (?, ?, ?)
		ON CONFLICT (person_id, school_year) DO UPDATE SET section_id = excluded.section_id`)
	if _, err := repo.getExec(exec).ExecContext(ctx, q, e.PersonID, e.SectionID, e.SchoolYear); err != nil {
		return errors.Wrap(err, "upserting enrollment")
	}
	return nil
}

func (repo memberRepository) DeleteEnrollment(ctx context.Context, personID string, schoolYear int, exec ...core.DBExecutor) error {
	q := repo.db.Rebind(`DELETE FROM enrollment WHERE person_id = ? AND school_year = ?`)
	if _, err := repo.getExec(exec).ExecContext(ctx, q, personID, schoolYear); err != nil {
		return errors.Wrap(err, "deleting enrollment")
	}
	return nil
}

// Parents & children

func (repo memberRepository) CreateParentChild(ctx context.Context, pc member.ParentChild, exec ...core.DBExecutor) error {
	q := repo.db.Rebind(`
		INSERT INTO parent_child (parent_id, child_id, primary_contact) VALUES (?, ?, ?)
		ON CONFLICT (parent_id, child_id) DO NOTHING`)
	if _, err := repo.getExec(exec).ExecContext(ctx, q, pc.ParentID, pc.ChildID, pc.PrimaryContact); err != nil {
		return errors.Wrap(err, "inserting parent child link")
	}
	return nil
}

func (repo memberRepository) DeleteParentChild(ctx context.Context, parentID, childID string, exec ...core.DBExecutor) error {
	q := repo.db.Rebind(`DELETE FROM parent_child WHERE parent_id = ? AND child_id = ?`)
	if _, err := repo.getExec(exec).ExecContext(ctx, q, parentID, childID); err != nil {
		return errors.Wrap(err, "deleting parent child link")
	}
	return nil
}

func (repo memberRepository) queryParentChild(ctx context.Context, column, id string, exec []core.DBExecutor) ([]member.ParentChild, error) {
	var rows []parentChildRow
	q := repo.db.Rebind(fmt.Sprintf(
		`SELECT parent_id, child_id, primary_contact FROM parent_child WHERE %s = ? ORDER BY parent_id, child_id`, column))
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &rows, q, id); err != nil {
		return nil, errors.Wrap(err, "selecting parent child links")
	}
	links := make([]member.ParentChild, 0, len(rows))
	for _, row := range rows {
		links = append(links, member.ParentChild(row))
	}
	return links, nil
}

func (repo memberRepository) QueryParents(ctx context.Context, childID string, exec ...core.DBExecutor) ([]member.ParentChild, error) {
	return repo.queryParentChild(ctx, "child_id", childID, exec)
}

func (repo memberRepository) QueryChildren(ctx context.Context, parentID string, exec ...core.DBExecutor) ([]member.ParentChild, error) {
	return repo.queryParentChild(ctx, "parent_id", parentID, exec)
}
