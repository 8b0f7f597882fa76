package sqlxrepos_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/troopconnect/troopconnect/core"
	"github.com/troopconnect/troopconnect/core/account"
	"github.com/troopconnect/troopconnect/core/member"
	emailsvc "github.com/troopconnect/troopconnect/services/email"
	"github.com/troopconnect/troopconnect/storage/database"
	sqlxrepos "github.com/troopconnect/troopconnect/storage/database/sqlx"
	testutil "github.com/troopconnect/troopconnect/tests"
)

type sqlEnv struct {
	db          *sqlx.DB
	memberRepo  member.Repository
	accountRepo account.Repository
	mailSvc     *emailsvc.ConsoleServiceMock
	accountSvc  account.Service
	memberSvc   member.Service
}

// setupDB migrates a fresh sqlite database and seeds the roles.
func setupDB(t *testing.T) *sqlEnv {
	t.Helper()
	conf := testutil.NewConfig()
	conf.Database.Engine = database.EngineSQLite
	conf.Database.Path = filepath.Join(t.TempDir(), "test.db")

	db, err := database.Open(conf)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db, "up"))

	logger := testutil.NewLogger(conf)
	validate, translator := testutil.NewValidator()
	env := &sqlEnv{
		db:          db,
		memberRepo:  sqlxrepos.NewMemberRepository(db),
		accountRepo: sqlxrepos.NewAccountRepository(db),
		mailSvc:     emailsvc.NewConsoleServiceMock(conf, logger),
	}
	env.accountSvc = account.NewService(conf, env.accountRepo, env.mailSvc, validate)
	env.memberSvc = member.NewService(
		env.memberRepo,
		core.NewSQLTransactor(db),
		env.accountSvc,
		emailsvc.NewNotifier(env.mailSvc),
		logger,
		validate,
		translator,
		member.NewOptions(conf),
	)
	require.NoError(t, env.memberSvc.SeedRoles(context.Background()))
	return env
}

func TestMemberRepository_ReferenceData(t *testing.T) {
	env := setupDB(t)
	ctx := context.Background()

	// seeding twice keeps the roles as they are
	require.NoError(t, env.memberSvc.SeedRoles(ctx))
	roles, err := env.memberRepo.QueryRoles(ctx)
	require.NoError(t, err)
	assert.Len(t, roles, len(member.DefaultRoles))
	assert.True(t, roles[0].IsPrimary)

	branches, err := env.memberRepo.QueryBranches(ctx)
	require.NoError(t, err)
	assert.Equal(t, testutil.DefaultBranches, branches)

	sections, err := env.memberRepo.QuerySections(ctx)
	require.NoError(t, err)
	assert.Equal(t, testutil.DefaultSections, sections)
}

func TestMemberRepository_SchoolYears(t *testing.T) {
	env := setupDB(t)
	ctx := context.Background()

	testutil.CreateSchoolYears(t, env.memberRepo, 2024, 2023)
	years, err := env.memberRepo.QuerySchoolYears(ctx)
	require.NoError(t, err)
	assert.Equal(t, []member.SchoolYear{member.NewSchoolYear(2023), member.NewSchoolYear(2024)}, years)

	assert.Error(t, env.memberRepo.CreateSchoolYear(ctx, member.NewSchoolYear(2023)))
}

func TestMemberRepository_Persons(t *testing.T) {
	env := setupDB(t)
	ctx := context.Background()
	testutil.CreateSchoolYears(t, env.memberRepo, 2023)

	now := time.Date(2024, time.January, 1, 10, 30, 0, 0, time.UTC)
	created, err := env.memberRepo.CreatePerson(ctx, member.Person{
		FirstName:      "Élodie",
		LastName:       "Dupré",
		Birthday:       testutil.Date(2013, time.April, 2),
		Sex:            member.SexFemale,
		Nickname:       "Castor",
		PhotoConsent:   true,
		Status:         member.StatusActive,
		PrimaryRole:    member.RoleAnimator,
		SecondaryRoles: []string{member.RoleTreasurer, member.RoleAdmin},
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	got, err := env.memberRepo.GetPerson(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Élodie", got.FirstName)
	assert.Equal(t, testutil.Date(2013, time.April, 2), got.Birthday)
	assert.Equal(t, []string{member.RoleAdmin, member.RoleTreasurer}, got.SecondaryRoles)
	assert.True(t, got.CreatedAt.Equal(now), got.CreatedAt.String())
	assert.True(t, got.PhotoConsent)
	assert.Empty(t, got.Address)

	marc := testutil.CreatePerson(t, env.memberRepo, "Marc", "Dupré", time.Time{}, member.RoleParent)
	anna := testutil.CreatePerson(t, env.memberRepo, "Anna", "Dupuis", testutil.Date(2013, time.May, 9), member.RoleChild)
	testutil.Enroll(t, env.memberRepo, anna.ID, testutil.SectionScouts, 2023)

	tests := []struct {
		name   string
		filter *member.QueryFilter
		want   []string
	}{
		{name: "no filter", want: []string{marc.ID, created.ID, anna.ID}},
		{name: "accent insensitive", filter: &member.QueryFilter{Search: "elodie dupre"}, want: []string{created.ID}},
		{name: "nickname", filter: &member.QueryFilter{Search: "castor"}, want: []string{created.ID}},
		{name: "secondary role", filter: &member.QueryFilter{Role: member.RoleTreasurer}, want: []string{created.ID}},
		{name: "primary role", filter: &member.QueryFilter{Role: member.RoleParent}, want: []string{marc.ID}},
		{name: "birth year", filter: &member.QueryFilter{BirthYear: 2013}, want: []string{created.ID, anna.ID}},
		{name: "section", filter: &member.QueryFilter{SectionID: testutil.SectionScouts}, want: []string{anna.ID}},
		{name: "other school year", filter: &member.QueryFilter{SchoolYear: 2024}, want: []string{}},
		{name: "status", filter: &member.QueryFilter{Status: member.StatusArchived}, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			persons, err := env.memberRepo.QueryPersons(ctx, tt.filter, nil)
			require.NoError(t, err)
			ids := make([]string, 0, len(persons))
			for _, p := range persons {
				ids = append(ids, p.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}

	persons, err := env.memberRepo.QueryPersons(ctx, nil, []core.DBOrdering{{Field: "birthday", Ascending: false}})
	require.NoError(t, err)
	require.Len(t, persons, 3)
	assert.Equal(t, "Anna", persons[0].FirstName)

	got.Nickname = ""
	got.Address = "1 place du Marché"
	got.Birthday = time.Time{}
	updated, err := env.memberRepo.UpdatePerson(ctx, got)
	require.NoError(t, err)
	assert.Empty(t, updated.Nickname)
	assert.Equal(t, "1 place du Marché", updated.Address)
	assert.True(t, updated.Birthday.IsZero())

	_, err = env.memberRepo.GetPerson(ctx, "unknown")
	assert.True(t, errors.Is(err, member.ErrNotFound), "got %v", err)
	_, err = env.memberRepo.GetPerson(ctx, "0b8c2a9e-53d4-4c36-9a53-3c0f3c8a1f10")
	assert.True(t, errors.Is(err, member.ErrNotFound), "got %v", err)
}

func TestMemberRepository_RolesAndEnrollments(t *testing.T) {
	env := setupDB(t)
	ctx := context.Background()
	testutil.CreateSchoolYears(t, env.memberRepo, 2023, 2024)
	p := testutil.CreatePerson(t, env.memberRepo, "Hugo", "Bernard", time.Time{}, member.RoleChild)

	require.NoError(t, env.memberRepo.SetPrimaryRole(ctx, p.ID, member.RoleAnimator))
	require.NoError(t, env.memberRepo.AddSecondaryRoles(ctx, p.ID, []string{member.RoleTreasurer, member.RoleAdmin}, time.Now()))
	require.NoError(t, env.memberRepo.AddSecondaryRoles(ctx, p.ID, []string{member.RoleTreasurer}, time.Now()))
	require.NoError(t, env.memberRepo.RemoveSecondaryRoles(ctx, p.ID, []string{member.RoleAdmin}))
	got, err := env.memberRepo.GetPerson(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, member.RoleAnimator, got.PrimaryRole)
	assert.Equal(t, []string{member.RoleTreasurer}, got.SecondaryRoles)

	assert.True(t, errors.Is(env.memberRepo.SetPrimaryRole(ctx, "unknown", member.RoleChild), member.ErrNotFound))

	testutil.Enroll(t, env.memberRepo, p.ID, testutil.SectionBeavers, 2023)
	testutil.Enroll(t, env.memberRepo, p.ID, testutil.SectionCubScouts, 2023)
	testutil.Enroll(t, env.memberRepo, p.ID, testutil.SectionScouts, 2024)
	enrollments, err := env.memberRepo.QueryEnrollments(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []member.Enrollment{
		{PersonID: p.ID, SectionID: testutil.SectionCubScouts, SchoolYear: 2023},
		{PersonID: p.ID, SectionID: testutil.SectionScouts, SchoolYear: 2024},
	}, enrollments)

	require.NoError(t, env.memberRepo.DeleteEnrollment(ctx, p.ID, 2024))
	enrollments, err = env.memberRepo.QueryEnrollments(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, enrollments, 1)
}

func TestMemberRepository_ParentChild(t *testing.T) {
	env := setupDB(t)
	ctx := context.Background()
	parent := testutil.CreatePerson(t, env.memberRepo, "Julie", "Leroy", time.Time{}, member.RoleParent)
	child := testutil.CreatePerson(t, env.memberRepo, "Adam", "Leroy", time.Time{}, member.RoleChild)

	pc := member.ParentChild{ParentID: parent.ID, ChildID: child.ID, PrimaryContact: true}
	require.NoError(t, env.memberRepo.CreateParentChild(ctx, pc))
	require.NoError(t, env.memberRepo.CreateParentChild(ctx, pc))

	parents, err := env.memberRepo.QueryParents(ctx, child.ID)
	require.NoError(t, err)
	assert.Equal(t, []member.ParentChild{pc}, parents)
	children, err := env.memberRepo.QueryChildren(ctx, parent.ID)
	require.NoError(t, err)
	assert.Equal(t, []member.ParentChild{pc}, children)

	require.NoError(t, env.memberRepo.DeleteParentChild(ctx, parent.ID, child.ID))
	parents, err = env.memberRepo.QueryParents(ctx, child.ID)
	require.NoError(t, err)
	assert.Empty(t, parents)
}

func TestAccountRepository(t *testing.T) {
	env := setupDB(t)
	ctx := context.Background()
	p1 := testutil.CreatePerson(t, env.memberRepo, "Anne", "Roche", time.Time{}, member.RoleParent)
	p2 := testutil.CreatePerson(t, env.memberRepo, "Yves", "Roche", time.Time{}, member.RoleParent)

	acc := testutil.CreateAccount(t, env.accountRepo, p1.ID, "anne@test.test", "Sc0ut!ng-Day")
	testutil.CreateAccount(t, env.accountRepo, p2.ID, "yves@test.test", "")

	for _, filter := range []account.GetFilter{{ID: acc.ID}, {PersonID: p1.ID}, {Email: "anne@test.test"}} {
		got, err := env.accountRepo.GetAccount(ctx, filter)
		require.NoError(t, err)
		assert.Equal(t, acc.ID, got.ID)
		assert.NoError(t, got.CheckPassword("Sc0ut!ng-Day"))
	}
	for _, filter := range []account.GetFilter{{ID: "nope"}, {PersonID: "nope"}, {Email: "nope@test.test"}, {}} {
		_, err := env.accountRepo.GetAccount(ctx, filter)
		assert.True(t, errors.Is(err, account.ErrNotFound), "got %v", err)
	}

	accounts, err := env.accountRepo.QueryAccounts(ctx, []string{p1.ID, p2.ID})
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "anne@test.test", accounts[0].Email)
	assert.False(t, accounts[1].HasUsablePassword())

	acc.IsActive = false
	acc.LastLogin = time.Date(2024, time.February, 3, 4, 5, 6, 0, time.UTC)
	_, err = env.accountRepo.UpdateAccount(ctx, acc)
	require.NoError(t, err)
	got, err := env.accountRepo.GetAccount(ctx, account.GetFilter{ID: acc.ID})
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.True(t, got.LastLogin.Equal(acc.LastLogin))

	// unique e-mails
	_, err = env.accountRepo.CreateAccount(ctx, account.Account{PersonID: p2.ID, Email: "anne@test.test", DateJoined: time.Now()})
	assert.Error(t, err)

	_, err = env.accountRepo.UpdateAccount(ctx, account.Account{ID: "0b8c2a9e-53d4-4c36-9a53-3c0f3c8a1f10", Email: "x@test.test"})
	assert.True(t, errors.Is(err, account.ErrNotFound), "got %v", err)
}

func TestMemberService_ApplyEdit(t *testing.T) {
	env := setupDB(t)
	ctx := context.Background()
	testutil.FreezeTime(t, testutil.Date(2024, time.January, 1))
	testutil.CreateSchoolYears(t, env.memberRepo, 2023, 2024)

	other := testutil.CreatePerson(t, env.memberRepo, "Paul", "Durand", time.Time{}, member.RoleParent)
	testutil.CreateAccount(t, env.accountRepo, other.ID, "taken@test.test", "")
	p := testutil.CreatePerson(t, env.memberRepo, "Emma", "Petit", time.Time{}, member.RoleParent, member.RoleActiveParent)

	edit := member.RoleSectionEdit{
		PrimaryRole:    member.RoleAnimator,
		SecondaryRoles: []string{member.RoleResponsibleAnimator},
		CurrentSection: testutil.IntPtr(testutil.SectionBeavers),
		NextSection:    testutil.IntPtr(testutil.SectionCubScouts),
		Email:          "taken@test.test",
	}

	// the transaction is rolled back
	_, err := env.memberSvc.ApplyEdit(ctx, p.ID, edit)
	assert.True(t, errors.Is(err, account.ErrEmailExists), "got %v", err)
	got, err := env.memberRepo.GetPerson(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, member.RoleParent, got.PrimaryRole)
	assert.Equal(t, []string{member.RoleActiveParent}, got.SecondaryRoles)
	enrollments, err := env.memberRepo.QueryEnrollments(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, enrollments)

	edit.Email = "emma@test.test"
	cs, err := env.memberSvc.ApplyEdit(ctx, p.ID, edit)
	require.NoError(t, err)
	assert.Len(t, cs.Upserts, 2)
	got, err = env.memberRepo.GetPerson(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, member.RoleAnimator, got.PrimaryRole)
	assert.Equal(t, []string{member.RoleResponsibleAnimator}, got.SecondaryRoles)

	res, err := env.memberSvc.ResolveSection(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Beavers", res.Label())
	assert.Equal(t, member.ResolutionCurrent, res.Tag())

	sent := env.mailSvc.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "account_invite", sent[0].TemplateName)

	cs, err = env.memberSvc.ApplyEdit(ctx, p.ID, edit)
	require.NoError(t, err)
	assert.True(t, cs.IsEmpty(), "%+v", cs)
}
