package testutil

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/troopconnect/troopconnect/core"
	"github.com/troopconnect/troopconnect/core/account"
	"github.com/troopconnect/troopconnect/core/member"
	emailsvc "github.com/troopconnect/troopconnect/services/email"
	logsvc "github.com/troopconnect/troopconnect/services/logger"
	dummydb "github.com/troopconnect/troopconnect/storage/database/dummy"
)

// Section IDs of the default fixtures.
const (
	SectionBeavers = iota + 1
	SectionCubScouts
	SectionScouts
	SectionExplorers
)

var (
	DefaultBranches = []member.Branch{
		{ID: 1, Name: "Beavers", MinAgeDec31: IntPtr(6), MaxAgeDec31: IntPtr(7)},
		{ID: 2, Name: "Cub Scouts", MinAgeDec31: IntPtr(8), MaxAgeDec31: IntPtr(11)},
		{ID: 3, Name: "Scouts", MinAgeDec31: IntPtr(12), MaxAgeDec31: IntPtr(15)},
		{ID: 4, Name: "Explorers", MinAgeDec31: IntPtr(16), MaxAgeDec31: IntPtr(17)},
	}
	DefaultSections = []member.Section{
		{ID: SectionBeavers, Name: "Beavers", BranchID: IntPtr(1), Sex: member.SexBoth},
		{ID: SectionCubScouts, Name: "Cub Scouts", BranchID: IntPtr(2), Sex: member.SexBoth},
		{ID: SectionScouts, Name: "Scouts", BranchID: IntPtr(3), Sex: member.SexBoth},
		{ID: SectionExplorers, Name: "Explorers", BranchID: IntPtr(4), Sex: member.SexBoth},
	}
)

// Env is an in-memory application: repositories, services and a synchronous mail mock.
type Env struct {
	Conf        *core.Config
	Logger      core.Logger
	Validate    *validator.Validate
	Translator  ut.Translator
	DB          *dummydb.DB
	MemberRepo  member.Repository
	AccountRepo account.Repository
	MailSvc     *emailsvc.ConsoleServiceMock
	AccountSvc  account.Service
	MemberSvc   member.Service
}

func NewConfig() *core.Config {
	conf := core.NewConfig()
	conf.TestMode = true
	conf.FrontendBaseURL = "http://troop.test"
	return conf
}

func NewLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	logger.Enable(false)
	return logger
}

func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	account.InitValidators(validate, translator)
	return validate, translator
}

// Setup returns an Env with the default roles, branches and sections.
func Setup(t *testing.T) *Env {
	env := &Env{Conf: NewConfig()}
	env.Logger = NewLogger(env.Conf)
	env.Validate, env.Translator = NewValidator()

	env.DB = dummydb.Open()
	memberRepo := dummydb.NewMemberRepository(env.DB)
	memberRepo.CreateBranches(DefaultBranches...)
	memberRepo.CreateSections(DefaultSections...)
	env.MemberRepo = memberRepo
	env.AccountRepo = dummydb.NewAccountRepository(env.DB)

	env.MailSvc = emailsvc.NewConsoleServiceMock(env.Conf, env.Logger)
	env.AccountSvc = account.NewService(env.Conf, env.AccountRepo, env.MailSvc, env.Validate)
	env.MemberSvc = member.NewService(
		env.MemberRepo,
		env.DB,
		env.AccountSvc,
		emailsvc.NewNotifier(env.MailSvc),
		env.Logger,
		env.Validate,
		env.Translator,
		member.NewOptions(env.Conf),
	)

	if err := env.MemberSvc.SeedRoles(context.Background()); err != nil {
		t.Fatalf("SeedRoles() failed: %v", err)
	}
	return env
}

// FreezeTime sets member.NowFunc to now for the duration of the test.
func FreezeTime(t *testing.T, now time.Time) {
	member.NowFunc = func() time.Time { return now }
	t.Cleanup(func() { member.NowFunc = time.Now })
}

func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func IntPtr(i int) *int { return &i }

func CreateSchoolYears(t *testing.T, repo member.Repository, names ...int) {
	for _, name := range names {
		if err := repo.CreateSchoolYear(context.Background(), member.NewSchoolYear(name)); err != nil {
			t.Fatalf("CreateSchoolYear(%d) failed: %v", name, err)
		}
	}
}

func CreatePerson(
	t *testing.T,
	repo member.Repository,
	firstName, lastName string,
	birthday time.Time,
	primaryRole string,
	secondaryRoles ...string,
) member.Person {
	now := time.Now().UTC()
	p, err := repo.CreatePerson(context.Background(), member.Person{
		FirstName:      firstName,
		LastName:       lastName,
		Birthday:       birthday,
		Status:         member.StatusActive,
		PrimaryRole:    primaryRole,
		SecondaryRoles: secondaryRoles,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		t.Fatalf("CreatePerson() failed: %v", err)
	}
	return p
}

func Enroll(t *testing.T, repo member.Repository, personID string, sectionID, schoolYear int) {
	e := member.Enrollment{PersonID: personID, SectionID: sectionID, SchoolYear: schoolYear}
	if err := repo.UpsertEnrollment(context.Background(), e); err != nil {
		t.Fatalf("UpsertEnrollment() failed: %v", err)
	}
}

func LinkParent(t *testing.T, repo member.Repository, parentID, childID string) {
	if err := repo.CreateParentChild(context.Background(), member.ParentChild{ParentID: parentID, ChildID: childID}); err != nil {
		t.Fatalf("CreateParentChild() failed: %v", err)
	}
}

func CreateAccount(t *testing.T, repo account.Repository, personID, email, pwd string) account.Account {
	acc := account.Account{
		PersonID:   personID,
		Email:      email,
		IsActive:   true,
		DateJoined: time.Now().UTC(),
	}
	if pwd != "" {
		if err := acc.SetPassword(pwd); err != nil {
			t.Fatalf("SetPassword() failed: %v", err)
		}
	}
	acc, err := repo.CreateAccount(context.Background(), acc)
	if err != nil {
		t.Fatalf("CreateAccount() failed: %v", err)
	}
	return acc
}
