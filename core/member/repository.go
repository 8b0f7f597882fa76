package member

import (
	"context"
	"time"

	"github.com/troopconnect/troopconnect/core"
)

type (
	// Repository is the persistence collaborator.
	// Every method runs on the repository's own executor unless one is passed,
	// so writes can take part in a caller-managed transaction.
	Repository interface {
		CreateSchoolYear(ctx context.Context, sy SchoolYear, exec ...core.DBExecutor) error
		QuerySchoolYears(ctx context.Context, exec ...core.DBExecutor) ([]SchoolYear, error)

		// CreateRoles inserts the roles whose code does not exist yet.
		CreateRoles(ctx context.Context, roles []Role, exec ...core.DBExecutor) error
		QueryRoles(ctx context.Context, exec ...core.DBExecutor) ([]Role, error)

		QueryBranches(ctx context.Context, exec ...core.DBExecutor) ([]Branch, error)
		QuerySections(ctx context.Context, exec ...core.DBExecutor) ([]Section, error)

		CreatePerson(ctx context.Context, p Person, exec ...core.DBExecutor) (Person, error)
		GetPerson(ctx context.Context, id string, exec ...core.DBExecutor) (Person, error)
		// QueryPersons applies AND operation on available QueryFilter fields.
		// QueryFilter.Search is matched against folded names and nicknames.
		QueryPersons(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Person, error)
		UpdatePerson(ctx context.Context, p Person, exec ...core.DBExecutor) (Person, error)

		SetPrimaryRole(ctx context.Context, personID, role string, exec ...core.DBExecutor) error
		AddSecondaryRoles(ctx context.Context, personID string, roles []string, assignedOn time.Time, exec ...core.DBExecutor) error
		RemoveSecondaryRoles(ctx context.Context, personID string, roles []string, exec ...core.DBExecutor) error

		QueryEnrollments(ctx context.Context, personID string, exec ...core.DBExecutor) ([]Enrollment, error)
		// UpsertEnrollment creates the (person, school year) enrollment or moves it to e.SectionID.
		UpsertEnrollment(ctx context.Context, e Enrollment, exec ...core.DBExecutor) error
		DeleteEnrollment(ctx context.Context, personID string, schoolYear int, exec ...core.DBExecutor) error

		// CreateParentChild is a no-op for an existing pair.
		CreateParentChild(ctx context.Context, pc ParentChild, exec ...core.DBExecutor) error
		DeleteParentChild(ctx context.Context, parentID, childID string, exec ...core.DBExecutor) error
		QueryParents(ctx context.Context, childID string, exec ...core.DBExecutor) ([]ParentChild, error)
		QueryChildren(ctx context.Context, parentID string, exec ...core.DBExecutor) ([]ParentChild, error)
	}

	// Accounts is the account/identity collaborator.
	Accounts interface {
		HasAccount(ctx context.Context, personID string, exec ...core.DBExecutor) (bool, error)
		// AccountEmail returns the e-mail of the person's account; empty when none.
		AccountEmail(ctx context.Context, personID string, exec ...core.DBExecutor) (string, error)
		CreateAccount(ctx context.Context, personID, email string, exec ...core.DBExecutor) error
		UpdateEmail(ctx context.Context, personID, email string, exec ...core.DBExecutor) error
		// Emails maps person IDs to their account e-mails. Persons without an account are left out.
		Emails(ctx context.Context, personIDs []string, exec ...core.DBExecutor) (map[string]string, error)
		TriggerPasswordReset(ctx context.Context, email string) error
	}

	// Notifier sends templated notifications. It is fire-and-forget.
	Notifier interface {
		Notify(recipients []string, template string, data map[string]string)
	}
)
