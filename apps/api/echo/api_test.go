package echoapi_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/troopconnect/troopconnect/apps/api/echo"
	"github.com/troopconnect/troopconnect/core/member"
	testutil "github.com/troopconnect/troopconnect/tests"
)

func TestHome(t *testing.T) {
	_, app := setup(t)
	rec := serve(app, http.MethodGet, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to TroopConnect API!", rec.Body.String())
}

func TestReferenceAPI(t *testing.T) {
	env, app := setup(t)
	testutil.FreezeTime(t, testutil.Date(2024, time.January, 10))

	// no school year yet
	runHTTPTests(t, app, []httpTest{
		{
			name:     "missing current school year",
			method:   http.MethodGet,
			path:     "/v1/school-years/current",
			wantCode: http.StatusServiceUnavailable,
			wantData: marchallObj(t, httpErr{Error: member.ErrMissingCurrentSchoolYear.Error()}),
		},
		{
			name:     "birth years need a current school year",
			method:   http.MethodGet,
			path:     "/v1/birth-years",
			wantCode: http.StatusServiceUnavailable,
		},
		{
			name:     "empty school years",
			method:   http.MethodGet,
			path:     "/v1/school-years",
			wantCode: http.StatusOK,
			wantData: []byte("[]"),
		},
	})

	testutil.CreateSchoolYears(t, env.MemberRepo, 2023)
	sy2023, sy2024 := member.NewSchoolYear(2023), member.NewSchoolYear(2024)

	runHTTPTests(t, app, []httpTest{
		{
			name:     "current without next",
			method:   http.MethodGet,
			path:     "/v1/school-years/current",
			wantCode: http.StatusOK,
			wantData: marchallObj(t, echoapi.CurrentSchoolYearResponse{Current: sy2023}),
		},
		{
			name:     "create school year",
			method:   http.MethodPost,
			path:     "/v1/school-years",
			body:     []byte(`{"year": 2024}`),
			wantCode: http.StatusCreated,
			wantData: marchallObj(t, sy2024),
		},
		{
			name:     "existing school year",
			method:   http.MethodPost,
			path:     "/v1/school-years",
			body:     []byte(`{"year": 2024}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"name": "this school year already exists"}`),
		},
		{
			name:     "invalid school year",
			method:   http.MethodPost,
			path:     "/v1/school-years",
			body:     []byte(`{"year": 1800}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"name": "invalid school year"}`),
		},
		{
			name:     "malformed body",
			method:   http.MethodPost,
			path:     "/v1/school-years",
			body:     []byte(`{"year": "soon"`),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "current with next",
			method:   http.MethodGet,
			path:     "/v1/school-years/current",
			wantCode: http.StatusOK,
			wantData: marchallObj(t, echoapi.CurrentSchoolYearResponse{Current: sy2023, Next: &sy2024}),
		},
		{
			name:     "sections",
			method:   http.MethodGet,
			path:     "/v1/sections",
			wantCode: http.StatusOK,
			wantData: marchallObj(t, testutil.DefaultSections),
		},
	})

	rec := serve(app, http.MethodGet, "/v1/roles")
	require.Equal(t, http.StatusOK, rec.Code)
	var roles []member.Role
	unmarshallObj(t, rec, &roles)
	assert.ElementsMatch(t, member.DefaultRoles, roles)

	rec = serve(app, http.MethodGet, "/v1/birth-years")
	require.Equal(t, http.StatusOK, rec.Code)
	var choices []member.BirthYearChoice
	unmarshallObj(t, rec, &choices)
	require.Len(t, choices, env.Conf.Members.BirthYearSpan)
	assert.Equal(t, 2024, choices[0].Year)
}

func TestMemberAPI_Persons(t *testing.T) {
	_, app := setup(t)

	rec := serve(app, http.MethodPost, "/v1/members",
		[]byte(`{"first_name": " Léa ", "last_name": "Martin", "birthday": "2015-03-01", "sex": "f"}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var lea member.Person
	unmarshallObj(t, rec, &lea)
	assert.Equal(t, "Léa", lea.FirstName)
	assert.Equal(t, member.SexFemale, lea.Sex)
	assert.Equal(t, member.RoleNew, lea.PrimaryRole)
	assert.Equal(t, member.StatusRequested, lea.Status)

	rec = serve(app, http.MethodPost, "/v1/members", []byte(`{"first_name": "Marc", "last_name": "Martin"}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var marc member.Person
	unmarshallObj(t, rec, &marc)

	runHTTPTests(t, app, []httpTest{
		{
			name:     "blank first name",
			method:   http.MethodPost,
			path:     "/v1/members",
			body:     []byte(`{"first_name": "  ", "last_name": "Martin"}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"first_name": "this field is required"}`),
		},
		{
			name:     "retrieve",
			method:   http.MethodGet,
			path:     "/v1/members/" + lea.ID,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, lea),
		},
		{
			name:     "retrieve unknown",
			method:   http.MethodGet,
			path:     "/v1/members/unknown",
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{
			name:     "search",
			method:   http.MethodGet,
			path:     "/v1/members?search=lea",
			wantCode: http.StatusOK,
			wantData: marchallObj(t, []member.Person{lea}),
		},
		{
			name:     "filter by birth year",
			method:   http.MethodGet,
			path:     "/v1/members?birth_year=2015",
			wantCode: http.StatusOK,
			wantData: marchallObj(t, []member.Person{lea}),
		},
		{
			name:     "no match",
			method:   http.MethodGet,
			path:     "/v1/members?role=treasurer",
			wantCode: http.StatusOK,
			wantData: []byte("[]"),
		},
	})

	rec = serve(app, http.MethodGet, "/v1/members?ordering=-birthday")
	require.Equal(t, http.StatusOK, rec.Code)
	var persons []member.Person
	unmarshallObj(t, rec, &persons)
	require.Len(t, persons, 2)
	assert.Equal(t, lea.ID, persons[0].ID)

	rec = serve(app, http.MethodPut, "/v1/members/"+lea.ID, []byte(`{"nickname": "Castor", "status": "Active"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated member.Person
	unmarshallObj(t, rec, &updated)
	assert.Equal(t, "Castor", updated.Nickname)
	assert.Equal(t, member.StatusActive, updated.Status)
	assert.Equal(t, lea.Birthday, updated.Birthday)

	rec = serve(app, http.MethodPut, "/v1/members/"+lea.ID, []byte(`{"status": "gone"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMemberAPI_RoleSection(t *testing.T) {
	env, app := setup(t)
	testutil.FreezeTime(t, testutil.Date(2024, time.January, 10))
	testutil.CreateSchoolYears(t, env.MemberRepo, 2023, 2024)

	child := testutil.CreatePerson(t, env.MemberRepo, "Tom", "Petit", testutil.Date(2014, time.June, 2), member.RoleNew)
	parent := testutil.CreatePerson(t, env.MemberRepo, "Eva", "Petit", time.Time{}, member.RoleParent)

	rec := serve(app, http.MethodGet, "/v1/members/"+child.ID+"/section")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"label": "awaiting assignment", "tag": "awaiting assignment", "status": "awaiting",
		"school_year": null, "section": null}`, rec.Body.String())

	edit := []byte(`{"primary_role": "child", "current_section": 2, "next_section": 3}`)
	rec = serve(app, http.MethodPost, "/v1/members/"+child.ID+"/role-section/preview", edit)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var preview member.ChangeSet
	unmarshallObj(t, rec, &preview)
	assert.Equal(t, member.RoleChild, preview.PrimaryRole)
	assert.Len(t, preview.Upserts, 2)

	// preview writes nothing
	enrollments, err := env.MemberRepo.QueryEnrollments(context.Background(), child.ID)
	require.NoError(t, err)
	assert.Empty(t, enrollments)

	rec = serve(app, http.MethodPut, "/v1/members/"+child.ID+"/role-section", edit)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = serve(app, http.MethodGet, "/v1/members/"+child.ID+"/section")
	require.Equal(t, http.StatusOK, rec.Code)
	var section echoapi.SectionResponse
	unmarshallObj(t, rec, &section)
	assert.Equal(t, "Cub Scouts", section.Label)
	assert.Equal(t, "current", section.Tag)
	require.NotNil(t, section.SchoolYear)
	assert.Equal(t, 2023, section.SchoolYear.Name)

	runHTTPTests(t, app, []httpTest{
		{
			name:     "parent with a section",
			method:   http.MethodPut,
			path:     "/v1/members/" + parent.ID + "/role-section",
			body:     []byte(`{"primary_role": "parent", "current_section": 1}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"current_section": member.ErrInvalidRoleSectionCombination.Error(),
			}),
		},
		{
			name:     "missing primary role",
			method:   http.MethodPut,
			path:     "/v1/members/" + parent.ID + "/role-section",
			body:     []byte(`{"secondary_roles": ["treasurer"]}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"primary_role": "this field is required"}`),
		},
		{
			name:     "unknown person",
			method:   http.MethodPut,
			path:     "/v1/members/unknown/role-section",
			body:     []byte(`{"primary_role": "child"}`),
			wantCode: http.StatusNotFound,
		},
	})
}

func TestMemberAPI_Family(t *testing.T) {
	env, app := setup(t)
	testutil.FreezeTime(t, testutil.Date(2024, time.January, 10))

	parent := testutil.CreatePerson(t, env.MemberRepo, "Eva", "Petit", time.Time{}, member.RoleParent)
	other := testutil.CreatePerson(t, env.MemberRepo, "Luc", "Petit", time.Time{}, member.RoleParent)

	rec := serve(app, http.MethodPost, "/v1/members/"+parent.ID+"/children",
		[]byte(`{"first_name": "Tom", "last_name": "Petit", "birthday": "2014-06-02"}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var child member.Person
	unmarshallObj(t, rec, &child)

	runHTTPTests(t, app, []httpTest{
		{
			name:     "children",
			method:   http.MethodGet,
			path:     "/v1/members/" + parent.ID + "/children",
			wantCode: http.StatusOK,
			wantData: marchallObj(t, []member.Person{child}),
		},
		{
			name:     "parents",
			method:   http.MethodGet,
			path:     "/v1/members/" + child.ID + "/parents",
			wantCode: http.StatusOK,
			wantData: marchallObj(t, []member.Person{parent}),
		},
		{
			name:     "last parent cannot detach",
			method:   http.MethodDelete,
			path:     "/v1/members/" + parent.ID + "/children/" + child.ID,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: member.ErrDetachNotAllowed.Error()}),
		},
		{
			name:     "cycle",
			method:   http.MethodPut,
			path:     "/v1/members/" + child.ID + "/children/" + parent.ID,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: member.ErrParentChildCycle.Error()}),
		},
		{
			name:     "link unknown child",
			method:   http.MethodPut,
			path:     "/v1/members/" + other.ID + "/children/unknown",
			wantCode: http.StatusNotFound,
		},
		{
			name:     "link second parent",
			method:   http.MethodPut,
			path:     "/v1/members/" + other.ID + "/children/" + child.ID,
			body:     []byte(`{"primary_contact": false}`),
			wantCode: http.StatusNoContent,
		},
		{
			name:     "detach with another parent left",
			method:   http.MethodDelete,
			path:     "/v1/members/" + parent.ID + "/children/" + child.ID,
			wantCode: http.StatusNoContent,
		},
		{
			name:     "not a parent anymore",
			method:   http.MethodDelete,
			path:     "/v1/members/" + parent.ID + "/children/" + child.ID,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: member.ErrNotParent.Error()}),
		},
	})
}

func TestAccountAPI(t *testing.T) {
	env, app := setup(t)
	p := testutil.CreatePerson(t, env.MemberRepo, "Anne", "Roche", time.Time{}, member.RoleParent)
	testutil.CreateAccount(t, env.AccountRepo, p.ID, "anne@test.test", "Sc0ut!ng-Day")

	success := marchallObj(t, echoapi.SuccessResponse{
		Success: "If the email address supplied is associated with an active account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})

	runHTTPTests(t, app, []httpTest{
		{
			name:     "invalid email",
			method:   http.MethodPost,
			path:     "/v1/accounts/password-reset",
			body:     []byte(`{"email": "anne"}`),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "unknown email",
			method:   http.MethodPost,
			path:     "/v1/accounts/password-reset",
			body:     []byte(`{"email": "nobody@test.test"}`),
			wantCode: http.StatusOK,
			wantData: success,
		},
		{
			name:     "known email",
			method:   http.MethodPost,
			path:     "/v1/accounts/password-reset",
			body:     []byte(`{"email": " Anne@Test.Test "}`),
			wantCode: http.StatusOK,
			wantData: success,
		},
		{
			name:     "bad token",
			method:   http.MethodPost,
			path:     "/v1/accounts/password-reset-confirm",
			body:     []byte(`{"uid": "bm9ib2R5", "token": "x-y", "password": "Tr0ub4dor&3x", "password_confirm": "Tr0ub4dor&3x"}`),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "missing fields",
			method:   http.MethodPost,
			path:     "/v1/accounts/password-reset-confirm",
			body:     []byte(`{}`),
			wantCode: http.StatusBadRequest,
		},
	})

	sent := env.MailSvc.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "password_reset", sent[0].TemplateName)
}
