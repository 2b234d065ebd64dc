package echoapi_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acadamier/backend/core/user"
)

func ids(t *testing.T, rec *httptest.ResponseRecorder) []string {
	t.Helper()
	var objs []struct {
		ID string `json:"id"`
	}
	decode(t, rec, &objs)
	res := make([]string, len(objs))
	for i, obj := range objs {
		res[i] = obj.ID
	}
	return res
}

func Test_userApi_query(t *testing.T) {
	app := newTestApp(t)

	path := func(search, ordering string, isActive *bool, roles ...string) string {
		v := make(url.Values)
		if search != "" {
			v.Add("search", search)
		}
		if ordering != "" {
			v.Add("ordering", ordering)
		}
		if isActive != nil {
			v.Add("is_active", strconv.FormatBool(*isActive))
		}
		for _, r := range roles {
			v.Add("role", r)
		}
		return "/v1/users?" + v.Encode()
	}
	bPtr := func(b bool) *bool { return &b }

	student := app.createUser("Hero", "hero@test.cd", user.RoleStudent)
	instructor := app.createUser("Teacher", "teacher@test.cd", user.RoleInstructor)
	admin := app.createUser("Admin", "admin@test.cd", user.RoleAdmin)
	owner := app.createUser("Owner", "owner@test.cd", user.RoleAdminOwner)
	naughty := app.createUser("N Dog", "ndog@test.cd", user.RoleStudent)
	naughty.IsActive = false
	_, err := app.usrRepo.UpdateUser(t.Context(), naughty)
	require.NoError(t, err)

	app.run([]httpTest{
		{name: "auth required", path: "/v1/users", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{
			name: "admin required", path: "/v1/users", token: app.token(instructor), wantCode: http.StatusForbidden,
			wantData: marshalObj(t, httpErr{Error: "permission denied"}),
		},
	})

	adminToken := app.token(admin)
	tests := []struct {
		name string
		path string
		want []string
	}{
		{name: "all by name", path: path("", "name", nil), want: []string{admin.ID, student.ID, naughty.ID, owner.ID, instructor.ID}},
		{name: "search (unknown)", path: path("lol", "", nil), want: []string{}},
		{name: "search=TEACH", path: path("TEACH", "", nil), want: []string{instructor.ID}},
		{name: "role=admin:", path: path("", "name", nil, user.RoleAdmin), want: []string{admin.ID, owner.ID}},
		{name: "role=student:,instructor:", path: path("", "-name", nil, user.RoleStudent, user.RoleInstructor), want: []string{instructor.ID, naughty.ID, student.ID}},
		{name: "is_active=false", path: path("", "", bPtr(false)), want: []string{naughty.ID}},
		{name: "filtering & ordering", path: path("", "-email", bPtr(true), user.RoleStudent, user.RoleAdmin), want: []string{owner.ID, student.ID, admin.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.do(http.MethodGet, tt.path, adminToken, nil)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, tt.want, ids(t, rec))
		})
	}
}

func Test_userApi_create(t *testing.T) {
	app := newTestApp(t)
	admin := app.createUser("Admin", "admin@test.cd", user.RoleAdmin)
	app.createUser("Taken", "taken@test.cd", user.RoleStudent)

	body := func(nu user.NewUser) []byte {
		nu.Password, nu.PasswordConfirm = testPassword, testPassword
		return marshalObj(t, nu)
	}

	app.run([]httpTest{
		{
			name: "email taken", method: http.MethodPost, path: "/v1/users", token: app.token(admin),
			body:     body(user.NewUser{Name: "Copy", Email: "taken@test.cd"}),
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, map[string]string{"email": user.ErrEmailExists.Error()}),
		},
		{
			name: "cannot grant a higher role", method: http.MethodPost, path: "/v1/users", token: app.token(admin),
			body:     body(user.NewUser{Name: "Boss", Email: "boss@test.cd", Roles: []string{user.RoleAdminOwner}}),
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, map[string]string{"roles": "not enough rights to set these roles"}),
		},
		{
			name: "created", method: http.MethodPost, path: "/v1/users", token: app.token(admin),
			body:     body(user.NewUser{Name: "Tutor", Email: "Tutor@Test.cd", Roles: []string{user.RoleInstructor}}),
			wantCode: http.StatusCreated,
		},
	})

	usr, err := app.userSvc.GetByEmail(t.Context(), "tutor@test.cd")
	require.NoError(t, err)
	assert.Equal(t, []string{user.RoleInstructor}, usr.Roles)
}

func Test_userApi_detail(t *testing.T) {
	app := newTestApp(t)
	student := app.createUser("Hero", "hero@test.cd", user.RoleStudent)
	other := app.createUser("Other", "other@test.cd", user.RoleStudent)
	admin := app.createUser("Admin", "admin@test.cd", user.RoleAdmin)
	studentToken := app.token(student)

	app.run([]httpTest{
		{name: "own profile", path: "/v1/users/" + student.ID, token: studentToken, wantData: marshalObj(t, student)},
		{name: "someone else's profile", path: "/v1/users/" + other.ID, token: studentToken, wantCode: http.StatusNotFound},
		{name: "admin sees everyone", path: "/v1/users/" + other.ID, token: app.token(admin), wantData: marshalObj(t, other)},
		{name: "unknown user", path: "/v1/users/nope", token: app.token(admin), wantCode: http.StatusNotFound},
		{
			name: "student cannot change roles", method: http.MethodPatch, path: "/v1/users/" + student.ID, token: studentToken,
			body: []byte(`{"roles": ["admin:"]}`), wantCode: http.StatusForbidden,
		},
		{
			name: "student cannot delete", method: http.MethodDelete, path: "/v1/users/" + student.ID, token: studentToken,
			wantCode: http.StatusForbidden,
		},
		{
			name: "admin cannot delete themselves", method: http.MethodDelete, path: "/v1/users/" + admin.ID, token: app.token(admin),
			wantCode: http.StatusForbidden,
		},
	})

	rec := app.do(http.MethodPatch, "/v1/users/"+student.ID, studentToken, []byte(`{"name": "Super Hero", "bio": "  Learner  "}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated user.User
	decode(t, rec, &updated)
	assert.Equal(t, "Super Hero", updated.Name)
	assert.Equal(t, "Learner", updated.Bio)
	assert.Equal(t, student.Email, updated.Email)

	rec = app.do(http.MethodDelete, "/v1/users/"+other.ID, app.token(admin), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	_, err := app.userSvc.GetByID(t.Context(), other.ID)
	assert.ErrorIs(t, err, user.ErrNotFound)
}

func Test_userApi_destroyMultiple(t *testing.T) {
	app := newTestApp(t)
	admin := app.createUser("Admin", "admin@test.cd", user.RoleAdmin)
	usr1 := app.createUser("One", "one@test.cd", user.RoleStudent)
	usr2 := app.createUser("Two", "two@test.cd", user.RoleStudent)
	adminToken := app.token(admin)

	app.run([]httpTest{
		{name: "no ids", method: http.MethodDelete, path: "/v1/users", token: adminToken, wantCode: http.StatusNoContent},
		{
			name: "self included", method: http.MethodDelete, path: "/v1/users?id=" + usr1.ID + "&id=" + admin.ID, token: adminToken,
			wantCode: http.StatusForbidden,
		},
		{
			name: "deleted", method: http.MethodDelete, path: "/v1/users?id=" + usr1.ID + "&id=" + usr2.ID, token: adminToken,
			wantCode: http.StatusNoContent,
		},
	})

	users, err := app.userSvc.Query(t.Context(), nil, nil)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, admin.ID, users[0].ID)
}

func Test_userApi_roles(t *testing.T) {
	app := newTestApp(t)
	admin := app.createUser("Admin", "admin@test.cd", user.RoleAdmin)
	app.run([]httpTest{
		{name: "roles", path: "/v1/users/roles", token: app.token(admin), wantData: marshalObj(t, user.Roles)},
	})
}
