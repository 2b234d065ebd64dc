package echoapi_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/acadamier/backend/apps/api/echo"
	"github.com/acadamier/backend/core/user"
	emailsvc "github.com/acadamier/backend/services/email"
)

func login(t *testing.T, app *testApp, username, password string) echoapi.LoginResponse {
	t.Helper()
	rec := app.do(http.MethodPost, "/v1/auth/login", "", marshalObj(t, echoapi.LoginRequest{Username: username, Password: password}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res echoapi.LoginResponse
	decode(t, rec, &res)
	return res
}

func Test_authApi_register(t *testing.T) {
	app := newTestApp(t)
	app.createUser("Taken", "taken@test.cd", user.RoleStudent)

	register := func(ru user.RegisterUser) []byte { return marshalObj(t, ru) }
	valid := user.RegisterUser{
		Name: "Ada Lovelace", Email: "ada@test.cd", Password: testPassword, PasswordConfirm: testPassword, Role: "instructor",
	}

	app.run([]httpTest{
		{
			name: "missing fields", method: http.MethodPost, path: "/v1/auth/register", body: []byte(`{}`),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "email taken", method: http.MethodPost, path: "/v1/auth/register",
			body: register(user.RegisterUser{
				Name: "Copycat", Email: "taken@test.cd", Password: testPassword, PasswordConfirm: testPassword, Role: "student",
			}),
			wantCode: http.StatusBadRequest,
		},
		{name: "valid", method: http.MethodPost, path: "/v1/auth/register", body: register(valid), wantCode: http.StatusCreated},
	})

	usr, err := app.userSvc.GetByEmail(t.Context(), "ada@test.cd")
	require.NoError(t, err)
	assert.Equal(t, []string{user.RoleInstructor}, usr.Roles)
	assert.True(t, usr.IsActive)

	// the welcome notification is emailed
	sent := emailsvc.LastSentMessages()
	require.NotEmpty(t, sent)
	assert.Equal(t, "ada@test.cd", sent[len(sent)-1].To[0].Address)
}

func Test_authApi_login(t *testing.T) {
	app := newTestApp(t)
	app.createUser("Jane", "jane@test.cd", user.RoleStudent)
	inactive := app.createUser("Ghost", "ghost@test.cd", user.RoleStudent)
	inactive.IsActive = false
	_, err := app.usrRepo.UpdateUser(t.Context(), inactive)
	require.NoError(t, err)

	body := func(uname, pwd string) []byte {
		return marshalObj(t, echoapi.LoginRequest{Username: uname, Password: pwd})
	}
	authFailed := marshalObj(t, httpErr{Error: "authentication failed"})

	app.run([]httpTest{
		{name: "unknown user", method: http.MethodPost, path: "/v1/auth/login", body: body("nobody", testPassword), wantCode: http.StatusBadRequest, wantData: authFailed},
		{name: "wrong password", method: http.MethodPost, path: "/v1/auth/login", body: body("jane", "nope"), wantCode: http.StatusBadRequest, wantData: authFailed},
		{
			name: "deactivated", method: http.MethodPost, path: "/v1/auth/login", body: body("ghost@test.cd", testPassword),
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "account deactivated"}),
		},
	})

	// username and email both work, case insensitively
	for _, uname := range []string{"jane", "JANE@test.cd"} {
		res := login(t, app, uname, testPassword)
		assert.NotEmpty(t, res.Token)
		assert.NotEmpty(t, res.RefreshToken)
	}
}

func Test_authApi_refreshAndLogout(t *testing.T) {
	app := newTestApp(t)
	usr := app.createUser("Jane", "jane@test.cd", user.RoleStudent)
	tokens := login(t, app, "jane", testPassword)

	app.run([]httpTest{
		{name: "me (no token)", path: "/v1/auth/me", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{name: "me", path: "/v1/auth/me", token: tokens.Token, wantData: nil},
		{
			name: "me (refresh token)", path: "/v1/auth/me", token: tokens.RefreshToken,
			wantCode: http.StatusUnauthorized, wantData: marshalObj(t, httpErr{Error: "user not authenticated"}),
		},
		{
			name: "refresh with access token", method: http.MethodPost, path: "/v1/auth/refresh",
			body:     marshalObj(t, echoapi.RefreshRequest{RefreshToken: tokens.Token}),
			wantCode: http.StatusUnauthorized,
		},
		{
			name: "refresh with garbage", method: http.MethodPost, path: "/v1/auth/refresh",
			body:     marshalObj(t, echoapi.RefreshRequest{RefreshToken: "not.a.jwt"}),
			wantCode: http.StatusUnauthorized,
		},
	})

	rec := app.do(http.MethodPost, "/v1/auth/refresh", "", marshalObj(t, echoapi.RefreshRequest{RefreshToken: tokens.RefreshToken}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var refreshed echoapi.LoginResponse
	decode(t, rec, &refreshed)
	assert.NotEmpty(t, refreshed.Token)
	assert.Empty(t, refreshed.RefreshToken)
	assert.Equal(t, http.StatusOK, app.do(http.MethodGet, "/v1/auth/me", refreshed.Token, nil).Code)

	// logout revokes the access token and its refresh token
	rec = app.do(http.MethodPost, "/v1/auth/logout", tokens.Token, marshalObj(t, echoapi.LogoutRequest{RefreshToken: tokens.RefreshToken}))
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	revoked := marshalObj(t, httpErr{Error: "token has been revoked"})
	app.run([]httpTest{
		{name: "revoked access token", path: "/v1/auth/me", token: tokens.Token, wantCode: http.StatusUnauthorized, wantData: revoked},
		{
			name: "revoked refresh token", method: http.MethodPost, path: "/v1/auth/refresh",
			body:     marshalObj(t, echoapi.RefreshRequest{RefreshToken: tokens.RefreshToken}),
			wantCode: http.StatusUnauthorized, wantData: revoked,
		},
		{name: "other tokens still valid", path: "/v1/auth/me", token: refreshed.Token},
	})

	// refresh window elapsed
	claims := echoapi.GetUserClaims(app.conf, usr, time.Now().Add(-5*time.Hour).Unix())
	claims.TokenType = "refresh"
	stale, err := echoapi.GenerateToken(app.conf, claims)
	require.NoError(t, err)
	rec = app.do(http.MethodPost, "/v1/auth/refresh", "", marshalObj(t, echoapi.RefreshRequest{RefreshToken: stale}))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, string(marshalObj(t, httpErr{Error: "refresh has expired"})), rec.Body.String())
}

func Test_authApi_google(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(http.MethodGet, "/v1/auth/google/url", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var urlRes map[string]string
	decode(t, rec, &urlRes)
	assert.Contains(t, urlRes["url"], "https://accounts.google.test/auth?state=")

	app.run([]httpTest{
		{
			name: "bad code", method: http.MethodPost, path: "/v1/auth/google",
			body: []byte(`{"code": "bad-code"}`), wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, httpErr{Error: "authentication failed"}),
		},
		{name: "missing code", method: http.MethodPost, path: "/v1/auth/google", body: []byte(`{}`), wantCode: http.StatusBadRequest},
	})

	for i := 0; i < 2; i++ { // the second login reuses the account
		rec = app.do(http.MethodPost, "/v1/auth/google", "", []byte(`{"code": "good-code"}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	users, err := app.userSvc.GetByEmails(t.Context(), []string{"gina@gmail.test"})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, []string{user.RoleStudent}, users[0].Roles)
}

func Test_authApi_passwordReset(t *testing.T) {
	app := newTestApp(t)
	app.createUser("Jane", "jane@test.cd", user.RoleStudent)
	success := marshalObj(t, echoapi.SuccessResponse{
		Success: "If the email address supplied is associated with an active account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})

	app.run([]httpTest{
		{name: "invalid email", method: http.MethodPost, path: "/v1/auth/password-reset", body: []byte(`{"email": "nope"}`), wantCode: http.StatusBadRequest},
		{name: "unknown email", method: http.MethodPost, path: "/v1/auth/password-reset", body: []byte(`{"email": "who@test.cd"}`), wantData: success},
	})

	emailsvc.ResetSentMessages()
	app.run([]httpTest{
		{name: "known email", method: http.MethodPost, path: "/v1/auth/password-reset", body: []byte(`{"email": "JANE@test.cd"}`), wantData: success},
	})
	sent := emailsvc.LastSentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "jane@test.cd", sent[0].To[0].Address)

	app.run([]httpTest{
		{
			name: "confirm with bad token", method: http.MethodPost, path: "/v1/auth/password-reset-confirm",
			body:     marshalObj(t, user.ResetUserPassword{Token: "x", UID: "y", Password: testPassword, PasswordConfirm: testPassword}),
			wantCode: http.StatusBadRequest,
		},
	})
}
