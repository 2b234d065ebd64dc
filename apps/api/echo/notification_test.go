package echoapi_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acadamier/backend/core/notification"
	"github.com/acadamier/backend/core/user"
)

func Test_notificationApi(t *testing.T) {
	app := newTestApp(t)
	instructor := app.createUser("Teacher", "teacher@test.cd", user.RoleInstructor)
	student := app.createUser("Hero", "hero@test.cd", user.RoleStudent)
	other := app.createUser("Other", "other@test.cd", user.RoleStudent)
	crs := app.createCourse(instructor, "Practical Go", 20)
	studentToken := app.token(student)

	app.enroll(student, crs)
	app.createLesson(crs, "Channels", 1)

	list := func(token string) []notification.Notification {
		rec := app.do(http.MethodGet, "/v1/notifications", token, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var ntfs []notification.Notification
		decode(t, rec, &ntfs)
		return ntfs
	}
	ntfs := list(studentToken)
	require.Len(t, ntfs, 2)
	var verbs []string
	for _, ntf := range ntfs {
		assert.True(t, ntf.Unread)
		verbs = append(verbs, ntf.Verb)
	}
	assert.ElementsMatch(t, []string{
		"You’re now enrolled in “Practical Go”",
		"New lesson available: “Channels” in Practical Go",
	}, verbs)

	first := ntfs[0]
	app.run([]httpTest{
		{name: "auth required", path: "/v1/notifications", wantCode: http.StatusUnauthorized},
		{name: "nothing for others", path: "/v1/notifications", token: app.token(other), wantData: marshalList(t)},
		{name: "cannot read someone else's", method: http.MethodPost, path: "/v1/notifications/" + first.ID + "/read", token: app.token(other), wantCode: http.StatusNotFound},
	})

	rec := app.do(http.MethodPost, "/v1/notifications/"+first.ID+"/read", studentToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var ntf notification.Notification
	decode(t, rec, &ntf)
	assert.False(t, ntf.Unread)

	app.run([]httpTest{
		{name: "reading twice is harmless", method: http.MethodPost, path: "/v1/notifications/" + first.ID + "/read", token: studentToken, wantData: marshalObj(t, ntf)},
		{name: "marks the rest", method: http.MethodPost, path: "/v1/notifications/read-all", token: studentToken, wantData: []byte(`{"marked": 1}`)},
		{name: "nothing left", method: http.MethodPost, path: "/v1/notifications/read-all", token: studentToken, wantData: []byte(`{"marked": 0}`)},
	})
	for _, ntf := range list(studentToken) {
		assert.False(t, ntf.Unread)
	}
}
