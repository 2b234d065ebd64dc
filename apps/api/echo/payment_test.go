package echoapi_test

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/acadamier/backend/apps/api/echo"
	"github.com/acadamier/backend/core/payment"
	"github.com/acadamier/backend/core/user"
	emailsvc "github.com/acadamier/backend/services/email"
)

func initPayment(t *testing.T, app *testApp, token, courseID string) payment.InitResult {
	t.Helper()
	rec := app.do(http.MethodPost, "/v1/payments/init", token, marshalObj(t, payment.InitTransaction{CourseID: courseID}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res payment.InitResult
	decode(t, rec, &res)
	require.NotEmpty(t, res.Reference)
	return res
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (a *testApp) webhook(signature string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/payments/webhook", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("X-Paystack-Signature", signature)
	}
	rec := httptest.NewRecorder()
	a.server.ServeHTTP(rec, req)
	return rec
}

func Test_paymentApi_freeCourse(t *testing.T) {
	app := newTestApp(t)
	instructor := app.createUser("Teacher", "teacher@test.cd", user.RoleInstructor)
	student := app.createUser("Hero", "hero@test.cd", user.RoleStudent)
	crs := app.createCourse(instructor, "Free Go", 0)

	app.run([]httpTest{
		{name: "auth required", method: http.MethodPost, path: "/v1/payments/init", wantCode: http.StatusUnauthorized},
		{
			name: "unknown course", method: http.MethodPost, path: "/v1/payments/init", token: app.token(student),
			body: marshalObj(t, payment.InitTransaction{CourseID: "0b5e1a3c-7d2c-4a8e-9f10-2f6c1d7e8a90"}), wantCode: http.StatusBadRequest,
		},
	})

	res := initPayment(t, app, app.token(student), crs.ID)
	assert.Empty(t, res.AuthorizationURL)
	assert.Empty(t, app.gateway.Inits)

	rec := app.do(http.MethodGet, "/v1/enrollments", app.token(student), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var enrollments []payment.Enrollment
	decode(t, rec, &enrollments)
	require.Len(t, enrollments, 1)
	assert.Equal(t, crs.ID, enrollments[0].CourseID)
	assert.Nil(t, enrollments[0].ExpiresAt)

	app.run([]httpTest{
		{
			name: "already successful", method: http.MethodPost, path: "/v1/payments/verify", token: app.token(student),
			body: marshalObj(t, payment.VerifyTransaction{Reference: res.Reference}), wantData: marshalObj(t, echoapi.StatusResponse{Status: payment.StatusSuccess}),
		},
	})
}

func Test_paymentApi_paidCourse(t *testing.T) {
	app := newTestApp(t)
	instructor := app.createUser("Teacher", "teacher@test.cd", user.RoleInstructor)
	student := app.createUser("Hero", "hero@test.cd", user.RoleStudent)
	thief := app.createUser("Thief", "thief@test.cd", user.RoleStudent)
	crs := app.createCourse(instructor, "Practical Go", 50)
	studentToken := app.token(student)

	res := initPayment(t, app, studentToken, crs.ID)
	assert.Equal(t, "https://checkout.paystack.test/"+res.Reference, res.AuthorizationURL)
	require.Len(t, app.gateway.Inits, 1)
	assert.Equal(t, int64(5000), app.gateway.Inits[0].Amount)
	assert.Equal(t, student.Email, app.gateway.Inits[0].Email)

	verify := func(ref string) []byte { return marshalObj(t, payment.VerifyTransaction{Reference: ref}) }
	app.run([]httpTest{
		{name: "reference required", method: http.MethodPost, path: "/v1/payments/verify", token: studentToken, body: []byte(`{}`), wantCode: http.StatusBadRequest},
		{name: "unknown reference", method: http.MethodPost, path: "/v1/payments/verify", token: studentToken, body: verify("nope"), wantCode: http.StatusNotFound},
		{
			name: "someone else's reference", method: http.MethodPost, path: "/v1/payments/verify", token: app.token(thief),
			body: verify(res.Reference), wantCode: http.StatusNotFound,
		},
		{name: "no access before paying", path: "/v1/lessons?course_id=" + crs.ID, token: studentToken, wantCode: http.StatusForbidden},
	})

	// a declined payment fails the transaction, a new attempt then succeeds
	app.gateway.SetStatus(res.Reference, payment.StatusFailed)
	app.run([]httpTest{
		{
			name: "declined", method: http.MethodPost, path: "/v1/payments/verify", token: studentToken,
			body: verify(res.Reference), wantData: marshalObj(t, echoapi.StatusResponse{Status: payment.StatusFailed}),
		},
	})

	res = initPayment(t, app, studentToken, crs.ID)
	app.gateway.SetStatus(res.Reference, payment.StatusSuccess)
	emailsvc.ResetSentMessages()
	for i := 0; i < 2; i++ { // verifying twice is harmless
		rec := app.do(http.MethodPost, "/v1/payments/verify", studentToken, verify(res.Reference))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.JSONEq(t, string(marshalObj(t, echoapi.StatusResponse{Status: payment.StatusSuccess})), rec.Body.String())
	}

	app.run([]httpTest{
		{name: "access granted", path: "/v1/lessons?course_id=" + crs.ID, token: studentToken, wantData: marshalList(t)},
	})

	var receipts int
	for _, msg := range emailsvc.LastSentMessages() {
		if strings.HasPrefix(msg.Subject, "Payment receipt") {
			receipts++
			assert.Equal(t, student.Email, msg.To[0].Address)
		}
	}
	assert.Equal(t, 1, receipts)
}

func Test_paymentApi_webhook(t *testing.T) {
	app := newTestApp(t)
	instructor := app.createUser("Teacher", "teacher@test.cd", user.RoleInstructor)
	student := app.createUser("Hero", "hero@test.cd", user.RoleStudent)
	crs := app.createCourse(instructor, "Practical Go", 50)
	res := initPayment(t, app, app.token(student), crs.ID)

	body := []byte(`{"event": "charge.success", "data": {"reference": "` + res.Reference + `"}}`)
	received := `{"received": true}`

	rec := app.webhook("", body)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = app.webhook(sign("wrong", body), body)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, string(marshalObj(t, httpErr{Error: "invalid signature"})), rec.Body.String())

	// events we do not handle, and unknown references, are acknowledged
	other := []byte(`{"event": "transfer.success", "data": {"reference": "` + res.Reference + `"}}`)
	rec = app.webhook(sign("sk_test", other), other)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, received, rec.Body.String())
	unknown := []byte(`{"event": "charge.success", "data": {"reference": "nope"}}`)
	rec = app.webhook(sign("sk_test", unknown), unknown)
	require.Equal(t, http.StatusOK, rec.Code)

	ok, err := app.enrollSvc.HasAccess(t.Context(), student, crs)
	require.NoError(t, err)
	assert.False(t, ok)

	rec = app.webhook(sign("sk_test", body), body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, received, rec.Body.String())

	ok, err = app.enrollSvc.HasAccess(t.Context(), student, crs)
	require.NoError(t, err)
	assert.True(t, ok)

	app.run([]httpTest{
		{
			name: "verify after webhook", method: http.MethodPost, path: "/v1/payments/verify", token: app.token(student),
			body: marshalObj(t, payment.VerifyTransaction{Reference: res.Reference}), wantData: marshalObj(t, echoapi.StatusResponse{Status: payment.StatusSuccess}),
		},
	})
}

func Test_paymentApi_webhookBodyLimit(t *testing.T) {
	app := newTestApp(t)
	huge := []byte(`{"event": "charge.success", "data": {"reference": "` + strings.Repeat("x", 70<<10) + `"}}`)

	rec := app.webhook(sign("sk_test", huge), huge)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code, "declared length")

	// no Content-Length, the body is cut off while reading
	req := httptest.NewRequest(http.MethodPost, "/v1/payments/webhook", io.MultiReader(bytes.NewReader(huge)))
	req.Header.Set("X-Paystack-Signature", sign("sk_test", huge))
	rec = httptest.NewRecorder()
	app.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code, "streamed body")
}
