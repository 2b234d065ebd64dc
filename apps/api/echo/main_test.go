package echoapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	echoapi "github.com/acadamier/backend/apps/api/echo"
	"github.com/acadamier/backend/core"
	"github.com/acadamier/backend/core/course"
	"github.com/acadamier/backend/core/notification"
	"github.com/acadamier/backend/core/payment"
	"github.com/acadamier/backend/core/progress"
	"github.com/acadamier/backend/core/quiz"
	"github.com/acadamier/backend/core/scorm"
	"github.com/acadamier/backend/core/team"
	"github.com/acadamier/backend/core/user"
	appfs "github.com/acadamier/backend/fs"
	emailsvc "github.com/acadamier/backend/services/email"
	logsvc "github.com/acadamier/backend/services/logger"
	mediasvc "github.com/acadamier/backend/services/media"
	"github.com/acadamier/backend/services/paystack"
	tasksvc "github.com/acadamier/backend/services/tasks"
	inmemdb "github.com/acadamier/backend/storage/database/inmem"
)

const testPassword = "L3arn!ngRocks"

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

type fakeTranscoder struct{}

func (fakeTranscoder) Transcode(_ context.Context, lessonID, _ string) (string, string, error) {
	return "videos/" + lessonID + "/hls/index.m3u8", "videos/" + lessonID + "/thumb.jpg", nil
}

type fakeOAuth struct {
	profiles map[string]user.ExternalProfile
}

func (f fakeOAuth) AuthCodeURL(state string) string {
	return "https://accounts.google.test/auth?state=" + state
}

func (f fakeOAuth) Profile(_ context.Context, code string) (user.ExternalProfile, error) {
	profile, ok := f.profiles[code]
	if !ok {
		return user.ExternalProfile{}, core.NewPermissionError("invalid code")
	}
	return profile, nil
}

// testApp is an API server backed by in-memory repositories. Background tasks run synchronously.
type testApp struct {
	t       *testing.T
	conf    *core.Config
	server  *echoapi.Server
	usrRepo user.Repository
	tasks   *tasksvc.SyncQueue
	gateway *paystack.FakeGateway

	userSvc     user.Service
	courseSvc   course.Service
	quizSvc     quiz.Service
	enrollSvc   payment.EnrollmentService
	paymentSvc  payment.Service
	teamSvc     team.Service
	progressSvc progress.Service
	scormSvc    scorm.Service
	notifSvc    notification.Service
}

func newTestConfig(t *testing.T) *core.Config {
	return &core.Config{
		TestMode:                  true,
		AppName:                   "Acadamier",
		SecretKey:                 "secret",
		Env:                       "TEST",
		FrontendBaseURL:           "http://localhost:3000",
		PasswordResetTimeoutDelta: time.Hour,
		Server: core.ServerConfig{
			JWTExpirationDelta:        10 * time.Minute,
			JWTRefreshExpirationDelta: 4 * time.Hour,
		},
		Paystack: core.PaystackConfig{SecretKey: "sk_test", CallbackURL: "http://localhost:3000/payments/callback"},
		Media:    core.MediaConfig{Root: t.TempDir(), URL: "/media/"},
		Tasks:    core.TasksConfig{Workers: 1, QueueSize: 1},
	}
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	conf := newTestConfig(t)

	logger := logsvc.NewRollbarLogger(zap.NewNop(), conf)
	logger.Enable(false)

	enLocale := en.New()
	translator, _ := ut.New(enLocale, enLocale).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	course.InitValidators(validate, translator)
	scorm.InitValidators(validate, translator)
	core.ParseEmailTemplates(appfs.FS, conf, logger)

	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	tasks := tasksvc.NewSyncQueue()
	gateway := paystack.NewFakeGateway()
	media := mediasvc.NewLocalStorage(conf)
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	emailsvc.ResetSentMessages()

	notifSvc := notification.NewService(inmemdb.NewNotificationRepository(db), tasks, mailSvc, logger)
	userSvc := user.NewService(usrRepo, mailSvc, conf, notifSvc)
	courseSvc := course.NewService(inmemdb.NewCourseRepository(db), tasks, media, fakeTranscoder{}, logger, notifSvc)
	quizSvc := quiz.NewService(inmemdb.NewQuizRepository(db))
	paymentRepo := inmemdb.NewPaymentRepository(db)
	enrollSvc := payment.NewEnrollmentService(paymentRepo, courseSvc, notifSvc)
	teamSvc := team.NewService(inmemdb.NewTeamRepository(db), userSvc, enrollSvc, logger, notifSvc)
	paymentSvc := payment.NewService(paymentRepo, gateway, enrollSvc, courseSvc, userSvc, mailSvc, tasks, conf, logger, teamSvc)
	progressSvc := progress.NewService(inmemdb.NewProgressRepository(db), courseSvc, tasks, notifSvc)
	scormSvc := scorm.NewService(inmemdb.NewScormRepository(db), media, tasks, mailSvc, userSvc, appfs.FS, logger, progressSvc)

	enforcer, err := echoapi.NewEnforcer(appfs.FS)
	require.NoError(t, err)

	oauth := fakeOAuth{profiles: map[string]user.ExternalProfile{
		"good-code": {Subject: "g-123", Email: "gina@gmail.test", EmailVerified: true, Name: "Gina"},
	}}

	server := echoapi.NewServer(echoapi.ServerDeps{
		Conf:            conf,
		Logger:          logger,
		Validate:        validate,
		Translator:      translator,
		Enforcer:        enforcer,
		OAuth:           oauth,
		UserSvc:         userSvc,
		CourseSvc:       courseSvc,
		QuizSvc:         quizSvc,
		EnrollSvc:       enrollSvc,
		PaymentSvc:      paymentSvc,
		TeamSvc:         teamSvc,
		ProgressSvc:     progressSvc,
		ScormSvc:        scormSvc,
		NotificationSvc: notifSvc,
		DisableReqLogs:  true,
	})
	t.Cleanup(func() { _ = server.Close() })

	return &testApp{
		t:           t,
		conf:        conf,
		server:      server,
		usrRepo:     usrRepo,
		tasks:       tasks,
		gateway:     gateway,
		userSvc:     userSvc,
		courseSvc:   courseSvc,
		quizSvc:     quizSvc,
		enrollSvc:   enrollSvc,
		paymentSvc:  paymentSvc,
		teamSvc:     teamSvc,
		progressSvc: progressSvc,
		scormSvc:    scormSvc,
		notifSvc:    notifSvc,
	}
}

func (a *testApp) createUser(name, email string, roles ...string) user.User {
	a.t.Helper()
	now := time.Now().UTC()
	usr := user.User{
		ID:        uuid.NewString(),
		Name:      name,
		Username:  strings.SplitN(email, "@", 2)[0],
		Email:     email,
		IsActive:  true,
		Roles:     roles,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(a.t, usr.SetPassword(testPassword))
	usr, err := a.usrRepo.CreateUser(context.Background(), usr)
	require.NoError(a.t, err)
	return usr
}

func (a *testApp) createCourse(instructor user.User, title string, price int64) course.Course {
	a.t.Helper()
	crs, err := a.courseSvc.Create(context.Background(), instructor.ID, course.NewCourse{
		Title: title,
		Price: decimal.NewFromInt(price),
	})
	require.NoError(a.t, err)
	return crs
}

func (a *testApp) createLesson(crs course.Course, title string, order int) course.Lesson {
	a.t.Helper()
	lsn, err := a.courseSvc.CreateLesson(context.Background(), crs, course.NewLesson{
		CourseID: crs.ID,
		Title:    title,
		Content:  "<p>" + title + "</p>",
		Order:    order,
	})
	require.NoError(a.t, err)
	return lsn
}

func (a *testApp) enroll(usr user.User, crs course.Course) payment.Enrollment {
	a.t.Helper()
	enr, err := a.enrollSvc.Enroll(context.Background(), usr.ID, crs)
	require.NoError(a.t, err)
	return enr
}

func (a *testApp) token(usr user.User) string {
	a.t.Helper()
	token, err := echoapi.GenerateToken(a.conf, echoapi.GetUserClaims(a.conf, usr))
	require.NoError(a.t, err)
	return token
}

// do serves the request and returns the recorded response.
func (a *testApp) do(method, path, token string, body []byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, body)
	a.server.ServeHTTP(rec, req)
	return rec
}

// upload posts a multipart form holding one file, plus the given fields.
func (a *testApp) upload(path, token, field, filename string, content []byte, fields map[string]string) *httptest.ResponseRecorder {
	a.t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(a.t, w.WriteField(k, v))
	}
	if field != "" {
		fw, err := w.CreateFormFile(field, filename)
		require.NoError(a.t, err)
		_, err = fw.Write(content)
		require.NoError(a.t, err)
	}
	require.NoError(a.t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.server.ServeHTTP(rec, req)
	return rec
}

func (a *testApp) run(tests []httpTest) {
	a.t.Helper()
	for _, tt := range tests {
		a.t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			rec := a.do(method, tt.path, tt.token, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, httptest.NewRecorder()
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	require.NoError(t, err)
	return data
}

func marshalList(t *testing.T, objs ...interface{}) []byte {
	if objs == nil {
		objs = []interface{}{}
	}
	return marshalObj(t, objs)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	wantCode := tt.wantCode
	if wantCode == 0 {
		wantCode = http.StatusOK
	}
	assert.Equal(t, wantCode, rec.Code, rec.Body.String())
	if tt.wantData != nil {
		assert.JSONEq(t, string(tt.wantData), rec.Body.String())
	}
}
