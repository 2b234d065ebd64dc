package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/acadamier/backend/core"
	"github.com/acadamier/backend/core/course"
	"github.com/acadamier/backend/core/payment"
	"github.com/acadamier/backend/core/team"
	"github.com/acadamier/backend/core/user"
	emailsvc "github.com/acadamier/backend/services/email"
	logsvc "github.com/acadamier/backend/services/logger"
	mediasvc "github.com/acadamier/backend/services/media"
	tasksvc "github.com/acadamier/backend/services/tasks"
	inmemdb "github.com/acadamier/backend/storage/database/inmem"
)

type noTranscoder struct{}

func (noTranscoder) Transcode(context.Context, string, string) (string, string, error) {
	return "", "", nil
}

func setup(t *testing.T) *commandLine {
	t.Helper()
	conf := &core.Config{TestMode: true, AppName: "Acadamier", Media: core.MediaConfig{Root: t.TempDir(), URL: "/media/"}}
	logger := logsvc.NewRollbarLogger(zap.NewNop(), conf)
	logger.Enable(false)

	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	tasks := tasksvc.NewSyncQueue()
	usrSvc := user.NewService(usrRepo, emailsvc.NewConsoleServiceMock(conf, logger), conf)
	courseSvc := course.NewService(inmemdb.NewCourseRepository(db), tasks, mediasvc.NewLocalStorage(conf), noTranscoder{}, logger)
	enrollSvc := payment.NewEnrollmentService(inmemdb.NewPaymentRepository(db), courseSvc)

	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	course.InitValidators(validate, translator)

	return &commandLine{
		usrRepo:   usrRepo,
		courseSvc: courseSvc,
		teamSvc:   team.NewService(inmemdb.NewTeamRepository(db), usrSvc, enrollSvc, logger),
		validate:  validate,
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func (tt cliTest) check(t *testing.T, err error) {
	t.Helper()
	switch {
	case tt.wantErr != nil:
		assert.Equal(t, tt.wantErr, err)
	case tt.wantErrStr != "":
		require.Error(t, err)
		assert.Equal(t, tt.wantErrStr, err.Error())
	default:
		assert.NoError(t, err)
	}
}

func mockPassword(t *testing.T, pwd string) {
	t.Helper()
	orig := readPasswordFunc
	readPasswordFunc = func(int) ([]byte, error) { return []byte(pwd), nil }
	t.Cleanup(func() { readPasswordFunc = orig })
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	orig := migrateFunc
	t.Cleanup(func() { migrateFunc = orig })
	migrateFunc = func(_ *sql.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "create", args: []string{"migrate", "create", "course", "sql"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(append([]string{"admin"}, tt.args...)))
		})
	}
}

func Test_commandLine_addUser(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "email missing", args: []string{"adduser", "-username", "boss"}, wantErr: errHelp},
		{name: "no password", args: []string{"adduser", "-username", "boss", "-email", "boss@test.cd"}, wantErr: errHelp},
		{
			name: "unknown role", args: []string{"adduser", "-username", "boss", "-email", "boss@test.cd", "-role", "king:"},
			extra: "L3arn!ngRocks", wantErrStr: `"king:": no such role`,
		},
		{
			name: "creates", args: []string{"adduser", "-username", "Boss", "-email", "Boss@test.cd", "-role", user.RoleAdminOwner},
			extra: "L3arn!ngRocks",
		},
		{
			name: "updates", args: []string{"adduser", "-username", "boss", "-email", "boss@test.cd", "-role", user.RoleInstructor},
			extra: "N3wPassw0rd!",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pwd, _ := tt.extra.(string)
			mockPassword(t, pwd)
			tt.check(t, cli.run(append([]string{"admin"}, tt.args...)))
		})
	}

	usrs, err := cli.usrRepo.QueryUsers(ctx, nil, nil)
	require.NoError(t, err)
	require.Len(t, usrs, 1)
	usr := usrs[0]
	assert.Equal(t, "boss", usr.Username)
	assert.Equal(t, "boss@test.cd", usr.Email)
	assert.Equal(t, []string{user.RoleInstructor}, usr.Roles)
	assert.True(t, usr.IsActive)
	assert.NoError(t, usr.CheckPassword("N3wPassw0rd!"))
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()

	usr := user.User{ID: uuid.NewString(), Username: "awe", Email: "awe@test.cd", IsActive: true}
	require.NoError(t, usr.SetPassword("mdr"))
	usr, err := cli.usrRepo.CreateUser(ctx, usr)
	require.NoError(t, err)

	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-username", "lol"}, extra: "lol", wantErr: user.ErrNotFound},
		{name: "reset with username", args: []string{"resetpassword", "-username", usr.Username}, extra: "lol"},
		{name: "reset with email", args: []string{"resetpassword", "-username", "AWE@test.cd"}, extra: "lmao"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pwd, _ := tt.extra.(string)
			mockPassword(t, pwd)
			err := cli.run(append([]string{"admin"}, tt.args...))
			tt.check(t, err)
			if err == nil {
				refreshed, err := cli.usrRepo.GetUser(ctx, user.GetFilter{ID: usr.ID})
				require.NoError(t, err)
				assert.NoError(t, refreshed.CheckPassword(pwd))
			}
		})
	}
}

const catalogYAML = `
categories:
  - name: Programming
    subtitle: Write software
    children:
      - name: Go
        description: <p>Simple, <script>x()</script>reliable</p>
      - name: Data Science
  - name: Design
tags: [go, Concurrency, go]
`

func Test_commandLine_seedCatalog(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()

	fp := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(fp, []byte(catalogYAML), 0o600))
	broken := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("categories: nope"), 0o600))

	tests := []cliTest{
		{name: "no file", args: []string{"seedcatalog"}, wantErr: errHelp},
		{name: "seeds", args: []string{"seedcatalog", "-file", fp}},
		{name: "seeding twice is harmless", args: []string{"seedcatalog", "-file", fp}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(append([]string{"admin"}, tt.args...)))
		})
	}
	assert.Error(t, cli.run([]string{"admin", "seedcatalog", "-file", broken}))
	assert.Error(t, cli.run([]string{"admin", "seedcatalog", "-file", filepath.Join(t.TempDir(), "missing.yaml")}))

	cats, err := cli.courseSvc.QueryCategories(ctx)
	require.NoError(t, err)
	require.Len(t, cats, 4)
	bySlug := make(map[string]course.Category, len(cats))
	for _, cat := range cats {
		bySlug[cat.Slug] = cat
	}
	prog := bySlug["programming"]
	require.NotEmpty(t, prog.ID)
	assert.Nil(t, prog.ParentID)
	require.NotNil(t, bySlug["go"].ParentID)
	assert.Equal(t, prog.ID, *bySlug["go"].ParentID)
	assert.Equal(t, prog.ID, *bySlug["data-science"].ParentID)
	assert.NotContains(t, bySlug["go"].Description, "script")

	tags, err := cli.courseSvc.QueryTags(ctx)
	require.NoError(t, err)
	assert.Len(t, tags, 2)

	// seeding again creates nothing
	res, err := cli.seed(ctx, catalogFile{Categories: []catalogCategory{{Name: "Design"}}, Tags: []string{"GO"}})
	require.NoError(t, err)
	assert.Equal(t, seedResult{}, res)
}

func Test_commandLine_snapshot(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()

	boss := user.User{ID: uuid.NewString(), Username: "boss", Email: "boss@test.cd", IsActive: true, Roles: []string{user.RoleStudent}}
	boss, err := cli.usrRepo.CreateUser(ctx, boss)
	require.NoError(t, err)
	org, err := cli.teamSvc.Create(ctx, boss.ID, team.NewOrganization{Name: "Acme"})
	require.NoError(t, err)

	_, err = cli.teamSvc.LatestSnapshot(ctx, org.ID)
	require.Equal(t, team.ErrSnapshotNotFound, err)

	require.NoError(t, cli.run([]string{"admin", "snapshot"}))
	snap, err := cli.teamSvc.LatestSnapshot(ctx, org.ID)
	require.NoError(t, err)
	assert.Equal(t, org.ID, snap.OrganizationID)
}
