package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acadamier/backend/core"
	"github.com/acadamier/backend/core/course"
	"github.com/acadamier/backend/core/payment"
	"github.com/acadamier/backend/core/progress"
	"github.com/acadamier/backend/core/quiz"
	"github.com/acadamier/backend/core/scorm"
	"github.com/acadamier/backend/core/team"
	"github.com/acadamier/backend/core/user"
	"github.com/acadamier/backend/storage/database"
)

var testDB *DB

// TestMain starts a throwaway Postgres container. Tests are skipped when Docker is unavailable.
func TestMain(m *testing.M) {
	pool, err := dockertest.NewPool("")
	if err == nil {
		err = pool.Client.Ping()
	}
	if err != nil {
		fmt.Printf("sqlxrepos: docker unavailable, skipping: %v\n", err)
		os.Exit(m.Run())
	}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "16-alpine",
		Env:        []string{"POSTGRES_USER=acadamier", "POSTGRES_PASSWORD=acadamier", "POSTGRES_DB=acadamier"},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		fmt.Printf("sqlxrepos: starting postgres: %v\n", err)
		os.Exit(1)
	}
	_ = resource.Expire(300)

	dsn := fmt.Sprintf("postgres://acadamier:acadamier@%s/acadamier?sslmode=disable", resource.GetHostPort("5432/tcp"))
	var sqlDB *sql.DB
	pool.MaxWait = 90 * time.Second
	err = pool.Retry(func() error {
		var err error
		if sqlDB, err = sql.Open("postgres", dsn); err != nil {
			return err
		}
		return sqlDB.Ping()
	})
	if err == nil {
		err = database.Migrate(sqlDB, "up")
	}
	if err != nil {
		_ = pool.Purge(resource)
		fmt.Printf("sqlxrepos: preparing database: %v\n", err)
		os.Exit(1)
	}
	testDB = New(sqlDB)

	code := m.Run()
	_ = sqlDB.Close()
	_ = pool.Purge(resource)
	os.Exit(code)
}

func requireDB(t *testing.T) *DB {
	t.Helper()
	if testDB == nil {
		t.Skip("docker unavailable")
	}
	return testDB
}

func newUser(t *testing.T, db *DB, username string) user.User {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	usr, err := NewUserRepository(db).CreateUser(context.Background(), user.User{
		ID:           uuid.NewString(),
		Name:         username,
		Username:     username,
		Email:        username + "@acadamier.test",
		IsActive:     true,
		Roles:        []string{user.RoleStudent},
		PasswordHash: []byte("x"),
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	require.NoError(t, err)
	return usr
}

func newCourse(t *testing.T, db *DB, instructor user.User) course.Course {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	crs, err := NewCourseRepository(db).CreateCourse(context.Background(), course.Course{
		ID:           uuid.NewString(),
		Title:        "Course " + instructor.Username,
		Price:        decimal.RequireFromString("49.99"),
		InstructorID: instructor.ID,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	require.NoError(t, err)
	return crs
}

func TestUserRepository(t *testing.T) {
	db := requireDB(t)
	ctx := context.Background()
	repo := NewUserRepository(db)

	alice := newUser(t, db, "alice"+uuid.NewString()[:6])

	err := repo.CheckUsernameUniqueness(ctx, alice.Username, "other@acadamier.test")
	assert.Equal(t, user.ErrUsernameExists, err)
	err = repo.CheckUsernameUniqueness(ctx, "", alice.Email)
	assert.Equal(t, user.ErrEmailExists, err)
	assert.NoError(t, repo.CheckUsernameUniqueness(ctx, alice.Username, alice.Email, alice))

	got, err := repo.GetUser(ctx, user.GetFilter{UsernameOrEmail: alice.Email})
	require.NoError(t, err)
	assert.Equal(t, alice.ID, got.ID)
	assert.Equal(t, []string{user.RoleStudent}, got.Roles)

	users, err := repo.QueryUsers(ctx, &user.QueryFilter{Search: alice.Username, Roles: []string{"student:"}}, []core.DBOrdering{{Field: "name", Ascending: true}})
	require.NoError(t, err)
	require.Len(t, users, 1)

	require.NoError(t, repo.RevokeToken(ctx, "jti-"+alice.ID, time.Now().Add(time.Hour)))
	revoked, err := repo.IsTokenRevoked(ctx, "jti-"+alice.ID)
	require.NoError(t, err)
	assert.True(t, revoked)

	n, err := repo.DeleteUsersByID(ctx, []string{alice.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = repo.GetUser(ctx, user.GetFilter{ID: alice.ID})
	assert.Equal(t, user.ErrNotFound, err)
}

func TestCourseRepository(t *testing.T) {
	db := requireDB(t)
	ctx := context.Background()
	repo := NewCourseRepository(db)
	inst := newUser(t, db, "inst"+uuid.NewString()[:6])

	tag, err := repo.CreateTag(ctx, course.Tag{ID: uuid.NewString(), Name: "tag-" + inst.Username})
	require.NoError(t, err)
	_, err = repo.CreateTag(ctx, course.Tag{ID: uuid.NewString(), Name: tag.Name})
	assert.Equal(t, course.ErrTagExists, err)

	crs := newCourse(t, db, inst)
	prereq := newCourse(t, db, inst)
	crs.TagIDs = []string{tag.ID}
	crs.Prerequisites = []string{prereq.ID}
	_, err = repo.UpdateCourse(ctx, crs)
	require.NoError(t, err)

	got, err := repo.GetCourse(ctx, crs.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{tag.ID}, got.TagIDs)
	assert.Equal(t, []string{prereq.ID}, got.Prerequisites)
	assert.True(t, got.Price.Equal(decimal.RequireFromString("49.99")))

	found, err := repo.QueryCourses(ctx, &course.QueryFilter{TagID: tag.ID}, nil)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, crs.ID, found[0].ID)

	rev := course.Review{ID: uuid.NewString(), UserID: inst.ID, CourseID: crs.ID, Rating: 4, CreatedAt: time.Now().UTC()}
	_, err = repo.CreateReview(ctx, rev)
	require.NoError(t, err)
	rev.ID = uuid.NewString()
	_, err = repo.CreateReview(ctx, rev)
	assert.Equal(t, course.ErrReviewExists, err)
	avg, err := repo.AverageRating(ctx, crs.ID)
	require.NoError(t, err)
	assert.Equal(t, 4.0, avg)

	require.NoError(t, repo.DeleteCourse(ctx, crs.ID))
	_, err = repo.GetCourse(ctx, crs.ID)
	assert.Equal(t, course.ErrNotFound, err)
}

func TestQuizRepository_Replace(t *testing.T) {
	db := requireDB(t)
	ctx := context.Background()
	inst := newUser(t, db, "quiz"+uuid.NewString()[:6])
	crs := newCourse(t, db, inst)
	lsn, err := NewCourseRepository(db).CreateLesson(ctx, course.Lesson{ID: uuid.NewString(), CourseID: crs.ID, Title: "L", CreatedAt: time.Now().UTC()})
	require.NoError(t, err)

	yes, no := true, false
	qz := quiz.Quiz{ID: uuid.NewString(), LessonID: lsn.ID, Title: "Q", Questions: []quiz.Question{{
		ID: uuid.NewString(), Text: "2+2?", Choices: []quiz.Choice{
			{ID: uuid.NewString(), Text: "4", IsCorrect: &yes},
			{ID: uuid.NewString(), Text: "5", IsCorrect: &no},
		},
	}}}
	repo := NewQuizRepository(db)
	created, err := repo.CreateQuiz(ctx, qz)
	require.NoError(t, err)
	require.Len(t, created.Questions, 1)
	require.Len(t, created.Questions[0].Choices, 2)
	assert.True(t, created.Questions[0].Choices[0].Correct())

	qz.Title = "Q2"
	qz.Questions = nil
	replaced, err := repo.ReplaceQuiz(ctx, qz)
	require.NoError(t, err)
	assert.Equal(t, "Q2", replaced.Title)
	assert.Empty(t, replaced.Questions)
}

func TestPaymentRepository_MarkPaid(t *testing.T) {
	db := requireDB(t)
	ctx := context.Background()
	usr := newUser(t, db, "pay"+uuid.NewString()[:6])
	crs := newCourse(t, db, usr)
	repo := NewPaymentRepository(db)

	tx, err := repo.CreateTransaction(ctx, payment.Transaction{
		ID: uuid.NewString(), UserID: usr.ID, CourseID: crs.ID, Reference: uuid.NewString(),
		Amount: 4999, Status: payment.StatusPending, CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	changed, err := repo.MarkTransactionPaid(ctx, tx.ID, time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = repo.MarkTransactionPaid(ctx, tx.ID, time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, changed)
	_, err = repo.MarkTransactionPaid(ctx, uuid.NewString(), time.Now().UTC())
	assert.Equal(t, payment.ErrTransactionNotFound, err)

	got, err := repo.GetTransactionByReference(ctx, tx.Reference)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusSuccess, got.Status)
	assert.NotNil(t, got.PaidAt)

	enr := payment.Enrollment{ID: uuid.NewString(), UserID: usr.ID, CourseID: crs.ID, EnrolledAt: time.Now().UTC()}
	first, created, err := repo.CreateEnrollment(ctx, enr)
	require.NoError(t, err)
	assert.True(t, created)
	enr.ID = uuid.NewString()
	second, created, err := repo.CreateEnrollment(ctx, enr)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
}

func TestTeamRepository_Seats(t *testing.T) {
	db := requireDB(t)
	ctx := context.Background()
	admin := newUser(t, db, "adm"+uuid.NewString()[:6])
	m1 := newUser(t, db, "m1"+uuid.NewString()[:6])
	m2 := newUser(t, db, "m2"+uuid.NewString()[:6])
	repo := NewTeamRepository(db)

	org, err := repo.CreateOrganization(ctx, team.Organization{ID: uuid.NewString(), Name: "Org", AdminID: admin.ID, CreatedAt: time.Now().UTC()})
	require.NoError(t, err)
	_, err = repo.CreateBulkPurchase(ctx, team.BulkPurchase{
		ID: uuid.NewString(), OrganizationID: org.ID, PurchasedByID: admin.ID, Seats: 1, OrderReference: "ref", PurchasedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	var members []team.Member
	for _, u := range []user.User{m1, m2} {
		mbr, err := repo.CreateMember(ctx, team.Member{
			ID: uuid.NewString(), OrganizationID: org.ID, UserID: u.ID, Email: u.Email, Status: team.MemberPending, InvitedAt: time.Now().UTC(),
		})
		require.NoError(t, err)
		members = append(members, mbr)
	}
	_, err = repo.CreateMember(ctx, team.Member{ID: uuid.NewString(), OrganizationID: org.ID, UserID: m1.ID, Email: m1.Email, Status: team.MemberPending, InvitedAt: time.Now().UTC()})
	assert.Equal(t, team.ErrMemberExists, err)

	_, err = repo.ActivateMember(ctx, members[0].ID, time.Now().UTC())
	require.NoError(t, err)
	_, err = repo.ActivateMember(ctx, members[1].ID, time.Now().UTC())
	assert.Equal(t, team.ErrNoSeatsAvailable, err)

	usage, err := repo.SeatUsage(ctx, org.ID)
	require.NoError(t, err)
	assert.Equal(t, team.SeatUsage{TotalSeats: 1, UsedSeats: 1, PendingInvites: 1}, usage)

	snap := team.AnalyticsSnapshot{ID: uuid.NewString(), OrganizationID: org.ID, SnapshotAt: time.Now().UTC(), SeatUsage: usage,
		LearningProgress: []team.MemberProgress{{UserID: m1.ID, Email: m1.Email}}}
	_, err = repo.CreateSnapshot(ctx, snap)
	require.NoError(t, err)
	latest, err := repo.LatestSnapshot(ctx, org.ID)
	require.NoError(t, err)
	assert.Equal(t, usage, latest.SeatUsage)
	assert.Len(t, latest.LearningProgress, 1)
}

func TestScormAndProgressRepositories(t *testing.T) {
	db := requireDB(t)
	ctx := context.Background()
	usr := newUser(t, db, "scorm"+uuid.NewString()[:6])
	crs := newCourse(t, db, usr)
	repo := NewScormRepository(db)
	prog := NewProgressRepository(db)

	pkg, err := repo.CreatePackage(ctx, scorm.Package{
		ID: uuid.NewString(), Title: "P", CourseID: crs.ID, File: "f.zip", Version: scorm.Version12,
		UploadedByID: usr.ID, Status: scorm.StatusProcessing, CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	scos := []scorm.Sco{
		{ID: uuid.NewString(), Identifier: "b", LaunchURL: "b.html", Title: "B", Sequence: 2},
		{ID: uuid.NewString(), Identifier: "a", LaunchURL: "a.html", Title: "A", Sequence: 1},
	}
	require.NoError(t, repo.ReplaceScos(ctx, pkg.ID, scos))
	listed, err := repo.ListScos(ctx, pkg.ID)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "a", listed[0].Identifier)

	rd, err := repo.GetOrCreateRuntime(ctx, scorm.RuntimeData{ID: uuid.NewString(), UserID: usr.ID, ScoID: listed[0].ID, Attempt: 1, UpdatedAt: time.Now().UTC()})
	require.NoError(t, err)
	_, err = repo.MergeRuntime(ctx, rd.ID, map[string]string{"cmi.core.lesson_status": "incomplete", "cmi.core.score.raw": "40"}, time.Now().UTC())
	require.NoError(t, err)
	merged, err := repo.MergeRuntime(ctx, rd.ID, map[string]string{"cmi.core.lesson_status": "passed"}, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"cmi.core.lesson_status": "passed", "cmi.core.score.raw": "40"}, merged.Data)
	_, err = repo.MergeRuntime(ctx, uuid.NewString(), nil, time.Now().UTC())
	assert.Equal(t, scorm.ErrScoNotFound, err)

	total, runtime, err := prog.ScormRuntime(ctx, usr.ID, pkg.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, runtime, 1)
	assert.Equal(t, "passed", runtime[0].Data["cmi.core.lesson_status"])

	sp, err := prog.SaveScormProgress(ctx, progress.ScormProgress{ID: uuid.NewString(), UserID: usr.ID, PackageID: pkg.ID, Percent: 50, UpdatedAt: time.Now().UTC()})
	require.NoError(t, err)
	again, err := prog.SaveScormProgress(ctx, progress.ScormProgress{ID: uuid.NewString(), UserID: usr.ID, PackageID: pkg.ID, Percent: 100, UpdatedAt: time.Now().UTC()})
	require.NoError(t, err)
	assert.Equal(t, sp.ID, again.ID)
	assert.Equal(t, 100.0, again.Percent)
}
