package inmemdb

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acadamier/backend/core"
	"github.com/acadamier/backend/core/course"
	"github.com/acadamier/backend/core/progress"
	"github.com/acadamier/backend/core/quiz"
	"github.com/acadamier/backend/core/scorm"
	"github.com/acadamier/backend/core/team"
	"github.com/acadamier/backend/core/user"
)

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(Open())
	now := time.Now().UTC()

	alice, err := repo.CreateUser(ctx, user.User{ID: "a", Name: "Alice", Username: "alice", Email: "alice@x.io", Roles: []string{user.RoleStudent}, CreatedAt: now})
	require.NoError(t, err)
	_, err = repo.CreateUser(ctx, user.User{ID: "b", Name: "Bob", Username: "bob", Email: "bob@x.io", Roles: []string{user.RoleInstructor}, CreatedAt: now.Add(time.Second)})
	require.NoError(t, err)

	tests := []struct {
		name     string
		username string
		email    string
		excl     []user.User
		want     error
	}{
		{name: "free", username: "carol", email: "carol@x.io"},
		{name: "username taken", username: "bob", email: "new@x.io", want: user.ErrUsernameExists},
		{name: "email taken", username: "new", email: "bob@x.io", want: user.ErrEmailExists},
		{name: "excluded self", username: "alice", email: "alice@x.io", excl: []user.User{alice}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, repo.CheckUsernameUniqueness(ctx, tc.username, tc.email, tc.excl...))
		})
	}

	users, err := repo.QueryUsers(ctx, &user.QueryFilter{Roles: []string{user.RoleInstructor}}, nil)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "b", users[0].ID)

	users, err = repo.QueryUsers(ctx, nil, []core.DBOrdering{{Field: "name", Ascending: true}})
	require.NoError(t, err)
	assert.Equal(t, "a", users[0].ID)

	usr, err := repo.GetUser(ctx, user.GetFilter{UsernameOrEmail: "bob@x.io"})
	require.NoError(t, err)
	assert.Equal(t, "b", usr.ID)

	_, err = repo.GetUser(ctx, user.GetFilter{ID: "nope"})
	assert.Equal(t, user.ErrNotFound, err)

	require.NoError(t, repo.RevokeToken(ctx, "jti", now.Add(time.Hour)))
	revoked, err := repo.IsTokenRevoked(ctx, "jti")
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestUserRepository_Ordering(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(Open())
	faker := gofakeit.New(42)
	now := time.Now().UTC()

	for i := 0; i < 25; i++ {
		_, err := repo.CreateUser(ctx, user.User{
			ID:        faker.UUID(),
			Name:      faker.Name(),
			Username:  fmt.Sprintf("user%d", i),
			Email:     fmt.Sprintf("user%d@x.io", i),
			Roles:     []string{user.RoleStudent},
			CreatedAt: now.Add(time.Duration(faker.Number(0, 3600)) * time.Second),
		})
		require.NoError(t, err)
	}

	byName := func(a, b user.User) int { return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)) }
	users, err := repo.QueryUsers(ctx, nil, []core.DBOrdering{{Field: "name", Ascending: true}})
	require.NoError(t, err)
	require.Len(t, users, 25)
	assert.True(t, slices.IsSortedFunc(users, byName))

	// newest first by default
	users, err = repo.QueryUsers(ctx, nil, nil)
	require.NoError(t, err)
	assert.True(t, slices.IsSortedFunc(users, func(a, b user.User) int { return b.CreatedAt.Compare(a.CreatedAt) }))
}

func TestCourseRepository_DeleteCourse(t *testing.T) {
	ctx := context.Background()
	db := Open()
	repo := NewCourseRepository(db)
	quizzes := NewQuizRepository(db)

	crs, err := repo.CreateCourse(ctx, course.Course{ID: "c1", Title: "Go", Price: decimal.NewFromInt(10)})
	require.NoError(t, err)
	_, err = repo.CreateCourse(ctx, course.Course{ID: "c2", Title: "Rust", Prerequisites: []string{"c1"}})
	require.NoError(t, err)
	_, err = repo.CreateLesson(ctx, course.Lesson{ID: "l1", CourseID: crs.ID})
	require.NoError(t, err)
	_, err = quizzes.CreateQuiz(ctx, quiz.Quiz{ID: "q1", LessonID: "l1", Title: "Basics"})
	require.NoError(t, err)

	require.NoError(t, repo.DeleteCourse(ctx, crs.ID))

	_, err = repo.GetLesson(ctx, "l1")
	assert.Equal(t, course.ErrLessonNotFound, err)
	_, err = quizzes.GetQuiz(ctx, "q1")
	assert.Equal(t, quiz.ErrNotFound, err)
	other, err := repo.GetCourse(ctx, "c2")
	require.NoError(t, err)
	assert.Empty(t, other.Prerequisites)
}

func TestCourseRepository_Uniqueness(t *testing.T) {
	ctx := context.Background()
	repo := NewCourseRepository(Open())

	_, err := repo.CreateTag(ctx, course.Tag{ID: "t1", Name: "Go"})
	require.NoError(t, err)
	_, err = repo.CreateTag(ctx, course.Tag{ID: "t2", Name: "go"})
	assert.Equal(t, course.ErrTagExists, err)

	_, err = repo.CreateCategory(ctx, course.Category{ID: "k1", Name: "Dev", Slug: "dev"})
	require.NoError(t, err)
	_, err = repo.CreateCategory(ctx, course.Category{ID: "k2", Name: "Other", Slug: "dev"})
	assert.Equal(t, course.ErrCategoryExists, err)

	_, err = repo.CreateReview(ctx, course.Review{ID: "r1", UserID: "u", CourseID: "c", Rating: 4})
	require.NoError(t, err)
	_, err = repo.CreateReview(ctx, course.Review{ID: "r2", UserID: "u", CourseID: "c", Rating: 5})
	assert.Equal(t, course.ErrReviewExists, err)

	avg, err := repo.AverageRating(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, 4.0, avg)
}

func TestTeamRepository_ActivateMember(t *testing.T) {
	ctx := context.Background()
	repo := NewTeamRepository(Open())
	now := time.Now().UTC()

	org, err := repo.CreateOrganization(ctx, team.Organization{ID: "o", Name: "Org", AdminID: "admin"})
	require.NoError(t, err)
	_, err = repo.CreateBulkPurchase(ctx, team.BulkPurchase{ID: "bp", OrganizationID: org.ID, Seats: 1})
	require.NoError(t, err)
	for _, id := range []string{"m1", "m2"} {
		_, err = repo.CreateMember(ctx, team.Member{ID: id, OrganizationID: org.ID, UserID: "u-" + id, Status: team.MemberPending, InvitedAt: now})
		require.NoError(t, err)
	}
	_, err = repo.CreateMember(ctx, team.Member{ID: "dup", OrganizationID: org.ID, UserID: "u-m1"})
	assert.Equal(t, team.ErrMemberExists, err)

	mbr, err := repo.ActivateMember(ctx, "m1", now)
	require.NoError(t, err)
	assert.Equal(t, team.MemberActive, mbr.Status)

	_, err = repo.ActivateMember(ctx, "m2", now)
	assert.Equal(t, team.ErrNoSeatsAvailable, err)

	usage, err := repo.SeatUsage(ctx, org.ID)
	require.NoError(t, err)
	assert.Equal(t, team.SeatUsage{TotalSeats: 1, UsedSeats: 1, PendingInvites: 1}, usage)

	orgs, err := repo.ListOrganizations(ctx, "u-m1")
	require.NoError(t, err)
	assert.Len(t, orgs, 1)
	orgs, err = repo.ListOrganizations(ctx, "u-m2")
	require.NoError(t, err)
	assert.Empty(t, orgs)
}

func TestProgressRepository_SaveUpserts(t *testing.T) {
	ctx := context.Background()
	repo := NewProgressRepository(Open())

	first, err := repo.SaveLessonProgress(ctx, progress.LessonProgress{ID: "p1", UserID: "u", LessonID: "l", CourseID: "c"})
	require.NoError(t, err)
	second, err := repo.SaveLessonProgress(ctx, progress.LessonProgress{ID: "p2", UserID: "u", LessonID: "l", CourseID: "c", IsCompleted: true})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	done, err := repo.CountCompletedLessons(ctx, "u", "c")
	require.NoError(t, err)
	assert.Equal(t, 1, done)

	cert, err := repo.GetOrCreateCertification(ctx, progress.Certification{ID: "x1", UserID: "u", LessonID: "l", CertID: "A"})
	require.NoError(t, err)
	again, err := repo.GetOrCreateCertification(ctx, progress.Certification{ID: "x2", UserID: "u", LessonID: "l", CertID: "B"})
	require.NoError(t, err)
	assert.Equal(t, cert, again)
}

func TestScormRepository(t *testing.T) {
	ctx := context.Background()
	db := Open()
	repo := NewScormRepository(db)
	prog := NewProgressRepository(db)

	_, err := NewCourseRepository(db).CreateCourse(ctx, course.Course{ID: "c"})
	require.NoError(t, err)
	_, err = repo.CreatePackage(ctx, scorm.Package{ID: "p", CourseID: "c", Status: scorm.StatusProcessing})
	require.NoError(t, err)

	require.NoError(t, repo.ReplaceScos(ctx, "p", []scorm.Sco{{ID: "s2", Sequence: 2}, {ID: "s1", Sequence: 1}}))
	scos, err := repo.ListScos(ctx, "p")
	require.NoError(t, err)
	require.Len(t, scos, 2)
	assert.Equal(t, "s1", scos[0].ID)

	rd, err := repo.GetOrCreateRuntime(ctx, scorm.RuntimeData{ID: "r", UserID: "u", ScoID: "s1", Attempt: 1, Data: map[string]string{}})
	require.NoError(t, err)

	// concurrent SCO commits of different keys are all kept
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := repo.MergeRuntime(ctx, rd.ID, map[string]string{fmt.Sprintf("cmi.interactions.%d.id", i): "q"}, time.Now().UTC())
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	merged, err := repo.MergeRuntime(ctx, rd.ID, map[string]string{"cmi.core.lesson_status": "completed"}, time.Now().UTC())
	require.NoError(t, err)
	assert.Len(t, merged.Data, 9)

	_, err = repo.MergeRuntime(ctx, "missing", nil, time.Now().UTC())
	assert.Equal(t, scorm.ErrScoNotFound, err)

	total, runtime, err := prog.ScormRuntime(ctx, "u", "p")
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, runtime, 1)
	assert.Equal(t, "completed", runtime[0].Data["cmi.core.lesson_status"])

	require.NoError(t, repo.ReplaceScos(ctx, "p", []scorm.Sco{{ID: "s3", Sequence: 1}}))
	_, runtime, err = prog.ScormRuntime(ctx, "u", "p")
	require.NoError(t, err)
	assert.Empty(t, runtime)
}
