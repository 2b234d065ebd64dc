package payment_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acadamier/backend/core/course"
	"github.com/acadamier/backend/core/payment"
	"github.com/acadamier/backend/core/user"
	inmemdb "github.com/acadamier/backend/storage/database/inmem"
)

type enrollmentSpy struct {
	created []string // course ids
}

func (s *enrollmentSpy) EnrollmentCreated(_ context.Context, _ payment.Enrollment, crs course.Course) {
	s.created = append(s.created, crs.ID)
}

func TestEnrollmentService_Enroll(t *testing.T) {
	ctx := context.Background()
	repo := inmemdb.NewPaymentRepository(inmemdb.Open())
	spy := &enrollmentSpy{}
	svc := payment.NewEnrollmentService(repo, nil, spy)

	days := 30
	timed := course.Course{ID: "timed", DefaultAccessDays: &days}
	lifetime := course.Course{ID: "lifetime"}

	enr, err := svc.Enroll(ctx, "u", timed)
	require.NoError(t, err)
	require.NotNil(t, enr.ExpiresAt)
	assert.WithinDuration(t, enr.EnrolledAt.AddDate(0, 0, days), *enr.ExpiresAt, time.Second)

	again, err := svc.Enroll(ctx, "u", timed)
	require.NoError(t, err)
	assert.Equal(t, enr.ID, again.ID)

	enr, err = svc.Enroll(ctx, "u", lifetime)
	require.NoError(t, err)
	assert.Nil(t, enr.ExpiresAt)
	assert.Equal(t, []string{"timed", "lifetime"}, spy.created)

	// expired enrollments are extended, not duplicated
	past := time.Now().UTC().AddDate(0, 0, -1)
	_, _, err = repo.CreateEnrollment(ctx, payment.Enrollment{ID: "old", UserID: "v", CourseID: "timed", EnrolledAt: past.AddDate(0, 0, -days), ExpiresAt: &past})
	require.NoError(t, err)
	enr, err = svc.Enroll(ctx, "v", timed)
	require.NoError(t, err)
	assert.Equal(t, "old", enr.ID)
	assert.True(t, enr.IsActive(time.Now().UTC()))
	assert.Len(t, spy.created, 2)
}

// racingRepo misses enrollments on lookup, like a read that ran before a concurrent insert.
type racingRepo struct {
	payment.EnrollmentRepository
}

func (racingRepo) GetEnrollment(context.Context, string, string) (payment.Enrollment, error) {
	return payment.Enrollment{}, payment.ErrEnrollmentNotFound
}

func TestEnrollmentService_Enroll_concurrentInsert(t *testing.T) {
	ctx := context.Background()
	repo := inmemdb.NewPaymentRepository(inmemdb.Open())
	spy := &enrollmentSpy{}
	svc := payment.NewEnrollmentService(racingRepo{repo}, nil, spy)

	crs := course.Course{ID: "c"}
	_, _, err := repo.CreateEnrollment(ctx, payment.Enrollment{ID: "winner", UserID: "u", CourseID: crs.ID, EnrolledAt: time.Now().UTC()})
	require.NoError(t, err)

	enr, err := svc.Enroll(ctx, "u", crs)
	require.NoError(t, err)
	assert.Equal(t, "winner", enr.ID)
	assert.Empty(t, spy.created, "the caller that lost the insert does not notify")
}

func TestEnrollmentService_HasAccess(t *testing.T) {
	ctx := context.Background()
	repo := inmemdb.NewPaymentRepository(inmemdb.Open())
	svc := payment.NewEnrollmentService(repo, nil)

	crs := course.Course{ID: "c", InstructorID: "teacher"}
	past := time.Now().UTC().Add(-time.Hour)
	_, _, err := repo.CreateEnrollment(ctx, payment.Enrollment{ID: "e1", UserID: "active", CourseID: "c", EnrolledAt: past})
	require.NoError(t, err)
	_, _, err = repo.CreateEnrollment(ctx, payment.Enrollment{ID: "e2", UserID: "expired", CourseID: "c", EnrolledAt: past, ExpiresAt: &past})
	require.NoError(t, err)

	tests := []struct {
		name string
		usr  user.User
		want bool
	}{
		{name: "admin", usr: user.User{ID: "root", Roles: []string{user.RoleAdmin}}, want: true},
		{name: "instructor", usr: user.User{ID: "teacher", Roles: []string{user.RoleInstructor}}, want: true},
		{name: "enrolled", usr: user.User{ID: "active", Roles: []string{user.RoleStudent}}, want: true},
		{name: "expired", usr: user.User{ID: "expired", Roles: []string{user.RoleStudent}}},
		{name: "stranger", usr: user.User{ID: "nobody", Roles: []string{user.RoleStudent}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ok, err := svc.HasAccess(ctx, tc.usr, crs)
			require.NoError(t, err)
			assert.Equal(t, tc.want, ok)
		})
	}
}
