package payment

import (
	"context"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/acadamier/backend/core"
	"github.com/acadamier/backend/core/course"
	"github.com/acadamier/backend/core/user"
)

var ErrEnrollmentNotFound = core.NewNotFoundError("enrollment not found")

type (
	EnrollmentRepository interface {
		GetEnrollment(ctx context.Context, userID, courseID string) (Enrollment, error)
		ListEnrollments(ctx context.Context, userID string) ([]Enrollment, error)
		// CreateEnrollment returns the existing enrollment when the user is already enrolled in the course.
		// It reports whether enr was inserted.
		CreateEnrollment(ctx context.Context, enr Enrollment) (Enrollment, bool, error)
		UpdateEnrollment(ctx context.Context, enr Enrollment) (Enrollment, error)
	}

	// EnrollmentListener is notified whenever a user gets enrolled in a course.
	EnrollmentListener interface {
		EnrollmentCreated(ctx context.Context, enr Enrollment, crs course.Course)
	}

	EnrollmentService interface {
		// Enroll gets or creates the enrollment of the user in the course. An expired enrollment is renewed.
		Enroll(ctx context.Context, userID string, crs course.Course) (Enrollment, error)
		EnrollInCourses(ctx context.Context, userID string, courseIDs ...string) error
		ListByUser(ctx context.Context, userID string) ([]Enrollment, error)
		// HasAccess reports whether the user may access the content of the course.
		HasAccess(ctx context.Context, usr user.User, crs course.Course) (bool, error)
	}

	enrollmentService struct {
		repo      EnrollmentRepository
		courseSvc course.Service
		tracer    trace.Tracer
		listeners []EnrollmentListener
	}
)

var _ EnrollmentService = (*enrollmentService)(nil)

func NewEnrollmentService(repo EnrollmentRepository, courseSvc course.Service, listeners ...EnrollmentListener) EnrollmentService {
	return &enrollmentService{
		repo:      repo,
		courseSvc: courseSvc,
		tracer:    otel.Tracer("payment/enrollment"),
		listeners: listeners,
	}
}

func expiresAt(crs course.Course, from time.Time) *time.Time {
	if crs.DefaultAccessDays == nil {
		return nil
	}
	exp := from.AddDate(0, 0, *crs.DefaultAccessDays)
	return &exp
}

func (svc *enrollmentService) Enroll(ctx context.Context, userID string, crs course.Course) (Enrollment, error) {
	traceCtx, span := svc.tracer.Start(ctx, "Enroll")
	defer span.End()

	now := time.Now().UTC()
	enr, err := svc.repo.GetEnrollment(traceCtx, userID, crs.ID)
	switch {
	case err == nil:
		if enr.IsActive(now) {
			return enr, nil
		}
		enr.EnrolledAt = now
		enr.ExpiresAt = expiresAt(crs, now)
		return svc.repo.UpdateEnrollment(traceCtx, enr)
	case pkgerrors.Cause(err) != ErrEnrollmentNotFound:
		return Enrollment{}, pkgerrors.Wrap(err, "finding enrollment")
	}

	enr, created, err := svc.repo.CreateEnrollment(traceCtx, Enrollment{
		ID:         uuid.NewString(),
		UserID:     userID,
		CourseID:   crs.ID,
		EnrolledAt: now,
		ExpiresAt:  expiresAt(crs, now),
	})
	if err != nil {
		span.RecordError(err)
		return Enrollment{}, pkgerrors.Wrap(err, "creating enrollment")
	}
	if !created {
		// a concurrent caller enrolled the user first
		return enr, nil
	}
	for _, l := range svc.listeners {
		l.EnrollmentCreated(traceCtx, enr, crs)
	}
	return enr, nil
}

func (svc *enrollmentService) EnrollInCourses(ctx context.Context, userID string, courseIDs ...string) error {
	for _, id := range courseIDs {
		crs, err := svc.courseSvc.GetByID(ctx, id)
		if err != nil {
			if pkgerrors.Cause(err) == course.ErrNotFound {
				continue // deleted since purchase
			}
			return pkgerrors.Wrap(err, "finding course")
		}
		if _, err = svc.Enroll(ctx, userID, crs); err != nil {
			return err
		}
	}
	return nil
}

func (svc *enrollmentService) ListByUser(ctx context.Context, userID string) ([]Enrollment, error) {
	return svc.repo.ListEnrollments(ctx, userID)
}

func (svc *enrollmentService) HasAccess(ctx context.Context, usr user.User, crs course.Course) (bool, error) {
	if usr.IsAdmin() || crs.InstructorID == usr.ID {
		return true, nil
	}
	enr, err := svc.repo.GetEnrollment(ctx, usr.ID, crs.ID)
	if err != nil {
		if pkgerrors.Cause(err) == ErrEnrollmentNotFound {
			return false, nil
		}
		return false, pkgerrors.Wrap(err, "finding enrollment")
	}
	return enr.IsActive(time.Now().UTC()), nil
}
