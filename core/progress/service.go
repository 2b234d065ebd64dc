package progress

import (
	"context"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/acadamier/backend/core"
	"github.com/acadamier/backend/core/course"
)

const (
	TaskRecalcCourseProgress = "progress.recalc_course"
	TaskRecalcScormProgress  = "progress.recalc_scorm"
)

var (
	// errors
	ErrNotFound                   = core.NewNotFoundError("progress not found")
	ErrCertificationNotFound      = core.NewNotFoundError("certification not found")
	ErrScormCertificationNotFound = core.NewNotFoundError("scorm certification not found")

	// SCORM 1.2 then 2004 status keys, by precedence
	scoStatusKeys        = []string{"cmi.core.lesson_status", "cmi.success_status", "cmi.completion_status"}
	scoCompletedStatuses = map[string]bool{"completed": true, "passed": true}
)

type (
	Repository interface {
		ListLessonProgress(ctx context.Context, userID string) ([]LessonProgress, error)
		GetLessonProgress(ctx context.Context, id string) (LessonProgress, error)
		// SaveLessonProgress creates or updates the progress of the user on the lesson.
		SaveLessonProgress(ctx context.Context, lp LessonProgress) (LessonProgress, error)
		CountLessons(ctx context.Context, courseID string) (int, error)
		CountCompletedLessons(ctx context.Context, userID, courseID string) (int, error)

		ListCourseProgress(ctx context.Context, userID string) ([]CourseProgress, error)
		GetCourseProgress(ctx context.Context, id string) (CourseProgress, error)
		GetCourseProgressByCourse(ctx context.Context, userID, courseID string) (CourseProgress, error)
		// SaveCourseProgress creates or updates the progress of the user on the course.
		SaveCourseProgress(ctx context.Context, cp CourseProgress) (CourseProgress, error)

		// ScormRuntime returns the number of SCOs of the package and the runtime data the user reported for them.
		ScormRuntime(ctx context.Context, userID, packageID string) (int, []ScoRuntime, error)
		ListScormProgress(ctx context.Context, userID string) ([]ScormProgress, error)
		GetScormProgress(ctx context.Context, id string) (ScormProgress, error)
		SaveScormProgress(ctx context.Context, sp ScormProgress) (ScormProgress, error)

		// GetOrCreateCertification returns the existing certification of the user on the lesson, or stores cert.
		GetOrCreateCertification(ctx context.Context, cert Certification) (Certification, error)
		ListCertifications(ctx context.Context, userID string) ([]Certification, error)
		GetCertification(ctx context.Context, id string) (Certification, error)
		GetOrCreateScormCertification(ctx context.Context, cert ScormCertification) (ScormCertification, error)
		ListScormCertifications(ctx context.Context, userID string) ([]ScormCertification, error)
		GetScormCertification(ctx context.Context, id string) (ScormCertification, error)
	}

	// Listener is notified of learning milestones.
	Listener interface {
		LessonMilestone(ctx context.Context, userID string, crs course.Course, done, total int)
		CourseCompleted(ctx context.Context, userID string, crs course.Course)
	}

	Service interface {
		ListLessonProgress(ctx context.Context, userID string) ([]LessonProgress, error)
		GetLessonProgress(ctx context.Context, id string) (LessonProgress, error)
		SaveLessonProgress(ctx context.Context, userID string, lsn course.Lesson, isCompleted bool) (LessonProgress, error)

		ListCourseProgress(ctx context.Context, userID string) ([]CourseProgress, error)
		GetCourseProgress(ctx context.Context, id string) (CourseProgress, error)
		RecalcCourseProgress(ctx context.Context, userID, courseID string) (CourseProgress, error)

		ListScormProgress(ctx context.Context, userID string) ([]ScormProgress, error)
		GetScormProgress(ctx context.Context, id string) (ScormProgress, error)
		RecalcScormProgress(ctx context.Context, userID, packageID string) (ScormProgress, error)
		RuntimeUpdated(ctx context.Context, userID, packageID string)

		ListCertifications(ctx context.Context, userID string) ([]Certification, error)
		GetCertification(ctx context.Context, id string) (Certification, error)
		ListScormCertifications(ctx context.Context, userID string) ([]ScormCertification, error)
		GetScormCertification(ctx context.Context, id string) (ScormCertification, error)
	}

	service struct {
		repo      Repository
		courseSvc course.Service
		tasks     core.TaskQueue
		tracer    trace.Tracer
		listeners []Listener
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, courseSvc course.Service, tasks core.TaskQueue, listeners ...Listener) Service {
	return &service{
		repo:      repo,
		courseSvc: courseSvc,
		tasks:     tasks,
		tracer:    otel.Tracer("progress/service"),
		listeners: listeners,
	}
}

func percent(done, total int) float64 {
	if total == 0 {
		return 0
	}
	return core.Round2(float64(done) / float64(total) * 100)
}

// Lessons

func (svc *service) ListLessonProgress(ctx context.Context, userID string) ([]LessonProgress, error) {
	return svc.repo.ListLessonProgress(ctx, userID)
}

func (svc *service) GetLessonProgress(ctx context.Context, id string) (LessonProgress, error) {
	return svc.repo.GetLessonProgress(ctx, id)
}

func (svc *service) SaveLessonProgress(ctx context.Context, userID string, lsn course.Lesson, isCompleted bool) (LessonProgress, error) {
	traceCtx, span := svc.tracer.Start(ctx, "SaveLessonProgress")
	defer span.End()

	lp, err := svc.repo.SaveLessonProgress(traceCtx, LessonProgress{
		ID:          uuid.NewString(),
		UserID:      userID,
		LessonID:    lsn.ID,
		CourseID:    lsn.CourseID,
		IsCompleted: isCompleted,
		UpdatedAt:   time.Now().UTC(),
	})
	if err != nil {
		span.RecordError(err)
		return LessonProgress{}, pkgerrors.Wrap(err, "saving lesson progress")
	}

	svc.tasks.Enqueue(core.Task{
		Name:       TaskRecalcCourseProgress,
		MaxRetries: 3,
		Run: func(ctx context.Context) error {
			_, err := svc.RecalcCourseProgress(ctx, userID, lsn.CourseID)
			return err
		},
	})

	if !lp.IsCompleted {
		return lp, nil
	}
	if _, err = svc.repo.GetOrCreateCertification(traceCtx, Certification{
		ID:       uuid.NewString(),
		UserID:   userID,
		LessonID: lsn.ID,
		CertID:   uuid.NewString(),
		IssuedAt: time.Now().UTC(),
	}); err != nil {
		return LessonProgress{}, pkgerrors.Wrap(err, "awarding certification")
	}

	if len(svc.listeners) > 0 {
		crs, err := svc.courseSvc.GetByID(traceCtx, lsn.CourseID)
		if err != nil {
			return LessonProgress{}, pkgerrors.Wrap(err, "finding course")
		}
		total, err := svc.repo.CountLessons(traceCtx, crs.ID)
		if err != nil {
			return LessonProgress{}, pkgerrors.Wrap(err, "counting lessons")
		}
		done, err := svc.repo.CountCompletedLessons(traceCtx, userID, crs.ID)
		if err != nil {
			return LessonProgress{}, pkgerrors.Wrap(err, "counting completed lessons")
		}
		for _, l := range svc.listeners {
			l.LessonMilestone(traceCtx, userID, crs, done, total)
		}
	}
	return lp, nil
}

// Courses

func (svc *service) ListCourseProgress(ctx context.Context, userID string) ([]CourseProgress, error) {
	return svc.repo.ListCourseProgress(ctx, userID)
}

func (svc *service) GetCourseProgress(ctx context.Context, id string) (CourseProgress, error) {
	return svc.repo.GetCourseProgress(ctx, id)
}

// RecalcCourseProgress stores the share of the course's lessons the user completed.
func (svc *service) RecalcCourseProgress(ctx context.Context, userID, courseID string) (CourseProgress, error) {
	traceCtx, span := svc.tracer.Start(ctx, "RecalcCourseProgress")
	defer span.End()

	total, err := svc.repo.CountLessons(traceCtx, courseID)
	if err != nil {
		return CourseProgress{}, pkgerrors.Wrap(err, "counting lessons")
	}
	done, err := svc.repo.CountCompletedLessons(traceCtx, userID, courseID)
	if err != nil {
		return CourseProgress{}, pkgerrors.Wrap(err, "counting completed lessons")
	}

	var prevPercent float64
	prev, err := svc.repo.GetCourseProgressByCourse(traceCtx, userID, courseID)
	switch {
	case err == nil:
		prevPercent = prev.Percent
	case pkgerrors.Cause(err) != ErrNotFound:
		return CourseProgress{}, pkgerrors.Wrap(err, "finding course progress")
	}

	cp, err := svc.repo.SaveCourseProgress(traceCtx, CourseProgress{
		ID:        uuid.NewString(),
		UserID:    userID,
		CourseID:  courseID,
		Percent:   percent(done, total),
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		return CourseProgress{}, pkgerrors.Wrap(err, "saving course progress")
	}

	if cp.Percent >= 100 && prevPercent < 100 && len(svc.listeners) > 0 {
		crs, err := svc.courseSvc.GetByID(traceCtx, courseID)
		if err != nil {
			return CourseProgress{}, pkgerrors.Wrap(err, "finding course")
		}
		for _, l := range svc.listeners {
			l.CourseCompleted(traceCtx, userID, crs)
		}
	}
	return cp, nil
}

// SCORM

func (svc *service) ListScormProgress(ctx context.Context, userID string) ([]ScormProgress, error) {
	return svc.repo.ListScormProgress(ctx, userID)
}

func (svc *service) GetScormProgress(ctx context.Context, id string) (ScormProgress, error) {
	return svc.repo.GetScormProgress(ctx, id)
}

// ScoStatus returns the status reported in the runtime data of a SCO.
func ScoStatus(data map[string]string) string {
	for _, key := range scoStatusKeys {
		if status := data[key]; status != "" {
			return status
		}
	}
	return ""
}

// RecalcScormProgress stores the share of the package's SCOs the user completed or passed,
// and awards a certification once every SCO is done.
func (svc *service) RecalcScormProgress(ctx context.Context, userID, packageID string) (ScormProgress, error) {
	traceCtx, span := svc.tracer.Start(ctx, "RecalcScormProgress")
	defer span.End()

	total, runtime, err := svc.repo.ScormRuntime(traceCtx, userID, packageID)
	if err != nil {
		return ScormProgress{}, pkgerrors.Wrap(err, "loading runtime data")
	}
	var done int
	for _, rt := range runtime {
		if scoCompletedStatuses[ScoStatus(rt.Data)] {
			done++
		}
	}

	sp, err := svc.repo.SaveScormProgress(traceCtx, ScormProgress{
		ID:        uuid.NewString(),
		UserID:    userID,
		PackageID: packageID,
		Percent:   percent(done, total),
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		return ScormProgress{}, pkgerrors.Wrap(err, "saving scorm progress")
	}

	if sp.Percent >= 100 {
		if _, err = svc.repo.GetOrCreateScormCertification(traceCtx, ScormCertification{
			ID:        uuid.NewString(),
			UserID:    userID,
			PackageID: packageID,
			CertID:    uuid.NewString(),
			IssuedAt:  time.Now().UTC(),
		}); err != nil {
			return ScormProgress{}, pkgerrors.Wrap(err, "awarding scorm certification")
		}
	}
	return sp, nil
}

// RuntimeUpdated schedules the recalculation of the user's progress on the package.
func (svc *service) RuntimeUpdated(_ context.Context, userID, packageID string) {
	svc.tasks.Enqueue(core.Task{
		Name:       TaskRecalcScormProgress,
		MaxRetries: 3,
		Run: func(ctx context.Context) error {
			_, err := svc.RecalcScormProgress(ctx, userID, packageID)
			return err
		},
	})
}

// Certifications

func (svc *service) ListCertifications(ctx context.Context, userID string) ([]Certification, error) {
	return svc.repo.ListCertifications(ctx, userID)
}

func (svc *service) GetCertification(ctx context.Context, id string) (Certification, error) {
	return svc.repo.GetCertification(ctx, id)
}

func (svc *service) ListScormCertifications(ctx context.Context, userID string) ([]ScormCertification, error) {
	return svc.repo.ListScormCertifications(ctx, userID)
}

func (svc *service) GetScormCertification(ctx context.Context, id string) (ScormCertification, error) {
	return svc.repo.GetScormCertification(ctx, id)
}
