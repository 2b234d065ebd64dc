package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx/types"
	pkgerrors "github.com/pkg/errors"

	"github.com/acadamier/backend/core/progress"
)

type progressRepository struct {
	db *DB
}

var _ progress.Repository = (*progressRepository)(nil)

func NewProgressRepository(db *DB) progress.Repository {
	return &progressRepository{db: db}
}

// Lessons

type lessonProgressRow struct {
	ID          string    `db:"id"`
	UserID      string    `db:"user_id"`
	LessonID    string    `db:"lesson_id"`
	CourseID    string    `db:"course_id"`
	IsCompleted bool      `db:"is_completed"`
	UpdatedAt   time.Time `db:"updated_at"`
}

var lessonProgressColumns = []string{"id", "user_id", "lesson_id", "course_id", "is_completed", "updated_at"}

func (r lessonProgressRow) toLessonProgress() progress.LessonProgress {
	lp := progress.LessonProgress(r)
	lp.UpdatedAt = r.UpdatedAt.UTC()
	return lp
}

func (repo *progressRepository) ListLessonProgress(ctx context.Context, userID string) ([]progress.LessonProgress, error) {
	var rows []lessonProgressRow
	b := psql.Select(lessonProgressColumns...).From("lesson_progress").Where(sq.Eq{"user_id": userID}).OrderBy("updated_at DESC")
	if err := selectRows(ctx, repo.db, &rows, b); err != nil {
		return nil, err
	}
	list := make([]progress.LessonProgress, len(rows))
	for i, r := range rows {
		list[i] = r.toLessonProgress()
	}
	return list, nil
}

func (repo *progressRepository) GetLessonProgress(ctx context.Context, id string) (progress.LessonProgress, error) {
	var r lessonProgressRow
	if err := get(ctx, repo.db, &r, psql.Select(lessonProgressColumns...).From("lesson_progress").Where(sq.Eq{"id": id})); err != nil {
		return progress.LessonProgress{}, trapNoRowsErr(err, progress.ErrNotFound)
	}
	return r.toLessonProgress(), nil
}

func (repo *progressRepository) SaveLessonProgress(ctx context.Context, lp progress.LessonProgress) (progress.LessonProgress, error) {
	var r lessonProgressRow
	b := psql.Insert("lesson_progress").Columns(lessonProgressColumns...).
		Values(lp.ID, lp.UserID, lp.LessonID, lp.CourseID, lp.IsCompleted, lp.UpdatedAt).
		Suffix("ON CONFLICT (user_id, lesson_id) DO UPDATE SET is_completed = EXCLUDED.is_completed, updated_at = EXCLUDED.updated_at").
		Suffix("RETURNING id, user_id, lesson_id, course_id, is_completed, updated_at")
	if err := get(ctx, repo.db, &r, b); err != nil {
		return progress.LessonProgress{}, err
	}
	return r.toLessonProgress(), nil
}

func (repo *progressRepository) CountLessons(ctx context.Context, courseID string) (int, error) {
	var n int
	err := get(ctx, repo.db, &n, psql.Select("COUNT(*)").From("lessons").Where(sq.Eq{"course_id": courseID}))
	return n, err
}

func (repo *progressRepository) CountCompletedLessons(ctx context.Context, userID, courseID string) (int, error) {
	var n int
	b := psql.Select("COUNT(*)").From("lesson_progress").
		Where(sq.Eq{"user_id": userID, "course_id": courseID, "is_completed": true})
	err := get(ctx, repo.db, &n, b)
	return n, err
}

// Courses

type courseProgressRow struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	CourseID  string    `db:"course_id"`
	Percent   float64   `db:"percent"`
	UpdatedAt time.Time `db:"updated_at"`
}

var courseProgressColumns = []string{"id", "user_id", "course_id", "percent", "updated_at"}

func (r courseProgressRow) toCourseProgress() progress.CourseProgress {
	cp := progress.CourseProgress(r)
	cp.UpdatedAt = r.UpdatedAt.UTC()
	return cp
}

func (repo *progressRepository) getCourseProgress(ctx context.Context, cond sq.Sqlizer) (progress.CourseProgress, error) {
	var r courseProgressRow
	if err := get(ctx, repo.db, &r, psql.Select(courseProgressColumns...).From("course_progress").Where(cond)); err != nil {
		return progress.CourseProgress{}, trapNoRowsErr(err, progress.ErrNotFound)
	}
	return r.toCourseProgress(), nil
}

func (repo *progressRepository) ListCourseProgress(ctx context.Context, userID string) ([]progress.CourseProgress, error) {
	var rows []courseProgressRow
	b := psql.Select(courseProgressColumns...).From("course_progress").Where(sq.Eq{"user_id": userID}).OrderBy("updated_at DESC")
	if err := selectRows(ctx, repo.db, &rows, b); err != nil {
		return nil, err
	}
	list := make([]progress.CourseProgress, len(rows))
	for i, r := range rows {
		list[i] = r.toCourseProgress()
	}
	return list, nil
}

func (repo *progressRepository) GetCourseProgress(ctx context.Context, id string) (progress.CourseProgress, error) {
	return repo.getCourseProgress(ctx, sq.Eq{"id": id})
}

func (repo *progressRepository) GetCourseProgressByCourse(ctx context.Context, userID, courseID string) (progress.CourseProgress, error) {
	return repo.getCourseProgress(ctx, sq.Eq{"user_id": userID, "course_id": courseID})
}

func (repo *progressRepository) SaveCourseProgress(ctx context.Context, cp progress.CourseProgress) (progress.CourseProgress, error) {
	var r courseProgressRow
	b := psql.Insert("course_progress").Columns(courseProgressColumns...).
		Values(cp.ID, cp.UserID, cp.CourseID, cp.Percent, cp.UpdatedAt).
		Suffix("ON CONFLICT (user_id, course_id) DO UPDATE SET percent = EXCLUDED.percent, updated_at = EXCLUDED.updated_at").
		Suffix("RETURNING id, user_id, course_id, percent, updated_at")
	if err := get(ctx, repo.db, &r, b); err != nil {
		return progress.CourseProgress{}, err
	}
	return r.toCourseProgress(), nil
}

// SCORM

func (repo *progressRepository) ScormRuntime(ctx context.Context, userID, packageID string) (int, []progress.ScoRuntime, error) {
	var total int
	if err := get(ctx, repo.db, &total, psql.Select("COUNT(*)").From("scos").Where(sq.Eq{"package_id": packageID})); err != nil {
		return 0, nil, pkgerrors.Wrap(err, "counting SCOs")
	}

	var rows []struct {
		ScoID string         `db:"sco_id"`
		Data  types.JSONText `db:"data"`
	}
	b := psql.Select("DISTINCT ON (rd.sco_id) rd.sco_id", "rd.data").
		From("scorm_runtime_data rd").
		Join("scos s ON s.id = rd.sco_id").
		Where(sq.Eq{"s.package_id": packageID, "rd.user_id": userID}).
		OrderBy("rd.sco_id", "rd.attempt DESC")
	if err := selectRows(ctx, repo.db, &rows, b); err != nil {
		return 0, nil, pkgerrors.Wrap(err, "selecting runtime data")
	}
	runtime := make([]progress.ScoRuntime, len(rows))
	for i, r := range rows {
		runtime[i].ScoID = r.ScoID
		if err := r.Data.Unmarshal(&runtime[i].Data); err != nil {
			return 0, nil, pkgerrors.Wrap(err, "decoding runtime data")
		}
	}
	return total, runtime, nil
}

type scormProgressRow struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	PackageID string    `db:"package_id"`
	Percent   float64   `db:"percent"`
	UpdatedAt time.Time `db:"updated_at"`
}

var scormProgressColumns = []string{"id", "user_id", "package_id", "percent", "updated_at"}

func (r scormProgressRow) toScormProgress() progress.ScormProgress {
	sp := progress.ScormProgress(r)
	sp.UpdatedAt = r.UpdatedAt.UTC()
	return sp
}

func (repo *progressRepository) ListScormProgress(ctx context.Context, userID string) ([]progress.ScormProgress, error) {
	var rows []scormProgressRow
	b := psql.Select(scormProgressColumns...).From("scorm_progress").Where(sq.Eq{"user_id": userID}).OrderBy("updated_at DESC")
	if err := selectRows(ctx, repo.db, &rows, b); err != nil {
		return nil, err
	}
	list := make([]progress.ScormProgress, len(rows))
	for i, r := range rows {
		list[i] = r.toScormProgress()
	}
	return list, nil
}

func (repo *progressRepository) GetScormProgress(ctx context.Context, id string) (progress.ScormProgress, error) {
	var r scormProgressRow
	if err := get(ctx, repo.db, &r, psql.Select(scormProgressColumns...).From("scorm_progress").Where(sq.Eq{"id": id})); err != nil {
		return progress.ScormProgress{}, trapNoRowsErr(err, progress.ErrNotFound)
	}
	return r.toScormProgress(), nil
}

func (repo *progressRepository) SaveScormProgress(ctx context.Context, sp progress.ScormProgress) (progress.ScormProgress, error) {
	var r scormProgressRow
	b := psql.Insert("scorm_progress").Columns(scormProgressColumns...).
		Values(sp.ID, sp.UserID, sp.PackageID, sp.Percent, sp.UpdatedAt).
		Suffix("ON CONFLICT (user_id, package_id) DO UPDATE SET percent = EXCLUDED.percent, updated_at = EXCLUDED.updated_at").
		Suffix("RETURNING id, user_id, package_id, percent, updated_at")
	if err := get(ctx, repo.db, &r, b); err != nil {
		return progress.ScormProgress{}, err
	}
	return r.toScormProgress(), nil
}

// Certifications

type certificationRow struct {
	ID       string    `db:"id"`
	UserID   string    `db:"user_id"`
	LessonID string    `db:"lesson_id"`
	CertID   string    `db:"cert_id"`
	IssuedAt time.Time `db:"issued_at"`
}

var certificationColumns = []string{"id", "user_id", "lesson_id", "cert_id", "issued_at"}

func (r certificationRow) toCertification() progress.Certification {
	cert := progress.Certification(r)
	cert.IssuedAt = r.IssuedAt.UTC()
	return cert
}

func (repo *progressRepository) GetOrCreateCertification(ctx context.Context, cert progress.Certification) (progress.Certification, error) {
	b := psql.Insert("certifications").Columns(certificationColumns...).
		Values(cert.ID, cert.UserID, cert.LessonID, cert.CertID, cert.IssuedAt).
		Suffix("ON CONFLICT (user_id, lesson_id) DO NOTHING")
	if _, err := exec(ctx, repo.db, b); err != nil {
		return progress.Certification{}, err
	}
	var r certificationRow
	q := psql.Select(certificationColumns...).From("certifications").Where(sq.Eq{"user_id": cert.UserID, "lesson_id": cert.LessonID})
	if err := get(ctx, repo.db, &r, q); err != nil {
		return progress.Certification{}, err
	}
	return r.toCertification(), nil
}

func (repo *progressRepository) ListCertifications(ctx context.Context, userID string) ([]progress.Certification, error) {
	var rows []certificationRow
	b := psql.Select(certificationColumns...).From("certifications").Where(sq.Eq{"user_id": userID}).OrderBy("issued_at DESC")
	if err := selectRows(ctx, repo.db, &rows, b); err != nil {
		return nil, err
	}
	list := make([]progress.Certification, len(rows))
	for i, r := range rows {
		list[i] = r.toCertification()
	}
	return list, nil
}

func (repo *progressRepository) GetCertification(ctx context.Context, id string) (progress.Certification, error) {
	var r certificationRow
	if err := get(ctx, repo.db, &r, psql.Select(certificationColumns...).From("certifications").Where(sq.Eq{"id": id})); err != nil {
		return progress.Certification{}, trapNoRowsErr(err, progress.ErrCertificationNotFound)
	}
	return r.toCertification(), nil
}

type scormCertificationRow struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	PackageID string    `db:"package_id"`
	CertID    string    `db:"cert_id"`
	IssuedAt  time.Time `db:"issued_at"`
}

var scormCertificationColumns = []string{"id", "user_id", "package_id", "cert_id", "issued_at"}

func (r scormCertificationRow) toScormCertification() progress.ScormCertification {
	cert := progress.ScormCertification(r)
	cert.IssuedAt = r.IssuedAt.UTC()
	return cert
}

func (repo *progressRepository) GetOrCreateScormCertification(ctx context.Context, cert progress.ScormCertification) (progress.ScormCertification, error) {
	b := psql.Insert("scorm_certifications").Columns(scormCertificationColumns...).
		Values(cert.ID, cert.UserID, cert.PackageID, cert.CertID, cert.IssuedAt).
		Suffix("ON CONFLICT (user_id, package_id) DO NOTHING")
	if _, err := exec(ctx, repo.db, b); err != nil {
		return progress.ScormCertification{}, err
	}
	var r scormCertificationRow
	q := psql.Select(scormCertificationColumns...).From("scorm_certifications").Where(sq.Eq{"user_id": cert.UserID, "package_id": cert.PackageID})
	if err := get(ctx, repo.db, &r, q); err != nil {
		return progress.ScormCertification{}, err
	}
	return r.toScormCertification(), nil
}

func (repo *progressRepository) ListScormCertifications(ctx context.Context, userID string) ([]progress.ScormCertification, error) {
	var rows []scormCertificationRow
	b := psql.Select(scormCertificationColumns...).From("scorm_certifications").Where(sq.Eq{"user_id": userID}).OrderBy("issued_at DESC")
	if err := selectRows(ctx, repo.db, &rows, b); err != nil {
		return nil, err
	}
	list := make([]progress.ScormCertification, len(rows))
	for i, r := range rows {
		list[i] = r.toScormCertification()
	}
	return list, nil
}

func (repo *progressRepository) GetScormCertification(ctx context.Context, id string) (progress.ScormCertification, error) {
	var r scormCertificationRow
	if err := get(ctx, repo.db, &r, psql.Select(scormCertificationColumns...).From("scorm_certifications").Where(sq.Eq{"id": id})); err != nil {
		return progress.ScormCertification{}, trapNoRowsErr(err, progress.ErrScormCertificationNotFound)
	}
	return r.toScormCertification(), nil
}
