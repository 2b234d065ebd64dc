package inmemdb

import (
	"context"
	"sort"

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

func (repo *progressRepository) ListLessonProgress(_ context.Context, userID string) ([]progress.LessonProgress, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	list := make([]progress.LessonProgress, 0)
	for _, lp := range repo.db.lessonProgress {
		if lp.UserID == userID {
			list = append(list, lp)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].UpdatedAt.After(list[j].UpdatedAt) })
	return list, nil
}

func (repo *progressRepository) GetLessonProgress(_ context.Context, id string) (progress.LessonProgress, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if lp, ok := repo.db.lessonProgress[id]; ok {
		return lp, nil
	}
	return progress.LessonProgress{}, progress.ErrNotFound
}

func (repo *progressRepository) SaveLessonProgress(_ context.Context, lp progress.LessonProgress) (progress.LessonProgress, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, existing := range repo.db.lessonProgress {
		if existing.UserID == lp.UserID && existing.LessonID == lp.LessonID {
			lp.ID = existing.ID
			break
		}
	}
	repo.db.lessonProgress[lp.ID] = lp
	return lp, nil
}

func (repo *progressRepository) CountLessons(_ context.Context, courseID string) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var n int
	for _, lsn := range repo.db.lessons {
		if lsn.CourseID == courseID {
			n++
		}
	}
	return n, nil
}

func (repo *progressRepository) CountCompletedLessons(_ context.Context, userID, courseID string) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var n int
	for _, lp := range repo.db.lessonProgress {
		if lp.UserID == userID && lp.CourseID == courseID && lp.IsCompleted {
			n++
		}
	}
	return n, nil
}

// Courses

func (repo *progressRepository) ListCourseProgress(_ context.Context, userID string) ([]progress.CourseProgress, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	list := make([]progress.CourseProgress, 0)
	for _, cp := range repo.db.courseProgress {
		if cp.UserID == userID {
			list = append(list, cp)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].UpdatedAt.After(list[j].UpdatedAt) })
	return list, nil
}

func (repo *progressRepository) GetCourseProgress(_ context.Context, id string) (progress.CourseProgress, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if cp, ok := repo.db.courseProgress[id]; ok {
		return cp, nil
	}
	return progress.CourseProgress{}, progress.ErrNotFound
}

func (repo *progressRepository) GetCourseProgressByCourse(_ context.Context, userID, courseID string) (progress.CourseProgress, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, cp := range repo.db.courseProgress {
		if cp.UserID == userID && cp.CourseID == courseID {
			return cp, nil
		}
	}
	return progress.CourseProgress{}, progress.ErrNotFound
}

func (repo *progressRepository) SaveCourseProgress(_ context.Context, cp progress.CourseProgress) (progress.CourseProgress, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, existing := range repo.db.courseProgress {
		if existing.UserID == cp.UserID && existing.CourseID == cp.CourseID {
			cp.ID = existing.ID
			break
		}
	}
	repo.db.courseProgress[cp.ID] = cp
	return cp, nil
}

// SCORM

func (repo *progressRepository) ScormRuntime(_ context.Context, userID, packageID string) (int, []progress.ScoRuntime, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	scos := make(map[string]bool)
	for _, sco := range repo.db.scos {
		if sco.PackageID == packageID {
			scos[sco.ID] = true
		}
	}
	latest := make(map[string]int) // sco id: attempt
	runtime := make([]progress.ScoRuntime, 0)
	idx := make(map[string]int)
	for _, rd := range repo.db.runtime {
		if rd.UserID != userID || !scos[rd.ScoID] {
			continue
		}
		if att, ok := latest[rd.ScoID]; ok {
			if rd.Attempt <= att {
				continue
			}
			runtime[idx[rd.ScoID]].Data = copyStringMap(rd.Data)
		} else {
			idx[rd.ScoID] = len(runtime)
			runtime = append(runtime, progress.ScoRuntime{ScoID: rd.ScoID, Data: copyStringMap(rd.Data)})
		}
		latest[rd.ScoID] = rd.Attempt
	}
	return len(scos), runtime, nil
}

func (repo *progressRepository) ListScormProgress(_ context.Context, userID string) ([]progress.ScormProgress, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	list := make([]progress.ScormProgress, 0)
	for _, sp := range repo.db.scormProgress {
		if sp.UserID == userID {
			list = append(list, sp)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].UpdatedAt.After(list[j].UpdatedAt) })
	return list, nil
}

func (repo *progressRepository) GetScormProgress(_ context.Context, id string) (progress.ScormProgress, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if sp, ok := repo.db.scormProgress[id]; ok {
		return sp, nil
	}
	return progress.ScormProgress{}, progress.ErrNotFound
}

func (repo *progressRepository) SaveScormProgress(_ context.Context, sp progress.ScormProgress) (progress.ScormProgress, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, existing := range repo.db.scormProgress {
		if existing.UserID == sp.UserID && existing.PackageID == sp.PackageID {
			sp.ID = existing.ID
			break
		}
	}
	repo.db.scormProgress[sp.ID] = sp
	return sp, nil
}

// Certifications

func (repo *progressRepository) GetOrCreateCertification(_ context.Context, cert progress.Certification) (progress.Certification, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, existing := range repo.db.certifications {
		if existing.UserID == cert.UserID && existing.LessonID == cert.LessonID {
			return existing, nil
		}
	}
	repo.db.certifications[cert.ID] = cert
	return cert, nil
}

func (repo *progressRepository) ListCertifications(_ context.Context, userID string) ([]progress.Certification, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	list := make([]progress.Certification, 0)
	for _, cert := range repo.db.certifications {
		if cert.UserID == userID {
			list = append(list, cert)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].IssuedAt.After(list[j].IssuedAt) })
	return list, nil
}

func (repo *progressRepository) GetCertification(_ context.Context, id string) (progress.Certification, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if cert, ok := repo.db.certifications[id]; ok {
		return cert, nil
	}
	return progress.Certification{}, progress.ErrCertificationNotFound
}

func (repo *progressRepository) GetOrCreateScormCertification(_ context.Context, cert progress.ScormCertification) (progress.ScormCertification, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, existing := range repo.db.scormCertifications {
		if existing.UserID == cert.UserID && existing.PackageID == cert.PackageID {
			return existing, nil
		}
	}
	repo.db.scormCertifications[cert.ID] = cert
	return cert, nil
}

func (repo *progressRepository) ListScormCertifications(_ context.Context, userID string) ([]progress.ScormCertification, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	list := make([]progress.ScormCertification, 0)
	for _, cert := range repo.db.scormCertifications {
		if cert.UserID == userID {
			list = append(list, cert)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].IssuedAt.After(list[j].IssuedAt) })
	return list, nil
}

func (repo *progressRepository) GetScormCertification(_ context.Context, id string) (progress.ScormCertification, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if cert, ok := repo.db.scormCertifications[id]; ok {
		return cert, nil
	}
	return progress.ScormCertification{}, progress.ErrScormCertificationNotFound
}
