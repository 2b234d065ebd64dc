package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/acadamier/backend/core/course"
	"github.com/acadamier/backend/core/scorm"
)

type scormRepository struct {
	db *DB
}

var _ scorm.Repository = (*scormRepository)(nil)

func NewScormRepository(db *DB) scorm.Repository {
	return &scormRepository{db: db}
}

func (repo *scormRepository) CreatePackage(_ context.Context, pkg scorm.Package) (scorm.Package, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.courses[pkg.CourseID]; !ok {
		return scorm.Package{}, course.ErrNotFound
	}
	repo.db.packages[pkg.ID] = pkg
	return pkg, nil
}

func (repo *scormRepository) GetPackage(_ context.Context, id string) (scorm.Package, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if pkg, ok := repo.db.packages[id]; ok {
		return pkg, nil
	}
	return scorm.Package{}, scorm.ErrNotFound
}

func (repo *scormRepository) ListPackages(_ context.Context, courseID string) ([]scorm.Package, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	pkgs := make([]scorm.Package, 0)
	for _, pkg := range repo.db.packages {
		if pkg.CourseID == courseID {
			pkgs = append(pkgs, pkg)
		}
	}
	sort.Slice(pkgs, func(i, j int) bool { return pkgs[i].CreatedAt.After(pkgs[j].CreatedAt) })
	return pkgs, nil
}

func (repo *scormRepository) UpdatePackage(_ context.Context, pkg scorm.Package) (scorm.Package, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.packages[pkg.ID]; !ok {
		return scorm.Package{}, scorm.ErrNotFound
	}
	repo.db.packages[pkg.ID] = pkg
	return pkg, nil
}

// deletePackage removes a package with its SCOs and their runtime data. db.mu must be held.
func (db *DB) deletePackage(id string) {
	delete(db.packages, id)
	db.deleteScos(id)
	for sid, sp := range db.scormProgress {
		if sp.PackageID == id {
			delete(db.scormProgress, sid)
		}
	}
	for cid, cert := range db.scormCertifications {
		if cert.PackageID == id {
			delete(db.scormCertifications, cid)
		}
	}
}

func (db *DB) deleteScos(packageID string) {
	for sid, sco := range db.scos {
		if sco.PackageID != packageID {
			continue
		}
		delete(db.scos, sid)
		for rid, rd := range db.runtime {
			if rd.ScoID == sid {
				delete(db.runtime, rid)
			}
		}
	}
}

func (repo *scormRepository) ReplaceScos(_ context.Context, packageID string, scos []scorm.Sco) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.packages[packageID]; !ok {
		return scorm.ErrNotFound
	}
	repo.db.deleteScos(packageID)
	for _, sco := range scos {
		sco.PackageID = packageID
		repo.db.scos[sco.ID] = sco
	}
	return nil
}

func (repo *scormRepository) ListScos(_ context.Context, packageID string) ([]scorm.Sco, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	scos := make([]scorm.Sco, 0)
	for _, sco := range repo.db.scos {
		if sco.PackageID == packageID {
			scos = append(scos, sco)
		}
	}
	sort.Slice(scos, func(i, j int) bool { return scos[i].Sequence < scos[j].Sequence })
	return scos, nil
}

func (repo *scormRepository) GetSco(_ context.Context, id string) (scorm.Sco, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if sco, ok := repo.db.scos[id]; ok {
		return sco, nil
	}
	return scorm.Sco{}, scorm.ErrScoNotFound
}

func copyRuntime(rd scorm.RuntimeData) scorm.RuntimeData {
	rd.Data = copyStringMap(rd.Data)
	return rd
}

func (repo *scormRepository) GetOrCreateRuntime(_ context.Context, rd scorm.RuntimeData) (scorm.RuntimeData, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, existing := range repo.db.runtime {
		if existing.UserID == rd.UserID && existing.ScoID == rd.ScoID && existing.Attempt == rd.Attempt {
			return copyRuntime(existing), nil
		}
	}
	if _, ok := repo.db.scos[rd.ScoID]; !ok {
		return scorm.RuntimeData{}, scorm.ErrScoNotFound
	}
	repo.db.runtime[rd.ID] = copyRuntime(rd)
	return copyRuntime(rd), nil
}

func (repo *scormRepository) MergeRuntime(_ context.Context, id string, data map[string]string, updatedAt time.Time) (scorm.RuntimeData, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	rd, ok := repo.db.runtime[id]
	if !ok {
		return scorm.RuntimeData{}, scorm.ErrScoNotFound
	}
	rd = copyRuntime(rd)
	if rd.Data == nil {
		rd.Data = make(map[string]string, len(data))
	}
	for k, v := range data {
		rd.Data[k] = v
	}
	rd.UpdatedAt = updatedAt
	repo.db.runtime[id] = rd
	return copyRuntime(rd), nil
}
