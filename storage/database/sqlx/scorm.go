package sqlxrepos

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	pkgerrors "github.com/pkg/errors"

	"github.com/acadamier/backend/core/scorm"
)

type scormRepository struct {
	db *DB
}

var _ scorm.Repository = (*scormRepository)(nil)

func NewScormRepository(db *DB) scorm.Repository {
	return &scormRepository{db: db}
}

// Packages

type packageRow struct {
	ID           string    `db:"id"`
	Title        string    `db:"title"`
	CourseID     string    `db:"course_id"`
	File         string    `db:"file"`
	Version      string    `db:"version"`
	UploadedByID string    `db:"uploaded_by_id"`
	Status       string    `db:"status"`
	Error        string    `db:"error"`
	CreatedAt    time.Time `db:"created_at"`
}

var packageColumns = []string{"id", "title", "course_id", "file", "version", "uploaded_by_id", "status", "error", "created_at"}

func (r packageRow) toPackage() scorm.Package {
	pkg := scorm.Package(r)
	pkg.CreatedAt = r.CreatedAt.UTC()
	return pkg
}

func (repo *scormRepository) CreatePackage(ctx context.Context, pkg scorm.Package) (scorm.Package, error) {
	b := psql.Insert("scorm_packages").Columns(packageColumns...).Values(
		pkg.ID, pkg.Title, pkg.CourseID, pkg.File, pkg.Version, pkg.UploadedByID, pkg.Status, pkg.Error, pkg.CreatedAt,
	)
	if _, err := exec(ctx, repo.db, b); err != nil {
		return scorm.Package{}, err
	}
	return pkg, nil
}

func (repo *scormRepository) GetPackage(ctx context.Context, id string) (scorm.Package, error) {
	var r packageRow
	if err := get(ctx, repo.db, &r, psql.Select(packageColumns...).From("scorm_packages").Where(sq.Eq{"id": id})); err != nil {
		return scorm.Package{}, trapNoRowsErr(err, scorm.ErrNotFound)
	}
	return r.toPackage(), nil
}

func (repo *scormRepository) ListPackages(ctx context.Context, courseID string) ([]scorm.Package, error) {
	var rows []packageRow
	b := psql.Select(packageColumns...).From("scorm_packages").Where(sq.Eq{"course_id": courseID}).OrderBy("created_at DESC")
	if err := selectRows(ctx, repo.db, &rows, b); err != nil {
		return nil, err
	}
	pkgs := make([]scorm.Package, len(rows))
	for i, r := range rows {
		pkgs[i] = r.toPackage()
	}
	return pkgs, nil
}

func (repo *scormRepository) UpdatePackage(ctx context.Context, pkg scorm.Package) (scorm.Package, error) {
	b := psql.Update("scorm_packages").SetMap(map[string]interface{}{
		"title":   pkg.Title,
		"file":    pkg.File,
		"version": pkg.Version,
		"status":  pkg.Status,
		"error":   pkg.Error,
	}).Where(sq.Eq{"id": pkg.ID})
	if err := execOne(ctx, repo.db, b, scorm.ErrNotFound); err != nil {
		return scorm.Package{}, err
	}
	return pkg, nil
}

// SCOs

type scoRow struct {
	ID         string `db:"id"`
	PackageID  string `db:"package_id"`
	Identifier string `db:"identifier"`
	LaunchURL  string `db:"launch_url"`
	Title      string `db:"title"`
	Sequence   int    `db:"sequence"`
}

var scoColumns = []string{"id", "package_id", "identifier", "launch_url", "title", "sequence"}

func (repo *scormRepository) ReplaceScos(ctx context.Context, packageID string, scos []scorm.Sco) error {
	return withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		if _, err := exec(ctx, tx, psql.Delete("scos").Where(sq.Eq{"package_id": packageID})); err != nil {
			return pkgerrors.Wrap(err, "deleting SCOs")
		}
		if len(scos) == 0 {
			return nil
		}
		b := psql.Insert("scos").Columns(scoColumns...)
		for _, sco := range scos {
			b = b.Values(sco.ID, packageID, sco.Identifier, sco.LaunchURL, sco.Title, sco.Sequence)
		}
		_, err := exec(ctx, tx, b)
		return pkgerrors.Wrap(err, "inserting SCOs")
	})
}

func (repo *scormRepository) ListScos(ctx context.Context, packageID string) ([]scorm.Sco, error) {
	var rows []scoRow
	b := psql.Select(scoColumns...).From("scos").Where(sq.Eq{"package_id": packageID}).OrderBy("sequence")
	if err := selectRows(ctx, repo.db, &rows, b); err != nil {
		return nil, err
	}
	scos := make([]scorm.Sco, len(rows))
	for i, r := range rows {
		scos[i] = scorm.Sco(r)
	}
	return scos, nil
}

func (repo *scormRepository) GetSco(ctx context.Context, id string) (scorm.Sco, error) {
	var r scoRow
	if err := get(ctx, repo.db, &r, psql.Select(scoColumns...).From("scos").Where(sq.Eq{"id": id})); err != nil {
		return scorm.Sco{}, trapNoRowsErr(err, scorm.ErrScoNotFound)
	}
	return scorm.Sco(r), nil
}

// Runtime data

type runtimeRow struct {
	ID        string         `db:"id"`
	UserID    string         `db:"user_id"`
	ScoID     string         `db:"sco_id"`
	Attempt   int            `db:"attempt"`
	Data      types.JSONText `db:"data"`
	UpdatedAt time.Time      `db:"updated_at"`
}

var runtimeColumns = []string{"id", "user_id", "sco_id", "attempt", "data", "updated_at"}

func (r runtimeRow) toRuntimeData() (scorm.RuntimeData, error) {
	rd := scorm.RuntimeData{ID: r.ID, UserID: r.UserID, ScoID: r.ScoID, Attempt: r.Attempt, UpdatedAt: r.UpdatedAt.UTC()}
	if err := r.Data.Unmarshal(&rd.Data); err != nil {
		return scorm.RuntimeData{}, pkgerrors.Wrap(err, "decoding runtime data")
	}
	if rd.Data == nil {
		rd.Data = map[string]string{}
	}
	return rd, nil
}

func encodeRuntime(data map[string]string) (types.JSONText, error) {
	if data == nil {
		data = map[string]string{}
	}
	raw, err := json.Marshal(data)
	return types.JSONText(raw), pkgerrors.Wrap(err, "encoding runtime data")
}

func (repo *scormRepository) GetOrCreateRuntime(ctx context.Context, rd scorm.RuntimeData) (scorm.RuntimeData, error) {
	data, err := encodeRuntime(rd.Data)
	if err != nil {
		return scorm.RuntimeData{}, err
	}
	b := psql.Insert("scorm_runtime_data").Columns(runtimeColumns...).
		Values(rd.ID, rd.UserID, rd.ScoID, rd.Attempt, data, rd.UpdatedAt).
		Suffix("ON CONFLICT (user_id, sco_id, attempt) DO NOTHING")
	if _, err = exec(ctx, repo.db, b); err != nil {
		return scorm.RuntimeData{}, err
	}

	var r runtimeRow
	q := psql.Select(runtimeColumns...).From("scorm_runtime_data").
		Where(sq.Eq{"user_id": rd.UserID, "sco_id": rd.ScoID, "attempt": rd.Attempt})
	if err = get(ctx, repo.db, &r, q); err != nil {
		return scorm.RuntimeData{}, trapNoRowsErr(err, scorm.ErrScoNotFound)
	}
	return r.toRuntimeData()
}

func (repo *scormRepository) MergeRuntime(ctx context.Context, id string, data map[string]string, updatedAt time.Time) (scorm.RuntimeData, error) {
	patch, err := encodeRuntime(data)
	if err != nil {
		return scorm.RuntimeData{}, err
	}
	var r runtimeRow
	b := psql.Update("scorm_runtime_data").
		Set("data", sq.Expr("data || ?::jsonb", string(patch))).
		Set("updated_at", updatedAt).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING " + strings.Join(runtimeColumns, ", "))
	if err = get(ctx, repo.db, &r, b); err != nil {
		return scorm.RuntimeData{}, trapNoRowsErr(err, scorm.ErrScoNotFound)
	}
	return r.toRuntimeData()
}
