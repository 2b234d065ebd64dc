package sqlxrepos

import (
	"context"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"github.com/volatiletech/null/v8"

	"github.com/acadamier/backend/core"
	"github.com/acadamier/backend/core/user"
)

var userColumns = []string{"id", "name", "username", "email", "bio", "is_active", "roles", "password_hash", "created_at", "updated_at", "last_login"}

type userRow struct {
	ID           string         `db:"id"`
	Name         string         `db:"name"`
	Username     null.String    `db:"username"`
	Email        string         `db:"email"`
	Bio          string         `db:"bio"`
	IsActive     bool           `db:"is_active"`
	Roles        pq.StringArray `db:"roles"`
	PasswordHash []byte         `db:"password_hash"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	LastLogin    null.Time      `db:"last_login"`
}

func (r userRow) toUser() user.User {
	usr := user.User{
		ID:           r.ID,
		Name:         r.Name,
		Username:     r.Username.String,
		Email:        r.Email,
		Bio:          r.Bio,
		IsActive:     r.IsActive,
		Roles:        []string(r.Roles),
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
	if r.LastLogin.Valid {
		usr.LastLogin = r.LastLogin.Time.UTC()
	}
	return usr
}

func lastLogin(usr user.User) null.Time {
	return null.NewTime(usr.LastLogin, !usr.LastLogin.IsZero())
}

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	match := sq.Or{sq.Eq{"email": email}}
	if username != "" {
		match = append(match, sq.Eq{"username": username})
	}
	cond := sq.And{match}
	if len(excludedUsers) > 0 {
		ids := make([]string, len(excludedUsers))
		for i, u := range excludedUsers {
			ids[i] = u.ID
		}
		cond = append(cond, sq.NotEq{"id": ids})
	}

	var rows []userRow
	if err := selectRows(ctx, repo.db, &rows, psql.Select(userColumns...).From("users").Where(cond)); err != nil {
		return err
	}
	for _, r := range rows {
		if username != "" && r.Username.String == username {
			return user.ErrUsernameExists
		}
	}
	if len(rows) > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	b := psql.Insert("users").Columns(userColumns...).Values(
		usr.ID, usr.Name, null.NewString(usr.Username, usr.Username != ""), usr.Email, usr.Bio, usr.IsActive,
		pq.Array(emptyIfNil(usr.Roles)), usr.PasswordHash, usr.CreatedAt, usr.UpdatedAt, lastLogin(usr),
	)
	if _, err := exec(ctx, repo.db, b); err != nil {
		if constraint, ok := uniqueViolation(err); ok {
			if strings.Contains(constraint, "username") {
				return user.User{}, user.ErrUsernameExists
			}
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, err
	}
	return usr, nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	b := psql.Select(userColumns...).From("users")
	if filter != nil {
		if filter.Search != "" {
			like := "%" + filter.Search + "%"
			b = b.Where(sq.Or{sq.ILike{"name": like}, sq.ILike{"username": like}, sq.ILike{"email": like}})
		}
		if filter.Roles != nil {
			roles := sq.Or{}
			for _, role := range filter.Roles {
				roles = append(roles, sq.Expr("EXISTS (SELECT 1 FROM unnest(roles) r WHERE r LIKE ?)", role+"%"))
			}
			b = b.Where(roles)
		}
		if filter.IsActive != nil {
			b = b.Where(sq.Eq{"is_active": *filter.IsActive})
		}
		if !filter.CreatedFrom.IsZero() {
			b = b.Where(sq.GtOrEq{"created_at": filter.CreatedFrom})
		}
		if !filter.CreatedTo.IsZero() {
			b = b.Where(sq.LtOrEq{"created_at": filter.CreatedTo})
		}
	}
	b = orderBy(b, ordering, "created_at DESC")

	var rows []userRow
	if err := selectRows(ctx, repo.db, &rows, b); err != nil {
		return nil, err
	}
	users := make([]user.User, len(rows))
	for i, r := range rows {
		users[i] = r.toUser()
	}
	return users, nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	b := psql.Select(userColumns...).From("users")
	switch {
	case filter.ID != "":
		b = b.Where(sq.Eq{"id": filter.ID})
	case filter.Username != "":
		b = b.Where(sq.Eq{"username": filter.Username})
	case filter.Email != "":
		b = b.Where(sq.Eq{"email": filter.Email})
	case filter.UsernameOrEmail != "":
		b = b.Where(sq.Or{sq.Eq{"username": filter.UsernameOrEmail}, sq.Eq{"email": filter.UsernameOrEmail}})
	default:
		return user.User{}, user.ErrNotFound
	}

	var r userRow
	if err := get(ctx, repo.db, &r, b.Limit(1)); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound)
	}
	return r.toUser(), nil
}

func (repo *userRepository) GetUsersByEmail(ctx context.Context, emails []string) ([]user.User, error) {
	if len(emails) == 0 {
		return []user.User{}, nil
	}
	var rows []userRow
	b := psql.Select(userColumns...).From("users").Where(sq.Eq{"email": emails}).OrderBy("email")
	if err := selectRows(ctx, repo.db, &rows, b); err != nil {
		return nil, err
	}
	users := make([]user.User, len(rows))
	for i, r := range rows {
		users[i] = r.toUser()
	}
	return users, nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	b := psql.Update("users").SetMap(map[string]interface{}{
		"name":          usr.Name,
		"username":      null.NewString(usr.Username, usr.Username != ""),
		"email":         usr.Email,
		"bio":           usr.Bio,
		"is_active":     usr.IsActive,
		"roles":         pq.Array(emptyIfNil(usr.Roles)),
		"password_hash": usr.PasswordHash,
		"updated_at":    usr.UpdatedAt,
		"last_login":    lastLogin(usr),
	}).Where(sq.Eq{"id": usr.ID})
	if err := execOne(ctx, repo.db, b, user.ErrNotFound); err != nil {
		if constraint, ok := uniqueViolation(err); ok {
			if strings.Contains(constraint, "username") {
				return user.User{}, user.ErrUsernameExists
			}
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, err
	}
	return usr, nil
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	n, err := exec(ctx, repo.db, psql.Delete("users").Where(sq.Eq{"id": ids}))
	return int(n), err
}

func (repo *userRepository) RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error {
	b := psql.Insert("revoked_tokens").Columns("jti", "expires_at").Values(jti, expiresAt).
		Suffix("ON CONFLICT (jti) DO NOTHING")
	_, err := exec(ctx, repo.db, b)
	return err
}

func (repo *userRepository) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var exists bool
	b := psql.Select().Column(sq.Expr("EXISTS (SELECT 1 FROM revoked_tokens WHERE jti = ?)", jti))
	if err := get(ctx, repo.db, &exists, b); err != nil {
		return false, err
	}
	return exists, nil
}

// orderBy expects orderings already cleaned against the allowed fields.
func orderBy(b sq.SelectBuilder, ordering []core.DBOrdering, def string) sq.SelectBuilder {
	if len(ordering) == 0 {
		return b.OrderBy(def)
	}
	clauses := make([]string, len(ordering))
	for i, ord := range ordering {
		clauses[i] = ord.String()
	}
	return b.OrderBy(clauses...)
}
