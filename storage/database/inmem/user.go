package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/acadamier/backend/core"
	"github.com/acadamier/backend/core/user"
)

var userOrderings = map[string]compareFunc[user.User]{
	"name":       func(a, b user.User) int { return compareStrings(a.Name, b.Name) },
	"username":   func(a, b user.User) int { return compareStrings(a.Username, b.Username) },
	"email":      func(a, b user.User) int { return compareStrings(a.Email, b.Email) },
	"created_at": func(a, b user.User) int { return compareTimes(a.CreatedAt, b.CreatedAt) },
	"last_login": func(a, b user.User) int { return compareTimes(a.LastLogin, b.LastLogin) },
}

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

func copyUser(usr user.User) user.User {
	usr.Roles = copyStrings(usr.Roles)
	return usr
}

func (repo *userRepository) CheckUsernameUniqueness(_ context.Context, username, email string, excludedUsers ...user.User) error {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	exclUsrsLen := len(excludedUsers)
	if exclUsrsLen > 1 {
		sort.Slice(excludedUsers, func(i, j int) bool { return excludedUsers[i].ID < excludedUsers[j].ID })
	}

	for _, usr := range repo.db.users {
		if username != "" && usr.Username == username && !isExcluded(usr, excludedUsers, exclUsrsLen) {
			return user.ErrUsernameExists
		}
		if usr.Email == email && !isExcluded(usr, excludedUsers, exclUsrsLen) {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.db.users[usr.ID] = copyUser(usr)
	return usr, nil
}

func (repo *userRepository) QueryUsers(_ context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	users := make([]user.User, 0, len(repo.db.users))
	for _, usr := range repo.db.users {
		if filter != nil && !matchUser(usr, filter) {
			continue
		}
		users = append(users, copyUser(usr))
	}
	orderBy(users, ordering, userOrderings, core.DBOrdering{Field: "created_at"})
	return users, nil
}

func matchUser(usr user.User, filter *user.QueryFilter) bool {
	if filter.Search != "" {
		search := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(usr.Name), search) &&
			!strings.Contains(strings.ToLower(usr.Username), search) &&
			!strings.Contains(strings.ToLower(usr.Email), search) {
			return false
		}
	}
	if filter.Roles != nil && !hasAnyRole(usr, filter.Roles) {
		return false
	}
	if filter.IsActive != nil && usr.IsActive != *filter.IsActive {
		return false
	}
	if !filter.CreatedFrom.IsZero() && usr.CreatedAt.Before(filter.CreatedFrom) {
		return false
	}
	if !filter.CreatedTo.IsZero() && usr.CreatedAt.After(filter.CreatedTo) {
		return false
	}
	return true
}

func hasAnyRole(usr user.User, roles []string) bool {
	for _, role := range roles {
		if usr.RoleStartsWith(role) {
			return true
		}
	}
	return false
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter) (user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if filter.ID != "" {
		if usr, ok := repo.db.users[filter.ID]; ok {
			return copyUser(usr), nil
		}
		return user.User{}, user.ErrNotFound
	}
	for _, usr := range repo.db.users {
		switch {
		case filter.Username != "" && usr.Username == filter.Username,
			filter.Email != "" && usr.Email == filter.Email,
			filter.UsernameOrEmail != "" && (usr.Username == filter.UsernameOrEmail || usr.Email == filter.UsernameOrEmail):
			return copyUser(usr), nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUsersByEmail(_ context.Context, emails []string) ([]user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	wanted := make(map[string]bool, len(emails))
	for _, e := range emails {
		wanted[e] = true
	}
	users := make([]user.User, 0, len(emails))
	for _, usr := range repo.db.users {
		if wanted[usr.Email] {
			users = append(users, copyUser(usr))
		}
	}
	orderBy(users, nil, userOrderings, core.DBOrdering{Field: "email", Ascending: true})
	return users, nil
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.users[usr.ID]; !ok {
		return user.User{}, user.ErrNotFound
	}
	repo.db.users[usr.ID] = copyUser(usr)
	return usr, nil
}

func (repo *userRepository) DeleteUsersByID(_ context.Context, ids []string) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	var n int
	for _, id := range ids {
		if _, ok := repo.db.users[id]; ok {
			delete(repo.db.users, id)
			n++
		}
	}
	return n, nil
}

func (repo *userRepository) RevokeToken(_ context.Context, jti string, expiresAt time.Time) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.db.revokedTokens[jti] = expiresAt
	return nil
}

func (repo *userRepository) IsTokenRevoked(_ context.Context, jti string) (bool, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	_, ok := repo.db.revokedTokens[jti]
	return ok, nil
}

func isExcluded(usr user.User, excludedUsers []user.User, n int) bool {
	if n <= 0 {
		return false
	}
	idx := sort.Search(n, func(i int) bool { return excludedUsers[i].ID >= usr.ID })
	return idx < n && excludedUsers[idx].ID == usr.ID
}
