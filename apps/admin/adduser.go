package main

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"

	"github.com/acadamier/backend/core"
	"github.com/acadamier/backend/core/user"
)

// addUser updates or creates a user.User with the given role.
func (cli *commandLine) addUser(uname, email, pwd, role string) error {
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)
	if !slices.Contains(user.AllRoles, role) {
		return fmt.Errorf("%q: no such role", role)
	}

	now := time.Now().UTC()
	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Email: email})
	found := err == nil
	switch {
	case found:
	case pkgerrors.Cause(err) == user.ErrNotFound:
		usr = user.User{ID: uuid.NewString(), Email: email, CreatedAt: now}
	default:
		return err
	}

	usr.Username = uname
	usr.Roles = []string{role}
	usr.IsActive = true
	usr.UpdatedAt = now
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}

	if found {
		_, err = cli.usrRepo.UpdateUser(ctx, usr)
	} else {
		_, err = cli.usrRepo.CreateUser(ctx, usr)
	}
	return err
}
