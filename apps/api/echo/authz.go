package echoapi

import (
	"io/fs"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	stringadapter "github.com/casbin/casbin/v2/persist/string-adapter"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/acadamier/backend/core/user"
)

const (
	authzModelFile  = "assets/authz/model.conf"
	authzPolicyFile = "assets/authz/policy.csv"

	// every authenticated user holds this subject, whatever their roles
	authzBaseSubject = "user"
)

// NewEnforcer loads the role policies that gate the API routes.
// Ownership and enrollment rules are checked by the handlers.
func NewEnforcer(fsys fs.FS) (*casbin.Enforcer, error) {
	modelText, err := fs.ReadFile(fsys, authzModelFile)
	if err != nil {
		return nil, errors.Wrap(err, "reading authz model")
	}
	policy, err := fs.ReadFile(fsys, authzPolicyFile)
	if err != nil {
		return nil, errors.Wrap(err, "reading authz policy")
	}

	m, err := model.NewModelFromString(string(modelText))
	if err != nil {
		return nil, errors.Wrap(err, "parsing authz model")
	}
	enforcer, err := casbin.NewEnforcer(m, stringadapter.NewAdapter(string(policy)))
	if err != nil {
		return nil, errors.Wrap(err, "creating enforcer")
	}
	return enforcer, nil
}

func allowed(enforcer *casbin.Enforcer, roles []string, path, method string) (bool, error) {
	for _, sub := range append([]string{authzBaseSubject}, roles...) {
		ok, err := enforcer.Enforce(sub, path, method)
		if err != nil {
			return false, errors.Wrap(err, "enforcing policy")
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// authzMiddleware lets the request through when one of the user's current roles may call the route.
// Roles are read from the stored user, not the token, so demotions and deactivations apply at once.
func authzMiddleware(enforcer *casbin.Enforcer, userSvc user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx, userSvc)
			if err != nil {
				return err
			}
			if !usr.IsActive {
				return errAccountDeactivated
			}
			ok, err := allowed(enforcer, usr.Roles, ctx.Request().URL.Path, ctx.Request().Method)
			if err != nil {
				return err
			}
			if !ok {
				return errHttpForbidden
			}
			return next(ctx)
		}
	}
}
