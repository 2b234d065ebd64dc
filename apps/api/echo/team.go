package echoapi

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/acadamier/backend/core/team"
	"github.com/acadamier/backend/core/user"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type teamApi struct {
	userSvc  user.Service
	svc      team.Service
	validate *validator.Validate
}

func registerTeamAPI(g *echo.Group, authed echo.MiddlewareFunc, userSvc user.Service, svc team.Service, validate *validator.Validate) {
	api := teamApi{userSvc: userSvc, svc: svc, validate: validate}

	og := g.Group("/teams/organizations", authed)
	og.GET("", api.query)
	og.POST("", api.create)
	og.GET("/:id", api.retrieve)
	og.PUT("/:id", api.update)
	og.DELETE("/:id", api.destroy)
	og.GET("/:id/dashboard", api.dashboard)
	og.GET("/:id/analytics", api.analytics)
	og.GET("/:id/analytics/export", api.exportAnalytics)
	og.POST("/:id/invite", api.invite)
	og.GET("/:id/members", api.queryMembers)
	og.GET("/:id/purchases", api.queryPurchases)

	mg := g.Group("/teams/members", authed)
	mg.POST("/:id/accept", api.accept)
	mg.POST("/:id/revoke", api.revoke)
}

// memberOrg loads the organization of the `id` path param. It is hidden from users who do not belong to it.
func (api *teamApi) memberOrg(ctx echo.Context) (team.Organization, user.User, error) {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return team.Organization{}, usr, err
	}
	org, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return team.Organization{}, usr, errors.Wrap(err, "finding organization")
	}
	ok, err := api.svc.IsMember(ctx.Request().Context(), org, usr)
	if err != nil {
		return team.Organization{}, usr, errors.Wrap(err, "checking membership")
	}
	if !ok && !usr.IsAdmin() {
		return team.Organization{}, usr, team.ErrNotFound
	}
	return org, usr, nil
}

// adminOrg is like memberOrg but only lets the organization admin through.
func (api *teamApi) adminOrg(ctx echo.Context) (team.Organization, user.User, error) {
	org, usr, err := api.memberOrg(ctx)
	if err != nil {
		return org, usr, err
	}
	if !team.IsAdmin(org, usr) && !usr.IsAdmin() {
		return team.Organization{}, usr, errHttpForbidden
	}
	return org, usr, nil
}

func (api *teamApi) query(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}
	orgs, err := api.svc.ListForUser(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "listing organizations")
	}
	if orgs == nil {
		orgs = []team.Organization{}
	}
	return ctx.JSON(http.StatusOK, orgs)
}

func (api *teamApi) create(ctx echo.Context) error {
	var data team.NewOrganization
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewOrganization")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}

	org, err := api.svc.Create(ctx.Request().Context(), usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "creating organization")
	}
	return ctx.JSON(http.StatusCreated, org)
}

func (api *teamApi) retrieve(ctx echo.Context) error {
	org, _, err := api.memberOrg(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, org)
}

func (api *teamApi) update(ctx echo.Context) error {
	org, _, err := api.adminOrg(ctx)
	if err != nil {
		return err
	}

	var data team.NewOrganization
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewOrganization")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	org, err = api.svc.Update(ctx.Request().Context(), org, data)
	if err != nil {
		return errors.Wrap(err, "updating organization")
	}
	return ctx.JSON(http.StatusOK, org)
}

func (api *teamApi) destroy(ctx echo.Context) error {
	org, _, err := api.adminOrg(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), org.ID); err != nil {
		return errors.Wrap(err, "deleting organization")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *teamApi) dashboard(ctx echo.Context) error {
	org, _, err := api.adminOrg(ctx)
	if err != nil {
		return err
	}
	usage, err := api.svc.Dashboard(ctx.Request().Context(), org.ID)
	if err != nil {
		return errors.Wrap(err, "computing seat usage")
	}
	return ctx.JSON(http.StatusOK, usage)
}

func (api *teamApi) analytics(ctx echo.Context) error {
	org, _, err := api.adminOrg(ctx)
	if err != nil {
		return err
	}
	snap, err := api.svc.LatestSnapshot(ctx.Request().Context(), org.ID)
	if err != nil {
		return errors.Wrap(err, "finding latest snapshot")
	}
	return ctx.JSON(http.StatusOK, snap)
}

func (api *teamApi) exportAnalytics(ctx echo.Context) error {
	org, _, err := api.adminOrg(ctx)
	if err != nil {
		return err
	}
	snap, err := api.svc.LatestSnapshot(ctx.Request().Context(), org.ID)
	if err != nil {
		return errors.Wrap(err, "finding latest snapshot")
	}

	var buf bytes.Buffer
	if err = team.ExportSnapshot(snap, &buf); err != nil {
		return errors.Wrap(err, "exporting snapshot")
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="analytics_%s.xlsx"`, snap.SnapshotAt.Format("20060102")))
	return ctx.Blob(http.StatusOK, xlsxContentType, buf.Bytes())
}

func (api *teamApi) invite(ctx echo.Context) error {
	org, usr, err := api.adminOrg(ctx)
	if err != nil {
		return err
	}

	var data team.InviteMembers
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to InviteMembers")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	results, err := api.svc.Invite(ctx.Request().Context(), org, usr, data)
	if err != nil {
		return errors.Wrap(err, "inviting members")
	}
	return ctx.JSON(http.StatusCreated, echo.Map{"invited": results})
}

func (api *teamApi) queryMembers(ctx echo.Context) error {
	org, _, err := api.memberOrg(ctx)
	if err != nil {
		return err
	}
	members, err := api.svc.ListMembers(ctx.Request().Context(), org.ID)
	if err != nil {
		return errors.Wrap(err, "listing members")
	}
	if members == nil {
		members = []team.Member{}
	}
	return ctx.JSON(http.StatusOK, members)
}

func (api *teamApi) queryPurchases(ctx echo.Context) error {
	org, _, err := api.adminOrg(ctx)
	if err != nil {
		return err
	}
	purchases, err := api.svc.ListPurchases(ctx.Request().Context(), org.ID)
	if err != nil {
		return errors.Wrap(err, "listing purchases")
	}
	if purchases == nil {
		purchases = []team.BulkPurchase{}
	}
	return ctx.JSON(http.StatusOK, purchases)
}

// accept lets the invited user join the organization.
func (api *teamApi) accept(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}
	mbr, err := api.svc.GetMember(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding member")
	}
	if mbr.UserID != usr.ID {
		return team.ErrMemberNotFound
	}

	mbr, err = api.svc.Accept(ctx.Request().Context(), mbr)
	if err != nil {
		return errors.Wrap(err, "accepting invitation")
	}
	return ctx.JSON(http.StatusOK, mbr)
}

func (api *teamApi) revoke(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}
	reqCtx := ctx.Request().Context()
	mbr, err := api.svc.GetMember(reqCtx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding member")
	}
	org, err := api.svc.GetByID(reqCtx, mbr.OrganizationID)
	if err != nil {
		return errors.Wrap(err, "finding organization")
	}
	if !team.IsAdmin(org, usr) && !usr.IsAdmin() {
		return errHttpForbidden
	}

	mbr, err = api.svc.Revoke(reqCtx, mbr)
	if err != nil {
		return errors.Wrap(err, "revoking member")
	}
	return ctx.JSON(http.StatusOK, mbr)
}
