package echoapi

import (
	"bytes"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/acadamier/backend/core/scorm"
	"github.com/acadamier/backend/core/user"
)

type scormApi struct {
	userSvc  user.Service
	access   courseAccess
	svc      scorm.Service
	validate *validator.Validate
}

func registerScormAPI(g *echo.Group, authed echo.MiddlewareFunc, userSvc user.Service, access courseAccess, svc scorm.Service, validate *validator.Validate) {
	api := scormApi{userSvc: userSvc, access: access, svc: svc, validate: validate}

	g.GET("/courses/:id/packages", api.queryPackages, authed)

	sg := g.Group("/scorm", authed)
	sg.POST("/packages", api.upload)
	sg.GET("/packages/:id/scos", api.queryScos)
	sg.GET("/runtime/:id", api.retrieveRuntime)
	sg.POST("/runtime/:id", api.updateRuntime)
	g.GET("/scorm/launch/:id", api.launch, queryTokenMiddleware, authed)
}

func (api *scormApi) upload(ctx echo.Context) error {
	var data scorm.NewPackage
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPackage")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}
	if _, err = api.access.owned(ctx.Request().Context(), usr, data.CourseID); err != nil {
		return errors.Wrap(err, "finding owned course")
	}

	fh, err := ctx.FormFile("file")
	if err != nil {
		return errNoFileProvided
	}
	file, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded package")
	}
	defer func() { _ = file.Close() }()

	pkg, err := api.svc.Upload(ctx.Request().Context(), usr, data, fh.Filename, file)
	if err != nil {
		return errors.Wrap(err, "uploading package")
	}
	return ctx.JSON(http.StatusCreated, pkg)
}

func (api *scormApi) queryPackages(ctx echo.Context) error {
	pkgs, err := api.svc.ListByCourse(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing packages")
	}
	if pkgs == nil {
		pkgs = []scorm.Package{}
	}
	return ctx.JSON(http.StatusOK, pkgs)
}

// viewablePackage loads a package once the context user is allowed into its course.
func (api *scormApi) viewablePackage(ctx echo.Context, usr user.User, id string) (scorm.Package, error) {
	pkg, err := api.svc.GetByID(ctx.Request().Context(), id)
	if err != nil {
		return scorm.Package{}, errors.Wrap(err, "finding package")
	}
	if _, err = api.access.viewable(ctx.Request().Context(), usr, pkg.CourseID); err != nil {
		return scorm.Package{}, err
	}
	return pkg, nil
}

// viewableSco loads the SCO of the `id` path param once the context user is allowed into its course.
func (api *scormApi) viewableSco(ctx echo.Context) (scorm.Sco, user.User, error) {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return scorm.Sco{}, usr, err
	}
	sco, err := api.svc.GetSco(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return scorm.Sco{}, usr, errors.Wrap(err, "finding sco")
	}
	if _, err = api.viewablePackage(ctx, usr, sco.PackageID); err != nil {
		return scorm.Sco{}, usr, err
	}
	return sco, usr, nil
}

func (api *scormApi) queryScos(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}
	pkg, err := api.viewablePackage(ctx, usr, ctx.Param("id"))
	if err != nil {
		return err
	}
	scos, err := api.svc.ListScos(ctx.Request().Context(), pkg)
	if err != nil {
		return errors.Wrap(err, "listing scos")
	}
	if scos == nil {
		scos = []scorm.Sco{}
	}
	return ctx.JSON(http.StatusOK, scos)
}

func (api *scormApi) launch(ctx echo.Context) error {
	sco, _, err := api.viewableSco(ctx)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	runtimeURL := "/v1/scorm/runtime/" + sco.ID
	if err = api.svc.Launch(ctx.Request().Context(), &buf, sco, runtimeURL, getContextToken(ctx)); err != nil {
		return errors.Wrap(err, "rendering launch page")
	}
	return ctx.HTMLBlob(http.StatusOK, buf.Bytes())
}

func (api *scormApi) retrieveRuntime(ctx echo.Context) error {
	sco, usr, err := api.viewableSco(ctx)
	if err != nil {
		return err
	}
	rd, err := api.svc.GetRuntime(ctx.Request().Context(), usr.ID, sco)
	if err != nil {
		return errors.Wrap(err, "finding runtime data")
	}
	return ctx.JSON(http.StatusOK, rd)
}

func (api *scormApi) updateRuntime(ctx echo.Context) error {
	sco, usr, err := api.viewableSco(ctx)
	if err != nil {
		return err
	}

	var data scorm.UpdateRuntime
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateRuntime")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	rd, err := api.svc.UpdateRuntime(ctx.Request().Context(), usr.ID, sco, data)
	if err != nil {
		return errors.Wrap(err, "updating runtime data")
	}
	return ctx.JSON(http.StatusAccepted, rd)
}
