package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/acadamier/backend/core/course"
)

type catalogApi struct {
	svc      course.Service
	validate *validator.Validate
}

func registerCatalogAPI(g *echo.Group, authed echo.MiddlewareFunc, svc course.Service, validate *validator.Validate) {
	api := catalogApi{svc: svc, validate: validate}

	cg := g.Group("/categories", authed)
	cg.GET("", api.queryCategories)
	cg.POST("", api.createCategory)
	cg.GET("/:id", api.retrieveCategory)
	cg.PUT("/:id", api.updateCategory)
	cg.DELETE("/:id", api.destroyCategory)

	tg := g.Group("/tags", authed)
	tg.GET("", api.queryTags)
	tg.POST("", api.createTag)
}

func (api *catalogApi) queryCategories(ctx echo.Context) error {
	cats, err := api.svc.QueryCategories(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying categories")
	}
	if cats == nil {
		cats = []course.Category{}
	}
	return ctx.JSON(http.StatusOK, cats)
}

func (api *catalogApi) createCategory(ctx echo.Context) error {
	var data course.NewCategory
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCategory")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	cat, err := api.svc.CreateCategory(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating category")
	}
	return ctx.JSON(http.StatusCreated, cat)
}

func (api *catalogApi) retrieveCategory(ctx echo.Context) error {
	cat, err := api.svc.GetCategory(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding category")
	}
	return ctx.JSON(http.StatusOK, cat)
}

func (api *catalogApi) updateCategory(ctx echo.Context) error {
	cat, err := api.svc.GetCategory(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding category")
	}

	var data course.NewCategory
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCategory")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	cat, err = api.svc.UpdateCategory(ctx.Request().Context(), cat, data)
	if err != nil {
		return errors.Wrap(err, "updating category")
	}
	return ctx.JSON(http.StatusOK, cat)
}

func (api *catalogApi) destroyCategory(ctx echo.Context) error {
	if err := api.svc.DeleteCategory(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting category")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *catalogApi) queryTags(ctx echo.Context) error {
	tags, err := api.svc.QueryTags(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying tags")
	}
	if tags == nil {
		tags = []course.Tag{}
	}
	return ctx.JSON(http.StatusOK, tags)
}

func (api *catalogApi) createTag(ctx echo.Context) error {
	var data course.NewTag
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTag")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	tag, err := api.svc.CreateTag(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating tag")
	}
	return ctx.JSON(http.StatusCreated, tag)
}
