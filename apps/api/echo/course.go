package echoapi

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/acadamier/backend/core/course"
	"github.com/acadamier/backend/core/user"
)

type courseApi struct {
	userSvc  user.Service
	access   courseAccess
	validate *validator.Validate
}

func registerCourseAPI(g *echo.Group, authed echo.MiddlewareFunc, userSvc user.Service, access courseAccess, validate *validator.Validate) {
	api := courseApi{userSvc: userSvc, access: access, validate: validate}

	cg := g.Group("/courses", authed)
	cg.GET("", api.query)
	cg.POST("", api.create)
	cg.GET("/:id", api.retrieve)
	cg.PUT("/:id", api.update)
	cg.PATCH("/:id", api.update)
	cg.DELETE("/:id", api.destroy)
}

type courseDetail struct {
	course.Course
	EffectivePrice decimal.Decimal `json:"effective_price"`
}

func (api *courseApi) query(ctx echo.Context) error {
	filter := new(course.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []course.Course{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	courses, err := api.access.courseSvc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	if courses == nil {
		courses = []course.Course{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *courseApi) retrieve(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	crs, err := api.access.courseSvc.GetByID(reqCtx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding course")
	}
	price, err := api.access.courseSvc.EffectivePrice(reqCtx, crs, time.Now())
	if err != nil {
		return errors.Wrap(err, "computing effective price")
	}
	return ctx.JSON(http.StatusOK, courseDetail{Course: crs, EffectivePrice: price})
}

func (api *courseApi) create(ctx echo.Context) error {
	var data course.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}

	crs, err := api.access.courseSvc.Create(ctx.Request().Context(), usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, crs)
}

// ownedCourse loads the course of the `id` path param. Courses of other instructors are forbidden.
func (api *courseApi) ownedCourse(ctx echo.Context) (course.Course, error) {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return course.Course{}, err
	}
	crs, err := api.access.courseSvc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return course.Course{}, errors.Wrap(err, "finding course")
	}
	if !isCourseOwner(usr, crs) {
		return course.Course{}, errHttpForbidden
	}
	return crs, nil
}

func (api *courseApi) update(ctx echo.Context) error {
	crs, err := api.ownedCourse(ctx)
	if err != nil {
		return err
	}

	var data course.UpdateCourse
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCourse")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	crs, err = api.access.courseSvc.Update(ctx.Request().Context(), crs, data)
	if err != nil {
		return errors.Wrap(err, "updating course")
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *courseApi) destroy(ctx echo.Context) error {
	crs, err := api.ownedCourse(ctx)
	if err != nil {
		return err
	}
	if err = api.access.courseSvc.Delete(ctx.Request().Context(), crs.ID); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return ctx.NoContent(http.StatusNoContent)
}
