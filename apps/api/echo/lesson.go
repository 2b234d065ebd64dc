package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/acadamier/backend/core/course"
	"github.com/acadamier/backend/core/user"
)

var errNoFileProvided = echo.NewHTTPError(http.StatusBadRequest, "No file provided")

type lessonApi struct {
	userSvc  user.Service
	access   courseAccess
	validate *validator.Validate
}

func registerLessonAPI(g *echo.Group, authed echo.MiddlewareFunc, userSvc user.Service, access courseAccess, validate *validator.Validate) {
	api := lessonApi{userSvc: userSvc, access: access, validate: validate}

	mg := g.Group("/modules", authed)
	mg.GET("", api.queryModules)
	mg.POST("", api.createModule)
	mg.GET("/:id", api.retrieveModule)
	mg.PUT("/:id", api.updateModule)
	mg.PATCH("/:id", api.updateModule)
	mg.DELETE("/:id", api.destroyModule)

	lg := g.Group("/lessons", authed)
	lg.GET("", api.queryLessons)
	lg.POST("", api.createLesson)
	lg.GET("/:id", api.retrieveLesson)
	lg.PUT("/:id", api.updateLesson)
	lg.PATCH("/:id", api.updateLesson)
	lg.DELETE("/:id", api.destroyLesson)
	lg.POST("/:id/upload_video", api.uploadVideo)
}

// requireOwner fails with 403 unless the context user authors the course.
func (api *lessonApi) requireOwner(ctx echo.Context, courseID string) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}
	crs, err := api.access.courseSvc.GetByID(ctx.Request().Context(), courseID)
	if err != nil {
		return errors.Wrap(err, "finding course")
	}
	if !isCourseOwner(usr, crs) {
		return errHttpForbidden
	}
	return nil
}

// Modules

func (api *lessonApi) queryModules(ctx echo.Context) error {
	courseID, err := requiredQuery(ctx, "course_id")
	if err != nil {
		return err
	}
	mods, err := api.access.courseSvc.ListModules(ctx.Request().Context(), courseID)
	if err != nil {
		return errors.Wrap(err, "listing modules")
	}
	if mods == nil {
		mods = []course.Module{}
	}
	return ctx.JSON(http.StatusOK, mods)
}

func (api *lessonApi) retrieveModule(ctx echo.Context) error {
	mod, err := api.access.courseSvc.GetModule(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding module")
	}
	return ctx.JSON(http.StatusOK, mod)
}

func (api *lessonApi) createModule(ctx echo.Context) error {
	var data course.NewModule
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewModule")
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

	mod, err := api.access.courseSvc.CreateModule(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating module")
	}
	return ctx.JSON(http.StatusCreated, mod)
}

func (api *lessonApi) updateModule(ctx echo.Context) error {
	mod, err := api.access.courseSvc.GetModule(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding module")
	}
	if err = api.requireOwner(ctx, mod.CourseID); err != nil {
		return err
	}

	var data course.UpdateModule
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateModule")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	mod, err = api.access.courseSvc.UpdateModule(ctx.Request().Context(), mod, data)
	if err != nil {
		return errors.Wrap(err, "updating module")
	}
	return ctx.JSON(http.StatusOK, mod)
}

func (api *lessonApi) destroyModule(ctx echo.Context) error {
	mod, err := api.access.courseSvc.GetModule(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding module")
	}
	if err = api.requireOwner(ctx, mod.CourseID); err != nil {
		return err
	}
	if err = api.access.courseSvc.DeleteModule(ctx.Request().Context(), mod.ID); err != nil {
		return errors.Wrap(err, "deleting module")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Lessons

func (api *lessonApi) queryLessons(ctx echo.Context) error {
	courseID, err := requiredQuery(ctx, "course_id")
	if err != nil {
		return err
	}
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}
	if _, err = api.access.viewable(ctx.Request().Context(), usr, courseID); err != nil {
		return err
	}

	lessons, err := api.access.courseSvc.ListLessons(ctx.Request().Context(), courseID)
	if err != nil {
		return errors.Wrap(err, "listing lessons")
	}
	if lessons == nil {
		lessons = []course.Lesson{}
	}
	return ctx.JSON(http.StatusOK, lessons)
}

func (api *lessonApi) retrieveLesson(ctx echo.Context) error {
	lsn, err := api.access.courseSvc.GetLesson(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding lesson")
	}
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}
	if _, err = api.access.viewable(ctx.Request().Context(), usr, lsn.CourseID); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, lsn)
}

func (api *lessonApi) createLesson(ctx echo.Context) error {
	var data course.NewLesson
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewLesson")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	if data.CourseID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "course_id is required.")
	}
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}
	crs, err := api.access.owned(ctx.Request().Context(), usr, data.CourseID)
	if err != nil {
		return errors.Wrap(err, "finding owned course")
	}

	lsn, err := api.access.courseSvc.CreateLesson(ctx.Request().Context(), crs, data)
	if err != nil {
		return errors.Wrap(err, "creating lesson")
	}
	return ctx.JSON(http.StatusCreated, lsn)
}

func (api *lessonApi) ownedLesson(ctx echo.Context) (course.Lesson, error) {
	lsn, err := api.access.courseSvc.GetLesson(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return course.Lesson{}, errors.Wrap(err, "finding lesson")
	}
	if err = api.requireOwner(ctx, lsn.CourseID); err != nil {
		return course.Lesson{}, err
	}
	return lsn, nil
}

func (api *lessonApi) updateLesson(ctx echo.Context) error {
	lsn, err := api.ownedLesson(ctx)
	if err != nil {
		return err
	}

	var data course.UpdateLesson
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateLesson")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	lsn, err = api.access.courseSvc.UpdateLesson(ctx.Request().Context(), lsn, data)
	if err != nil {
		return errors.Wrap(err, "updating lesson")
	}
	return ctx.JSON(http.StatusOK, lsn)
}

func (api *lessonApi) destroyLesson(ctx echo.Context) error {
	lsn, err := api.ownedLesson(ctx)
	if err != nil {
		return err
	}
	if err = api.access.courseSvc.DeleteLesson(ctx.Request().Context(), lsn.ID); err != nil {
		return errors.Wrap(err, "deleting lesson")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *lessonApi) uploadVideo(ctx echo.Context) error {
	lsn, err := api.ownedLesson(ctx)
	if err != nil {
		return err
	}

	fh, err := ctx.FormFile("video")
	if err != nil {
		return errNoFileProvided
	}
	file, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded video")
	}
	defer func() { _ = file.Close() }()

	lsn, err = api.access.courseSvc.UploadVideo(ctx.Request().Context(), lsn, fh.Filename, file)
	if err != nil {
		return errors.Wrap(err, "uploading video")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"video_url": lsn.VideoURL})
}
