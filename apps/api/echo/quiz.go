package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/acadamier/backend/core/course"
	"github.com/acadamier/backend/core/quiz"
	"github.com/acadamier/backend/core/user"
)

type quizApi struct {
	userSvc  user.Service
	access   courseAccess
	svc      quiz.Service
	validate *validator.Validate
}

func registerQuizAPI(g *echo.Group, authed echo.MiddlewareFunc, userSvc user.Service, access courseAccess, svc quiz.Service, validate *validator.Validate) {
	api := quizApi{userSvc: userSvc, access: access, svc: svc, validate: validate}

	qg := g.Group("/quizzes", authed)
	qg.GET("", api.query)
	qg.POST("", api.create)
	qg.GET("/:id", api.retrieve)
	qg.PUT("/:id", api.update)
	qg.DELETE("/:id", api.destroy)
	qg.POST("/:id/submit", api.submit)
}

// lessonCourse returns the course owning the lesson, once usr is allowed to view its content.
func (api *quizApi) lessonCourse(ctx echo.Context, usr user.User, lessonID string) (course.Course, error) {
	lsn, err := api.access.courseSvc.GetLesson(ctx.Request().Context(), lessonID)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "finding lesson")
	}
	return api.access.viewable(ctx.Request().Context(), usr, lsn.CourseID)
}

func (api *quizApi) query(ctx echo.Context) error {
	lessonID, err := requiredQuery(ctx, "lesson_id")
	if err != nil {
		return err
	}
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}
	crs, err := api.lessonCourse(ctx, usr, lessonID)
	if err != nil {
		return err
	}

	quizzes, err := api.svc.ListByLesson(ctx.Request().Context(), lessonID)
	if err != nil {
		return errors.Wrap(err, "listing quizzes")
	}
	owner := isCourseOwner(usr, crs)
	res := make([]quiz.Quiz, len(quizzes))
	for i, qz := range quizzes {
		if !owner {
			qz = qz.WithoutAnswers()
		}
		res[i] = qz
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *quizApi) retrieve(ctx echo.Context) error {
	qz, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding quiz")
	}
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}
	crs, err := api.lessonCourse(ctx, usr, qz.LessonID)
	if err != nil {
		return err
	}
	if !isCourseOwner(usr, crs) {
		qz = qz.WithoutAnswers()
	}
	return ctx.JSON(http.StatusOK, qz)
}

func (api *quizApi) create(ctx echo.Context) error {
	var data quiz.NewQuiz
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewQuiz")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}
	lsn, err := api.access.courseSvc.GetLesson(ctx.Request().Context(), data.LessonID)
	if err != nil {
		return errors.Wrap(err, "finding lesson")
	}
	if _, err = api.access.owned(ctx.Request().Context(), usr, lsn.CourseID); err != nil {
		return errors.Wrap(err, "finding owned course")
	}

	qz, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating quiz")
	}
	return ctx.JSON(http.StatusCreated, qz)
}

// ownedQuiz loads the quiz of the `id` path param; quizzes of other instructors are forbidden.
func (api *quizApi) ownedQuiz(ctx echo.Context) (quiz.Quiz, error) {
	reqCtx := ctx.Request().Context()
	qz, err := api.svc.GetByID(reqCtx, ctx.Param("id"))
	if err != nil {
		return quiz.Quiz{}, errors.Wrap(err, "finding quiz")
	}
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return quiz.Quiz{}, err
	}
	lsn, err := api.access.courseSvc.GetLesson(reqCtx, qz.LessonID)
	if err != nil {
		return quiz.Quiz{}, errors.Wrap(err, "finding lesson")
	}
	crs, err := api.access.courseSvc.GetByID(reqCtx, lsn.CourseID)
	if err != nil {
		return quiz.Quiz{}, errors.Wrap(err, "finding course")
	}
	if !isCourseOwner(usr, crs) {
		return quiz.Quiz{}, errHttpForbidden
	}
	return qz, nil
}

func (api *quizApi) update(ctx echo.Context) error {
	qz, err := api.ownedQuiz(ctx)
	if err != nil {
		return err
	}

	var data quiz.UpdateQuiz
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateQuiz")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	qz, err = api.svc.Update(ctx.Request().Context(), qz, data)
	if err != nil {
		return errors.Wrap(err, "updating quiz")
	}
	return ctx.JSON(http.StatusOK, qz)
}

func (api *quizApi) destroy(ctx echo.Context) error {
	qz, err := api.ownedQuiz(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), qz.ID); err != nil {
		return errors.Wrap(err, "deleting quiz")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *quizApi) submit(ctx echo.Context) error {
	qz, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding quiz")
	}
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}
	if _, err = api.lessonCourse(ctx, usr, qz.LessonID); err != nil {
		return err
	}

	var sub quiz.Submission
	if err = ctx.Bind(&sub); err != nil {
		return errors.Wrap(err, "binding to Submission")
	}
	return ctx.JSON(http.StatusOK, api.svc.Submit(ctx.Request().Context(), qz, sub))
}
