package echoapi

import (
	"context"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/acadamier/backend/core/course"
	"github.com/acadamier/backend/core/payment"
	"github.com/acadamier/backend/core/user"
)

// tracingMiddleware starts a span for every routed request.
func tracingMiddleware() echo.MiddlewareFunc {
	tracer := otel.Tracer("echoapi")
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			req := ctx.Request()
			traceCtx, span := tracer.Start(req.Context(), req.Method+" "+ctx.Path())
			defer span.End()
			span.SetAttributes(
				attribute.String("http.method", req.Method),
				attribute.String("http.route", ctx.Path()),
			)

			ctx.SetRequest(req.WithContext(traceCtx))
			err := next(ctx)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			return err
		}
	}
}

// courseAccess checks the course level rules shared by the course content endpoints.
type courseAccess struct {
	courseSvc course.Service
	enrollSvc payment.EnrollmentService
}

func isCourseOwner(usr user.User, crs course.Course) bool {
	return usr.IsAdmin() || crs.InstructorID == usr.ID
}

// owned returns the course when usr may author it. Other courses are reported as not found.
func (ca courseAccess) owned(ctx context.Context, usr user.User, courseID string) (course.Course, error) {
	crs, err := ca.courseSvc.GetByID(ctx, courseID)
	if err != nil {
		return course.Course{}, err
	}
	if !isCourseOwner(usr, crs) {
		return course.Course{}, course.ErrNotFound
	}
	return crs, nil
}

// viewable returns the course when usr may access its content.
func (ca courseAccess) viewable(ctx context.Context, usr user.User, courseID string) (course.Course, error) {
	crs, err := ca.courseSvc.GetByID(ctx, courseID)
	if err != nil {
		return course.Course{}, err
	}
	ok, err := ca.enrollSvc.HasAccess(ctx, usr, crs)
	if err != nil {
		return course.Course{}, err
	}
	if !ok {
		return course.Course{}, errNotEnrolled
	}
	return crs, nil
}
