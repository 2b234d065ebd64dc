package echoapi

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/acadamier/backend/core/progress"
	"github.com/acadamier/backend/core/scorm"
	"github.com/acadamier/backend/core/user"
)

type progressApi struct {
	userSvc  user.Service
	access   courseAccess
	svc      progress.Service
	scormSvc scorm.Service
	validate *validator.Validate
}

func registerProgressAPI(
	g *echo.Group,
	authed echo.MiddlewareFunc,
	userSvc user.Service,
	access courseAccess,
	svc progress.Service,
	scormSvc scorm.Service,
	validate *validator.Validate,
) {
	api := progressApi{userSvc: userSvc, access: access, svc: svc, scormSvc: scormSvc, validate: validate}

	pg := g.Group("/progress", authed)
	pg.GET("/lessons", api.queryLessons)
	pg.POST("/lessons", api.saveLesson)
	pg.GET("/lessons/:id", api.retrieveLesson)
	pg.POST("/lessons/:id/complete", api.completeLesson)
	pg.GET("/courses", api.queryCourses)
	pg.GET("/courses/:id", api.retrieveCourse)
	pg.GET("/scorm", api.queryScorm)
	pg.GET("/scorm/:id", api.retrieveScorm)
	pg.GET("/certs", api.queryCerts)
	pg.GET("/certs/:id", api.retrieveCert)
	pg.GET("/certs/:id/download", api.downloadCert)
	pg.GET("/scorm-certs", api.queryScormCerts)
	pg.GET("/scorm-certs/:id", api.retrieveScormCert)
	pg.GET("/scorm-certs/:id/download", api.downloadScormCert)
}

// Every progress record is private to its user. The records of other users are reported as not found.

func (api *progressApi) queryLessons(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}
	lps, err := api.svc.ListLessonProgress(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "listing lesson progress")
	}
	if lps == nil {
		lps = []progress.LessonProgress{}
	}
	return ctx.JSON(http.StatusOK, lps)
}

func (api *progressApi) saveLesson(ctx echo.Context) error {
	var data progress.SaveLessonProgress
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SaveLessonProgress")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}
	reqCtx := ctx.Request().Context()
	lsn, err := api.access.courseSvc.GetLesson(reqCtx, data.LessonID)
	if err != nil {
		return errors.Wrap(err, "finding lesson")
	}
	if _, err = api.access.viewable(reqCtx, usr, lsn.CourseID); err != nil {
		return err
	}

	lp, err := api.svc.SaveLessonProgress(reqCtx, usr.ID, lsn, data.IsCompleted)
	if err != nil {
		return errors.Wrap(err, "saving lesson progress")
	}
	return ctx.JSON(http.StatusOK, lp)
}

func (api *progressApi) ownLessonProgress(ctx echo.Context) (progress.LessonProgress, user.User, error) {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return progress.LessonProgress{}, usr, err
	}
	lp, err := api.svc.GetLessonProgress(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return progress.LessonProgress{}, usr, errors.Wrap(err, "finding lesson progress")
	}
	if lp.UserID != usr.ID {
		return progress.LessonProgress{}, usr, progress.ErrNotFound
	}
	return lp, usr, nil
}

func (api *progressApi) retrieveLesson(ctx echo.Context) error {
	lp, _, err := api.ownLessonProgress(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, lp)
}

func (api *progressApi) completeLesson(ctx echo.Context) error {
	lp, usr, err := api.ownLessonProgress(ctx)
	if err != nil {
		return err
	}
	reqCtx := ctx.Request().Context()
	lsn, err := api.access.courseSvc.GetLesson(reqCtx, lp.LessonID)
	if err != nil {
		return errors.Wrap(err, "finding lesson")
	}

	lp, err = api.svc.SaveLessonProgress(reqCtx, usr.ID, lsn, true)
	if err != nil {
		return errors.Wrap(err, "completing lesson")
	}
	return ctx.JSON(http.StatusOK, lp)
}

func (api *progressApi) queryCourses(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}
	cps, err := api.svc.ListCourseProgress(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "listing course progress")
	}
	if cps == nil {
		cps = []progress.CourseProgress{}
	}
	return ctx.JSON(http.StatusOK, cps)
}

func (api *progressApi) retrieveCourse(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}
	cp, err := api.svc.GetCourseProgress(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding course progress")
	}
	if cp.UserID != usr.ID {
		return progress.ErrNotFound
	}
	return ctx.JSON(http.StatusOK, cp)
}

func (api *progressApi) queryScorm(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}
	sps, err := api.svc.ListScormProgress(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "listing scorm progress")
	}
	if sps == nil {
		sps = []progress.ScormProgress{}
	}
	return ctx.JSON(http.StatusOK, sps)
}

func (api *progressApi) retrieveScorm(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}
	sp, err := api.svc.GetScormProgress(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding scorm progress")
	}
	if sp.UserID != usr.ID {
		return progress.ErrNotFound
	}
	return ctx.JSON(http.StatusOK, sp)
}

// Certifications

func (api *progressApi) queryCerts(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}
	certs, err := api.svc.ListCertifications(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "listing certifications")
	}
	if certs == nil {
		certs = []progress.Certification{}
	}
	return ctx.JSON(http.StatusOK, certs)
}

func (api *progressApi) ownCert(ctx echo.Context) (progress.Certification, user.User, error) {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return progress.Certification{}, usr, err
	}
	cert, err := api.svc.GetCertification(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return progress.Certification{}, usr, errors.Wrap(err, "finding certification")
	}
	if cert.UserID != usr.ID {
		return progress.Certification{}, usr, progress.ErrCertificationNotFound
	}
	return cert, usr, nil
}

func (api *progressApi) retrieveCert(ctx echo.Context) error {
	cert, _, err := api.ownCert(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, cert)
}

func (api *progressApi) downloadCert(ctx echo.Context) error {
	cert, usr, err := api.ownCert(ctx)
	if err != nil {
		return err
	}
	lsn, err := api.access.courseSvc.GetLesson(ctx.Request().Context(), cert.LessonID)
	if err != nil {
		return errors.Wrap(err, "finding lesson")
	}
	return sendCertificate(ctx,
		progress.LessonCertificate(cert, usr.DisplayName(), lsn.Title),
		fmt.Sprintf("certificate_%s.pdf", cert.CertID),
	)
}

func (api *progressApi) queryScormCerts(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}
	certs, err := api.svc.ListScormCertifications(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "listing scorm certifications")
	}
	if certs == nil {
		certs = []progress.ScormCertification{}
	}
	return ctx.JSON(http.StatusOK, certs)
}

func (api *progressApi) ownScormCert(ctx echo.Context) (progress.ScormCertification, user.User, error) {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return progress.ScormCertification{}, usr, err
	}
	cert, err := api.svc.GetScormCertification(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return progress.ScormCertification{}, usr, errors.Wrap(err, "finding scorm certification")
	}
	if cert.UserID != usr.ID {
		return progress.ScormCertification{}, usr, progress.ErrScormCertificationNotFound
	}
	return cert, usr, nil
}

func (api *progressApi) retrieveScormCert(ctx echo.Context) error {
	cert, _, err := api.ownScormCert(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, cert)
}

func (api *progressApi) downloadScormCert(ctx echo.Context) error {
	cert, usr, err := api.ownScormCert(ctx)
	if err != nil {
		return err
	}
	pkg, err := api.scormSvc.GetByID(ctx.Request().Context(), cert.PackageID)
	if err != nil {
		return errors.Wrap(err, "finding package")
	}
	return sendCertificate(ctx,
		progress.ScormCertificate(cert, usr.DisplayName(), pkg.Title),
		fmt.Sprintf("scorm_certificate_%s.pdf", cert.CertID),
	)
}

func sendCertificate(ctx echo.Context, cert progress.Certificate, filename string) error {
	var buf bytes.Buffer
	if err := cert.WritePDF(&buf); err != nil {
		return errors.Wrap(err, "rendering certificate")
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, filename))
	return ctx.Blob(http.StatusOK, "application/pdf", buf.Bytes())
}
