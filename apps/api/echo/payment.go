package echoapi

import (
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/acadamier/backend/core"
	"github.com/acadamier/backend/core/payment"
	"github.com/acadamier/backend/core/team"
	"github.com/acadamier/backend/core/user"
)

const (
	paystackSignatureHeader = "X-Paystack-Signature"

	// gateway events are small JSON documents
	webhookBodyLimit = "64K"
)

type paymentApi struct {
	userSvc   user.Service
	svc       payment.Service
	enrollSvc payment.EnrollmentService
	teamSvc   team.Service
	logger    core.Logger
	validate  *validator.Validate
}

func registerPaymentAPI(
	g *echo.Group,
	authed echo.MiddlewareFunc,
	userSvc user.Service,
	svc payment.Service,
	enrollSvc payment.EnrollmentService,
	teamSvc team.Service,
	logger core.Logger,
	validate *validator.Validate,
) {
	api := paymentApi{
		userSvc:   userSvc,
		svc:       svc,
		enrollSvc: enrollSvc,
		teamSvc:   teamSvc,
		logger:    logger,
		validate:  validate,
	}

	// the gateway authenticates itself with the payload signature
	g.POST("/payments/webhook", api.webhook, middleware.BodyLimit(webhookBodyLimit))

	pg := g.Group("/payments", authed)
	pg.POST("/init", api.initialize)
	pg.POST("/verify", api.verify)
	pg.POST("/team/init", api.initializeBulk)
	pg.POST("/team/verify", api.verifyBulk)

	g.GET("/enrollments", api.queryEnrollments, authed)
}

type StatusResponse struct {
	Status string `json:"status"`
}

func (api *paymentApi) initialize(ctx echo.Context) error {
	var data payment.InitTransaction
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to InitTransaction")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}

	res, err := api.svc.Initialize(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "initializing transaction")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *paymentApi) verify(ctx echo.Context) error {
	var data payment.VerifyTransaction
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to VerifyTransaction")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}

	status, err := api.svc.Verify(ctx.Request().Context(), usr, data.Reference)
	if err != nil {
		return errors.Wrap(err, "verifying transaction")
	}
	return ctx.JSON(http.StatusOK, StatusResponse{Status: status})
}

func (api *paymentApi) initializeBulk(ctx echo.Context) error {
	var data payment.InitBulkTransaction
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to InitBulkTransaction")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}
	org, err := api.teamSvc.GetByID(ctx.Request().Context(), data.OrganizationID)
	if err != nil {
		return errors.Wrap(err, "finding organization")
	}
	if !team.IsAdmin(org, usr) {
		return errHttpForbidden
	}

	res, err := api.svc.InitializeBulk(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "initializing bulk transaction")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *paymentApi) verifyBulk(ctx echo.Context) error {
	var data payment.VerifyTransaction
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to VerifyTransaction")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}

	status, err := api.svc.VerifyBulk(ctx.Request().Context(), usr, data.Reference)
	if err != nil {
		return errors.Wrap(err, "verifying bulk transaction")
	}
	return ctx.JSON(http.StatusOK, StatusResponse{Status: status})
}

func (api *paymentApi) webhook(ctx echo.Context) error {
	body, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return errors.Wrap(err, "reading webhook body")
	}
	err = api.svc.HandleWebhook(ctx.Request().Context(), ctx.Request().Header.Get(paystackSignatureHeader), body)
	if errors.Cause(err) == payment.ErrInvalidSignature {
		return err
	}
	if err != nil {
		// acknowledged anyway so that the gateway stops retrying
		api.logger.Error("handling payment webhook", err)
	}
	return ctx.JSON(http.StatusOK, echo.Map{"received": true})
}

func (api *paymentApi) queryEnrollments(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}
	enrollments, err := api.enrollSvc.ListByUser(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "listing enrollments")
	}
	if enrollments == nil {
		enrollments = []payment.Enrollment{}
	}
	return ctx.JSON(http.StatusOK, enrollments)
}
