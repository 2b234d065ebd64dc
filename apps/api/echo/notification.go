package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/acadamier/backend/core/notification"
)

type notificationApi struct {
	svc notification.Service
}

func registerNotificationAPI(g *echo.Group, authed echo.MiddlewareFunc, svc notification.Service) {
	api := notificationApi{svc: svc}

	ng := g.Group("/notifications", authed)
	ng.GET("", api.query)
	ng.POST("/read-all", api.markAllRead)
	ng.POST("/:id/read", api.markRead)
}

func (api *notificationApi) query(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	ntfs, err := api.svc.List(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "listing notifications")
	}
	if ntfs == nil {
		ntfs = []notification.Notification{}
	}
	return ctx.JSON(http.StatusOK, ntfs)
}

func (api *notificationApi) markRead(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	ntf, err := api.svc.MarkRead(ctx.Request().Context(), claims.Subject, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "marking notification read")
	}
	return ctx.JSON(http.StatusOK, ntf)
}

func (api *notificationApi) markAllRead(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	count, err := api.svc.MarkAllRead(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "marking notifications read")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"marked": count})
}
