package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/acadamier/backend/core/course"
	"github.com/acadamier/backend/core/user"
)

type reviewApi struct {
	userSvc  user.Service
	access   courseAccess
	validate *validator.Validate
}

func registerReviewAPI(g *echo.Group, authed echo.MiddlewareFunc, userSvc user.Service, access courseAccess, validate *validator.Validate) {
	api := reviewApi{userSvc: userSvc, access: access, validate: validate}

	rg := g.Group("/reviews", authed)
	rg.GET("", api.queryReviews)
	rg.POST("", api.createReview)
	rg.PUT("/:id", api.updateReview)
	rg.PATCH("/:id", api.updateReview)
	rg.DELETE("/:id", api.destroyReview)

	wg := g.Group("/wishlist", authed)
	wg.GET("", api.queryWishlist)
	wg.POST("", api.addToWishlist)
	wg.DELETE("/:id", api.removeFromWishlist)

	pg := g.Group("/promotions", authed)
	pg.GET("", api.queryPromotions)
	pg.POST("", api.createPromotion)
	pg.DELETE("/:id", api.destroyPromotion)
}

// Reviews

func (api *reviewApi) queryReviews(ctx echo.Context) error {
	courseID, err := requiredQuery(ctx, "course_id")
	if err != nil {
		return err
	}
	reviews, err := api.access.courseSvc.ListReviews(ctx.Request().Context(), courseID)
	if err != nil {
		return errors.Wrap(err, "listing reviews")
	}
	if reviews == nil {
		reviews = []course.Review{}
	}
	return ctx.JSON(http.StatusOK, reviews)
}

func (api *reviewApi) createReview(ctx echo.Context) error {
	var data course.NewReview
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewReview")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}
	if _, err = api.access.viewable(ctx.Request().Context(), usr, data.CourseID); err != nil {
		return err
	}

	rev, err := api.access.courseSvc.CreateReview(ctx.Request().Context(), usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "creating review")
	}
	return ctx.JSON(http.StatusCreated, rev)
}

// ownReview loads the review of the `id` path param, written by the context user.
func (api *reviewApi) ownReview(ctx echo.Context) (course.Review, error) {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return course.Review{}, err
	}
	rev, err := api.access.courseSvc.GetReview(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return course.Review{}, errors.Wrap(err, "finding review")
	}
	if rev.UserID != usr.ID && !usr.IsAdmin() {
		return course.Review{}, course.ErrReviewNotFound
	}
	return rev, nil
}

func (api *reviewApi) updateReview(ctx echo.Context) error {
	rev, err := api.ownReview(ctx)
	if err != nil {
		return err
	}

	var data course.UpdateReview
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateReview")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	rev, err = api.access.courseSvc.UpdateReview(ctx.Request().Context(), rev, data)
	if err != nil {
		return errors.Wrap(err, "updating review")
	}
	return ctx.JSON(http.StatusOK, rev)
}

func (api *reviewApi) destroyReview(ctx echo.Context) error {
	rev, err := api.ownReview(ctx)
	if err != nil {
		return err
	}
	if err = api.access.courseSvc.DeleteReview(ctx.Request().Context(), rev); err != nil {
		return errors.Wrap(err, "deleting review")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Wishlist

func (api *reviewApi) queryWishlist(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}
	items, err := api.access.courseSvc.ListWishlist(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "listing wishlist")
	}
	if items == nil {
		items = []course.WishlistItem{}
	}
	return ctx.JSON(http.StatusOK, items)
}

func (api *reviewApi) addToWishlist(ctx echo.Context) error {
	var data course.NewWishlistItem
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewWishlistItem")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}

	item, err := api.access.courseSvc.AddToWishlist(ctx.Request().Context(), usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "adding to wishlist")
	}
	return ctx.JSON(http.StatusCreated, item)
}

func (api *reviewApi) removeFromWishlist(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}
	if err = api.access.courseSvc.RemoveFromWishlist(ctx.Request().Context(), usr.ID, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "removing from wishlist")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Promotions

func (api *reviewApi) queryPromotions(ctx echo.Context) error {
	courseID, err := requiredQuery(ctx, "course_id")
	if err != nil {
		return err
	}
	promos, err := api.access.courseSvc.ListPromotions(ctx.Request().Context(), courseID)
	if err != nil {
		return errors.Wrap(err, "listing promotions")
	}
	if promos == nil {
		promos = []course.Promotion{}
	}
	return ctx.JSON(http.StatusOK, promos)
}

func (api *reviewApi) createPromotion(ctx echo.Context) error {
	var data course.NewPromotion
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPromotion")
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

	promo, err := api.access.courseSvc.CreatePromotion(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating promotion")
	}
	return ctx.JSON(http.StatusCreated, promo)
}

func (api *reviewApi) destroyPromotion(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	promo, err := api.access.courseSvc.GetPromotion(reqCtx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding promotion")
	}
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}
	crs, err := api.access.courseSvc.GetByID(reqCtx, promo.CourseID)
	if err != nil {
		return errors.Wrap(err, "finding course")
	}
	if !isCourseOwner(usr, crs) {
		return errHttpForbidden
	}
	if err = api.access.courseSvc.DeletePromotion(reqCtx, promo.ID); err != nil {
		return errors.Wrap(err, "deleting promotion")
	}
	return ctx.NoContent(http.StatusNoContent)
}
