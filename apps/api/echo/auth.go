package echoapi

import (
	"context"
	"net/http"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/acadamier/backend/core"
	"github.com/acadamier/backend/core/user"
)

const (
	tokenAccess  = "access"
	tokenRefresh = "refresh"

	contextTokenKey = "userToken"
	contextUserKey  = "user"
)

type (
	// Claims represents the authorization claims transmitted via a JWT.
	Claims struct {
		jwt.StandardClaims
		OrigIssuedAt int64    `json:"oriat,omitempty"`
		TokenType    string   `json:"typ,omitempty"`
		Username     string   `json:"username,omitempty"`
		Email        string   `json:"email,omitempty"`
		IsStudent    bool     `json:"is_student,omitempty"`
		IsInstructor bool     `json:"is_instructor,omitempty"`
		IsAdmin      bool     `json:"is_admin,omitempty"`
		Roles        []string `json:"roles,omitempty"`
	}

	// OAuthProvider signs users in with a third-party account.
	OAuthProvider interface {
		AuthCodeURL(state string) string
		Profile(ctx context.Context, code string) (user.ExternalProfile, error)
	}
)

func jwtConfig(conf *core.Config) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    contextTokenKey,
		Claims:        new(Claims),
	}
}

// GetUserClaims returns the access token claims of usr.
// origIat is the issue time of the login the token derives from; it defaults to now.
func GetUserClaims(conf *core.Config, usr user.User, origIat ...int64) *Claims {
	now := time.Now()
	nownix := now.Unix()

	oriat := nownix
	if len(origIat) > 0 {
		oriat = origIat[0]
	}

	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Id:        uuid.NewString(),
			Issuer:    conf.AppName,
			Subject:   usr.ID,
			ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt: oriat,
		TokenType:    tokenAccess,
		Username:     usr.Username,
		Email:        usr.Email,
		IsStudent:    usr.IsStudent(),
		IsInstructor: usr.IsInstructor(),
		IsAdmin:      usr.IsAdmin(),
		Roles:        usr.Roles,
	}
}

// refreshClaims returns the claims of the refresh token paired with an access token.
// It expires when the refresh period of the login ends.
func refreshClaims(conf *core.Config, access *Claims) *Claims {
	claims := *access
	claims.Id = uuid.NewString()
	claims.TokenType = tokenRefresh
	claims.ExpiresAt = time.Unix(access.OrigIssuedAt, 0).Add(conf.Server.JWTRefreshExpirationDelta).Unix()
	return &claims
}

// GenerateToken generates a signed JWT token string representing the user Claims.
func GenerateToken(conf *core.Config, claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.GetSigningMethod(middleware.AlgorithmHS256), claims)
	ss, err := token.SignedString([]byte(conf.SecretKey))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func parseToken(conf *core.Config, raw string) (*Claims, error) {
	claims := new(Claims)
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != middleware.AlgorithmHS256 {
			return nil, errors.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(conf.SecretKey), nil
	})
	return claims, err
}

func tokenExpiry(claims Claims) time.Time {
	return time.Unix(claims.ExpiresAt, 0).UTC()
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

func getContextUser(ctx echo.Context, svc user.Service) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return user.User{}, err
	}
	usr, err := svc.GetByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.User{}, errUnauthorized
		}
		return user.User{}, errors.Wrap(err, "finding user by ID")
	}
	ctx.Set(contextUserKey, usr)
	return usr, nil
}

// getContextToken returns the raw bearer token of the request.
func getContextToken(ctx echo.Context) string {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		return token.Raw
	}
	return ""
}

// queryTokenMiddleware authenticates with the `token` query param when there is no Authorization header.
// Pages loaded in an iframe cannot set headers.
func queryTokenMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		req := ctx.Request()
		if token := ctx.QueryParam("token"); token != "" && req.Header.Get(echo.HeaderAuthorization) == "" {
			req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
		}
		return next(ctx)
	}
}

// accessTokenMiddleware rejects refresh tokens and revoked tokens.
func accessTokenMiddleware(svc user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			if claims.TokenType != tokenAccess {
				return errUnauthorized
			}
			revoked, err := svc.IsTokenRevoked(ctx.Request().Context(), claims.Id)
			if err != nil {
				return errors.Wrap(err, "checking token revocation")
			}
			if revoked {
				return errTokenRevoked
			}
			return next(ctx)
		}
	}
}

type authApi struct {
	conf     *core.Config
	svc      user.Service
	oauth    OAuthProvider
	validate *validator.Validate
}

func registerAuthAPI(g *echo.Group, authed echo.MiddlewareFunc, conf *core.Config, svc user.Service, oauth OAuthProvider, validate *validator.Validate) {
	api := authApi{conf: conf, svc: svc, oauth: oauth, validate: validate}

	ag := g.Group("/auth")

	// TODO: rate limit `/login` & `/password-reset`
	ag.POST("/register", api.register)
	ag.POST("/login", api.login)
	ag.POST("/refresh", api.refresh)
	ag.POST("/password-reset", api.resetPassword)
	ag.POST("/password-reset-confirm", api.confirmPasswordReset)
	ag.GET("/google/url", api.googleURL)
	ag.POST("/google", api.googleLogin)

	ag.GET("/me", api.me, authed)
	ag.POST("/logout", api.logout, authed)
}

func (api *authApi) tokens(ctx echo.Context, usr user.User) error {
	if !usr.IsActive {
		return errAccountDeactivated
	}
	usr, err := api.svc.SetLastLogin(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "setting lastLogin")
	}

	claims := GetUserClaims(api.conf, usr)
	token, err := GenerateToken(api.conf, claims)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	refresh, err := GenerateToken(api.conf, refreshClaims(api.conf, claims))
	if err != nil {
		return errors.Wrap(err, "generating refresh token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token, RefreshToken: refresh})
}

func (api *authApi) register(ctx echo.Context) error {
	var data user.RegisterUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RegisterUser")
	}
	if err := data.Validate(api.validate, api.svc); err != nil {
		return err
	}

	usr, err := api.svc.Register(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "registering user")
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *authApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := api.svc.GetByUsernameOrEmail(ctx.Request().Context(), data.Username)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return errAuthenticationFailed
		}
		return errors.Wrap(err, "finding user by username or email")
	}
	if err = usr.CheckPassword(data.Password); err != nil {
		return errAuthenticationFailed
	}
	return api.tokens(ctx, usr)
}

func (api *authApi) refresh(ctx echo.Context) error {
	var data RefreshRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RefreshRequest")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	claims, err := parseToken(api.conf, data.RefreshToken)
	if err != nil {
		if ve, ok := err.(*jwt.ValidationError); ok && ve.Errors&jwt.ValidationErrorExpired != 0 {
			return errRefreshExpired
		}
		return errUnauthorized
	}
	if claims.TokenType != tokenRefresh {
		return errUnauthorized
	}
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(api.conf.Server.JWTRefreshExpirationDelta)
	if time.Now().After(expTime) {
		return errRefreshExpired
	}

	revoked, err := api.svc.IsTokenRevoked(ctx.Request().Context(), claims.Id)
	if err != nil {
		return errors.Wrap(err, "checking token revocation")
	}
	if revoked {
		return errTokenRevoked
	}

	usr, err := api.svc.GetByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return errUnauthorized
		}
		return errors.Wrap(err, "finding user by ID")
	}
	if !usr.IsActive {
		return errAccountDeactivated
	}

	token, err := GenerateToken(api.conf, GetUserClaims(api.conf, usr, claims.OrigIssuedAt))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *authApi) logout(ctx echo.Context) error {
	var data LogoutRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LogoutRequest")
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	reqCtx := ctx.Request().Context()
	if err = api.svc.RevokeToken(reqCtx, claims.Id, tokenExpiry(claims)); err != nil {
		return errors.Wrap(err, "revoking access token")
	}
	if data.RefreshToken != "" {
		refresh, err := parseToken(api.conf, data.RefreshToken)
		if err == nil && refresh.TokenType == tokenRefresh && refresh.Subject == claims.Subject {
			if err = api.svc.RevokeToken(reqCtx, refresh.Id, tokenExpiry(*refresh)); err != nil {
				return errors.Wrap(err, "revoking refresh token")
			}
		}
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *authApi) me(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *authApi) resetPassword(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.RequestPasswordReset(ctx.Request().Context(), data.Email); !(err == nil || errors.Cause(err) == user.ErrNotFound) {
		// do not return errors to attackers
		ctx.Logger().Errorf("%+v", errors.Wrap(err, "requesting password reset"))
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{
		Success: "If the email address supplied is associated with an active account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})
}

func (api *authApi) confirmPasswordReset(ctx echo.Context) error {
	var data user.ResetUserPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetUserPassword")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.ResetPassword(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password has been reset with the new password."})
}

func (api *authApi) googleURL(ctx echo.Context) error {
	if api.oauth == nil {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, echo.Map{"url": api.oauth.AuthCodeURL(uuid.NewString())})
}

func (api *authApi) googleLogin(ctx echo.Context) error {
	if api.oauth == nil {
		return errHttpNotFound
	}
	var data OAuthLoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to OAuthLoginRequest")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	profile, err := api.oauth.Profile(ctx.Request().Context(), data.Code)
	if err != nil {
		ctx.Logger().Warnf("google login: %v", err)
		return errAuthenticationFailed
	}
	usr, err := api.svc.LoginWithProvider(ctx.Request().Context(), profile)
	if err != nil {
		return errors.Wrap(err, "logging in with google")
	}
	return api.tokens(ctx, usr)
}

type (
	LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token        string `json:"token"`
		RefreshToken string `json:"refresh_token,omitempty"`
	}

	RefreshRequest struct {
		RefreshToken string `json:"refresh_token" validate:"required"`
	}

	LogoutRequest struct {
		RefreshToken string `json:"refresh_token"`
	}

	OAuthLoginRequest struct {
		Code string `json:"code" validate:"required"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Username = core.CleanString(lr.Username, true /* lower */)
	return validate.Struct(lr)
}

func (pr *PasswordResetRequest) Validate(validate *validator.Validate) error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return validate.Struct(pr)
}
