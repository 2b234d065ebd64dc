package user

import (
	"context"
	"errors"
	"net/mail"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/acadamier/backend/core"
)

var (
	// errors
	ErrNotFound       = core.NewNotFoundError("user not found")
	ErrEmailExists    = errors.New("a user with this email already exists")
	ErrUsernameExists = errors.New("a user with this username already exists")
)

type (
	Repository interface {
		// CheckUsernameUniqueness returns ErrUsernameExists or ErrEmailExists when another User holds them.
		CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...User) error
		CreateUser(ctx context.Context, usr User) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name, User.Username or User.Email.
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		GetUsersByEmail(ctx context.Context, emails []string) ([]User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		DeleteUsersByID(ctx context.Context, ids []string) (int, error)
		RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error
		IsTokenRevoked(ctx context.Context, jti string) (bool, error)
	}

	// SignupListener is notified whenever a visitor signs up.
	SignupListener interface {
		UserSignedUp(ctx context.Context, usr User)
	}

	Service interface {
		CheckUniqueness(uname, email string, exclUsers ...User) error
		Register(ctx context.Context, ru RegisterUser) (User, error)
		Create(ctx context.Context, nu NewUser) (User, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		GetByUsernameOrEmail(ctx context.Context, uname string) (User, error)
		GetByEmails(ctx context.Context, emails []string) ([]User, error)
		Update(ctx context.Context, usr User, uu UpdateUser) (User, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
		Delete(ctx context.Context, ids ...string) error
		RequestPasswordReset(ctx context.Context, email string) error
		ResetPassword(ctx context.Context, data ResetUserPassword) error
		LoginWithProvider(ctx context.Context, profile ExternalProfile) (User, error)
		RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error
		IsTokenRevoked(ctx context.Context, jti string) (bool, error)
	}

	service struct {
		repo      Repository
		mailSvc   core.EmailService
		conf      *core.Config
		tracer    trace.Tracer
		listeners []SignupListener
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config, listeners ...SignupListener) Service {
	return &service{
		repo:      repo,
		mailSvc:   mailSvc,
		conf:      conf,
		tracer:    otel.Tracer("user/service"),
		listeners: listeners,
	}
}

func (svc *service) CheckUniqueness(uname, email string, exclUsers ...User) error {
	if err := svc.repo.CheckUsernameUniqueness(context.Background(), uname, email, exclUsers...); err != nil {
		var field string
		switch err {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

func (svc *service) Register(ctx context.Context, ru RegisterUser) (User, error) {
	traceCtx, span := svc.tracer.Start(ctx, "Register")
	defer span.End()

	role := RoleStudent
	if ru.Role == AccountInstructor {
		role = RoleInstructor
	}

	now := time.Now().UTC()
	usr := User{
		ID:        uuid.NewString(),
		Name:      ru.Name,
		Username:  ru.Username,
		Email:     ru.Email,
		Bio:       ru.Bio,
		IsActive:  true,
		Roles:     []string{role},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(ru.Password); err != nil {
		return User{}, pkgerrors.Wrap(err, "setting password")
	}
	usr, err := svc.repo.CreateUser(traceCtx, usr)
	if err != nil {
		span.RecordError(err)
		return User{}, pkgerrors.Wrap(err, "creating user")
	}

	for _, l := range svc.listeners {
		l.UserSignedUp(traceCtx, usr)
	}
	return usr, nil
}

func (svc *service) Create(ctx context.Context, nu NewUser) (User, error) {
	traceCtx, span := svc.tracer.Start(ctx, "Create")
	defer span.End()

	now := time.Now().UTC()
	usr := User{
		ID:        uuid.NewString(),
		Name:      nu.Name,
		Username:  nu.Username,
		Email:     nu.Email,
		IsActive:  true,
		Roles:     nu.Roles,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, pkgerrors.Wrap(err, "setting password")
	}
	return svc.repo.CreateUser(traceCtx, usr)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	traceCtx, span := svc.tracer.Start(ctx, "Query")
	defer span.End()

	ordering = core.CleanOrderings(ordering, "name", "username", "email", "created_at", "last_login")
	return svc.repo.QueryUsers(traceCtx, filter, ordering)
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

func (svc *service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{UsernameOrEmail: core.CleanString(uname, true /* lower */)})
}

func (svc *service) GetByEmails(ctx context.Context, emails []string) ([]User, error) {
	cleaned := make([]string, 0, len(emails))
	for _, e := range emails {
		cleaned = append(cleaned, core.CleanString(e, true /* lower */))
	}
	return svc.repo.GetUsersByEmail(ctx, cleaned)
}

func (svc *service) Update(ctx context.Context, usr User, uu UpdateUser) (User, error) {
	traceCtx, span := svc.tracer.Start(ctx, "Update")
	defer span.End()

	usr.Name = uu.Name
	usr.Username = uu.Username
	usr.Email = uu.Email
	if uu.Bio != nil {
		usr.Bio = core.CleanString(*uu.Bio)
	}
	if uu.IsActive != nil {
		usr.IsActive = *uu.IsActive
	}
	if uu.Roles != nil {
		usr.Roles = uu.Roles
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, pkgerrors.Wrap(err, "setting password")
		}
	}
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(traceCtx, usr)
}

func (svc *service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	_, err := svc.repo.DeleteUsersByID(ctx, ids)
	return err
}

func (svc *service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return ErrNotFound
	}
	return svc.sendPasswordResetMail(usr)
}

func (svc *service) sendPasswordResetMail(usr User) error {
	token, err := MakeToken(usr, svc.conf.SecretKey)
	if err != nil {
		return pkgerrors.Wrap(err, "making password reset token")
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.DisplayName(), Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]string{
			"Name":  usr.DisplayName(),
			"UID":   EncodeUID(usr),
			"Token": token,
		},
	})
	return nil
}

func (svc *service) ResetPassword(ctx context.Context, data ResetUserPassword) error {
	uid, err := decodeUID(data.UID)
	if err != nil {
		return core.NewValidationError(errInvalidToken)
	}
	usr, err := svc.GetByID(ctx, uid)
	if err != nil {
		if pkgerrors.Cause(err) == ErrNotFound {
			return core.NewValidationError(errInvalidToken)
		}
		return pkgerrors.Wrap(err, "finding user by ID")
	}
	if err = verifyToken(usr, data.Token, svc.conf.SecretKey, svc.conf.PasswordResetTimeoutDelta); err != nil {
		return core.NewValidationError(err)
	}
	if err = usr.SetPassword(data.Password); err != nil {
		return pkgerrors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return err
}

// LoginWithProvider finds the User matching the provider's verified email, or signs them up as a student.
func (svc *service) LoginWithProvider(ctx context.Context, profile ExternalProfile) (User, error) {
	traceCtx, span := svc.tracer.Start(ctx, "LoginWithProvider")
	defer span.End()

	email := core.CleanString(profile.Email, true /* lower */)
	if email == "" || !profile.EmailVerified {
		return User{}, core.NewValidationError(errors.New("a verified email is required"))
	}

	usr, err := svc.repo.GetUser(traceCtx, GetFilter{Email: email})
	if err == nil {
		return usr, nil
	}
	if pkgerrors.Cause(err) != ErrNotFound {
		return User{}, pkgerrors.Wrap(err, "finding user by email")
	}

	now := time.Now().UTC()
	usr = User{
		ID:        uuid.NewString(),
		Name:      core.CleanString(profile.Name),
		Email:     email,
		IsActive:  true,
		Roles:     []string{RoleStudent},
		CreatedAt: now,
		UpdatedAt: now,
	}
	// unusable password: the account can only log in through the provider until reset
	if err = usr.SetPassword(uuid.New().String() + uuid.New().String()); err != nil {
		return User{}, pkgerrors.Wrap(err, "setting password")
	}
	if usr, err = svc.repo.CreateUser(traceCtx, usr); err != nil {
		return User{}, pkgerrors.Wrap(err, "creating user")
	}
	for _, l := range svc.listeners {
		l.UserSignedUp(traceCtx, usr)
	}
	return usr, nil
}

func (svc *service) RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error {
	return svc.repo.RevokeToken(ctx, jti, expiresAt.UTC())
}

func (svc *service) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	return svc.repo.IsTokenRevoked(ctx, jti)
}
