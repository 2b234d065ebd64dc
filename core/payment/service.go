package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/acadamier/backend/core"
	"github.com/acadamier/backend/core/course"
	"github.com/acadamier/backend/core/user"
)

const (
	TaskReceiptEmail = "payment.receipt_email"

	eventChargeSuccess = "charge.success"
)

var (
	// errors
	ErrTransactionNotFound = core.NewNotFoundError("transaction not found")
	ErrInvalidSignature    = core.NewPermissionError("invalid signature")
)

type (
	Repository interface {
		EnrollmentRepository

		CreateTransaction(ctx context.Context, tx Transaction) (Transaction, error)
		GetTransactionByReference(ctx context.Context, ref string) (Transaction, error)
		// MarkTransactionPaid moves a non successful Transaction to success.
		// It reports false when the Transaction was already successful.
		MarkTransactionPaid(ctx context.Context, id string, paidAt time.Time) (bool, error)
		MarkTransactionFailed(ctx context.Context, id string) error

		CreateBulkTransaction(ctx context.Context, tx BulkTransaction) (BulkTransaction, error)
		GetBulkTransactionByReference(ctx context.Context, ref string) (BulkTransaction, error)
		// MarkBulkTransactionPaid behaves like MarkTransactionPaid.
		MarkBulkTransactionPaid(ctx context.Context, id string, paidAt time.Time) (bool, error)
		MarkBulkTransactionFailed(ctx context.Context, id string) error
	}

	// Gateway is a third party payment processor.
	Gateway interface {
		// Initialize starts a payment and returns the URL where the payer completes it.
		Initialize(ctx context.Context, req GatewayInit) (string, error)
		// Verify returns the status of the payment identified by reference.
		Verify(ctx context.Context, reference string) (string, error)
	}

	// BulkPurchaseListener is notified whenever a BulkTransaction succeeds, and again on every
	// later completion attempt of the same transaction.
	BulkPurchaseListener interface {
		BulkPurchaseCompleted(ctx context.Context, tx BulkTransaction) error
	}

	Service interface {
		Initialize(ctx context.Context, usr user.User, it InitTransaction) (InitResult, error)
		Verify(ctx context.Context, usr user.User, ref string) (string, error)
		InitializeBulk(ctx context.Context, usr user.User, ib InitBulkTransaction) (InitResult, error)
		VerifyBulk(ctx context.Context, usr user.User, ref string) (string, error)
		// HandleWebhook processes a gateway event after checking its signature.
		HandleWebhook(ctx context.Context, signature string, body []byte) error
	}

	service struct {
		repo      Repository
		gateway   Gateway
		enrollSvc EnrollmentService
		courseSvc course.Service
		userSvc   user.Service
		mailSvc   core.EmailService
		tasks     core.TaskQueue
		conf      *core.Config
		logger    core.Logger
		tracer    trace.Tracer
		listeners []BulkPurchaseListener
	}

	webhookEvent struct {
		Event string `json:"event"`
		Data  struct {
			Reference string `json:"reference"`
		} `json:"data"`
	}
)

var _ Service = (*service)(nil)

func NewService(
	repo Repository,
	gateway Gateway,
	enrollSvc EnrollmentService,
	courseSvc course.Service,
	userSvc user.Service,
	mailSvc core.EmailService,
	tasks core.TaskQueue,
	conf *core.Config,
	logger core.Logger,
	listeners ...BulkPurchaseListener,
) Service {
	return &service{
		repo:      repo,
		gateway:   gateway,
		enrollSvc: enrollSvc,
		courseSvc: courseSvc,
		userSvc:   userSvc,
		mailSvc:   mailSvc,
		tasks:     tasks,
		conf:      conf,
		logger:    logger,
		tracer:    otel.Tracer("payment/service"),
		listeners: listeners,
	}
}

func newReference() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func (svc *service) Initialize(ctx context.Context, usr user.User, it InitTransaction) (InitResult, error) {
	traceCtx, span := svc.tracer.Start(ctx, "Initialize")
	defer span.End()

	crs, err := svc.courseSvc.GetByID(traceCtx, it.CourseID)
	if err != nil {
		if pkgerrors.Cause(err) == course.ErrNotFound {
			return InitResult{}, core.NewValidationError(err, core.FieldError{Field: "course_id", Error: err.Error()})
		}
		return InitResult{}, pkgerrors.Wrap(err, "finding course")
	}
	price, err := svc.courseSvc.EffectivePrice(traceCtx, crs, time.Now().UTC())
	if err != nil {
		return InitResult{}, pkgerrors.Wrap(err, "computing effective price")
	}

	tx := Transaction{
		ID:        uuid.NewString(),
		UserID:    usr.ID,
		CourseID:  crs.ID,
		Reference: newReference(),
		Amount:    core.ToMinorUnits(price),
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	span.SetAttributes(attribute.String("reference", tx.Reference), attribute.Int64("amount", tx.Amount))

	// free courses need no payment
	if tx.Amount <= 0 {
		paidAt := tx.CreatedAt
		tx.Amount = 0
		tx.Status = StatusSuccess
		tx.PaidAt = &paidAt
		if _, err = svc.repo.CreateTransaction(traceCtx, tx); err != nil {
			return InitResult{}, pkgerrors.Wrap(err, "creating transaction")
		}
		if _, err = svc.enrollSvc.Enroll(traceCtx, usr.ID, crs); err != nil {
			return InitResult{}, pkgerrors.Wrap(err, "enrolling")
		}
		return InitResult{Reference: tx.Reference}, nil
	}

	if tx, err = svc.repo.CreateTransaction(traceCtx, tx); err != nil {
		return InitResult{}, pkgerrors.Wrap(err, "creating transaction")
	}
	authURL, err := svc.gateway.Initialize(traceCtx, GatewayInit{
		Amount:      tx.Amount,
		Email:       usr.Email,
		Reference:   tx.Reference,
		CallbackURL: svc.conf.Paystack.CallbackURL,
	})
	if err != nil {
		span.RecordError(err)
		return InitResult{}, pkgerrors.Wrap(err, "initializing payment")
	}
	return InitResult{AuthorizationURL: authURL, Reference: tx.Reference}, nil
}

func (svc *service) Verify(ctx context.Context, usr user.User, ref string) (string, error) {
	traceCtx, span := svc.tracer.Start(ctx, "Verify")
	defer span.End()

	tx, err := svc.repo.GetTransactionByReference(traceCtx, ref)
	if err != nil {
		return "", err
	}
	if tx.UserID != usr.ID {
		return "", ErrTransactionNotFound
	}
	// completing again repairs a previous completion that failed half way
	if tx.Status == StatusSuccess {
		if err = svc.completeTransaction(traceCtx, tx); err != nil {
			return "", err
		}
		return StatusSuccess, nil
	}

	status, err := svc.gateway.Verify(traceCtx, ref)
	if err != nil {
		span.RecordError(err)
		return "", pkgerrors.Wrap(err, "verifying payment")
	}
	if status != StatusSuccess {
		if err = svc.repo.MarkTransactionFailed(traceCtx, tx.ID); err != nil {
			return "", pkgerrors.Wrap(err, "marking transaction failed")
		}
		return StatusFailed, nil
	}
	if err = svc.completeTransaction(traceCtx, tx); err != nil {
		return "", err
	}
	return StatusSuccess, nil
}

// completeTransaction marks the transaction successful and enrolls its user. It is idempotent.
func (svc *service) completeTransaction(ctx context.Context, tx Transaction) error {
	paidAt := time.Now().UTC()
	changed, err := svc.repo.MarkTransactionPaid(ctx, tx.ID, paidAt)
	if err != nil {
		return pkgerrors.Wrap(err, "marking transaction paid")
	}
	crs, err := svc.courseSvc.GetByID(ctx, tx.CourseID)
	if err != nil {
		return pkgerrors.Wrap(err, "finding course")
	}
	if _, err = svc.enrollSvc.Enroll(ctx, tx.UserID, crs); err != nil {
		return pkgerrors.Wrap(err, "enrolling")
	}
	if changed {
		tx.Status = StatusSuccess
		tx.PaidAt = &paidAt
		svc.enqueueReceipt(tx, crs)
	}
	return nil
}

func (svc *service) enqueueReceipt(tx Transaction, crs course.Course) {
	// retries cover the user lookup, delivery is retried by the email service
	svc.tasks.Enqueue(core.Task{
		Name:       TaskReceiptEmail,
		MaxRetries: 3,
		Run: func(ctx context.Context) error {
			usr, err := svc.userSvc.GetByID(ctx, tx.UserID)
			if err != nil {
				return pkgerrors.Wrap(err, "finding user")
			}
			svc.mailSvc.SendMessages(&core.EmailMessage{
				To:           []mail.Address{{Name: usr.DisplayName(), Address: usr.Email}},
				Subject:      fmt.Sprintf("Payment receipt: %s", crs.Title),
				TemplateName: "payment_receipt",
				TemplateData: map[string]string{
					"Name":        usr.DisplayName(),
					"CourseTitle": crs.Title,
					"Amount":      decimal.New(tx.Amount, -2).StringFixed(2),
					"Reference":   tx.Reference,
					"PaidAt":      tx.PaidAt.Format("Jan 2, 2006 15:04 MST"),
				},
			})
			return nil
		},
	})
}

func (svc *service) InitializeBulk(ctx context.Context, usr user.User, ib InitBulkTransaction) (InitResult, error) {
	traceCtx, span := svc.tracer.Start(ctx, "InitializeBulk")
	defer span.End()

	total := decimal.Zero
	seats := decimal.NewFromInt(int64(ib.Seats))
	for _, id := range ib.CourseIDs {
		crs, err := svc.courseSvc.GetByID(traceCtx, id)
		if err != nil {
			if pkgerrors.Cause(err) == course.ErrNotFound {
				return InitResult{}, core.NewValidationError(err, core.FieldError{Field: "courses", Error: err.Error()})
			}
			return InitResult{}, pkgerrors.Wrap(err, "finding course")
		}
		total = total.Add(crs.Price.Mul(seats))
	}

	tx, err := svc.repo.CreateBulkTransaction(traceCtx, BulkTransaction{
		ID:             uuid.NewString(),
		OrganizationID: ib.OrganizationID,
		UserID:         usr.ID,
		Seats:          ib.Seats,
		CourseIDs:      ib.CourseIDs,
		Reference:      newReference(),
		Amount:         core.ToMinorUnits(total),
		Status:         StatusPending,
		CreatedAt:      time.Now().UTC(),
	})
	if err != nil {
		return InitResult{}, pkgerrors.Wrap(err, "creating bulk transaction")
	}
	authURL, err := svc.gateway.Initialize(traceCtx, GatewayInit{
		Amount:      tx.Amount,
		Email:       usr.Email,
		Reference:   tx.Reference,
		CallbackURL: svc.conf.Paystack.CallbackURL,
	})
	if err != nil {
		span.RecordError(err)
		return InitResult{}, pkgerrors.Wrap(err, "initializing payment")
	}
	return InitResult{AuthorizationURL: authURL, Reference: tx.Reference}, nil
}

func (svc *service) VerifyBulk(ctx context.Context, usr user.User, ref string) (string, error) {
	traceCtx, span := svc.tracer.Start(ctx, "VerifyBulk")
	defer span.End()

	tx, err := svc.repo.GetBulkTransactionByReference(traceCtx, ref)
	if err != nil {
		return "", err
	}
	if tx.UserID != usr.ID {
		return "", ErrTransactionNotFound
	}
	if tx.Status == StatusSuccess {
		if err = svc.completeBulkTransaction(traceCtx, tx); err != nil {
			return "", err
		}
		return StatusSuccess, nil
	}

	status, err := svc.gateway.Verify(traceCtx, ref)
	if err != nil {
		span.RecordError(err)
		return "", pkgerrors.Wrap(err, "verifying payment")
	}
	if status != StatusSuccess {
		if err = svc.repo.MarkBulkTransactionFailed(traceCtx, tx.ID); err != nil {
			return "", pkgerrors.Wrap(err, "marking bulk transaction failed")
		}
		return StatusFailed, nil
	}
	if err = svc.completeBulkTransaction(traceCtx, tx); err != nil {
		return "", err
	}
	return StatusSuccess, nil
}

// completeBulkTransaction marks the transaction successful and notifies the listeners.
// Listeners run on every call and must be idempotent on the transaction reference.
func (svc *service) completeBulkTransaction(ctx context.Context, tx BulkTransaction) error {
	paidAt := time.Now().UTC()
	changed, err := svc.repo.MarkBulkTransactionPaid(ctx, tx.ID, paidAt)
	if err != nil {
		return pkgerrors.Wrap(err, "marking bulk transaction paid")
	}
	tx.Status = StatusSuccess
	if changed || tx.PaidAt == nil {
		tx.PaidAt = &paidAt
	}
	for _, l := range svc.listeners {
		if err = l.BulkPurchaseCompleted(ctx, tx); err != nil {
			return pkgerrors.Wrap(err, "completing bulk purchase")
		}
	}
	return nil
}

// validSignature checks the hex encoded HMAC-SHA512 of the body, keyed with the gateway secret.
func (svc *service) validSignature(signature string, body []byte) bool {
	mac := hmac.New(sha512.New, []byte(svc.conf.Paystack.SecretKey))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (svc *service) HandleWebhook(ctx context.Context, signature string, body []byte) error {
	traceCtx, span := svc.tracer.Start(ctx, "HandleWebhook")
	defer span.End()

	if signature == "" || !svc.validSignature(signature, body) {
		return ErrInvalidSignature
	}

	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return core.NewValidationError(pkgerrors.Wrap(err, "decoding event"))
	}
	span.SetAttributes(attribute.String("event", event.Event), attribute.String("reference", event.Data.Reference))
	if event.Event != eventChargeSuccess || event.Data.Reference == "" {
		return nil
	}

	tx, err := svc.repo.GetTransactionByReference(traceCtx, event.Data.Reference)
	if err == nil {
		return svc.completeTransaction(traceCtx, tx)
	}
	if pkgerrors.Cause(err) != ErrTransactionNotFound {
		return pkgerrors.Wrap(err, "finding transaction")
	}

	btx, err := svc.repo.GetBulkTransactionByReference(traceCtx, event.Data.Reference)
	if err == nil {
		return svc.completeBulkTransaction(traceCtx, btx)
	}
	if pkgerrors.Cause(err) != ErrTransactionNotFound {
		return pkgerrors.Wrap(err, "finding bulk transaction")
	}
	svc.logger.Warn(fmt.Sprintf("payment.HandleWebhook: unknown reference %q", event.Data.Reference))
	return nil
}
