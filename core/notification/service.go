package notification

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/acadamier/backend/core"
	"github.com/acadamier/backend/core/course"
	"github.com/acadamier/backend/core/payment"
	"github.com/acadamier/backend/core/progress"
	"github.com/acadamier/backend/core/team"
	"github.com/acadamier/backend/core/user"
)

const TaskSendEmail = "notification.send_email"

var ErrNotFound = core.NewNotFoundError("notification not found")

type (
	Repository interface {
		CreateNotification(ctx context.Context, ntf Notification) (Notification, error)
		// ListNotifications returns the notifications of a user, newest first.
		ListNotifications(ctx context.Context, recipientID string) ([]Notification, error)
		GetNotification(ctx context.Context, id string) (Notification, error)
		UpdateNotification(ctx context.Context, ntf Notification) (Notification, error)
		// MarkAllRead marks every unread notification of the user as read and returns how many were.
		MarkAllRead(ctx context.Context, recipientID string) (int, error)

		GetRecipient(ctx context.Context, userID string) (Recipient, error)
		// ListCourseEnrollees returns the users enrolled in the course.
		ListCourseEnrollees(ctx context.Context, courseID string) ([]Recipient, error)
	}

	Service interface {
		user.SignupListener
		course.LessonListener
		payment.EnrollmentListener
		progress.Listener
		team.InviteListener

		// Notify stores an in-app notification for the recipient and emails it to them in the background.
		Notify(ctx context.Context, rcpt Recipient, msg Message) (Notification, error)
		List(ctx context.Context, recipientID string) ([]Notification, error)
		MarkRead(ctx context.Context, recipientID, id string) (Notification, error)
		MarkAllRead(ctx context.Context, recipientID string) (int, error)
	}

	service struct {
		repo    Repository
		tasks   core.TaskQueue
		mailSvc core.EmailService
		logger  core.Logger
		tracer  trace.Tracer
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, tasks core.TaskQueue, mailSvc core.EmailService, logger core.Logger) Service {
	return &service{
		repo:    repo,
		tasks:   tasks,
		mailSvc: mailSvc,
		logger:  logger,
		tracer:  otel.Tracer("notification/service"),
	}
}

func (svc *service) Notify(ctx context.Context, rcpt Recipient, msg Message) (Notification, error) {
	traceCtx, span := svc.tracer.Start(ctx, "Notify")
	defer span.End()

	ntf, err := svc.repo.CreateNotification(traceCtx, Notification{
		ID:          uuid.NewString(),
		RecipientID: rcpt.ID,
		Verb:        msg.Verb,
		Data:        msg.Data,
		Link:        msg.Link,
		Unread:      true,
		Timestamp:   time.Now().UTC(),
	})
	if err != nil {
		span.RecordError(err)
		return Notification{}, pkgerrors.Wrap(err, "creating notification")
	}

	if rcpt.Email != "" && msg.Subject != "" {
		email := &core.EmailMessage{
			To:      []mail.Address{{Name: rcpt.DisplayName(), Address: rcpt.Email}},
			Subject: msg.Subject,
			BodyStr: msg.Body,
			// html part only, BodyStr wins for text/plain
			TemplateName: "notification",
			TemplateData: map[string]string{"Name": rcpt.DisplayName(), "Verb": msg.Verb, "Link": msg.Link},
		}
		// not retried here: SendMessages is asynchronous and the email service retries delivery itself
		svc.tasks.Enqueue(core.Task{
			Name: TaskSendEmail,
			Run: func(context.Context) error {
				svc.mailSvc.SendMessages(email)
				return nil
			},
		})
	}
	return ntf, nil
}

// notify is the fire-and-forget flavor of Notify used by event listeners.
func (svc *service) notify(ctx context.Context, userID string, build func(rcpt Recipient) Message) {
	rcpt, err := svc.repo.GetRecipient(ctx, userID)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("notification.notify: finding recipient %s: %v", userID, err), err)
		return
	}
	if _, err = svc.Notify(ctx, rcpt, build(rcpt)); err != nil {
		svc.logger.Error(fmt.Sprintf("notification.notify: %v", err), err)
	}
}

func (svc *service) List(ctx context.Context, recipientID string) ([]Notification, error) {
	return svc.repo.ListNotifications(ctx, recipientID)
}

func (svc *service) MarkRead(ctx context.Context, recipientID, id string) (Notification, error) {
	traceCtx, span := svc.tracer.Start(ctx, "MarkRead")
	defer span.End()

	ntf, err := svc.repo.GetNotification(traceCtx, id)
	if err != nil {
		return Notification{}, err
	}
	if ntf.RecipientID != recipientID {
		return Notification{}, ErrNotFound
	}
	if !ntf.Unread {
		return ntf, nil
	}
	ntf.Unread = false
	return svc.repo.UpdateNotification(traceCtx, ntf)
}

func (svc *service) MarkAllRead(ctx context.Context, recipientID string) (int, error) {
	return svc.repo.MarkAllRead(ctx, recipientID)
}
