package emailsvc

import (
	"fmt"
	"net/http"
	"net/mail"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/acadamier/backend/core"
)

var (
	host     = "https://api.sendgrid.com"
	endpoint = "/v3/mail/send"

	sendMaxRetries      uint64 = 3
	sendInitialInterval        = time.Second
)

type sendgridService struct {
	key        string
	host       string
	from       *sgmail.Email
	subjPrefix string
	logger     core.Logger
}

var _ core.EmailService = (*sendgridService)(nil)

func NewSendgridService(conf *core.Config, logger core.Logger) *sendgridService {
	from := conf.DefaultFromEmail()
	return &sendgridService{
		key:        conf.SendgridApiKey,
		host:       host,
		from:       sgmail.NewEmail(from.Name, from.Address),
		subjPrefix: "[" + conf.AppName + "] ",
		logger:     logger,
	}
}

func (svc sendgridService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		msg := msg
		go func() {
			if err := msg.Render(); err != nil {
				svc.logger.Error(fmt.Sprintf("rendering email: %v", err), err)
				return
			}
			if msg.HasRecipients() && msg.HasContent() {
				svc.send(*msg)
			}
		}()
	}
}

func (svc sendgridService) prepare(msg core.EmailMessage) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = svc.subjPrefix + msg.Subject

	for _, to := range msg.To {
		p.AddTos(svc.getSGEmail(to))
	}
	for _, cc := range msg.Cc {
		p.AddCCs(svc.getSGEmail(cc))
	}
	for _, bcc := range msg.Bcc {
		p.AddBCCs(svc.getSGEmail(bcc))
	}

	m := sgmail.NewV3Mail()
	m.SetFrom(svc.from)
	m.AddPersonalizations(p)

	m.AddContent(sgmail.NewContent("text/plain", msg.TextContent))
	if msg.HTMLContent != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTMLContent))
	}
	return m
}

func (svc sendgridService) getSGEmail(addr mail.Address) *sgmail.Email {
	return sgmail.NewEmail(addr.Name, addr.Address)
}

// send posts the message to sendgrid, retrying on network and server errors.
func (svc sendgridService) send(msg core.EmailMessage) {
	body := sgmail.GetRequestBody(svc.prepare(msg))

	op := func() error {
		req := sendgrid.GetRequest(svc.key, endpoint, svc.host)
		req.Method = http.MethodPost
		req.Body = body

		res, err := sendgrid.API(req)
		switch {
		case err != nil:
			return err
		case res.StatusCode >= http.StatusInternalServerError:
			return fmt.Errorf("status: %d - body: %s", res.StatusCode, res.Body)
		case res.StatusCode >= http.StatusBadRequest:
			return backoff.Permanent(fmt.Errorf("status: %d - body: %s", res.StatusCode, res.Body))
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = sendInitialInterval
	if err := backoff.Retry(op, backoff.WithMaxRetries(bo, sendMaxRetries)); err != nil {
		svc.logger.Error(fmt.Sprintf("%+v", errors.Wrap(err, "sending email")), err)
	}
}
