package paystack

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/acadamier/backend/core"
	"github.com/acadamier/backend/core/payment"
)

type (
	// Client talks to the Paystack transaction API.
	Client struct {
		secretKey string
		baseURL   string
	}

	envelope struct {
		Status  bool            `json:"status"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}

	initData struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	}

	verifyData struct {
		Status    string `json:"status"`
		Reference string `json:"reference"`
		Amount    int64  `json:"amount"`
	}
)

var _ payment.Gateway = (*Client)(nil)

func NewClient(conf *core.Config) *Client {
	return &Client{
		secretKey: conf.Paystack.SecretKey,
		baseURL:   strings.TrimSuffix(conf.Paystack.BaseURL, "/"),
	}
}

func (c *Client) headers() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + c.secretKey,
		"Content-Type":  "application/json",
	}
}

func (c *Client) do(ctx context.Context, req rest.Request, data interface{}) error {
	res, err := rest.SendWithContext(ctx, req)
	if err != nil {
		return errors.Wrap(err, "calling paystack")
	}

	var env envelope
	if err = json.Unmarshal([]byte(res.Body), &env); err != nil {
		return errors.Wrapf(err, "decoding paystack response (status %d)", res.StatusCode)
	}
	if res.StatusCode >= http.StatusBadRequest || !env.Status {
		return fmt.Errorf("paystack: %s (status %d)", env.Message, res.StatusCode)
	}
	if err = json.Unmarshal(env.Data, data); err != nil {
		return errors.Wrap(err, "decoding paystack data")
	}
	return nil
}

func (c *Client) Initialize(ctx context.Context, init payment.GatewayInit) (string, error) {
	body, err := json.Marshal(map[string]interface{}{
		"amount":       init.Amount,
		"email":        init.Email,
		"reference":    init.Reference,
		"callback_url": init.CallbackURL,
	})
	if err != nil {
		return "", err
	}

	var data initData
	err = c.do(ctx, rest.Request{
		Method:  rest.Post,
		BaseURL: c.baseURL + "/transaction/initialize",
		Headers: c.headers(),
		Body:    body,
	}, &data)
	if err != nil {
		return "", err
	}
	return data.AuthorizationURL, nil
}

func (c *Client) Verify(ctx context.Context, reference string) (string, error) {
	var data verifyData
	err := c.do(ctx, rest.Request{
		Method:  rest.Get,
		BaseURL: c.baseURL + "/transaction/verify/" + url.PathEscape(reference),
		Headers: c.headers(),
	}, &data)
	if err != nil {
		return "", err
	}
	return data.Status, nil
}
