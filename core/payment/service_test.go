package payment_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/acadamier/backend/core"
	"github.com/acadamier/backend/core/payment"
	"github.com/acadamier/backend/core/user"
	logsvc "github.com/acadamier/backend/services/logger"
	"github.com/acadamier/backend/services/paystack"
	tasksvc "github.com/acadamier/backend/services/tasks"
	inmemdb "github.com/acadamier/backend/storage/database/inmem"
)

const testSecret = "sk_test_secret"

var errFlaky = errors.New("connection reset")

// flakyPurchaseListener fails its first `failures` calls.
type flakyPurchaseListener struct {
	failures  int
	calls     int
	completed []string // references
}

func (l *flakyPurchaseListener) BulkPurchaseCompleted(_ context.Context, tx payment.BulkTransaction) error {
	l.calls++
	if l.calls <= l.failures {
		return errFlaky
	}
	l.completed = append(l.completed, tx.Reference)
	return nil
}

type bulkFixture struct {
	repo     payment.Repository
	gateway  *paystack.FakeGateway
	listener *flakyPurchaseListener
	svc      payment.Service
	boss     user.User
	tx       payment.BulkTransaction
}

func setupBulk(t *testing.T) bulkFixture {
	t.Helper()
	conf := &core.Config{TestMode: true, Paystack: core.PaystackConfig{SecretKey: testSecret}}
	logger := logsvc.NewRollbarLogger(zap.NewNop(), conf)
	logger.Enable(false)

	repo := inmemdb.NewPaymentRepository(inmemdb.Open())
	gateway := paystack.NewFakeGateway()
	listener := &flakyPurchaseListener{failures: 1}
	svc := payment.NewService(repo, gateway, nil, nil, nil, nil, tasksvc.NewSyncQueue(), conf, logger, listener)

	boss := user.User{ID: "boss", Email: "boss@acme.test", Roles: []string{user.RoleStudent}}
	tx, err := repo.CreateBulkTransaction(context.Background(), payment.BulkTransaction{
		ID:             "btx",
		OrganizationID: "org",
		UserID:         boss.ID,
		Seats:          2,
		CourseIDs:      []string{"go"},
		Reference:      "ref-bulk",
		Amount:         8000,
		Status:         payment.StatusPending,
		CreatedAt:      time.Now().UTC(),
	})
	require.NoError(t, err)
	gateway.SetStatus(tx.Reference, payment.StatusSuccess)

	return bulkFixture{repo: repo, gateway: gateway, listener: listener, svc: svc, boss: boss, tx: tx}
}

func sign(body []byte) string {
	mac := hmac.New(sha512.New, []byte(testSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestService_VerifyBulk_resumes(t *testing.T) {
	fx := setupBulk(t)
	ctx := context.Background()

	_, err := fx.svc.VerifyBulk(ctx, fx.boss, fx.tx.Reference)
	require.ErrorIs(t, err, errFlaky)
	stored, err := fx.repo.GetBulkTransactionByReference(ctx, fx.tx.Reference)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusSuccess, stored.Status, "the payment itself went through")

	status, err := fx.svc.VerifyBulk(ctx, fx.boss, fx.tx.Reference)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusSuccess, status)
	assert.Equal(t, 2, fx.listener.calls)
	assert.Equal(t, []string{fx.tx.Reference}, fx.listener.completed)
}

func TestService_HandleWebhook_resumesBulk(t *testing.T) {
	fx := setupBulk(t)
	ctx := context.Background()
	body := []byte(fmt.Sprintf(`{"event": "charge.success", "data": {"reference": %q}}`, fx.tx.Reference))

	require.ErrorIs(t, fx.svc.HandleWebhook(ctx, sign(body), body), errFlaky)
	require.NoError(t, fx.svc.HandleWebhook(ctx, sign(body), body), "gateway redelivery completes the purchase")
	assert.Equal(t, []string{fx.tx.Reference}, fx.listener.completed)

	assert.Equal(t, payment.ErrInvalidSignature, fx.svc.HandleWebhook(ctx, "bogus", body))
}
