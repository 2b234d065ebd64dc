package emailsvc

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acadamier/backend/core"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

func newTestSendgrid(t *testing.T, handler http.HandlerFunc) sendgridService {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	conf := &core.Config{AppName: "Acadamier", SendgridApiKey: "sg-key"}
	svc := NewSendgridService(conf, nopLogger{})
	svc.host = srv.URL
	return *svc
}

func TestSendgridSend(t *testing.T) {
	var payload map[string]interface{}
	svc := newTestSendgrid(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, endpoint, r.URL.Path)
		assert.Equal(t, "Bearer sg-key", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &payload))
		w.WriteHeader(http.StatusAccepted)
	})

	svc.send(core.EmailMessage{
		To:          []mail.Address{{Name: "Ada", Address: "ada@example.com"}},
		Subject:     "Hello",
		TextContent: "Hi there",
	})

	require.NotNil(t, payload)
	personalizations := payload["personalizations"].([]interface{})
	p := personalizations[0].(map[string]interface{})
	assert.Equal(t, "[Acadamier] Hello", p["subject"])
	content := payload["content"].([]interface{})
	assert.Len(t, content, 1, "no html part without html content")
}

func TestSendgridRetries(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantCalls int32
	}{
		{name: "server error is retried", status: http.StatusServiceUnavailable, wantCalls: int32(sendMaxRetries) + 1},
		{name: "client error is not retried", status: http.StatusBadRequest, wantCalls: 1},
	}

	sendInitialInterval = time.Millisecond
	defer func() { sendInitialInterval = time.Second }()

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var calls int32
			svc := newTestSendgrid(t, func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(tc.status)
			})
			svc.send(core.EmailMessage{To: []mail.Address{{Address: "a@b.co"}}, TextContent: "x"})
			assert.Equal(t, tc.wantCalls, atomic.LoadInt32(&calls))
		})
	}
}
