package logsvc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/acadamier/backend/core"
	"github.com/acadamier/backend/core/user"
)

func TestRollbarLoggerFields(t *testing.T) {
	obsCore, logs := observer.New(zap.DebugLevel)
	logger := NewRollbarLogger(zap.New(obsCore), &core.Config{Env: "TEST"})
	logger.Enable(false)

	usr := user.User{ID: "u-1", Username: "ada", Email: "ada@example.com"}
	logger.Warn("payment failed", errors.New("boom"), map[string]interface{}{"reference": "ref-1"}, usr)

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		ctx := entries[0].ContextMap()
		assert.Equal(t, "payment failed", entries[0].Message)
		assert.Equal(t, "u-1", ctx["user_id"])
		assert.Equal(t, "ref-1", ctx["reference"])
		assert.Equal(t, "boom", ctx["error_0"])
	}
}
