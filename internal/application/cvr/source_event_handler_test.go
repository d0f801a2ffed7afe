package cvr

import (
	"context"
	"testing"

	"github.com/erp/cvr/internal/domain/cvr"
	"github.com/erp/cvr/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSourceDocumentChangedHandler(t *testing.T) {
	env := newLedgerEnv(t)
	handler := NewSourceDocumentChangedHandler(env.rec, nil, zap.NewNop())

	assert.Equal(t, []string{cvr.EventTypeSourceDocumentChanged}, handler.EventTypes())

	t.Run("reconciles the changed document", func(t *testing.T) {
		contract := env.addContract(nil, "active", "1500")
		event := cvr.NewSourceDocumentChangedEvent(uuid.New(), env.tenantID, cvr.SourceTypeContract, contract)

		require.NoError(t, handler.Handle(context.Background(), event))
		assert.Equal(t, cvr.FactStatusActive, env.commitment(contract).Status)
	})

	t.Run("rejects other events", func(t *testing.T) {
		other := shared.NewBaseDomainEvent("something.else", "X", uuid.New(), env.tenantID)
		err := handler.Handle(context.Background(), &other)
		assert.Error(t, err)
	})

	t.Run("propagates failures", func(t *testing.T) {
		event := cvr.NewSourceDocumentChangedEvent(uuid.Nil, uuid.Nil, cvr.SourceTypeContract, uuid.New())
		err := handler.Handle(context.Background(), event)
		assert.ErrorIs(t, err, cvr.ErrMissingTenant)
	})
}
