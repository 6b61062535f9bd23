package event

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minndara/site-admin/pkg/logger"
	"github.com/minndara/site-admin/pkg/messaging"
)

type failingBroker struct{ messaging.Broker }

func (failingBroker) Publish(context.Context, string, interface{}) error {
	return errors.New("broker down")
}

func TestServicesChanged_RoundTripsThroughBroker(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broker := messaging.NewLocalBroker()
	defer broker.Close()

	got := make(chan ServiceChanged, 1)
	require.NoError(t, Subscribe(ctx, broker, logger.Nop(), func(msg ServiceChanged) {
		got <- msg
	}))

	svc := NewService(broker, logger.Nop(), nil)
	svc.ServicesChanged(ctx, "blanca", "abc", ActionMoved)

	select {
	case msg := <-got:
		assert.Equal(t, "blanca", msg.Category)
		assert.Equal(t, "abc", msg.ID)
		assert.Equal(t, ActionMoved, msg.Action)
		assert.False(t, msg.At.IsZero())
	case <-time.After(time.Second):
		t.Fatal("change event not delivered")
	}
}

func TestServicesChanged_BrokerErrorIsSwallowed(t *testing.T) {
	svc := NewService(failingBroker{}, logger.Nop(), nil)
	assert.NotPanics(t, func() {
		svc.ServicesChanged(context.Background(), "roja", "1", ActionDeleted)
	})
}

func TestServicesChanged_NilServiceIsNoop(t *testing.T) {
	var svc *Service
	assert.NotPanics(t, func() {
		svc.ServicesChanged(context.Background(), "roja", "1", ActionCreated)
	})
}
