package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/minndara/site-admin/pkg/logger"
	"github.com/minndara/site-admin/pkg/messaging"
	"github.com/minndara/site-admin/pkg/metrics"
)

// ChannelServicesChanged carries a ServiceChanged for every catalog mutation.
const ChannelServicesChanged = "services.changed"

type Action string

const (
	ActionCreated  Action = "created"
	ActionUpdated  Action = "updated"
	ActionToggled  Action = "toggled"
	ActionMoved    Action = "moved"
	ActionDeleted  Action = "deleted"
	ActionMigrated Action = "migrated"
	ActionSettings Action = "settings"
)

type ServiceChanged struct {
	Category string    `json:"category"`
	ID       string    `json:"id,omitempty"`
	Action   Action    `json:"action"`
	At       time.Time `json:"at"`
}

type Notifier interface {
	ServicesChanged(ctx context.Context, category, id string, action Action)
}

// Service publishes change notifications. Publishing never fails the caller:
// the mutation has already been stored, so errors are logged and counted.
type Service struct {
	broker  messaging.Broker
	logger  *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewService(broker messaging.Broker, log *logger.Logger, m *metrics.Metrics) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{broker: broker, logger: log, metrics: m, now: time.Now}
}

func (s *Service) ServicesChanged(ctx context.Context, category, id string, action Action) {
	if s == nil || s.broker == nil {
		return
	}
	msg := ServiceChanged{Category: category, ID: id, Action: action, At: s.now().UTC()}
	err := s.broker.Publish(ctx, ChannelServicesChanged, msg)
	s.metrics.IncPublished(ChannelServicesChanged, err)
	if err != nil {
		s.logger.Error(err, "failed to publish change event",
			"category", category, "id", id, "action", string(action))
	}
}

// Subscribe decodes ServiceChanged messages and hands them to fn until ctx is
// done or the broker closes the subscription.
func Subscribe(ctx context.Context, broker messaging.Broker, log *logger.Logger, fn func(ServiceChanged)) error {
	msgs, err := broker.Subscribe(ctx, ChannelServicesChanged)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", ChannelServicesChanged, err)
	}
	if log == nil {
		log = logger.Nop()
	}

	go func() {
		for raw := range msgs {
			var msg ServiceChanged
			if err := json.Unmarshal(raw, &msg); err != nil {
				log.Warn("discarding malformed change event", "error", err.Error())
				continue
			}
			fn(msg)
		}
	}()
	return nil
}
