package settings

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/minndara/site-admin/internal/model"
	"github.com/minndara/site-admin/internal/repository"
	"github.com/minndara/site-admin/internal/service/event"
	"github.com/minndara/site-admin/pkg/logger"
)

const DefaultWhatsAppMessage = "Hola, quisiera hacer una consulta sobre sus servicios."

var ErrInvalidVariant = errors.New("invalid settings variant")

type Servicer interface {
	Get(ctx context.Context, variant string) (*model.Settings, error)
	Save(ctx context.Context, variant string, fields map[string]interface{}) (*model.Settings, error)
}

type Service struct {
	store  repository.DocumentStore
	events event.Notifier
	logger *logger.Logger
	now    func() time.Time
}

func NewService(store repository.DocumentStore, events event.Notifier, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{store: store, events: events, logger: log, now: time.Now}
}

// DocumentID maps a variant to its document id: "" is the global "site"
// document, anything else is "site-<variant>".
func DocumentID(variant string) (string, error) {
	variant = strings.ToLower(strings.TrimSpace(variant))
	if variant == "" {
		return model.SiteSettingsID, nil
	}
	for _, r := range variant {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '_' {
			return "", fmt.Errorf("%w: %q", ErrInvalidVariant, variant)
		}
	}
	return model.SiteSettingsID + "-" + variant, nil
}

// Get returns the settings of a variant. A document that was never saved
// yields empty settings.
func (s *Service) Get(ctx context.Context, variant string) (*model.Settings, error) {
	id, err := DocumentID(variant)
	if err != nil {
		return nil, err
	}
	doc, err := s.store.Get(ctx, model.SettingsCollection, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.SettingsFromDocument(nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	return model.SettingsFromDocument(doc), nil
}

// Save merges fields into the settings document and returns the result.
func (s *Service) Save(ctx context.Context, variant string, fields map[string]interface{}) (*model.Settings, error) {
	id, err := DocumentID(variant)
	if err != nil {
		return nil, err
	}

	patch := model.CloneFields(fields)
	delete(patch, "id")
	patch[model.FieldUpdatedAt] = model.Timestamp(s.now())

	if err := s.store.Set(ctx, model.SettingsCollection, id, patch, true); err != nil {
		s.logger.Error(err, "failed to save settings", "id", id)
		return nil, fmt.Errorf("failed to save settings: %w", err)
	}
	if s.events != nil {
		s.events.ServicesChanged(ctx, strings.ToLower(strings.TrimSpace(variant)), "", event.ActionSettings)
	}
	return s.Get(ctx, variant)
}

// WhatsAppLink builds a wa.me link for number with a prefilled message.
// Everything but digits is stripped from number.
func WhatsAppLink(number, text string) string {
	var digits strings.Builder
	for _, r := range number {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	msg := strings.TrimSpace(text)
	if msg == "" {
		msg = DefaultWhatsAppMessage
	}
	return "https://wa.me/" + digits.String() + "?text=" + strings.ReplaceAll(url.QueryEscape(msg), "+", "%20")
}
