package services

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"strings"

	"github.com/nimasrn/lending-admin/internal/model"
	"github.com/nimasrn/lending-admin/internal/repository"
	"github.com/nimasrn/lending-admin/pkg/logger"
	"github.com/nimasrn/lending-admin/pkg/pg"
	"gorm.io/datatypes"
)

const ModuleIntegrations = "integrations"

type DeliveryRecorder interface {
	ApplyDelivery(ctx context.Context, providerID string, status model.CommunicationStatus, reason string) (*model.Communication, error)
}

type WebhookRepository interface {
	ActiveByProvider(ctx context.Context, provider string) (*model.APIIntegration, error)
	AddWebhookLog(ctx context.Context, l *model.WebhookLog) error
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type IntegrationService struct {
	repo   WebhookRepository
	comms  DeliveryRecorder
	secret string

	APIs        *Resource[model.APIIntegration]
	WebhookLogs *Resource[model.WebhookLog]
}

func NewIntegrationService(db *pg.DB, repo WebhookRepository, comms DeliveryRecorder, tenants TenantDirectory, audit *AuditService, secret string) *IntegrationService {
	s := &IntegrationService{
		repo:   repo,
		comms:  comms,
		secret: secret,
	}
	s.APIs = NewResource(ResourceConfig[model.APIIntegration]{
		Name:      "API integration",
		Module:    ModuleIntegrations,
		Store:     repository.NewStore[model.APIIntegration](db, repository.APIIntegrationOptions()),
		Audit:     audit,
		Tenants:   tenants,
		Scoped:    true,
		CheckBody: checkConfigObject,
	})
	s.WebhookLogs = NewResource(ResourceConfig[model.WebhookLog]{
		Name:   "Webhook log",
		Store:  repository.NewStore[model.WebhookLog](db, repository.WebhookLogOptions()),
		Scoped: true,
	})
	return s
}

// checkConfigObject rejects a config that is present but not a JSON object.
func checkConfigObject(body []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return Invalid("request body must be a JSON object")
	}
	raw, ok := m["config"]
	if !ok {
		return nil
	}
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "null" || strings.HasPrefix(trimmed, "{") {
		return nil
	}
	return InvalidFields(map[string]string{"config": "config must be a JSON object"})
}

// deliveryStatus maps a provider callback status to a communication status.
func deliveryStatus(s string) (model.CommunicationStatus, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DELIVERED", "SENT":
		return model.CommSent, true
	case "FAILED", "UNDELIVERED", "REJECTED":
		return model.CommFailed, true
	}
	return "", false
}

// Receive stores a provider callback and applies any delivery status it
// carries. token must equal the configured webhook secret.
func (s *IntegrationService) Receive(ctx context.Context, provider, token string, payload []byte) (*model.WebhookLog, error) {
	if s.secret == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.secret)) != 1 {
		return nil, unauthorized("Invalid webhook token")
	}
	if !json.Valid(payload) {
		return nil, Invalid("payload must be valid JSON")
	}
	var ev model.DeliveryEvent
	_ = json.Unmarshal(payload, &ev)

	entry := &model.WebhookLog{
		Event:   strings.TrimSpace(ev.Event),
		Payload: datatypes.JSON(payload),
	}
	if entry.Event == "" {
		entry.Event = provider
	}
	integration, err := s.repo.ActiveByProvider(ctx, provider)
	switch {
	case errors.Is(err, repository.ErrNotFound):
	case err != nil:
		return nil, err
	default:
		tid := integration.TenantID
		entry.TenantID = &tid
		entry.IntegrationID = &integration.ID
	}

	err = s.repo.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.AddWebhookLog(ctx, entry); err != nil {
			return err
		}
		return s.applyDelivery(ctx, ev)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *IntegrationService) applyDelivery(ctx context.Context, ev model.DeliveryEvent) error {
	if ev.MessageID == "" || ev.Status == "" {
		return nil
	}
	status, ok := deliveryStatus(ev.Status)
	if !ok {
		return nil
	}
	_, err := s.comms.ApplyDelivery(ctx, ev.MessageID, status, ev.Error)
	if errors.Is(err, repository.ErrNotFound) {
		logger.Debug("[integrations] delivery report for unknown message", "message_id", ev.MessageID)
		return nil
	}
	return err
}
