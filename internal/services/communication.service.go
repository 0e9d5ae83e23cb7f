package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/nimasrn/lending-admin/internal/model"
	"github.com/nimasrn/lending-admin/internal/repository"
	"github.com/nimasrn/lending-admin/pkg/logger"
	"github.com/nimasrn/lending-admin/pkg/pg"
	"github.com/nimasrn/lending-admin/pkg/validate"
)

const ModuleCommunications = "communications"

// Publisher hands a message id to the dispatcher.
type Publisher interface {
	PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error)
}

// DispatchJob is the stream payload consumed by the dispatcher.
type DispatchJob struct {
	ID int64 `json:"id"`
}

type CommunicationService struct {
	store     *repository.Store[model.Communication]
	publisher Publisher
	audit     *AuditService

	Messages *Resource[model.Communication]
}

func NewCommunicationService(db *pg.DB, publisher Publisher, tenants TenantDirectory, audit *AuditService) *CommunicationService {
	s := &CommunicationService{
		store:     repository.NewStore[model.Communication](db, repository.CommunicationOptions()),
		publisher: publisher,
		audit:     audit,
	}
	s.Messages = NewResource(ResourceConfig[model.Communication]{
		Name:    "Message",
		Module:  ModuleCommunications,
		Store:   s.store,
		Audit:   audit,
		Tenants: tenants,
		Scoped:  true,
		BeforeCreate: func(_ context.Context, _ *model.Actor, c *model.Communication) error {
			c.Status = model.CommPending
			c.ProviderMessageID, c.Error, c.SentAt = "", "", nil
			return checkRecipient(c)
		},
	})
	return s
}

// checkRecipient requires an email address for EMAIL and a phone number for
// SMS and WHATSAPP.
func checkRecipient(c *model.Communication) error {
	c.To = strings.TrimSpace(c.To)
	if c.To == "" {
		return nil
	}
	var tag string
	switch c.Channel {
	case model.ChannelEmail:
		tag = "email"
	case model.ChannelSMS, model.ChannelWhatsApp:
		tag = "phone"
	default:
		return nil
	}
	if msg := validate.Var(c.To, tag); msg != "" {
		return InvalidFields(map[string]string{"to": fmt.Sprintf("%s recipient %s", strings.ToLower(string(c.Channel)), msg)})
	}
	return nil
}

// Create stores the message as PENDING and queues it for delivery.
func (s *CommunicationService) Create(ctx context.Context, actor *model.Actor, body []byte) (*model.Communication, error) {
	c, err := s.Messages.Create(ctx, actor, body)
	if err != nil {
		return nil, err
	}
	if err := s.publish(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Resend queues a FAILED message again.
func (s *CommunicationService) Resend(ctx context.Context, actor *model.Actor, key string) (*model.Communication, error) {
	c, err := s.Messages.Get(ctx, actor, key)
	if err != nil {
		return nil, err
	}
	if c.Status != model.CommFailed {
		return nil, Invalid("Only failed messages can be resent")
	}
	c.Status = model.CommPending
	c.Error = ""
	err = s.store.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.store.Update(ctx, c); err != nil {
			return storeError(err, "Message")
		}
		return s.audit.Record(ctx, actor, model.ActionUpdate, ModuleCommunications, fmt.Sprintf("Resent message %d", c.ID))
	})
	if err != nil {
		return nil, err
	}
	if err := s.publish(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CommunicationService) publish(ctx context.Context, c *model.Communication) error {
	_, err := s.publisher.PublishJSON(ctx, DispatchJob{ID: c.ID}, map[string]string{"channel": string(c.Channel)})
	if err != nil {
		logger.Error("[communications] publish failed", "id", c.ID, "error", err)
		return err
	}
	return nil
}
