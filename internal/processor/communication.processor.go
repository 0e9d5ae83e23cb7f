package processor

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/nimasrn/lending-admin/internal/gateways"
	"github.com/nimasrn/lending-admin/internal/model"
	"github.com/nimasrn/lending-admin/internal/queue"
	"github.com/nimasrn/lending-admin/internal/repository"
	"github.com/nimasrn/lending-admin/internal/services"
	"github.com/nimasrn/lending-admin/pkg/logger"
	"github.com/nimasrn/lending-admin/pkg/prom"
)

type CommunicationStore interface {
	GetByID(ctx context.Context, id int64) (*model.Communication, error)
	MarkSent(ctx context.Context, id int64, providerID string, at time.Time) error
	MarkFailed(ctx context.Context, id int64, providerID, reason string) error
}

type SMSSender interface {
	SendSMS(ctx context.Context, req *gateways.SMSRequest) (*gateways.SMSResult, error)
}

type EmailSender interface {
	SendEmail(ctx context.Context, req *gateways.EmailRequest) error
}

// CommunicationProcessor delivers PENDING communications and records the
// outcome. Transport errors leave the message PENDING for the next delivery
// of the stream entry.
type CommunicationProcessor struct {
	store CommunicationStore
	sms   SMSSender
	email EmailSender
	guard *DeliveryGuard
	now   func() time.Time
}

func NewCommunicationProcessor(store CommunicationStore, sms SMSSender, email EmailSender, guard *DeliveryGuard) *CommunicationProcessor {
	return &CommunicationProcessor{
		store: store,
		sms:   sms,
		email: email,
		guard: guard,
		now:   time.Now,
	}
}

func decodeJob(d *queue.Delivery) (int64, bool) {
	var job services.DispatchJob
	if err := json.Unmarshal(d.Data, &job); err != nil || job.ID <= 0 {
		logger.Error("[dispatch] malformed entry dropped", "entry", d.ID, "data", string(d.Data), "error", err)
		return 0, false
	}
	return job.ID, true
}

// dispatchKey scopes the guard to one stream entry, so a resend published as
// a new entry is not mistaken for a redelivery of the old one.
func dispatchKey(id int64, d *queue.Delivery) string {
	return strconv.FormatInt(id, 10) + "@" + d.ID
}

func (p *CommunicationProcessor) Process(ctx context.Context, d *queue.Delivery) error {
	id, ok := decodeJob(d)
	if !ok {
		return nil
	}
	key := dispatchKey(id, d)

	claim, err := p.guard.Acquire(ctx, key)
	switch {
	case errors.Is(err, ErrAlreadyProcessed):
		logger.Info("[dispatch] already dispatched, skipping", "id", id)
		return nil
	case err != nil:
		return err
	}
	defer claim.Release(ctx)

	c, err := p.store.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		logger.Warn("[dispatch] communication gone, dropping entry", "id", id)
		return nil
	}
	if err != nil {
		return err
	}
	if c.Status != model.CommPending {
		logger.Info("[dispatch] communication already settled", "id", id, "status", string(c.Status))
		return claim.Done(ctx)
	}

	start := p.now()
	outcome, err := p.deliver(ctx, c)
	if err != nil {
		prom.IncDispatched(string(c.Channel), "RETRY")
		logger.Warn("[dispatch] delivery attempt failed",
			"id", id,
			"channel", string(c.Channel),
			"attempt", claim.Attempts+1,
			"deliveries", d.Deliveries,
			"error", err,
		)
		if ferr := claim.Fail(ctx, err); ferr != nil {
			logger.Warn("[dispatch] release after failure", "id", id, "error", ferr)
		}
		return err
	}

	p.settle(ctx, c, outcome)
	prom.IncDispatched(string(c.Channel), string(outcome.status))
	prom.ObserveDeliveryDuration(string(c.Channel), p.now().Sub(start))

	// the message left, a failed status write must not resend it
	if err := claim.Done(ctx); err != nil {
		logger.Error("[dispatch] done marker write failed", "id", id, "error", err)
	}
	return nil
}

type outcome struct {
	status     model.CommunicationStatus
	providerID string
	reason     string
}

// deliver returns an error only when the message may not have left.
func (p *CommunicationProcessor) deliver(ctx context.Context, c *model.Communication) (*outcome, error) {
	switch c.Channel {
	case model.ChannelSMS, model.ChannelWhatsApp:
		res, err := p.sms.SendSMS(ctx, &gateways.SMSRequest{
			MessageID: strconv.FormatInt(c.ID, 10),
			To:        c.To,
			Channel:   string(c.Channel),
			Body:      c.Message,
		})
		if err != nil {
			return nil, err
		}
		o := &outcome{status: model.CommSent, providerID: res.MessageID}
		if res.Status == gateways.StatusFailed {
			o.status, o.reason = model.CommFailed, res.Reason()
		}
		return o, nil

	case model.ChannelEmail:
		err := p.email.SendEmail(ctx, &gateways.EmailRequest{To: c.To, Subject: c.Subject, Body: c.Message})
		if err != nil {
			return nil, err
		}
		return &outcome{status: model.CommSent}, nil
	}
	return &outcome{status: model.CommFailed, reason: "unsupported channel " + string(c.Channel)}, nil
}

func (p *CommunicationProcessor) settle(ctx context.Context, c *model.Communication, o *outcome) {
	var err error
	if o.status == model.CommSent {
		err = p.store.MarkSent(ctx, c.ID, o.providerID, p.now())
	} else {
		err = p.store.MarkFailed(ctx, c.ID, o.providerID, o.reason)
	}
	switch {
	case errors.Is(err, repository.ErrStale):
		logger.Info("[dispatch] status changed meanwhile", "id", c.ID)
	case err != nil:
		logger.Error("[dispatch] status write failed", "id", c.ID, "status", string(o.status), "error", err)
	default:
		logger.Info("[dispatch] communication settled", "id", c.ID, "channel", string(c.Channel), "status", string(o.status))
	}
}

// Exhausted fails the communication with the last recorded error once the
// stream gave up on it.
func (p *CommunicationProcessor) Exhausted(ctx context.Context, d *queue.Delivery) {
	id, ok := decodeJob(d)
	if !ok {
		return
	}
	key := dispatchKey(id, d)
	reason := p.guard.LastError(ctx, key)
	if reason == "" {
		reason = "delivery attempts exhausted"
	}

	err := p.store.MarkFailed(ctx, id, "", reason)
	switch {
	case err == nil:
		prom.IncDispatched(d.Meta["channel"], string(model.CommFailed))
		logger.Warn("[dispatch] communication failed after retries", "id", id, "deliveries", d.Deliveries, "reason", reason)
	case errors.Is(err, repository.ErrStale):
	default:
		logger.Error("[dispatch] marking exhausted communication failed", "id", id, "error", err)
	}
	p.guard.Forget(ctx, key)
}
