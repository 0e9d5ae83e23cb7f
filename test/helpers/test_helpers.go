// Package helpers assembles an in-process api plus dispatcher on sqlite and
// miniredis for end to end tests.
package helpers

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/nimasrn/lending-admin/internal/auth"
	"github.com/nimasrn/lending-admin/internal/handlers"
	"github.com/nimasrn/lending-admin/internal/processor"
	"github.com/nimasrn/lending-admin/internal/queue"
	"github.com/nimasrn/lending-admin/internal/repository"
	"github.com/nimasrn/lending-admin/internal/services"
	xhttp "github.com/nimasrn/lending-admin/pkg/http"
	"github.com/nimasrn/lending-admin/pkg/pg"
	"github.com/nimasrn/lending-admin/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

const WebhookSecret = "hook-secret"

type Env struct {
	DB      *pg.DB
	Redis   *miniredis.Miniredis
	Adapter redis.RedisAdapter
	Stream  *queue.Stream
	Tokens  *auth.Tokens

	Users   *repository.UserRepository
	Tenants *repository.TenantRepository
	Comms   *repository.CommunicationRepository

	Messages *services.CommunicationService
	handler  xhttp.RequestHandler
}

func StreamConfig() queue.Config {
	return queue.Config{
		Stream:        "e2e:communications",
		Group:         "e2e-dispatchers",
		Consumer:      "e2e",
		MaxDeliveries: 3,
		ClaimAfter:    200 * time.Millisecond,
		PollInterval:  20 * time.Millisecond,
		BatchSize:     10,
		MaxLen:        1000,
		DeadLetter:    true,
	}
}

func NewEnv(t *testing.T) *Env {
	t.Helper()

	db := repository.NewTestDB(t)
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	adapter := redis.NewFromClient("e2e:", client)

	stream, err := queue.New(adapter, StreamConfig())
	require.NoError(t, err)

	enforcer, err := auth.NewEnforcer()
	require.NoError(t, err)

	env := &Env{
		DB:      db,
		Redis:   mr,
		Adapter: adapter,
		Stream:  stream,
		Tokens:  auth.NewTokens("e2e-secret", time.Hour, 24*time.Hour, adapter),
		Users:   repository.NewUserRepository(db),
		Tenants: repository.NewTenantRepository(db),
		Comms:   repository.NewCommunicationRepository(db),
	}
	guard := auth.NewGuard(env.Tokens, env.Users, auth.NewTenantResolver(env.Tenants, 16, time.Minute), enforcer)

	audit := services.NewAuditService(env.Users)
	env.Messages = services.NewCommunicationService(db, stream, env.Tenants, audit)
	ops := handlers.NewOperationsHandler(
		services.NewDocumentService(db, nil, env.Tenants, env.Tenants, audit, 1<<20),
		env.Messages,
		services.NewComplianceService(db, env.Tenants, audit),
		services.NewIntegrationService(db, repository.NewIntegrationRepository(db), env.Comms, env.Tenants, audit, WebhookSecret),
		services.NewOnboardingService(db, audit),
	)

	s := xhttp.CreateServer()
	s.Use(xhttp.RecoverMiddleware)
	s.Use(xhttp.RequestIDMiddleware)
	handlers.RegisterOperationsRoutes(s.Router.Group("/api/v1"), guard, ops)
	env.handler = s.Handler()
	return env
}

// StartDispatcher runs a dispatcher over the env stream until the test ends.
func (e *Env) StartDispatcher(t *testing.T, sms processor.SMSSender, mail processor.EmailSender) *processor.Dispatcher {
	t.Helper()
	guard := processor.NewDeliveryGuard(e.Adapter, processor.DefaultGuardConfig())
	d := processor.NewDispatcher(e.Adapter, processor.DispatcherConfig{
		Stream:         StreamConfig(),
		Consumers:      2,
		Workers:        4,
		ProcessTimeout: 5 * time.Second,
		ReportInterval: time.Hour,
	}, processor.NewCommunicationProcessor(e.Comms, sms, mail, guard))
	require.NoError(t, d.Start())
	t.Cleanup(d.Stop)
	return d
}

type Response struct {
	Status int
	Body   []byte
}

func (r *Response) Decode(t *testing.T, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(r.Body, v), string(r.Body))
}

// Do runs one request through the full middleware and route chain.
func (e *Env) Do(method, path string, headers map[string]string, body []byte) *Response {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(path)
	ctx.Request.Header.SetContentType("application/json")
	for k, v := range headers {
		ctx.Request.Header.Set(k, v)
	}
	ctx.Request.SetBody(body)

	e.handler(ctx)
	return &Response{Status: ctx.Response.StatusCode(), Body: append([]byte(nil), ctx.Response.Body()...)}
}

func Bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func (e *Env) WaitStatus(t *testing.T, id int64, want string) {
	t.Helper()
	require.Eventually(t, func() bool {
		c, err := e.Comms.GetByID(context.Background(), id)
		return err == nil && string(c.Status) == want
	}, 5*time.Second, 20*time.Millisecond, "communication %d never became %s", id, want)
}
