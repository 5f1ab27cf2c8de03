package reconcile_test

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	reconcile "github.com/goliatone/go-reconcile"
	"github.com/goliatone/go-reconcile/core"
	"github.com/goliatone/go-reconcile/inbound"
	reconcilemigrations "github.com/goliatone/go-reconcile/migrations"
	sqlstore "github.com/goliatone/go-reconcile/store/sql"
	"github.com/goliatone/go-reconcile/verify"
)

const webhookSecret = "whsec-test"

type compositionPersistenceConfig struct {
	dsn string
}

func (c compositionPersistenceConfig) GetDebug() bool                { return false }
func (c compositionPersistenceConfig) GetDriver() string             { return "sqlite3" }
func (c compositionPersistenceConfig) GetServer() string             { return c.dsn }
func (c compositionPersistenceConfig) GetPingTimeout() time.Duration { return time.Second }
func (c compositionPersistenceConfig) GetOtelIdentifier() string     { return "go-reconcile-composition" }

type stack struct {
	service *reconcile.Service
	store   *sqlstore.OrderStore
	handler http.Handler
	facade  *reconcile.Facade
}

// newStack wires sqlite persistence, the verification client against remote,
// the service and the webhook handler the way the server binary does.
func newStack(t *testing.T, remote *httptest.Server) *stack {
	t.Helper()
	dsn := fmt.Sprintf("file:reconcile-composition-%d?mode=memory&cache=shared&_foreign_keys=on", time.Now().UnixNano())
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	client, err := persistence.New(compositionPersistenceConfig{dsn: dsn}, sqlDB, sqlitedialect.New())
	if err != nil {
		_ = sqlDB.Close()
		t.Fatalf("new persistence client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	if _, err := reconcilemigrations.Register(ctx, func(_ context.Context, source reconcilemigrations.Source) error {
		client.RegisterSQLMigrations(source.FS)
		return nil
	}, reconcilemigrations.DialectSQLite); err != nil {
		t.Fatalf("register migrations: %v", err)
	}
	if err := client.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("repository factory: %v", err)
	}

	cfg := reconcile.DefaultConfig()
	cfg.Webhook.Secret = webhookSecret
	cfg.Verification.APIKey = "api-key"
	cfg.Verification.MaxAttempts = 1
	if remote != nil {
		cfg.Verification.BaseURL = remote.URL
	}
	verifier := verify.NewClient(verify.ConfigFromCore(cfg.Verification))

	svc, err := reconcile.NewService(cfg,
		reconcile.WithLogger(glog.Nop()),
		reconcile.WithStore(factory.OrderStore()),
		reconcile.WithPaymentVerifier(verifier),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	dispatcher, err := reconcile.NewWebhookDispatcher(svc.Config().Webhook, svc, glog.Nop())
	if err != nil {
		t.Fatalf("webhook dispatcher: %v", err)
	}
	handler, err := inbound.NewHandler(dispatcher)
	if err != nil {
		t.Fatalf("inbound handler: %v", err)
	}
	facade, err := reconcile.NewFacade(svc)
	if err != nil {
		t.Fatalf("facade: %v", err)
	}
	return &stack{service: svc, store: factory.OrderStore(), handler: handler, facade: facade}
}

func (s *stack) createOrder(t *testing.T, product string) core.Order {
	t.Helper()
	order, err := s.service.CreateOrder(context.Background(), core.CreateOrderRequest{
		TenantID:      "G1",
		OwnerID:       "111111111111111111",
		Product:       product,
		Price:         10,
		PaymentMethod: "Card",
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return order
}

func (s *stack) postWebhook(secret string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/sellauth", bytes.NewReader(body))
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	req.Header.Set("X-Signature", "sha256="+hex.EncodeToString(mac.Sum(nil)))
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func TestComposition_ZeroGuildWebhookResolvesTenantFromOrder(t *testing.T) {
	s := newStack(t, nil)
	ctx := context.Background()
	order := s.createOrder(t, "Nitro")

	body := []byte(fmt.Sprintf(
		`{"event":"order.paid","guild_id":0,"data":{"status":"paid","order_id":"SA-1","custom_id":%q}}`,
		order.Ref,
	))
	if rec := s.postWebhook(webhookSecret, body); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
	}

	stored, err := s.service.GetOrder(ctx, order.Ref)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if stored.Status != core.OrderStatusPaid {
		t.Fatalf("expected paid order, got %s", stored.Status)
	}
	events, err := s.service.ListPaymentEvents(ctx, order.Ref)
	if err != nil {
		t.Fatalf("list payment events: %v", err)
	}
	if len(events) != 1 || events[0].TenantID != "G1" {
		t.Fatalf("expected event under tenant G1, got %+v", events)
	}
}

func TestComposition_SignedWebhookMarksOrderPaid(t *testing.T) {
	s := newStack(t, nil)
	ctx := context.Background()
	order := s.createOrder(t, "Nitro")
	if order.Status != core.OrderStatusPending {
		t.Fatalf("expected pending order, got %s", order.Status)
	}
	wantPrefix := fmt.Sprintf("TKZ-%d-", time.Now().UTC().Year())
	if !strings.HasPrefix(order.Ref, wantPrefix) {
		t.Fatalf("expected ref with %q prefix, got %q", wantPrefix, order.Ref)
	}

	body := []byte(fmt.Sprintf(
		`{"event":"order.paid","data":{"status":"paid","order_id":"SA-100","amount":"10.00","currency":"USD","metadata":{"tkz_order_id":%q}}}`,
		order.Ref,
	))
	rec := s.postWebhook(webhookSecret, body)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok":true`) {
		t.Fatalf("expected 200 ok, got %d %s", rec.Code, rec.Body.String())
	}

	stored, err := s.service.GetOrder(ctx, order.Ref)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if stored.Status != core.OrderStatusPaid {
		t.Fatalf("expected paid order, got %s", stored.Status)
	}
	events, err := s.service.ListPaymentEvents(ctx, order.Ref)
	if err != nil {
		t.Fatalf("list payment events: %v", err)
	}
	if len(events) != 1 || events[0].ExternalRef != "SA-100" || events[0].TenantID != "G1" {
		t.Fatalf("unexpected payment events: %+v", events)
	}

	// Re-delivery appends but leaves the final status unchanged.
	if rec := s.postWebhook(webhookSecret, body); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on redelivery, got %d", rec.Code)
	}
	events, _ = s.service.ListPaymentEvents(ctx, order.Ref)
	stored, _ = s.service.GetOrder(ctx, order.Ref)
	if len(events) != 2 || stored.Status != core.OrderStatusPaid {
		t.Fatalf("expected 2 events and paid order, got %d events and %s", len(events), stored.Status)
	}
}

func TestComposition_ChargebackVerificationBlocksDelivery(t *testing.T) {
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/orders/SA-200" || r.Header.Get("Authorization") != "Bearer api-key" {
			http.Error(w, "unexpected request", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"status":"chargeback","total":"10.00","currency":"USD"}}`))
	}))
	defer remote.Close()

	s := newStack(t, remote)
	ctx := context.Background()
	order := s.createOrder(t, "Nitro")

	outcome, err := s.service.ManualVerify(ctx, core.VerifyRequest{OrderRef: order.Ref, ExternalRef: "SA-200", ActorID: "222"})
	if err != nil {
		t.Fatalf("manual verify: %v", err)
	}
	if outcome.Order.Status != core.OrderStatusDisputed {
		t.Fatalf("expected disputed order, got %s", outcome.Order.Status)
	}
	check, err := s.store.LatestVerificationCheck(ctx, order.Ref)
	if err != nil || check == nil {
		t.Fatalf("expected verification check, got %+v (%v)", check, err)
	}
	if check.ResultStatus != "chargeback" || check.ActorID != "222" {
		t.Fatalf("unexpected verification check: %+v", check)
	}
	deliverable, err := s.service.CanDeliver(ctx, order.Ref)
	if err != nil {
		t.Fatalf("can deliver: %v", err)
	}
	if deliverable {
		t.Fatalf("expected chargeback to block delivery")
	}
}

func TestComposition_BadSignatureWritesNothing(t *testing.T) {
	s := newStack(t, nil)
	ctx := context.Background()
	order := s.createOrder(t, "Nitro")

	body := []byte(fmt.Sprintf(`{"event":"order.paid","guild_id":"G1","data":{"status":"paid","custom_id":%q}}`, order.Ref))
	rec := s.postWebhook("wrong-secret", body)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	events, err := s.service.ListPaymentEvents(ctx, order.Ref)
	if err != nil {
		t.Fatalf("list payment events: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected zero payment events, got %d", len(events))
	}
	stored, _ := s.service.GetOrder(ctx, order.Ref)
	if stored.Status != core.OrderStatusPending {
		t.Fatalf("expected pending order, got %s", stored.Status)
	}
}

func TestComposition_ConcurrentDeliveriesConsumeOneKey(t *testing.T) {
	s := newStack(t, nil)
	ctx := context.Background()
	product, err := s.store.CreateProduct(ctx, core.Product{TenantID: "G1", Name: "Nitro", Price: 10, StockMode: core.StockModeKeyStock})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	if _, err := s.store.AddStockKeys(ctx, product.ID, "KEY-1", "KEY-2"); err != nil {
		t.Fatalf("add stock keys: %v", err)
	}
	order := s.createOrder(t, "Nitro")
	if _, err := s.service.SetStatus(ctx, core.SetStatusRequest{OrderRef: order.Ref, Status: "paid", ActorID: "222"}); err != nil {
		t.Fatalf("set status: %v", err)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		failures  []error
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.service.Deliver(ctx, core.DeliverRequest{OrderRef: order.Ref, ActorID: "222"})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, err)
				return
			}
			successes++
		}()
	}
	wg.Wait()

	if successes != 1 || len(failures) != 1 {
		t.Fatalf("expected one delivery and one rejection, got %d successes and %v", successes, failures)
	}
	if !core.HasTextCode(failures[0], core.ErrorAlreadyDelivered) {
		t.Fatalf("expected already delivered rejection, got %v", failures[0])
	}
	remaining, err := s.store.AvailableStockKeys(ctx, product.ID)
	if err != nil {
		t.Fatalf("available keys: %v", err)
	}
	if remaining != 1 {
		t.Fatalf("expected one key left, got %d", remaining)
	}
}

func TestComposition_FacadeListsAuditTrail(t *testing.T) {
	s := newStack(t, nil)
	order := s.createOrder(t, "Nitro")
	if _, err := s.service.SetStatus(context.Background(), core.SetStatusRequest{OrderRef: order.Ref, Status: "Cancelled", ActorID: "222"}); err != nil {
		t.Fatalf("set status: %v", err)
	}
	entries, err := s.facade.Service().ListAudit(context.Background(), core.AuditFilter{TenantID: "G1"})
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	if len(entries) != 2 || entries[0].Action != core.AuditActionOrderCreate || entries[1].Action != core.AuditActionOrderStatus {
		t.Fatalf("unexpected audit trail: %+v", entries)
	}
}
