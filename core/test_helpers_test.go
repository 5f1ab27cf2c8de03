package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

type stubLogger struct{}

func (stubLogger) Trace(string, ...any) {}
func (stubLogger) Debug(string, ...any) {}
func (stubLogger) Info(string, ...any)  {}
func (stubLogger) Warn(string, ...any)  {}
func (stubLogger) Error(string, ...any) {}
func (stubLogger) Fatal(string, ...any) {}
func (s stubLogger) WithContext(context.Context) Logger {
	return s
}

type stubLoggerProvider struct {
	logger Logger
}

func (p stubLoggerProvider) GetLogger(string) Logger { return p.logger }

type mapRawLoader struct {
	values map[string]any
}

func (l mapRawLoader) LoadRaw(context.Context) (map[string]any, error) {
	return l.values, nil
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFixedClock(now time.Time) *fixedClock {
	return &fixedClock{now: now.UTC()}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type stubVerifier struct {
	mu      sync.Mutex
	results map[string]VerificationResult
	err     error
	calls   []string
}

func (v *stubVerifier) Verify(_ context.Context, externalRef string) (VerificationResult, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls = append(v.calls, externalRef)
	if v.err != nil {
		return VerificationResult{}, v.err
	}
	result, ok := v.results[externalRef]
	if !ok {
		return VerificationResult{Status: "unknown", RawPayload: map[string]any{}}, nil
	}
	return result, nil
}

type recordingNotifier struct {
	mu            sync.Mutex
	notifications []Notification
	err           error
}

func (n *recordingNotifier) Notify(_ context.Context, notification Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notifications = append(n.notifications, notification)
	return n.err
}

func (n *recordingNotifier) kinds() []NotificationKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]NotificationKind, 0, len(n.notifications))
	for _, item := range n.notifications {
		out = append(out, item.Kind)
	}
	return out
}

type memoryState struct {
	orders    map[string]Order
	events    []PaymentEvent
	checks    []VerificationCheck
	audit     []AuditEntry
	products  map[string]Product
	keys      []StockKey
	sequences map[string]int64
}

func newMemoryState() memoryState {
	return memoryState{
		orders:    map[string]Order{},
		products:  map[string]Product{},
		sequences: map[string]int64{},
	}
}

func (st memoryState) clone() memoryState {
	out := newMemoryState()
	for key, value := range st.orders {
		out.orders[key] = value
	}
	for key, value := range st.products {
		out.products[key] = value
	}
	for key, value := range st.sequences {
		out.sequences[key] = value
	}
	out.events = append([]PaymentEvent(nil), st.events...)
	out.checks = append([]VerificationCheck(nil), st.checks...)
	out.audit = append([]AuditEntry(nil), st.audit...)
	out.keys = append([]StockKey(nil), st.keys...)
	return out
}

// memoryStore commits a copy of its state when the transaction function
// succeeds and discards it otherwise.
type memoryStore struct {
	mu         sync.Mutex
	txMu       sync.Mutex
	state      memoryState
	nextID     int
	failAudit  error
	failEvents error
	txCount    int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{state: newMemoryState()}
}

func (s *memoryStore) id(prefix string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	return fmt.Sprintf("%s_%d", prefix, s.nextID)
}

func (s *memoryStore) snapshot() memoryState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

func (s *memoryStore) seedOrder(order Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if order.ID == "" {
		order.ID = "order_" + order.Ref
	}
	s.state.orders[order.Ref] = order
}

func (s *memoryStore) seedProduct(product Product, keys ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if product.ID == "" {
		product.ID = "product_" + product.Name
	}
	s.state.products[product.TenantID+"|"+product.Name] = product
	for idx, value := range keys {
		s.state.keys = append(s.state.keys, StockKey{
			ID:        fmt.Sprintf("%s_key_%d", product.ID, idx+1),
			ProductID: product.ID,
			Value:     value,
		})
	}
}

func (s *memoryStore) seedCheck(check VerificationCheck) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.checks = append(s.state.checks, check)
}

func (s *memoryStore) seedEvent(event PaymentEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.events = append(s.state.events, event)
}

func (s *memoryStore) read(fn func(st *memoryState) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&s.state)
}

func (s *memoryStore) GetOrder(_ context.Context, ref string) (order Order, err error) {
	err = s.read(func(st *memoryState) error {
		order, err = st.getOrder(ref)
		return err
	})
	return order, err
}

func (s *memoryStore) ListOrders(_ context.Context, filter OrderFilter) (orders []Order, err error) {
	err = s.read(func(st *memoryState) error {
		orders = st.listOrders(filter)
		return nil
	})
	return orders, err
}

func (s *memoryStore) LatestVerificationCheck(_ context.Context, ref string) (check *VerificationCheck, err error) {
	err = s.read(func(st *memoryState) error {
		check = st.latestCheck(ref)
		return nil
	})
	return check, err
}

func (s *memoryStore) LatestPaymentEvent(_ context.Context, ref string) (event *PaymentEvent, err error) {
	err = s.read(func(st *memoryState) error {
		event = st.latestEvent(ref)
		return nil
	})
	return event, err
}

func (s *memoryStore) ListPaymentEvents(_ context.Context, ref string) (events []PaymentEvent, err error) {
	err = s.read(func(st *memoryState) error {
		events = st.listEvents(ref)
		return nil
	})
	return events, err
}

func (s *memoryStore) ListAudit(_ context.Context, filter AuditFilter) (entries []AuditEntry, err error) {
	err = s.read(func(st *memoryState) error {
		entries = st.listAudit(filter)
		return nil
	})
	return entries, err
}

func (s *memoryStore) FindProduct(_ context.Context, tenantID string, name string) (product Product, err error) {
	err = s.read(func(st *memoryState) error {
		product, err = st.findProduct(tenantID, name)
		return err
	})
	return product, err
}

func (s *memoryStore) RunInTx(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	working := s.snapshot()
	uow := &memoryUnitOfWork{store: s, state: &working}
	if err := fn(ctx, uow); err != nil {
		return err
	}
	s.mu.Lock()
	s.state = working
	s.txCount++
	s.mu.Unlock()
	return nil
}

type memoryUnitOfWork struct {
	store *memoryStore
	state *memoryState
}

func (u *memoryUnitOfWork) GetOrder(_ context.Context, ref string) (Order, error) {
	return u.state.getOrder(ref)
}

func (u *memoryUnitOfWork) ListOrders(_ context.Context, filter OrderFilter) ([]Order, error) {
	return u.state.listOrders(filter), nil
}

func (u *memoryUnitOfWork) LatestVerificationCheck(_ context.Context, ref string) (*VerificationCheck, error) {
	return u.state.latestCheck(ref), nil
}

func (u *memoryUnitOfWork) LatestPaymentEvent(_ context.Context, ref string) (*PaymentEvent, error) {
	return u.state.latestEvent(ref), nil
}

func (u *memoryUnitOfWork) ListPaymentEvents(_ context.Context, ref string) ([]PaymentEvent, error) {
	return u.state.listEvents(ref), nil
}

func (u *memoryUnitOfWork) ListAudit(_ context.Context, filter AuditFilter) ([]AuditEntry, error) {
	return u.state.listAudit(filter), nil
}

func (u *memoryUnitOfWork) FindProduct(_ context.Context, tenantID string, name string) (Product, error) {
	return u.state.findProduct(tenantID, name)
}

func (u *memoryUnitOfWork) NextOrderSequence(_ context.Context, key string, start int64) (int64, error) {
	current, ok := u.state.sequences[key]
	if !ok {
		current = start - 1
	}
	current++
	u.state.sequences[key] = current
	return current, nil
}

func (u *memoryUnitOfWork) CreateOrder(_ context.Context, order Order) (Order, error) {
	if _, exists := u.state.orders[order.Ref]; exists {
		return Order{}, fmt.Errorf("memory store: duplicate order %s", order.Ref)
	}
	order.ID = u.store.id("order")
	u.state.orders[order.Ref] = order
	return order, nil
}

func (u *memoryUnitOfWork) UpdateOrderStatus(_ context.Context, ref string, status OrderStatus, at time.Time) error {
	order, err := u.state.getOrder(ref)
	if err != nil {
		return err
	}
	order.Status = status
	order.UpdatedAt = at
	u.state.orders[ref] = order
	return nil
}

func (u *memoryUnitOfWork) AppendPaymentEvent(_ context.Context, event PaymentEvent) (PaymentEvent, error) {
	if u.store.failEvents != nil {
		return PaymentEvent{}, u.store.failEvents
	}
	event.ID = u.store.id("event")
	u.state.events = append(u.state.events, event)
	return event, nil
}

func (u *memoryUnitOfWork) AppendVerificationCheck(_ context.Context, check VerificationCheck) (VerificationCheck, error) {
	check.ID = u.store.id("check")
	u.state.checks = append(u.state.checks, check)
	return check, nil
}

func (u *memoryUnitOfWork) AppendAudit(_ context.Context, entry AuditEntry) (AuditEntry, error) {
	if u.store.failAudit != nil {
		return AuditEntry{}, u.store.failAudit
	}
	entry.ID = u.store.id("audit")
	u.state.audit = append(u.state.audit, entry)
	return entry, nil
}

func (u *memoryUnitOfWork) ClaimStockKey(_ context.Context, productID string, orderRef string, at time.Time) (StockKey, error) {
	for idx, key := range u.state.keys {
		if key.ProductID != productID || key.Used {
			continue
		}
		usedAt := at
		key.Used = true
		key.OrderRef = orderRef
		key.UsedAt = &usedAt
		u.state.keys[idx] = key
		return key, nil
	}
	return StockKey{}, ErrStockExhausted
}

func (st *memoryState) getOrder(ref string) (Order, error) {
	order, ok := st.orders[ref]
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	return order, nil
}

func (st *memoryState) listOrders(filter OrderFilter) []Order {
	out := []Order{}
	for _, order := range st.orders {
		if order.TenantID != filter.TenantID {
			continue
		}
		if filter.OwnerID != "" && order.OwnerID != filter.OwnerID {
			continue
		}
		if filter.Status != "" && order.Status != filter.Status {
			continue
		}
		out = append(out, order)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Ref > out[j].Ref
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Offset >= len(out) {
		return []Order{}
	}
	out = out[filter.Offset:]
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out
}

func (st *memoryState) latestCheck(ref string) *VerificationCheck {
	var latest *VerificationCheck
	for idx := range st.checks {
		check := st.checks[idx]
		if check.OrderRef != ref {
			continue
		}
		if latest == nil || !check.CheckedAt.Before(latest.CheckedAt) {
			copied := check
			latest = &copied
		}
	}
	return latest
}

func (st *memoryState) latestEvent(ref string) *PaymentEvent {
	var latest *PaymentEvent
	for idx := range st.events {
		event := st.events[idx]
		if event.OrderRef != ref {
			continue
		}
		if latest == nil || !event.CreatedAt.Before(latest.CreatedAt) {
			copied := event
			latest = &copied
		}
	}
	return latest
}

func (st *memoryState) listEvents(ref string) []PaymentEvent {
	out := []PaymentEvent{}
	for _, event := range st.events {
		if event.OrderRef == ref {
			out = append(out, event)
		}
	}
	return out
}

func (st *memoryState) listAudit(filter AuditFilter) []AuditEntry {
	out := []AuditEntry{}
	for _, entry := range st.audit {
		if entry.TenantID != filter.TenantID {
			continue
		}
		if filter.Target != "" && entry.Target != filter.Target {
			continue
		}
		out = append(out, entry)
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[len(out)-filter.Limit:]
	}
	return out
}

func (st *memoryState) findProduct(tenantID string, name string) (Product, error) {
	product, ok := st.products[tenantID+"|"+name]
	if !ok {
		return Product{}, ErrProductNotFound
	}
	return product, nil
}

func (st memoryState) usedKeys() int {
	count := 0
	for _, key := range st.keys {
		if key.Used {
			count++
		}
	}
	return count
}

func (st memoryState) auditActions(tenantID string) []string {
	out := []string{}
	for _, entry := range st.audit {
		if entry.TenantID == tenantID {
			out = append(out, entry.Action)
		}
	}
	return out
}

var errInjected = errors.New("injected failure")

var (
	_ Store      = (*memoryStore)(nil)
	_ UnitOfWork = (*memoryUnitOfWork)(nil)
)
