package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-reconcile/core"
)

const claimStockAttempts = 3

type repositories struct {
	orders   repository.Repository[*orderRecord]
	events   repository.Repository[*paymentEventRecord]
	checks   repository.Repository[*verificationCheckRecord]
	audit    repository.Repository[*auditEntryRecord]
	products repository.Repository[*productRecord]
	keys     repository.Repository[*stockKeyRecord]
}

func newRepositories(db *bun.DB) (*repositories, error) {
	repos := &repositories{
		orders:   repository.NewRepository[*orderRecord](db, orderHandlers()),
		events:   repository.NewRepository[*paymentEventRecord](db, paymentEventHandlers()),
		checks:   repository.NewRepository[*verificationCheckRecord](db, verificationCheckHandlers()),
		audit:    repository.NewRepository[*auditEntryRecord](db, auditEntryHandlers()),
		products: repository.NewRepository[*productRecord](db, productHandlers()),
		keys:     repository.NewRepository[*stockKeyRecord](db, stockKeyHandlers()),
	}
	checks := map[string]any{
		"order":              repos.orders,
		"payment event":      repos.events,
		"verification check": repos.checks,
		"audit":              repos.audit,
		"product":            repos.products,
		"stock key":          repos.keys,
	}
	for name, repo := range checks {
		if validator, ok := repo.(repository.Validator); ok {
			if err := validator.Validate(); err != nil {
				return nil, fmt.Errorf("sqlstore: invalid %s repository wiring: %w", name, err)
			}
		}
	}
	return repos, nil
}

// OrderStore persists orders and their payment history. Reads run against
// the pool; RunInTx hands out a unit of work bound to one transaction.
type OrderStore struct {
	queries
	db *bun.DB
}

func NewOrderStore(db *bun.DB) (*OrderStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repos, err := newRepositories(db)
	if err != nil {
		return nil, err
	}
	return &OrderStore{
		queries: queries{db: db, repos: repos},
		db:      db,
	}, nil
}

func (s *OrderStore) RunInTx(ctx context.Context, fn func(ctx context.Context, uow core.UnitOfWork) error) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: order store is not configured")
	}
	if fn == nil {
		return fmt.Errorf("sqlstore: transaction callback is required")
	}
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &unitOfWork{queries: queries{db: tx, repos: s.repos}, tx: tx})
	})
}

// CreateProduct registers a catalog entry for a tenant.
func (s *OrderStore) CreateProduct(ctx context.Context, product core.Product) (core.Product, error) {
	if s == nil || s.repos == nil {
		return core.Product{}, fmt.Errorf("sqlstore: order store is not configured")
	}
	name := strings.TrimSpace(product.Name)
	tenantID := strings.TrimSpace(product.TenantID)
	if name == "" || tenantID == "" {
		return core.Product{}, fmt.Errorf("sqlstore: product requires tenant id and name")
	}
	mode := product.StockMode
	if mode == "" {
		mode = core.StockModeManual
	}
	createdAt := product.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	created, err := s.repos.products.Create(ctx, &productRecord{
		ID:        newID(),
		TenantID:  tenantID,
		Name:      name,
		Price:     product.Price,
		StockMode: string(mode),
		CreatedAt: createdAt,
	})
	if err != nil {
		return core.Product{}, err
	}
	return created.toDomain(), nil
}

// AddStockKeys loads unused keys for a product and returns how many were
// stored. Blank values are skipped.
func (s *OrderStore) AddStockKeys(ctx context.Context, productID string, values ...string) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: order store is not configured")
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return 0, fmt.Errorf("sqlstore: product id is required")
	}
	added := 0
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		now := time.Now().UTC()
		for _, value := range values {
			value = strings.TrimSpace(value)
			if value == "" {
				continue
			}
			if _, err := s.repos.keys.CreateTx(ctx, tx, &stockKeyRecord{
				ID:        newID(),
				ProductID: productID,
				Value:     value,
				CreatedAt: now,
			}); err != nil {
				return err
			}
			added++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return added, nil
}

// AvailableStockKeys counts unused keys for a product.
func (s *OrderStore) AvailableStockKeys(ctx context.Context, productID string) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: order store is not configured")
	}
	return s.db.NewSelect().
		Model((*stockKeyRecord)(nil)).
		Where("product_id = ?", strings.TrimSpace(productID)).
		Where("used = ?", false).
		Count(ctx)
}

type queries struct {
	db    bun.IDB
	repos *repositories
}

func (q queries) GetOrder(ctx context.Context, orderRef string) (core.Order, error) {
	record := &orderRecord{}
	err := q.db.NewSelect().
		Model(record).
		Where("ref = ?", strings.TrimSpace(orderRef)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Order{}, core.ErrOrderNotFound
		}
		return core.Order{}, err
	}
	return record.toDomain(), nil
}

func (q queries) ListOrders(ctx context.Context, filter core.OrderFilter) ([]core.Order, error) {
	records := []*orderRecord{}
	query := q.db.NewSelect().
		Model(&records).
		Where("tenant_id = ?", strings.TrimSpace(filter.TenantID)).
		Order("created_at DESC", "ref DESC")
	if owner := strings.TrimSpace(filter.OwnerID); owner != "" {
		query = query.Where("owner_id = ?", owner)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	if err := query.Scan(ctx); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	orders := make([]core.Order, 0, len(records))
	for _, record := range records {
		orders = append(orders, record.toDomain())
	}
	return orders, nil
}

func (q queries) LatestVerificationCheck(ctx context.Context, orderRef string) (*core.VerificationCheck, error) {
	record := &verificationCheckRecord{}
	err := q.db.NewSelect().
		Model(record).
		Where("order_ref = ?", strings.TrimSpace(orderRef)).
		Order("checked_at DESC", "id DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	check := record.toDomain()
	return &check, nil
}

func (q queries) LatestPaymentEvent(ctx context.Context, orderRef string) (*core.PaymentEvent, error) {
	record := &paymentEventRecord{}
	err := q.db.NewSelect().
		Model(record).
		Where("order_ref = ?", strings.TrimSpace(orderRef)).
		Order("created_at DESC", "id DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	event := record.toDomain()
	return &event, nil
}

func (q queries) ListPaymentEvents(ctx context.Context, orderRef string) ([]core.PaymentEvent, error) {
	records := []*paymentEventRecord{}
	err := q.db.NewSelect().
		Model(&records).
		Where("order_ref = ?", strings.TrimSpace(orderRef)).
		Order("created_at ASC", "id ASC").
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	events := make([]core.PaymentEvent, 0, len(records))
	for _, record := range records {
		events = append(events, record.toDomain())
	}
	return events, nil
}

// ListAudit returns the most recent entries matching the filter, oldest first.
func (q queries) ListAudit(ctx context.Context, filter core.AuditFilter) ([]core.AuditEntry, error) {
	records := []*auditEntryRecord{}
	query := q.db.NewSelect().
		Model(&records).
		Where("tenant_id = ?", strings.TrimSpace(filter.TenantID)).
		Order("created_at DESC", "id DESC")
	if target := strings.TrimSpace(filter.Target); target != "" {
		query = query.Where("target = ?", target)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if err := query.Scan(ctx); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	slices.Reverse(records)
	entries := make([]core.AuditEntry, 0, len(records))
	for _, record := range records {
		entries = append(entries, record.toDomain())
	}
	return entries, nil
}

func (q queries) FindProduct(ctx context.Context, tenantID string, name string) (core.Product, error) {
	record := &productRecord{}
	err := q.db.NewSelect().
		Model(record).
		Where("tenant_id = ?", strings.TrimSpace(tenantID)).
		Where("name = ?", strings.TrimSpace(name)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Product{}, core.ErrProductNotFound
		}
		return core.Product{}, err
	}
	return record.toDomain(), nil
}

type unitOfWork struct {
	queries
	tx bun.Tx
}

const nextSequenceSQL = `INSERT INTO order_sequences (sequence_key, value, updated_at)
VALUES (?, ?, ?)
ON CONFLICT (sequence_key) DO UPDATE
SET value = order_sequences.value + 1, updated_at = EXCLUDED.updated_at
RETURNING value`

// NextOrderSequence increments the named counter and returns the new value.
// A counter that does not exist yet starts at start.
func (u *unitOfWork) NextOrderSequence(ctx context.Context, key string, start int64) (int64, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return 0, fmt.Errorf("sqlstore: sequence key is required")
	}
	if start < 1 {
		start = 1
	}
	var value int64
	if err := u.db.NewRaw(nextSequenceSQL, key, start, time.Now().UTC()).Scan(ctx, &value); err != nil {
		return 0, err
	}
	return value, nil
}

func (u *unitOfWork) CreateOrder(ctx context.Context, order core.Order) (core.Order, error) {
	record := newOrderRecord(order)
	if record.ID == "" {
		record.ID = newID()
	}
	created, err := u.repos.orders.CreateTx(ctx, u.tx, record)
	if err != nil {
		if isUniqueViolation(err) {
			return core.Order{}, fmt.Errorf("sqlstore: order %s already exists: %w", record.Ref, err)
		}
		return core.Order{}, err
	}
	return created.toDomain(), nil
}

func (u *unitOfWork) UpdateOrderStatus(ctx context.Context, orderRef string, status core.OrderStatus, at time.Time) error {
	res, err := u.db.NewUpdate().
		Model((*orderRecord)(nil)).
		Set("status = ?", string(status)).
		Set("updated_at = ?", at.UTC()).
		Where("ref = ?", strings.TrimSpace(orderRef)).
		Exec(ctx)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return core.ErrOrderNotFound
	}
	return nil
}

func (u *unitOfWork) AppendPaymentEvent(ctx context.Context, event core.PaymentEvent) (core.PaymentEvent, error) {
	record := newPaymentEventRecord(event)
	record.ID = newID()
	created, err := u.repos.events.CreateTx(ctx, u.tx, record)
	if err != nil {
		return core.PaymentEvent{}, err
	}
	return created.toDomain(), nil
}

func (u *unitOfWork) AppendVerificationCheck(ctx context.Context, check core.VerificationCheck) (core.VerificationCheck, error) {
	record := newVerificationCheckRecord(check)
	record.ID = newID()
	created, err := u.repos.checks.CreateTx(ctx, u.tx, record)
	if err != nil {
		return core.VerificationCheck{}, err
	}
	return created.toDomain(), nil
}

func (u *unitOfWork) AppendAudit(ctx context.Context, entry core.AuditEntry) (core.AuditEntry, error) {
	record := newAuditEntryRecord(entry)
	record.ID = newID()
	created, err := u.repos.audit.CreateTx(ctx, u.tx, record)
	if err != nil {
		return core.AuditEntry{}, err
	}
	return created.toDomain(), nil
}

// ClaimStockKey marks the oldest unused key of a product as used by the
// order. The conditional update keeps two writers from claiming one key.
func (u *unitOfWork) ClaimStockKey(ctx context.Context, productID string, orderRef string, at time.Time) (core.StockKey, error) {
	productID = strings.TrimSpace(productID)
	for attempt := 0; attempt < claimStockAttempts; attempt++ {
		candidate := &stockKeyRecord{}
		err := u.db.NewSelect().
			Model(candidate).
			Where("product_id = ?", productID).
			Where("used = ?", false).
			Order("created_at ASC", "id ASC").
			Limit(1).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return core.StockKey{}, core.ErrStockExhausted
			}
			return core.StockKey{}, err
		}

		usedAt := at.UTC()
		res, err := u.db.NewUpdate().
			Model((*stockKeyRecord)(nil)).
			Set("used = ?", true).
			Set("order_ref = ?", strings.TrimSpace(orderRef)).
			Set("used_at = ?", usedAt).
			Where("id = ?", candidate.ID).
			Where("used = ?", false).
			Exec(ctx)
		if err != nil {
			return core.StockKey{}, err
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			continue
		}
		candidate.Used = true
		candidate.OrderRef = strings.TrimSpace(orderRef)
		candidate.UsedAt = &usedAt
		return candidate.toDomain(), nil
	}
	return core.StockKey{}, core.ErrStockExhausted
}

func isUniqueViolation(err error) bool {
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value violates unique constraint")
}
