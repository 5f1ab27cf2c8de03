package core

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type CreateOrderRequest struct {
	TenantID      string
	OwnerID       string
	Product       string
	Price         float64
	PaymentMethod string
	Note          string
	ActorID       string
}

func (r CreateOrderRequest) Validate() error {
	fieldErrs := map[string]any{}
	if strings.TrimSpace(r.TenantID) == "" {
		fieldErrs["tenant_id"] = "required"
	}
	if strings.TrimSpace(r.OwnerID) == "" {
		fieldErrs["owner_id"] = "required"
	}
	if strings.TrimSpace(r.Product) == "" {
		fieldErrs["product"] = "required"
	}
	if r.Price < 0 || math.IsNaN(r.Price) || math.IsInf(r.Price, 0) {
		fieldErrs["price"] = "must be a non-negative number"
	}
	if _, ok := ParsePaymentMethod(r.PaymentMethod); !ok {
		fieldErrs["payment_method"] = "must be one of PayPal, Crypto, Card, Cash, Other"
	}
	if len(fieldErrs) > 0 {
		return NewInvalidPayloadError("invalid order details", fieldErrs)
	}
	return nil
}

type SetStatusRequest struct {
	OrderRef string
	Status   string
	ActorID  string
}

// CreateOrder allocates the next order reference and stores a Pending order.
func (s *Service) CreateOrder(ctx context.Context, req CreateOrderRequest) (order Order, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"tenant_id": req.TenantID,
		"owner_id":  req.OwnerID,
		"product":   req.Product,
	}
	defer func() {
		fields["order_ref"] = order.Ref
		s.observeOperation(ctx, startedAt, "create_order", err, fields)
	}()

	if err = s.requireStore(); err != nil {
		return Order{}, err
	}
	if err = req.Validate(); err != nil {
		return Order{}, err
	}
	method, _ := ParsePaymentMethod(req.PaymentMethod)
	prefix := s.config.Order.Prefix
	tenantID := strings.TrimSpace(req.TenantID)

	err = s.serialize(ctx, tenantID, func(ctx context.Context, uow UnitOfWork) error {
		now := s.now()
		sequence, seqErr := uow.NextOrderSequence(ctx, SequenceKey(prefix), s.config.Order.CounterStart)
		if seqErr != nil {
			return seqErr
		}
		created, createErr := uow.CreateOrder(ctx, Order{
			Ref:           FormatOrderRef(prefix, now.Year(), sequence),
			TenantID:      tenantID,
			OwnerID:       strings.TrimSpace(req.OwnerID),
			Product:       strings.TrimSpace(req.Product),
			Price:         req.Price,
			PaymentMethod: method,
			Status:        OrderStatusPending,
			Note:          strings.TrimSpace(req.Note),
			CreatedAt:     now,
			UpdatedAt:     now,
		})
		if createErr != nil {
			return createErr
		}
		if _, auditErr := uow.AppendAudit(ctx, AuditEntry{
			TenantID:  tenantID,
			ActorID:   actorOrSystem(req.ActorID),
			Action:    AuditActionOrderCreate,
			Target:    created.Ref,
			Metadata:  map[string]any{"price": req.Price},
			CreatedAt: now,
		}); auditErr != nil {
			return auditErr
		}
		order = created
		return nil
	})
	if err != nil {
		err = s.mapError(err)
		return Order{}, err
	}

	s.notify(ctx, Notification{
		Kind:     NotificationOrderCreated,
		TenantID: order.TenantID,
		OrderRef: order.Ref,
		Status:   order.Status,
		ActorID:  actorOrSystem(req.ActorID),
		Metadata: map[string]any{"product": order.Product, "price": order.Price},
	})
	return order, nil
}

// SetStatus assigns a status chosen by staff. It is permissive unless
// lifecycle.enforce_transitions is set.
func (s *Service) SetStatus(ctx context.Context, req SetStatusRequest) (order Order, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"order_ref": req.OrderRef,
		"actor_id":  req.ActorID,
	}
	defer func() {
		fields["tenant_id"] = order.TenantID
		fields["order_status"] = string(order.Status)
		s.observeOperation(ctx, startedAt, "set_status", err, fields)
	}()

	status, ok := ParseOrderStatus(req.Status)
	if !ok {
		err = NewInvalidStatusError(req.Status)
		return Order{}, err
	}
	if err = s.requireStore(); err != nil {
		return Order{}, err
	}
	ref := strings.TrimSpace(req.OrderRef)
	current, err := s.lookupOrder(ctx, ref)
	if err != nil {
		return Order{}, err
	}

	var previous OrderStatus
	err = s.serialize(ctx, current.TenantID, func(ctx context.Context, uow UnitOfWork) error {
		latest, getErr := uow.GetOrder(ctx, ref)
		if getErr != nil {
			return getErr
		}
		if s.config.Lifecycle.EnforceTransitions && !TransitionAllowed(latest.Status, status) {
			return NewError("order status transition is not allowed", goerrors.CategoryConflict, ErrorInvalidTransition,
				map[string]any{"from": string(latest.Status), "to": string(status)})
		}
		previous = latest.Status
		updated, applyErr := s.applyStatus(ctx, uow, latest, status, req.ActorID, s.now())
		if applyErr != nil {
			return applyErr
		}
		order = updated
		return nil
	})
	if err != nil {
		err = s.mapError(err)
		return Order{}, err
	}

	s.notify(ctx, Notification{
		Kind:     NotificationStatusChanged,
		TenantID: order.TenantID,
		OrderRef: order.Ref,
		Status:   order.Status,
		ActorID:  actorOrSystem(req.ActorID),
		Metadata: map[string]any{"previous_status": string(previous)},
	})
	return order, nil
}

func (s *Service) GetOrder(ctx context.Context, orderRef string) (Order, error) {
	if err := s.requireStore(); err != nil {
		return Order{}, err
	}
	return s.lookupOrder(ctx, strings.TrimSpace(orderRef))
}

func (s *Service) ListOrders(ctx context.Context, filter OrderFilter) ([]Order, error) {
	if err := s.requireStore(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(filter.TenantID) == "" {
		return nil, NewInvalidPayloadError("tenant id is required", map[string]any{"tenant_id": "required"})
	}
	if filter.Status != "" {
		status, ok := ParseOrderStatus(string(filter.Status))
		if !ok {
			return nil, NewInvalidStatusError(string(filter.Status))
		}
		filter.Status = status
	}
	filter.Limit = clampLimit(filter.Limit)
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	orders, err := s.store.ListOrders(ctx, filter)
	if err != nil {
		return nil, s.mapError(err)
	}
	return orders, nil
}

func (s *Service) ListPaymentEvents(ctx context.Context, orderRef string) ([]PaymentEvent, error) {
	if err := s.requireStore(); err != nil {
		return nil, err
	}
	ref := strings.TrimSpace(orderRef)
	if ref == "" {
		return nil, NewInvalidPayloadError("order reference is required", map[string]any{"order_ref": "required"})
	}
	events, err := s.store.ListPaymentEvents(ctx, ref)
	if err != nil {
		return nil, s.mapError(err)
	}
	return events, nil
}

func (s *Service) ListAudit(ctx context.Context, filter AuditFilter) ([]AuditEntry, error) {
	if err := s.requireStore(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(filter.TenantID) == "" {
		return nil, NewInvalidPayloadError("tenant id is required", map[string]any{"tenant_id": "required"})
	}
	filter.Limit = clampLimit(filter.Limit)
	entries, err := s.store.ListAudit(ctx, filter)
	if err != nil {
		return nil, s.mapError(err)
	}
	return entries, nil
}

func (s *Service) lookupOrder(ctx context.Context, ref string) (Order, error) {
	if ref == "" {
		return Order{}, NewInvalidPayloadError("order reference is required", map[string]any{"order_ref": "required"})
	}
	order, err := s.store.GetOrder(ctx, ref)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return Order{}, NewNotFoundError("order not found", map[string]any{"order_ref": ref})
		}
		return Order{}, s.mapError(err)
	}
	return order, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
