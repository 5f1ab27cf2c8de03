package core

import (
	"context"
	"errors"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type DeliverRequest struct {
	OrderRef string
	ActorID  string
}

// Delivery carries the consumed stock key back to the caller. The key value
// must only be handed to the order owner.
type Delivery struct {
	Order Order
	Key   StockKey
}

// CanDeliver evaluates the delivery gate against the stored order and its
// latest verification check. The answer is advisory; Deliver re-evaluates it
// under the write gate.
func (s *Service) CanDeliver(ctx context.Context, orderRef string) (bool, error) {
	if err := s.requireStore(); err != nil {
		return false, err
	}
	ref := strings.TrimSpace(orderRef)
	order, err := s.lookupOrder(ctx, ref)
	if err != nil {
		return false, err
	}
	latest, err := s.store.LatestVerificationCheck(ctx, ref)
	if err != nil {
		return false, s.mapError(err)
	}
	return s.gate.Allows(order, latest, s.now()), nil
}

// Deliver hands out one stock key for the order. The gate check, the key
// claim and the status change happen inside one write gate section and one
// transaction, so concurrent attempts deliver at most once.
func (s *Service) Deliver(ctx context.Context, req DeliverRequest) (delivery Delivery, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"order_ref": req.OrderRef,
		"actor_id":  req.ActorID,
	}
	defer func() {
		fields["tenant_id"] = delivery.Order.TenantID
		fields["stock_key_id"] = delivery.Key.ID
		s.observeOperation(ctx, startedAt, "deliver", err, fields)
	}()

	if err = s.requireStore(); err != nil {
		return Delivery{}, err
	}
	ref := strings.TrimSpace(req.OrderRef)
	order, err := s.lookupOrder(ctx, ref)
	if err != nil {
		return Delivery{}, err
	}

	err = s.serialize(ctx, order.TenantID, func(ctx context.Context, uow UnitOfWork) error {
		now := s.now()
		current, getErr := uow.GetOrder(ctx, ref)
		if getErr != nil {
			return getErr
		}
		if current.Status == OrderStatusDelivered {
			return NewError("order has already been delivered", goerrors.CategoryConflict, ErrorAlreadyDelivered,
				map[string]any{"order_ref": ref})
		}
		latest, checkErr := uow.LatestVerificationCheck(ctx, ref)
		if checkErr != nil {
			return checkErr
		}
		if !s.gate.Allows(current, latest, now) {
			return NewError("payment is not confirmed for delivery", goerrors.CategoryOperation, ErrorDeliveryBlocked,
				map[string]any{"order_ref": ref, "status": string(current.Status)})
		}
		product, productErr := uow.FindProduct(ctx, current.TenantID, current.Product)
		if productErr != nil {
			if errors.Is(productErr, ErrProductNotFound) {
				return NewNotFoundError("product not found", map[string]any{"product": current.Product})
			}
			return productErr
		}
		if product.StockMode != StockModeKeyStock {
			return NewError("product is delivered manually", goerrors.CategoryOperation, ErrorDeliveryBlocked,
				map[string]any{"product": product.Name, "stock_mode": string(product.StockMode)})
		}
		key, claimErr := uow.ClaimStockKey(ctx, product.ID, ref, now)
		if claimErr != nil {
			if errors.Is(claimErr, ErrStockExhausted) {
				return NewError("no stock keys are left", goerrors.CategoryOperation, ErrorStockExhausted,
					map[string]any{"product": product.Name})
			}
			return claimErr
		}
		if updateErr := uow.UpdateOrderStatus(ctx, ref, OrderStatusDelivered, now); updateErr != nil {
			return updateErr
		}
		if _, auditErr := uow.AppendAudit(ctx, AuditEntry{
			TenantID:  current.TenantID,
			ActorID:   actorOrSystem(req.ActorID),
			Action:    AuditActionOrderDeliver,
			Target:    ref,
			Metadata:  map[string]any{"product": product.Name, "stock_key_id": key.ID},
			CreatedAt: now,
		}); auditErr != nil {
			return auditErr
		}
		current.Status = OrderStatusDelivered
		current.UpdatedAt = now
		delivery = Delivery{Order: current, Key: key}
		return nil
	})
	if err != nil {
		err = s.mapError(err)
		return Delivery{}, err
	}

	s.notify(ctx, Notification{
		Kind:     NotificationOrderDelivered,
		TenantID: delivery.Order.TenantID,
		OrderRef: delivery.Order.Ref,
		Status:   delivery.Order.Status,
		ActorID:  actorOrSystem(req.ActorID),
		Metadata: map[string]any{"product": delivery.Order.Product},
	})
	return delivery, nil
}
