package core

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// PaymentSignal is a processor-pushed fact after field extraction. Every
// field except RawPayload is optional.
type PaymentSignal struct {
	TenantID    string
	OrderRef    string
	ExternalRef string
	Event       string
	Status      string
	Amount      float64
	Currency    string
	SubjectID   string
	Email       string
	RawPayload  []byte
}

type IngestResult struct {
	Event    PaymentEvent
	TenantID string
	Mapped   OrderStatus
	Applied  bool
	Order    *Order
}

type VerifyRequest struct {
	OrderRef    string
	ExternalRef string
	ActorID     string
}

type VerifyOutcome struct {
	Order       Order
	Result      VerificationResult
	ExternalRef string
	Mapped      OrderStatus
	Applied     bool
	Check       VerificationCheck
	Implication DeliveryImplication
	Deliverable bool
}

// IngestPayment records a processor signal and applies its mapped state to
// the referenced order. The event is always appended; the order only changes
// when a tenant and a local order resolve and the mapped state is not Pending.
func (s *Service) IngestPayment(ctx context.Context, signal PaymentSignal) (result IngestResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"order_ref":    signal.OrderRef,
		"external_ref": signal.ExternalRef,
		"event":        signal.Event,
		"raw_status":   signal.Status,
	}
	defer func() {
		fields["tenant_id"] = result.TenantID
		fields["applied"] = result.Applied
		s.observeOperation(ctx, startedAt, "ingest_payment", err, fields)
	}()

	if err = s.requireStore(); err != nil {
		return IngestResult{}, err
	}
	tenantID := NormalizeTenantID(signal.TenantID)
	localRef := strings.TrimSpace(signal.OrderRef)
	if tenantID == "" && localRef != "" {
		order, lookupErr := s.store.GetOrder(ctx, localRef)
		switch {
		case lookupErr == nil:
			tenantID = order.TenantID
		case errors.Is(lookupErr, ErrOrderNotFound):
		default:
			err = s.mapError(lookupErr)
			return IngestResult{}, err
		}
	}
	result.TenantID = tenantID
	result.Mapped = MapToOrderState(signal.Status)

	err = s.serialize(ctx, tenantID, func(ctx context.Context, uow UnitOfWork) error {
		now := s.now()
		event, appendErr := uow.AppendPaymentEvent(ctx, PaymentEvent{
			TenantID:    tenantID,
			OrderRef:    localRef,
			ExternalRef: strings.TrimSpace(signal.ExternalRef),
			Event:       strings.TrimSpace(signal.Event),
			Status:      NormalizeStatus(signal.Status),
			Amount:      signal.Amount,
			Currency:    strings.ToUpper(strings.TrimSpace(signal.Currency)),
			SubjectID:   strings.TrimSpace(signal.SubjectID),
			Email:       strings.TrimSpace(signal.Email),
			RawPayload:  append([]byte(nil), signal.RawPayload...),
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		if appendErr != nil {
			return appendErr
		}
		result.Event = event
		if tenantID == "" {
			return nil
		}

		metadata := map[string]any{
			"event":  event.Event,
			"status": event.Status,
		}
		if localRef != "" {
			order, getErr := uow.GetOrder(ctx, localRef)
			switch {
			case getErr == nil && order.TenantID == tenantID:
				if next, apply := resolvePaymentState(order.Status, result.Mapped); apply {
					if updateErr := uow.UpdateOrderStatus(ctx, order.Ref, next, now); updateErr != nil {
						return updateErr
					}
					order.Status = next
					order.UpdatedAt = now
					result.Applied = true
					metadata["order_status"] = string(next)
				}
				result.Order = &order
			case getErr == nil:
				metadata["tenant_mismatch"] = true
			case errors.Is(getErr, ErrOrderNotFound):
			default:
				return getErr
			}
		}

		target := localRef
		if target == "" {
			target = event.ExternalRef
		}
		_, auditErr := uow.AppendAudit(ctx, AuditEntry{
			TenantID:  tenantID,
			ActorID:   SystemActor,
			Action:    AuditActionPaymentWebhook,
			Target:    target,
			Metadata:  metadata,
			CreatedAt: now,
		})
		return auditErr
	})
	if err != nil {
		err = s.mapError(err)
		return IngestResult{}, err
	}

	if tenantID != "" {
		s.notify(ctx, Notification{
			Kind:      NotificationPaymentReceived,
			TenantID:  tenantID,
			OrderRef:  localRef,
			Status:    result.Mapped,
			RawStatus: result.Event.Status,
			ActorID:   SystemActor,
			Metadata: map[string]any{
				"external_ref": result.Event.ExternalRef,
				"amount":       result.Event.Amount,
				"currency":     result.Event.Currency,
				"applied":      result.Applied,
			},
		})
	}
	return result, nil
}

// ManualVerify polls the processor for an order and records the answer as a
// payment event plus a verification check sharing one status and timestamp.
// Nothing is written when the remote call fails.
func (s *Service) ManualVerify(ctx context.Context, req VerifyRequest) (outcome VerifyOutcome, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"order_ref": req.OrderRef,
		"actor_id":  req.ActorID,
	}
	defer func() {
		fields["tenant_id"] = outcome.Order.TenantID
		fields["external_ref"] = outcome.ExternalRef
		fields["raw_status"] = outcome.Result.Status
		s.observeOperation(ctx, startedAt, "manual_verify", err, fields)
	}()

	if s.verifier == nil {
		err = NewConfigurationError("payment verification client is not configured")
		return VerifyOutcome{}, err
	}
	if err = s.requireStore(); err != nil {
		return VerifyOutcome{}, err
	}
	ref := strings.TrimSpace(req.OrderRef)
	order, err := s.lookupOrder(ctx, ref)
	if err != nil {
		return VerifyOutcome{}, err
	}

	externalRef := strings.TrimSpace(req.ExternalRef)
	if externalRef == "" {
		latest, latestErr := s.store.LatestPaymentEvent(ctx, ref)
		if latestErr != nil {
			err = s.mapError(latestErr)
			return VerifyOutcome{}, err
		}
		if latest != nil {
			externalRef = strings.TrimSpace(latest.ExternalRef)
		}
	}
	if externalRef == "" {
		err = NewInvalidPayloadError("no external reference is known for this order", map[string]any{"order_ref": ref})
		return VerifyOutcome{}, err
	}
	outcome.ExternalRef = externalRef

	verified, err := s.verifier.Verify(ctx, externalRef)
	if err != nil {
		return VerifyOutcome{}, err
	}
	outcome.Result = verified
	rawStatus := NormalizeStatus(verified.Status)
	raw, marshalErr := json.Marshal(verified.RawPayload)
	if marshalErr != nil || verified.RawPayload == nil {
		raw = []byte("{}")
	}
	outcome.Mapped = MapToOrderState(rawStatus)

	err = s.serialize(ctx, order.TenantID, func(ctx context.Context, uow UnitOfWork) error {
		now := s.now()
		current, getErr := uow.GetOrder(ctx, ref)
		if getErr != nil {
			return getErr
		}
		if _, appendErr := uow.AppendPaymentEvent(ctx, PaymentEvent{
			TenantID:    current.TenantID,
			OrderRef:    current.Ref,
			ExternalRef: externalRef,
			Event:       "manual_verify",
			Status:      rawStatus,
			Amount:      verified.Amount,
			Currency:    strings.ToUpper(strings.TrimSpace(verified.Currency)),
			RawPayload:  raw,
			CreatedAt:   now,
			UpdatedAt:   now,
		}); appendErr != nil {
			return appendErr
		}
		check, checkErr := uow.AppendVerificationCheck(ctx, VerificationCheck{
			TenantID:     current.TenantID,
			OrderRef:     current.Ref,
			ActorID:      actorOrSystem(req.ActorID),
			ResultStatus: rawStatus,
			RawPayload:   raw,
			CheckedAt:    now,
		})
		if checkErr != nil {
			return checkErr
		}
		if _, auditErr := uow.AppendAudit(ctx, AuditEntry{
			TenantID: current.TenantID,
			ActorID:  actorOrSystem(req.ActorID),
			Action:   AuditActionPaymentVerify,
			Target:   current.Ref,
			Metadata: map[string]any{
				"external_ref": externalRef,
				"status":       rawStatus,
				"paid":         verified.Paid,
			},
			CreatedAt: now,
		}); auditErr != nil {
			return auditErr
		}
		if next, apply := resolvePaymentState(current.Status, outcome.Mapped); apply {
			updated, applyErr := s.applyStatus(ctx, uow, current, next, req.ActorID, now)
			if applyErr != nil {
				return applyErr
			}
			current = updated
			outcome.Applied = true
		}
		outcome.Order = current
		outcome.Check = check
		outcome.Deliverable = s.gate.Allows(current, &check, now)
		return nil
	})
	if err != nil {
		err = s.mapError(err)
		return VerifyOutcome{}, err
	}
	outcome.Implication = DeliveryImplicationFor(rawStatus)

	s.notify(ctx, Notification{
		Kind:      NotificationPaymentVerified,
		TenantID:  outcome.Order.TenantID,
		OrderRef:  outcome.Order.Ref,
		Status:    outcome.Order.Status,
		RawStatus: rawStatus,
		ActorID:   actorOrSystem(req.ActorID),
		Metadata: map[string]any{
			"external_ref": externalRef,
			"implication":  string(outcome.Implication),
			"applied":      outcome.Applied,
		},
	})
	return outcome, nil
}
