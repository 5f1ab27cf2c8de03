package sqlstore

import (
	"strings"

	"github.com/goliatone/go-reconcile/core"
)

func newOrderRecord(order core.Order) *orderRecord {
	return &orderRecord{
		ID:            strings.TrimSpace(order.ID),
		Ref:           strings.TrimSpace(order.Ref),
		TenantID:      strings.TrimSpace(order.TenantID),
		OwnerID:       strings.TrimSpace(order.OwnerID),
		Product:       strings.TrimSpace(order.Product),
		Price:         order.Price,
		PaymentMethod: string(order.PaymentMethod),
		Status:        string(order.Status),
		Note:          order.Note,
		CreatedAt:     order.CreatedAt.UTC(),
		UpdatedAt:     order.UpdatedAt.UTC(),
	}
}

func (r *orderRecord) toDomain() core.Order {
	if r == nil {
		return core.Order{}
	}
	return core.Order{
		ID:            r.ID,
		Ref:           r.Ref,
		TenantID:      r.TenantID,
		OwnerID:       r.OwnerID,
		Product:       r.Product,
		Price:         r.Price,
		PaymentMethod: core.PaymentMethod(r.PaymentMethod),
		Status:        core.OrderStatus(r.Status),
		Note:          r.Note,
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
	}
}

func newPaymentEventRecord(event core.PaymentEvent) *paymentEventRecord {
	return &paymentEventRecord{
		ID:          strings.TrimSpace(event.ID),
		TenantID:    event.TenantID,
		OrderRef:    event.OrderRef,
		ExternalRef: event.ExternalRef,
		Event:       event.Event,
		Status:      event.Status,
		Amount:      event.Amount,
		Currency:    event.Currency,
		SubjectID:   event.SubjectID,
		Email:       event.Email,
		RawPayload:  copyBytes(event.RawPayload),
		CreatedAt:   event.CreatedAt.UTC(),
		UpdatedAt:   event.UpdatedAt.UTC(),
	}
}

func (r *paymentEventRecord) toDomain() core.PaymentEvent {
	if r == nil {
		return core.PaymentEvent{}
	}
	return core.PaymentEvent{
		ID:          r.ID,
		TenantID:    r.TenantID,
		OrderRef:    r.OrderRef,
		ExternalRef: r.ExternalRef,
		Event:       r.Event,
		Status:      r.Status,
		Amount:      r.Amount,
		Currency:    r.Currency,
		SubjectID:   r.SubjectID,
		Email:       r.Email,
		RawPayload:  copyBytes(r.RawPayload),
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

func newVerificationCheckRecord(check core.VerificationCheck) *verificationCheckRecord {
	return &verificationCheckRecord{
		ID:           strings.TrimSpace(check.ID),
		TenantID:     check.TenantID,
		OrderRef:     check.OrderRef,
		ActorID:      check.ActorID,
		ResultStatus: check.ResultStatus,
		RawPayload:   copyBytes(check.RawPayload),
		CheckedAt:    check.CheckedAt.UTC(),
	}
}

func (r *verificationCheckRecord) toDomain() core.VerificationCheck {
	if r == nil {
		return core.VerificationCheck{}
	}
	return core.VerificationCheck{
		ID:           r.ID,
		TenantID:     r.TenantID,
		OrderRef:     r.OrderRef,
		ActorID:      r.ActorID,
		ResultStatus: r.ResultStatus,
		RawPayload:   copyBytes(r.RawPayload),
		CheckedAt:    r.CheckedAt.UTC(),
	}
}

func newAuditEntryRecord(entry core.AuditEntry) *auditEntryRecord {
	return &auditEntryRecord{
		ID:        strings.TrimSpace(entry.ID),
		TenantID:  entry.TenantID,
		ActorID:   entry.ActorID,
		Action:    entry.Action,
		Target:    entry.Target,
		Metadata:  copyAnyMap(entry.Metadata),
		CreatedAt: entry.CreatedAt.UTC(),
	}
}

func (r *auditEntryRecord) toDomain() core.AuditEntry {
	if r == nil {
		return core.AuditEntry{}
	}
	return core.AuditEntry{
		ID:        r.ID,
		TenantID:  r.TenantID,
		ActorID:   r.ActorID,
		Action:    r.Action,
		Target:    r.Target,
		Metadata:  copyAnyMap(r.Metadata),
		CreatedAt: r.CreatedAt.UTC(),
	}
}

func (r *productRecord) toDomain() core.Product {
	if r == nil {
		return core.Product{}
	}
	return core.Product{
		ID:        r.ID,
		TenantID:  r.TenantID,
		Name:      r.Name,
		Price:     r.Price,
		StockMode: core.StockMode(r.StockMode),
		CreatedAt: r.CreatedAt.UTC(),
	}
}

func (r *stockKeyRecord) toDomain() core.StockKey {
	if r == nil {
		return core.StockKey{}
	}
	key := core.StockKey{
		ID:        r.ID,
		ProductID: r.ProductID,
		Value:     r.Value,
		Used:      r.Used,
		OrderRef:  r.OrderRef,
		CreatedAt: r.CreatedAt.UTC(),
	}
	if r.UsedAt != nil {
		usedAt := r.UsedAt.UTC()
		key.UsedAt = &usedAt
	}
	return key
}

func (r *tenantSettingsRecord) toDomain() core.TenantSettings {
	if r == nil {
		return core.TenantSettings{}
	}
	return core.TenantSettings{
		TenantID:        r.TenantID,
		NotifyURL:       r.NotifyURL,
		NotifyChannelID: r.NotifyChannelID,
		UpdatedAt:       r.UpdatedAt.UTC(),
	}
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func copyBytes(in []byte) []byte {
	if in == nil {
		return nil
	}
	return append([]byte(nil), in...)
}
