package command

import (
	"strings"

	"github.com/goliatone/go-reconcile/core"
)

const (
	TypeCreateOrder   = "reconcile.command.order.create"
	TypeSetStatus     = "reconcile.command.order.set_status"
	TypeIngestPayment = "reconcile.command.payment.ingest"
	TypeManualVerify  = "reconcile.command.payment.verify"
	TypeDeliver       = "reconcile.command.order.deliver"
)

type CreateOrderMessage struct {
	Request core.CreateOrderRequest
}

func (CreateOrderMessage) Type() string { return TypeCreateOrder }

func (m CreateOrderMessage) Validate() error {
	return m.Request.Validate()
}

type SetStatusMessage struct {
	Request core.SetStatusRequest
}

func (SetStatusMessage) Type() string { return TypeSetStatus }

func (m SetStatusMessage) Validate() error {
	if strings.TrimSpace(m.Request.OrderRef) == "" {
		return core.NewFieldError("command", "order_ref", "order reference is required")
	}
	if strings.TrimSpace(m.Request.Status) == "" {
		return core.NewFieldError("command", "status", "status is required")
	}
	return nil
}

type IngestPaymentMessage struct {
	Signal core.PaymentSignal
}

func (IngestPaymentMessage) Type() string { return TypeIngestPayment }

func (m IngestPaymentMessage) Validate() error {
	if strings.TrimSpace(m.Signal.Event) == "" && strings.TrimSpace(m.Signal.Status) == "" {
		return core.NewFieldError("command", "event", "event or status is required")
	}
	return nil
}

type ManualVerifyMessage struct {
	Request core.VerifyRequest
}

func (ManualVerifyMessage) Type() string { return TypeManualVerify }

func (m ManualVerifyMessage) Validate() error {
	if strings.TrimSpace(m.Request.OrderRef) == "" {
		return core.NewFieldError("command", "order_ref", "order reference is required")
	}
	return nil
}

type DeliverMessage struct {
	Request core.DeliverRequest
}

func (DeliverMessage) Type() string { return TypeDeliver }

func (m DeliverMessage) Validate() error {
	if strings.TrimSpace(m.Request.OrderRef) == "" {
		return core.NewFieldError("command", "order_ref", "order reference is required")
	}
	return nil
}
