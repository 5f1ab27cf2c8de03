package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-reconcile/core"
)

type MutatingService interface {
	CreateOrder(ctx context.Context, req core.CreateOrderRequest) (core.Order, error)
	SetStatus(ctx context.Context, req core.SetStatusRequest) (core.Order, error)
	IngestPayment(ctx context.Context, signal core.PaymentSignal) (core.IngestResult, error)
	ManualVerify(ctx context.Context, req core.VerifyRequest) (core.VerifyOutcome, error)
	Deliver(ctx context.Context, req core.DeliverRequest) (core.Delivery, error)
}

type CreateOrderCommand struct {
	service MutatingService
}

func NewCreateOrderCommand(service MutatingService) *CreateOrderCommand {
	return &CreateOrderCommand{service: service}
}

func (c *CreateOrderCommand) Execute(ctx context.Context, msg CreateOrderMessage) error {
	if c == nil || c.service == nil {
		return core.NewMissingDependencyError("command", "create order service")
	}
	out, err := c.service.CreateOrder(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type SetStatusCommand struct {
	service MutatingService
}

func NewSetStatusCommand(service MutatingService) *SetStatusCommand {
	return &SetStatusCommand{service: service}
}

func (c *SetStatusCommand) Execute(ctx context.Context, msg SetStatusMessage) error {
	if c == nil || c.service == nil {
		return core.NewMissingDependencyError("command", "set status service")
	}
	out, err := c.service.SetStatus(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type IngestPaymentCommand struct {
	service MutatingService
}

func NewIngestPaymentCommand(service MutatingService) *IngestPaymentCommand {
	return &IngestPaymentCommand{service: service}
}

func (c *IngestPaymentCommand) Execute(ctx context.Context, msg IngestPaymentMessage) error {
	if c == nil || c.service == nil {
		return core.NewMissingDependencyError("command", "payment ingestion service")
	}
	out, err := c.service.IngestPayment(ctx, msg.Signal)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ManualVerifyCommand struct {
	service MutatingService
}

func NewManualVerifyCommand(service MutatingService) *ManualVerifyCommand {
	return &ManualVerifyCommand{service: service}
}

func (c *ManualVerifyCommand) Execute(ctx context.Context, msg ManualVerifyMessage) error {
	if c == nil || c.service == nil {
		return core.NewMissingDependencyError("command", "manual verify service")
	}
	out, err := c.service.ManualVerify(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DeliverCommand struct {
	service MutatingService
}

func NewDeliverCommand(service MutatingService) *DeliverCommand {
	return &DeliverCommand{service: service}
}

func (c *DeliverCommand) Execute(ctx context.Context, msg DeliverMessage) error {
	if c == nil || c.service == nil {
		return core.NewMissingDependencyError("command", "deliver service")
	}
	out, err := c.service.Deliver(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
