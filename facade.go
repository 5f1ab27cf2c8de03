package reconcile

import (
	"fmt"

	"github.com/goliatone/go-reconcile/command"
	"github.com/goliatone/go-reconcile/core"
	"github.com/goliatone/go-reconcile/query"
)

type Commands struct {
	CreateOrder   *command.CreateOrderCommand
	SetStatus     *command.SetStatusCommand
	IngestPayment *command.IngestPaymentCommand
	ManualVerify  *command.ManualVerifyCommand
	Deliver       *command.DeliverCommand
}

type Queries struct {
	GetOrder          *query.GetOrderQuery
	ListOrders        *query.ListOrdersQuery
	ListPaymentEvents *query.ListPaymentEventsQuery
	ListAudit         *query.ListAuditQuery
	CanDeliver        *query.CanDeliverQuery
}

// Facade hands the chat collaborator typed command and query handlers bound
// to one reconciliation service.
type Facade struct {
	service  core.ReconciliationService
	commands Commands
	queries  Queries
}

func NewFacade(service core.ReconciliationService) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("reconcile: reconciliation service is required")
	}
	return &Facade{
		service: service,
		commands: Commands{
			CreateOrder:   command.NewCreateOrderCommand(service),
			SetStatus:     command.NewSetStatusCommand(service),
			IngestPayment: command.NewIngestPaymentCommand(service),
			ManualVerify:  command.NewManualVerifyCommand(service),
			Deliver:       command.NewDeliverCommand(service),
		},
		queries: Queries{
			GetOrder:          query.NewGetOrderQuery(service),
			ListOrders:        query.NewListOrdersQuery(service),
			ListPaymentEvents: query.NewListPaymentEventsQuery(service),
			ListAudit:         query.NewListAuditQuery(service),
			CanDeliver:        query.NewCanDeliverQuery(service),
		},
	}, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() core.ReconciliationService {
	if f == nil {
		return nil
	}
	return f.service
}
