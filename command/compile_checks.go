package command

import (
	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-reconcile/core"
)

var (
	_ gocmd.Commander[CreateOrderMessage]   = (*CreateOrderCommand)(nil)
	_ gocmd.Commander[SetStatusMessage]     = (*SetStatusCommand)(nil)
	_ gocmd.Commander[IngestPaymentMessage] = (*IngestPaymentCommand)(nil)
	_ gocmd.Commander[ManualVerifyMessage]  = (*ManualVerifyCommand)(nil)
	_ gocmd.Commander[DeliverMessage]       = (*DeliverCommand)(nil)
	_ MutatingService                       = (*core.Service)(nil)
)
