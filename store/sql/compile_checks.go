package sqlstore

import "github.com/goliatone/go-reconcile/core"

var (
	_ core.Store       = (*OrderStore)(nil)
	_ core.OrderReader = queries{}
	_ core.UnitOfWork  = (*unitOfWork)(nil)
)
