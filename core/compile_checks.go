package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ ReconciliationService = (*Service)(nil)
	_ WriteGate             = (*MemoryWriteGate)(nil)
	_ Notifier              = NopNotifier{}

	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)
