package core

import (
	"context"
	"sort"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	observeStatusOK    = "ok"
	observeStatusError = "error"
)

type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string)         {}
func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

var _ MetricsRecorder = NopMetricsRecorder{}

// observeOperation emits reconcile.<operation>.total and
// reconcile.<operation>.duration_ms and logs the outcome with fields.
func (s *Service) observeOperation(
	ctx context.Context,
	startedAt time.Time,
	operation string,
	err error,
	fields map[string]any,
) {
	if s == nil {
		return
	}
	elapsed := time.Since(startedAt)
	operation = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(operation)), " ", "_")
	if operation == "" {
		operation = "unknown"
	}
	status := OutcomeStatus(err)

	tags := map[string]string{"operation": operation, "status": status}
	if orderStatus, ok := fields["order_status"].(string); ok && orderStatus != "" {
		tags["order_status"] = orderStatus
	}
	if s.metricsRecorder != nil {
		s.metricsRecorder.IncCounter(ctx, "reconcile."+operation+".total", 1, copyTags(tags))
		s.metricsRecorder.ObserveHistogram(ctx, "reconcile."+operation+".duration_ms", float64(elapsed.Milliseconds()), copyTags(tags))
	}

	entry := make(map[string]any, len(fields)+3)
	for key, value := range fields {
		entry[key] = value
	}
	entry["operation"] = operation
	entry["status"] = status
	entry["duration_ms"] = elapsed.Milliseconds()
	if err != nil {
		entry["error"] = err.Error()
		s.logError(ctx, operation+" failed", entry)
		return
	}
	s.logInfo(ctx, operation+" succeeded", entry)
}

// OutcomeStatus reduces err to a bounded metric label: ok, the lower-cased
// text code without its RECONCILE_ prefix, or error.
func OutcomeStatus(err error) string {
	if err == nil {
		return observeStatusOK
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich.TextCode != "" {
		return strings.ToLower(strings.TrimPrefix(rich.TextCode, "RECONCILE_"))
	}
	return observeStatusError
}

func (s *Service) logInfo(ctx context.Context, message string, fields map[string]any) {
	if logger := s.contextLogger(ctx); logger != nil {
		logger.Info(message, logArgs(fields)...)
	}
}

func (s *Service) logWarn(ctx context.Context, message string, fields map[string]any) {
	if logger := s.contextLogger(ctx); logger != nil {
		logger.Warn(message, logArgs(fields)...)
	}
}

func (s *Service) logError(ctx context.Context, message string, fields map[string]any) {
	if logger := s.contextLogger(ctx); logger != nil {
		logger.Error(message, logArgs(fields)...)
	}
}

func (s *Service) contextLogger(ctx context.Context) Logger {
	if s == nil || s.logger == nil {
		return nil
	}
	if ctx == nil {
		return s.logger
	}
	return s.logger.WithContext(ctx)
}

// logArgs flattens fields into sorted key/value pairs.
func logArgs(fields map[string]any) []any {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	args := make([]any, 0, len(keys)*2)
	for _, key := range keys {
		args = append(args, key, fields[key])
	}
	return args
}

func copyTags(tags map[string]string) map[string]string {
	copied := make(map[string]string, len(tags))
	for key, value := range tags {
		copied[key] = value
	}
	return copied
}
