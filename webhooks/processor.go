package webhooks

import (
	"context"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-reconcile/core"
)

// Request is one inbound webhook delivery.
type Request struct {
	ProcessorID string
	Headers     map[string]string
	Body        []byte
}

// Result describes the HTTP answer for a delivery.
type Result struct {
	Accepted   bool
	StatusCode int
	Body       map[string]any
	Ingest     *core.IngestResult
}

type Verifier interface {
	Verify(ctx context.Context, req Request) error
}

type PaymentIngestor interface {
	IngestPayment(ctx context.Context, signal core.PaymentSignal) (core.IngestResult, error)
}

type Processor struct {
	Verifier Verifier
	Decoder  Decoder
	Ingestor PaymentIngestor
	Logger   core.Logger
}

func NewProcessor(template ProcessorTemplate, ingestor PaymentIngestor) *Processor {
	return &Processor{
		Verifier: template.Verifier,
		Decoder:  template.Decoder,
		Ingestor: ingestor,
		Logger:   glog.Nop(),
	}
}

// Process runs a delivery through verification, decoding and ingestion. The
// returned Result is always usable as a response; the error carries the
// cause when the delivery was rejected.
func (p *Processor) Process(ctx context.Context, req Request) (Result, error) {
	if p == nil || p.Ingestor == nil {
		err := core.NewConfigurationError("webhook processor requires a payment ingestor")
		return rejected(http.StatusInternalServerError, "internal error"), err
	}
	req.ProcessorID = strings.TrimSpace(strings.ToLower(req.ProcessorID))
	logger := p.logger().WithContext(ctx)

	if p.Verifier != nil {
		if err := p.Verifier.Verify(ctx, req); err != nil {
			logger.Warn("webhook signature rejected", "processor", req.ProcessorID, "error", err)
			return rejected(http.StatusUnauthorized, "invalid signature"), err
		}
	}

	decoder := p.Decoder
	if decoder == nil {
		decoder = DecoderFunc(DecodePayload)
	}
	payload, err := decoder.Decode(req.Body)
	if err != nil {
		logger.Warn("webhook payload rejected", "processor", req.ProcessorID, "error", err)
		return rejected(http.StatusBadRequest, "malformed payload"), err
	}

	ingest, err := p.Ingestor.IngestPayment(ctx, payload.Signal())
	if err != nil {
		logger.Error("webhook ingestion failed",
			"processor", req.ProcessorID,
			"external_ref", payload.ExternalRef,
			"order_ref", payload.OrderRef,
			"error", err,
		)
		return rejected(statusForIngestError(err), "ingestion failed"), err
	}

	logger.Info("webhook ingested",
		"processor", req.ProcessorID,
		"event", payload.Event,
		"order_ref", payload.OrderRef,
		"tenant_id", ingest.TenantID,
		"applied", ingest.Applied,
	)
	return Result{
		Accepted:   true,
		StatusCode: http.StatusOK,
		Body:       map[string]any{"ok": true},
		Ingest:     &ingest,
	}, nil
}

func (p *Processor) logger() core.Logger {
	if p.Logger == nil {
		return glog.Nop()
	}
	return p.Logger
}

func rejected(status int, message string) Result {
	return Result{
		Accepted:   false,
		StatusCode: status,
		Body: map[string]any{
			"ok":    false,
			"error": message,
		},
	}
}

// statusForIngestError keeps storage and unexpected failures at 500 so the
// processor retries; caller mistakes surfaced by the service map to 4xx.
func statusForIngestError(err error) int {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich != nil {
		switch rich.Category {
		case goerrors.CategoryBadInput, goerrors.CategoryValidation:
			return http.StatusBadRequest
		}
	}
	return http.StatusInternalServerError
}

var _ Verifier = HeaderHMACVerifier{}

