package webhooks

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/goliatone/go-reconcile/core"
)

const unknownEvent = "unknown"

var errNotObject = errors.New("webhook body must be a JSON object")

// Payload is the processor-neutral view of a webhook body. Every field is
// optional; absent values stay empty and Amount defaults to zero.
type Payload struct {
	Event       string
	TenantID    string
	OrderRef    string
	ExternalRef string
	Status      string
	Amount      float64
	Currency    string
	SubjectID   string
	Email       string
	Raw         []byte
}

// Signal converts the payload into the input accepted by payment ingestion.
func (p Payload) Signal() core.PaymentSignal {
	return core.PaymentSignal{
		TenantID:    p.TenantID,
		OrderRef:    p.OrderRef,
		ExternalRef: p.ExternalRef,
		Event:       p.Event,
		Status:      p.Status,
		Amount:      p.Amount,
		Currency:    p.Currency,
		SubjectID:   p.SubjectID,
		Email:       p.Email,
		RawPayload:  p.Raw,
	}
}

type Decoder interface {
	Decode(body []byte) (Payload, error)
}

type DecoderFunc func(body []byte) (Payload, error)

func (fn DecoderFunc) Decode(body []byte) (Payload, error) {
	return fn(body)
}

// DecodePayload reads a SellAuth style body.
//
//	event:        event | type | status | "unknown"
//	data:         data (object) | whole body
//	external ref: data.order_id | data.id | order_id
//	local ref:    data.custom_id | data.metadata.tkz_order_id | data.metadata.order_ref
//	tenant:       guild_id | tenant_id | data.guild_id, zero means absent
//	status:       data.status | event
//	amount:       data.amount | data.total | 0
//	subject:      data.discord_id when it is all digits
func DecodePayload(body []byte) (Payload, error) {
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	var raw any
	if err := decoder.Decode(&raw); err != nil {
		return Payload{}, core.NewMalformedPayloadError(err)
	}
	if decoder.More() {
		return Payload{}, core.NewMalformedPayloadError(fmt.Errorf("trailing data after JSON document"))
	}
	top, ok := raw.(map[string]any)
	if !ok {
		return Payload{}, core.NewMalformedPayloadError(errNotObject)
	}

	data, ok := top["data"].(map[string]any)
	if !ok {
		data = top
	}
	metadata, _ := data["metadata"].(map[string]any)

	payload := Payload{
		Event:       firstString(top, "event", "type", "status"),
		TenantID:    firstNonEmpty(firstTenant(top, "guild_id", "tenant_id"), firstTenant(data, "guild_id")),
		OrderRef:    firstNonEmpty(firstString(data, "custom_id"), firstString(metadata, "tkz_order_id", "order_ref")),
		ExternalRef: firstNonEmpty(firstString(data, "order_id", "id"), firstString(top, "order_id")),
		Amount:      firstNumber(data, "amount", "total"),
		Currency:    firstString(data, "currency"),
		Email:       firstString(data, "email"),
		Raw:         append([]byte(nil), body...),
	}
	if payload.Event == "" {
		payload.Event = unknownEvent
	}
	payload.Status = firstNonEmpty(firstString(data, "status"), payload.Event)
	if subject := firstString(data, "discord_id"); isDigits(subject) {
		payload.SubjectID = subject
	}
	return payload, nil
}

func firstString(values map[string]any, keys ...string) string {
	for _, key := range keys {
		if value := scalarString(values[key]); value != "" {
			return value
		}
	}
	return ""
}

func firstTenant(values map[string]any, keys ...string) string {
	for _, key := range keys {
		if value := core.NormalizeTenantID(scalarString(values[key])); value != "" {
			return value
		}
	}
	return ""
}

func scalarString(value any) string {
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case json.Number:
		return typed.String()
	case bool:
		return strconv.FormatBool(typed)
	default:
		return ""
	}
}

func firstNumber(values map[string]any, keys ...string) float64 {
	for _, key := range keys {
		var text string
		switch typed := values[key].(type) {
		case json.Number:
			text = typed.String()
		case string:
			text = strings.TrimSpace(typed)
		default:
			continue
		}
		parsed, err := strconv.ParseFloat(text, 64)
		if err != nil || parsed == 0 || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
			continue
		}
		return parsed
	}
	return 0
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}

func isDigits(value string) bool {
	if value == "" {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
