package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/goliatone/go-reconcile/core"
)

func TestSellAuthTemplate_AcceptsSignatureHeaders(t *testing.T) {
	body := []byte(`{"event":"order.completed"}`)
	template := NewSellAuthTemplate("secret")
	signature := signHexHMAC("secret", body)

	cases := map[string]map[string]string{
		"sellauth header":   {"X-SellAuth-Signature": signature},
		"hub header prefix": {"X-Hub-Signature-256": "sha256=" + signature},
		"generic header":    {"X-Signature": signature},
		"lowercase header":  {"x-sellauth-signature": "SHA256=" + signature},
	}
	for name, headers := range cases {
		err := template.Verifier.Verify(context.Background(), Request{
			ProcessorID: ProcessorSellAuth,
			Headers:     headers,
			Body:        body,
		})
		if err != nil {
			t.Fatalf("%s: expected signature accepted, got %v", name, err)
		}
	}
}

func TestSellAuthTemplate_RejectsMutatedBody(t *testing.T) {
	body := []byte(`{"event":"order.completed","data":{"custom_id":"TKZ-2026-000001"}}`)
	signature := signHexHMAC("secret", body)
	template := NewSellAuthTemplate("secret")

	for i := range body {
		mutated := append([]byte(nil), body...)
		mutated[i] ^= 0x01
		err := template.Verifier.Verify(context.Background(), Request{
			Headers: map[string]string{"X-SellAuth-Signature": signature},
			Body:    mutated,
		})
		if err == nil {
			t.Fatalf("expected mutation at byte %d to be rejected", i)
		}
		if !core.HasTextCode(err, core.ErrorUnauthorized) {
			t.Fatalf("expected unauthorized text code, got %v", err)
		}
	}
}

func TestSellAuthTemplate_RejectsMissingOrMalformedSignature(t *testing.T) {
	body := []byte(`{"event":"order.completed"}`)
	template := NewSellAuthTemplate("secret")

	if err := template.Verifier.Verify(context.Background(), Request{Body: body}); err == nil {
		t.Fatalf("expected missing signature to be rejected")
	}
	err := template.Verifier.Verify(context.Background(), Request{
		Headers: map[string]string{"X-Signature": "not-hex"},
		Body:    body,
	})
	if err == nil {
		t.Fatalf("expected malformed signature to be rejected")
	}
	err = template.Verifier.Verify(context.Background(), Request{
		Headers: map[string]string{"X-Signature": signHexHMAC("other", body)},
		Body:    body,
	})
	if err == nil {
		t.Fatalf("expected signature from another secret to be rejected")
	}
}

func TestSellAuthTemplate_EmptySecretSkipsVerification(t *testing.T) {
	template := NewSellAuthTemplate("")
	if err := template.Verifier.Verify(context.Background(), Request{Body: []byte(`{}`)}); err != nil {
		t.Fatalf("expected verification skipped without secret, got %v", err)
	}
}

func signHexHMAC(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
