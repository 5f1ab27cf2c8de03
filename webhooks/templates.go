package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"strings"

	"github.com/goliatone/go-reconcile/core"
)

const (
	ProcessorSellAuth = "sellauth"

	SignatureEncodingHex    = "hex"
	SignatureEncodingBase64 = "base64"
)

// SellAuthSignatureHeaders lists the headers checked for the body signature,
// in lookup order.
var SellAuthSignatureHeaders = []string{
	"X-SellAuth-Signature",
	"X-Hub-Signature-256",
	"X-Signature",
}

// HeaderHMACVerifier checks an HMAC-SHA256 of the raw body carried in one of
// several headers. An empty secret disables verification.
type HeaderHMACVerifier struct {
	Headers  []string
	Prefix   string
	Secret   string
	Encoding string
}

func (v HeaderHMACVerifier) Verify(_ context.Context, req Request) error {
	if strings.TrimSpace(v.Secret) == "" {
		return nil
	}
	signature := ""
	for _, header := range v.Headers {
		if value := strings.TrimSpace(headerValue(req.Headers, header)); value != "" {
			signature = value
			break
		}
	}
	if signature == "" {
		return core.NewAuthenticationError("webhook signature header missing")
	}
	if prefix := strings.TrimSpace(v.Prefix); prefix != "" && len(signature) >= len(prefix) &&
		strings.EqualFold(signature[:len(prefix)], prefix) {
		signature = signature[len(prefix):]
	}

	provided, err := decodeSignature(signature, v.Encoding)
	if err != nil {
		return core.NewAuthenticationError("webhook signature is not well formed")
	}

	mac := hmac.New(sha256.New, []byte(v.Secret))
	_, _ = mac.Write(req.Body)
	expected := mac.Sum(nil)
	if subtle.ConstantTimeCompare(provided, expected) != 1 {
		return core.NewAuthenticationError("invalid webhook signature")
	}
	return nil
}

// ProcessorTemplate bundles the verifier and decoder used for one processor.
type ProcessorTemplate struct {
	ProcessorID string
	Verifier    Verifier
	Decoder     Decoder
}

// NewSellAuthTemplate returns the template for SellAuth deliveries: a hex
// HMAC-SHA256 signature with an optional "sha256=" prefix.
func NewSellAuthTemplate(secret string) ProcessorTemplate {
	return ProcessorTemplate{
		ProcessorID: ProcessorSellAuth,
		Verifier: HeaderHMACVerifier{
			Headers:  append([]string(nil), SellAuthSignatureHeaders...),
			Prefix:   "sha256=",
			Secret:   secret,
			Encoding: SignatureEncodingHex,
		},
		Decoder: DecoderFunc(DecodePayload),
	}
}

func decodeSignature(value string, encoding string) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case SignatureEncodingBase64:
		return base64.StdEncoding.DecodeString(value)
	default:
		return hex.DecodeString(strings.ToLower(value))
	}
}

func headerValue(headers map[string]string, key string) string {
	if len(headers) == 0 {
		return ""
	}
	if value, ok := headers[key]; ok {
		return value
	}
	for current, value := range headers {
		if strings.EqualFold(current, key) {
			return value
		}
	}
	return ""
}
