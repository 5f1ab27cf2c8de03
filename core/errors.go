package core

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorConfiguration     = "RECONCILE_CONFIGURATION"
	ErrorRemoteUnavailable = "RECONCILE_REMOTE_UNAVAILABLE"
	ErrorInvalidStatus     = "RECONCILE_INVALID_STATUS"
	ErrorInvalidPayload    = "RECONCILE_INVALID_PAYLOAD"
	ErrorNotFound          = "RECONCILE_NOT_FOUND"
	ErrorUnauthorized      = "RECONCILE_UNAUTHORIZED"
	ErrorMalformedPayload  = "RECONCILE_MALFORMED_PAYLOAD"
	ErrorDeliveryBlocked   = "RECONCILE_DELIVERY_BLOCKED"
	ErrorAlreadyDelivered  = "RECONCILE_ALREADY_DELIVERED"
	ErrorStockExhausted    = "RECONCILE_STOCK_EXHAUSTED"
	ErrorInvalidTransition = "RECONCILE_INVALID_TRANSITION"
	ErrorInternal          = "RECONCILE_INTERNAL"
)

func NewError(message string, category goerrors.Category, textCode string, metadata map[string]any) *goerrors.Error {
	err := goerrors.New(message, category).
		WithCode(HTTPStatus(category)).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func WrapError(
	source error,
	category goerrors.Category,
	message string,
	textCode string,
	metadata map[string]any,
) *goerrors.Error {
	if source == nil {
		return NewError(message, category, textCode, metadata)
	}
	err := goerrors.Wrap(source, category, message).
		WithCode(HTTPStatus(category)).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func NewConfigurationError(message string) *goerrors.Error {
	return NewError(message, goerrors.CategoryInternal, ErrorConfiguration, nil)
}

func NewRemoteUnavailableError(cause error, attempts int) *goerrors.Error {
	err := WrapError(
		cause,
		goerrors.CategoryExternal,
		"payment processor unavailable",
		ErrorRemoteUnavailable,
		map[string]any{"attempts": attempts},
	)
	err.Code = http.StatusBadGateway
	return err
}

func NewInvalidStatusError(raw string) *goerrors.Error {
	return NewError("status is not in the order status vocabulary", goerrors.CategoryBadInput, ErrorInvalidStatus,
		map[string]any{"status": raw})
}

func NewInvalidPayloadError(message string, metadata map[string]any) *goerrors.Error {
	return NewError(message, goerrors.CategoryBadInput, ErrorInvalidPayload, metadata)
}

func NewNotFoundError(message string, metadata map[string]any) *goerrors.Error {
	return NewError(message, goerrors.CategoryNotFound, ErrorNotFound, metadata)
}

func NewAuthenticationError(message string) *goerrors.Error {
	return NewError(message, goerrors.CategoryAuth, ErrorUnauthorized, nil)
}

func NewMalformedPayloadError(source error) *goerrors.Error {
	return WrapError(source, goerrors.CategoryBadInput, "webhook body is not a valid JSON object", ErrorMalformedPayload, nil)
}

// HTTPStatus maps an error category to the response code used at the HTTP
// boundary.
func HTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict, goerrors.CategoryOperation:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// MapError converts any error into a rich envelope carrying a code and text
// code. Rich errors pass through with missing fields filled in.
func MapError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return ensureErrorEnvelope(rich)
	}
	switch {
	case errors.Is(err, ErrOrderNotFound), errors.Is(err, ErrProductNotFound):
		return NewNotFoundError(err.Error(), nil)
	case errors.Is(err, ErrStockExhausted):
		return NewError(err.Error(), goerrors.CategoryOperation, ErrorStockExhausted, nil)
	}
	return ensureErrorEnvelope(goerrors.MapToError(err, goerrors.DefaultErrorMappers()))
}

func ensureErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = HTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

// NewFieldError reports one invalid field of an inbound message.
func NewFieldError(scope string, field string, message string) *goerrors.Error {
	return goerrors.NewValidation(scope+": validation failed", goerrors.FieldError{
		Field:   field,
		Message: message,
	}).
		WithCode(HTTPStatus(goerrors.CategoryValidation)).
		WithTextCode(ErrorInvalidPayload).
		WithSeverity(goerrors.SeverityError)
}

// NewMissingDependencyError reports a handler built without its service.
func NewMissingDependencyError(scope string, dependency string) *goerrors.Error {
	return NewError(scope+": "+dependency+" is required", goerrors.CategoryInternal, ErrorInternal, nil)
}

func defaultTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ErrorInvalidPayload
	case goerrors.CategoryNotFound:
		return ErrorNotFound
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return ErrorUnauthorized
	case goerrors.CategoryExternal:
		return ErrorRemoteUnavailable
	default:
		return ErrorInternal
	}
}

// HasTextCode reports whether err carries the given text code.
func HasTextCode(err error, textCode string) bool {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return false
	}
	return rich.TextCode == textCode
}

var userMessages = map[string]string{
	ErrorConfiguration:     "Payment verification is not configured. Ask an administrator to set the processor credentials.",
	ErrorInvalidStatus:     "That status is not valid. Use one of: Pending, Paid, Delivered, Disputed, Refunded, Cancelled.",
	ErrorInvalidPayload:    "Some of the provided order details are invalid.",
	ErrorNotFound:          "Order not found.",
	ErrorDeliveryBlocked:   "Delivery is blocked until the payment is confirmed. Run a payment verification first.",
	ErrorAlreadyDelivered:  "This order has already been delivered.",
	ErrorStockExhausted:    "No stock keys are left for this product.",
	ErrorInvalidTransition: "That status change is not allowed for this order.",
}

const genericUserMessage = "Something went wrong. Please try again or contact staff."

// UserMessage returns the message a human-facing collaborator shows for err:
// a specific one for policy rejections and a generic one otherwise.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return genericUserMessage
	}
	if msg, ok := userMessages[rich.TextCode]; ok {
		return msg
	}
	return genericUserMessage
}
