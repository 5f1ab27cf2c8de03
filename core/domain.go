package core

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrOrderNotFound   = errors.New("core: order not found")
	ErrProductNotFound = errors.New("core: product not found")
	ErrStockExhausted  = errors.New("core: no unused stock keys")
)

// SystemActor identifies writes performed by the engine itself, such as
// webhook ingestion or scheduled reconciliation.
const SystemActor = "0"

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "Pending"
	OrderStatusPaid      OrderStatus = "Paid"
	OrderStatusDelivered OrderStatus = "Delivered"
	OrderStatusDisputed  OrderStatus = "Disputed"
	OrderStatusRefunded  OrderStatus = "Refunded"
	OrderStatusCancelled OrderStatus = "Cancelled"
)

var orderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusPaid,
	OrderStatusDelivered,
	OrderStatusDisputed,
	OrderStatusRefunded,
	OrderStatusCancelled,
}

func OrderStatuses() []OrderStatus {
	return append([]OrderStatus(nil), orderStatuses...)
}

// ParseOrderStatus matches raw case-insensitively against the order status
// vocabulary and returns the canonical value.
func ParseOrderStatus(raw string) (OrderStatus, bool) {
	needle := strings.TrimSpace(raw)
	for _, status := range orderStatuses {
		if strings.EqualFold(needle, string(status)) {
			return status, true
		}
	}
	return "", false
}

func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusDelivered, OrderStatusRefunded, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

type PaymentMethod string

const (
	PaymentMethodPayPal PaymentMethod = "PayPal"
	PaymentMethodCrypto PaymentMethod = "Crypto"
	PaymentMethodCard   PaymentMethod = "Card"
	PaymentMethodCash   PaymentMethod = "Cash"
	PaymentMethodOther  PaymentMethod = "Other"
)

var paymentMethods = []PaymentMethod{
	PaymentMethodPayPal,
	PaymentMethodCrypto,
	PaymentMethodCard,
	PaymentMethodCash,
	PaymentMethodOther,
}

func ParsePaymentMethod(raw string) (PaymentMethod, bool) {
	needle := strings.TrimSpace(raw)
	for _, method := range paymentMethods {
		if strings.EqualFold(needle, string(method)) {
			return method, true
		}
	}
	return "", false
}

type StockMode string

const (
	StockModeManual   StockMode = "Manual"
	StockModeKeyStock StockMode = "KeyStock"
)

// NormalizeTenantID trims id and treats an all-zero value as no tenant.
func NormalizeTenantID(id string) string {
	id = strings.TrimSpace(id)
	if strings.Trim(id, "0") == "" {
		return ""
	}
	return id
}

type Order struct {
	ID            string
	Ref           string
	TenantID      string
	OwnerID       string
	Product       string
	Price         float64
	PaymentMethod PaymentMethod
	Status        OrderStatus
	Note          string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type PaymentEvent struct {
	ID          string
	TenantID    string
	OrderRef    string
	ExternalRef string
	Event       string
	Status      string
	Amount      float64
	Currency    string
	SubjectID   string
	Email       string
	RawPayload  []byte
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type VerificationCheck struct {
	ID           string
	TenantID     string
	OrderRef     string
	ActorID      string
	ResultStatus string
	RawPayload   []byte
	CheckedAt    time.Time
}

type AuditEntry struct {
	ID        string
	TenantID  string
	ActorID   string
	Action    string
	Target    string
	Metadata  map[string]any
	CreatedAt time.Time
}

const (
	AuditActionOrderCreate    = "ORDER_CREATE"
	AuditActionOrderStatus    = "ORDER_STATUS"
	AuditActionOrderDeliver   = "ORDER_DELIVER"
	AuditActionPaymentVerify  = "PAYMENT_VERIFY"
	AuditActionPaymentWebhook = "PAYMENT_WEBHOOK"
)

type Product struct {
	ID        string
	TenantID  string
	Name      string
	Price     float64
	StockMode StockMode
	CreatedAt time.Time
}

type StockKey struct {
	ID        string
	ProductID string
	Value     string
	Used      bool
	OrderRef  string
	UsedAt    *time.Time
	CreatedAt time.Time
}

type TenantSettings struct {
	TenantID        string
	NotifyURL       string
	NotifyChannelID string
	UpdatedAt       time.Time
}

type OrderFilter struct {
	TenantID string
	OwnerID  string
	Status   OrderStatus
	Limit    int
	Offset   int
}

type AuditFilter struct {
	TenantID string
	Target   string
	Limit    int
}
