package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type orderRecord struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	ID            string    `bun:"id,pk"`
	Ref           string    `bun:"ref,notnull"`
	TenantID      string    `bun:"tenant_id,notnull"`
	OwnerID       string    `bun:"owner_id,notnull"`
	Product       string    `bun:"product,notnull"`
	Price         float64   `bun:"price,notnull"`
	PaymentMethod string    `bun:"payment_method,notnull"`
	Status        string    `bun:"status,notnull"`
	Note          string    `bun:"note,notnull"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type orderSequenceRecord struct {
	bun.BaseModel `bun:"table:order_sequences,alias:os"`

	Key       string    `bun:"sequence_key,pk"`
	Value     int64     `bun:"value,notnull"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type paymentEventRecord struct {
	bun.BaseModel `bun:"table:payment_events,alias:pe"`

	ID          string    `bun:"id,pk"`
	TenantID    string    `bun:"tenant_id,notnull"`
	OrderRef    string    `bun:"order_ref,notnull"`
	ExternalRef string    `bun:"external_ref,notnull"`
	Event       string    `bun:"event,notnull"`
	Status      string    `bun:"status,notnull"`
	Amount      float64   `bun:"amount,notnull"`
	Currency    string    `bun:"currency,notnull"`
	SubjectID   string    `bun:"subject_id,notnull"`
	Email       string    `bun:"email,notnull"`
	RawPayload  []byte    `bun:"raw_payload"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt   time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type verificationCheckRecord struct {
	bun.BaseModel `bun:"table:verification_checks,alias:vc"`

	ID           string    `bun:"id,pk"`
	TenantID     string    `bun:"tenant_id,notnull"`
	OrderRef     string    `bun:"order_ref,notnull"`
	ActorID      string    `bun:"actor_id,notnull"`
	ResultStatus string    `bun:"result_status,notnull"`
	RawPayload   []byte    `bun:"raw_payload"`
	CheckedAt    time.Time `bun:"checked_at,nullzero,notnull,default:current_timestamp"`
}

type auditEntryRecord struct {
	bun.BaseModel `bun:"table:audit_log,alias:al"`

	ID        string         `bun:"id,pk"`
	TenantID  string         `bun:"tenant_id,notnull"`
	ActorID   string         `bun:"actor_id,notnull"`
	Action    string         `bun:"action,notnull"`
	Target    string         `bun:"target,notnull"`
	Metadata  map[string]any `bun:"metadata,type:jsonb,notnull"`
	CreatedAt time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type productRecord struct {
	bun.BaseModel `bun:"table:products,alias:p"`

	ID        string    `bun:"id,pk"`
	TenantID  string    `bun:"tenant_id,notnull"`
	Name      string    `bun:"name,notnull"`
	Price     float64   `bun:"price,notnull"`
	StockMode string    `bun:"stock_mode,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type stockKeyRecord struct {
	bun.BaseModel `bun:"table:stock_keys,alias:sk"`

	ID        string     `bun:"id,pk"`
	ProductID string     `bun:"product_id,notnull"`
	Value     string     `bun:"value,notnull"`
	Used      bool       `bun:"used,notnull"`
	OrderRef  string     `bun:"order_ref,nullzero"`
	UsedAt    *time.Time `bun:"used_at,nullzero"`
	CreatedAt time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type tenantSettingsRecord struct {
	bun.BaseModel `bun:"table:tenant_settings,alias:ts"`

	TenantID        string    `bun:"tenant_id,pk"`
	NotifyURL       string    `bun:"notify_url,notnull"`
	NotifyChannelID string    `bun:"notify_channel_id,notnull"`
	UpdatedAt       time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
