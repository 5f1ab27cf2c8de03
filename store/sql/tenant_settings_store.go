package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-reconcile/core"
)

type TenantSettingsStore struct {
	db *bun.DB
}

func NewTenantSettingsStore(db *bun.DB) (*TenantSettingsStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &TenantSettingsStore{db: db}, nil
}

// GetTenantSettings returns the stored settings for a tenant. A tenant with no
// row yields zero settings carrying only the tenant id.
func (s *TenantSettingsStore) GetTenantSettings(ctx context.Context, tenantID string) (core.TenantSettings, error) {
	if s == nil || s.db == nil {
		return core.TenantSettings{}, fmt.Errorf("sqlstore: tenant settings store is not configured")
	}
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return core.TenantSettings{}, fmt.Errorf("sqlstore: tenant id is required")
	}
	record := &tenantSettingsRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("tenant_id = ?", tenantID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.TenantSettings{TenantID: tenantID}, nil
		}
		return core.TenantSettings{}, err
	}
	return record.toDomain(), nil
}

func (s *TenantSettingsStore) UpsertTenantSettings(ctx context.Context, settings core.TenantSettings) (core.TenantSettings, error) {
	if s == nil || s.db == nil {
		return core.TenantSettings{}, fmt.Errorf("sqlstore: tenant settings store is not configured")
	}
	record := &tenantSettingsRecord{
		TenantID:        strings.TrimSpace(settings.TenantID),
		NotifyURL:       strings.TrimSpace(settings.NotifyURL),
		NotifyChannelID: strings.TrimSpace(settings.NotifyChannelID),
		UpdatedAt:       settings.UpdatedAt.UTC(),
	}
	if record.TenantID == "" {
		return core.TenantSettings{}, fmt.Errorf("sqlstore: tenant id is required")
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = time.Now().UTC()
	}
	_, err := s.db.NewInsert().
		Model(record).
		On("CONFLICT (tenant_id) DO UPDATE").
		Set("notify_url = EXCLUDED.notify_url").
		Set("notify_channel_id = EXCLUDED.notify_channel_id").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return core.TenantSettings{}, err
	}
	return record.toDomain(), nil
}
