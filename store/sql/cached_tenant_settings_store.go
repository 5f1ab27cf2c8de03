package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"

	"github.com/goliatone/go-reconcile/core"
)

const tenantSettingsCacheKeyPrefix = "go-reconcile::tenant_settings::v1"

type TenantSettingsSource interface {
	GetTenantSettings(ctx context.Context, tenantID string) (core.TenantSettings, error)
	UpsertTenantSettings(ctx context.Context, settings core.TenantSettings) (core.TenantSettings, error)
}

// CachedTenantSettingsStore serves tenant settings reads through a cache and
// invalidates the entry on every write.
type CachedTenantSettingsStore struct {
	base  TenantSettingsSource
	cache repositorycache.CacheService
}

func NewCachedTenantSettingsStore(
	base TenantSettingsSource,
	cacheService repositorycache.CacheService,
) (*CachedTenantSettingsStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base tenant settings store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: tenant settings cache service is required")
	}
	return &CachedTenantSettingsStore{base: base, cache: cacheService}, nil
}

// TenantSettingsCacheKey returns go-reconcile::tenant_settings::v1::<tenant>
// with the tenant id URL-path escaped.
func TenantSettingsCacheKey(tenantID string) (string, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return "", fmt.Errorf("sqlstore: tenant id is required")
	}
	return tenantSettingsCacheKeyPrefix + "::" + url.PathEscape(tenantID), nil
}

func (s *CachedTenantSettingsStore) GetTenantSettings(ctx context.Context, tenantID string) (core.TenantSettings, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.TenantSettings{}, fmt.Errorf("sqlstore: cached tenant settings store is not configured")
	}
	cacheKey, err := TenantSettingsCacheKey(tenantID)
	if err != nil {
		return core.TenantSettings{}, err
	}
	return repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.TenantSettings, error) {
		return s.base.GetTenantSettings(ctx, strings.TrimSpace(tenantID))
	})
}

func (s *CachedTenantSettingsStore) UpsertTenantSettings(ctx context.Context, settings core.TenantSettings) (core.TenantSettings, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.TenantSettings{}, fmt.Errorf("sqlstore: cached tenant settings store is not configured")
	}
	cacheKey, err := TenantSettingsCacheKey(settings.TenantID)
	if err != nil {
		return core.TenantSettings{}, err
	}
	stored, err := s.base.UpsertTenantSettings(ctx, settings)
	if err != nil {
		return core.TenantSettings{}, err
	}
	if err := s.cache.Delete(ctx, cacheKey); err != nil {
		return core.TenantSettings{}, err
	}
	return stored, nil
}

var (
	_ TenantSettingsSource = (*TenantSettingsStore)(nil)
	_ TenantSettingsSource = (*CachedTenantSettingsStore)(nil)
)
