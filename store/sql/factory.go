package sqlstore

import (
	"fmt"

	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/uptrace/bun"
)

type RepositoryFactory struct {
	db *bun.DB

	orderStore          *OrderStore
	tenantSettingsStore *TenantSettingsStore
}

func NewRepositoryFactory() *RepositoryFactory {
	return &RepositoryFactory{}
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if err := factory.Build(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if err := factory.Build(db); err != nil {
		return nil, err
	}
	return factory, nil
}

// Build resolves the bun handle from a persistence client or *bun.DB and
// wires the stores once.
func (f *RepositoryFactory) Build(persistenceClient any) error {
	if f == nil {
		return fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return err
		}
		f.db = db
	}
	if f.orderStore != nil && f.tenantSettingsStore != nil {
		return nil
	}
	orderStore, err := NewOrderStore(f.db)
	if err != nil {
		return err
	}
	settingsStore, err := NewTenantSettingsStore(f.db)
	if err != nil {
		return err
	}
	f.orderStore = orderStore
	f.tenantSettingsStore = settingsStore
	return nil
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) OrderStore() *OrderStore {
	if f == nil {
		return nil
	}
	return f.orderStore
}

func (f *RepositoryFactory) TenantSettingsStore() *TenantSettingsStore {
	if f == nil {
		return nil
	}
	return f.tenantSettingsStore
}

// CachedTenantSettingsStore wraps the tenant settings store with the given
// cache service.
func (f *RepositoryFactory) CachedTenantSettingsStore(
	cacheService repositorycache.CacheService,
) (*CachedTenantSettingsStore, error) {
	if f == nil || f.tenantSettingsStore == nil {
		return nil, fmt.Errorf("sqlstore: repository factory is not built")
	}
	return NewCachedTenantSettingsStore(f.tenantSettingsStore, cacheService)
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
