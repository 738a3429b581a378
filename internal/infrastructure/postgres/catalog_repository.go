package postgres

import (
	"context"
	"fmt"
)

// CatalogRepo registra los identificadores de items y bodegas que el ledger referencia.
// El catálogo completo vive fuera de este servicio; aquí solo existe para la integridad referencial.
type CatalogRepo struct {
	q Querier
}

// NewCatalogRepository construye el adaptador. Pasar pool o tx (Querier).
func NewCatalogRepository(q Querier) *CatalogRepo {
	return &CatalogRepo{q: q}
}

// UpsertWarehouse crea la bodega o actualiza su nombre.
func (r *CatalogRepo) UpsertWarehouse(ctx context.Context, id, name string) error {
	query := `
		INSERT INTO warehouses (id, name) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`
	if _, err := r.q.Exec(ctx, query, id, name); err != nil {
		return fmt.Errorf("upsert warehouse: %w", err)
	}
	return nil
}

// UpsertItem crea el item o actualiza su nombre.
func (r *CatalogRepo) UpsertItem(ctx context.Context, id, name string) error {
	query := `
		INSERT INTO items (id, name) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`
	if _, err := r.q.Exec(ctx, query, id, name); err != nil {
		return fmt.Errorf("upsert item: %w", err)
	}
	return nil
}
