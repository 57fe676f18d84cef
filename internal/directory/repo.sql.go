package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-wms/meridian-wms/internal/shared"
)

// Repository provides PostgreSQL backed directory lookups.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetProduct fetches one product by id.
func (r *Repository) GetProduct(ctx context.Context, id int64) (Product, error) {
	var p Product
	err := r.pool.QueryRow(ctx, `SELECT id, org_id, sku, name, unit_price, is_active, created_at, updated_at
FROM products WHERE id=$1`, id).
		Scan(&p.ID, &p.OrgID, &p.SKU, &p.Name, &p.UnitPrice, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, fmt.Errorf("directory: product %d: %w", id, shared.ErrNotFound)
		}
		return Product{}, err
	}
	return p, nil
}

// GetWarehouse fetches one warehouse with its zones.
func (r *Repository) GetWarehouse(ctx context.Context, id int64) (Warehouse, error) {
	var w Warehouse
	err := r.pool.QueryRow(ctx, `SELECT id, org_id, code, name FROM warehouses WHERE id=$1`, id).
		Scan(&w.ID, &w.OrgID, &w.Code, &w.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Warehouse{}, fmt.Errorf("directory: warehouse %d: %w", id, shared.ErrNotFound)
		}
		return Warehouse{}, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, warehouse_id, name, kind FROM storage_zones WHERE warehouse_id=$1 ORDER BY id`, id)
	if err != nil {
		return Warehouse{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var z Zone
		if err := rows.Scan(&z.ID, &z.WarehouseID, &z.Name, &z.Kind); err != nil {
			return Warehouse{}, err
		}
		w.Zones = append(w.Zones, z)
	}
	if err := rows.Err(); err != nil {
		return Warehouse{}, err
	}
	return w, nil
}

// GetVendor fetches one vendor by id.
func (r *Repository) GetVendor(ctx context.Context, id int64) (Vendor, error) {
	var v Vendor
	err := r.pool.QueryRow(ctx, `SELECT id, org_id, name, email FROM vendors WHERE id=$1`, id).
		Scan(&v.ID, &v.OrgID, &v.Name, &v.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Vendor{}, fmt.Errorf("directory: vendor %d: %w", id, shared.ErrNotFound)
		}
		return Vendor{}, err
	}
	return v, nil
}

// GetUser fetches one user by id.
func (r *Repository) GetUser(ctx context.Context, id int64) (User, error) {
	var u User
	err := r.pool.QueryRow(ctx, `SELECT id, org_id, display_name, email FROM users WHERE id=$1`, id).
		Scan(&u.ID, &u.OrgID, &u.DisplayName, &u.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, fmt.Errorf("directory: user %d: %w", id, shared.ErrNotFound)
		}
		return User{}, err
	}
	return u, nil
}

// ListProducts returns the org's products ordered by sku.
func (r *Repository) ListProducts(ctx context.Context, orgID int64) ([]Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, org_id, sku, name, unit_price, is_active, created_at, updated_at
FROM products WHERE org_id=$1 ORDER BY sku`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var products []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.OrgID, &p.SKU, &p.Name, &p.UnitPrice, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

// CreateProduct inserts a product. SKU is unique per org.
func (r *Repository) CreateProduct(ctx context.Context, p Product) (Product, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO products (org_id, sku, name, unit_price, is_active, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,NOW(),NOW()) RETURNING id, created_at, updated_at`,
		p.OrgID, p.SKU, p.Name, p.UnitPrice, p.IsActive).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Product{}, wrapUnique(err, "product sku")
	}
	return p, nil
}

// CreateVendor inserts a vendor. Name is unique per org.
func (r *Repository) CreateVendor(ctx context.Context, v Vendor) (Vendor, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO vendors (org_id, name, email, created_at)
VALUES ($1,$2,$3,NOW()) RETURNING id`, v.OrgID, v.Name, v.Email).Scan(&v.ID)
	if err != nil {
		return Vendor{}, wrapUnique(err, "vendor name")
	}
	return v, nil
}

// CreateWarehouse inserts a warehouse and its zones.
func (r *Repository) CreateWarehouse(ctx context.Context, w Warehouse) (Warehouse, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Warehouse{}, err
	}
	defer tx.Rollback(ctx)
	err = tx.QueryRow(ctx, `INSERT INTO warehouses (org_id, code, name, created_at)
VALUES ($1,$2,$3,NOW()) RETURNING id`, w.OrgID, w.Code, w.Name).Scan(&w.ID)
	if err != nil {
		return Warehouse{}, wrapUnique(err, "warehouse code")
	}
	for i := range w.Zones {
		w.Zones[i].WarehouseID = w.ID
		err = tx.QueryRow(ctx, `INSERT INTO storage_zones (warehouse_id, name, kind)
VALUES ($1,$2,$3) RETURNING id`, w.ID, w.Zones[i].Name, w.Zones[i].Kind).Scan(&w.Zones[i].ID)
		if err != nil {
			return Warehouse{}, wrapUnique(err, "zone name")
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return Warehouse{}, err
	}
	return w, nil
}

func wrapUnique(err error, what string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("directory: %s already exists: %w", what, shared.ErrDuplicate)
	}
	return err
}
