package storage

import (
	"context"

	"github.com/wltan/clinicdesk/libs/db"
	"github.com/wltan/clinicdesk/services/clinic-service/internal/model"
)

// CatalogRepository backs the treatment catalog (services and their
// categories). The booking core only reads it to resolve treatment ids.
type CatalogRepository struct {
	pool *db.Pool
}

func NewCatalogRepository(pool *db.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

const serviceColumns = `id, name, category_id, COALESCE(description, ''), duration_minutes, price, is_active, created_at, updated_at`

func (r *CatalogRepository) ListServices(ctx context.Context, categoryID string, limit int) ([]model.Service, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+serviceColumns+`
		FROM services
		WHERE is_active
			AND ($1 = '' OR category_id::text = $1)
		ORDER BY name
		LIMIT $2
	`, categoryID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var services []model.Service
	for rows.Next() {
		var s model.Service
		if err := rows.Scan(&s.ID, &s.Name, &s.CategoryID, &s.Description, &s.DurationMinutes,
			&s.Price, &s.IsActive, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		services = append(services, s)
	}
	return services, rows.Err()
}

func (r *CatalogRepository) GetService(ctx context.Context, id string) (model.Service, error) {
	var s model.Service
	err := r.pool.QueryRow(ctx, `
		SELECT `+serviceColumns+`
		FROM services
		WHERE id = $1
	`, id).Scan(&s.ID, &s.Name, &s.CategoryID, &s.Description, &s.DurationMinutes,
		&s.Price, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func (r *CatalogRepository) CreateService(ctx context.Context, svc *model.Service) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO services (name, category_id, description, duration_minutes, price, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`, svc.Name, svc.CategoryID, svc.Description, svc.DurationMinutes, svc.Price, svc.IsActive).
		Scan(&svc.ID, &svc.CreatedAt, &svc.UpdatedAt)
}

func (r *CatalogRepository) ListCategories(ctx context.Context) ([]model.Category, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, COALESCE(description, ''), is_active, created_at, updated_at
		FROM categories
		WHERE is_active
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []model.Category
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (r *CatalogRepository) CreateCategory(ctx context.Context, cat *model.Category) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO categories (name, description, is_active)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`, cat.Name, cat.Description, cat.IsActive).
		Scan(&cat.ID, &cat.CreatedAt, &cat.UpdatedAt)
}
