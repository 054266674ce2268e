package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"homeservices/internal/domain"
	"homeservices/internal/models"

	"github.com/google/uuid"
)

const serviceColumns = `id, provider_id, category_id, title, COALESCE(description, ''), price, duration_minutes,
        COALESCE(image_url, ''), moderation_status, is_active, rating, review_count, created_at, updated_at`

func scanService(row rowScanner) (*models.Service, error) {
	var s models.Service
	err := row.Scan(&s.ID, &s.ProviderID, &s.CategoryID, &s.Title, &s.Description, &s.Price, &s.DurationMinutes,
		&s.ImageURL, &s.ModerationStatus, &s.IsActive, &s.Rating, &s.ReviewCount, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (db *DB) CreateService(ctx context.Context, svc *models.Service) error {
	if svc.ID == "" {
		svc.ID = uuid.NewString()
	}
	if svc.ModerationStatus == "" {
		svc.ModerationStatus = models.ModerationPending
	}
	now := time.Now()

	query := `INSERT INTO services (id, provider_id, category_id, title, description, price, duration_minutes,
                image_url, moderation_status, is_active, rating, review_count, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, 0, 0, ?, ?)`
	_, err := db.ExecContext(ctx, query, svc.ID, svc.ProviderID, svc.CategoryID, svc.Title, svc.Description,
		svc.Price, svc.DurationMinutes, svc.ImageURL, svc.ModerationStatus, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.FieldError("id", "already exists")
		}
		return storeErr("create service", err)
	}

	svc.IsActive = true
	svc.CreatedAt = now
	svc.UpdatedAt = now
	return nil
}

func (db *DB) GetService(ctx context.Context, id string) (*models.Service, error) {
	query := `SELECT ` + serviceColumns + ` FROM services WHERE id = ?`
	svc, err := scanService(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("service %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, storeErr("get service", err)
	}
	return svc, nil
}

// UpdateService overwrites editable fields and the moderation status.
func (db *DB) UpdateService(ctx context.Context, svc *models.Service) error {
	now := time.Now()
	query := `UPDATE services SET category_id = ?, title = ?, description = ?, price = ?, duration_minutes = ?,
                image_url = ?, moderation_status = ?, updated_at = ?
              WHERE id = ? AND is_active = 1`
	result, err := db.ExecContext(ctx, query, svc.CategoryID, svc.Title, svc.Description, svc.Price,
		svc.DurationMinutes, svc.ImageURL, svc.ModerationStatus, now, svc.ID)
	if err != nil {
		return storeErr("update service", err)
	}
	if err := expectOneRow(result); err != nil {
		return fmt.Errorf("service %s: %w", svc.ID, domain.ErrNotFound)
	}
	svc.UpdatedAt = now
	return nil
}

func (db *DB) SetServiceModeration(ctx context.Context, id string, from, to models.ModerationStatus) error {
	query := `UPDATE services SET moderation_status = ?, updated_at = ? WHERE id = ? AND moderation_status = ?`
	result, err := db.ExecContext(ctx, query, to, time.Now(), id, from)
	if err != nil {
		return storeErr("set service moderation", err)
	}
	return expectOneRow(result)
}

func (db *DB) DeactivateService(ctx context.Context, id string) error {
	query := `UPDATE services SET is_active = 0, updated_at = ? WHERE id = ? AND is_active = 1`
	result, err := db.ExecContext(ctx, query, time.Now(), id)
	if err != nil {
		return storeErr("deactivate service", err)
	}
	if err := expectOneRow(result); err != nil {
		return fmt.Errorf("service %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (db *DB) ListServices(ctx context.Context, filter models.ServiceFilter) ([]*models.Service, error) {
	var (
		where []string
		args  []any
	)
	if filter.CategoryID != "" {
		where = append(where, "category_id = ?")
		args = append(args, filter.CategoryID)
	}
	if filter.ProviderID != "" {
		where = append(where, "provider_id = ?")
		args = append(args, filter.ProviderID)
	}
	if filter.Status != "" {
		where = append(where, "moderation_status = ?")
		args = append(args, filter.Status)
	}
	if filter.OnlyBookable {
		where = append(where, "is_active = 1", "moderation_status = ?")
		args = append(args, models.ModerationApproved)
	}

	query := `SELECT ` + serviceColumns + ` FROM services`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("list services", err)
	}
	defer rows.Close()

	var services []*models.Service
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, storeErr("scan service", err)
		}
		services = append(services, svc)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate services", err)
	}
	return services, nil
}

func (db *DB) UpdateServiceRating(ctx context.Context, id string, rating float64, count int) error {
	query := `UPDATE services SET rating = ?, review_count = ?, updated_at = ? WHERE id = ?`
	_, err := db.ExecContext(ctx, query, rating, count, time.Now(), id)
	return storeErr("update service rating", err)
}

func (db *DB) CreatePackage(ctx context.Context, pkg *models.Package) error {
	if pkg.ID == "" {
		pkg.ID = uuid.NewString()
	}
	now := time.Now()
	query := `INSERT INTO packages (id, service_id, name, description, price, is_active, created_at)
              VALUES (?, ?, ?, ?, ?, 1, ?)`
	_, err := db.ExecContext(ctx, query, pkg.ID, pkg.ServiceID, pkg.Name, pkg.Description, pkg.Price, now)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.FieldError("id", "already exists")
		}
		return storeErr("create package", err)
	}
	pkg.IsActive = true
	pkg.CreatedAt = now
	return nil
}

// GetPackagesByService returns the active packages of a service, cheapest first.
func (db *DB) GetPackagesByService(ctx context.Context, serviceID string) ([]*models.Package, error) {
	query := `SELECT id, service_id, name, COALESCE(description, ''), price, is_active, created_at
              FROM packages WHERE service_id = ? AND is_active = 1 ORDER BY price, name`
	rows, err := db.QueryContext(ctx, query, serviceID)
	if err != nil {
		return nil, storeErr("get packages", err)
	}
	defer rows.Close()

	var packages []*models.Package
	for rows.Next() {
		var p models.Package
		if err := rows.Scan(&p.ID, &p.ServiceID, &p.Name, &p.Description, &p.Price, &p.IsActive, &p.CreatedAt); err != nil {
			return nil, storeErr("scan package", err)
		}
		packages = append(packages, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate packages", err)
	}
	return packages, nil
}

// UpsertCategory creates the category or updates its fields, reactivating it.
func (db *DB) UpsertCategory(ctx context.Context, category *models.Category) error {
	if category.ID == "" {
		category.ID = uuid.NewString()
	}
	now := time.Now()
	query := `INSERT INTO categories (id, name, description, sort_order, is_active, created_at, updated_at)
              VALUES (?, ?, ?, ?, 1, ?, ?)
              ON CONFLICT(id) DO UPDATE SET
                name = excluded.name,
                description = excluded.description,
                sort_order = excluded.sort_order,
                is_active = 1,
                updated_at = excluded.updated_at`
	_, err := db.ExecContext(ctx, query, category.ID, category.Name, category.Description, category.SortOrder, now, now)
	if err != nil {
		return storeErr("upsert category", err)
	}

	stored, err := db.GetCategory(ctx, category.ID)
	if err != nil {
		return err
	}
	*category = *stored
	return nil
}

func (db *DB) GetCategory(ctx context.Context, id string) (*models.Category, error) {
	query := `SELECT id, name, COALESCE(description, ''), sort_order, is_active, created_at, updated_at
              FROM categories WHERE id = ?`
	var c models.Category
	err := db.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.Name, &c.Description, &c.SortOrder, &c.IsActive,
		&c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("category %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, storeErr("get category", err)
	}
	return &c, nil
}

func (db *DB) GetActiveCategories(ctx context.Context) ([]*models.Category, error) {
	query := `SELECT id, name, COALESCE(description, ''), sort_order, is_active, created_at, updated_at
              FROM categories WHERE is_active = 1 ORDER BY sort_order, name`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, storeErr("get categories", err)
	}
	defer rows.Close()

	var categories []*models.Category
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.SortOrder, &c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, storeErr("scan category", err)
		}
		categories = append(categories, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate categories", err)
	}
	return categories, nil
}

// DeactivateCategory soft-deletes a category that no active service references.
func (db *DB) DeactivateCategory(ctx context.Context, id string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var dependents int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM services WHERE category_id = ? AND is_active = 1`, id).Scan(&dependents)
	if err != nil {
		return storeErr("count category services", err)
	}
	if dependents > 0 {
		return fmt.Errorf("category %s is used by %d services: %w", id, dependents, domain.ErrHasDependents)
	}

	result, err := tx.ExecContext(ctx, `UPDATE categories SET is_active = 0, updated_at = ? WHERE id = ? AND is_active = 1`,
		time.Now(), id)
	if err != nil {
		return storeErr("deactivate category", err)
	}
	if err := expectOneRow(result); err != nil {
		return fmt.Errorf("category %s: %w", id, domain.ErrNotFound)
	}

	return storeErr("commit category delete", tx.Commit())
}
