package database

import (
	"context"
	"time"

	"homeservices/internal/domain"
	"homeservices/internal/models"

	"github.com/google/uuid"
)

func (db *DB) CreateReview(ctx context.Context, review *models.Review) error {
	if review.ID == "" {
		review.ID = uuid.NewString()
	}
	now := time.Now()
	query := `INSERT INTO reviews (id, booking_id, service_id, customer_id, rating, comment, created_at)
              VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query, review.ID, review.BookingID, review.ServiceID, review.CustomerID,
		review.Rating, review.Comment, now)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.FieldError("booking_id", "booking has already been reviewed")
		}
		return storeErr("create review", err)
	}
	review.CreatedAt = now
	return nil
}

func (db *DB) GetReviewsByService(ctx context.Context, serviceID string) ([]*models.Review, error) {
	return db.queryReviews(ctx, `WHERE service_id = ?`, serviceID)
}

func (db *DB) ListReviews(ctx context.Context) ([]*models.Review, error) {
	return db.queryReviews(ctx, ``)
}

func (db *DB) queryReviews(ctx context.Context, where string, args ...any) ([]*models.Review, error) {
	query := `SELECT id, booking_id, service_id, customer_id, rating, COALESCE(comment, ''), created_at
              FROM reviews ` + where + ` ORDER BY created_at DESC`
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("query reviews", err)
	}
	defer rows.Close()

	var reviews []*models.Review
	for rows.Next() {
		var r models.Review
		if err := rows.Scan(&r.ID, &r.BookingID, &r.ServiceID, &r.CustomerID, &r.Rating, &r.Comment, &r.CreatedAt); err != nil {
			return nil, storeErr("scan review", err)
		}
		reviews = append(reviews, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate reviews", err)
	}
	return reviews, nil
}
