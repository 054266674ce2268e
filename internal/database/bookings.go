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

const bookingColumns = `b.id, b.customer_id, COALESCE(b.provider_id, ''), b.service_id, COALESCE(b.package_id, ''),
        b.service_date, b.service_time, b.estimated_duration, b.total_amount, b.payment_status, b.status,
        b.customer_address, b.customer_phone, COALESCE(b.special_instructions, ''), b.created_at,
        b.confirmed_at, b.actual_start_time, b.actual_end_time, b.cancelled_at, b.updated_at, b.version,
        COALESCE(s.title, '')`

const bookingFrom = `FROM bookings b LEFT JOIN services s ON s.id = b.service_id`

func scanBooking(row rowScanner) (*models.Booking, error) {
	var (
		b                                  models.Booking
		confirmed, started, ended, cancels sql.NullTime
	)
	err := row.Scan(
		&b.ID, &b.CustomerID, &b.ProviderID, &b.ServiceID, &b.PackageID,
		&b.ServiceDate, &b.ServiceTime, &b.EstimatedDuration, &b.TotalAmount, &b.PaymentStatus, &b.Status,
		&b.CustomerAddress, &b.CustomerPhone, &b.SpecialInstructions, &b.CreatedAt,
		&confirmed, &started, &ended, &cancels, &b.UpdatedAt, &b.Version,
		&b.ServiceTitle,
	)
	if err != nil {
		return nil, err
	}
	b.ConfirmedAt = timePtr(confirmed)
	b.ActualStartTime = timePtr(started)
	b.ActualEndTime = timePtr(ended)
	b.CancelledAt = timePtr(cancels)
	return &b, nil
}

// CountActiveBookings считает не отмененные заявки на слот
func (db *DB) CountActiveBookings(ctx context.Context, serviceID, date, slot string) (int, error) {
	query := `SELECT COUNT(*) FROM bookings WHERE service_id = ? AND service_date = ? AND service_time = ? AND status != ?`
	var count int
	err := db.QueryRowContext(ctx, query, serviceID, date, slot, models.StatusCancelled).Scan(&count)
	if err != nil {
		return 0, storeErr("count bookings for slot", err)
	}
	return count, nil
}

// CreateBookingWithLock re-checks the slot and inserts in one transaction.
// The partial unique index backs the check for writers racing past it.
func (db *DB) CreateBookingWithLock(ctx context.Context, booking *models.Booking) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// 1. Check availability inside transaction
	var bookedCount int
	queryCount := `SELECT COUNT(*) FROM bookings WHERE service_id = ? AND service_date = ? AND service_time = ? AND status != ?`
	err = tx.QueryRowContext(ctx, queryCount, booking.ServiceID, booking.ServiceDate, booking.ServiceTime,
		models.StatusCancelled).Scan(&bookedCount)
	if err != nil {
		return storeErr("check availability in tx", err)
	}
	if bookedCount > 0 {
		return domain.ErrSlotUnavailable
	}

	// 2. Create booking
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	if booking.Status == "" {
		booking.Status = models.StatusPending
	}
	if booking.PaymentStatus == "" {
		booking.PaymentStatus = models.PaymentPending
	}
	now := time.Now()

	queryInsert := `INSERT INTO bookings (
                id, customer_id, provider_id, service_id, package_id, service_date, service_time,
                estimated_duration, total_amount, payment_status, status, customer_address, customer_phone,
                special_instructions, created_at, updated_at, version
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = tx.ExecContext(ctx, queryInsert,
		booking.ID,
		booking.CustomerID,
		nullString(booking.ProviderID),
		booking.ServiceID,
		nullString(booking.PackageID),
		booking.ServiceDate,
		booking.ServiceTime,
		booking.EstimatedDuration,
		booking.TotalAmount,
		booking.PaymentStatus,
		booking.Status,
		booking.CustomerAddress,
		booking.CustomerPhone,
		booking.SpecialInstructions,
		now,
		now,
		1,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrSlotUnavailable
		}
		return storeErr("insert booking in tx", err)
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrSlotUnavailable
		}
		return storeErr("commit booking", err)
	}

	booking.CreatedAt = now
	booking.UpdatedAt = now
	booking.Version = 1
	return nil
}

func (db *DB) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` ` + bookingFrom + ` WHERE b.id = ?`
	booking, err := scanBooking(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("booking %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, storeErr("get booking", err)
	}
	return booking, nil
}

// SaveBookingTransition persists status, payment status and lifecycle
// timestamps. The write only lands when the row still has the expected
// version and status.
func (db *DB) SaveBookingTransition(ctx context.Context, booking *models.Booking, from models.BookingStatus, version int64) error {
	query := `UPDATE bookings SET
                status = ?,
                payment_status = ?,
                confirmed_at = COALESCE(confirmed_at, ?),
                actual_start_time = COALESCE(actual_start_time, ?),
                actual_end_time = COALESCE(actual_end_time, ?),
                cancelled_at = COALESCE(cancelled_at, ?),
                updated_at = ?,
                version = version + 1
              WHERE id = ? AND version = ? AND status = ?`
	result, err := db.ExecContext(ctx, query,
		booking.Status,
		booking.PaymentStatus,
		nullTime(booking.ConfirmedAt),
		nullTime(booking.ActualStartTime),
		nullTime(booking.ActualEndTime),
		nullTime(booking.CancelledAt),
		booking.UpdatedAt,
		booking.ID,
		version,
		from,
	)
	if err != nil {
		return storeErr("update booking status", err)
	}
	if err := expectOneRow(result); err != nil {
		return err
	}
	booking.Version = version + 1
	return nil
}

func (db *DB) AssignBookingProvider(ctx context.Context, id string, version int64, providerID string) error {
	query := `UPDATE bookings SET provider_id = ?, updated_at = ?, version = version + 1
              WHERE id = ? AND version = ? AND status IN (?, ?)`
	result, err := db.ExecContext(ctx, query, providerID, time.Now(), id, version,
		models.StatusPending, models.StatusConfirmed)
	if err != nil {
		return storeErr("assign provider", err)
	}
	return expectOneRow(result)
}

func (db *DB) UpdateBookingPayment(ctx context.Context, id string, version int64, status models.PaymentStatus) error {
	query := `UPDATE bookings SET payment_status = ?, updated_at = ?, version = version + 1
              WHERE id = ? AND version = ? AND status NOT IN (?, ?)`
	result, err := db.ExecContext(ctx, query, status, time.Now(), id, version,
		models.StatusCompleted, models.StatusCancelled)
	if err != nil {
		return storeErr("update payment status", err)
	}
	return expectOneRow(result)
}

func (db *DB) ListBookings(ctx context.Context, filter models.BookingFilter) ([]*models.Booking, error) {
	var (
		where []string
		args  []any
	)
	if filter.CustomerID != "" {
		where = append(where, "b.customer_id = ?")
		args = append(args, filter.CustomerID)
	}
	if filter.ProviderID != "" {
		where = append(where, "b.provider_id = ?")
		args = append(args, filter.ProviderID)
	}
	if filter.ServiceID != "" {
		where = append(where, "b.service_id = ?")
		args = append(args, filter.ServiceID)
	}
	if filter.Status != "" {
		where = append(where, "b.status = ?")
		args = append(args, filter.Status)
	}
	if filter.DateFrom != "" {
		where = append(where, "b.service_date >= ?")
		args = append(args, filter.DateFrom)
	}
	if filter.DateTo != "" {
		where = append(where, "b.service_date <= ?")
		args = append(args, filter.DateTo)
	}

	query := `SELECT ` + bookingColumns + ` ` + bookingFrom
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY b.service_date DESC, b.service_time DESC, b.created_at DESC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("list bookings", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, storeErr("scan booking", err)
		}
		bookings = append(bookings, booking)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate bookings", err)
	}
	return bookings, nil
}

// expectOneRow maps a zero-row optimistic update to ErrConcurrentModification.
func expectOneRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return storeErr("get rows affected", err)
	}
	if rows == 0 {
		return domain.ErrConcurrentModification
	}
	return nil
}
