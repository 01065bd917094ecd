package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"garagebook/internal/models"
)

const bookingColumns = `id, name, email, phone, service, date, car_model, message, status, archived, created_at, updated_at`

func (db *DB) CreateBooking(ctx context.Context, booking *models.Booking) error {
	query := `INSERT INTO bookings (
				name, email, phone, service, date, car_model, message, status, archived, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now().UTC()
	result, err := db.ExecContext(ctx, query,
		booking.Name,
		booking.Email,
		booking.Phone,
		booking.Service,
		booking.Date,
		booking.CarModel,
		booking.Message,
		booking.Status,
		booking.Archived,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	booking.ID = strconv.FormatInt(id, 10)
	booking.CreatedAt = now
	booking.UpdatedAt = now
	return nil
}

func (db *DB) ListActiveBookings(ctx context.Context) ([]models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE archived = 0 ORDER BY created_at DESC, id DESC`
	return db.queryBookings(ctx, query)
}

func (db *DB) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	rowID, ok := parseID(id)
	if !ok {
		return nil, nil
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	booking, err := scanBooking(db.QueryRowContext(ctx, query, rowID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return booking, nil
}

func (db *DB) SearchBookings(ctx context.Context, term string) ([]models.Booking, error) {
	pattern := "%" + escapeLike(strings.ToLower(term)) + "%"
	query := `SELECT ` + bookingColumns + ` FROM bookings
              WHERE archived = 0
              AND (lower(name) LIKE ? ESCAPE '\' OR lower(phone) LIKE ? ESCAPE '\' OR lower(service) LIKE ? ESCAPE '\')
              ORDER BY created_at DESC, id DESC`
	return db.queryBookings(ctx, query, pattern, pattern, pattern)
}

func (db *DB) UpdateBookingStatus(ctx context.Context, id string, status string) (bool, error) {
	rowID, ok := parseID(id)
	if !ok {
		return false, nil
	}
	query := `UPDATE bookings SET status = ?, updated_at = ? WHERE id = ?`
	res, err := db.ExecContext(ctx, query, status, time.Now().UTC(), rowID)
	if err != nil {
		return false, fmt.Errorf("failed to update booking status: %w", err)
	}
	return affected(res)
}

func (db *DB) ArchiveBooking(ctx context.Context, id string) (bool, error) {
	rowID, ok := parseID(id)
	if !ok {
		return false, nil
	}
	query := `UPDATE bookings SET archived = 1, updated_at = ? WHERE id = ?`
	res, err := db.ExecContext(ctx, query, time.Now().UTC(), rowID)
	if err != nil {
		return false, fmt.Errorf("failed to archive booking: %w", err)
	}
	return affected(res)
}

func (db *DB) DeleteBooking(ctx context.Context, id string) (bool, error) {
	rowID, ok := parseID(id)
	if !ok {
		return false, nil
	}
	res, err := db.ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, rowID)
	if err != nil {
		return false, fmt.Errorf("failed to delete booking: %w", err)
	}
	return affected(res)
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

// CountActiveBookings counts non-archived bookings; an empty status counts all.
func (db *DB) CountActiveBookings(ctx context.Context, status string) (int64, error) {
	query := `SELECT COUNT(*) FROM bookings WHERE archived = 0`
	var args []interface{}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}

	var count int64
	if err := db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return count, nil
}

func (db *DB) queryBookings(ctx context.Context, query string, args ...interface{}) ([]models.Booking, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	bookings := make([]models.Booking, 0)
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, *booking)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bookings: %w", err)
	}
	return bookings, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	var (
		b  models.Booking
		id int64
	)
	err := row.Scan(
		&id, &b.Name, &b.Email, &b.Phone, &b.Service, &b.Date, &b.CarModel, &b.Message,
		&b.Status, &b.Archived, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.ID = strconv.FormatInt(id, 10)
	return &b, nil
}

func parseID(id string) (int64, bool) {
	rowID, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
	if err != nil || rowID <= 0 {
		return 0, false
	}
	return rowID, true
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
