// Package store is the sqlite-backed reservation backend. It persists
// bookings together with a per-instance per-day occupancy table, and serves
// both the availability source and the persistence collaborator interfaces.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"costamar/internal/catalog"
	"costamar/internal/models"
)

// DB wraps sql.DB for the reservation backend.
type DB struct {
	*sql.DB
	catalog *catalog.Catalog
}

// New opens the database at path and runs migrations.
func New(path string, cat *catalog.Catalog) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if err := createTables(db); err != nil {
		return nil, err
	}
	return &DB{DB: db, catalog: cat}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS bookings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			reference TEXT UNIQUE NOT NULL,
			category TEXT NOT NULL,
			check_in DATETIME,
			check_out DATETIME,
			guest_count INTEGER NOT NULL DEFAULT 0,
			payment_mode TEXT NOT NULL,
			total_cost INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'pending',
			event_details TEXT,
			guests_json TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// One row per instance per occupied calendar day. Availability for
		// any date is a lookup against this table.
		`CREATE TABLE IF NOT EXISTS booking_days (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			booking_id INTEGER NOT NULL,
			category TEXT NOT NULL,
			instance_id TEXT NOT NULL,
			date TEXT NOT NULL,
			FOREIGN KEY (booking_id) REFERENCES bookings(id) ON DELETE CASCADE
		)`,

		`CREATE INDEX IF NOT EXISTS idx_booking_days_lookup ON booking_days(category, date)`,
		`CREATE INDEX IF NOT EXISTS idx_booking_days_booking ON booking_days(booking_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_status ON bookings(status)`,
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// FetchAvailability returns per-day availability facts for a category over
// [start, endExclusive), leaving out rows held by excludeBookingID so a
// booking being re-edited never counts against itself.
func (db *DB) FetchAvailability(ctx context.Context, category models.ResourceCategory, start, endExclusive time.Time, excludeBookingID int64) (map[string]models.AvailabilityDay, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT bd.date, bd.instance_id
		FROM booking_days bd
		JOIN bookings b ON b.id = bd.booking_id
		WHERE bd.category = ?
		  AND bd.date >= ? AND bd.date < ?
		  AND b.status != 'cancelled'
		  AND bd.booking_id != ?`,
		string(category), models.DateKey(start), models.DateKey(endExclusive), excludeBookingID,
	)
	if err != nil {
		return nil, fmt.Errorf("query occupancy: %w", err)
	}
	defer rows.Close()

	bookedByDate := make(map[string]models.InstanceSet)
	for rows.Next() {
		var dateKey, instanceID string
		if err := rows.Scan(&dateKey, &instanceID); err != nil {
			return nil, err
		}
		set, ok := bookedByDate[dateKey]
		if !ok {
			set = make(models.InstanceSet)
			bookedByDate[dateKey] = set
		}
		set.Add(instanceID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	fullCatalog := db.catalog.InstanceIDs(category)
	out := make(map[string]models.AvailabilityDay)
	for d := models.DateOnly(start); d.Before(models.DateOnly(endExclusive)); d = d.AddDate(0, 0, 1) {
		k := models.DateKey(d)
		booked := bookedByDate[k]
		if booked == nil {
			booked = make(models.InstanceSet)
		}
		available := make(models.InstanceSet)
		for id := range fullCatalog {
			if !booked.Has(id) {
				available.Add(id)
			}
		}
		out[k] = models.AvailabilityDay{Date: d, AvailableInstances: available, BookedInstances: booked}
	}
	return out, nil
}

// CreateBooking persists the booking and its occupancy rows atomically.
func (db *DB) CreateBooking(ctx context.Context, b *models.Booking) (*models.Booking, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	guestsJSON, err := marshalGuests(b.Guests)
	if err != nil {
		return nil, err
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO bookings (reference, category, check_in, check_out, guest_count, payment_mode, total_cost, status, event_details, guests_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.Reference, string(b.Category), b.CheckIn, b.CheckOut, b.GuestCount,
		b.PaymentMode, b.TotalCost, b.Status, b.EventDetails, guestsJSON,
	)
	if err != nil {
		return nil, fmt.Errorf("insert booking: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	b.ID = id

	if err := db.insertDays(ctx, tx, b); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return db.GetBooking(ctx, id)
}

// UpdateBooking replaces the booking's fields and occupancy rows.
func (db *DB) UpdateBooking(ctx context.Context, id int64, b *models.Booking) (*models.Booking, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	guestsJSON, err := marshalGuests(b.Guests)
	if err != nil {
		return nil, err
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE bookings
		SET category = ?, check_in = ?, check_out = ?, guest_count = ?, payment_mode = ?,
		    total_cost = ?, event_details = ?, guests_json = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status != 'cancelled'`,
		string(b.Category), b.CheckIn, b.CheckOut, b.GuestCount, b.PaymentMode,
		b.TotalCost, b.EventDetails, guestsJSON, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update booking: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, fmt.Errorf("booking %d not found or cancelled", id)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM booking_days WHERE booking_id = ?`, id); err != nil {
		return nil, fmt.Errorf("clear occupancy: %w", err)
	}
	b.ID = id
	if err := db.insertDays(ctx, tx, b); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return db.GetBooking(ctx, id)
}

// insertDays writes one occupancy row per instance per occupied day. Room
// instances occupy the whole [check-in, check-out) range; cottage instances
// occupy their explicit usage dates when those were chosen.
func (db *DB) insertDays(ctx context.Context, tx *sql.Tx, b *models.Booking) error {
	for _, instanceID := range b.InstanceIDs {
		inst, err := db.catalog.Lookup(instanceID)
		if err != nil {
			return err
		}
		for _, d := range db.occupiedDatesFor(b, inst) {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO booking_days (booking_id, category, instance_id, date)
				VALUES (?, ?, ?, ?)`,
				b.ID, string(inst.Category), instanceID, models.DateKey(d),
			); err != nil {
				return fmt.Errorf("insert occupancy: %w", err)
			}
		}
	}
	return nil
}

func (db *DB) occupiedDatesFor(b *models.Booking, inst catalog.Instance) []time.Time {
	if inst.Category == models.CategoryCottage && len(b.UsageDates) > 0 {
		out := make([]time.Time, len(b.UsageDates))
		for i, d := range b.UsageDates {
			out[i] = models.DateOnly(d)
		}
		return out
	}
	return models.NewDateRange(b.CheckIn, b.CheckOut).Days()
}

// GetBooking loads one booking with its instances and usage dates.
func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	b := &models.Booking{}
	var category, guestsJSON string
	var eventDetails sql.NullString
	err := db.QueryRowContext(ctx, `
		SELECT id, reference, category, check_in, check_out, guest_count, payment_mode,
		       total_cost, status, COALESCE(event_details, ''), COALESCE(guests_json, ''), created_at, updated_at
		FROM bookings WHERE id = ?`, id,
	).Scan(&b.ID, &b.Reference, &category, &b.CheckIn, &b.CheckOut, &b.GuestCount,
		&b.PaymentMode, &b.TotalCost, &b.Status, &eventDetails, &guestsJSON, &b.CreatedAt, &b.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("booking %d not found", id)
	}
	if err != nil {
		return nil, err
	}
	b.Category = models.ResourceCategory(category)
	b.EventDetails = eventDetails.String
	if guestsJSON != "" {
		if err := json.Unmarshal([]byte(guestsJSON), &b.Guests); err != nil {
			return nil, fmt.Errorf("decode guests: %w", err)
		}
	}

	if err := db.loadDays(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (db *DB) loadDays(ctx context.Context, b *models.Booking) error {
	rows, err := db.QueryContext(ctx, `
		SELECT DISTINCT instance_id FROM booking_days WHERE booking_id = ? ORDER BY instance_id`, b.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	b.InstanceIDs = nil
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return err
		}
		b.InstanceIDs = append(b.InstanceIDs, id)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	// Cottage occupancy rows carry the explicit rental days, both for
	// cottage-only bookings and for cottages attached to a room stay.
	dayRows, err := db.QueryContext(ctx, `
		SELECT DISTINCT date FROM booking_days
		WHERE booking_id = ? AND category = ? ORDER BY date`,
		b.ID, string(models.CategoryCottage))
	if err != nil {
		return err
	}
	defer dayRows.Close()
	b.UsageDates = nil
	for dayRows.Next() {
		var key string
		if err := dayRows.Scan(&key); err != nil {
			return err
		}
		d, err := models.ParseDate(key)
		if err != nil {
			return err
		}
		b.UsageDates = append(b.UsageDates, d)
	}
	return dayRows.Err()
}

// ListBookings returns bookings, optionally filtered by category and status.
func (db *DB) ListBookings(ctx context.Context, category models.ResourceCategory, status string) ([]models.Booking, error) {
	query := `SELECT id FROM bookings WHERE 1=1`
	var args []any
	if category != "" {
		query += ` AND category = ?`
		args = append(args, string(category))
	}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY id`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	bookings := make([]models.Booking, 0, len(ids))
	for _, id := range ids {
		b, err := db.GetBooking(ctx, id)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, nil
}

// CancelBooking marks the booking cancelled and releases its occupancy.
func (db *DB) CancelBooking(ctx context.Context, id int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status = 'cancelled', updated_at = CURRENT_TIMESTAMP WHERE id = ? AND status != 'cancelled'`, id)
	if err != nil {
		return fmt.Errorf("cancel booking: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("booking %d not found or already cancelled", id)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM booking_days WHERE booking_id = ?`, id); err != nil {
		return fmt.Errorf("release occupancy: %w", err)
	}
	return tx.Commit()
}

func marshalGuests(guests map[string]models.GuestAllocation) (string, error) {
	if len(guests) == 0 {
		return "", nil
	}
	data, err := json.Marshal(guests)
	if err != nil {
		return "", fmt.Errorf("encode guests: %w", err)
	}
	return string(data), nil
}
