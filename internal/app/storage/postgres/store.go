package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ParkFee-Network/parking_layer/internal/app/domain/parking"
	"github.com/ParkFee-Network/parking_layer/internal/app/domain/user"
	"github.com/ParkFee-Network/parking_layer/internal/app/storage"
)

// Unique constraint names from the migrations. Violations are translated into
// the storage guard errors so the services never see driver details.
const (
	constraintVehicleNumber = "parking_users_vehicle_number_key"
	constraintOneOpenRecord = "parking_records_one_open_per_user"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.ParkingStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// --- UserStore --------------------------------------------------------------

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO parking_users (id, name, vehicle_number, created_at)
		VALUES ($1, $2, $3, $4)
	`, u.ID, u.Name, u.VehicleNumber, u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, constraintVehicleNumber) {
			return user.User{}, storage.ErrDuplicateVehicle
		}
		return user.User{}, err
	}
	return u, nil
}

func (s *Store) GetUserByVehicle(ctx context.Context, vehicleNumber string) (user.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, vehicle_number, created_at
		FROM parking_users
		WHERE vehicle_number = $1
	`, vehicleNumber)

	var u user.User
	if err := row.Scan(&u.ID, &u.Name, &u.VehicleNumber, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return user.User{}, storage.ErrNotFound
		}
		return user.User{}, err
	}
	return u, nil
}

// --- ParkingStore -----------------------------------------------------------

func (s *Store) CreateOpenRecord(ctx context.Context, rec parking.Record) (parking.Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if rec.EntryTime.IsZero() {
		rec.EntryTime = now
	}
	rec.ExitTime = nil
	rec.CreatedAt = now
	rec.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO parking_records (id, user_id, entry_time, exit_time, created_at, updated_at)
		VALUES ($1, $2, $3, NULL, $4, $5)
	`, rec.ID, rec.UserID, rec.EntryTime, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, constraintOneOpenRecord) {
			return parking.Record{}, storage.ErrOpenRecordExists
		}
		return parking.Record{}, err
	}
	return rec, nil
}

func (s *Store) OpenRecordsForUser(ctx context.Context, userID string) ([]parking.Record, error) {
	return s.queryRecords(ctx, `
		SELECT id, user_id, entry_time, exit_time, created_at, updated_at
		FROM parking_records
		WHERE user_id = $1 AND exit_time IS NULL
		ORDER BY entry_time DESC
	`, userID)
}

func (s *Store) CloseRecord(ctx context.Context, recordID string, exitTime time.Time) (parking.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE parking_records
		SET exit_time = $2, updated_at = $3
		WHERE id = $1 AND exit_time IS NULL
		RETURNING id, user_id, entry_time, exit_time, created_at, updated_at
	`, recordID, exitTime.UTC(), time.Now().UTC())

	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return parking.Record{}, storage.ErrNotFound
		}
		return parking.Record{}, err
	}
	return rec, nil
}

func (s *Store) ListRecordsForUser(ctx context.Context, userID string) ([]parking.Record, error) {
	return s.queryRecords(ctx, `
		SELECT id, user_id, entry_time, exit_time, created_at, updated_at
		FROM parking_records
		WHERE user_id = $1
		ORDER BY entry_time DESC
	`, userID)
}

func (s *Store) queryRecords(ctx context.Context, query string, args ...interface{}) ([]parking.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []parking.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row scanner) (parking.Record, error) {
	var (
		rec  parking.Record
		exit sql.NullTime
	)
	if err := row.Scan(&rec.ID, &rec.UserID, &rec.EntryTime, &exit, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return parking.Record{}, err
	}
	if exit.Valid {
		t := exit.Time.UTC()
		rec.ExitTime = &t
	}
	return rec, nil
}

func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == "23505" && pqErr.Constraint == constraint
}
