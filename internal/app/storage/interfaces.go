package storage

import (
	"context"
	"errors"
	"time"

	"github.com/ParkFee-Network/parking_layer/internal/app/domain/parking"
	"github.com/ParkFee-Network/parking_layer/internal/app/domain/user"
)

// Store-level guard violations. Both backends report these so callers can map
// a constraint failure without knowing which backend is in play.
var (
	// ErrDuplicateVehicle is returned when a vehicle number is already bound
	// to a user.
	ErrDuplicateVehicle = errors.New("vehicle number already registered")

	// ErrOpenRecordExists is returned when creating an open record for a user
	// that already has one. The postgres backend enforces this with a partial
	// unique index, the memory backend with an explicit check.
	ErrOpenRecordExists = errors.New("user already has an open parking record")

	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("record not found")
)

// UserStore persists registered vehicle owners.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	GetUserByVehicle(ctx context.Context, vehicleNumber string) (user.User, error)
}

// ParkingStore persists parking session records.
type ParkingStore interface {
	// CreateOpenRecord inserts a new open session for the user. It fails with
	// ErrOpenRecordExists when the user already has an open record.
	CreateOpenRecord(ctx context.Context, rec parking.Record) (parking.Record, error)

	// OpenRecordsForUser returns the user's open records ordered newest entry
	// first. Under the one-open-session invariant the slice has at most one
	// element; callers treat anything longer as an integrity violation.
	OpenRecordsForUser(ctx context.Context, userID string) ([]parking.Record, error)

	// CloseRecord stamps the exit time on an open record. Closing an already
	// closed or missing record fails with ErrNotFound; the mutation happens
	// at most once.
	CloseRecord(ctx context.Context, recordID string, exitTime time.Time) (parking.Record, error)

	// ListRecordsForUser returns all of the user's records, newest entry first.
	ListRecordsForUser(ctx context.Context, userID string) ([]parking.Record, error)
}
