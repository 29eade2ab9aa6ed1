// Package users manages vehicle owner registration.
package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ParkFee-Network/parking_layer/internal/app/domain/user"
	"github.com/ParkFee-Network/parking_layer/internal/app/storage"
	"github.com/ParkFee-Network/parking_layer/pkg/logger"
)

// Errors
var (
	ErrDuplicateVehicle = errors.New("vehicle number already registered")
	ErrNotRegistered    = errors.New("vehicle not registered")
	ErrInvalidInput     = errors.New("name and vehicle_number are required")
)

// Service provides user registration and lookup.
type Service struct {
	store storage.UserStore
	log   *logger.Logger
}

// New constructs a users service.
func New(store storage.UserStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("users")
	}
	return &Service{store: store, log: log}
}

// Register creates a user bound to a vehicle plate. The plate is stored
// verbatim; lookups later match it exactly.
func (s *Service) Register(ctx context.Context, name, vehicleNumber string) (user.User, error) {
	if strings.TrimSpace(name) == "" || vehicleNumber == "" {
		return user.User{}, ErrInvalidInput
	}

	created, err := s.store.CreateUser(ctx, user.User{Name: name, VehicleNumber: vehicleNumber})
	if err != nil {
		if errors.Is(err, storage.ErrDuplicateVehicle) {
			return user.User{}, fmt.Errorf("%w: %s", ErrDuplicateVehicle, vehicleNumber)
		}
		return user.User{}, fmt.Errorf("create user: %w", err)
	}

	s.log.WithField("user_id", created.ID).
		WithField("vehicle_number", created.VehicleNumber).
		Info("user registered")
	return created, nil
}

// GetByVehicle resolves a vehicle plate to its registered owner.
func (s *Service) GetByVehicle(ctx context.Context, vehicleNumber string) (user.User, error) {
	u, err := s.store.GetUserByVehicle(ctx, vehicleNumber)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return user.User{}, fmt.Errorf("%w: %s", ErrNotRegistered, vehicleNumber)
		}
		return user.User{}, fmt.Errorf("lookup vehicle %s: %w", vehicleNumber, err)
	}
	return u, nil
}
