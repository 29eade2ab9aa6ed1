// Package sessions enforces the parking session lifecycle: at most one open
// session per vehicle at any instant.
package sessions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ParkFee-Network/parking_layer/internal/app/domain/parking"
	"github.com/ParkFee-Network/parking_layer/internal/app/metrics"
	"github.com/ParkFee-Network/parking_layer/internal/app/services/users"
	"github.com/ParkFee-Network/parking_layer/internal/app/storage"
	"github.com/ParkFee-Network/parking_layer/pkg/logger"
)

// Errors
var (
	ErrNotRegistered   = users.ErrNotRegistered
	ErrSessionActive   = errors.New("vehicle already has an active parking session")
	ErrNoActiveSession = errors.New("no active parking session found")
)

// Service is the session manager. Entry and exit run their read-check-write
// sequence under a per-vehicle mutex, and the store rejects a second open
// record for the same user, so the one-open-session invariant holds even when
// the two guards race against direct store writers.
type Service struct {
	users *users.Service
	store storage.ParkingStore
	locks *vehicleLocks
	log   *logger.Logger

	// now is swapped out by tests that need deterministic timestamps.
	now func() time.Time
}

// New constructs a session manager.
func New(userSvc *users.Service, store storage.ParkingStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("sessions")
	}
	return &Service{
		users: userSvc,
		store: store,
		locks: newVehicleLocks(),
		log:   log,
		now:   time.Now,
	}
}

// RecordEntry opens a new session for the vehicle. It fails with
// ErrNotRegistered when the plate is unknown and ErrSessionActive when an
// open session already exists; no record is created in either case.
func (s *Service) RecordEntry(ctx context.Context, vehicleNumber string) (parking.Record, error) {
	u, err := s.users.GetByVehicle(ctx, vehicleNumber)
	if err != nil {
		return parking.Record{}, err
	}

	lock := s.locks.forVehicle(vehicleNumber)
	lock.Lock()
	defer lock.Unlock()

	if _, ok, err := s.activeRecord(ctx, u.ID, vehicleNumber); err != nil {
		return parking.Record{}, err
	} else if ok {
		return parking.Record{}, fmt.Errorf("%w: %s", ErrSessionActive, vehicleNumber)
	}

	rec, err := s.store.CreateOpenRecord(ctx, parking.Record{
		UserID:    u.ID,
		EntryTime: s.now().UTC(),
	})
	if err != nil {
		// The store guard can still fire if a writer bypassed this service.
		if errors.Is(err, storage.ErrOpenRecordExists) {
			return parking.Record{}, fmt.Errorf("%w: %s", ErrSessionActive, vehicleNumber)
		}
		return parking.Record{}, fmt.Errorf("create parking record: %w", err)
	}

	metrics.RecordSessionEntry()
	s.log.WithField("vehicle_number", vehicleNumber).
		WithField("record_id", rec.ID).
		Info("parking session opened")
	return rec, nil
}

// RecordExit closes the vehicle's open session and returns the elapsed
// duration in hours. Negative durations are possible under clock skew and
// are returned unchanged.
func (s *Service) RecordExit(ctx context.Context, vehicleNumber string) (parking.ExitSummary, error) {
	u, err := s.users.GetByVehicle(ctx, vehicleNumber)
	if err != nil {
		return parking.ExitSummary{}, err
	}

	lock := s.locks.forVehicle(vehicleNumber)
	lock.Lock()
	defer lock.Unlock()

	active, ok, err := s.activeRecord(ctx, u.ID, vehicleNumber)
	if err != nil {
		return parking.ExitSummary{}, err
	}
	if !ok {
		return parking.ExitSummary{}, fmt.Errorf("%w: %s", ErrNoActiveSession, vehicleNumber)
	}

	closed, err := s.store.CloseRecord(ctx, active.ID, s.now().UTC())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Closed underneath us after the lookup; treat like no session.
			return parking.ExitSummary{}, fmt.Errorf("%w: %s", ErrNoActiveSession, vehicleNumber)
		}
		return parking.ExitSummary{}, fmt.Errorf("close parking record: %w", err)
	}

	summary := parking.ExitSummary{
		DurationHours: closed.DurationHours(),
		UserName:      u.Name,
	}

	metrics.RecordSessionExit(summary.DurationHours)
	s.log.WithField("vehicle_number", vehicleNumber).
		WithField("record_id", closed.ID).
		WithField("duration_hours", summary.DurationHours).
		Info("parking session closed")
	return summary, nil
}

// History returns every session recorded for the vehicle, newest entry first.
func (s *Service) History(ctx context.Context, vehicleNumber string) ([]parking.Record, error) {
	u, err := s.users.GetByVehicle(ctx, vehicleNumber)
	if err != nil {
		return nil, err
	}

	recs, err := s.store.ListRecordsForUser(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("list parking records: %w", err)
	}
	return recs, nil
}

// activeRecord returns the user's open session. If the invariant is broken
// and several open records exist, the newest entry wins and the violation is
// logged; the older records stay untouched for operators to reconcile.
func (s *Service) activeRecord(ctx context.Context, userID, vehicleNumber string) (parking.Record, bool, error) {
	open, err := s.store.OpenRecordsForUser(ctx, userID)
	if err != nil {
		return parking.Record{}, false, fmt.Errorf("lookup open records: %w", err)
	}
	if len(open) == 0 {
		return parking.Record{}, false, nil
	}
	if len(open) > 1 {
		s.log.WithField("vehicle_number", vehicleNumber).
			WithField("open_records", len(open)).
			Warn("integrity violation: multiple open parking records for one user")
	}
	return open[0], true, nil
}
