package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ParkFee-Network/parking_layer/internal/app/domain/parking"
	"github.com/ParkFee-Network/parking_layer/internal/app/domain/user"
	"github.com/ParkFee-Network/parking_layer/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and mirrors the guards the SQL schema enforces, so tests
// exercise the same constraint failures local development sees.
type Store struct {
	mu             sync.RWMutex
	nextID         int64
	users          map[string]user.User
	usersByVehicle map[string]string
	records        map[string]parking.Record
	recordsByUser  map[string][]string
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.ParkingStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:         1,
		users:          make(map[string]user.User),
		usersByVehicle: make(map[string]string),
		records:        make(map[string]parking.Record),
		recordsByUser:  make(map[string][]string),
	}
}

func (s *Store) nextIDLocked() string {
	id := s.nextID
	s.nextID++
	return fmt.Sprintf("%d", id)
}

// UserStore implementation ----------------------------------------------------

func (s *Store) CreateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.usersByVehicle[u.VehicleNumber]; taken {
		return user.User{}, storage.ErrDuplicateVehicle
	}

	if u.ID == "" {
		u.ID = s.nextIDLocked()
	} else if _, exists := s.users[u.ID]; exists {
		return user.User{}, fmt.Errorf("user %s already exists", u.ID)
	}
	u.CreatedAt = time.Now().UTC()

	s.users[u.ID] = u
	s.usersByVehicle[u.VehicleNumber] = u.ID
	return u, nil
}

func (s *Store) GetUserByVehicle(_ context.Context, vehicleNumber string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usersByVehicle[vehicleNumber]
	if !ok {
		return user.User{}, storage.ErrNotFound
	}
	return s.users[id], nil
}

// ParkingStore implementation -------------------------------------------------

func (s *Store) CreateOpenRecord(_ context.Context, rec parking.Record) (parking.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.recordsByUser[rec.UserID] {
		if s.records[id].Open() {
			return parking.Record{}, storage.ErrOpenRecordExists
		}
	}

	if rec.ID == "" {
		rec.ID = s.nextIDLocked()
	}
	now := time.Now().UTC()
	if rec.EntryTime.IsZero() {
		rec.EntryTime = now
	}
	rec.ExitTime = nil
	rec.CreatedAt = now
	rec.UpdatedAt = now

	s.records[rec.ID] = rec
	s.recordsByUser[rec.UserID] = append(s.recordsByUser[rec.UserID], rec.ID)
	return rec, nil
}

func (s *Store) OpenRecordsForUser(_ context.Context, userID string) ([]parking.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var open []parking.Record
	for _, id := range s.recordsByUser[userID] {
		if rec := s.records[id]; rec.Open() {
			open = append(open, rec)
		}
	}
	sortByEntryDesc(open)
	return open, nil
}

func (s *Store) CloseRecord(_ context.Context, recordID string, exitTime time.Time) (parking.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[recordID]
	if !ok || !rec.Open() {
		return parking.Record{}, storage.ErrNotFound
	}

	exit := exitTime.UTC()
	rec.ExitTime = &exit
	rec.UpdatedAt = time.Now().UTC()
	s.records[recordID] = rec
	return rec, nil
}

func (s *Store) ListRecordsForUser(_ context.Context, userID string) ([]parking.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []parking.Record
	for _, id := range s.recordsByUser[userID] {
		result = append(result, s.records[id])
	}
	sortByEntryDesc(result)
	return result, nil
}

func sortByEntryDesc(recs []parking.Record) {
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].EntryTime.After(recs[j].EntryTime)
	})
}
