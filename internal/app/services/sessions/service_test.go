package sessions

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ParkFee-Network/parking_layer/internal/app/domain/parking"
	"github.com/ParkFee-Network/parking_layer/internal/app/services/users"
	"github.com/ParkFee-Network/parking_layer/internal/app/storage"
	"github.com/ParkFee-Network/parking_layer/internal/app/storage/memory"
)

func newTestService(t *testing.T) (*Service, *users.Service) {
	t.Helper()
	store := memory.New()
	userSvc := users.New(store, nil)
	return New(userSvc, store, nil), userSvc
}

func registerVehicle(t *testing.T, userSvc *users.Service, name, plate string) {
	t.Helper()
	if _, err := userSvc.Register(context.Background(), name, plate); err != nil {
		t.Fatalf("register %s: %v", plate, err)
	}
}

func TestRecordEntryUnregisteredVehicle(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.RecordEntry(context.Background(), "ZZ-404")
	if !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("expected ErrNotRegistered, got %v", err)
	}
}

func TestEntryExitLifecycle(t *testing.T) {
	svc, userSvc := newTestService(t)
	registerVehicle(t, userSvc, "John Doe", "ABC123")

	entry := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return entry }

	rec, err := svc.RecordEntry(context.Background(), "ABC123")
	if err != nil {
		t.Fatalf("record entry: %v", err)
	}
	if !rec.Open() {
		t.Fatalf("expected open record, got exit time %v", rec.ExitTime)
	}
	if !rec.EntryTime.Equal(entry) {
		t.Fatalf("entry time = %v, want %v", rec.EntryTime, entry)
	}

	svc.now = func() time.Time { return entry.Add(2*time.Hour + 30*time.Minute) }

	summary, err := svc.RecordExit(context.Background(), "ABC123")
	if err != nil {
		t.Fatalf("record exit: %v", err)
	}
	if summary.DurationHours != 2.5 {
		t.Fatalf("duration = %v hours, want 2.5", summary.DurationHours)
	}
	if summary.UserName != "John Doe" {
		t.Fatalf("user name = %q, want John Doe", summary.UserName)
	}
}

func TestExitUnderClockSkewReturnsNegativeDuration(t *testing.T) {
	svc, userSvc := newTestService(t)
	registerVehicle(t, userSvc, "John Doe", "ABC123")

	entry := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return entry }
	if _, err := svc.RecordEntry(context.Background(), "ABC123"); err != nil {
		t.Fatalf("record entry: %v", err)
	}

	// The exit stamp lands before the entry stamp; the skew is reported
	// as-is, not clamped to zero.
	svc.now = func() time.Time { return entry.Add(-90 * time.Minute) }

	summary, err := svc.RecordExit(context.Background(), "ABC123")
	if err != nil {
		t.Fatalf("record exit: %v", err)
	}
	if summary.DurationHours != -1.5 {
		t.Fatalf("duration = %v hours, want -1.5", summary.DurationHours)
	}
}

func TestSecondEntryRejected(t *testing.T) {
	svc, userSvc := newTestService(t)
	registerVehicle(t, userSvc, "John Doe", "ABC123")

	if _, err := svc.RecordEntry(context.Background(), "ABC123"); err != nil {
		t.Fatalf("first entry: %v", err)
	}
	_, err := svc.RecordEntry(context.Background(), "ABC123")
	if !errors.Is(err, ErrSessionActive) {
		t.Fatalf("expected ErrSessionActive, got %v", err)
	}
}

func TestExitWithoutEntry(t *testing.T) {
	svc, userSvc := newTestService(t)
	registerVehicle(t, userSvc, "John Doe", "ABC123")

	_, err := svc.RecordExit(context.Background(), "ABC123")
	if !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("expected ErrNoActiveSession, got %v", err)
	}
}

func TestExitTwiceRejected(t *testing.T) {
	svc, userSvc := newTestService(t)
	registerVehicle(t, userSvc, "John Doe", "ABC123")

	if _, err := svc.RecordEntry(context.Background(), "ABC123"); err != nil {
		t.Fatalf("entry: %v", err)
	}
	if _, err := svc.RecordExit(context.Background(), "ABC123"); err != nil {
		t.Fatalf("first exit: %v", err)
	}
	_, err := svc.RecordExit(context.Background(), "ABC123")
	if !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("expected ErrNoActiveSession on second exit, got %v", err)
	}
}

func TestReentryAfterExit(t *testing.T) {
	svc, userSvc := newTestService(t)
	registerVehicle(t, userSvc, "John Doe", "ABC123")

	for i := 0; i < 3; i++ {
		if _, err := svc.RecordEntry(context.Background(), "ABC123"); err != nil {
			t.Fatalf("entry %d: %v", i, err)
		}
		if _, err := svc.RecordExit(context.Background(), "ABC123"); err != nil {
			t.Fatalf("exit %d: %v", i, err)
		}
	}

	recs, err := svc.History(context.Background(), "ABC123")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recs))
	}
}

func TestConcurrentEntrySingleWinner(t *testing.T) {
	svc, userSvc := newTestService(t)
	registerVehicle(t, userSvc, "John Doe", "ABC123")

	const workers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	start := make(chan struct{})

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := svc.RecordEntry(context.Background(), "ABC123")
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
				return
			}
			if !errors.Is(err, ErrSessionActive) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if successes != 1 {
		t.Fatalf("expected exactly 1 successful entry, got %d", successes)
	}
}

// multiOpenStore simulates a store whose invariant was broken by an outside
// writer: two open records for the same user.
type multiOpenStore struct {
	storage.ParkingStore
	open     []parking.Record
	closedID string
}

func (s *multiOpenStore) OpenRecordsForUser(ctx context.Context, userID string) ([]parking.Record, error) {
	return s.open, nil
}

func (s *multiOpenStore) CloseRecord(ctx context.Context, recordID string, exitTime time.Time) (parking.Record, error) {
	s.closedID = recordID
	for _, rec := range s.open {
		if rec.ID == recordID {
			rec.ExitTime = &exitTime
			return rec, nil
		}
	}
	return parking.Record{}, storage.ErrNotFound
}

func TestExitPicksNewestOfMultipleOpenRecords(t *testing.T) {
	mem := memory.New()
	userSvc := users.New(mem, nil)
	u, err := userSvc.Register(context.Background(), "John Doe", "ABC123")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	newer := parking.Record{ID: "2", UserID: u.ID, EntryTime: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	older := parking.Record{ID: "1", UserID: u.ID, EntryTime: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)}
	store := &multiOpenStore{open: []parking.Record{newer, older}}

	svc := New(userSvc, store, nil)
	if _, err := svc.RecordExit(context.Background(), "ABC123"); err != nil {
		t.Fatalf("record exit: %v", err)
	}
	if store.closedID != "2" {
		t.Fatalf("closed record %q, want newest record 2", store.closedID)
	}
}
