package sessions

import "sync"

// vehicleLocks hands out one mutex per vehicle number so the check-then-act
// sequence in entry and exit recording runs inside a per-vehicle critical
// section. Entries are never evicted; the map grows with the registered
// fleet, not with traffic.
type vehicleLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newVehicleLocks() *vehicleLocks {
	return &vehicleLocks{locks: make(map[string]*sync.Mutex)}
}

func (v *vehicleLocks) forVehicle(vehicleNumber string) *sync.Mutex {
	v.mu.Lock()
	defer v.mu.Unlock()

	lock, ok := v.locks[vehicleNumber]
	if !ok {
		lock = &sync.Mutex{}
		v.locks[vehicleNumber] = lock
	}
	return lock
}
