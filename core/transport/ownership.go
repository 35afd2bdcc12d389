package transport

import (
	"fmt"
	"sync"
)

// OwnershipLedger records which person holds which shared device. A person
// holds at most one device and a device has at most one holder.
type OwnershipLedger struct {
	mu       sync.Mutex
	byPerson map[string]string
	byDevice map[string]string
}

// NewOwnershipLedger returns an empty ledger.
func NewOwnershipLedger() *OwnershipLedger {
	return &OwnershipLedger{
		byPerson: make(map[string]string),
		byDevice: make(map[string]string),
	}
}

// Owner returns the person holding device.
func (l *OwnershipLedger) Owner(deviceGUID string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.byDevice[deviceGUID]
	return p, ok
}

// DeviceOf returns the device held by person.
func (l *OwnershipLedger) DeviceOf(personID string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	d, ok := l.byPerson[personID]
	return d, ok
}

// Assign binds device to person, superseding the person's previous binding.
// A device held by someone else cannot be assigned.
func (l *OwnershipLedger) Assign(personID, deviceGUID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if owner, ok := l.byDevice[deviceGUID]; ok && owner != personID {
		return fmt.Errorf("device %s is held by %s", deviceGUID, owner)
	}
	if prev, ok := l.byPerson[personID]; ok {
		delete(l.byDevice, prev)
	}
	l.byPerson[personID] = deviceGUID
	l.byDevice[deviceGUID] = personID
	return nil
}

// Release drops the binding of person, if any.
func (l *OwnershipLedger) Release(personID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if d, ok := l.byPerson[personID]; ok {
		delete(l.byDevice, d)
		delete(l.byPerson, personID)
	}
}

// Len returns the number of live bindings.
func (l *OwnershipLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.byPerson)
}
