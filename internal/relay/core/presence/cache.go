// Package presence tracks which companies, cars, modules and devices are
// currently considered connected. A device is connected while at least one
// of its status messages survives in the message log; the retention sweep
// feeds its purge cutoff back into Cleanup to keep the two in step.
package presence

import (
	"sync"

	"github.com/fleethub-io/fleethub/internal/relay/core/model"
)

// deviceKey is the identity triple of a device. Name is descriptive only
// and deliberately not part of the key.
type deviceKey struct {
	moduleID   uint32
	deviceType uint32
	role       string
}

func keyOf(id model.DeviceID) deviceKey {
	return deviceKey{moduleID: id.ModuleID, deviceType: id.Type, role: id.Role}
}

type device struct {
	id       model.DeviceID
	lastSeen int64
}

type connectedCar struct {
	connectedAt int64
	modules     map[uint32]map[deviceKey]*device
}

// Cache is the single mutable shared structure of the relay. One coarse
// lock guards the whole nested map; presence updates are cheap relative to
// message volume, so finer locking buys nothing.
type Cache struct {
	mu        sync.Mutex
	companies map[string]map[string]*connectedCar
}

func NewCache() *Cache {
	return &Cache{companies: make(map[string]map[string]*connectedCar)}
}

// IsCarConnected reports whether the car has at least one connected device.
func (c *Cache) IsCarConnected(company, car string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.companies[company][car]
	return ok
}

// IsModuleConnected reports whether the module is present under the car.
func (c *Cache) IsModuleConnected(company, car string, moduleID uint32) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.companies[company][car]
	if !ok {
		return false
	}
	_, ok = entry.modules[moduleID]
	return ok
}

// AddCar registers a car if it is not present yet. The timestamp becomes
// the car's connection time and is never bumped by later statuses; it only
// changes after a full disconnect and reconnect. Returns true iff the car
// was newly registered.
func (c *Cache) AddCar(company, car string, timestamp int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	cars, ok := c.companies[company]
	if !ok {
		cars = make(map[string]*connectedCar)
		c.companies[company] = cars
	}
	if _, ok := cars[car]; ok {
		return false
	}
	cars[car] = &connectedCar{
		connectedAt: timestamp,
		modules:     make(map[uint32]map[deviceKey]*device),
	}
	return true
}

// AddDevice records a status observation for the device. The car must have
// been registered by the caller; observations for unknown cars are dropped.
// Returns true iff the device was newly added, which is the "first status
// for this device" signal that triggers command invalidation.
func (c *Cache) AddDevice(company, car string, id model.DeviceID, seenAt int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.companies[company][car]
	if !ok {
		return false
	}
	key := keyOf(id)
	devices, ok := entry.modules[id.ModuleID]
	if !ok {
		devices = make(map[deviceKey]*device)
		entry.modules[id.ModuleID] = devices
	}
	if dev, ok := devices[key]; ok {
		if seenAt > dev.lastSeen {
			dev.lastSeen = seenAt
		}
		// The name may change between firmware versions; keep the latest.
		dev.id = id
		return false
	}
	devices[key] = &device{id: id, lastSeen: seenAt}
	return true
}

// RemoveDevice drops the device and prunes empty containers bottom-up so
// no empty module, car or company entry is left dangling.
func (c *Cache) RemoveDevice(company, car string, id model.DeviceID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.companies[company][car]
	if !ok {
		return
	}
	devices, ok := entry.modules[id.ModuleID]
	if !ok {
		return
	}
	delete(devices, keyOf(id))
	c.prune(company, car, entry, id.ModuleID)
}

// Cleanup removes every device whose last status is older than the cutoff,
// then prunes empty modules, cars and companies. The retention sweep calls
// it right after purging the message log with the same cutoff.
func (c *Cache) Cleanup(cutoff int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for company, cars := range c.companies {
		for car, entry := range cars {
			for moduleID, devices := range entry.modules {
				for key, dev := range devices {
					if dev.lastSeen < cutoff {
						delete(devices, key)
					}
				}
				if len(devices) == 0 {
					delete(entry.modules, moduleID)
				}
			}
			if len(entry.modules) == 0 {
				delete(cars, car)
			}
		}
		if len(cars) == 0 {
			delete(c.companies, company)
		}
	}
}

// Reset drops all presence state. Used after a store restart, when the
// in-memory view can no longer be trusted to match the log.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.companies = make(map[string]map[string]*connectedCar)
}

func (c *Cache) prune(company, car string, entry *connectedCar, moduleID uint32) {
	if len(entry.modules[moduleID]) == 0 {
		delete(entry.modules, moduleID)
	}
	if len(entry.modules) == 0 {
		delete(c.companies[company], car)
	}
	if len(c.companies[company]) == 0 {
		delete(c.companies, company)
	}
}

// CarCount returns the number of currently connected cars.
func (c *Cache) CarCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, cars := range c.companies {
		n += len(cars)
	}
	return n
}

// CarView is an immutable copy of one connected car.
type CarView struct {
	Company     string
	Name        string
	ConnectedAt int64
	Modules     []model.ModuleDevices
}

// Snapshot returns a deep copy of the whole structure. List reads operate
// on the snapshot so they never race with concurrent presence transitions.
func (c *Cache) Snapshot() []CarView {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]CarView, 0, len(c.companies))
	for company, cars := range c.companies {
		for car, entry := range cars {
			view := CarView{
				Company:     company,
				Name:        car,
				ConnectedAt: entry.connectedAt,
				Modules:     make([]model.ModuleDevices, 0, len(entry.modules)),
			}
			for moduleID, devices := range entry.modules {
				md := model.ModuleDevices{
					ModuleID:   moduleID,
					DeviceList: make([]model.DeviceID, 0, len(devices)),
				}
				for _, dev := range devices {
					md.DeviceList = append(md.DeviceList, dev.id)
				}
				view.Modules = append(view.Modules, md)
			}
			out = append(out, view)
		}
	}
	return out
}
