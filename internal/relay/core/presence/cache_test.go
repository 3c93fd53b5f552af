package presence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleethub-io/fleethub/internal/relay/core/model"
)

func dev(moduleID, devType uint32, role string) model.DeviceID {
	return model.DeviceID{ModuleID: moduleID, Type: devType, Role: role, Name: role}
}

func TestAddCarConnectedAtIsStable(t *testing.T) {
	c := NewCache()

	require.True(t, c.AddCar("acme", "truck1", 100))
	require.False(t, c.AddCar("acme", "truck1", 200), "second add must not re-register")

	snap := c.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, int64(100), snap[0].ConnectedAt, "connection time must not move on later statuses")
}

func TestAddDeviceFirstObservation(t *testing.T) {
	c := NewCache()
	c.AddCar("acme", "truck1", 100)

	require.True(t, c.AddDevice("acme", "truck1", dev(7, 8, "ignition"), 100))
	require.False(t, c.AddDevice("acme", "truck1", dev(7, 8, "ignition"), 150),
		"same identity triple is not a new device")

	// Same triple with a different name is still the same device.
	renamed := dev(7, 8, "ignition")
	renamed.Name = "Ignition Sensor v2"
	require.False(t, c.AddDevice("acme", "truck1", renamed, 160))

	snap := c.Snapshot()
	require.Len(t, snap, 1)
	require.Len(t, snap[0].Modules, 1)
	require.Len(t, snap[0].Modules[0].DeviceList, 1)
	assert.Equal(t, "Ignition Sensor v2", snap[0].Modules[0].DeviceList[0].Name,
		"latest name wins")

	// A different role under the same module is a new device.
	assert.True(t, c.AddDevice("acme", "truck1", dev(7, 8, "battery"), 170))
}

func TestAddDeviceUnknownCarDropped(t *testing.T) {
	c := NewCache()

	assert.False(t, c.AddDevice("acme", "ghost", dev(1, 1, "ignition"), 100))
	assert.False(t, c.IsCarConnected("acme", "ghost"))
}

func TestIsModuleConnected(t *testing.T) {
	c := NewCache()
	c.AddCar("acme", "truck1", 100)
	c.AddDevice("acme", "truck1", dev(7, 8, "ignition"), 100)

	assert.True(t, c.IsModuleConnected("acme", "truck1", 7))
	assert.False(t, c.IsModuleConnected("acme", "truck1", 9))
	assert.False(t, c.IsModuleConnected("acme", "truck2", 7))
}

func TestRemoveDeviceCascade(t *testing.T) {
	c := NewCache()
	c.AddCar("acme", "truck1", 100)
	c.AddDevice("acme", "truck1", dev(7, 8, "ignition"), 100)
	c.AddDevice("acme", "truck1", dev(7, 8, "battery"), 100)

	c.RemoveDevice("acme", "truck1", dev(7, 8, "ignition"))
	assert.True(t, c.IsModuleConnected("acme", "truck1", 7), "module survives while a device remains")

	c.RemoveDevice("acme", "truck1", dev(7, 8, "battery"))
	assert.False(t, c.IsModuleConnected("acme", "truck1", 7))
	assert.False(t, c.IsCarConnected("acme", "truck1"), "last device removal disconnects the car")
	assert.Equal(t, 0, c.CarCount())
}

func TestCleanupPrunesByLastSeen(t *testing.T) {
	c := NewCache()
	c.AddCar("acme", "truck1", 100)
	c.AddDevice("acme", "truck1", dev(7, 8, "ignition"), 100)
	c.AddDevice("acme", "truck1", dev(9, 2, "gps"), 500)
	c.AddCar("acme", "truck2", 100)
	c.AddDevice("acme", "truck2", dev(1, 1, "ignition"), 100)

	c.Cleanup(300)

	assert.True(t, c.IsCarConnected("acme", "truck1"), "car keeps a fresh device")
	assert.False(t, c.IsModuleConnected("acme", "truck1", 7), "stale module pruned")
	assert.True(t, c.IsModuleConnected("acme", "truck1", 9))
	assert.False(t, c.IsCarConnected("acme", "truck2"), "fully stale car pruned")
	assert.Equal(t, 1, c.CarCount())
}

func TestCleanupBumpedDeviceSurvives(t *testing.T) {
	c := NewCache()
	c.AddCar("acme", "truck1", 100)
	c.AddDevice("acme", "truck1", dev(7, 8, "ignition"), 100)
	// A later status refreshes lastSeen even though the device is not new.
	c.AddDevice("acme", "truck1", dev(7, 8, "ignition"), 400)

	c.Cleanup(300)
	assert.True(t, c.IsCarConnected("acme", "truck1"))
}

func TestReset(t *testing.T) {
	c := NewCache()
	c.AddCar("acme", "truck1", 100)
	c.AddDevice("acme", "truck1", dev(7, 8, "ignition"), 100)

	c.Reset()

	assert.Equal(t, 0, c.CarCount())
	assert.False(t, c.IsCarConnected("acme", "truck1"))
	assert.Empty(t, c.Snapshot())
}
