package core

import (
	"context"

	"github.com/fleethub-io/fleethub/internal/relay/core/model"
)

// DeviceObservation summarizes the surviving statuses of one device in the
// log. FirstSeen and LastSeen bound the device's retained history; the
// presence cache is rebuilt from these at startup.
type DeviceObservation struct {
	Company   string
	Car       string
	DeviceID  model.DeviceID
	FirstSeen int64
	LastSeen  int64
}

// MessageRepository is the port to the durable message log. It owns no
// presence state: it is an ordered log plus the two derived operations the
// orchestrator needs. Implementations must be safe for concurrent use by
// request handlers and the retention sweep, make batch appends atomic, and
// surface infrastructure failures as ErrUnavailable after one internal
// reconnect attempt.
type MessageRepository interface {
	// Append persists the batch atomically. Timestamps are assigned by the
	// caller and stored as-is.
	Append(ctx context.Context, company, car string, messages []model.Message) error

	// Query returns all messages of the given types with timestamp >= since,
	// ordered ascending by timestamp with ties broken by insertion order.
	// since = 0 returns the full retained history.
	Query(ctx context.Context, company, car string, types []model.MessageType, since int64) ([]model.Message, error)

	// PurgeOlderThan deletes every message with timestamp < cutoff.
	PurgeOlderThan(ctx context.Context, cutoff int64) error

	// InvalidateCommandsBeforeReconnect deletes all pending commands for the
	// device and returns one warning per command stamped after the reconnect
	// timestamp. Such "future" commands indicate a clock or ordering defect
	// upstream; they are deleted too, but flagged.
	InvalidateCommandsBeforeReconnect(ctx context.Context, company, car string, id model.DeviceID, reconnect int64) ([]string, error)

	// ConnectedSince reports the devices with at least one status at or
	// after the cutoff, one observation per device.
	ConnectedSince(ctx context.Context, cutoff int64) ([]DeviceObservation, error)

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error
}

// CommandNotifier pushes freshly persisted commands to vehicles connected
// over a broker, so they do not need to long-poll. Delivery is best effort;
// the log remains the source of truth.
type CommandNotifier interface {
	NotifyCommands(ctx context.Context, car model.Car, messages []model.Message) error
}
