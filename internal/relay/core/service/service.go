// Package service implements the exchange orchestrator: the send and list
// operations composing the presence cache, the message log and the wait
// queues into the externally visible behavior of the relay.
package service

import (
	"time"

	"github.com/fleethub-io/fleethub/internal/pkg/metrics"
	"github.com/fleethub-io/fleethub/internal/relay/core"
	"github.com/fleethub-io/fleethub/internal/relay/core/model"
	"github.com/fleethub-io/fleethub/internal/relay/core/presence"
	"github.com/fleethub-io/fleethub/internal/relay/core/waitq"
	"github.com/fleethub-io/fleethub/pkg/log"
)

var statusTypes = []model.MessageType{model.MessageTypeStatus, model.MessageTypeStatusError}

// Config carries the exchange tunables.
type Config struct {
	// StatusWaitTimeout bounds long-polls for statuses.
	StatusWaitTimeout time.Duration

	// CommandWaitTimeout bounds long-polls for commands.
	CommandWaitTimeout time.Duration

	// CarWaitTimeout bounds long-polls for newly available cars.
	CarWaitTimeout time.Duration

	// RetentionWindow is how long messages are kept before the sweep
	// purges them.
	RetentionWindow time.Duration

	// SweepInterval is the period of the retention sweep.
	SweepInterval time.Duration
}

// Service is the exchange orchestrator. One instance per process; every
// ingress adapter (HTTP, MQTT) calls into the same instance.
type Service struct {
	repo     core.MessageRepository
	notifier core.CommandNotifier
	presence *presence.Cache

	statuses *waitq.Queue[model.Message]
	commands *waitq.Queue[model.Message]
	cars     *waitq.Queue[model.AvailableCar]

	retention     time.Duration
	sweepInterval time.Duration

	logger log.Logger
	now    func() time.Time
}

// New wires the orchestrator. notifier may be nil when no broker is
// configured; command delivery then relies on long-polling alone.
func New(repo core.MessageRepository, notifier core.CommandNotifier, cfg Config, logger log.Logger) *Service {
	return &Service{
		repo:          repo,
		notifier:      notifier,
		presence:      presence.NewCache(),
		statuses:      waitq.New(cfg.StatusWaitTimeout, model.CloneMessages),
		commands:      waitq.New(cfg.CommandWaitTimeout, model.CloneMessages),
		cars:          waitq.New[model.AvailableCar](cfg.CarWaitTimeout, nil),
		retention:     cfg.RetentionWindow,
		sweepInterval: cfg.SweepInterval,
		logger:        logger,
		now:           time.Now,
	}
}

// SetWaitTimeouts reconfigures the long-poll timeouts at runtime. Waiters
// already blocked keep the timeout they were created with.
func (s *Service) SetWaitTimeouts(status, command, car time.Duration) {
	s.statuses.SetTimeout(status)
	s.commands.SetTimeout(command)
	s.cars.SetTimeout(car)
	s.logger.Info("long-poll timeouts updated",
		"status", status, "command", command, "car", car)
}

// ResetState drops presence and wakes all parked waiters empty. The store
// calls it after an automatic restart, when the in-memory view can no
// longer be trusted to match the log.
func (s *Service) ResetState() {
	s.presence.Reset()
	s.statuses.Reset()
	s.commands.Reset()
	s.cars.Reset()
	metrics.ConnectedCars.Set(0)
	s.logger.Warn("exchange state reset, presence will rebuild from incoming statuses")
}

// CloseWaits shuts the wait queues down for good. Parked long-polls
// resolve with ErrUnavailable so they surface a failure to the caller
// instead of hanging through shutdown.
func (s *Service) CloseWaits() {
	s.statuses.Close()
	s.commands.Close()
	s.cars.Close()
}

func waitKey(car model.Car) waitq.Key {
	return waitq.Key{Company: car.Company, Car: car.Name}
}

func newestTimestamp(msgs []model.Message) int64 {
	var newest int64
	for _, m := range msgs {
		if m.Timestamp > newest {
			newest = m.Timestamp
		}
	}
	return newest
}
