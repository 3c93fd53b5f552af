package service

import (
	"context"
	"fmt"

	"github.com/fleethub-io/fleethub/internal/pkg/metrics"
	"github.com/fleethub-io/fleethub/internal/pkg/util"
	"github.com/fleethub-io/fleethub/internal/relay/core/model"
)

// SendCommands validates, stamps and persists a command batch and wakes
// blocked command readers. Unlike statuses, commands require presence: the
// target car must be connected and every command's module must exist under
// it. An empty batch is a no-op but still requires the car to be present.
func (s *Service) SendCommands(ctx context.Context, company, car string, messages []model.Message) error {
	carID, err := model.NewCar(company, car)
	if err != nil {
		return err
	}
	for _, m := range messages {
		if err := m.Validate(); err != nil {
			return err
		}
		if m.Payload.Type != model.MessageTypeCommand {
			return fmt.Errorf("%w: command endpoint does not accept %s messages (device %s)",
				util.ErrInvalid, m.Payload.Type, m.DeviceID)
		}
	}

	if !s.presence.IsCarConnected(carID.Company, carID.Name) {
		return fmt.Errorf("%w: car %s is not connected", util.ErrNotFound, carID)
	}
	if len(messages) == 0 {
		return nil
	}
	for _, m := range messages {
		if !s.presence.IsModuleConnected(carID.Company, carID.Name, m.DeviceID.ModuleID) {
			return fmt.Errorf("%w: no module %d connected for car %s (device %s)",
				util.ErrNotFound, m.DeviceID.ModuleID, carID, m.DeviceID)
		}
	}

	now := s.now().UnixMilli()
	for i := range messages {
		messages[i].Timestamp = now
	}

	if err := s.repo.Append(ctx, carID.Company, carID.Name, messages); err != nil {
		return err
	}
	metrics.MessagesReceived.WithLabelValues(string(model.MessageTypeCommand)).Add(float64(len(messages)))

	if woken := s.commands.ReleaseAll(waitKey(carID), messages); woken > 0 {
		metrics.WaitersWoken.WithLabelValues("command").Add(float64(woken))
	}

	// Broker delivery is best effort; the log remains authoritative and
	// polling vehicles pick the commands up regardless.
	if s.notifier != nil {
		if err := s.notifier.NotifyCommands(ctx, carID, messages); err != nil {
			s.logger.Warn("command notification failed", "car", carID, "error", err)
		}
	}
	return nil
}

// ListCommands returns commands for the car with timestamp >= since, with
// the same wait-then-fallback behavior as ListStatuses.
func (s *Service) ListCommands(ctx context.Context, company, car string, since int64, wait bool) ([]model.Message, error) {
	return s.list(ctx, company, car, s.commands, []model.MessageType{model.MessageTypeCommand}, since, wait, "command")
}
