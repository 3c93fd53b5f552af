package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/fleethub-io/fleethub/internal/pkg/metrics"
	"github.com/fleethub-io/fleethub/internal/pkg/util"
	"github.com/fleethub-io/fleethub/internal/relay/core/model"
	"github.com/fleethub-io/fleethub/internal/relay/core/waitq"
)

// SendStatuses validates, stamps and persists a status batch, updates
// presence, and wakes blocked status and car readers. The returned string
// concatenates reconnect-invalidation warnings; it is empty on the common
// path.
//
// The whole batch shares one server timestamp. Client-supplied timestamps
// are overwritten: the server is the single source of truth for ordering.
func (s *Service) SendStatuses(ctx context.Context, company, car string, messages []model.Message) (string, error) {
	carID, err := model.NewCar(company, car)
	if err != nil {
		return "", err
	}
	for _, m := range messages {
		if err := m.Validate(); err != nil {
			return "", err
		}
		if m.Payload.Type == model.MessageTypeCommand {
			return "", fmt.Errorf("%w: status endpoint does not accept %s messages (device %s)",
				util.ErrInvalid, m.Payload.Type, m.DeviceID)
		}
	}
	if len(messages) == 0 {
		return "", nil
	}

	now := s.now().UnixMilli()
	for i := range messages {
		messages[i].Timestamp = now
	}
	// The connection timestamp is the minimum of the batch, not "now", so
	// back-filled batches connect at their oldest element.
	connectedAt := messages[0].Timestamp
	for _, m := range messages[1:] {
		if m.Timestamp < connectedAt {
			connectedAt = m.Timestamp
		}
	}

	if err := s.repo.Append(ctx, carID.Company, carID.Name, messages); err != nil {
		return "", err
	}
	for _, m := range messages {
		metrics.MessagesReceived.WithLabelValues(string(m.Payload.Type)).Inc()
	}

	if woken := s.statuses.ReleaseAll(waitKey(carID), messages); woken > 0 {
		metrics.WaitersWoken.WithLabelValues("status").Add(float64(woken))
	}

	var warnings []string
	for _, m := range messages {
		if s.presence.AddCar(carID.Company, carID.Name, connectedAt) {
			metrics.ConnectedCars.Set(float64(s.presence.CarCount()))
			s.logger.Info("car connected", "car", carID, "connected_at", connectedAt)
			if woken := s.cars.ReleaseAll(waitq.Global, []model.AvailableCar{{
				Company:     carID.Company,
				Name:        carID.Name,
				ConnectedAt: connectedAt,
			}}); woken > 0 {
				metrics.WaitersWoken.WithLabelValues("car").Add(float64(woken))
			}
		}
		if s.presence.AddDevice(carID.Company, carID.Name, m.DeviceID, m.Timestamp) {
			s.logger.Debug("device connected", "car", carID, "device", m.DeviceID)
			invalidated, err := s.repo.InvalidateCommandsBeforeReconnect(ctx, carID.Company, carID.Name, m.DeviceID, m.Timestamp)
			if err != nil {
				return "", err
			}
			for _, warning := range invalidated {
				s.logger.Warn(warning)
			}
			warnings = append(warnings, invalidated...)
		}
	}

	return strings.Join(warnings, "\n"), nil
}

// ListStatuses returns statuses for the car with timestamp >= since. With
// wait set and nothing stored, it blocks until new statuses arrive or the
// status timeout elapses.
func (s *Service) ListStatuses(ctx context.Context, company, car string, since int64, wait bool) ([]model.Message, error) {
	return s.list(ctx, company, car, s.statuses, statusTypes, since, wait, "status")
}

// list implements the shared list-or-wait flow for statuses and commands:
// query first; if empty and waiting was requested, park on the queue and
// accept an awaited payload that still satisfies the since cursor; in every
// other case fall back to presence to pick between an empty result and not
// found.
func (s *Service) list(ctx context.Context, company, car string, queue *waitq.Queue[model.Message], types []model.MessageType, since int64, wait bool, queueName string) ([]model.Message, error) {
	carID, err := model.NewCar(company, car)
	if err != nil {
		return nil, err
	}

	messages, err := s.repo.Query(ctx, carID.Company, carID.Name, types, since)
	if err != nil {
		return nil, err
	}
	if len(messages) > 0 {
		return messages, nil
	}

	if wait {
		waiter, err := queue.NewWaiter(waitKey(carID))
		if err != nil {
			return nil, err
		}
		payload, err := waiter.Wait(ctx)
		if err != nil {
			return nil, err
		}
		if len(payload) > 0 && newestTimestamp(payload) >= since {
			return payload, nil
		}
		metrics.WaitTimeouts.WithLabelValues(queueName).Inc()
	}

	if s.presence.IsCarConnected(carID.Company, carID.Name) {
		return []model.Message{}, nil
	}
	return nil, fmt.Errorf("%w: car %s is not connected", util.ErrNotFound, carID)
}
