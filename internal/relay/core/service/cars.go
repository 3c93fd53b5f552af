package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/fleethub-io/fleethub/internal/pkg/metrics"
	"github.com/fleethub-io/fleethub/internal/pkg/util"
	"github.com/fleethub-io/fleethub/internal/relay/core/model"
	"github.com/fleethub-io/fleethub/internal/relay/core/waitq"
)

// AvailableCars lists connected cars with connected_at >= since, ordered
// by connection time. With wait set and no matching car, it blocks until a
// new car connects or the car timeout elapses. An empty list is a valid
// answer; this operation never reports not-found.
func (s *Service) AvailableCars(ctx context.Context, since int64, wait bool) ([]model.AvailableCar, error) {
	cars := s.carsSince(since)
	if len(cars) > 0 || !wait {
		return cars, nil
	}

	waiter, err := s.cars.NewWaiter(waitq.Global)
	if err != nil {
		return nil, err
	}
	payload, err := waiter.Wait(ctx)
	if err != nil {
		return nil, err
	}

	matched := make([]model.AvailableCar, 0, len(payload))
	for _, car := range payload {
		if car.ConnectedAt >= since {
			matched = append(matched, car)
		}
	}
	if len(matched) == 0 {
		metrics.WaitTimeouts.WithLabelValues("car").Inc()
	}
	return matched, nil
}

func (s *Service) carsSince(since int64) []model.AvailableCar {
	views := s.presence.Snapshot()
	cars := make([]model.AvailableCar, 0, len(views))
	for _, view := range views {
		if view.ConnectedAt >= since {
			cars = append(cars, model.AvailableCar{
				Company:     view.Company,
				Name:        view.Name,
				ConnectedAt: view.ConnectedAt,
			})
		}
	}
	sort.Slice(cars, func(i, j int) bool {
		if cars[i].ConnectedAt != cars[j].ConnectedAt {
			return cars[i].ConnectedAt < cars[j].ConnectedAt
		}
		if cars[i].Company != cars[j].Company {
			return cars[i].Company < cars[j].Company
		}
		return cars[i].Name < cars[j].Name
	})
	return cars
}

// AvailableDevices lists the connected modules of a car, or a single module
// when moduleID is given. Pure presence read on an immutable snapshot.
func (s *Service) AvailableDevices(ctx context.Context, company, car string, moduleID *uint32) ([]model.ModuleDevices, error) {
	carID, err := model.NewCar(company, car)
	if err != nil {
		return nil, err
	}

	for _, view := range s.presence.Snapshot() {
		if view.Company != carID.Company || view.Name != carID.Name {
			continue
		}
		modules := view.Modules
		sort.Slice(modules, func(i, j int) bool { return modules[i].ModuleID < modules[j].ModuleID })
		for m := range modules {
			devices := modules[m].DeviceList
			sort.Slice(devices, func(i, j int) bool {
				if devices[i].ModuleID != devices[j].ModuleID {
					return devices[i].ModuleID < devices[j].ModuleID
				}
				if devices[i].Type != devices[j].Type {
					return devices[i].Type < devices[j].Type
				}
				return devices[i].Role < devices[j].Role
			})
		}
		if moduleID == nil {
			return modules, nil
		}
		for _, m := range modules {
			if m.ModuleID == *moduleID {
				return []model.ModuleDevices{m}, nil
			}
		}
		return nil, fmt.Errorf("%w: no module %d connected for car %s", util.ErrNotFound, *moduleID, carID)
	}
	return nil, fmt.Errorf("%w: car %s is not connected", util.ErrNotFound, carID)
}
