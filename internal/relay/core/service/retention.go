package service

import (
	"context"
	"time"

	"github.com/fleethub-io/fleethub/internal/pkg/metrics"
)

// RunRetention drives the periodic retention sweep until the context is
// cancelled. It purges expired messages first and then prunes presence, so
// a car whose last surviving status was just purged stops being listed as
// available.
func (s *Service) RunRetention(ctx context.Context) error {
	s.logger.Info("retention sweep started",
		"window", s.retention, "interval", s.sweepInterval)

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Service) sweep(ctx context.Context) {
	cutoff := s.now().Add(-s.retention).UnixMilli()
	if err := s.repo.PurgeOlderThan(ctx, cutoff); err != nil {
		s.logger.Error(err, "retention purge failed", "cutoff", cutoff)
		return
	}
	s.presence.Cleanup(cutoff)
	metrics.ConnectedCars.Set(float64(s.presence.CarCount()))
}

// RestorePresence rebuilds the presence cache from the message log at
// startup: one device entry per identity with a surviving status, and a
// car connection time equal to its earliest surviving status.
func (s *Service) RestorePresence(ctx context.Context) error {
	cutoff := s.now().Add(-s.retention).UnixMilli()
	observations, err := s.repo.ConnectedSince(ctx, cutoff)
	if err != nil {
		return err
	}

	type carKey struct{ company, car string }
	connectedAt := make(map[carKey]int64)
	for _, obs := range observations {
		key := carKey{company: obs.Company, car: obs.Car}
		if first, ok := connectedAt[key]; !ok || obs.FirstSeen < first {
			connectedAt[key] = obs.FirstSeen
		}
	}
	for key, first := range connectedAt {
		s.presence.AddCar(key.company, key.car, first)
	}
	for _, obs := range observations {
		s.presence.AddDevice(obs.Company, obs.Car, obs.DeviceID, obs.LastSeen)
	}

	metrics.ConnectedCars.Set(float64(s.presence.CarCount()))
	if len(observations) > 0 {
		s.logger.Info("presence restored from message log",
			"cars", len(connectedAt), "devices", len(observations))
	}
	return nil
}
